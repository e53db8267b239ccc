package domain

// TimeBucket is a derived 15-minute aggregation window, labeled by its start
// time in venue-local clock time. Buckets are regenerated from scratch on
// every aggregation pass and never mutated incrementally.
type TimeBucket struct {
	Label         string `json:"label"`
	EndLabel      string `json:"end_label"`
	MaleEntries   int    `json:"male_entries"`
	FemaleEntries int    `json:"female_entries"`
	MaleExits     int    `json:"male_exits"`
	FemaleExits   int    `json:"female_exits"`
	Entries       int    `json:"entries"`
	Exits         int    `json:"exits"`
	RunningTotal  int    `json:"running_total"`
}

// PeakStat holds the maximum value of one count category and the bucket where
// it was first reached.
type PeakStat struct {
	Count  int    `json:"count"`
	Bucket string `json:"bucket"`
}

// PeakReport collects peak statistics for every tracked category.
type PeakReport struct {
	TotalEntries  PeakStat `json:"total_entries"`
	TotalExits    PeakStat `json:"total_exits"`
	MaleEntries   PeakStat `json:"male_entries"`
	FemaleEntries PeakStat `json:"female_entries"`
	MaleExits     PeakStat `json:"male_exits"`
	FemaleExits   PeakStat `json:"female_exits"`
}

// CurrentCount is the in-memory live occupancy, split by gender. Both values
// are clamped at zero.
type CurrentCount struct {
	Male   int `json:"male"`
	Female int `json:"female"`
}

// Total returns the combined occupancy.
func (c CurrentCount) Total() int {
	return c.Male + c.Female
}

// DayTotals summarizes a full business day of in-grid events.
type DayTotals struct {
	TotalEntries  int `json:"total_entries"`
	TotalExits    int `json:"total_exits"`
	MaleEntries   int `json:"male_entries"`
	FemaleEntries int `json:"female_entries"`
	MaleExits     int `json:"male_exits"`
	FemaleExits   int `json:"female_exits"`
	FinalCount    int `json:"final_count"`
}
