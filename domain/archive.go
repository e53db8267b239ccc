package domain

import "time"

// ArchiveSummary is the persisted record of one completed session, written
// once during a reset and never mutated afterwards.
type ArchiveSummary struct {
	ID            string    `json:"id"`
	BusinessDate  string    `json:"business_date"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	TotalEntries  int       `json:"total_entries"`
	TotalExits    int       `json:"total_exits"`
	MaleEntries   int       `json:"male_entries"`
	FemaleEntries int       `json:"female_entries"`
	MaleExits     int       `json:"male_exits"`
	FemaleExits   int       `json:"female_exits"`
	FinalCount    int       `json:"final_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// ArchiveInterval is one per-bucket breakdown row of an archive.
type ArchiveInterval struct {
	ID            string `json:"id"`
	ArchiveID     string `json:"archive_id"`
	IntervalStart string `json:"interval_start"`
	IntervalEnd   string `json:"interval_end"`
	MaleEntries   int    `json:"male_entries"`
	FemaleEntries int    `json:"female_entries"`
	MaleExits     int    `json:"male_exits"`
	FemaleExits   int    `json:"female_exits"`
	Entries       int    `json:"entries"`
	Exits         int    `json:"exits"`
	RunningTotal  int    `json:"running_total"`
}
