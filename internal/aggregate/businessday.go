package aggregate

import "time"

// DateLayout is the wire format for business-day labels.
const DateLayout = "2006-01-02"

// DayWindow describes the operating window of the venue. The window opens at
// OpenHour and closes at CloseHour on the following calendar day (e.g. 16 and
// 3 mean 16:00 through 02:59). CutoverHour marks where a new business day
// begins: local times before it belong to the previous calendar date.
type DayWindow struct {
	OpenHour    int
	CloseHour   int
	CutoverHour int
	Location    *time.Location
}

// DefaultWindow returns the standard 16:00-03:00 window with a 04:00 cutover.
func DefaultWindow(loc *time.Location) DayWindow {
	if loc == nil {
		loc = time.UTC
	}
	return DayWindow{OpenHour: 16, CloseHour: 3, CutoverHour: 4, Location: loc}
}

// Hours returns the number of clock hours covered by the window.
func (w DayWindow) Hours() int {
	return 24 - w.OpenHour + w.CloseHour
}

// Contains reports whether a local clock hour falls inside the window.
func (w DayWindow) Contains(hour int) bool {
	return hour >= w.OpenHour || hour < w.CloseHour
}

// SortHour maps a local clock hour onto a monotonic key so that small hours
// past midnight order after the evening hours: hour+24 when hour < cutover.
func (w DayWindow) SortHour(hour int) int {
	if hour < w.CutoverHour {
		return hour + 24
	}
	return hour
}

// ResolveBusinessDate converts an instant into the business-day label it
// belongs to, in the window's timezone. Deterministic and total: any local
// time before the cutover hour is attributed to the previous calendar date.
func (w DayWindow) ResolveBusinessDate(instant time.Time) string {
	local := instant.In(w.Location)
	if local.Hour() < w.CutoverHour {
		local = local.AddDate(0, 0, -1)
	}
	return local.Format(DateLayout)
}

// DateRange returns the absolute [from, to) instants covered by the business
// day labeled date, spanning from the open hour to the cutover hour of the
// next calendar day. The zero range and an error are returned for a bad label.
func (w DayWindow) DateRange(date string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, date, w.Location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from := day.Add(time.Duration(w.OpenHour) * time.Hour)
	to := day.AddDate(0, 0, 1).Add(time.Duration(w.CutoverHour) * time.Hour)
	return from, to, nil
}
