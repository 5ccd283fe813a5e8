package extract

import "time"

// Display layouts used in chat replies. DisplayLayout round-trips through
// DateTimeExtractor.
const (
	DisplayLayout = "2006-01-02, 15:04"
	DateLayout    = "2006-01-02"
	ClockLayout   = "15:04"
)

// FormatDateTime renders t as "YYYY-MM-DD, HH:MM".
func FormatDateTime(t time.Time) string {
	return t.Format(DisplayLayout)
}

// FormatDate renders the calendar date of t.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
