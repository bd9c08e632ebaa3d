package domain

import (
	"fmt"
	"time"
)

// FormatDuration renders milliseconds as "Xh Ym", flooring to whole minutes.
func FormatDuration(ms int64) string {
	minutes := max(ms/60000, 0)
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// FormatClock renders an instant as 24h "HH:MM" in loc.
func FormatClock(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc).Format("15:04")
}
