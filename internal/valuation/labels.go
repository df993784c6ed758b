package valuation

import (
	"time"

	"github.com/codyseavey/moki-tracker/internal/models"
)

const (
	timeOfDayLayout = "15:04"
	monthDayLayout  = "Jan 2"
	fullLayout      = "Jan 2, 2006 15:04"
)

// ShortLabel is the axis label: time of day for the 24h window, month and day otherwise
func ShortLabel(t time.Time, window models.TimeWindow, loc *time.Location) string {
	if window == models.Window24H {
		return t.In(loc).Format(timeOfDayLayout)
	}
	return t.In(loc).Format(monthDayLayout)
}

// FullLabel is the tooltip label
func FullLabel(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(fullLayout)
}
