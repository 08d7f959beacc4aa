package claim

import (
	"fmt"
	"math"
	"time"
)

// relativeTime phrases a future duration the way relative-time
// formatters round: seconds collapse into "in 1 minute", minutes past
// three quarters of an hour round to hours, and anything beyond a day
// and a half rounds to days.
func relativeTime(d time.Duration) string {
	if d <= 0 {
		return "now"
	}

	minutes := d.Minutes()
	hours := d.Hours()

	switch {
	case d < 90*time.Second:
		return "in 1 minute"
	case minutes < 45:
		return fmt.Sprintf("in %d minutes", int(math.Round(minutes)))
	case minutes < 90:
		return "in 1 hour"
	case hours < 22:
		return fmt.Sprintf("in %d hours", int(math.Round(hours)))
	case hours < 36:
		return "in 1 day"
	default:
		return fmt.Sprintf("in %d days", int(math.Round(hours/24)))
	}
}
