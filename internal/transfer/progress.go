package transfer

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// HumanReadable renders a byte count with binary units, trimming trailing
// zeros ("1.5GB", "800MB", "0B").
func HumanReadable(size int64) string {
	if size <= 0 {
		return "0B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	i := int(math.Floor(math.Log(float64(size)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	v := float64(size) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + units[i]
}

// FormatETA renders a duration as "45s" or "2m 30s".
func FormatETA(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs < 0 {
		secs = 0
	}
	m, s := secs/60, secs%60
	if m == 0 {
		return fmt.Sprintf("%ds", s)
	}
	return fmt.Sprintf("%dm %ds", m, s)
}

// ProgressText renders the user-facing progress message:
//
//	<prefix> <percent>%
//	Done: <done>/<total>
//	Speed: <speed>/s
//	ETA: <eta>
//
// Speed and ETA lines are omitted when unknown.
func ProgressText(prefix string, done, total int64, speed float64, eta time.Duration, hasETA bool) string {
	var percent int64
	if total > 0 {
		percent = done * 100 / total
	}
	text := fmt.Sprintf("%s %d%%\nDone: %s / %s", prefix, percent, HumanReadable(done), HumanReadable(total))
	if speed > 0 {
		text += fmt.Sprintf("\nSpeed: %s/s", HumanReadable(int64(speed)))
	}
	if hasETA && eta > 0 {
		text += fmt.Sprintf("\nETA: %s", FormatETA(eta))
	}
	return text
}
