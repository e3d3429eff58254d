package quota

import (
	"fmt"
	"time"
)

// DenyReason says which limit a denial came from.
type DenyReason int

const (
	DenyCount DenyReason = iota
	DenySize
	DenyCooldown
)

// DeniedError is returned when a quota check refuses an upload.
type DeniedError struct {
	Reason    DenyReason
	Used      int64 // count denials
	Limit     int64
	Remaining int64 // size denials
	Candidate int64
	Wait      time.Duration // cooldown denials
}

func (e *DeniedError) Error() string {
	switch e.Reason {
	case DenyCount:
		return fmt.Sprintf("daily upload count limit reached: %d/%d", e.Used, e.Limit)
	case DenySize:
		return fmt.Sprintf("daily size limit would be exceeded: remaining %d bytes, file %d bytes", e.Remaining, e.Candidate)
	case DenyCooldown:
		return fmt.Sprintf("cooldown active: wait %s", FormatWait(e.Wait))
	default:
		return "quota denied"
	}
}
