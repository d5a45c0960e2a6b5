package warmup

import (
	"math"
	"time"
)

const (
	DefaultDailyTarget = 40
	DefaultRampDays    = 30

	unstartedTarget = 2
	rampCeiling     = 30
)

// DailyTarget is the number of warmup messages an account should send today,
// following a stepped ramp over the days since warmup started.
func DailyTarget(startedAt *time.Time, target, rampDays int, now time.Time) int {
	if startedAt == nil {
		return unstartedTarget
	}
	if target <= 0 {
		target = DefaultDailyTarget
	}
	if rampDays <= 0 {
		rampDays = DefaultRampDays
	}

	days := int(now.Sub(*startedAt) / (24 * time.Hour))
	switch {
	case days <= 3:
		return 2
	case days <= 7:
		return 5
	case days <= 14:
		return 10
	case days <= 21:
		return 20
	case days <= rampDays:
		return min(rampCeiling, target)
	default:
		return target
	}
}

// Score is the advisory reputation score: the reply rate as a percentage plus
// half a point per message sent, capped at 100.
func Score(sent, replied int64) float64 {
	rate := float64(replied) / float64(max(sent, 1))
	return math.Min(100, rate*100+float64(sent)*0.5)
}
