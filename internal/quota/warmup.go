package quota

import "github.com/kursadbilgin/outreach-engine/internal/domain"

type rampStep struct {
	throughDay int
	limit      int
}

var warmupSchedule = []rampStep{
	{throughDay: 3, limit: 10},
	{throughDay: 7, limit: 20},
	{throughDay: 14, limit: 40},
	{throughDay: 21, limit: 75},
	{throughDay: 28, limit: 120},
}

// WarmupPlateau is the ramp value once the schedule is exhausted.
const WarmupPlateau = 200

// WarmupRamp returns the daily volume allowed on the given warmup day.
// Days before the first are treated as day one.
func WarmupRamp(dayCount int) int {
	for _, step := range warmupSchedule {
		if dayCount <= step.throughDay {
			return step.limit
		}
	}
	return WarmupPlateau
}

// EffectiveLimit is the cap for today given the configured flat limit and
// the warmup state. It never exceeds dailyLimit and is never negative.
func EffectiveLimit(dailyLimit int, warmup domain.Warmup) int {
	if dailyLimit <= 0 {
		return 0
	}
	if !warmup.Enabled {
		return dailyLimit
	}
	return min(dailyLimit, WarmupRamp(warmup.DayCount))
}
