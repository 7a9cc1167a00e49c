package repeater

import "time"

// Default probe timing, per spec §4.3 C4.
const (
	DefaultProbeCount    = 3
	DefaultProbeInterval = 250 * time.Millisecond
)

// ProbePlan returns the delay sequence for a probe job: an initial random
// delay uniformly distributed in [0, interval), then count-1 further
// delays of exactly interval (spec: "3 probe queries, 250ms apart, the
// first after an initial 0-250ms randomized delay").
func ProbePlan(count int, interval time.Duration) Plan {
	if count <= 0 {
		return nil
	}

	plan := make(Plan, count)
	plan[0] = randDuration(interval)

	for i := 1; i < count; i++ {
		plan[i] = interval
	}

	return plan
}
