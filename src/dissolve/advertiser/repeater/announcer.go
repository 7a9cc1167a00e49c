package repeater

import "time"

// Default announcement timing, per spec §4.3 C5.
const (
	DefaultAnnounceCount           = 8
	DefaultAnnounceInitialInterval = 1 * time.Second
)

// AnnouncePlan returns the delay sequence for an announcement job: count
// sends, the first with no delay, each subsequent one doubling the
// interval that preceded it starting at initial (spec: "an
// unbounded-geometric sequence of announcements, doubling the
// inter-packet interval starting at 1s, up to 8 announcements by
// default").
func AnnouncePlan(count int, initial time.Duration) Plan {
	if count <= 0 {
		return nil
	}

	plan := make(Plan, count)
	interval := initial

	for i := 1; i < count; i++ {
		plan[i] = interval
		interval *= 2
	}

	return plan
}

// ExitPlan returns the delay sequence for a single goodbye (TTL=0)
// announcement, sent after delay (spec §4.2 "a fixed 100ms delay",
// generalized here so callers may coalesce multiple exits onto one
// delay).
func ExitPlan(delay time.Duration) Plan {
	return Plan{delay}
}

// DefaultExitDelay is the fixed delay before an exit announcement is sent
// when a service is removed while active (spec §4.2, §5 "Timeouts").
const DefaultExitDelay = 100 * time.Millisecond
