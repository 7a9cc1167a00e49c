// Package repeater implements the generic timed, cancellable packet
// repeater (spec §4.3 C3) and its two specializations: the prober (C4,
// RFC 6762 §8.1) and the announcer (C5, RFC 6762 §8.3).
//
// A Scheduler keeps at most one job per service_id. Each job runs on its
// own goroutine: jobs for different ids are not serialized with one
// another, and Send and Callback may be called concurrently from several
// jobs.
package repeater

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Callback is notified when a job finishes: after its last packet has been
// dispatched, not after transmission is confirmed (spec §4.3).
type Callback interface {
	OnFinished(id ID)
}

// CallbackFunc adapts a function to Callback.
type CallbackFunc func(id ID)

// OnFinished calls f.
func (f CallbackFunc) OnFinished(id ID) {
	f(id)
}

// ID identifies the service a job is repeating packets for.
type ID = uint64

// Send transmits a single precomputed packet. It is supplied by the owner
// of the Scheduler (typically an Interface Advertiser sending via the
// mdns/reply package) and should not block for long: the scheduler thread
// is shared by every other job.
type Send func(packet []byte)

// Plan is the immutable sequence of delays between successive sends of a
// job's packet, relative to the job's start. Plan[0] is the delay before
// the first send.
type Plan []time.Duration

// job is the scheduler's bookkeeping for one running repeater.
type job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler runs at most one job per service id, serialized on a single
// goroutine per job (spec §4.3 "Properties").
type Scheduler struct {
	mu   sync.Mutex
	jobs map[ID]*job
}

// NewScheduler returns a new, empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		jobs: map[ID]*job{},
	}
}

// Start begins running plan for id: packet is sent after each of plan's
// delays elapses, in order. Any job already running for id is stopped
// first. cb.OnFinished is invoked, on the job's goroutine, once the last
// send has been dispatched; it is not invoked for a job that is stopped
// early.
//
// Start does not block.
func (s *Scheduler) Start(id ID, plan Plan, packet []byte, send Send, cb Callback) {
	s.Stop(id)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	j := &job{cancel: cancel, done: done}

	s.mu.Lock()
	s.jobs[id] = j
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer s.clear(id, j)

		for _, delay := range plan {
			if err := sleep(ctx, delay); err != nil {
				return
			}
			send(packet)
		}

		if cb != nil {
			cb.OnFinished(id)
		}
	}()
}

// Stop cancels any job running for id. It is idempotent: stopping an id
// with no running job is a no-op. It blocks until the job's goroutine has
// observed the cancellation and returned, so that by the time Stop
// returns, no further sends for id will occur (spec §5 "Cancellation").
func (s *Scheduler) Stop(id ID) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	j.cancel()
	<-j.done
}

// StopAll cancels every running job.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	ids := make([]ID, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Stop(id)
	}
}

func (s *Scheduler) clear(id ID, self *job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Only clear the entry if it is still the job that completed: Stop (or
	// a subsequent Start) may already have replaced it with a newer job.
	if s.jobs[id] == self {
		delete(s.jobs, id)
	}
}

// sleep waits for d to elapse or ctx to be canceled, whichever comes
// first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// randDuration returns a random duration uniformly distributed in
// [0, max).
func randDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
