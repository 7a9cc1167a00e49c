// Package iface implements the per-interface advertiser state machine
// (spec §4.2 C7): the component that orchestrates the prober, the
// announcer, and the record repository on a single socket, and exposes
// add/remove/rename/reset to its owner (the advertiser manager).
package iface

import (
	"net"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/advertiser/record"
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/advertiser/repeater"
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/mdns/socket"
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/mdns/wire"
	"github.com/miekg/dns"
)

// Sender transmits a precomputed mDNS packet from this advertiser's
// socket (spec §4.1 C2 "Reply Sender"). Probe queries are sent via
// SendQuery; announcements and exit (goodbye) packets via
// SendAnnouncement; query replies via SendReply, which — per spec §4.1.1
// "Reply destination" — targets src unicast if unicast is true, or the
// multicast group otherwise.
type Sender interface {
	SendQuery(packet []byte) error
	SendAnnouncement(packet []byte) error
	SendReply(packet []byte, unicast bool, src socket.Endpoint) error
}

// Callbacks receives notifications of per-service lifecycle events (spec
// §4.2, §7 error-handling table).
type Callbacks interface {
	// RegisterServiceSucceeded is invoked once a service's probe completes
	// without conflict and its announcement has begun.
	RegisterServiceSucceeded(id record.ID)

	// RenameForConflict is invoked when a conflict is detected while id is
	// still probing. The caller should choose a new instance name and call
	// Advertiser.RenameService.
	RenameForConflict(id record.ID)

	// Conflict is invoked when a conflict is detected against an already
	// active service. The caller may rename (via RenameService) or give up
	// (via RemoveService).
	Conflict(id record.ID)

	// Destroyed is invoked once the advertiser's last service has been
	// removed — after its exit announcement, or immediately if it was
	// removed while still probing or announcing — and it holds no more
	// state.
	Destroyed()
}

// phase is a service's position in the per-service state machine (spec
// §4.2 diagram).
type phase int

const (
	phaseProbing phase = iota
	phaseAnnouncing
	phaseActive
	phaseExiting
)

type serviceState struct {
	phase phase
}

// Advertiser drives one interface's worth of mDNS advertising: one record
// repository, one prober/announcer scheduler, one socket (via Sender).
//
// Every public method enqueues its work onto a single internal goroutine
// (spec §5 "Scheduling model") and is therefore safe to call from any
// goroutine; state is never touched outside that goroutine.
type Advertiser struct {
	repo      *record.Repository
	scheduler *repeater.Scheduler
	sender    Sender
	callbacks Callbacks
	opts      Options

	cmds     chan func()
	stopCh   chan struct{}
	done     chan struct{}
	services map[record.ID]*serviceState
}

// New returns a new Advertiser sending via sender and reporting lifecycle
// events to callbacks.
func New(sender Sender, callbacks Callbacks, opts ...Option) *Advertiser {
	o := newOptions(opts)

	a := &Advertiser{
		repo:      record.New(o.recordOptions...),
		scheduler: repeater.NewScheduler(),
		sender:    sender,
		callbacks: callbacks,
		opts:      o,
		cmds:      make(chan func(), 64),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		services:  map[record.ID]*serviceState{},
	}

	go a.run()

	return a
}

func (a *Advertiser) run() {
	defer close(a.done)
	for {
		select {
		case cmd := <-a.cmds:
			cmd()
		case <-a.stopCh:
			return
		}
	}
}

// Shutdown stops every running timer and the advertiser's goroutine. No
// further method calls may be made after Shutdown returns.
//
// Timers are stopped before the goroutine is, so that no repeater
// callback can race a closed stopCh.
func (a *Advertiser) Shutdown() {
	a.scheduler.StopAll()
	close(a.stopCh)
	<-a.done
}

// exec enqueues fn onto the advertiser's goroutine and blocks until it has
// run. Callers needing a result capture it via a closed-over local
// variable. It is a silent no-op if the advertiser has been shut down.
func (a *Advertiser) exec(fn func()) {
	done := make(chan struct{})

	select {
	case a.cmds <- func() {
		fn()
		close(done)
	}:
	case <-a.stopCh:
		return
	}

	select {
	case <-done:
	case <-a.stopCh:
	}
}

// post enqueues fn without waiting for it to run. It is used by repeater
// callbacks, which fire on the repeater job's own goroutine.
func (a *Advertiser) post(fn func()) {
	select {
	case a.cmds <- fn:
	case <-a.stopCh:
	}
}

// HostName returns this advertiser's ".local" host name.
func (a *Advertiser) HostName() string {
	var name string
	a.exec(func() { name = a.repo.HostName() })
	return name
}

// AddService registers a new service and begins probing it. See
// record.Repository.AddService for the replacement semantics.
func (a *Advertiser) AddService(id record.ID, info record.ServiceInfo, subtypes []string) (record.ID, bool, error) {
	var replacedID record.ID
	var replaced bool
	var err error

	a.exec(func() {
		replacedID, replaced, err = a.repo.AddService(id, info, subtypes)
		if err != nil {
			return
		}

		if replaced {
			a.destroyService(replacedID)
		}

		a.services[id] = &serviceState{phase: phaseProbing}
		a.startProbing(id)
	})

	return replacedID, replaced, err
}

// UpdateService replaces id's published subtypes.
func (a *Advertiser) UpdateService(id record.ID, subtypes []string) error {
	var err error
	a.exec(func() { err = a.repo.UpdateService(id, subtypes) })
	return err
}

// RenameService changes id's instance name, typically in response to a
// RenameForConflict or Conflict callback, and restarts probing.
func (a *Advertiser) RenameService(id record.ID, newInstanceName string) error {
	var err error

	a.exec(func() {
		if _, ok := a.services[id]; !ok {
			err = &record.UnknownIDError{ID: id}
			return
		}

		if err = a.repo.RenameService(id, newInstanceName); err != nil {
			return
		}

		a.scheduler.Stop(repeater.ID(id))
		a.services[id].phase = phaseProbing
		a.startProbing(id)
	})

	return err
}

// RemoveService withdraws a service: if it is still probing or announcing,
// it is discarded immediately; if active, a goodbye announcement is sent
// after the configured exit delay before it is discarded.
func (a *Advertiser) RemoveService(id record.ID) error {
	var err error

	a.exec(func() {
		st, ok := a.services[id]
		if !ok {
			err = &record.UnknownIDError{ID: id}
			return
		}

		switch st.phase {
		case phaseProbing, phaseAnnouncing:
			a.destroyService(id)
			err = a.repo.RemoveService(id)
			if len(a.services) == 0 && a.callbacks != nil {
				a.callbacks.Destroyed()
			}
		default:
			err = a.startExit(id)
		}
	})

	return err
}

// Reset discards every service without announcement, as if each had been
// removed abruptly (for example, after the underlying interface has gone
// away and come back with a new address).
func (a *Advertiser) Reset() []record.ID {
	var ids []record.ID

	a.exec(func() {
		for id := range a.services {
			a.scheduler.Stop(repeater.ID(id))
		}
		a.services = map[record.ID]*serviceState{}
		ids = a.repo.ClearServices()
	})

	return ids
}

// UpdateAddresses replaces the set of addresses this advertiser's host
// name resolves to.
func (a *Advertiser) UpdateAddresses(addrs []net.IP) {
	a.exec(func() { a.repo.UpdateAddresses(addrs) })
}

// HandleQuery answers an incoming query (questions plus any known-answer
// records carried in its answer section, received from src) and, if a
// reply is warranted, sends it via the Sender.
func (a *Advertiser) HandleQuery(questions []dns.Question, knownAnswers []dns.RR, legacy bool, src socket.Endpoint) {
	a.exec(func() {
		reply, ok := a.repo.GetReply(questions, knownAnswers, legacy)
		if !ok {
			return
		}

		msg := wire.NewResponse()
		msg.Answer = reply.Answer
		msg.Extra = reply.Additional

		packet, err := msg.Pack()
		if err != nil {
			logging.Log(a.opts.logger, "mdns: failed to encode reply: %s", err)
			return
		}

		if err := a.sender.SendReply(packet, reply.Unicast, src); err != nil {
			logging.Log(a.opts.logger, "mdns: failed to send reply: %s", err)
		}
	})
}

// HandleResponse inspects an incoming response packet's answer section for
// conflicts with our own records, notifying Callbacks for every affected
// service.
func (a *Advertiser) HandleResponse(answers []dns.RR) {
	a.exec(func() {
		conflicted := map[record.ID]bool{}

		for _, rr := range answers {
			for _, id := range a.repo.GetConflictingServices(rr) {
				conflicted[id] = true
			}
		}

		for id := range conflicted {
			a.onConflict(id)
		}
	})
}

func (a *Advertiser) onConflict(id record.ID) {
	st, ok := a.services[id]
	if !ok {
		return
	}

	switch st.phase {
	case phaseProbing:
		a.scheduler.Stop(repeater.ID(id))
		if a.callbacks != nil {
			a.callbacks.RenameForConflict(id)
		}
	default:
		if a.callbacks != nil {
			a.callbacks.Conflict(id)
		}
	}
}

func (a *Advertiser) startProbing(id record.ID) {
	info, err := a.repo.SetServiceProbing(id)
	if err != nil {
		return
	}

	msg := wire.NewQuery(false, info.Question)
	msg.Ns = info.Authority

	packet, err := msg.Pack()
	if err != nil {
		logging.Log(a.opts.logger, "mdns: failed to encode probe for service %d: %s", id, err)
		return
	}

	plan := repeater.ProbePlan(a.opts.probeCount, a.opts.probeInterval)
	a.scheduler.Start(repeater.ID(id), plan, packet, a.sendQuery, repeater.CallbackFunc(func(fid repeater.ID) {
		a.post(func() { a.onProbeSucceeded(record.ID(fid)) })
	}))
}

func (a *Advertiser) onProbeSucceeded(id record.ID) {
	st, ok := a.services[id]
	if !ok || st.phase != phaseProbing {
		return
	}
	st.phase = phaseAnnouncing

	info, err := a.repo.OnProbingSucceeded(id)
	if err != nil {
		return
	}

	msg := wire.NewResponse()
	msg.Answer = info.Answer
	msg.Extra = info.Additional

	packet, err := msg.Pack()
	if err != nil {
		logging.Log(a.opts.logger, "mdns: failed to encode announcement for service %d: %s", id, err)
		return
	}

	if a.callbacks != nil {
		a.callbacks.RegisterServiceSucceeded(id)
	}

	plan := repeater.AnnouncePlan(a.opts.announceCount, a.opts.announceInterval)
	a.scheduler.Start(repeater.ID(id), plan, packet, a.sendAnnouncement, repeater.CallbackFunc(func(fid repeater.ID) {
		a.post(func() { a.onAnnounceFinished(record.ID(fid)) })
	}))
}

func (a *Advertiser) onAnnounceFinished(id record.ID) {
	if st, ok := a.services[id]; ok && st.phase == phaseAnnouncing {
		st.phase = phaseActive
	}
}

func (a *Advertiser) startExit(id record.ID) error {
	st := a.services[id]
	if st.phase == phaseExiting {
		return nil
	}

	info, err := a.repo.ExitService(id)
	if err != nil {
		return err
	}

	a.scheduler.Stop(repeater.ID(id))
	st.phase = phaseExiting

	if info == nil {
		a.finishExit(id)
		return nil
	}

	msg := wire.NewResponse()
	msg.Answer = info.Answer

	packet, err := msg.Pack()
	if err != nil {
		logging.Log(a.opts.logger, "mdns: failed to encode exit announcement for service %d: %s", id, err)
		a.finishExit(id)
		return err
	}

	plan := repeater.ExitPlan(a.opts.exitDelay)
	a.scheduler.Start(repeater.ID(id), plan, packet, a.sendAnnouncement, repeater.CallbackFunc(func(fid repeater.ID) {
		a.post(func() { a.finishExit(record.ID(fid)) })
	}))

	return nil
}

func (a *Advertiser) finishExit(id record.ID) {
	if _, ok := a.services[id]; !ok {
		return
	}

	a.destroyService(id)
	_ = a.repo.RemoveService(id)

	if len(a.services) == 0 && a.callbacks != nil {
		a.callbacks.Destroyed()
	}
}

func (a *Advertiser) destroyService(id record.ID) {
	a.scheduler.Stop(repeater.ID(id))
	delete(a.services, id)
}

func (a *Advertiser) sendQuery(packet []byte) {
	if err := a.sender.SendQuery(packet); err != nil {
		logging.Log(a.opts.logger, "mdns: failed to send probe: %s", err)
	}
}

func (a *Advertiser) sendAnnouncement(packet []byte) {
	if err := a.sender.SendAnnouncement(packet); err != nil {
		logging.Log(a.opts.logger, "mdns: failed to send announcement: %s", err)
	}
}
