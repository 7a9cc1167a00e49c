// Package manager implements the advertiser manager (spec §4 C8): the
// per-process set of interface advertisers, one per requested network,
// each fed by the multinetwork socket client and sharing one logical set
// of services broadcast across all of them.
package manager

import (
	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/advertiser/iface"
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/advertiser/record"
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/mdns/reply"
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/mdns/socket"
	"golang.org/x/sync/errgroup"
)

type networkEntry struct {
	token      socket.Token
	advertiser *iface.Advertiser
}

type serviceEntry struct {
	info      record.ServiceInfo
	subtypes  []string
	pending   int
	succeeded bool
}

// Manager is the advertiser manager: it owns one iface.Advertiser per
// network it has been told to advertise on, and broadcasts every service
// mutation to all of them, aggregating their callbacks into one report
// per logical service (spec §4 C8 "per-service set of interface
// advertisers; aggregates callbacks").
//
// Like the components it wraps, a Manager's state is owned exclusively
// by its own goroutine; every exported method enqueues its work onto it.
type Manager struct {
	client    socket.Requester
	opts      Options
	callbacks Callbacks

	cmds   chan func()
	stopCh chan struct{}
	done   chan struct{}

	nextToken uint64
	networks  map[socket.Network]*networkEntry
	services  map[record.ID]*serviceEntry
}

// New returns a new, running Manager that advertises services via
// client, reporting aggregated lifecycle events to callbacks.
func New(client socket.Requester, callbacks Callbacks, opts ...Option) *Manager {
	m := &Manager{
		client:    client,
		opts:      newOptions(opts),
		callbacks: callbacks,
		cmds:      make(chan func(), 64),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		networks:  map[socket.Network]*networkEntry{},
		services:  map[record.ID]*serviceEntry{},
	}

	go m.run()

	return m
}

func (m *Manager) run() {
	defer close(m.done)
	for {
		select {
		case cmd := <-m.cmds:
			cmd()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) exec(fn func()) {
	done := make(chan struct{})

	select {
	case m.cmds <- func() {
		fn()
		close(done)
	}:
	case <-m.stopCh:
		return
	}

	select {
	case <-done:
	case <-m.stopCh:
	}
}

func (m *Manager) post(fn func()) {
	select {
	case m.cmds <- fn:
	case <-m.stopCh:
	}
}

// Shutdown tears down every network's advertiser and stops the
// Manager's goroutine. No further method calls may be made after
// Shutdown returns. The underlying socket.Client is left running; it is
// not owned by the Manager.
func (m *Manager) Shutdown() {
	m.exec(func() {
		for network, ne := range m.networks {
			_ = m.client.NotifyNetworkUnrequested(ne.token)
			ne.advertiser.Shutdown()
			delete(m.networks, network)
		}
	})

	close(m.stopCh)
	<-m.done
}

// AddNetwork begins advertising on network: a new iface.Advertiser is
// created for it, registered as a listener with the socket client, and
// brought up to date with every service already added to the Manager.
func (m *Manager) AddNetwork(network socket.Network) error {
	var err error

	m.exec(func() {
		if _, ok := m.networks[network]; ok {
			return
		}

		token := socket.Token(m.nextToken)
		m.nextToken++

		sender := reply.New(m.client, network, m.opts.ipv6OnIPv6OnlyOnly)
		cb := &networkCallbacks{manager: m, network: network}
		adv := iface.New(sender, cb, m.opts.advertiserOptions...)

		if regErr := m.client.NotifyNetworkRequested(token, network, &networkHandler{manager: m}, nil); regErr != nil {
			adv.Shutdown()
			err = regErr
			return
		}

		m.networks[network] = &networkEntry{token: token, advertiser: adv}

		for id, se := range m.services {
			if _, _, aerr := adv.AddService(id, se.info, se.subtypes); aerr != nil {
				logging.Log(m.opts.logger, "manager: failed to add service %d on network %q: %s", id, network, aerr)
				continue
			}
			se.pending++
			se.succeeded = false
		}
	})

	return err
}

// RemoveNetwork stops advertising on network, discarding its advertiser
// without sending exit announcements (the network itself is assumed
// gone).
func (m *Manager) RemoveNetwork(network socket.Network) {
	m.exec(func() {
		ne, ok := m.networks[network]
		if !ok {
			return
		}

		_ = m.client.NotifyNetworkUnrequested(ne.token)
		ne.advertiser.Shutdown()
		delete(m.networks, network)

		for id, se := range m.services {
			if !se.succeeded && se.pending > 0 {
				se.pending--
				if se.pending == 0 {
					se.succeeded = true
					if m.callbacks != nil {
						m.callbacks.RegisterServiceSucceeded(id)
					}
				}
			}
		}
	})
}

// AddService registers id on every currently-requested network and
// begins probing it there.
func (m *Manager) AddService(id record.ID, info record.ServiceInfo, subtypes []string) error {
	var err error

	m.exec(func() {
		if _, ok := m.services[id]; ok {
			err = &record.DuplicateIDError{ID: id}
			return
		}

		se := &serviceEntry{info: info, subtypes: subtypes, pending: len(m.networks)}
		m.services[id] = se

		var g errgroup.Group
		for network, ne := range m.networks {
			network, ne := network, ne
			g.Go(func() error {
				if _, _, aerr := ne.advertiser.AddService(id, info, subtypes); aerr != nil {
					logging.Log(m.opts.logger, "manager: failed to add service %d on network %q: %s", id, network, aerr)
					return aerr
				}
				return nil
			})
		}
		err = g.Wait()

		if se.pending == 0 {
			se.succeeded = true
			if m.callbacks != nil {
				m.callbacks.RegisterServiceSucceeded(id)
			}
		}
	})

	return err
}

// UpdateService replaces id's published subtypes on every network.
func (m *Manager) UpdateService(id record.ID, subtypes []string) error {
	var err error

	m.exec(func() {
		se, ok := m.services[id]
		if !ok {
			err = &record.UnknownIDError{ID: id}
			return
		}

		se.subtypes = subtypes

		var g errgroup.Group
		for network, ne := range m.networks {
			network, ne := network, ne
			g.Go(func() error {
				if uerr := ne.advertiser.UpdateService(id, subtypes); uerr != nil {
					logging.Log(m.opts.logger, "manager: failed to update service %d on network %q: %s", id, network, uerr)
					return uerr
				}
				return nil
			})
		}
		err = g.Wait()
	})

	return err
}

// RenameService renames id on every network and restarts probing for it
// there, typically in response to a RenameConflict or ActiveConflict
// callback.
func (m *Manager) RenameService(id record.ID, newInstanceName string) error {
	var err error

	m.exec(func() {
		se, ok := m.services[id]
		if !ok {
			err = &record.UnknownIDError{ID: id}
			return
		}

		se.info.InstanceName = newInstanceName
		se.pending = len(m.networks)
		se.succeeded = false

		var g errgroup.Group
		for network, ne := range m.networks {
			network, ne := network, ne
			g.Go(func() error {
				if rerr := ne.advertiser.RenameService(id, newInstanceName); rerr != nil {
					logging.Log(m.opts.logger, "manager: failed to rename service %d on network %q: %s", id, network, rerr)
					return rerr
				}
				return nil
			})
		}
		err = g.Wait()
	})

	return err
}

// RemoveService withdraws id from every network.
func (m *Manager) RemoveService(id record.ID) error {
	var err error

	m.exec(func() {
		if _, ok := m.services[id]; !ok {
			err = &record.UnknownIDError{ID: id}
			return
		}

		delete(m.services, id)

		var g errgroup.Group
		for network, ne := range m.networks {
			network, ne := network, ne
			g.Go(func() error {
				if rerr := ne.advertiser.RemoveService(id); rerr != nil {
					logging.Log(m.opts.logger, "manager: failed to remove service %d on network %q: %s", id, network, rerr)
					return rerr
				}
				return nil
			})
		}
		err = g.Wait()
	})

	return err
}

func (m *Manager) onServiceSucceeded(network socket.Network, id record.ID) {
	se, ok := m.services[id]
	if !ok || se.succeeded {
		return
	}

	if se.pending > 0 {
		se.pending--
	}

	if se.pending == 0 {
		se.succeeded = true
		if m.callbacks != nil {
			m.callbacks.RegisterServiceSucceeded(id)
		}
	}
}

func (m *Manager) onRenameForConflict(network socket.Network, id record.ID) {
	if _, ok := m.services[id]; !ok {
		return
	}

	if m.callbacks != nil {
		m.callbacks.RenameConflict(id)
	}
}

func (m *Manager) onActiveConflict(network socket.Network, id record.ID) {
	if _, ok := m.services[id]; !ok {
		return
	}

	if m.callbacks != nil {
		m.callbacks.ActiveConflict(id)
	}
}
