package manager

import (
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/advertiser/record"
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/mdns/socket"
)

// Callbacks receives service lifecycle notifications aggregated across
// every network a Manager is advertising on (spec §4.2, §7 — the
// per-network events reported by each iface.Advertiser, folded into one
// report per logical service since an instance name is a single,
// network-wide identity).
type Callbacks interface {
	// RegisterServiceSucceeded is invoked once id has probed successfully
	// and begun announcing on every network currently advertising it.
	RegisterServiceSucceeded(id record.ID)

	// RenameConflict is invoked each time a network reports a probing
	// conflict for id; a conflict seen on several networks is reported
	// once per network. The caller should choose a new instance name and
	// call Manager.RenameService.
	RenameConflict(id record.ID)

	// ActiveConflict is invoked when any network reports a conflict
	// against an already-active id. The caller may call RenameService or
	// RemoveService.
	ActiveConflict(id record.ID)
}

// networkCallbacks adapts one network's iface.Callbacks into posted
// calls on the Manager's own goroutine, so Manager state is never
// touched from an iface.Advertiser's goroutine directly.
type networkCallbacks struct {
	manager *Manager
	network socket.Network
}

func (c *networkCallbacks) RegisterServiceSucceeded(id record.ID) {
	c.manager.post(func() { c.manager.onServiceSucceeded(c.network, id) })
}

func (c *networkCallbacks) RenameForConflict(id record.ID) {
	c.manager.post(func() { c.manager.onRenameForConflict(c.network, id) })
}

func (c *networkCallbacks) Conflict(id record.ID) {
	c.manager.post(func() { c.manager.onActiveConflict(c.network, id) })
}

func (c *networkCallbacks) Destroyed() {
	// A per-network advertiser with no remaining services is left
	// running — it is torn down only by an explicit RemoveNetwork, never
	// because it has momentarily gone idle.
}
