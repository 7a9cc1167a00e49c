package manager

import (
	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/mdns/socket"
	"github.com/miekg/dns"
)

// networkHandler adapts socket.Handler onto one network's iface.Advertiser,
// posting onto the Manager's own goroutine so the networks map is never
// read from the socket client's goroutine directly.
type networkHandler struct {
	manager *Manager
}

func (h *networkHandler) OnQueryReceived(m *dns.Msg, key socket.Key, src socket.Endpoint) {
	h.manager.post(func() {
		ne, ok := h.manager.networks[key.Network]
		if !ok {
			return
		}
		ne.advertiser.HandleQuery(m.Question, m.Answer, src.IsLegacy(), src)
	})
}

func (h *networkHandler) OnResponseReceived(m *dns.Msg, key socket.Key) {
	h.manager.post(func() {
		ne, ok := h.manager.networks[key.Network]
		if !ok {
			return
		}
		ne.advertiser.HandleResponse(m.Answer)
	})
}

func (h *networkHandler) OnFailedToParse(err error, key socket.Key) {
	logging.Log(h.manager.opts.logger, "manager: failed to parse packet on network %q: %s", key.Network, err)
}
