// Package record implements the mDNS/DNS-SD record repository (spec §4.1):
// the authoritative store of a single interface's advertised services and
// host records, and the reactive logic that turns them into probes,
// announcements, query replies, and conflict reports.
package record

import (
	"net"
	"time"

	"github.com/jmalloc/dissolve-advertiser/src/dissolve/mdns/wire"
	"github.com/jmalloc/dissolve-advertiser/src/dissolve/names"
	"github.com/miekg/dns"
)

// ServiceState is the lifecycle state of a registered service (spec §3
// "Lifecycles").
type ServiceState int

const (
	// StateProbing means the service's records are tentative; they are
	// excluded from query answers, but still checked by conflict detection.
	StateProbing ServiceState = iota

	// StateActive means the service has been successfully announced.
	StateActive

	// StateExiting means the service's goodbye announcement has been (or
	// is being) sent; it has not yet been fully removed.
	StateExiting
)

// String returns a human-readable name for the state, used in error
// messages and logs.
func (s ServiceState) String() string {
	switch s {
	case StateProbing:
		return "probing"
	case StateActive:
		return "active"
	case StateExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// serviceEntry is the repository's internal record of a single service.
type serviceEntry struct {
	id       ID
	info     ServiceInfo
	subtypes []string
	state    ServiceState

	// records holds, in order: the type PTR, SRV, TXT, enumeration PTR,
	// then one PTR per subtype. This order is what GetReply and the
	// announcement builders preserve (spec §4.1.4).
	records []*RecordInfo
}

// ProbingInfo is returned by SetServiceProbing: the question and tentative
// authority records a Prober sends (spec §4.1 set_service_probing).
type ProbingInfo struct {
	Question  dns.Question
	Authority []dns.RR
}

// AnnouncementInfo is returned by OnProbingSucceeded and ExitService: the
// answer/additional sections of an announcement or goodbye packet.
type AnnouncementInfo struct {
	Answer     []dns.RR
	Additional []dns.RR
}

// Repository is the authoritative record store for a single interface
// advertiser (spec §4.1).
//
// A Repository is not safe for concurrent use; per spec §5 and DESIGN NOTES
// §9, it is owned exclusively by the scheduler goroutine of the interface
// advertiser that holds it.
type Repository struct {
	opts     Options
	hostName names.FQDN

	services map[ID]*serviceEntry
	order    []ID
	nameIdx  map[string]ID

	addresses []net.IP
	general   []*RecordInfo
}

// New returns a new, empty record repository. A host name is generated
// immediately (spec §3 "generated on first use").
func New(opts ...Option) *Repository {
	return &Repository{
		opts:     newOptions(opts),
		hostName: newHostName(),
		services: map[ID]*serviceEntry{},
		nameIdx:  map[string]ID{},
	}
}

// HostName returns this repository's ".local" host name.
func (r *Repository) HostName() string {
	return r.hostName.String()
}

func (r *Repository) hostTTLMillis() uint64 {
	return uint64(r.opts.hostTTL / time.Millisecond)
}

func (r *Repository) otherTTLMillis() uint64 {
	return uint64(r.opts.otherTTL / time.Millisecond)
}

// AddService registers a new service. If an exiting service already owns
// the instance name, it is displaced: its id is returned so the caller can
// cancel its exit announcement (spec §4.1 add_service).
func (r *Repository) AddService(id ID, info ServiceInfo, subtypes []string) (replacedID ID, replaced bool, err error) {
	if err := info.Validate(); err != nil {
		return 0, false, err
	}

	if _, ok := r.services[id]; ok {
		return 0, false, &DuplicateIDError{ID: id}
	}

	key := instanceNameKey(info.InstanceName)

	if existingID, ok := r.nameIdx[key]; ok {
		existing := r.services[existingID]
		if existing.state != StateExiting {
			return 0, false, &NameConflictError{InstanceName: info.InstanceName}
		}

		replacedID = existingID
		replaced = true
		r.deleteService(existingID)
	}

	entry := &serviceEntry{
		id:       id,
		info:     info,
		subtypes: append([]string(nil), subtypes...),
		state:    StateProbing,
	}
	entry.records = r.buildServiceRecords(entry, true)

	r.services[id] = entry
	r.order = append(r.order, id)
	r.nameIdx[key] = id

	return replacedID, replaced, nil
}

// UpdateService replaces the set of subtype PTRs published for id.
func (r *Repository) UpdateService(id ID, subtypes []string) error {
	e, ok := r.services[id]
	if !ok {
		return &UnknownIDError{ID: id}
	}

	e.subtypes = append([]string(nil), subtypes...)
	probing := e.state == StateProbing

	base := e.records[:4:4]
	t := e.info.Type
	instFQDN := instanceFQDN(e.info.InstanceName, t).String()

	recs := append([]*RecordInfo(nil), base...)
	for _, sub := range e.subtypes {
		recs = append(recs, &RecordInfo{
			RR:           newPTR(subtypeFQDN(sub, t).String(), instFQDN, r.otherTTLMillis()),
			ServiceID:    id,
			HasService:   true,
			IsSharedName: true,
			IsProbing:    probing,
		})
	}

	e.records = recs
	return nil
}

// IsProbing returns whether id is currently probing. It returns false (the
// spec default) for an unknown id.
func (r *Repository) IsProbing(id ID) bool {
	e, ok := r.services[id]
	return ok && e.state == StateProbing
}

// RenameService replaces id's instance name (used to resolve a probing or
// active name conflict, per spec §4.2 "rename_service") and rebuilds its
// records under the new name. The caller is responsible for returning the
// service to probing afterwards via SetServiceProbing.
func (r *Repository) RenameService(id ID, newInstanceName string) error {
	e, ok := r.services[id]
	if !ok {
		return &UnknownIDError{ID: id}
	}

	if e.state == StateExiting {
		return &InvalidStateError{ID: id, State: e.state}
	}

	key := instanceNameKey(newInstanceName)
	if existingID, ok := r.nameIdx[key]; ok && existingID != id {
		if r.services[existingID].state != StateExiting {
			return &NameConflictError{InstanceName: newInstanceName}
		}
		r.deleteService(existingID)
	}

	oldKey := instanceNameKey(e.info.InstanceName)
	if cur, ok := r.nameIdx[oldKey]; ok && cur == id {
		delete(r.nameIdx, oldKey)
	}

	e.info.InstanceName = newInstanceName
	e.records = r.buildServiceRecords(e, e.state == StateProbing)
	r.nameIdx[key] = id

	return nil
}

// SetServiceProbing resets all of the service's records to probing and
// returns the question/authority pair a Prober should send.
func (r *Repository) SetServiceProbing(id ID) (ProbingInfo, error) {
	e, ok := r.services[id]
	if !ok {
		return ProbingInfo{}, &UnknownIDError{ID: id}
	}

	if e.state == StateExiting {
		return ProbingInfo{}, &InvalidStateError{ID: id, State: e.state}
	}

	e.state = StateProbing
	for _, ri := range e.records {
		ri.IsProbing = true
	}

	instFQDN := instanceFQDN(e.info.InstanceName, e.info.Type).String()
	q := dns.Question{
		Name:   instFQDN,
		Qtype:  dns.TypeANY,
		Qclass: dns.ClassINET,
	}

	var authority []dns.RR
	for _, ri := range e.records {
		if ri.rrtype() == dns.TypeSRV {
			authority = append(authority, ri.RR)
			break
		}
	}

	if r.opts.includeInetAddressInProbing {
		for _, g := range r.general {
			if t := g.rrtype(); t == dns.TypeA || t == dns.TypeAAAA {
				authority = append(authority, g.RR)
			}
		}
	}

	return ProbingInfo{Question: q, Authority: authority}, nil
}

// OnProbingSucceeded clears the probing flag and builds the announcement
// packet for the service: all of its records as answers (plus the general
// host records), with NSEC negative-existence records as additional data.
func (r *Repository) OnProbingSucceeded(id ID) (AnnouncementInfo, error) {
	e, ok := r.services[id]
	if !ok {
		return AnnouncementInfo{}, &UnknownIDError{ID: id}
	}

	e.state = StateActive
	for _, ri := range e.records {
		ri.IsProbing = false
	}

	var answer []dns.RR
	for _, g := range r.general {
		answer = append(answer, r.wireRR(g))
	}
	for _, ri := range e.records {
		answer = append(answer, r.wireRR(ri))
	}

	return AnnouncementInfo{
		Answer:     answer,
		Additional: buildNSECs(answer),
	}, nil
}

// ExitService marks the service as exiting and returns its goodbye packet:
// all PTR records it owns (type, subtypes, enumeration), with TTL 0. It
// returns (nil, nil) if the service is already exiting.
func (r *Repository) ExitService(id ID) (*AnnouncementInfo, error) {
	e, ok := r.services[id]
	if !ok {
		return nil, &UnknownIDError{ID: id}
	}

	if e.state == StateExiting {
		return nil, nil
	}

	e.state = StateExiting

	var answer []dns.RR
	for _, ri := range e.records {
		if ri.rrtype() != dns.TypePTR {
			continue
		}

		goodbye := dns.Copy(ri.RR)
		goodbye.Header().Ttl = 0
		answer = append(answer, goodbye)
	}

	return &AnnouncementInfo{Answer: answer}, nil
}

// RemoveService immediately purges a service, without any announcement.
func (r *Repository) RemoveService(id ID) error {
	if _, ok := r.services[id]; !ok {
		return &UnknownIDError{ID: id}
	}

	r.deleteService(id)
	return nil
}

// ClearServices removes every registered service and returns their ids.
func (r *Repository) ClearServices() []ID {
	ids := append([]ID(nil), r.order...)

	r.services = map[ID]*serviceEntry{}
	r.nameIdx = map[string]ID{}
	r.order = nil

	return ids
}

// deleteService removes id's bookkeeping from every index.
func (r *Repository) deleteService(id ID) {
	e, ok := r.services[id]
	if !ok {
		return
	}

	delete(r.services, id)

	key := instanceNameKey(e.info.InstanceName)
	if cur, ok := r.nameIdx[key]; ok && cur == id {
		delete(r.nameIdx, key)
	}

	for i, x := range r.order {
		if x == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// UpdateAddresses replaces the repository's general (host-level) records:
// one reverse-DNS PTR and one A/AAAA record per address.
func (r *Repository) UpdateAddresses(addrs []net.IP) {
	r.addresses = append([]net.IP(nil), addrs...)

	host := r.hostName.String()
	ttl := r.hostTTLMillis()

	recs := make([]*RecordInfo, 0, len(addrs)*2)
	for _, ip := range addrs {
		recs = append(recs, &RecordInfo{
			RR: newPTR(reverseDNSName(ip).String(), host, ttl),
		})

		if v4 := ip.To4(); v4 != nil {
			recs = append(recs, &RecordInfo{RR: newA(host, v4, ttl)})
		} else {
			recs = append(recs, &RecordInfo{RR: newAAAA(host, ip.To16(), ttl)})
		}
	}

	r.general = recs
}

// GetReverseDNSAddress returns the PTR name used to resolve ip to this
// host's name.
func (r *Repository) GetReverseDNSAddress(ip net.IP) string {
	return reverseDNSName(ip).String()
}

// GetOffloadPacket builds a standing announcement for id, suitable for a
// hardware offload engine to replay verbatim, without mutating repository
// state.
func (r *Repository) GetOffloadPacket(id ID) (*dns.Msg, error) {
	e, ok := r.services[id]
	if !ok {
		return nil, &UnknownIDError{ID: id}
	}

	msg := wire.NewResponse()

	for _, g := range r.general {
		msg.Answer = append(msg.Answer, r.wireRR(g))
	}
	for _, ri := range e.records {
		msg.Answer = append(msg.Answer, r.wireRR(ri))
	}

	msg.Extra = buildNSECs(msg.Answer)

	return msg, nil
}

// buildServiceRecords builds the fixed [PTR, SRV, TXT, enumeration PTR]
// prefix plus one subtype PTR per e.subtypes, in that order (spec §3
// "Service Registration").
func (r *Repository) buildServiceRecords(e *serviceEntry, probing bool) []*RecordInfo {
	t := e.info.Type
	typeFQDN := t.FQDN(Local).String()
	instFQDN := instanceFQDN(e.info.InstanceName, t).String()
	hostFQDN := r.hostName.String()
	otherTTL := r.otherTTLMillis()
	hostTTL := r.hostTTLMillis()

	recs := []*RecordInfo{
		{
			RR:           newPTR(typeFQDN, instFQDN, otherTTL),
			ServiceID:    e.id,
			HasService:   true,
			IsSharedName: true,
			IsProbing:    probing,
		},
		{
			RR:           newSRV(instFQDN, hostFQDN, e.info.Port, hostTTL),
			ServiceID:    e.id,
			HasService:   true,
			IsSharedName: false,
			IsProbing:    probing,
		},
		{
			RR:           newTXT(instFQDN, e.info.Attributes, otherTTL),
			ServiceID:    e.id,
			HasService:   true,
			IsSharedName: false,
			IsProbing:    probing,
		},
		{
			RR:           newPTR(serviceEnumerationName.String(), typeFQDN, otherTTL),
			ServiceID:    e.id,
			HasService:   true,
			IsSharedName: true,
			IsProbing:    probing,
		},
	}

	for _, sub := range e.subtypes {
		recs = append(recs, &RecordInfo{
			RR:           newPTR(subtypeFQDN(sub, t).String(), instFQDN, otherTTL),
			ServiceID:    e.id,
			HasService:   true,
			IsSharedName: true,
			IsProbing:    probing,
		})
	}

	return recs
}

// wireRR returns ri's record shaped for the wire: the cache-flush bit set
// for unique (non-shared) names.
func (r *Repository) wireRR(ri *RecordInfo) dns.RR {
	if ri.IsSharedName {
		return ri.RR
	}
	return wire.SetUniqueRecord(ri.RR)
}

// allRecords returns every non-probing record in the repository: general
// (host) records first, then each service's records in the order services
// were added (spec §4.1.4).
func (r *Repository) allRecords() []*RecordInfo {
	out := make([]*RecordInfo, 0, len(r.general))
	out = append(out, r.general...)

	for _, id := range r.order {
		e := r.services[id]
		if e.state == StateProbing {
			continue
		}
		out = append(out, e.records...)
	}

	return out
}
