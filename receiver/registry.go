package receiver

import (
	"sort"
	"time"
)

// deviceRegistry is the remote-device registry: hostname (or source IP
// when hostname is "unknown") to the set of device names that host has
// advertised. It only ever grows within a session until explicitly
// cleared.
type deviceRegistry struct {
	devices map[string]map[string]struct{}
}

func newDeviceRegistry() *deviceRegistry {
	return &deviceRegistry{devices: make(map[string]map[string]struct{})}
}

// merge adds names to host's set, returning true if at least one name
// was new (callers use this to decide whether to re-publish).
func (r *deviceRegistry) merge(host string, names []string) bool {
	set, ok := r.devices[host]
	if !ok {
		set = make(map[string]struct{})
		r.devices[host] = set
	}
	changed := false
	for _, n := range names {
		if _, exists := set[n]; !exists {
			set[n] = struct{}{}
			changed = true
		}
	}
	return changed
}

// snapshot returns a deep copy suitable for publishing on the info queue.
func (r *deviceRegistry) snapshot() map[string][]string {
	out := make(map[string][]string, len(r.devices))
	for host, set := range r.devices {
		names := make([]string, 0, len(set))
		for n := range set {
			names = append(names, n)
		}
		sort.Strings(names)
		out[host] = names
	}
	return out
}

func (r *deviceRegistry) clear() {
	r.devices = make(map[string]map[string]struct{})
}

// rttRegistryCap bounds each remote's round-trip-time ring to the last
// 100 samples.
const rttRegistryCap = 100

// rttRegistry maps a remote IP to its bounded ring of recent RTT samples,
// in seconds.
type rttRegistry struct {
	samples map[string][]float64
}

func newRTTRegistry() *rttRegistry {
	return &rttRegistry{samples: make(map[string][]float64)}
}

func (r *rttRegistry) record(remoteIP string, rtt time.Duration) {
	ring := r.samples[remoteIP]
	ring = append(ring, rtt.Seconds())
	if len(ring) > rttRegistryCap {
		ring = ring[len(ring)-rttRegistryCap:]
	}
	r.samples[remoteIP] = ring
}

func (r *rttRegistry) snapshot() map[string][]float64 {
	out := make(map[string][]float64, len(r.samples))
	for ip, ring := range r.samples {
		out[ip] = append([]float64(nil), ring...)
	}
	return out
}

// pendingHelloTTL is how long an un-replied HELLO stays in the ledger
// before it is evicted as unanswerable.
const pendingHelloTTL = 300 * time.Second

// pendingHelloLedger maps an outstanding HELLO's packet id to the
// monotonic instant it was handed to the receiver, so a later
// HELLO-REPLY can be turned into an RTT sample.
type pendingHelloLedger struct {
	sentAt map[uint32]time.Time
}

func newPendingHelloLedger() *pendingHelloLedger {
	return &pendingHelloLedger{sentAt: make(map[uint32]time.Time)}
}

func (l *pendingHelloLedger) store(id uint32, at time.Time) {
	l.sentAt[id] = at
}

// take looks up and removes the ledger entry for id, returning ok=false
// if no matching HELLO was recorded (or it already aged out).
func (l *pendingHelloLedger) take(id uint32) (time.Time, bool) {
	t, ok := l.sentAt[id]
	if ok {
		delete(l.sentAt, id)
	}
	return t, ok
}

// evictOlderThan removes ledger entries sent before the cutoff, reported
// relative to now.
func (l *pendingHelloLedger) evictOlderThan(now time.Time, ttl time.Duration) {
	for id, t := range l.sentAt {
		if now.Sub(t) > ttl {
			delete(l.sentAt, id)
		}
	}
}

// routingTable maps a remote network device name to the set of local
// output port names its MIDI messages should be dispatched to. It is
// replaced wholesale by ROUTING_INFORMATION updates, never merged.
type routingTable struct {
	routes map[string][]string
}

func newRoutingTable() *routingTable {
	return &routingTable{routes: make(map[string][]string)}
}

func (t *routingTable) replace(routes map[string][]string) {
	t.routes = routes
}

func (t *routingTable) outputsFor(networkName string) []string {
	return t.routes[networkName]
}
