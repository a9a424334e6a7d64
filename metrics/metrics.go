// Package metrics exposes a prometheus.Collector that snapshots shared
// receiver/control-plane state without influencing it: descriptors are
// held on the struct, and Collect() takes a lock and re-derives metrics
// from a snapshot rather than maintaining prometheus state incrementally.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PacketKind labels the sent/received/dropped counter.
type PacketKind string

const (
	KindMidi       PacketKind = "midi"
	KindHello      PacketKind = "hello"
	KindHelloReply PacketKind = "hello_reply"
	KindInvalid    PacketKind = "invalid"
)

// Worker labels which worker a packet counter belongs to.
type Worker string

const (
	WorkerSender   Worker = "sender"
	WorkerReceiver Worker = "receiver"
)

// Snapshot is the read-only projection of state a Collector renders into
// prometheus series. Callers (sender/receiver workers, or whatever owns
// their registries) populate it and hand it to Collector.Update; the
// collector never reaches back into worker state itself.
type Snapshot struct {
	RoundTripSeconds map[string][]float64 // remote host/IP -> RTT samples
	RemoteDevices    map[string]int       // hostname -> device count
	QueueDepths      map[string]int       // queue name -> current depth
}

// Collector is a prometheus.Collector mirroring the RTT registry,
// remote-device registry size, and queue depths. It holds no control flow
// of its own: Update replaces the snapshot it renders from.
type Collector struct {
	mu       sync.Mutex
	snapshot Snapshot

	rtt     *prometheus.Desc
	devices *prometheus.Desc
	queue   *prometheus.Desc
	packets *prometheus.Desc

	mu2      sync.Mutex // guards counters, separate from snapshot swaps
	counters map[packetCounterKey]float64
}

type packetCounterKey struct {
	worker    Worker
	kind      PacketKind
	direction string
}

// NewCollector constructs a Collector with its descriptors built up front,
// matching exporter.TCPInfoCollector's pattern.
func NewCollector() *Collector {
	return &Collector{
		rtt: prometheus.NewDesc(
			"midi_over_lan_round_trip_seconds",
			"Most recent round-trip time sample to a remote peer, in seconds.",
			[]string{"remote"}, nil,
		),
		devices: prometheus.NewDesc(
			"midi_over_lan_remote_devices",
			"Number of MIDI devices a remote host has advertised.",
			[]string{"hostname"}, nil,
		),
		queue: prometheus.NewDesc(
			"midi_over_lan_queue_depth",
			"Current depth of a bounded control-plane queue.",
			[]string{"queue"}, nil,
		),
		packets: prometheus.NewDesc(
			"midi_over_lan_packets_total",
			"Packets sent/received/dropped, by worker and kind.",
			[]string{"worker", "kind", "direction"}, nil,
		),
		counters: make(map[packetCounterKey]float64),
	}
}

// Update replaces the snapshot Collect renders from.
func (c *Collector) Update(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = s
}

// IncPacket bumps a sent/received/dropped counter. direction is one of
// "sent", "received", "dropped".
func (c *Collector) IncPacket(worker Worker, kind PacketKind, direction string) {
	c.mu2.Lock()
	defer c.mu2.Unlock()
	c.counters[packetCounterKey{worker, kind, direction}]++
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.rtt
	descs <- c.devices
	descs <- c.queue
	descs <- c.packets
}

// Collect implements prometheus.Collector, re-deriving every series from
// the current snapshot and counter map under lock.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	snap := c.snapshot
	c.mu.Unlock()

	for remote, samples := range snap.RoundTripSeconds {
		if len(samples) == 0 {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.rtt, prometheus.GaugeValue, samples[len(samples)-1], remote)
	}
	for hostname, count := range snap.RemoteDevices {
		ch <- prometheus.MustNewConstMetric(c.devices, prometheus.GaugeValue, float64(count), hostname)
	}
	for queueName, depth := range snap.QueueDepths {
		ch <- prometheus.MustNewConstMetric(c.queue, prometheus.GaugeValue, float64(depth), queueName)
	}

	c.mu2.Lock()
	defer c.mu2.Unlock()
	for key, value := range c.counters {
		ch <- prometheus.MustNewConstMetric(c.packets, prometheus.CounterValue, value, string(key.worker), string(key.kind), key.direction)
	}
}
