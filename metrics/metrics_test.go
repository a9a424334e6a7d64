package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestCollectorRendersSnapshot(t *testing.T) {
	c := NewCollector()
	c.Update(Snapshot{
		RoundTripSeconds: map[string][]float64{"192.168.1.20": {0.01, 0.012}},
		RemoteDevices:    map[string]int{"studio-mac": 2},
		QueueDepths:      map[string]int{"sender-in": 3},
	})
	c.IncPacket(WorkerSender, KindMidi, "sent")
	c.IncPacket(WorkerSender, KindMidi, "sent")

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(c))

	families, err := registry.Gather()
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, fam := range families {
		seen[fam.GetName()] = true
	}
	require.True(t, seen["midi_over_lan_round_trip_seconds"])
	require.True(t, seen["midi_over_lan_remote_devices"])
	require.True(t, seen["midi_over_lan_queue_depth"])
	require.True(t, seen["midi_over_lan_packets_total"])
}

func TestCollectorWithNoSnapshotEmitsNoSeries(t *testing.T) {
	c := NewCollector()
	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(c))

	families, err := registry.Gather()
	require.NoError(t, err)
	require.Empty(t, families)
}
