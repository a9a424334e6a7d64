// Command midi-lan-node is the combined sender+receiver daemon: it wires
// config, the control plane, and both workers together, owns the process
// signal handling, and optionally exposes Prometheus metrics and an mDNS
// advertisement.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/Haenisch/MIDI-over-LAN/config"
	"github.com/Haenisch/MIDI-over-LAN/control"
	"github.com/Haenisch/MIDI-over-LAN/discovery"
	"github.com/Haenisch/MIDI-over-LAN/internal/logging"
	"github.com/Haenisch/MIDI-over-LAN/metrics"
	"github.com/Haenisch/MIDI-over-LAN/protocol"
	"github.com/Haenisch/MIDI-over-LAN/receiver"
	"github.com/Haenisch/MIDI-over-LAN/sender"
)

func main() {
	cfg := config.Defaults()
	if err := config.LoadFile(&cfg, earlyConfigPath()); err != nil {
		fmt.Fprintf(os.Stderr, "midi-lan-node: loading config: %v\n", err)
		os.Exit(1)
	}

	pflag.String("config", "", "Path to a YAML config file.")
	config.Flags(pflag.CommandLine, &cfg)
	pflag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logQueue := control.NewLogQueue()
	go drainLogs(logQueue, cfg.LogLevel)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	senderCommands := control.NewCommandQueue()
	receiverCommands := control.NewCommandQueue()
	senderToReceiver := control.NewInfoQueue()
	receiverToSender := control.NewInfoQueue()
	uiQueue := control.NewInfoQueue()

	senderWorker := sender.New(hostname, senderCommands, senderToReceiver, receiverToSender, logging.NewQueued("sender", logQueue))
	receiverWorker := receiver.New(receiverCommands, receiverToSender, senderToReceiver, uiQueue, logging.NewQueued("receiver", logQueue))

	seedStartupCommands(cfg, senderCommands, receiverCommands)

	stopSender := make(chan struct{})
	stopReceiver := make(chan struct{})
	go senderWorker.Run(stopSender)
	go receiverWorker.Run(stopReceiver)

	collector := metrics.NewCollector()
	if cfg.MetricsListenAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collector)
		go serveMetrics(cfg.MetricsListenAddr, registry)
	}
	go publishMetricsSnapshots(ctx, collector, uiQueue, senderCommands, receiverCommands, senderToReceiver, receiverToSender)

	if cfg.Advertise {
		adv, err := discovery.Advertise(ctx, cfg.AdvertiseInstance, protocol.MulticastPort)
		if err != nil {
			fmt.Fprintf(os.Stderr, "midi-lan-node: mDNS advertise failed: %v\n", err)
		} else {
			defer adv.Close()
		}
	}

	<-ctx.Done()
	close(stopSender)
	close(stopReceiver)
}

// earlyConfigPath scans os.Args[1:] for --config on a throwaway FlagSet
// that tolerates unrecognized flags, so the YAML file can be loaded before
// the rest of config.Flags registers its defaults from cfg. The real
// --config flag is registered again on pflag.CommandLine afterward so
// --help/usage output still lists it.
func earlyConfigPath() string {
	fs := pflag.NewFlagSet("early", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist = pflag.ParseErrorsWhitelist{UnknownFlags: true}
	fs.Usage = func() {}
	path := fs.String("config", "", "")
	_ = fs.Parse(os.Args[1:])
	return *path
}

func seedStartupCommands(cfg config.Config, senderCommands, receiverCommands *control.CommandQueue) {
	senderCommands.Send(control.CommandMessage{Command: control.SetNetworkInterface, Data: cfg.NetworkInterface})
	senderCommands.Send(control.CommandMessage{Command: control.SetEnableLoopbackInterface, Data: cfg.EnableLoopback})
	senderCommands.Send(control.CommandMessage{Command: control.SetIgnoreMidiClock, Data: cfg.IgnoreMidiClock})
	senderCommands.Send(control.CommandMessage{Command: control.SetSaveCPUTime, Data: cfg.SaveCPU})

	inputs := make([]control.InputPortMapping, len(cfg.Inputs))
	for i, in := range cfg.Inputs {
		inputs[i] = control.InputPortMapping{DeviceName: in.DeviceName, NetworkName: in.NetworkName}
	}
	senderCommands.Send(control.CommandMessage{Command: control.SetMidiInputPorts, Data: inputs})

	receiverCommands.Send(control.CommandMessage{Command: control.SetNetworkInterface, Data: cfg.NetworkInterface})
	receiverCommands.Send(control.CommandMessage{Command: control.SetSaveCPUTime, Data: cfg.SaveCPU})

	outputs := make([]control.OutputPortMapping, len(cfg.Outputs))
	for i, out := range cfg.Outputs {
		outputs[i] = control.OutputPortMapping{NetworkName: out.NetworkName, OutputPortName: out.OutputPortName}
	}
	receiverCommands.Send(control.CommandMessage{Command: control.SetMidiOutputPorts, Data: outputs})
}

// drainLogs prints every record at or above minLevel (debug, info, warn or
// error); an unrecognized level name prints everything.
func drainLogs(q *control.LogQueue, minLevel string) {
	rank := map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}
	threshold := rank[strings.ToUpper(minLevel)]
	for rec := range q.Records() {
		if rank[rec.Level] < threshold {
			continue
		}
		fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", rec.Level, rec.Component, rec.Message)
	}
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "midi-lan-node: metrics server stopped: %v\n", err)
	}
}

// publishMetricsSnapshots relays RemoteMidiDevices/RoundTripTimes
// published on uiQueue into the metrics collector, and periodically
// samples queue depths. It never influences worker state — this is the
// read-only projection SPEC_FULL.md §4.7 describes.
func publishMetricsSnapshots(ctx context.Context, collector *metrics.Collector, uiQueue *control.InfoQueue, senderCommands, receiverCommands *control.CommandQueue, senderToReceiver, receiverToSender *control.InfoQueue) {
	snapshot := metrics.Snapshot{
		RoundTripSeconds: map[string][]float64{},
		RemoteDevices:    map[string]int{},
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot.QueueDepths = map[string]int{
				"sender-in":   senderCommands.Depth(),
				"receiver-in": receiverCommands.Depth(),
				"to-receiver": senderToReceiver.Depth(),
				"to-sender":   receiverToSender.Depth(),
			}
			collector.Update(snapshot)
		default:
			if msg, ok := uiQueue.TryReceive(); ok {
				switch msg.Info {
				case control.RoundTripTimes:
					if rtts, ok := msg.Data.(map[string][]float64); ok {
						snapshot.RoundTripSeconds = rtts
					}
				case control.RemoteMidiDevices:
					if devices, ok := msg.Data.(map[string][]string); ok {
						counts := make(map[string]int, len(devices))
						for host, names := range devices {
							counts[host] = len(names)
						}
						snapshot.RemoteDevices = counts
					}
				}
			} else {
				time.Sleep(10 * time.Millisecond)
			}
		}
	}
}
