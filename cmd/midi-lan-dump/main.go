// Command midi-lan-dump is a receive-only diagnostic tool: it joins the
// multicast group, decodes every packet, and logs it — no MIDI output
// ports are opened.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Haenisch/MIDI-over-LAN/discovery"
	"github.com/Haenisch/MIDI-over-LAN/protocol"
	"github.com/Haenisch/MIDI-over-LAN/transport"
)

func main() {
	iface := pflag.String("interface", "", "Network interface IPv4 address to bind to (empty: all interfaces).")
	advertise := pflag.Bool("advertise", false, "Advertise this dumper via mDNS/Bonjour.")
	pflag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *advertise {
		adv, err := discovery.Advertise(ctx, "midi-lan-dump", protocol.MulticastPort)
		if err != nil {
			fmt.Fprintf(os.Stderr, "midi-lan-dump: mDNS advertise failed: %v\n", err)
		} else {
			defer adv.Close()
		}
	}

	conn, err := transport.ListenReceiver(*iface)
	if err != nil {
		fmt.Fprintf(os.Stderr, "midi-lan-dump: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Fprintf(os.Stderr, "midi-lan-dump: listening on %s:%d\n", protocol.MulticastGroup, protocol.MulticastPort)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "midi-lan-dump: shutting down.")
			return
		default:
		}

		data, addr, ok := conn.TryReceive()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		dump(data, addr.IP.String())
	}
}

func dump(data []byte, sourceIP string) {
	pkt, err := protocol.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid packet from %s: %v\n", sourceIP, err)
		return
	}
	switch pkt.Type {
	case protocol.PacketTypeMidiMessage:
		fmt.Printf("MIDI from %s (%s):\n%s", sourceIP, pkt.Midi.DeviceName, hex.Dump(pkt.Midi.MidiData))
	case protocol.PacketTypeHello:
		fmt.Printf("HELLO from %s: id=%d hostname=%q devices=%v\n", sourceIP, pkt.Hello.ID, pkt.Hello.Hostname, pkt.Hello.DeviceNames)
	case protocol.PacketTypeHelloReply:
		fmt.Printf("HELLO-REPLY from %s: id=%d hostname=%q devices=%v\n", sourceIP, pkt.HelloReply.ID, pkt.HelloReply.Hostname, pkt.HelloReply.DeviceNames)
	}
}
