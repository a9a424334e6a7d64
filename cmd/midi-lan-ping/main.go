// Command midi-lan-ping sends a single HELLO, waits briefly for
// HELLO-REPLYs, and prints every discovered peer with its measured
// round-trip time — a thin, scriptable smoke test for a LAN segment.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/Haenisch/MIDI-over-LAN/protocol"
	"github.com/Haenisch/MIDI-over-LAN/transport"
)

func main() {
	iface := pflag.String("interface", "", "Network interface IPv4 address to send from.")
	wait := pflag.Duration("wait", 2*time.Second, "How long to wait for HELLO-REPLYs.")
	pflag.Parse()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "midi-lan-ping"
	}

	recv, err := transport.ListenReceiver(*iface)
	if err != nil {
		fmt.Fprintf(os.Stderr, "midi-lan-ping: %v\n", err)
		os.Exit(1)
	}
	defer recv.Close()

	send, warning, err := transport.DialSender(*iface, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "midi-lan-ping: %v\n", err)
		os.Exit(1)
	}
	defer send.Close()
	if warning != "" {
		fmt.Fprintf(os.Stderr, "midi-lan-ping: %s\n", warning)
	}

	id := protocol.NextHelloID()
	sentAt := time.Now()
	data, err := protocol.EncodeHello(protocol.Hello{ID: id, Hostname: hostname})
	if err != nil {
		fmt.Fprintf(os.Stderr, "midi-lan-ping: encoding hello: %v\n", err)
		os.Exit(1)
	}
	if err := send.Send(data); err != nil {
		fmt.Fprintf(os.Stderr, "midi-lan-ping: sending hello: %v\n", err)
		os.Exit(1)
	}

	deadline := time.Now().Add(*wait)
	found := 0
	for time.Now().Before(deadline) {
		buf, addr, ok := recv.TryReceive()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		pkt, err := protocol.Decode(buf)
		if err != nil {
			continue
		}
		switch pkt.Type {
		case protocol.PacketTypeHelloReply:
			if pkt.HelloReply.ID != id {
				continue
			}
			rtt := time.Since(sentAt)
			fmt.Printf("%s\t%s\trtt=%s\tdevices=%v\n", addr.IP, pkt.HelloReply.Hostname, rtt, pkt.HelloReply.DeviceNames)
			found++
		case protocol.PacketTypeHello:
			answerHello(send, hostname, pkt.Hello, addr)
		}
	}

	if found == 0 {
		fmt.Fprintln(os.Stderr, "midi-lan-ping: no replies received")
		os.Exit(1)
	}
}

// answerHello lets a midi-lan-ping instance also answer peers' HELLOs, so
// two instances pinging each other both get a measurement.
func answerHello(send *transport.SenderConn, hostname string, h *protocol.Hello, addr *net.UDPAddr) {
	reply := protocol.HelloReply{ID: h.ID, RemoteIP: addr.IP, Hostname: hostname}
	data, err := protocol.EncodeHelloReply(reply)
	if err != nil {
		return
	}
	send.Send(data)
}
