// Package transport owns the UDP sockets the sender and receiver workers
// use to reach the MIDI over LAN multicast group, wrapping
// golang.org/x/net/ipv4 for the multicast socket options Go's plain net
// package does not expose (MULTICAST_IF, MULTICAST_LOOP, group
// membership per interface).
package transport

import (
	"fmt"
	"net"
	"regexp"

	"golang.org/x/net/ipv4"

	"github.com/Haenisch/MIDI-over-LAN/errs"
	"github.com/Haenisch/MIDI-over-LAN/protocol"
)

// fallbackInterface is used when a sender's configured interface literal
// fails to parse, rather than silently binding to all interfaces.
const fallbackInterface = "127.0.0.0"

var ipv4Literal = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

func groupAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(protocol.MulticastGroup), Port: protocol.MulticastPort}
}

// SenderConn is the sender worker's outbound multicast socket.
type SenderConn struct {
	conn  *net.UDPConn
	pconn *ipv4.PacketConn
	dest  *net.UDPAddr
}

// DialSender opens the sender's UDP socket, setting MULTICAST_LOOP from
// loopback and MULTICAST_IF from iface. An invalid iface literal falls
// back to fallbackInterface and is reported via the returned warning
// string (never an error — sending must still proceed).
func DialSender(iface string, loopback bool) (*SenderConn, string, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, "", fmt.Errorf("%w: opening sender socket: %v", errs.ErrTransport, err)
	}
	pconn := ipv4.NewPacketConn(conn)

	var warning string
	resolvedIface := iface
	if resolvedIface != "" && !ipv4Literal.MatchString(resolvedIface) {
		warning = fmt.Sprintf("invalid network interface %q, falling back to %s", iface, fallbackInterface)
		resolvedIface = fallbackInterface
	}

	if resolvedIface != "" {
		ifc := interfaceForAddress(resolvedIface)
		if err := pconn.SetMulticastInterface(ifc); err != nil {
			conn.Close()
			return nil, "", fmt.Errorf("%w: setting multicast interface %q: %v", errs.ErrTransport, resolvedIface, err)
		}
	}

	if err := pconn.SetMulticastLoopback(loopback); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("%w: setting multicast loopback: %v", errs.ErrTransport, err)
	}

	return &SenderConn{conn: conn, pconn: pconn, dest: groupAddr()}, warning, nil
}

// Send multicasts data to the MIDI over LAN group.
func (s *SenderConn) Send(data []byte) error {
	if _, err := s.conn.WriteToUDP(data, s.dest); err != nil {
		return fmt.Errorf("%w: sending datagram: %v", errs.ErrTransport, err)
	}
	return nil
}

// Close releases the socket.
func (s *SenderConn) Close() error {
	return s.conn.Close()
}

// ReceiverConn is the receiver worker's inbound multicast socket. Reads
// happen on a background goroutine feeding a buffered channel so the
// worker's cooperative loop can poll without blocking — the Go-native
// equivalent of a socket put into non-blocking mode.
type ReceiverConn struct {
	conn      *net.UDPConn
	pconn     *ipv4.PacketConn
	datagrams chan datagram
	done      chan struct{}
}

type datagram struct {
	data []byte
	addr *net.UDPAddr
}

const receiveBufferSize = 4096

// datagramQueueDepth bounds the background-read channel; a depth of 64
// comfortably absorbs a burst without unbounded growth, matching the
// "bound every queue" design note applied here to the read-side buffer.
const datagramQueueDepth = 64

// ListenReceiver opens the receiver's UDP socket bound to the group port on
// all interfaces, then joins the multicast group either on INADDR_ANY
// (iface == "") or on the given interface address. SO_REUSEADDR is not set
// on the socket.
func ListenReceiver(iface string) (*ReceiverConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: protocol.MulticastPort})
	if err != nil {
		return nil, fmt.Errorf("%w: binding receiver socket: %v", errs.ErrTransport, err)
	}
	pconn := ipv4.NewPacketConn(conn)

	group := &net.UDPAddr{IP: net.ParseIP(protocol.MulticastGroup)}
	var ifc *net.Interface
	if iface != "" {
		ifc = interfaceForAddress(iface)
	}
	if err := pconn.JoinGroup(ifc, group); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: joining multicast group: %v", errs.ErrTransport, err)
	}

	r := &ReceiverConn{
		conn:      conn,
		pconn:     pconn,
		datagrams: make(chan datagram, datagramQueueDepth),
		done:      make(chan struct{}),
	}
	go r.readLoop()
	return r, nil
}

func (r *ReceiverConn) readLoop() {
	buf := make([]byte, receiveBufferSize)
	for {
		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-r.done:
				return
			default:
			}
			return
		}
		cp := append([]byte(nil), buf[:n]...)
		select {
		case r.datagrams <- datagram{data: cp, addr: addr}:
		default:
			// Queue full: drop the datagram just read rather than
			// block the read loop or grow without bound.
		}
	}
}

// TryReceive returns the next buffered datagram without blocking. ok is
// false if none is currently available — the worker loop's non-blocking
// receive suspension point.
func (r *ReceiverConn) TryReceive() (data []byte, addr *net.UDPAddr, ok bool) {
	select {
	case d := <-r.datagrams:
		return d.data, d.addr, true
	default:
		return nil, nil, false
	}
}

// Close releases the socket and stops the background read goroutine.
func (r *ReceiverConn) Close() error {
	close(r.done)
	return r.conn.Close()
}

// interfaceForAddress finds the local network interface owning the given
// IPv4 address, for use with SetMulticastInterface/JoinGroup. If none
// owns it (e.g. 127.0.0.0 as a literal fallback marker rather than a real
// loopback address), nil is returned and the kernel default is used.
func interfaceForAddress(addr string) *net.Interface {
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if ok && ipNet.IP.Equal(ip) {
				return &ifaces[i]
			}
		}
	}
	return nil
}
