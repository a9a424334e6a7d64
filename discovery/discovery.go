// Package discovery publishes an optional, cosmetic mDNS/Bonjour
// advertisement of a running node using github.com/grandcat/zeroconf. It
// is deliberately independent of the HELLO/HELLO-REPLY wire protocol:
// nothing in sender or receiver reads from it, and nothing it publishes
// feeds routing or RTT. Its only consumers are human operators and
// generic mDNS browser tools.
package discovery

import (
	"context"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service type nodes advertise under.
const ServiceType = "_midi-over-lan._udp"

// Advertisement owns a registered zeroconf server and is shut down by
// Close.
type Advertisement struct {
	server *zeroconf.Server
	once   sync.Once
}

// Advertise registers instanceName under ServiceType on the given UDP
// port. The returned Advertisement must be closed to deregister. ctx is
// honored by shutting the advertisement down if it is cancelled before
// Close is called explicitly.
func Advertise(ctx context.Context, instanceName string, port int) (*Advertisement, error) {
	server, err := zeroconf.Register(instanceName, ServiceType, "local.", port, []string{"txtv=1"}, nil)
	if err != nil {
		return nil, err
	}
	a := &Advertisement{server: server}
	go func() {
		<-ctx.Done()
		a.Close()
	}()
	return a, nil
}

// Close deregisters the advertisement. Safe to call more than once.
func (a *Advertisement) Close() {
	a.once.Do(func() {
		if a.server != nil {
			a.server.Shutdown()
		}
	})
}
