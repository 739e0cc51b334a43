package bridge

import (
	"context"
	"net"
)

type peerAddrKey struct{}

// WithPeerAddr returns a copy of ctx carrying the peer socket address.
func WithPeerAddr(ctx context.Context, addr net.Addr) context.Context {
	return context.WithValue(ctx, peerAddrKey{}, addr)
}

// PeerAddrFromContext returns the peer address forwarded by the bridge.
func PeerAddrFromContext(ctx context.Context) (net.Addr, bool) {
	addr, ok := ctx.Value(peerAddrKey{}).(net.Addr)
	return addr, ok && addr != nil
}
