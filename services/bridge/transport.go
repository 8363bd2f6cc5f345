package bridge

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
)

// Transport opens the stream to the peer. Open is called again after every
// link loss.
type Transport interface {
	Open(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

// TransportFactory builds a Transport from its config.
type TransportFactory func(TransportConfig) (Transport, error)

var (
	transportsMu sync.RWMutex
	transports   = map[string]TransportFactory{
		"tcp":  dialer,
		"unix": dialer,
	}
)

// RegisterTransport adds or replaces a transport kind.
func RegisterTransport(kind string, f TransportFactory) {
	transportsMu.Lock()
	transports[kind] = f
	transportsMu.Unlock()
}

func newTransport(cfg TransportConfig) (Transport, error) {
	transportsMu.RLock()
	f, ok := transports[cfg.Type]
	transportsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("bridge: unknown transport %q", cfg.Type)
	}
	return f(cfg)
}

type netDialer struct {
	network, addr string
	d             net.Dialer
}

func dialer(cfg TransportConfig) (Transport, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("bridge: %s transport needs an address", cfg.Type)
	}
	return &netDialer{network: cfg.Type, addr: cfg.Address}, nil
}

func (n *netDialer) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	return n.d.DialContext(ctx, n.network, n.addr)
}

func (n *netDialer) String() string { return n.network + ":" + n.addr }
