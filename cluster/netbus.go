package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NetworkConfig configures a NetworkBus.
type NetworkConfig struct {
	// NodeID identifies this node on the wire. Defaults to a random UUID.
	NodeID string

	// ListenAddr is the TCP address to accept peer connections on.
	ListenAddr string

	// Peers lists the listen addresses of every other node.
	Peers []string

	// DialTimeout bounds connection establishment. Default 5s.
	DialTimeout time.Duration

	// WriteTimeout bounds a single frame write. Default 5s.
	WriteTimeout time.Duration

	// Logger receives delivery diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// NetworkBus is a TCP implementation of Bus for real multi-process
// clusters. Each node keeps one persistent connection per peer; frames are
// written sequentially on it, which preserves per-sender ordering. A failed
// write closes the connection and retries once on a fresh dial; if that
// also fails, Publish reports the error and the caller must abort its
// mutation. Delivery is therefore at-least-once, never silently dropped.
type NetworkBus struct {
	cfg NetworkConfig
	log *slog.Logger

	listener net.Listener

	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
	peers    map[string]*peerConn
	inbound  map[net.Conn]struct{}
	closed   bool

	wg sync.WaitGroup
}

// Interface assertions.
var (
	_ Bus        = (*NetworkBus)(nil)
	_ Membership = (*NetworkBus)(nil)
)

// peerConn serializes frame writes to a single peer.
type peerConn struct {
	mu   sync.Mutex
	addr string
	conn net.Conn
}

// NewNetworkBus creates a network bus and starts accepting peer
// connections on cfg.ListenAddr.
func NewNetworkBus(cfg NetworkConfig) (*NetworkBus, error) {
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("cluster: listen %s: %w", cfg.ListenAddr, err)
	}

	b := &NetworkBus{
		cfg:      cfg,
		log:      cfg.Logger.With("node", cfg.NodeID),
		listener: listener,
		handlers: make(map[int]Handler),
		peers:    make(map[string]*peerConn, len(cfg.Peers)),
		inbound:  make(map[net.Conn]struct{}),
	}
	for _, addr := range cfg.Peers {
		b.peers[addr] = &peerConn{addr: addr}
	}

	b.wg.Add(1)
	go b.acceptLoop()

	return b, nil
}

// NodeID returns the identity this bus publishes under.
func (b *NetworkBus) NodeID() string { return b.cfg.NodeID }

// Addr returns the actual listen address, useful when ListenAddr used
// port 0.
func (b *NetworkBus) Addr() string { return b.listener.Addr().String() }

// Publish sends the messages to every configured peer. The first peer that
// cannot be reached after one reconnect attempt fails the whole publish.
func (b *NetworkBus) Publish(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.New("cluster: bus is closed")
	}
	peers := make([]*peerConn, 0, len(b.peers))
	for _, p := range b.peers {
		peers = append(peers, p)
	}
	b.mu.RUnlock()

	for _, peer := range peers {
		if err := b.sendTo(ctx, peer, msgs); err != nil {
			return fmt.Errorf("cluster: publish to %s: %w", peer.addr, err)
		}
	}
	return nil
}

// sendTo writes one frame to a peer, redialing once on failure.
func (b *NetworkBus) sendTo(ctx context.Context, peer *peerConn, msgs []Message) error {
	peer.mu.Lock()
	defer peer.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if peer.conn == nil {
			dialer := net.Dialer{Timeout: b.cfg.DialTimeout}
			conn, err := dialer.DialContext(ctx, "tcp", peer.addr)
			if err != nil {
				lastErr = err
				continue
			}
			peer.conn = conn
		}

		_ = peer.conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteTimeout))
		if err := writeFrame(peer.conn, msgs); err != nil {
			b.log.Warn("peer write failed, reconnecting",
				"peer", peer.addr, "error", err)
			peer.conn.Close()
			peer.conn = nil
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// Subscribe registers a handler and returns its cancel function.
func (b *NetworkBus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// MemberCount implements Membership as peers plus this node.
func (b *NetworkBus) MemberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.peers) + 1
}

// Close stops the accept loop and drops every peer connection.
func (b *NetworkBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	peers := make([]*peerConn, 0, len(b.peers))
	for _, p := range b.peers {
		peers = append(peers, p)
	}
	b.mu.Unlock()

	err := b.listener.Close()
	for _, peer := range peers {
		peer.mu.Lock()
		if peer.conn != nil {
			peer.conn.Close()
			peer.conn = nil
		}
		peer.mu.Unlock()
	}

	// Inbound readers block in readFrame until their connection dies, so
	// closing them here is what lets wg.Wait return while peers are up.
	b.mu.Lock()
	for conn := range b.inbound {
		conn.Close()
	}
	b.mu.Unlock()

	b.wg.Wait()
	return err
}

func (b *NetworkBus) acceptLoop() {
	defer b.wg.Done()

	for {
		conn, err := b.listener.Accept()
		if err != nil {
			// Listener closed during shutdown.
			return
		}

		b.wg.Add(1)
		go b.serveConn(conn)
	}
}

// serveConn reads frames from one inbound peer connection and dispatches
// them. One goroutine per sender keeps per-sender ordering intact.
func (b *NetworkBus) serveConn(conn net.Conn) {
	defer b.wg.Done()
	defer conn.Close()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.inbound[conn] = struct{}{}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.inbound, conn)
		b.mu.Unlock()
	}()

	for {
		msgs, err := readFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				b.log.Warn("inbound connection failed",
					"remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}

		b.mu.RLock()
		handlers := make([]Handler, 0, len(b.handlers))
		for i := 0; i < b.next; i++ {
			if h, ok := b.handlers[i]; ok {
				handlers = append(handlers, h)
			}
		}
		b.mu.RUnlock()

		for _, msg := range msgs {
			for _, h := range handlers {
				h(msg)
			}
		}
	}
}
