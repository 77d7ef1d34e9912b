// Package supervisor owns the listening socket: the accept loop that hands
// each incoming TCP connection to a session.Handler, the live-connection
// registry used for broadcast fan-out, and graceful shutdown, scaled to a
// single long-lived Play population instead of a one-shot login exchange.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pumpkinwire/mcserver/internal/protocol"
	"github.com/pumpkinwire/mcserver/internal/protocol/playpacket"
	"github.com/pumpkinwire/mcserver/internal/session"
)

// ShutdownGrace is how long Shutdown waits for Play connections to drain
// after sending each a Disconnect, before it gives up and closes sockets
// out from under them.
const ShutdownGrace = 5 * time.Second

// Config is the subset of server configuration the listener needs.
type Config struct {
	BindAddress string
	Port        int

	LANBroadcastEnabled  bool
	LANBroadcastInterval time.Duration
	MOTD                 string
}

// lanBeaconAddr is the fixed multicast group vanilla clients scan for
// LAN-visible servers.
const lanBeaconAddr = "224.0.2.60:4445"

// Server accepts connections and hands each to a session.Handler, tracking
// every live Connection for broadcast and shutdown.
type Server struct {
	cfg     Config
	handler *session.Handler

	mu       sync.Mutex
	listener net.Listener
	conns    map[string]*session.Connection
}

// New creates a Server bound to cfg, dispatching each accepted connection
// to handler.
func New(cfg Config, handler *session.Handler) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		conns:   make(map[string]*session.Connection),
	}
}

// Addr returns the bound listener address, or nil before Run starts
// listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run binds the listener and blocks running the accept loop (and, if
// enabled, the LAN discovery beacon) until ctx is canceled or Shutdown is
// called.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("supervisor: listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve runs the accept loop (and optional LAN beacon) against an
// already-bound listener, useful for tests that need an ephemeral port.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	group.Go(func() error {
		slog.Info("supervisor listening", "addr", ln.Addr())
		return s.acceptLoop(ctx, ln)
	})

	if s.cfg.LANBroadcastEnabled {
		group.Go(func() error {
			s.runLANBeacon(ctx, ln)
			return nil
		})
	}

	err := group.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			slog.Error("supervisor: accept failed", "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	if err := s.handler.HandleConnection(ctx, conn); err != nil {
		slog.Info("connection ended", "remote", remote, "error", err)
	} else {
		slog.Info("connection ended", "remote", remote)
	}
}

// Track registers c so broadcast/Shutdown can reach it. session.Handler's
// PlayJoiner implementation calls this once a connection enters Play.
func (s *Server) Track(c *session.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c.ID] = c
}

// Untrack removes c, typically called when its Play-state handling loop
// exits.
func (s *Server) Untrack(c *session.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c.ID)
}

// Broadcast enqueues payload as (state, direction, name) on every tracked
// connection for which filter returns true. A nil filter broadcasts to all.
func (s *Server) Broadcast(state protocol.State, direction protocol.Direction, name string, payload []byte, filter func(*session.Connection) bool) {
	s.mu.Lock()
	targets := make([]*session.Connection, 0, len(s.conns))
	for _, c := range s.conns {
		if filter == nil || filter(c) {
			targets = append(targets, c)
		}
	}
	s.mu.Unlock()

	for _, c := range targets {
		if err := c.EnqueuePacket(state, direction, name, payload); err != nil {
			slog.Warn("broadcast enqueue failed", "conn", c.ID, "error", err)
		}
	}
}

// PlayerCount returns the number of tracked (Play-state) connections.
func (s *Server) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown stops accepting new connections, disconnects every tracked Play
// connection with a shutdown reason, and waits up to ShutdownGrace for them
// to close before returning.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	ln := s.listener
	targets := make([]*session.Connection, 0, len(s.conns))
	for _, c := range s.conns {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}

	reason := playpacket.Disconnect{Reason: `{"text":"Server closed"}`}.Encode()
	for _, c := range targets {
		_ = c.EnqueuePacket(protocol.StatePlay, protocol.ClientBound, "play_disconnect", reason)
	}

	deadline := time.After(ShutdownGrace)
	for _, c := range targets {
		select {
		case <-waitClosed(c):
		case <-deadline:
			slog.Warn("supervisor: shutdown grace period elapsed, forcing close")
			for _, c := range targets {
				c.Close(fmt.Errorf("supervisor: shutdown"))
			}
			return nil
		}
	}
	return nil
}

func waitClosed(c *session.Connection) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		for !c.Closed() {
			time.Sleep(50 * time.Millisecond)
		}
		close(ch)
	}()
	return ch
}
