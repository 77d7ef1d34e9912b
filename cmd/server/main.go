// Command server runs the Minecraft-protocol game server: it loads
// configuration, locks and opens the world directory, and runs the
// connection supervisor and tick driver (plus the optional RCON and query
// listeners) until signaled to shut down.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pumpkinwire/mcserver/internal/auth"
	"github.com/pumpkinwire/mcserver/internal/config"
	"github.com/pumpkinwire/mcserver/internal/crypto"
	"github.com/pumpkinwire/mcserver/internal/logging"
	"github.com/pumpkinwire/mcserver/internal/query"
	"github.com/pumpkinwire/mcserver/internal/rcon"
	"github.com/pumpkinwire/mcserver/internal/region"
	"github.com/pumpkinwire/mcserver/internal/session"
	"github.com/pumpkinwire/mcserver/internal/supervisor"
	"github.com/pumpkinwire/mcserver/internal/tick"
	"github.com/pumpkinwire/mcserver/internal/world"
)

func main() {
	configPath := flag.String("config", "configuration.toml", "path to configuration.toml")
	featuresPath := flag.String("features", "features.toml", "path to features.toml")
	worldPath := flag.String("world", "", "path to the world directory (overrides world_root in configuration.toml)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	code, err := run(ctx, *configPath, *featuresPath, *worldPath)
	if err != nil {
		slog.Error("fatal", "error", err)
	}
	os.Exit(code)
}

// run wires every component together and blocks until ctx is canceled or a
// component fails. The returned int is the process exit code: 0 for a
// graceful shutdown, 1 for a startup failure, 2 for a fatal runtime error.
func run(ctx context.Context, configPath, featuresPath, worldOverride string) (int, error) {
	cfg, err := config.LoadConfiguration(configPath)
	if err != nil {
		return 1, fmt.Errorf("loading configuration: %w", err)
	}
	features, err := config.LoadFeatures(featuresPath)
	if err != nil {
		return 1, fmt.Errorf("loading features: %w", err)
	}

	slog.SetDefault(logging.New(features.Logging.Level))

	worldRoot := cfg.WorldRoot
	if worldOverride != "" {
		worldRoot = worldOverride
	}
	if err := os.MkdirAll(worldRoot, 0o755); err != nil {
		return 1, fmt.Errorf("creating world directory %s: %w", worldRoot, err)
	}

	lock, err := region.AcquireSessionLock(worldRoot)
	if err != nil {
		return 1, fmt.Errorf("acquiring world lock: %w", err)
	}
	defer lock.Release()

	store := region.NewStore(worldRoot)
	defer store.Close()

	keyPair, err := crypto.GenerateKeyPair()
	if err != nil {
		return 1, fmt.Errorf("generating server key pair: %w", err)
	}

	supervisorCfg := supervisor.Config{
		BindAddress:          cfg.BindAddress,
		Port:                 cfg.Port,
		LANBroadcastEnabled:  features.LANBroadcast.Enabled,
		LANBroadcastInterval: time.Duration(features.LANBroadcast.Interval) * time.Millisecond,
		MOTD:                 cfg.MOTD,
	}

	status := &statusResponder{cfg: cfg}

	var sup *supervisor.Server
	w := world.New(store, nil, trackerFunc(func() *supervisor.Server { return sup }), world.NopHooks{})

	handlerCfg := session.HandlerConfig{
		OnlineMode:           cfg.OnlineMode,
		CompressionThreshold: int32(features.CompressionThreshold),
		ServerID:             cfg.ServerName,
		PreventProxyConns:    features.Authentication.PreventProxyConnections,
	}
	handler := session.NewHandler(handlerCfg, keyPair, auth.NewClient(), status, w)
	sup = supervisor.New(supervisorCfg, handler)
	status.sup = sup

	driver := tick.NewDriver(w)

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		slog.Info("starting supervisor", "bind", cfg.BindAddress, "port", cfg.Port)
		return sup.Run(gctx)
	})

	group.Go(func() error {
		slog.Info("starting tick driver")
		return driver.Start(gctx)
	})

	if features.RCON.Enabled {
		rconServer := rcon.New(rcon.Config{
			BindAddress: features.RCON.BindAddress,
			Port:        features.RCON.Port,
			Password:    features.RCON.Password,
		}, rcon.CommandFunc(func(command string) string {
			return handleRCONCommand(w, command)
		}))
		group.Go(func() error {
			slog.Info("starting rcon", "bind", features.RCON.BindAddress, "port", features.RCON.Port)
			return rconServer.Run(gctx)
		})
	}

	if features.Query.Enabled {
		queryServer := query.New(query.Config{
			BindAddress: cfg.BindAddress,
			Port:        features.Query.Port,
			HostPort:    cfg.Port,
		}, &queryStats{cfg: cfg, w: w})
		group.Go(func() error {
			slog.Info("starting query", "bind", cfg.BindAddress, "port", features.Query.Port)
			return queryServer.Run(gctx)
		})
	}

	<-gctx.Done()
	driver.Stop()
	if shutdownErr := sup.Shutdown(); shutdownErr != nil {
		slog.Warn("supervisor shutdown", "error", shutdownErr)
	}

	waitErr := group.Wait()
	if ctx.Err() != nil {
		// The outer context was canceled by a signal: every goroutine
		// unwinding with context.Canceled is the expected graceful path,
		// not a failure.
		return 0, nil
	}
	if waitErr != nil {
		return 2, fmt.Errorf("server error: %w", waitErr)
	}
	return 0, nil
}

// trackerFunc lazily resolves the supervisor, since the supervisor and the
// world each need a reference to the other and neither can be constructed
// first.
type trackerFunc func() *supervisor.Server

func (f trackerFunc) Track(c *session.Connection)   { f().Track(c) }
func (f trackerFunc) Untrack(c *session.Connection) { f().Untrack(c) }

// statusResponder builds the Status-state JSON document from live
// supervisor player counts plus static configuration.
type statusResponder struct {
	cfg config.Configuration
	sup *supervisor.Server
}

func (s *statusResponder) StatusJSON() string {
	online := 0
	if s.sup != nil {
		online = s.sup.PlayerCount()
	}
	doc := map[string]any{
		"version": map[string]any{
			"name":     s.cfg.ServerName,
			"protocol": 767,
		},
		"players": map[string]any{
			"max":    s.cfg.MaxPlayers,
			"online": online,
		},
		"description": map[string]any{
			"text": s.cfg.MOTD,
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return `{"version":{"name":"unknown","protocol":0},"players":{"max":0,"online":0},"description":{"text":""}}`
	}
	return string(data)
}

// queryStats adapts configuration.toml's static settings and the live world
// state to query.StatsProvider.
type queryStats struct {
	cfg config.Configuration
	w   *world.World
}

func (q *queryStats) MOTD() string          { return q.cfg.MOTD }
func (q *queryStats) MapName() string       { return q.cfg.WorldRoot }
func (q *queryStats) PlayerCount() int      { return q.w.PlayerCount() }
func (q *queryStats) MaxPlayers() int       { return q.cfg.MaxPlayers }
func (q *queryStats) PlayerNames() []string { return q.w.PlayerNames() }

// handleRCONCommand implements the small set of console commands an RCON
// client can issue against a running world. Full command-tree parsing is
// out of core scope; this is the fixed set a server operator actually needs
// to script against.
func handleRCONCommand(w *world.World, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	switch fields[0] {
	case "list":
		return fmt.Sprintf("There are %d players online", w.PlayerCount())
	default:
		return fmt.Sprintf("Unknown command: %s", fields[0])
	}
}
