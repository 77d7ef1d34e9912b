// Package config loads the server's two TOML configuration files:
// configuration.toml (basic server identity/network settings) and
// features.toml (advanced/operational settings).
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Configuration holds configuration.toml: the basic settings an operator
// tweaks most often.
type Configuration struct {
	ServerName   string `toml:"server_name"`
	MOTD         string `toml:"motd"`
	BindAddress  string `toml:"bind_address"`
	Port         int    `toml:"port"`
	OnlineMode   bool   `toml:"online_mode"`
	MaxPlayers   int    `toml:"max_players"`
	ViewDistance int    `toml:"view_distance"`
	WorldRoot    string `toml:"world_root"`
}

// DefaultConfiguration returns configuration.toml defaults.
func DefaultConfiguration() Configuration {
	return Configuration{
		ServerName:   "A Minecraft Server",
		MOTD:         "A Minecraft Server",
		BindAddress:  "0.0.0.0",
		Port:         25565,
		OnlineMode:   true,
		MaxPlayers:   20,
		ViewDistance: 10,
		WorldRoot:    "world",
	}
}

// LoadConfiguration reads configuration.toml from path. A missing file is
// not an error: the defaults are returned as-is.
func LoadConfiguration(path string) (Configuration, error) {
	cfg := DefaultConfiguration()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// AuthenticationConfig controls the online-mode authentication handshake.
type AuthenticationConfig struct {
	PreventProxyConnections bool `toml:"prevent_proxy_connections"`
}

// RCONConfig controls the optional Source RCON listener.
type RCONConfig struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind_address"`
	Port        int    `toml:"port"`
	Password    string `toml:"password"`
}

// QueryConfig controls the optional UDP query protocol listener.
type QueryConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// LANBroadcastConfig controls the optional LAN discovery beacon.
type LANBroadcastConfig struct {
	Enabled  bool `toml:"enabled"`
	Interval int  `toml:"interval_ms"`
}

// ProxyConfig controls trust of PROXY-protocol/forwarded headers in front
// of the listener (BungeeCord/Velocity-style setups).
type ProxyConfig struct {
	Enabled           bool `toml:"enabled"`
	VelocityModern    bool `toml:"velocity_modern"`
}

// PVPConfig toggles player-vs-player damage.
type PVPConfig struct {
	Enabled bool `toml:"enabled"`
}

// LoggingConfig controls the slog root logger.
type LoggingConfig struct {
	// Level is free text, mapped to slog.Level: "debug", "info", "warn",
	// "error". Overridden by the MCSERVER_LOG environment variable.
	Level string `toml:"level"`
}

// Features holds features.toml: the advanced/operational settings.
type Features struct {
	Authentication      AuthenticationConfig `toml:"authentication"`
	PVP                 PVPConfig            `toml:"pvp"`
	RCON                RCONConfig           `toml:"rcon"`
	Query               QueryConfig          `toml:"query"`
	Proxy               ProxyConfig          `toml:"proxy"`
	LANBroadcast        LANBroadcastConfig  `toml:"lan_broadcast"`
	CompressionThreshold int                 `toml:"compression_threshold"`
	Logging             LoggingConfig        `toml:"logging"`
}

// DefaultFeatures returns features.toml defaults.
func DefaultFeatures() Features {
	return Features{
		Authentication: AuthenticationConfig{PreventProxyConnections: false},
		PVP:            PVPConfig{Enabled: true},
		RCON:           RCONConfig{Enabled: false, BindAddress: "0.0.0.0", Port: 25575},
		Query:          QueryConfig{Enabled: false, Port: 25565},
		Proxy:          ProxyConfig{Enabled: false},
		LANBroadcast:   LANBroadcastConfig{Enabled: true, Interval: 1500},
		CompressionThreshold: 256,
		Logging:        LoggingConfig{Level: "info"},
	}
}

// LoadFeatures reads features.toml from path. A missing file is not an
// error: the defaults are returned as-is.
func LoadFeatures(path string) (Features, error) {
	cfg := DefaultFeatures()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
