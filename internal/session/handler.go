package session

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"

	"github.com/pumpkinwire/mcserver/internal/auth"
	"github.com/pumpkinwire/mcserver/internal/crypto"
	"github.com/pumpkinwire/mcserver/internal/model"
	"github.com/pumpkinwire/mcserver/internal/protocol"
	"github.com/pumpkinwire/mcserver/internal/protocol/configpacket"
	"github.com/pumpkinwire/mcserver/internal/protocol/handshakepacket"
	"github.com/pumpkinwire/mcserver/internal/protocol/loginpacket"
	"github.com/pumpkinwire/mcserver/internal/protocol/statuspacket"
)

// PlayJoiner is the narrow surface the Configuration→Play transition needs
// from the world layer. Session itself never touches chunk/container/world
// state directly; it hands off a ready Connection once the handshake
// completes, matching the "connection FSM is dumb, world is the single
// writer" split in the concurrency model.
type PlayJoiner interface {
	// Join materializes a Player for profile, binds it to c, and sends
	// LoginPlay plus whatever initial chunk/inventory state the client
	// needs. Join owns all Play-state packet handling for c from here on,
	// including keep-alive replies, clicks, and chat, until c closes.
	Join(ctx context.Context, c *Connection) error
}

// StatusResponder builds the JSON status document served during the Status
// state (MOTD, player counts, favicon, ...); kept as an interface so the
// supervisor can refresh player counts live.
type StatusResponder interface {
	StatusJSON() string
}

// HandlerConfig is the subset of server configuration the FSM needs.
type HandlerConfig struct {
	OnlineMode           bool
	CompressionThreshold int32 // -1 disables compression
	ServerID             string
	PreventProxyConns    bool
}

// Handler drives one accepted connection through Handshake, Status or
// Login, Configuration, and finally hands off to Play via PlayJoiner.
type Handler struct {
	cfg        HandlerConfig
	keyPair    *crypto.KeyPair
	authClient *auth.Client
	status     StatusResponder
	joiner     PlayJoiner
}

// NewHandler builds a connection handler. keyPair is pre-generated once at
// server startup (RSA key generation costs tens of milliseconds) and shared
// across every Login-state connection.
func NewHandler(cfg HandlerConfig, keyPair *crypto.KeyPair, authClient *auth.Client, status StatusResponder, joiner PlayJoiner) *Handler {
	return &Handler{
		cfg:        cfg,
		keyPair:    keyPair,
		authClient: authClient,
		status:     status,
		joiner:     joiner,
	}
}

// HandleConnection runs the full FSM for one accepted socket. It returns
// once the connection is fully closed, whether cleanly or due to error.
func (h *Handler) HandleConnection(ctx context.Context, conn net.Conn) error {
	c := New(conn, DefaultSendQueueSize)
	defer c.Close(nil)

	go c.WritePump()

	hs, err := handshakepacket.Decode(c.Reader())
	if err != nil {
		return fmt.Errorf("session %s: handshake: %w", c.ID, err)
	}
	c.SetProtocolVersion(hs.ProtocolVersion)
	slog.Info("handshake", "conn", c.ID, "remote", c.RemoteAddr(), "protocol", hs.ProtocolVersion, "next", hs.Next)

	switch hs.Next {
	case handshakepacket.NextStatus:
		c.SetState(protocol.StateStatus)
		return h.handleStatus(c)
	case handshakepacket.NextLogin:
		c.SetState(protocol.StateLogin)
		if err := h.handleLogin(ctx, c); err != nil {
			return fmt.Errorf("session %s: login: %w", c.ID, err)
		}
		if err := h.handleConfiguration(c); err != nil {
			return fmt.Errorf("session %s: configuration: %w", c.ID, err)
		}
		c.SetState(protocol.StatePlay)
		if h.joiner == nil {
			return fmt.Errorf("session %s: no play joiner wired", c.ID)
		}
		return h.joiner.Join(ctx, c)
	default:
		return fmt.Errorf("session %s: unreachable next state %d", c.ID, hs.Next)
	}
}

func (h *Handler) handleStatus(c *Connection) error {
	for {
		id, payload, err := c.Codec().ReadPacket(c.Reader())
		if err != nil {
			return nil // client disconnected after ping, not an error
		}
		name, ok := protocol.Name(protocol.StateStatus, protocol.ServerBound, id)
		if !ok {
			return fmt.Errorf("session %s: unknown status packet id %d", c.ID, id)
		}

		br := bufio.NewReader(bytes.NewReader(payload))
		switch name {
		case "status_request":
			if _, err := statuspacket.DecodeRequest(br); err != nil {
				return err
			}
			statusJSON := ""
			if h.status != nil {
				statusJSON = h.status.StatusJSON()
			}
			body := statuspacket.Encode(statuspacket.Response{JSON: statusJSON})
			if err := c.Codec().WritePacket(c.conn, protocol.MustID(protocol.StateStatus, protocol.ClientBound, "status_response"), body); err != nil {
				return err
			}
		case "ping_request":
			ping, err := statuspacket.DecodePing(br)
			if err != nil {
				return err
			}
			body := statuspacket.EncodePong(ping)
			if err := c.Codec().WritePacket(c.conn, protocol.MustID(protocol.StateStatus, protocol.ClientBound, "pong_response"), body); err != nil {
				return err
			}
			return nil // vanilla clients close immediately after pong
		default:
			return fmt.Errorf("session %s: unexpected status packet %q", c.ID, name)
		}
	}
}

func (h *Handler) handleLogin(ctx context.Context, c *Connection) error {
	id, payload, err := c.Codec().ReadPacket(c.Reader())
	if err != nil {
		return fmt.Errorf("reading login_start: %w", err)
	}
	name, ok := protocol.Name(protocol.StateLogin, protocol.ServerBound, id)
	if !ok || name != "login_start" {
		return fmt.Errorf("expected login_start, got id %d", id)
	}
	ls, err := loginpacket.DecodeLoginStart(bufio.NewReader(bytes.NewReader(payload)))
	if err != nil {
		return fmt.Errorf("decoding login_start: %w", err)
	}

	var profile model.GameProfile
	if h.cfg.OnlineMode {
		profile, err = h.authenticate(ctx, c, ls)
		if err != nil {
			h.sendLoginDisconnect(c, "Failed to verify username")
			return fmt.Errorf("authenticating %s: %w", ls.Name, err)
		}
	} else {
		profile = model.GameProfile{UUID: auth.OfflineUUID(ls.Name), Name: ls.Name}
	}
	c.SetProfile(profile)

	if h.cfg.CompressionThreshold >= 0 {
		body := loginpacket.SetCompression{Threshold: h.cfg.CompressionThreshold}.Encode()
		if err := c.Codec().WritePacket(c.conn, protocol.MustID(protocol.StateLogin, protocol.ClientBound, "set_compression"), body); err != nil {
			return err
		}
		c.Codec().EnableCompression(h.cfg.CompressionThreshold)
	}

	successBody := loginpacket.LoginSuccess{Profile: profile}.Encode()
	if err := c.Codec().WritePacket(c.conn, protocol.MustID(protocol.StateLogin, protocol.ClientBound, "login_success"), successBody); err != nil {
		return err
	}

	id, payload, err = c.Codec().ReadPacket(c.Reader())
	if err != nil {
		return fmt.Errorf("reading login_acknowledged: %w", err)
	}
	name, ok = protocol.Name(protocol.StateLogin, protocol.ServerBound, id)
	if !ok || name != "login_acknowledged" {
		return fmt.Errorf("expected login_acknowledged, got id %d", id)
	}
	if _, err := loginpacket.DecodeAcknowledged(bufio.NewReader(bytes.NewReader(payload))); err != nil {
		return err
	}

	c.SetState(protocol.StateConfiguration)
	return nil
}

// authenticate runs the encryption + Mojang session-service exchange. The
// verify token round trip detects relayed/tampered EncryptionResponse
// packets; a mismatch is fatal.
func (h *Handler) authenticate(ctx context.Context, c *Connection, ls loginpacket.LoginStart) (model.GameProfile, error) {
	verifyToken := make([]byte, 4)
	if _, err := rand.Read(verifyToken); err != nil {
		return model.GameProfile{}, fmt.Errorf("generating verify token: %w", err)
	}

	req := loginpacket.EncryptionRequest{
		ServerID:           h.cfg.ServerID,
		PublicKey:          h.keyPair.PublicDER,
		VerifyToken:        verifyToken,
		ShouldAuthenticate: true,
	}
	if err := c.Codec().WritePacket(c.conn, protocol.MustID(protocol.StateLogin, protocol.ClientBound, "encryption_request"), req.Encode()); err != nil {
		return model.GameProfile{}, err
	}

	id, payload, err := c.Codec().ReadPacket(c.Reader())
	if err != nil {
		return model.GameProfile{}, fmt.Errorf("reading encryption_response: %w", err)
	}
	name, ok := protocol.Name(protocol.StateLogin, protocol.ServerBound, id)
	if !ok || name != "encryption_response" {
		return model.GameProfile{}, fmt.Errorf("expected encryption_response, got id %d", id)
	}
	resp, err := loginpacket.DecodeEncryptionResponse(bufio.NewReader(bytes.NewReader(payload)))
	if err != nil {
		return model.GameProfile{}, err
	}

	sharedSecret, err := h.keyPair.DecryptPKCS1v15(resp.EncryptedSharedSecret)
	if err != nil {
		return model.GameProfile{}, fmt.Errorf("decrypting shared secret: %w", err)
	}
	decryptedToken, err := h.keyPair.DecryptPKCS1v15(resp.EncryptedVerifyToken)
	if err != nil {
		return model.GameProfile{}, fmt.Errorf("decrypting verify token: %w", err)
	}
	if !bytesEqual(decryptedToken, verifyToken) {
		return model.GameProfile{}, fmt.Errorf("verify token mismatch")
	}

	if err := c.EnableEncryption(sharedSecret); err != nil {
		return model.GameProfile{}, err
	}

	digest := crypto.AuthDigest(h.cfg.ServerID, sharedSecret, h.keyPair.PublicDER)
	clientIP := ""
	if h.cfg.PreventProxyConns {
		host, _, splitErr := net.SplitHostPort(c.RemoteAddr())
		if splitErr == nil {
			clientIP = host
		}
	}
	profile, err := h.authClient.HasJoined(ctx, ls.Name, digest, clientIP)
	if err != nil {
		return model.GameProfile{}, err
	}
	return profile, nil
}

func (h *Handler) sendLoginDisconnect(c *Connection, reason string) {
	msg, _ := json.Marshal(map[string]string{"text": reason})
	body := loginpacket.Disconnect{Reason: string(msg)}.Encode()
	_ = c.Codec().WritePacket(c.conn, protocol.MustID(protocol.StateLogin, protocol.ClientBound, "login_disconnect"), body)
}

// handleConfiguration runs the plugin-channel/feature-flag negotiation that
// sits between Login and Play. Registry data (dimension types, biomes, ...)
// is intentionally left to a richer world-data layer; a bare-minimum server
// finishes configuration with vanilla default registries assumed
// client-side, per the protocol's tolerance for a server that sends no
// registry_data at all.
func (h *Handler) handleConfiguration(c *Connection) error {
	for {
		id, payload, err := c.Codec().ReadPacket(c.Reader())
		if err != nil {
			return fmt.Errorf("reading configuration packet: %w", err)
		}
		name, ok := protocol.Name(protocol.StateConfiguration, protocol.ServerBound, id)
		if !ok {
			return fmt.Errorf("unknown configuration packet id %d", id)
		}
		br := bufio.NewReader(bytes.NewReader(payload))

		switch name {
		case "client_information":
			if _, err := configpacket.DecodeClientInformation(br); err != nil {
				return err
			}
			if err := c.Codec().WritePacket(c.conn, protocol.MustID(protocol.StateConfiguration, protocol.ClientBound, "known_packs"),
				configpacket.KnownPacks{}.Encode()); err != nil {
				return err
			}

		case "known_packs_ack":
			if _, err := configpacket.DecodeKnownPacks(br); err != nil {
				return err
			}
			if err := c.Codec().WritePacket(c.conn, protocol.MustID(protocol.StateConfiguration, protocol.ClientBound, "feature_flags"),
				configpacket.FeatureFlags{Flags: []string{"minecraft:vanilla"}}.Encode()); err != nil {
				return err
			}
			if err := c.Codec().WritePacket(c.conn, protocol.MustID(protocol.StateConfiguration, protocol.ClientBound, "finish_configuration"),
				configpacket.FinishConfiguration{}.Encode()); err != nil {
				return err
			}

		case "plugin_message_serverbound":
			pm, err := configpacket.DecodePluginMessage(br)
			if err != nil {
				return err
			}
			if pm.Channel == "minecraft:brand" {
				c.SetClientBrand(string(pm.Data))
			}

		case "keep_alive_serverbound":
			if _, err := configpacket.DecodeKeepAlive(br); err != nil {
				return err
			}

		case "finish_configuration_ack":
			if _, err := configpacket.DecodeFinishAck(br); err != nil {
				return err
			}
			return nil

		default:
			return fmt.Errorf("unexpected configuration packet %q", name)
		}
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
