// Package auth implements the online-mode authentication step: verifying a
// client's claimed identity against Mojang's session service once the
// shared secret has been established.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/pumpkinwire/mcserver/internal/model"
	"github.com/pumpkinwire/mcserver/internal/protoerr"
)

// SessionServiceURL is Mojang's "has joined" endpoint.
const SessionServiceURL = "https://sessionserver.mojang.com/session/minecraft/hasJoined"

// RequestTimeout bounds the session-service round trip: the Login state
// suspends the client on this call, so it must not hang indefinitely.
const RequestTimeout = 10 * time.Second

// Client queries the Mojang session service to authenticate a login.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a session-service client with the default timeout and
// endpoint.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: RequestTimeout},
		baseURL:    SessionServiceURL,
	}
}

type profileProperty struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

type hasJoinedResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Properties []profileProperty `json:"properties"`
}

// HasJoined authenticates username against the digest computed from the
// server id, shared secret, and public key, returning the signed
// GameProfile Mojang hands back. clientIP is optional, mirroring the
// session service's prevent-proxy-connections parameter.
func (c *Client) HasJoined(ctx context.Context, username, digest, clientIP string) (model.GameProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("username", username)
	q.Set("serverId", digest)
	if clientIP != "" {
		q.Set("ip", clientIP)
	}

	reqURL := c.baseURL + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return model.GameProfile{}, fmt.Errorf("auth: building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.GameProfile{}, fmt.Errorf("%w: session service request: %v", protoerr.AuthFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return model.GameProfile{}, fmt.Errorf("%w: session service rejected %q", protoerr.AuthFailed, username)
	}
	if resp.StatusCode != http.StatusOK {
		return model.GameProfile{}, fmt.Errorf("%w: session service returned %d", protoerr.AuthFailed, resp.StatusCode)
	}

	var body hasJoinedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.GameProfile{}, fmt.Errorf("%w: decoding session service response: %v", protoerr.AuthFailed, err)
	}

	id, err := uuid.Parse(insertHyphens(body.ID))
	if err != nil {
		return model.GameProfile{}, fmt.Errorf("%w: parsing profile uuid: %v", protoerr.AuthFailed, err)
	}

	profile := model.GameProfile{UUID: id, Name: body.Name}
	for _, p := range body.Properties {
		profile.Properties = append(profile.Properties, model.ProfileProperty{
			Name:      p.Name,
			Value:     p.Value,
			Signature: p.Signature,
		})
	}
	return profile, nil
}

// insertHyphens rewrites Mojang's undashed 32-character uuid form into the
// standard 8-4-4-4-12 layout uuid.Parse expects.
func insertHyphens(raw string) string {
	if len(raw) != 32 {
		return raw
	}
	return raw[0:8] + "-" + raw[8:12] + "-" + raw[12:16] + "-" + raw[16:20] + "-" + raw[20:32]
}
