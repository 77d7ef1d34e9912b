package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasJoined_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Notch", r.URL.Query().Get("username"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"069a79f444e94726a5befca90e38aaf8","name":"Notch","properties":[{"name":"textures","value":"abc"}]}`))
	}))
	defer srv.Close()

	c := NewClient()
	c.baseURL = srv.URL

	profile, err := c.HasJoined(context.Background(), "Notch", "deadbeef", "")
	require.NoError(t, err)
	assert.Equal(t, "Notch", profile.Name)
	assert.Equal(t, "069a79f4-44e9-4726-a5be-fca90e38aaf8", profile.UUID.String())
	require.Len(t, profile.Properties, 1)
	assert.Equal(t, "textures", profile.Properties[0].Name)
}

func TestHasJoined_NoContentIsAuthFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient()
	c.baseURL = srv.URL

	_, err := c.HasJoined(context.Background(), "Hacker", "deadbeef", "")
	require.Error(t, err)
}
