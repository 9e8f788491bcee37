// internal/sms/provider_test.go
package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textpulse/textpulse-backend/internal/config"
	"github.com/textpulse/textpulse-backend/internal/model"
)

func TestNormalizeProviderStatus(t *testing.T) {
	cases := map[string]model.MessageStatus{
		"queued":      model.MessageStatusPending,
		"accepted":    model.MessageStatusPending,
		"scheduled":   model.MessageStatusPending,
		"sending":     model.MessageStatusPending,
		"sent":        model.MessageStatusSent,
		"SENT":        model.MessageStatusSent,
		"delivered":   model.MessageStatusDelivered,
		"read":        model.MessageStatusDelivered,
		"undelivered": model.MessageStatusUndelivered,
		"failed":      model.MessageStatusFailed,
		"canceled":    model.MessageStatusFailed,
		"mystery":     model.MessageStatusPending,
		"":            model.MessageStatusPending,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeProviderStatus(in), "status %q", in)
	}
}

func providerConfig(baseURL string) config.SMSConfig {
	return config.SMSConfig{
		AccountID:  "AC123",
		AuthToken:  "secret",
		FromNumber: "+12025550100",
		BaseURL:    baseURL,
	}
}

func TestHTTPClientSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+12025550101", r.FormValue("To"))
		assert.Equal(t, "hello", r.FormValue("Body"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"sid":    "SM1",
			"to":     r.FormValue("To"),
			"from":   r.FormValue("From"),
			"body":   r.FormValue("Body"),
			"status": "queued",
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(providerConfig(srv.URL))
	msg, err := client.Send(context.Background(), "+12025550101", "+12025550100", "hello")
	require.NoError(t, err)
	assert.Equal(t, "SM1", msg.ID)
	assert.Equal(t, model.MessageStatusPending, msg.Status)
}

func TestHTTPClientSendServerErrorIsProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHTTPClient(providerConfig(srv.URL))
	_, err := client.Send(context.Background(), "+12025550101", "+12025550100", "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
}

func TestHTTPClientSendRejectionIsNotProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 21211, "message": "invalid 'To' number"})
	}))
	defer srv.Close()

	client := NewHTTPClient(providerConfig(srv.URL))
	_, err := client.Send(context.Background(), "+12025550101", "+12025550100", "hello")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrProviderUnavailable))
	assert.Contains(t, err.Error(), "21211")
}

func TestHTTPClientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Accounts/AC123/Messages/SM1.json", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sid":    "SM1",
			"status": "delivered",
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(providerConfig(srv.URL))
	msg, err := client.Status(context.Background(), "SM1")
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusDelivered, msg.Status)
}

func TestHTTPClientNetworkErrorIsProviderUnavailable(t *testing.T) {
	client := NewHTTPClient(providerConfig("http://127.0.0.1:1"))
	_, err := client.Send(context.Background(), "+12025550101", "+12025550100", "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
}
