package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeep2k01/BUYFLUX-sub000/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) PaymentGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRazorpayClient(&config.RazorpayConfig{
		BaseURL:   srv.URL,
		KeyID:     "rzp_test_key",
		KeySecret: "rzp_test_secret",
	})
}

func TestRazorpayCreateOrder_Success(t *testing.T) {
	gw := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "rzp_test_secret", pass)

		var req createOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(120000), req.Amount)
		assert.Equal(t, "INR", req.Currency)
		assert.Equal(t, "rcpt_abc", req.Receipt)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "order_N1", "status": "created"})
	})

	id, err := gw.CreateOrder(context.Background(), 120000, "INR", "rcpt_abc")
	require.NoError(t, err)
	assert.Equal(t, "order_N1", id)
	assert.Equal(t, "rzp_test_key", gw.KeyID())
}

func TestRazorpayCreateOrder_GatewayError(t *testing.T) {
	gw := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	})

	_, err := gw.CreateOrder(context.Background(), 1, "INR", "rcpt_x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount too small")
}

func TestRazorpayCreateOrder_EmptyOrderID(t *testing.T) {
	gw := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := gw.CreateOrder(context.Background(), 120000, "INR", "rcpt_x")
	assert.Error(t, err)
}
