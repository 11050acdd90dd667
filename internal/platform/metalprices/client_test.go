package metalprices

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldsphere/goldsphere/internal/domain"
)

func TestGetSpotPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/spot", r.URL.Path)
		assert.Equal(t, "gold,silver", r.URL.Query().Get("metals"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"prices":{"gold":2412.50,"silver":31.20},"timestamp":1756200000}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	quotes, err := client.GetSpotPrices(context.Background(), []string{"gold", "silver"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.Equal(t, "gold", quotes[0].Metal)
	assert.Equal(t, 2412.50, quotes[0].Price)
	assert.Equal(t, "silver", quotes[1].Metal)
	assert.Equal(t, 31.20, quotes[1].Price)
	assert.Equal(t, int64(1756200000), quotes[0].Timestamp.Unix())
}

func TestGetSpotPrice_UnknownMetal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prices":{},"timestamp":1756200000}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.GetSpotPrice(context.Background(), "rhodium")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetSpotPrices_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.GetSpotPrices(context.Background(), []string{"gold"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
