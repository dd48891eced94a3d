package pyth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swivlabs/swivd/internal/domain"
)

func TestScaled(t *testing.T) {
	tests := []struct {
		name     string
		mantissa int64
		exponent int32
		decimals int
		want     int64
	}{
		{"price 123.45 to 6 decimals", 12345, -2, 6, 123_450_000},
		{"no shift", 42, 0, 0, 42},
		{"positive exponent", 7, 2, 3, 700_000},
		{"rounds half up", 15, -1, 0, 2},
		{"rounds below half down", 14, -1, 0, 1},
		{"negative rounds half away from zero", -15, -1, 0, -2},
		{"negative rounds below half toward zero", -14, -1, 0, -1},
		{"truncating shift", 123_456_789, -8, 2, 123},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Price{Mantissa: tt.mantissa, Exponent: tt.exponent}
			got, err := p.Scaled(tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScaledOverflow(t *testing.T) {
	p := Price{Mantissa: 1 << 62, Exponent: 10}
	_, err := p.Scaled(10)
	assert.Error(t, err)
}

func TestGetPrice(t *testing.T) {
	const feedID = "0xe62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/updates/price/latest", r.URL.Path)
		assert.Equal(t, feedID, r.URL.Query().Get("ids[]"))
		fmt.Fprintf(w, `{"parsed":[{"id":%q,"price":{"price":"12345","expo":-2,"publish_time":1700000000}}]}`, feedID)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	price, err := client.GetPrice(context.Background(), feedID)
	require.NoError(t, err)

	assert.Equal(t, feedID, price.FeedID)
	assert.Equal(t, int64(12345), price.Mantissa)
	assert.Equal(t, int32(-2), price.Exponent)
	assert.InDelta(t, 123.45, price.Float(), 1e-9)

	scaled, err := price.Scaled(6)
	require.NoError(t, err)
	assert.Equal(t, int64(123_450_000), scaled)
}

func TestGetPriceEmptyFeedID(t *testing.T) {
	client := NewClient("")
	_, err := client.GetPrice(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrMissingFeedID)
}

func TestGetPriceNoParsedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"parsed":[]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GetPrice(context.Background(), "0xabc")
	assert.True(t, errors.Is(err, domain.ErrOracleUnavailable))
}

func TestGetPriceUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GetPrice(context.Background(), "0xabc")
	assert.Error(t, err)
}
