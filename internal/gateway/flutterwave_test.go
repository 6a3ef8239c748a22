package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escrow-service/internal/pkg/xerrors"
)

func TestVerifyByTxRefSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "DELIVERY-01", r.URL.Query().Get("tx_ref"))
		fmt.Fprint(w, `{
			"status": "success",
			"data": {
				"tx_ref": "DELIVERY-01",
				"flw_ref": "FLW-123",
				"status": "successful",
				"amount": 2500.50,
				"currency": "NGN"
			}
		}`)
	}))
	defer srv.Close()

	c := NewFlutterwaveClient(srv.URL, "sk-test")
	res, err := c.VerifyByTxRef(context.Background(), "DELIVERY-01")
	require.NoError(t, err)

	assert.True(t, res.Successful())
	assert.Equal(t, "FLW-123", res.GatewayRef)
	assert.True(t, res.Amount.Equal(decimal.NewFromFloat(2500.50)))
}

func TestVerifyByTxRefFailedCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"status": "success",
			"data": {"tx_ref": "X", "flw_ref": "F", "status": "failed", "amount": 100, "currency": "NGN"}
		}`)
	}))
	defer srv.Close()

	c := NewFlutterwaveClient(srv.URL, "sk-test")
	res, err := c.VerifyByTxRef(context.Background(), "X")
	require.NoError(t, err)
	assert.False(t, res.Successful())
}

func TestVerifyByTxRefUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewFlutterwaveClient(srv.URL, "sk-test")
	_, err := c.VerifyByTxRef(context.Background(), "GHOST")
	assert.ErrorIs(t, err, xerrors.ErrUnknownTxRef)
}

func TestVerifyByTxRefGatewayDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewFlutterwaveClient(srv.URL, "sk-test")
	_, err := c.VerifyByTxRef(context.Background(), "X")
	assert.ErrorIs(t, err, xerrors.ErrGatewayUnreachable)

	srv.Close()
	_, err = c.VerifyByTxRef(context.Background(), "X")
	assert.ErrorIs(t, err, xerrors.ErrGatewayUnreachable)
}
