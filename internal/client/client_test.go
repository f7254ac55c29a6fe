package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/config"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/ZilDuck/marketplace-settlement/internal/market"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(config.ClientConfig{ApiUrl: server.URL + "/", Timeout: 5, Retries: 2})
	require.NoError(t, err)
	c.httpClient.RetryWaitMin = 0
	c.httpClient.RetryWaitMax = 0

	return c
}

func TestNewRequiresUrl(t *testing.T) {
	_, err := New(config.ClientConfig{})
	assert.ErrorIs(t, err, ErrMissingApiUrl)
}

func TestBuySendsAssetInPath(t *testing.T) {
	asset, buyer := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/listings/"+asset.String()+"/buy", r.URL.Path)

		var req market.BuyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, buyer, req.Buyer)

		_ = json.NewEncoder(w).Encode(entity.Action{ID: "abc", Type: entity.BuyAction, Fee: 7})
	})

	action, err := c.BuyNft(context.Background(), market.BuyRequest{Buyer: buyer, Asset: asset})
	require.NoError(t, err)
	assert.Equal(t, "abc", action.ID)
	assert.Equal(t, uint64(7), action.Fee)
}

func TestApiErrorIsDecoded(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"listing_exists","message":"listing already exists"}`))
	})

	_, err := c.MintAndList(context.Background(), market.MintAndListRequest{})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "listing_exists", apiErr.Code)
}

func TestReadsAreRetriedWritesAreNot(t *testing.T) {
	var gets, posts int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			if atomic.AddInt32(&gets, 1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_ = json.NewEncoder(w).Encode(market.Quote{Price: 100})
			return
		}
		atomic.AddInt32(&posts, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	quote, err := c.QuoteFees(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), quote.Price)
	assert.Equal(t, int32(2), atomic.LoadInt32(&gets))

	_, err = c.SendToken(context.Background(), market.SendRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&posts))
}

func TestWritesAreSigned(t *testing.T) {
	sender := solana.NewWallet().PrivateKey
	verifier := authority.NewRequestVerifier(time.Minute)

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			assert.Empty(t, r.Header.Values(authority.SignatureHeader))
			_ = json.NewEncoder(w).Encode(market.Quote{Price: 100})
			return
		}

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		signers, err := verifier.Verify(r.Header, r.Method, r.URL.RequestURI(), body)
		require.NoError(t, err)
		assert.Equal(t, []solana.PublicKey{sender.PublicKey()}, signers)

		_ = json.NewEncoder(w).Encode(entity.Action{ID: "sent"})
	}).WithSigners(sender)

	_, err := c.QuoteFees(context.Background(), 100)
	require.NoError(t, err)

	action, err := c.SendToken(context.Background(), market.SendRequest{Sender: sender.PublicKey()})
	require.NoError(t, err)
	assert.Equal(t, "sent", action.ID)
}

func TestNewLoadsKeypairs(t *testing.T) {
	_, err := New(config.ClientConfig{ApiUrl: "http://localhost:8080", Keypairs: []string{t.TempDir() + "/missing.json"}})
	assert.Error(t, err)
}
