package authority

import (
	"net/http"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerifier(now time.Time) *RequestVerifier {
	v := NewRequestVerifier(5 * time.Minute)
	v.now = func() time.Time { return now }
	return v
}

func TestVerifyReturnsSigners(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	admin, cosigner := solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey
	body := []byte(`{"amount":10}`)

	h := http.Header{}
	require.NoError(t, SignRequest(h, "POST", "/treasury/withdraw", body, now, admin, cosigner, admin))

	signers, err := newVerifier(now).Verify(h, "POST", "/treasury/withdraw", body)
	require.NoError(t, err)
	assert.Equal(t, []solana.PublicKey{admin.PublicKey(), cosigner.PublicKey()}, signers)
}

func TestVerifyRejections(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	key := solana.NewWallet().PrivateKey
	body := []byte(`{"amount":10}`)

	signed := func(at time.Time) http.Header {
		h := http.Header{}
		require.NoError(t, SignRequest(h, "POST", "/send", body, at, key))
		return h
	}

	tests := []struct {
		name   string
		header http.Header
		method string
		path   string
		body   []byte
		err    error
	}{
		{"unsigned", http.Header{}, "POST", "/send", body, ErrUnsignedRequest},
		{"body changed", signed(now), "POST", "/send", []byte(`{"amount":99}`), ErrBadSignature},
		{"path changed", signed(now), "POST", "/swap", body, ErrBadSignature},
		{"method changed", signed(now), "PUT", "/send", body, ErrBadSignature},
		{"too old", signed(now.Add(-6 * time.Minute)), "POST", "/send", body, ErrStaleRequest},
		{"from the future", signed(now.Add(6 * time.Minute)), "POST", "/send", body, ErrStaleRequest},
		{"nonce changed", func() http.Header { h := signed(now); h.Set(NonceHeader, "other"); return h }(), "POST", "/send", body, ErrBadSignature},
		{"garbled", http.Header{TimestampHeader: {"1700000000"}, SignatureHeader: {"not-a-signature"}}, "POST", "/send", body, ErrBadSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newVerifier(now).Verify(tt.header, tt.method, tt.path, tt.body)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestVerifyRejectsReplay(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	key := solana.NewWallet().PrivateKey
	body := []byte(`{}`)
	v := newVerifier(now)

	h := http.Header{}
	require.NoError(t, SignRequest(h, "POST", "/send", body, now, key))

	_, err := v.Verify(h, "POST", "/send", body)
	require.NoError(t, err)

	_, err = v.Verify(h, "POST", "/send", body)
	assert.ErrorIs(t, err, ErrReplayedRequest)
}

func TestIdenticalWritesAreDistinct(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	key := solana.NewWallet().PrivateKey
	body := []byte(`{"amount":10}`)
	v := newVerifier(now)

	for i := 0; i < 2; i++ {
		h := http.Header{}
		require.NoError(t, SignRequest(h, "POST", "/send", body, now, key))

		_, err := v.Verify(h, "POST", "/send", body)
		require.NoError(t, err)
	}
}
