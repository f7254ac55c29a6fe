package authority

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	uuid "github.com/nu7hatch/gouuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	TimestampHeader = "X-Settlement-Timestamp"
	NonceHeader     = "X-Settlement-Nonce"
	SignatureHeader = "X-Settlement-Signature"
)

var (
	ErrUnsignedRequest = errors.New("request is not signed")
	ErrBadSignature    = errors.New("request signature does not verify")
	ErrStaleRequest    = errors.New("request timestamp outside the signature window")
	ErrReplayedRequest = errors.New("request signature already used")
)

// RequestMessage is the payload a principal signs to authorise an API call.
// The nonce keeps two identical writes in the same second distinct.
func RequestMessage(method, path string, timestamp int64, nonce string, body []byte) []byte {
	msg := []byte(fmt.Sprintf("%s\n%s\n%d\n%s\n", strings.ToUpper(method), path, timestamp, nonce))
	return append(msg, body...)
}

// SignRequest adds one signature header per key, all over the same timestamp
// and a fresh nonce.
func SignRequest(h http.Header, method, path string, body []byte, now time.Time, keys ...solana.PrivateKey) error {
	nonce, err := uuid.NewV4()
	if err != nil {
		return err
	}
	timestamp := now.Unix()
	msg := RequestMessage(method, path, timestamp, nonce.String(), body)

	h.Set(TimestampHeader, strconv.FormatInt(timestamp, 10))
	h.Set(NonceHeader, nonce.String())
	h.Del(SignatureHeader)
	for _, key := range keys {
		sig, err := key.Sign(msg)
		if err != nil {
			return err
		}
		h.Add(SignatureHeader, key.PublicKey().String()+":"+sig.String())
	}

	return nil
}

// RequestVerifier authenticates principals from signed request headers. A
// signature is accepted once, and only while its timestamp is within window of
// the verifier's clock.
type RequestVerifier struct {
	window time.Duration
	seen   *cache.Cache
	now    func() time.Time
}

func NewRequestVerifier(window time.Duration) *RequestVerifier {
	return &RequestVerifier{
		window: window,
		seen:   cache.New(2*window, 4*window),
		now:    time.Now,
	}
}

// Verify returns the distinct keys that signed the request.
func (v *RequestVerifier) Verify(h http.Header, method, path string, body []byte) ([]solana.PublicKey, error) {
	values := h.Values(SignatureHeader)
	if len(values) == 0 {
		return nil, ErrUnsignedRequest
	}

	timestamp, err := strconv.ParseInt(h.Get(TimestampHeader), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TimestampHeader, ErrStaleRequest)
	}
	if skew := v.now().Sub(time.Unix(timestamp, 0)); skew > v.window || skew < -v.window {
		return nil, fmt.Errorf("skew %s: %w", skew, ErrStaleRequest)
	}

	msg := RequestMessage(method, path, timestamp, h.Get(NonceHeader), body)
	signers := make([]solana.PublicKey, 0, len(values))
	sigs := make([]string, 0, len(values))
	for _, value := range values {
		key, sig, err := parseSignature(value)
		if err != nil {
			return nil, err
		}
		if !sig.Verify(key, msg) {
			return nil, fmt.Errorf("%s: %w", key, ErrBadSignature)
		}
		if _, found := v.seen.Get(sig.String()); found {
			return nil, fmt.Errorf("%s: %w", key, ErrReplayedRequest)
		}
		if containsKey(signers, key) {
			continue
		}
		signers = append(signers, key)
		sigs = append(sigs, sig.String())
	}

	for _, sig := range sigs {
		if err := v.seen.Add(sig, struct{}{}, cache.DefaultExpiration); err != nil {
			return nil, ErrReplayedRequest
		}
	}

	zap.L().With(zap.Int("signers", len(signers)), zap.String("path", path)).Debug("Authority: Request verified")

	return signers, nil
}

func parseSignature(value string) (solana.PublicKey, solana.Signature, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return solana.PublicKey{}, solana.Signature{}, fmt.Errorf("%q: %w", value, ErrBadSignature)
	}

	key, err := solana.PublicKeyFromBase58(parts[0])
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, fmt.Errorf("key %q: %v: %w", parts[0], err, ErrBadSignature)
	}
	sig, err := solana.SignatureFromBase58(parts[1])
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, fmt.Errorf("signature of %s: %v: %w", key, err, ErrBadSignature)
	}

	return key, sig, nil
}

func containsKey(keys []solana.PublicKey, key solana.PublicKey) bool {
	for _, k := range keys {
		if k.Equals(key) {
			return true
		}
	}
	return false
}
