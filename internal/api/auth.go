package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type signersKey struct{}

// signed admits a write only when its headers carry valid signatures. The
// verified keys travel in the request context for requireSigners.
func (s Server) signed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		signers, err := s.verifier.Verify(r.Header, r.Method, r.URL.RequestURI(), body)
		if err != nil {
			writeUnauthenticated(w, err)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), signersKey{}, signers)))
	}
}

// requireSigners answers 401 unless every key in keys signed the request.
func requireSigners(w http.ResponseWriter, r *http.Request, role string, keys ...solana.PublicKey) bool {
	signers, _ := r.Context().Value(signersKey{}).([]solana.PublicKey)

	for _, key := range keys {
		if !hasKey(signers, key) {
			writeUnauthenticated(w, fmt.Errorf("%s %s did not sign the request", role, key))
			return false
		}
	}
	return true
}

func hasKey(keys []solana.PublicKey, key solana.PublicKey) bool {
	for _, k := range keys {
		if k.Equals(key) {
			return true
		}
	}
	return false
}

func writeUnauthenticated(w http.ResponseWriter, err error) {
	zap.L().With(zap.Error(err)).Debug("API: Request not authenticated")
	writeJson(w, http.StatusUnauthorized, errorResponse{Code: "unauthenticated", Message: err.Error()})
}
