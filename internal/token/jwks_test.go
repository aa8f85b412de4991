package token

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func jwksHandler(t *testing.T, kid string, pub *rsa.PublicKey, fetches *atomic.Int64) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		doc := map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(doc))
	}
}

func TestJWKSKeySource(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var fetches atomic.Int64
	srv := httptest.NewServer(jwksHandler(t, "key-1", &priv.PublicKey, &fetches))
	defer srv.Close()

	t.Run("fetches and caches keys", func(t *testing.T) {
		fetches.Store(0)
		source := NewJWKSKeySource(srv.URL, time.Hour)

		key, err := source.Key(context.Background(), "key-1")
		require.NoError(t, err)
		require.Equal(t, priv.PublicKey.N, key.N)

		// Second lookup is served from cache.
		_, err = source.Key(context.Background(), "key-1")
		require.NoError(t, err)
		require.Equal(t, int64(1), fetches.Load())
	})

	t.Run("unknown kid triggers one refresh then fails", func(t *testing.T) {
		fetches.Store(0)
		source := NewJWKSKeySource(srv.URL, time.Hour)

		_, err := source.Key(context.Background(), "rotated-away")
		require.Error(t, err)
		require.Equal(t, int64(1), fetches.Load())
	})

	t.Run("stale cache refetches", func(t *testing.T) {
		fetches.Store(0)
		source := NewJWKSKeySource(srv.URL, 50*time.Millisecond)

		_, err := source.Key(context.Background(), "key-1")
		require.NoError(t, err)

		time.Sleep(80 * time.Millisecond)

		_, err = source.Key(context.Background(), "key-1")
		require.NoError(t, err)
		require.Equal(t, int64(2), fetches.Load())
	})

	t.Run("provider outage fails closed", func(t *testing.T) {
		down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer down.Close()

		source := NewJWKSKeySource(down.URL, time.Hour)
		_, err := source.Key(context.Background(), "key-1")
		require.Error(t, err)
	})
}
