package provider_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleetgate/internal/instance/provider"
	dErrors "fleetgate/pkg/domain-errors"
	"fleetgate/pkg/platform/circuit"
)

func TestListDecodesInstances(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/instances", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"r-1","name":"web-1","state":"running","zone":"us-east-1a"}]`))
	}))
	defer srv.Close()

	client, err := provider.New(srv.URL)
	require.NoError(t, err)

	instances, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, instances, 1)
	require.Equal(t, "r-1", instances[0].ID)
}

func TestRebootStatusMapping(t *testing.T) {
	var status atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	client, err := provider.New(srv.URL)
	require.NoError(t, err)

	status.Store(http.StatusAccepted)
	require.NoError(t, client.Reboot(context.Background(), "r-1"))

	status.Store(http.StatusNotFound)
	err = client.Reboot(context.Background(), "r-missing")
	require.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))

	status.Store(http.StatusInternalServerError)
	err = client.Reboot(context.Background(), "r-1")
	require.Equal(t, dErrors.CodeDownstream, dErrors.CodeOf(err))
}

func TestBreakerOpensOnRepeatedOutage(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := circuit.New("test-provider",
		circuit.WithFailureThreshold(3),
		circuit.WithCooldown(time.Hour),
	)
	client, err := provider.New(srv.URL, provider.WithBreaker(breaker))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.Error(t, client.Reboot(context.Background(), "r-1"))
	}
	require.True(t, breaker.IsOpen())

	// Once open, calls fail fast without reaching the provider.
	err = client.Reboot(context.Background(), "r-1")
	require.Equal(t, dErrors.CodeDownstream, dErrors.CodeOf(err))
	require.EqualValues(t, 3, calls.Load())
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	breaker := circuit.New("test-provider", circuit.WithFailureThreshold(1))
	client, err := provider.New(srv.URL, provider.WithBreaker(breaker))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		err := client.Reboot(context.Background(), "r-missing")
		require.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
	}
	require.False(t, breaker.IsOpen())
}
