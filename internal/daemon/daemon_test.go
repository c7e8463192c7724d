package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yairfalse/kartta/config"
	"github.com/yairfalse/kartta/graph"
	"github.com/yairfalse/kartta/intel/gcp"
	"github.com/yairfalse/kartta/sync"
)

// newTestSyncer backs the syncer with a fake GCP API serving one function
func newTestSyncer(t *testing.T) *sync.Syncer {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"functions": []map[string]any{
				{
					"name":       "projects/test-project/locations/us-central1/functions/function-1",
					"state":      "ACTIVE",
					"runtime":    "python310",
					"entryPoint": "handler",
				},
			},
		})
	}))
	t.Cleanup(server.Close)

	client, err := gcp.NewClient(context.Background(),
		gcp.WithHTTPClient(server.Client()),
		gcp.WithFunctionsEndpoint(server.URL))
	require.NoError(t, err)

	store, err := graph.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return sync.New(client, store, nil, nil, config.Assets{Functions: true})
}

func TestNewDaemon(t *testing.T) {
	daemon, err := NewDaemon(newTestSyncer(t), Config{
		Interval:    5 * time.Minute,
		MetricsPort: 2112,
		Projects:    []string{"test-project"},
	})
	require.NoError(t, err)

	assert.NotNil(t, daemon)
	assert.Equal(t, 5*time.Minute, daemon.interval)
	assert.Equal(t, 2112, daemon.metricsPort)
	assert.NotNil(t, daemon.metrics)
}

func TestNewDaemon_RejectsBadConfig(t *testing.T) {
	syncer := newTestSyncer(t)

	_, err := NewDaemon(syncer, Config{Interval: 0, Projects: []string{"p1"}})
	assert.Error(t, err, "zero interval")

	_, err = NewDaemon(syncer, Config{Interval: time.Minute})
	assert.Error(t, err, "no projects")
}

func TestDaemon_StartRunsInitialSync(t *testing.T) {
	daemon, err := NewDaemon(newTestSyncer(t), Config{
		Interval: time.Hour, // only the initial sync runs
		Projects: []string{"test-project"},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- daemon.Start(ctx)
	}()

	// Wait for the initial sync to complete
	deadline := time.After(5 * time.Second)
	for daemon.SyncCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for initial sync")
		case err := <-errCh:
			t.Fatalf("Daemon exited early: %v", err)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	cancel()
	err = <-errCh
	assert.NoError(t, err)

	assert.Equal(t, int64(1), daemon.SyncCount())
	health := daemon.Health()
	assert.Equal(t, "healthy", health.Status)
	assert.Positive(t, health.LastUpdateTag)
}

func TestDaemon_HealthEndpoints(t *testing.T) {
	daemon, err := NewDaemon(newTestSyncer(t), Config{
		Interval: time.Hour,
		Projects: []string{"test-project"},
	})
	require.NoError(t, err)

	handler := daemon.httpHandler()

	// Not ready before the first sync
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/-/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	daemon.runSync(context.Background())

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/-/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.Contains(t, w.Body.String(), fmt.Sprintf("syncs=%d", daemon.SyncCount()))
}
