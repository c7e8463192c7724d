package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yairfalse/kartta/sync"
	"github.com/yairfalse/kartta/telemetry"
	"github.com/yairfalse/kartta/types"
)

// Config holds daemon configuration
type Config struct {
	Interval    time.Duration
	MetricsPort int
	Projects    []string
}

// Daemon runs the sync loop continuously and serves metrics and health
type Daemon struct {
	syncer      *sync.Syncer
	interval    time.Duration
	metricsPort int
	projects    []string
	logger      *telemetry.Logger
	metrics     *Metrics
	startTime   time.Time
	syncCount   atomic.Int64
	lastTag     atomic.Int64
	listener    net.Listener
}

// NewDaemon creates a daemon around an existing syncer
func NewDaemon(syncer *sync.Syncer, config Config) (*Daemon, error) {
	if config.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", config.Interval)
	}
	if len(config.Projects) == 0 {
		return nil, fmt.Errorf("at least one project is required")
	}

	metrics, err := NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon metrics: %w", err)
	}

	return &Daemon{
		syncer:      syncer,
		interval:    config.Interval,
		metricsPort: config.MetricsPort,
		projects:    config.Projects,
		logger:      telemetry.NewLogger("daemon"),
		metrics:     metrics,
		startTime:   time.Now(),
	}, nil
}

// Start runs the sync loop and the metrics server until ctx is cancelled
func (d *Daemon) Start(ctx context.Context) error {
	var group run.Group

	loopCtx, cancelLoop := context.WithCancel(ctx)
	group.Add(
		func() error { return d.syncLoop(loopCtx) },
		func(error) { cancelLoop() },
	)

	if d.metricsPort > 0 {
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", d.metricsPort))
		if err != nil {
			cancelLoop()
			return fmt.Errorf("failed to listen on metrics port %d: %w", d.metricsPort, err)
		}
		d.listener = listener

		server := &http.Server{
			Handler:           d.httpHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		group.Add(
			func() error {
				err := server.Serve(listener)
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			},
			func(error) {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			},
		)
	}

	return group.Run()
}

// syncLoop runs one sync immediately, then on every tick
func (d *Daemon) syncLoop(ctx context.Context) error {
	d.runSync(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.runSync(ctx)
		}
	}
}

func (d *Daemon) runSync(ctx context.Context) {
	start := time.Now()
	updateTag, err := d.syncer.SyncAll(ctx, d.projects)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		d.logger.Error().
			Err(err).
			Int64("update_tag", updateTag).
			Msg("sync run failed")
	}

	d.syncCount.Add(1)
	d.lastTag.Store(updateTag)
	d.metrics.RecordSyncRun(ctx, status)
	d.metrics.RecordSyncRunDuration(ctx, duration.Seconds(), status)
	d.recordGraphGauges(ctx)

	d.logger.Info().
		Str("status", status).
		Int64("update_tag", updateTag).
		Dur("duration", duration).
		Msg("sync run complete")
}

func (d *Daemon) recordGraphGauges(ctx context.Context) {
	store := d.syncer.Store()
	for _, label := range []types.Label{
		types.LabelProject,
		types.LabelCloudFunction,
		types.LabelBucket,
		types.LabelBucketLabel,
	} {
		d.metrics.RecordGraphNodes(ctx, int64(store.CountNodes(label)), string(label))
	}
}

func (d *Daemon) httpHandler() http.Handler {
	mux := http.NewServeMux()
	if telemetry.PrometheusRegistry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))
	}

	healthy := func(w http.ResponseWriter, _ *http.Request) {
		health := d.Health()
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "%s uptime=%ds syncs=%d\n", health.Status, health.Uptime, health.SyncCount)
	}
	mux.HandleFunc("/health", healthy)
	mux.HandleFunc("/-/healthy", healthy)
	mux.HandleFunc("/-/ready", func(w http.ResponseWriter, _ *http.Request) {
		// Ready once the first sync has run
		if d.syncCount.Load() == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "waiting for first sync")
			return
		}
		fmt.Fprintln(w, "ready")
	})

	return mux
}

// MetricsPort returns the bound port, or 0 when the server is not running
func (d *Daemon) MetricsPort() int {
	if d.listener == nil {
		return 0
	}
	addr, ok := d.listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0
	}
	return addr.Port
}

// Health returns daemon health status
func (d *Daemon) Health() HealthStatus {
	return HealthStatus{
		Status:        "healthy",
		Uptime:        int64(time.Since(d.startTime).Seconds()),
		SyncCount:     d.syncCount.Load(),
		LastUpdateTag: d.lastTag.Load(),
	}
}

// HealthStatus represents daemon health
type HealthStatus struct {
	Status        string
	Uptime        int64
	SyncCount     int64
	LastUpdateTag int64
}

// SyncCount returns total sync runs
func (d *Daemon) SyncCount() int64 {
	return d.syncCount.Load()
}
