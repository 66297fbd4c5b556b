package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"daorewards/config"
	"daorewards/observability/metrics"
)

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet(serveCommand, flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the rewardsd config file")
	listen := fs.String("listen", "", "Metrics listen address (overrides metrics.ListenAddress)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer env.close()
	addr := env.cfg.Metrics.ListenAddress
	if *listen != "" {
		addr = *listen
	}
	if addr == "" {
		return errors.New("serve: no metrics listen address configured")
	}
	metrics.Rewards()

	server := &http.Server{Addr: addr, Handler: newMetricsMux(env.cfg.Metrics, env.logger), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		env.logger.Info("serving metrics", slog.String("address", addr))
		errCh <- server.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func newMetricsMux(cfg config.Metrics, logger *slog.Logger) http.Handler {
	limiter := newScrapeLimiter(cfg.RequestsPerMinute, cfg.Burst, logger)
	mux := http.NewServeMux()
	mux.Handle("/metrics", limiter.wrap(otelhttp.NewHandler(metrics.Handler(), "metrics")))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// scrapeLimiter keeps one token bucket per client address. A zero rate
// disables limiting.
type scrapeLimiter struct {
	limit  rate.Limit
	burst  int
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func newScrapeLimiter(perMinute float64, burst int, logger *slog.Logger) *scrapeLimiter {
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &scrapeLimiter{
		limit:   rate.Limit(perMinute / 60.0),
		burst:   burst,
		logger:  logger,
		clients: make(map[string]*rate.Limiter),
	}
}

func (l *scrapeLimiter) wrap(next http.Handler) http.Handler {
	if l.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientID(r)
		if !l.obtain(client).Allow() {
			l.logger.Debug("metrics scrape throttled", slog.String("client", client))
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *scrapeLimiter) obtain(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.clients[client]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.clients[client] = limiter
	}
	return limiter
}

func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
