package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/hlog"
)

const (
	statusOK        = "ok"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"

	probeConnected    = "connected"
	probeDisconnected = "disconnected"
)

var errCacheDown = errors.New("cache supervisor reports disconnected")

type healthResponse struct {
	Status        string  `json:"status"`
	MongoDB       string  `json:"mongodb"`
	Redis         string  `json:"redis"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// handleHealth probes the store and the cache concurrently. A store failure
// makes the service unhealthy (503); a cache failure only degrades it, since
// every read path falls back to the store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var (
		storeErr, cacheErr error
		wg                 sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		storeErr = s.probe(r.Context(), s.catalog.PingStore)
	}()
	go func() {
		defer wg.Done()
		if s.cacheStatus != nil && !s.cacheStatus.Connected() {
			cacheErr = errCacheDown
			return
		}
		cacheErr = s.probe(r.Context(), s.catalog.PingCache)
	}()
	wg.Wait()

	resp := healthResponse{
		Status:        statusOK,
		MongoDB:       probeConnected,
		Redis:         probeConnected,
		UptimeSeconds: math.Round(time.Since(s.started).Seconds()*1000) / 1000,
	}
	status := http.StatusOK

	if cacheErr != nil {
		resp.Redis = probeDisconnected
		resp.Status = statusDegraded
	}
	if storeErr != nil {
		resp.MongoDB = probeDisconnected
		resp.Status = statusUnhealthy
		status = http.StatusServiceUnavailable
	}

	if status != http.StatusOK || cacheErr != nil {
		hlog.FromRequest(r).Warn().
			AnErr("store_error", storeErr).
			AnErr("cache_error", cacheErr).
			Str("status", resp.Status).
			Msg("Health check failing")
	}

	writeJSON(w, status, resp)
}

func (s *Server) probe(ctx context.Context, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ProbeTimeout)
	defer cancel()
	return ping(ctx)
}
