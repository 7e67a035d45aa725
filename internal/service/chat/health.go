package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	chatRepo "threadline/internal/domain/repositories/chat"
	chatSvc "threadline/internal/domain/services/chat"
)

// probeTimeout bounds each health probe.
const probeTimeout = 2 * time.Second

// HealthChecker probes the exchange store and the responder.
type HealthChecker struct {
	repo      chatRepo.ExchangeRepository
	responder chatSvc.Responder
	logger    *slog.Logger
	now       func() time.Time
}

var _ chatSvc.HealthService = (*HealthChecker)(nil)

// NewHealthChecker creates a health checker.
func NewHealthChecker(repo chatRepo.ExchangeRepository, responder chatSvc.Responder, logger *slog.Logger) *HealthChecker {
	return &HealthChecker{repo: repo, responder: responder, logger: logger, now: time.Now}
}

// Check runs every probe concurrently. The status is "degraded" when any
// probe fails.
func (h *HealthChecker) Check(ctx context.Context) *chatSvc.HealthStatus {
	var mu sync.Mutex
	services := map[string]bool{}
	record := func(name string, ok bool) {
		mu.Lock()
		services[name] = ok
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pctx, cancel := context.WithTimeout(gctx, probeTimeout)
		defer cancel()
		err := h.repo.Ping(pctx)
		if err != nil {
			h.logger.Warn("store probe failed", "error", err)
		}
		record("store", err == nil)
		return nil
	})
	g.Go(func() error {
		record("llm", h.responder != nil && h.responder.Name() != "")
		return nil
	})
	_ = g.Wait()

	status := chatSvc.HealthOK
	for _, ok := range services {
		if !ok {
			status = chatSvc.HealthDegraded
		}
	}

	return &chatSvc.HealthStatus{
		Status:    status,
		Timestamp: h.now().UTC(),
		Services:  services,
	}
}
