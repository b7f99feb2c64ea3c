package service

import (
	"context"
	"time"

	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/search"
	"github.com/meridiansearch/meridian/domain/storage"
)

// Latency above which a passing check degrades overall status.
const (
	dbDegradedAfter    = 250 * time.Millisecond
	embedDegradedAfter = time.Second
	healthProbeTimeout = 2 * time.Second
)

// Health statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// HealthCheck is one dependency probe result.
type HealthCheck struct {
	OK      bool
	Latency time.Duration
	Error   string
}

// HealthReport is the aggregate health response.
type HealthReport struct {
	Status string
	Checks map[string]HealthCheck
}

// Health probes the database and the embedding backend.
type Health struct {
	documents document.Store
	embedder  search.Embedder
}

// NewHealth creates a Health service.
func NewHealth(documents document.Store, embedder search.Embedder) *Health {
	return &Health{documents: documents, embedder: embedder}
}

// Check probes every dependency. Status is ok only when all checks pass
// quickly; slow-but-responsive dependencies degrade without failing.
func (h *Health) Check(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	checks := map[string]HealthCheck{
		"db":        h.checkDB(ctx),
		"embedding": h.checkEmbedding(ctx),
	}

	status := StatusOK
	for name, check := range checks {
		if !check.OK {
			status = StatusDown
			break
		}
		if name == "db" && check.Latency > dbDegradedAfter {
			status = StatusDegraded
		}
		if name == "embedding" && check.Latency > embedDegradedAfter {
			status = StatusDegraded
		}
	}
	return HealthReport{Status: status, Checks: checks}
}

func (h *Health) checkDB(ctx context.Context) HealthCheck {
	started := time.Now()
	_, err := h.documents.Count(ctx, storage.WithLimit(1))
	check := HealthCheck{OK: err == nil, Latency: time.Since(started)}
	if err != nil {
		check.Error = err.Error()
	}
	return check
}

func (h *Health) checkEmbedding(ctx context.Context) HealthCheck {
	started := time.Now()
	_, err := h.embedder.Embed(ctx, "health probe")
	check := HealthCheck{OK: err == nil, Latency: time.Since(started)}
	if err != nil {
		check.Error = err.Error()
	}
	return check
}
