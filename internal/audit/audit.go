// Package audit records security-relevant actions. Recording never fails the
// caller: a broken audit sink is logged and the business operation proceeds.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"contractapi/internal/logger"
	"contractapi/internal/model"
	"contractapi/internal/repository"
)

const writeTimeout = 5 * time.Second

// Recorder writes audit entries through an AuditRepository.
type Recorder struct {
	repo  repository.AuditRepository
	log   *zap.Logger
	async bool
	now   func() time.Time

	wg sync.WaitGroup
}

// NewRecorder returns a Recorder. With async set, entries are written in a
// goroutine detached from the request context; Wait drains them on shutdown.
func NewRecorder(repo repository.AuditRepository, log *zap.Logger, async bool) *Recorder {
	return &Recorder{repo: repo, log: log, async: async, now: time.Now}
}

// Record stores e. CreatedAt defaults to the current time.
func (r *Recorder) Record(ctx context.Context, e model.AuditEntry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	if !r.async {
		r.write(ctx, &e)
		return
	}
	detached := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.write(detached, &e)
	}()
}

// Wait blocks until pending asynchronous writes finish.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) write(ctx context.Context, e *model.AuditEntry) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := r.repo.Insert(ctx, e); err != nil {
		logger.WithContext(ctx, r.log).Warn("audit_write_failed",
			zap.String("action", e.Action),
			zap.String("resource_id", e.ResourceID),
			zap.Error(err),
		)
	}
}
