package gestixsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"bitbucket.org/grafimark/shopfloor_backend/config"
	"bitbucket.org/grafimark/shopfloor_backend/models"
	"bitbucket.org/grafimark/shopfloor_backend/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("gestix-sync")

const busyMessage = "busy, skipped"

// Orchestrator serializes sync cycles: Idle -> Running on invocation,
// back to Idle on completion. An invocation while Running is rejected
// immediately; overlapping timer ticks are dropped, never queued.
type Orchestrator struct {
	mu         sync.Mutex
	running    bool
	lastRunAt  *time.Time
	lastResult *SyncResult

	// runCycle is replaced in tests.
	runCycle func(ctx context.Context) (int, error)
}

func NewOrchestrator() *Orchestrator {
	o := &Orchestrator{}
	o.runCycle = o.syncCycle
	return o
}

// RunSync executes one cycle, or rejects it when one is already
// running. The result always reports success/failure plus a count or
// message; no error escapes to the caller.
func (o *Orchestrator) RunSync(ctx context.Context, trigger string) SyncResult {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return SyncResult{Success: false, Message: busyMessage}
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	logger := config.GetLogger()
	ctx = utils.SetSyncTriggerInContext(ctx, trigger)
	ctx, span := tracer.Start(ctx, "gestix-sync-cycle")
	defer span.End()

	// The in-process flag is authoritative; the Redis lock only guards
	// against a second instance and is best effort.
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "lock:gestix-sync", 10*time.Minute, nil)
		if err == redislock.ErrNotObtained {
			return o.finish(SyncResult{Success: false, Message: busyMessage})
		}
		if err != nil {
			config.LogError(logger, "gestixsync", "RunSync", "redis lock", trigger, err)
		} else {
			defer lock.Release(context.Background())
		}
	}

	start := time.Now()
	count, err := o.runCycle(ctx)
	if err != nil {
		config.LogError(logger, "gestixsync", "RunSync", "cycle", trigger, err)
		return o.finish(SyncResult{Success: false, Message: err.Error()})
	}

	logger.WithFields(logrus.Fields{
		"trigger": trigger,
		"count":   count,
		"took":    time.Since(start).String(),
	}).Info("sync cycle finished")
	return o.finish(SyncResult{Success: true, Count: count})
}

func (o *Orchestrator) finish(result SyncResult) SyncResult {
	now := time.Now()
	o.mu.Lock()
	if result.Message != busyMessage {
		o.lastResult = &result
		o.lastRunAt = &now
	}
	o.mu.Unlock()
	return result
}

func (o *Orchestrator) syncCycle(ctx context.Context) (int, error) {
	db := config.GetDB()
	if db == nil {
		return 0, errors.New("database not connected")
	}

	client, err := newGestixClient()
	if err != nil {
		return 0, err
	}

	watermark, err := models.GetWatermark(db.WithContext(ctx))
	if err != nil {
		return 0, err
	}

	orders, err := fetchDelta(ctx, client, watermark)
	if err != nil {
		return 0, err
	}
	if len(orders) == 0 {
		return 0, nil
	}

	resolver, err := newDBAreaResolver(db.WithContext(ctx))
	if err != nil {
		return 0, err
	}

	docs := BuildDocuments(orders, resolver)
	outcome, err := persistCycle(ctx, db, docs, watermark, newSeenSet())
	if err != nil {
		return 0, err
	}

	// Post-commit reconciliation runs concurrently with whatever comes
	// next; it carries its own context so a finished trigger request
	// cannot cancel it.
	reconCtx := context.Background()
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		reconCtx = utils.SetCorrelationIdInContext(reconCtx, cid)
	}
	go o.superviseReconciliation(reconCtx, db, client, outcome.Docs)

	return outcome.Created, nil
}

func (o *Orchestrator) superviseReconciliation(ctx context.Context, db *gorm.DB, client *gestixClient, docs []persistedDoc) {
	logger := config.GetLogger()
	for err := range runReconciliation(ctx, db, client, docs) {
		config.LogError(logger, "gestixsync", "superviseReconciliation", "worker", nil, err)
	}
}

// StartScheduler fires the first cycle immediately and then re-invokes
// the orchestrator on every tick until ctx is done.
func (o *Orchestrator) StartScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		o.RunSync(ctx, SyncTriggeredTimer)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.RunSync(ctx, SyncTriggeredTimer)
			}
		}
	}()
}

// Status reports the orchestrator state plus the stored watermark.
func (o *Orchestrator) Status(ctx context.Context) SyncStatusResponse {
	o.mu.Lock()
	resp := SyncStatusResponse{
		Running: o.running,
		LastRun: o.lastResult,
	}
	if o.lastRunAt != nil {
		at := o.lastRunAt.UTC().Format(time.RFC3339)
		resp.LastRunAt = &at
	}
	o.mu.Unlock()

	if db := config.GetDB(); db != nil {
		if watermark, err := models.GetWatermark(db.WithContext(ctx)); err == nil {
			resp.Watermark = watermark
		}
	}
	return resp
}
