package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/Checker-Finance/serasa-adapter/internal/metrics"
	"github.com/Checker-Finance/serasa-adapter/internal/publisher"
	"github.com/Checker-Finance/serasa-adapter/pkg/model"
)

const (
	EventAuditPruned = "credit.audit_pruned"
	TopicAuditPruned = "evt.credit.audit_pruned.v1"

	DefaultPruneInterval  = 24 * time.Hour
	DefaultAuditRetention = 180 * 24 * time.Hour
)

// DBExecutor defines the subset of pgxpool.Pool the pruner needs.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditPruned is the payload of credit.audit_pruned.
type AuditPruned struct {
	Deleted    int64     `json:"deleted"`
	Cutoff     time.Time `json:"cutoff"`
	DurationMS int64     `json:"duration_ms"`
}

// AuditPruner periodically deletes report fetch audit rows older than the retention
// window and announces each pass.
type AuditPruner struct {
	logger    *zap.Logger
	db        DBExecutor
	publisher publisher.EventPublisher
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
}

// NewAuditPruner builds a pruner. Non-positive interval or retention fall back to the defaults.
func NewAuditPruner(logger *zap.Logger, db DBExecutor, pub publisher.EventPublisher, interval, retention time.Duration) *AuditPruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	if retention <= 0 {
		retention = DefaultAuditRetention
	}
	return &AuditPruner{
		logger:    logger,
		db:        db,
		publisher: pub,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the prune loop until Stop is called or ctx is canceled.
func (p *AuditPruner) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("audit_pruner.started",
		zap.Duration("interval", p.interval),
		zap.Duration("retention", p.retention))

	for {
		select {
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.logger.Error("audit_pruner.prune_failed", zap.Error(err))
			}
		case <-p.stopCh:
			p.logger.Info("audit_pruner.stopped (manual stop)")
			return
		case <-ctx.Done():
			p.logger.Info("audit_pruner.stopped (context canceled)")
			return
		}
	}
}

// Stop halts the pruner.
func (p *AuditPruner) Stop() {
	close(p.stopCh)
}

// RunOnce executes one prune pass and returns the number of deleted rows.
func (p *AuditPruner) RunOnce(ctx context.Context) (int64, error) {
	start := p.now()
	cutoff := start.Add(-p.retention).UTC()

	tag, err := p.db.Exec(ctx, `DELETE FROM credit.report_fetch WHERE fetched_at < $1`, cutoff)
	if err != nil {
		metrics.IncError("audit_pruner", "delete_failed")
		return 0, fmt.Errorf("prune report_fetch: %w", err)
	}
	deleted := tag.RowsAffected()

	if p.publisher != nil {
		env, err := model.NewEnvelope(TopicAuditPruned, EventAuditPruned, "", "", uuid.Nil, AuditPruned{
			Deleted:    deleted,
			Cutoff:     cutoff,
			DurationMS: p.now().Sub(start).Milliseconds(),
		})
		if err == nil {
			if err := p.publisher.PublishEnvelope(ctx, TopicAuditPruned, env); err != nil {
				p.logger.Warn("audit_pruner.publish_failed", zap.Error(err))
			}
		}
	}

	p.logger.Info("audit_pruner.success",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff))
	return deleted, nil
}
