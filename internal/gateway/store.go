package gateway

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/research-agent/backend/internal/metrics"
	"github.com/research-agent/backend/internal/storage/models"
	"github.com/research-agent/backend/pkg/logger"
)

// Store persists evaluation records. *sqlite.Client implements it.
type Store interface {
	Save(ctx context.Context, record *models.EvaluationRecord) error
	Get(ctx context.Context, id string) (*models.EvaluationRecord, error)
	Find(ctx context.Context, filter models.RecordFilter, page, limit int) (*models.RecordPage, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

func (g *Gateway) SaveRecord(ctx context.Context, record *models.EvaluationRecord) error {
	if err := g.store.Save(ctx, record); err != nil {
		logger.Error("Failed to save evaluation record",
			zap.String("record_id", record.ID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to save evaluation record: %w", err)
	}

	metrics.RecordsSaved.WithLabelValues(strconv.FormatBool(record.Passed)).Inc()
	logger.Info("Evaluation record saved",
		zap.String("record_id", record.ID),
		zap.Bool("passed", record.Passed),
		zap.Float64("overall_score", record.OverallScore),
	)
	return nil
}

func (g *Gateway) FindRecord(ctx context.Context, id string) (*models.EvaluationRecord, error) {
	return g.store.Get(ctx, id)
}

func (g *Gateway) ListRecords(ctx context.Context, filter models.RecordFilter, page, limit int) (*models.RecordPage, error) {
	return g.store.Find(ctx, filter, page, limit)
}

func (g *Gateway) Stats(ctx context.Context) (*models.Stats, error) {
	return g.store.Stats(ctx)
}
