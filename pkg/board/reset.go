package board

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arnavshah/ionm-board/pkg/metrics"
	"github.com/arnavshah/ionm-board/pkg/models"
)

// ResetFilter selects every staff member currently holding a slot
var ResetFilter = models.Filter{
	Field: models.FieldLateNumber,
	Op:    models.OpNeq,
	Value: models.UnassignedLateNumber,
}

// ResetFields returns everyone to the roster
func ResetFields() models.Fields {
	return models.Fields{
		models.FieldLateNumber: models.UnassignedLateNumber,
		models.FieldRoom:       "",
		models.FieldDuty:       "",
	}
}

// Reset clears every slot with a single bulk update. Nothing is written
// unless confirmed is true.
func (e *Engine) Reset(ctx context.Context, confirmed bool) (int64, error) {
	if !confirmed {
		return 0, ErrResetNotConfirmed
	}
	n, err := e.store.BulkUpdate(ctx, ResetFilter, ResetFields())
	if err != nil {
		metrics.WriteFailures.WithLabelValues("reset").Inc()
		e.logger.Error("board reset failed", zap.Error(err))
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	metrics.Resets.Inc()
	e.logger.Info("board reset", zap.Int64("cleared", n))
	return n, nil
}
