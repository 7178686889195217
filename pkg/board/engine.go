package board

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arnavshah/ionm-board/pkg/metrics"
	"github.com/arnavshah/ionm-board/pkg/models"
)

// Writer is the part of the staff store the engine writes through
type Writer interface {
	ApplyBatch(ctx context.Context, updates []models.Update) error
	BulkUpdate(ctx context.Context, filter models.Filter, fields models.Fields) (int64, error)
}

// Engine turns board gestures into staff record updates
type Engine struct {
	store  Writer
	logger *zap.Logger
}

// NewEngine creates an engine writing to store
func NewEngine(store Writer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger}
}

func evict(id string) models.Update {
	return models.Update{StaffID: id, Fields: models.Fields{
		models.FieldLateNumber: models.UnassignedLateNumber,
		models.FieldRoom:       "",
		models.FieldDuty:       "",
	}}
}

func dutyFields(duty string) models.Fields {
	return models.Fields{
		models.FieldDuty: duty,
		models.FieldRoom: RoomFor(duty),
	}
}

// PlanMove computes the updates for dropping a staff member onto a slot.
// The occupant update, if any, comes first.
func (e *Engine) PlanMove(staff []models.StaffRecord, slots [SlotCount]models.Slot, p models.DropPayload) ([]models.Update, error) {
	if p.DraggedStaffID == "" {
		return nil, fmt.Errorf("%w: missing staff id", ErrInvalidPayload)
	}
	if p.Source != models.SourceRoster && p.Source != models.SourceSlot {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, p.Source)
	}
	idx, ok := LabelIndex(p.TargetSlotLabel)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, p.TargetSlotLabel)
	}
	targetLateNumber, _ := LateNumberFor(idx)

	updates := make([]models.Update, 0, 2)
	occupant := slots[idx].AssignedStaffID

	if occupant != "" && occupant != p.DraggedStaffID {
		switch p.Source {
		case models.SourceRoster:
			updates = append(updates, evict(occupant))
		case models.SourceSlot:
			if dragged, found := findStaff(staff, p.DraggedStaffID); found {
				updates = append(updates, models.Update{StaffID: occupant, Fields: models.Fields{
					models.FieldLateNumber: dragged.LateNumber,
				}})
			} else {
				e.logger.Warn("dragged staff vanished before drop, evicting occupant",
					zap.String("staff_id", p.DraggedStaffID),
					zap.String("slot", p.TargetSlotLabel))
				updates = append(updates, evict(occupant))
			}
		}
	}

	fields := dutyFields(p.DraggedDuty)
	fields[models.FieldLateNumber] = targetLateNumber
	updates = append(updates, models.Update{StaffID: p.DraggedStaffID, Fields: fields})
	return updates, nil
}

// Move plans a drop and submits the resulting updates as one batch
func (e *Engine) Move(ctx context.Context, staff []models.StaffRecord, slots [SlotCount]models.Slot, p models.DropPayload) ([]models.Update, error) {
	updates, err := e.PlanMove(staff, slots, p)
	if err != nil {
		return nil, err
	}
	if err := e.apply(ctx, "move", updates); err != nil {
		return nil, err
	}
	metrics.Moves.WithLabelValues(moveOutcome(updates)).Inc()
	e.logger.Info("staff moved",
		zap.String("staff_id", p.DraggedStaffID),
		zap.String("source", string(p.Source)),
		zap.String("slot", p.TargetSlotLabel),
		zap.Int("updates", len(updates)))
	return updates, nil
}

// PlanDutyEdit returns the update for a new duty on a slot, or false when
// the slot has no occupant
func (e *Engine) PlanDutyEdit(slot models.Slot, duty string) (models.Update, bool) {
	if !slot.Occupied() {
		return models.Update{}, false
	}
	return models.Update{StaffID: slot.AssignedStaffID, Fields: dutyFields(duty)}, true
}

// EditDuty writes a new duty for the slot occupant
func (e *Engine) EditDuty(ctx context.Context, slot models.Slot, duty string) error {
	u, ok := e.PlanDutyEdit(slot, duty)
	if !ok {
		return nil
	}
	if err := e.apply(ctx, "duty", []models.Update{u}); err != nil {
		return err
	}
	metrics.DutyCommits.Inc()
	return nil
}

func (e *Engine) apply(ctx context.Context, op string, updates []models.Update) error {
	if err := e.store.ApplyBatch(ctx, updates); err != nil {
		metrics.WriteFailures.WithLabelValues(op).Inc()
		e.logger.Error("board write rejected", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

func findStaff(staff []models.StaffRecord, id string) (models.StaffRecord, bool) {
	for _, s := range staff {
		if s.ID == id {
			return s, true
		}
	}
	return models.StaffRecord{}, false
}

func moveOutcome(updates []models.Update) string {
	if len(updates) < 2 {
		return "place"
	}
	if updates[0].Fields[models.FieldLateNumber] == models.UnassignedLateNumber {
		return "evict"
	}
	return "swap"
}
