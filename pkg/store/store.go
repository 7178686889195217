package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/arnavshah/ionm-board/pkg/feed"
	"github.com/arnavshah/ionm-board/pkg/models"
)

var (
	ErrNotFound     = errors.New("staff record not found")
	ErrUnknownField = errors.New("unknown staff field")
	ErrBadFilter    = errors.New("invalid filter")
)

// Store is the staff record store. Updates addressed to an id that does
// not exist affect nothing and do not fail.
type Store interface {
	FetchAll(ctx context.Context) ([]models.StaffRecord, error)
	Get(ctx context.Context, id string) (models.StaffRecord, error)
	FindByName(ctx context.Context, name string) (models.StaffRecord, error)
	Insert(ctx context.Context, rec models.StaffRecord) (models.StaffRecord, error)
	Update(ctx context.Context, id string, fields models.Fields) error
	ApplyBatch(ctx context.Context, updates []models.Update) error
	BulkUpdate(ctx context.Context, filter models.Filter, fields models.Fields) (int64, error)
	Delete(ctx context.Context, id string) error
	Subscribe(h feed.Handlers) (feed.Subscription, error)
}

// ValidateFields rejects columns the store does not know about
func ValidateFields(fields models.Fields) error {
	for k, v := range fields {
		switch k {
		case models.FieldHelpNeeded:
			if _, ok := v.(bool); !ok {
				return fmt.Errorf("%w: %s must be a boolean", ErrUnknownField, k)
			}
		default:
			if !isStringField(k) {
				return fmt.Errorf("%w: %s", ErrUnknownField, k)
			}
			if _, ok := v.(string); !ok {
				return fmt.Errorf("%w: %s must be a string", ErrUnknownField, k)
			}
		}
	}
	return nil
}

// ValidateFilter checks the filter column and operator
func ValidateFilter(f models.Filter) error {
	if !isStringField(f.Field) {
		return fmt.Errorf("%w: field %q", ErrBadFilter, f.Field)
	}
	if f.Op != models.OpEq && f.Op != models.OpNeq {
		return fmt.Errorf("%w: op %q", ErrBadFilter, f.Op)
	}
	return nil
}

func isStringField(k string) bool {
	switch k {
	case models.FieldLateNumber, models.FieldDuty, models.FieldRoom,
		models.FieldName, models.FieldStatus, models.FieldCaseNumber,
		models.FieldCaseType, models.FieldBeginTime, models.FieldDoneTime,
		models.FieldLunchStatus, models.FieldLunchCover, models.FieldBreakStatus,
		models.FieldBreakCover, models.FieldLateCover:
		return true
	}
	return false
}

// Apply writes validated fields onto a record
func Apply(rec *models.StaffRecord, fields models.Fields) {
	for k, v := range fields {
		if k == models.FieldHelpNeeded {
			rec.HelpNeeded, _ = v.(bool)
			continue
		}
		s, _ := v.(string)
		if p := stringField(rec, k); p != nil {
			*p = s
		}
	}
}

func stringField(rec *models.StaffRecord, k string) *string {
	switch k {
	case models.FieldLateNumber:
		return &rec.LateNumber
	case models.FieldDuty:
		return &rec.Duty
	case models.FieldRoom:
		return &rec.Room
	case models.FieldName:
		return &rec.Name
	case models.FieldStatus:
		return &rec.Status
	case models.FieldCaseNumber:
		return &rec.CaseNumber
	case models.FieldCaseType:
		return &rec.CaseType
	case models.FieldBeginTime:
		return &rec.BeginTime
	case models.FieldDoneTime:
		return &rec.DoneTime
	case models.FieldLunchStatus:
		return &rec.LunchStatus
	case models.FieldLunchCover:
		return &rec.LunchCover
	case models.FieldBreakStatus:
		return &rec.BreakStatus
	case models.FieldBreakCover:
		return &rec.BreakCover
	case models.FieldLateCover:
		return &rec.LateCover
	}
	return nil
}

// Matches reports whether a record satisfies the filter
func Matches(rec models.StaffRecord, f models.Filter) bool {
	p := stringField(&rec, f.Field)
	if p == nil {
		return false
	}
	eq := *p == f.Value
	if f.Op == models.OpNeq {
		return !eq
	}
	return eq
}

// SortByName orders records by name, keeping the relative order of equal names
func SortByName(recs []models.StaffRecord) {
	slices.SortStableFunc(recs, func(a, b models.StaffRecord) int {
		return strings.Compare(a.Name, b.Name)
	})
}
