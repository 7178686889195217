package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/arnavshah/ionm-board/pkg/feed"
	"github.com/arnavshah/ionm-board/pkg/models"
)

// Gorm is a Store backed by a SQL database. Every committed write is
// published on the broker as one event per affected record.
type Gorm struct {
	db     *gorm.DB
	broker feed.Broker
	logger *zap.Logger
}

// NewGorm wraps an opened database
func NewGorm(db *gorm.DB, broker feed.Broker, logger *zap.Logger) *Gorm {
	if broker == nil {
		broker = feed.NewHub()
	}
	return &Gorm{db: db, broker: broker, logger: logger}
}

// FetchAll returns every staff record ordered by name
func (g *Gorm) FetchAll(ctx context.Context) ([]models.StaffRecord, error) {
	var recs []models.StaffRecord
	if err := g.db.WithContext(ctx).Order("name asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// Get returns one record by id
func (g *Gorm) Get(ctx context.Context, id string) (models.StaffRecord, error) {
	var rec models.StaffRecord
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, ErrNotFound
	}
	return rec, err
}

// FindByName returns the first record with the given name
func (g *Gorm) FindByName(ctx context.Context, name string) (models.StaffRecord, error) {
	var rec models.StaffRecord
	err := g.db.WithContext(ctx).Where("name = ?", name).Order("created_at asc").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, ErrNotFound
	}
	return rec, err
}

// Insert creates a record, assigning an id when missing
func (g *Gorm) Insert(ctx context.Context, rec models.StaffRecord) (models.StaffRecord, error) {
	prepareInsert(&rec)
	if err := g.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return models.StaffRecord{}, err
	}
	g.publish(ctx, models.ChangeEvent{Type: models.ChangeInsert, New: &rec})
	return rec, nil
}

// Update applies a partial update to one record
func (g *Gorm) Update(ctx context.Context, id string, fields models.Fields) error {
	return g.ApplyBatch(ctx, []models.Update{{StaffID: id, Fields: fields}})
}

// ApplyBatch runs all updates in one transaction
func (g *Gorm) ApplyBatch(ctx context.Context, updates []models.Update) error {
	if len(updates) == 0 {
		return nil
	}
	ids := make([]string, 0, len(updates))
	for _, u := range updates {
		if err := ValidateFields(u.Fields); err != nil {
			return err
		}
		ids = append(ids, u.StaffID)
	}

	var changed []models.StaffRecord
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			if err := tx.Model(&models.StaffRecord{}).Where("id = ?", u.StaffID).
				Updates(map[string]interface{}(u.Fields)).Error; err != nil {
				return fmt.Errorf("update %s: %w", u.StaffID, err)
			}
		}
		return tx.Where("id IN ?", ids).Find(&changed).Error
	})
	if err != nil {
		return err
	}

	for i := range changed {
		g.publish(ctx, models.ChangeEvent{Type: models.ChangeUpdate, New: &changed[i]})
	}
	return nil
}

// BulkUpdate applies fields to every record matching filter
func (g *Gorm) BulkUpdate(ctx context.Context, filter models.Filter, fields models.Fields) (int64, error) {
	if err := ValidateFilter(filter); err != nil {
		return 0, err
	}
	if err := ValidateFields(fields); err != nil {
		return 0, err
	}

	op := "="
	if filter.Op == models.OpNeq {
		op = "<>"
	}
	where := fmt.Sprintf("%s %s ?", filter.Field, op)

	var (
		ids      []string
		changed  []models.StaffRecord
		affected int64
	)
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.StaffRecord{}).Where(where, filter.Value).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		res := tx.Model(&models.StaffRecord{}).Where("id IN ?", ids).Updates(map[string]interface{}(fields))
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return tx.Where("id IN ?", ids).Find(&changed).Error
	})
	if err != nil {
		return 0, err
	}

	for i := range changed {
		g.publish(ctx, models.ChangeEvent{Type: models.ChangeUpdate, New: &changed[i]})
	}
	return affected, nil
}

// Delete removes a record
func (g *Gorm) Delete(ctx context.Context, id string) error {
	rec, err := g.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := g.db.WithContext(ctx).Delete(&models.StaffRecord{}, "id = ?", id).Error; err != nil {
		return err
	}
	g.publish(ctx, models.ChangeEvent{Type: models.ChangeDelete, Old: &rec})
	return nil
}

// Subscribe registers change handlers on the broker
func (g *Gorm) Subscribe(h feed.Handlers) (feed.Subscription, error) {
	return g.broker.Subscribe(h)
}

func (g *Gorm) publish(ctx context.Context, ev models.ChangeEvent) {
	if err := g.broker.Publish(ctx, ev); err != nil {
		g.logger.Warn("change event not published", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}
