package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arnavshah/ionm-board/pkg/feed"
	"github.com/arnavshah/ionm-board/pkg/models"
)

// Memory is an in-memory Store. FetchAll returns records in insertion order.
type Memory struct {
	mu      sync.Mutex
	order   []string
	records map[string]models.StaffRecord
	broker  feed.Broker

	// FailWrites makes every write return the given error when set.
	FailWrites error
}

// NewMemory creates an empty store publishing on broker. A nil broker gets
// a private hub.
func NewMemory(broker feed.Broker) *Memory {
	if broker == nil {
		broker = feed.NewHub()
	}
	return &Memory{records: make(map[string]models.StaffRecord), broker: broker}
}

// FetchAll returns a copy of every record
func (m *Memory) FetchAll(_ context.Context) ([]models.StaffRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.StaffRecord, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out, nil
}

// Get returns one record by id
func (m *Memory) Get(_ context.Context, id string) (models.StaffRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return models.StaffRecord{}, ErrNotFound
	}
	return rec, nil
}

// FindByName returns the first record with the given name
func (m *Memory) FindByName(_ context.Context, name string) (models.StaffRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if m.records[id].Name == name {
			return m.records[id], nil
		}
	}
	return models.StaffRecord{}, ErrNotFound
}

// Insert adds a record, assigning an id when missing
func (m *Memory) Insert(ctx context.Context, rec models.StaffRecord) (models.StaffRecord, error) {
	if m.FailWrites != nil {
		return models.StaffRecord{}, m.FailWrites
	}
	prepareInsert(&rec)

	m.mu.Lock()
	if _, exists := m.records[rec.ID]; exists {
		m.mu.Unlock()
		return models.StaffRecord{}, fmt.Errorf("staff record %s already exists", rec.ID)
	}
	m.records[rec.ID] = rec
	m.order = append(m.order, rec.ID)
	m.mu.Unlock()

	m.publish(ctx, models.ChangeEvent{Type: models.ChangeInsert, New: &rec})
	return rec, nil
}

// Update applies a partial update to one record
func (m *Memory) Update(ctx context.Context, id string, fields models.Fields) error {
	return m.ApplyBatch(ctx, []models.Update{{StaffID: id, Fields: fields}})
}

// ApplyBatch applies all updates under one lock, then publishes them
func (m *Memory) ApplyBatch(ctx context.Context, updates []models.Update) error {
	if m.FailWrites != nil {
		return m.FailWrites
	}
	for _, u := range updates {
		if err := ValidateFields(u.Fields); err != nil {
			return err
		}
	}

	m.mu.Lock()
	changed := make([]models.StaffRecord, 0, len(updates))
	for _, u := range updates {
		rec, ok := m.records[u.StaffID]
		if !ok {
			continue
		}
		Apply(&rec, u.Fields)
		rec.UpdatedAt = time.Now()
		m.records[u.StaffID] = rec
		changed = append(changed, rec)
	}
	m.mu.Unlock()

	for i := range changed {
		m.publish(ctx, models.ChangeEvent{Type: models.ChangeUpdate, New: &changed[i]})
	}
	return nil
}

// BulkUpdate applies fields to every record matching filter
func (m *Memory) BulkUpdate(ctx context.Context, filter models.Filter, fields models.Fields) (int64, error) {
	if m.FailWrites != nil {
		return 0, m.FailWrites
	}
	if err := ValidateFilter(filter); err != nil {
		return 0, err
	}
	if err := ValidateFields(fields); err != nil {
		return 0, err
	}

	m.mu.Lock()
	var changed []models.StaffRecord
	for _, id := range m.order {
		rec := m.records[id]
		if !Matches(rec, filter) {
			continue
		}
		Apply(&rec, fields)
		rec.UpdatedAt = time.Now()
		m.records[id] = rec
		changed = append(changed, rec)
	}
	m.mu.Unlock()

	for i := range changed {
		m.publish(ctx, models.ChangeEvent{Type: models.ChangeUpdate, New: &changed[i]})
	}
	return int64(len(changed)), nil
}

// Delete removes a record
func (m *Memory) Delete(ctx context.Context, id string) error {
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.records, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.publish(ctx, models.ChangeEvent{Type: models.ChangeDelete, Old: &rec})
	return nil
}

// Subscribe registers change handlers
func (m *Memory) Subscribe(h feed.Handlers) (feed.Subscription, error) {
	return m.broker.Subscribe(h)
}

func (m *Memory) publish(ctx context.Context, ev models.ChangeEvent) {
	_ = m.broker.Publish(ctx, ev)
}

func prepareInsert(rec *models.StaffRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.LateNumber == "" {
		rec.LateNumber = models.UnassignedLateNumber
	}
	if rec.Role == "" {
		rec.Role = models.RoleUser
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
}
