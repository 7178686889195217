package board

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/arnavshah/ionm-board/pkg/feed"
	"github.com/arnavshah/ionm-board/pkg/metrics"
	"github.com/arnavshah/ionm-board/pkg/models"
	"github.com/arnavshah/ionm-board/pkg/store"
)

// Source is the read side of the staff store a session follows
type Source interface {
	FetchAll(ctx context.Context) ([]models.StaffRecord, error)
	Subscribe(h feed.Handlers) (feed.Subscription, error)
}

// Snapshot is what a client renders: the projection plus pending duty
// drafts and the health of the feed
type Snapshot struct {
	Projection
	Version uint64 `json:"version"`
	Stale   bool   `json:"stale"`
	Error   string `json:"error,omitempty"`
}

type draft struct {
	staffID string
	text    string
}

// Session keeps one client's copy of the staff collection in step with
// the change feed and exposes the board operations. All state is owned
// by a single loop goroutine; store writes happen on the caller's
// goroutine so the loop never waits on the store.
type Session struct {
	source Source
	engine *Engine
	logger *zap.Logger

	events  chan models.ChangeEvent
	cmds    chan func()
	done    chan struct{}
	stopped chan struct{}

	closeOnce sync.Once
	subMu     sync.Mutex
	sub       feed.Subscription

	current atomic.Pointer[Snapshot]

	// loop-owned
	collection []models.StaffRecord
	proj       Projection
	drafts     map[string]draft
	loading    bool
	pending    []models.ChangeEvent
	stale      bool
	lastErr    string
	version    uint64
	watchers   map[int]chan Snapshot
	nextWatch  int
}

// NewSession creates a session and starts its loop. Call Start to load
// the collection and subscribe to changes.
func NewSession(source Source, engine *Engine, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		source:   source,
		engine:   engine,
		logger:   logger,
		events:   make(chan models.ChangeEvent, 256),
		cmds:     make(chan func()),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		drafts:   make(map[string]draft),
		watchers: make(map[int]chan Snapshot),
		proj:     Derive(nil),
	}
	s.publish()
	go s.loop()
	return s
}

// Start subscribes to the change feed and loads the collection.
// On failure the session stays usable and reports itself stale.
func (s *Session) Start(ctx context.Context) error {
	return s.Resync(ctx)
}

// Resync subscribes if not yet subscribed and reloads the full collection
func (s *Session) Resync(ctx context.Context) error {
	if err := s.subscribe(); err != nil {
		return s.fail(ctx, err)
	}
	if err := s.do(ctx, func() { s.loading = true }); err != nil {
		return err
	}
	staff, err := s.source.FetchAll(ctx)
	if err != nil {
		_ = s.do(ctx, func() {
			s.loading = false
			s.replay()
		})
		return s.fail(ctx, err)
	}
	store.SortByName(staff)
	return s.do(ctx, func() {
		s.collection = staff
		s.loading = false
		s.stale = false
		s.lastErr = ""
		s.replay()
	})
}

func (s *Session) subscribe() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	if s.sub != nil {
		return nil
	}
	sub, err := s.source.Subscribe(feed.Handlers{
		OnInsert: func(r models.StaffRecord) { s.enqueue(models.ChangeEvent{Type: models.ChangeInsert, New: &r}) },
		OnUpdate: func(r models.StaffRecord) { s.enqueue(models.ChangeEvent{Type: models.ChangeUpdate, New: &r}) },
		OnDelete: func(r models.StaffRecord) { s.enqueue(models.ChangeEvent{Type: models.ChangeDelete, Old: &r}) },
	})
	if err != nil {
		return err
	}
	s.sub = sub
	metrics.ActiveSessions.Inc()
	return nil
}

func (s *Session) fail(ctx context.Context, cause error) error {
	err := fmt.Errorf("%w: %w", ErrStoreUnavailable, cause)
	s.logger.Warn("board session out of sync", zap.Error(cause))
	_ = s.do(ctx, func() {
		s.stale = true
		s.lastErr = err.Error()
		s.rederive()
	})
	return err
}

func (s *Session) enqueue(ev models.ChangeEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Session) loop() {
	defer close(s.stopped)
	for {
		select {
		case ev := <-s.events:
			metrics.FeedEvents.WithLabelValues(string(ev.Type)).Inc()
			if s.loading {
				s.pending = append(s.pending, ev)
				continue
			}
			s.merge(ev)
			s.rederive()
		case fn := <-s.cmds:
			fn()
		case <-s.done:
			for id, ch := range s.watchers {
				close(ch)
				delete(s.watchers, id)
			}
			return
		}
	}
}

// do runs fn on the loop goroutine and waits for it to finish
func (s *Session) do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(ran) }:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-ran
	return nil
}

func (s *Session) replay() {
	for _, ev := range s.pending {
		s.merge(ev)
	}
	s.pending = nil
	s.rederive()
}

// merge folds one change into the collection. Applying the same event
// twice leaves the collection unchanged. Writers publish after they
// commit, so events for one record can arrive out of order; a record
// older than the cached one is ignored.
func (s *Session) merge(ev models.ChangeEvent) {
	switch ev.Type {
	case models.ChangeInsert, models.ChangeUpdate:
		rec := *ev.New
		i := s.indexOf(rec.ID)
		switch {
		case i >= 0 && rec.UpdatedAt.Before(s.collection[i].UpdatedAt):
			s.logger.Debug("ignoring out-of-order change",
				zap.String("staff_id", rec.ID),
				zap.Time("event_updated_at", rec.UpdatedAt),
				zap.Time("cached_updated_at", s.collection[i].UpdatedAt))
		case i >= 0 && ev.Type == models.ChangeUpdate:
			s.collection[i] = rec
		case i >= 0:
			s.collection[i] = rec
			store.SortByName(s.collection)
		default:
			s.collection = append(s.collection, rec)
			store.SortByName(s.collection)
		}
	case models.ChangeDelete:
		if i := s.indexOf(ev.Old.ID); i >= 0 {
			s.collection = slices.Delete(s.collection, i, i+1)
		}
	}
}

func (s *Session) indexOf(id string) int {
	return slices.IndexFunc(s.collection, func(r models.StaffRecord) bool { return r.ID == id })
}

func (s *Session) rederive() {
	s.proj = Derive(s.collection)
	for label, d := range s.drafts {
		slot, _ := s.proj.Slot(label)
		if slot.AssignedStaffID != d.staffID {
			delete(s.drafts, label)
		}
	}
	s.publish()
}

func (s *Session) publish() {
	s.version++
	snap := Snapshot{
		Projection: s.proj,
		Version:    s.version,
		Stale:      s.stale,
		Error:      s.lastErr,
	}
	for label, d := range s.drafts {
		if idx, ok := LabelIndex(label); ok {
			snap.Slots[idx].Duty = d.text
		}
	}
	s.current.Store(&snap)
	for _, ch := range s.watchers {
		offer(ch, snap)
	}
}

// offer replaces any unread snapshot with the latest one
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// Snapshot returns the latest board
func (s *Session) Snapshot() Snapshot {
	return *s.current.Load()
}

// Slots returns the 22 slots of the latest board
func (s *Session) Slots() [SlotCount]models.Slot {
	return s.Snapshot().Slots
}

// Roster returns the unassigned staff of the latest board
func (s *Session) Roster() []models.StaffRecord {
	return s.Snapshot().Roster
}

// Staff returns a copy of the session's staff collection
func (s *Session) Staff(ctx context.Context) ([]models.StaffRecord, error) {
	var out []models.StaffRecord
	err := s.do(ctx, func() { out = slices.Clone(s.collection) })
	return out, err
}

// Watch returns a channel receiving the latest snapshot after every
// change. Slow readers only see the most recent one. The channel is
// closed when the session closes.
func (s *Session) Watch(ctx context.Context) (<-chan Snapshot, func(), error) {
	ch := make(chan Snapshot, 1)
	var id int
	err := s.do(ctx, func() {
		id = s.nextWatch
		s.nextWatch++
		s.watchers[id] = ch
		ch <- *s.current.Load()
	})
	if err != nil {
		return nil, nil, err
	}
	cancel := func() {
		_ = s.do(context.Background(), func() {
			if c, ok := s.watchers[id]; ok {
				close(c)
				delete(s.watchers, id)
			}
		})
	}
	return ch, cancel, nil
}

// Drop applies a drag-and-drop move against the current collection
func (s *Session) Drop(ctx context.Context, p models.DropPayload) ([]models.Update, error) {
	var (
		staff []models.StaffRecord
		slots [SlotCount]models.Slot
	)
	if err := s.do(ctx, func() {
		staff = slices.Clone(s.collection)
		slots = s.proj.Slots
	}); err != nil {
		return nil, err
	}
	return s.engine.Move(ctx, staff, slots, p)
}

// EditDuty records a pending duty text for a slot without writing it.
// Edits on an empty slot are ignored.
func (s *Session) EditDuty(ctx context.Context, label, text string) error {
	if _, ok := LabelIndex(label); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, label)
	}
	return s.do(ctx, func() {
		slot, _ := s.proj.Slot(label)
		if !slot.Occupied() {
			return
		}
		s.drafts[label] = draft{staffID: slot.AssignedStaffID, text: text}
		s.publish()
	})
}

// CommitDuty writes the pending duty text of a slot. Without a pending
// edit, or when the slot is empty, nothing is written.
func (s *Session) CommitDuty(ctx context.Context, label string) error {
	if _, ok := LabelIndex(label); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, label)
	}
	var (
		slot    models.Slot
		pending draft
		ok      bool
	)
	if err := s.do(ctx, func() {
		slot, _ = s.proj.Slot(label)
		pending, ok = s.drafts[label]
	}); err != nil {
		return err
	}
	if !ok || slot.AssignedStaffID != pending.staffID {
		return nil
	}
	if err := s.engine.EditDuty(ctx, slot, pending.text); err != nil {
		return err
	}
	return s.do(ctx, func() {
		if d, ok := s.drafts[label]; ok && d == pending {
			delete(s.drafts, label)
			s.publish()
		}
	})
}

// ResetBoard clears every slot. confirmed must reflect an explicit user
// confirmation.
func (s *Session) ResetBoard(ctx context.Context, confirmed bool) (int64, error) {
	select {
	case <-s.done:
		return 0, ErrSessionClosed
	default:
	}
	return s.engine.Reset(ctx, confirmed)
}

// Close unsubscribes from the feed and stops the loop
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.subMu.Lock()
		if s.sub != nil {
			err = s.sub.Unsubscribe()
			s.sub = nil
			metrics.ActiveSessions.Dec()
		}
		close(s.done)
		s.subMu.Unlock()
		<-s.stopped
	})
	return err
}
