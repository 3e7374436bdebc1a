// Package store owns the in-process collection of fill-ups.
//
// Mutations are applied locally first and become visible to readers at once;
// the local cache and the remote store are written afterwards on a best effort
// basis. Writes that could not reach the remote store stay pending and are
// retried by Flush. Each pending write carries the sequence number of the
// mutation that produced it so an older acknowledgement never clears a newer
// pending change. Deleted ids are kept as tombstones so that a remote snapshot
// taken before the delete can never bring the entry back, and the sequence of
// the last local mutation of every id is kept so that a snapshot taken before
// that mutation cannot roll it back, even after the remote write succeeded.
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/fuel-mileage-worker/internal/calculator"
	"github.com/septivank/fuel-mileage-worker/internal/fuel"
	"github.com/septivank/fuel-mileage-worker/internal/predictor"
	"github.com/septivank/fuel-mileage-worker/internal/validator"
	"go.uber.org/zap"
)

// RemoteStore is the synchronized backend the collection is mirrored to
type RemoteStore interface {
	ListEntries(ctx context.Context) ([]fuel.Entry, error)
	UpsertEntry(ctx context.Context, entry fuel.Entry) error
	DeleteEntry(ctx context.Context, id uuid.UUID) error
}

// LocalCache keeps a durable copy of the collection for offline starts
type LocalCache interface {
	LoadEntries(ctx context.Context) ([]fuel.Entry, error)
	UpsertEntry(ctx context.Context, entry fuel.Entry) error
	DeleteEntry(ctx context.Context, id uuid.UUID) error
	ReplaceEntries(ctx context.Context, entries []fuel.Entry) error
}

// Metrics is everything derived from one version of the collection
type Metrics struct {
	Version               uint64                  `json:"version"`
	TankCapacity          float64                 `json:"tank_capacity"`
	Summary               calculator.Summary      `json:"summary"`
	PerEntry              []fuel.EfficiencyRecord `json:"per_entry"`
	EstimatedRange        *float64                `json:"estimated_range"`
	EstimatedFullTankCost *float64                `json:"estimated_full_tank_cost"`
}

type memo struct {
	version      uint64
	tankCapacity float64
	metrics      Metrics
	err          error
}

// EntryStore coordinates the fill-up collection
type EntryStore struct {
	mu             sync.RWMutex
	entries        []fuel.Entry
	pending        map[uuid.UUID]uint64
	pendingDeletes map[uuid.UUID]uint64
	lastMutation   map[uuid.UUID]uint64
	tombstones     map[uuid.UUID]struct{}
	version        uint64
	cached         *memo

	// cacheMu orders local cache writes; it is taken before mu, never after.
	cacheMu sync.Mutex

	remote    RemoteStore
	cache     LocalCache
	validator *validator.Validator
	now       func() time.Time
	logger    *zap.Logger
}

// NewEntryStore creates an empty store. remote and cache may be nil, which
// turns the corresponding side into a no-op.
func NewEntryStore(remote RemoteStore, cache LocalCache, v *validator.Validator, logger *zap.Logger) *EntryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntryStore{
		pending:        make(map[uuid.UUID]uint64),
		pendingDeletes: make(map[uuid.UUID]uint64),
		lastMutation:   make(map[uuid.UUID]uint64),
		tombstones:     make(map[uuid.UUID]struct{}),
		remote:         remote,
		cache:          cache,
		validator:      v,
		now:            time.Now,
		logger:         logger,
	}
}

// Warm seeds the collection from the local cache
func (s *EntryStore) Warm(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}

	entries, err := s.cache.LoadEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cached entries: %w", err)
	}

	s.mu.Lock()
	s.entries = entries
	s.bumpLocked()
	s.mu.Unlock()

	s.logger.Info("entry store warmed from local cache", zap.Int("entries", len(entries)))
	return nil
}

// Add validates and stores a new fill-up
func (s *EntryStore) Add(ctx context.Context, in fuel.Input) (fuel.Entry, error) {
	if err := s.validator.ValidateForCreate(in); err != nil {
		return fuel.Entry{}, err
	}

	entry := fuel.NewEntry(uuid.New(), in, s.now().UTC())

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	seq := s.bumpLocked()
	s.pending[entry.ID] = seq
	s.lastMutation[entry.ID] = seq
	s.mu.Unlock()

	s.persistUpsert(ctx, entry, seq)
	return entry, nil
}

// Update applies a partial update to an existing fill-up
func (s *EntryStore) Update(ctx context.Context, id uuid.UUID, patch fuel.Patch) (fuel.Entry, error) {
	if err := s.validator.ValidateForUpdate(patch); err != nil {
		return fuel.Entry{}, err
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fuel.Entry{}, fmt.Errorf("%w: %s", fuel.ErrEntryNotFound, id)
	}
	entry := patch.Apply(s.entries[idx])
	entry.UpdatedAt = s.now().UTC()
	s.entries[idx] = entry
	seq := s.bumpLocked()
	s.pending[id] = seq
	s.lastMutation[id] = seq
	s.mu.Unlock()

	s.persistUpsert(ctx, entry, seq)
	return entry, nil
}

// Delete removes a fill-up permanently
func (s *EntryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", fuel.ErrEntryNotFound, id)
	}
	s.entries = slices.Delete(s.entries, idx, idx+1)
	s.tombstones[id] = struct{}{}
	delete(s.pending, id)
	seq := s.bumpLocked()
	s.pendingDeletes[id] = seq
	s.mu.Unlock()

	s.persistDelete(ctx, id, seq)
	return nil
}

// Get returns a single fill-up
func (s *EntryStore) Get(id uuid.UUID) (fuel.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return fuel.Entry{}, fmt.Errorf("%w: %s", fuel.ErrEntryNotFound, id)
	}
	return s.entries[idx], nil
}

// Entries returns a point-in-time copy of the collection
func (s *EntryStore) Entries() []fuel.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

// Version increases with every change to the collection
func (s *EntryStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// PendingCount is the number of local changes not yet acknowledged remotely
func (s *EntryStore) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending) + len(s.pendingDeletes)
}

// ApplySnapshot merges a remote snapshot into the collection. Locally pending
// entries win over their snapshot version.
func (s *EntryStore) ApplySnapshot(snapshot []fuel.Entry) []fuel.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged, _ := s.mergeLocked(snapshot, s.version)
	return slices.Clone(merged)
}

// mergeLocked merges a snapshot that was listed when the collection was at
// version since. Entries that are pending or were mutated after since keep
// their local version. The version is bumped only if the collection changed.
func (s *EntryStore) mergeLocked(snapshot []fuel.Entry, since uint64) ([]fuel.Entry, bool) {
	local := make(map[uuid.UUID]fuel.Entry)
	for _, e := range s.entries {
		if _, ok := s.pending[e.ID]; ok || s.lastMutation[e.ID] > since {
			local[e.ID] = e
		}
	}

	merged := make([]fuel.Entry, 0, len(snapshot)+len(local))
	for _, e := range snapshot {
		if _, deleted := s.tombstones[e.ID]; deleted {
			continue
		}
		if localEntry, ok := local[e.ID]; ok {
			merged = append(merged, localEntry)
			delete(local, e.ID)
			continue
		}
		merged = append(merged, e)
	}
	// Local entries the snapshot has not seen yet keep their local order.
	for _, e := range s.entries {
		if _, ok := local[e.ID]; ok {
			merged = append(merged, e)
		}
	}

	if slices.EqualFunc(s.entries, merged, sameEntry) {
		return s.entries, false
	}
	s.entries = merged
	s.bumpLocked()
	return merged, true
}

func sameEntry(a, b fuel.Entry) bool {
	return a.ID == b.ID &&
		a.Date.Equal(b.Date) &&
		a.Odometer == b.Odometer &&
		a.FuelAmount == b.FuelAmount &&
		a.FuelPrice == b.FuelPrice &&
		a.Station == b.Station &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.UpdatedAt.Equal(b.UpdatedAt)
}

// Refresh retries pending writes, then pulls and merges the remote collection
func (s *EntryStore) Refresh(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}

	s.Flush(ctx)

	since := s.Version()
	snapshot, err := s.remote.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list remote entries: %w", err)
	}

	s.cacheMu.Lock()
	s.mu.Lock()
	merged, changed := s.mergeLocked(snapshot, since)
	merged = slices.Clone(merged)
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.ReplaceEntries(ctx, merged); err != nil {
			s.logger.Warn("failed to refresh local cache", zap.Error(err))
		}
	}
	s.cacheMu.Unlock()

	s.logger.Debug("entry store refreshed",
		zap.Int("remote_entries", len(snapshot)),
		zap.Int("entries", len(merged)),
		zap.Bool("changed", changed),
	)
	return nil
}

// Flush retries every pending remote write once
func (s *EntryStore) Flush(ctx context.Context) {
	if s.remote == nil {
		return
	}

	type upsert struct {
		entry fuel.Entry
		seq   uint64
	}
	type removal struct {
		id  uuid.UUID
		seq uint64
	}

	s.mu.RLock()
	upserts := make([]upsert, 0, len(s.pending))
	for _, e := range s.entries {
		if seq, ok := s.pending[e.ID]; ok {
			upserts = append(upserts, upsert{entry: e, seq: seq})
		}
	}
	removals := make([]removal, 0, len(s.pendingDeletes))
	for id, seq := range s.pendingDeletes {
		removals = append(removals, removal{id: id, seq: seq})
	}
	s.mu.RUnlock()

	for _, u := range upserts {
		s.pushUpsert(ctx, u.entry, u.seq)
	}
	for _, r := range removals {
		s.pushDelete(ctx, r.id, r.seq)
	}
}

// Metrics computes, or returns the memoized, derived metrics of the current collection
func (s *EntryStore) Metrics(tankCapacity float64) (Metrics, error) {
	s.mu.RLock()
	if m := s.cached; m != nil && m.version == s.version && m.tankCapacity == tankCapacity {
		s.mu.RUnlock()
		return cloneMetrics(m.metrics), m.err
	}
	entries := slices.Clone(s.entries)
	version := s.version
	s.mu.RUnlock()

	metrics, err := computeMetrics(entries, tankCapacity)
	metrics.Version = version

	s.mu.Lock()
	if s.version == version {
		s.cached = &memo{version: version, tankCapacity: tankCapacity, metrics: metrics, err: err}
	}
	s.mu.Unlock()

	return cloneMetrics(metrics), err
}

func computeMetrics(entries []fuel.Entry, tankCapacity float64) (Metrics, error) {
	metrics := Metrics{TankCapacity: tankCapacity}

	summary, err := calculator.Summarize(entries)
	if err != nil {
		return metrics, err
	}
	perEntry, err := calculator.PerEntryEfficiency(entries)
	if err != nil {
		return metrics, err
	}
	estimatedRange, err := predictor.EstimateRange(summary.AverageEfficiency, tankCapacity)
	if err != nil {
		return metrics, err
	}
	fullTankCost, err := predictor.EstimateFullTankCost(summary.AverageCostPerDistance, summary.AverageEfficiency, tankCapacity)
	if err != nil {
		return metrics, err
	}

	metrics.Summary = summary
	metrics.PerEntry = perEntry
	metrics.EstimatedRange = estimatedRange
	metrics.EstimatedFullTankCost = fullTankCost
	return metrics, nil
}

func cloneMetrics(m Metrics) Metrics {
	m.PerEntry = slices.Clone(m.PerEntry)
	return m
}

func (s *EntryStore) persistUpsert(ctx context.Context, entry fuel.Entry, seq uint64) {
	if s.cache != nil {
		s.cacheMu.Lock()
		if err := s.cache.UpsertEntry(ctx, entry); err != nil {
			s.logger.Warn("failed to cache entry", zap.Error(err), zap.String("entry_id", entry.ID.String()))
		}
		s.cacheMu.Unlock()
	}
	s.pushUpsert(ctx, entry, seq)
}

func (s *EntryStore) persistDelete(ctx context.Context, id uuid.UUID, seq uint64) {
	if s.cache != nil {
		s.cacheMu.Lock()
		if err := s.cache.DeleteEntry(ctx, id); err != nil {
			s.logger.Warn("failed to delete cached entry", zap.Error(err), zap.String("entry_id", id.String()))
		}
		s.cacheMu.Unlock()
	}
	s.pushDelete(ctx, id, seq)
}

func (s *EntryStore) pushUpsert(ctx context.Context, entry fuel.Entry, seq uint64) {
	if s.remote == nil {
		return
	}
	if err := s.remote.UpsertEntry(ctx, entry); err != nil {
		s.logger.Warn("remote write failed, keeping entry local",
			zap.Error(err),
			zap.String("entry_id", entry.ID.String()),
		)
		return
	}

	s.mu.Lock()
	if s.pending[entry.ID] == seq {
		delete(s.pending, entry.ID)
	}
	s.mu.Unlock()
}

func (s *EntryStore) pushDelete(ctx context.Context, id uuid.UUID, seq uint64) {
	if s.remote == nil {
		return
	}
	if err := s.remote.DeleteEntry(ctx, id); err != nil {
		s.logger.Warn("remote delete failed, will retry",
			zap.Error(err),
			zap.String("entry_id", id.String()),
		)
		return
	}

	s.mu.Lock()
	if s.pendingDeletes[id] == seq {
		delete(s.pendingDeletes, id)
	}
	s.mu.Unlock()
}

func (s *EntryStore) bumpLocked() uint64 {
	s.version++
	s.cached = nil
	return s.version
}

func (s *EntryStore) indexLocked(id uuid.UUID) int {
	return slices.IndexFunc(s.entries, func(e fuel.Entry) bool {
		return e.ID == id
	})
}
