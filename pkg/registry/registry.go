package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sguter90/watermaestro/pkg/metrics"
	"github.com/sguter90/watermaestro/pkg/models"
	"github.com/sguter90/watermaestro/pkg/series"
	"github.com/sguter90/watermaestro/pkg/storage"
	"go.uber.org/zap"
)

var (
	// ErrEmptyName is returned by AddUser for a blank display name
	ErrEmptyName = errors.New("user name must not be empty")
	// ErrInvalidSeries is returned by UpdateSeries for a malformed series set
	ErrInvalidSeries = errors.New("invalid series")
)

// Recovery reasons
const (
	recoveryMissing = "missing"
	recoveryCorrupt = "corrupt"
)

// seqSuffix names the blob holding the id high-water mark next to the snapshot
const seqSuffix = "_seq"

// defaultUsers are seeded whenever no usable snapshot exists
var defaultUsers = []struct{ id, name string }{
	{"user1", "User 1"},
	{"user2", "User 2"},
}

// Registry owns every user profile and its series. Each operation loads the
// full snapshot, mutates it and persists it again under a single lock.
type Registry struct {
	store      storage.BlobStore
	collection string
	source     series.ReadingSource
	now        func() time.Time
	logger     *zap.SugaredLogger
	capacity   int
	interval   time.Duration

	mu sync.Mutex
}

// Option configures a Registry
type Option func(*Registry)

// WithReadingSource sets where new readings come from
func WithReadingSource(src series.ReadingSource) Option {
	return func(r *Registry) {
		if src != nil {
			r.source = src
		}
	}
}

// WithClock sets the time source used when generating initial series
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithHistoryCapacity sets the per-parameter window length
func WithHistoryCapacity(capacity int) Option {
	return func(r *Registry) {
		if capacity > 0 {
			r.capacity = capacity
		}
	}
}

// WithSampleInterval sets the spacing of freshly generated histories
func WithSampleInterval(interval time.Duration) Option {
	return func(r *Registry) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

// WithCollection overrides the blob name the snapshot is stored under
func WithCollection(name string) Option {
	return func(r *Registry) {
		if name != "" {
			r.collection = name
		}
	}
}

// New creates a Registry on top of store
func New(store storage.BlobStore, opts ...Option) *Registry {
	r := &Registry{
		store:      store,
		collection: storage.UsersCollection,
		source:     series.NewRandomSource(nil),
		now:        time.Now,
		logger:     zap.NewNop().Sugar(),
		capacity:   models.DefaultHistoryCapacity,
		interval:   models.DefaultSampleInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Capacity returns the configured history length
func (r *Registry) Capacity() int {
	return r.capacity
}

// Load returns a private copy of the current snapshot.
// Missing or corrupt payloads are replaced by the default users and persisted.
func (r *Registry) Load(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	return snap.clone(), nil
}

// Commit persists snap as the full snapshot, replacing whatever was stored.
// The stored id high-water mark is only ever raised.
func (r *Registry) Commit(ctx context.Context, snap *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq, err := r.loadSeqLocked(ctx)
	if err != nil {
		return err
	}
	return r.commitLocked(ctx, snap.withSeq(seq))
}

// LoadAll returns every profile. See Load for recovery behaviour.
func (r *Registry) LoadAll(ctx context.Context) ([]models.UserProfile, error) {
	snap, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Users(), nil
}

// PersistAll overwrites the stored snapshot with profiles
func (r *Registry) PersistAll(ctx context.Context, profiles []models.UserProfile) error {
	snap := NewSnapshot(profiles)
	return r.Commit(ctx, snap)
}

// AddUser creates a profile with a fresh id and generated series
func (r *Registry) AddUser(ctx context.Context, name string) (models.UserProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.UserProfile{}, ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.loadLocked(ctx)
	if err != nil {
		return models.UserProfile{}, err
	}

	profile := models.UserProfile{
		ID:   snap.NextID(),
		Name: name,
		Data: r.generate(),
	}
	snap.Append(profile)

	if err := r.commitLocked(ctx, snap); err != nil {
		return models.UserProfile{}, err
	}

	r.logger.Infof("✓ Added user %s (%s)", profile.ID, profile.Name)
	return profile.Clone(), nil
}

// RemoveUser deletes a profile. It reports false if id is unknown.
func (r *Registry) RemoveUser(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.loadLocked(ctx)
	if err != nil {
		return false, err
	}

	if !snap.Remove(id) {
		return false, nil
	}

	if err := r.commitLocked(ctx, snap); err != nil {
		return true, err
	}

	r.logger.Infof("✓ Removed user %s", id)
	return true, nil
}

// Profile returns a copy of one profile
func (r *Registry) Profile(ctx context.Context, id string) (models.UserProfile, bool, error) {
	snap, err := r.Load(ctx)
	if err != nil {
		return models.UserProfile{}, false, err
	}

	user, ok := snap.Find(id)
	if !ok {
		return models.UserProfile{}, false, nil
	}
	return *user, true, nil
}

// GetSeries returns a copy of a user's series
func (r *Registry) GetSeries(ctx context.Context, id string) (models.SeriesSet, bool, error) {
	user, ok, err := r.Profile(ctx, id)
	if err != nil || !ok {
		return nil, ok, err
	}
	return user.Data, true, nil
}

// UpdateSeries replaces a user's series wholesale and persists.
// An unknown id is a no-op reported as false.
func (r *Registry) UpdateSeries(ctx context.Context, id string, set models.SeriesSet) (bool, error) {
	if err := set.Validate(r.capacity); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSeries, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.loadLocked(ctx)
	if err != nil {
		return false, err
	}

	user, ok := snap.Find(id)
	if !ok {
		return false, nil
	}
	user.Data = set.Clone()

	if err := r.commitLocked(ctx, snap); err != nil {
		return true, err
	}
	return true, nil
}

// Tick advances every parameter of one user by a sample taken at now, then
// persists. An unknown id is a no-op reported as false.
func (r *Registry) Tick(ctx context.Context, id string, now time.Time) (bool, error) {
	start := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.loadLocked(ctx)
	if err != nil {
		metrics.RecordTick(metrics.TickResultError, time.Since(start))
		return false, err
	}

	user, ok := snap.Find(id)
	if !ok {
		metrics.RecordTick(metrics.TickResultUnknown, time.Since(start))
		return false, nil
	}

	if err := series.Advance(user.Data, r.source, now); err != nil {
		metrics.RecordTick(metrics.TickResultError, time.Since(start))
		return true, fmt.Errorf("failed to advance series for %s: %w", id, err)
	}

	if err := r.commitLocked(ctx, snap); err != nil {
		metrics.RecordTick(metrics.TickResultError, time.Since(start))
		return true, err
	}

	metrics.RecordTick(metrics.TickResultOK, time.Since(start))
	return true, nil
}

// UserIDs returns the ids of all users in snapshot order
func (r *Registry) UserIDs(ctx context.Context) ([]string, error) {
	snap, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.IDs(), nil
}

// loadLocked reads and decodes the snapshot. Callers must hold r.mu.
func (r *Registry) loadLocked(ctx context.Context) (*Snapshot, error) {
	seq, err := r.loadSeqLocked(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := r.store.Load(ctx, r.collection)
	if errors.Is(err, storage.ErrBlobNotFound) {
		r.logger.Infof("No %s snapshot found, seeding defaults", r.collection)
		return r.seedLocked(ctx, recoveryMissing, seq), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s snapshot: %w", r.collection, err)
	}

	users, err := decodeSnapshot(payload)
	if err != nil {
		r.logger.Warnf("⚠ Users snapshot corrupt, resetting to defaults: %v", err)
		return r.seedLocked(ctx, recoveryCorrupt, seq), nil
	}

	snap := NewSnapshot(users).withSeq(seq)
	if r.repair(snap) {
		if err := r.commitLocked(ctx, snap); err != nil {
			r.logger.Errorf("❌ Failed to persist repaired snapshot: %v", err)
		}
	}
	return snap, nil
}

// seedLocked builds the default snapshot and persists it. A failed write is
// logged and counted; the defaults are still served.
func (r *Registry) seedLocked(ctx context.Context, reason string, seq int) *Snapshot {
	metrics.RecordRecovery(reason)

	snap := NewSnapshot(nil).withSeq(seq)
	for _, u := range defaultUsers {
		snap.Append(models.UserProfile{ID: u.id, Name: u.name, Data: r.generate()})
	}

	if err := r.commitLocked(ctx, snap); err != nil {
		r.logger.Errorf("❌ Failed to persist default users: %v", err)
	}
	return snap
}

// repair regenerates unusable series and resolves duplicate or blank ids.
// It reports whether anything changed.
func (r *Registry) repair(snap *Snapshot) bool {
	changed := false
	seen := make(map[string]bool, snap.Len())
	kept := snap.users[:0]

	for _, u := range snap.users {
		if u.ID != "" && seen[u.ID] {
			r.logger.Warnf("⚠ Dropping duplicate user id %s", u.ID)
			changed = true
			continue
		}
		if u.ID != "" {
			seen[u.ID] = true
		}
		kept = append(kept, u)
	}
	snap.users = kept

	for i := range snap.users {
		u := &snap.users[i]

		if u.ID == "" {
			u.ID = snap.NextID()
			snap.observe(u.ID)
			r.logger.Warnf("⚠ Assigned id %s to user without id", u.ID)
			changed = true
		}

		if err := u.Data.Validate(r.capacity); err != nil {
			if u.Data != nil {
				r.logger.Warnf("⚠ Regenerating series for %s: %v", u.ID, err)
			}
			u.Data = r.generate()
			changed = true
		}
	}
	return changed
}

// loadSeqLocked reads the id high-water mark. A missing or unreadable mark
// reads as zero.
func (r *Registry) loadSeqLocked(ctx context.Context) (int, error) {
	name := r.collection + seqSuffix

	payload, err := r.store.Load(ctx, name)
	if errors.Is(err, storage.ErrBlobNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", name, err)
	}

	seq, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil || seq < 0 {
		r.logger.Warnf("⚠ Ignoring unreadable %s: %q", name, payload)
		return 0, nil
	}
	return seq, nil
}

// commitLocked serializes and writes snap, raising the stored high-water mark
// before the users themselves. Callers must hold r.mu.
func (r *Registry) commitLocked(ctx context.Context, snap *Snapshot) error {
	payload, err := encodeSnapshot(snap.users)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if snap.seq > snap.storedSeq {
		name := r.collection + seqSuffix
		if err := r.store.Save(ctx, name, []byte(strconv.Itoa(snap.seq))); err != nil {
			metrics.RecordPersistError()
			return fmt.Errorf("failed to persist %s: %w", name, err)
		}
		snap.storedSeq = snap.seq
	}

	if err := r.store.Save(ctx, r.collection, payload); err != nil {
		metrics.RecordPersistError()
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}

	metrics.SetUsers(snap.Len())
	return nil
}

func (r *Registry) generate() models.SeriesSet {
	return series.GenerateInitialSeries(r.source, r.now(), r.capacity, r.interval)
}

func encodeSnapshot(users []models.UserProfile) ([]byte, error) {
	if users == nil {
		users = []models.UserProfile{}
	}
	return json.Marshal(users)
}

func decodeSnapshot(payload []byte) ([]models.UserProfile, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("snapshot is not a JSON array")
	}

	var users []models.UserProfile
	if err := json.Unmarshal(trimmed, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.UserProfile{}
	}
	return users, nil
}
