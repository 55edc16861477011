package registry

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/sguter90/watermaestro/pkg/models"
	"github.com/sguter90/watermaestro/pkg/series"
	"github.com/sguter90/watermaestro/pkg/storage"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// FailingStore wraps a BlobStore and fails on demand
type FailingStore struct {
	storage.BlobStore
	mu        sync.Mutex
	failLoad  error
	failSave  error
	saveCount int
}

func (f *FailingStore) Load(ctx context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	err := f.failLoad
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.BlobStore.Load(ctx, name)
}

func (f *FailingStore) Save(ctx context.Context, name string, payload []byte) error {
	f.mu.Lock()
	f.saveCount++
	err := f.failSave
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.BlobStore.Save(ctx, name, payload)
}

func newTestRegistry(store storage.BlobStore) *Registry {
	return New(store,
		WithReadingSource(series.NewRandomSource(rand.NewSource(42))),
		WithClock(func() time.Time { return testNow }),
	)
}

func storedProfiles(t *testing.T, store storage.BlobStore) []models.UserProfile {
	t.Helper()

	payload, err := store.Load(context.Background(), storage.UsersCollection)
	if err != nil {
		t.Fatalf("Expected stored snapshot, got error: %v", err)
	}

	var users []models.UserProfile
	if err := json.Unmarshal(payload, &users); err != nil {
		t.Fatalf("Expected stored snapshot to be valid JSON: %v", err)
	}
	return users
}

func TestLoadAll_SeedsDefaultsWhenMissing(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := newTestRegistry(store)

	users, err := reg.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(users) != 2 {
		t.Fatalf("Expected 2 default users, got %d", len(users))
	}

	expected := []struct{ id, name string }{{"user1", "User 1"}, {"user2", "User 2"}}
	for i, exp := range expected {
		if users[i].ID != exp.id {
			t.Errorf("Expected id %s, got %s", exp.id, users[i].ID)
		}
		if users[i].Name != exp.name {
			t.Errorf("Expected name %s, got %s", exp.name, users[i].Name)
		}
		if err := users[i].Data.Validate(models.DefaultHistoryCapacity); err != nil {
			t.Errorf("Expected valid generated series for %s, got: %v", exp.id, err)
		}
	}

	if stored := storedProfiles(t, store); len(stored) != 2 {
		t.Errorf("Expected defaults to be persisted, got %d users", len(stored))
	}
}

func TestLoadAll_RecoversFromCorruptSnapshot(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
	}{
		{name: "Not JSON", payload: "not json"},
		{name: "JSON null", payload: "null"},
		{name: "JSON object", payload: `{"id":"user1"}`},
		{name: "Empty payload", payload: ""},
		{name: "Truncated array", payload: `[{"id":"user1"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			if err := store.Save(context.Background(), storage.UsersCollection, []byte(tc.payload)); err != nil {
				t.Fatalf("Failed to seed store: %v", err)
			}

			users, err := newTestRegistry(store).LoadAll(context.Background())
			if err != nil {
				t.Fatalf("Expected recovery without error, got: %v", err)
			}

			if len(users) != 2 || users[0].ID != "user1" || users[1].ID != "user2" {
				t.Fatalf("Expected default users, got %+v", users)
			}

			stored := storedProfiles(t, store)
			if len(stored) != 2 {
				t.Errorf("Expected defaults to overwrite the corrupt payload, got %d users", len(stored))
			}
		})
	}
}

func TestLoadAll_EmptyArrayIsValid(t *testing.T) {
	store := storage.NewMemoryStore()
	if err := store.Save(context.Background(), storage.UsersCollection, []byte("[]")); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}

	users, err := newTestRegistry(store).LoadAll(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("Expected no users, got %d", len(users))
	}
}

func TestLoadAll_RegeneratesMissingData(t *testing.T) {
	store := storage.NewMemoryStore()
	payload := `[{"id":"user1","name":"Plant A"},{"id":"user2","name":"Plant B","data":{"ph":{"value":7,"history":[]}}}]`
	if err := store.Save(context.Background(), storage.UsersCollection, []byte(payload)); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}

	users, err := newTestRegistry(store).LoadAll(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}
	if users[0].Name != "Plant A" || users[1].Name != "Plant B" {
		t.Errorf("Expected names to be kept, got %s and %s", users[0].Name, users[1].Name)
	}
	for _, u := range users {
		if err := u.Data.Validate(models.DefaultHistoryCapacity); err != nil {
			t.Errorf("Expected regenerated series for %s, got: %v", u.ID, err)
		}
	}

	stored := storedProfiles(t, store)
	if stored[0].Data == nil {
		t.Error("Expected regenerated series to be persisted")
	}
}

func TestLoadAll_ConvertsLegacySampleEncoding(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := newTestRegistry(store)

	users, err := reg.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// rewrite the first sample of user1's pH as unix millis and a string value
	raw, _ := json.Marshal(users)
	var generic []map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	ph := generic[0]["data"].(map[string]interface{})["ph"].(map[string]interface{})
	first := ph["history"].([]interface{})[0].(map[string]interface{})
	first["time"] = users[0].Data[models.ParameterPH].History[0].Time.UnixMilli()
	first["value"] = "6.5"
	legacy, _ := json.Marshal(generic)
	if err := store.Save(context.Background(), storage.UsersCollection, legacy); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}

	reloaded, err := reg.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	sample := reloaded[0].Data[models.ParameterPH].History[0]
	if sample.Value != 6.5 {
		t.Errorf("Expected value 6.5, got %v", sample.Value)
	}
	if !sample.Time.Equal(users[0].Data[models.ParameterPH].History[0].Time) {
		t.Errorf("Expected time %v, got %v", users[0].Data[models.ParameterPH].History[0].Time, sample.Time)
	}
}

func TestLoadAll_DropsDuplicateIDs(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := newTestRegistry(store)

	users, _ := reg.LoadAll(context.Background())
	dup := users[0].Clone()
	dup.Name = "Impostor"
	users = append(users, dup)
	if err := reg.PersistAll(context.Background(), users); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	loaded, err := reg.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("Expected duplicate to be dropped, got %d users", len(loaded))
	}
	if loaded[0].Name != "User 1" {
		t.Errorf("Expected first occurrence to win, got %s", loaded[0].Name)
	}
}

func TestLoadAll_BackendErrorIsReturned(t *testing.T) {
	store := &FailingStore{BlobStore: storage.NewMemoryStore(), failLoad: errors.New("disk on fire")}

	_, err := newTestRegistry(store).LoadAll(context.Background())
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if store.saveCount != 0 {
		t.Errorf("Expected no defaults to be written, got %d saves", store.saveCount)
	}
}

func TestLoadAll_SeedPersistFailureStillServesDefaults(t *testing.T) {
	store := &FailingStore{BlobStore: storage.NewMemoryStore(), failSave: errors.New("read-only")}

	users, err := newTestRegistry(store).LoadAll(context.Background())
	if err != nil {
		t.Fatalf("Expected defaults despite write failure, got: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("Expected 2 users, got %d", len(users))
	}
}

func TestPersistAll_RoundTrip(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := newTestRegistry(store)
	ctx := context.Background()

	first, err := reg.LoadAll(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := reg.PersistAll(ctx, first); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	payloadOne, _ := store.Load(ctx, storage.UsersCollection)

	second, err := reg.LoadAll(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Expected reloaded profiles to equal persisted profiles")
	}

	if err := reg.PersistAll(ctx, second); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	payloadTwo, _ := store.Load(ctx, storage.UsersCollection)

	if string(payloadOne) != string(payloadTwo) {
		t.Error("Expected stored snapshot to be unchanged by a second round trip")
	}
}

func TestPersistAll_WriteFailure(t *testing.T) {
	store := &FailingStore{BlobStore: storage.NewMemoryStore()}
	reg := newTestRegistry(store)

	users, err := reg.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	store.failSave = errors.New("quota exceeded")
	if err := reg.PersistAll(context.Background(), users); err == nil {
		t.Error("Expected write failure to be reported")
	}
}

func TestAddUser(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := newTestRegistry(store)
	ctx := context.Background()

	profile, err := reg.AddUser(ctx, "  River Outlet ")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if profile.ID != "user3" {
		t.Errorf("Expected id user3, got %s", profile.ID)
	}
	if profile.Name != "River Outlet" {
		t.Errorf("Expected trimmed name, got %q", profile.Name)
	}
	if err := profile.Data.Validate(models.DefaultHistoryCapacity); err != nil {
		t.Errorf("Expected full series, got: %v", err)
	}

	last := profile.Data[models.ParameterFlow].History[models.DefaultHistoryCapacity-1].Time
	if !last.Equal(testNow) {
		t.Errorf("Expected newest sample at %v, got %v", testNow, last)
	}

	stored := storedProfiles(t, store)
	if len(stored) != 3 || stored[2].ID != "user3" {
		t.Errorf("Expected new user to be persisted last, got %+v", stored)
	}
}

func TestAddUser_EmptyName(t *testing.T) {
	reg := newTestRegistry(storage.NewMemoryStore())

	for _, name := range []string{"", "   "} {
		if _, err := reg.AddUser(context.Background(), name); !errors.Is(err, ErrEmptyName) {
			t.Errorf("Expected ErrEmptyName for %q, got %v", name, err)
		}
	}
}

func TestAddUser_IDsStayUniqueAfterRemoval(t *testing.T) {
	reg := newTestRegistry(storage.NewMemoryStore())
	ctx := context.Background()

	if _, err := reg.AddUser(ctx, "Third"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	removed, err := reg.RemoveUser(ctx, "user1")
	if err != nil || !removed {
		t.Fatalf("Expected user1 to be removed, got %v, %v", removed, err)
	}

	profile, err := reg.AddUser(ctx, "Fourth")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ids, _ := reg.UserIDs(ctx)
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Errorf("Duplicate id %s in %v", id, ids)
		}
		seen[id] = true
	}
	if profile.ID != "user4" {
		t.Errorf("Expected id user4, got %s", profile.ID)
	}
}

func TestAddUser_RemovedIDIsNotReissued(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	added, err := newTestRegistry(store).AddUser(ctx, "Third")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	removed, err := newTestRegistry(store).RemoveUser(ctx, added.ID)
	if err != nil || !removed {
		t.Fatalf("Expected %s to be removed, got %v, %v", added.ID, removed, err)
	}

	// a fresh registry sees only what was persisted
	next, err := newTestRegistry(store).AddUser(ctx, "Fourth")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if next.ID == added.ID {
		t.Errorf("Expected removed id %s not to be reissued", added.ID)
	}
	if next.ID != "user4" {
		t.Errorf("Expected id user4, got %s", next.ID)
	}

	seq, err := store.Load(ctx, storage.UsersCollection+seqSuffix)
	if err != nil {
		t.Fatalf("Expected high-water mark to be stored: %v", err)
	}
	if string(seq) != "4" {
		t.Errorf("Expected stored high-water mark 4, got %s", seq)
	}
}

func TestAddUser_CorruptResetKeepsHighWaterMark(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	reg := newTestRegistry(store)

	for _, name := range []string{"Third", "Fourth"} {
		if _, err := reg.AddUser(ctx, name); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if err := store.Save(ctx, storage.UsersCollection, []byte("garbage")); err != nil {
		t.Fatalf("Failed to corrupt store: %v", err)
	}

	profile, err := reg.AddUser(ctx, "Fifth")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if profile.ID != "user5" {
		t.Errorf("Expected id user5 after reset, got %s", profile.ID)
	}
}

func TestPersistAll_DoesNotLowerHighWaterMark(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	reg := newTestRegistry(store)

	if _, err := reg.AddUser(ctx, "Third"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	users, _ := reg.LoadAll(ctx)
	if err := reg.PersistAll(ctx, users[:1]); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	profile, err := reg.AddUser(ctx, "Again")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if profile.ID != "user4" {
		t.Errorf("Expected id user4, got %s", profile.ID)
	}
}

func TestRemoveUser_Unknown(t *testing.T) {
	reg := newTestRegistry(storage.NewMemoryStore())

	removed, err := reg.RemoveUser(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if removed {
		t.Error("Expected unknown id to report false")
	}
}

func TestGetSeries(t *testing.T) {
	reg := newTestRegistry(storage.NewMemoryStore())
	ctx := context.Background()

	set, ok, err := reg.GetSeries(ctx, "user2")
	if err != nil || !ok {
		t.Fatalf("Expected series for user2, got %v, %v", ok, err)
	}

	// callers get a copy
	set[models.ParameterPH].Value = -1
	again, _, _ := reg.GetSeries(ctx, "user2")
	if again[models.ParameterPH].Value == -1 {
		t.Error("Expected mutation of returned series not to leak into the registry")
	}

	_, ok, err = reg.GetSeries(ctx, "ghost")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ok {
		t.Error("Expected unknown id to report false")
	}
}

func TestUpdateSeries(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := newTestRegistry(store)
	ctx := context.Background()

	replacement := series.GenerateInitialSeries(series.NewRandomSource(rand.NewSource(7)), testNow.Add(time.Hour), models.DefaultHistoryCapacity, time.Minute)

	ok, err := reg.UpdateSeries(ctx, "user1", replacement)
	if err != nil || !ok {
		t.Fatalf("Expected update to succeed, got %v, %v", ok, err)
	}

	got, _, _ := reg.GetSeries(ctx, "user1")
	if !reflect.DeepEqual(got, replacement) {
		t.Error("Expected stored series to equal the replacement")
	}
}

func TestUpdateSeries_Invalid(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := newTestRegistry(store)
	ctx := context.Background()

	before, _, _ := reg.GetSeries(ctx, "user1")

	bad := before.Clone()
	delete(bad, models.ParameterNH3N)

	ok, err := reg.UpdateSeries(ctx, "user1", bad)
	if !errors.Is(err, ErrInvalidSeries) {
		t.Errorf("Expected ErrInvalidSeries, got %v", err)
	}
	if ok {
		t.Error("Expected invalid update to report false")
	}

	after, _, _ := reg.GetSeries(ctx, "user1")
	if !reflect.DeepEqual(before, after) {
		t.Error("Expected series to be unchanged after rejected update")
	}
}

func TestUpdateSeries_UnknownUser(t *testing.T) {
	reg := newTestRegistry(storage.NewMemoryStore())
	ctx := context.Background()

	set, _, _ := reg.GetSeries(ctx, "user1")
	ok, err := reg.UpdateSeries(ctx, "ghost", set)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ok {
		t.Error("Expected unknown id to report false")
	}
}

func TestTick_AdvancesOnlyTargetUser(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := newTestRegistry(store)
	ctx := context.Background()

	initial, err := reg.LoadAll(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var tickTimes []time.Time
	for i := 1; i <= 10; i++ {
		at := testNow.Add(time.Duration(i) * 5 * time.Second)
		tickTimes = append(tickTimes, at)

		ok, err := reg.Tick(ctx, "user1", at)
		if err != nil || !ok {
			t.Fatalf("Tick %d failed: %v, %v", i, ok, err)
		}
	}

	users, _ := reg.LoadAll(ctx)

	for _, p := range models.Parameters {
		ts := users[0].Data[p]
		if len(ts.History) != models.DefaultHistoryCapacity {
			t.Errorf("%s: expected %d samples, got %d", p, models.DefaultHistoryCapacity, len(ts.History))
		}
		for i, s := range ts.History {
			if !s.Time.Equal(tickTimes[i]) {
				t.Errorf("%s[%d]: expected time %v, got %v", p, i, tickTimes[i], s.Time)
			}
		}
		if ts.Value != ts.History[len(ts.History)-1].Value {
			t.Errorf("%s: expected current value to match the newest sample", p)
		}
	}

	if !reflect.DeepEqual(initial[1], users[1]) {
		t.Error("Expected user2 to be untouched by ticks on user1")
	}
}

func TestTick_SlidesWindow(t *testing.T) {
	reg := newTestRegistry(storage.NewMemoryStore())
	ctx := context.Background()

	before, _, _ := reg.GetSeries(ctx, "user2")
	if _, err := reg.Tick(ctx, "user2", testNow.Add(time.Minute)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	after, _, _ := reg.GetSeries(ctx, "user2")

	for _, p := range models.Parameters {
		old := before[p].History
		cur := after[p].History
		if !reflect.DeepEqual(cur[:len(cur)-1], old[1:]) {
			t.Errorf("%s: expected window to shift by one", p)
		}
	}
}

func TestTick_ClockStepBackKeepsHistory(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := newTestRegistry(store)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if _, err := reg.Tick(ctx, "user1", testNow.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("Unexpected error on tick %d: %v", i, err)
		}
	}
	before, _, err := reg.GetSeries(ctx, "user1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, err := reg.Tick(ctx, "user1", testNow.Add(150*time.Second)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	after, _, err := newTestRegistry(store).GetSeries(ctx, "user1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	newest := testNow.Add(3 * time.Minute)
	for _, p := range models.Parameters {
		history := after[p].History
		for i := 0; i < len(history)-1; i++ {
			if history[i] != before[p].History[i+1] {
				t.Fatalf("Expected %s history to survive a backwards tick, index %d differs", p, i)
			}
		}
		if last := history[len(history)-1]; !last.Time.Equal(newest) {
			t.Errorf("Expected newest %s sample at %v, got %v", p, newest, last.Time)
		}
	}
}

func TestTick_UnknownUser(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := newTestRegistry(store)
	ctx := context.Background()

	if _, err := reg.LoadAll(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	before, _ := store.Load(ctx, storage.UsersCollection)

	ok, err := reg.Tick(ctx, "ghost", testNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ok {
		t.Error("Expected unknown id to report false")
	}

	after, _ := store.Load(ctx, storage.UsersCollection)
	if string(before) != string(after) {
		t.Error("Expected snapshot to be unchanged")
	}
}

func TestTick_WriteFailure(t *testing.T) {
	store := &FailingStore{BlobStore: storage.NewMemoryStore()}
	reg := newTestRegistry(store)
	ctx := context.Background()

	if _, err := reg.LoadAll(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	store.failSave = errors.New("disk full")
	if _, err := reg.Tick(ctx, "user1", testNow.Add(time.Minute)); err == nil {
		t.Error("Expected write failure to be reported")
	}
}

func TestTick_ConcurrentTicksDoNotLoseUpdates(t *testing.T) {
	reg := newTestRegistry(storage.NewMemoryStore())
	ctx := context.Background()

	if _, err := reg.LoadAll(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "user1"
			if i%2 == 1 {
				id = "user2"
			}
			if _, err := reg.Tick(ctx, id, testNow.Add(time.Hour)); err != nil {
				t.Errorf("Tick failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	users, _ := reg.LoadAll(ctx)
	for _, u := range users {
		for _, p := range models.Parameters {
			if !u.Data[p].History[models.DefaultHistoryCapacity-1].Time.Equal(testNow.Add(time.Hour)) {
				t.Errorf("%s/%s: expected newest sample from concurrent ticks", u.ID, p)
			}
		}
	}
}

func TestUserIDs(t *testing.T) {
	reg := newTestRegistry(storage.NewMemoryStore())

	ids, err := reg.UserIDs(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := []string{"user1", "user2"}
	if !reflect.DeepEqual(ids, expected) {
		t.Errorf("Expected %v, got %v", expected, ids)
	}
}

func TestWithHistoryCapacity(t *testing.T) {
	reg := New(storage.NewMemoryStore(), WithHistoryCapacity(4), WithClock(func() time.Time { return testNow }))

	users, err := reg.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := len(users[0].Data[models.ParameterCOD].History); got != 4 {
		t.Errorf("Expected 4 samples, got %d", got)
	}
	if reg.Capacity() != 4 {
		t.Errorf("Expected capacity 4, got %d", reg.Capacity())
	}
}

func TestSnapshot_NextID(t *testing.T) {
	testCases := []struct {
		name     string
		ids      []string
		seq      int
		expected string
	}{
		{name: "Empty", ids: nil, expected: "user1"},
		{name: "Sequential", ids: []string{"user1", "user2"}, expected: "user3"},
		{name: "Gap from removal", ids: []string{"user2"}, expected: "user3"},
		{name: "Custom ids", ids: []string{"alpha", "beta"}, expected: "user3"},
		{name: "Removed highest id", ids: []string{"user1", "user2"}, seq: 5, expected: "user6"},
		{name: "Mark below live ids", ids: []string{"user7"}, seq: 3, expected: "user8"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var users []models.UserProfile
			for _, id := range tc.ids {
				users = append(users, models.UserProfile{ID: id})
			}

			if got := NewSnapshot(users).withSeq(tc.seq).NextID(); got != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, got)
			}
		})
	}
}
