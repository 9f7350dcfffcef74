package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"liveclass/pkg/database"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	config := database.DefaultConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "store_test.db")

	manager, err := NewManager(config)
	if err != nil {
		t.Fatalf("Failed to create store manager: %v", err)
	}
	t.Cleanup(func() {
		if err := manager.Close(); err != nil {
			t.Errorf("Failed to close store manager: %v", err)
		}
	})
	return manager
}

func TestNewManagerRejectsForeignSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE documents (collection TEXT, id TEXT)`); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Failed to close database: %v", err)
	}

	config := database.DefaultConfig()
	config.DatabasePath = path

	if _, err := NewManager(config); err == nil {
		t.Fatal("Expected schema validation error on foreign database file")
	}
}

// waitFor polls until the condition holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPutAndGet(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	fields := map[string]any{
		"code":     "123456",
		"teacher":  "Professor",
		"isActive": true,
	}
	if err := manager.Put(ctx, types.CollectionRooms, "123456", fields); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	doc, err := manager.Get(ctx, types.CollectionRooms, "123456")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if doc.ID != "123456" {
		t.Errorf("Expected document ID '123456', got %s", doc.ID)
	}
	if doc.Fields["code"] != "123456" || doc.Fields["teacher"] != "Professor" {
		t.Errorf("Unexpected fields: %v", doc.Fields)
	}
	if doc.Fields["isActive"] != true {
		t.Errorf("Expected isActive true, got %v", doc.Fields["isActive"])
	}
}

func TestGetMissingDocument(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.Get(context.Background(), types.CollectionRooms, "999999")
	if err != interfaces.ErrDocumentNotFound {
		t.Errorf("Expected ErrDocumentNotFound, got %v", err)
	}
}

func TestPutResolvesServerTimestamps(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	fields := map[string]any{
		"name":     "Maria",
		"joinedAt": types.ServerTimestamp,
	}
	if err := manager.Put(ctx, types.CollectionParticipants, "p1", fields); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	doc, err := manager.Get(ctx, types.CollectionParticipants, "p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	raw, ok := doc.Fields["joinedAt"].(string)
	if !ok {
		t.Fatalf("Expected joinedAt as RFC3339 string, got %T", doc.Fields["joinedAt"])
	}
	joined, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		t.Fatalf("Failed to parse joinedAt %q: %v", raw, err)
	}
	if joined.Before(before) || joined.After(time.Now().UTC().Add(time.Second)) {
		t.Errorf("Expected joinedAt near now, got %v", joined)
	}
}

func TestPutReplacesDocument(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	if err := manager.Put(ctx, types.CollectionRooms, "r1", map[string]any{"a": 1, "b": 2}); err != nil {
		t.Fatalf("First put failed: %v", err)
	}
	if err := manager.Put(ctx, types.CollectionRooms, "r1", map[string]any{"a": 9}); err != nil {
		t.Fatalf("Second put failed: %v", err)
	}

	doc, err := manager.Get(ctx, types.CollectionRooms, "r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if _, exists := doc.Fields["b"]; exists {
		t.Error("Expected put to fully replace fields, b survived")
	}
	if doc.Fields["a"] != float64(9) {
		t.Errorf("Expected a=9, got %v", doc.Fields["a"])
	}
}

func TestUpdateMergesFields(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	fields := map[string]any{"name": "Maria", "isPresent": false, "raisedHand": false}
	if err := manager.Put(ctx, types.CollectionParticipants, "p1", fields); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := manager.Update(ctx, types.CollectionParticipants, "p1", map[string]any{"isPresent": true}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	doc, err := manager.Get(ctx, types.CollectionParticipants, "p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if doc.Fields["isPresent"] != true {
		t.Errorf("Expected isPresent merged to true, got %v", doc.Fields["isPresent"])
	}
	if doc.Fields["name"] != "Maria" || doc.Fields["raisedHand"] != false {
		t.Errorf("Expected untouched fields to survive merge: %v", doc.Fields)
	}
}

func TestUpdateMissingDocument(t *testing.T) {
	manager := newTestManager(t)

	err := manager.Update(context.Background(), types.CollectionParticipants, "ghost", map[string]any{"isPresent": true})
	if err != interfaces.ErrDocumentNotFound {
		t.Errorf("Expected ErrDocumentNotFound, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	if err := manager.Put(ctx, types.CollectionQuestions, "q1", map[string]any{"text": "?"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := manager.Delete(ctx, types.CollectionQuestions, "q1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := manager.Delete(ctx, types.CollectionQuestions, "q1"); err != nil {
		t.Errorf("Expected second delete to succeed, got %v", err)
	}

	if _, err := manager.Get(ctx, types.CollectionQuestions, "q1"); err != interfaces.ErrDocumentNotFound {
		t.Errorf("Expected document gone, got %v", err)
	}
}

func TestQueryFiltersAndOrder(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	docs := []struct {
		id     string
		fields map[string]any
	}{
		{"q1", map[string]any{"roomCode": "111111", "status": "pending"}},
		{"q2", map[string]any{"roomCode": "111111", "status": "answered"}},
		{"q3", map[string]any{"roomCode": "222222", "status": "pending"}},
	}
	for _, d := range docs {
		if err := manager.Put(ctx, types.CollectionQuestions, d.id, d.fields); err != nil {
			t.Fatalf("Put %s failed: %v", d.id, err)
		}
		time.Sleep(5 * time.Millisecond) // distinct created_at ordering
	}

	results, err := manager.Query(ctx, types.CollectionQuestions,
		[]types.Filter{{Field: "roomCode", Value: "111111"}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(results))
	}
	if results[0].ID != "q1" || results[1].ID != "q2" {
		t.Errorf("Expected creation order q1,q2, got %s,%s", results[0].ID, results[1].ID)
	}

	pending, err := manager.Query(ctx, types.CollectionQuestions,
		[]types.Filter{
			{Field: "roomCode", Value: "111111"},
			{Field: "status", Value: "pending"},
		})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "q1" {
		t.Errorf("Expected only q1 pending in room 111111, got %v", pending)
	}
}

func TestMatchesFilters(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]any
		filters []types.Filter
		match   bool
	}{
		{
			"empty filters match all",
			map[string]any{"a": 1},
			nil,
			true,
		},
		{
			"string equality",
			map[string]any{"roomCode": "123456"},
			[]types.Filter{{Field: "roomCode", Value: "123456"}},
			true,
		},
		{
			"missing field",
			map[string]any{"other": "x"},
			[]types.Filter{{Field: "roomCode", Value: "123456"}},
			false,
		},
		{
			"int filter matches stored float64",
			map[string]any{"count": float64(3)},
			[]types.Filter{{Field: "count", Value: 3}},
			true,
		},
		{
			"bool equality",
			map[string]any{"isActive": true},
			[]types.Filter{{Field: "isActive", Value: true}},
			true,
		},
		{
			"bool mismatch",
			map[string]any{"isActive": false},
			[]types.Filter{{Field: "isActive", Value: true}},
			false,
		},
		{
			"all filters must hold",
			map[string]any{"roomCode": "123456", "raisedHand": false},
			[]types.Filter{
				{Field: "roomCode", Value: "123456"},
				{Field: "raisedHand", Value: true},
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesFilters(tt.fields, tt.filters); got != tt.match {
				t.Errorf("MatchesFilters = %v, expected %v", got, tt.match)
			}
		})
	}
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	if err := manager.Put(ctx, types.CollectionMaterials, "m1",
		map[string]any{"roomCode": "123456", "title": "Slides"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var mu sync.Mutex
	var snapshots [][]types.Document
	dispose, err := manager.Subscribe(types.CollectionMaterials,
		[]types.Filter{{Field: "roomCode", Value: "123456"}},
		func(docs []types.Document) {
			mu.Lock()
			snapshots = append(snapshots, docs)
			mu.Unlock()
		})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer dispose()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(snapshots) >= 1
	}, "Expected initial snapshot delivery")

	mu.Lock()
	first := snapshots[0]
	mu.Unlock()
	if len(first) != 1 || first[0].ID != "m1" {
		t.Errorf("Unexpected initial snapshot: %v", first)
	}
}

func TestSubscribeObservesChanges(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	var mu sync.Mutex
	var latest []types.Document
	dispose, err := manager.Subscribe(types.CollectionQuestions,
		[]types.Filter{{Field: "roomCode", Value: "123456"}},
		func(docs []types.Document) {
			mu.Lock()
			latest = docs
			mu.Unlock()
		})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer dispose()

	if err := manager.Put(ctx, types.CollectionQuestions, "q1",
		map[string]any{"roomCode": "123456", "text": "Why?", "status": "pending"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(latest) == 1
	}, "Expected snapshot with the new question")

	if err := manager.Delete(ctx, types.CollectionQuestions, "q1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(latest) == 0
	}, "Expected empty snapshot after delete")
}

func TestSubscribeFiltersOtherRooms(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	var mu sync.Mutex
	var latest []types.Document
	dispose, err := manager.Subscribe(types.CollectionQuestions,
		[]types.Filter{{Field: "roomCode", Value: "111111"}},
		func(docs []types.Document) {
			mu.Lock()
			latest = docs
			mu.Unlock()
		})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer dispose()

	if err := manager.Put(ctx, types.CollectionQuestions, "mine",
		map[string]any{"roomCode": "111111", "text": "a"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := manager.Put(ctx, types.CollectionQuestions, "other",
		map[string]any{"roomCode": "222222", "text": "b"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(latest) == 1 && latest[0].ID == "mine"
	}, "Expected only this room's question in the snapshot")
}

func TestDisposerStopsDelivery(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	var mu sync.Mutex
	count := 0
	dispose, err := manager.Subscribe(types.CollectionQuestions, nil,
		func(docs []types.Document) {
			mu.Lock()
			count++
			mu.Unlock()
		})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 1
	}, "Expected initial snapshot before dispose")

	dispose()
	dispose() // second invocation is a no-op

	mu.Lock()
	disposed := count
	mu.Unlock()

	if err := manager.Put(ctx, types.CollectionQuestions, "q1",
		map[string]any{"text": "after dispose"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	final := count
	mu.Unlock()
	if final != disposed {
		t.Errorf("Expected no deliveries after dispose, count went %d -> %d", disposed, final)
	}
}

func TestConcurrentWrites(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%26))
			if err := manager.Put(ctx, types.CollectionQuestions, id+"-doc",
				map[string]any{"n": n}); err != nil {
				t.Errorf("Concurrent put failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	docs, err := manager.Query(ctx, types.CollectionQuestions, nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(docs) == 0 {
		t.Error("Expected documents after concurrent writes")
	}
}

func TestOperationsAfterClose(t *testing.T) {
	config := database.DefaultConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "closed_test.db")

	manager, err := NewManager(config)
	if err != nil {
		t.Fatalf("Failed to create store manager: %v", err)
	}
	if err := manager.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := manager.Put(context.Background(), types.CollectionRooms, "r1", map[string]any{"a": 1}); err != interfaces.ErrStoreClosed {
		t.Errorf("Expected ErrStoreClosed from Put, got %v", err)
	}
	if _, err := manager.Subscribe(types.CollectionRooms, nil, func([]types.Document) {}); err != interfaces.ErrStoreClosed {
		t.Errorf("Expected ErrStoreClosed from Subscribe, got %v", err)
	}

	// Close is idempotent.
	if err := manager.Close(); err != nil {
		t.Errorf("Expected second close to succeed, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	manager := newTestManager(t)

	if err := manager.HealthCheck(context.Background()); err != nil {
		t.Errorf("Expected health check to pass, got %v", err)
	}
}
