package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"liveclass/pkg/database"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Manager implements the interfaces.Store document store on SQLite.
// All writes funnel through a single goroutine; reads run concurrently
// against the WAL-mode connection pool. Every committed write publishes a
// change notification that re-runs the live queries on that collection.
type Manager struct {
	db           *sql.DB
	config       *database.Config
	writeChannel chan writeOperation
	notifier     *notifier
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

// writeOperation represents a queued database write
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the document store, creating the schema if needed.
func NewManager(config *database.Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store configuration: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := database.ApplySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	if err := database.EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast on a foreign database file instead of at first write.
	validator := database.NewSchemaValidator(db)
	if err := validator.ValidateTablesExist(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if err := validator.ValidateTableStructure(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}
	manager.notifier = newNotifier(manager)

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes all write operations in a single goroutine. Failed
// writes are not retried here: retry is an explicit user action at the
// feature layer, never an implicit store behavior.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			op.result <- op.operation(m.db)

		case <-m.shutdown:
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion
func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return interfaces.ErrStoreClosed
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return ErrWriteTimeout
	case <-m.shutdown:
		return interfaces.ErrStoreClosed
	}
}

// Put creates or fully replaces a document. ServerTimestamp sentinels are
// resolved against the store clock just before the row is written.
func (m *Manager) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	err := m.executeWrite(func(db *sql.DB) error {
		now := time.Now().UTC()
		resolved := types.ResolveServerTimestamps(fields, now)

		fieldsJSON, err := json.Marshal(resolved)
		if err != nil {
			return fmt.Errorf("failed to marshal document fields: %w", err)
		}

		query := `
			INSERT INTO documents (collection, id, fields, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (collection, id) DO UPDATE SET
				fields = excluded.fields,
				updated_at = excluded.updated_at
		`
		if _, err := db.ExecContext(ctx, query, collection, id, string(fieldsJSON), now, now); err != nil {
			return fmt.Errorf("failed to put document %s/%s: %w", collection, id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.notifier.collectionChanged(collection)
	return nil
}

// Get reads one document by ID.
func (m *Manager) Get(ctx context.Context, collection, id string) (types.Document, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = ? AND id = ?`, collection, id)

	var fieldsJSON string
	if err := row.Scan(&fieldsJSON); err != nil {
		if err == sql.ErrNoRows {
			return types.Document{}, interfaces.ErrDocumentNotFound
		}
		return types.Document{}, fmt.Errorf("failed to query document %s/%s: %w", collection, id, err)
	}

	doc := types.Document{ID: id}
	if err := json.Unmarshal([]byte(fieldsJSON), &doc.Fields); err != nil {
		return types.Document{}, fmt.Errorf("failed to unmarshal document %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Query is a one-shot read of the documents currently matching all equality
// filters. Filtering happens in memory: collections hold one room's worth of
// documents, far below the point where pushing predicates into SQL pays off.
func (m *Manager) Query(ctx context.Context, collection string, filters []types.Filter) ([]types.Document, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, fields FROM documents WHERE collection = ? ORDER BY created_at ASC, id ASC`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []types.Document
	for rows.Next() {
		var (
			id         string
			fieldsJSON string
		)
		if err := rows.Scan(&id, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}

		doc := types.Document{ID: id}
		if err := json.Unmarshal([]byte(fieldsJSON), &doc.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document %s/%s: %w", collection, id, err)
		}

		if MatchesFilters(doc.Fields, filters) {
			docs = append(docs, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document rows: %w", err)
	}

	return docs, nil
}

// Update merges partial fields into an existing document. The read-merge-
// write happens inside the single writer, so concurrent updates to one
// document serialize; the merge itself is last-write-wins per field.
func (m *Manager) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	err := m.executeWrite(func(db *sql.DB) error {
		row := db.QueryRowContext(ctx,
			`SELECT fields FROM documents WHERE collection = ? AND id = ?`, collection, id)

		var fieldsJSON string
		if err := row.Scan(&fieldsJSON); err != nil {
			if err == sql.ErrNoRows {
				return interfaces.ErrDocumentNotFound
			}
			return fmt.Errorf("failed to read document %s/%s: %w", collection, id, err)
		}

		var existing map[string]any
		if err := json.Unmarshal([]byte(fieldsJSON), &existing); err != nil {
			return fmt.Errorf("failed to unmarshal document %s/%s: %w", collection, id, err)
		}

		now := time.Now().UTC()
		for k, v := range types.ResolveServerTimestamps(fields, now) {
			existing[k] = v
		}

		merged, err := json.Marshal(existing)
		if err != nil {
			return fmt.Errorf("failed to marshal document fields: %w", err)
		}

		query := `UPDATE documents SET fields = ?, updated_at = ? WHERE collection = ? AND id = ?`
		if _, err := db.ExecContext(ctx, query, string(merged), now, collection, id); err != nil {
			return fmt.Errorf("failed to update document %s/%s: %w", collection, id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.notifier.collectionChanged(collection)
	return nil
}

// Delete removes a document. Deleting a missing document is a no-op and
// publishes no change.
func (m *Manager) Delete(ctx context.Context, collection, id string) error {
	var deleted bool
	err := m.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
		if err != nil {
			return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			deleted = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	if deleted {
		m.notifier.collectionChanged(collection)
	}
	return nil
}

// Subscribe opens a live query against the collection. The callback receives
// the full current result set shortly after subscribing and again after
// every committed change to the collection.
func (m *Manager) Subscribe(collection string, filters []types.Filter, fn func([]types.Document)) (types.Disposer, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, interfaces.ErrStoreClosed
	}
	m.mu.RUnlock()

	return m.notifier.subscribe(collection, filters, fn)
}

// HealthCheck validates database connectivity
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var count int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close shuts down the store: the notifier first so no new snapshots are
// computed, then the write loop, then the connection pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.notifier.close()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// MatchesFilters reports whether a field map satisfies every equality
// filter. Values are compared after JSON normalization so an int filter
// matches a float64 field that round-tripped through storage.
func MatchesFilters(fields map[string]any, filters []types.Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok {
			return false
		}
		if !equalValues(v, f.Value) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
