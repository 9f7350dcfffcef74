package database

import (
	"database/sql"
	"fmt"
)

// The store keeps every collection in one table of JSON documents. The
// (collection, id) pair is the document address; updated_at is the
// store-assigned write timestamp used for change auditing.
const documentsSchema = `
	CREATE TABLE IF NOT EXISTS documents (
		collection  TEXT NOT NULL,
		id          TEXT NOT NULL,
		fields      TEXT NOT NULL,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL,
		PRIMARY KEY (collection, id)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_collection
		ON documents (collection);
`

// EnsureSchema creates the documents table and its index if missing.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(documentsSchema); err != nil {
		return fmt.Errorf("failed to create documents schema: %w", err)
	}
	return nil
}

// SchemaValidator verifies the documents schema at startup so a store opened
// against a foreign database file fails fast instead of at first write.
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// ValidateTablesExist verifies that the documents table exists.
func (v *SchemaValidator) ValidateTablesExist() error {
	exists, err := v.tableExists("documents")
	if err != nil {
		return fmt.Errorf("error checking documents table: %w", err)
	}
	if !exists {
		return fmt.Errorf("required table documents does not exist")
	}
	return nil
}

// ValidateTableStructure verifies the documents table columns match the
// layout the store expects.
func (v *SchemaValidator) ValidateTableStructure() error {
	required := map[string]string{
		"collection": "TEXT",
		"id":         "TEXT",
		"fields":     "TEXT",
		"created_at": "DATETIME",
		"updated_at": "DATETIME",
	}

	rows, err := v.db.Query(`PRAGMA table_info(documents)`)
	if err != nil {
		return fmt.Errorf("failed to read documents table info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]string)
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return fmt.Errorf("failed to scan column info: %w", err)
		}
		found[name] = colType
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating column info: %w", err)
	}

	for name, colType := range required {
		actual, ok := found[name]
		if !ok {
			return fmt.Errorf("documents table missing column %s", name)
		}
		if actual != colType {
			return fmt.Errorf("documents column %s has type %s, expected %s", name, actual, colType)
		}
	}

	return nil
}

func (v *SchemaValidator) tableExists(name string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
