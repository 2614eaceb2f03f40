// ABOUTME: SQLite-backed storage slot plus a queryable index of ledger entries.
// ABOUTME: The index mirrors the persisted history and is rebuilt on every save.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/2389-research/promptmint/core"
)

// SqliteStorage keeps key/value slots and a ledger index in one database.
type SqliteStorage struct {
	db *sql.DB
}

// OpenSqlite opens or creates the database at path and runs migrations.
func OpenSqlite(path string) (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS operations (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			prompt TEXT NOT NULL,
			status TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			image_url TEXT,
			token_uri TEXT,
			tx_hash TEXT,
			explorer_url TEXT,
			token_id TEXT,
			error TEXT
		);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SqliteStorage{db: db}, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

// Get reads the value stored under key.
func (s *SqliteStorage) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query slot %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the value stored under key.
func (s *SqliteStorage) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("upsert slot %s: %w", key, err)
	}
	return nil
}

// IndexHistory replaces the ledger index with history in one transaction.
func (s *SqliteStorage) IndexHistory(history []core.OperationHistoryItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM operations"); err != nil {
		return fmt.Errorf("clear operations: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO operations (id, type, prompt, status, timestamp, image_url, token_uri, tx_hash, explorer_url, token_id, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, item := range history {
		var r core.OperationResult
		if item.Result != nil {
			r = *item.Result
		}
		if _, err := stmt.Exec(item.ID, string(item.Type), item.Prompt, string(item.Status), item.Timestamp,
			nullable(r.ImageURL), nullable(r.TokenURI), nullable(r.TxHash), nullable(r.ExplorerURL),
			nullable(r.TokenID), nullable(item.Error)); err != nil {
			return fmt.Errorf("insert operation %s: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

// ListOperations returns indexed ledger entries, newest first. An empty
// opType lists every type. limit <= 0 means no limit.
func (s *SqliteStorage) ListOperations(opType core.OperationType, limit int) ([]core.OperationHistoryItem, error) {
	query := `SELECT id, type, prompt, status, timestamp, image_url, token_uri, tx_hash, explorer_url, token_id, error
		FROM operations WHERE (? = '' OR type = ?) ORDER BY timestamp DESC, id DESC`
	args := []any{string(opType), string(opType)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []core.OperationHistoryItem
	for rows.Next() {
		var item core.OperationHistoryItem
		var typ, status string
		var imageURL, tokenURI, txHash, explorerURL, tokenID, errMsg sql.NullString
		if err := rows.Scan(&item.ID, &typ, &item.Prompt, &status, &item.Timestamp,
			&imageURL, &tokenURI, &txHash, &explorerURL, &tokenID, &errMsg); err != nil {
			return nil, fmt.Errorf("scan operation row: %w", err)
		}
		item.Type = core.OperationType(typ)
		item.Status = core.OperationStatus(status)
		item.Error = errMsg.String
		r := core.OperationResult{
			ImageURL:    imageURL.String,
			TokenURI:    tokenURI.String,
			TxHash:      txHash.String,
			ExplorerURL: explorerURL.String,
			TokenID:     tokenID.String,
		}
		if r != (core.OperationResult{}) {
			item.Result = &r
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
