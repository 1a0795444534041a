// Package store provides the local SQLite cache of the conversation list.
// It is an optimization only: the engine behaves identically with a nil
// store, the cache just lets `chats` answer without a round-trip.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chatiitd/chatterm/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT ''
);
`

// Store wraps the cache database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the cache database at path and
// initializes its schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache database ping failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertChats inserts or updates the given chats.
func (s *Store) UpsertChats(chats []models.Chat) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin cache tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO chats (id, user_id, title, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET user_id=excluded.user_id,
			title=excluded.title, created_at=excluded.created_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, chat := range chats {
		if _, err := stmt.Exec(chat.ID, chat.UserID, chat.Title, chat.CreatedAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("upsert chat %s: %w", chat.ID, err)
		}
	}
	return tx.Commit()
}

// ReplaceChats overwrites the cached list with chats.
func (s *Store) ReplaceChats(chats []models.Chat) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin cache tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chats`); err != nil {
		return fmt.Errorf("clear chats: %w", err)
	}
	for _, chat := range chats {
		if _, err := tx.Exec(`INSERT INTO chats (id, user_id, title, created_at) VALUES (?, ?, ?, ?)`,
			chat.ID, chat.UserID, chat.Title, chat.CreatedAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert chat %s: %w", chat.ID, err)
		}
	}
	return tx.Commit()
}

// ListChats returns the cached conversation list, newest first.
func (s *Store) ListChats() ([]models.Chat, error) {
	rows, err := s.db.Query(`SELECT id, user_id, title, created_at FROM chats ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var chat models.Chat
		var createdAt string
		if err := rows.Scan(&chat.ID, &chat.UserID, &chat.Title, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			chat.CreatedAt = t
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return chats, nil
}

// DeleteChat removes one conversation from the cache.
func (s *Store) DeleteChat(id string) error {
	if _, err := s.db.Exec(`DELETE FROM chats WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete chat %s: %w", id, err)
	}
	return nil
}

// Clear empties the cache (used on logout).
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM chats`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}
