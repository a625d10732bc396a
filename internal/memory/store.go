package memory

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("memory not found")

// TouchScoreFunc computes the new consolidation score for a reinforced
// read, given the record's type, its access count including the current
// access, and the time elapsed since the previous access.
type TouchScoreFunc func(t Type, accessCount int, elapsed time.Duration) float64

type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		type TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		importance REAL NOT NULL DEFAULT 0.5,
		consolidation REAL NOT NULL DEFAULT 0,
		access_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		last_accessed DATETIME NOT NULL,
		metadata TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(type);
	CREATE INDEX IF NOT EXISTS idx_memories_last_accessed ON memories(last_accessed);
	`

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) Create(m *Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !m.Type.Valid() {
		return fmt.Errorf("invalid memory type: %q", m.Type)
	}
	if !m.Metadata.Matches(m.Type) {
		return fmt.Errorf("metadata shape does not match type %s", m.Type)
	}

	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO memories (id, content, type, confidence, importance, consolidation, access_count, created_at, last_accessed, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Content, string(m.Type), m.Confidence, m.ImportanceScore, m.ConsolidationScore,
		m.AccessCount, m.CreatedAt.UTC(), m.LastAccessed.UTC(), string(metaJSON),
	)
	return err
}

const memoryColumns = "id, content, type, confidence, importance, consolidation, access_count, created_at, last_accessed, metadata"

func scanMemory(row interface{ Scan(...any) error }) (*Memory, error) {
	m := &Memory{}
	var typ, metaJSON string

	err := row.Scan(
		&m.ID, &m.Content, &typ, &m.Confidence, &m.ImportanceScore, &m.ConsolidationScore,
		&m.AccessCount, &m.CreatedAt, &m.LastAccessed, &metaJSON,
	)
	if err != nil {
		return nil, err
	}

	m.Type = Type(typ)
	if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
		return nil, fmt.Errorf("corrupt metadata for %s: %w", m.ID, err)
	}

	return m, nil
}

func (s *Store) Get(id string) (*Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow("SELECT "+memoryColumns+" FROM memories WHERE id = ?", id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return m, err
}

// GetMany loads the given ids in one query. Missing ids are simply
// absent from the result map.
func (s *Store) GetMany(ids []string) (map[string]*Memory, error) {
	if len(ids) == 0 {
		return map[string]*Memory{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.Query("SELECT "+memoryColumns+" FROM memories WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]*Memory, len(ids))
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		result[m.ID] = m
	}

	return result, rows.Err()
}

// Touch performs the reinforcement read-modify-write for a single memory:
// access_count increments, last_accessed moves to now, and the
// consolidation score is recomputed by score from the pre-update state.
// The whole cycle runs in one transaction so concurrent touches of the
// same id serialize.
func (s *Store) Touch(id string, now time.Time, score TouchScoreFunc) (*Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRow("SELECT "+memoryColumns+" FROM memories WHERE id = ?", id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	elapsed := now.Sub(m.LastAccessed)
	if elapsed < 0 {
		elapsed = 0
	}

	m.AccessCount++
	m.ConsolidationScore = score(m.Type, m.AccessCount, elapsed)
	m.LastAccessed = now.UTC()

	_, err = tx.Exec(
		"UPDATE memories SET access_count = ?, consolidation = ?, last_accessed = ? WHERE id = ?",
		m.AccessCount, m.ConsolidationScore, m.LastAccessed, id,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return m, nil
}

// List returns memories ordered by recency of access, optionally
// restricted to the given types.
func (s *Store) List(types []Type, limit int) ([]*Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := "SELECT " + memoryColumns + " FROM memories"
	var args []interface{}

	if len(types) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(types)), ",")
		query += " WHERE type IN (" + placeholders + ")"
		for _, t := range types {
			args = append(args, string(t))
		}
	}

	query += " ORDER BY last_accessed DESC, created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}

	return memories, rows.Err()
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec("DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *Store) Close() error {
	s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
