// Package lookup persists the short-key table that maps printed sheet codes
// to their identity metadata. Keys are minted when sheets are generated and
// are read-only during grading; the only mutation afterwards is bulk cleanup.
package lookup

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "modernc.org/sqlite" // driver: sqlite
)

// KeyLength is the fixed length of a printed short key.
const KeyLength = 8

// KeyAlphabet is the disambiguated character set for short keys.
// Excludes 0/O, 1/I/L and lowercase, which misread on low-quality scans.
const KeyAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// ErrNotFound is returned when a key has no record.
var ErrNotFound = errors.New("lookup: key not found")

// Record is one short-key row.
type Record struct {
	Key          string    `json:"key"`
	AssignmentID string    `json:"assignment_id"`
	StudentID    string    `json:"student_id"`
	Format       string    `json:"format,omitempty"`
	Variant      string    `json:"variant,omitempty"`
	DisplayName  string    `json:"display_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store is the embedded key table. Open once at process start and share;
// the sqlite driver serializes writes internally.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the store at path and ensures the schema.
// Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open lookup store: %w", err)
	}
	// One connection only: sqlite serializes writers anyway, and each pooled
	// connection to ":memory:" would otherwise be a separate empty database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open lookup store: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sheet_keys (
	key           TEXT PRIMARY KEY,
	assignment_id TEXT NOT NULL,
	student_id    TEXT NOT NULL,
	format        TEXT NOT NULL DEFAULT '',
	variant       TEXT NOT NULL DEFAULT '',
	display_name  TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sheet_keys_assignment ON sheet_keys(assignment_id);
CREATE INDEX IF NOT EXISTS idx_sheet_keys_created ON sheet_keys(created_at);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure lookup schema: %w", err)
	}
	return nil
}

// Get returns the record for a key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT key, assignment_id, student_id, format, variant, display_name, created_at
		FROM sheet_keys WHERE key = ?`, key)

	var rec Record
	var created int64
	err := row.Scan(&rec.Key, &rec.AssignmentID, &rec.StudentID, &rec.Format, &rec.Variant, &rec.DisplayName, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("lookup get %q: %w", key, err)
	}
	rec.CreatedAt = time.Unix(created, 0).UTC()
	return rec, nil
}

// PutBatch inserts records in a single transaction. Sheet generation mints one
// key per printed page; batching keeps a 200-page print job to one fsync.
func (s *Store) PutBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("lookup batch insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sheet_keys
		(key, assignment_id, student_id, format, variant, display_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("lookup batch insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		created := rec.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, rec.Key, rec.AssignmentID, rec.StudentID,
			rec.Format, rec.Variant, rec.DisplayName, created.Unix()); err != nil {
			return fmt.Errorf("lookup batch insert key %q: %w", rec.Key, err)
		}
	}
	return tx.Commit()
}

// DeleteByAssignment removes every key minted for one assignment.
// Called when an assignment is discarded.
func (s *Store) DeleteByAssignment(ctx context.Context, assignmentID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sheet_keys WHERE assignment_id = ?`, assignmentID)
	if err != nil {
		return 0, fmt.Errorf("lookup delete assignment %q: %w", assignmentID, err)
	}
	return res.RowsAffected()
}

// DeleteOlderThan removes keys created before the cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sheet_keys WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("lookup delete stale keys: %w", err)
	}
	return res.RowsAffected()
}

// maxUnbiasedByte is the largest multiple of the alphabet size that fits in a
// byte. Bytes at or above it are rejected so every character is equally likely.
const maxUnbiasedByte = 256 - 256%len(KeyAlphabet)

// GenerateKey mints a random short key from the disambiguated alphabet.
func GenerateKey() (string, error) {
	return generateKey(rand.Reader)
}

func generateKey(r io.Reader) (string, error) {
	out := make([]byte, 0, KeyLength)
	buf := make([]byte, KeyLength)
	for len(out) < KeyLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("failed to generate key: %w", err)
		}
		for _, b := range buf {
			if len(out) == KeyLength {
				break
			}
			if int(b) >= maxUnbiasedByte {
				continue
			}
			out = append(out, KeyAlphabet[int(b)%len(KeyAlphabet)])
		}
	}
	return string(out), nil
}

// ValidKey reports whether a decoded string is a well-formed short key.
func ValidKey(key string) bool {
	if len(key) != KeyLength {
		return false
	}
	for i := 0; i < len(key); i++ {
		found := false
		for j := 0; j < len(KeyAlphabet); j++ {
			if key[i] == KeyAlphabet[j] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
