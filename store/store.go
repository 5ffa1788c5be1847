// Package store keeps compiled units in an SQLite database, indexed by the
// hash of their canonical encoding. Identical units are stored once.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/opdump/pkg/bytecode"
)

var log = commonlog.GetLogger("opdump.store")

// ErrNotFound indicates the requested unit doesn't exist.
var ErrNotFound = errors.New("store: unit not found")

const idPrefix = "unit"

const schema = `
CREATE TABLE IF NOT EXISTS units (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT NOT NULL UNIQUE,
	hash         TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	display      TEXT NOT NULL,
	kind         TEXT NOT NULL,
	filename     TEXT NOT NULL,
	instructions INTEGER NOT NULL,
	created      INTEGER NOT NULL,
	data         BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS units_display ON units (display);
`

// Entry describes one stored unit without decoding it.
type Entry struct {
	ID           string
	Hash         string // hex SHA-256 of the encoded unit
	Name         string // display name
	Kind         string
	Filename     string
	Instructions int
	Created      time.Time
}

// Store is a unit database. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex // serializes the lookup-then-insert in Put
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	// One connection: SQLite serializes writers anyway and ":memory:"
	// databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: creating schema: %w", err)
	}
	log.Debugf("opened unit store %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores u and returns its entry. Storing a unit whose encoding is
// already present returns the existing entry unchanged.
func (s *Store) Put(ctx context.Context, u *bytecode.Unit) (Entry, error) {
	if u == nil {
		return Entry{}, errors.New("store: nil unit")
	}
	data, err := bytecode.MarshalUnit(u)
	if err != nil {
		return Entry{}, fmt.Errorf("store: %w", err)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := scanEntry(s.db.QueryRowContext(ctx, selectEntry+" FROM units WHERE hash = ?", hash))
	if err == nil {
		log.Debugf("unit %s already stored as %s", u.DisplayName(), existing.ID)
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Entry{}, err
	}

	e := Entry{
		ID:           idPrefix + "_" + uuid.New().String(),
		Hash:         hash,
		Name:         u.DisplayName(),
		Kind:         u.Kind.String(),
		Filename:     u.Filename,
		Instructions: len(u.Instructions),
		Created:      time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO units (id, hash, name, display, kind, filename, instructions, created, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Hash, u.Name, e.Name, e.Kind, e.Filename, e.Instructions, e.Created.UnixNano(), data,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("store: saving unit %s: %w", e.Name, err)
	}
	log.Debugf("stored unit %s as %s", e.Name, e.ID)
	return e, nil
}

// PutProgram stores every unit of prog in dump order: main, functions,
// then class methods.
func (s *Store) PutProgram(ctx context.Context, prog *bytecode.Program) ([]Entry, error) {
	if prog == nil {
		return nil, errors.New("store: nil program")
	}
	var entries []Entry
	for _, u := range prog.Units() {
		e, err := s.Put(ctx, u)
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Get loads the unit with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*bytecode.Unit, Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntry+", data FROM units WHERE id = ?", id)
	var data []byte
	e, err := scanEntry(row, &data)
	if err != nil {
		return nil, Entry{}, err
	}
	u, err := bytecode.UnmarshalUnit(data)
	if err != nil {
		return nil, e, fmt.Errorf("store: unit %s: %w", id, err)
	}
	return u, e, nil
}

// FindByName lists the entries whose display name is name, oldest first.
func (s *Store) FindByName(ctx context.Context, name string) ([]Entry, error) {
	return s.query(ctx, selectEntry+" FROM units WHERE display = ? ORDER BY seq", name)
}

// List returns every entry in insertion order.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	return s.query(ctx, selectEntry+" FROM units ORDER BY seq")
}

// Units decodes the units with the given IDs, in that order. With no IDs it
// returns every stored unit in insertion order.
func (s *Store) Units(ctx context.Context, ids ...string) ([]*bytecode.Unit, error) {
	if len(ids) == 0 {
		entries, err := s.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
	}
	units := make([]*bytecode.Unit, 0, len(ids))
	for _, id := range ids {
		u, _, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

const selectEntry = "SELECT id, hash, display, kind, filename, instructions, created"

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner, extra ...any) (Entry, error) {
	var e Entry
	var created int64
	dest := append([]any{&e.ID, &e.Hash, &e.Name, &e.Kind, &e.Filename, &e.Instructions, &created}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("store: reading entry: %w", err)
	}
	e.Created = time.Unix(0, created).UTC()
	return e, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: querying units: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: querying units: %w", err)
	}
	return entries, nil
}
