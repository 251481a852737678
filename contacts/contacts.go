// Package contacts is the contact book: the people a quote addresses,
// kept in a local SQLite database.
package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/quotedoc/dbopen"
)

const schema = `
CREATE TABLE IF NOT EXISTS contacts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	title TEXT,
	phone TEXT
);
`

// ErrNotFound reports a missing contact id.
var ErrNotFound = errors.New("contacts: not found")

// Contact is one entry in the book.
type Contact struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Title string `json:"title"`
	Phone string `json:"phone"`
}

// Store is a contact book backed by one SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the contact book at path.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("contacts: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open database; the schema must be present.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// Get fetches one contact by id.
func (s *Store) Get(ctx context.Context, id int64) (Contact, error) {
	var c Contact
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, COALESCE(title, ''), COALESCE(phone, '') FROM contacts WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Title, &c.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return Contact{}, fmt.Errorf("contacts: get %d: %w", id, err)
	}
	return c, nil
}

// Put inserts a contact when c.ID is zero, updates it otherwise. The
// stored id is returned.
func (s *Store) Put(ctx context.Context, c Contact) (int64, error) {
	if c.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO contacts (name, email, title, phone) VALUES (?, ?, ?, ?)`,
			c.Name, c.Email, c.Title, c.Phone)
		if err != nil {
			return 0, fmt.Errorf("contacts: insert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("contacts: insert id: %w", err)
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET name = ?, email = ?, title = ?, phone = ? WHERE id = ?`,
		c.Name, c.Email, c.Title, c.Phone, c.ID)
	if err != nil {
		return 0, fmt.Errorf("contacts: update %d: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("%w: id %d", ErrNotFound, c.ID)
	}
	return c.ID, nil
}

// Delete removes a contact.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("contacts: delete %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// List returns all contacts ordered by name.
func (s *Store) List(ctx context.Context) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, COALESCE(title, ''), COALESCE(phone, '') FROM contacts ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("contacts: list: %w", err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Title, &c.Phone); err != nil {
			return nil, fmt.Errorf("contacts: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contacts: list: %w", err)
	}
	return out, nil
}
