package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const dbFileName = "media.db"

// ErrNotFound is returned when no attachment has the requested id.
var ErrNotFound = errors.New("attachment not found")

// Attachment is a stored media item and its editable text metadata.
type Attachment struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	FilePath    string    `json:"-"`
	MimeType    string    `json:"mime_type"`
	AltText     string    `json:"alt"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store wraps the attachments table.
type Store struct {
	db     *sql.DB
	driver string
}

// DefaultPath returns the SQLite file used when no DSN is configured.
func DefaultPath(configDir string) string {
	return filepath.Join(configDir, dbFileName)
}

// InitDB opens the database for driver ("sqlite" or "postgres") and creates
// tables if they don't exist.
func InitDB(ctx context.Context, driver, dsn string) (*Store, error) {
	sqlDriver := driver
	switch driver {
	case "sqlite":
	case "postgres":
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	if driver == "sqlite" {
		// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY
		// and keeps ":memory:" databases alive across calls.
		conn.SetMaxOpenConns(1)
	}

	s := New(conn, driver)
	if err := s.CreateTables(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not create tables: %w", err)
	}
	return s, nil
}

// New wraps an already opened connection.
func New(conn *sql.DB, driver string) *Store {
	return &Store{db: conn, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(q string) string {
	if s.driver != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) CreateTables(ctx context.Context) error {
	const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS attachments (
		id INTEGER NOT NULL PRIMARY KEY,
		filename TEXT NOT NULL,
		file_path TEXT NOT NULL UNIQUE,
		mime_type TEXT NOT NULL DEFAULT '',
		alt_text TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`
	const postgresSchema = `
	CREATE TABLE IF NOT EXISTS attachments (
		id BIGSERIAL PRIMARY KEY,
		filename TEXT NOT NULL,
		file_path TEXT NOT NULL UNIQUE,
		mime_type TEXT NOT NULL DEFAULT '',
		alt_text TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ DEFAULT now()
	);`

	schema := sqliteSchema
	if s.driver == "postgres" {
		schema = postgresSchema
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// UpsertAttachment inserts an attachment keyed by file path and returns its
// id. On conflict only the file facts are refreshed; edited text fields stay.
func (s *Store) UpsertAttachment(ctx context.Context, a Attachment) (int64, error) {
	q := s.rebind(`
		INSERT INTO attachments (filename, file_path, mime_type, title, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			filename=excluded.filename,
			mime_type=excluded.mime_type,
			updated_at=excluded.updated_at
		RETURNING id`)

	var id int64
	err := s.db.QueryRowContext(ctx, q, a.Filename, a.FilePath, a.MimeType, a.Title, time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("could not upsert attachment %s: %w", a.FilePath, err)
	}
	return id, nil
}

const selectColumns = `id, filename, file_path, mime_type, alt_text, title, description, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAttachment(row scanner) (*Attachment, error) {
	var (
		a         Attachment
		updatedAt sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Filename, &a.FilePath, &a.MimeType, &a.AltText, &a.Title, &a.Description, &updatedAt); err != nil {
		return nil, err
	}
	a.UpdatedAt = updatedAt.Time
	return &a, nil
}

// GetAttachment returns the attachment with id, or ErrNotFound.
func (s *Store) GetAttachment(ctx context.Context, id int64) (*Attachment, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+selectColumns+` FROM attachments WHERE id = ?`), id)
	a, err := scanAttachment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not load attachment %d: %w", id, err)
	}
	return a, nil
}

func (s *Store) query(ctx context.Context, q string, limit int, args ...any) ([]Attachment, error) {
	q += ` ORDER BY id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ListAttachments returns up to limit attachments (0 for no limit).
func (s *Store) ListAttachments(ctx context.Context, limit int) ([]Attachment, error) {
	return s.query(ctx, `SELECT `+selectColumns+` FROM attachments`, limit)
}

// SearchAttachments matches query against the file name and the three text fields.
func (s *Store) SearchAttachments(ctx context.Context, query string, limit int) ([]Attachment, error) {
	like := "%" + strings.ToLower(query) + "%"
	return s.query(ctx, `SELECT `+selectColumns+` FROM attachments
		WHERE LOWER(filename) LIKE ? OR LOWER(title) LIKE ? OR LOWER(alt_text) LIKE ? OR LOWER(description) LIKE ?`,
		limit, like, like, like, like)
}

// ListMissingAltText returns attachments that have no alt text yet.
func (s *Store) ListMissingAltText(ctx context.Context, limit int) ([]Attachment, error) {
	return s.query(ctx, `SELECT `+selectColumns+` FROM attachments WHERE alt_text = ''`, limit)
}

// SaveFields overwrites all three text fields. It backs the media view's
// own save, which always sends the full record.
func (s *Store) SaveFields(ctx context.Context, id int64, alt, title, description string) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE attachments SET alt_text = ?, title = ?, description = ?, updated_at = ? WHERE id = ?`),
		alt, title, description, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("could not save attachment %d: %w", id, err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
