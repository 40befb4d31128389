package profiler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS profiles (
	token       TEXT PRIMARY KEY,
	parent      TEXT NOT NULL DEFAULT '',
	ip          TEXT NOT NULL DEFAULT '',
	method      TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	status_code INTEGER NOT NULL DEFAULT 0,
	time        INTEGER NOT NULL,
	data        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS profiles_time ON profiles (time);
`

// SQLiteStorage stores profiles in a SQLite database.
type SQLiteStorage struct {
	db *sql.DB
}

// OpenSQLiteStorage opens (and creates) the database at path. Use
// ":memory:" for a throwaway store.
func OpenSQLiteStorage(path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("profiler storage: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open profiler database: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create profiler schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error { return s.db.Close() }

func (s *SQLiteStorage) Read(ctx context.Context, token string) (*Profile, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE token = ?`, token).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, token)
	}
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", token, err)
	}
	return &p, nil
}

func (s *SQLiteStorage) Write(ctx context.Context, p *Profile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", p.Token, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO profiles (token, parent, ip, method, url, status_code, time, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Token, p.Parent, p.IP, p.Method, p.URL, p.StatusCode, p.Time.UnixNano(), string(b))
	return err
}

func (s *SQLiteStorage) Find(ctx context.Context, c Criteria) ([]Summary, error) {
	var (
		where []string
		args  []any
	)
	if c.IP != "" {
		where = append(where, "ip LIKE ?")
		args = append(args, "%"+c.IP+"%")
	}
	if c.URL != "" {
		where = append(where, "url LIKE ?")
		args = append(args, "%"+c.URL+"%")
	}
	if c.Method != "" {
		where = append(where, "method = ?")
		args = append(args, strings.ToUpper(c.Method))
	}
	if c.StatusCode != 0 {
		where = append(where, "status_code = ?")
		args = append(args, c.StatusCode)
	}
	if !c.Start.IsZero() {
		where = append(where, "time >= ?")
		args = append(args, c.Start.UnixNano())
	}
	if !c.End.IsZero() {
		where = append(where, "time <= ?")
		args = append(args, c.End.UnixNano())
	}
	query := `SELECT token, parent, ip, method, url, status_code, time FROM profiles`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY time DESC LIMIT ?"
	args = append(args, c.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum Summary
			ns  int64
		)
		if err := rows.Scan(&sum.Token, &sum.Parent, &sum.IP, &sum.Method, &sum.URL, &sum.StatusCode, &ns); err != nil {
			return nil, err
		}
		sum.Time = time.Unix(0, ns)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) Purge(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM profiles`)
	return err
}
