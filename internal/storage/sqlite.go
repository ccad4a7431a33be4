package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "notigate/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serializes all writers: inbox mutations and the
	// unread badge can never observe each other half-applied.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AddNotification(ctx context.Context, it Item) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if it.DeliveredAt.IsZero() {
		it.DeliveredAt = time.Now()
	}
	read := 0
	if it.Read {
		read = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications(id, type, title, body, group_id, delivered_at, read)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO NOTHING`,
		it.ID, it.Type, it.Title, it.Body, nullStr(it.GroupID),
		it.DeliveredAt.Format(time.RFC3339Nano), read,
	)
	return err
}

func (s *sqliteStore) UnreadCount(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE read = 0`).Scan(&n)
	return n, err
}

func (s *sqliteStore) MarkAllRead(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE read = 0`)
	return err
}

func (s *sqliteStore) ListRecent(ctx context.Context, limit int) ([]Item, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, title, body, COALESCE(group_id, ''), delivered_at, read
		 FROM notifications ORDER BY delivered_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		var at string
		var read int
		if err := rows.Scan(&it.ID, &it.Type, &it.Title, &it.Body, &it.GroupID, &at, &read); err != nil {
			return nil, err
		}
		it.Read = read != 0
		if ts, err := time.Parse(time.RFC3339Nano, at); err == nil {
			it.DeliveredAt = ts
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *sqliteStore) LoadPreferences(ctx context.Context) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, ErrDisabled
	}
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM preferences WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(data), true, nil
}

func (s *sqliteStore) SavePreferences(ctx context.Context, raw []byte) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences(id, data) VALUES(1, ?)
		 ON CONFLICT(id) DO UPDATE SET data=excluded.data`,
		string(raw),
	)
	return err
}

func (s *sqliteStore) AppendComment(ctx context.Context, c Comment) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if c.At.IsZero() {
		c.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments(id, subject, body, at) VALUES(?,?,?,?)
		 ON CONFLICT(id) DO NOTHING`,
		c.ID, c.Subject, c.Body, c.At.Format(time.RFC3339Nano),
	)
	return err
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
