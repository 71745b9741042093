// Package sqlite provides a SQLite-backed tournament provider.
package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/chrisvdg/tourneyfilter/cache"
	"github.com/chrisvdg/tourneyfilter/criteria"
	"github.com/chrisvdg/tourneyfilter/tournament"
)

const schema = `
CREATE TABLE IF NOT EXISTS tournaments (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    location TEXT NOT NULL DEFAULT '',
    name_fold TEXT NOT NULL DEFAULT '',
    location_fold TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'upcoming' CHECK (status IN ('upcoming', 'ongoing', 'finished')),
    start_date INTEGER NOT NULL,
    end_date INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_tournaments_start_date ON tournaments(start_date);
CREATE INDEX IF NOT EXISTS idx_tournaments_category ON tournaments(category);
`

// name and location are matched and sorted on columns folded with
// strings.ToLower, since SQLite's lower() and NOCASE only fold ASCII
var orderColumns = map[string]string{
	"start_date": "start_date",
	"name":       "name_fold",
	"location":   "location_fold",
	"category":   "category",
}

// Store persists tournaments in SQLite and looks them up by criteria
type Store struct {
	db       *sql.DB
	pageSize int
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite tournament store and creates the schema.
// ":memory:" opens a private in-memory database.
func Open(path string, pageSize int) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	memory := path == ":memory:"
	dsn := path
	if !memory {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite db")
	}
	if memory {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping sqlite db")
	}
	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}
	if pageSize <= 0 {
		pageSize = tournament.DefaultPageSize
	}

	return &Store{db: db, pageSize: pageSize}, nil
}

// Close closes the SQLite handle
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Put inserts t or replaces the tournament with the same ID
func (s *Store) Put(ctx context.Context, t tournament.Tournament) error {
	return put(ctx, s.db, t)
}

// PutAll stores every tournament in a single transaction
func (s *Store) PutAll(ctx context.Context, ts []tournament.Tournament) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	for _, t := range ts {
		err = put(ctx, tx, t)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	err = tx.Commit()
	if err != nil {
		return errors.Wrap(err, "failed to commit tournaments")
	}
	log.Debugf("Stored %d tournaments", len(ts))
	return nil
}

func put(ctx context.Context, db execer, t tournament.Tournament) error {
	err := t.Validate()
	if err != nil {
		return err
	}
	name := strings.TrimSpace(t.Name)
	status := t.Status
	if status == "" {
		status = tournament.StatusUpcoming
	}

	_, err = db.ExecContext(
		ctx,
		`INSERT INTO tournaments (id, name, category, location, name_fold, location_fold, status, start_date, end_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   category = excluded.category,
		   location = excluded.location,
		   name_fold = excluded.name_fold,
		   location_fold = excluded.location_fold,
		   status = excluded.status,
		   start_date = excluded.start_date,
		   end_date = excluded.end_date`,
		strings.TrimSpace(t.ID),
		name,
		t.Category,
		t.Location,
		strings.ToLower(name),
		strings.ToLower(t.Location),
		string(status),
		toMillis(t.StartDate),
		toMillis(t.EndDate),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to store tournament %s", t.ID)
	}
	return nil
}

// Lookup returns the requested page of tournaments matching c
func (s *Store) Lookup(ctx context.Context, c criteria.Criteria) (*cache.ResultSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := tournament.NewQuery(c, s.pageSize)
	where, args := whereClause(q)

	var total int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tournaments"+where, args...).Scan(&total)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count tournaments")
	}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	order, ok := orderColumns[q.SortBy]
	if !ok {
		order = orderColumns["start_date"]
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, category, location, status, start_date, end_date
		   FROM tournaments`+where+`
		  ORDER BY `+order+` `+dir+`, id `+dir+`
		  LIMIT ? OFFSET ?`,
		append(args, q.Limit, q.Offset)...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tournaments")
	}
	defer rows.Close()

	page := []tournament.Tournament{}
	for rows.Next() {
		var t tournament.Tournament
		var status string
		var start, end int64
		err = rows.Scan(&t.ID, &t.Name, &t.Category, &t.Location, &status, &start, &end)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan tournament")
		}
		t.Status = tournament.Status(status)
		t.StartDate = fromMillis(start)
		t.EndDate = fromMillis(end)
		page = append(page, t)
	}
	err = rows.Err()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read tournaments")
	}

	return tournament.ResultSet(page, total)
}

func whereClause(q tournament.Query) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if q.Category != "" {
		conds = append(conds, "category = ? COLLATE NOCASE")
		args = append(args, q.Category)
	}
	if q.Location != "" {
		conds = append(conds, "instr(location_fold, ?) > 0")
		args = append(args, strings.ToLower(q.Location))
	}
	if q.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(q.Status))
	}
	if !q.From.IsZero() {
		conds = append(conds, "start_date >= ?")
		args = append(args, toMillis(q.From))
	}
	if !q.To.IsZero() {
		conds = append(conds, "start_date < ?")
		args = append(args, toMillis(q.To.AddDate(0, 0, 1)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
