package learning

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BartekS5/fieldmapper/pkg/models"
)

// SQL dialect identifiers.
const (
	DialectSQLServer = "sqlserver"
	DialectPostgres  = "postgres"
	DialectSQLite    = "sqlite"
)

const defaultTable = "learning_cache"

// Dialect hides the placeholder, paging and DDL differences between the
// supported SQL databases.
type Dialect struct {
	Name string
}

// ParseDialect validates a dialect name. "mssql" is accepted for sqlserver,
// "postgresql" and "pgx" for postgres.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case DialectSQLServer, "mssql":
		return Dialect{Name: DialectSQLServer}, nil
	case DialectPostgres, "postgresql", "pgx":
		return Dialect{Name: DialectPostgres}, nil
	case DialectSQLite, "sqlite3":
		return Dialect{Name: DialectSQLite}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported SQL dialect %q", name)
	}
}

// Placeholder returns the bind parameter for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	switch d.Name {
	case DialectSQLServer:
		return fmt.Sprintf("@p%d", n)
	case DialectPostgres:
		return fmt.Sprintf("$%d", n)
	default:
		return "?"
	}
}

// SelectTop wraps "SELECT cols FROM rest" with a row limit.
func (d Dialect) SelectTop(cols, rest string, limit int) string {
	if d.Name == DialectSQLServer {
		return fmt.Sprintf("SELECT TOP (%d) %s FROM %s", limit, cols, rest)
	}
	return fmt.Sprintf("SELECT %s FROM %s LIMIT %d", cols, rest, limit)
}

func (d Dialect) createTable(table string) string {
	text, integer := "TEXT", "INTEGER"
	if d.Name == DialectSQLServer {
		text, integer = "NVARCHAR(MAX)", "INT"
	}
	key := "VARCHAR(255)"
	if d.Name == DialectSQLServer {
		key = "NVARCHAR(255)"
	}
	body := fmt.Sprintf(`%s (
	pattern %s NOT NULL PRIMARY KEY,
	target_field %s NOT NULL,
	confidence %s NOT NULL,
	strategy %s NOT NULL,
	usage_count %s NOT NULL,
	success_rate %s NOT NULL,
	last_used_at %s NOT NULL,
	metadata %s
)`, table, key, text, integer, text, integer, integer, text, text)

	if d.Name == DialectSQLServer {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s", table, body)
	}
	return "CREATE TABLE IF NOT EXISTS " + body
}

const entryColumns = "pattern, target_field, confidence, strategy, usage_count, success_rate, last_used_at, metadata"

// SQLStore keeps the learning cache in a relational table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	table   string
	now     func() time.Time
}

// NewSQLStore wraps an open database. An empty table name means
// "learning_cache".
func NewSQLStore(db *sql.DB, dialect Dialect, table string) *SQLStore {
	if strings.TrimSpace(table) == "" {
		table = defaultTable
	}
	return &SQLStore{db: db, dialect: dialect, table: table, now: time.Now}
}

// EnsureSchema creates the cache table if it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable(s.table)); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

func (s *SQLStore) TopEntries(ctx context.Context, limit int) ([]models.LearningCacheEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := s.dialect.SelectTop(entryColumns,
		s.table+" ORDER BY usage_count DESC, pattern ASC", limit)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query learning cache: %w", err)
	}
	defer rows.Close()

	var out []models.LearningCacheEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Upsert applies all items in one transaction: read the current row, then
// INSERT or UPDATE.
func (s *SQLStore) Upsert(ctx context.Context, items []Upsert) (err error) {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now().UTC()
	for _, u := range items {
		key := PatternKey(u.Pattern)
		existing, err := s.get(ctx, tx, key)
		if err != nil {
			return err
		}
		next := Apply(existing, u, now)
		if existing == nil {
			err = s.insert(ctx, tx, next)
		} else {
			err = s.update(ctx, tx, next)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) get(ctx context.Context, tx *sql.Tx, pattern string) (*models.LearningCacheEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE pattern = %s",
		entryColumns, s.table, s.dialect.Placeholder(1))
	e, err := scanEntry(tx.QueryRowContext(ctx, query, pattern))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read entry %q: %w", pattern, err)
	}
	return &e, nil
}

func (s *SQLStore) insert(ctx context.Context, tx *sql.Tx, e models.LearningCacheEntry) error {
	placeholders := make([]string, 8)
	for i := range placeholders {
		placeholders[i] = s.dialect.Placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.table, entryColumns, strings.Join(placeholders, ", "))

	meta, err := encodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query,
		e.Pattern, e.TargetField, e.Confidence, string(e.Strategy),
		e.UsageCount, e.SuccessRate, formatTime(e.LastUsedAt), meta)
	if err != nil {
		return fmt.Errorf("insert entry %q: %w", e.Pattern, err)
	}
	return nil
}

func (s *SQLStore) update(ctx context.Context, tx *sql.Tx, e models.LearningCacheEntry) error {
	cols := []string{"target_field", "confidence", "strategy", "usage_count", "success_rate", "last_used_at", "metadata"}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = %s", c, s.dialect.Placeholder(i+1))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE pattern = %s",
		s.table, strings.Join(sets, ", "), s.dialect.Placeholder(len(cols)+1))

	meta, err := encodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query,
		e.TargetField, e.Confidence, string(e.Strategy),
		e.UsageCount, e.SuccessRate, formatTime(e.LastUsedAt), meta, e.Pattern)
	if err != nil {
		return fmt.Errorf("update entry %q: %w", e.Pattern, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (models.LearningCacheEntry, error) {
	var (
		e        models.LearningCacheEntry
		strategy string
		lastUsed string
		meta     sql.NullString
	)
	if err := r.Scan(&e.Pattern, &e.TargetField, &e.Confidence, &strategy,
		&e.UsageCount, &e.SuccessRate, &lastUsed, &meta); err != nil {
		return e, err
	}
	e.Strategy = models.StrategyTag(strategy)
	if t, err := time.Parse(time.RFC3339Nano, lastUsed); err == nil {
		e.LastUsedAt = t
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
			return e, fmt.Errorf("decode metadata of %q: %w", e.Pattern, err)
		}
	}
	return e, nil
}

func encodeMetadata(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
