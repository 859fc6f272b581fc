// Package postgres provides the Postgres-backed BookStore.
package postgres

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/bookshelf-crawler/internal/catalog"
	idgen "github.com/JakeFAU/bookshelf-crawler/internal/id/uuid"
)

const defaultTable = "books"

var (
	validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

	//go:embed schema.sql
	schemaSQL      string
	schemaTemplate = template.Must(template.New("schema").Parse(schemaSQL))

	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

	sortColumns = map[catalog.SortField]string{
		catalog.SortByTitle:  "title",
		catalog.SortByPrice:  "price",
		catalog.SortByRating: "rating",
	}
)

const bookColumns = `id, title, price, rating, in_stock, stock_count, availability_text, detail_url, image_url, created_at, updated_at`

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// Migrate applies the embedded schema on startup.
	Migrate bool
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// BookStore persists BookRecords in a single table keyed by detail_url.
type BookStore struct {
	pool  pgxPool
	table string
	clock catalog.Clock
	ids   catalog.IDGenerator
}

var _ catalog.BookStore = (*BookStore)(nil)

// NewBookStore connects to Postgres, verifies the connection and optionally
// bootstraps the schema.
func NewBookStore(ctx context.Context, cfg Config, clock catalog.Clock, ids catalog.IDGenerator) (*BookStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewBookStoreWithPool(pool, cfg.Table, clock, ids)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if cfg.Migrate {
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return store, nil
}

// NewBookStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewBookStoreWithPool(pool pgxPool, table string, clock catalog.Clock, ids catalog.IDGenerator) (*BookStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &BookStore{pool: pool, table: table, clock: clock, ids: ids}, nil
}

// EnsureSchema creates the table and its indexes when missing.
func (s *BookStore) EnsureSchema(ctx context.Context) error {
	ddl, err := renderSchema(s.table)
	if err != nil {
		return err
	}
	// No arguments keeps pgx on the simple protocol, which accepts
	// multiple statements.
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func renderSchema(table string) (string, error) {
	var buf bytes.Buffer
	if err := schemaTemplate.Execute(&buf, struct{ Table string }{table}); err != nil {
		return "", fmt.Errorf("render schema: %w", err)
	}
	return buf.String(), nil
}

// Ping checks connectivity.
func (s *BookStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *BookStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// UpsertBook inserts rec or updates the row sharing its detail_url. The
// existing id and created_at survive an update.
func (s *BookStore) UpsertBook(ctx context.Context, rec catalog.BookRecord) (catalog.BookRecord, error) {
	if rec.DetailURL == "" {
		return catalog.BookRecord{}, errors.New("detail url is required")
	}
	id, err := s.ids.NewID()
	if err != nil {
		return catalog.BookRecord{}, fmt.Errorf("allocate record id: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
ON CONFLICT (detail_url) DO UPDATE SET
	title = EXCLUDED.title,
	price = EXCLUDED.price,
	rating = EXCLUDED.rating,
	in_stock = EXCLUDED.in_stock,
	stock_count = EXCLUDED.stock_count,
	availability_text = EXCLUDED.availability_text,
	image_url = EXCLUDED.image_url,
	updated_at = EXCLUDED.updated_at
RETURNING id, created_at, updated_at`, s.table, bookColumns)

	out := rec.Clone()
	err = s.pool.QueryRow(ctx, query,
		id,
		rec.Title,
		rec.Price,
		rec.Rating,
		rec.InStock,
		rec.StockCount,
		rec.AvailabilityText,
		rec.DetailURL,
		rec.ImageURL,
		s.clock.Now(),
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return catalog.BookRecord{}, fmt.Errorf("upsert book: %w", err)
	}
	return out, nil
}

// ListBooks runs a count and a page query with identical filters.
func (s *BookStore) ListBooks(ctx context.Context, q catalog.Query) (catalog.ListResult, error) {
	where, args := buildWhere(q)

	var total int
	countSQL := fmt.Sprintf("SELECT count(*) FROM %s%s", s.table, where)
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return catalog.ListResult{}, fmt.Errorf("count books: %w", err)
	}

	listSQL := fmt.Sprintf("SELECT %s FROM %s%s %s", bookColumns, s.table, where, orderBy(q))
	if q.Limit > 0 {
		args = append(args, q.Limit)
		listSQL += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		listSQL += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := s.pool.Query(ctx, listSQL, args...)
	if err != nil {
		return catalog.ListResult{}, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	records := make([]catalog.BookRecord, 0)
	for rows.Next() {
		rec, err := scanBook(rows)
		if err != nil {
			return catalog.ListResult{}, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return catalog.ListResult{}, fmt.Errorf("iterate books: %w", err)
	}
	return catalog.ListResult{Records: records, Total: total}, nil
}

// GetBook returns catalog.ErrNotFound for unknown ids and for ids that are
// not UUIDs.
func (s *BookStore) GetBook(ctx context.Context, id string) (catalog.BookRecord, error) {
	if !idgen.Valid(id) {
		return catalog.BookRecord{}, catalog.ErrNotFound
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", bookColumns, s.table)
	rec, err := scanBook(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.BookRecord{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.BookRecord{}, err
	}
	return rec, nil
}

func scanBook(row pgx.Row) (catalog.BookRecord, error) {
	var rec catalog.BookRecord
	err := row.Scan(
		&rec.ID,
		&rec.Title,
		&rec.Price,
		&rec.Rating,
		&rec.InStock,
		&rec.StockCount,
		&rec.AvailabilityText,
		&rec.DetailURL,
		&rec.ImageURL,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.BookRecord{}, err
	}
	if err != nil {
		return catalog.BookRecord{}, fmt.Errorf("scan book: %w", err)
	}
	return rec, nil
}

func buildWhere(q catalog.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if q.Search != "" {
		add(`title ILIKE $%d ESCAPE '\'`, "%"+likeEscaper.Replace(q.Search)+"%")
	}
	if q.Rating != nil {
		add("rating = $%d", *q.Rating)
	}
	if q.InStock != nil {
		add("in_stock = $%d", *q.InStock)
	}
	if q.MinPrice != nil {
		add("price >= $%d", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		add("price <= $%d", *q.MaxPrice)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(q catalog.Query) string {
	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = sortColumns[catalog.SortByTitle]
	}
	dir := "ASC"
	if q.SortOrder == catalog.SortDesc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s NULLS LAST, id ASC", col, dir)
}
