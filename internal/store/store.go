// Package store persists plans, shopping lists and optimization runs in
// SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/meal-budget/internal/config"
	"github.com/iwvelando/meal-budget/internal/mealplan"
	"github.com/iwvelando/meal-budget/internal/shopping"
	"github.com/iwvelando/meal-budget/pkg/constants"
	"github.com/iwvelando/meal-budget/pkg/optimization"
	_ "github.com/lib/pq"  // register postgres driver
	_ "modernc.org/sqlite" // register sqlite driver
	"go.uber.org/zap"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Dialect selects SQL placeholder style and column types.
type Dialect string

const (
	DialectSQLite   Dialect = constants.StorageDriverSQLite
	DialectPostgres Dialect = constants.StorageDriverPostgres
)

var schema = map[Dialect][]string{
	DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			budget INTEGER NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS shopping_lists (
			id TEXT PRIMARY KEY,
			plan_id TEXT NOT NULL,
			total_cost INTEGER NOT NULL,
			items_count INTEGER NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS optimization_runs (
			id TEXT PRIMARY KEY,
			plan_id TEXT NOT NULL,
			limit_amount INTEGER NOT NULL,
			initial_cost INTEGER NOT NULL,
			final_cost INTEGER NOT NULL,
			converged INTEGER NOT NULL,
			stop_reason TEXT NOT NULL,
			iterations INTEGER NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	},
	DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			budget BIGINT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS shopping_lists (
			id TEXT PRIMARY KEY,
			plan_id TEXT NOT NULL,
			total_cost BIGINT NOT NULL,
			items_count INTEGER NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS optimization_runs (
			id TEXT PRIMARY KEY,
			plan_id TEXT NOT NULL,
			limit_amount BIGINT NOT NULL,
			initial_cost BIGINT NOT NULL,
			final_cost BIGINT NOT NULL,
			converged BOOLEAN NOT NULL,
			stop_reason TEXT NOT NULL,
			iterations INTEGER NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	},
}

const (
	upsertPlanSQL = "INSERT INTO plans (id, user_id, budget, payload, created_at) VALUES (?, ?, ?, ?, ?) " +
		"ON CONFLICT (id) DO UPDATE SET budget = excluded.budget, payload = excluded.payload"
	insertListSQL = "INSERT INTO shopping_lists (id, plan_id, total_cost, items_count, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)"
	insertRunSQL  = "INSERT INTO optimization_runs (id, plan_id, limit_amount, initial_cost, final_cost, converged, stop_reason, iterations, payload, created_at) " +
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	selectPlanSQL = "SELECT payload FROM plans WHERE id = ?"
	selectRunsSQL = "SELECT id, payload FROM optimization_runs WHERE plan_id = ? ORDER BY created_at, id"
)

// Store is safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
	now     func() time.Time
}

// Open connects to the configured database and applies the schema.
func Open(ctx context.Context, logger *zap.Logger, cfg config.StorageConfig) (*Store, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage dsn is required")
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", cfg.Driver, err)
	}

	s, err := New(ctx, logger, db, Dialect(cfg.Driver))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and applies the schema for dialect.
func New(ctx context.Context, logger *zap.Logger, db *sql.DB, dialect Dialect) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	statements, ok := schema[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported storage dialect %q", dialect)
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return &Store{
		db:      db,
		dialect: dialect,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SavePlan inserts or replaces plan and returns its ID. A plan without an ID
// is assigned one.
func (s *Store) SavePlan(ctx context.Context, plan *mealplan.Plan) (string, error) {
	return s.savePlan(ctx, s.db, plan)
}

// SaveList stores list and returns the new list ID.
func (s *Store) SaveList(ctx context.Context, list *shopping.List) (string, error) {
	return s.saveList(ctx, s.db, list)
}

// SaveRun stores the audit trail of one optimization run against planID and
// returns the run ID.
func (s *Store) SaveRun(ctx context.Context, planID string, summary optimization.Summary) (string, error) {
	return s.saveRun(ctx, s.db, planID, summary)
}

// SaveOutcome stores a plan, its shopping list and, when summary is not nil,
// the optimization run in a single transaction. Either all rows are written
// or none are.
func (s *Store) SaveOutcome(ctx context.Context, plan *mealplan.Plan, list *shopping.List, summary *optimization.Summary) (planID, listID, runID string, err error) {
	if plan == nil || list == nil {
		return "", "", "", fmt.Errorf("plan and shopping list are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", "", "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if planID, err = s.savePlan(ctx, tx, plan); err != nil {
		return "", "", "", err
	}
	stored := *list
	stored.PlanID = planID
	if listID, err = s.saveList(ctx, tx, &stored); err != nil {
		return "", "", "", err
	}
	if summary != nil {
		if runID, err = s.saveRun(ctx, tx, planID, *summary); err != nil {
			return "", "", "", err
		}
	}
	if err = tx.Commit(); err != nil {
		return "", "", "", fmt.Errorf("committing outcome: %w", err)
	}

	s.logger.Debug("saved outcome",
		zap.String("op", "store.SaveOutcome"),
		zap.String("planID", planID),
		zap.String("listID", listID),
		zap.String("runID", runID),
	)
	return planID, listID, runID, nil
}

func (s *Store) savePlan(ctx context.Context, db execer, plan *mealplan.Plan) (string, error) {
	if plan == nil {
		return "", fmt.Errorf("plan cannot be nil")
	}
	id := plan.ID
	if id == "" {
		id = uuid.NewString()
	}
	stored := *plan
	stored.ID = id

	payload, err := json.Marshal(&stored)
	if err != nil {
		return "", fmt.Errorf("encoding plan: %w", err)
	}
	if _, err := db.ExecContext(ctx, s.rebind(upsertPlanSQL),
		id, stored.UserID, int64(stored.Budget), string(payload), s.now()); err != nil {
		return "", fmt.Errorf("failed to persist plan: %w", err)
	}

	s.logger.Debug("saved plan", zap.String("op", "store.SavePlan"), zap.String("planID", id))
	return id, nil
}

func (s *Store) saveList(ctx context.Context, db execer, list *shopping.List) (string, error) {
	if list == nil {
		return "", fmt.Errorf("shopping list cannot be nil")
	}
	payload, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encoding shopping list: %w", err)
	}

	id := uuid.NewString()
	if _, err := db.ExecContext(ctx, s.rebind(insertListSQL),
		id, list.PlanID, int64(list.TotalCost), list.ItemsCount, string(payload), s.now()); err != nil {
		return "", fmt.Errorf("failed to persist shopping list: %w", err)
	}

	s.logger.Debug("saved shopping list", zap.String("op", "store.SaveList"), zap.String("listID", id), zap.String("planID", list.PlanID))
	return id, nil
}

func (s *Store) saveRun(ctx context.Context, db execer, planID string, summary optimization.Summary) (string, error) {
	id := uuid.NewString()
	summary.RunID = id

	payload, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("encoding optimization run: %w", err)
	}
	if _, err := db.ExecContext(ctx, s.rebind(insertRunSQL),
		id, planID, int64(summary.Limit), int64(summary.InitialCost), int64(summary.FinalCost),
		summary.Converged, summary.StopReason, summary.Iterations, string(payload), s.now()); err != nil {
		return "", fmt.Errorf("failed to persist optimization run: %w", err)
	}

	s.logger.Debug("saved optimization run",
		zap.String("op", "store.SaveRun"),
		zap.String("runID", id),
		zap.String("planID", planID),
		zap.Bool("converged", summary.Converged),
	)
	return id, nil
}

// LoadPlan returns the plan stored under id.
func (s *Store) LoadPlan(ctx context.Context, id string) (*mealplan.Plan, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.rebind(selectPlanSQL), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	var plan mealplan.Plan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return nil, fmt.Errorf("decoding plan %s: %w", id, err)
	}
	return &plan, nil
}

// Runs returns the optimization runs recorded for planID, oldest first.
func (s *Store) Runs(ctx context.Context, planID string) ([]optimization.Summary, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(selectRunsSQL), planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query optimization runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []optimization.Summary
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		var summary optimization.Summary
		if err := json.Unmarshal([]byte(payload), &summary); err != nil {
			return nil, fmt.Errorf("decoding optimization run %s: %w", id, err)
		}
		runs = append(runs, summary)
	}
	return runs, rows.Err()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
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
