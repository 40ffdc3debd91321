package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// PostgresLeadStore implements LeadStore on a pgx connection pool.
type PostgresLeadStore struct {
	pool *pgxpool.Pool
}

// NewPostgresLeadStore creates a Postgres-backed lead store.
func NewPostgresLeadStore(pool *pgxpool.Pool) *PostgresLeadStore {
	return &PostgresLeadStore{pool: pool}
}

// GetLead fetches a lead row by ID.
func (s *PostgresLeadStore) GetLead(ctx context.Context, leadID string) (*Lead, error) {
	const q = `
		SELECT id, name, source, budget, timeline, interest_level,
		       estimated_value, last_contacted_at, converted,
		       score, quality, created_at, updated_at
		FROM leads WHERE id = $1`

	var lead Lead
	err := s.pool.QueryRow(ctx, q, leadID).Scan(
		&lead.ID, &lead.Name, &lead.Source, &lead.Budget, &lead.Timeline,
		&lead.InterestLevel, &lead.EstimatedValue, &lead.LastContactedAt,
		&lead.Converted, &lead.Score, &lead.Quality,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lead %s: %w", leadID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead %s: %w", leadID, err)
	}
	return &lead, nil
}

// CountActivities counts the logged touchpoints for a lead.
func (s *PostgresLeadStore) CountActivities(ctx context.Context, leadID string) (int, error) {
	const q = `SELECT COUNT(*) FROM lead_activities WHERE lead_id = $1`

	var count int
	if err := s.pool.QueryRow(ctx, q, leadID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count activities for lead %s: %w", leadID, err)
	}
	return count, nil
}

// UpdateScore persists a computed score and quality label on the lead.
func (s *PostgresLeadStore) UpdateScore(ctx context.Context, leadID string, score int, quality string) error {
	const q = `
		UPDATE leads SET score = $2, quality = $3, updated_at = now()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, leadID, score, quality)
	if err != nil {
		return fmt.Errorf("failed to update score for lead %s: %w", leadID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lead %s: %w", leadID, ErrNotFound)
	}
	return nil
}

// PostgresCustomerStore implements CustomerStore on a pgx connection
// pool. UpdateLoyalty locks the customer row for the duration of the
// compute closure, giving the read-compute-write sequence a single
// transaction boundary.
type PostgresCustomerStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCustomerStore creates a Postgres-backed customer store.
func NewPostgresCustomerStore(pool *pgxpool.Pool) *PostgresCustomerStore {
	return &PostgresCustomerStore{pool: pool}
}

const customerColumns = `id, total_points, tier, last_activity_at, created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.TotalPoints, &c.Tier, &c.LastActivityAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCustomer fetches a customer's loyalty state by ID.
func (s *PostgresCustomerStore) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	q := fmt.Sprintf(`SELECT %s FROM customers WHERE id = $1`, customerColumns)

	c, err := scanCustomer(s.pool.QueryRow(ctx, q, customerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer %s: %w", customerID, err)
	}
	return c, nil
}

// ListDecayCandidates returns customers with points whose last
// activity is at or before cutoff, ordered by staleness.
func (s *PostgresCustomerStore) ListDecayCandidates(ctx context.Context, cutoff time.Time) ([]Customer, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM customers
		WHERE total_points > 0 AND last_activity_at <= $1
		ORDER BY last_activity_at ASC`, customerColumns)

	rows, err := s.pool.Query(ctx, q, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list decay candidates: %w", err)
	}
	defer rows.Close()

	var candidates []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decay candidate: %w", err)
		}
		candidates = append(candidates, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read decay candidates: %w", err)
	}
	return candidates, nil
}

// UpdateLoyalty runs fn against the customer's current row under a
// row lock and persists the mutated state in the same transaction.
func (s *PostgresCustomerStore) UpdateLoyalty(ctx context.Context, customerID string, fn func(c *Customer) error) (*Customer, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logrus.Errorf("rollback failed for customer %s: %v", customerID, err)
		}
	}()

	q := fmt.Sprintf(`SELECT %s FROM customers WHERE id = $1 FOR UPDATE`, customerColumns)
	c, err := scanCustomer(tx.QueryRow(ctx, q, customerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock customer %s: %w", customerID, err)
	}

	if err := fn(c); err != nil {
		return nil, err
	}

	const update = `
		UPDATE customers
		SET total_points = $2, tier = $3, last_activity_at = $4, updated_at = now()
		WHERE id = $1`
	if _, err := tx.Exec(ctx, update, c.ID, c.TotalPoints, c.Tier, c.LastActivityAt); err != nil {
		return nil, fmt.Errorf("failed to update customer %s: %w", customerID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit customer %s: %w", customerID, err)
	}
	return c, nil
}

// RecordTierChange appends a tier transition audit row.
func (s *PostgresCustomerStore) RecordTierChange(ctx context.Context, change TierChange) error {
	const q = `
		INSERT INTO tier_changes (id, customer_id, old_tier, new_tier, reason, points_lost, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, q,
		change.ID, change.CustomerID, change.OldTier, change.NewTier,
		change.Reason, change.PointsLost, change.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to record tier change for customer %s: %w", change.CustomerID, err)
	}
	return nil
}

// EnsureSchema creates the tables this service owns if they do not
// exist yet. Kept idempotent so the service can start against an
// empty database.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS leads (
		id                UUID PRIMARY KEY,
		name              TEXT NOT NULL DEFAULT '',
		source            TEXT NOT NULL DEFAULT '',
		budget            TEXT NOT NULL DEFAULT '',
		timeline          TEXT NOT NULL DEFAULT '',
		interest_level    TEXT NOT NULL DEFAULT '',
		estimated_value   NUMERIC NOT NULL DEFAULT 0,
		last_contacted_at TIMESTAMPTZ,
		converted         BOOLEAN NOT NULL DEFAULT FALSE,
		score             INT NOT NULL DEFAULT 0,
		quality           TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS lead_activities (
		id         UUID PRIMARY KEY,
		lead_id    UUID NOT NULL REFERENCES leads(id),
		type       TEXT NOT NULL,
		note       TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_lead_activities_lead_id ON lead_activities(lead_id);
	CREATE TABLE IF NOT EXISTS customers (
		id               UUID PRIMARY KEY,
		total_points     INT NOT NULL DEFAULT 0,
		tier             TEXT NOT NULL DEFAULT 'Wing Member',
		last_activity_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_customers_last_activity ON customers(last_activity_at) WHERE total_points > 0;
	CREATE TABLE IF NOT EXISTS tier_changes (
		id          UUID PRIMARY KEY,
		customer_id UUID NOT NULL REFERENCES customers(id),
		old_tier    TEXT NOT NULL,
		new_tier    TEXT NOT NULL,
		reason      TEXT NOT NULL,
		points_lost INT NOT NULL DEFAULT 0,
		occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_tier_changes_customer ON tier_changes(customer_id);`

	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	logrus.Info("database schema ensured")
	return nil
}
