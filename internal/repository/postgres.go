package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline-systems/supplyscore/internal/models"
)

const queryTimeout = 5 * time.Second

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// GetEntity retrieves one entity by id.
func (r *PostgresRepository) GetEntity(ctx context.Context, id uuid.UUID) (*models.Entity, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, name, kind, tax_id, registration_number, contact_person,
		       email, phone, address, kyc_verified, created_at
		FROM entities
		WHERE id = $1
	`

	var e models.Entity
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.Name, &e.Kind, &e.TaxID, &e.RegistrationNumber,
		&e.ContactPerson, &e.Email, &e.Phone, &e.Address,
		&e.KYCVerified, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	return &e, nil
}

func (r *PostgresRepository) CreateEntity(ctx context.Context, e *models.Entity) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if e.ID == uuid.Nil {
		id, _ := uuid.NewV7()
		e.ID = id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO entities
		(id, name, kind, tax_id, registration_number, contact_person, email, phone, address, kyc_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		e.ID, e.Name, e.Kind, e.TaxID, e.RegistrationNumber,
		e.ContactPerson, e.Email, e.Phone, e.Address, e.KYCVerified, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}
	return nil
}

// ListTransactions returns an entity's transactions in [from, to], newest last.
func (r *PostgresRepository) ListTransactions(ctx context.Context, entityID uuid.UUID, from, to time.Time) ([]models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, entity_id, counterparty_id, amount, kind, reference, occurred_at
		FROM transactions
		WHERE entity_id = $1 AND occurred_at >= $2 AND occurred_at <= $3
		ORDER BY occurred_at
	`

	rows, err := r.pool.Query(ctx, query, entityID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.EntityID, &t.CounterpartyID, &t.Amount, &t.Kind, &t.Reference, &t.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (r *PostgresRepository) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if t.ID == uuid.Nil {
		id, _ := uuid.NewV7()
		t.ID = id
	}

	query := `
		INSERT INTO transactions (id, entity_id, counterparty_id, amount, kind, reference, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query, t.ID, t.EntityID, t.CounterpartyID, t.Amount, t.Kind, t.Reference, t.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListRelationshipsFrom(ctx context.Context, entityID uuid.UUID, asOf time.Time) ([]models.Relationship, error) {
	return r.listRelationships(ctx, "from_entity_id", entityID, asOf)
}

func (r *PostgresRepository) ListRelationshipsTo(ctx context.Context, entityID uuid.UUID, asOf time.Time) ([]models.Relationship, error) {
	return r.listRelationships(ctx, "to_entity_id", entityID, asOf)
}

func (r *PostgresRepository) listRelationships(ctx context.Context, column string, entityID uuid.UUID, asOf time.Time) ([]models.Relationship, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// column is one of two fixed identifiers, never user input
	query := fmt.Sprintf(`
		SELECT id, from_entity_id, to_entity_id, kind, established_at
		FROM relationships
		WHERE %s = $1 AND established_at <= $2
	`, column)

	rows, err := r.pool.Query(ctx, query, entityID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	defer rows.Close()

	var rels []models.Relationship
	for rows.Next() {
		var rel models.Relationship
		if err := rows.Scan(&rel.ID, &rel.FromEntityID, &rel.ToEntityID, &rel.Kind, &rel.EstablishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

func (r *PostgresRepository) CreateRelationship(ctx context.Context, rel *models.Relationship) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if rel.ID == uuid.Nil {
		id, _ := uuid.NewV7()
		rel.ID = id
	}

	query := `
		INSERT INTO relationships (id, from_entity_id, to_entity_id, kind, established_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, rel.ID, rel.FromEntityID, rel.ToEntityID, rel.Kind, rel.EstablishedAt)
	if err != nil {
		return fmt.Errorf("failed to create relationship: %w", err)
	}
	return nil
}

// StoreFeatures closes any open interval for the same (entity, name) and
// opens a new one. Both steps run in one transaction so a concurrent reader
// never sees two open rows for the same feature.
func (r *PostgresRepository) StoreFeatures(ctx context.Context, entityID uuid.UUID, feats []models.Feature, asOf time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	names := make([]string, 0, len(feats))
	for _, f := range feats {
		names = append(names, f.Name)
	}

	closeQuery := `
		UPDATE features
		SET valid_to = $3
		WHERE entity_id = $1 AND name = ANY($2) AND valid_to IS NULL
	`
	if _, err := tx.Exec(ctx, closeQuery, entityID, names, asOf); err != nil {
		return fmt.Errorf("failed to close feature intervals: %w", err)
	}

	insertQuery := `
		INSERT INTO features (entity_id, name, value, confidence, source, computed_at, valid_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	now := time.Now().UTC()
	for _, f := range feats {
		if _, err := tx.Exec(ctx, insertQuery, entityID, f.Name, f.Value, f.Confidence, f.Source, now, asOf); err != nil {
			return fmt.Errorf("failed to insert feature %s: %w", f.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit feature store: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CurrentFeatures(ctx context.Context, entityID uuid.UUID) ([]models.Feature, error) {
	query := `
		SELECT id, entity_id, name, value, confidence, source, computed_at, valid_from, valid_to
		FROM features
		WHERE entity_id = $1 AND valid_to IS NULL
		ORDER BY name
	`
	return r.queryFeatures(ctx, query, entityID)
}

// FeaturesAsOf is the interval containment query: rows whose validity
// window covers t.
func (r *PostgresRepository) FeaturesAsOf(ctx context.Context, entityID uuid.UUID, t time.Time) ([]models.Feature, error) {
	query := `
		SELECT id, entity_id, name, value, confidence, source, computed_at, valid_from, valid_to
		FROM features
		WHERE entity_id = $1 AND valid_from <= $2 AND (valid_to IS NULL OR valid_to > $2)
		ORDER BY name
	`
	return r.queryFeatures(ctx, query, entityID, t)
}

func (r *PostgresRepository) queryFeatures(ctx context.Context, query string, args ...interface{}) ([]models.Feature, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	var feats []models.Feature
	for rows.Next() {
		var f models.Feature
		if err := rows.Scan(&f.ID, &f.EntityID, &f.Name, &f.Value, &f.Confidence, &f.Source, &f.ComputedAt, &f.ValidFrom, &f.ValidTo); err != nil {
			return nil, fmt.Errorf("failed to scan feature: %w", err)
		}
		feats = append(feats, f)
	}
	return feats, rows.Err()
}

// CreateScoreRequest appends one audit record. There is no update path.
func (r *PostgresRepository) CreateScoreRequest(ctx context.Context, sr *models.ScoreRequest) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	snapshotJSON, err := json.Marshal(sr.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	matchedJSON, err := json.Marshal(sr.MatchedRules)
	if err != nil {
		return fmt.Errorf("failed to marshal matched rules: %w", err)
	}
	flagsJSON, err := json.Marshal(sr.Flags)
	if err != nil {
		return fmt.Errorf("failed to marshal flags: %w", err)
	}
	degradedJSON, err := json.Marshal(sr.DegradedSources)
	if err != nil {
		return fmt.Errorf("failed to marshal degraded sources: %w", err)
	}

	query := `
		INSERT INTO score_requests
		(id, entity_id, requested_at, scorecard_version_id, snapshot, raw_score,
		 final_score, band, confidence, decision, matched_rules, flags,
		 degraded_sources, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.pool.Exec(ctx, query,
		sr.ID, sr.EntityID, sr.RequestedAt, sr.ScorecardVersionID, snapshotJSON,
		sr.RawScore, sr.FinalScore, sr.Band, sr.Confidence, sr.Decision,
		matchedJSON, flagsJSON, degradedJSON, sr.LatencyMS,
	)
	if err != nil {
		return fmt.Errorf("failed to create score request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetScoreRequest(ctx context.Context, id uuid.UUID) (*models.ScoreRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, entity_id, requested_at, scorecard_version_id, snapshot, raw_score,
		       final_score, band, confidence, decision, matched_rules, flags,
		       degraded_sources, latency_ms
		FROM score_requests
		WHERE id = $1
	`
	sr, err := scanScoreRequest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScoreRequestNotFound
		}
		return nil, err
	}
	return sr, nil
}

func (r *PostgresRepository) ListScoreRequests(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.ScoreRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, entity_id, requested_at, scorecard_version_id, snapshot, raw_score,
		       final_score, band, confidence, decision, matched_rules, flags,
		       degraded_sources, latency_ms
		FROM score_requests
		WHERE entity_id = $1
		ORDER BY requested_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list score requests: %w", err)
	}
	defer rows.Close()

	var out []*models.ScoreRequest
	for rows.Next() {
		sr, err := scanScoreRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScoreRequest(row rowScanner) (*models.ScoreRequest, error) {
	var sr models.ScoreRequest
	var snapshotJSON, matchedJSON, flagsJSON, degradedJSON []byte

	err := row.Scan(
		&sr.ID, &sr.EntityID, &sr.RequestedAt, &sr.ScorecardVersionID, &snapshotJSON,
		&sr.RawScore, &sr.FinalScore, &sr.Band, &sr.Confidence, &sr.Decision,
		&matchedJSON, &flagsJSON, &degradedJSON, &sr.LatencyMS,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(snapshotJSON, &sr.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if err := json.Unmarshal(matchedJSON, &sr.MatchedRules); err != nil {
		return nil, fmt.Errorf("failed to unmarshal matched rules: %w", err)
	}
	if err := json.Unmarshal(flagsJSON, &sr.Flags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flags: %w", err)
	}
	if err := json.Unmarshal(degradedJSON, &sr.DegradedSources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal degraded sources: %w", err)
	}
	return &sr, nil
}

// CreateVersion inserts a new scorecard version. Weights are written once
// and never updated; lifecycle changes touch only status columns.
func (r *PostgresRepository) CreateVersion(ctx context.Context, v *models.ScorecardVersion) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if v.ID == uuid.Nil {
		id, _ := uuid.NewV7()
		v.ID = id
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	weightsJSON, err := json.Marshal(v.Weights)
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}
	scalingJSON, err := json.Marshal(v.Scaling)
	if err != nil {
		return fmt.Errorf("failed to marshal scaling: %w", err)
	}

	query := `
		INSERT INTO scorecard_versions
		(id, version, status, weights, scaling, intercept, base_score, max_score,
		 provenance, base_version_id, artifact_id, activatable, gate_reason,
		 discrimination, sample_count, created_at, activated_at, retired_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err = r.pool.Exec(ctx, query,
		v.ID, v.Version, v.Status, weightsJSON, scalingJSON, v.Intercept,
		v.BaseScore, v.MaxScore, v.Provenance, v.BaseVersionID, v.ArtifactID,
		v.Activatable, v.GateReason, v.Discrimination, v.SampleCount,
		v.CreatedAt, v.ActivatedAt, v.RetiredAt, v.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to create scorecard version: %w", err)
	}
	return nil
}

const versionColumns = `
	id, version, status, weights, scaling, intercept, base_score, max_score,
	provenance, base_version_id, artifact_id, activatable, gate_reason,
	discrimination, sample_count, created_at, activated_at, retired_at, notes`

func (r *PostgresRepository) GetVersion(ctx context.Context, id uuid.UUID) (*models.ScorecardVersion, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + versionColumns + ` FROM scorecard_versions WHERE id = $1`
	v, err := scanVersion(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		return nil, err
	}
	return v, nil
}

func (r *PostgresRepository) GetActiveVersion(ctx context.Context) (*models.ScorecardVersion, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + versionColumns + ` FROM scorecard_versions WHERE status = 'active'`
	v, err := scanVersion(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveVersion
		}
		return nil, err
	}
	return v, nil
}

func (r *PostgresRepository) ListVersions(ctx context.Context) ([]*models.ScorecardVersion, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + versionColumns + ` FROM scorecard_versions ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list scorecard versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.ScorecardVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func scanVersion(row rowScanner) (*models.ScorecardVersion, error) {
	var v models.ScorecardVersion
	var weightsJSON, scalingJSON []byte

	err := row.Scan(
		&v.ID, &v.Version, &v.Status, &weightsJSON, &scalingJSON, &v.Intercept,
		&v.BaseScore, &v.MaxScore, &v.Provenance, &v.BaseVersionID, &v.ArtifactID,
		&v.Activatable, &v.GateReason, &v.Discrimination, &v.SampleCount,
		&v.CreatedAt, &v.ActivatedAt, &v.RetiredAt, &v.Notes,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(weightsJSON, &v.Weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	if err := json.Unmarshal(scalingJSON, &v.Scaling); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scaling: %w", err)
	}
	return &v, nil
}

// SwapActiveVersion performs demote-then-promote as one transaction. The
// row lock on the current active version serializes concurrent activations;
// the partial unique index on status='active' backs the invariant even
// against out-of-band writes.
func (r *PostgresRepository) SwapActiveVersion(ctx context.Context, targetID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	var currentID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM scorecard_versions WHERE status = 'active' FOR UPDATE`,
	).Scan(&currentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to lock active version: %w", err)
	}

	if currentID == targetID {
		// Demoting and re-promoting the same row would be a no-op swap.
		return nil
	}

	if currentID != uuid.Nil {
		_, err = tx.Exec(ctx,
			`UPDATE scorecard_versions SET status = 'inactive', retired_at = $2 WHERE id = $1`,
			currentID, now,
		)
		if err != nil {
			return fmt.Errorf("failed to demote active version: %w", err)
		}
	}

	result, err := tx.Exec(ctx,
		`UPDATE scorecard_versions SET status = 'active', activated_at = $2, retired_at = NULL WHERE id = $1`,
		targetID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to promote version: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrVersionNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit version swap: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateDecisionRule(ctx context.Context, rule *models.DecisionRule) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if rule.ID == uuid.Nil {
		id, _ := uuid.NewV7()
		rule.ID = id
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO decision_rules (id, name, expression, action, value, flag, priority, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		rule.ID, rule.Name, rule.Expression, rule.Action, rule.Value,
		rule.Flag, rule.Priority, rule.Active, rule.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create decision rule: %w", err)
	}
	return nil
}

// ListDecisionRules returns rules in evaluation order: priority ascending,
// then insertion order.
func (r *PostgresRepository) ListDecisionRules(ctx context.Context, activeOnly bool) ([]*models.DecisionRule, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, name, expression, action, value, flag, priority, active, created_at
		FROM decision_rules
	`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY priority, created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list decision rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.DecisionRule
	for rows.Next() {
		var rule models.DecisionRule
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Expression, &rule.Action, &rule.Value, &rule.Flag, &rule.Priority, &rule.Active, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision rule: %w", err)
		}
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

func (r *PostgresRepository) CountDecisionRules(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM decision_rules`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count decision rules: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) CreateArtifact(ctx context.Context, a *models.ModelArtifact) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if a.ID == uuid.Nil {
		id, _ := uuid.NewV7()
		a.ID = id
	}
	if a.TrainedAt.IsZero() {
		a.TrainedAt = time.Now().UTC()
	}

	coeffJSON, err := json.Marshal(a.Coefficients)
	if err != nil {
		return fmt.Errorf("failed to marshal coefficients: %w", err)
	}

	query := `
		INSERT INTO model_artifacts (id, coefficients, auc, sample_count, trained_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.pool.Exec(ctx, query, a.ID, coeffJSON, a.AUC, a.SampleCount, a.TrainedAt)
	if err != nil {
		return fmt.Errorf("failed to create model artifact: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetArtifact(ctx context.Context, id uuid.UUID) (*models.ModelArtifact, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT id, coefficients, auc, sample_count, trained_at FROM model_artifacts WHERE id = $1`

	var a models.ModelArtifact
	var coeffJSON []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&a.ID, &coeffJSON, &a.AUC, &a.SampleCount, &a.TrainedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to get model artifact: %w", err)
	}
	if err := json.Unmarshal(coeffJSON, &a.Coefficients); err != nil {
		return nil, fmt.Errorf("failed to unmarshal coefficients: %w", err)
	}
	return &a, nil
}
