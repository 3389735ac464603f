package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/lib/pq"
	"github.com/m-mizutani/goerr/v2"

	"github.com/repolens/repolens/pkg/domain/model"
	"github.com/repolens/repolens/pkg/domain/types"
	"github.com/repolens/repolens/pkg/utils/safe"
)

// Client is the PostgreSQL implementation of interfaces.EntityRepository.
type Client struct {
	db *sql.DB
}

func New(ctx context.Context, dsn string) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database")
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to ping database")
	}

	client := &Client{db: db}
	if err := client.migrate(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func (x *Client) Close() error {
	return x.db.Close()
}

// Truncate wipes all tables. Test support only.
func (x *Client) Truncate(ctx context.Context) error {
	_, err := x.db.ExecContext(ctx,
		`TRUNCATE entities, tier_assignments, scan_results, batch_jobs, batch_checkpoints`)
	if err != nil {
		return goerr.Wrap(err, "failed to truncate tables")
	}
	return nil
}

func (x *Client) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			name TEXT NOT NULL,
			stars INTEGER NOT NULL DEFAULT 0,
			forks INTEGER NOT NULL DEFAULT 0,
			watchers INTEGER NOT NULL DEFAULT 0,
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			fork BOOLEAN NOT NULL DEFAULT FALSE,
			pushed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tier_assignments (
			entity_id TEXT PRIMARY KEY REFERENCES entities(id),
			tier INTEGER NOT NULL,
			stars INTEGER NOT NULL DEFAULT 0,
			growth_velocity DOUBLE PRECISION NOT NULL DEFAULT 0,
			engagement_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			scan_priority DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_deep_scan_at TIMESTAMPTZ,
			last_basic_scan_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tier_assignments_tier ON tier_assignments (tier)`,
		`CREATE TABLE IF NOT EXISTS scan_results (
			id BIGSERIAL PRIMARY KEY,
			entity_id TEXT NOT NULL,
			batch_id TEXT NOT NULL,
			scan_type TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			report JSONB,
			credits_used DOUBLE PRECISION NOT NULL DEFAULT 0,
			scanned_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_results_entity ON scan_results (entity_id, scan_type, scanned_at)`,
		`CREATE TABLE IF NOT EXISTS batch_jobs (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			state JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS batch_checkpoints (
			batch_id TEXT PRIMARY KEY,
			payload JSONB NOT NULL,
			taken_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := x.db.ExecContext(ctx, stmt); err != nil {
			return goerr.Wrap(err, "failed to run migration", goerr.V("stmt", stmt))
		}
	}
	return nil
}

func (x *Client) CreateOrUpdateEntity(ctx context.Context, entity *model.Entity) error {
	if err := entity.Validate(); err != nil {
		return err
	}

	_, err := x.db.ExecContext(ctx, `
		INSERT INTO entities (id, owner, name, stars, forks, watchers, archived, fork, pushed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			stars = EXCLUDED.stars,
			forks = EXCLUDED.forks,
			watchers = EXCLUDED.watchers,
			archived = EXCLUDED.archived,
			fork = EXCLUDED.fork,
			pushed_at = EXCLUDED.pushed_at,
			updated_at = EXCLUDED.updated_at
	`, entity.ID, entity.Owner, entity.Name, entity.Stars, entity.Forks, entity.Watchers,
		entity.Archived, entity.Fork, nullTime(entity.PushedAt), entity.CreatedAt, entity.UpdatedAt)
	if err != nil {
		return goerr.Wrap(err, "failed to upsert entity", goerr.V("entity_id", entity.ID))
	}
	return nil
}

func (x *Client) GetEntity(ctx context.Context, id types.EntityID) (*model.Entity, error) {
	row := x.db.QueryRowContext(ctx, `
		SELECT id, owner, name, stars, forks, watchers, archived, fork, pushed_at, created_at, updated_at
		FROM entities WHERE id = $1
	`, id)

	entity, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(types.ErrRecordNotFound, "entity not found",
				goerr.V("entity_id", id),
			)
		}
		return nil, goerr.Wrap(err, "failed to get entity", goerr.V("entity_id", id))
	}
	return entity, nil
}

func (x *Client) ListEntitiesByTier(ctx context.Context, tier types.Tier) ([]*model.Entity, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT e.id, e.owner, e.name, e.stars, e.forks, e.watchers, e.archived, e.fork, e.pushed_at, e.created_at, e.updated_at
		FROM entities e
		JOIN tier_assignments t ON t.entity_id = e.id
		WHERE t.tier = $1
		ORDER BY e.id
	`, int(tier))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list entities", goerr.V("tier", tier))
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan entity row")
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

func (x *Client) UpsertTierAssignment(ctx context.Context, assign *model.TierAssignment) error {
	if err := assign.Validate(); err != nil {
		return err
	}

	_, err := x.db.ExecContext(ctx, `
		INSERT INTO tier_assignments (entity_id, tier, stars, growth_velocity, engagement_score, scan_priority, last_deep_scan_at, last_basic_scan_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (entity_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			stars = EXCLUDED.stars,
			growth_velocity = EXCLUDED.growth_velocity,
			engagement_score = EXCLUDED.engagement_score,
			scan_priority = EXCLUDED.scan_priority,
			last_deep_scan_at = EXCLUDED.last_deep_scan_at,
			last_basic_scan_at = EXCLUDED.last_basic_scan_at,
			updated_at = EXCLUDED.updated_at
	`, assign.EntityID, int(assign.Tier), assign.Stars, assign.GrowthVelocity,
		assign.EngagementScore, assign.ScanPriority,
		nullTimePtr(assign.LastDeepScanAt), nullTimePtr(assign.LastBasicScanAt), assign.UpdatedAt)
	if err != nil {
		return goerr.Wrap(err, "failed to upsert tier assignment", goerr.V("entity_id", assign.EntityID))
	}
	return nil
}

func (x *Client) GetTierAssignment(ctx context.Context, id types.EntityID) (*model.TierAssignment, error) {
	row := x.db.QueryRowContext(ctx, `
		SELECT entity_id, tier, stars, growth_velocity, engagement_score, scan_priority, last_deep_scan_at, last_basic_scan_at, updated_at
		FROM tier_assignments WHERE entity_id = $1
	`, id)

	assign, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(types.ErrRecordNotFound, "tier assignment not found",
				goerr.V("entity_id", id),
			)
		}
		return nil, goerr.Wrap(err, "failed to get tier assignment", goerr.V("entity_id", id))
	}
	return assign, nil
}

func (x *Client) ListTierAssignments(ctx context.Context, tier types.Tier) ([]*model.TierAssignment, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT entity_id, tier, stars, growth_velocity, engagement_score, scan_priority, last_deep_scan_at, last_basic_scan_at, updated_at
		FROM tier_assignments WHERE tier = $1 ORDER BY entity_id
	`, int(tier))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tier assignments", goerr.V("tier", tier))
	}
	defer rows.Close()

	var assigns []*model.TierAssignment
	for rows.Next() {
		assign, err := scanAssignment(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan tier assignment row")
		}
		assigns = append(assigns, assign)
	}
	return assigns, rows.Err()
}

func (x *Client) GetLastScanAt(ctx context.Context, id types.EntityID, scanType types.ScanType) (*time.Time, error) {
	row := x.db.QueryRowContext(ctx, `
		SELECT MAX(scanned_at) FROM scan_results
		WHERE entity_id = $1 AND scan_type = $2 AND success
	`, id, string(scanType))

	var at sql.NullTime
	if err := row.Scan(&at); err != nil {
		return nil, goerr.Wrap(err, "failed to get last scan time", goerr.V("entity_id", id))
	}
	if !at.Valid {
		return nil, nil
	}
	return &at.Time, nil
}

func (x *Client) RecordScanResult(ctx context.Context, result *model.ScanResult) error {
	var report []byte
	if result.Report != nil {
		raw, err := json.Marshal(result.Report)
		if err != nil {
			return goerr.Wrap(err, "failed to marshal analysis report")
		}
		report = raw
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin scan result transaction")
	}
	defer safe.Rollback(tx)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scan_results (entity_id, batch_id, scan_type, success, error, report, credits_used, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, result.EntityID, result.BatchID, string(result.ScanType), result.Success,
		result.Error, nullBytes(report), result.CreditsUsed, result.ScannedAt)
	if err != nil {
		return goerr.Wrap(err, "failed to record scan result", goerr.V("entity_id", result.EntityID))
	}

	if result.Success {
		column := "last_basic_scan_at"
		if result.ScanType == types.ScanTypeDeep {
			column = "last_deep_scan_at"
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE tier_assignments SET `+column+` = $1 WHERE entity_id = $2`,
			result.ScannedAt, result.EntityID)
		if err != nil {
			return goerr.Wrap(err, "failed to update last scan time", goerr.V("entity_id", result.EntityID))
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit scan result", goerr.V("entity_id", result.EntityID))
	}
	return nil
}

// batchState is the JSONB blob holding the parts of a batch job that have
// no dedicated column.
type batchState struct {
	Queue               []model.ScanTask           `json:"queue"`
	Completed           []types.EntityID           `json:"completed"`
	Failed              map[types.EntityID]string  `json:"failed"`
	ConsecutiveFailures int                        `json:"consecutive_failures"`
	RecoveryAttempts    int                        `json:"recovery_attempts"`
	CreditsUsed         float64                    `json:"credits_used"`
	Attempted           int                        `json:"attempted"`
	Succeeded           int                        `json:"succeeded"`
}

func (x *Client) SaveBatchJob(ctx context.Context, job *model.BatchJob) error {
	state, err := json.Marshal(batchState{
		Queue:               job.Queue,
		Completed:           job.Completed,
		Failed:              job.Failed,
		ConsecutiveFailures: job.ConsecutiveFailures,
		RecoveryAttempts:    job.RecoveryAttempts,
		CreditsUsed:         job.CreditsUsed,
		Attempted:           job.Attempted,
		Succeeded:           job.Succeeded,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to marshal batch state")
	}

	_, err = x.db.ExecContext(ctx, `
		INSERT INTO batch_jobs (id, mode, status, reason, started_at, updated_at, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			reason = EXCLUDED.reason,
			updated_at = EXCLUDED.updated_at,
			state = EXCLUDED.state
	`, job.ID, string(job.Mode), string(job.Status), job.Reason, job.StartedAt, job.UpdatedAt, state)
	if err != nil {
		return goerr.Wrap(err, "failed to save batch job", goerr.V("batch_id", job.ID))
	}
	return nil
}

func (x *Client) GetBatchJob(ctx context.Context, id types.BatchID) (*model.BatchJob, error) {
	row := x.db.QueryRowContext(ctx, `
		SELECT id, mode, status, reason, started_at, updated_at, state
		FROM batch_jobs WHERE id = $1
	`, id)
	return scanBatchJob(row, id)
}

func (x *Client) GetLatestBatchJob(ctx context.Context) (*model.BatchJob, error) {
	row := x.db.QueryRowContext(ctx, `
		SELECT id, mode, status, reason, started_at, updated_at, state
		FROM batch_jobs ORDER BY started_at DESC LIMIT 1
	`)
	return scanBatchJob(row, "")
}

func (x *Client) SaveCheckpoint(ctx context.Context, cp *model.Checkpoint) error {
	payload, err := json.Marshal(cp)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal checkpoint")
	}

	_, err = x.db.ExecContext(ctx, `
		INSERT INTO batch_checkpoints (batch_id, payload, taken_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (batch_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			taken_at = EXCLUDED.taken_at
	`, cp.BatchID, payload, cp.TakenAt)
	if err != nil {
		return goerr.Wrap(err, "failed to save checkpoint", goerr.V("batch_id", cp.BatchID))
	}
	return nil
}

func (x *Client) GetCheckpoint(ctx context.Context, id types.BatchID) (*model.Checkpoint, error) {
	row := x.db.QueryRowContext(ctx,
		`SELECT payload FROM batch_checkpoints WHERE batch_id = $1`, id)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(types.ErrRecordNotFound, "checkpoint not found",
				goerr.V("batch_id", id),
			)
		}
		return nil, goerr.Wrap(err, "failed to get checkpoint", goerr.V("batch_id", id))
	}

	var cp model.Checkpoint
	if err := json.Unmarshal(payload, &cp); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal checkpoint", goerr.V("batch_id", id))
	}
	return &cp, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*model.Entity, error) {
	var entity model.Entity
	var pushedAt sql.NullTime
	if err := row.Scan(&entity.ID, &entity.Owner, &entity.Name, &entity.Stars,
		&entity.Forks, &entity.Watchers, &entity.Archived, &entity.Fork,
		&pushedAt, &entity.CreatedAt, &entity.UpdatedAt); err != nil {
		return nil, err
	}
	if pushedAt.Valid {
		entity.PushedAt = pushedAt.Time
	}
	return &entity, nil
}

func scanAssignment(row rowScanner) (*model.TierAssignment, error) {
	var assign model.TierAssignment
	var tier int
	var deepAt, basicAt sql.NullTime
	if err := row.Scan(&assign.EntityID, &tier, &assign.Stars, &assign.GrowthVelocity,
		&assign.EngagementScore, &assign.ScanPriority, &deepAt, &basicAt,
		&assign.UpdatedAt); err != nil {
		return nil, err
	}
	assign.Tier = types.Tier(tier)
	if deepAt.Valid {
		assign.LastDeepScanAt = &deepAt.Time
	}
	if basicAt.Valid {
		assign.LastBasicScanAt = &basicAt.Time
	}
	return &assign, nil
}

func scanBatchJob(row rowScanner, id types.BatchID) (*model.BatchJob, error) {
	var job model.BatchJob
	var mode, status string
	var state []byte
	if err := row.Scan(&job.ID, &mode, &status, &job.Reason,
		&job.StartedAt, &job.UpdatedAt, &state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(types.ErrRecordNotFound, "batch job not found",
				goerr.V("batch_id", id),
			)
		}
		return nil, goerr.Wrap(err, "failed to scan batch job row")
	}
	job.Mode = types.ScanMode(mode)
	job.Status = types.BatchStatus(status)

	var st batchState
	if err := json.Unmarshal(state, &st); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal batch state", goerr.V("batch_id", job.ID))
	}
	job.Queue = st.Queue
	job.Completed = st.Completed
	job.Failed = st.Failed
	if job.Failed == nil {
		job.Failed = map[types.EntityID]string{}
	}
	job.ConsecutiveFailures = st.ConsecutiveFailures
	job.RecoveryAttempts = st.RecoveryAttempts
	job.CreditsUsed = st.CreditsUsed
	job.Attempted = st.Attempted
	job.Succeeded = st.Succeeded
	return &job, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
