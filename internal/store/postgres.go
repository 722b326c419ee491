package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/policyscout/discovery-cli/internal/db"
	"github.com/policyscout/discovery-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"load_model":    `SELECT state, generation FROM model_weights WHERE key = $1`,
	"complete_job":  `UPDATE discovery_jobs SET status = $1, result = $2, error = NULL, error_type = NULL, updated_at = $3 WHERE id = $4`,
	"fail_job":      `UPDATE discovery_jobs SET status = $1, error = $2, error_type = $3, updated_at = $4 WHERE id = $5`,
	"get_documents": `SELECT documents FROM document_cache WHERE domain = $1 AND expires_at > now() ORDER BY cached_at DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS model_weights (
	key        TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	generation INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS discovery_jobs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	domain     TEXT NOT NULL UNIQUE,
	status     TEXT NOT NULL DEFAULT 'pending',
	attempts   INTEGER NOT NULL DEFAULT 0,
	result     JSONB,
	error      TEXT,
	error_type TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS document_cache (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	domain     TEXT NOT NULL UNIQUE,
	documents  JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_discovery_jobs_status ON discovery_jobs(status);
CREATE INDEX IF NOT EXISTS idx_discovery_jobs_pending ON discovery_jobs(status, created_at);
CREATE INDEX IF NOT EXISTS idx_document_cache_domain ON document_cache(domain);
CREATE INDEX IF NOT EXISTS idx_document_cache_expires_at ON document_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveModel(ctx context.Context, key string, state []byte, generation int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO model_weights (key, state, generation, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET state = $2, generation = $3, updated_at = $4`,
		key, state, generation, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save model %s", key)
}

func (s *PostgresStore) LoadModel(ctx context.Context, key string) ([]byte, int, error) {
	var state []byte
	var generation int
	err := s.pool.QueryRow(ctx,
		`SELECT state, generation FROM model_weights WHERE key = $1`,
		key,
	).Scan(&state, &generation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, eris.Wrapf(err, "postgres: load model %s", key)
	}
	return state, generation, nil
}

func (s *PostgresStore) DeleteModel(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM model_weights WHERE key = $1`, key)
	return eris.Wrapf(err, "postgres: delete model %s", key)
}

// EnqueueDomains bulk-inserts via temp table + COPY; conflicting domains are
// skipped so the count reflects only newly added jobs.
func (s *PostgresStore) EnqueueDomains(ctx context.Context, domains []string) (int, error) {
	if len(domains) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(domains))
	for _, d := range domains {
		rows = append(rows, []any{uuid.New().String(), d, string(model.JobStatusPending), 0, now, now})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "discovery_jobs",
		Columns:      []string{"id", "domain", "status", "attempts", "created_at", "updated_at"},
		ConflictKeys: []string{"domain"},
		DoNothing:    true,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: enqueue domains")
	}
	return int(n), nil
}

// ClaimNext claims the oldest pending job with FOR UPDATE SKIP LOCKED so
// concurrent workers never double-claim. Returns (nil, nil) when the queue
// is empty.
func (s *PostgresStore) ClaimNext(ctx context.Context) (*model.DiscoveryJob, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE discovery_jobs
		SET status = 'processing', attempts = attempts + 1, updated_at = now()
		WHERE id = (
			SELECT id FROM discovery_jobs
			WHERE status = 'pending'
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, domain, status, attempts, result, error, error_type, created_at, updated_at`,
	)

	j, err := scanPgJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: claim next")
	}
	return j, nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, jobID string, result *model.DiscoveryResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE discovery_jobs SET status = $1, result = $2, error = NULL, error_type = NULL, updated_at = $3 WHERE id = $4`,
		string(model.JobStatusCompleted), resultJSON, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) FailJob(ctx context.Context, jobID string, jobErr string, errorType string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE discovery_jobs SET status = $1, error = $2, error_type = $3, updated_at = $4 WHERE id = $5`,
		string(model.JobStatusFailed), jobErr, errorType, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[model.JobStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM discovery_jobs GROUP BY status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by status")
	}
	defer rows.Close()

	counts := make(map[model.JobStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan count")
		}
		counts[model.JobStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count iterate")
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.DiscoveryJob, error) {
	query := `SELECT id, domain, status, attempts, result, error, error_type, created_at, updated_at
	          FROM discovery_jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.DiscoveryJob
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) RequeueTransient(ctx context.Context, maxAttempts int) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE discovery_jobs SET status = $1, error = NULL, error_type = NULL, updated_at = $2
		 WHERE status = $3 AND error_type = $4 AND attempts < $5`,
		string(model.JobStatusPending), time.Now().UTC(),
		string(model.JobStatusFailed), model.ErrorTypeTransient, maxAttempts,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: requeue transient")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ClearJobs(ctx context.Context, status model.JobStatus) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM discovery_jobs WHERE status = $1`,
		string(status),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: clear jobs %s", status)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) SaveDocuments(ctx context.Context, domain string, docs []model.PolicyDocument, ttl time.Duration) error {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	docsJSON, err := json.Marshal(docs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal documents")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO document_cache (id, domain, documents, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (domain) DO UPDATE SET documents = $3, cached_at = $4, expires_at = $5`,
		uuid.New().String(), domain, docsJSON, now, expiresAt,
	)
	return eris.Wrapf(err, "postgres: save documents %s", domain)
}

func (s *PostgresStore) GetDocuments(ctx context.Context, domain string) ([]model.PolicyDocument, error) {
	var docsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT documents FROM document_cache WHERE domain = $1 AND expires_at > now()
		 ORDER BY cached_at DESC LIMIT 1`,
		domain,
	).Scan(&docsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get documents %s", domain)
	}

	var docs []model.PolicyDocument
	if err := json.Unmarshal(docsJSON, &docs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal documents")
	}
	return docs, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context) (map[string][]model.PolicyDocument, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT domain, documents FROM document_cache WHERE expires_at > now()
		 ORDER BY domain`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	out := make(map[string][]model.PolicyDocument)
	for rows.Next() {
		var domain string
		var docsJSON []byte
		if err := rows.Scan(&domain, &docsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan documents")
		}
		var docs []model.PolicyDocument
		if err := json.Unmarshal(docsJSON, &docs); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal documents %s", domain)
		}
		out[domain] = docs
	}
	return out, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) DeleteExpiredDocuments(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM document_cache WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired documents")
	}
	return int(tag.RowsAffected()), nil
}

func scanPgJob(row pgx.Row) (*model.DiscoveryJob, error) {
	var j model.DiscoveryJob
	var resultJSON []byte
	var jobErr, errType *string

	err := row.Scan(&j.ID, &j.Domain, &j.Status, &j.Attempts, &resultJSON, &jobErr, &errType, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(resultJSON) > 0 {
		j.Result = &model.DiscoveryResult{}
		if err := json.Unmarshal(resultJSON, j.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	if jobErr != nil {
		j.Error = *jobErr
	}
	if errType != nil {
		j.ErrorType = *errType
	}
	return &j, nil
}
