package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/policyscout/discovery-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS model_weights (
	key        TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	generation INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS discovery_jobs (
	id         TEXT PRIMARY KEY,
	domain     TEXT NOT NULL UNIQUE,
	status     TEXT NOT NULL DEFAULT 'pending',
	attempts   INTEGER NOT NULL DEFAULT 0,
	result     TEXT,
	error      TEXT,
	error_type TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS document_cache (
	id         TEXT PRIMARY KEY,
	domain     TEXT NOT NULL UNIQUE,
	documents  TEXT NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_discovery_jobs_status ON discovery_jobs(status);
CREATE INDEX IF NOT EXISTS idx_discovery_jobs_pending ON discovery_jobs(status, created_at);
CREATE INDEX IF NOT EXISTS idx_document_cache_domain ON document_cache(domain);
CREATE INDEX IF NOT EXISTS idx_document_cache_expires_at ON document_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveModel(ctx context.Context, key string, state []byte, generation int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_weights (key, state, generation, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET state = excluded.state, generation = excluded.generation, updated_at = excluded.updated_at`,
		key, string(state), generation, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save model %s", key)
}

func (s *SQLiteStore) LoadModel(ctx context.Context, key string) ([]byte, int, error) {
	var state string
	var generation int
	err := s.db.QueryRowContext(ctx,
		`SELECT state, generation FROM model_weights WHERE key = ?`,
		key,
	).Scan(&state, &generation)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, eris.Wrapf(err, "sqlite: load model %s", key)
	}
	return []byte(state), generation, nil
}

func (s *SQLiteStore) DeleteModel(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM model_weights WHERE key = ?`, key)
	return eris.Wrapf(err, "sqlite: delete model %s", key)
}

func (s *SQLiteStore) EnqueueDomains(ctx context.Context, domains []string) (int, error) {
	if len(domains) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin enqueue tx")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	added := 0
	for _, d := range domains {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO discovery_jobs (id, domain, status, attempts, created_at, updated_at)
			 VALUES (?, ?, ?, 0, ?, ?)`,
			uuid.New().String(), d, string(model.JobStatusPending), now, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: enqueue domain %s", d)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit enqueue tx")
	}
	return added, nil
}

// ClaimNext atomically claims the oldest pending job. The UPDATE re-checks
// status so concurrent workers cannot claim the same row; losing the race
// just moves on to the next candidate. Returns (nil, nil) when the queue
// is empty.
func (s *SQLiteStore) ClaimNext(ctx context.Context) (*model.DiscoveryJob, error) {
	for {
		var id string
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM discovery_jobs WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1`,
			string(model.JobStatusPending),
		).Scan(&id)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: select next pending")
		}

		res, err := s.db.ExecContext(ctx,
			`UPDATE discovery_jobs SET status = ?, attempts = attempts + 1, updated_at = ?
			 WHERE id = ? AND status = ?`,
			string(model.JobStatusProcessing), time.Now().UTC(), id, string(model.JobStatusPending),
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: claim job %s", id)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: rows affected")
		}
		if n == 1 {
			return s.getJob(ctx, id)
		}
	}
}

func (s *SQLiteStore) getJob(ctx context.Context, id string) (*model.DiscoveryJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, domain, status, attempts, result, error, error_type, created_at, updated_at
		 FROM discovery_jobs WHERE id = ?`,
		id,
	)
	return scanJob(row)
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, jobID string, result *model.DiscoveryResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE discovery_jobs SET status = ?, result = ?, error = NULL, error_type = NULL, updated_at = ?
		 WHERE id = ?`,
		string(model.JobStatusCompleted), string(resultJSON), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete job %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) FailJob(ctx context.Context, jobID string, jobErr string, errorType string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE discovery_jobs SET status = ?, error = ?, error_type = ?, updated_at = ?
		 WHERE id = ?`,
		string(model.JobStatusFailed), jobErr, errorType, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail job %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[model.JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM discovery_jobs GROUP BY status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by status")
	}
	defer rows.Close()

	counts := make(map[model.JobStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		counts[model.JobStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count iterate")
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.DiscoveryJob, error) {
	query := `SELECT id, domain, status, attempts, result, error, error_type, created_at, updated_at
	          FROM discovery_jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.DiscoveryJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) RequeueTransient(ctx context.Context, maxAttempts int) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE discovery_jobs SET status = ?, error = NULL, error_type = NULL, updated_at = ?
		 WHERE status = ? AND error_type = ? AND attempts < ?`,
		string(model.JobStatusPending), time.Now().UTC(),
		string(model.JobStatusFailed), model.ErrorTypeTransient, maxAttempts,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: requeue transient")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) ClearJobs(ctx context.Context, status model.JobStatus) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM discovery_jobs WHERE status = ?`,
		string(status),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: clear jobs %s", status)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) SaveDocuments(ctx context.Context, domain string, docs []model.PolicyDocument, ttl time.Duration) error {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	docsJSON, err := json.Marshal(docs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal documents")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO document_cache (id, domain, documents, cached_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET documents = excluded.documents, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		uuid.New().String(), domain, string(docsJSON), now, expiresAt,
	)
	return eris.Wrapf(err, "sqlite: save documents %s", domain)
}

func (s *SQLiteStore) GetDocuments(ctx context.Context, domain string) ([]model.PolicyDocument, error) {
	var docsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT documents FROM document_cache WHERE domain = ? AND expires_at > ?
		 ORDER BY cached_at DESC LIMIT 1`,
		domain, time.Now().UTC(),
	).Scan(&docsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get documents %s", domain)
	}

	var docs []model.PolicyDocument
	if err := json.Unmarshal([]byte(docsJSON), &docs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal documents")
	}
	return docs, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context) (map[string][]model.PolicyDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT domain, documents FROM document_cache WHERE expires_at > ?
		 ORDER BY domain`,
		time.Now().UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	out := make(map[string][]model.PolicyDocument)
	for rows.Next() {
		var domain, docsJSON string
		if err := rows.Scan(&domain, &docsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan documents")
		}
		var docs []model.PolicyDocument
		if err := json.Unmarshal([]byte(docsJSON), &docs); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal documents %s", domain)
		}
		out[domain] = docs
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) DeleteExpiredDocuments(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM document_cache WHERE expires_at <= ?`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired documents")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.DiscoveryJob, error) {
	var j model.DiscoveryJob
	var resultJSON, jobErr, errType sql.NullString

	err := row.Scan(&j.ID, &j.Domain, &j.Status, &j.Attempts, &resultJSON, &jobErr, &errType, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("job not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}

	if resultJSON.Valid {
		j.Result = &model.DiscoveryResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), j.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	j.Error = jobErr.String
	j.ErrorType = errType.String
	return &j, nil
}
