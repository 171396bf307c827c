// Package archive persists completed simulation results to PostgreSQL so
// runs can be queried after the service restarts.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/url"

	"github.com/cipherledger/cipherledger/foundation/ledger/state"
	_ "github.com/jackc/pgx/v5/stdlib" // Registers the pgx driver.
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a run id does not exist in the archive.
var ErrNotFound = errors.New("run not found")

// Config is the required properties to use the archive.
type Config struct {
	User       string
	Password   string
	Host       string
	Name       string
	DisableTLS bool
}

// Store manages the set of archived simulation runs.
type Store struct {
	db *sql.DB
}

// New constructs a Store against the configured database. The connection is
// established lazily on first use.
func New(cfg Config) (*Store, error) {
	sslMode := "require"
	if cfg.DisableTLS {
		sslMode = "disable"
	}

	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host,
		Path:     cfg.Name,
		RawQuery: q.Encode(),
	}

	db, err := sql.Open("pgx", u.String())
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	return &Store{db: db}, nil
}

// NewWithDB constructs a Store over an existing connection. Used in tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// StatusCheck validates the database is reachable.
func (s *Store) StatusCheck(ctx context.Context) error {
	return errors.Wrap(s.db.PingContext(ctx), "pinging database")
}

// Save writes a completed run to the archive. The full result document is
// stored as JSON next to the columns used for listing and lookups.
func (s *Store) Save(ctx context.Context, result *state.Result) error {
	doc, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "encoding result")
	}

	const q = `
	INSERT INTO simulation_runs
		(run_id, started_at, completed_at, blocks_processed, transaction_count, document)
	VALUES
		($1, $2, $3, $4, $5, $6)`

	if _, err := s.db.ExecContext(ctx, q,
		result.RunID,
		result.StartedAt,
		result.CompletedAt,
		result.BlocksProcessed,
		result.TransactionCount,
		doc,
	); err != nil {
		return errors.Wrapf(err, "inserting run %s", result.RunID)
	}

	return nil
}

// QueryByID retrieves a previously archived run.
func (s *Store) QueryByID(ctx context.Context, runID string) (*state.Result, error) {
	const q = `
	SELECT
		document
	FROM
		simulation_runs
	WHERE
		run_id = $1`

	var doc []byte
	if err := s.db.QueryRowContext(ctx, q, runID).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "querying run %s", runID)
	}

	var result state.Result
	if err := json.Unmarshal(doc, &result); err != nil {
		return nil, errors.Wrap(err, "decoding result")
	}

	return &result, nil
}
