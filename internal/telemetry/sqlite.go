package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/kaia-labs/researcher/internal/model"
)

// Store persists run summaries and feedback to SQLite via
// modernc.org/sqlite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at the given path and configures WAL
// mode.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "telemetry: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "telemetry: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS run_summaries (
	run_id             TEXT PRIMARY KEY,
	started_at         DATETIME NOT NULL,
	latency_ms         INTEGER NOT NULL,
	provider           TEXT NOT NULL,
	question           TEXT NOT NULL,
	brand              TEXT,
	time_period        TEXT,
	web_searches       INTEGER NOT NULL DEFAULT 0,
	web_search_retries INTEGER NOT NULL DEFAULT 0,
	llm_calls          INTEGER NOT NULL DEFAULT 0,
	tokens_in          INTEGER NOT NULL DEFAULT 0,
	tokens_out         INTEGER NOT NULL DEFAULT 0,
	tokens_total       INTEGER NOT NULL DEFAULT 0,
	validated_counts   TEXT,
	help               INTEGER NOT NULL DEFAULT 0,
	coached            INTEGER NOT NULL DEFAULT 0,
	error              TEXT
);

CREATE TABLE IF NOT EXISTS feedback (
	id         TEXT PRIMARY KEY,
	run_id     TEXT,
	rating     INTEGER NOT NULL,
	comment    TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_run_summaries_started_at ON run_summaries(started_at);
CREATE INDEX IF NOT EXISTS idx_run_summaries_provider ON run_summaries(provider);
CREATE INDEX IF NOT EXISTS idx_feedback_run_id ON feedback(run_id);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "telemetry: migrate")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun upserts one run summary.
func (s *Store) SaveRun(ctx context.Context, summary model.RunSummary) error {
	countsJSON, err := json.Marshal(summary.ValidatedCounts)
	if err != nil {
		return eris.Wrap(err, "telemetry: marshal validated counts")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO run_summaries
		 (run_id, started_at, latency_ms, provider, question, brand, time_period,
		  web_searches, web_search_retries, llm_calls, tokens_in, tokens_out, tokens_total,
		  validated_counts, help, coached, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID, summary.StartedAt, summary.LatencyMS, summary.Provider, summary.Question,
		summary.Brand, summary.TimePeriod,
		summary.WebSearches, summary.WebSearchRetries, summary.LLMCalls,
		summary.TokensIn, summary.TokensOut, summary.TokensTotal,
		string(countsJSON), boolToInt(summary.Help), boolToInt(summary.Coached), summary.Error,
	)
	return eris.Wrapf(err, "telemetry: save run %s", summary.RunID)
}

// ListRuns returns up to limit summaries, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started_at, latency_ms, provider, question, brand, time_period,
		        web_searches, web_search_retries, llm_calls, tokens_in, tokens_out, tokens_total,
		        validated_counts, help, coached, error
		 FROM run_summaries ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "telemetry: list runs")
	}
	defer rows.Close()

	var out []model.RunSummary
	for rows.Next() {
		var r model.RunSummary
		var brand, timePeriod, countsJSON, errText sql.NullString
		var help, coached int
		if err := rows.Scan(
			&r.RunID, &r.StartedAt, &r.LatencyMS, &r.Provider, &r.Question, &brand, &timePeriod,
			&r.WebSearches, &r.WebSearchRetries, &r.LLMCalls, &r.TokensIn, &r.TokensOut, &r.TokensTotal,
			&countsJSON, &help, &coached, &errText,
		); err != nil {
			return nil, eris.Wrap(err, "telemetry: scan run")
		}
		r.Brand = brand.String
		r.TimePeriod = timePeriod.String
		r.Error = errText.String
		r.Help = help != 0
		r.Coached = coached != 0
		if countsJSON.Valid && countsJSON.String != "" && countsJSON.String != "null" {
			if err := json.Unmarshal([]byte(countsJSON.String), &r.ValidatedCounts); err != nil {
				return nil, eris.Wrap(err, "telemetry: unmarshal validated counts")
			}
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "telemetry: list runs iterate")
}

// SaveFeedback inserts one feedback entry.
func (s *Store) SaveFeedback(ctx context.Context, fb Feedback) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, run_id, rating, comment, created_at) VALUES (?, ?, ?, ?, ?)`,
		fb.ID, fb.RunID, fb.Rating, fb.Comment, fb.CreatedAt,
	)
	return eris.Wrapf(err, "telemetry: save feedback %s", fb.ID)
}

// ListFeedback returns up to limit feedback entries, newest first.
func (s *Store) ListFeedback(ctx context.Context, limit int) ([]Feedback, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, rating, comment, created_at FROM feedback ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "telemetry: list feedback")
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var fb Feedback
		var runID, comment sql.NullString
		if err := rows.Scan(&fb.ID, &runID, &fb.Rating, &comment, &fb.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "telemetry: scan feedback")
		}
		fb.RunID = runID.String
		fb.Comment = comment.String
		out = append(out, fb)
	}
	return out, eris.Wrap(rows.Err(), "telemetry: list feedback iterate")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
