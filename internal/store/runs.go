package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/apiprobe/internal/harness"
	"github.com/roach88/apiprobe/internal/suite"
)

// ErrRunNotFound is returned by LoadRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one row of the history listing.
type RunRecord struct {
	ID               string          `json:"id"`
	Target           string          `json:"target"`
	StartedAt        time.Time       `json:"started_at"`
	Duration         time.Duration   `json:"duration_ns"`
	TotalSuites      int             `json:"total_suites"`
	SuccessfulSuites int             `json:"successful_suites"`
	FailedSuites     int             `json:"failed_suites"`
	ReadinessScore   float64         `json:"readiness_score"`
	Verdict          harness.Verdict `json:"verdict"`
	Failed           []string        `json:"failed"`
}

// SuiteHistoryEntry is one past outcome of a named suite.
type SuiteHistoryEntry struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Passed    bool      `json:"passed"`
	Error     string    `json:"error,omitempty"`
}

// SaveRun writes a summary and its suite results in one transaction.
// Saving the same run id twice is an error.
func (s *Store) SaveRun(ctx context.Context, sum harness.RunSummary) error {
	if sum.RunID == "" {
		return fmt.Errorf("save run: empty run id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, target, started_at, duration_ns, total_suites, successful_suites, failed_suites, readiness_score, verdict)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sum.RunID,
		sum.Target,
		formatTime(sum.StartedAt),
		int64(sum.Duration),
		sum.TotalSuites,
		sum.SuccessfulSuites,
		sum.FailedSuites,
		sum.ReadinessScore,
		string(sum.Verdict),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", sum.RunID, err)
	}

	for i, r := range sum.Results {
		checks, err := marshalChecks(r.Checks)
		if err != nil {
			return fmt.Errorf("save run %s: suite %s: %w", sum.RunID, r.Name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO suite_results
			(run_id, position, name, passed, duration_ns, error, warnings, checks)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, sum.RunID, i, r.Name, boolToInt(r.Passed), int64(r.Duration), r.Error, r.Warnings, checks)
		if err != nil {
			return fmt.Errorf("save run %s: suite %s: %w", sum.RunID, r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run %s: commit: %w", sum.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A limit below 1
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit < 1 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.target, r.started_at, r.duration_ns, r.total_suites,
		       r.successful_suites, r.failed_suites, r.readiness_score, r.verdict,
		       COALESCE((
		           SELECT GROUP_CONCAT(name, ',') FROM (
		               SELECT name FROM suite_results
		               WHERE run_id = r.id AND passed = 0
		               ORDER BY position
		           )
		       ), '')
		FROM runs r
		ORDER BY r.started_at DESC, r.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	records := []RunRecord{}
	for rows.Next() {
		var (
			rec               RunRecord
			startedAt, failed string
			duration          int64
			verdict           string
		)
		if err := rows.Scan(&rec.ID, &rec.Target, &startedAt, &duration, &rec.TotalSuites,
			&rec.SuccessfulSuites, &rec.FailedSuites, &rec.ReadinessScore, &verdict, &failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if rec.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		rec.Duration = time.Duration(duration)
		rec.Verdict = harness.Verdict(verdict)
		rec.Failed = splitNames(failed)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return records, nil
}

// LoadRun rebuilds a stored summary, including check records.
func (s *Store) LoadRun(ctx context.Context, id string) (harness.RunSummary, error) {
	var (
		sum       harness.RunSummary
		startedAt string
		duration  int64
		verdict   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, target, started_at, duration_ns, total_suites,
		       successful_suites, failed_suites, readiness_score, verdict
		FROM runs WHERE id = ?
	`, id).Scan(&sum.RunID, &sum.Target, &startedAt, &duration, &sum.TotalSuites,
		&sum.SuccessfulSuites, &sum.FailedSuites, &sum.ReadinessScore, &verdict)
	if errors.Is(err, sql.ErrNoRows) {
		return harness.RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return harness.RunSummary{}, fmt.Errorf("load run %s: %w", id, err)
	}
	if sum.StartedAt, err = parseTime(startedAt); err != nil {
		return harness.RunSummary{}, err
	}
	sum.Duration = time.Duration(duration)
	sum.Verdict = harness.Verdict(verdict)

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, passed, duration_ns, error, warnings, checks
		FROM suite_results
		WHERE run_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return harness.RunSummary{}, fmt.Errorf("query suite results: %w", err)
	}
	defer rows.Close()

	sum.Results = []harness.SuiteResult{}
	for rows.Next() {
		var (
			r      harness.SuiteResult
			passed int
			dur    int64
			checks string
		)
		if err := rows.Scan(&r.Name, &passed, &dur, &r.Error, &r.Warnings, &checks); err != nil {
			return harness.RunSummary{}, fmt.Errorf("scan suite result: %w", err)
		}
		r.Passed = passed == 1
		r.Duration = time.Duration(dur)
		if r.Checks, err = unmarshalChecks(checks); err != nil {
			return harness.RunSummary{}, fmt.Errorf("suite %s: %w", r.Name, err)
		}
		sum.Results = append(sum.Results, r)
	}
	if err := rows.Err(); err != nil {
		return harness.RunSummary{}, fmt.Errorf("iterate suite results: %w", err)
	}
	return sum, nil
}

// SuiteHistory returns the latest outcomes of one suite, newest first.
func (s *Store) SuiteHistory(ctx context.Context, name string, limit int) ([]SuiteHistoryEntry, error) {
	if limit < 1 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT sr.run_id, r.started_at, sr.passed, sr.error
		FROM suite_results sr
		JOIN runs r ON r.id = sr.run_id
		WHERE sr.name = ?
		ORDER BY r.started_at DESC, r.id DESC
		LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query suite history: %w", err)
	}
	defer rows.Close()

	entries := []SuiteHistoryEntry{}
	for rows.Next() {
		var (
			e         SuiteHistoryEntry
			startedAt string
			passed    int
		)
		if err := rows.Scan(&e.RunID, &startedAt, &passed, &e.Error); err != nil {
			return nil, fmt.Errorf("scan suite history: %w", err)
		}
		if e.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		e.Passed = passed == 1
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suite history: %w", err)
	}
	return entries, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse started_at %q: %w", s, err)
	}
	return t, nil
}

func marshalChecks(checks []suite.CheckRecord) (string, error) {
	if checks == nil {
		checks = []suite.CheckRecord{}
	}
	data, err := json.Marshal(checks)
	if err != nil {
		return "", fmt.Errorf("marshal checks: %w", err)
	}
	return string(data), nil
}

func unmarshalChecks(data string) ([]suite.CheckRecord, error) {
	var checks []suite.CheckRecord
	if err := json.Unmarshal([]byte(data), &checks); err != nil {
		return nil, fmt.Errorf("unmarshal checks: %w", err)
	}
	return checks, nil
}

func splitNames(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, ",")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
