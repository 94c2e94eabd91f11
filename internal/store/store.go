package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresmejia3/eigensentinel/internal/evaluation"
	"github.com/jackc/pgx/v5"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("store: evaluation run not found")

// Store manages the PostgreSQL connection holding evaluation reports.
// Trained models are never stored; only their scores are.
type Store struct {
	conn *pgx.Conn
}

// RunMeta describes the corpora and model an evaluation report belongs to.
type RunMeta struct {
	TrainDir         string
	TestDir          string
	TrainFingerprint string
	TrainSize        int
	TestSize         int
	Components       int
}

// Run is a saved evaluation report summary.
type Run struct {
	ID        int64
	RunMeta
	Threshold float64
	Counts    evaluation.ConfusionCounts
	Metrics   evaluation.Metrics
	AUC       float64
	CreatedAt time.Time
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the report tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS evaluation_runs (
			id BIGSERIAL PRIMARY KEY,
			train_dir TEXT NOT NULL,
			test_dir TEXT NOT NULL,
			train_fingerprint TEXT NOT NULL,
			train_size INT NOT NULL,
			test_size INT NOT NULL,
			components INT NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			tp INT NOT NULL,
			fp INT NOT NULL,
			tn INT NOT NULL,
			fn INT NOT NULL,
			accuracy DOUBLE PRECISION NOT NULL,
			precision_score DOUBLE PRECISION NOT NULL,
			recall DOUBLE PRECISION NOT NULL,
			specificity DOUBLE PRECISION NOT NULL,
			f1 DOUBLE PRECISION NOT NULL,
			false_positive_rate DOUBLE PRECISION NOT NULL,
			auc DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS roc_points (
			run_id BIGINT REFERENCES evaluation_runs(id) ON DELETE CASCADE,
			seq INT NOT NULL,
			fpr DOUBLE PRECISION NOT NULL,
			tpr DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
		CREATE INDEX IF NOT EXISTS evaluation_runs_fingerprint_idx ON evaluation_runs (train_fingerprint);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// SaveReport stores a report and its ROC curve in one transaction and returns the run id.
func (s *Store) SaveReport(ctx context.Context, meta RunMeta, r *evaluation.Report) (int64, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO evaluation_runs (
			train_dir, test_dir, train_fingerprint, train_size, test_size, components,
			threshold, tp, fp, tn, fn,
			accuracy, precision_score, recall, specificity, f1, false_positive_rate, auc
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id
	`,
		meta.TrainDir, meta.TestDir, meta.TrainFingerprint, meta.TrainSize, meta.TestSize, meta.Components,
		r.Threshold, r.Counts.TP, r.Counts.FP, r.Counts.TN, r.Counts.FN,
		r.Metrics.Accuracy, r.Metrics.Precision, r.Metrics.Recall, r.Metrics.Specificity,
		r.Metrics.F1, r.Metrics.FalsePositiveRate, r.AUC,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	rows := make([][]any, len(r.Curve))
	for i, p := range r.Curve {
		rows[i] = []any{id, i, p.FPR, p.TPR}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"roc_points"}, []string{"run_id", "seq", "fpr", "tpr"}, pgx.CopyFromRows(rows)); err != nil {
		return 0, fmt.Errorf("failed to store ROC curve: %w", err)
	}

	return id, tx.Commit(ctx)
}

// ListRuns returns all saved runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, train_dir, test_dir, train_fingerprint, train_size, test_size, components,
			threshold, tp, fp, tn, fn,
			accuracy, precision_score, recall, specificity, f1, false_positive_rate, auc, created_at
		FROM evaluation_runs
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.TrainDir, &r.TestDir, &r.TrainFingerprint, &r.TrainSize, &r.TestSize, &r.Components,
			&r.Threshold, &r.Counts.TP, &r.Counts.FP, &r.Counts.TN, &r.Counts.FN,
			&r.Metrics.Accuracy, &r.Metrics.Precision, &r.Metrics.Recall, &r.Metrics.Specificity,
			&r.Metrics.F1, &r.Metrics.FalsePositiveRate, &r.AUC, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetCurve returns the stored ROC curve of a run in its original order.
func (s *Store) GetCurve(ctx context.Context, runID int64) ([]evaluation.ROCPoint, error) {
	var exists bool
	if err := s.conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM evaluation_runs WHERE id = $1)", runID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrRunNotFound
	}

	rows, err := s.conn.Query(ctx, "SELECT fpr, tpr FROM roc_points WHERE run_id = $1 ORDER BY seq", runID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (evaluation.ROCPoint, error) {
		var p evaluation.ROCPoint
		err := row.Scan(&p.FPR, &p.TPR)
		return p, err
	})
}

// DeleteRun removes a run and its curve.
func (s *Store) DeleteRun(ctx context.Context, runID int64) error {
	tag, err := s.conn.Exec(ctx, "DELETE FROM evaluation_runs WHERE id = $1", runID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS roc_points CASCADE;
		DROP TABLE IF EXISTS evaluation_runs CASCADE;
	`)
	return err
}
