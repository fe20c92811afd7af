// Package warehouse loads a published artifact set into Postgres so the
// exported tables can be queried with ad-hoc SQL. The warehouse is
// optional; the API never reads from it.
package warehouse

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/profitpulse/backend/internal/artifact"
	"github.com/profitpulse/backend/internal/contracts"
	"github.com/profitpulse/backend/pkg/logger"
)

// Loader writes artifact snapshots into the analytics schema.
type Loader struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

func NewLoader(pool *pgxpool.Pool, log *logger.Logger) *Loader {
	return &Loader{pool: pool, logger: log}
}

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS analytics`,
	`CREATE TABLE IF NOT EXISTS analytics.company_view (
		firm_id      TEXT             NOT NULL,
		year         INTEGER          NOT NULL,
		profit_score DOUBLE PRECISION NOT NULL,
		label        INTEGER          NOT NULL,
		x1_roa       DOUBLE PRECISION,
		x2_roe       DOUBLE PRECISION,
		x3_roc       DOUBLE PRECISION,
		x4_eps       DOUBLE PRECISION,
		x5_npm       DOUBLE PRECISION,
		PRIMARY KEY (firm_id, year)
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.predictions (
		firm_id      TEXT             NOT NULL,
		year         INTEGER          NOT NULL,
		target_year  INTEGER          NOT NULL,
		model        TEXT             NOT NULL,
		chance       DOUBLE PRECISION NOT NULL,
		pred_label   INTEGER          NOT NULL,
		profit_score DOUBLE PRECISION NOT NULL,
		true_label   INTEGER          NOT NULL,
		PRIMARY KEY (firm_id, year, model)
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.screener (
		firm_id      TEXT             NOT NULL,
		year         INTEGER          NOT NULL,
		target_year  INTEGER          NOT NULL,
		profit_score DOUBLE PRECISION NOT NULL,
		chance       DOUBLE PRECISION NOT NULL,
		risk         TEXT             NOT NULL,
		borderline   BOOLEAN          NOT NULL,
		reason       TEXT             NOT NULL,
		action_tip   TEXT             NOT NULL,
		PRIMARY KEY (firm_id, year)
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.alerts (
		firm_id TEXT    NOT NULL,
		year    INTEGER NOT NULL,
		type    TEXT    NOT NULL,
		message TEXT    NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.model_metrics (
		model        TEXT             PRIMARY KEY,
		accuracy     DOUBLE PRECISION NOT NULL,
		precision    DOUBLE PRECISION NOT NULL,
		recall       DOUBLE PRECISION NOT NULL,
		f1           DOUBLE PRECISION NOT NULL,
		auc          DOUBLE PRECISION,
		generated_at TIMESTAMPTZ      NOT NULL
	)`,
}

// EnsureSchema creates the analytics schema and tables when missing.
func (l *Loader) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := l.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure warehouse schema: %w", err)
		}
	}
	return nil
}

// Load replaces the warehouse content with the given snapshot. Each
// table is truncated and bulk-loaded inside one transaction, so readers
// see either the previous run or the new one.
func (l *Loader) Load(ctx context.Context, snap *artifact.Snapshot) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin warehouse load: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`TRUNCATE analytics.company_view, analytics.predictions, analytics.screener, analytics.alerts, analytics.model_metrics`,
	); err != nil {
		return fmt.Errorf("truncate warehouse tables: %w", err)
	}

	if err := copyCompanyView(ctx, tx, snap.CompanyView); err != nil {
		return err
	}
	if err := copyPredictions(ctx, tx, snap.Predictions); err != nil {
		return err
	}
	if err := copyScreener(ctx, tx, snap.Screener); err != nil {
		return err
	}
	if err := copyAlerts(ctx, tx, snap.Alerts); err != nil {
		return err
	}
	if err := insertMetrics(ctx, tx, snap); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit warehouse load: %w", err)
	}

	l.logger.WithFields(map[string]interface{}{
		"company_view": len(snap.CompanyView),
		"predictions":  len(snap.Predictions),
		"screener":     len(snap.Screener),
		"alerts":       len(snap.Alerts),
		"generated_at": snap.Manifest.GeneratedAt,
	}).Info("warehouse loaded")
	return nil
}

func copyCompanyView(ctx context.Context, tx pgx.Tx, rows []contracts.CompanyRow) error {
	cols := []string{"firm_id", "year", "profit_score", "label", "x1_roa", "x2_roe", "x3_roc", "x4_eps", "x5_npm"}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"analytics", "company_view"},
		cols,
		pgx.CopyFromSlice(len(rows), func(i int) ([]interface{}, error) {
			r := rows[i]
			out := []interface{}{r.FirmID, r.Year, r.ProfitScore, r.Label}
			for j := range contracts.ProxyColumns {
				out = append(out, nullableFloat(proxyAt(r.Proxies, j)))
			}
			return out, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy company view: %w", err)
	}
	return nil
}

func copyPredictions(ctx context.Context, tx pgx.Tx, preds []contracts.Prediction) error {
	cols := []string{"firm_id", "year", "target_year", "model", "chance", "pred_label", "profit_score", "true_label"}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"analytics", "predictions"},
		cols,
		pgx.CopyFromSlice(len(preds), func(i int) ([]interface{}, error) {
			p := preds[i]
			return []interface{}{p.FirmID, p.Year, p.TargetYear, string(p.Model), p.Chance, p.PredLabel, p.ProfitScore, p.TrueLabel}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy predictions: %w", err)
	}
	return nil
}

func copyScreener(ctx context.Context, tx pgx.Tx, rows []contracts.ScreenerRow) error {
	cols := []string{"firm_id", "year", "target_year", "profit_score", "chance", "risk", "borderline", "reason", "action_tip"}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"analytics", "screener"},
		cols,
		pgx.CopyFromSlice(len(rows), func(i int) ([]interface{}, error) {
			r := rows[i]
			return []interface{}{r.FirmID, r.Year, r.TargetYear, r.ProfitScore, r.Chance, string(r.Risk), r.Borderline, r.Reason, r.ActionTip}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy screener: %w", err)
	}
	return nil
}

func copyAlerts(ctx context.Context, tx pgx.Tx, rows []contracts.AlertRow) error {
	cols := []string{"firm_id", "year", "type", "message"}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"analytics", "alerts"},
		cols,
		pgx.CopyFromSlice(len(rows), func(i int) ([]interface{}, error) {
			a := rows[i]
			return []interface{}{a.FirmID, a.Year, string(a.Type), a.Message}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy alerts: %w", err)
	}
	return nil
}

func insertMetrics(ctx context.Context, tx pgx.Tx, snap *artifact.Snapshot) error {
	query := `
		INSERT INTO analytics.model_metrics (model, accuracy, precision, recall, f1, auc, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, kind := range contracts.AllModelKinds() {
		m, ok := snap.Metrics[kind]
		if !ok {
			continue
		}
		if _, err := tx.Exec(ctx, query,
			string(kind), m.Accuracy, m.Precision, m.Recall, m.F1,
			nullableFloat(m.AUC), snap.Manifest.GeneratedAt,
		); err != nil {
			return fmt.Errorf("insert metrics for %s: %w", kind, err)
		}
	}
	return nil
}

func proxyAt(proxies []float64, i int) float64 {
	if i >= len(proxies) {
		return math.NaN()
	}
	return proxies[i]
}

// nullableFloat maps NaN to SQL NULL.
func nullableFloat(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
