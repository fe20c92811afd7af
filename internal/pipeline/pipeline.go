// Package pipeline runs the offline scoring pipeline end to end: load
// the raw panel, fit preprocessing and PCA on the training window,
// score and label every firm-year, train the classifier ensemble, and
// publish the artifact set. Stages run strictly in order and the first
// failing stage aborts the run.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/profitpulse/backend/internal/alerts"
	"github.com/profitpulse/backend/internal/contracts"
	"github.com/profitpulse/backend/internal/dataset"
	"github.com/profitpulse/backend/internal/explain"
	"github.com/profitpulse/backend/internal/export"
	"github.com/profitpulse/backend/internal/label"
	"github.com/profitpulse/backend/internal/model"
	"github.com/profitpulse/backend/internal/preprocess"
	"github.com/profitpulse/backend/internal/score"
	"github.com/profitpulse/backend/pkg/config"
	"github.com/profitpulse/backend/pkg/logger"
)

// Result is what one completed run produced, before and after export.
type Result struct {
	Bundle     export.Bundle
	Preprocess contracts.FittedPreprocess
	PCA        contracts.FittedPCA
	Reference  label.Reference
	TrainRows  int
	TestRows   int
	Metrics    map[contracts.ModelKind]contracts.ModelMetrics
}

// Runner wires the stages together under one configuration.
type Runner struct {
	cfg    *config.Config
	logger *logger.Logger
	loader *dataset.Loader
	writer *export.Writer
	engine *explain.Engine
}

// NewRunner builds a runner; when an explanation rules file is
// configured it is loaded and validated up front.
func NewRunner(cfg *config.Config, log *logger.Logger) (*Runner, error) {
	engine := explain.Default()
	if path := cfg.Pipeline.ExplainRulesPath; path != "" {
		loaded, err := explain.Load(path)
		if err != nil {
			return nil, fmt.Errorf("explain rules: %w", err)
		}
		engine = loaded
	}

	return &Runner{
		cfg:    cfg,
		logger: log,
		loader: dataset.NewLoader(cfg.Pipeline.ParValue, log),
		writer: export.NewWriter(log),
		engine: engine,
	}, nil
}

// Run executes every stage and publishes the artifact set to the
// configured directory.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res, err := r.Build(ctx)
	if err != nil {
		return nil, err
	}

	if err := r.writer.Write(r.cfg.ArtifactsDir, res.Bundle); err != nil {
		return nil, fmt.Errorf("stage export: %w", err)
	}
	return res, nil
}

// Build runs every stage up to, but not including, the export.
func (r *Runner) Build(ctx context.Context) (*Result, error) {
	p := r.cfg.Pipeline

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obs, err := r.loader.Load(p.InputPath)
	if err != nil {
		return nil, fmt.Errorf("stage load: %w", err)
	}
	firms, yearMin, yearMax := dataset.Describe(obs)
	r.logger.WithFields(map[string]interface{}{
		"rows": len(obs), "firms": firms, "year_min": yearMin, "year_max": yearMax,
	}).Info("input panel loaded")

	proxies := r.loader.BuildProxies(obs)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fitRows := dataset.FitWindow(proxies, p.PreprocessFitPredYear)
	pre, err := preprocess.Fit(fitRows, contracts.ProxyColumns, p.WinsorQ, p.MinFitRows)
	if err != nil {
		return nil, fmt.Errorf("stage preprocess: %w", err)
	}
	stdAll, err := preprocess.Transform(proxies, pre)
	if err != nil {
		return nil, fmt.Errorf("stage preprocess: %w", err)
	}
	stdFit, err := preprocess.Transform(fitRows, pre)
	if err != nil {
		return nil, fmt.Errorf("stage preprocess: %w", err)
	}

	pca, err := score.Fit(stdFit, contracts.ProxyColumns, p.PCAK, p.MinFitRows)
	if err != nil {
		return nil, fmt.Errorf("stage score: %w", err)
	}
	scored := score.Score(stdAll, pca)

	rule, err := contracts.ParseLabelRule(p.LabelRule)
	if err != nil {
		return nil, fmt.Errorf("stage label: %w", err)
	}
	ref, err := label.FitReference(rule, trainScores(scored, p.TrainTargetEndYear), p.LabelThreshold)
	if err != nil {
		return nil, fmt.Errorf("stage label: %w", err)
	}
	labeled := label.Apply(scored, ref)

	panel := dataset.BuildPanel(labeled)
	train, test := dataset.Split(panel, p.TrainTargetEndYear, p.TestTargetYears)
	r.logger.WithFields(map[string]interface{}{
		"panel": len(panel), "train": len(train), "test": len(test), "label_rule": ref.Describe(),
	}).Info("forecast panel built")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ens := model.NewEnsemble(p.Seed, p.ProbaThreshold)
	if err := ens.Train(train); err != nil {
		return nil, fmt.Errorf("stage train: %w", err)
	}
	metrics, err := ens.Evaluate(test)
	if err != nil {
		return nil, fmt.Errorf("stage evaluate: %w", err)
	}

	byKind, err := ens.PredictAll(panel)
	if err != nil {
		return nil, fmt.Errorf("stage predict: %w", err)
	}

	defaultKind, err := contracts.ParseModelKind(p.DefaultModel)
	if err != nil {
		return nil, fmt.Errorf("stage predict: %w", err)
	}
	defaultPreds := byKind[defaultKind]

	screener := r.buildScreener(labeled, defaultPreds, p)
	alertRows := alerts.NewDetector(alerts.Config{
		RiskHighCut:   p.RiskHighCut,
		RiskLowCut:    p.RiskLowCut,
		BorderlineAbs: p.BorderlineAbsP,
		ChanceDrop:    p.AlertChanceDrop,
		YearFrom:      p.AlertsYearFrom,
		YearTo:        p.AlertsYearTo,
	}).Scan(defaultPreds)

	bundle := export.Bundle{
		CompanyView:  buildCompanyView(labeled),
		Screener:     screener,
		ScreenerYear: p.ScreenerYear,
		Predictions:  flattenPredictions(byKind),
		Metrics:      metrics,
		Methodology: contracts.Methodology{
			FeatureColumns:     contracts.ProxyColumns,
			FirmCount:          firms,
			YearMin:            yearMin,
			YearMax:            yearMax,
			LabelRule:          string(ref.Rule),
			LabelThreshold:     ref.Threshold,
			WinsorQuantile:     pre.Quantile,
			WinsorBounds:       pre.Bounds,
			PCAK:               pca.K(),
			PCAExplainedRatio:  pca.ExplainedVarRatio,
			PCAWeights:         pca.Weights,
			FitWindowPredYear:  p.PreprocessFitPredYear,
			TrainTargetEndYear: p.TrainTargetEndYear,
			TestTargetYears:    p.TestTargetYears,
			DefaultModel:       p.DefaultModel,
			RiskHighCut:        p.RiskHighCut,
			RiskLowCut:         p.RiskLowCut,
			BorderlineAbsP:     p.BorderlineAbsP,
		},
		Alerts:         alertRows,
		AlertsYearFrom: p.AlertsYearFrom,
		AlertsYearTo:   p.AlertsYearTo,
	}

	return &Result{
		Bundle:     bundle,
		Preprocess: pre,
		PCA:        pca,
		Reference:  ref,
		TrainRows:  len(train),
		TestRows:   len(test),
		Metrics:    metrics,
	}, nil
}

// trainScores collects the composite scores a median-rule reference may
// be fitted from: predictor years up to the training horizon.
func trainScores(rows []contracts.ScoredRow, trainTargetEnd int) []float64 {
	var out []float64
	for _, row := range rows {
		if row.Year <= trainTargetEnd {
			out = append(out, row.ProfitScore)
		}
	}
	return out
}

func buildCompanyView(rows []contracts.ScoredRow) []contracts.CompanyRow {
	out := make([]contracts.CompanyRow, len(rows))
	for i, row := range rows {
		out[i] = contracts.CompanyRow{
			FirmID:      row.FirmID,
			Year:        row.Year,
			ProfitScore: row.ProfitScore,
			Label:       row.Label,
			Proxies:     row.Proxies,
			PCs:         row.PCs,
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirmID != out[j].FirmID {
			return out[i].FirmID < out[j].FirmID
		}
		return out[i].Year < out[j].Year
	})
	return out
}

// buildScreener assembles the screener table for the configured
// predictor year from the default model's predictions, riskiest rows
// first.
func (r *Runner) buildScreener(rows []contracts.ScoredRow, preds []contracts.Prediction, p config.PipelineConfig) []contracts.ScreenerRow {
	type key struct {
		firm string
		year int
	}
	byKey := make(map[key]contracts.ScoredRow, len(rows))
	for _, row := range rows {
		byKey[key{row.FirmID, row.Year}] = row
	}

	var out []contracts.ScreenerRow
	for _, pred := range preds {
		if pred.Year != p.ScreenerYear {
			continue
		}
		row, ok := byKey[key{pred.FirmID, pred.Year}]
		if !ok {
			continue
		}

		var prev *contracts.ScoredRow
		if prevRow, ok := byKey[key{pred.FirmID, pred.Year - 1}]; ok {
			prev = &prevRow
		}
		reason, tip := r.engine.Explain(explain.FeaturesFor(row, prev, pred.Chance))

		out = append(out, contracts.ScreenerRow{
			FirmID:      pred.FirmID,
			Year:        pred.Year,
			TargetYear:  pred.TargetYear,
			ProfitScore: pred.ProfitScore,
			Chance:      pred.Chance,
			Risk:        contracts.RiskBucket(pred.Chance, p.RiskHighCut, p.RiskLowCut),
			Borderline:  row.ProfitScore > -p.BorderlineAbsP && row.ProfitScore < p.BorderlineAbsP,
			Reason:      reason,
			ActionTip:   tip,
			Proxies:     row.Proxies,
		})
	}

	// high risk first, then lowest chance
	sort.Slice(out, func(i, j int) bool {
		if out[i].Risk.Rank() != out[j].Risk.Rank() {
			return out[i].Risk.Rank() < out[j].Risk.Rank()
		}
		if out[i].Chance != out[j].Chance {
			return out[i].Chance < out[j].Chance
		}
		return out[i].FirmID < out[j].FirmID
	})
	if len(out) == 0 {
		r.logger.WithField("year", p.ScreenerYear).Warn("screener year has no predictions")
	}
	return out
}

// flattenPredictions merges the per-model prediction sets into one
// stable firm/year/model ordering.
func flattenPredictions(byKind map[contracts.ModelKind][]contracts.Prediction) []contracts.Prediction {
	var out []contracts.Prediction
	for _, kind := range contracts.AllModelKinds() {
		out = append(out, byKind[kind]...)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FirmID != b.FirmID {
			return a.FirmID < b.FirmID
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Model < b.Model
	})
	return out
}
