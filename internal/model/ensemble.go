package model

import (
	"fmt"

	"github.com/profitpulse/backend/internal/contracts"
)

// Classifier is a binary probabilistic classifier over the proxy
// feature vectors. Implementations must be deterministic for a fixed
// seed and training set.
type Classifier interface {
	Kind() contracts.ModelKind
	Train(X [][]float64, y []int) error
	PredictProba(X [][]float64) []float64
}

// Ensemble trains the three classifiers side by side on the same panel
// and serves per-model predictions and evaluation metrics.
type Ensemble struct {
	classifiers map[contracts.ModelKind]Classifier
	threshold   float64
	trained     bool
}

// NewEnsemble builds the untrained ensemble. Each classifier gets its
// own seed derived from the base seed so runs stay reproducible.
func NewEnsemble(seed int64, threshold float64) *Ensemble {
	members := []Classifier{
		newSVMClassifier(10, seed+1),
		newForestClassifier(400, 2, seed+2),
		newBoostClassifier(500, 4, 0.05, 0.9, seed+3),
	}
	classifiers := make(map[contracts.ModelKind]Classifier, len(members))
	for _, c := range members {
		classifiers[c.Kind()] = c
	}
	return &Ensemble{classifiers: classifiers, threshold: threshold}
}

// Train fits every member on the training panel: the winsorized proxy
// ratios as features and the year t+1 label as target.
func (e *Ensemble) Train(train []contracts.PanelRow) error {
	if len(train) == 0 {
		return &contracts.InsufficientDataError{Op: "ensemble train", Need: 1, Got: 0}
	}

	X, y := designMatrix(train)
	for _, kind := range contracts.AllModelKinds() {
		if err := e.classifiers[kind].Train(X, y); err != nil {
			return fmt.Errorf("train %s: %w", kind, err)
		}
	}
	e.trained = true
	return nil
}

// Predict scores the rows with one model and assembles predictions with
// the hard label from the probability threshold.
func (e *Ensemble) Predict(kind contracts.ModelKind, rows []contracts.PanelRow) ([]contracts.Prediction, error) {
	clf, ok := e.classifiers[kind]
	if !ok {
		return nil, contracts.NewDataError("unknown model kind %q", kind)
	}
	if !e.trained {
		return nil, contracts.NewDataError("ensemble is not trained")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	X, _ := designMatrix(rows)
	probs := clf.PredictProba(X)

	preds := make([]contracts.Prediction, len(rows))
	for i, row := range rows {
		pred := 0
		// a chance exactly at the cutoff counts as positive
		if probs[i] >= e.threshold {
			pred = 1
		}
		preds[i] = contracts.Prediction{
			FirmID:      row.FirmID,
			Year:        row.Year,
			TargetYear:  row.TargetYear,
			Model:       kind,
			Chance:      probs[i],
			PredLabel:   pred,
			ProfitScore: row.ProfitScore,
			TrueLabel:   row.LabelT1,
		}
	}
	return preds, nil
}

// PredictAll runs Predict for every model kind.
func (e *Ensemble) PredictAll(rows []contracts.PanelRow) (map[contracts.ModelKind][]contracts.Prediction, error) {
	out := make(map[contracts.ModelKind][]contracts.Prediction, len(contracts.AllModelKinds()))
	for _, kind := range contracts.AllModelKinds() {
		preds, err := e.Predict(kind, rows)
		if err != nil {
			return nil, err
		}
		out[kind] = preds
	}
	return out, nil
}

// Evaluate predicts the test panel with every member and scores the
// predictions against the observed t+1 labels.
func (e *Ensemble) Evaluate(test []contracts.PanelRow) (map[contracts.ModelKind]contracts.ModelMetrics, error) {
	byKind, err := e.PredictAll(test)
	if err != nil {
		return nil, err
	}

	out := make(map[contracts.ModelKind]contracts.ModelMetrics, len(byKind))
	for kind, preds := range byKind {
		trueLabels := make([]int, len(preds))
		predLabels := make([]int, len(preds))
		probs := make([]float64, len(preds))
		for i, p := range preds {
			trueLabels[i] = p.TrueLabel
			predLabels[i] = p.PredLabel
			probs[i] = p.Chance
		}
		out[kind] = ComputeMetrics(trueLabels, predLabels, probs)
	}
	return out, nil
}

func designMatrix(rows []contracts.PanelRow) ([][]float64, []int) {
	X := make([][]float64, len(rows))
	y := make([]int, len(rows))
	for i, row := range rows {
		X[i] = row.Proxies
		y[i] = row.LabelT1
	}
	return X, y
}
