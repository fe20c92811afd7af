// Package handlers contains the HTTP handlers of the read-only API.
// Every endpoint serves from the loaded artifact snapshot; none of them
// touch the raw input data or the models.
package handlers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/profitpulse/backend/internal/artifact"
	"github.com/profitpulse/backend/internal/contracts"
	"github.com/profitpulse/backend/pkg/logger"
)

// ArtifactsHandler serves the screener, company, comparison and
// methodology endpoints from the artifact store.
type ArtifactsHandler struct {
	store  *artifact.Store
	logger *logger.Logger
}

func NewArtifactsHandler(store *artifact.Store, log *logger.Logger) *ArtifactsHandler {
	return &ArtifactsHandler{store: store, logger: log}
}

func (h *ArtifactsHandler) snapshot(w http.ResponseWriter) (*artifact.Snapshot, bool) {
	snap, err := h.store.Snapshot()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "No artifact set loaded; run the pipeline first")
		return nil, false
	}
	return snap, true
}

// GetMeta returns dataset coverage and model metrics
// GET /api/meta
func (h *ArtifactsHandler) GetMeta(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}

	firms := snap.FirmIDs()
	sort.Strings(firms)

	yearSet := make(map[int]bool)
	for _, row := range snap.CompanyView {
		yearSet[row.Year] = true
	}
	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Ints(years)

	respondSuccess(w, map[string]interface{}{
		"firms":       firms,
		"firms_count": len(firms),
		"years":       years,
		"year_range": map[string]int{
			"min": snap.Methodology.YearMin,
			"max": snap.Methodology.YearMax,
		},
		"model_metrics": metricsOut(snap.Metrics),
		"feature_cols":  snap.Methodology.FeatureColumns,
		"generated_at":  snap.Manifest.GeneratedAt,
	})
}

type screenerItem struct {
	FirmID      string              `json:"firm_id"`
	Year        int                 `json:"year"`
	TargetYear  int                 `json:"target_year"`
	ProfitScore float64             `json:"profit_score"`
	Chance      float64             `json:"chance"`
	Risk        contracts.RiskLevel `json:"risk"`
	Borderline  bool                `json:"borderline"`
	Reason      string              `json:"reason"`
	ActionTip   string              `json:"action_tip"`
	Proxies     map[string]float64  `json:"proxies"`
}

// GetScreener filters the exported screener table
// GET /api/screener?year=&risk=&chance_min=&chance_max=&borderline=&min_score=&limit=
func (h *ArtifactsHandler) GetScreener(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	year := snap.ScreenerYear
	if v := q.Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'year' parameter")
			return
		}
		year = parsed
	}

	risk := q.Get("risk")
	if risk != "" && risk != string(contracts.RiskHigh) && risk != string(contracts.RiskMedium) && risk != string(contracts.RiskLow) {
		respondError(w, http.StatusBadRequest, "Invalid 'risk' parameter (High, Medium or Low)")
		return
	}

	chanceMin, err := parseFloatParam(q.Get("chance_min"), 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'chance_min' parameter")
		return
	}
	chanceMax, err := parseFloatParam(q.Get("chance_max"), 1)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'chance_max' parameter")
		return
	}
	minScore, err := parseFloatParam(q.Get("min_score"), math.Inf(-1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'min_score' parameter")
		return
	}
	borderlineOnly := q.Get("borderline") == "true"

	limit := 100
	if v := q.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	var results []screenerItem
	for _, row := range snap.Screener {
		if row.Year != year {
			continue
		}
		if risk != "" && string(row.Risk) != risk {
			continue
		}
		if row.Chance < chanceMin || row.Chance > chanceMax {
			continue
		}
		if row.ProfitScore < minScore {
			continue
		}
		if borderlineOnly && !row.Borderline {
			continue
		}
		results = append(results, screenerItem{
			FirmID:      row.FirmID,
			Year:        row.Year,
			TargetYear:  row.TargetYear,
			ProfitScore: row.ProfitScore,
			Chance:      row.Chance,
			Risk:        row.Risk,
			Borderline:  row.Borderline,
			Reason:      row.Reason,
			ActionTip:   row.ActionTip,
			Proxies:     proxiesOut(row.Proxies),
		})
		if len(results) == limit {
			break
		}
	}

	respondSuccess(w, map[string]interface{}{
		"total_results": len(results),
		"filters": map[string]interface{}{
			"year":       year,
			"risk":       risk,
			"chance_min": chanceMin,
			"chance_max": chanceMax,
			"borderline": borderlineOnly,
		},
		"results": results,
	})
}

type companyPoint struct {
	Year        int     `json:"year"`
	ProfitScore float64 `json:"profit_score"`
	Label       int     `json:"label"`
}

type predictionItem struct {
	Year       int     `json:"year"`
	TargetYear int     `json:"target_year"`
	Model      string  `json:"model"`
	Chance     float64 `json:"chance"`
	PredLabel  int     `json:"pred_label"`
}

// GetCompany returns one firm's score history and predictions
// GET /api/company/{id}?year=
func (h *ArtifactsHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}

	firmID := mux.Vars(r)["id"]
	series := snap.Company(firmID)
	if len(series) == 0 {
		respondError(w, http.StatusNotFound, fmt.Sprintf("No data for company %s", firmID))
		return
	}

	yearFilter := 0
	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'year' parameter")
			return
		}
		yearFilter = parsed
	}

	timeseries := make([]companyPoint, 0, len(series))
	for _, row := range series {
		timeseries = append(timeseries, companyPoint{Year: row.Year, ProfitScore: row.ProfitScore, Label: row.Label})
	}

	var preds []predictionItem
	for _, p := range snap.PredictionsFor(firmID) {
		if yearFilter != 0 && p.Year != yearFilter {
			continue
		}
		preds = append(preds, predictionItem{
			Year:       p.Year,
			TargetYear: p.TargetYear,
			Model:      string(p.Model),
			Chance:     p.Chance,
			PredLabel:  p.PredLabel,
		})
	}

	latest := series[len(series)-1]
	respondSuccess(w, map[string]interface{}{
		"firm_id": firmID,
		"latest": map[string]interface{}{
			"year":         latest.Year,
			"profit_score": latest.ProfitScore,
			"label":        latest.Label,
			"proxies":      proxiesOut(latest.Proxies),
		},
		"profit_score_timeseries": timeseries,
		"predictions":             preds,
	})
}

type compareRequest struct {
	Tickers []string `json:"tickers"`
	Year    int      `json:"year"`
}

// Compare returns the same-year rows for two or more firms side by side
// POST /api/compare {"tickers": [...], "year": 2023}
func (h *ArtifactsHandler) Compare(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}

	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Tickers) < 2 || req.Year == 0 {
		respondError(w, http.StatusBadRequest, "Body must carry at least 2 tickers and a year")
		return
	}

	var comparison []map[string]interface{}
	for _, ticker := range req.Tickers {
		for _, row := range snap.Company(ticker) {
			if row.Year != req.Year {
				continue
			}
			comparison = append(comparison, map[string]interface{}{
				"firm_id":      ticker,
				"year":         row.Year,
				"profit_score": row.ProfitScore,
				"label":        row.Label,
				"proxies":      proxiesOut(row.Proxies),
			})
		}
	}
	if len(comparison) == 0 {
		respondError(w, http.StatusNotFound, "No data found for the requested firms and year")
		return
	}

	respondSuccess(w, map[string]interface{}{
		"year":       req.Year,
		"tickers":    req.Tickers,
		"comparison": comparison,
	})
}

// GetSummary returns cross-sectional statistics over the company view
// GET /api/summary?year=
func (h *ArtifactsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}

	yearFilter := 0
	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'year' parameter")
			return
		}
		yearFilter = parsed
	}

	var (
		rows     int
		positive int
		sum      float64
		min, max float64
	)
	firms := make(map[string]bool)
	for _, row := range snap.CompanyView {
		if yearFilter != 0 && row.Year != yearFilter {
			continue
		}
		if rows == 0 {
			min, max = row.ProfitScore, row.ProfitScore
		}
		rows++
		firms[row.FirmID] = true
		sum += row.ProfitScore
		positive += row.Label
		if row.ProfitScore < min {
			min = row.ProfitScore
		}
		if row.ProfitScore > max {
			max = row.ProfitScore
		}
	}

	summary := map[string]interface{}{
		"rows":  rows,
		"firms": len(firms),
	}
	if rows > 0 {
		summary["score_mean"] = sum / float64(rows)
		summary["score_min"] = min
		summary["score_max"] = max
		summary["positive_share"] = float64(positive) / float64(rows)
	}

	// risk distribution for the exported screener year
	if yearFilter == 0 || yearFilter == snap.ScreenerYear {
		dist := map[string]int{}
		for _, row := range snap.Screener {
			dist[string(row.Risk)]++
		}
		summary["risk_distribution"] = dist
	}

	respondSuccess(w, map[string]interface{}{
		"year":    yearFilter,
		"summary": summary,
	})
}

// GetAbout returns the methodology snapshot and coverage info
// GET /api/about
func (h *ArtifactsHandler) GetAbout(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}

	respondSuccess(w, map[string]interface{}{
		"model_metrics": metricsOut(snap.Metrics),
		"methodology":   snap.Methodology,
		"data_coverage": map[string]interface{}{
			"total_firms": len(snap.FirmIDs()),
			"year_min":    snap.Methodology.YearMin,
			"year_max":    snap.Methodology.YearMax,
		},
		"generated_at": snap.Manifest.GeneratedAt,
	})
}

func parseFloatParam(s string, def float64) (float64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}
