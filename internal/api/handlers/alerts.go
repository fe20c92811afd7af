package handlers

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/profitpulse/backend/internal/artifact"
	"github.com/profitpulse/backend/internal/contracts"
	"github.com/profitpulse/backend/pkg/logger"
)

// AlertsHandler serves the exported alerts and the top-risk ranking.
type AlertsHandler struct {
	store  *artifact.Store
	logger *logger.Logger
}

func NewAlertsHandler(store *artifact.Store, log *logger.Logger) *AlertsHandler {
	return &AlertsHandler{store: store, logger: log}
}

func (h *AlertsHandler) snapshot(w http.ResponseWriter) (*artifact.Snapshot, bool) {
	snap, err := h.store.Snapshot()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "No artifact set loaded; run the pipeline first")
		return nil, false
	}
	return snap, true
}

type alertItem struct {
	FirmID  string `json:"firm_id"`
	Year    int    `json:"year"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// GetAlerts filters the exported alerts by year window and rule set
// GET /api/alerts?year_from=&year_to=&rules=risk_change,chance_drop,borderline
func (h *AlertsHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	yearFrom, err := parseIntParam(q.Get("year_from"), 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'year_from' parameter")
		return
	}
	yearTo, err := parseIntParam(q.Get("year_to"), 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'year_to' parameter")
		return
	}

	rules := map[contracts.AlertType]bool{}
	rulesParam := q.Get("rules")
	if rulesParam == "" {
		rulesParam = "risk_change,chance_drop,borderline"
	}
	for _, rule := range strings.Split(rulesParam, ",") {
		rule = strings.TrimSpace(rule)
		if rule != "" {
			rules[contracts.AlertType(rule)] = true
		}
	}

	var results []alertItem
	for _, a := range snap.Alerts {
		if yearFrom != 0 && a.Year < yearFrom {
			continue
		}
		if yearTo != 0 && a.Year > yearTo {
			continue
		}
		if !rules[a.Type] {
			continue
		}
		results = append(results, alertItem{
			FirmID:  a.FirmID,
			Year:    a.Year,
			Type:    string(a.Type),
			Message: a.Message,
		})
	}

	respondSuccess(w, map[string]interface{}{
		"year_range":    map[string]int{"from": yearFrom, "to": yearTo},
		"rules_applied": strings.Split(rulesParam, ","),
		"total_results": len(results),
		"alerts":        results,
	})
}

type topRiskItem struct {
	FirmID     string  `json:"firm_id"`
	Year       int     `json:"year"`
	PrevChance float64 `json:"prev_chance"`
	CurChance  float64 `json:"cur_chance"`
	Drop       float64 `json:"drop"`
	PrevRisk   string  `json:"prev_risk"`
	CurRisk    string  `json:"cur_risk"`
}

// GetTopRisk ranks firms by their sharpest year-over-year fall in the
// default model's predicted chance
// GET /api/alerts/top-risk?n=10
func (h *AlertsHandler) GetTopRisk(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}

	n, err := parseIntParam(r.URL.Query().Get("n"), 10)
	if err != nil || n < 1 {
		respondError(w, http.StatusBadRequest, "Invalid 'n' parameter")
		return
	}

	defaultModel := contracts.ModelKind(snap.Methodology.DefaultModel)
	highCut := snap.Methodology.RiskHighCut
	lowCut := snap.Methodology.RiskLowCut

	var results []topRiskItem
	for _, firm := range snap.FirmIDs() {
		var series []contracts.Prediction
		for _, p := range snap.PredictionsFor(firm) {
			if p.Model == defaultModel {
				series = append(series, p)
			}
		}
		sort.Slice(series, func(i, j int) bool { return series[i].Year < series[j].Year })

		best := topRiskItem{}
		for i := 1; i < len(series); i++ {
			prev, cur := series[i-1], series[i]
			if cur.Year != prev.Year+1 {
				continue
			}
			drop := prev.Chance - cur.Chance
			if drop > best.Drop {
				best = topRiskItem{
					FirmID:     firm,
					Year:       cur.Year,
					PrevChance: prev.Chance,
					CurChance:  cur.Chance,
					Drop:       drop,
					PrevRisk:   string(contracts.RiskBucket(prev.Chance, highCut, lowCut)),
					CurRisk:    string(contracts.RiskBucket(cur.Chance, highCut, lowCut)),
				}
			}
		}
		if best.FirmID != "" {
			results = append(results, best)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Drop != results[j].Drop {
			return results[i].Drop > results[j].Drop
		}
		return results[i].FirmID < results[j].FirmID
	})
	if len(results) > n {
		results = results[:n]
	}

	respondSuccess(w, map[string]interface{}{
		"top_n":   n,
		"results": results,
	})
}

func parseIntParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
