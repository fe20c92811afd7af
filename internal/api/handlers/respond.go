package handlers

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/profitpulse/backend/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error": message,
	})
}

// respondSuccess wraps data in the success envelope every read endpoint
// uses: {"success": true, ...data}.
func respondSuccess(w http.ResponseWriter, data map[string]interface{}) {
	out := make(map[string]interface{}, len(data)+1)
	out["success"] = true
	for k, v := range data {
		out[k] = v
	}
	respondJSON(w, http.StatusOK, out)
}

// metricsDTO mirrors ModelMetrics with a nullable AUC, since a NaN
// cannot be encoded as JSON.
type metricsDTO struct {
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1        float64   `json:"f1"`
	AUC       *float64  `json:"auc"`
	Confusion [2][2]int `json:"confusion"`
}

func metricsOut(metrics map[contracts.ModelKind]contracts.ModelMetrics) map[string]metricsDTO {
	out := make(map[string]metricsDTO, len(metrics))
	for kind, m := range metrics {
		dto := metricsDTO{
			Accuracy:  m.Accuracy,
			Precision: m.Precision,
			Recall:    m.Recall,
			F1:        m.F1,
			Confusion: m.Confusion,
		}
		if !math.IsNaN(m.AUC) {
			auc := m.AUC
			dto.AUC = &auc
		}
		out[string(kind)] = dto
	}
	return out
}

// proxiesOut maps a proxy vector to its display names, e.g. ROA: 0.12.
func proxiesOut(values []float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	for i, col := range contracts.ProxyColumns {
		if i < len(values) && !math.IsNaN(values[i]) {
			out[contracts.PrettyProxyNames[col]] = values[i]
		}
	}
	return out
}
