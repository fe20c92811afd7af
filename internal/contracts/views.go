package contracts

// CompanyRow is one firm-year in the company-view export: the per-firm
// time series the company page charts.
type CompanyRow struct {
	FirmID      string
	Year        int
	ProfitScore float64
	Label       int
	Proxies     []float64 // winsorized, ProxyColumns order
	PCs         []float64
}

// ScreenerRow is one firm in the screener export for a chosen predictor
// year: score, predicted chance for t+1, risk bucket and explanation.
type ScreenerRow struct {
	FirmID      string
	Year        int
	TargetYear  int
	ProfitScore float64
	Chance      float64
	Risk        RiskLevel
	Borderline  bool
	Reason      string
	ActionTip   string
	Proxies     []float64 // ProxyColumns order
}

// AlertType enumerates the exported alert kinds
type AlertType string

const (
	AlertRiskChange AlertType = "risk_change"
	AlertBorderline AlertType = "borderline"
	AlertChanceDrop AlertType = "chance_drop"
)

// AlertRow is one firm-year alert in the alerts export
type AlertRow struct {
	FirmID  string
	Year    int
	Type    AlertType
	Message string
}
