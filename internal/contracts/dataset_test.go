package contracts

import (
	"math"
	"testing"
)

func TestBuildProxy(t *testing.T) {
	obs := Observation{
		FirmID:          "AAA",
		Year:            2020,
		NetIncomeParent: 120,
		NetIncomeTotal:  100,
		TotalAssets:     1000,
		Equity:          600,
		SharesIssued:    50,
		EPSBasic:        2.4,
		Revenue:         800,
	}

	row := BuildProxy(obs, 10)

	if got, want := row.ROA, 0.12; math.Abs(got-want) > 1e-12 {
		t.Errorf("ROA = %v, want %v", got, want)
	}
	if got, want := row.ROE, 0.2; math.Abs(got-want) > 1e-12 {
		t.Errorf("ROE = %v, want %v", got, want)
	}
	// paid-up capital = 50 * 10 = 500
	if got, want := row.ROC, 0.24; math.Abs(got-want) > 1e-12 {
		t.Errorf("ROC = %v, want %v", got, want)
	}
	if got, want := row.EPS, 2.4; got != want {
		t.Errorf("EPS = %v, want %v", got, want)
	}
	if got, want := row.NPM, 0.15; math.Abs(got-want) > 1e-12 {
		t.Errorf("NPM = %v, want %v", got, want)
	}
	if !row.Complete() {
		t.Error("expected complete proxy row")
	}
}

func TestBuildProxy_NetIncomeFallback(t *testing.T) {
	obs := Observation{
		FirmID:          "BBB",
		Year:            2020,
		NetIncomeParent: math.NaN(),
		NetIncomeTotal:  100,
		TotalAssets:     1000,
		Equity:          500,
		SharesIssued:    10,
		EPSBasic:        1.0,
		Revenue:         400,
	}

	if got := obs.NetIncome(); got != 100 {
		t.Errorf("NetIncome fallback = %v, want 100", got)
	}

	row := BuildProxy(obs, 10000)
	if math.Abs(row.ROA-0.1) > 1e-12 {
		t.Errorf("ROA = %v, want 0.1", row.ROA)
	}
}

func TestBuildProxy_ZeroDenominators(t *testing.T) {
	obs := Observation{
		FirmID:          "CCC",
		Year:            2021,
		NetIncomeParent: 100,
		TotalAssets:     0, // ROA undefined
		Equity:          500,
		SharesIssued:    0, // ROC undefined
		EPSBasic:        1.0,
		Revenue:         400,
	}

	row := BuildProxy(obs, 10000)

	if !math.IsNaN(row.ROA) {
		t.Errorf("ROA with zero assets = %v, want NaN", row.ROA)
	}
	if !math.IsNaN(row.ROC) {
		t.Errorf("ROC with zero shares = %v, want NaN", row.ROC)
	}
	if row.Complete() {
		t.Error("row with NaN proxies must not be complete")
	}
}

func TestScoredRow_ZFor(t *testing.T) {
	row := ScoredRow{
		Z: []float64{0.1, 0.2, 0.3, 0.4, 0.5},
	}

	if got := row.ZFor("x2_roe"); got != 0.2 {
		t.Errorf("ZFor(x2_roe) = %v, want 0.2", got)
	}
	if got := row.ZFor("x5_npm"); got != 0.5 {
		t.Errorf("ZFor(x5_npm) = %v, want 0.5", got)
	}
	if got := row.ZFor("unknown"); !math.IsNaN(got) {
		t.Errorf("ZFor(unknown) = %v, want NaN", got)
	}
}

func TestProxyRow_VectorOrder(t *testing.T) {
	row := ProxyRow{ROA: 1, ROE: 2, ROC: 3, EPS: 4, NPM: 5}
	vec := row.Vector()

	if len(vec) != len(ProxyColumns) {
		t.Fatalf("vector length = %d, want %d", len(vec), len(ProxyColumns))
	}
	for i, want := range []float64{1, 2, 3, 4, 5} {
		if vec[i] != want {
			t.Errorf("vec[%d] = %v, want %v", i, vec[i], want)
		}
	}
}
