// Package explain turns a firm-year's standardized profitability
// profile into a short human-readable reason and an action tip. Rules
// are evaluated in order and the first match wins; the rule table can
// be replaced from a YAML file without recompiling.
package explain

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/profitpulse/backend/internal/contracts"
)

// Features is the evidence a rule clause can test. Delta fields compare
// the current year's z-score with the previous year's and are NaN when
// no previous year exists.
type Features struct {
	ZROA      float64
	ZROE      float64
	ZNPM      float64
	DeltaZEPS float64
	DeltaZNPM float64
	Score     float64
	Chance    float64
}

func (f Features) field(name string) (float64, bool) {
	switch name {
	case "z_roa":
		return f.ZROA, true
	case "z_roe":
		return f.ZROE, true
	case "z_npm":
		return f.ZNPM, true
	case "dz_eps":
		return f.DeltaZEPS, true
	case "abs_dz_eps":
		return math.Abs(f.DeltaZEPS), true
	case "dz_npm":
		return f.DeltaZNPM, true
	case "score":
		return f.Score, true
	case "chance":
		return f.Chance, true
	}
	return 0, false
}

// Clause is a single threshold test on one feature.
type Clause struct {
	Field string  `yaml:"field"`
	Op    string  `yaml:"op"`
	Value float64 `yaml:"value"`
}

func (c Clause) holds(f Features) bool {
	v, ok := f.field(c.Field)
	if !ok || math.IsNaN(v) {
		return false
	}
	switch c.Op {
	case "gte":
		return v >= c.Value
	case "lte":
		return v <= c.Value
	case "gt":
		return v > c.Value
	case "lt":
		return v < c.Value
	}
	return false
}

func (c Clause) validate() error {
	if _, ok := (Features{}).field(c.Field); !ok {
		return fmt.Errorf("unknown field %q", c.Field)
	}
	switch c.Op {
	case "gte", "lte", "gt", "lt":
		return nil
	}
	return fmt.Errorf("unknown op %q", c.Op)
}

// Rule matches when every clause in All holds and, if Any is present,
// at least one clause in Any holds.
type Rule struct {
	Name   string   `yaml:"name"`
	All    []Clause `yaml:"all"`
	Any    []Clause `yaml:"any"`
	Reason string   `yaml:"reason"`
	Tip    string   `yaml:"tip"`
}

func (r Rule) matches(f Features) bool {
	for _, c := range r.All {
		if !c.holds(f) {
			return false
		}
	}
	if len(r.Any) == 0 {
		return true
	}
	for _, c := range r.Any {
		if c.holds(f) {
			return true
		}
	}
	return false
}

// Engine holds the ordered rule table plus the fallback text used when
// nothing matches.
type Engine struct {
	rules         []Rule
	defaultReason string
	defaultTip    string
}

type ruleFile struct {
	Rules         []Rule `yaml:"rules"`
	DefaultReason string `yaml:"default_reason"`
	DefaultTip    string `yaml:"default_tip"`
}

// Default returns the built-in rule table.
func Default() *Engine {
	return &Engine{
		rules: []Rule{
			{
				Name: "leverage_driven_roe",
				All: []Clause{
					{Field: "z_roe", Op: "gte", Value: 0.7},
					{Field: "z_roa", Op: "lte", Value: -0.20},
				},
				Reason: "High ROE looks driven by leverage rather than asset productivity.",
				Tip:    "Review debt levels and interest coverage before relying on the equity return.",
			},
			{
				Name: "weak_core_returns",
				All: []Clause{
					{Field: "z_roa", Op: "lte", Value: -0.5},
					{Field: "z_roe", Op: "lte", Value: -0.5},
				},
				Reason: "Returns on both assets and equity sit well below the cross-section.",
				Tip:    "Check whether underperforming assets or a shrinking core business explains the gap.",
			},
			{
				Name: "margin_erosion",
				Any: []Clause{
					{Field: "z_npm", Op: "lte", Value: -0.5},
					{Field: "dz_npm", Op: "lte", Value: -1.0},
				},
				Reason: "Net margin is weak or eroding quickly versus last year.",
				Tip:    "Look at pricing power and cost growth driving the margin move.",
			},
			{
				Name: "eps_volatility",
				All: []Clause{
					{Field: "abs_dz_eps", Op: "gte", Value: 1.0},
				},
				Reason: "Earnings per share moved sharply against its own history.",
				Tip:    "Separate one-off items from the recurring earnings trend.",
			},
		},
		defaultReason: "Profitability profile is close to the cross-sectional average.",
		defaultTip:    "No single driver stands out; monitor the next filing.",
	}
}

// Load reads a rule table from a YAML file, validating every clause.
func Load(path string) (*Engine, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, contracts.WrapDataError(err, "read explain rules")
	}

	var file ruleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, contracts.WrapDataError(err, "parse explain rules")
	}
	if len(file.Rules) == 0 {
		return nil, contracts.NewDataError("explain rules file has no rules")
	}

	for _, r := range file.Rules {
		if r.Name == "" || r.Reason == "" {
			return nil, contracts.NewDataError("explain rule needs a name and a reason")
		}
		if len(r.All) == 0 && len(r.Any) == 0 {
			return nil, contracts.NewDataError("rule %q has no clauses", r.Name)
		}
		for _, c := range append(append([]Clause{}, r.All...), r.Any...) {
			if err := c.validate(); err != nil {
				return nil, contracts.WrapDataError(err, "rule %q", r.Name)
			}
		}
	}

	eng := &Engine{
		rules:         file.Rules,
		defaultReason: file.DefaultReason,
		defaultTip:    file.DefaultTip,
	}
	if eng.defaultReason == "" {
		eng.defaultReason = Default().defaultReason
	}
	if eng.defaultTip == "" {
		eng.defaultTip = Default().defaultTip
	}
	return eng, nil
}

// Explain returns the reason and tip of the first matching rule, or the
// fallback pair when no rule fires.
func (e *Engine) Explain(f Features) (reason, tip string) {
	for _, r := range e.rules {
		if r.matches(f) {
			return r.Reason, r.Tip
		}
	}
	return e.defaultReason, e.defaultTip
}

// FeaturesFor assembles the rule evidence for one scored row given the
// previous year's row (nil when the firm has no prior year).
func FeaturesFor(cur contracts.ScoredRow, prev *contracts.ScoredRow, chance float64) Features {
	f := Features{
		ZROA:      cur.ZFor("x1_roa"),
		ZROE:      cur.ZFor("x2_roe"),
		ZNPM:      cur.ZFor("x5_npm"),
		DeltaZEPS: math.NaN(),
		DeltaZNPM: math.NaN(),
		Score:     cur.ProfitScore,
		Chance:    chance,
	}
	if prev != nil {
		f.DeltaZEPS = cur.ZFor("x4_eps") - prev.ZFor("x4_eps")
		f.DeltaZNPM = cur.ZFor("x5_npm") - prev.ZFor("x5_npm")
	}
	return f
}
