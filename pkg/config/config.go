package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Pipeline
	Pipeline PipelineConfig

	// Artifacts
	ArtifactsDir string

	// Database (optional, warehouse only)
	Database DatabaseConfig

	// API
	RateLimitRPS   float64
	RateLimitBurst int

	// Logging
	LogLevel  string
	LogFormat string
}

// PipelineConfig holds the scoring-pipeline methodology settings.
// Defaults are the published methodology constants; a deployment may
// override any of them, and the exported methodology snapshot records
// the values a run was built with.
type PipelineConfig struct {
	InputPath string
	ParValue  float64 // par value used for paid-up capital (ROC denominator)
	WinsorQ   float64 // winsorization quantile (lower tail; upper is 1-q)
	PCAK      int     // number of principal components kept

	// Forecast split, keyed by label (target) year
	TrainTargetEndYear int
	TestTargetYears    []int
	// Preprocessing/PCA fit window: predictor years <= this
	PreprocessFitPredYear int

	// Minimum observations required to fit preprocessing/PCA
	MinFitRows int

	LabelRule      string  // positive, median, threshold
	LabelThreshold float64 // only used when LabelRule == "threshold"

	// Display policy
	DefaultModel   string  // svm_rbf, random_forest, gradient_boost
	ProbaThreshold float64 // probability -> class cutoff
	RiskHighCut    float64 // chance below this => High risk
	RiskLowCut     float64 // chance above this => Low risk
	BorderlineAbsP float64 // |ProfitScore| below this => borderline

	// Explanation thresholds (z-score space)
	ZWeak   float64
	ZStrong float64
	ZJump   float64

	// Optional YAML file overriding the built-in explanation rules
	ExplainRulesPath string

	// Screener/alerts export window
	ScreenerYear   int
	AlertsYearFrom int
	AlertsYearTo   int
	// Year-over-year fall in predicted chance that triggers an alert
	AlertChanceDrop float64

	Seed int64
}

// DatabaseConfig holds PostgreSQL configuration for the warehouse
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		Pipeline: PipelineConfig{
			InputPath:             getEnv("INPUT_PATH", "Data.xlsx"),
			ParValue:              getEnvAsFloat("PAR_VALUE", 10000),
			WinsorQ:               getEnvAsFloat("WINSOR_Q", 0.01),
			PCAK:                  getEnvAsInt("PCA_K", 3),
			TrainTargetEndYear:    getEnvAsInt("TRAIN_TARGET_END_YEAR", 2020),
			TestTargetYears:       getEnvAsIntSlice("TEST_TARGET_YEARS", []int{2021, 2022, 2023, 2024}),
			PreprocessFitPredYear: getEnvAsInt("PREPROCESS_FIT_PRED_YEAR", 2019),
			MinFitRows:            getEnvAsInt("MIN_FIT_ROWS", 2),
			LabelRule:             getEnv("LABEL_RULE", "positive"),
			LabelThreshold:        getEnvAsFloat("LABEL_THRESHOLD", 0),
			DefaultModel:          getEnv("DEFAULT_MODEL", "gradient_boost"),
			ProbaThreshold:        getEnvAsFloat("PROBA_THRESHOLD", 0.50),
			RiskHighCut:           getEnvAsFloat("RISK_HIGH_CUT", 0.40),
			RiskLowCut:            getEnvAsFloat("RISK_LOW_CUT", 0.60),
			BorderlineAbsP:        getEnvAsFloat("BORDERLINE_ABS_P", 0.10),
			ZWeak:                 getEnvAsFloat("Z_WEAK", -0.50),
			ZStrong:               getEnvAsFloat("Z_STRONG", 0.70),
			ZJump:                 getEnvAsFloat("Z_JUMP", 1.00),
			ExplainRulesPath:      getEnv("EXPLAIN_RULES_PATH", ""),
			ScreenerYear:          getEnvAsInt("SCREENER_YEAR", 2023),
			AlertsYearFrom:        getEnvAsInt("ALERTS_YEAR_FROM", 2016),
			AlertsYearTo:          getEnvAsInt("ALERTS_YEAR_TO", 2023),
			AlertChanceDrop:       getEnvAsFloat("ALERT_CHANCE_DROP", 0.15),
			Seed:                  int64(getEnvAsInt("RANDOM_SEED", 42)),
		},

		ArtifactsDir: getEnv("ARTIFACTS_DIR", "artifacts_profitpulse"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// API
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 100),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	p := c.Pipeline
	if p.WinsorQ <= 0 || p.WinsorQ >= 0.5 {
		return fmt.Errorf("WINSOR_Q must be in (0, 0.5), got %v", p.WinsorQ)
	}
	if p.PCAK < 1 {
		return fmt.Errorf("PCA_K must be at least 1, got %d", p.PCAK)
	}
	switch p.LabelRule {
	case "positive", "median", "threshold":
	default:
		return fmt.Errorf("LABEL_RULE must be one of: positive, median, threshold")
	}
	switch p.DefaultModel {
	case "svm_rbf", "random_forest", "gradient_boost":
	default:
		return fmt.Errorf("DEFAULT_MODEL must be one of: svm_rbf, random_forest, gradient_boost")
	}
	if p.RiskHighCut >= p.RiskLowCut {
		return fmt.Errorf("RISK_HIGH_CUT must be below RISK_LOW_CUT")
	}
	if p.PreprocessFitPredYear >= p.TrainTargetEndYear {
		return fmt.Errorf("PREPROCESS_FIT_PRED_YEAR must precede TRAIN_TARGET_END_YEAR")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsIntSlice(key string, defaultValue []int) []int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return defaultValue
		}
		values = append(values, v)
	}
	return values
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
