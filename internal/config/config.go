package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppConfig      *AppConfig
	BrowserConfig  *BrowserConfig
	LocatorConfig  *LocatorConfig
	ExecutorConfig *ExecutorConfig
	APIConfig      *APIConfig
}

type AppConfig struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type BrowserConfig struct {
	Headless    bool   `envconfig:"BROWSER_HEADLESS" default:"false"`
	SlowMo      int    `envconfig:"BROWSER_SLOW_MO" default:"100"`
	Timeout     int    `envconfig:"BROWSER_TIMEOUT" default:"30000"`
	UserDataDir string `envconfig:"BROWSER_USER_DATA_DIR" default:""`
}

// LocatorConfig carries the tunable scoring knobs for the detection
// strategies. Exact weights are deliberately configuration, not code:
// only the cascade ordering is contractual.
type LocatorConfig struct {
	SemanticThreshold  int `envconfig:"LOCATOR_SEMANTIC_THRESHOLD" default:"3"`
	HeuristicThreshold int `envconfig:"LOCATOR_HEURISTIC_THRESHOLD" default:"2"`
	KeywordWeight      int `envconfig:"LOCATOR_KEYWORD_WEIGHT" default:"2"`
	TagWeight          int `envconfig:"LOCATOR_TAG_WEIGHT" default:"2"`
	GeometryWeight     int `envconfig:"LOCATOR_GEOMETRY_WEIGHT" default:"1"`
	MaxCandidates      int `envconfig:"LOCATOR_MAX_CANDIDATES" default:"200"`
}

type ExecutorConfig struct {
	MaxFieldAttempts int           `envconfig:"EXECUTOR_MAX_FIELD_ATTEMPTS" default:"3"`
	MaxNavAttempts   int           `envconfig:"EXECUTOR_MAX_NAV_ATTEMPTS" default:"2"`
	RetryBackoff     time.Duration `envconfig:"EXECUTOR_RETRY_BACKOFF" default:"800ms"`
	TaskTimeout      time.Duration `envconfig:"EXECUTOR_TASK_TIMEOUT" default:"90s"`
	SettleDelay      time.Duration `envconfig:"EXECUTOR_SETTLE_DELAY" default:"500ms"`
}

type APIConfig struct {
	ListenAddr     string        `envconfig:"API_LISTEN_ADDR" default:":8080"`
	RequestTimeout time.Duration `envconfig:"API_REQUEST_TIMEOUT" default:"120s"`
}

func GetConfig() (*Config, error) {
	_ = godotenv.Load()

	var conf Config

	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("read config from env vars: %w", err)
	}

	return &conf, nil
}
