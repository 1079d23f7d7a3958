package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AnalyzerConfig holds the per-domain tunables every analyzer declares.
type AnalyzerConfig struct {
	CadenceMs      int     `yaml:"cadence_ms" default:"5000" validate:"gt=0"`
	MaxStalenessMs int     `yaml:"max_staleness_ms" default:"30000" validate:"gt=0"`
	MinConfidence  float64 `yaml:"min_confidence" default:"0.3" validate:"gte=0,lte=1"`
	MinSamples     int     `yaml:"min_samples" default:"5" validate:"gte=0"`
	WindowSec      int     `yaml:"window_sec" default:"3600" validate:"gt=0"`
	RetentionSec   int     `yaml:"retention_sec" default:"600" validate:"gt=0"`
}

// Cadence returns the analyzer cadence as a duration.
func (a AnalyzerConfig) Cadence() time.Duration { return time.Duration(a.CadenceMs) * time.Millisecond }

// MaxStaleness returns the staleness bound as a duration.
func (a AnalyzerConfig) MaxStaleness() time.Duration {
	return time.Duration(a.MaxStalenessMs) * time.Millisecond
}

// Window returns the input window as a duration.
func (a AnalyzerConfig) Window() time.Duration { return time.Duration(a.WindowSec) * time.Second }

// Retention returns the bus retention window as a duration.
func (a AnalyzerConfig) Retention() time.Duration { return time.Duration(a.RetentionSec) * time.Second }

type Config struct {
	Environment string `yaml:"environment" default:"dev" validate:"required"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Symbols    []string `yaml:"symbols" validate:"min=1"`
	Categories map[string]string `yaml:"categories"` // symbol -> category bucket

	Decision struct {
		TickMs         int     `yaml:"tick_ms" default:"2000" validate:"gt=0"`
		EnterThreshold float64 `yaml:"enter_threshold" default:"0.65" validate:"gt=0,lte=1"`
		HoldThreshold  float64 `yaml:"hold_threshold" default:"0.45" validate:"gte=0,lte=1"`
		Quorum         int     `yaml:"quorum" default:"4" validate:"gt=0"`
		BaseSize       float64 `yaml:"base_size" default:"100" validate:"gt=0"`
		Weights        map[string]float64 `yaml:"weights"`
	} `yaml:"decision"`

	Risk struct {
		SingleAssetLimit float64 `yaml:"single_asset_limit" default:"0.15" validate:"gt=0,lte=1"`
		CategoryLimit    float64 `yaml:"category_limit" default:"0.3" validate:"gt=0,lte=1"`
		PlatformLimit    float64 `yaml:"platform_limit" default:"0.5" validate:"gt=0,lte=1"`
		TotalExposure    float64 `yaml:"total_exposure" default:"0.8" validate:"gt=0"`
		MaxDrawdown      float64 `yaml:"max_drawdown" default:"0.15" validate:"gt=0,lt=1"`
		DrawdownWarn     float64 `yaml:"drawdown_warn" default:"0.1" validate:"gt=0,lt=1"`
		RecoveryPeriod   time.Duration `yaml:"recovery_period" default:"24h"`
		LeverageMin      float64 `yaml:"l_min" default:"1" validate:"gte=1"`
		LeverageMax      float64 `yaml:"l_max" default:"5" validate:"gte=1"`
		LeverageAbsMax   float64 `yaml:"leverage_abs_max" default:"10" validate:"gte=1"`
		LeverageVolCaps  struct {
			High   float64 `yaml:"high" default:"2"`
			Medium float64 `yaml:"medium" default:"3"`
			Low    float64 `yaml:"low" default:"5"`
		} `yaml:"leverage_vol_caps"`
		CorrelationWindow int     `yaml:"correlation_window" default:"120" validate:"gt=1"`
		CorrelationMax    float64 `yaml:"correlation_max" default:"0.7" validate:"gt=0,lte=1"`
	} `yaml:"risk"`

	Execution struct {
		Retries        int           `yaml:"retries" default:"3" validate:"gte=0"`
		MaxSlippage    float64       `yaml:"max_slippage" default:"0.01" validate:"gt=0"`
		SliceCount     int           `yaml:"slice_count" default:"4" validate:"gt=0"`
		SliceWindow    time.Duration `yaml:"slice_window" default:"4m"`
		StopLossSigma  float64       `yaml:"stop_loss_sigma" default:"2" validate:"gt=0"`
		TakeProfitSigma float64      `yaml:"take_profit_sigma" default:"3" validate:"gt=0"`
		TrailingPct    float64       `yaml:"trailing_pct" default:"0.02" validate:"gt=0"`
		SmallSizeRatio float64       `yaml:"small_size_ratio" default:"0.01" validate:"gt=0"`
		LargeSizeRatio float64       `yaml:"large_size_ratio" default:"0.05" validate:"gt=0"`
		HighUrgency    float64       `yaml:"high_urgency" default:"0.7" validate:"gt=0,lte=1"`
	} `yaml:"execution"`

	Learning struct {
		Rate             float64       `yaml:"rate" default:"0.1" validate:"gt=0,lte=1"`
		WeightMin        float64       `yaml:"w_min" default:"0.1" validate:"gte=0"`
		WeightMax        float64       `yaml:"w_max" default:"3" validate:"gt=0"`
		EvalWindow       int           `yaml:"eval_window" default:"20" validate:"gt=0"`
		PoorQuality      float64       `yaml:"poor_quality" default:"0.4" validate:"gte=0,lte=1"`
		MinModelAccuracy float64       `yaml:"min_model_accuracy" default:"0.55" validate:"gt=0,lte=1"`
		RetrainEvery     time.Duration `yaml:"retrain_every" default:"24h"`
		ReplayTTL        time.Duration `yaml:"replay_ttl" default:"168h"`
		InferenceWorkers int           `yaml:"inference_workers" default:"4" validate:"gt=0"`
	} `yaml:"learning"`

	Analyzers struct {
		Volatility struct {
			AnalyzerConfig `yaml:",inline"`
			Ceiling        float64 `yaml:"ceiling" default:"0.8" validate:"gt=0,lte=1"`
		} `yaml:"volatility"`
		Accumulation struct {
			AnalyzerConfig `yaml:",inline"`
			MinPhaseLength int `yaml:"min_phase_length" default:"30" validate:"gt=1"`
		} `yaml:"accumulation"`
		BuyingPressure AnalyzerConfig `yaml:"buying_pressure"`
		Swing          AnalyzerConfig `yaml:"swing"`
		Catalyst       AnalyzerConfig `yaml:"catalyst"`
		Sentiment      AnalyzerConfig `yaml:"sentiment"`
		Emotion        AnalyzerConfig `yaml:"emotion"`
		FearGreed      AnalyzerConfig `yaml:"fear_greed"`
		Psychology     AnalyzerConfig `yaml:"psychology"`
	} `yaml:"analyzers"`

	Exchange struct {
		Type           string        `yaml:"type" default:"paper" validate:"oneof=paper ws"`
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		RESTTimeout    time.Duration `yaml:"rest_timeout" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"15s"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"2s"`
		RateLimit      float64       `yaml:"rate_limit" default:"10"`  // requests per second
		RateBurst      int           `yaml:"rate_burst" default:"20"`
		Paper struct {
			Equity       float64       `yaml:"equity" default:"10000"`
			FeeRate      float64       `yaml:"fee_rate" default:"0.0005"`
			FillLatency  time.Duration `yaml:"fill_latency" default:"50ms"`
			SlippageBps  float64       `yaml:"slippage_bps" default:"5"`
			PartialRatio float64       `yaml:"partial_ratio" default:"1"`
		} `yaml:"paper"`
	} `yaml:"exchange"`

	Feeds struct {
		Market struct {
			WebSocketURL   string        `yaml:"websocket_url"`
			APIKey         string        `yaml:"api_key"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"2s"`
			PingInterval   time.Duration `yaml:"ping_interval" default:"15s"`
			MaxRPS         int           `yaml:"max_rps" default:"50"`
			BufferSize     int           `yaml:"buffer_size" default:"2000"`
		} `yaml:"market"`
		Social struct {
			Enabled      bool          `yaml:"enabled" default:"true"`
			BaseURL      string        `yaml:"base_url"`
			PollInterval time.Duration `yaml:"poll_interval" default:"30s"`
			Sources      []string      `yaml:"sources"`
		} `yaml:"social"`
	} `yaml:"feeds"`

	Kafka struct {
		Enabled      bool     `yaml:"enabled" default:"false"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"analysis.records"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async" default:"true"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"tokenagent-sink"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Enabled          bool          `yaml:"enabled" default:"false"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"tokenagent"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		AsyncInsert      bool          `yaml:"async_insert" default:"true"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert" default:"false"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`

	Redis struct {
		Enabled  bool   `yaml:"enabled" default:"false"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" default:"0"`
	} `yaml:"redis"`

	AnalysisLogPath string `yaml:"analysis_log_path" default:"data/analysis.jsonl"`
}

// Load reads, defaults, parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("EXCHANGE_TYPE"); v != "" {
		c.Exchange.Type = v
	}
	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("MARKET_WS_URL"); v != "" {
		c.Feeds.Market.WebSocketURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}

	return c, nil
}

// Validate checks structural validity and cross-field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols cannot be empty")
	}
	if c.Risk.LeverageMax < c.Risk.LeverageMin {
		return fmt.Errorf("risk.l_max %v below risk.l_min %v", c.Risk.LeverageMax, c.Risk.LeverageMin)
	}
	if c.Risk.LeverageMax > c.Risk.LeverageAbsMax {
		return fmt.Errorf("risk.l_max %v exceeds leverage_abs_max %v", c.Risk.LeverageMax, c.Risk.LeverageAbsMax)
	}
	if c.Learning.WeightMax <= c.Learning.WeightMin {
		return fmt.Errorf("learning.w_max must exceed learning.w_min")
	}
	if c.Decision.HoldThreshold > c.Decision.EnterThreshold {
		return fmt.Errorf("decision.hold_threshold above enter_threshold")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	for s := range c.Categories {
		if !contains(c.Symbols, s) {
			return fmt.Errorf("categories references unknown symbol %q", s)
		}
	}
	return nil
}

// AnalyzerFor returns the analyzer config block for a domain name.
func (c *Config) AnalyzerFor(domain string) AnalyzerConfig {
	switch domain {
	case "volatility":
		return c.Analyzers.Volatility.AnalyzerConfig
	case "accumulation":
		return c.Analyzers.Accumulation.AnalyzerConfig
	case "buying_pressure":
		return c.Analyzers.BuyingPressure
	case "swing":
		return c.Analyzers.Swing
	case "catalyst":
		return c.Analyzers.Catalyst
	case "sentiment":
		return c.Analyzers.Sentiment
	case "emotion":
		return c.Analyzers.Emotion
	case "fear_greed":
		return c.Analyzers.FearGreed
	case "psychology":
		return c.Analyzers.Psychology
	default:
		return AnalyzerConfig{}
	}
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
