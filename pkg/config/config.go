package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		ControlTopic string   `yaml:"control_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Provider struct {
		BaseURL       string        `yaml:"base_url"`
		APIKey        string        `yaml:"api_key"`
		WebSocketURL  string        `yaml:"websocket_url"`
		Symbols       []string      `yaml:"symbols"`
		Timeout       time.Duration `yaml:"timeout"`
		RetryAttempts int           `yaml:"retry_attempts"`
		RetryBackoff  time.Duration `yaml:"retry_backoff"`
		BreakerReset  time.Duration `yaml:"breaker_reset"`
		MaxFailures   int           `yaml:"max_failures"`
		RateLimitRPS  float64       `yaml:"rate_limit_rps"`
		CacheTTL      time.Duration `yaml:"cache_ttl"`
		ReconnectWait time.Duration `yaml:"reconnect_wait"`
		PingInterval  time.Duration `yaml:"ping_interval"`
	} `yaml:"provider"`
	Cache struct {
		Type  string `yaml:"type"` // memory, redis, layered
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers"`
		Size       int           `yaml:"size"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	Engine struct {
		UpdateInterval       time.Duration `yaml:"update_interval"`
		OptimizationInterval time.Duration `yaml:"optimization_interval"`
		StressInterval       time.Duration `yaml:"stress_interval"`
		CorrelationInterval  time.Duration `yaml:"correlation_interval"`
		SoftDeadline         time.Duration `yaml:"soft_deadline"`
		ConfidenceLevel      float64       `yaml:"confidence_level"`
		LookbackPeriod       int           `yaml:"lookback_period"`
		RiskFreeRate         float64       `yaml:"risk_free_rate"`
		MaxPortfolioRisk     float64       `yaml:"max_portfolio_risk"`
		MaxPositionSize      float64       `yaml:"max_position_size"`
		CorrelationThreshold float64       `yaml:"correlation_threshold"`
		AlertThreshold       float64       `yaml:"alert_threshold"`
		EmergencyStopLoss    float64       `yaml:"emergency_stop_loss"`
		MonteCarloDraws      int           `yaml:"monte_carlo_draws"`
	} `yaml:"engine"`
	Optimizer struct {
		MethodWeights struct {
			MeanVariance    float64 `yaml:"mean_variance"`
			RiskParity      float64 `yaml:"risk_parity"`
			BlackLitterman  float64 `yaml:"black_litterman"`
			MinimumVariance float64 `yaml:"minimum_variance"`
		} `yaml:"method_weights"`
		RiskTolerance      float64 `yaml:"risk_tolerance"`
		Tau                float64 `yaml:"tau"`
		ViewConfidence     float64 `yaml:"view_confidence"`
		MaxPosition        float64 `yaml:"max_position"`
		TotalExposure      float64 `yaml:"total_exposure"`
		CashReserve        float64 `yaml:"cash_reserve"`
		RebalanceTolerance float64 `yaml:"rebalance_tolerance"`
	} `yaml:"optimizer"`
	Stress struct {
		ScenariosFile    string  `yaml:"scenarios_file"`
		PassLossFraction float64 `yaml:"pass_loss_fraction"`
		PassScore        float64 `yaml:"pass_score"`
	} `yaml:"stress"`
	Classifier struct {
		WeightsFile string        `yaml:"weights_file"`
		ServiceURL  string        `yaml:"service_url"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"classifier"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

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

	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}

	return c, nil
}

// applyDefaults fills the documented defaults for anything the file omits.
func (c *Config) applyDefaults() {
	e := &c.Engine
	if e.UpdateInterval <= 0 {
		e.UpdateInterval = 3 * time.Second
	}
	if e.OptimizationInterval <= 0 {
		e.OptimizationInterval = 5 * time.Minute
	}
	if e.StressInterval <= 0 {
		e.StressInterval = time.Hour
	}
	if e.CorrelationInterval <= 0 {
		e.CorrelationInterval = time.Minute
	}
	if e.SoftDeadline <= 0 {
		e.SoftDeadline = e.UpdateInterval
	}
	if e.ConfidenceLevel <= 0 {
		e.ConfidenceLevel = 0.95
	}
	if e.LookbackPeriod <= 0 {
		e.LookbackPeriod = 252
	}
	if e.RiskFreeRate == 0 {
		e.RiskFreeRate = 0.02
	}
	if e.MaxPortfolioRisk <= 0 {
		e.MaxPortfolioRisk = 0.20
	}
	if e.MaxPositionSize <= 0 {
		e.MaxPositionSize = 0.10
	}
	if e.CorrelationThreshold <= 0 {
		e.CorrelationThreshold = 0.7
	}
	if e.AlertThreshold <= 0 {
		e.AlertThreshold = 0.15
	}
	if e.EmergencyStopLoss <= 0 {
		e.EmergencyStopLoss = 0.25
	}
	if e.MonteCarloDraws <= 0 {
		e.MonteCarloDraws = 1000
	}

	o := &c.Optimizer
	if o.MethodWeights.MeanVariance <= 0 {
		o.MethodWeights.MeanVariance = 0.30
	}
	if o.MethodWeights.RiskParity <= 0 {
		o.MethodWeights.RiskParity = 0.25
	}
	if o.MethodWeights.BlackLitterman <= 0 {
		o.MethodWeights.BlackLitterman = 0.25
	}
	if o.MethodWeights.MinimumVariance <= 0 {
		o.MethodWeights.MinimumVariance = 0.20
	}
	if o.RiskTolerance <= 0 {
		o.RiskTolerance = 0.5
	}
	if o.Tau <= 0 {
		o.Tau = 0.025
	}
	if o.ViewConfidence <= 0 {
		o.ViewConfidence = 0.5
	}
	if o.MaxPosition <= 0 {
		o.MaxPosition = 0.10
	}
	if o.TotalExposure <= 0 {
		o.TotalExposure = 0.95
	}
	if o.CashReserve <= 0 {
		o.CashReserve = 0.05
	}
	if o.RebalanceTolerance <= 0 {
		o.RebalanceTolerance = 0.05
	}

	if c.Stress.PassLossFraction <= 0 {
		c.Stress.PassLossFraction = 0.30
	}
	if c.Stress.PassScore <= 0 {
		c.Stress.PassScore = 0.7
	}

	p := &c.Provider
	if p.Timeout <= 0 {
		p.Timeout = 30 * time.Second
	}
	if p.RetryAttempts <= 0 {
		p.RetryAttempts = 3
	}
	if p.RetryBackoff <= 0 {
		p.RetryBackoff = time.Second
	}
	if p.BreakerReset <= 0 {
		p.BreakerReset = time.Minute
	}
	if p.MaxFailures <= 0 {
		p.MaxFailures = 5
	}
	if p.CacheTTL <= 0 {
		p.CacheTTL = 30 * time.Second
	}
	if p.ReconnectWait <= 0 {
		p.ReconnectWait = 5 * time.Second
	}
	if p.PingInterval <= 0 {
		p.PingInterval = 30 * time.Second
	}
	if len(p.Symbols) == 0 {
		p.Symbols = []string{"BTC", "ETH", "ADA", "DOT", "LINK"}
	}

	q := &c.Queue
	if q.Workers <= 0 {
		q.Workers = 2
	}
	if q.Size <= 0 {
		q.Size = 1024
	}
	if q.RetryLimit <= 0 {
		q.RetryLimit = 3
	}
	if q.RetryDelay <= 0 {
		q.RetryDelay = 500 * time.Millisecond
	}

	if c.Cache.Type == "" {
		c.Cache.Type = "memory"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Cache.Type != "memory" && c.Cache.Type != "redis" && c.Cache.Type != "layered" {
		return fmt.Errorf("cache.type must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Type)
	}
	if cl := c.Engine.ConfidenceLevel; cl <= 0.5 || cl >= 1 {
		return fmt.Errorf("engine.confidence_level must be in (0.5, 1), got %v", cl)
	}
	return nil
}
