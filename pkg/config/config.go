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

// Config is the full engine configuration. Policy values (risk curve
// parameters, dimension caps, thresholds) live here rather than in code;
// the engine enforces the invariants regardless of the numbers chosen.
type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error fatal panic"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`

	Allocation struct {
		MinScore        float64 `yaml:"min_score" default:"0.50" validate:"gte=0,lte=1"`
		MaxRiskPct      float64 `yaml:"max_risk_pct" default:"2.0" validate:"gt=0"`
		MinTradablePct  float64 `yaml:"min_tradable_pct" default:"0.05" validate:"gte=0"`
		SigmoidSlope    float64 `yaml:"sigmoid_slope" default:"12.0" validate:"gt=0"`
		SigmoidMidpoint float64 `yaml:"sigmoid_midpoint" default:"0.655" validate:"gte=0,lte=1"`
	} `yaml:"allocation"`

	Budget struct {
		TotalCapPct     float64 `yaml:"total_cap_pct" default:"10.0" validate:"gte=0"`
		SymbolCapPct    float64 `yaml:"symbol_cap_pct" default:"3.0" validate:"gte=0"`
		StrategyCapPct  float64 `yaml:"strategy_cap_pct" default:"5.0" validate:"gte=0"`
		SectorCapPct    float64 `yaml:"sector_cap_pct" default:"6.0" validate:"gte=0"`
		DirectionCapPct float64 `yaml:"direction_cap_pct" default:"8.0" validate:"gte=0"`
		ClusterCapPct   float64 `yaml:"cluster_cap_pct" default:"4.0" validate:"gte=0"`
	} `yaml:"budget"`

	Arbiter struct {
		LockTimeout    time.Duration `yaml:"lock_timeout" default:"250ms" validate:"gt=0"`
		LiquidityFloor float64       `yaml:"liquidity_floor" default:"1.0" validate:"gt=0"`
		SlippageBps    float64       `yaml:"slippage_bps" default:"1.5" validate:"gte=0"`
	} `yaml:"arbiter"`

	Ledger struct {
		MaxEntries int `yaml:"max_entries" default:"10000" validate:"gt=0"`
	} `yaml:"ledger"`

	Correlation struct {
		HistoryLength    int     `yaml:"history_length" default:"250" validate:"gt=1"`
		ClusterThreshold float64 `yaml:"cluster_threshold" default:"0.7" validate:"gte=0,lte=1"`
	} `yaml:"correlation"`

	KillSwitch struct {
		PerTradeRiskCapPct   float64 `yaml:"per_trade_risk_cap_pct" default:"2.0" validate:"gt=0"`
		DailyDrawdownPct     float64 `yaml:"daily_drawdown_pct" default:"5.0" validate:"gt=0"`
		MaxConsecutiveLosses int     `yaml:"max_consecutive_losses" default:"6" validate:"gt=0"`
		MinWinRate           float64 `yaml:"min_win_rate" default:"0.25" validate:"gte=0,lte=1"`
		MinTradesForWinRate  int     `yaml:"min_trades_for_win_rate" default:"20" validate:"gt=0"`
		PortfolioDrawdownPct float64 `yaml:"portfolio_drawdown_pct" default:"10.0" validate:"gt=0"`
		Journal              struct {
			Enabled  bool   `yaml:"enabled" default:"false"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db" default:"0"`
			Prefix   string `yaml:"prefix" default:"riskarbiter"`
		} `yaml:"journal"`
	} `yaml:"kill_switch"`

	Audit struct {
		QueueSize int `yaml:"queue_size" default:"1024" validate:"gt=0"`
		Workers   int `yaml:"workers" default:"2" validate:"gt=0"`
		Kafka     struct {
			Enabled      bool          `yaml:"enabled" default:"false"`
			Brokers      []string      `yaml:"brokers"`
			Topic        string        `yaml:"topic" default:"decisions.audit"`
			RequiredAcks int           `yaml:"required_acks" default:"-1"`
			Compression  string        `yaml:"compression" default:"gzip"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		} `yaml:"kafka"`
		ClickHouse struct {
			Enabled     bool          `yaml:"enabled" default:"false"`
			Host        string        `yaml:"host" default:"localhost"`
			Port        int           `yaml:"port" default:"9000"`
			Database    string        `yaml:"database" default:"riskarbiter"`
			User        string        `yaml:"user" default:"default"`
			Password    string        `yaml:"password"`
			Table       string        `yaml:"table" default:"decision_archive"`
			DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
		} `yaml:"clickhouse"`
	} `yaml:"audit"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file, applies defaults,
// and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides secrets and
// endpoints with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Audit.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.Audit.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.KillSwitch.Journal.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.KillSwitch.Journal.Password = v
	}

	return c, nil
}

// Default returns a configuration with every field at its default
// value; used by tests and embedded deployments without a YAML file.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}
