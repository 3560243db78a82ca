// Package config loads the server configuration from YAML.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Instrument struct {
	Symbol   string          `yaml:"symbol"`
	TickSize decimal.Decimal `yaml:"tick_size"`
}

type Engine struct {
	// Capacity is the arena size per instrument: the most orders that can
	// rest at once.
	Capacity     int `yaml:"capacity"`
	TradeLogSize int `yaml:"trade_log_size"`
	QueueSize    int `yaml:"queue_size"`
	QuoteRing    int `yaml:"quote_ring"`
}

type Journal struct {
	Dir         string `yaml:"dir"`
	SegmentSize int64  `yaml:"segment_size"`
	Sync        bool   `yaml:"sync"`
}

type Outbox struct {
	Dir string `yaml:"dir"`
}

type Kafka struct {
	Brokers    []string `yaml:"brokers"`
	TradeTopic string   `yaml:"trade_topic"`
	QuoteTopic string   `yaml:"quote_topic"`
	// OrderTopic enables Kafka order ingestion when set.
	OrderTopic string `yaml:"order_topic"`
	GroupID    string `yaml:"group_id"`
}

type Config struct {
	Instruments []Instrument `yaml:"instruments"`
	Engine      Engine       `yaml:"engine"`
	Journal     Journal      `yaml:"journal"`
	Outbox      Outbox       `yaml:"outbox"`
	Kafka       Kafka        `yaml:"kafka"`

	GRPCAddr          string        `yaml:"grpc_addr"`
	HTTPAddr          string        `yaml:"http_addr"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
	QuoteInterval     time.Duration `yaml:"quote_interval"`
}

// Default is the configuration used for anything the file leaves out.
func Default() Config {
	return Config{
		Engine: Engine{
			Capacity:     1 << 20,
			TradeLogSize: 1024,
			QueueSize:    4096,
			QuoteRing:    1 << 12,
		},
		Journal: Journal{
			Dir:         "./wal_entry",
			SegmentSize: 64 << 20,
		},
		Outbox: Outbox{Dir: "./wal_exit"},
		Kafka: Kafka{
			TradeTopic: "clob.trades",
			QuoteTopic: "clob.quotes",
			GroupID:    "clob-engine",
		},
		GRPCAddr:          ":50051",
		HTTPAddr:          ":8080",
		BroadcastInterval: 250 * time.Millisecond,
		QuoteInterval:     50 * time.Millisecond,
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: read %s", path)
	}
	return Parse(raw)
}

func Parse(raw []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: decode")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.Instruments) == 0 {
		return errors.New("config: no instruments")
	}
	seen := make(map[string]bool, len(c.Instruments))
	for _, in := range c.Instruments {
		if in.Symbol == "" {
			return errors.New("config: instrument without symbol")
		}
		if seen[in.Symbol] {
			return errors.Newf("config: duplicate instrument %q", in.Symbol)
		}
		seen[in.Symbol] = true
		if !in.TickSize.IsPositive() {
			return errors.Newf("config: %s: tick_size must be positive", in.Symbol)
		}
	}
	if c.Engine.Capacity <= 0 {
		return errors.New("config: engine.capacity must be positive")
	}
	if r := c.Engine.QuoteRing; r <= 0 || r&(r-1) != 0 {
		return errors.New("config: engine.quote_ring must be a power of two")
	}
	return nil
}
