// Package config is the file configuration of the avfileloop command.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/avfile/pipeline"
	"github.com/xaionaro-go/avfile/sink"
	"github.com/xaionaro-go/avfile/source"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Source  source.Config `yaml:"source"`
	Sink    sink.Config   `yaml:"sink"`
	Ticker  TickerConfig  `yaml:"ticker"`
	Logging LoggingConfig `yaml:"logging"`
}

type TickerConfig struct {
	Interval time.Duration `yaml:"interval"`

	// Duration stops the command after the given time; zero means run
	// until interrupted.
	Duration time.Duration `yaml:"duration"`

	StatsInterval time.Duration `yaml:"stats_interval"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Source: source.DefaultConfig(),
		Sink:   sink.DefaultConfig(),
		Ticker: TickerConfig{
			Interval:      pipeline.DefaultTickInterval,
			StatsInterval: time.Second,
		},
		Logging: LoggingConfig{
			Level: logger.LevelInfo.String(),
		},
	}
}

// Load reads the YAML file on top of Default. Environment variables in the
// file are expanded.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (cfg Config) Validate() error {
	if cfg.Ticker.Interval <= 0 {
		return fmt.Errorf("ticker.interval must be positive, got %v", cfg.Ticker.Interval)
	}
	if cfg.Ticker.Duration < 0 {
		return fmt.Errorf("ticker.duration must not be negative, got %v", cfg.Ticker.Duration)
	}
	if cfg.Source.FrameRate < 0 {
		return fmt.Errorf("source.frame_rate must not be negative, got %v", cfg.Source.FrameRate)
	}
	if cfg.Sink.QueueLimit < 0 {
		return fmt.Errorf("sink.queue_limit must not be negative, got %d", cfg.Sink.QueueLimit)
	}
	if cfg.Sink.BaseName == "" || cfg.Sink.Extension == "" {
		return fmt.Errorf("sink.base_name and sink.extension must be set")
	}
	if _, err := ParseLogLevel(cfg.Logging.Level); err != nil {
		return err
	}
	return nil
}

func (cfg Config) Bytes() ([]byte, error) {
	return yaml.Marshal(cfg)
}

func ParseLogLevel(s string) (logger.Level, error) {
	var level logger.Level
	if err := level.Set(s); err != nil {
		return logger.LevelUndefined, fmt.Errorf("invalid logging level '%s': %w", s, err)
	}
	return level, nil
}
