package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	instance *Config
	once     sync.Once
)

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
	MaxBodyMB int    `yaml:"max_body_mb"`
}

type ModelConfig struct {
	// Store is "file" or "redis"
	Store     string `yaml:"store"`
	Path      string `yaml:"path"`
	RedisKey  string `yaml:"redis_key"`
	EagerLoad bool   `yaml:"eager_load"`
}

type TrainingConfig struct {
	Scenes          int     `yaml:"scenes"`
	Height          int     `yaml:"height"`
	Width           int     `yaml:"width"`
	Seed            uint64  `yaml:"seed"`
	Trees           int     `yaml:"trees"`
	MaxDepth        int     `yaml:"max_depth"`
	MinSamplesSplit int     `yaml:"min_samples_split"`
	MaxSamples      int     `yaml:"max_samples"`
	TestFraction    float64 `yaml:"test_fraction"`
	RecordRuns      bool    `yaml:"record_runs"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Model    ModelConfig    `yaml:"model"`
	Training TrainingConfig `yaml:"training"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8000",
			Workers:   4,
			QueueSize: 32,
			MaxBodyMB: 64,
		},
		Model: ModelConfig{
			Store:    "file",
			Path:     "models/stress_model.zst",
			RedisKey: "stressvision:model",
		},
		Training: TrainingConfig{
			Scenes:          50,
			Height:          256,
			Width:           256,
			Seed:            42,
			Trees:           100,
			MaxDepth:        12,
			MinSamplesSplit: 10,
			MaxSamples:      50000,
			TestFraction:    0.2,
		},
		Log: LogConfig{Level: "INFO"},
	}
}

// Load reads configPath over the defaults. An empty path loads the defaults
// alone. Only the first call has any effect.
func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		instance = Default()
		if configPath == "" {
			return
		}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file %s: %w", configPath, readErr)
			return
		}

		if parseErr := yaml.Unmarshal(data, instance); parseErr != nil {
			err = fmt.Errorf("failed to parse config: %w", parseErr)
			return
		}

		if validateErr := instance.validate(); validateErr != nil {
			err = validateErr
			return
		}
	})

	return instance, err
}

func (c *Config) validate() error {
	switch c.Model.Store {
	case "file":
		if c.Model.Path == "" {
			return fmt.Errorf("model.path cannot be empty for the file store")
		}
	case "redis":
		if c.Model.RedisKey == "" {
			return fmt.Errorf("model.redis_key cannot be empty for the redis store")
		}
	default:
		return fmt.Errorf("model.store must be file or redis, got %q", c.Model.Store)
	}
	if c.Server.Workers < 1 {
		return fmt.Errorf("server.workers must be at least 1")
	}
	if c.Server.MaxBodyMB < 1 {
		return fmt.Errorf("server.max_body_mb must be at least 1")
	}
	if c.Training.TestFraction <= 0 || c.Training.TestFraction >= 1 {
		return fmt.Errorf("training.test_fraction must be between 0 and 1")
	}
	if c.Training.Scenes < 1 || c.Training.Height < 1 || c.Training.Width < 1 {
		return fmt.Errorf("training.scenes, height and width must be positive")
	}
	return nil
}
