// Package config loads tuner configuration.
// Values resolve from (highest to lowest priority):
// 1. Environment variables (AGENTDIAL_*)
// 2. The YAML file passed to Load
// 3. Defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/mimipynb/agentDial/internal/params"
	"github.com/mimipynb/agentDial/internal/policy"
	"github.com/mimipynb/agentDial/internal/signals"
	"github.com/mimipynb/agentDial/internal/trial"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid")

// Config holds all tuner configuration.
type Config struct {
	// DBPath is the SQLite checkpoint database. Empty keeps trials in memory.
	DBPath string `yaml:"db_path" json:"db_path"`

	// ListenAddr is the gRPC listen address for serve.
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	// CheckpointEvery commits a checkpoint every N applied turns (0 = only at start and end).
	CheckpointEvery int `yaml:"checkpoint_every" json:"checkpoint_every"`

	// Policy is the default policy for new trials.
	Policy policy.Config `yaml:"policy" json:"policy"`

	// Params are the default meter specs for new trials.
	Params params.Specs `yaml:"params" json:"params"`

	// Signals configures reward shaping for Step requests that carry generation data.
	Signals signals.ProducerConfig `yaml:"signals" json:"signals"`
}

// Default config values.
const (
	defaultDBPath     = "agentdial.db"
	defaultListenAddr = "localhost:50061"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DBPath:          defaultDBPath,
		ListenAddr:      defaultListenAddr,
		CheckpointEvery: trial.DefaultManagerConfig().CheckpointEvery,
		Policy:          policy.DefaultConfig(),
		Params:          params.DefaultSpecs(),
		Signals:         signals.DefaultProducerConfig(),
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies environment variable overrides.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv("AGENTDIAL_DB"); ok {
		c.DBPath = v
	}
	if v := os.Getenv("AGENTDIAL_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("AGENTDIAL_POLICY"); v != "" {
		c.Policy.Kind = policy.Kind(v)
	}
	if v := os.Getenv("AGENTDIAL_BANDIT_METHOD"); v != "" {
		c.Policy.Bandit.Method = policy.Method(v)
	}
	if v := os.Getenv("AGENTDIAL_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: AGENTDIAL_SEED=%q: %v", ErrInvalidConfig, v, err)
		}
		c.Policy.Seed = seed
	}
	if v := os.Getenv("AGENTDIAL_CHECKPOINT_EVERY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: AGENTDIAL_CHECKPOINT_EVERY=%q: %v", ErrInvalidConfig, v, err)
		}
		c.CheckpointEvery = n
	}
	return nil
}

// Validate checks the config can build a trial.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr is empty", ErrInvalidConfig)
	}
	if c.CheckpointEvery < 0 {
		return fmt.Errorf("%w: checkpoint_every %d is negative", ErrInvalidConfig, c.CheckpointEvery)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: policy: %w", ErrInvalidConfig, err)
	}
	if _, err := params.NewSet(c.Params); err != nil {
		return fmt.Errorf("%w: params: %w", ErrInvalidConfig, err)
	}
	if err := c.Signals.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Policy.Kind == policy.KindQLearning && c.Signals.NumStates > c.Policy.QLearning.NumStates {
		return fmt.Errorf("%w: signals.num_states %d exceeds qlearning.num_states %d",
			ErrInvalidConfig, c.Signals.NumStates, c.Policy.QLearning.NumStates)
	}
	return nil
}

// ManagerConfig returns the trial manager settings.
func (c *Config) ManagerConfig() trial.ManagerConfig {
	return trial.ManagerConfig{CheckpointEvery: c.CheckpointEvery}
}

// StartConfig returns the defaults for new trials.
func (c *Config) StartConfig() trial.StartConfig {
	return trial.StartConfig{Policy: c.Policy, Params: c.Params}
}
