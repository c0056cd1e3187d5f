// Package config loads the engine's YAML configuration, mirroring the
// nested-struct-with-yaml-tags style the teacher's CLI config uses.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration.
type Config struct {
	Retries struct {
		MaxAttempts int           `yaml:"max_attempts"`
		StartPause  time.Duration `yaml:"start_pause"`
		MinPause    time.Duration `yaml:"min_pause"`
		MaxPause    time.Duration `yaml:"max_pause"`
		MinJitter   time.Duration `yaml:"min_jitter"`
		MaxJitter   time.Duration `yaml:"max_jitter"`
	} `yaml:"retries"`

	Gate struct {
		Width int `yaml:"width"`
	} `yaml:"gate"`

	Jobs struct {
		MaxTries  int `yaml:"max_tries"`
		MaxMisses int `yaml:"max_describe_misses"`
	} `yaml:"jobs"`

	Store struct {
		// Backend selects the State Store implementation: "file" or "redis".
		Backend string `yaml:"backend"`
		File    struct {
			Path string `yaml:"path"`
		} `yaml:"file"`
		Redis struct {
			Addr   string `yaml:"addr"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"store"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

// Default returns a Config populated with the values the original engine
// uses as defaults: 5 retries, 1s start pause, jitter in [0, 1s).
func Default() Config {
	var c Config
	c.Retries.MaxAttempts = 5
	c.Retries.StartPause = time.Second
	c.Retries.MinPause = time.Second
	c.Retries.MaxPause = 20 * time.Second
	c.Retries.MinJitter = 0
	c.Retries.MaxJitter = time.Second
	c.Gate.Width = 10
	c.Jobs.MaxTries = 4
	c.Jobs.MaxMisses = 10
	c.Store.Backend = "file"
	c.Store.File.Path = "/tmp/aws_batch_jobs_db.json"
	c.Metrics.Enabled = false
	c.Metrics.Port = 9090
	return c
}

// Load reads and parses a YAML config file at path, starting from Default()
// so any field the file omits keeps its default value.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
