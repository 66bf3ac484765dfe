package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	Survey struct {
		TTL          string `yaml:"ttl"`
		AbsentNext   string `yaml:"absentNext"`
		MaxQuestions int    `yaml:"maxQuestions"`
		SessionIdle  string `yaml:"sessionIdle"`
	} `yaml:"survey"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads YAML config from path, then lets the environment override the
// connection settings.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	for env, field := range map[string]*string{
		"REDIS_ADDR":         &c.Redis.Addr,
		"REDIS_PASSWORD":     &c.Redis.Password,
		"POSTGRES_URL":       &c.Postgres.URL,
		"MONGO_URI":          &c.Mongo.URI,
		"MONGO_DATABASE":     &c.Mongo.Database,
		"SURVEY_ABSENT_NEXT": &c.Survey.AbsentNext,
		"LOG_LEVEL":          &c.Log.Level,
	} {
		if v, ok := os.LookupEnv(env); ok {
			*field = v
		}
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
