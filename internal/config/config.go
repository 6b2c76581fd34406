package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageBadger   = "badger"
	StorageMongo    = "mongo"
)

const (
	DefaultOwnerEmail   = "gamedevhuboriginal@gmail.com"
	DefaultBrand        = "AKBlox"
	DefaultKeyPrefix    = "portal:"
	DefaultRateLimitRPM = 20
	DefaultRedisAddr    = "localhost:6379"
	DefaultBadgerDir    = "data/badger"
	DefaultMongoDB      = "portal"
)

var storageBackends = []string{StorageMemory, StoragePostgres, StorageRedis, StorageBadger, StorageMongo}

type Config struct {
	ServerAddr     string
	Storage        string
	DatabaseDSN    string
	RedisAddr      string
	RedisPassword  string
	BadgerDir      string
	MongoDatabase  string
	SigningKey     []byte
	AllowedOrigins []string
	OwnerEmail     string
	Brand          string
	RateLimitRPM   int
	KeyPrefix      string
}

// fileConfig mirrors Config as it appears in a YAML file. Empty fields
// leave the current value untouched.
type fileConfig struct {
	Addr           string   `yaml:"addr"`
	Storage        string   `yaml:"storage"`
	DSN            string   `yaml:"dsn"`
	RedisAddr      string   `yaml:"redis_addr"`
	RedisPassword  string   `yaml:"redis_password"`
	BadgerDir      string   `yaml:"badger_dir"`
	MongoDatabase  string   `yaml:"mongo_database"`
	SigningKey     string   `yaml:"signing_key"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	OwnerEmail     string   `yaml:"owner_email"`
	Brand          string   `yaml:"brand"`
	RateLimitRPM   int      `yaml:"rate_limit_rpm"`
	KeyPrefix      string   `yaml:"key_prefix"`
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("signing secret is empty")
	}
	return key, nil
}

func NewConfig(serverAddr, storage, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	cfg := &Config{
		ServerAddr:     serverAddr,
		Storage:        storage,
		DatabaseDSN:    databaseDSN,
		RedisAddr:      DefaultRedisAddr,
		BadgerDir:      DefaultBadgerDir,
		MongoDatabase:  DefaultMongoDB,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		OwnerEmail:     DefaultOwnerEmail,
		Brand:          DefaultBrand,
		RateLimitRPM:   DefaultRateLimitRPM,
		KeyPrefix:      DefaultKeyPrefix,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the selected storage backend has what it needs.
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if len(c.SigningKey) == 0 {
		return fmt.Errorf("signing secret cannot be empty")
	}
	if !slices.Contains(storageBackends, c.Storage) {
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}

	switch c.Storage {
	case StoragePostgres, StorageMongo:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("database DSN cannot be empty for %s storage", c.Storage)
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
	case StorageBadger:
		if c.BadgerDir == "" {
			return fmt.Errorf("badger directory cannot be empty")
		}
	}

	return nil
}

// LoadFile returns a copy of base with the non-empty values of the YAML
// file at path applied on top. The result is validated.
func LoadFile(path string, base *Config) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := *base
	cfg.AllowedOrigins = slices.Clone(base.AllowedOrigins)
	cfg.SigningKey = slices.Clone(base.SigningKey)

	overlay(&cfg.ServerAddr, fc.Addr)
	overlay(&cfg.Storage, fc.Storage)
	overlay(&cfg.DatabaseDSN, fc.DSN)
	overlay(&cfg.RedisAddr, fc.RedisAddr)
	overlay(&cfg.RedisPassword, fc.RedisPassword)
	overlay(&cfg.BadgerDir, fc.BadgerDir)
	overlay(&cfg.MongoDatabase, fc.MongoDatabase)
	overlay(&cfg.OwnerEmail, fc.OwnerEmail)
	overlay(&cfg.Brand, fc.Brand)
	overlay(&cfg.KeyPrefix, fc.KeyPrefix)

	if fc.SigningKey != "" {
		key, err := decodeSigningSecret(fc.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("decode signing secret: %w", err)
		}
		cfg.SigningKey = key
	}
	if len(fc.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.RateLimitRPM != 0 {
		cfg.RateLimitRPM = fc.RateLimitRPM
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
