package main

import (
	"github.com/spf13/viper"
)

// Storage backends for player records
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the server configuration, read from app.env and the environment
type Config struct {
	Addr           string `mapstructure:"ADDR"`
	ClientDir      string `mapstructure:"CLIENT_DIR"`
	DBPath         string `mapstructure:"DB_PATH"`
	StorageBackend string `mapstructure:"STORAGE_BACKEND"`
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int    `mapstructure:"REDIS_DB"`
	GeminiAPIKey   string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel    string `mapstructure:"GEMINI_MODEL"`
	StartingCoins  int64  `mapstructure:"STARTING_COINS"`
	DemoAdmin      bool   `mapstructure:"DEMO_ADMIN"`
}

var configKeys = []string{
	"ADDR", "CLIENT_DIR", "DB_PATH", "STORAGE_BACKEND",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"GEMINI_API_KEY", "GEMINI_MODEL", "STARTING_COINS", "DEMO_ADMIN",
}

// LoadConfig reads path/app.env if present, then lets the environment override it
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.SetDefault("ADDR", ":8080")
	v.SetDefault("CLIENT_DIR", "client")
	v.SetDefault("DB_PATH", "magworld.db")
	v.SetDefault("STORAGE_BACKEND", BackendSQLite)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("GEMINI_MODEL", defaultGeminiModel)
	v.SetDefault("STARTING_COINS", 5000)
	v.SetDefault("DEMO_ADMIN", true)

	v.AutomaticEnv()
	for _, k := range configKeys {
		v.BindEnv(k)
	}

	// A missing file is fine, the environment and defaults cover everything
	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

// ProfileDefaults returns what new profiles start with
func (c Config) ProfileDefaults() ProfileDefaults {
	return ProfileDefaults{StartingCoins: c.StartingCoins, IsAdmin: c.DemoAdmin}
}
