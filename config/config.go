package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Host      string `mapstructure:"host"`
		Port      int64  `mapstructure:"port"`
		JwtSecret string `mapstructure:"jwt_secret"`
	} `mapstructure:"server"`

	Redis struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	BlockStorage struct {
		Host      string `mapstructure:"host"`
		Region    string `mapstructure:"region"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret"`
		Bucket    string `mapstructure:"bucket"`
	} `mapstructure:"block_storage"`

	Wallet struct {
		// Host is the universal-link host of the external wallet app, e.g. phantom.app
		Host     string `mapstructure:"host"`
		AppURL   string `mapstructure:"app_url"`
		Cluster  string `mapstructure:"cluster"`
		Redirect string `mapstructure:"redirect"` // base deep link back into the app
	} `mapstructure:"wallet"`

	Jupiter struct {
		PriceURL string `mapstructure:"price_url"`
	} `mapstructure:"jupiter"`

	Scheduler struct {
		Interval        int    `mapstructure:"interval"` // seconds between expiry sweeps
		ArchiveSchedule string `mapstructure:"archive_schedule"`
	} `mapstructure:"scheduler"`

	Archive struct {
		EncryptionPassword string `mapstructure:"encryption_password"`
	} `mapstructure:"archive"`
}

func ReadConfig(configName string) (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("wallet.host", "phantom.app")
	viper.SetDefault("wallet.cluster", "mainnet-beta")
	viper.SetDefault("jupiter.price_url", "https://api.jup.ag/price/v2")
	viper.SetDefault("scheduler.interval", 30)
	viper.SetDefault("scheduler.archive_schedule", "@hourly")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("fail to read config file: %w", err)
	}
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("fail to unmarshal config: %w", err)
	}
	return &cfg, nil
}
