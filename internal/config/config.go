package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	APIPort  int `yaml:"apiPort"`
	Database struct {
		Type       string `yaml:"type"` // "sqlite" or "postgres"
		Path       string `yaml:"path"` // sqlite file path
		DSN        string `yaml:"dsn"`  // postgres connection string
		WALMode    bool   `yaml:"walMode"`
		MaxRetries int    `yaml:"maxRetries"`
		RetryDelay int    `yaml:"retryDelay"`
	} `yaml:"database"`
	Model struct {
		APIKey         string `yaml:"apiKey"`
		Name           string `yaml:"name"`
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
	} `yaml:"model"`
	Search struct {
		Endpoint string `yaml:"endpoint"`
		APIKey   string `yaml:"apiKey"`
	} `yaml:"search"`
	Archive struct {
		Endpoint        string `yaml:"endpoint"`
		Region          string `yaml:"region"`
		Bucket          string `yaml:"bucket"`
		AccessKeyID     string `yaml:"accessKeyId"`
		SecretAccessKey string `yaml:"secretAccessKey"`
	} `yaml:"archive"`
	Auth struct {
		JWTSecret      string `yaml:"jwtSecret"`
		SessionMinutes int    `yaml:"sessionMinutes"`
	} `yaml:"auth"`
	WebhookSecret string `yaml:"webhookSecret"`
}

// LoadConfig loads the configuration from file and environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("COPYDESK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: could not read config file: %s. Using defaults or environment variables.", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.APIPort == 0 {
		cfg.APIPort = 8081
		log.Println("apiPort not specified, using default 8081")
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/copydesk.db"
		log.Println("database path not specified, using default data/copydesk.db")
	}
	if !v.IsSet("database.walMode") {
		cfg.Database.WALMode = true
	}
	if cfg.Database.MaxRetries == 0 {
		cfg.Database.MaxRetries = 5
	}
	if cfg.Database.RetryDelay == 0 {
		cfg.Database.RetryDelay = 5
	}

	if cfg.Model.Name == "" {
		cfg.Model.Name = "gemini-2.0-flash"
	}
	if cfg.Model.TimeoutSeconds == 0 {
		cfg.Model.TimeoutSeconds = 60
	}
	if cfg.Model.APIKey == "" {
		log.Println("model apiKey not configured, generation will use the offline fallback")
	}

	if cfg.Auth.SessionMinutes == 0 {
		cfg.Auth.SessionMinutes = 60
	}
	if cfg.Auth.JWTSecret == "" {
		log.Println("auth jwtSecret not configured, portal sessions are disabled")
	}

	return &cfg, nil
}
