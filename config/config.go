package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	LogLevel   string           `mapstructure:"log_level"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq"`
	MongoDB    MongoDBConfig    `mapstructure:"mongodb"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Security   SecurityConfig   `mapstructure:"security"`
	Graph      GraphConfig      `mapstructure:"graph"`
}

type SecurityConfig struct {
	APIKeyHeader  string            `mapstructure:"apiKeyHeader"`
	APIKeys       map[string]string `mapstructure:"apiKeys"`
	VerifyToken   string            `mapstructure:"verifyToken"`
	CRMLocationID string            `mapstructure:"crmLocationId"`
}

type MonitoringConfig struct {
	PrometheusPort int    `mapstructure:"prometheusPort"`
	MetricsPath    string `mapstructure:"metricsPath"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// RabbitMQConfig configures the lead event feed. An empty URL disables it.
type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type ServerConfig struct {
	Port int
	Host string
}

// GraphConfig configures the ads Graph API used to resolve campaign names.
type GraphConfig struct {
	BaseURL     string        `mapstructure:"baseUrl"`
	Version     string        `mapstructure:"version"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RedactToken bool          `mapstructure:"redactToken"`
}

// Load reads ./config/config.yaml when present and applies environment overrides.
func Load() (*Config, error) {
	return LoadFrom("./config")
}

func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("log_level", "info")
	v.SetDefault("mongodb.database", "leads")
	v.SetDefault("rabbitmq.exchange", "lead_events")
	v.SetDefault("monitoring.prometheusPort", 9090)
	v.SetDefault("monitoring.metricsPath", "/metrics")
	v.SetDefault("security.apiKeyHeader", "X-API-Key")
	v.SetDefault("graph.baseUrl", "https://graph.facebook.com")
	v.SetDefault("graph.version", "v20.0")
	v.SetDefault("graph.timeout", 30*time.Second)
	v.SetDefault("graph.redactToken", true)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Override with environment variables
	if port := os.Getenv("APP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if promPort := os.Getenv("PROMETHEUS_PORT"); promPort != "" {
		if p, err := strconv.Atoi(promPort); err == nil {
			cfg.Monitoring.PrometheusPort = p
		}
	}

	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		cfg.MongoDB.URI = uri
	}
	if db := os.Getenv("MONGODB_DATABASE"); db != "" {
		cfg.MongoDB.Database = db
	}

	// Support both CLOUDAMQP_URL and RABBITMQ_URI for backwards compatibility
	if cloudamqpURL := os.Getenv("CLOUDAMQP_URL"); cloudamqpURL != "" {
		cfg.RabbitMQ.URL = cloudamqpURL
	} else if rabbitURL := os.Getenv("RABBITMQ_URI"); rabbitURL != "" {
		cfg.RabbitMQ.URL = rabbitURL
	}

	if exchange := os.Getenv("RABBITMQ_EXCHANGE"); exchange != "" {
		cfg.RabbitMQ.Exchange = exchange
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if header := os.Getenv("API_KEY_HEADER"); header != "" {
		cfg.Security.APIKeyHeader = header
	}
	if token := os.Getenv("WEBHOOK_VERIFY_TOKEN"); token != "" {
		cfg.Security.VerifyToken = token
	}
	if location := os.Getenv("CRM_LOCATION_ID"); location != "" {
		cfg.Security.CRMLocationID = location
	}

	if base := os.Getenv("GRAPH_API_BASE_URL"); base != "" {
		cfg.Graph.BaseURL = base
	}
	if version := os.Getenv("GRAPH_API_VERSION"); version != "" {
		cfg.Graph.Version = version
	}
	if timeout := os.Getenv("GRAPH_API_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Graph.Timeout = d
		}
	}

	if cfg.Security.APIKeys == nil {
		cfg.Security.APIKeys = make(map[string]string)
	}
	for client, key := range loadAPIKeysFromEnv() {
		cfg.Security.APIKeys[client] = key
	}

	return &cfg, nil
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	var problems []string
	if c.MongoDB.URI == "" {
		problems = append(problems, "mongodb.uri is required")
	}
	if c.MongoDB.Database == "" {
		problems = append(problems, "mongodb.database is required")
	}
	if c.Security.VerifyToken == "" {
		problems = append(problems, "security.verifyToken is required")
	}
	if !strings.HasPrefix(c.Monitoring.MetricsPath, "/") {
		problems = append(problems, "monitoring.metricsPath must start with /")
	}
	if c.Graph.Timeout <= 0 {
		problems = append(problems, "graph.timeout must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// loadAPIKeysFromEnv maps DASHBOARD_API_KEY=... to client "dashboard".
func loadAPIKeysFromEnv() map[string]string {
	apiKeys := make(map[string]string)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		envName := parts[0]
		envValue := parts[1]

		if strings.HasSuffix(envName, "_API_KEY") && envValue != "" {
			clientName := strings.ToLower(strings.TrimSuffix(envName, "_API_KEY"))
			if clientName != "" {
				apiKeys[clientName] = envValue
			}
		}
	}

	return apiKeys
}
