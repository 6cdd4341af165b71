package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LocalMode bool   `envconfig:"LOCAL_MODE" default:"true"` // run against local DynamoDB/Redis/Kafka

	PatientsAPIURL  string        `envconfig:"PATIENTS_API_URL" default:"http://localhost:8002/api/pacientes"`
	InventoryAPIURL string        `envconfig:"INVENTORY_API_URL" default:"http://localhost:8001/api/productos"`
	HTTPTimeout     time.Duration `envconfig:"HTTP_TIMEOUT" default:"0s"`

	AuthTokenURL     string `envconfig:"AUTH_TOKEN_URL"`
	AuthClientID     string `envconfig:"AUTH_CLIENT_ID"`
	AuthClientSecret string `envconfig:"AUTH_CLIENT_SECRET"`
	AuthAudience     string `envconfig:"AUTH_AUDIENCE"`
	AuthStaticToken  string `envconfig:"AUTH_STATIC_TOKEN"`

	AWSRegion        string `envconfig:"AWS_REGION" default:"ap-northeast-2"`
	SalesTableName   string `envconfig:"SALES_TABLE_NAME" default:"pos-sales-table"`
	DynamoDBEndpoint string `envconfig:"DYNAMODB_ENDPOINT" default:"http://localhost:8000"`

	RedisAddr string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	LedgerTTL time.Duration `envconfig:"LEDGER_TTL" default:"24h"`

	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	SalesTopic     string   `envconfig:"SALES_TOPIC" default:"pos-sales"`
	InventoryTopic string   `envconfig:"INVENTORY_TOPIC" default:"inventory-events"`
	KafkaGroupID   string   `envconfig:"KAFKA_GROUP_ID" default:"pharmacy-pos"`

	AlertWindowDays  int      `envconfig:"ALERT_WINDOW_DAYS" default:"30"`
	CORSAllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000"`

	TLSEnabled      bool   `envconfig:"TLS_ENABLED" default:"false"`
	SpireSocketPath string `envconfig:"SPIRE_SOCKET_PATH" default:"unix:///run/spire/sockets/agent.sock"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load(files...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	for i, o := range cfg.CORSAllowOrigins {
		cfg.CORSAllowOrigins[i] = strings.TrimSpace(o)
	}
	return &cfg, nil
}

func (c *Config) Debug() bool {
	return strings.EqualFold(c.LogLevel, "debug")
}
