package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// Config описывает настройки обоих процессов сервиса.
type Config struct {
	KafkaBrokers string `envconfig:"OVS_KAFKA_BROKERS" default:"localhost:9092"`
	HTTPAddr     string `envconfig:"OVS_HTTP_ADDR" default:":8080"`
	// DatabaseURL пустой — значит используется in-memory storage с демо-данными.
	DatabaseURL string `envconfig:"OVS_DATABASE_URL"`
	// ReplyTopic пустой — значит каждый инстанс поднимает собственную reply
	// очередь, чтобы ответы не перемешивались между инстансами.
	ReplyTopic         string        `envconfig:"OVS_REPLY_TOPIC"`
	ValidationTimeout  time.Duration `envconfig:"OVS_VALIDATION_TIMEOUT" default:"5s"`
	EvictionGrace      time.Duration `envconfig:"OVS_EVICTION_GRACE" default:"30s"`
	SweepInterval      time.Duration `envconfig:"OVS_SWEEP_INTERVAL" default:"10s"`
	ConsumerMaxRetries int           `envconfig:"OVS_CONSUMER_MAX_RETRIES" default:"3"`
	LogLevel           string        `envconfig:"OVS_LOG_LEVEL" default:"info"`
}

// LoadConfig читает конфигурацию из окружения, подхватывая .env если он есть.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.WithError(err).Debug("no .env file loaded")
	}

	config := &Config{}
	if err := envconfig.Process("", config); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}

	if config.ValidationTimeout <= 0 {
		return nil, fmt.Errorf("OVS_VALIDATION_TIMEOUT must be positive, got %s", config.ValidationTimeout)
	}

	return config, nil
}

// Brokers возвращает список Kafka брокеров.
func (c *Config) Brokers() []string {
	parts := strings.Split(c.KafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}

// SetupLogger настраивает формат и уровень логирования процесса.
func SetupLogger(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}
