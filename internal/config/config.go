// Package config loads service settings from the environment and an
// optional roadmap.yaml file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/pkg/kafka"
	"github.com/wms-platform/roadmap-service/pkg/mongodb"
	"github.com/wms-platform/roadmap-service/pkg/tracing"
)

const ServiceName = "roadmap-service"

// Config holds application configuration
type Config struct {
	ServerAddr  string
	Environment string
	LogLevel    string
	MongoDB     *mongodb.Config
	Kafka       *kafka.Config
	Tracing     *tracing.Config
	Engine      EngineConfig
}

// EngineConfig tunes generation, assignment and the stage workflow
type EngineConfig struct {
	// AttendanceServiceURL selects the HTTP availability oracle when set
	AttendanceServiceURL string
	AvailabilityTimeout  time.Duration
	ElevatedRoles        []string
	// TemplateCatalog is a YAML catalog path; empty means the built-in one
	TemplateCatalog string
	SeedTemplates   bool
	PriorityBands   domain.PriorityBands
	// MaxTasksPerRun caps quantity × steps of one generation
	MaxTasksPerRun int
}

// Keys map onto environment variables by replacing "." with "_", so
// "mongodb.uri" is read from MONGODB_URI.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8020")
	v.SetDefault("environment", "development")
	v.SetDefault("log.level", "info")

	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.database", "roadmap_db")
	v.SetDefault("mongodb.connect.timeout", 10*time.Second)

	v.SetDefault("kafka.brokers", "localhost:9092")

	v.SetDefault("otel.exporter.otlp.endpoint", "localhost:4317")
	v.SetDefault("tracing.enabled", true)
	v.SetDefault("tracing.sample.rate", 1.0)

	v.SetDefault("attendance.service.url", "")
	v.SetDefault("availability.timeout", 2*time.Second)
	v.SetDefault("elevated.roles", "admin,manager")
	v.SetDefault("template.catalog", "")
	v.SetDefault("template.seed", true)
	v.SetDefault("priority.bands", "0,2,4")
	v.SetDefault("max.tasks.per.run", 50000)
}

// Load reads configFile when given, otherwise roadmap.yaml from the working
// directory or /etc/roadmap-service if present. Environment variables win
// over the file.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("roadmap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/roadmap-service")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	bands, err := domain.ParsePriorityBands(v.GetString("priority.bands"))
	if err != nil {
		return nil, fmt.Errorf("invalid PRIORITY_BANDS: %w", err)
	}

	timeout := v.GetDuration("availability.timeout")
	if timeout <= 0 {
		return nil, fmt.Errorf("invalid AVAILABILITY_TIMEOUT %q: must be a positive duration", v.GetString("availability.timeout"))
	}

	maxTasks := v.GetInt("max.tasks.per.run")
	if maxTasks < 1 {
		return nil, fmt.Errorf("invalid MAX_TASKS_PER_RUN %q: must be a positive integer", v.GetString("max.tasks.per.run"))
	}

	environment := v.GetString("environment")

	mongoConfig := mongodb.DefaultConfig()
	mongoConfig.URI = v.GetString("mongodb.uri")
	mongoConfig.Database = v.GetString("mongodb.database")
	mongoConfig.ConnectTimeout = v.GetDuration("mongodb.connect.timeout")

	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = stringList(v, "kafka.brokers")
	kafkaConfig.ClientID = ServiceName
	if err := kafkaConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid KAFKA_BROKERS: %w", err)
	}

	tracingConfig := tracing.DefaultConfig(ServiceName)
	tracingConfig.OTLPEndpoint = v.GetString("otel.exporter.otlp.endpoint")
	tracingConfig.Environment = environment
	tracingConfig.Enabled = v.GetBool("tracing.enabled")
	tracingConfig.SampleRate = v.GetFloat64("tracing.sample.rate")

	return &Config{
		ServerAddr:  v.GetString("server.addr"),
		Environment: environment,
		LogLevel:    v.GetString("log.level"),
		MongoDB:     mongoConfig,
		Kafka:       kafkaConfig,
		Tracing:     tracingConfig,
		Engine: EngineConfig{
			AttendanceServiceURL: strings.TrimSpace(v.GetString("attendance.service.url")),
			AvailabilityTimeout:  timeout,
			ElevatedRoles:        stringList(v, "elevated.roles"),
			TemplateCatalog:      v.GetString("template.catalog"),
			SeedTemplates:        v.GetBool("template.seed"),
			PriorityBands:        bands,
			MaxTasksPerRun:       maxTasks,
		},
	}, nil
}

// stringList accepts either a YAML list or a comma-separated string
func stringList(v *viper.Viper, key string) []string {
	var items []string
	if raw, ok := v.Get(key).(string); ok {
		items = strings.Split(raw, ",")
	} else {
		items = v.GetStringSlice(key)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
