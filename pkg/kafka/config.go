// Package kafka publishes roadmap CloudEvents to Kafka.
package kafka

import (
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// Config describes the broker connection and batching of the producer
type Config struct {
	Brokers  []string
	ClientID string

	BatchSize    int
	BatchTimeout time.Duration
	// RequiredAcks follows kafka.RequiredAcks: -1 all replicas, 1 leader, 0 none
	RequiredAcks int
	WriteTimeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Brokers:      []string{"localhost:9092"},
		ClientID:     "roadmap-service",
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: int(kafka.RequireAll),
		WriteTimeout: 10 * time.Second,
	}
}

// Validate rejects configs the writer cannot work with
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: at least one broker is required")
	}
	switch kafka.RequiredAcks(c.RequiredAcks) {
	case kafka.RequireAll, kafka.RequireOne, kafka.RequireNone:
	default:
		return errors.New("kafka: requiredAcks must be -1, 0 or 1")
	}
	return nil
}

// Topics are the destinations of roadmap events. Stage transitions, unlocks
// and roadmap completion share one topic so a consumer sees them in order.
var Topics = struct {
	StageEvents      string
	GenerationEvents string
}{
	StageEvents:      "roadmap.stages.events",
	GenerationEvents: "roadmap.generation.events",
}
