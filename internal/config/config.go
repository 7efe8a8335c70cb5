// Package config defines service configuration and loading.
package config

import "runtime"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath points at the SQLite file backing the clip store and the
	// engagement ledger. Empty selects the in-memory adapters.
	DBPath string `koanf:"db_path"`

	// QueueSize bounds the in-memory engagement event queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of engagement workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the event-id dedupe set.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxPageSize caps GET /trending?page_size.
	MaxPageSize int `koanf:"max_page_size"`

	// StrictTags makes unknown-tag queries fail instead of returning
	// empty results.
	StrictTags bool `koanf:"strict_tags"`

	// Ranking parameters: engagement weights and the time-decay shape.
	LikeWeight    float64 `koanf:"like_weight"`
	CommentWeight float64 `koanf:"comment_weight"`
	ShareWeight   float64 `koanf:"share_weight"`
	Gravity       float64 `koanf:"gravity"`
	AgeOffsetH    float64 `koanf:"age_offset_hours"`

	// CacheBackend selects the trending page cache: memory or redis.
	CacheBackend string `koanf:"cache_backend"`

	// CacheTTLMS bounds trending page staleness.
	CacheTTLMS int `koanf:"cache_ttl_ms"`

	// RedisAddr is required when CacheBackend is redis.
	RedisAddr string `koanf:"redis_addr"`

	// KafkaBrokers enables the stream source when non-empty
	// (comma-separated host:port list).
	KafkaBrokers string `koanf:"kafka_brokers"`
	KafkaTopic   string `koanf:"kafka_topic"`
	KafkaGroup   string `koanf:"kafka_group"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:      "info",
		Addr:          ":9080",
		DBPath:        "",
		QueueSize:     100_000,
		WorkerCount:   runtime.NumCPU() * 2,
		DedupeSize:    500_000,
		MaxPageSize:   100,
		StrictTags:    false,
		LikeWeight:    1,
		CommentWeight: 2,
		ShareWeight:   3,
		Gravity:       1.5,
		AgeOffsetH:    2,
		CacheBackend:  "memory",
		CacheTTLMS:    5000,
		KafkaTopic:    "engagements",
		KafkaGroup:    "pulse-trending",
	}
}
