package config

import (
	"fmt"
	"time"
)

// Gateway definition gateway_service YAML structure
type Gateway struct {
	Port        string         `mapstructure:"port"`
	JWTSecret   string         `mapstructure:"jwt_secret"`
	BodyLimitMB int            `mapstructure:"body_limit_mb"`
	DownloadExt string         `mapstructure:"download_ext"`
	PprofAddr   string         `mapstructure:"pprof_addr"`
	RabbitMQ    RabbitMQConfig `mapstructure:"rabbitmq"`
	Queues      QueueConfig    `mapstructure:"queues"`
	Store       StoreConfig    `mapstructure:"store"`
}

// Converter definition converter_service YAML structure
type Converter struct {
	HealthPort string          `mapstructure:"health_port"`
	Workers    int             `mapstructure:"workers"`
	PprofAddr  string          `mapstructure:"pprof_addr"`
	RabbitMQ   RabbitMQConfig  `mapstructure:"rabbitmq"`
	Queues     QueueConfig     `mapstructure:"queues"`
	Store      StoreConfig     `mapstructure:"store"`
	PostgreSQL DatabaseConfig  `mapstructure:"pg"`
	Transform  TransformConfig `mapstructure:"transform"`
}

// Notification definition notification_service YAML structure
type Notification struct {
	Port       string         `mapstructure:"port"`
	HealthPort string         `mapstructure:"health_port"`
	JWTSecret  string         `mapstructure:"jwt_secret"`
	Workers    int            `mapstructure:"workers"`
	PprofAddr  string         `mapstructure:"pprof_addr"`
	RabbitMQ   RabbitMQConfig `mapstructure:"rabbitmq"`
	Queues     QueueConfig    `mapstructure:"queues"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Sinks      SinkConfig     `mapstructure:"sinks"`
}

// Auth definition auth_service YAML structure
type Auth struct {
	Port       string         `mapstructure:"port"`
	JWTSecret  string         `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration  `mapstructure:"token_ttl"`
	PostgreSQL DatabaseConfig `mapstructure:"pg"`
}

// RabbitMQConfig definition broker setting
type RabbitMQConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	RetryCount        int           `mapstructure:"retry_count"`
	RetryInterval     int           `mapstructure:"retry_interval"`
	PublisherConfirms bool          `mapstructure:"publisher_confirms"`
	Prefetch          int           `mapstructure:"prefetch"`
	RequeueDelay      time.Duration `mapstructure:"requeue_delay"`
}

// URL builds the amqp dial url
func (r RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", r.User, r.Password, r.Host, r.Port)
}

// QueueConfig definition queue names
type QueueConfig struct {
	Job          string `mapstructure:"job"`
	Notification string `mapstructure:"notification"`
	DeadLetter   bool   `mapstructure:"dead_letter"`
}

// StoreConfig selects the blob store backend
type StoreConfig struct {
	Backend string      `mapstructure:"backend"` // "gridfs" or "minio"
	Mongo   MongoConfig `mapstructure:"mongo"`
	MinIO   MinIOConfig `mapstructure:"minio"`
}

// MongoConfig definition GridFS setting
type MongoConfig struct {
	URI            string `mapstructure:"uri"`
	SourceDatabase string `mapstructure:"source_database"`
	ResultDatabase string `mapstructure:"result_database"`
	RetryCount     int    `mapstructure:"retry_count"`
	RetryInterval  int    `mapstructure:"retry_interval"`
}

// MinIOConfig definition minio setting
type MinIOConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	SourceBucket  string `mapstructure:"source_bucket"`
	ResultBucket  string `mapstructure:"result_bucket"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryInterval int    `mapstructure:"retry_interval"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// DSN postgres key/value connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		d.Host, d.User, d.Password, d.Database, d.Port)
}

// URL postgres url connection string
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Password, d.Host, d.Port, d.Database)
}

// RedisConfig definition redis setting
type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	MasterName    string        `mapstructure:"master_name"`
	SentinelAddrs []string      `mapstructure:"sentinel_addrs"`
	RedisDB       int           `mapstructure:"redis_db"`
	DedupeTTL     time.Duration `mapstructure:"dedupe_ttl"`
	RetryCount    int           `mapstructure:"retry_count"`
	RetryInterval int           `mapstructure:"retry_interval"`
}

// TransformConfig selects the conversion implementation
type TransformConfig struct {
	Kind       string        `mapstructure:"kind"` // "ffmpeg" or "passthrough"
	FFmpegPath string        `mapstructure:"ffmpeg_path"`
	Format     string        `mapstructure:"format"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// SinkConfig definition notification sinks
type SinkConfig struct {
	Enabled []string      `mapstructure:"enabled"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	NATS    NATSConfig    `mapstructure:"nats"`
}

// WebhookConfig definition webhook sink
type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// KafkaConfig definition kafka sink
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	RetryCount    int      `mapstructure:"retry_count"`
	RetryInterval int      `mapstructure:"retry_interval"`
}

// NATSConfig definition nats sink
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	Subject       string `mapstructure:"subject"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryInterval int    `mapstructure:"retry_interval"`
}
