package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	StaticDir         string        `mapstructure:"static_dir" yaml:"static_dir"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`

	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	OutboundQueue     int           `mapstructure:"outbound_queue" yaml:"outbound_queue"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	MessagesPerMinute int           `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`

	ChunkThreshold int      `mapstructure:"chunk_threshold" yaml:"chunk_threshold"`
	ChunkSize      int      `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkPrefixes  []string `mapstructure:"chunk_prefixes" yaml:"chunk_prefixes"`
	IncludeSender  bool     `mapstructure:"include_sender" yaml:"include_sender"`
	BinaryPreamble bool     `mapstructure:"binary_preamble" yaml:"binary_preamble"`

	JoinCommand      string   `mapstructure:"join_command" yaml:"join_command"`
	SubscribeCommand string   `mapstructure:"subscribe_command" yaml:"subscribe_command"`
	ArtifactTypes    []string `mapstructure:"artifact_types" yaml:"artifact_types"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		DatabasePath:      "wirerelay.db",
		MaxMessageBytes:   16 << 20,
		OutboundQueue:     64,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		ChunkThreshold:    16 * 1024,
		ChunkSize:         16 * 1024,
		JoinCommand:       "join_chat",
		SubscribeCommand:  "Picture Receiver",
		ArtifactTypes:     []string{"screenshot_result"},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.StaticDir != "" {
		c.StaticDir = other.StaticDir
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
}
