package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"

	"github.com/arne314/chatpack/internal/decoder"
	"github.com/arne314/chatpack/internal/output"
)

type StreamingConfig struct {
	BufferSize     int  `toml:"buffer_size"`
	MaxMessageSize int  `toml:"max_message_size"`
	MaxHeaderSize  int  `toml:"max_header_size"`
	SkipInvalid    bool `toml:"skip_invalid"`
}

type OutputConfig struct {
	Format            string `toml:"format"`
	IncludeTimestamps bool   `toml:"include_timestamps"`
	IncludeIDs        bool   `toml:"include_ids"`
	IncludeReplies    bool   `toml:"include_replies"`
	IncludeEdited     bool   `toml:"include_edited"`
}

type LogConfig struct {
	Level            string `toml:"level"`
	ProgressInterval int    `toml:"progress_interval"`
}

type Config struct {
	Streaming *StreamingConfig `toml:"streaming"`
	Output    *OutputConfig    `toml:"output"`
	Log       *LogConfig       `toml:"log"`
}

func Default() *Config {
	defaults := decoder.DefaultStreamingConfig()
	return &Config{
		Streaming: &StreamingConfig{
			BufferSize:     defaults.BufferSize,
			MaxMessageSize: defaults.MaxMessageSize,
			MaxHeaderSize:  defaults.MaxHeaderSize,
			SkipInvalid:    defaults.SkipInvalid,
		},
		Output: &OutputConfig{
			Format:            output.CSV.String(),
			IncludeTimestamps: true,
		},
		Log: &LogConfig{
			Level:            "info",
			ProgressInterval: 1000,
		},
	}
}

// Load reads a config.toml over the defaults. A missing file keeps the
// defaults, a malformed one is fatal. A .env file and environment
// variables supply overrides that outrank the file.
func (c *Config) Load(path string) {
	file, err := os.ReadFile(path)
	if err == nil {
		if err := toml.Unmarshal(file, c); err != nil {
			log.Fatalf("Error decoding TOML: %s", err)
			return
		}
		log.Debugf("Loaded config from %v: %+v", path, c)
	} else if !os.IsNotExist(err) {
		log.Fatalf("Error reading %v: %v", path, err)
		return
	}

	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file loaded: %v", err)
	}
	if level := os.Getenv("CHATPACK_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("CHATPACK_OUTPUT_FORMAT"); format != "" {
		c.Output.Format = format
	}
}

// SetupLogger applies the configured log level; verbose forces debug.
func (c *Config) SetupLogger(verbose bool) {
	if verbose {
		log.SetLevel(log.DebugLevel)
		return
	}
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		log.Warnf("Invalid log level %q, using info", c.Log.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// DecoderConfig maps the streaming section onto the decoder's knobs,
// zero values falling back to the defaults.
func (c *Config) DecoderConfig() decoder.StreamingConfig {
	cfg := decoder.DefaultStreamingConfig()
	if c.Streaming == nil {
		return cfg
	}
	if c.Streaming.BufferSize > 0 {
		cfg.BufferSize = c.Streaming.BufferSize
	}
	if c.Streaming.MaxMessageSize > 0 {
		cfg.MaxMessageSize = c.Streaming.MaxMessageSize
	}
	if c.Streaming.MaxHeaderSize > 0 {
		cfg.MaxHeaderSize = c.Streaming.MaxHeaderSize
	}
	cfg.SkipInvalid = c.Streaming.SkipInvalid
	return cfg
}

// OutputOptions maps the output section onto the writer's options.
func (c *Config) OutputOptions() output.Config {
	if c.Output == nil {
		return output.Config{IncludeTimestamps: true}
	}
	return output.Config{
		IncludeTimestamps: c.Output.IncludeTimestamps,
		IncludeIDs:        c.Output.IncludeIDs,
		IncludeReplies:    c.Output.IncludeReplies,
		IncludeEdited:     c.Output.IncludeEdited,
	}
}
