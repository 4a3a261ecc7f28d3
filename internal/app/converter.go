// Package app wires decoding, merging, filtering and output into one
// conversion run.
package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/arne314/chatpack/internal/chat"
	cfg "github.com/arne314/chatpack/internal/config"
	"github.com/arne314/chatpack/internal/decoder"
	"github.com/arne314/chatpack/internal/output"
)

// Options describes one conversion run.
type Options struct {
	Platform      decoder.Platform
	DiscordFormat decoder.DiscordFormat
	InputPath     string
	OutputPath    string
	Format        output.Format
	Merge         bool
	Stream        bool
	Filter        chat.Filter
}

type Converter struct {
	Config *cfg.Config
}

func (c *Converter) newDecoder(opts Options) decoder.Decoder {
	streaming := c.Config.DecoderConfig()
	if opts.Platform == decoder.Discord {
		return decoder.NewDiscord(opts.DiscordFormat, streaming)
	}
	return decoder.NewWithConfig(opts.Platform, streaming)
}

// decode reads the input eagerly or via the streaming path. Streaming
// still collects into memory here; what it buys is the bounded per-item
// reads and progress logging on large exports.
func (c *Converter) decode(opts Options) ([]chat.Message, error) {
	dec := c.newDecoder(opts)
	if !opts.Stream {
		return dec.Decode(opts.InputPath)
	}

	interval := c.Config.Log.ProgressInterval
	var messages []chat.Message
	for msg, err := range dec.Stream(opts.InputPath) {
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
		if interval > 0 && len(messages)%interval == 0 {
			log.Infof("Decoded %v messages...", len(messages))
		}
	}
	return messages, nil
}

// Run executes one conversion: decode, optionally merge, filter, write.
func (c *Converter) Run(opts Options) error {
	log.Infof("Decoding %v export %v", opts.Platform, opts.InputPath)
	messages, err := c.decode(opts)
	if err != nil {
		return fmt.Errorf("decode %v export: %w", opts.Platform, err)
	}
	log.Infof("Decoded %v messages", len(messages))

	if opts.Merge {
		merged := chat.MergeConsecutive(messages)
		stats := chat.Stats{OriginalCount: len(messages), MergedCount: len(merged)}
		log.Infof(
			"Merged %v messages into %v (%.1f%% reduction)",
			stats.OriginalCount, stats.MergedCount, stats.CompressionRatio(),
		)
		messages = merged
	}

	if opts.Filter.Active() {
		before := len(messages)
		messages = opts.Filter.Apply(messages)
		log.Infof("Filter kept %v of %v messages", len(messages), before)
	}

	if err := output.Write(messages, opts.OutputPath, opts.Format, c.Config.OutputOptions()); err != nil {
		return fmt.Errorf("write %v output: %w", opts.Format, err)
	}
	log.Infof("Wrote %v messages to %v", len(messages), opts.OutputPath)
	return nil
}
