// Package decoder turns platform-specific chat exports into the
// normalized message representation of internal/chat.
//
// One decoder exists per source platform. Each offers an eager path
// (Decode/DecodeText, whole file, all-or-nothing) and a streaming path
// (Stream, a pull-based lazy sequence with bounded per-message memory).
package decoder

import (
	"fmt"
	"iter"
	"strings"

	"github.com/arne314/chatpack/internal/chat"
)

// Platform identifies a supported chat export source.
type Platform int

const (
	Telegram Platform = iota
	WhatsApp
	Instagram
	Discord
)

func (p Platform) String() string {
	switch p {
	case Telegram:
		return "Telegram"
	case WhatsApp:
		return "WhatsApp"
	case Instagram:
		return "Instagram"
	case Discord:
		return "Discord"
	}
	return fmt.Sprintf("Platform(%d)", int(p))
}

// DefaultExtension returns the file extension exports from this platform
// usually carry.
func (p Platform) DefaultExtension() string {
	if p == WhatsApp {
		return "txt"
	}
	return "json"
}

// Platforms returns all supported platforms.
func Platforms() []Platform {
	return []Platform{Telegram, WhatsApp, Instagram, Discord}
}

// ParsePlatform resolves a platform name or its short alias
// (tg, wa, ig, dc), case-insensitively.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(s) {
	case "telegram", "tg":
		return Telegram, nil
	case "whatsapp", "wa":
		return WhatsApp, nil
	case "instagram", "ig":
		return Instagram, nil
	case "discord", "dc":
		return Discord, nil
	}
	return 0, fmt.Errorf(
		"unknown platform %q, expected one of: telegram, tg, whatsapp, wa, instagram, ig, discord, dc", s)
}

// StreamingConfig bounds the memory used by the streaming path. It has no
// effect on eager decoding.
type StreamingConfig struct {
	// BufferSize is the read buffer size in bytes.
	BufferSize int
	// MaxMessageSize caps the bytes buffered for a single message.
	// Exceeding it is a fatal BufferOverflowError.
	MaxMessageSize int
	// MaxHeaderSize caps the bytes read before the messages array is
	// located in a JSON export. Exceeding it is a fatal FormatError.
	MaxHeaderSize int
	// SkipInvalid makes the stream continue past records that fail to
	// parse instead of ending with the error.
	SkipInvalid bool
}

// DefaultStreamingConfig returns the limits used when the caller does not
// provide any: 64KB reads, 10MB per message, 10MB header pre-scan,
// invalid records skipped.
func DefaultStreamingConfig() StreamingConfig {
	return StreamingConfig{
		BufferSize:     64 * 1024,
		MaxMessageSize: 10 * 1024 * 1024,
		MaxHeaderSize:  10 * 1024 * 1024,
		SkipInvalid:    true,
	}
}

// Decoder is the per-platform decoding contract.
//
// Decode and DecodeText fail atomically: on error no partial result is
// returned. Stream yields one item at a time; a yielded error is either a
// recoverable per-item failure (only when SkipInvalid is off — with it on,
// such records are dropped silently) or a fatal error, in which case it is
// the last item. Decoders hold no state across calls; distinct calls are
// safe to run concurrently, a single returned sequence is not.
type Decoder interface {
	Platform() Platform
	Decode(path string) ([]chat.Message, error)
	DecodeText(content string) ([]chat.Message, error)
	Stream(path string) iter.Seq2[chat.Message, error]
}

// New returns a decoder for the platform with default streaming limits.
// Discord dispatches its sub-format by file extension; use NewDiscord to
// pin it explicitly.
func New(platform Platform) Decoder {
	return NewWithConfig(platform, DefaultStreamingConfig())
}

// NewWithConfig returns a decoder for the platform with the given
// streaming limits.
func NewWithConfig(platform Platform, cfg StreamingConfig) Decoder {
	switch platform {
	case Telegram:
		return &TelegramDecoder{cfg: cfg}
	case WhatsApp:
		return &WhatsAppDecoder{cfg: cfg}
	case Instagram:
		return &InstagramDecoder{cfg: cfg}
	case Discord:
		return &DiscordDecoder{cfg: cfg, Format: DiscordAuto}
	}
	panic(fmt.Sprintf("no decoder for %v", platform))
}
