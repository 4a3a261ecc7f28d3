package decoder

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/arne314/chatpack/internal/chat"
)

func TestWhatsAppLocaleDetection(t *testing.T) {
	tests := []struct {
		name  string
		input string
		time  time.Time
	}{
		{
			name:  "US",
			input: "[1/15/24, 10:30:45 AM] Alice: Morning!",
			time:  time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC),
		},
		{
			name:  "US lowercase meridiem",
			input: "[1/15/24, 10:30pm] Alice: Morning!",
			time:  time.Date(2024, 1, 15, 22, 30, 0, 0, time.UTC),
		},
		{
			name:  "EU dotted bracketed",
			input: "[15.01.24, 10:30:45] Alice: Morning!",
			time:  time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC),
		},
		{
			name:  "EU dotted dashed",
			input: "26.10.2025, 20:40 - Alice: Morning!",
			time:  time.Date(2025, 10, 26, 20, 40, 0, 0, time.UTC),
		},
		{
			name:  "EU slashed dashed",
			input: "15/01/2024, 10:30 - Alice: Morning!",
			time:  time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "EU slashed bracketed",
			input: "[15/01/2024, 10:30:45] Alice: Morning!",
			time:  time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			messages, err := New(WhatsApp).DecodeText(tc.input)
			if err != nil {
				t.Fatalf("DecodeText: %v", err)
			}
			want := []chat.Message{{Sender: "Alice", Content: "Morning!", Time: tc.time}}
			if !reflect.DeepEqual(messages, want) {
				t.Errorf("decoded %+v, want %+v", messages, want)
			}
		})
	}
}

func TestWhatsAppUnrecognizedLocale(t *testing.T) {
	input := "just some notes\nno chat headers anywhere\n"
	_, err := New(WhatsApp).DecodeText(input)
	var localeErr *UnrecognizedLocaleError
	if !errors.As(err, &localeErr) {
		t.Fatalf("expected UnrecognizedLocaleError, got %v", err)
	}
	if !Fatal(err) {
		t.Error("locale errors must be fatal")
	}
}

func TestWhatsAppMultilineContinuation(t *testing.T) {
	input := strings.Join([]string{
		"[1/15/24, 10:30:00 AM] Alice: first line",
		"second line",
		"third line",
		"[1/15/24, 10:31:00 AM] Bob: reply",
	}, "\n")

	messages, err := New(WhatsApp).DecodeText(input)
	if err != nil {
		t.Fatalf("DecodeText: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %+v", messages)
	}
	if messages[0].Content != "first line\nsecond line\nthird line" {
		t.Errorf("continuation lines not joined: %q", messages[0].Content)
	}
	if messages[1].Sender != "Bob" || messages[1].Content != "reply" {
		t.Errorf("second message wrong: %+v", messages[1])
	}
}

func TestWhatsAppSystemMessagesDropped(t *testing.T) {
	input := strings.Join([]string{
		"[1/15/24, 10:29:00 AM] Family: Messages and calls are end-to-end encrypted. No one outside of this chat can read them.",
		"[1/15/24, 10:30:00 AM] Alice: real message",
		"[1/15/24, 10:31:00 AM] Family: Bob added Carol",
		"[1/15/24, 10:32:00 AM] Группа: Сообщения и звонки защищены сквозным шифрованием.",
		"[1/15/24, 10:33:00 AM] Bob: another real one",
	}, "\n")

	messages, err := New(WhatsApp).DecodeText(input)
	if err != nil {
		t.Fatalf("DecodeText: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages after filtering, got %+v", messages)
	}
	if messages[0].Sender != "Alice" || messages[1].Sender != "Bob" {
		t.Errorf("wrong messages kept: %+v", messages)
	}
}

func TestWhatsAppLeadingLinesWithoutHeaderDropped(t *testing.T) {
	input := strings.Join([]string{
		"orphan line before any header",
		"[1/15/24, 10:30:00 AM] Alice: hello",
	}, "\n")

	messages, err := New(WhatsApp).DecodeText(input)
	if err != nil {
		t.Fatalf("DecodeText: %v", err)
	}
	want := []chat.Message{{
		Sender:  "Alice",
		Content: "hello",
		Time:    time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}}
	if !reflect.DeepEqual(messages, want) {
		t.Errorf("decoded %+v, want %+v", messages, want)
	}
}

func TestWhatsAppStreamMatchesDecode(t *testing.T) {
	input := strings.Join([]string{
		"[1/15/24, 10:30:00 AM] Alice: hello",
		"with a continuation",
		"[1/15/24, 10:31:00 AM] Bob: hi",
		"[1/15/24, 10:32:00 AM] Alice: bye",
	}, "\n")
	path := writeFixture(t, "chat.txt", input)
	decoder := New(WhatsApp)

	eager, err := decoder.Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	streamed, err := collectStream(decoder.Stream(path))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if !reflect.DeepEqual(streamed, eager) {
		t.Errorf("streamed %+v, eager %+v", streamed, eager)
	}
}

func TestWhatsAppStreamDetectsLocaleBeyondFirstLines(t *testing.T) {
	// Headers only appear after a few stray lines; detection samples a
	// window, not just the first line.
	lines := []string{"export header", ""}
	for range 3 {
		lines = append(lines, "[15.01.24, 10:30:00] Alice: hallo")
	}
	path := writeFixture(t, "chat.txt", strings.Join(lines, "\n"))

	messages, err := collectStream(New(WhatsApp).Stream(path))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(messages) != 3 {
		t.Errorf("expected 3 messages, got %+v", messages)
	}
}

func TestWhatsAppStreamOversizedMessage(t *testing.T) {
	cfg := DefaultStreamingConfig()
	cfg.MaxMessageSize = 64

	input := strings.Join([]string{
		"[1/15/24, 10:30:00 AM] Alice: short",
		"[1/15/24, 10:31:00 AM] Bob: " + strings.Repeat("x", 200),
	}, "\n")
	path := writeFixture(t, "chat.txt", input)

	messages, err := collectStream(NewWithConfig(WhatsApp, cfg).Stream(path))
	var overflow *BufferOverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("expected BufferOverflowError, got %v", err)
	}
	if overflow.Max != 64 {
		t.Errorf("overflow max = %v, want 64", overflow.Max)
	}
	if len(messages) != 1 || messages[0].Content != "short" {
		t.Errorf("expected the short message before the overflow, got %+v", messages)
	}
}

func TestWhatsAppStreamOverlongLineWithoutNewline(t *testing.T) {
	cfg := DefaultStreamingConfig()
	cfg.MaxMessageSize = 64

	// No newline anywhere: the size cap must trip on bytes read, not on
	// line boundaries.
	path := writeFixture(t, "chat.txt", strings.Repeat("x", 1000))

	messages, err := collectStream(NewWithConfig(WhatsApp, cfg).Stream(path))
	var overflow *BufferOverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("expected BufferOverflowError, got %v", err)
	}
	if overflow.Max != 64 {
		t.Errorf("overflow max = %v, want 64", overflow.Max)
	}
	if len(messages) != 0 {
		t.Errorf("expected no messages, got %+v", messages)
	}
}

func TestIsWhatsAppSystemMessage(t *testing.T) {
	tests := []struct {
		sender  string
		content string
		system  bool
	}{
		{sender: "Alice", content: "let's meet at added hours", system: true}, // indicator words match anywhere
		{sender: "Alice", content: "ordinary text", system: false},
		{sender: "", content: "anything", system: true},
		{sender: "WhatsApp", content: "hello", system: true},
		{sender: "Boris", content: "Петя создал(а) группу", system: true},
	}
	for _, tc := range tests {
		if got := isWhatsAppSystemMessage(tc.sender, tc.content); got != tc.system {
			t.Errorf("isWhatsAppSystemMessage(%q, %q) = %v, want %v", tc.sender, tc.content, got, tc.system)
		}
	}
}
