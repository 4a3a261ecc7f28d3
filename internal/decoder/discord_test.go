package decoder

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/arne314/chatpack/internal/chat"
)

func TestParseDiscordFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    DiscordFormat
		wantErr bool
	}{
		{input: "", want: DiscordAuto},
		{input: "auto", want: DiscordAuto},
		{input: "JSON", want: DiscordJSON},
		{input: "txt", want: DiscordTXT},
		{input: "text", want: DiscordTXT},
		{input: "csv", want: DiscordCSV},
		{input: "xml", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseDiscordFormat(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDiscordFormat(%q) expected error", tc.input)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseDiscordFormat(%q) = (%v, %v), want %v", tc.input, got, err, tc.want)
		}
	}
}

func TestDiscordResolveFormat(t *testing.T) {
	d := &DiscordDecoder{Format: DiscordAuto}
	tests := []struct {
		name    string
		path    string
		content string
		want    DiscordFormat
	}{
		{name: "json extension", path: "guild - general.json", want: DiscordJSON},
		{name: "csv extension", path: "export.CSV", want: DiscordCSV},
		{name: "txt extension", path: "export.txt", want: DiscordTXT},
		{name: "json content", path: "export.dat", content: `{"guild": {}}`, want: DiscordJSON},
		{name: "csv content", path: "export.dat", content: "AuthorID,Author,Date,Content,Attachments\n", want: DiscordCSV},
		{name: "txt content", path: "export.dat", content: "[1/15/2024 10:30 AM] alice\nhello\n", want: DiscordTXT},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := d.resolveFormat(tc.path, tc.content); got != tc.want {
				t.Errorf("resolveFormat(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}

	pinned := &DiscordDecoder{Format: DiscordCSV}
	if got := pinned.resolveFormat("export.json", ""); got != DiscordCSV {
		t.Errorf("pinned format ignored: %v", got)
	}
}

const discordJSONFixture = `{
 "guild": {"name": "testing grounds"},
 "channel": {"name": "general"},
 "messages": [
  {
   "id": "1111", "type": "Default", "timestamp": "2024-01-15T10:30:00+00:00",
   "content": "hello everyone",
   "author": {"id": "42", "name": "alice", "nickname": "Ali"},
   "attachments": [], "stickers": []
  },
  {
   "id": "2222", "type": "Default", "timestamp": "2024-01-15T10:31:00+00:00",
   "timestampEdited": "2024-01-15T10:32:00+00:00",
   "content": "check this out",
   "author": {"id": "43", "name": "bob", "nickname": null},
   "reference": {"messageId": "1111"},
   "attachments": [{"fileName": "photo.png"}],
   "stickers": [{"name": "wave"}]
  },
  {
   "id": "3333", "type": "Default", "timestamp": "2024-01-15T10:33:00+00:00",
   "content": "",
   "author": {"id": "42", "name": "alice"},
   "attachments": [], "stickers": []
  }
 ]
}`

func TestDiscordDecodeJSON(t *testing.T) {
	path := writeFixture(t, "export.json", discordJSONFixture)
	messages, err := New(Discord).Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := []chat.Message{
		{
			Sender:  "Ali",
			Content: "hello everyone",
			Time:    time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			ID:      "1111",
		},
		{
			Sender:   "bob",
			Content:  "check this out\n[Attachment: photo.png]\n[Sticker: wave]",
			Time:     time.Date(2024, 1, 15, 10, 31, 0, 0, time.UTC),
			ID:       "2222",
			ReplyTo:  "1111",
			EditedAt: time.Date(2024, 1, 15, 10, 32, 0, 0, time.UTC),
		},
	}
	if !reflect.DeepEqual(messages, want) {
		t.Errorf("decoded %+v, want %+v", messages, want)
	}
}

func TestDiscordStreamJSONMatchesDecode(t *testing.T) {
	path := writeFixture(t, "export.json", discordJSONFixture)
	decoder := New(Discord)

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

const discordTXTFixture = `==============================================================
Guild: testing grounds
Channel: general
==============================================================

[1/15/2024 10:30 AM] alice
hello everyone
still me

[1/15/2024 10:31 AM] bob
check this out
{Attachments}
https://cdn.example.com/att/photo.png
{Stickers}
wave

[1/15/2024 10:32 AM] alice
`

func TestDiscordDecodeTXT(t *testing.T) {
	path := writeFixture(t, "export.txt", discordTXTFixture)
	messages, err := New(Discord).Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := []chat.Message{
		{
			Sender:  "alice",
			Content: "hello everyone\nstill me",
			Time:    time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			Sender:  "bob",
			Content: "check this out\n[Attachment: photo.png]\n[Sticker: wave]",
			Time:    time.Date(2024, 1, 15, 10, 31, 0, 0, time.UTC),
		},
	}
	if !reflect.DeepEqual(messages, want) {
		t.Errorf("decoded %+v, want %+v", messages, want)
	}
}

func TestDiscordStreamTXTMatchesDecode(t *testing.T) {
	path := writeFixture(t, "export.txt", discordTXTFixture)
	decoder := New(Discord)

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

const discordCSVFixture = `AuthorID,Author,Date,Content,Attachments
42,alice,2024-01-15T10:30:00+00:00,"hello, line one
line two",
43,bob,2024-01-15T10:31:00+00:00,check this out,https://cdn.example.com/att/photo.png
42,alice,2024-01-15T10:32:00+00:00,,
`

func TestDiscordDecodeCSV(t *testing.T) {
	path := writeFixture(t, "export.csv", discordCSVFixture)
	messages, err := New(Discord).Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := []chat.Message{
		{
			Sender:  "alice",
			Content: "hello, line one\nline two",
			Time:    time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			Sender:  "bob",
			Content: "check this out\n[Attachment: photo.png]",
			Time:    time.Date(2024, 1, 15, 10, 31, 0, 0, time.UTC),
		},
	}
	if !reflect.DeepEqual(messages, want) {
		t.Errorf("decoded %+v, want %+v", messages, want)
	}
}

func TestDiscordCSVMissingHeader(t *testing.T) {
	path := writeFixture(t, "export.csv", "just,a,random,row\n")
	_, err := New(Discord).Decode(path)
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	if !strings.Contains(formatErr.Reason, "Author") {
		t.Errorf("unhelpful reason: %q", formatErr.Reason)
	}
}

func TestDiscordStreamCSVMatchesDecode(t *testing.T) {
	path := writeFixture(t, "export.csv", discordCSVFixture)
	decoder := New(Discord)

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

func TestDiscordStreamTXTOverlongLine(t *testing.T) {
	cfg := DefaultStreamingConfig()
	cfg.MaxMessageSize = 64

	input := "[1/15/2024 10:30 AM] alice\n" + strings.Repeat("x", 1000)
	path := writeFixture(t, "export.txt", input)

	_, err := collectStream(NewWithConfig(Discord, cfg).Stream(path))
	var overflow *BufferOverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("expected BufferOverflowError, got %v", err)
	}
	if overflow.Max != 64 {
		t.Errorf("overflow max = %v, want 64", overflow.Max)
	}
}

func TestDiscordStreamCSVOversizedRecord(t *testing.T) {
	cfg := DefaultStreamingConfig()
	cfg.MaxMessageSize = 64
	cfg.BufferSize = 512

	input := "AuthorID,Author,Date,Content,Attachments\n" +
		"42,alice,2024-01-15T10:30:00+00:00,short,\n" +
		"43,bob,2024-01-15T10:31:00+00:00," + strings.Repeat("x", 10000) + ",\n"
	path := writeFixture(t, "export.csv", input)

	messages, err := collectStream(NewWithConfig(Discord, cfg).Stream(path))
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

func TestDiscordJSONMissingMessagesArray(t *testing.T) {
	_, err := NewDiscord(DiscordJSON, DefaultStreamingConfig()).DecodeText(`{"guild": {}}`)
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestParseDiscordTxtTime(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{input: "1/15/2024 10:30 AM", want: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{input: "1/15/2024  10:30 PM", want: time.Date(2024, 1, 15, 22, 30, 0, 0, time.UTC)},
		{input: "15/1/2024 22:30:45", want: time.Time{}}, // day-first is not a TXT export shape
		{input: "1/15/2024 22:30:45", want: time.Date(2024, 1, 15, 22, 30, 45, 0, time.UTC)},
		{input: "garbage", want: time.Time{}},
	}
	for _, tc := range tests {
		if got := parseDiscordTxtTime(tc.input); !got.Equal(tc.want) {
			t.Errorf("parseDiscordTxtTime(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
