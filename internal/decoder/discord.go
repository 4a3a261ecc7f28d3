package decoder

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/arne314/chatpack/internal/chat"
)

// DiscordFormat selects which DiscordChatExporter output shape to read.
// DiscordAuto dispatches by file extension, falling back to sniffing the
// content.
type DiscordFormat int

const (
	DiscordAuto DiscordFormat = iota
	DiscordJSON
	DiscordTXT
	DiscordCSV
)

func (f DiscordFormat) String() string {
	switch f {
	case DiscordAuto:
		return "auto"
	case DiscordJSON:
		return "json"
	case DiscordTXT:
		return "txt"
	case DiscordCSV:
		return "csv"
	}
	return fmt.Sprintf("DiscordFormat(%d)", int(f))
}

// ParseDiscordFormat resolves a sub-format name.
func ParseDiscordFormat(s string) (DiscordFormat, error) {
	switch strings.ToLower(s) {
	case "auto", "":
		return DiscordAuto, nil
	case "json":
		return DiscordJSON, nil
	case "txt", "text":
		return DiscordTXT, nil
	case "csv":
		return DiscordCSV, nil
	}
	return 0, fmt.Errorf("unknown Discord sub-format %q, expected json, txt or csv", s)
}

// DiscordDecoder reads DiscordChatExporter output. The JSON sub-format
// carries full metadata; TXT and CSV only carry timestamps — the export
// formats themselves omit IDs and reply references, so the decoder
// cannot provide them. Attachments and stickers become textual
// placeholders in all three.
type DiscordDecoder struct {
	cfg    StreamingConfig
	Format DiscordFormat
}

// NewDiscord returns a Discord decoder pinned to a sub-format.
func NewDiscord(format DiscordFormat, cfg StreamingConfig) *DiscordDecoder {
	return &DiscordDecoder{cfg: cfg, Format: format}
}

func (d *DiscordDecoder) Platform() Platform {
	return Discord
}

// resolveFormat turns DiscordAuto into a concrete sub-format using the
// file extension, then a glance at the content.
func (d *DiscordDecoder) resolveFormat(path, content string) DiscordFormat {
	if d.Format != DiscordAuto {
		return d.Format
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return DiscordJSON
	case ".csv":
		return DiscordCSV
	case ".txt":
		return DiscordTXT
	}
	trimmed := strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(trimmed, "{"):
		return DiscordJSON
	case strings.HasPrefix(trimmed, "AuthorID,") || strings.Contains(trimmed, `","`):
		return DiscordCSV
	default:
		return DiscordTXT
	}
}

func (d *DiscordDecoder) Decode(path string) ([]chat.Message, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read Discord export: %w", err)
	}
	return d.decodeText(string(content), path)
}

func (d *DiscordDecoder) DecodeText(content string) ([]chat.Message, error) {
	return d.decodeText(content, "")
}

func (d *DiscordDecoder) decodeText(content, path string) ([]chat.Message, error) {
	switch d.resolveFormat(path, content) {
	case DiscordJSON:
		return d.decodeJSON(content, path)
	case DiscordCSV:
		return d.decodeCSV(content, path)
	default:
		return d.decodeTXT(content, path)
	}
}

func (d *DiscordDecoder) Stream(path string) iter.Seq2[chat.Message, error] {
	return func(yield func(chat.Message, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(chat.Message{}, fmt.Errorf("open Discord export: %w", err))
			return
		}
		defer f.Close()

		// Auto dispatch on the streaming path can only use the
		// extension; sniffing would consume the reader.
		format := d.Format
		if format == DiscordAuto {
			format = d.resolveFormat(path, "")
		}

		switch format {
		case DiscordJSON:
			d.streamJSON(f, path, yield)
		case DiscordCSV:
			d.streamCSV(f, path, yield)
		default:
			d.streamTXT(f, path, yield)
		}
	}
}

// ---------------------------------------------------------------------
// JSON sub-format
// ---------------------------------------------------------------------

type discordRawMessage struct {
	ID              string              `json:"id"`
	Timestamp       string              `json:"timestamp"`
	TimestampEdited *string             `json:"timestampEdited"`
	Content         string              `json:"content"`
	Author          discordAuthor       `json:"author"`
	Reference       *discordReference   `json:"reference"`
	Attachments     []discordAttachment `json:"attachments"`
	Stickers        []discordSticker    `json:"stickers"`
}

type discordAuthor struct {
	Name     string  `json:"name"`
	Nickname *string `json:"nickname"`
}

type discordReference struct {
	MessageID *string `json:"messageId"`
}

type discordAttachment struct {
	FileName string `json:"fileName"`
}

type discordSticker struct {
	Name string `json:"name"`
}

type discordExport struct {
	Messages *[]discordRawMessage `json:"messages"`
}

func (raw discordRawMessage) message() (chat.Message, bool) {
	if strings.TrimSpace(raw.Content) == "" &&
		len(raw.Attachments) == 0 && len(raw.Stickers) == 0 {
		return chat.Message{}, false
	}

	var sb strings.Builder
	sb.WriteString(raw.Content)
	for _, att := range raw.Attachments {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("[Attachment: %v]", att.FileName))
	}
	for _, sticker := range raw.Stickers {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("[Sticker: %v]", sticker.Name))
	}

	sender := raw.Author.Name
	if raw.Author.Nickname != nil && *raw.Author.Nickname != "" {
		sender = *raw.Author.Nickname
	}

	msg := chat.Message{
		Sender:  sender,
		Content: sb.String(),
		ID:      raw.ID,
		Time:    parseRFC3339(raw.Timestamp),
	}
	if raw.TimestampEdited != nil {
		msg.EditedAt = parseRFC3339(*raw.TimestampEdited)
	}
	if raw.Reference != nil && raw.Reference.MessageID != nil {
		msg.ReplyTo = *raw.Reference.MessageID
	}
	return msg, true
}

func parseRFC3339(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func (d *DiscordDecoder) decodeJSON(content, path string) ([]chat.Message, error) {
	var export discordExport
	if err := json.Unmarshal([]byte(content), &export); err != nil {
		return nil, &ParseError{Platform: Discord, Path: path, Err: err}
	}
	if export.Messages == nil {
		return nil, &FormatError{Platform: Discord, Path: path, Reason: "no messages array found"}
	}

	messages := make([]chat.Message, 0, len(*export.Messages))
	for _, raw := range *export.Messages {
		if msg, ok := raw.message(); ok {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

func (d *DiscordDecoder) streamJSON(f *os.File, path string, yield func(chat.Message, error) bool) {
	scanner, err := newJSONArrayScanner(f, Discord, path, d.cfg)
	if err != nil {
		yield(chat.Message{}, err)
		return
	}

	for {
		raw, line, err := scanner.next()
		if err == io.EOF {
			return
		}
		if err != nil {
			yield(chat.Message{}, err)
			return
		}

		var rawMsg discordRawMessage
		if err := json.Unmarshal(raw, &rawMsg); err != nil {
			parseErr := &ParseError{Platform: Discord, Path: path, Line: line, Err: err}
			if d.cfg.SkipInvalid {
				log.Debugf("Skipping invalid record: %v", parseErr)
				continue
			}
			yield(chat.Message{}, parseErr)
			return
		}

		msg, ok := rawMsg.message()
		if !ok {
			continue
		}
		if !yield(msg, nil) {
			return
		}
	}
}

// ---------------------------------------------------------------------
// TXT sub-format
// ---------------------------------------------------------------------

// [1/15/2024 10:30 AM] sender
var discordTxtHeader = regexp.MustCompile(
	`^\[(\d{1,2}/\d{1,2}/\d{4}\s+\d{1,2}:\d{2}(?::\d{2})?\s*(?:AM|PM)?)\]\s+(.+)$`)

var discordTxtLayouts = []string{
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
}

func parseDiscordTxtTime(s string) time.Time {
	// Collapse the export's variable spacing before matching layouts.
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range discordTxtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// discordTxtParser assembles multi-line TXT messages incrementally so
// the eager and streaming paths share one state machine.
type discordTxtParser struct {
	buf           *boundedBuffer
	sender        string
	time          time.Time
	started       bool
	inAttachments bool
	inStickers    bool
}

func newDiscordTxtParser(maxMessageSize int) *discordTxtParser {
	return &discordTxtParser{buf: newBoundedBuffer(maxMessageSize)}
}

func (p *discordTxtParser) flush() (chat.Message, bool) {
	if !p.started {
		return chat.Message{}, false
	}
	content := strings.TrimSpace(p.buf.string())
	if content == "" {
		return chat.Message{}, false
	}
	return chat.Message{Sender: p.sender, Content: content, Time: p.time}, true
}

func (p *discordTxtParser) appendContent(s string) error {
	if p.buf.len() > 0 {
		if err := p.buf.appendString("\n"); err != nil {
			return err
		}
	}
	return p.buf.appendString(s)
}

// feed consumes one line and reports a completed message, if the line
// started a new one.
func (p *discordTxtParser) feed(line string) (chat.Message, bool, error) {
	if m := discordTxtHeader.FindStringSubmatch(line); m != nil {
		done, ok := p.flush()
		p.sender = m[2]
		p.time = parseDiscordTxtTime(m[1])
		p.started = true
		p.inAttachments = false
		p.inStickers = false
		p.buf.reset()
		return done, ok, nil
	}
	if !p.started {
		return chat.Message{}, false, nil
	}

	switch line {
	case "{Attachments}":
		p.inAttachments, p.inStickers = true, false
		return chat.Message{}, false, nil
	case "{Stickers}":
		p.inStickers, p.inAttachments = true, false
		return chat.Message{}, false, nil
	}

	if p.inAttachments || p.inStickers {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return chat.Message{}, false, nil
		}
		name := trimmed
		if strings.HasPrefix(trimmed, "http") {
			if i := strings.LastIndexByte(trimmed, '/'); i >= 0 && i+1 < len(trimmed) {
				name = trimmed[i+1:]
			}
		}
		kind := "Attachment"
		if p.inStickers {
			kind = "Sticker"
		}
		return chat.Message{}, false, p.appendContent(fmt.Sprintf("[%v: %v]", kind, name))
	}

	return chat.Message{}, false, p.appendContent(line)
}

func (d *DiscordDecoder) decodeTXT(content, path string) ([]chat.Message, error) {
	// Eager decoding is unbounded; the size cap only governs streaming.
	parser := newDiscordTxtParser(math.MaxInt)

	var messages []chat.Message
	for line := range strings.Lines(content) {
		msg, ok, err := parser.feed(strings.TrimRight(line, "\r\n"))
		if err != nil {
			return nil, err
		}
		if ok {
			messages = append(messages, msg)
		}
	}
	if msg, ok := parser.flush(); ok {
		messages = append(messages, msg)
	}
	return messages, nil
}

func (d *DiscordDecoder) streamTXT(f *os.File, path string, yield func(chat.Message, error) bool) {
	lines := newLineReader(f, d.cfg)
	parser := newDiscordTxtParser(d.cfg.MaxMessageSize)

	for {
		line, err := lines.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			var overflow *BufferOverflowError
			if !errors.As(err, &overflow) {
				err = fmt.Errorf("read Discord export: %w", err)
			}
			yield(chat.Message{}, err)
			return
		}
		msg, ok, err := parser.feed(line)
		if ok && !yield(msg, nil) {
			return
		}
		if err != nil {
			yield(chat.Message{}, err)
			return
		}
	}
	if msg, ok := parser.flush(); ok {
		yield(msg, nil)
	}
}

// ---------------------------------------------------------------------
// CSV sub-format
// ---------------------------------------------------------------------

// newDiscordCSVReader configures a reader for DiscordChatExporter CSV:
// quoted multi-line content, occasional ragged rows.
func newDiscordCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	return reader
}

// discordCSVColumns maps the header row; Author, Date and Content are
// required, Attachments is optional.
type discordCSVColumns struct {
	author, date, content, attachments int
}

func readDiscordCSVHeader(reader *csv.Reader, path string) (discordCSVColumns, error) {
	header, err := reader.Read()
	if err != nil {
		return discordCSVColumns{}, &FormatError{
			Platform: Discord, Path: path, Reason: "missing CSV header row"}
	}

	cols := discordCSVColumns{author: -1, date: -1, content: -1, attachments: -1}
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "Author":
			cols.author = i
		case "Date":
			cols.date = i
		case "Content":
			cols.content = i
		case "Attachments":
			cols.attachments = i
		}
	}
	if cols.author < 0 || cols.date < 0 || cols.content < 0 {
		return discordCSVColumns{}, &FormatError{
			Platform: Discord, Path: path,
			Reason: "CSV header must contain Author, Date and Content columns"}
	}
	return cols, nil
}

func discordCSVMessage(record []string, cols discordCSVColumns) (chat.Message, bool) {
	field := func(i int) string {
		if i >= 0 && i < len(record) {
			return record[i]
		}
		return ""
	}

	content := field(cols.content)
	attachments := field(cols.attachments)
	if strings.TrimSpace(content) == "" && strings.TrimSpace(attachments) == "" {
		return chat.Message{}, false
	}

	var sb strings.Builder
	sb.WriteString(content)
	for url := range strings.SplitSeq(attachments, ",") {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		name := url
		if i := strings.LastIndexByte(url, '/'); i >= 0 && i+1 < len(url) {
			name = url[i+1:]
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("[Attachment: %v]", name))
	}

	return chat.Message{
		Sender:  field(cols.author),
		Content: sb.String(),
		Time:    parseRFC3339(field(cols.date)),
	}, true
}

func (d *DiscordDecoder) decodeCSV(content, path string) ([]chat.Message, error) {
	reader := newDiscordCSVReader(strings.NewReader(content))
	cols, err := readDiscordCSVHeader(reader, path)
	if err != nil {
		return nil, err
	}

	var messages []chat.Message
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return messages, nil
		}
		if err != nil {
			return nil, &ParseError{Platform: Discord, Path: path, Err: err}
		}
		if msg, ok := discordCSVMessage(record, cols); ok {
			messages = append(messages, msg)
		}
	}
}

func (d *DiscordDecoder) streamCSV(f *os.File, path string, yield func(chat.Message, error) bool) {
	// The CSV reader accumulates one record at a time; the limit guard
	// cuts its input off at the cap so an oversized record fails before
	// it is materialized rather than after.
	limit := &recordLimitReader{r: f, max: d.cfg.MaxMessageSize, slack: d.cfg.BufferSize}
	reader := newDiscordCSVReader(limit)
	cols, err := readDiscordCSVHeader(reader, path)
	if err != nil {
		yield(chat.Message{}, err)
		return
	}
	limit.reset()

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return
		}
		if err != nil {
			var overflow *BufferOverflowError
			if errors.As(err, &overflow) {
				yield(chat.Message{}, overflow)
				return
			}
			parseErr := &ParseError{Platform: Discord, Path: path, Err: err}
			if line, ok := csvErrorLine(err); ok {
				parseErr.Line = line
			}
			if d.cfg.SkipInvalid {
				log.Debugf("Skipping invalid record: %v", parseErr)
				continue
			}
			yield(chat.Message{}, parseErr)
			return
		}
		limit.reset()

		msg, ok := discordCSVMessage(record, cols)
		if !ok {
			continue
		}
		if !yield(msg, nil) {
			return
		}
	}
}

func csvErrorLine(err error) (int, bool) {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Line, true
	}
	return 0, false
}
