package decoder

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/arne314/chatpack/internal/chat"
)

// WhatsAppDecoder reads WhatsApp TXT exports. The timestamp grammar
// varies by locale and platform, so it is detected once per file from a
// sample of leading lines and then applied to the whole file. Lines that
// match no grammar are continuations of the previous message, never an
// error; only a file whose locale cannot be determined at all fails.
type WhatsAppDecoder struct {
	cfg StreamingConfig
}

func (d *WhatsAppDecoder) Platform() Platform {
	return WhatsApp
}

// whatsappSampleWindow is the number of leading lines inspected during
// locale detection.
const whatsappSampleWindow = 20

// whatsappGrammar is one known header shape: a regex splitting a header
// line into date, time, sender and content, and the time layouts its
// captures parse with.
type whatsappGrammar struct {
	name    string
	header  *regexp.Regexp
	layouts []string
}

var (
	whatsappLayoutsUS = []string{
		"1/2/06, 3:04:05 PM", "1/2/06, 3:04 PM",
		"1/2/2006, 3:04:05 PM", "1/2/2006, 3:04 PM",
		"1/2/06, 15:04:05", "1/2/06, 15:04",
		"1/2/2006, 15:04:05", "1/2/2006, 15:04",
	}
	whatsappLayoutsEUDot = []string{
		"02.01.06, 15:04:05", "02.01.06, 15:04",
		"02.01.2006, 15:04:05", "02.01.2006, 15:04",
	}
	whatsappLayoutsEUSlash = []string{
		"02/01/06, 15:04:05", "02/01/06, 15:04",
		"02/01/2006, 15:04:05", "02/01/2006, 15:04",
	}

	// Detection order doubles as the tie-break order.
	whatsappGrammars = []whatsappGrammar{
		{
			// [1/15/24, 10:30:45 AM] Sender: Message
			name:    "US",
			header:  regexp.MustCompile(`^\[(\d{1,2}/\d{1,2}/\d{2,4}),\s(\d{1,2}:\d{2}(?::\d{2})?(?:\s?[APap][Mm])?)\]\s([^:]+):\s?(.*)`),
			layouts: whatsappLayoutsUS,
		},
		{
			// [15.01.24, 10:30:45] Sender: Message
			name:    "EU dotted bracketed",
			header:  regexp.MustCompile(`^\[(\d{2}\.\d{2}\.\d{2,4}),\s(\d{2}:\d{2}(?::\d{2})?)\]\s([^:]+):\s?(.*)`),
			layouts: whatsappLayoutsEUDot,
		},
		{
			// 26.10.2025, 20:40 - Sender: Message
			name:    "EU dotted dashed",
			header:  regexp.MustCompile(`^(\d{2}\.\d{2}\.\d{2,4}),\s(\d{2}:\d{2}(?::\d{2})?)\s-\s([^:]+):\s?(.*)`),
			layouts: whatsappLayoutsEUDot,
		},
		{
			// 15/01/2024, 10:30 - Sender: Message
			name:    "EU slashed dashed",
			header:  regexp.MustCompile(`^(\d{2}/\d{2}/\d{2,4}),\s(\d{2}:\d{2}(?::\d{2})?)\s-\s([^:]+):\s?(.*)`),
			layouts: whatsappLayoutsEUSlash,
		},
		{
			// [15/01/2024, 10:30:45] Sender: Message
			name:    "EU slashed bracketed",
			header:  regexp.MustCompile(`^\[(\d{2}/\d{2}/\d{2,4}),\s(\d{2}:\d{2}(?::\d{2})?)\]\s([^:]+):\s?(.*)`),
			layouts: whatsappLayoutsEUSlash,
		},
	}
)

// detectWhatsAppGrammar scores every known grammar against the sampled
// lines and returns the best match. A header match counts once, a match
// whose timestamp also parses counts double: the US and EU slashed
// shapes overlap for days below 13, and only the layouts can tell
// 15/01/2024 apart from 1/15/2024. A tie goes to the earlier grammar.
func detectWhatsAppGrammar(lines []string) (*whatsappGrammar, bool) {
	best := -1
	bestScore := 0
	for i := range whatsappGrammars {
		g := &whatsappGrammars[i]
		score := 0
		for _, line := range lines {
			if m := g.header.FindStringSubmatch(line); m != nil {
				score++
				if !parseWhatsAppTime(m[1], m[2], g).IsZero() {
					score++
				}
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return nil, false
	}
	return &whatsappGrammars[best], true
}

func parseWhatsAppTime(date, clock string, g *whatsappGrammar) time.Time {
	candidate := date + ", " + normalizeMeridiem(clock)
	for _, layout := range g.layouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// normalizeMeridiem uppercases a trailing am/pm marker and makes sure a
// space precedes it, so a single set of layouts covers "10:30am",
// "10:30 AM" and friends.
func normalizeMeridiem(clock string) string {
	up := strings.ToUpper(strings.TrimSpace(clock))
	for _, suffix := range []string{"AM", "PM"} {
		if strings.HasSuffix(up, suffix) && !strings.HasSuffix(up, " "+suffix) {
			return up[:len(up)-2] + " " + suffix
		}
	}
	return up
}

// System notices WhatsApp injects into the transcript without a real
// sender. English indicators are compared case-insensitively, Cyrillic
// ones as-is.
var (
	whatsappSystemEN = []string{
		"messages and calls are end-to-end encrypted",
		"created group",
		"added",
		"removed",
		"left",
		"changed the subject",
		"changed this group's icon",
		"changed the group description",
		"deleted this group's icon",
		"changed their phone number",
		"joined using this group's invite link",
		"security code changed",
		"you're now an admin",
		"is now an admin",
		"disappeared",
		"turned on disappearing messages",
		"turned off disappearing messages",
	}
	whatsappSystemRU = []string{
		"Сообщения и звонки защищены сквозным шифрованием",
		"создал(а) группу",
		"добавил",
		"удалил",
		"вышел",
		"покинул",
		"изменил тему",
		"изменил иконку группы",
		"изменил описание группы",
		"удалил иконку группы",
		"изменил номер телефона",
		"присоединился по ссылке",
		"код безопасности изменён",
		"теперь администратор",
		"включил исчезающие сообщения",
		"выключил исчезающие сообщения",
		"Подробнее",
	}
)

func isWhatsAppSystemMessage(sender, content string) bool {
	contentLower := strings.ToLower(content)
	for _, indicator := range whatsappSystemEN {
		if strings.Contains(contentLower, indicator) {
			return true
		}
	}
	for _, indicator := range whatsappSystemRU {
		if strings.Contains(content, indicator) {
			return true
		}
	}
	senderLower := strings.ToLower(sender)
	return strings.TrimSpace(sender) == "" ||
		strings.Contains(senderLower, "whatsapp") ||
		strings.Contains(senderLower, "system")
}

// whatsappPending is the message currently being assembled while lines
// are classified.
type whatsappPending struct {
	sender  string
	time    time.Time
	started bool
}

// finish turns the assembled state into a message, dropping system
// notices and empty bodies.
func (p *whatsappPending) finish(content string) (chat.Message, bool) {
	if !p.started {
		return chat.Message{}, false
	}
	content = strings.TrimSpace(content)
	if content == "" || isWhatsAppSystemMessage(p.sender, content) {
		return chat.Message{}, false
	}
	return chat.Message{Sender: p.sender, Content: content, Time: p.time}, true
}

func (d *WhatsAppDecoder) Decode(path string) ([]chat.Message, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read WhatsApp export: %w", err)
	}
	return d.decodeText(string(content), path)
}

func (d *WhatsAppDecoder) DecodeText(content string) ([]chat.Message, error) {
	return d.decodeText(content, "")
}

func (d *WhatsAppDecoder) decodeText(content, path string) ([]chat.Message, error) {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	sample := lines
	if len(sample) > whatsappSampleWindow {
		sample = sample[:whatsappSampleWindow]
	}
	grammar, ok := detectWhatsAppGrammar(sample)
	if !ok {
		return nil, &UnrecognizedLocaleError{Path: path, Sampled: len(sample)}
	}

	var messages []chat.Message
	var pending whatsappPending
	var body strings.Builder
	dropped := 0

	flush := func() {
		if msg, ok := pending.finish(body.String()); ok {
			messages = append(messages, msg)
		}
		body.Reset()
	}

	for _, line := range lines {
		if m := grammar.header.FindStringSubmatch(line); m != nil {
			flush()
			pending = whatsappPending{
				sender:  strings.TrimSpace(m[3]),
				time:    parseWhatsAppTime(m[1], m[2], grammar),
				started: true,
			}
			body.WriteString(m[4])
		} else if pending.started {
			body.WriteString("\n")
			body.WriteString(line)
		} else if strings.TrimSpace(line) != "" {
			// Continuation before any header: dropped by design.
			dropped++
		}
	}
	flush()

	if dropped > 0 {
		log.Debugf("WhatsApp decode dropped %v leading lines without a header", dropped)
	}
	return messages, nil
}

func (d *WhatsAppDecoder) Stream(path string) iter.Seq2[chat.Message, error] {
	return func(yield func(chat.Message, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(chat.Message{}, fmt.Errorf("open WhatsApp export: %w", err))
			return
		}
		defer f.Close()

		lines := newLineReader(f, d.cfg)

		// Locale detection needs a line sample up front; the sampled
		// lines are replayed through the regular classification below. An
		// overflow while sampling is deferred so the messages completed
		// before it still surface first.
		var sample []string
		var deferred error
		eof := false
		for len(sample) < whatsappSampleWindow && !eof {
			line, err := lines.next()
			if err == io.EOF {
				eof = true
				break
			}
			if err != nil {
				var overflow *BufferOverflowError
				if !errors.As(err, &overflow) {
					yield(chat.Message{}, whatsappReadError(err))
					return
				}
				deferred = err
				break
			}
			sample = append(sample, line)
		}

		grammar, ok := detectWhatsAppGrammar(sample)
		if !ok {
			if deferred != nil {
				yield(chat.Message{}, deferred)
			} else {
				yield(chat.Message{}, &UnrecognizedLocaleError{Path: path, Sampled: len(sample)})
			}
			return
		}

		buf := newBoundedBuffer(d.cfg.MaxMessageSize)
		var pending whatsappPending
		dropped := 0

		// classify consumes one line and reports a completed message, a
		// fatal error, or neither.
		classify := func(line string) (chat.Message, bool, error) {
			if m := grammar.header.FindStringSubmatch(line); m != nil {
				done, ok := pending.finish(buf.string())
				pending = whatsappPending{
					sender:  strings.TrimSpace(m[3]),
					time:    parseWhatsAppTime(m[1], m[2], grammar),
					started: true,
				}
				buf.reset()
				// A completed message still surfaces even when the new
				// header's content overflows.
				return done, ok, buf.appendString(m[4])
			}
			if pending.started {
				if err := buf.appendString("\n"); err != nil {
					return chat.Message{}, false, err
				}
				if err := buf.appendString(line); err != nil {
					return chat.Message{}, false, err
				}
			} else if strings.TrimSpace(line) != "" {
				dropped++
			}
			return chat.Message{}, false, nil
		}

		emit := func(line string) bool {
			msg, ok, err := classify(line)
			if ok && !yield(msg, nil) {
				return false
			}
			if err != nil {
				yield(chat.Message{}, err)
				return false
			}
			return true
		}

		// fail surfaces a fatal read error after flushing the message
		// completed before it.
		fail := func(err error) {
			if msg, ok := pending.finish(buf.string()); ok && !yield(msg, nil) {
				return
			}
			yield(chat.Message{}, err)
		}

		for _, line := range sample {
			if !emit(line) {
				return
			}
		}
		if deferred != nil {
			fail(deferred)
			return
		}

		for !eof {
			line, err := lines.next()
			if err == io.EOF {
				break
			}
			if err != nil {
				fail(whatsappReadError(err))
				return
			}
			if !emit(line) {
				return
			}
		}

		if dropped > 0 {
			log.Debugf("WhatsApp stream dropped %v leading lines without a header", dropped)
		}
		if msg, ok := pending.finish(buf.string()); ok {
			yield(msg, nil)
		}
	}
}

// whatsappReadError wraps IO failures from the line reader; buffer
// overflows keep their type so callers can classify them.
func whatsappReadError(err error) error {
	var overflow *BufferOverflowError
	if errors.As(err, &overflow) {
		return err
	}
	return fmt.Errorf("read WhatsApp export: %w", err)
}
