// ABOUTME: Server-Sent Events wire codec shared by the task server and the stream client.
// ABOUTME: Parses SSE streams per the W3C EventSource specification, surfacing comment lines for liveness tracking.

package sse

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Event is a single Server-Sent Event read from a stream.
//
// Comment events (lines starting with ':') are surfaced with Comment=true so
// callers can observe server heartbeat comments; the EventSource spec discards
// them, but the stream controller wants to log them.
type Event struct {
	Type    string // from "event:" line, defaults to "message"
	Data    string // from "data:" line(s), multi-line data joined with newlines
	ID      string // from "id:" line
	Retry   int    // from "retry:" line, -1 if not set
	Comment bool   // true when this is a comment line, Data holds the comment text
}

// Parser reads SSE events from an io.Reader.
type Parser struct {
	r    *bufio.Reader
	done bool

	// current event accumulation state
	eventType string
	data      []string
	hasData   bool
	id        string
	retry     int
}

// NewParser returns a Parser reading from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{
		r:     bufio.NewReaderSize(r, 4096),
		retry: -1,
	}
}

// Next returns the next event from the stream. Comment lines are returned
// immediately as Comment events without disturbing any partially accumulated
// event. Returns io.EOF when the stream ends.
func (p *Parser) Next() (Event, error) {
	if p.done {
		return Event{}, io.EOF
	}

	for {
		line, err := p.readLine()
		if err != nil {
			if err == io.EOF {
				p.done = true
				// Dispatch any pending data before signalling EOF.
				if p.hasData {
					evt := p.flush()
					return evt, nil
				}
				return Event{}, io.EOF
			}
			return Event{}, err
		}

		// Blank line dispatches the accumulated event, if any.
		if line == "" {
			if !p.hasData {
				continue
			}
			return p.flush(), nil
		}

		if strings.HasPrefix(line, ":") {
			text := strings.TrimPrefix(line, ":")
			text = strings.TrimPrefix(text, " ")
			return Event{Comment: true, Data: text, Retry: -1}, nil
		}

		field, value := splitField(line)
		p.accumulate(field, value)
	}
}

// flush builds the accumulated event and resets the accumulation state.
func (p *Parser) flush() Event {
	typ := p.eventType
	if typ == "" {
		typ = "message"
	}
	evt := Event{
		Type:  typ,
		Data:  strings.Join(p.data, "\n"),
		ID:    p.id,
		Retry: p.retry,
	}
	p.eventType = ""
	p.data = nil
	p.hasData = false
	p.id = ""
	p.retry = -1
	return evt
}

// accumulate applies one "field: value" line to the pending event.
func (p *Parser) accumulate(field, value string) {
	switch field {
	case "event":
		p.eventType = value
	case "data":
		p.data = append(p.data, value)
		p.hasData = true
	case "id":
		p.id = value
	case "retry":
		if n, err := strconv.Atoi(value); err == nil {
			p.retry = n
		}
		// Invalid retry values are ignored per the SSE spec.
	default:
		// Unknown fields are ignored.
	}
}

// splitField splits a line into field name and value. With no colon, the
// entire line is the field name. A single leading space after the colon is
// stripped from the value.
func splitField(line string) (field, value string) {
	i := strings.IndexByte(line, ':')
	if i == -1 {
		return line, ""
	}
	field, value = line[:i], line[i+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}

// readLine reads one line, treating CR, LF, and CRLF as terminators.
// bufio.Scanner only handles LF and CRLF, and the SSE spec also allows
// standalone CR.
func (p *Parser) readLine() (string, error) {
	var line strings.Builder
	for {
		b, err := p.r.ReadByte()
		if err != nil {
			if err == io.EOF && line.Len() > 0 {
				return line.String(), nil
			}
			return "", err
		}

		switch b {
		case '\n':
			return line.String(), nil
		case '\r':
			// Consume the LF of a CRLF pair if present.
			next, err := p.r.ReadByte()
			if err == nil && next != '\n' {
				_ = p.r.UnreadByte()
			}
			return line.String(), nil
		default:
			line.WriteByte(b)
		}
	}
}
