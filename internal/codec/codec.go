// Package codec frames and decodes the streaming protocol: newline
// delimited JSON objects, one response message per line, with no length
// prefix. It sits between the raw byte stream (internal/stream) and the
// typed message union (pkg/types).
package codec

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/valyala/fastjson"

	"betfair-streamcache/pkg/types"
)

// maxMessageBytes bounds a single framed message. The exchange's own
// docs describe messages that can exceed 1 MB during busy in-play
// periods; 16 MB leaves headroom without letting a malformed stream
// grow the buffer unbounded.
const maxMessageBytes = 16 * 1024 * 1024

// Decoder reads \r\n-framed JSON objects off a byte stream and decodes
// each into its typed response message.
type Decoder struct {
	scanner *bufio.Scanner
	parser  fastjson.Parser
}

// NewDecoder wraps r, framing on newlines (bufio.ScanLines already
// strips a trailing \r, matching the wire's \r\n terminator) and
// allowing individual frames up to maxMessageBytes.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageBytes)
	scanner.Split(bufio.ScanLines)
	return &Decoder{scanner: scanner}
}

// Next reads and decodes the next framed message. It returns io.EOF when
// the underlying stream is exhausted cleanly. A malformed frame yields a
// *JSONError wrapping the parse failure; the caller should log it and
// keep calling Next — the stream itself is still healthy.
func (d *Decoder) Next() (any, error) {
	for {
		if !d.scanner.Scan() {
			if err := d.scanner.Err(); err != nil {
				return nil, fmt.Errorf("codec: read frame: %w", err)
			}
			return nil, io.EOF
		}

		line := d.scanner.Bytes()
		if len(line) == 0 {
			// The exchange sends blank keep-alive lines between messages
			// on some hosts; skip rather than treat as a decode failure.
			continue
		}

		// Validate with fastjson first so a malformed frame is reported
		// as a JSONError without disturbing pkg/types' own
		// encoding/json-based struct decode, which runs second and does
		// the real work.
		if _, err := d.parser.ParseBytes(line); err != nil {
			return nil, &JSONError{Raw: append([]byte(nil), line...), Cause: err}
		}

		msg, err := types.DecodeResponse(line)
		if err != nil {
			return nil, &JSONError{Raw: append([]byte(nil), line...), Cause: err}
		}
		return msg, nil
	}
}

// JSONError wraps a single frame's decode failure without aborting the
// stream.
type JSONError struct {
	Raw   []byte
	Cause error
}

func (e *JSONError) Error() string {
	return fmt.Sprintf("codec: invalid frame: %v", e.Cause)
}

func (e *JSONError) Unwrap() error { return e.Cause }

// Encoder writes request messages to w, one JSON object per line.
type Encoder struct {
	w io.Writer
}

// NewEncoder wraps w for framed writes.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode marshals msg and writes it followed by \r\n.
func (e *Encoder) Encode(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("codec: marshal: %w", err)
	}
	data = append(data, '\r', '\n')
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("codec: write: %w", err)
	}
	return nil
}
