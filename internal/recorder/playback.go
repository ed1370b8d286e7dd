package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrPlaybackDone is returned by Next when the recording is exhausted.
var ErrPlaybackDone = errors.New("playback finished")

// decoder abstracts the two stream decodings.
type decoder interface {
	Decode(v any) error
}

// Playback reads a recording sequentially, record by record.
type Playback struct {
	dec    decoder
	closer io.Closer
}

// Open opens a recording file, deducing the format from the extension
// (".json"/".js" → JSON, ".mp"/".msgpack" → msgpack).
func Open(path string) (*Playback, error) {
	format, err := deduceFormat(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	p := NewPlayback(file, format)
	p.closer = file
	return p, nil
}

// NewPlayback reads records from r in the given format. The caller owns r.
func NewPlayback(r io.Reader, format Format) *Playback {
	p := &Playback{}
	if format == FormatMsgpack {
		p.dec = msgpack.NewDecoder(r)
	} else {
		p.dec = json.NewDecoder(r)
	}
	return p
}

// Next returns the next record, or ErrPlaybackDone at end of stream.
func (p *Playback) Next() (Record, error) {
	var rec Record
	err := p.dec.Decode(&rec)
	if err == io.EOF {
		return Record{}, ErrPlaybackDone
	}
	if err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// Close releases the underlying file, when Playback opened it.
func (p *Playback) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

func deduceFormat(path string) (Format, error) {
	switch {
	case strings.HasSuffix(path, ".json"), strings.HasSuffix(path, ".js"):
		return FormatJSON, nil
	case strings.HasSuffix(path, ".mp"), strings.HasSuffix(path, ".msgpack"):
		return FormatMsgpack, nil
	}
	return "", fmt.Errorf("cannot deduce recording format from %q", path)
}
