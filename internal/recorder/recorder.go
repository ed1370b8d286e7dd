package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"gdax-feed/pkg/md"
)

// Format selects the on-disk encoding.
type Format string

const (
	FormatJSON    Format = "json"    // newline-delimited JSON
	FormatMsgpack Format = "msgpack" // msgpack stream
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatMsgpack:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown recording format %q", s)
}

// Ext returns the file extension for the format.
func (f Format) Ext() string {
	if f == FormatMsgpack {
		return ".mp"
	}
	return ".json"
}

// Fetcher is the slice of the subscriber the recorder needs.
type Fetcher interface {
	Fetch(ctx context.Context) (md.Update, error)
}

// encoder abstracts the two stream encodings.
type encoder interface {
	Encode(v any) error
}

const fileSizeLogInterval = time.Minute

// Recorder subscribes to one instrument and appends one record per fetch,
// throttled to the configured interval. Conflation in the subscriber keeps
// the trade stream complete even when the book ticks faster than the
// recorder writes.
type Recorder struct {
	sub      Fetcher
	file     *os.File
	filename string
	enc      encoder
	interval time.Duration
	depth    int
	logger   *slog.Logger
}

// Options tune a recorder.
type Options struct {
	OutputDir string
	Interval  time.Duration
	Depth     int
	Format    Format
}

// New creates a recorder appending to <dir>/<YYYYMMDD>_<instrument><ext>.
func New(sub Fetcher, instrument md.Instrument, opts Options, logger *slog.Logger) (*Recorder, error) {
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s_%s%s",
		time.Now().UTC().Format("20060102"),
		instrument.String(),
		opts.Format.Ext(),
	))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open recording file: %w", err)
	}

	r := &Recorder{
		sub:      sub,
		file:     file,
		filename: filename,
		interval: opts.Interval,
		depth:    opts.Depth,
		logger:   logger.With("component", "recorder", "file", filename),
	}
	if opts.Format == FormatMsgpack {
		r.enc = msgpack.NewEncoder(file)
	} else {
		r.enc = json.NewEncoder(file)
	}
	r.logger.Info("recording", "format", string(opts.Format), "interval", opts.Interval, "depth", opts.Depth)
	return r, nil
}

// Filename returns the path being written.
func (r *Recorder) Filename() string { return r.filename }

// Run fetches and writes until ctx is cancelled. The file is closed on exit.
func (r *Recorder) Run(ctx context.Context) error {
	defer r.file.Close()

	sizeTicker := time.NewTicker(fileSizeLogInterval)
	defer sizeTicker.Stop()

	for {
		u, err := r.sub.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := r.write(u); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-sizeTicker.C:
			r.logFileSize()
		case <-time.After(r.interval):
		}
	}
}

func (r *Recorder) write(u md.Update) error {
	if err := r.enc.Encode(MakeRecord(u, r.depth)); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return nil
}

func (r *Recorder) logFileSize() {
	info, err := r.file.Stat()
	if err != nil {
		return
	}
	r.logger.Info("recording file size", "bytes", info.Size(), "human", humanizeBytes(info.Size()))
}

func humanizeBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// WriteAll is a convenience for dumping a batch of updates to w in one of
// the recording formats.
func WriteAll(w io.Writer, updates []md.Update, depth int, format Format) error {
	var enc encoder
	if format == FormatMsgpack {
		enc = msgpack.NewEncoder(w)
	} else {
		enc = json.NewEncoder(w)
	}
	for _, u := range updates {
		if err := enc.Encode(MakeRecord(u, depth)); err != nil {
			return err
		}
	}
	return nil
}
