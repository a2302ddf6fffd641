// Package eventlog reads and writes gzip-compressed gob streams of detector
// events, the on-disk replay format used by the CLI and tools.
package eventlog

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fmd-data/sharing.report/internal/fmd"
)

// formatVersion is bumped whenever the record layout changes.
const formatVersion = 1

// header opens every log and lets readers reject incompatible files early.
type header struct {
	Magic   string
	Version int
	Comment string
}

const magic = "fmd-eventlog"

// Writer appends events to a gzip+gob stream.
type Writer struct {
	gz  *gzip.Writer
	enc *gob.Encoder
	n   int
}

// NewWriter writes a log header to w and returns a Writer. comment is a
// free-form provenance note stored in the header.
func NewWriter(w io.Writer, comment string) (*Writer, error) {
	gz := gzip.NewWriter(w)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(header{Magic: magic, Version: formatVersion, Comment: comment}); err != nil {
		gz.Close()
		return nil, fmt.Errorf("write event log header: %w", err)
	}
	return &Writer{gz: gz, enc: enc}, nil
}

// Write appends one event.
func (w *Writer) Write(e *fmd.Event) error {
	if err := w.enc.Encode(e.Record()); err != nil {
		return fmt.Errorf("encode event %d: %w", e.Sequence, err)
	}
	w.n++
	return nil
}

// Count returns the number of events written.
func (w *Writer) Count() int { return w.n }

// Close flushes the compressed stream. The underlying writer is not closed.
func (w *Writer) Close() error {
	return w.gz.Close()
}

// Reader iterates over the events of a log stream.
type Reader struct {
	gz      *gzip.Reader
	dec     *gob.Decoder
	comment string
}

// NewReader validates the log header and returns a Reader.
func NewReader(r io.Reader) (*Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	dec := gob.NewDecoder(gz)
	var h header
	if err := dec.Decode(&h); err != nil {
		gz.Close()
		return nil, fmt.Errorf("read event log header: %w", err)
	}
	if h.Magic != magic {
		gz.Close()
		return nil, fmt.Errorf("not an event log (magic %q)", h.Magic)
	}
	if h.Version != formatVersion {
		gz.Close()
		return nil, fmt.Errorf("unsupported event log version %d (want %d)", h.Version, formatVersion)
	}
	return &Reader{gz: gz, dec: dec, comment: h.Comment}, nil
}

// Comment returns the provenance note from the log header.
func (r *Reader) Comment() string { return r.comment }

// Next returns the next event, or io.EOF at the end of the stream.
func (r *Reader) Next() (*fmd.Event, error) {
	var rec fmd.EventRecord
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return fmd.FromRecord(rec), nil
}

// Close releases the decompressor. The underlying reader is not closed.
func (r *Reader) Close() error { return r.gz.Close() }

// WriteFile writes all events to path, creating or truncating it.
func WriteFile(path, comment string, events []*fmd.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create event log: %w", err)
	}
	defer f.Close()

	w, err := NewWriter(f, comment)
	if err != nil {
		return err
	}
	for _, e := range events {
		if err := w.Write(e); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("flush event log: %w", err)
	}
	return f.Close()
}

// ReadFile loads every event from a log file. Intended for tools and tests;
// the pipeline streams via Reader instead.
func ReadFile(path string) ([]*fmd.Event, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	r, err := NewReader(f)
	if err != nil {
		return nil, "", err
	}
	defer r.Close()

	var events []*fmd.Event
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, r.Comment(), nil
		}
		if err != nil {
			return nil, "", err
		}
		events = append(events, e)
	}
}
