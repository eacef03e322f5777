package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/hupe1980/debatemesh/core"
)

// JSONLRecorder appends one JSON line per event to a log file, the classic
// replayable audit format. The file is opened append-only on first write and
// kept open for the recorder's lifetime.
type JSONLRecorder struct {
	mu   sync.Mutex
	path string
	file *os.File
	max  int
}

// NewJSONLRecorder constructs a recorder writing to path.
func NewJSONLRecorder(path string, optFns ...func(o *Options)) *JSONLRecorder {
	opts := Options{MaxTextChars: defaultMaxTextChars}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxTextChars <= 0 {
		opts.MaxTextChars = defaultMaxTextChars
	}
	return &JSONLRecorder{path: path, max: opts.MaxTextChars}
}

// Record implements core.EventSink.
func (r *JSONLRecorder) Record(ev core.Event) error {
	ev.Payload = clipPayload(ev.Payload, r.max)

	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Kind, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open event log %s: %w", r.path, err)
		}
		r.file = f
	}
	if _, err := r.file.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("write event log %s: %w", r.path, err)
	}
	return nil
}

// Close closes the underlying file if it was opened.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

var _ core.EventSink = (*JSONLRecorder)(nil)
