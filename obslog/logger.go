// Package obslog provides a thin slog.Handler wrapper for the
// structured diagnostic logging the JTAG/DMI debug transport and the
// core trap/interrupt paths emit: DMI transaction traces, JTAG FSM
// state transitions, and trap delivery. It is not a replacement for
// the teacher's plain log.Logger used elsewhere (api/service still log
// through the standard library); this is reserved for the hardware-
// protocol event stream, where a level and a set of structured
// attributes are worth more than a formatted string.
package obslog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Handler writes records as a single line of space-joined fields
// (timestamp, level, message, attribute values) to out, additionally
// echoing to stderr when debug is set or the record is above Debug
// level. Mirrors rcornwell/S370's util/logger.LogHandler.
type Handler struct {
	out   io.Writer
	inner slog.Handler
	mu    *sync.Mutex
	debug bool
}

// NewHandler returns a Handler writing to out at the level and source
// settings in opts (nil for defaults). debug, when true, additionally
// echoes every record to stderr regardless of level.
func NewHandler(out io.Writer, opts *slog.HandlerOptions, debug bool) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &Handler{
		out: out,
		inner: slog.NewTextHandler(out, &slog.HandlerOptions{
			Level:     opts.Level,
			AddSource: opts.AddSource,
		}),
		mu:    &sync.Mutex{},
		debug: debug,
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{out: h.out, inner: h.inner.WithAttrs(attrs), mu: h.mu, debug: h.debug}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, inner: h.inner.WithGroup(name), mu: h.mu, debug: h.debug}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	fields := []string{
		r.Time.Format("2006/01/02 15:04:05"),
		r.Level.String() + ":",
		r.Message,
	}
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, a.Key+"="+a.Value.String())
		return true
	})
	line := []byte(strings.Join(fields, " ") + "\n")

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.out != nil {
		_, err = h.out.Write(line)
	}
	if h.debug || r.Level > slog.LevelDebug {
		_, _ = os.Stderr.Write(line)
	}
	return err
}

// SetDebug toggles the stderr echo at runtime (e.g. from a "-verbose"
// CLI flag processed after the logger is constructed).
func (h *Handler) SetDebug(debug bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.debug = debug
}

// New builds a ready-to-use *slog.Logger over a Handler writing to out.
func New(out io.Writer, level slog.Level, debug bool) *slog.Logger {
	return slog.New(NewHandler(out, &slog.HandlerOptions{Level: level}, debug))
}
