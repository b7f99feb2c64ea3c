package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ANSI escapes used by the console handler.
const (
	escReset  = "\x1b[0m"
	escBold   = "\x1b[1m"
	escFaint  = "\x1b[2m"
	escRed    = "\x1b[31m"
	escGreen  = "\x1b[32m"
	escYellow = "\x1b[33m"
	escCyan   = "\x1b[36m"
)

// consoleHandler is a human-oriented slog.Handler for interactive runs:
//
//	15:04:05.000 INF server started port=8080
//
// Production deployments use slog's JSON handler instead; this one only
// has to be pleasant to read.
type consoleHandler struct {
	mu           *sync.Mutex
	out          io.Writer
	level        slog.Leveler
	preformatted string // attrs from WithAttrs, already rendered
	prefix       string // dotted group path for subsequent attribute keys
}

func newConsoleHandler(w io.Writer, level slog.Leveler) *consoleHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &consoleHandler{mu: &sync.Mutex{}, out: w, level: level}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b bytes.Buffer
	b.Grow(256)

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Fprintf(&b, "%s%s%s ", escFaint, ts.Format("15:04:05.000"), escReset)

	tag, color := levelTag(r.Level)
	fmt.Fprintf(&b, "%s%s%s ", color, tag, escReset)
	fmt.Fprintf(&b, "%s%s%s", escBold, r.Message, escReset)

	b.WriteString(h.preformatted)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, a, h.prefix)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(b.Bytes())
	return err
}

// WithAttrs renders the attributes once, under the group prefix in effect
// when they were added.
func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b bytes.Buffer
	b.WriteString(h.preformatted)
	for _, a := range attrs {
		writeAttr(&b, a, h.prefix)
	}
	next := *h
	next.preformatted = b.String()
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func levelTag(level slog.Level) (tag, color string) {
	switch {
	case level >= slog.LevelError:
		return "ERR", escRed
	case level >= slog.LevelWarn:
		return "WRN", escYellow
	case level >= slog.LevelInfo:
		return "INF", escGreen
	default:
		return "DBG", escCyan
	}
}

func writeAttr(b *bytes.Buffer, a slog.Attr, prefix string) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		sub := prefix
		if a.Key != "" {
			sub = prefix + a.Key + "."
		}
		for _, member := range a.Value.Group() {
			writeAttr(b, member, sub)
		}
		return
	}

	fmt.Fprintf(b, " %s%s=%s%s", escFaint, prefix+a.Key, escReset, renderValue(a.Value))
}

func renderValue(v slog.Value) string {
	s := v.String()
	if v.Kind() == slog.KindString && strings.ContainsAny(s, " \t\n\"\\") {
		return strconv.Quote(s)
	}
	return s
}
