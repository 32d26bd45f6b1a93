package logging

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Entry is one record kept by a [RingHandler].
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]string
}

// ring is the storage shared by a RingHandler and its derived handlers.
type ring struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
}

// RingHandler is a slog.Handler that keeps the most recent records in memory.
// Playback owns the terminal, so without a log file this is where logs go.
type RingHandler struct {
	ring   *ring
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewRingHandler returns a handler retaining up to maxEntries records
// (default 1000) at or above level.
func NewRingHandler(maxEntries int, level slog.Leveler) *RingHandler {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &RingHandler{
		ring:  &ring{max: maxEntries, entries: make([]Entry, 0, maxEntries)},
		level: level,
	}
}

func (h *RingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *RingHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]string, len(h.attrs)+r.NumAttrs())
	prefix := ""
	for _, g := range h.groups {
		prefix += g + "."
	}
	for _, a := range h.attrs {
		addAttr(attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(attrs, prefix, a)
		return true
	})

	h.ring.mu.Lock()
	defer h.ring.mu.Unlock()
	if len(h.ring.entries) == h.ring.max {
		copy(h.ring.entries, h.ring.entries[1:])
		h.ring.entries = h.ring.entries[:len(h.ring.entries)-1]
	}
	h.ring.entries = append(h.ring.entries, Entry{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
		Attrs:   attrs,
	})
	return nil
}

func addAttr(dst map[string]string, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			addAttr(dst, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	dst[prefix+a.Key] = a.Value.String()
}

func (h *RingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	prefix := ""
	for _, g := range h.groups {
		prefix += g + "."
	}
	h2.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		if prefix != "" {
			a = slog.Group(prefix[:len(prefix)-1], a)
		}
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

func (h *RingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(slices.Clone(h.groups), name)
	return &h2
}

// Entries returns a copy of the retained records, oldest first.
func (h *RingHandler) Entries() []Entry {
	h.ring.mu.RLock()
	defer h.ring.mu.RUnlock()
	return slices.Clone(h.ring.entries)
}

var _ slog.Handler = (*RingHandler)(nil)
