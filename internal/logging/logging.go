package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// New builds the process logger. format is json or text; json output is
// colored by level when w is a terminal.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(NewColorHandler(w, opts))
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ColorHandler wraps a JSON handler and colors records by level on terminals.
type ColorHandler struct {
	slog.Handler
	out       io.Writer
	isColored bool
}

func NewColorHandler(out io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	isColored := false
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		isColored = true
	}
	return &ColorHandler{
		Handler:   slog.NewJSONHandler(out, opts),
		out:       out,
		isColored: isColored,
	}
}

func (h *ColorHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.isColored {
		switch {
		case r.Level >= slog.LevelError:
			fmt.Fprint(h.out, "\033[31m")
		case r.Level >= slog.LevelWarn:
			fmt.Fprint(h.out, "\033[33m")
		case r.Level < slog.LevelInfo:
			fmt.Fprint(h.out, "\033[34m")
		}
	}
	err := h.Handler.Handle(ctx, r)
	if h.isColored {
		fmt.Fprint(h.out, "\033[0m")
	}
	return err
}

func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ColorHandler{Handler: h.Handler.WithAttrs(attrs), out: h.out, isColored: h.isColored}
}

func (h *ColorHandler) WithGroup(name string) slog.Handler {
	return &ColorHandler{Handler: h.Handler.WithGroup(name), out: h.out, isColored: h.isColored}
}
