// cli output of the gateway commands
package dlog

import (
	"io"
	"log/slog"
	"os"

	"github.com/golang-cz/devslog"
)

type Dlog struct {
	*slog.Logger
}

func Init() Dlog {
	return New(os.Stderr)
}

func New(w io.Writer) Dlog {
	opts := &devslog.Options{
		HandlerOptions:    &slog.HandlerOptions{Level: slog.LevelDebug},
		MaxSlicePrintSize: 16,
		SortKeys:          true,
		NewLineAfterLog:   false,
	}

	return Dlog{slog.New(devslog.NewHandler(w, opts))}
}

func (d Dlog) Log(msg string, args ...any) {
	d.Info(msg, args...)
}
