package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"

	"github.com/golang-cz/devslog"
	"github.com/google/uuid"
)

type Logger struct {
	l *slog.Logger
}

func Init(prod bool) Logger {
	return New(os.Stdout, prod)
}

// json output in prod, devslog otherwise
func New(w io.Writer, prod bool) Logger {
	slogOpts := &slog.HandlerOptions{}

	var handler slog.Handler
	if prod {
		handler = slog.NewJSONHandler(w, slogOpts)
	} else {
		slogOpts.Level = slog.LevelDebug

		// new logger with options
		opts := &devslog.Options{
			HandlerOptions:    slogOpts,
			MaxSlicePrintSize: 4,
			SortKeys:          true,
			NewLineAfterLog:   true,
		}
		handler = devslog.NewHandler(w, opts)
	}

	logger := slog.New(handler)

	slog.SetDefault(logger)

	return Logger{l: logger}
}

// discards everything. for tests
func Nop() Logger {
	return Logger{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// example Info("scan finished", LS_SCANNER, false, "chain", "ethereum", "to", 100)
func (l Logger) Info(message string, logStream Logstream, isTemplate bool, args ...any) {
	l.print(LL_INFO, message, logStream, callerSkip(isTemplate), args...)
}

// example Error("scan failed", LS_SCANNER, false, "chain", "ethereum", "error", err.Error())
func (l Logger) Error(message string, logStream Logstream, isTemplate bool, args ...any) {
	l.print(LL_ERROR, message, logStream, callerSkip(isTemplate), args...)
}

func (l Logger) Fatal(message string, logStream Logstream, isTemplate bool, args ...any) {
	l.print(LL_FATAL, message, logStream, callerSkip(isTemplate), args...)
}

func (l Logger) Debug(message string, args ...any) {
	l.print(LL_DEBUG, message, LS_DEBUG, 1, args...)
}

func callerSkip(isTemplate bool) int {
	if isTemplate {
		return 2
	}
	return 1
}

func (l Logger) print(ll LogLevel, message string, logStream Logstream, skip int, args ...any) {
	// print + Info/Error/Debug
	_, file, line, _ := runtime.Caller(skip + 1)

	logger := l.l
	if logger == nil {
		logger = slog.Default()
	}

	args = append(args, "stream", logStream.ToString(), "source", file+":"+strconv.Itoa(line))
	switch ll {
	case LL_ERROR:
		logger.Error(message, args...)
	case LL_INFO:
		logger.Info(message, args...)
	case LL_FATAL:
		logger.Error(message, append(args, "fatal", true)...)
	case LL_DEBUG:
		logger.Debug(message, args...)
	}
}

func AnyToStr(t any) string {
	return fmt.Sprintf("%v", t)
}

func GenErrorId() string {
	var errorId string
	uuid, err := uuid.NewRandom()
	if err != nil {
		errorId = NA
	} else {
		errorId = uuid.String()
	}
	return errorId
}
