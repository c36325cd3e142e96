package logger

const NA = "N/A"

// log level
const (
	LL_ERROR LogLevel = iota
	LL_FATAL
	LL_INFO
	LL_DEBUG
)

// log stream
const (
	LS_SCANNER Logstream = iota
	LS_SWEEPER
	LS_WEBHOOKS
	LS_SCHEDULER
	LS_NATS
	LS_PAYMENTS
	LS_HTTP
	LS_FATAL
	LS_DEBUG
)

type Logstream uint8
type LogLevel uint8

var logstreams = [...]string{"scanner", "sweeper", "webhooks", "scheduler", "nats", "payments", "http", "fatal", "debug"}

func (l Logstream) ToString() string {
	if int(l) >= len(logstreams) {
		return NA
	}
	return logstreams[l]
}

func (l LogLevel) ToString() string {
	return [...]string{"ERROR", "FATAL", "INFO", "DEBUG"}[l]
}
