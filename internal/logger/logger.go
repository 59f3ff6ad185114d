// Package logger provides prefixed, asynchronous logging so hot paths
// never block on log I/O, plus duration logging for slow calls.
package logger

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// queueSize bounds the async buffer; when it fills, lines are dropped
// instead of blocking the caller.
const queueSize = 8192

// slowCallThreshold is the minimum duration LogDuration reports at the
// info level.
const slowCallThreshold = 100 * time.Millisecond

type level int

const (
	levelDebug level = iota
	levelInfo
)

var (
	prefix   string
	logLevel = levelInfo
	queue    chan string
	once     sync.Once
)

func start() {
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "trace":
		logLevel = levelDebug
	}
	queue = make(chan string, queueSize)
	go func() {
		for line := range queue {
			log.Print(line)
		}
	}()
}

func enqueue(line string) {
	once.Do(start)
	select {
	case queue <- line:
	default:
	}
}

// SetPrefix tags all subsequent log lines (e.g. "chatd", "devstub").
func SetPrefix(p string) {
	prefix = p
}

func tag() string {
	if prefix == "" {
		return ""
	}
	return "[" + prefix + "] "
}

// Info logs with the service prefix (asynchronously).
func Info(v ...any) {
	enqueue(tag() + fmt.Sprint(v...))
}

// Infof formats and logs with the service prefix (asynchronously).
func Infof(format string, v ...any) {
	enqueue(tag() + fmt.Sprintf(format, v...))
}

// Debugf logs only when LOG_LEVEL=debug. Used for expected noise such
// as dropped malformed realtime frames.
func Debugf(format string, v ...any) {
	once.Do(start)
	if logLevel > levelDebug {
		return
	}
	enqueue(tag() + "DEBUG: " + fmt.Sprintf(format, v...))
}

// Error logs an error with the service prefix (asynchronously).
func Error(v ...any) {
	enqueue(tag() + "ERROR: " + fmt.Sprint(v...))
}

// Errorf formats and logs an error with the service prefix (asynchronously).
func Errorf(format string, v ...any) {
	enqueue(tag() + "ERROR: " + fmt.Sprintf(format, v...))
}

// LogDuration logs a function's elapsed time in milliseconds. At
// LOG_LEVEL=info only calls slower than 100ms are logged; at debug,
// all of them.
func LogDuration(fn string, start time.Time) {
	elapsed := time.Since(start)
	if logLevel == levelDebug || elapsed >= slowCallThreshold {
		enqueue(fmt.Sprintf("%sfn=%s duration_ms=%d", tag(), fn, elapsed.Milliseconds()))
	}
}

// DeferLogDuration is for defer sites: defer logger.DeferLogDuration("Name", time.Now())().
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}
