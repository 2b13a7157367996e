// internal/logger/logger.go
package logger

import (
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05 MST"

// Logger configuration
type Config struct {
	LogsDirectory string
	LogFileFormat string
	TimeZone      string
	// Quiet drops the stdout copy, leaving only the log file.
	Quiet bool
}

var (
	initialized int32 // 0 = not initialized, 1 = initialized
	logger      *log.Logger
	logFile     *os.File
	timeZone    = time.Local
	logFilePath string
	mu          sync.Mutex
)

// SetupLogger initializes the logger with file and console output.
func SetupLogger(config Config) error {
	mu.Lock()
	defer mu.Unlock()

	if atomic.LoadInt32(&initialized) == 1 {
		return fmt.Errorf("logger already initialized")
	}

	if config.TimeZone == "" {
		config.TimeZone = "Local"
	}
	loc, err := time.LoadLocation(config.TimeZone)
	if err != nil {
		return fmt.Errorf("failed to load time zone '%s': %w", config.TimeZone, err)
	}
	timeZone = loc

	if err := os.MkdirAll(config.LogsDirectory, 0775); err != nil {
		return fmt.Errorf("failed to create logs directory '%s': %w", config.LogsDirectory, err)
	}

	logFileName := fmt.Sprintf(config.LogFileFormat, time.Now().In(loc).Format("2006-01-02"))
	if filepath.IsAbs(logFileName) {
		logFilePath = logFileName
	} else {
		logFilePath = filepath.Join(config.LogsDirectory, logFileName)
	}

	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0664)
	if err != nil {
		return fmt.Errorf("failed to open log file '%s': %w", logFilePath, err)
	}
	logFile = f

	var out io.Writer = f
	if !config.Quiet {
		out = io.MultiWriter(os.Stdout, f)
	}
	logger = log.New(out, "", 0)

	atomic.StoreInt32(&initialized, 1)
	logger.Printf("[INFO] %s - Logger initialized, writing to %s", time.Now().In(loc).Format(timestampLayout), logFilePath)
	return nil
}

// Close flushes and releases the log file. Later calls fall back to the standard logger.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if atomic.LoadInt32(&initialized) == 0 {
		return nil
	}
	atomic.StoreInt32(&initialized, 0)
	logger = nil
	return logFile.Close()
}

func GetLogFilePath() string {
	return logFilePath
}

func IsInitialized() bool {
	return atomic.LoadInt32(&initialized) == 1
}

func LogMessage(level string, message string, v ...interface{}) {
	formattedMsg := fmt.Sprintf(message, v...)

	mu.Lock()
	l, loc := logger, timeZone
	mu.Unlock()
	if l == nil {
		log.Printf("[%s] %s", level, formattedMsg)
		return
	}

	_, file, line, _ := runtime.Caller(2)
	timestamp := time.Now().In(loc).Format(timestampLayout)
	l.Printf("[%s] %s %s:%d - %s", level, timestamp, filepath.Base(file), line, formattedMsg)
}

func LogInfo(message string, v ...interface{})  { LogMessage("INFO", message, v...) }
func LogWarn(message string, v ...interface{})  { LogMessage("WARN", message, v...) }
func LogError(message string, v ...interface{}) { LogMessage("ERROR", message, v...) }
func LogFatal(message string, v ...interface{}) {
	LogMessage("FATAL", message, v...)
	os.Exit(1)
}

func LogHTTPError(r *http.Request, status int, err error) {
	LogError("HTTP %d error for %s %s from %s: %v", status, r.Method, r.URL.Path, GetClientIP(r), err)
}

func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
