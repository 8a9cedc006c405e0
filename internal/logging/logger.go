package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnvVar names the level used when Initialize is given none.
// Empty or unset means no log output at all.
const LogLevelEnvVar = "SSDPD_LOG_LEVEL"

// dumpLimit caps the bytes included in datagram dumps
const dumpLimit = 256

var (
	logger *zap.Logger
	output = "stderr"
)

// Initialize builds the global logger at level, falling back to
// SSDPD_LOG_LEVEL. With neither set the logger discards everything.
// Unrecognised levels log at info.
func Initialize(level string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = strings.TrimSpace(os.Getenv(LogLevelEnvVar))
	}
	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	sink, _, err := zap.Open(output)
	if err != nil {
		return fmt.Errorf("failed to open log output %q: %w", output, err)
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	if output == "stderr" || output == "stdout" {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), sink, zap.NewAtomicLevelAt(lvl))
	logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	return nil
}

// InitializeFromEnv is Initialize with the level taken only from the environment
func InitializeFromEnv() error {
	return Initialize("")
}

// SetOutput changes where later Initialize calls write: "stdout", "stderr" or
// a file path. The watch view needs a file so log lines stay off the screen.
func SetOutput(path string) {
	if path == "" {
		path = "stderr"
	}
	output = path
}

// SetLogger replaces the global logger
func SetLogger(l *zap.Logger) {
	logger = l
}

// GetLogger returns the global logger, a no-op one until Initialize runs
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogDatagram records one UDP payload with hex and ASCII dumps. It is a no-op
// unless debug is enabled, since the dumps are costly to build.
func LogDatagram(direction, addr string, data []byte) {
	l := GetLogger()
	if !l.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	l.Debug("SSDP datagram",
		zap.String("direction", direction),
		zap.String("addr", addr),
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

// LogSocketEvent records a multicast socket transition (joined, recreated, left)
func LogSocketEvent(event string, fields ...zap.Field) {
	Info("Socket event", append([]zap.Field{zap.String("event", event)}, fields...)...)
}

// LogHTTPRequest records one request to the status server
func LogHTTPRequest(remoteAddr, method, path string, status int) {
	Debug("HTTP request",
		zap.String("remote_addr", remoteAddr),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
	)
}

// LogWebSocketMessage records a frame exchanged with a feed client
func LogWebSocketMessage(remoteAddr, direction string, frameType int, data []byte) {
	Debug("WebSocket frame",
		zap.String("remote_addr", remoteAddr),
		zap.String("direction", direction),
		zap.String("frame", frameName(frameType)),
		zap.Int("length", len(data)),
	)
}

// frameName maps RFC 6455 opcodes to names
func frameName(op int) string {
	names := map[int]string{1: "text", 2: "binary", 8: "close", 9: "ping", 10: "pong"}
	if n, ok := names[op]; ok {
		return n
	}
	return fmt.Sprintf("opcode(%d)", op)
}

func hexDump(data []byte) string {
	if len(data) > dumpLimit {
		return hex.EncodeToString(data[:dumpLimit]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	if len(data) > dumpLimit {
		data = data[:dumpLimit]
	}
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if c < 0x20 || c > 0x7e {
			c = '.'
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Sync flushes buffered entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
