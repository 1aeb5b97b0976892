package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Loggers per audience. They start as no-ops so packages and tests can log
// before InitLoggers runs.
var (
	ErrorLogger    = zap.NewNop()
	AuditLogger    = zap.NewNop()
	RequestLogger  = zap.NewNop()
	SecurityLogger = zap.NewNop()
	SystemLogger   = zap.NewNop()
)

func newLogger(filePath string, level zapcore.Level) *zap.Logger {
	ws := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    50, // MB
		MaxBackups: 7,
		MaxAge:     14, // days
		Compress:   true,
	})

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		ws,
		level,
	)
	return zap.New(core, zap.AddCaller())
}

// InitLoggers points every logger at its own rotated file under dir.
func InitLoggers(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	ErrorLogger = newLogger(filepath.Join(dir, "errors.log"), zapcore.ErrorLevel)
	AuditLogger = newLogger(filepath.Join(dir, "audit.log"), zapcore.InfoLevel)
	RequestLogger = newLogger(filepath.Join(dir, "request.log"), zapcore.InfoLevel)
	SecurityLogger = newLogger(filepath.Join(dir, "security.log"), zapcore.WarnLevel)
	SystemLogger = newLogger(filepath.Join(dir, "system.log"), zapcore.InfoLevel)
	return nil
}

// InitNop resets all loggers to no-ops.
func InitNop() {
	ErrorLogger = zap.NewNop()
	AuditLogger = zap.NewNop()
	RequestLogger = zap.NewNop()
	SecurityLogger = zap.NewNop()
	SystemLogger = zap.NewNop()
}

func SyncLoggers() {
	_ = ErrorLogger.Sync()
	_ = AuditLogger.Sync()
	_ = RequestLogger.Sync()
	_ = SecurityLogger.Sync()
	_ = SystemLogger.Sync()
}
