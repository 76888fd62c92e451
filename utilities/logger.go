package utilities

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"adaptive-quiz-backend/internal/config"
)

var (
	logMutex sync.RWMutex
	logger   = zap.NewNop()
	sugar    = logger.Sugar()
)

// InitLogger builds the process logger: JSON lines to a rotating file and,
// when enabled, human-readable lines on stdout.
func InitLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var cores []zapcore.Core

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), level))
	}

	if cfg.Console || cfg.File == "" {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	SetLogger(l)
	return l, nil
}

// SetLogger replaces the process logger.
func SetLogger(l *zap.Logger) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logger = l
	sugar = l.Sugar()
}

// Logger returns the structured process logger.
func Logger() *zap.Logger {
	logMutex.RLock()
	defer logMutex.RUnlock()
	return logger.WithOptions(zap.AddCallerSkip(-1))
}

func currentSugar() *zap.SugaredLogger {
	logMutex.RLock()
	defer logMutex.RUnlock()
	return sugar
}

func Debug(format string, v ...interface{}) {
	currentSugar().Debugf(format, v...)
}

func Info(format string, v ...interface{}) {
	currentSugar().Infof(format, v...)
}

func Warn(format string, v ...interface{}) {
	currentSugar().Warnf(format, v...)
}

func Error(format string, v ...interface{}) {
	currentSugar().Errorf(format, v...)
}

// SyncLogger flushes buffered log entries.
func SyncLogger() {
	_ = Logger().Sync()
}

type gormWriter struct{}

func (gormWriter) Printf(format string, v ...interface{}) {
	currentSugar().Debugf(format, v...)
}

// GormWriter adapts the process logger to gorm's logger.Writer.
func GormWriter() interface {
	Printf(string, ...interface{})
} {
	return gormWriter{}
}
