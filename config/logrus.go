package config

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/almacen/inventory_backend/appctx"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = NewLogger()
}

// NewLogger builds the JSON logger. LOG_LEVEL picks the level (default info);
// LOG_FILE switches the output from stdout to a rotating file.
func NewLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(envString("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	l.SetOutput(logOutput())
	return l
}

func logOutput() io.Writer {
	file := strings.TrimSpace(os.Getenv("LOG_FILE"))
	if file == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   file,
		MaxSize:    envInt("LOG_MAX_SIZE_MB", 64),
		MaxBackups: envInt("LOG_MAX_BACKUPS", 7),
		MaxAge:     envInt("LOG_MAX_AGE_DAYS", 30),
		Compress:   true,
	}
}

// LoggerFromContext tags entries with the request correlation id when one is present.
func LoggerFromContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	if logger == nil {
		logger = GetLogger()
	}
	entry := logrus.NewEntry(logger)
	if ctx == nil {
		return entry
	}
	if id, ok := appctx.GetString(ctx, appctx.ContextKeyCorrelationId); ok && id != "" {
		entry = entry.WithField("correlation_id", id)
	}
	return entry
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	if logger == nil {
		logger = GetLogger()
	}
	logger.WithFields(fields).Error(err.Error())
}

func LogInfo(logger *logrus.Logger, moduleName string, funcName string, message string, data any) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
	}
	if data != nil {
		fields["data"] = data
	}
	if logger == nil {
		logger = GetLogger()
	}
	logger.WithFields(fields).Info(message)
}
