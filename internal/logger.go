package internal

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"paygate/entity"
	"paygate/services"
)

// Logger implements services.LogHandler on top of zap. When a database is
// set, every record above debug level is also mirrored into the store.
type Logger struct {
	module   string
	database services.Database
	log      *zap.Logger
}

// NewLogger creates a logger for the named module. Debug messages are only
// emitted when debug is enabled.
func NewLogger(module string, debug bool, database services.Database) *Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	return &Logger{
		module:   module,
		database: database,
		log:      zap.New(core).With(zap.String("module", module)),
	}
}

func (l *Logger) Debug(message string) {
	l.log.Debug(message)
}

func (l *Logger) Info(message string) {
	l.log.Info(message)
	l.persist("INFO", message, nil)
}

func (l *Logger) Warn(message string) {
	l.log.Warn(message)
	l.persist("WARN", message, nil)
}

func (l *Logger) Error(message string, err error) {
	l.log.Error(message, zap.Error(err))
	l.persist("ERROR", message, err)
}

func (l *Logger) persist(level, message string, err error) {
	if l.database == nil {
		return
	}
	record := &entity.LogMessage{
		Time:   time.Now(),
		Level:  level,
		Module: l.module,
		Text:   message,
	}
	if err != nil {
		record.Error = err.Error()
	}
	// the log sink must never break the caller
	_ = l.database.WriteLogMessage(record)
}
