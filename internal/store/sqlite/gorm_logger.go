package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/MrSnakeDoc/tabstash/internal/logger"
)

// DefaultSlowThreshold marks queries worth a warning.
const DefaultSlowThreshold = 200 * time.Millisecond

// GormLogger implements gorm's logger.Interface on top of logger.Logger.
// Successful queries are logged at debug level.
type GormLogger struct {
	log           logger.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger constructs a GormLogger at warn level.
func NewGormLogger(log logger.Logger, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{
		log:           log,
		level:         gormlogger.Warn,
		slowThreshold: slowThreshold,
	}
}

// LogMode implements logger.Interface.
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.level < gormlogger.Info {
		return
	}
	l.log.Info(fmt.Sprintf(msg, data...))
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.level < gormlogger.Warn {
		return
	}
	l.log.Warn(fmt.Sprintf(msg, data...))
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.level < gormlogger.Error {
		return
	}
	l.log.Error(fmt.Sprintf(msg, data...))
}

func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level == gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		if l.level >= gormlogger.Error {
			l.log.Error("gorm query error",
				logger.Duration("elapsed", elapsed),
				logger.Int64("rows", rows),
				logger.String("sql", sql),
				logger.Error(err))
		}
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		if l.level >= gormlogger.Warn {
			l.log.Warn("gorm slow query",
				logger.Duration("elapsed", elapsed),
				logger.Duration("threshold", l.slowThreshold),
				logger.Int64("rows", rows),
				logger.String("sql", sql))
		}
	default:
		l.log.Debug("gorm query",
			logger.Duration("elapsed", elapsed),
			logger.Int64("rows", rows),
			logger.String("sql", sql))
	}
}
