package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	// sqlLogLimit keeps logged SQL readable; longer statements are clipped.
	sqlLogLimit = 200
	// slowQueryThreshold promotes a query to a warning.
	slowQueryThreshold = 200 * time.Millisecond
)

// queryLogger bridges GORM's logger.Interface onto slog. Level filtering
// stays with slog, so when the configured level is above Debug the SQL
// formatting callback never runs.
type queryLogger struct{}

func (l queryLogger) LogMode(logger.LogLevel) logger.Interface { return l }

func (l queryLogger) Info(_ context.Context, msg string, args ...any) {
	slog.Info(fmt.Sprintf(msg, args...))
}

func (l queryLogger) Warn(_ context.Context, msg string, args ...any) {
	slog.Warn(fmt.Sprintf(msg, args...))
}

func (l queryLogger) Error(_ context.Context, msg string, args ...any) {
	slog.Error(fmt.Sprintf(msg, args...))
}

// Trace runs after every SQL operation. ErrRecordNotFound is the normal
// "no rows" outcome of First() and is treated as success. Slow queries are
// warned about even when debug logging is off.
func (l queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		slog.Error("query failed",
			"sql", clipSQL(sql),
			"rows", rows,
			"duration", elapsed,
			"error", err,
		)
	case elapsed >= slowQueryThreshold:
		sql, rows := fc()
		slog.Warn("slow query",
			"sql", clipSQL(sql),
			"rows", rows,
			"duration", elapsed,
		)
	case slog.Default().Enabled(ctx, slog.LevelDebug):
		sql, rows := fc()
		slog.Debug("query",
			"sql", clipSQL(sql),
			"rows", rows,
			"duration", elapsed,
		)
	}
}

func clipSQL(sql string) string {
	if len(sql) <= sqlLogLimit {
		return sql
	}
	return sql[:sqlLogLimit] + "..."
}
