package xlog

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	mock "github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

// The go-sqlite driver probes the sqlite version right after connect,
// so the mock has to answer that query first.
func newGormSqlmock(logger glogger.Interface) (*gorm.DB, mock.Sqlmock, error) {
	db, smock, err := mock.New()
	if err != nil {
		return nil, nil, err
	}
	smock.ExpectQuery(`select sqlite_version()`).
		WithArgs().
		WillReturnRows(smock.NewRows([]string{"sqlite_version()"}).
			AddRow("3.38.0"))
	gdb, err := gorm.Open(sqlite.Dialector{
		DriverName: sqlite.DriverName,
		Conn:       db,
	}, &gorm.Config{
		Logger: logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return gdb, smock, nil
}

func TestGormXLogger_Sqlite3(t *testing.T) {
	parentLogger := NewXLogger(
		WithXLoggerLevel(LogLevelDebug),
		WithXLoggerEncoder(JSON),
		WithXLoggerWriter(StdOut),
		WithXLoggerConsoleCore(),
		WithXLoggerTimeEncoder(zapcore.ISO8601TimeEncoder),
		WithXLoggerLevelEncoder(zapcore.CapitalLevelEncoder),
	)
	logger := NewGormXLogger(parentLogger,
		WithGormXLoggerIgnoreRecord404Err(),
		WithGormXLoggerLogLevel(glogger.Info),
		WithGormXLoggerSlowThreshold(200*time.Millisecond),
	)

	db, smock, err := newGormSqlmock(logger)
	require.NoError(t, err)

	smock.ExpectBegin().WillReturnError(nil)
	smock.ExpectExec(`SAVEPOINT before-load`).WithArgs().WillReturnResult(mock.NewResult(0, 0))
	smock.ExpectCommit().WillReturnError(nil)

	tx := db.Begin(&sql.TxOptions{
		Isolation: sql.LevelDefault,
		ReadOnly:  false,
	}).SavePoint("before-load")
	require.NoError(t, tx.Commit().Error)
	require.NoError(t, smock.ExpectationsWereMet())
	_ = parentLogger.Sync()
}

func TestGormXLogger_AllAPIs(t *testing.T) {
	parentLogger := NewXLogger(
		WithXLoggerLevel(LogLevelDebug),
		WithXLoggerEncoder(JSON),
		WithXLoggerWriter(StdOut),
		WithXLoggerConsoleCore(),
		WithXLoggerTimeEncoder(zapcore.ISO8601TimeEncoder),
		WithXLoggerLevelEncoder(zapcore.CapitalLevelEncoder),
	)
	logger := NewGormXLogger(parentLogger,
		WithGormXLoggerIgnoreRecord404Err(),
		WithGormXLoggerLogLevel(glogger.Info),
		WithGormXLoggerParameterizedQueries(),
	)

	require.Equal(t, zapcore.ErrorLevel, getLogLevelOrDefaultForGorm(glogger.Error))
	require.Equal(t, zapcore.WarnLevel, getLogLevelOrDefaultForGorm(glogger.Warn))
	require.Equal(t, zapcore.InfoLevel, getLogLevelOrDefaultForGorm(glogger.Info))
	require.Equal(t, zapcore.DebugLevel, getLogLevelOrDefaultForGorm(glogger.Silent))

	const stmt = "insert into nodes values(7,'red')"
	logger.Info(context.TODO(), "sql %s", stmt)
	logger.Warn(context.TODO(), "sql %s", stmt)
	logger.Error(context.TODO(), "sql %s", stmt)

	// Fast traces, with and without affected rows, then with an error.
	logger.Trace(context.TODO(), time.Now(), func() (string, int64) {
		return stmt, -1
	}, nil)
	logger.Trace(context.TODO(), time.Now(), func() (string, int64) {
		return stmt, 1
	}, nil)
	logger.Trace(context.TODO(), time.Now(), func() (string, int64) {
		return stmt, -1
	}, errors.New("insert error"))
	logger.Trace(context.TODO(), time.Now(), func() (string, int64) {
		return stmt, 1
	}, errors.New("insert error"))

	// Backdated begins cross the default slow threshold.
	logger.Trace(context.TODO(), time.Now().Add(-600*time.Millisecond), func() (string, int64) {
		return stmt, -1
	}, nil)
	logger.Trace(context.TODO(), time.Now().Add(-550*time.Millisecond), func() (string, int64) {
		return stmt, 1
	}, nil)
	_ = parentLogger.Sync()

	// Silent mode swallows even the slow trace.
	logger.LogMode(glogger.Silent).Trace(context.TODO(), time.Now().Add(-500*time.Millisecond), func() (string, int64) {
		return stmt, 1
	}, nil)
	_ = parentLogger.Sync()
}
