// Package mssqltest предоставляет тестовые утилиты для пакета mssql:
// *sql.DB поверх sqlmock и ожидания вставок в журнал.
package mssqltest

import (
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Kargones/nwrfc/internal/conn"
)

// NewMock создаёт *sql.DB поверх sqlmock. По завершении теста проверяет,
// что все ожидания выполнены, и закрывает db.
func NewMock(t testing.TB) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("ошибка создания sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("невыполненные ожидания sqlmock: %v", err)
		}
		_ = db.Close()
	})
	return db, mock
}

// ExpectInsert ожидает вставку события ev в таблицу quotedTable ("[dbo].[T]").
// StartedAt не сравнивается.
func ExpectInsert(mock sqlmock.Sqlmock, quotedTable string, ev conn.CallEvent) *sqlmock.ExpectedExec {
	return mock.ExpectExec(regexp.QuoteMeta("INSERT INTO "+quotedTable)).
		WithArgs(
			ev.TraceID,
			ev.ConnID,
			ev.SysID,
			ev.Destination,
			ev.Function,
			sqlmock.AnyArg(),
			ev.Duration.Milliseconds(),
			ev.Outcome,
		)
}
