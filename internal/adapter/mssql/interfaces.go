// Package mssql ведёт журнал вызовов RFC в таблице Microsoft SQL Server.
package mssql

import (
	"time"

	"github.com/Kargones/nwrfc/internal/conn"
)

// Коды ошибок журнала.
const (
	// ErrMSSQLConnect — ошибка подключения к серверу MSSQL
	ErrMSSQLConnect = "MSSQL.CONNECT_FAILED"
	// ErrMSSQLConfig — недопустимые параметры журнала
	ErrMSSQLConfig = "MSSQL.CONFIG_INVALID"
)

// Options содержит параметры журнала.
type Options struct {
	// DSN — строка подключения go-mssqldb
	DSN string
	// Table — имя таблицы, допускается схема: "audit.RfcCallJournal"
	Table string
	// QueueSize — ёмкость очереди записей
	QueueSize int
	// WriteTimeout — таймаут одной вставки
	WriteTimeout time.Duration
}

// Stats — счётчики журнала.
type Stats struct {
	Written uint64
	Failed  uint64
	Dropped uint64
}

// CallJournal — журнал вызовов, подключаемый к соединениям как conn.Observer.
type CallJournal interface {
	conn.Observer
	// Stats возвращает счётчики записей.
	Stats() Stats
	// Close дописывает очередь и освобождает ресурсы.
	Close() error
}
