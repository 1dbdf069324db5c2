// Package logging предоставляет интерфейс структурированного логирования
// и его реализации поверх log/slog.
//
// Соединения и пул пишут через Logger события открытия и закрытия соединений,
// начала и завершения вызовов и классификацию ошибок. Ключи атрибутов
// в нижнем регистре через подчёркивание: conn_id, sysid, function, duration_ms.
package logging

// Logger определяет интерфейс для структурированного логирования.
//
//	logger.Info("соединение открыто", "conn_id", id, "sysid", "NPL")
type Logger interface {
	// Debug — детальная диагностика (начало и конец каждого вызова).
	Debug(msg string, args ...any)

	// Info — значимые события (открытие и закрытие соединений).
	Info(msg string, args ...any)

	// Warn — восстановимые проблемы (исключения ABAP, ошибки закрытия).
	Warn(msg string, args ...any)

	// Error — ошибки, требующие внимания (разорванные соединения).
	Error(msg string, args ...any)

	// With возвращает Logger с добавленными атрибутами.
	With(args ...any) Logger
}
