package conn

import (
	"context"
	"time"
)

// CallEvent описывает завершённый вызов функционального модуля.
type CallEvent struct {
	TraceID     string
	ConnID      string
	SysID       string
	Destination string
	Function    string
	Start       time.Time
	Duration    time.Duration
	// Outcome — "OK" или код ошибки apperrors.
	Outcome string
}

// Observer получает события о завершённых вызовах (журнал, аудит).
// Вызывается синхронно в контексте исполнения соединения, поэтому не должен блокироваться.
type Observer interface {
	ObserveCall(ctx context.Context, ev CallEvent)
}

// ObserverFunc адаптирует функцию к Observer.
type ObserverFunc func(ctx context.Context, ev CallEvent)

// ObserveCall вызывает f.
func (f ObserverFunc) ObserveCall(ctx context.Context, ev CallEvent) { f(ctx, ev) }
