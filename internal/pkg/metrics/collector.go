// Package metrics предоставляет сбор метрик вызовов RFC и пула соединений
// с отправкой в Prometheus Pushgateway.
//
// Реализации:
//   - PrometheusCollector — регистрирует метрики в собственном registry
//   - NopCollector — при отключённых метриках
package metrics

import (
	"context"
	"time"
)

// Исходы операций, используемые как значение label outcome.
const (
	OutcomeOK      = "OK"
	OutcomeTimeout = "TIMEOUT"
)

// Collector определяет интерфейс для сбора метрик.
type Collector interface {
	// RecordCall записывает завершение вызова функционального модуля.
	// outcome — OutcomeOK или код ошибки apperrors.
	RecordCall(function, sysID string, duration time.Duration, outcome string)

	// RecordAcquire записывает ожидание соединения в пуле.
	RecordAcquire(wait time.Duration, outcome string)

	// RecordPoolSize записывает текущее число выданных и простаивающих соединений.
	RecordPoolSize(inUse, idle int)

	// RecordDiscard записывает удаление соединения из пула.
	// reason — broken, idle, health, closed.
	RecordDiscard(reason string)

	// Push отправляет метрики в Pushgateway.
	// Всегда возвращает nil: ошибки отправки логируются внутри реализации.
	Push(ctx context.Context) error
}
