package di

import (
	"context"
	"errors"

	"github.com/Kargones/nwrfc/internal/adapter/mssql"
	"github.com/Kargones/nwrfc/internal/config"
	"github.com/Kargones/nwrfc/internal/pkg/logging"
	"github.com/Kargones/nwrfc/internal/pkg/metrics"
	"github.com/Kargones/nwrfc/internal/pkg/tracing"
	"github.com/Kargones/nwrfc/internal/pool"
)

// App содержит инициализированные зависимости клиента.
// Создаётся через Wire DI в InitializeApp().
//
// При добавлении новых зависимостей:
// 1. Добавить поле в App struct
// 2. Создать провайдер в providers.go
// 3. Добавить провайдер в ProviderSet в wire.go
// 4. Перегенерировать wire_gen.go: go generate ./internal/di/...
type App struct {
	// Config содержит конфигурацию. Передаётся извне через InitializeApp().
	Config *config.Config

	// Logger создаётся через ProvideLogger на основе Config.Logging.
	Logger logging.Logger

	// TraceID связывает логи одного запуска.
	TraceID string

	// MetricsCollector — NopCollector, если метрики отключены.
	MetricsCollector metrics.Collector

	// TracerShutdown выгружает span-ы при завершении.
	TracerShutdown tracing.Shutdown

	// Journal пишет вызовы в SQL Server; NopJournal, если журнал отключён.
	Journal mssql.CallJournal

	// Pool выдаёт соединения, настроенные по Config.Session и Config.Pool.
	Pool *pool.Pool
}

// Context возвращает ctx с trace ID приложения.
func (a *App) Context(ctx context.Context) context.Context {
	return tracing.WithTraceID(ctx, a.TraceID)
}

// Close закрывает пул, дописывает журнал, отправляет метрики и выгружает span-ы.
// Пул закрывается первым: его последние события ещё попадают в журнал и метрики.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Pool != nil {
		errs = append(errs, a.Pool.Close())
	}
	if a.Journal != nil {
		errs = append(errs, a.Journal.Close())
	}
	if a.MetricsCollector != nil {
		errs = append(errs, a.MetricsCollector.Push(ctx))
	}
	if a.TracerShutdown != nil {
		errs = append(errs, a.TracerShutdown(ctx))
	}
	return errors.Join(errs...)
}
