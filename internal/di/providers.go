package di

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Kargones/nwrfc/internal/adapter/mssql"
	"github.com/Kargones/nwrfc/internal/adapter/nwrfc"
	"github.com/Kargones/nwrfc/internal/config"
	"github.com/Kargones/nwrfc/internal/conn"
	"github.com/Kargones/nwrfc/internal/pkg/logging"
	"github.com/Kargones/nwrfc/internal/pkg/metrics"
	"github.com/Kargones/nwrfc/internal/pkg/tracing"
	"github.com/Kargones/nwrfc/internal/pool"
	"github.com/Kargones/nwrfc/internal/rfc"
)

// ErrNilConfig возвращается ProvidePool без конфигурации.
var ErrNilConfig = errors.New("di: config is nil")

// ProvideLogger создаёт Logger на основе Config.Logging.
// Пустые поля заменяются значениями logging.DefaultConfig().
func ProvideLogger(cfg *config.Config) logging.Logger {
	if cfg == nil {
		return logging.NewLogger(logging.DefaultConfig())
	}
	return logging.NewLogger(cfg.Logging.ToLogging())
}

// ProvideTraceID генерирует trace_id запуска (32 hex-символа).
func ProvideTraceID() string {
	return tracing.GenerateTraceID()
}

// ProvideMetricsCollector создаёт Collector на основе Config.Metrics.
// При отключённых метриках или ошибке создания возвращает NopCollector.
func ProvideMetricsCollector(cfg *config.Config, logger logging.Logger) metrics.Collector {
	if cfg == nil {
		return metrics.NewNopCollector()
	}

	collector, err := metrics.NewCollector(cfg.Metrics.ToMetrics(), logger)
	if err != nil {
		logger.Error("ошибка создания MetricsCollector, используется NopCollector",
			slog.String("error", err.Error()),
		)
		return metrics.NewNopCollector()
	}

	return collector
}

// ProvideTracerProvider инициализирует OTel TracerProvider и возвращает его Shutdown.
// При отключённом трейсинге или ошибке возвращает nop Shutdown.
func ProvideTracerProvider(cfg *config.Config, logger logging.Logger) tracing.Shutdown {
	if cfg == nil {
		return tracing.NewNopShutdown()
	}

	shutdown, err := tracing.NewTracerProvider(cfg.Tracing.ToTracing(), logger)
	if err != nil {
		logger.Error("ошибка инициализации tracing, используется nop provider",
			slog.String("error", err.Error()),
		)
		return tracing.NewNopShutdown()
	}

	return shutdown
}

// ProvideJournal открывает журнал вызовов в SQL Server.
// Недоступный сервер не мешает работе клиента: ошибка логируется,
// возвращается NopJournal.
func ProvideJournal(cfg *config.Config, logger logging.Logger) mssql.CallJournal {
	if cfg == nil || !cfg.Journal.Enabled {
		return mssql.NopJournal{}
	}

	jc := cfg.Journal
	ctx, cancel := context.WithTimeout(context.Background(), jc.WriteTimeout)
	defer cancel()

	journal, err := mssql.Open(ctx, mssql.Options{
		DSN:          jc.DSN,
		Table:        jc.Table,
		QueueSize:    jc.QueueSize,
		WriteTimeout: jc.WriteTimeout,
	}, logger)
	if err != nil {
		logger.Error("ошибка открытия журнала вызовов, используется NopJournal",
			slog.String("error", err.Error()),
		)
		return mssql.NopJournal{}
	}

	return journal
}

// ProvidePool создаёт пул соединений по Config.Session и Config.Pool.
// Журнал подключается к каждому соединению как наблюдатель вызовов.
func ProvidePool(
	cfg *config.Config,
	lib nwrfc.Library,
	logger logging.Logger,
	collector metrics.Collector,
	journal mssql.CallJournal,
) (*pool.Pool, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	var observers []conn.Observer
	if _, nop := journal.(mssql.NopJournal); journal != nil && !nop {
		observers = append(observers, journal)
	}

	return pool.New(lib, pool.Options{
		MaxSize:          cfg.Pool.MaxSize,
		MinIdle:          cfg.Pool.MinIdle,
		AcquireTimeout:   cfg.Pool.AcquireTimeout,
		IdleTimeout:      cfg.Pool.IdleTimeout,
		HealthCheckAfter: cfg.Pool.HealthCheckAfter,
		Conn: conn.Options{
			Params:    cfg.Session.Params(),
			Marshal:   rfc.Options{AllowTruncate: cfg.Marshal.AllowTruncate},
			Observers: observers,
		},
		Logger:    logger,
		Collector: collector,
	})
}
