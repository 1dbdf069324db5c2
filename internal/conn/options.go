package conn

import (
	"github.com/juju/clock"

	"github.com/Kargones/nwrfc/internal/adapter/nwrfc"
	"github.com/Kargones/nwrfc/internal/pkg/logging"
	"github.com/Kargones/nwrfc/internal/pkg/metrics"
	"github.com/Kargones/nwrfc/internal/rfc"
)

// Options — параметры открытия соединения.
type Options struct {
	// Params — параметры логона (ashost, sysnr, client, user, passwd, lang или dest).
	Params nwrfc.ConnectionParams
	// Cache — кэш описаний; пул разделяет один кэш между соединениями.
	// nil — соединение создаёт собственный.
	Cache *rfc.DescriptorCache
	// Marshal — политика маршалинга по умолчанию.
	Marshal rfc.Options
	// Logger; nil — NopLogger.
	Logger logging.Logger
	// Collector; nil — NopCollector.
	Collector metrics.Collector
	// Observers получают CallEvent после каждого вызова.
	Observers []Observer
	// Clock; nil — clock.WallClock.
	Clock clock.Clock
}

func (o Options) withDefaults() Options {
	o.Params = o.Params.Clone()
	if o.Cache == nil {
		o.Cache = rfc.NewDescriptorCache()
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
	if o.Collector == nil {
		o.Collector = metrics.NewNopCollector()
	}
	if o.Clock == nil {
		o.Clock = clock.WallClock
	}
	return o
}

// CallOption настраивает отдельный вызов.
type CallOption func(*rfc.Options)

// WithTruncation разрешает обрезать CHAR и RAW значения до длины поля.
func WithTruncation() CallOption {
	return func(o *rfc.Options) { o.AllowTruncate = true }
}
