package pool

import (
	"errors"
	"time"

	"github.com/juju/clock"

	"github.com/Kargones/nwrfc/internal/conn"
	"github.com/Kargones/nwrfc/internal/pkg/logging"
	"github.com/Kargones/nwrfc/internal/pkg/metrics"
	"github.com/Kargones/nwrfc/internal/rfc"
)

// Значения по умолчанию.
const (
	DefaultMaxSize        = 10
	DefaultAcquireTimeout = 30 * time.Second
)

// Ошибки валидации Options.
var (
	ErrInvalidMaxSize        = errors.New("pool: max size must be positive")
	ErrInvalidMinIdle        = errors.New("pool: min idle must be between 0 and max size")
	ErrInvalidAcquireTimeout = errors.New("pool: acquire timeout must be positive")
	ErrInvalidIdleTimeout    = errors.New("pool: idle timeout must not be negative")
)

// Options — параметры пула. Размер фиксируется при создании.
type Options struct {
	// MaxSize — максимум одновременно открытых соединений.
	MaxSize int
	// MinIdle — сколько свободных соединений держать открытыми.
	MinIdle int
	// AcquireTimeout — предельное ожидание свободного соединения.
	AcquireTimeout time.Duration
	// IdleTimeout — через сколько закрывать простаивающее соединение; 0 — никогда.
	IdleTimeout time.Duration
	// HealthCheckAfter — после какого простоя проверять соединение пингом; 0 — не проверять.
	HealthCheckAfter time.Duration

	// Conn — параметры открываемых соединений. Кэш описаний общий для пула.
	Conn conn.Options

	Bridge    Bridge
	Clock     clock.Clock
	Logger    logging.Logger
	Collector metrics.Collector
}

// Validate проверяет параметры пула.
func (o Options) Validate() error {
	if o.MaxSize <= 0 {
		return ErrInvalidMaxSize
	}
	if o.MinIdle < 0 || o.MinIdle > o.MaxSize {
		return ErrInvalidMinIdle
	}
	if o.AcquireTimeout <= 0 {
		return ErrInvalidAcquireTimeout
	}
	if o.IdleTimeout < 0 || o.HealthCheckAfter < 0 {
		return ErrInvalidIdleTimeout
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.MaxSize == 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.AcquireTimeout == 0 {
		o.AcquireTimeout = DefaultAcquireTimeout
	}
	if o.Bridge == nil {
		o.Bridge = ThreadBridge{}
	}
	if o.Clock == nil {
		o.Clock = clock.WallClock
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
	if o.Collector == nil {
		o.Collector = metrics.NewNopCollector()
	}
	if o.Conn.Cache == nil {
		o.Conn.Cache = rfc.NewDescriptorCache()
	}
	if o.Conn.Logger == nil {
		o.Conn.Logger = o.Logger
	}
	if o.Conn.Collector == nil {
		o.Conn.Collector = o.Collector
	}
	if o.Conn.Clock == nil {
		o.Conn.Clock = o.Clock
	}
	return o
}
