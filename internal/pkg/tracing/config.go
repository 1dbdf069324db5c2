package tracing

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Kargones/nwrfc/internal/constants"
)

// Ошибки валидации Config.
var (
	ErrTracingEndpointRequired      = errors.New("tracing: endpoint обязателен когда tracing включён")
	ErrTracingEndpointInvalidFormat = errors.New("tracing: endpoint должен быть валидным URL с host (например http://jaeger:4318)")
	ErrTracingServiceNameRequired   = errors.New("tracing: service name обязателен")
	ErrTracingTimeoutInvalid        = errors.New("tracing: timeout должен быть положительным")
	ErrTracingSamplingRateInvalid   = errors.New("tracing: sampling rate должен быть от 0.0 до 1.0")
)

// Config — настройки экспорта span-ов вызовов RFC по OTLP HTTP.
type Config struct {
	Enabled bool
	// Endpoint — URL OTLP HTTP collector, например "http://jaeger:4318".
	Endpoint    string
	ServiceName string
	Version     string
	Environment string
	// Insecure — экспорт по HTTP вместо HTTPS.
	Insecure bool
	Timeout  time.Duration
	// SamplingRate — доля сэмплируемых трейсов от 0.0 до 1.0.
	SamplingRate float64
}

// Validate проверяет конфигурацию включённого трейсинга.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case c.Endpoint == "":
		return ErrTracingEndpointRequired
	case c.endpointHost() == "":
		return ErrTracingEndpointInvalidFormat
	case c.ServiceName == "":
		return ErrTracingServiceNameRequired
	case c.Timeout <= 0:
		return ErrTracingTimeoutInvalid
	case c.SamplingRate < 0 || c.SamplingRate > 1:
		return fmt.Errorf("%w, получено: %g", ErrTracingSamplingRateInvalid, c.SamplingRate)
	}
	return nil
}

// endpointHost возвращает host:port из Endpoint: otlptracehttp.WithEndpoint
// не принимает URL целиком.
func (c *Config) endpointHost() string {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return ""
	}
	return u.Host
}

// DefaultConfig возвращает конфигурацию по умолчанию (трейсинг выключен).
func DefaultConfig() Config {
	return Config{
		ServiceName:  constants.ServiceName,
		Version:      constants.Version,
		Environment:  "production",
		Timeout:      5 * time.Second,
		SamplingRate: 1.0,
	}
}
