package metrics

import (
	"net/url"
	"os"
	"time"

	"github.com/Kargones/nwrfc/internal/pkg/logging"
)

// Config — отправка метрик пула и RFC-вызовов в Prometheus Pushgateway.
// Пустой InstanceLabel заменяется hostname.
type Config struct {
	Enabled        bool
	PushgatewayURL string
	JobName        string
	Timeout        time.Duration
	InstanceLabel  string
}

// Validate проверяет настройки включённой отправки.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case c.PushgatewayURL == "":
		return ErrPushgatewayURLRequired
	case !isHTTPURL(c.PushgatewayURL):
		return ErrPushgatewayURLInvalid
	case c.JobName == "":
		return ErrJobNameRequired
	case c.Timeout <= 0:
		return ErrInvalidTimeout
	}
	return nil
}

// instance возвращает значение label instance для группировки в Pushgateway.
func (c *Config) instance(logger logging.Logger) string {
	if c.InstanceLabel != "" {
		return c.InstanceLabel
	}
	hostname, err := os.Hostname()
	if err != nil {
		logger.Warn("hostname недоступен, instance=unknown", "error", err.Error())
		return "unknown"
	}
	return hostname
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// DefaultConfig возвращает выключенную конфигурацию с job "nwrfc".
func DefaultConfig() Config {
	return Config{JobName: "nwrfc", Timeout: 10 * time.Second}
}
