// Package config загружает конфигурацию RFC-клиента из YAML-файла и
// переменных окружения RFC_*.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Kargones/nwrfc/internal/pkg/apperrors"
)

// PathEnv — переменная окружения с путём к файлу конфигурации.
const PathEnv = "RFC_CONFIG"

// Config — корневая конфигурация.
type Config struct {
	Session Session       `yaml:"session"`
	Pool    PoolConfig    `yaml:"pool"`
	Marshal MarshalConfig `yaml:"marshal"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Journal JournalConfig `yaml:"journal"`
}

// PoolConfig — параметры пула соединений.
type PoolConfig struct {
	MaxSize          int           `yaml:"maxSize" env:"RFC_POOL_MAX_SIZE" env-default:"10"`
	MinIdle          int           `yaml:"minIdle" env:"RFC_POOL_MIN_IDLE" env-default:"0"`
	AcquireTimeout   time.Duration `yaml:"acquireTimeout" env:"RFC_POOL_ACQUIRE_TIMEOUT" env-default:"30s"`
	IdleTimeout      time.Duration `yaml:"idleTimeout" env:"RFC_POOL_IDLE_TIMEOUT" env-default:"5m"`
	HealthCheckAfter time.Duration `yaml:"healthCheckAfter" env:"RFC_POOL_HEALTH_CHECK_AFTER" env-default:"1m"`
}

// MarshalConfig — политика преобразования параметров.
type MarshalConfig struct {
	// AllowTruncate разрешает обрезать CHAR и RAW значения до длины поля.
	AllowTruncate bool `yaml:"allowTruncate" env:"RFC_MARSHAL_ALLOW_TRUNCATE"`
}

// PathFromEnv возвращает путь из RFC_CONFIG.
func PathFromEnv() string {
	return os.Getenv(PathEnv)
}

// Load читает конфигурацию. Если path задан, файл сначала проверяется по
// встроенной JSON-схеме, затем cleanenv применяет значения по умолчанию и
// переопределения из окружения. Пустой path — только окружение.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrConfigLoad, "не удалось прочитать файл конфигурации", err)
		}
		if err := validateDocument(raw); err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrConfigValidate, "файл конфигурации не соответствует схеме", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrConfigLoad, "не удалось загрузить конфигурацию", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrConfigLoad, "не удалось прочитать переменные окружения", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrConfigValidate, "некорректная конфигурация", err)
	}
	return &cfg, nil
}

// Validate проверяет все секции и возвращает все найденные ошибки.
func (c *Config) Validate() error {
	return errors.Join(
		c.Session.Validate(),
		c.Pool.Validate(),
		validateMetricsConfig(&c.Metrics),
		validateTracingConfig(&c.Tracing),
		c.Journal.Validate(),
	)
}

// Validate проверяет параметры пула.
func (p PoolConfig) Validate() error {
	if p.MaxSize <= 0 {
		return fmt.Errorf("pool: maxSize должен быть положительным, получено %d", p.MaxSize)
	}
	if p.MinIdle < 0 || p.MinIdle > p.MaxSize {
		return fmt.Errorf("pool: minIdle должен быть от 0 до maxSize, получено %d", p.MinIdle)
	}
	if p.AcquireTimeout <= 0 {
		return fmt.Errorf("pool: acquireTimeout должен быть положительным")
	}
	if p.IdleTimeout < 0 || p.HealthCheckAfter < 0 {
		return fmt.Errorf("pool: idleTimeout и healthCheckAfter не могут быть отрицательными")
	}
	return nil
}
