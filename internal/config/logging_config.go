package config

import "github.com/Kargones/nwrfc/internal/pkg/logging"

// LoggingConfig содержит настройки логирования.
type LoggingConfig struct {
	// Level - уровень логирования (debug, info, warn, error)
	Level string `yaml:"level" env:"RFC_LOG_LEVEL" env-default:"info"`

	// Format - формат логов (json, text)
	Format string `yaml:"format" env:"RFC_LOG_FORMAT" env-default:"text"`

	// Output - вывод логов (stderr, file)
	Output string `yaml:"output" env:"RFC_LOG_OUTPUT" env-default:"stderr"`

	// FilePath - путь к файлу логов (если output=file)
	FilePath string `yaml:"filePath" env:"RFC_LOG_FILE_PATH"`

	// MaxSize - максимальный размер файла лога в MB
	MaxSize int `yaml:"maxSize" env:"RFC_LOG_MAX_SIZE" env-default:"100"`

	// MaxBackups - максимальное количество backup файлов
	MaxBackups int `yaml:"maxBackups" env:"RFC_LOG_MAX_BACKUPS" env-default:"3"`

	// MaxAge - максимальный возраст backup файлов в днях
	MaxAge int `yaml:"maxAge" env:"RFC_LOG_MAX_AGE" env-default:"7"`

	// Compress - сжимать ли backup файлы.
	// env-default перезаписывает явный false из YAML: отключить сжатие
	// можно только через RFC_LOG_COMPRESS=false.
	Compress bool `yaml:"compress" env:"RFC_LOG_COMPRESS" env-default:"true"`
}

// ToLogging преобразует секцию в logging.Config; пустые поля заменяются значениями по умолчанию.
func (lc LoggingConfig) ToLogging() logging.Config {
	out := logging.DefaultConfig()
	if lc.Level != "" {
		out.Level = lc.Level
	}
	if lc.Format != "" {
		out.Format = lc.Format
	}
	if lc.Output != "" {
		out.Output = lc.Output
	}
	if lc.FilePath != "" {
		out.FilePath = lc.FilePath
	}
	if lc.MaxSize > 0 {
		out.MaxSize = lc.MaxSize
	}
	if lc.MaxBackups > 0 {
		out.MaxBackups = lc.MaxBackups
	}
	if lc.MaxAge > 0 {
		out.MaxAge = lc.MaxAge
	}
	out.Compress = lc.Compress
	return out
}
