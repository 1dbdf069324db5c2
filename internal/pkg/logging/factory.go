package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Kargones/nwrfc/internal/constants"
)

// Redacted заменяет значения секретных атрибутов.
const Redacted = "***"

// secretKeys — атрибуты, значения которых никогда не попадают в лог:
// пароль и SSO-билеты SAP, строка подключения журнала.
var secretKeys = map[string]bool{
	constants.ParamPasswd: true,
	"password":            true,
	"mysapsso2":           true,
	"x509cert":            true,
	"dsn":                 true,
}

// NewLogger создаёт Logger по config. При output="file" пишет в файл с
// ротацией через lumberjack; если файл недоступен, пишет в stderr и
// сообщает об этом первой записью.
func NewLogger(config Config) Logger {
	w, err := openWriter(config)
	logger := NewLoggerWithWriter(config, w)
	if err != nil {
		logger.Warn("логирование в stderr вместо настроенного вывода", "error", err.Error())
	}
	return logger
}

func openWriter(config Config) (io.Writer, error) {
	switch config.Output {
	case OutputStderr, "":
		return os.Stderr, nil
	case OutputFile:
		return newFileWriter(config)
	default:
		return os.Stderr, fmt.Errorf("неизвестный logging output %q", config.Output)
	}
}

// newFileWriter создаёт директорию для файла логов и lumberjack.Logger.
func newFileWriter(config Config) (io.Writer, error) {
	if config.FilePath == "" {
		return os.Stderr, errors.New("output=file, но filePath не задан")
	}
	if dir := filepath.Dir(config.FilePath); dir != "." {
		if err := os.MkdirAll(dir, constants.DirPermStandard); err != nil {
			return os.Stderr, fmt.Errorf("не удалось создать директорию логов %q: %w", dir, err)
		}
	}
	return &lumberjack.Logger{
		Filename:   config.FilePath,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}, nil
}

// NewLoggerWithWriter создаёт Logger, пишущий в w. Все записи получают
// атрибут service, секретные атрибуты маскируются.
func NewLoggerWithWriter(config Config, w io.Writer) Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(config.Level),
		AddSource:   config.AddSource,
		ReplaceAttr: redactAttr,
	}
	var handler slog.Handler
	if config.Format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return NewSlogAdapter(slog.New(handler).With("service", constants.ServiceName))
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, Redacted)
	}
	return a
}

func parseLevel(level string) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
