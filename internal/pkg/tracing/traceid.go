// Package tracing предоставляет trace ID для корреляции логов вызовов RFC
// и интеграцию с OpenTelemetry: настройку TracerProvider и span на каждый вызов
// функционального модуля.
//
// Формат trace ID: 32-символьный hex string (16 байт), совместимый с W3C Trace Context:
//
//	"a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"
package tracing

import (
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// fallbackCounter обеспечивает уникальность fallback ID.
var fallbackCounter atomic.Uint64

// GenerateTraceID генерирует trace ID из случайного UUID v4.
// При недоступности источника случайности возвращает ID из времени и счётчика.
func GenerateTraceID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fallbackTraceID()
	}
	return hex.EncodeToString(id[:])
}

// fallbackTraceID: %016x для timestamp и счётчика всегда даёт ровно 32 символа.
func fallbackTraceID() string {
	counter := fallbackCounter.Add(1)
	timestamp := uint64(time.Now().UnixNano())
	return fmt.Sprintf("%016x%016x", timestamp, counter)
}
