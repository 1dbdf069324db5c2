// Package apperrors предоставляет структурированные ошибки RFC-клиента.
// Переименован из errors чтобы избежать конфликта со стандартной библиотекой.
package apperrors

import (
	"errors"
	"fmt"
)

// Коды ошибок в иерархическом формате: CATEGORY.SPECIFIC_ERROR.
// Позволяет grep по категориям: `grep "RFC\."` для всех ошибок вызова.
const (
	// Category: RFC — ошибки соединения, поиска и вызова функциональных модулей.

	// ErrConnect — неверные параметры логона или система недоступна при открытии.
	ErrConnect = "RFC.CONNECT_FAILED"
	// ErrLookup — функциональный модуль не найден.
	ErrLookup = "RFC.LOOKUP_FAILED"
	// ErrMarshal — несоответствие значений вызывающего и описания интерфейса.
	ErrMarshal = "RFC.MARSHAL_FAILED"
	// ErrCommunication — сетевой сбой; безопасно повторить на новом соединении.
	ErrCommunication = "RFC.COMMUNICATION_FAILED"
	// ErrLogon — учётные данные отклонены посреди сессии.
	ErrLogon = "RFC.LOGON_FAILED"
	// ErrAbapException — исключение ABAP, поднятое функциональным модулем.
	ErrAbapException = "RFC.ABAP_EXCEPTION"
	// ErrAbapRuntime — короткий дамп на стороне сервера, сессия закрыта.
	ErrAbapRuntime = "RFC.ABAP_RUNTIME_FAILED"
	// ErrNative — прочие ошибки нативной библиотеки.
	ErrNative = "RFC.NATIVE_FAILED"
	// ErrConnUnusable — соединение занято, сломано или закрыто.
	ErrConnUnusable = "RFC.CONNECTION_UNUSABLE"
	// ErrCanceled — контекст вызывающего завершён до начала работы.
	ErrCanceled = "RFC.CANCELED"

	// Category: POOL — ошибки пула соединений.

	// ErrPoolExhausted — нет свободного соединения в пределах таймаута ожидания.
	ErrPoolExhausted = "RFC.POOL_EXHAUSTED"
	// ErrPoolClosed — пул закрыт.
	ErrPoolClosed = "RFC.POOL_CLOSED"

	// Category: CONFIG — ошибки загрузки и валидации конфигурации.
	ErrConfigLoad     = "CONFIG.LOAD_FAILED"
	ErrConfigValidate = "CONFIG.VALIDATION_FAILED"
)

// AppError представляет структурированную ошибку.
// Реализует error interface и поддерживает wrapping через Unwrap().
//
// ВАЖНО: Message НЕ ДОЛЖЕН содержать секреты (пароли, токены, ключи).
// Используйте generic описания без конкретных значений.
//
// Пример использования:
//
//	return apperrors.NewAppError(apperrors.ErrLookup,
//	    "функциональный модуль Z_MISSING не найден",
//	    nativeErr)
type AppError struct {
	// Code — машиночитаемый код ошибки в формате CATEGORY.SPECIFIC.
	Code string `json:"code"`

	// Message — человекочитаемое описание ошибки.
	// НЕ ДОЛЖЕН содержать секреты!
	Message string `json:"message"`

	// Cause — wrapped оригинальная ошибка (*nwrfc.Error, *rfc.FieldError и т.д.).
	// Не сериализуется в JSON.
	Cause error `json:"-"`
}

// Error реализует интерфейс error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap возвращает wrapped ошибку для errors.Is/As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError создаёт новый AppError с заданным кодом, сообщением и причиной.
//
// ВАЖНО: message НЕ ДОЛЖЕН содержать секреты!
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf возвращает код первого AppError в цепочке или пустую строку.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode сообщает, содержит ли цепочка ошибок AppError с указанным кодом.
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// IsRetryable сообщает, можно ли повторить вызов на свежем соединении.
// Повтор остаётся решением вызывающего: только он знает, идемпотентен ли модуль.
func IsRetryable(err error) bool {
	return CodeOf(err) == ErrCommunication
}
