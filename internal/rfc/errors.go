package rfc

import (
	"fmt"

	"github.com/Kargones/nwrfc/internal/pkg/apperrors"
)

// FieldError указывает на значение, не прошедшее проверку маршалинга.
// Path — путь к полю: PARAM, PARAM-FIELD, TABLE[3]-FIELD.
type FieldError struct {
	Path   string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return e.Path + ": " + e.Reason
}

func marshalError(path, format string, args ...any) error {
	fe := &FieldError{Path: path, Reason: fmt.Sprintf(format, args...)}
	return apperrors.NewAppError(apperrors.ErrMarshal, "некорректное значение параметра", fe)
}

func kindMismatch(path string, t *Type, v Value) error {
	return marshalError(path, "значение типа %T несовместимо с полем %s", v, t.Kind)
}

func childPath(parent, field string) string {
	if parent == "" {
		return field
	}
	return parent + "-" + field
}

func rowPath(table string, i int) string {
	return fmt.Sprintf("%s[%d]", table, i)
}
