package rfc

// Конструкторы типов для описаний, построенных без обращения к серверу
// (тестовые системы, заранее известные интерфейсы).

// CharType возвращает CHAR(n).
func CharType(n int) *Type { return &Type{Kind: KindChar, Length: n} }

// NumcType возвращает NUMC(n).
func NumcType(n int) *Type { return &Type{Kind: KindNumc, Length: n} }

// IntType возвращает целое размером size байт (1, 2, 4 или 8).
func IntType(size int) *Type { return &Type{Kind: KindInt, Length: size} }

// PackedType возвращает упакованное число размером size байт с decimals знаками дробной части.
func PackedType(size, decimals int) *Type {
	return &Type{Kind: KindPacked, Length: size, Decimals: decimals}
}

// DateType возвращает DATS.
func DateType() *Type { return &Type{Kind: KindDate, Length: 8} }

// TimeType возвращает TIMS.
func TimeType() *Type { return &Type{Kind: KindTime, Length: 6} }

// StringType возвращает STRING переменной длины.
func StringType() *Type { return &Type{Kind: KindString} }

// BytesType возвращает RAW(n); при n == 0 — XSTRING.
func BytesType(n int) *Type { return &Type{Kind: KindBytes, Length: n} }

// StructType возвращает структуру с полями в порядке объявления.
func StructType(name string, fields ...Field) *Type {
	return newComplexType(KindStructure, name, fields)
}

// TableType возвращает таблицу со строкой из указанных полей.
func TableType(name string, fields ...Field) *Type {
	return newComplexType(KindTable, name, fields)
}

// NewField возвращает поле структуры.
func NewField(name string, t *Type) Field { return Field{Name: name, Type: t} }

func newComplexType(kind Kind, name string, fields []Field) *Type {
	t := &Type{Kind: kind, Name: name, Fields: fields, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		t.index[f.Name] = i
	}
	return t
}
