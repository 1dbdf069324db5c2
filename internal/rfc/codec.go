package rfc

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/unicode"
)

// sapUC — кодировка SAP_UC Unicode-систем: UTF-16LE без BOM.
var sapUC = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func encodeUC(s string) ([]byte, error) {
	return sapUC.NewEncoder().Bytes([]byte(s))
}

func decodeUC(raw []byte) (string, error) {
	if len(raw)%2 != 0 {
		return "", fmt.Errorf("нечётная длина SAP_UC буфера: %d байт", len(raw))
	}
	out, err := sapUC.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ucLen возвращает длину строки в единицах SAP_UC.
func ucLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// truncateUC возвращает наибольший префикс s длиной не более n единиц SAP_UC.
// Суррогатная пара не разрезается.
func truncateUC(s string, n int) string {
	units := 0
	for i, r := range s {
		l := utf16.RuneLen(r)
		if units+l > n {
			return s[:i]
		}
		units += l
	}
	return s
}

// encodeScalar кодирует элементарное значение в нативное представление поля.
func encodeScalar(v Value, t *Type, opts Options, path string) ([]byte, error) {
	switch t.Kind {
	case KindChar:
		s, ok := v.(Text)
		if !ok {
			return nil, kindMismatch(path, t, v)
		}
		return encodeChar(string(s), t.Length, opts, path)
	case KindNumc:
		return encodeNumc(v, t, path)
	case KindInt:
		i, ok := v.(Int)
		if !ok {
			return nil, kindMismatch(path, t, v)
		}
		return encodeInt(int64(i), t.Length, path)
	case KindPacked:
		d, err := packedOperand(v, t, path)
		if err != nil {
			return nil, err
		}
		return encodePacked(d, t.Length, t.Decimals, path)
	case KindDate:
		d, ok := v.(Date)
		if !ok {
			return nil, kindMismatch(path, t, v)
		}
		return encodeDate(d, path)
	case KindTime:
		tm, ok := v.(Time)
		if !ok {
			return nil, kindMismatch(path, t, v)
		}
		return encodeTime(tm, path)
	case KindString:
		s, ok := v.(Text)
		if !ok {
			return nil, kindMismatch(path, t, v)
		}
		return encodeUC(string(s))
	case KindBytes:
		b, ok := v.(Bytes)
		if !ok {
			return nil, kindMismatch(path, t, v)
		}
		return encodeBytes(b, t.Length, opts, path)
	}
	return nil, marshalError(path, "тип поля %s (%s) не поддерживается", t.Kind, t.Native)
}

// decodeScalar читает элементарное значение из нативного представления поля.
func decodeScalar(raw []byte, t *Type, path string) (Value, error) {
	switch t.Kind {
	case KindChar:
		s, err := decodeUC(raw)
		if err != nil {
			return nil, marshalError(path, "%v", err)
		}
		return Text(strings.TrimRight(s, " ")), nil
	case KindNumc:
		s, err := decodeUC(raw)
		if err != nil {
			return nil, marshalError(path, "%v", err)
		}
		if strings.TrimSpace(s) == "" {
			return Text(strings.Repeat("0", t.Length)), nil
		}
		if !isDigits(s) {
			return nil, marshalError(path, "NUMC содержит не цифры: %q", s)
		}
		return Text(s), nil
	case KindInt:
		return decodeInt(raw, t.Length, path)
	case KindPacked:
		d, err := decodePacked(raw, t.Length, t.Decimals, path)
		if err != nil {
			return nil, err
		}
		return Decimal(d), nil
	case KindDate:
		return decodeDate(raw, path)
	case KindTime:
		return decodeTime(raw, path)
	case KindString:
		s, err := decodeUC(raw)
		if err != nil {
			return nil, marshalError(path, "%v", err)
		}
		return Text(s), nil
	case KindBytes:
		out := make(Bytes, len(raw))
		copy(out, raw)
		return out, nil
	}
	return nil, marshalError(path, "тип поля %s (%s) не поддерживается", t.Kind, t.Native)
}

func encodeChar(s string, length int, opts Options, path string) ([]byte, error) {
	n := ucLen(s)
	if n > length {
		if !opts.AllowTruncate {
			return nil, marshalError(path, "длина значения %d превышает длину поля CHAR(%d)", n, length)
		}
		s = truncateUC(s, length)
		n = ucLen(s)
	}
	return encodeUC(s + strings.Repeat(" ", length-n))
}

// encodeNumc принимает Text из цифр или неотрицательный Int. Обратное
// чтение даёт Text: decodeScalar не знает, каким видом поле было записано.
func encodeNumc(v Value, t *Type, path string) ([]byte, error) {
	var digits string
	switch x := v.(type) {
	case Text:
		digits = string(x)
		if !isDigits(digits) {
			return nil, marshalError(path, "NUMC допускает только цифры: %q", digits)
		}
	case Int:
		if x < 0 {
			return nil, marshalError(path, "NUMC не допускает отрицательных значений: %d", int64(x))
		}
		digits = fmt.Sprintf("%d", int64(x))
	default:
		return nil, kindMismatch(path, t, v)
	}
	if len(digits) > t.Length {
		return nil, marshalError(path, "число цифр %d превышает длину поля NUMC(%d)", len(digits), t.Length)
	}
	return encodeUC(strings.Repeat("0", t.Length-len(digits)) + digits)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func encodeInt(i int64, size int, path string) ([]byte, error) {
	buf := make([]byte, size)
	switch size {
	case 1:
		if i < 0 || i > math.MaxUint8 {
			return nil, marshalError(path, "значение %d вне диапазона INT1 [0, 255]", i)
		}
		buf[0] = byte(i)
	case 2:
		if i < math.MinInt16 || i > math.MaxInt16 {
			return nil, marshalError(path, "значение %d вне диапазона INT2", i)
		}
		binary.LittleEndian.PutUint16(buf, uint16(int16(i)))
	case 4:
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, marshalError(path, "значение %d вне диапазона INT4", i)
		}
		binary.LittleEndian.PutUint32(buf, uint32(int32(i)))
	case 8:
		binary.LittleEndian.PutUint64(buf, uint64(i))
	default:
		return nil, marshalError(path, "неподдерживаемый размер целого: %d байт", size)
	}
	return buf, nil
}

func decodeInt(raw []byte, size int, path string) (Value, error) {
	if len(raw) != size {
		return nil, marshalError(path, "ожидалось %d байт целого, получено %d", size, len(raw))
	}
	switch size {
	case 1:
		return Int(raw[0]), nil
	case 2:
		return Int(int16(binary.LittleEndian.Uint16(raw))), nil
	case 4:
		return Int(int32(binary.LittleEndian.Uint32(raw))), nil
	case 8:
		return Int(int64(binary.LittleEndian.Uint64(raw))), nil
	}
	return nil, marshalError(path, "неподдерживаемый размер целого: %d байт", size)
}

// packedOperand приводит значение к decimal.Decimal без потери точности.
func packedOperand(v Value, t *Type, path string) (decimal.Decimal, error) {
	switch x := v.(type) {
	case Decimal:
		return decimal.Decimal(x), nil
	case Int:
		return decimal.NewFromInt(int64(x)), nil
	case Text:
		d, err := decimal.NewFromString(string(x))
		if err != nil {
			return decimal.Decimal{}, marshalError(path, "некорректное десятичное число %q", string(x))
		}
		return d, nil
	}
	return decimal.Decimal{}, kindMismatch(path, t, v)
}

// encodePacked кодирует число в BCD: по две цифры на байт, знак в младшем полубайте
// последнего байта (C — плюс, D — минус).
func encodePacked(d decimal.Decimal, size, decimals int, path string) ([]byte, error) {
	if size <= 0 {
		return nil, marshalError(path, "некорректный размер упакованного поля: %d", size)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, marshalError(path, "значение %s не представимо точно с %d знаками после запятой", d, decimals)
	}
	unscaled := scaled.BigInt()
	negative := unscaled.Sign() < 0
	digits := new(big.Int).Abs(unscaled).String()
	capacity := 2*size - 1
	if len(digits) > capacity {
		return nil, marshalError(path, "значение %s не помещается в P(%d) DECIMALS %d", d, size, decimals)
	}
	digits = strings.Repeat("0", capacity-len(digits)) + digits

	buf := make([]byte, size)
	for i := 0; i < capacity; i++ {
		nibble := digits[i] - '0'
		if i%2 == 0 {
			buf[i/2] = nibble << 4
		} else {
			buf[i/2] |= nibble
		}
	}
	sign := byte(0x0C)
	if negative {
		sign = 0x0D
	}
	buf[size-1] |= sign
	return buf, nil
}

func decodePacked(raw []byte, size, decimals int, path string) (decimal.Decimal, error) {
	if len(raw) != size || size == 0 {
		return decimal.Decimal{}, marshalError(path, "ожидалось %d байт BCD, получено %d", size, len(raw))
	}
	capacity := 2*size - 1
	digits := make([]byte, 0, capacity)
	for i := 0; i < capacity; i++ {
		b := raw[i/2]
		nibble := b >> 4
		if i%2 == 1 {
			nibble = b & 0x0F
		}
		if nibble > 9 {
			return decimal.Decimal{}, marshalError(path, "некорректная цифра BCD 0x%X", nibble)
		}
		digits = append(digits, '0'+nibble)
	}
	var negative bool
	switch raw[size-1] & 0x0F {
	case 0x0B, 0x0D:
		negative = true
	case 0x0A, 0x0C, 0x0E, 0x0F:
	default:
		return decimal.Decimal{}, marshalError(path, "некорректный знак BCD 0x%X", raw[size-1]&0x0F)
	}
	unscaled, _ := new(big.Int).SetString(string(digits), 10)
	if negative {
		unscaled.Neg(unscaled)
	}
	return decimal.NewFromBigInt(unscaled, -int32(decimals)), nil
}

func encodeDate(d Date, path string) ([]byte, error) {
	if d == (Date{}) {
		return encodeUC("00000000")
	}
	cd := civil.Date(d)
	if !cd.IsValid() || cd.Year < 1 || cd.Year > 9999 {
		return nil, marshalError(path, "некорректная дата %04d-%02d-%02d", cd.Year, int(cd.Month), cd.Day)
	}
	return encodeUC(fmt.Sprintf("%04d%02d%02d", cd.Year, int(cd.Month), cd.Day))
}

func decodeDate(raw []byte, path string) (Value, error) {
	s, err := decodeUC(raw)
	if err != nil {
		return nil, marshalError(path, "%v", err)
	}
	if s == "00000000" || strings.TrimSpace(s) == "" {
		return Date{}, nil
	}
	if len(s) != 8 || !isDigits(s) {
		return nil, marshalError(path, "некорректное представление даты %q", s)
	}
	var y, m, day int
	fmt.Sscanf(s, "%4d%2d%2d", &y, &m, &day) //nolint:errcheck // формат проверен isDigits
	cd := civil.Date{Year: y, Month: time.Month(m), Day: day}
	if !cd.IsValid() {
		return nil, marshalError(path, "некорректная дата %q", s)
	}
	return Date(cd), nil
}

func encodeTime(t Time, path string) ([]byte, error) {
	ct := civil.Time(t)
	if !ct.IsValid() {
		return nil, marshalError(path, "некорректное время %02d:%02d:%02d", ct.Hour, ct.Minute, ct.Second)
	}
	if ct.Nanosecond != 0 {
		return nil, marshalError(path, "время %s не представимо с точностью до секунды", ct)
	}
	return encodeUC(fmt.Sprintf("%02d%02d%02d", ct.Hour, ct.Minute, ct.Second))
}

func decodeTime(raw []byte, path string) (Value, error) {
	s, err := decodeUC(raw)
	if err != nil {
		return nil, marshalError(path, "%v", err)
	}
	if strings.TrimSpace(s) == "" {
		return Time{}, nil
	}
	if len(s) != 6 || !isDigits(s) {
		return nil, marshalError(path, "некорректное представление времени %q", s)
	}
	var h, m, sec int
	fmt.Sscanf(s, "%2d%2d%2d", &h, &m, &sec) //nolint:errcheck // формат проверен isDigits
	ct := civil.Time{Hour: h, Minute: m, Second: sec}
	if !ct.IsValid() {
		return nil, marshalError(path, "некорректное время %q", s)
	}
	return Time(ct), nil
}

func encodeBytes(b Bytes, size int, opts Options, path string) ([]byte, error) {
	if size == 0 {
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	}
	if len(b) > size {
		if !opts.AllowTruncate {
			return nil, marshalError(path, "длина значения %d превышает длину поля RAW(%d)", len(b), size)
		}
		b = b[:size]
	}
	out := make([]byte, size)
	copy(out, b)
	return out, nil
}
