package rfc

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"
)

// Value — закрытый вариантный тип значения параметра.
// Реализации: Text, Int, Decimal, Date, Time, Bytes, Record, Rows.
// Новые виды добавляются только здесь, все переключатели по типу исчерпывающие.
type Value interface {
	isValue()
	fmt.Stringer
}

// Params — входные параметры вызова: имя параметра → значение.
type Params map[string]Value

// Result — результат вызова: экспортные, changing и табличные параметры.
type Result map[string]Value

// Text — символьное значение (CHAR, NUMC, STRING).
type Text string

// Int — целое значение (INT1/INT2/INT4/INT8, NUMC).
// Для NUMC Int принимается только при записи: поле NUMC всегда читается
// как Text фиксированной длины с ведущими нулями.
type Int int64

// Decimal — точное десятичное значение для упакованных чисел.
type Decimal decimal.Decimal

// Date — календарная дата; нулевое значение соответствует начальной дате SAP 00000000.
type Date civil.Date

// Time — время суток с точностью до секунды.
type Time civil.Time

// Bytes — двоичное значение (RAW, XSTRING).
type Bytes []byte

// Record — значение структуры: имя поля → значение.
type Record map[string]Value

// Rows — строки таблицы в исходном порядке.
type Rows []Record

func (Text) isValue()    {}
func (Int) isValue()     {}
func (Decimal) isValue() {}
func (Date) isValue()    {}
func (Time) isValue()    {}
func (Bytes) isValue()   {}
func (Record) isValue()  {}
func (Rows) isValue()    {}

func (v Text) String() string { return string(v) }

func (v Int) String() string { return fmt.Sprintf("%d", int64(v)) }

func (v Decimal) String() string { return decimal.Decimal(v).String() }

// Decimal возвращает значение как decimal.Decimal.
func (v Decimal) Decimal() decimal.Decimal { return decimal.Decimal(v) }

// Equal сравнивает числовые значения без учёта масштаба (1.5 == 1.50).
func (v Decimal) Equal(o Decimal) bool { return decimal.Decimal(v).Equal(decimal.Decimal(o)) }

func (v Date) String() string {
	if v == (Date{}) {
		return "00000000"
	}
	return civil.Date(v).String()
}

// Civil возвращает значение как civil.Date.
func (v Date) Civil() civil.Date { return civil.Date(v) }

func (v Time) String() string { return civil.Time(v).String() }

// Civil возвращает значение как civil.Time.
func (v Time) Civil() civil.Time { return civil.Time(v) }

func (v Bytes) String() string { return fmt.Sprintf("%X", []byte(v)) }

func (v Record) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for _, k := range sortedKeys(v) {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(k)
		b.WriteByte('=')
		if v[k] == nil {
			b.WriteString("<nil>")
			continue
		}
		b.WriteString(v[k].String())
	}
	b.WriteByte('}')
	return b.String()
}

func (v Rows) String() string { return fmt.Sprintf("[%d rows]", len(v)) }

// NewDecimal разбирает десятичную строку без потери точности.
func NewDecimal(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal(d), nil
}

// MustDecimal как NewDecimal, но паникует при ошибке. Для констант и тестов.
func MustDecimal(s string) Decimal {
	d, err := NewDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf возвращает дату без проверки корректности;
// некорректная дата будет отклонена при маршалинге.
func DateOf(year int, month time.Month, day int) Date {
	return Date(civil.Date{Year: year, Month: month, Day: day})
}

// TimeOf возвращает время без проверки корректности.
func TimeOf(hour, minute, second int) Time {
	return Time(civil.Time{Hour: hour, Minute: minute, Second: second})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
