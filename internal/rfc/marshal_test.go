package rfc

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/nwrfc/internal/adapter/nwrfc"
	"github.com/Kargones/nwrfc/internal/adapter/nwrfc/nwrfctest"
	"github.com/Kargones/nwrfc/internal/pkg/apperrors"
)

// roundTripDescriptor описывает модуль, у которого все параметры changing:
// записанное значение можно прочитать обратно из того же буфера.
func roundTripDescriptor(t *testing.T) *FunctionDescriptor {
	t.Helper()
	item := []Field{
		NewField("POSNR", NumcType(6)),
		NewField("MATNR", CharType(18)),
		NewField("MENGE", PackedType(7, 3)),
	}
	header := StructType("ZHEADER",
		NewField("VBELN", CharType(10)),
		NewField("ERDAT", DateType()),
		NewField("ERZET", TimeType()),
		NewField("NETWR", PackedType(8, 2)),
	)
	d, err := NewFunctionDescriptor("Z_ROUNDTRIP",
		Parameter{Name: "CHAR", Direction: Changing, Type: CharType(10)},
		Parameter{Name: "EMPTYCHAR", Direction: Changing, Type: CharType(0)},
		Parameter{Name: "BLANK", Direction: Changing, Type: CharType(5)},
		Parameter{Name: "NUMC", Direction: Changing, Type: NumcType(6)},
		Parameter{Name: "INT1", Direction: Changing, Type: IntType(1)},
		Parameter{Name: "INT2", Direction: Changing, Type: IntType(2)},
		Parameter{Name: "INT4", Direction: Changing, Type: IntType(4)},
		Parameter{Name: "INT8", Direction: Changing, Type: IntType(8)},
		Parameter{Name: "PACKED", Direction: Changing, Type: PackedType(8, 2)},
		Parameter{Name: "DATE", Direction: Changing, Type: DateType()},
		Parameter{Name: "INITDATE", Direction: Changing, Type: DateType()},
		Parameter{Name: "TIME", Direction: Changing, Type: TimeType()},
		Parameter{Name: "STRING", Direction: Changing, Type: StringType()},
		Parameter{Name: "RAW", Direction: Changing, Type: BytesType(4)},
		Parameter{Name: "XSTRING", Direction: Changing, Type: BytesType(0)},
		Parameter{Name: "HEADER", Direction: Changing, Type: header},
		Parameter{Name: "ITEMS", Direction: Tables, Type: TableType("ZITEM", item...)},
		Parameter{Name: "NOITEMS", Direction: Tables, Type: TableType("ZITEM", item...)},
	)
	require.NoError(t, err)
	return d
}

func roundTripParams() Params {
	return Params{
		"CHAR":      Text("hello"),
		"EMPTYCHAR": Text(""),
		"BLANK":     Text(""),
		"NUMC":      Text("001234"),
		"INT1":      Int(255),
		"INT2":      Int(math.MinInt16),
		"INT4":      Int(-123456),
		"INT8":      Int(math.MaxInt64),
		"PACKED":    MustDecimal("-12345.67"),
		"DATE":      DateOf(2024, 2, 29),
		"INITDATE":  Date{},
		"TIME":      TimeOf(23, 59, 59),
		"STRING":    Text("Grüße, мир 😀"),
		"RAW":       Bytes{0xDE, 0xAD, 0xBE, 0xEF},
		"XSTRING":   Bytes{0x00, 0x01, 0x02},
		"HEADER": Record{
			"VBELN": Text("0000004711"),
			"ERDAT": DateOf(1999, 12, 31),
			"ERZET": TimeOf(0, 0, 1),
			"NETWR": MustDecimal("100.50"),
		},
		"ITEMS": Rows{
			{"POSNR": Text("000010"), "MATNR": Text("M-01"), "MENGE": MustDecimal("1.000")},
			{"POSNR": Text("000020"), "MATNR": Text("M-02"), "MENGE": MustDecimal("0.125")},
			{"POSNR": Text("000030"), "MATNR": Text("M-03"), "MENGE": MustDecimal("-2.5")},
		},
		"NOITEMS": Rows{},
	}
}

func TestRoundTrip(t *testing.T) {
	desc := roundTripDescriptor(t)
	in := roundTripParams()

	plan, err := Encode(desc, in, Options{})
	require.NoError(t, err)
	assert.Equal(t, len(in), plan.Len())

	buf := nwrfctest.NewBuffer(desc.Native())
	require.NoError(t, plan.Apply(buf))

	out, err := Decode(desc, buf)
	require.NoError(t, err)
	if diff := cmp.Diff(Result(in), out); diff != "" {
		t.Errorf("результат отличается от входа (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_EmptyTableIsNotAbsent(t *testing.T) {
	desc := roundTripDescriptor(t)
	params := roundTripParams()
	delete(params, "NOITEMS")

	plan, err := Encode(desc, params, Options{})
	require.NoError(t, err)
	rec := &recordingCall{Call: nwrfctest.NewBuffer(desc.Native())}
	require.NoError(t, plan.Apply(rec))
	assert.NotContains(t, rec.activated, "NOITEMS")

	params["NOITEMS"] = Rows{}
	plan, err = Encode(desc, params, Options{})
	require.NoError(t, err)
	rec = &recordingCall{Call: nwrfctest.NewBuffer(desc.Native())}
	require.NoError(t, plan.Apply(rec))
	assert.Contains(t, rec.activated, "NOITEMS")

	out, err := Decode(desc, rec)
	require.NoError(t, err)
	assert.Equal(t, Rows{}, out["NOITEMS"])
}

func TestApply_DeclarationOrder(t *testing.T) {
	desc := roundTripDescriptor(t)
	plan, err := Encode(desc, roundTripParams(), Options{})
	require.NoError(t, err)

	rec := &recordingCall{Call: nwrfctest.NewBuffer(desc.Native())}
	require.NoError(t, plan.Apply(rec))

	want := make([]string, 0, len(desc.Params))
	for _, p := range desc.Params {
		want = append(want, p.Name)
	}
	assert.Equal(t, want, rec.activated)
}

func TestEncode_Errors(t *testing.T) {
	desc, err := NewFunctionDescriptor("Z_CHECK",
		Parameter{Name: "IV_ID", Direction: Import, Type: CharType(4)},
		Parameter{Name: "IV_MODE", Direction: Import, Type: IntType(1), Optional: true},
		Parameter{Name: "IS_DATA", Direction: Import, Type: StructType("ZDATA",
			NewField("AMOUNT", PackedType(3, 2)),
			NewField("ON", DateType()),
		), Optional: true},
		Parameter{Name: "EV_RESULT", Direction: Export, Type: CharType(10)},
		Parameter{Name: "IT_ROWS", Direction: Tables, Type: TableType("ZROW", NewField("N", IntType(4))), Optional: true},
	)
	require.NoError(t, err)

	tests := []struct {
		name     string
		params   Params
		opts     Options
		wantPath string
	}{
		{"неизвестный параметр", Params{"IV_ID": Text("A"), "IV_BOGUS": Text("x")}, Options{}, "IV_BOGUS"},
		{"не передан обязательный", Params{"IV_MODE": Int(1)}, Options{}, "IV_ID"},
		{"передан экспортный", Params{"IV_ID": Text("A"), "EV_RESULT": Text("x")}, Options{}, "EV_RESULT"},
		{"пустое значение", Params{"IV_ID": nil}, Options{}, "IV_ID"},
		{"превышение длины", Params{"IV_ID": Text("ABCDE")}, Options{}, "IV_ID"},
		{"несовместимый вид", Params{"IV_ID": Int(1)}, Options{}, "IV_ID"},
		{"INT1 вне диапазона", Params{"IV_ID": Text("A"), "IV_MODE": Int(256)}, Options{}, "IV_MODE"},
		{"неизвестное поле структуры", Params{
			"IV_ID":   Text("A"),
			"IS_DATA": Record{"AMOUNT": MustDecimal("1"), "EXTRA": Text("x")},
		}, Options{}, "IS_DATA-EXTRA"},
		{"неточный масштаб", Params{
			"IV_ID":   Text("A"),
			"IS_DATA": Record{"AMOUNT": MustDecimal("1.234")},
		}, Options{}, "IS_DATA-AMOUNT"},
		{"некорректная дата", Params{
			"IV_ID":   Text("A"),
			"IS_DATA": Record{"ON": DateOf(2023, 2, 31)},
		}, Options{}, "IS_DATA-ON"},
		{"ошибка в строке таблицы", Params{
			"IV_ID":   Text("A"),
			"IT_ROWS": Rows{{"N": Int(1)}, {"N": Text("two")}},
		}, Options{}, "IT_ROWS[1]-N"},
		{"структура вместо таблицы", Params{
			"IV_ID":   Text("A"),
			"IT_ROWS": Record{"N": Int(1)},
		}, Options{}, "IT_ROWS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Encode(desc, tt.params, tt.opts)
			require.Error(t, err)
			assert.Nil(t, plan)
			assert.Equal(t, apperrors.ErrMarshal, apperrors.CodeOf(err))

			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.wantPath, fe.Path)
		})
	}
}

func TestEncode_Truncation(t *testing.T) {
	desc, err := NewFunctionDescriptor("Z_TRUNC",
		Parameter{Name: "TEXT", Direction: Changing, Type: CharType(5)},
		Parameter{Name: "RAW", Direction: Changing, Type: BytesType(2)},
	)
	require.NoError(t, err)
	params := Params{"TEXT": Text("abcdefgh"), "RAW": Bytes{1, 2, 3}}

	_, err = Encode(desc, params, Options{})
	require.Error(t, err)

	plan, err := Encode(desc, params, Options{AllowTruncate: true})
	require.NoError(t, err)
	buf := nwrfctest.NewBuffer(desc.Native())
	require.NoError(t, plan.Apply(buf))
	out, err := Decode(desc, buf)
	require.NoError(t, err)
	assert.Equal(t, Text("abcde"), out["TEXT"])
	assert.Equal(t, Bytes{1, 2}, out["RAW"])
}

func TestEncode_PackedExactness(t *testing.T) {
	desc, err := NewFunctionDescriptor("Z_PACKED",
		Parameter{Name: "AMOUNT", Direction: Changing, Type: PackedType(6, 4)},
	)
	require.NoError(t, err)

	for _, s := range []string{"0.0001", "-0.0001", "1234567.8901", "-9999999.9999", "0.1", "3"} {
		t.Run(s, func(t *testing.T) {
			plan, err := Encode(desc, Params{"AMOUNT": MustDecimal(s)}, Options{})
			require.NoError(t, err)
			buf := nwrfctest.NewBuffer(desc.Native())
			require.NoError(t, plan.Apply(buf))
			out, err := Decode(desc, buf)
			require.NoError(t, err)
			got, ok := out["AMOUNT"].(Decimal)
			require.True(t, ok)
			assert.True(t, got.Equal(MustDecimal(s)), "получено %s", got)
		})
	}

	for _, s := range []string{"0.00001", "10000000", "1e-5"} {
		t.Run("непредставимо "+s, func(t *testing.T) {
			_, err := Encode(desc, Params{"AMOUNT": MustDecimal(s)}, Options{})
			assert.True(t, apperrors.HasCode(err, apperrors.ErrMarshal))
		})
	}

	plan, err := Encode(desc, Params{"AMOUNT": Text("12.5")}, Options{})
	require.NoError(t, err, "текстовое представление числа допускается")
	assert.Equal(t, 1, plan.Len())
}

func TestDecode_SkipsUnsupportedFields(t *testing.T) {
	desc, err := FromNative(nwrfctest.StructureDesc())
	require.NoError(t, err)

	p, ok := desc.Param("IMPORTSTRUCT")
	require.True(t, ok)
	f, ok := p.Type.Field("RFCFLOAT")
	require.True(t, ok)
	assert.Equal(t, KindUnsupported, f.Type.Kind)

	plan, err := Encode(desc, Params{"IMPORTSTRUCT": Record{"RFCCHAR4": Text("ABCD")}}, Options{})
	require.NoError(t, err)
	buf := nwrfctest.NewBuffer(desc.Native())
	require.NoError(t, plan.Apply(buf))
	out, err := Decode(desc, buf)
	require.NoError(t, err)

	echo, ok := out["ECHOSTRUCT"].(Record)
	require.True(t, ok)
	assert.NotContains(t, echo, "RFCFLOAT")
	assert.Contains(t, echo, "RFCDATE")
	assert.Equal(t, Rows{}, out["RFCTABLE"])

	_, err = Encode(desc, Params{"IMPORTSTRUCT": Record{"RFCFLOAT": Int(1)}}, Options{})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrMarshal), "запись в неподдерживаемое поле")
}

func TestFromNative(t *testing.T) {
	desc, err := FromNative(nwrfctest.ConnectionDesc())
	require.NoError(t, err)
	assert.Equal(t, "STFC_CONNECTION", desc.Name)

	p, ok := desc.Param("REQUTEXT")
	require.True(t, ok)
	assert.Equal(t, Import, p.Direction)
	assert.Equal(t, KindChar, p.Type.Kind)
	assert.Equal(t, 255, p.Type.Length)
	assert.True(t, p.Required())

	p, ok = desc.Param("ECHOTEXT")
	require.True(t, ok)
	assert.Equal(t, Export, p.Direction)
	assert.False(t, p.Required())
}

func TestFromNative_Cycle(t *testing.T) {
	td := &nwrfc.TypeDesc{Name: "ZLOOP"}
	td.Fields = []nwrfc.FieldDesc{{Name: "SELF", Type: nwrfc.TypeStructure, TypeDesc: td}}

	_, err := FromNative(&nwrfc.FunctionDesc{
		Name:   "Z_LOOP",
		Params: []nwrfc.ParamDesc{{Name: "P", Type: nwrfc.TypeStructure, TypeDesc: td}},
	})
	assert.Error(t, err)
}

func TestNewFunctionDescriptor_Duplicate(t *testing.T) {
	_, err := NewFunctionDescriptor("Z_DUP",
		Parameter{Name: "A", Type: CharType(1)},
		Parameter{Name: "A", Type: CharType(1)},
	)
	assert.Error(t, err)
}

// recordingCall запоминает порядок активации параметров.
type recordingCall struct {
	nwrfc.Call
	activated []string
}

func (r *recordingCall) SetActive(name string, active bool) error {
	if active {
		r.activated = append(r.activated, name)
	}
	return r.Call.SetActive(name, active)
}
