package nwrfc

import "fmt"

// Type — нативный тип поля (RFCTYPE).
type Type int

// Значения совпадают с RFCTYPE из sapnwrfc.h.
const (
	TypeChar      Type = 0
	TypeDate      Type = 1
	TypeBCD       Type = 2
	TypeTime      Type = 3
	TypeByte      Type = 4
	TypeTable     Type = 5
	TypeNum       Type = 6
	TypeFloat     Type = 7
	TypeInt       Type = 8
	TypeInt2      Type = 9
	TypeInt1      Type = 10
	TypeStructure Type = 17
	TypeDecF16    Type = 23
	TypeDecF34    Type = 24
	TypeString    Type = 29
	TypeXString   Type = 30
	TypeInt8      Type = 31
)

var typeNames = map[Type]string{
	TypeChar:      "CHAR",
	TypeDate:      "DATE",
	TypeBCD:       "BCD",
	TypeTime:      "TIME",
	TypeByte:      "BYTE",
	TypeTable:     "TABLE",
	TypeNum:       "NUM",
	TypeFloat:     "FLOAT",
	TypeInt:       "INT",
	TypeInt2:      "INT2",
	TypeInt1:      "INT1",
	TypeStructure: "STRUCTURE",
	TypeDecF16:    "DECF16",
	TypeDecF34:    "DECF34",
	TypeString:    "STRING",
	TypeXString:   "XSTRING",
	TypeInt8:      "INT8",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("RFCTYPE(%d)", int(t))
}

// Direction — направление параметра (RFC_DIRECTION).
type Direction int

// Значения совпадают с RFC_DIRECTION.
const (
	DirImport   Direction = 0x01
	DirExport   Direction = 0x02
	DirChanging Direction = DirImport | DirExport
	DirTables   Direction = 0x04 | DirChanging
)

// FieldDesc описывает поле структуры (RFC_FIELD_DESC).
type FieldDesc struct {
	Name string
	Type Type
	// UcLength — длина в байтах в Unicode-представлении
	UcLength int
	Decimals int
	// TypeDesc задан для полей STRUCTURE и TABLE
	TypeDesc *TypeDesc
}

// TypeDesc описывает структуру или строку таблицы (RFC_TYPE_DESC_HANDLE).
type TypeDesc struct {
	Name   string
	Fields []FieldDesc
}

// ParamDesc описывает параметр функционального модуля (RFC_PARAMETER_DESC).
type ParamDesc struct {
	Name      string
	Type      Type
	Direction Direction
	// UcLength — длина в байтах в Unicode-представлении
	UcLength int
	Decimals int
	// TypeDesc задан для параметров STRUCTURE и TABLE
	TypeDesc     *TypeDesc
	DefaultValue string
	Description  string
	Optional     bool
}

// FunctionDesc описывает интерфейс функционального модуля (RFC_FUNCTION_DESC_HANDLE).
type FunctionDesc struct {
	Name   string
	Params []ParamDesc
}

// UnicodeCharSize — размер SAP_UC в байтах.
const UnicodeCharSize = 2
