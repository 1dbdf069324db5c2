package nwrfctest

import (
	"fmt"
	"strings"
	"time"

	"github.com/Kargones/nwrfc/internal/adapter/nwrfc"
)

// Frame — контекст выполнения функционального модуля тестовой системы.
type Frame struct {
	// Function — имя вызываемого модуля
	Function string
	// Attributes — атрибуты соединения вызывающего
	Attributes nwrfc.Attributes

	call *call
	now  func() time.Time
}

// Params возвращает буфер параметров вызова для чтения и записи.
func (f *Frame) Params() nwrfc.Container { return f.call }

// Active сообщает, передал ли вызывающий параметр.
func (f *Frame) Active(name string) bool { return f.call.active[name] }

// Now возвращает текущее время системы.
func (f *Frame) Now() time.Time { return f.now() }

// Text читает символьный параметр без завершающих пробелов.
func (f *Frame) Text(name string) (string, error) {
	raw, err := f.call.Field(name)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(DecodeText(raw), " "), nil
}

// SetText записывает символьный параметр (CHAR с дополнением/обрезкой или STRING).
func (f *Frame) SetText(name, s string) error {
	fd, err := f.call.lookup(name)
	if err != nil {
		return err
	}
	if fd.typ == nwrfc.TypeString {
		return f.call.SetField(name, EncodeText(s))
	}
	return f.call.SetField(name, CharField(s, fd.ucLength/nwrfc.UnicodeCharSize))
}

func charParam(name string, n int, dir nwrfc.Direction, optional bool) nwrfc.ParamDesc {
	return nwrfc.ParamDesc{
		Name:      name,
		Type:      nwrfc.TypeChar,
		Direction: dir,
		UcLength:  n * nwrfc.UnicodeCharSize,
		Optional:  optional,
	}
}

func charField(name string, n int) nwrfc.FieldDesc {
	return nwrfc.FieldDesc{Name: name, Type: nwrfc.TypeChar, UcLength: n * nwrfc.UnicodeCharSize}
}

// ConnectionDesc возвращает описание STFC_CONNECTION.
func ConnectionDesc() *nwrfc.FunctionDesc {
	return &nwrfc.FunctionDesc{
		Name: "STFC_CONNECTION",
		Params: []nwrfc.ParamDesc{
			charParam("REQUTEXT", 255, nwrfc.DirImport, false),
			charParam("ECHOTEXT", 255, nwrfc.DirExport, false),
			charParam("RESPTEXT", 255, nwrfc.DirExport, false),
		},
	}
}

// RFCTestType возвращает описание структуры RFCTEST.
func RFCTestType() *nwrfc.TypeDesc {
	return &nwrfc.TypeDesc{
		Name: "RFCTEST",
		Fields: []nwrfc.FieldDesc{
			{Name: "RFCFLOAT", Type: nwrfc.TypeFloat, UcLength: 8},
			charField("RFCCHAR1", 1),
			{Name: "RFCINT2", Type: nwrfc.TypeInt2, UcLength: 2},
			{Name: "RFCINT1", Type: nwrfc.TypeInt1, UcLength: 1},
			charField("RFCCHAR4", 4),
			{Name: "RFCINT4", Type: nwrfc.TypeInt, UcLength: 4},
			{Name: "RFCHEX3", Type: nwrfc.TypeByte, UcLength: 3},
			charField("RFCCHAR2", 2),
			{Name: "RFCTIME", Type: nwrfc.TypeTime, UcLength: 12},
			{Name: "RFCDATE", Type: nwrfc.TypeDate, UcLength: 16},
			charField("RFCDATA1", 50),
			charField("RFCDATA2", 50),
		},
	}
}

// StructureDesc возвращает описание STFC_STRUCTURE.
func StructureDesc() *nwrfc.FunctionDesc {
	rfctest := RFCTestType()
	return &nwrfc.FunctionDesc{
		Name: "STFC_STRUCTURE",
		Params: []nwrfc.ParamDesc{
			{Name: "IMPORTSTRUCT", Type: nwrfc.TypeStructure, Direction: nwrfc.DirImport, TypeDesc: rfctest},
			{Name: "ECHOSTRUCT", Type: nwrfc.TypeStructure, Direction: nwrfc.DirExport, TypeDesc: rfctest},
			charParam("RESPTEXT", 255, nwrfc.DirExport, false),
			{Name: "RFCTABLE", Type: nwrfc.TypeTable, Direction: nwrfc.DirTables, TypeDesc: rfctest, Optional: true},
		},
	}
}

// RaiseErrorDesc возвращает описание RFC_RAISE_ERROR.
func RaiseErrorDesc() *nwrfc.FunctionDesc {
	return &nwrfc.FunctionDesc{
		Name: "RFC_RAISE_ERROR",
		Params: []nwrfc.ParamDesc{
			charParam("MESSAGETYPE", 1, nwrfc.DirImport, true),
			charParam("STATUS", 80, nwrfc.DirExport, false),
		},
	}
}

func registerBuiltins(s *System) {
	s.functions["STFC_CONNECTION"] = &function{desc: ConnectionDesc(), handler: stfcConnection}
	s.functions["STFC_STRUCTURE"] = &function{desc: StructureDesc(), handler: stfcStructure}
	s.functions["RFC_RAISE_ERROR"] = &function{desc: RaiseErrorDesc(), handler: raiseError}
}

func respText(f *Frame) string {
	now := f.Now()
	return fmt.Sprintf("SAP R/3 Rel. %s   Sysid: %s      Date: %s   Time: %s   Logon_Data: %s/%s/%s",
		f.Attributes.PartnerRelease, f.Attributes.SysID,
		now.Format("20060102"), now.Format("150405"),
		f.Attributes.Client, f.Attributes.User, f.Attributes.Language)
}

func stfcConnection(f *Frame) error {
	req, err := f.Text("REQUTEXT")
	if err != nil {
		return err
	}
	if err := f.SetText("ECHOTEXT", req); err != nil {
		return err
	}
	return f.SetText("RESPTEXT", respText(f))
}

func stfcStructure(f *Frame) error {
	in := f.call.structs["IMPORTSTRUCT"]
	f.call.structs["ECHOSTRUCT"].copyFrom(in)
	if f.call.active["RFCTABLE"] {
		f.call.tables["RFCTABLE"].appendRow().copyFrom(in)
	}
	return f.SetText("RESPTEXT", respText(f))
}

func raiseError(f *Frame) error {
	kind, err := f.Text("MESSAGETYPE")
	if err != nil {
		return err
	}
	switch kind {
	case "X":
		return RuntimeFailure("MESSAGE_TYPE_X", "The current application triggered a termination with a short dump.")
	case "E":
		return &nwrfc.Error{
			Code:          nwrfc.RCAbapMessage,
			Group:         nwrfc.GroupAbapApplicationFailure,
			Key:           "Function not supported",
			Message:       "Function not supported",
			AbapMsgClass:  "SR",
			AbapMsgType:   "E",
			AbapMsgNumber: "006",
		}
	}
	return AbapException("RAISE_EXCEPTION", "Function not supported")
}
