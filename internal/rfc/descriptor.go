// Package rfc реализует подсистему маршалинга параметров RFC:
// описания интерфейсов функциональных модулей, закрытый вариантный тип Value
// и преобразование значений в нативное представление полей и обратно.
//
// Форма допустимых входных данных известна только во время вызова
// (из описания, полученного с сервера), поэтому каждое значение
// проверяется против дерева описаний до записи в нативный буфер.
package rfc

import (
	"fmt"

	"github.com/Kargones/nwrfc/internal/adapter/nwrfc"
)

// maxTypeDepth ограничивает вложенность структур; более глубокое дерево
// считается циклическим.
const maxTypeDepth = 32

// Direction — направление параметра.
type Direction int

const (
	Import Direction = iota
	Export
	Changing
	Tables
)

func (d Direction) String() string {
	switch d {
	case Import:
		return "IMPORT"
	case Export:
		return "EXPORT"
	case Changing:
		return "CHANGING"
	case Tables:
		return "TABLES"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Kind — семантический вид поля.
type Kind int

const (
	KindUnsupported Kind = iota
	KindChar
	KindNumc
	KindInt
	KindPacked
	KindDate
	KindTime
	KindString
	KindBytes
	KindStructure
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindChar:
		return "CHAR"
	case KindNumc:
		return "NUMC"
	case KindInt:
		return "INT"
	case KindPacked:
		return "PACKED"
	case KindDate:
		return "DATE"
	case KindTime:
		return "TIME"
	case KindString:
		return "STRING"
	case KindBytes:
		return "BYTES"
	case KindStructure:
		return "STRUCTURE"
	case KindTable:
		return "TABLE"
	default:
		return "UNSUPPORTED"
	}
}

// Type описывает тип параметра или поля.
// Для структур и таблиц Fields задаёт поля (строки таблицы) в порядке объявления.
type Type struct {
	Kind Kind
	// Length — длина в символах для CHAR/NUMC, в байтах для INT/PACKED/BYTES;
	// 0 для типов переменной длины.
	Length   int
	Decimals int
	// Name — имя DDIC-типа структуры или строки таблицы.
	Name   string
	Fields []Field
	// Native — исходный нативный тип.
	Native nwrfc.Type

	index map[string]int
}

// Field — поле структуры.
type Field struct {
	Name string
	Type *Type
}

// Field возвращает поле структуры по имени.
func (t *Type) Field(name string) (*Field, bool) {
	if t.index == nil {
		for i := range t.Fields {
			if t.Fields[i].Name == name {
				return &t.Fields[i], true
			}
		}
		return nil, false
	}
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return &t.Fields[i], true
}

// Parameter описывает параметр функционального модуля.
type Parameter struct {
	Name        string
	Direction   Direction
	Type        *Type
	Optional    bool
	Default     string
	Description string
}

// Required сообщает, обязан ли вызывающий передать параметр.
func (p *Parameter) Required() bool {
	return p.Direction == Import && !p.Optional
}

// FunctionDescriptor — описание интерфейса функционального модуля.
// Неизменяемо после построения и может разделяться между горутинами.
type FunctionDescriptor struct {
	Name   string
	Params []Parameter

	index  map[string]int
	native *nwrfc.FunctionDesc
}

// Param возвращает параметр по имени.
func (d *FunctionDescriptor) Param(name string) (*Parameter, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return &d.Params[i], true
}

// Native возвращает нативное описание, по которому создаётся буфер вызова.
func (d *FunctionDescriptor) Native() *nwrfc.FunctionDesc {
	return d.native
}

// NewFunctionDescriptor строит описание из параметров и соответствующее
// нативное описание. Имена параметров должны быть уникальны.
func NewFunctionDescriptor(name string, params ...Parameter) (*FunctionDescriptor, error) {
	d := &FunctionDescriptor{Name: name, Params: params, index: make(map[string]int, len(params))}
	native := &nwrfc.FunctionDesc{Name: name, Params: make([]nwrfc.ParamDesc, 0, len(params))}
	for i := range params {
		p := &params[i]
		if _, dup := d.index[p.Name]; dup {
			return nil, fmt.Errorf("rfc: параметр %s.%s объявлен дважды", name, p.Name)
		}
		if p.Type == nil {
			return nil, fmt.Errorf("rfc: у параметра %s.%s не задан тип", name, p.Name)
		}
		d.index[p.Name] = i
		native.Params = append(native.Params, nwrfc.ParamDesc{
			Name:         p.Name,
			Type:         p.Type.nativeType(),
			Direction:    p.Direction.native(),
			UcLength:     p.Type.ucLength(),
			Decimals:     p.Type.Decimals,
			TypeDesc:     p.Type.nativeTypeDesc(),
			DefaultValue: p.Default,
			Description:  p.Description,
			Optional:     p.Optional,
		})
	}
	d.native = native
	return d, nil
}

// FromNative преобразует нативное описание в FunctionDescriptor.
func FromNative(desc *nwrfc.FunctionDesc) (*FunctionDescriptor, error) {
	if desc == nil {
		return nil, fmt.Errorf("rfc: пустое нативное описание")
	}
	d := &FunctionDescriptor{
		Name:   desc.Name,
		Params: make([]Parameter, 0, len(desc.Params)),
		index:  make(map[string]int, len(desc.Params)),
		native: desc,
	}
	for _, np := range desc.Params {
		if _, dup := d.index[np.Name]; dup {
			return nil, fmt.Errorf("rfc: параметр %s.%s объявлен дважды", desc.Name, np.Name)
		}
		t, err := typeFromNative(np.Type, np.UcLength, np.Decimals, np.TypeDesc, 0)
		if err != nil {
			return nil, fmt.Errorf("rfc: параметр %s.%s: %w", desc.Name, np.Name, err)
		}
		d.index[np.Name] = len(d.Params)
		d.Params = append(d.Params, Parameter{
			Name:        np.Name,
			Direction:   directionFromNative(np.Direction),
			Type:        t,
			Optional:    np.Optional,
			Default:     np.DefaultValue,
			Description: np.Description,
		})
	}
	return d, nil
}

func directionFromNative(d nwrfc.Direction) Direction {
	switch d {
	case nwrfc.DirExport:
		return Export
	case nwrfc.DirChanging:
		return Changing
	case nwrfc.DirTables:
		return Tables
	default:
		return Import
	}
}

func (d Direction) native() nwrfc.Direction {
	switch d {
	case Export:
		return nwrfc.DirExport
	case Changing:
		return nwrfc.DirChanging
	case Tables:
		return nwrfc.DirTables
	default:
		return nwrfc.DirImport
	}
}

func typeFromNative(nt nwrfc.Type, ucLength, decimals int, td *nwrfc.TypeDesc, depth int) (*Type, error) {
	if depth > maxTypeDepth {
		return nil, fmt.Errorf("вложенность типов превышает %d (циклическое описание?)", maxTypeDepth)
	}
	t := &Type{Native: nt, Decimals: decimals}
	switch nt {
	case nwrfc.TypeChar:
		t.Kind, t.Length = KindChar, ucLength/nwrfc.UnicodeCharSize
	case nwrfc.TypeNum:
		t.Kind, t.Length = KindNumc, ucLength/nwrfc.UnicodeCharSize
	case nwrfc.TypeDate:
		t.Kind, t.Length = KindDate, 8
	case nwrfc.TypeTime:
		t.Kind, t.Length = KindTime, 6
	case nwrfc.TypeInt1:
		t.Kind, t.Length = KindInt, 1
	case nwrfc.TypeInt2:
		t.Kind, t.Length = KindInt, 2
	case nwrfc.TypeInt:
		t.Kind, t.Length = KindInt, 4
	case nwrfc.TypeInt8:
		t.Kind, t.Length = KindInt, 8
	case nwrfc.TypeBCD:
		t.Kind, t.Length = KindPacked, ucLength
	case nwrfc.TypeString:
		t.Kind = KindString
	case nwrfc.TypeXString:
		t.Kind = KindBytes
	case nwrfc.TypeByte:
		t.Kind, t.Length = KindBytes, ucLength
	case nwrfc.TypeStructure, nwrfc.TypeTable:
		t.Kind = KindStructure
		if nt == nwrfc.TypeTable {
			t.Kind = KindTable
		}
		if td == nil {
			return nil, fmt.Errorf("нет описания типа для %s", nt)
		}
		t.Name = td.Name
		t.Fields = make([]Field, 0, len(td.Fields))
		t.index = make(map[string]int, len(td.Fields))
		for _, nf := range td.Fields {
			ft, err := typeFromNative(nf.Type, nf.UcLength, nf.Decimals, nf.TypeDesc, depth+1)
			if err != nil {
				return nil, fmt.Errorf("%s-%s: %w", td.Name, nf.Name, err)
			}
			t.index[nf.Name] = len(t.Fields)
			t.Fields = append(t.Fields, Field{Name: nf.Name, Type: ft})
		}
	default:
		t.Kind = KindUnsupported
	}
	return t, nil
}

func (t *Type) nativeType() nwrfc.Type {
	switch t.Kind {
	case KindChar:
		return nwrfc.TypeChar
	case KindNumc:
		return nwrfc.TypeNum
	case KindDate:
		return nwrfc.TypeDate
	case KindTime:
		return nwrfc.TypeTime
	case KindInt:
		switch t.Length {
		case 1:
			return nwrfc.TypeInt1
		case 2:
			return nwrfc.TypeInt2
		case 8:
			return nwrfc.TypeInt8
		}
		return nwrfc.TypeInt
	case KindPacked:
		return nwrfc.TypeBCD
	case KindString:
		return nwrfc.TypeString
	case KindBytes:
		if t.Length == 0 {
			return nwrfc.TypeXString
		}
		return nwrfc.TypeByte
	case KindStructure:
		return nwrfc.TypeStructure
	case KindTable:
		return nwrfc.TypeTable
	}
	return t.Native
}

func (t *Type) ucLength() int {
	switch t.Kind {
	case KindChar, KindNumc, KindDate, KindTime:
		return t.Length * nwrfc.UnicodeCharSize
	case KindInt, KindPacked, KindBytes:
		return t.Length
	}
	return 0
}

func (t *Type) nativeTypeDesc() *nwrfc.TypeDesc {
	if t.Kind != KindStructure && t.Kind != KindTable {
		return nil
	}
	td := &nwrfc.TypeDesc{Name: t.Name, Fields: make([]nwrfc.FieldDesc, 0, len(t.Fields))}
	for _, f := range t.Fields {
		td.Fields = append(td.Fields, nwrfc.FieldDesc{
			Name:     f.Name,
			Type:     f.Type.nativeType(),
			UcLength: f.Type.ucLength(),
			Decimals: f.Type.Decimals,
			TypeDesc: f.Type.nativeTypeDesc(),
		})
	}
	return td
}
