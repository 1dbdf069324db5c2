package rfc

import (
	"fmt"
	"strings"

	"github.com/Kargones/nwrfc/internal/adapter/nwrfc"
	"github.com/Kargones/nwrfc/internal/pkg/apperrors"
)

// Options управляет политикой маршалинга.
type Options struct {
	// AllowTruncate разрешает обрезать CHAR и RAW значения, превышающие длину поля.
	// По умолчанию превышение длины — ошибка.
	AllowTruncate bool
}

// Plan — проверенные и закодированные входные параметры вызова.
// Построение Plan не обращается к нативной библиотеке; Apply только записывает
// готовые буферы.
type Plan struct {
	desc   *FunctionDescriptor
	params []encodedParam
}

type encodedParam struct {
	name string
	node *encoded
}

// encoded — закодированное значение: элементарное поле, структура или таблица.
type encoded struct {
	kind   Kind
	raw    []byte
	fields []encodedField
	rows   [][]encodedField
}

type encodedField struct {
	name string
	node *encoded
}

// Descriptor возвращает описание, по которому построен план.
func (p *Plan) Descriptor() *FunctionDescriptor { return p.desc }

// Len возвращает число переданных параметров.
func (p *Plan) Len() int { return len(p.params) }

// Encode проверяет входные параметры против описания и кодирует их.
// Ошибка всегда имеет код apperrors.ErrMarshal и причину *FieldError.
func Encode(desc *FunctionDescriptor, params Params, opts Options) (*Plan, error) {
	if desc == nil {
		return nil, marshalError("", "пустое описание функции")
	}
	for _, name := range sortedKeys(params) {
		p, ok := desc.Param(name)
		if !ok {
			return nil, marshalError(name, "функция %s не имеет такого параметра", desc.Name)
		}
		if p.Direction == Export {
			return nil, marshalError(name, "экспортный параметр не может быть передан")
		}
		if params[name] == nil {
			return nil, marshalError(name, "значение не задано")
		}
	}

	plan := &Plan{desc: desc}
	for i := range desc.Params {
		p := &desc.Params[i]
		v, ok := params[p.Name]
		if !ok {
			if p.Required() {
				return nil, marshalError(p.Name, "обязательный параметр не передан")
			}
			continue
		}
		node, err := encodeValue(v, p.Type, opts, p.Name, 0)
		if err != nil {
			return nil, err
		}
		plan.params = append(plan.params, encodedParam{name: p.Name, node: node})
	}
	return plan, nil
}

func encodeValue(v Value, t *Type, opts Options, path string, depth int) (*encoded, error) {
	if depth > maxTypeDepth {
		return nil, marshalError(path, "вложенность превышает %d", maxTypeDepth)
	}
	switch t.Kind {
	case KindStructure:
		rec, ok := v.(Record)
		if !ok {
			return nil, kindMismatch(path, t, v)
		}
		fields, err := encodeRecord(rec, t, opts, path, depth)
		if err != nil {
			return nil, err
		}
		return &encoded{kind: KindStructure, fields: fields}, nil
	case KindTable:
		rows, ok := v.(Rows)
		if !ok {
			return nil, kindMismatch(path, t, v)
		}
		out := &encoded{kind: KindTable, rows: make([][]encodedField, 0, len(rows))}
		for i, row := range rows {
			fields, err := encodeRecord(row, t, opts, rowPath(path, i), depth)
			if err != nil {
				return nil, err
			}
			out.rows = append(out.rows, fields)
		}
		return out, nil
	}
	raw, err := encodeScalar(v, t, opts, path)
	if err != nil {
		return nil, err
	}
	return &encoded{kind: t.Kind, raw: raw}, nil
}

// encodeRecord кодирует поля структуры в порядке объявления.
// Непереданные поля сохраняют начальное значение буфера.
func encodeRecord(rec Record, t *Type, opts Options, path string, depth int) ([]encodedField, error) {
	for _, name := range sortedKeys(rec) {
		if _, ok := t.Field(name); !ok {
			return nil, marshalError(childPath(path, name), "структура %s не имеет такого поля", t.Name)
		}
		if rec[name] == nil {
			return nil, marshalError(childPath(path, name), "значение не задано")
		}
	}
	fields := make([]encodedField, 0, len(rec))
	for _, f := range t.Fields {
		v, ok := rec[f.Name]
		if !ok {
			continue
		}
		node, err := encodeValue(v, f.Type, opts, childPath(path, f.Name), depth+1)
		if err != nil {
			return nil, err
		}
		fields = append(fields, encodedField{name: f.Name, node: node})
	}
	return fields, nil
}

// Apply записывает параметры плана в буфер вызова в порядке объявления
// и помечает их активными. Ошибки нативного буфера имеют код apperrors.ErrNative.
func (p *Plan) Apply(call nwrfc.Call) error {
	for _, ep := range p.params {
		if err := writeNode(call, ep.name, ep.node); err != nil {
			return nativeError(ep.name, err)
		}
		if err := call.SetActive(ep.name, true); err != nil {
			return nativeError(ep.name, err)
		}
	}
	return nil
}

func writeNode(c nwrfc.Container, name string, n *encoded) error {
	switch n.kind {
	case KindStructure:
		sc, err := c.Structure(name)
		if err != nil {
			return err
		}
		return writeFields(sc, n.fields)
	case KindTable:
		tbl, err := c.Table(name)
		if err != nil {
			return err
		}
		for _, row := range n.rows {
			rc, err := tbl.AppendRow()
			if err != nil {
				return err
			}
			if err := writeFields(rc, row); err != nil {
				return err
			}
		}
		return nil
	}
	return c.SetField(name, n.raw)
}

func writeFields(c nwrfc.Container, fields []encodedField) error {
	for _, f := range fields {
		if err := writeNode(c, f.name, f.node); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return nil
}

// Decode читает экспортные, changing и табличные параметры из буфера вызова.
// Табличные параметры всегда присутствуют в результате (пустая таблица — пустой Rows).
// Поля неподдерживаемых типов пропускаются.
func Decode(desc *FunctionDescriptor, c nwrfc.Container) (Result, error) {
	out := make(Result)
	for i := range desc.Params {
		p := &desc.Params[i]
		if p.Direction == Import || p.Type.Kind == KindUnsupported {
			continue
		}
		v, err := readValue(c, p.Name, p.Type, p.Name, 0)
		if err != nil {
			return nil, err
		}
		out[p.Name] = v
	}
	return out, nil
}

func readValue(c nwrfc.Container, name string, t *Type, path string, depth int) (Value, error) {
	if depth > maxTypeDepth {
		return nil, marshalError(path, "вложенность превышает %d", maxTypeDepth)
	}
	switch t.Kind {
	case KindStructure:
		sc, err := c.Structure(name)
		if err != nil {
			return nil, nativeError(path, err)
		}
		return readRecord(sc, t, path, depth)
	case KindTable:
		tbl, err := c.Table(name)
		if err != nil {
			return nil, nativeError(path, err)
		}
		rows := make(Rows, 0, tbl.RowCount())
		for i := 0; i < tbl.RowCount(); i++ {
			rc, err := tbl.Row(i)
			if err != nil {
				return nil, nativeError(rowPath(path, i), err)
			}
			rec, err := readRecord(rc, t, rowPath(path, i), depth)
			if err != nil {
				return nil, err
			}
			rows = append(rows, rec)
		}
		return rows, nil
	}
	raw, err := c.Field(name)
	if err != nil {
		return nil, nativeError(path, err)
	}
	return decodeScalar(raw, t, path)
}

func readRecord(c nwrfc.Container, t *Type, path string, depth int) (Record, error) {
	rec := make(Record, len(t.Fields))
	for _, f := range t.Fields {
		if f.Type.Kind == KindUnsupported {
			continue
		}
		v, err := readValue(c, f.Name, f.Type, childPath(path, f.Name), depth+1)
		if err != nil {
			return nil, err
		}
		rec[f.Name] = v
	}
	return rec, nil
}

func nativeError(path string, err error) error {
	return apperrors.NewAppError(apperrors.ErrNative,
		"ошибка доступа к полю "+strings.TrimSpace(path), err)
}
