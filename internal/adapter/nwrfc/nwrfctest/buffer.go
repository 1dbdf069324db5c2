package nwrfctest

import (
	"bytes"
	"fmt"

	"github.com/Kargones/nwrfc/internal/adapter/nwrfc"
	"golang.org/x/text/encoding/unicode"
)

var sapUC = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeText кодирует строку в SAP_UC.
func EncodeText(s string) []byte {
	out, err := sapUC.NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(fmt.Sprintf("nwrfctest: кодирование %q: %v", s, err))
	}
	return out
}

// DecodeText декодирует SAP_UC в строку без обрезки пробелов.
func DecodeText(raw []byte) string {
	out, err := sapUC.NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}
	return string(out)
}

// CharField кодирует строку в поле CHAR(n) с дополнением пробелами;
// лишние символы отбрасываются.
func CharField(s string, n int) []byte {
	raw := EncodeText(s)
	if len(raw) > 2*n {
		raw = raw[:2*n]
	}
	return append(raw, bytes.Repeat([]byte{' ', 0}, n-len(raw)/2)...)
}

// field — описание поля буфера.
type field struct {
	name     string
	typ      nwrfc.Type
	ucLength int
	typeDesc *nwrfc.TypeDesc
}

// container — in-memory реализация nwrfc.Container.
type container struct {
	owner   *Handle
	fields  map[string]field
	order   []string
	values  map[string][]byte
	structs map[string]*container
	tables  map[string]*table
}

func newContainer(owner *Handle, fields []field) *container {
	c := &container{
		owner:   owner,
		fields:  make(map[string]field, len(fields)),
		values:  make(map[string][]byte),
		structs: make(map[string]*container),
		tables:  make(map[string]*table),
	}
	for _, f := range fields {
		c.fields[f.name] = f
		c.order = append(c.order, f.name)
		switch f.typ {
		case nwrfc.TypeStructure:
			c.structs[f.name] = newContainer(owner, typeDescFields(f.typeDesc))
		case nwrfc.TypeTable:
			c.tables[f.name] = &table{owner: owner, row: typeDescFields(f.typeDesc)}
		default:
			c.values[f.name] = initialValue(f)
		}
	}
	return c
}

func typeDescFields(td *nwrfc.TypeDesc) []field {
	if td == nil {
		return nil
	}
	out := make([]field, 0, len(td.Fields))
	for _, fd := range td.Fields {
		out = append(out, field{name: fd.Name, typ: fd.Type, ucLength: fd.UcLength, typeDesc: fd.TypeDesc})
	}
	return out
}

// initialValue возвращает начальное значение поля, как его инициализирует ABAP.
func initialValue(f field) []byte {
	switch f.typ {
	case nwrfc.TypeChar:
		return bytes.Repeat([]byte{' ', 0}, f.ucLength/nwrfc.UnicodeCharSize)
	case nwrfc.TypeNum, nwrfc.TypeDate, nwrfc.TypeTime:
		return bytes.Repeat([]byte{'0', 0}, f.ucLength/nwrfc.UnicodeCharSize)
	case nwrfc.TypeBCD:
		out := make([]byte, f.ucLength)
		if len(out) > 0 {
			out[len(out)-1] = 0x0C
		}
		return out
	case nwrfc.TypeString, nwrfc.TypeXString:
		return []byte{}
	}
	return make([]byte, f.ucLength)
}

func (c *container) lookup(name string) (field, error) {
	f, ok := c.fields[name]
	if !ok {
		return field{}, &nwrfc.Error{
			Code:    nwrfc.RCInvalidParameter,
			Group:   nwrfc.GroupExternalRuntimeFailure,
			Key:     "RFC_INVALID_PARAMETER",
			Message: fmt.Sprintf("field '%s' not found", name),
		}
	}
	return f, nil
}

func typeMismatch(f field, op string) error {
	return &nwrfc.Error{
		Code:    nwrfc.RCConversionFailure,
		Group:   nwrfc.GroupExternalRuntimeFailure,
		Key:     "RFC_CONVERSION_FAILURE",
		Message: fmt.Sprintf("%s is not supported for field '%s' of type %s", op, f.name, f.typ),
	}
}

// SetField реализует nwrfc.Container.
func (c *container) SetField(name string, raw []byte) error {
	if err := c.owner.check(); err != nil {
		return err
	}
	f, err := c.lookup(name)
	if err != nil {
		return err
	}
	switch f.typ {
	case nwrfc.TypeStructure, nwrfc.TypeTable:
		return typeMismatch(f, "SetField")
	case nwrfc.TypeString:
		if len(raw)%2 != 0 {
			return &nwrfc.Error{
				Code:    nwrfc.RCConversionFailure,
				Group:   nwrfc.GroupExternalRuntimeFailure,
				Message: fmt.Sprintf("odd SAP_UC length for field '%s'", name),
			}
		}
	case nwrfc.TypeXString:
	default:
		if len(raw) != f.ucLength {
			return &nwrfc.Error{
				Code:    nwrfc.RCBufferTooSmall,
				Group:   nwrfc.GroupExternalRuntimeFailure,
				Key:     "RFC_BUFFER_TOO_SMALL",
				Message: fmt.Sprintf("field '%s' expects %d bytes, got %d", name, f.ucLength, len(raw)),
			}
		}
	}
	c.values[name] = bytes.Clone(raw)
	return nil
}

// Field реализует nwrfc.Container.
func (c *container) Field(name string) ([]byte, error) {
	if err := c.owner.check(); err != nil {
		return nil, err
	}
	f, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	v, ok := c.values[name]
	if !ok {
		return nil, typeMismatch(f, "Field")
	}
	return bytes.Clone(v), nil
}

// Structure реализует nwrfc.Container.
func (c *container) Structure(name string) (nwrfc.Container, error) {
	if err := c.owner.check(); err != nil {
		return nil, err
	}
	f, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	s, ok := c.structs[name]
	if !ok {
		return nil, typeMismatch(f, "Structure")
	}
	return s, nil
}

// Table реализует nwrfc.Container.
func (c *container) Table(name string) (nwrfc.Table, error) {
	if err := c.owner.check(); err != nil {
		return nil, err
	}
	f, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	t, ok := c.tables[name]
	if !ok {
		return nil, typeMismatch(f, "Table")
	}
	return t, nil
}

// copyFrom копирует значения полей с совпадающими именем и типом.
func (c *container) copyFrom(src *container) {
	for _, name := range c.order {
		df := c.fields[name]
		sf, ok := src.fields[name]
		if !ok || sf.typ != df.typ || sf.ucLength != df.ucLength {
			continue
		}
		if v, ok := src.values[name]; ok {
			c.values[name] = bytes.Clone(v)
		}
		if s, ok := src.structs[name]; ok {
			c.structs[name].copyFrom(s)
		}
	}
}

// table — in-memory реализация nwrfc.Table.
type table struct {
	owner *Handle
	row   []field
	rows  []*container
}

// RowCount реализует nwrfc.Table.
func (t *table) RowCount() int { return len(t.rows) }

// AppendRow реализует nwrfc.Table.
func (t *table) AppendRow() (nwrfc.Container, error) {
	if err := t.owner.check(); err != nil {
		return nil, err
	}
	return t.appendRow(), nil
}

func (t *table) appendRow() *container {
	r := newContainer(t.owner, t.row)
	t.rows = append(t.rows, r)
	return r
}

// Row реализует nwrfc.Table.
func (t *table) Row(i int) (nwrfc.Container, error) {
	if err := t.owner.check(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(t.rows) {
		return nil, &nwrfc.Error{
			Code:    nwrfc.RCTableMoveEOF,
			Group:   nwrfc.GroupExternalRuntimeFailure,
			Key:     "RFC_TABLE_MOVE_EOF",
			Message: fmt.Sprintf("row %d out of range [0, %d)", i, len(t.rows)),
		}
	}
	return t.rows[i], nil
}

// call — in-memory буфер вызова функционального модуля.
type call struct {
	*container
	desc      *nwrfc.FunctionDesc
	active    map[string]bool
	destroyed bool
}

func newCall(h *Handle, desc *nwrfc.FunctionDesc) *call {
	fields := make([]field, 0, len(desc.Params))
	for _, p := range desc.Params {
		fields = append(fields, field{name: p.Name, typ: p.Type, ucLength: p.UcLength, typeDesc: p.TypeDesc})
	}
	return &call{container: newContainer(h, fields), desc: desc, active: make(map[string]bool)}
}

// SetActive реализует nwrfc.Call.
func (c *call) SetActive(name string, active bool) error {
	if err := c.owner.check(); err != nil {
		return err
	}
	if _, err := c.lookup(name); err != nil {
		return err
	}
	c.active[name] = active
	return nil
}

// Table для параметра функции дополнительно активирует его.
func (c *call) Table(name string) (nwrfc.Table, error) {
	t, err := c.container.Table(name)
	if err != nil {
		return nil, err
	}
	c.active[name] = true
	return t, nil
}

// Invoke реализует nwrfc.Call.
func (c *call) Invoke() error {
	if c.destroyed {
		return errDestroyed(c.desc.Name)
	}
	return c.owner.invoke(c)
}

// Destroy реализует nwrfc.Call.
func (c *call) Destroy() error {
	if c.destroyed {
		return nil
	}
	c.destroyed = true
	if c.owner.detached {
		return nil
	}
	c.owner.sys.mu.Lock()
	c.owner.sys.liveCalls--
	c.owner.sys.mu.Unlock()
	return nil
}

func errDestroyed(function string) *nwrfc.Error {
	return &nwrfc.Error{
		Code:    nwrfc.RCInvalidHandle,
		Group:   nwrfc.GroupExternalRuntimeFailure,
		Key:     "RFC_INVALID_HANDLE",
		Message: fmt.Sprintf("function handle %s already destroyed", function),
	}
}

// NewBuffer создаёт буфер вызова по описанию без соединения.
// Invoke на таком буфере не выполняет ничего. Для тестов маршалинга.
func NewBuffer(desc *nwrfc.FunctionDesc) nwrfc.Call {
	return newCall(detached, desc)
}

// detached — владелец буферов без соединения.
var detached = &Handle{detached: true}
