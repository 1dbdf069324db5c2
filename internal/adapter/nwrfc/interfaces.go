// Package nwrfc определяет поверхность привязки к нативной библиотеке SAP NW RFC.
// Пакет разделяет нативные примитивы по принципу ISP
// (Interface Segregation Principle) на сфокусированные интерфейсы:
// Library, Handle, Call, Container, Table.
//
// Все примитивы блокирующие и НЕ потокобезопасные: Handle и всё, что из него
// получено, должны использоваться только из того контекста исполнения
// (OS thread), в котором Handle был открыт.
package nwrfc

// ConnectionParams — параметры логона в нотации sapnwrfc.ini
// (ashost, sysnr, client, user, passwd, lang, dest, mshost, ...).
// Ключи в нижнем регистре; все значения представлены строками.
type ConnectionParams map[string]string

// Clone возвращает независимую копию параметров.
func (p ConnectionParams) Clone() ConnectionParams {
	out := make(ConnectionParams, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Attributes содержит атрибуты открытого соединения (RFC_ATTRIBUTES).
type Attributes struct {
	// SysID — идентификатор системы SAP (например NPL)
	SysID string
	// Client — мандант
	Client string
	// User — пользователь логона
	User string
	// Language — язык логона
	Language string
	// Host — хост партнёра
	Host string
	// PartnerRelease — релиз ядра партнёра (например 750)
	PartnerRelease string
}

// Library открывает нативные соединения.
type Library interface {
	// Open открывает соединение. Ошибка имеет тип *Error.
	Open(params ConnectionParams) (Handle, error)
}

// Handle — открытое нативное соединение (RFC_CONNECTION_HANDLE).
type Handle interface {
	// Attributes возвращает атрибуты соединения.
	Attributes() (Attributes, error)
	// Ping проверяет, живо ли соединение (RfcPing).
	Ping() error
	// Describe получает описание интерфейса функционального модуля.
	Describe(name string) (*FunctionDesc, error)
	// NewCall создаёт буфер вызова по описанию.
	NewCall(desc *FunctionDesc) (Call, error)
	// Close закрывает соединение. Повторный вызов безопасен.
	Close() error
}

// Container — поля функции, структуры или строки таблицы.
// raw — нативное представление поля (SAP_UC, BCD, little-endian int).
type Container interface {
	// SetField записывает нативное представление элементарного поля.
	SetField(name string, raw []byte) error
	// Field читает нативное представление элементарного поля.
	Field(name string) ([]byte, error)
	// Structure возвращает вложенную структуру.
	Structure(name string) (Container, error)
	// Table возвращает таблицу; для параметра функции активирует его.
	Table(name string) (Table, error)
}

// Table — таблица строк со структурой строки.
type Table interface {
	// RowCount возвращает количество строк.
	RowCount() int
	// AppendRow добавляет пустую строку в конец и возвращает её.
	AppendRow() (Container, error)
	// Row возвращает строку по индексу.
	Row(i int) (Container, error)
}

// Call — буфер вызова функционального модуля (RFC_FUNCTION_HANDLE).
type Call interface {
	Container
	// SetActive помечает параметр как переданный/непереданный.
	SetActive(name string, active bool) error
	// Invoke выполняет удалённый вызов на соединении, создавшем Call.
	Invoke() error
	// Destroy освобождает буфер (RfcDestroyFunction). После Destroy
	// Call использовать нельзя; повторный вызов ничего не делает.
	Destroy() error
}
