package conn

import "fmt"

// State — состояние соединения.
//
//	Disconnected --Open--> Connected --Call--> Busy --успех/исключение ABAP--> Connected
//	Busy --коммуникационный сбой/отказ логона/дамп--> Broken --Close--> Disconnected
//	Connected --Close/простой--> Disconnected
//
// Disconnected терминально для экземпляра.
type State int32

const (
	Disconnected State = iota
	Connected
	Busy
	Broken
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connected:
		return "CONNECTED"
	case Busy:
		return "BUSY"
	case Broken:
		return "BROKEN"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
