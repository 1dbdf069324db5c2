//go:build !linux

package nwrfctest

// currentThreadID без идентификатора потока возвращает константу:
// проверка привязки к потоку на таких платформах не выполняется.
func currentThreadID() int {
	return 0
}
