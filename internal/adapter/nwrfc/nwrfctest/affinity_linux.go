//go:build linux

package nwrfctest

import "golang.org/x/sys/unix"

func currentThreadID() int {
	return unix.Gettid()
}
