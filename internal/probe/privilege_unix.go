//go:build unix

package probe

import "golang.org/x/sys/unix"

// defaultPrivileged reports whether raw ICMP sockets should be tried first.
func defaultPrivileged() bool {
	return unix.Geteuid() == 0
}
