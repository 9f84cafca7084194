//go:build !unix

package probe

import "github.com/macrat/go-parallel-pinger"

func defaultPrivileged() bool {
	return pinger.DEFAULT_PRIVILEGED
}
