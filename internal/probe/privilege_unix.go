//go:build !windows

package probe

import "os"

// Privileged reports whether the process can open raw ICMP sockets without
// relying on capabilities.
func Privileged() bool {
	return os.Geteuid() == 0
}
