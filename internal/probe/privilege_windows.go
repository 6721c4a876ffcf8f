//go:build windows

package probe

// Privileged reports whether raw ICMP is expected to work. Windows allows
// ICMP echo through the IP helper for unprivileged users.
func Privileged() bool {
	return true
}
