package probe

import (
	"bytes"
	"context"
	stderrors "errors"
	"net"
	"strings"
	"time"
)

// MaxBannerBytes is how much of a service greeting is kept.
const MaxBannerBytes = 1024

// signature names a service when any of its markers appears in a banner.
// Markers are compared case-insensitively and the first matching entry wins,
// so specific markers come before generic ones such as a bare "220".
type signature struct {
	service string
	markers [][]byte
}

var signatures = []signature{
	{"SSH", [][]byte{[]byte("SSH-"), []byte("OpenSSH")}},
	{"HTTP", [][]byte{[]byte("HTTP/"), []byte("<!DOCTYPE"), []byte("<html")}},
	{"SMTP", [][]byte{[]byte("ESMTP"), []byte("SMTP")}},
	{"FTP", [][]byte{[]byte("FTP"), []byte("220")}},
	{"POP3", [][]byte{[]byte("+OK")}},
	{"IMAP", [][]byte{[]byte("* OK"), []byte("IMAP")}},
	{"MySQL", [][]byte{[]byte("mysql"), []byte("\x00\x00\x00\x0a")}},
	{"Redis", [][]byte{[]byte("-ERR"), []byte("+PONG"), []byte("redis")}},
	{"MongoDB", [][]byte{[]byte("MongoDB")}},
	{"PostgreSQL", [][]byte{[]byte("PostgreSQL")}},
}

// IdentifyService names the service that sent banner.
func IdentifyService(banner []byte) (string, bool) {
	if len(banner) == 0 {
		return "", false
	}
	upper := bytes.ToUpper(banner)
	for _, sig := range signatures {
		for _, m := range sig.markers {
			if bytes.Contains(upper, bytes.ToUpper(m)) {
				return sig.service, true
			}
		}
	}
	return "", false
}

// httpPorts get an HTTP HEAD request when they stay silent.
var httpPorts = map[int]bool{80: true, 8000: true, 8080: true, 443: true, 8443: true}

// prompt is written to services that do not greet first.
func prompt(host string, port int) []byte {
	if httpPorts[port] {
		return []byte("HEAD / HTTP/1.1\r\nHost: " + host + "\r\nConnection: close\r\n\r\n")
	}
	return []byte("\r\n")
}

// readBanner waits for a greeting during the first half of what is left of
// the ctx deadline, then sends a prompt and reads until the deadline. It
// returns whatever arrived, possibly nothing.
func readBanner(ctx context.Context, conn net.Conn, host string, port int) []byte {
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	wait := time.Until(deadline)
	if wait <= 0 {
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, MaxBannerBytes)
	_ = conn.SetDeadline(time.Now().Add(wait / 2))
	n, err := conn.Read(buf)
	if n > 0 || !isTimeout(err) || ctx.Err() != nil {
		return buf[:n]
	}

	_ = conn.SetDeadline(deadline)
	if _, err := conn.Write(prompt(host, port)); err != nil {
		return nil
	}
	n, _ = conn.Read(buf)
	return buf[:n]
}

func isTimeout(err error) bool {
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

// printableBanner trims a raw greeting for display.
func printableBanner(raw []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
}
