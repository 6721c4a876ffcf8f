package target

import "sort"

// UnknownService labels ports that are not in the common-ports table.
const UnknownService = "Unknown"

// CommonPorts maps well-known TCP ports to their service names. It is the
// unit set of a common-ports scan.
var CommonPorts = map[int]string{
	21:    "FTP",
	22:    "SSH",
	23:    "Telnet",
	25:    "SMTP",
	53:    "DNS",
	80:    "HTTP",
	110:   "POP3",
	143:   "IMAP",
	443:   "HTTPS",
	445:   "SMB",
	993:   "IMAPS",
	995:   "POP3S",
	3306:  "MySQL",
	3389:  "RDP",
	5432:  "PostgreSQL",
	5900:  "VNC",
	6379:  "Redis",
	8080:  "HTTP-Proxy",
	8443:  "HTTPS-Alt",
	27017: "MongoDB",
}

// ServiceName returns the service name for port, or UnknownService.
func ServiceName(port int) string {
	if name, ok := CommonPorts[port]; ok {
		return name
	}
	return UnknownService
}

// CommonPortList returns the ports of the common-ports table in ascending order.
func CommonPortList() []int {
	ports := make([]int, 0, len(CommonPorts))
	for p := range CommonPorts {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}
