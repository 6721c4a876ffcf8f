package enrich

import "strings"

// ouiVendors is a small offline table of OUI prefixes seen on typical LANs
// and lab networks.
var ouiVendors = map[string]string{
	"00:00:0C": "Cisco Systems",
	"00:1A:2B": "Cisco Systems",
	"00:50:56": "VMware",
	"00:0C:29": "VMware",
	"00:15:5D": "Microsoft (Hyper-V)",
	"00:1C:42": "Parallels",
	"08:00:27": "Oracle VirtualBox",
	"00:16:3E": "Xen",
	"00:1B:21": "Intel",
	"00:1E:67": "Intel",
	"00:1F:3B": "Intel",
	"3C:5A:B4": "Google",
	"F4:F5:D8": "Google",
	"00:17:88": "Philips",
	"AC:CF:85": "Huawei",
	"00:E0:4C": "Realtek",
	"52:54:00": "QEMU/KVM",
	"B8:27:EB": "Raspberry Pi",
	"DC:A6:32": "Raspberry Pi",
	"E4:5F:01": "Raspberry Pi",
	"00:23:24": "Apple",
	"3C:15:C2": "Apple",
	"AC:DE:48": "Apple",
	"F0:18:98": "Apple",
	"00:50:F2": "Microsoft",
	"28:18:78": "Microsoft",
	"00:14:22": "Dell",
	"F8:DB:88": "Dell",
	"18:03:73": "Dell",
	"00:1E:68": "HP",
	"00:25:B3": "HP",
	"2C:41:38": "HP",
	"00:1F:C6": "ASUS",
}

// NormalizeMAC returns mac in upper-case colon form with two-digit octets.
// Dashes and dots are accepted as separators. Input that is not six octets is
// returned upper-cased but otherwise unchanged.
func NormalizeMAC(mac string) string {
	mac = strings.ToUpper(strings.TrimSpace(mac))
	if !strings.ContainsAny(mac, ":-.") && len(mac) == 12 {
		parts := make([]string, 0, 6)
		for i := 0; i < 12; i += 2 {
			parts = append(parts, mac[i:i+2])
		}
		return strings.Join(parts, ":")
	}

	parts := strings.FieldsFunc(mac, func(r rune) bool {
		return r == ':' || r == '-' || r == '.'
	})
	if len(parts) != 6 {
		return mac
	}
	for i, p := range parts {
		if len(p) == 1 {
			parts[i] = "0" + p
		}
	}
	return strings.Join(parts, ":")
}

// LookupVendor returns the vendor registered for the MAC's OUI prefix.
func LookupVendor(mac string) (string, bool) {
	norm := NormalizeMAC(mac)
	if len(norm) < 8 {
		return "", false
	}
	vendor, ok := ouiVendors[norm[:8]]
	return vendor, ok
}
