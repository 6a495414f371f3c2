package assembler

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// init registers Apple's built-in custom specifier decoders, grounded on
// the processor-type registry pattern in ingest/processors: a map built
// once and treated as read-only thereafter.
func init() {
	RegisterDecoder("bool", decodeBool)
	RegisterDecoder("BOOL", decodeBool)
	RegisterDecoder("uuid_t", decodeUUID)
	RegisterDecoder("time_t", decodeTimeT)
	RegisterDecoder("errno", decodeErrno)
	RegisterDecoder("signal", decodeSignal)
	RegisterDecoder("bitrate", decodeBitrate)
	RegisterDecoder("iec-bytes", decodeIECBytes)
	RegisterDecoder("in_addr", decodeInAddr)
	RegisterDecoder("in6_addr", decodeIn6Addr)
	RegisterDecoder("sockaddr", decodeSockaddr)
	RegisterDecoder("network:in_addr", decodeInAddr)
	RegisterDecoder("network:sockaddr", decodeSockaddr)
	RegisterDecoder("mdns:dnshdr", decodeMDNSHeader)
	RegisterDecoder("mdns:rrtype", decodeMDNSRRType)
	RegisterDecoder("location:CLClientAuthorizationStatus", decodeCLAuthStatus)
	RegisterDecoder("odtypes:mbr_details", decodeMBRDetails)
}

func decodeBool(item Item) string {
	if len(item.Bytes) == 0 {
		return "<missing data>"
	}
	if decodeIntItem(item) != 0 {
		return "true"
	}
	return "false"
}

func decodeUUID(item Item) string {
	if len(item.Bytes) != 16 {
		return fmt.Sprintf("<decode:unknown:%X>", item.Bytes)
	}
	b := item.Bytes
	return fmt.Sprintf("%08X-%04X-%04X-%04X-%012X",
		binary.BigEndian.Uint32(b[0:4]), binary.BigEndian.Uint16(b[4:6]),
		binary.BigEndian.Uint16(b[6:8]), binary.BigEndian.Uint16(b[8:10]),
		b[10:16])
}

func decodeTimeT(item Item) string {
	t := time.Unix(decodeIntItem(item), 0).UTC()
	return t.Format("2006-01-02 15:04:05 -0700")
}

// darwinErrnos maps Darwin's <sys/errno.h> values to their symbol names.
// Unmapped values fall back to the bare number.
var darwinErrnos = map[int64]string{
	1: "EPERM", 2: "ENOENT", 3: "ESRCH", 4: "EINTR", 5: "EIO",
	6: "ENXIO", 7: "E2BIG", 8: "ENOEXEC", 9: "EBADF", 10: "ECHILD",
	11: "EDEADLK", 12: "ENOMEM", 13: "EACCES", 14: "EFAULT", 16: "EBUSY",
	17: "EEXIST", 18: "EXDEV", 19: "ENODEV", 20: "ENOTDIR", 21: "EISDIR",
	22: "EINVAL", 23: "ENFILE", 24: "EMFILE", 25: "ENOTTY", 26: "ETXTBSY",
	27: "EFBIG", 28: "ENOSPC", 29: "ESPIPE", 30: "EROFS", 31: "EMLINK",
	32: "EPIPE", 33: "EDOM", 34: "ERANGE", 35: "EAGAIN", 36: "EINPROGRESS",
	37: "EALREADY", 38: "ENOTSOCK", 39: "EDESTADDRREQ", 40: "EMSGSIZE",
	41: "EPROTOTYPE", 42: "ENOPROTOOPT", 43: "EPROTONOSUPPORT",
	45: "EOPNOTSUPP", 46: "EPFNOSUPPORT", 47: "EAFNOSUPPORT",
	48: "EADDRINUSE", 49: "EADDRNOTAVAIL", 50: "ENETDOWN",
	51: "ENETUNREACH", 52: "ENETRESET", 53: "ECONNABORTED",
	54: "ECONNRESET", 55: "ENOBUFS", 56: "EISCONN", 57: "ENOTCONN",
	58: "ESHUTDOWN", 60: "ETIMEDOUT", 61: "ECONNREFUSED", 62: "ELOOP",
	63: "ENAMETOOLONG", 64: "EHOSTDOWN", 65: "EHOSTUNREACH",
	66: "ENOTEMPTY", 70: "ESTALE", 89: "ENOSYS",
}

// darwinSignals maps Darwin's <sys/signal.h> numbers to their names.
var darwinSignals = map[int64]string{
	1: "SIGHUP", 2: "SIGINT", 3: "SIGQUIT", 4: "SIGILL", 5: "SIGTRAP",
	6: "SIGABRT", 7: "SIGEMT", 8: "SIGFPE", 9: "SIGKILL", 10: "SIGBUS",
	11: "SIGSEGV", 12: "SIGSYS", 13: "SIGPIPE", 14: "SIGALRM", 15: "SIGTERM",
	16: "SIGURG", 17: "SIGSTOP", 18: "SIGTSTP", 19: "SIGCONT", 20: "SIGCHLD",
	21: "SIGTTIN", 22: "SIGTTOU", 23: "SIGIO", 24: "SIGXCPU", 25: "SIGXFSZ",
	26: "SIGVTALRM", 27: "SIGPROF", 28: "SIGWINCH", 29: "SIGINFO",
	30: "SIGUSR1", 31: "SIGUSR2",
}

func decodeErrno(item Item) string {
	v := decodeIntItem(item)
	if name, ok := darwinErrnos[v]; ok {
		return fmt.Sprintf("%d [%s]", v, name)
	}
	return strconv.FormatInt(v, 10)
}

func decodeSignal(item Item) string {
	v := decodeIntItem(item)
	if name, ok := darwinSignals[v]; ok {
		return fmt.Sprintf("%d [%s]", v, name)
	}
	return strconv.FormatInt(v, 10)
}

func decodeBitrate(item Item) string {
	v := decodeIntItem(item)
	units := []string{"bps", "Kbps", "Mbps", "Gbps", "Tbps"}
	f := float64(v)
	i := 0
	for f >= 1000 && i < len(units)-1 {
		f /= 1000
		i++
	}
	return fmt.Sprintf("%.2f %s", f, units[i])
}

func decodeIECBytes(item Item) string {
	v := decodeIntItem(item)
	units := []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}
	f := float64(v)
	i := 0
	for f >= 1024 && i < len(units)-1 {
		f /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", f, units[i])
}

func decodeInAddr(item Item) string {
	if len(item.Bytes) < 4 {
		return fmt.Sprintf("<decode:unknown:%X>", item.Bytes)
	}
	return net.IPv4(item.Bytes[0], item.Bytes[1], item.Bytes[2], item.Bytes[3]).String()
}

func decodeIn6Addr(item Item) string {
	if len(item.Bytes) < 16 {
		return fmt.Sprintf("<decode:unknown:%X>", item.Bytes)
	}
	return net.IP(item.Bytes[:16]).String()
}

// decodeSockaddr handles the common sockaddr_in/sockaddr_in6 layouts:
// family at offset 1 (BSD sockaddr convention), address following.
func decodeSockaddr(item Item) string {
	b := item.Bytes
	if len(b) < 2 {
		return fmt.Sprintf("<decode:unknown:%X>", b)
	}
	family := b[1]
	const (
		afINET  = 2
		afINET6 = 30 // Darwin's AF_INET6, distinct from Linux's 10
	)
	switch family {
	case afINET:
		if len(b) < 8 {
			break
		}
		port := binary.BigEndian.Uint16(b[2:4])
		ip := net.IPv4(b[4], b[5], b[6], b[7])
		return fmt.Sprintf("%s:%d", ip, port)
	case afINET6:
		if len(b) < 28 {
			break
		}
		port := binary.BigEndian.Uint16(b[2:4])
		ip := net.IP(b[8:24])
		return fmt.Sprintf("[%s]:%d", ip, port)
	}
	return fmt.Sprintf("<decode:unknown:%X>", b)
}

func decodeMDNSHeader(item Item) string {
	b := item.Bytes
	if len(b) < 12 {
		return fmt.Sprintf("<decode:unknown:%X>", b)
	}
	id := binary.BigEndian.Uint16(b[0:2])
	flags := binary.BigEndian.Uint16(b[2:4])
	qd := binary.BigEndian.Uint16(b[4:6])
	an := binary.BigEndian.Uint16(b[6:8])
	ns := binary.BigEndian.Uint16(b[8:10])
	ar := binary.BigEndian.Uint16(b[10:12])
	return fmt.Sprintf("id=0x%04x flags=0x%04x qd=%d an=%d ns=%d ar=%d", id, flags, qd, an, ns, ar)
}

var mdnsRRTypes = map[uint16]string{
	1: "A", 2: "NS", 5: "CNAME", 6: "SOA", 12: "PTR",
	15: "MX", 16: "TXT", 28: "AAAA", 33: "SRV", 41: "OPT", 255: "ANY",
}

func decodeMDNSRRType(item Item) string {
	v := uint16(decodeIntItem(item))
	if name, ok := mdnsRRTypes[v]; ok {
		return name
	}
	return strconv.Itoa(int(v))
}

var clAuthStatuses = []string{
	"NotDetermined", "Restricted", "Denied", "AuthorizedAlways",
	"AuthorizedWhenInUse",
}

func decodeCLAuthStatus(item Item) string {
	v := int(decodeIntItem(item))
	if v >= 0 && v < len(clAuthStatuses) {
		return clAuthStatuses[v]
	}
	return strconv.Itoa(v)
}

// decodeMBRDetails renders OpenDirectory membership-resolution details:
// a packed (type, id, name) triple.
func decodeMBRDetails(item Item) string {
	b := item.Bytes
	if len(b) < 5 {
		return fmt.Sprintf("<decode:unknown:%X>", b)
	}
	kind := b[0]
	id := binary.LittleEndian.Uint32(b[1:5])
	name := ""
	if len(b) > 5 {
		name = string(b[5:])
		name = strings.TrimRight(name, "\x00")
	}
	kindStr := "user"
	if kind == 1 {
		kindStr = "group"
	}
	if name != "" {
		return fmt.Sprintf("%s:%d(%s)", kindStr, id, name)
	}
	return fmt.Sprintf("%s:%d", kindStr, id)
}
