// Package proxyproto strips the optional HAProxy PROXY protocol preamble a
// TCP load balancer may prepend to a connection, recovering the original
// client and destination addresses.
//
// Both the v1 text and v2 binary encodings are recognized. The decoder is fed
// the accumulated first bytes of a connection and either consumes a complete
// preamble, reports that the bytes cannot be a preamble at all, or asks for
// more data. It runs at most once per connection, before any HTTP parsing.
//
// Spec: http://www.haproxy.org/download/2.0/doc/proxy-protocol.txt
package proxyproto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"strconv"
	"strings"
)

type Version uint8

const (
	None Version = iota
	V1
	V2
)

var (
	// ErrPartial means the buffer may still turn into a complete preamble.
	// The caller fetches more bytes and calls Decode again.
	ErrPartial = errors.New("incomplete proxy protocol preamble")
	// ErrMalformed means the bytes committed to being a preamble and then
	// violated the encoding. The connection cannot be recovered.
	ErrMalformed = errors.New("malformed proxy protocol preamble")
)

// Endpoint is one side of the proxied connection. For INET and INET6 families
// IP and Port are set; for unix-domain frames the address is an opaque blob
// kept in Raw.
type Endpoint struct {
	IP   net.IP
	Port uint16
	Raw  []byte
}

func (e Endpoint) String() string {
	if e.IP != nil {
		return net.JoinHostPort(e.IP.String(), strconv.Itoa(int(e.Port)))
	}

	return string(bytes.TrimRight(e.Raw, "\x00"))
}

// Info is the decoded preamble. When Present is false the caller keeps using
// the socket peer address.
type Info struct {
	Present     bool
	Version     Version
	Source      Endpoint
	Destination Endpoint
}

var (
	v2Signature = []byte("\r\n\r\n\x00\r\nQUIT\n")
	v1Prefix    = []byte("PROXY ")
	crlf        = []byte("\r\n")
)

const (
	v2HeaderLength = 16

	v2CmdLocal = 0x0
	v2CmdProxy = 0x1

	// the longest possible v1 line: two IPv6 addresses and two ports
	v1MaxLineLength = 107
)

// Decode inspects the first bytes of a connection. On success it returns the
// decoded info and the buffer with the preamble removed; when no preamble is
// recognized the buffer comes back untouched and Info is zero.
func Decode(buf []byte) (info Info, rest []byte, err error) {
	switch {
	case couldGrowInto(buf, v2Signature):
		return info, nil, ErrPartial
	case bytes.HasPrefix(buf, v2Signature):
		return decodeV2(buf)
	case couldGrowInto(buf, v1Prefix):
		return info, nil, ErrPartial
	case bytes.HasPrefix(buf, v1Prefix):
		return decodeV1(buf)
	}

	return info, buf, nil
}

// couldGrowInto reports whether buf is a strict prefix of the pattern, i.e.
// more data may still complete the match.
func couldGrowInto(buf, pattern []byte) bool {
	return len(buf) < len(pattern) && bytes.HasPrefix(pattern, buf)
}

func decodeV2(buf []byte) (info Info, rest []byte, err error) {
	if len(buf) < v2HeaderLength {
		return info, nil, ErrPartial
	}

	verCmd := buf[12]
	if verCmd>>4 != 0x2 {
		return info, nil, ErrMalformed
	}

	family := buf[13]
	length := int(binary.BigEndian.Uint16(buf[14:16]))
	if len(buf) < v2HeaderLength+length {
		return info, nil, ErrPartial
	}

	payload := buf[v2HeaderLength : v2HeaderLength+length]
	rest = buf[v2HeaderLength+length:]

	if verCmd&0x0f != v2CmdProxy {
		// LOCAL and unknown commands carry no usable address, but their
		// declared payload must still be skipped so HTTP parsing starts at
		// the right offset
		return Info{Version: V2}, rest, nil
	}

	info = Info{Version: V2}

	switch family {
	case 0x11, 0x12: // INET over stream/dgram
		if len(payload) < 12 {
			return info, rest, nil
		}

		info.Present = true
		info.Source = Endpoint{
			IP:   net.IP(bytes.Clone(payload[0:4])),
			Port: binary.BigEndian.Uint16(payload[8:10]),
		}
		info.Destination = Endpoint{
			IP:   net.IP(bytes.Clone(payload[4:8])),
			Port: binary.BigEndian.Uint16(payload[10:12]),
		}
	case 0x21, 0x22: // INET6 over stream/dgram
		if len(payload) < 36 {
			return info, rest, nil
		}

		info.Present = true
		info.Source = Endpoint{
			IP:   net.IP(bytes.Clone(payload[0:16])),
			Port: binary.BigEndian.Uint16(payload[32:34]),
		}
		info.Destination = Endpoint{
			IP:   net.IP(bytes.Clone(payload[16:32])),
			Port: binary.BigEndian.Uint16(payload[34:36]),
		}
	case 0x31, 0x32: // UNIX over stream/dgram
		if len(payload) < 216 {
			return info, rest, nil
		}

		info.Present = true
		info.Source = Endpoint{Raw: bytes.Clone(payload[0:108])}
		info.Destination = Endpoint{Raw: bytes.Clone(payload[108:216])}
	default:
		// unrecognized family: no proxy info, payload already skipped
	}

	return info, rest, nil
}

func decodeV1(buf []byte) (info Info, rest []byte, err error) {
	end := bytes.Index(buf, crlf)
	if end == -1 {
		if len(buf) > v1MaxLineLength {
			return info, nil, ErrMalformed
		}

		return info, nil, ErrPartial
	}

	line := string(buf[len(v1Prefix):end])
	rest = buf[end+len(crlf):]

	if line == "UNKNOWN" {
		return Info{Version: V1}, rest, nil
	}

	family, addrs, found := strings.Cut(line, " ")
	if !found {
		return info, nil, ErrMalformed
	}

	switch family {
	case "TCP4", "TCP6", "UNKNOWN":
		// The "UNKNOWN" variant with trailing address tokens still yields
		// proxy info, exactly like TCP4/TCP6 do. Arguably UNKNOWN should
		// mean "ignore the addresses", but the established wire behavior is
		// to extract them.
	default:
		return info, nil, ErrMalformed
	}

	info, err = parseV1Addresses(addrs)
	if err != nil {
		return Info{}, nil, err
	}

	return info, rest, nil
}

func parseV1Addresses(addrs string) (info Info, err error) {
	srcAddr, addrs, ok1 := strings.Cut(addrs, " ")
	dstAddr, addrs, ok2 := strings.Cut(addrs, " ")
	srcPort, dstPort, ok3 := strings.Cut(addrs, " ")
	if !ok1 || !ok2 || !ok3 {
		return info, ErrMalformed
	}

	info = Info{
		Present:     true,
		Version:     V1,
		Source:      Endpoint{IP: net.ParseIP(srcAddr)},
		Destination: Endpoint{IP: net.ParseIP(dstAddr)},
	}
	if info.Source.IP == nil || info.Destination.IP == nil {
		return info, ErrMalformed
	}

	if info.Source.Port, err = parsePort(srcPort); err != nil {
		return info, err
	}

	if info.Destination.Port, err = parsePort(dstPort); err != nil {
		return info, err
	}

	return info, nil
}

func parsePort(token string) (uint16, error) {
	port, err := strconv.ParseUint(token, 10, 16)
	if err != nil {
		return 0, ErrMalformed
	}

	return uint16(port), nil
}
