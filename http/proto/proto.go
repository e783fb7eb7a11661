package proto

import "github.com/indigo-web/utils/uf"

type Protocol uint8

const (
	Unknown Protocol = iota
	HTTP10
	HTTP11
)

// String returns the protocol token as it appears on the wire.
func (p Protocol) String() string {
	switch p {
	case HTTP10:
		return "HTTP/1.0"
	case HTTP11:
		return "HTTP/1.1"
	default:
		return ""
	}
}

// KeepAliveByDefault reports whether connections are persistent unless the
// peer asks otherwise. Only HTTP/1.1 defaults to keep-alive.
func (p Protocol) KeepAliveByDefault() bool {
	return p == HTTP11
}

// RequiresHost reports whether the protocol mandates a Host header.
func (p Protocol) RequiresHost() bool {
	return p == HTTP11
}

// FromBytes recognizes exactly the two supported version tokens. Everything
// else, including otherwise well-formed versions like HTTP/2.0, is Unknown.
func FromBytes(raw []byte) Protocol {
	switch uf.B2S(raw) {
	case "HTTP/1.0":
		return HTTP10
	case "HTTP/1.1":
		return HTTP11
	default:
		return Unknown
	}
}
