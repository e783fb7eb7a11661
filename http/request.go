package http

import (
	"github.com/indigo-web/utils/strcomp"
	"github.com/zzet/cowboy/http/headers"
	"github.com/zzet/cowboy/http/method"
	"github.com/zzet/cowboy/http/proto"
)

// Request is a single parsed request. It is filled in by the parser and stays
// valid until the next request on the same connection is parsed, so stages
// must not retain references past their own execution.
type Request struct {
	Method method.Method
	// Path is the origin-form path, or a literal "*" for asterisk-form targets.
	Path    string
	Query   string
	Proto   proto.Protocol
	Headers *headers.Headers
	// Host and Port are derived from the Host header or, for absolute-form
	// targets, from the target itself. A bracketed IPv6 literal keeps its
	// brackets.
	Host string
	Port uint16
	// RemoteAddr is the apparent client address: the decoded PROXY protocol
	// source when a preamble was present, the socket peer otherwise.
	RemoteAddr string
	// Encrypted tells whether the transport the request arrived on is TLS.
	Encrypted bool
	// KeepAliveAllowed tells the handler whether the connection is still
	// eligible for another request after this one.
	KeepAliveAllowed bool

	ContentLength int
	Chunked       bool
	HasTrailer    bool

	Connection string
	Response   *Response
}

func NewRequest(hdrs *headers.Headers) *Request {
	return &Request{
		Headers:  hdrs,
		Response: NewResponse(),
	}
}

// WantsClose reports whether the request itself asks for the connection to be
// torn down after the response: either an explicit "Connection: close", or an
// HTTP/1.0 peer that did not opt into keep-alive.
func (r *Request) WantsClose() bool {
	if strcomp.EqualFold(r.Connection, "close") {
		return true
	}

	if !r.Proto.KeepAliveByDefault() {
		return !strcomp.EqualFold(r.Connection, "keep-alive")
	}

	return false
}

// Reset prepares the request for reuse by the next parse on the same
// connection. Connection-scoped fields (RemoteAddr, Encrypted) survive.
func (r *Request) Reset() {
	r.Method = ""
	r.Path = ""
	r.Query = ""
	r.Proto = 0
	r.Headers.Clear()
	r.Host = ""
	r.Port = 0
	r.KeepAliveAllowed = false
	r.ContentLength = 0
	r.Chunked = false
	r.HasTrailer = false
	r.Connection = ""
	r.Response.Clear()
}
