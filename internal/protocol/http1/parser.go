package http1

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/indigo-web/utils/arena"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	"github.com/zzet/cowboy/config"
	"github.com/zzet/cowboy/http"
	"github.com/zzet/cowboy/http/method"
	"github.com/zzet/cowboy/http/proto"
	"github.com/zzet/cowboy/http/status"
)

// Parser is a stream-based requests parser. It modifies the request object
// in-place and never assumes a complete request arrives in one call: any
// state may report Pending, after which the session loop reads more bytes
// and calls Parse again with them. Bytes following the final blank line come
// back as extra, untouched, and belong to the next request (or to the body).
type Parser struct {
	request          *http.Request
	startLineArena   arena.Arena[byte]
	headerKeyArena   arena.Arena[byte]
	headerValueArena arena.Arena[byte]
	limits           config.HTTP
	headerKey        string
	targetHost       string
	encrypted        bool
	emptyLines       int
	headersNumber    int
	state            parserState
}

func NewParser(cfg *config.Config, request *http.Request, encrypted bool) *Parser {
	limits := cfg.HTTP

	return &Parser{
		request: request,
		startLineArena: arena.NewArena[byte](
			initialSize(limits.MaxRequestLineLength),
			limits.MaxRequestLineLength,
		),
		headerKeyArena: arena.NewArena[byte](
			initialSize(limits.MaxHeaderNameLength*limits.MaxHeaders),
			limits.MaxHeaderNameLength*limits.MaxHeaders,
		),
		headerValueArena: arena.NewArena[byte](
			initialSize(limits.MaxHeaderValueLength*limits.MaxHeaders),
			limits.MaxHeaderValueLength*limits.MaxHeaders,
		),
		limits:    limits,
		encrypted: encrypted,
		state:     eEmptyLines,
	}
}

func initialSize(maximal int) int {
	const preferred = 1024

	if maximal < preferred {
		return maximal
	}

	return preferred
}

// AwaitingHeaders reports whether the request line has already been consumed.
// The session loop uses it to choose between answering 408 (the peer proved
// it is sending a request and stalled) and silent termination (the peer never
// began one).
func (p *Parser) AwaitingHeaders() bool {
	return p.state >= eHeaderKey
}

func (p *Parser) Parse(data []byte) (state State, extra []byte, err error) {
	request := p.request
	headers := request.Headers

	switch p.state {
	case eEmptyLines:
		goto emptyLines
	case eEmptyLinesCR:
		goto emptyLinesCR
	case eMethod:
		goto parseMethod
	case eRequestLine:
		goto requestLine
	case eHeaderKey:
		goto headerKey
	case eHeaderFolding:
		goto headerFolding
	case eHeaderValue:
		goto headerValue
	case eBlankLineCR:
		goto blankLineCR
	default:
		panic(fmt.Sprintf("BUG: http1.Parser: unexpected state: %v", p.state))
	}

emptyLines:
	if len(data) == 0 {
		p.state = eEmptyLines
		return Pending, nil, nil
	}

	switch data[0] {
	case '\r':
		data = data[1:]
		goto emptyLinesCR
	case '\n':
		// a line feed with no preceding carriage return cannot begin a
		// request line
		return Error, nil, status.ErrMalformedStartLine
	default:
		goto parseMethod
	}

emptyLinesCR:
	if len(data) == 0 {
		p.state = eEmptyLinesCR
		return Pending, nil, nil
	}

	if data[0] != '\n' {
		return Error, nil, status.ErrMalformedStartLine
	}

	if p.emptyLines++; p.emptyLines > p.limits.MaxEmptyLines {
		return Error, nil, status.ErrTooManyEmptyLines
	}

	data = data[1:]
	goto emptyLines

parseMethod:
	{
		sp := bytes.IndexByte(data, ' ')
		if sp == -1 {
			if bytes.IndexByte(data, '\n') != -1 {
				return Error, nil, status.ErrMalformedStartLine
			}

			if !p.startLineArena.Append(data...) {
				return Error, nil, status.ErrRequestLineTooLong
			}

			p.state = eMethod
			return Pending, nil, nil
		}

		if bytes.IndexByte(data[:sp], '\n') != -1 {
			return Error, nil, status.ErrMalformedStartLine
		}

		if !p.startLineArena.Append(data[:sp]...) {
			return Error, nil, status.ErrRequestLineTooLong
		}

		methodValue := p.startLineArena.Finish()
		if len(methodValue) == 0 {
			return Error, nil, status.ErrMalformedStartLine
		}

		request.Method = method.Method(uf.B2S(methodValue))
		data = data[sp+1:]
		goto requestLine
	}

requestLine:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			if !p.startLineArena.Append(data...) {
				return Error, nil, status.ErrRequestLineTooLong
			}

			p.state = eRequestLine
			return Pending, nil, nil
		}

		if !p.startLineArena.Append(data[:lf]...) {
			return Error, nil, status.ErrRequestLineTooLong
		}

		line := p.startLineArena.Finish()
		data = data[lf+1:]

		// the request line is terminated by CRLF exactly, a bare LF cannot
		// end a version token
		if len(line) == 0 || line[len(line)-1] != '\r' {
			return Error, nil, status.ErrMalformedStartLine
		}

		line = line[:len(line)-1]
		sp := bytes.LastIndexByte(line, ' ')
		if sp == -1 {
			return Error, nil, status.ErrMalformedStartLine
		}

		request.Proto = proto.FromBytes(line[sp+1:])
		if request.Proto == proto.Unknown {
			return Error, nil, status.ErrUnsupportedVersion
		}

		if err = p.parseTarget(line[:sp]); err != nil {
			return Error, nil, err
		}

		goto headerKey
	}

headerKey:
	{
		if len(data) == 0 {
			p.state = eHeaderKey
			return Pending, nil, nil
		}

		if p.headerKeyArena.SegmentLength() == 0 {
			switch data[0] {
			case '\n':
				return p.finalize(data[1:])
			case '\r':
				data = data[1:]
				goto blankLineCR
			case ' ', '\t':
				goto headerFolding
			}
		} else if data[0] == '\r' || data[0] == '\n' {
			// a line terminator right after a pending key means the line
			// had no colon
			return Error, nil, status.ErrHeaderFraming
		}

		colon := bytes.IndexByte(data, ':')
		if colon == -1 {
			if bytes.IndexByte(data, '\n') != -1 {
				return Error, nil, status.ErrHeaderFraming
			}

			if !p.headerKeyArena.Append(data...) ||
				p.headerKeyArena.SegmentLength() > p.limits.MaxHeaderNameLength {
				return Error, nil, status.ErrHeaderTooLong
			}

			p.state = eHeaderKey
			return Pending, nil, nil
		}

		if bytes.IndexByte(data[:colon], '\n') != -1 {
			return Error, nil, status.ErrHeaderFraming
		}

		if !p.headerKeyArena.Append(data[:colon]...) ||
			p.headerKeyArena.SegmentLength() > p.limits.MaxHeaderNameLength {
			return Error, nil, status.ErrHeaderTooLong
		}

		key := p.headerKeyArena.Finish()
		if len(key) == 0 {
			return Error, nil, status.ErrHeaderFraming
		}

		lowercase(key)
		p.headerKey = uf.B2S(key)
		data = data[colon+1:]

		if p.headersNumber++; p.headersNumber > p.limits.MaxHeaders {
			return Error, nil, status.ErrTooManyHeaders
		}

		goto headerValue
	}

headerFolding:
	{
		// the line continues the previous header's value, whatever it
		// contains, colons included
		if headers.Len() == 0 {
			return Error, nil, status.ErrHeaderFraming
		}

		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			if !p.headerValueArena.Append(data...) ||
				p.headerValueArena.SegmentLength() > p.limits.MaxHeaderValueLength {
				return Error, nil, status.ErrHeaderTooLong
			}

			p.state = eHeaderFolding
			return Pending, nil, nil
		}

		if !p.headerValueArena.Append(data[:lf]...) ||
			p.headerValueArena.SegmentLength() > p.limits.MaxHeaderValueLength {
			return Error, nil, status.ErrHeaderTooLong
		}

		data = data[lf+1:]
		continuation := trimWS(stripCR(p.headerValueArena.Finish()))

		last := headers.Unwrap()
		if prev := last[len(last)-1].Value; len(prev)+1+len(continuation) > p.limits.MaxHeaderValueLength {
			return Error, nil, status.ErrHeaderTooLong
		}

		headers.AppendToLast(" " + uf.B2S(continuation))
		goto headerKey
	}

headerValue:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			if !p.headerValueArena.Append(data...) ||
				p.headerValueArena.SegmentLength() > p.limits.MaxHeaderValueLength {
				return Error, nil, status.ErrHeaderTooLong
			}

			p.state = eHeaderValue
			return Pending, nil, nil
		}

		if !p.headerValueArena.Append(data[:lf]...) ||
			p.headerValueArena.SegmentLength() > p.limits.MaxHeaderValueLength {
			return Error, nil, status.ErrHeaderTooLong
		}

		data = data[lf+1:]
		value := uf.B2S(trimPrefixWS(stripCR(p.headerValueArena.Finish())))
		headers.Add(p.headerKey, value)

		switch p.headerKey {
		case "content-length":
			request.ContentLength, err = parseContentLength(value)
			if err != nil {
				return Error, nil, err
			}
		case "connection":
			request.Connection = value
		case "transfer-encoding":
			if hasToken(value, "chunked") {
				request.Chunked = true
			}
		case "trailer":
			request.HasTrailer = true
		}

		goto headerKey
	}

blankLineCR:
	if len(data) == 0 {
		p.state = eBlankLineCR
		return Pending, nil, nil
	}

	if data[0] != '\n' {
		return Error, nil, status.ErrHeaderFraming
	}

	return p.finalize(data[1:])
}

// finalize derives host and port once the terminating blank line is seen.
// The Host header wins; an absolute-form target's authority serves as the
// fallback; HTTP/1.0 may have neither and gets a transport-derived default.
func (p *Parser) finalize(extra []byte) (State, []byte, error) {
	request := p.request

	host, found := request.Headers.Get("host")
	if !found && p.targetHost != "" {
		host, found = p.targetHost, true
	}

	if !found {
		if request.Proto.RequiresHost() {
			return Error, nil, status.ErrMissingHost
		}

		request.Host = ""
		request.Port = p.defaultPort()
	} else {
		var err error
		request.Host, request.Port, err = splitHostPort(host, p.defaultPort())
		if err != nil {
			return Error, nil, err
		}
	}

	request.Encrypted = p.encrypted

	return HeadersCompleted, extra, nil
}

func (p *Parser) parseTarget(target []byte) error {
	if len(target) == 0 {
		return status.ErrMalformedStartLine
	}

	if len(target) == 1 && target[0] == '*' {
		p.request.Path = "*"
		return nil
	}

	var path []byte

	switch {
	case bytes.HasPrefix(target, []byte("http://")):
		path = p.stripAuthority(target[len("http://"):])
	case bytes.HasPrefix(target, []byte("https://")):
		path = p.stripAuthority(target[len("https://"):])
	case target[0] == '/':
		path = target
	default:
		return status.ErrMalformedStartLine
	}

	// fragments are never a part of the effective target
	if hash := bytes.IndexByte(path, '#'); hash != -1 {
		path = path[:hash]
	}

	if question := bytes.IndexByte(path, '?'); question != -1 {
		p.request.Query = uf.B2S(path[question+1:])
		path = path[:question]
	}

	if len(path) == 0 {
		return status.ErrMalformedStartLine
	}

	p.request.Path = uf.B2S(path)

	return nil
}

func (p *Parser) stripAuthority(rest []byte) (path []byte) {
	slash := bytes.IndexByte(rest, '/')
	if slash == -1 {
		p.targetHost = uf.B2S(rest)
		return []byte("/")
	}

	p.targetHost = uf.B2S(rest[:slash])

	return rest[slash:]
}

func (p *Parser) defaultPort() uint16 {
	if p.encrypted {
		return 443
	}

	return 80
}

// Release prepares the parser for the next request on the same connection.
// The arenas are cleared, so all the strings handed out via the request
// become invalid from here on.
func (p *Parser) Release() {
	p.startLineArena.Clear()
	p.headerKeyArena.Clear()
	p.headerValueArena.Clear()
	p.headerKey = ""
	p.targetHost = ""
	p.emptyLines = 0
	p.headersNumber = 0
	p.state = eEmptyLines
}

func splitHostPort(raw string, defaultPort uint16) (host string, port uint16, err error) {
	if len(raw) == 0 {
		return "", defaultPort, nil
	}

	if raw[0] == '[' {
		// a bracketed literal keeps its brackets as a part of the host
		end := strings.IndexByte(raw, ']')
		if end == -1 {
			return "", 0, status.ErrBadHostPort
		}

		host, raw = raw[:end+1], raw[end+1:]
		if len(raw) == 0 {
			return host, defaultPort, nil
		}

		if raw[0] != ':' {
			return "", 0, status.ErrBadHostPort
		}

		port, err = parsePort(raw[1:])
		return host, port, err
	}

	colon := strings.IndexByte(raw, ':')
	if colon == -1 {
		return raw, defaultPort, nil
	}

	port, err = parsePort(raw[colon+1:])

	return raw[:colon], port, err
}

func parsePort(token string) (uint16, error) {
	port, err := strconv.ParseUint(token, 10, 16)
	if err != nil {
		return 0, status.ErrBadHostPort
	}

	return uint16(port), nil
}

func parseContentLength(value string) (length int, err error) {
	if len(value) == 0 {
		return 0, status.ErrBadContentLength
	}

	const cutoff = math.MaxInt / 10

	for i := 0; i < len(value); i++ {
		char := value[i]
		if char < '0' || char > '9' {
			return 0, status.ErrBadContentLength
		}

		if length > cutoff {
			return 0, status.ErrBadContentLength
		}

		digit := int(char - '0')
		if length == cutoff && digit > math.MaxInt%10 {
			return 0, status.ErrBadContentLength
		}

		length = length*10 + digit
	}

	return length, nil
}

func hasToken(value, token string) bool {
	for len(value) > 0 {
		var current string

		if comma := strings.IndexByte(value, ','); comma == -1 {
			current, value = value, ""
		} else {
			current, value = value[:comma], value[comma+1:]
		}

		if strcomp.EqualFold(uf.B2S(trimWS([]byte(current))), token) {
			return true
		}
	}

	return false
}

func lowercase(b []byte) {
	for i, char := range b {
		if char >= 'A' && char <= 'Z' {
			b[i] = char | 0x20
		}
	}
}

func stripCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}

	return b
}

func trimPrefixWS(b []byte) []byte {
	for i, char := range b {
		if char != ' ' && char != '\t' {
			return b[i:]
		}
	}

	return b[:0]
}

func trimWS(b []byte) []byte {
	b = trimPrefixWS(b)

	for i := len(b); i > 0; i-- {
		if b[i-1] != ' ' && b[i-1] != '\t' {
			return b[:i]
		}
	}

	return b[:0]
}
