package http1

import (
	"testing"

	"github.com/dchest/uniuri"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zzet/cowboy/config"
	"github.com/zzet/cowboy/http"
	"github.com/zzet/cowboy/http/headers"
	"github.com/zzet/cowboy/http/method"
	"github.com/zzet/cowboy/http/proto"
	"github.com/zzet/cowboy/http/status"
)

func getParser(cfg *config.Config) (*Parser, *http.Request) {
	request := http.NewRequest(headers.New())
	return NewParser(cfg, request, false), request
}

func splitIntoParts(raw []byte, n int) (parts [][]byte) {
	for i := 0; i < len(raw); i += n {
		end := i + n
		if end > len(raw) {
			end = len(raw)
		}

		parts = append(parts, raw[i:end])
	}

	return parts
}

func feedPartially(p *Parser, raw []byte, n int) (state State, extra []byte, err error) {
	parts := splitIntoParts(raw, n)

	for i, chunk := range parts {
		state, extra, err = p.Parse(chunk)
		if err != nil {
			return state, extra, err
		}
		if state == HeadersCompleted {
			// the head may complete before the trailing chunks are fed;
			// whatever wasn't consumed belongs to extra
			tail := append([]byte(nil), extra...)
			for _, rest := range parts[i+1:] {
				tail = append(tail, rest...)
			}

			return state, tail, nil
		}
	}

	return state, extra, err
}

func TestParser(t *testing.T) {
	cfg := config.Default()

	t.Run("simple GET", func(t *testing.T) {
		parser, request := getParser(cfg)
		state, extra, err := parser.Parse([]byte("GET / HTTP/1.1\r\nHost: localhost\r\n\r\n"))
		require.NoError(t, err)
		require.Equal(t, HeadersCompleted, state)
		require.Empty(t, extra)
		require.Equal(t, method.GET, request.Method)
		require.Equal(t, "/", request.Path)
		require.Empty(t, request.Query)
		require.Equal(t, proto.HTTP11, request.Proto)
		require.Equal(t, "localhost", request.Host)
		require.Equal(t, uint16(80), request.Port)
	})

	t.Run("GET with headers", func(t *testing.T) {
		parser, request := getParser(cfg)
		raw := "GET /search?q=cat&lang=en HTTP/1.1\r\nHost: example.com\r\nAccept: text/html\r\n\r\n"
		state, extra, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, HeadersCompleted, state)
		require.Empty(t, extra)
		require.Equal(t, "/search", request.Path)
		require.Equal(t, "q=cat&lang=en", request.Query)
		require.Equal(t, "text/html", request.Headers.Value("accept"))
		// keys are normalized, lookups stay case-insensitive
		require.Equal(t, "text/html", request.Headers.Value("Accept"))
	})

	t.Run("duplicate headers keep order", func(t *testing.T) {
		parser, request := getParser(cfg)
		raw := "GET / HTTP/1.1\r\nHost: a\r\nSet-Cookie: first\r\nX-Padding: x\r\nSet-Cookie: second\r\n\r\n"
		state, _, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, HeadersCompleted, state)
		require.Equal(t, []string{"first", "second"}, request.Headers.Values("set-cookie"))
	})

	t.Run("fuzz GET", func(t *testing.T) {
		raw := []byte("POST /submit?id=42 HTTP/1.1\r\nHost: example.com:8080\r\nContent-Length: 5\r\nAccept: */*\r\n\r\nhello")

		for n := 1; n < len(raw); n++ {
			parser, request := getParser(cfg)
			state, extra, err := feedPartially(parser, raw, n)
			require.NoError(t, err, n)
			require.Equal(t, HeadersCompleted, state, n)
			require.Equal(t, "hello", string(extra), n)
			require.Equal(t, method.POST, request.Method)
			require.Equal(t, "/submit", request.Path)
			require.Equal(t, "id=42", request.Query)
			require.Equal(t, "example.com", request.Host)
			require.Equal(t, uint16(8080), request.Port)
			require.Equal(t, 5, request.ContentLength)
			require.Equal(t, "*/*", request.Headers.Value("accept"))
		}
	})

	t.Run("empty lines before request", func(t *testing.T) {
		parser, request := getParser(cfg)
		state, _, err := parser.Parse([]byte("\r\n\r\nGET / HTTP/1.1\r\nHost: a\r\n\r\n"))
		require.NoError(t, err)
		require.Equal(t, HeadersCompleted, state)
		require.Equal(t, method.GET, request.Method)
	})

	t.Run("too many empty lines", func(t *testing.T) {
		custom := config.Default()
		custom.HTTP.MaxEmptyLines = 2

		parser, _ := getParser(custom)
		_, _, err := parser.Parse([]byte("\r\n\r\n\r\nGET / HTTP/1.1\r\n\r\n"))
		require.Equal(t, status.ErrTooManyEmptyLines, err)
	})

	t.Run("bare LF cannot open a request", func(t *testing.T) {
		parser, _ := getParser(cfg)
		_, _, err := parser.Parse([]byte("\nGET / HTTP/1.1\r\n\r\n"))
		require.Equal(t, status.ErrMalformedStartLine, err)
	})

	t.Run("bare LF cannot end the request line", func(t *testing.T) {
		parser, _ := getParser(cfg)
		_, _, err := parser.Parse([]byte("GET / HTTP/1.1\nHost: a\r\n\r\n"))
		require.Equal(t, status.ErrMalformedStartLine, err)
	})

	t.Run("unsupported version", func(t *testing.T) {
		parser, _ := getParser(cfg)
		_, _, err := parser.Parse([]byte("GET / HTTP/2.0\r\n\r\n"))
		require.Equal(t, status.ErrUnsupportedVersion, err)

		parser, _ = getParser(cfg)
		_, _, err = parser.Parse([]byte("GET / SPDY/3\r\n\r\n"))
		require.Equal(t, status.ErrUnsupportedVersion, err)
	})

	t.Run("request line too long", func(t *testing.T) {
		custom := config.Default()
		custom.HTTP.MaxRequestLineLength = 64

		// no terminator at all: the overflow must be reported as the line
		// being too long, not as a framing error
		raw := []byte("GET /" + uniuri.NewLen(128))

		for _, n := range []int{1, 3, 17, len(raw)} {
			parser, _ := getParser(custom)
			_, _, err := feedPartially(parser, raw, n)
			require.Equal(t, status.ErrRequestLineTooLong, err, n)
		}
	})

	t.Run("header value too long", func(t *testing.T) {
		custom := config.Default()
		custom.HTTP.MaxHeaderValueLength = 64

		raw := []byte("GET / HTTP/1.1\r\nX-Long: " + uniuri.NewLen(128) + "\r\n\r\n")

		for _, n := range []int{1, 5, 33, len(raw)} {
			parser, _ := getParser(custom)
			_, _, err := feedPartially(parser, raw, n)
			require.Equal(t, status.ErrHeaderTooLong, err, n)
		}
	})

	t.Run("too many headers", func(t *testing.T) {
		custom := config.Default()
		custom.HTTP.MaxHeaders = 2

		parser, _ := getParser(custom)
		raw := "GET / HTTP/1.1\r\nA: 1\r\nB: 2\r\nC: 3\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.Equal(t, status.ErrTooManyHeaders, err)
	})

	t.Run("header line without a colon", func(t *testing.T) {
		parser, _ := getParser(cfg)
		_, _, err := parser.Parse([]byte("GET / HTTP/1.1\r\nHost example.com\r\n\r\n"))
		require.Equal(t, status.ErrHeaderFraming, err)
	})

	t.Run("colonless header line at every split", func(t *testing.T) {
		// the verdict must not depend on where the line gets fragmented
		raw := []byte("GET / HTTP/1.1\r\nHost: a\r\nX-Junk\r\n\r\n")

		for n := 1; n < len(raw); n++ {
			parser, _ := getParser(cfg)
			state, _, err := feedPartially(parser, raw, n)
			require.Equal(t, status.ErrHeaderFraming, err, n)
			require.Equal(t, Error, state, n)
		}
	})

	t.Run("empty header key", func(t *testing.T) {
		parser, _ := getParser(cfg)
		_, _, err := parser.Parse([]byte("GET / HTTP/1.1\r\n: value\r\n\r\n"))
		require.Equal(t, status.ErrHeaderFraming, err)
	})

	t.Run("folding", func(t *testing.T) {
		raw := []byte("GET / HTTP/1.1\r\nHost: a\r\nX-Folded: first\r\n\tsecond\r\n\r\n")

		for n := 1; n < len(raw); n++ {
			parser, request := getParser(cfg)
			state, _, err := feedPartially(parser, raw, n)
			require.NoError(t, err, n)
			require.Equal(t, HeadersCompleted, state, n)
			require.Equal(t, "first second", request.Headers.Value("x-folded"), n)
		}
	})

	t.Run("folding before any header", func(t *testing.T) {
		parser, _ := getParser(cfg)
		_, _, err := parser.Parse([]byte("GET / HTTP/1.1\r\n\tdangling\r\n\r\n"))
		require.Equal(t, status.ErrHeaderFraming, err)
	})

	t.Run("content length", func(t *testing.T) {
		parser, request := getParser(cfg)
		raw := "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 13\r\n\r\nHello, world!"
		state, extra, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, HeadersCompleted, state)
		require.Equal(t, "Hello, world!", string(extra))
		require.Equal(t, 13, request.ContentLength)
	})

	t.Run("malformed content length", func(t *testing.T) {
		parser, _ := getParser(cfg)
		_, _, err := parser.Parse([]byte("POST / HTTP/1.1\r\nContent-Length: 12a\r\n\r\n"))
		require.Equal(t, status.ErrBadContentLength, err)
	})

	t.Run("overflowing content length", func(t *testing.T) {
		parser, _ := getParser(cfg)
		raw := "POST / HTTP/1.1\r\nContent-Length: 92233720368547758080\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.Equal(t, status.ErrBadContentLength, err)
	})

	t.Run("chunked transfer encoding", func(t *testing.T) {
		parser, request := getParser(cfg)
		raw := "POST / HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: gzip, Chunked\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.True(t, request.Chunked)
	})

	t.Run("asterisk form", func(t *testing.T) {
		parser, request := getParser(cfg)
		_, _, err := parser.Parse([]byte("OPTIONS * HTTP/1.1\r\nHost: a\r\n\r\n"))
		require.NoError(t, err)
		require.Equal(t, "*", request.Path)
	})

	t.Run("fragment is discarded", func(t *testing.T) {
		parser, request := getParser(cfg)
		_, _, err := parser.Parse([]byte("GET /page?q=1#section HTTP/1.1\r\nHost: a\r\n\r\n"))
		require.NoError(t, err)
		require.Equal(t, "/page", request.Path)
		require.Equal(t, "q=1", request.Query)
	})

	t.Run("connection token", func(t *testing.T) {
		parser, request := getParser(cfg)
		_, _, err := parser.Parse([]byte("GET / HTTP/1.1\r\nHost: a\r\nConnection: Keep-Alive\r\n\r\n"))
		require.NoError(t, err)
		require.Equal(t, "Keep-Alive", request.Connection)
		require.False(t, request.WantsClose())
	})
}

func TestParserTarget(t *testing.T) {
	cfg := config.Default()

	t.Run("absolute form without Host header", func(t *testing.T) {
		parser, request := getParser(cfg)
		raw := "GET http://example.com:8080/path?x=y HTTP/1.1\r\n\r\n"
		state, _, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, HeadersCompleted, state)
		require.Equal(t, "/path", request.Path)
		require.Equal(t, "x=y", request.Query)
		require.Equal(t, "example.com", request.Host)
		require.Equal(t, uint16(8080), request.Port)
	})

	t.Run("Host header wins over absolute form", func(t *testing.T) {
		parser, request := getParser(cfg)
		raw := "GET http://ignored.example/path HTTP/1.1\r\nHost: real.example:9000\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, "real.example", request.Host)
		require.Equal(t, uint16(9000), request.Port)
	})

	t.Run("absolute form with no path", func(t *testing.T) {
		parser, request := getParser(cfg)
		_, _, err := parser.Parse([]byte("GET http://example.com HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)
		require.Equal(t, "/", request.Path)
		require.Equal(t, "example.com", request.Host)
	})

	t.Run("relative target must start with a slash", func(t *testing.T) {
		parser, _ := getParser(cfg)
		_, _, err := parser.Parse([]byte("GET foo/bar HTTP/1.1\r\n\r\n"))
		require.Equal(t, status.ErrMalformedStartLine, err)
	})
}

func TestParserHost(t *testing.T) {
	cfg := config.Default()

	t.Run("missing Host on HTTP/1.1", func(t *testing.T) {
		parser, _ := getParser(cfg)
		_, _, err := parser.Parse([]byte("GET / HTTP/1.1\r\n\r\n"))
		require.Equal(t, status.ErrMissingHost, err)
	})

	t.Run("missing Host on HTTP/1.0", func(t *testing.T) {
		parser, request := getParser(cfg)
		state, _, err := parser.Parse([]byte("GET / HTTP/1.0\r\n\r\n"))
		require.NoError(t, err)
		require.Equal(t, HeadersCompleted, state)
		require.Empty(t, request.Host)
		require.Equal(t, uint16(80), request.Port)
	})

	t.Run("bracketed IPv6 literal", func(t *testing.T) {
		parser, request := getParser(cfg)
		_, _, err := parser.Parse([]byte("GET / HTTP/1.1\r\nHost: [::1]:9090\r\n\r\n"))
		require.NoError(t, err)
		require.Equal(t, "[::1]", request.Host)
		require.Equal(t, uint16(9090), request.Port)
	})

	t.Run("bracketed IPv6 literal without port", func(t *testing.T) {
		parser, request := getParser(cfg)
		_, _, err := parser.Parse([]byte("GET / HTTP/1.1\r\nHost: [::1]\r\n\r\n"))
		require.NoError(t, err)
		require.Equal(t, "[::1]", request.Host)
		require.Equal(t, uint16(80), request.Port)
	})

	t.Run("malformed port", func(t *testing.T) {
		parser, _ := getParser(cfg)
		_, _, err := parser.Parse([]byte("GET / HTTP/1.1\r\nHost: example.com:http\r\n\r\n"))
		require.Equal(t, status.ErrBadHostPort, err)
	})
}

func TestParserReuse(t *testing.T) {
	cfg := config.Default()
	parser, request := getParser(cfg)

	for i := 0; i < 3; i++ {
		state, extra, err := parser.Parse([]byte("GET /again HTTP/1.1\r\nHost: example.com\r\n\r\n"))
		require.NoError(t, err, i)
		require.Equal(t, HeadersCompleted, state, i)
		require.Empty(t, extra, i)
		require.Equal(t, "/again", request.Path, i)
		require.Equal(t, "example.com", request.Host, i)

		parser.Release()
		request.Reset()
	}
}

func TestAwaitingHeaders(t *testing.T) {
	parser, _ := getParser(config.Default())
	assert.False(t, parser.AwaitingHeaders())

	state, _, err := parser.Parse([]byte("GET / HT"))
	require.NoError(t, err)
	require.Equal(t, Pending, state)
	assert.False(t, parser.AwaitingHeaders())

	state, _, err = parser.Parse([]byte("TP/1.1\r\n"))
	require.NoError(t, err)
	require.Equal(t, Pending, state)
	assert.True(t, parser.AwaitingHeaders())
}
