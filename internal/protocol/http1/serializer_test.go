package http1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zzet/cowboy/http"
	"github.com/zzet/cowboy/http/proto"
	"github.com/zzet/cowboy/http/status"
)

func TestSerializer(t *testing.T) {
	t.Run("full response", func(t *testing.T) {
		response := http.NewResponse().
			Header("Content-Type", "text/plain").
			String("hello")

		s := NewSerializer(128)
		stream := string(s.Serialize(proto.HTTP11, response, true))

		assert.Equal(t,
			"HTTP/1.1 200 OK\r\n"+
				"Content-Type: text/plain\r\n"+
				"Content-Length: 5\r\n"+
				"Connection: keep-alive\r\n"+
				"\r\n"+
				"hello",
			stream,
		)
	})

	t.Run("status only", func(t *testing.T) {
		response := http.NewResponse().Code(status.BadRequest)

		s := NewSerializer(128)
		stream := string(s.Serialize(proto.HTTP11, response, false))

		assert.Equal(t,
			"HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\nConnection: close\r\n\r\n",
			stream,
		)
	})

	t.Run("caller-set framing headers are not duplicated", func(t *testing.T) {
		response := http.NewResponse().
			Header("Content-Length", "9999").
			Header("Connection", "keep-alive").
			String("hello")

		s := NewSerializer(128)
		stream := string(s.Serialize(proto.HTTP11, response, false))

		assert.Equal(t,
			"HTTP/1.1 200 OK\r\n"+
				"Content-Length: 5\r\n"+
				"Connection: close\r\n"+
				"\r\n"+
				"hello",
			stream,
		)
	})

	t.Run("unknown protocol downgrades", func(t *testing.T) {
		// errors before the version token is parsed still need a status line
		response := http.NewResponse().Code(status.RequestURITooLong)

		s := NewSerializer(128)
		stream := string(s.Serialize(proto.Unknown, response, false))

		assert.Contains(t, stream, "HTTP/1.0 414 ")
	})

	t.Run("response close overrides keep-alive", func(t *testing.T) {
		response := http.NewResponse().Close()

		s := NewSerializer(128)
		stream := string(s.Serialize(proto.HTTP11, response, true))

		assert.Contains(t, stream, "Connection: close\r\n")
	})

	t.Run("buffer reuse", func(t *testing.T) {
		s := NewSerializer(8)
		first := string(s.Serialize(proto.HTTP11, http.NewResponse().String("one"), false))
		second := string(s.Serialize(proto.HTTP11, http.NewResponse().String("two"), false))

		assert.Contains(t, first, "one")
		assert.Contains(t, second, "two")
	})
}
