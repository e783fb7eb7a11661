package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zzet/cowboy/http/headers"
	"github.com/zzet/cowboy/http/method"
	"github.com/zzet/cowboy/http/proto"
)

func TestWantsClose(t *testing.T) {
	request := NewRequest(headers.New())

	request.Proto = proto.HTTP11
	assert.False(t, request.WantsClose())

	request.Connection = "close"
	assert.True(t, request.WantsClose())

	request.Connection = "Close"
	assert.True(t, request.WantsClose())

	request.Connection = ""
	request.Proto = proto.HTTP10
	assert.True(t, request.WantsClose())

	request.Connection = "keep-alive"
	assert.False(t, request.WantsClose())

	request.Connection = "Keep-Alive"
	assert.False(t, request.WantsClose())
}

func TestRequestReset(t *testing.T) {
	request := NewRequest(headers.New())
	request.Method = method.POST
	request.Path = "/upload"
	request.Proto = proto.HTTP11
	request.Headers.Add("host", "a")
	request.Host = "a"
	request.ContentLength = 10
	request.Chunked = true
	request.RemoteAddr = "192.0.2.1:555"
	request.Encrypted = true
	request.Response.Code(500)

	request.Reset()

	assert.Empty(t, request.Method)
	assert.Empty(t, request.Path)
	assert.Equal(t, proto.Unknown, request.Proto)
	assert.Equal(t, 0, request.Headers.Len())
	assert.Empty(t, request.Host)
	assert.Equal(t, 0, request.ContentLength)
	assert.False(t, request.Chunked)

	// connection-scoped fields survive a per-request reset
	assert.Equal(t, "192.0.2.1:555", request.RemoteAddr)
	assert.True(t, request.Encrypted)
}
