package http

import (
	"github.com/zzet/cowboy/http/headers"
	"github.com/zzet/cowboy/http/status"
)

// Response is what stages fill in for the serializer to render. The zero
// value responds 200 with no body.
type Response struct {
	Status  status.Code
	Headers *headers.Headers
	Body    []byte
	// ConnClose forces the session loop to tear the connection down after the
	// response is written, keep-alive eligibility notwithstanding.
	ConnClose bool
}

func NewResponse() *Response {
	return &Response{
		Status:  status.OK,
		Headers: headers.New(),
	}
}

func (r *Response) Code(code status.Code) *Response {
	r.Status = code
	return r
}

func (r *Response) Header(key, value string) *Response {
	r.Headers.Add(key, value)
	return r
}

func (r *Response) String(body string) *Response {
	return r.Bytes([]byte(body))
}

func (r *Response) Bytes(body []byte) *Response {
	r.Body = body
	return r
}

// Close marks the connection for teardown once the response is flushed.
func (r *Response) Close() *Response {
	r.ConnClose = true
	return r
}

func (r *Response) Clear() {
	r.Status = status.OK
	r.Headers.Clear()
	r.Body = nil
	r.ConnClose = false
}
