package http1

import (
	"strconv"

	"github.com/indigo-web/utils/strcomp"
	"github.com/zzet/cowboy/http"
	"github.com/zzet/cowboy/http/proto"
	"github.com/zzet/cowboy/http/status"
)

// Serializer renders responses into a single reusable buffer. One instance
// serves one connection, so no synchronization is needed.
type Serializer struct {
	buff []byte
}

func NewSerializer(initialSize int) *Serializer {
	return &Serializer{
		buff: make([]byte, 0, initialSize),
	}
}

// Serialize renders the response head and body. The returned slice stays
// valid until the next Serialize call.
func (s *Serializer) Serialize(protocol proto.Protocol, response *http.Response, keepAlive bool) []byte {
	if protocol == proto.Unknown {
		// the error happened before a version was parsed. Answer with the
		// most compatible one
		protocol = proto.HTTP10
	}

	s.buff = s.buff[:0]
	s.buff = append(s.buff, protocol.String()...)
	s.buff = append(s.buff, ' ')
	s.buff = strconv.AppendUint(s.buff, uint64(response.Status), 10)

	if text := status.Text(response.Status); len(text) > 0 {
		s.buff = append(s.buff, ' ')
		s.buff = append(s.buff, text...)
	}

	s.buff = append(s.buff, '\r', '\n')

	for _, pair := range response.Headers.Unwrap() {
		// Content-Length and Connection are owned by the serializer
		if strcomp.EqualFold(pair.Key, "content-length") ||
			strcomp.EqualFold(pair.Key, "connection") {
			continue
		}

		s.buff = append(s.buff, pair.Key...)
		s.buff = append(s.buff, ':', ' ')
		s.buff = append(s.buff, pair.Value...)
		s.buff = append(s.buff, '\r', '\n')
	}

	s.buff = append(s.buff, "Content-Length: "...)
	s.buff = strconv.AppendInt(s.buff, int64(len(response.Body)), 10)
	s.buff = append(s.buff, '\r', '\n')

	s.buff = append(s.buff, "Connection: "...)
	if keepAlive && !response.ConnClose {
		s.buff = append(s.buff, "keep-alive"...)
	} else {
		s.buff = append(s.buff, "close"...)
	}
	s.buff = append(s.buff, '\r', '\n', '\r', '\n')

	s.buff = append(s.buff, response.Body...)

	return s.buff
}
