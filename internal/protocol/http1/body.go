package http1

import (
	"io"

	"github.com/indigo-web/chunkedbody"
	"github.com/zzet/cowboy/http"
	"github.com/zzet/cowboy/internal/tcp"
)

// BodySkipper discards an unread request body, so the next request on the
// same connection starts at the right byte. Stages are not handed the body
// stream, hence by the time a response is flushed the body is still sitting
// in the socket.
type BodySkipper struct {
	client tcp.Client
	parser *chunkedbody.Parser
}

func NewBodySkipper(client tcp.Client, parser *chunkedbody.Parser) *BodySkipper {
	return &BodySkipper{
		client: client,
		parser: parser,
	}
}

func (s *BodySkipper) Skip(request *http.Request) error {
	if request.Chunked {
		return s.skipChunked(request.HasTrailer)
	}

	return s.skipPlain(request.ContentLength)
}

func (s *BodySkipper) skipPlain(bytesLeft int) error {
	for bytesLeft > 0 {
		data, err := s.client.Read()
		if err != nil {
			return err
		}

		if len(data) >= bytesLeft {
			s.client.Unread(data[bytesLeft:])
			return nil
		}

		bytesLeft -= len(data)
	}

	return nil
}

func (s *BodySkipper) skipChunked(hasTrailer bool) error {
	for {
		data, err := s.client.Read()
		if err != nil {
			return err
		}

		_, extra, err := s.parser.Parse(data, hasTrailer)
		switch err {
		case nil:
			s.client.Unread(extra)
		case io.EOF:
			s.client.Unread(extra)
			return nil
		default:
			return err
		}
	}
}
