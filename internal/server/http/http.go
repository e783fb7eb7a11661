package http

import (
	"bytes"
	"errors"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/indigo-web/chunkedbody"
	"github.com/zzet/cowboy/config"
	"github.com/zzet/cowboy/http"
	"github.com/zzet/cowboy/http/headers"
	"github.com/zzet/cowboy/http/status"
	"github.com/zzet/cowboy/internal/protocol/http1"
	"github.com/zzet/cowboy/internal/tcp"
	"github.com/zzet/cowboy/internal/timer"
	"github.com/zzet/cowboy/metrics"
	"github.com/zzet/cowboy/middleware"
	"github.com/zzet/cowboy/pipeline"
	"github.com/zzet/cowboy/proxyproto"
)

// policyProbe is the exact byte sequence legacy browser plugins send to ask
// for a socket policy document. It arrives before any HTTP bytes, so it must
// be intercepted ahead of the parser.
var policyProbe = []byte("<policy-file-request/>\x00")

var policyDocument = []byte(
	`<?xml version="1.0"?><cross-domain-policy>` +
		`<allow-access-from domain="*" to-ports="*"/></cross-domain-policy>` + "\x00",
)

type (
	// OnRequestCallback runs before dispatch. A non-nil response skips the
	// pipeline for that request entirely.
	OnRequestCallback func(request *http.Request) *http.Response
	// OnResponseCallback may override any response right before it is
	// serialized. Returning nil keeps the original.
	OnResponseCallback func(request *http.Request, response *http.Response) *http.Response
)

// Server serves whole connections: the optional PROXY protocol preamble, the
// policy probe interception, and then the parse-dispatch-respond loop until
// the connection stops being eligible for another request.
type Server struct {
	cfg        *config.Config
	executor   *pipeline.Executor
	onRequest  OnRequestCallback
	onResponse OnResponseCallback
	log        *slog.Logger
	metrics    *metrics.Metrics
}

func NewServer(cfg *config.Config, executor *pipeline.Executor, log *slog.Logger, m *metrics.Metrics) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		cfg:      cfg,
		executor: executor,
		log:      log,
		metrics:  m,
	}
}

func (s *Server) OnRequest(cb OnRequestCallback) {
	s.onRequest = cb
}

func (s *Server) OnResponse(cb OnResponseCallback) {
	s.onResponse = cb
}

// Serve runs a single connection to completion. It never returns before the
// connection is closed.
func (s *Server) Serve(client tcp.Client) {
	defer func() {
		_ = client.Close()
	}()

	s.metrics.ConnectionAccepted()

	remote := client.Remote()
	if remote == nil {
		// no peer address means there is nobody to answer
		return
	}

	request := http.NewRequest(headers.NewPrealloc(s.cfg.HTTP.MaxHeaders))
	request.RemoteAddr = remote.String()
	request.Encrypted = client.Encrypted()

	sess := &session{
		Server:     s,
		client:     client,
		request:    request,
		parser:     http1.NewParser(s.cfg, request, client.Encrypted()),
		serializer: http1.NewSerializer(s.cfg.NET.ReadBufferSize),
		skipper: http1.NewBodySkipper(
			client, chunkedbody.NewParser(chunkedbody.DefaultSettings()),
		),
		log: s.log.With(
			slog.String("conn", uuid.NewString()),
			slog.String("peer", remote.String()),
		),
	}

	deadline := timer.Compute(s.cfg.NET.ReadTimeout)

	if !sess.awaitPreamble(deadline) {
		return
	}

	if handled := sess.interceptPolicyProbe(deadline); handled {
		return
	}

	for sess.serveRequest(deadline) {
		// every subsequent request starts with a full time budget
		deadline = timer.Compute(s.cfg.NET.ReadTimeout)
	}

	sess.log.Debug("connection closed", slog.Int("requests", sess.served))
}

type session struct {
	*Server
	client     tcp.Client
	request    *http.Request
	parser     *http1.Parser
	serializer *http1.Serializer
	skipper    *http1.BodySkipper
	log        *slog.Logger
	served     int
}

func (s *session) read(deadline timer.Expiry) ([]byte, error) {
	budget, err := timer.Remaining(deadline)
	if err != nil {
		return nil, err
	}

	s.client.SetReadTimeout(budget)

	return s.client.Read()
}

// awaitPreamble consumes a PROXY protocol preamble if the connection starts
// with one, substituting the decoded source for the socket peer address.
// Bytes past the preamble are handed back to the client for the parser.
func (s *session) awaitPreamble(deadline timer.Expiry) bool {
	var buff []byte

	for {
		data, err := s.read(deadline)
		if err != nil {
			return false
		}

		buff = append(buff, data...)

		info, rest, err := proxyproto.Decode(buff)
		switch err {
		case nil:
		case proxyproto.ErrPartial:
			continue
		default:
			// began like a preamble and broke mid-way. Not HTTP either,
			// nothing to answer
			s.log.Debug("malformed proxy preamble", slog.String("err", err.Error()))
			return false
		}

		if info.Present {
			s.metrics.ProxyPreamble()
			s.request.RemoteAddr = info.Source.String()
			s.log = s.log.With(slog.String("proxied_for", s.request.RemoteAddr))
		}

		s.client.Unread(rest)

		return true
	}
}

// interceptPolicyProbe answers the legacy cross-domain policy request. True
// means the probe was served and the connection is done.
func (s *session) interceptPolicyProbe(deadline timer.Expiry) (handled bool) {
	var buff []byte

	for {
		data, err := s.read(deadline)
		if err != nil {
			return true
		}

		buff = append(buff, data...)

		if len(buff) >= len(policyProbe) {
			if bytes.Equal(buff[:len(policyProbe)], policyProbe) {
				_ = s.client.Write(policyDocument)
				return true
			}

			break
		}

		if !bytes.HasPrefix(policyProbe, buff) {
			break
		}
	}

	s.client.Unread(buff)

	return false
}

func (s *session) serveRequest(deadline timer.Expiry) (keepAlive bool) {
	startedAt := time.Now()

	for {
		data, err := s.read(deadline)
		if err != nil {
			return s.terminate(err)
		}

		state, extra, err := s.parser.Parse(data)
		switch state {
		case http1.Pending:
			continue
		case http1.HeadersCompleted:
			s.client.Unread(extra)
		case http1.Error:
			return s.terminate(err)
		}

		break
	}

	// the flag only advises the pipeline; the actual continuation decision
	// additionally depends on how the request itself went
	s.request.KeepAliveAllowed = s.served+1 < s.cfg.HTTP.MaxKeepAlive

	response, resultOK := s.dispatch(startedAt)
	if response == nil {
		return false
	}

	if s.onResponse != nil {
		if override := s.onResponse(s.request, response); override != nil {
			response = override
		}
	}

	keepAlive = resultOK &&
		!s.request.WantsClose() &&
		!response.ConnClose

	stream := s.serializer.Serialize(s.request.Proto, response, keepAlive)
	if err := s.client.Write(stream); err != nil {
		return false
	}

	s.served++
	s.metrics.RequestServed(time.Since(startedAt).Seconds())

	if !keepAlive {
		return false
	}

	// the body was never handed to the stages, so whatever is left of it
	// must be drained before the next request line
	s.client.SetReadTimeout(s.cfg.NET.ReadTimeout)
	if err := s.skipper.Skip(s.request); err != nil {
		return false
	}

	s.parser.Release()
	s.request.Reset()

	return true
}

// dispatch produces the response for a fully parsed request. A nil response
// means the pipeline failed and the failure was already answered.
func (s *session) dispatch(startedAt time.Time) (response *http.Response, resultOK bool) {
	if s.onRequest != nil {
		if response = s.onRequest(s.request); response != nil {
			return response, true
		}
	}

	env := pipeline.NewEnv()
	env.Set(middleware.StartedAtKey, startedAt)

	verdict := s.executor.Run(s.request, env)
	if !verdict.Completed() {
		s.respondStatus(verdict.Failure)
		return nil, false
	}

	return verdict.Request.Response, verdict.Result == pipeline.ResultOK
}

// terminate maps a read or parse failure to its final action: a best-effort
// status response when the peer has proven it speaks HTTP, silence otherwise.
// Always returns false, so the session loop stops.
func (s *session) terminate(err error) bool {
	if isTimeout(err) {
		// a peer that sent its request line but stalled on headers deserves
		// a 408; one that never began a request does not
		if s.parser.AwaitingHeaders() {
			s.metrics.ParseError(strconv.Itoa(int(status.RequestTimeout)))
			s.respondStatus(status.RequestTimeout)
		}

		return false
	}

	var httpErr status.HTTPError
	if !errors.As(err, &httpErr) {
		// the transport is gone, there is nobody to answer
		return false
	}

	s.metrics.ParseError(strconv.Itoa(int(httpErr.Code)))
	s.log.Debug("malformed request",
		slog.Int("status", int(httpErr.Code)),
		slog.String("err", httpErr.Message),
	)
	s.respondStatus(httpErr.Code)

	return false
}

func (s *session) respondStatus(code status.Code) {
	response := http.NewResponse().Code(code).Close()
	_ = s.client.Write(s.serializer.Serialize(s.request.Proto, response, false))
}

func isTimeout(err error) bool {
	if errors.Is(err, timer.ErrExpired) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
