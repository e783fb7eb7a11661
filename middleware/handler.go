package middleware

import (
	"github.com/zzet/cowboy/http"
	"github.com/zzet/cowboy/http/status"
	"github.com/zzet/cowboy/pipeline"
)

// HandlerFunc is the user-facing request handler. Returning nil keeps the
// response already attached to the request.
type HandlerFunc func(request *http.Request) *http.Response

// Handler is the stage that runs the user handler. A panicking handler is
// reported as a pipeline failure instead of taking the whole connection
// goroutine down.
type Handler struct {
	handler HandlerFunc
}

func NewHandler(handler HandlerFunc) *Handler {
	return &Handler{
		handler: handler,
	}
}

func (h *Handler) Execute(request *http.Request, env *pipeline.Env) (outcome pipeline.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = pipeline.Fail(request, status.InternalServerError)
		}
	}()

	response := h.handler(request)
	if response != nil {
		request.Response = response
	}

	env.Set(pipeline.ResultKey, pipeline.ResultOK)

	return pipeline.Continue(request, env)
}
