package pipeline

import (
	"github.com/zzet/cowboy/http"
	"github.com/zzet/cowboy/http/status"
)

// Stage is a single step of the request pipeline. It may mutate the request
// and the env, and its outcome decides whether the stages after it run.
type Stage interface {
	Execute(request *http.Request, env *Env) Outcome
}

// StageFunc adapts a plain function to the Stage interface.
type StageFunc func(request *http.Request, env *Env) Outcome

func (f StageFunc) Execute(request *http.Request, env *Env) Outcome {
	return f(request, env)
}

// Call is a deferred invocation: the function a suspended stage wants to be
// re-entered through, along with the arguments it saved for itself. Extra
// arguments passed to Continuation.Resume are appended after the saved ones.
type Call struct {
	Target func(args ...any) Outcome
	Args   []any
}

func (c Call) invoke(extra []any) Outcome {
	args := c.Args
	if len(extra) > 0 {
		args = append(append(make([]any, 0, len(c.Args)+len(extra)), c.Args...), extra...)
	}

	return c.Target(args...)
}

type outcomeKind uint8

const (
	kindContinue outcomeKind = iota + 1
	kindSuspend
	kindShortCircuit
	kindFail
)

// Outcome is a stage's verdict on what the executor does next.
type Outcome struct {
	kind    outcomeKind
	request *http.Request
	env     *Env
	call    Call
	code    status.Code
}

// Continue hands control to the next stage with possibly replaced request
// and env values.
func Continue(request *http.Request, env *Env) Outcome {
	return Outcome{kind: kindContinue, request: request, env: env}
}

// Suspend parks the pipeline until something external resumes it, at which
// point the call is invoked and its outcome stands in for this stage's.
func Suspend(call Call) Outcome {
	return Outcome{kind: kindSuspend, call: call}
}

// ShortCircuit ends the pipeline successfully without running the remaining
// stages.
func ShortCircuit(request *http.Request) Outcome {
	return Outcome{kind: kindShortCircuit, request: request}
}

// Fail aborts the pipeline. The code is what the session loop answers with
// before tearing the connection down.
func Fail(request *http.Request, code status.Code) Outcome {
	return Outcome{kind: kindFail, request: request, code: code}
}
