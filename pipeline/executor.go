package pipeline

import (
	"github.com/zzet/cowboy/http"
	"github.com/zzet/cowboy/http/status"
)

// Continuation is a parked pipeline position. It is handed to the suspend
// hook and holds everything needed to pick the run back up: the stages that
// have not executed yet, the env as it was at the suspension point, and the
// call to re-enter through.
type Continuation struct {
	Remaining []Stage
	Env       *Env
	Call      Call

	resume chan []any
}

// Resume wakes the parked pipeline, appending args to the saved ones of the
// re-entry call. Must be called exactly once per continuation.
func (c *Continuation) Resume(args ...any) {
	c.resume <- args
}

// Executor drives a fixed chain of stages over each request.
type Executor struct {
	stages    []Stage
	onSuspend func(*Continuation)
}

func NewExecutor(stages ...Stage) *Executor {
	return &Executor{
		stages: stages,
	}
}

// OnSuspend installs the hook that publishes continuations of suspended
// runs. Without one, a suspending stage is re-entered immediately.
func (e *Executor) OnSuspend(hook func(*Continuation)) *Executor {
	e.onSuspend = hook
	return e
}

// Verdict is how a pipeline run ended.
type Verdict struct {
	Request *http.Request
	// Failure is the status to answer with when a stage failed, zero
	// otherwise.
	Failure status.Code
	// Result is the value of the "result" env key, nil if no stage set it.
	Result any
}

func (v Verdict) Completed() bool {
	return v.Failure == 0
}

// Run executes the stages in order and blocks until the pipeline either
// completes, fails, or short-circuits. Suspended runs park the calling
// goroutine until their continuation is resumed.
func (e *Executor) Run(request *http.Request, env *Env) Verdict {
	stages := e.stages

	for i := 0; i < len(stages); i++ {
		outcome := stages[i].Execute(request, env)

		for outcome.kind == kindSuspend {
			outcome = e.awaitResume(stages[i+1:], outcome.call, env)
		}

		switch outcome.kind {
		case kindContinue:
			request, env = outcome.request, outcome.env
		case kindShortCircuit:
			return Verdict{Request: outcome.request, Result: env.Result()}
		case kindFail:
			return Verdict{Request: outcome.request, Failure: outcome.code, Result: env.Result()}
		default:
			return Verdict{Request: request, Failure: status.InternalServerError, Result: env.Result()}
		}
	}

	return Verdict{Request: request, Result: env.Result()}
}

func (e *Executor) awaitResume(remaining []Stage, call Call, env *Env) Outcome {
	if e.onSuspend == nil {
		// nobody will ever wake us up, so re-enter right away
		return call.invoke(nil)
	}

	cont := &Continuation{
		Remaining: remaining,
		Env:       env,
		Call:      call,
		resume:    make(chan []any, 1),
	}
	e.onSuspend(cont)

	return call.invoke(<-cont.resume)
}
