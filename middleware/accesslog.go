package middleware

import (
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/zzet/cowboy/http"
	"github.com/zzet/cowboy/pipeline"
)

// StartedAtKey is the env key the session loop stores the request arrival
// time under. AccessLog uses it to compute the duration.
const StartedAtKey = "started_at"

type accessEntry struct {
	Time       string `json:"time"`
	Remote     string `json:"remote"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Proto      string `json:"proto"`
	Status     int    `json:"status"`
	DurationMS int64  `json:"duration_ms"`
}

// AccessLog writes one JSON line per request. Place it after the handler
// stage, otherwise the response status is not known yet.
type AccessLog struct {
	out  io.Writer
	json jsoniter.API
}

func NewAccessLog(out io.Writer) *AccessLog {
	if out == nil {
		out = os.Stdout
	}

	return &AccessLog{
		out:  out,
		json: jsoniter.ConfigCompatibleWithStandardLibrary,
	}
}

func (a *AccessLog) Execute(request *http.Request, env *pipeline.Env) pipeline.Outcome {
	entry := accessEntry{
		Time:   time.Now().Format(time.RFC3339),
		Remote: request.RemoteAddr,
		Method: string(request.Method),
		Path:   request.Path,
		Proto:  request.Proto.String(),
		Status: int(request.Response.Status),
	}

	if value, found := env.Get(StartedAtKey); found {
		if startedAt, ok := value.(time.Time); ok {
			entry.DurationMS = time.Since(startedAt).Milliseconds()
		}
	}

	line, err := a.json.Marshal(entry)
	if err == nil {
		_, _ = a.out.Write(append(line, '\n'))
	}

	return pipeline.Continue(request, env)
}
