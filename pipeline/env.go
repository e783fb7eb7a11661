package pipeline

const (
	// ResultKey is the env key stages use to report how the request went.
	ResultKey = "result"
	// ResultOK is the ResultKey value that leaves the connection eligible
	// for keep-alive. Any other value (or no value at all) tears it down
	// once the response is flushed.
	ResultOK = "ok"
)

type envPair struct {
	Key   string
	Value any
}

// Env is the shared mutable state threaded through the stages of a single
// request. Keys keep their insertion order, so iteration is deterministic.
type Env struct {
	pairs []envPair
}

func NewEnv() *Env {
	return &Env{
		pairs: make([]envPair, 0, 5),
	}
}

// Set stores the value under the key, replacing an existing entry in place.
func (e *Env) Set(key string, value any) *Env {
	for i := range e.pairs {
		if e.pairs[i].Key == key {
			e.pairs[i].Value = value
			return e
		}
	}

	e.pairs = append(e.pairs, envPair{Key: key, Value: value})

	return e
}

func (e *Env) Get(key string) (any, bool) {
	for i := range e.pairs {
		if e.pairs[i].Key == key {
			return e.pairs[i].Value, true
		}
	}

	return nil, false
}

func (e *Env) Has(key string) bool {
	_, found := e.Get(key)
	return found
}

func (e *Env) Len() int {
	return len(e.pairs)
}

// Result returns the value stored under ResultKey, or nil if the stages
// never reported one.
func (e *Env) Result() any {
	value, _ := e.Get(ResultKey)
	return value
}

func (e *Env) Clear() {
	e.pairs = e.pairs[:0]
}
