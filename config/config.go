package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type (
	HTTP struct {
		// MaxEmptyLines limits how many blank CRLF lines a client may send
		// before the request line. Exceeding it terminates the connection.
		MaxEmptyLines int `env:"MAX_EMPTY_LINES" envDefault:"5"`
		// MaxRequestLineLength bounds the whole request line, method and
		// version included.
		MaxRequestLineLength int `env:"MAX_REQUEST_LINE_LENGTH" envDefault:"4096"`
		// MaxHeaderNameLength bounds a single header name.
		MaxHeaderNameLength int `env:"MAX_HEADER_NAME_LENGTH" envDefault:"64"`
		// MaxHeaderValueLength bounds a single header value, folded
		// continuations included.
		MaxHeaderValueLength int `env:"MAX_HEADER_VALUE_LENGTH" envDefault:"4096"`
		// MaxHeaders limits the number of header lines in one request.
		MaxHeaders int `env:"MAX_HEADERS" envDefault:"100"`
		// MaxKeepAlive is the number of requests served over a single
		// connection before it is closed. Non-positive disables reuse
		// altogether.
		MaxKeepAlive int `env:"MAX_KEEPALIVE" envDefault:"100"`
	}

	NET struct {
		// ReadBufferSize is a size of buffer in bytes which will be used to
		// read from the socket.
		ReadBufferSize int `env:"READ_BUFFER_SIZE" envDefault:"2048"`
		// ReadTimeout is the budget a single request has to arrive in full.
		// It is re-armed for every request on a keep-alive connection, not
		// once per connection. Zero waits forever.
		ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	}
)

// Config holds the restrictions and knobs of the protocol core. Always start
// from Default() and override what you need: a manually constructed Config
// has zero limits, which rejects everything.
type Config struct {
	HTTP HTTP `envPrefix:"HTTP_"`
	NET  NET  `envPrefix:"NET_"`
}

// Default returns the config the server runs with unless tuned otherwise.
func Default() *Config {
	return &Config{
		HTTP: HTTP{
			MaxEmptyLines:        5,
			MaxRequestLineLength: 4096,
			MaxHeaderNameLength:  64,
			MaxHeaderValueLength: 4096,
			MaxHeaders:           100,
			MaxKeepAlive:         100,
		},
		NET: NET{
			ReadBufferSize: 2048,
			ReadTimeout:    5 * time.Second,
		},
	}
}

// FromEnv fills a config from environment variables, prefixed with the given
// prefix (e.g. "COWBOY_"). Unset variables fall back to defaults.
func FromEnv(prefix string) (*Config, error) {
	cfg := new(Config)
	opts := env.Options{Prefix: prefix}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}

	return cfg, nil
}
