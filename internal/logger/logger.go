package logger

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

func Setup(dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

var _ http.RoundTripper = (*RoundTripper)(nil)

// RoundTripper logs every outbound request at debug level and failures at
// warn level.
type RoundTripper struct {
	next   http.RoundTripper
	logger zerolog.Logger
}

func NewRoundTripper(logger zerolog.Logger, next http.RoundTripper) *RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &RoundTripper{next: next, logger: logger}
}

func (r *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	started := time.Now()

	resp, err := r.next.RoundTrip(req)

	ev := r.logger.Debug()
	if err != nil || (resp != nil && resp.StatusCode >= http.StatusInternalServerError) {
		ev = r.logger.Warn()
	}

	ev = ev.Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Dur("duration", time.Since(started))

	if err != nil {
		ev.Err(err).Msg("http request")
		return resp, err
	}

	ev.Int("status", resp.StatusCode).Msg("http request")

	return resp, nil
}
