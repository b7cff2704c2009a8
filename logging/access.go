package logging

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const dateFormat = "02/Jan/2006:15:04:05 -0700"

// AccessEntry captures the fields of one completed request/response
// exchange for the access log.
type AccessEntry struct {
	Request      *http.Request
	StatusCode   int
	ResponseSize int64
	Duration     time.Duration
	RequestTime  time.Time
	RequestID    string
}

// AccessLogger prints HTTP access information in the Apache combined
// log format, with the request duration in milliseconds appended.
type AccessLogger struct {
	logger *logrus.Logger
}

// NewAccessLogger builds an AccessLogger writing to out; a nil out
// defaults to os.Stderr via logrus's own default.
func NewAccessLogger(out io.Writer) *AccessLogger {
	l := logrus.New()
	l.Formatter = &accessLogFormatter{}
	l.Level = logrus.InfoLevel
	if out != nil {
		l.Out = out
	}
	return &AccessLogger{logger: l}
}

// Log records entry in the access log; a nil entry is a no-op.
func (a *AccessLogger) Log(entry *AccessEntry) {
	if a == nil || entry == nil {
		return
	}

	ts := entry.RequestTime.Format(dateFormat)

	host, method, uri, proto, referer, userAgent := "-", "", "", "", "", ""
	if entry.Request != nil {
		host = remoteHost(entry.Request)
		method = entry.Request.Method
		uri = entry.Request.RequestURI
		proto = entry.Request.Proto
		referer = entry.Request.Referer()
		userAgent = entry.Request.UserAgent()
	}

	a.logger.WithFields(logrus.Fields{
		"timestamp":     ts,
		"host":          host,
		"method":        method,
		"uri":           uri,
		"proto":         proto,
		"referer":       referer,
		"user-agent":    userAgent,
		"status":        entry.StatusCode,
		"response-size": entry.ResponseSize,
		"duration":      int64(entry.Duration / time.Millisecond),
		"request-id":    entry.RequestID,
	}).Infoln()
}

// accessLogFormatter renders a logrus.Entry carrying the fields Log
// sets above as one Apache combined-log-format line.
type accessLogFormatter struct{}

func (f *accessLogFormatter) Format(e *logrus.Entry) ([]byte, error) {
	line := fmt.Sprintf(`%s - - [%s] "%s %s %s" %d %d "%s" "%s" %d %s`+"\n",
		e.Data["host"], e.Data["timestamp"], e.Data["method"], e.Data["uri"], e.Data["proto"],
		e.Data["status"], e.Data["response-size"], e.Data["referer"], e.Data["user-agent"], e.Data["duration"],
		e.Data["request-id"])
	return []byte(line), nil
}

func stripPort(address string) string {
	if h, _, err := net.SplitHostPort(address); err == nil {
		return h
	}
	return address
}

// remoteHost picks the client host, honoring X-Forwarded-For.
func remoteHost(r *http.Request) string {
	addr := r.Header.Get("X-Forwarded-For")
	if addr == "" {
		addr = r.RemoteAddr
	}

	if h := stripPort(addr); h != "" {
		return h
	}

	return "-"
}
