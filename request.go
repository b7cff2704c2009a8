package routeomatic

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/cnnlabs/cnn-routeomatic/httperror"
	"github.com/cnnlabs/cnn-routeomatic/routeutil"
)

// maxBodyBytes is the hard cap on body ingestion (§4.9); the source
// hard-codes this value and configurable-limit support is an open
// question it leaves unresolved.
const maxBodyBytes = 200 * 1024

// Request is the per-request, single-owner pipeline object of §3. It
// is created fresh for every incoming HTTP request and never shared
// across requests.
type Request struct {
	Scheme         string
	ProtoVer       string
	Method         string
	Hostname       string
	HostHeader     string
	Path           string
	NormalizedPath string
	RawQuery       string
	QueryParams    map[string]any
	URL            string
	Port           int
	Auth           string
	Hash           string
	IsXhr          bool
	Type           string
	Body           any
	Headers        map[string]string
	RoutePass      int
	RequestID      string

	HostConfig *HostConfig

	env       *Env
	settings  Settings
	hostTable *HostTable
	w         http.ResponseWriter
	r         *http.Request
	remoteIP  string
	sent      bool

	// bodyBytes holds the exact bytes ingestBody read off r.Body, kept
	// alongside the parsed Body so a proxy action can still forward the
	// original request body once r.Body itself has been drained.
	bodyBytes []byte

	// pendingReduceRedirect is set when normalization collapsed a
	// double slash at entry; doRoute issues the entry-point redirect
	// for it before consulting any resolver (§4.8).
	pendingReduceRedirect bool
}

// newRequest builds a Request from an inbound *http.Request, running
// URL normalization but not body ingestion (the caller decides when
// that's appropriate, since it must happen before routing per §4.9).
func newRequest(w http.ResponseWriter, r *http.Request, env *Env, settings Settings, hostTable *HostTable) (*Request, bool) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	protoVer := "1.1"
	if r.ProtoMajor == 2 {
		protoVer = "2.0"
	}

	hostname, port := routeutil.SplitHostPort(r.Host, scheme)
	listenPort := port
	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(fmt.Stringer); ok {
		if _, p, _ := splitRemoteAddr(addr.String()); p != "" {
			if n, err := strconv.Atoi(p); err == nil {
				listenPort = n
			}
		}
	}
	if override, ok := settings.Ports[listenPort]; ok {
		if override.OrigProto != "" {
			scheme = override.OrigProto
		}
		if override.OrigProtoVer != "" {
			protoVer = override.OrigProtoVer
		}
		if override.OrigPort != 0 {
			port = override.OrigPort
		}
	}

	req := &Request{
		Scheme:     scheme,
		ProtoVer:   protoVer,
		Method:     r.Method,
		Hostname:   hostname,
		HostHeader: r.Host,
		Port:       port,
		IsXhr:      r.Header.Get("X-Requested-With") == "XMLHttpRequest",
		Headers:    map[string]string{},
		RequestID:  requestID(r),
		env:        env,
		settings:   settings,
		hostTable:  hostTable,
		w:          w,
		r:          r,
		remoteIP:   remoteIP(r),
	}

	raw := r.URL.EscapedPath()
	if r.URL.RawQuery != "" {
		raw += "?" + r.URL.RawQuery
	}

	normalized, ok := normalizeAndReduce(raw)
	if !ok {
		return req, false
	}

	path := normalized
	query := ""
	if q := strings.IndexByte(normalized, '?'); q >= 0 {
		path = normalized[:q]
		query = normalized[q+1:]
	}

	collapsedNow := false
	if settings.RemoveDoubleSlashes && strings.Contains(path, "//") {
		path = collapseDoubleSlashes(path)
		collapsedNow = true
	}

	req.Path = path
	req.NormalizedPath = strings.ToLower(path)
	req.RawQuery = query
	req.QueryParams = parseQueryParams(query)
	req.URL = buildURL(req)

	if collapsedNow {
		req.pendingReduceRedirect = true
	}

	return req, true
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func remoteIP(r *http.Request) string {
	host, _, err := splitRemoteAddr(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func splitRemoteAddr(addr string) (string, string, error) {
	idx := strings.LastIndexByte(addr, ':')
	if idx < 0 {
		return addr, "", nil
	}
	return addr[:idx], addr[idx+1:], nil
}

func parseQueryParams(query string) map[string]any {
	out := map[string]any{}
	if query == "" {
		return out
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return out
	}

	for k, vs := range values {
		if len(vs) == 0 {
			out[k] = true
			continue
		}
		out[k] = vs[len(vs)-1]
	}

	return out
}

func buildURL(req *Request) string {
	u := req.Scheme + "://" + req.Hostname
	if req.Port != routeutil.DefaultPort(req.Scheme) {
		u += ":" + strconv.Itoa(req.Port)
	}
	u += req.Path
	if req.RawQuery != "" {
		u += "?" + req.RawQuery
	}
	return u
}

func (req *Request) logf(format string, args ...any) {
	if req.env != nil && req.env.Logger != nil {
		req.env.Logger.Errorf(format, args...)
	}
}

// doRoute is the routing loop of §5: resolve the host, then try each
// of its route resolvers in order until one reports handled.
func (req *Request) doRoute() {
	if req.pendingReduceRedirect {
		req.pendingReduceRedirect = false
		target := req.Path
		if req.RawQuery != "" {
			target += "?" + req.RawQuery
		}
		req.Redirect(req.settings.ReduceRedirectCode, target)
		return
	}

	cfg, ok := req.hostTable.Lookup(req.Hostname)
	if !ok {
		req.Error(503, "")
		return
	}
	req.HostConfig = cfg

	for _, resolver := range cfg.Resolvers {
		if resolver(req) {
			return
		}
	}

	req.Error(404, "")
}

func (req *Request) ingestBody() {
	if !routeutil.IsWriteMethod(req.Method) {
		return
	}
	if req.r.Header.Get("Content-Type") == "" || req.r.ContentLength <= 0 {
		return
	}

	mediaType, params, err := mime.ParseMediaType(req.r.Header.Get("Content-Type"))
	if err != nil {
		req.Error(400, "malformed Content-Type")
		return
	}
	_ = params["charset"] // only utf-8 is supported; other charsets pass through undecoded

	limited := io.LimitReader(req.r.Body, maxBodyBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		req.Error(400, "error reading request body")
		return
	}
	if len(data) > maxBodyBytes {
		req.Error(413, "request body too large")
		return
	}

	// r.Body is fully drained above; keep the raw bytes around so a
	// proxy action can still forward them once routing picks a route.
	req.bodyBytes = data

	switch mediaType {
	case "application/json":
		var parsed any
		if err := json.Unmarshal(data, &parsed); err != nil {
			req.Error(400, "malformed JSON body")
			return
		}
		req.Body = parsed
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(data))
		if err != nil {
			req.Error(400, "malformed form body")
			return
		}
		form := map[string]any{}
		for k, vs := range values {
			if len(vs) > 0 {
				form[k] = vs[len(vs)-1]
			}
		}
		req.Body = form
	default:
		req.Body = data
	}
}

// End closes the exchange with the given status; a 3xx-and-above code
// outside the redirect range is converted to an Error, per §4.7.
func (req *Request) End(code int) {
	if code == 0 {
		code = 200
	}
	if code >= 310 && code < 600 {
		req.Error(code, "")
		return
	}
	req.Send(code, nil)
}

// Error terminates the request with an HttpError, per §4.7 and §7.
func (req *Request) Error(code int, message string) {
	e := httperror.New(code, message)
	req.Send(e.Code, []byte(e.Message))
}

// Send writes status and content, applying the host and per-request
// header overrides and the response content type, per §4.7.
func (req *Request) Send(status int, content any) {
	if req.sent {
		return
	}

	if status == 0 {
		status = 200
	}
	if status < 100 || status > 599 {
		status = 500
	}

	headers := req.mergedHeaders(hostHeadersOf(req.HostConfig))
	for k, v := range headers {
		req.w.Header().Set(httpHeaderCase(k), v)
	}
	req.w.Header().Set("X-Request-Id", req.RequestID)

	contentType := req.Type
	if contentType == "" {
		if ext := filepath.Ext(req.Path); ext != "" {
			contentType = mime.TypeByExtension(ext)
		}
	}
	if contentType == "" {
		contentType = "text/html"
	}
	if req.w.Header().Get("Content-Type") == "" {
		req.w.Header().Set("Content-Type", contentType)
	}

	req.w.WriteHeader(status)

	switch v := content.(type) {
	case nil:
	case []byte:
		req.w.Write(v)
	case string:
		req.w.Write([]byte(v))
	default:
		fmt.Fprint(req.w, v)
	}

	req.finish()
}

func (req *Request) sendHTML(status int, body string) {
	req.Type = "text/html; charset=utf-8"
	req.Send(status, body)
}

// JSON serializes v as the response body, per §4.7.
func (req *Request) JSON(status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		req.Error(500, "")
		return
	}
	req.Type = "application/json"
	req.Send(status, data)
}

// JSONP serializes v, wrapping it in the query string's callback name
// when present, per §4.7.
func (req *Request) JSONP(status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		req.Error(500, "")
		return
	}

	callback, _ := req.QueryParams["callback"].(string)
	if callback == "" {
		req.Type = "application/json"
		req.Send(status, data)
		return
	}

	req.Type = "application/javascript"
	req.w.Header().Set("X-Content-Type-Options", "nosniff")
	body := callback + "(" + string(data) + ");"
	req.Send(status, body)
}

// SendFile hands a filesystem path to net/http's static content
// sender; a missing file or a directory is quiet (404, no error log),
// matching §4.7.
func (req *Request) SendFile(path string, options map[string]any) {
	info, err := os.Stat(path)
	if err != nil {
		req.End(404)
		return
	}
	if info.IsDir() {
		req.End(404)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		req.Error(500, "")
		return
	}
	defer f.Close()

	req.w.Header().Set("X-Request-Id", req.RequestID)
	http.ServeContent(req.w, req.r, filepath.Base(path), info.ModTime(), f)
	req.finish()
}

// Redirect emits a 3xx response with a Location header, per §4.7.
func (req *Request) Redirect(code int, location string) {
	if req.sent {
		return
	}

	if code < 300 || code > 310 {
		code = req.settings.RedirectCode
		if code == 0 {
			code = 302
		}
	}

	headers := req.mergedHeaders(hostRedirectHeadersOf(req.HostConfig))
	for k, v := range headers {
		req.w.Header().Set(httpHeaderCase(k), v)
	}
	req.w.Header().Set("X-Request-Id", req.RequestID)
	req.w.Header().Set("Location", location)
	req.w.WriteHeader(code)

	req.finish()
}

// rewriteURL implements the URL half of §4.7's rewrite(newUrl): a
// cross-host/scheme/port target becomes a redirect; otherwise the
// request is mutated in place and re-enters routing, bounded by
// retryLimit.
func (req *Request) rewriteURL(newURL string) {
	if req.RoutePass > req.settings.RetryLimit {
		req.Error(500, "rewrite recursion limit exceeded")
		return
	}

	parsed, err := url.Parse(newURL)
	if err != nil {
		req.Error(500, "")
		return
	}

	if (parsed.Scheme != "" && parsed.Scheme != req.Scheme) ||
		(parsed.Host != "" && !strings.EqualFold(parsed.Hostname(), req.Hostname)) ||
		(parsed.Port() != "" && parsed.Port() != strconv.Itoa(req.Port)) {
		req.Redirect(req.settings.RedirectCode, newURL)
		return
	}

	path := parsed.EscapedPath()
	if req.settings.RemoveDoubleSlashes {
		path = collapseDoubleSlashes(path)
	}

	req.Path = path
	req.NormalizedPath = strings.ToLower(path)
	req.RawQuery = parsed.RawQuery
	req.QueryParams = parseQueryParams(req.RawQuery)
	req.URL = buildURL(req)
	req.RoutePass++

	req.doRoute()
}

func (req *Request) finish() {
	req.sent = true
	if req.env != nil && req.env.OnSent != nil {
		req.env.OnSent(req)
	}
}

func (req *Request) mergedHeaders(base map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(req.Headers))
	for k, v := range base {
		out[strings.ToLower(k)] = v
	}
	for k, v := range req.Headers {
		out[strings.ToLower(k)] = v
	}
	return out
}

func hostHeadersOf(cfg *HostConfig) map[string]string {
	if cfg == nil {
		return nil
	}
	return cfg.Headers
}

func hostRedirectHeadersOf(cfg *HostConfig) map[string]string {
	if cfg == nil {
		return nil
	}
	return cfg.RedirectHeaders
}

// httpHeaderCase restores canonical HTTP header casing for a
// lower-cased key, since net/http.Header.Set canonicalizes on write
// but our merged maps are keyed lower-case internally.
func httpHeaderCase(key string) string {
	return http.CanonicalHeaderKey(key)
}
