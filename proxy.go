package routeomatic

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cnnlabs/cnn-routeomatic/metrics"
	"github.com/cnnlabs/cnn-routeomatic/routeutil"
)

// proxyTransport is shared across all proxied requests, mirroring the
// teacher's single long-lived *http.Transport rather than dialing a
// fresh one per request.
var proxyTransport = &http.Transport{
	Proxy:               nil,
	MaxIdleConns:        256,
	MaxIdleConnsPerHost: 64,
	IdleConnTimeout:     90 * time.Second,
}

// registerBuiltinHandlers installs the "proxy" handler into env's
// handler namespace unless the caller already registered one under
// that name, so `do: "proxy"` routes work out of the box (§4.7).
func registerBuiltinHandlers(env *Env, m *metrics.Metrics) {
	if env.RouteHandlers == nil {
		env.RouteHandlers = map[string]Handler{}
	}
	if _, exists := env.RouteHandlers["proxy"]; !exists {
		env.RouteHandlers["proxy"] = func(req *Request, route *Route, args Args) bool {
			return proxyAction(req, route, m)
		}
	}
}

// proxyAction implements §4.7's proxy(options): build an upstream
// request from route.Handled.Options["proxy"], forward it, and relay
// the response back to the client.
func proxyAction(req *Request, route *Route, m *metrics.Metrics) bool {
	opts, _ := route.Handled.Options["proxy"].(map[string]any)

	hostname, _ := opts["hostname"].(string)
	if hostname == "" {
		req.Error(502, "Proxy hostname not set")
		return true
	}

	proto, _ := opts["proto"].(string)
	if proto == "" {
		if req.ProtoVer == "2.0" {
			proto = "https"
		} else {
			proto = req.Scheme
		}
	}

	port := intOption(opts, "port")
	if port == 0 {
		port = routeutil.DefaultPort(proto)
	}

	path := req.Path
	if p, ok := opts["path"].(string); ok && p != "" {
		path = p
	} else if pm, ok := opts["pathMatch"].(string); ok && pm != "" {
		if re, err := regexp.Compile(pm); err == nil {
			pr, _ := opts["pathReplace"].(string)
			path = re.ReplaceAllString(req.Path, pr)
		}
	}

	query := req.RawQuery
	if q, ok := opts["query"].(string); ok {
		query = q
	}

	target := proto + "://" + hostname
	if port != routeutil.DefaultPort(proto) {
		target += ":" + strconv.Itoa(port)
	}
	target += path
	if query != "" {
		target += "?" + query
	}

	timeoutMs := intOption(opts, "timeout")
	if timeoutMs == 0 && req.HostConfig != nil {
		timeoutMs = req.HostConfig.TimeoutMs
	}
	if timeoutMs == 0 {
		timeoutMs = req.settings.TimeoutMs
	}
	if timeoutMs == 0 {
		timeoutMs = 20000
	}

	ctx, cancel := context.WithTimeout(req.r.Context(), time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	upstreamReq, err := http.NewRequestWithContext(ctx, req.Method, target, upstreamBody(req))
	if err != nil {
		req.Error(502, "")
		return true
	}

	upstreamReq.Header = cloneHeader(req.r.Header)
	if extra, ok := opts["headers"].(map[string]any); ok {
		for k, v := range extra {
			if sv, ok := v.(string); ok {
				upstreamReq.Header.Set(k, sv)
			}
		}
	}

	appendForwardedFor(upstreamReq, req)
	if proto != req.Scheme {
		upstreamReq.Header.Set("X-Forwarded-Proto", req.Scheme)
	}
	upstreamReq.Header.Set("X-Forwarded-Host", req.HostHeader)

	start := time.Now()
	resp, err := proxyTransport.RoundTrip(upstreamReq)
	if err != nil {
		req.Error(502, "")
		return true
	}
	defer resp.Body.Close()

	if m != nil {
		m.MeasureProxy(hostname, resp.StatusCode, start)
	}

	for k, vs := range resp.Header {
		for _, v := range vs {
			req.w.Header().Add(k, v)
		}
	}

	rewriteUpstreamRedirect(resp, hostname)

	req.w.WriteHeader(resp.StatusCode)
	io.Copy(req.w, resp.Body)
	req.finish()

	return true
}

// upstreamBody returns the reader to hand the upstream request: the
// bytes ingestBody already read off r.Body if it ran, since r.Body
// itself is drained by then, or r.Body unmodified otherwise.
func upstreamBody(req *Request) io.Reader {
	if req.bodyBytes != nil {
		return bytes.NewReader(req.bodyBytes)
	}
	return req.r.Body
}

func rewriteUpstreamRedirect(resp *http.Response, upstreamHost string) {
	switch resp.StatusCode {
	case 301, 302, 303, 307, 308:
	default:
		return
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return
	}

	u, err := parseLocationURL(loc)
	if err != nil || u.Host == "" {
		return
	}

	if !strings.EqualFold(u.Hostname(), upstreamHost) {
		return
	}

	rewritten := u.Path
	if u.RawQuery != "" {
		rewritten += "?" + u.RawQuery
	}
	resp.Header.Set("Location", rewritten)
}

// appendForwardedFor falls back to req.remoteIP when the inbound
// request carries no X-Forwarded-For; the source's req.ip is the
// immediate peer address, distinct from any appended proxy hop, but
// Go's RemoteAddr collapses both to the same value here.
func appendForwardedFor(upstreamReq *http.Request, req *Request) {
	local := req.remoteIP
	existing := upstreamReq.Header.Get("X-Forwarded-For")
	if existing == "" {
		existing = req.remoteIP
	}

	if local != "" && local != existing {
		upstreamReq.Header.Set("X-Forwarded-For", existing+", "+local)
	} else if existing != "" {
		upstreamReq.Header.Set("X-Forwarded-For", existing)
	}
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		vv := make([]string, len(v))
		copy(vv, v)
		out[k] = vv
	}
	return out
}

func intOption(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func parseLocationURL(loc string) (*url.URL, error) {
	return url.Parse(loc)
}
