package routeomatic

import (
	"regexp"

	"github.com/cnnlabs/cnn-routeomatic/routeutil"
)

// Kind classifies a compiled Route by the action it performs.
type Kind int

const (
	KindRewrite Kind = iota
	KindRedirect
	KindHandled
)

// RuntimeFilters are evaluated against every incoming request at the
// matched node before a route's action runs (§4.1).
type RuntimeFilters struct {
	MethodMatch string
	HostMatch   string
	PortMatch   int
	ProtoMatch  string
	AllowWrite  bool
	ForceProto  string
	ForcePort   int
	PostMatchRE *regexp.Regexp
}

// RewriteRoute holds the compiled fields of a rewrite action (§3, §4.5).
type RewriteRoute struct {
	Pattern      *regexp.Regexp
	Replace      string
	MatchParams  bool
	RedirectCode int
	Status       int
	IsLast       bool
}

// RedirectRoute holds the compiled fields of a redirect action (§3, §4.5).
type RedirectRoute struct {
	Redirect   string
	Code       int
	KeepParams bool
	GeoTarget  map[string]string
	// geoPage is the pre-rendered HTML page for GeoTarget, built once
	// at compile time (SPEC_FULL.md supplemented feature: geoTarget
	// pages are cached on the route, not rendered per request).
	geoPage string
}

// HandledRoute holds the compiled fields of a handler-invoking action
// (§3, §4.5, §6).
type HandledRoute struct {
	Action  Handler
	Options map[string]any
}

// Route is a single compiled rule: a match pattern (owned by the
// RouteTable's trie or regex list, not here), a runtime filter
// envelope, and exactly one action variant selected by Kind.
type Route struct {
	ID   string
	Kind Kind

	Filters RuntimeFilters

	Rewrite  *RewriteRoute
	Redirect *RedirectRoute
	Handled  *HandledRoute
}

// PassesRuntimeChecks reports whether req satisfies every runtime
// filter on the route, per §4.1. The check itself lives in routeutil
// so both the trie and regex resolvers and the trie's own terminal
// evaluation (package pathtrie is filter-agnostic) share one
// implementation.
func (rt *Route) PassesRuntimeChecks(req *Request) bool {
	return routeutil.DoRuntimeChecks(
		routeutil.RuntimeRequest{
			Method:   req.Method,
			Hostname: req.Hostname,
			Port:     req.Port,
			Scheme:   req.Scheme,
		},
		routeutil.RuntimeFilters{
			MethodMatch: rt.Filters.MethodMatch,
			HostMatch:   rt.Filters.HostMatch,
			PortMatch:   rt.Filters.PortMatch,
			ProtoMatch:  rt.Filters.ProtoMatch,
			AllowWrite:  rt.Filters.AllowWrite,
		},
	)
}
