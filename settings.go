package routeomatic

import (
	"github.com/cnnlabs/cnn-routeomatic/geo"
	"github.com/cnnlabs/cnn-routeomatic/logging"
)

// Settings carries the process-wide defaults every request is built
// with (§4.10). Per-host values in HostConfig override the timeout;
// everything else here is uniform across the engine.
type Settings struct {
	RetryLimit          int
	TimeoutMs           int
	AllowWrite          bool
	NormalizeUrls       bool
	RedirectCode        int
	ReduceRedirectCode  int
	RemoveDoubleSlashes bool
	Ports               map[int]PortOverride
}

// PortOverride recovers the true scheme/protocol/port of a request
// terminated behind a proxy in front of the engine, keyed by the
// listening port the embedding server accepted the connection on.
type PortOverride struct {
	OrigProto    string
	OrigProtoVer string
	OrigPort     int
}

// DefaultSettings returns the documented defaults (§4.10, §6).
func DefaultSettings() Settings {
	return Settings{
		RetryLimit:          20,
		TimeoutMs:           20000,
		AllowWrite:          false,
		NormalizeUrls:       false,
		RedirectCode:        302,
		ReduceRedirectCode:  301,
		RemoveDoubleSlashes: false,
		Ports:               map[int]PortOverride{},
	}
}

// Handler is the route-handler contract of §6: given the request, the
// matched route and the match arguments, it either terminates the
// response via a Request primitive and returns true, or returns false
// to let the matcher continue looking for another route.
type Handler func(req *Request, route *Route, args Args) bool

// Args is the argument bag passed to a handled-route action. Match is
// always the matched portion of the key, Tail the unmatched tail (trie
// mode) or the first capture group (regex mode); Key holds the full
// lookup key the resolver matched against. Groups holds every numbered
// regex capture group, starting with the first, when the table uses
// the regex matcher.
type Args struct {
	Key    string
	Match  string
	Tail   string
	Groups []string
}

// Env is the programmatic half of the configuration (§6, §9): the
// caller-supplied handler namespace, hooks and DNS resolver that have
// no serializable form and are therefore never part of routecfg.Document.
type Env struct {
	// RouteHandlers maps "namespace|name" or bare "name" to the
	// handler invoked for a Handled route's `do` field.
	RouteHandlers map[string]Handler

	// Conds/Subs mirror routecfg.EnvDoc but are merged in after the
	// document is loaded, so programmatic conditionals/substitutions
	// can augment or override file-provided ones.
	Conds map[string]string
	Subs  map[string]string

	Logger     logging.Logger
	OnSent     func(req *Request)
	DNSLookup  func(hostname string) ([]string, error)
	GeoCountry func(req *Request) string

	// GeoTables backs the server-side fast path of a geoTarget
	// redirect when GeoCountry is configured; when GeoCountry is nil
	// or returns "", the client-side HTML redirector is served
	// instead (§9 "geoTarget output is a client-side HTML redirector").
	GeoTables geo.Tables
}
