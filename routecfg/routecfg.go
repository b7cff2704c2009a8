// Package routecfg defines the declarative, file-loadable half of the
// engine's configuration schema (§6 of the specification): the env
// conditionals/substitutions, the host table and the route tables.
// The programmatic half (route handler functions, logger, DNS lookup,
// onSent hook) is Go-native and lives on the engine's Env type instead,
// since it carries callables that have no serializable form.
package routecfg

// Document is the top-level declarative configuration: environment
// conditionals/substitutions plus the host and route-table
// definitions. It is unmarshaled from YAML/TOML/JSON via
// github.com/spf13/viper + github.com/mitchellh/mapstructure.
type Document struct {
	Env         EnvDoc              `mapstructure:"env"`
	Hosts       []HostDoc           `mapstructure:"hosts"`
	HostDefault HostDefaults        `mapstructure:"defaults"`
	RouteTables map[string]TableDoc `mapstructure:"routeTables"`
}

// EnvDoc carries build-time conditionals and %name% substitutions.
type EnvDoc struct {
	Conds map[string]string `mapstructure:"conds"`
	Subs  map[string]string `mapstructure:"subs"`
}

// HostDefaults holds the document's host-level defaults. TimeoutMs and
// the three header maps are applied to every HostDoc that doesn't
// override them. The remaining fields are decoded but not applied:
// the engine-wide settings come only from the Settings value passed to
// NewEngine.
type HostDefaults struct {
	AllowWrite           bool              `mapstructure:"allowWrite"`
	NormalizeUrls        bool              `mapstructure:"normalizeUrls"`
	RedirectCode         int               `mapstructure:"redirectCode"`
	ReduceRedirectCode   int               `mapstructure:"reduceRedirectCode"`
	RemoveDoubleSlashes  bool              `mapstructure:"removeDoubleSlashes"`
	RetryLimit           int               `mapstructure:"retryLimit"`
	TimeoutMs            int               `mapstructure:"timeout"`
	Headers              map[string]any    `mapstructure:"headers"`
	ProxyHeaders         map[string]any    `mapstructure:"proxyHeaders"`
	RedirectHeaders      map[string]any    `mapstructure:"redirectHeaders"`
}

// HostDoc declares one or more hostnames sharing a host configuration
// and an ordered list of route tables to consult.
type HostDoc struct {
	Hostnames       []string       `mapstructure:"hostnames"`
	RouteTables     []string       `mapstructure:"routeTables"`
	TimeoutMs       *int           `mapstructure:"timeout"`
	Headers         map[string]any `mapstructure:"headers"`
	ProxyHeaders    map[string]any `mapstructure:"proxyHeaders"`
	RedirectHeaders map[string]any `mapstructure:"redirectHeaders"`
}

// TableDoc declares a route table's matching strategy, defaults and
// ordered route list.
type TableDoc struct {
	MatchType            string      `mapstructure:"matchType"`
	IsCaseSpecific       *bool       `mapstructure:"isCaseSpecific"`
	MatchUsingQueryParams bool       `mapstructure:"matchUsingQueryParams"`
	ForceProto           string      `mapstructure:"forceProto"`
	ForcePort            int         `mapstructure:"forcePort"`
	DefaultHandler       string      `mapstructure:"defaultHandler"`
	RouteNamespace       string      `mapstructure:"routeNamespace"`
	DefaultRedirectCode  int         `mapstructure:"defaultRedirectCode"`
	Routes               []RouteDoc  `mapstructure:"routes"`
}

// RouteDoc declares a single route. Exactly one of the Rewrite,
// Redirect or Do/handled-action groups of fields is expected to be
// meaningfully populated; the root package's compileRoute classifies by
// presence, in the order Rewrite, Redirect, else Handled.
type RouteDoc struct {
	On    string            `mapstructure:"on"`
	Conds map[string]string `mapstructure:"conds"`

	MethodMatch string `mapstructure:"methodMatch"`
	HostMatch   string `mapstructure:"hostMatch"`
	PortMatch   int    `mapstructure:"portMatch"`
	ProtoMatch  string `mapstructure:"protoMatch"`
	AllowWrite  bool   `mapstructure:"allowWrite"`
	ForceProto  string `mapstructure:"forceProto"`
	ForcePort   int    `mapstructure:"forcePort"`
	PostMatch   string `mapstructure:"postMatch"`

	// rewrite
	Rewrite      string `mapstructure:"rewrite"`
	Replace      string `mapstructure:"replace"`
	MatchParams  bool   `mapstructure:"matchParams"`
	RedirectCode int    `mapstructure:"redirectCode"`
	Status       int    `mapstructure:"status"`
	IsLast       bool   `mapstructure:"isLast"`

	// redirect
	Redirect   string            `mapstructure:"redirect"`
	Code       int               `mapstructure:"code"`
	KeepParams bool              `mapstructure:"keepParams"`
	GeoTarget  map[string]string `mapstructure:"geoTarget"`

	// handled
	Do      string         `mapstructure:"do"`
	Options map[string]any `mapstructure:"options"`
}

// Kind classifies a RouteDoc the way §4.3 step 4 does: the first
// present field among rewrite, redirect, else handled.
type Kind int

const (
	KindRewrite Kind = iota
	KindRedirect
	KindHandled
)

// Kind returns the route's declared kind by field presence.
func (r RouteDoc) Kind() Kind {
	if r.Rewrite != "" {
		return KindRewrite
	}
	if r.Redirect != "" {
		return KindRedirect
	}
	return KindHandled
}
