package routeomatic

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cnnlabs/cnn-routeomatic/pathtrie"
	"github.com/cnnlabs/cnn-routeomatic/routecfg"
	"github.com/cnnlabs/cnn-routeomatic/routeutil"
)

// MatchType selects the matching strategy a RouteTable compiles its
// routes into (§3, §4.3).
type MatchType int

const (
	MatchTrie MatchType = iota
	MatchRegex
)

// CompileEnv carries the build-time inputs a RouteTable's compilation
// needs beyond the declarative document itself: the merged
// conditionals/substitutions and the handler namespace (§4.3, §6, §9).
type CompileEnv struct {
	Conds    map[string]string
	Subs     map[string]any
	Handlers map[string]Handler
}

type regexRoute struct {
	pattern *regexp.Regexp
	route   *Route
}

// RouteTable is a compiled, immutable set of routes sharing a matcher
// strategy and defaults (§3).
type RouteTable struct {
	ID                    string
	MatchType             MatchType
	IsCaseSpecific        bool
	MatchUsingQueryParams bool
	ForceProto            string
	ForcePort             int
	DefaultRedirectCode   int

	trie        *pathtrie.Tree
	regexRoutes []regexRoute
}

// BuildRouteTable compiles a declarative table into an immutable
// RouteTable, per §4.3. A malformed route aborts the whole build.
func BuildRouteTable(id string, doc routecfg.TableDoc, env CompileEnv) (*RouteTable, error) {
	isCaseSpecific := true
	if doc.IsCaseSpecific != nil {
		isCaseSpecific = *doc.IsCaseSpecific
	}

	defaultRedirectCode := doc.DefaultRedirectCode
	if defaultRedirectCode == 0 {
		defaultRedirectCode = 302
	}

	rt := &RouteTable{
		ID:                    id,
		IsCaseSpecific:        isCaseSpecific,
		MatchUsingQueryParams: doc.MatchUsingQueryParams,
		ForceProto:            doc.ForceProto,
		ForcePort:             doc.ForcePort,
		DefaultRedirectCode:   defaultRedirectCode,
	}

	switch strings.ToLower(doc.MatchType) {
	case "", "trie", "simple":
		rt.MatchType = MatchTrie
		rt.trie = pathtrie.New()
	case "regex":
		rt.MatchType = MatchRegex
	default:
		return nil, fmt.Errorf("routetable %s: unknown matchType %q", id, doc.MatchType)
	}

	for i, rd := range doc.Routes {
		if !condsSatisfied(rd.Conds, env.Conds) {
			continue
		}

		route, pattern, err := compileRoute(rd, doc, env)
		if err != nil {
			return nil, fmt.Errorf("routetable %s: route %d (%s): %w", id, i, rd.On, err)
		}

		if rt.MatchType == MatchRegex {
			flags := ""
			if !isCaseSpecific {
				flags = "(?i)"
			}
			re, err := regexp.Compile(flags + pattern)
			if err != nil {
				return nil, fmt.Errorf("routetable %s: route %d (%s): %w", id, i, rd.On, err)
			}
			rt.regexRoutes = append(rt.regexRoutes, regexRoute{pattern: re, route: route})
			continue
		}

		key := pattern
		if !isCaseSpecific {
			key = strings.ToLower(key)
		}
		if err := rt.trie.Add(key, route); err != nil {
			return nil, fmt.Errorf("routetable %s: route %d (%s): %w", id, i, rd.On, err)
		}
	}

	return rt, nil
}

func condsSatisfied(routeConds, envConds map[string]string) bool {
	for k, v := range routeConds {
		if envConds[k] != v {
			return false
		}
	}
	return true
}

func compileRoute(rd routecfg.RouteDoc, table routecfg.TableDoc, env CompileEnv) (*Route, string, error) {
	sub := func(s string) string { return routeutil.Substitute(s, env.Subs) }

	on := sub(rd.On)

	methodMatch := strings.ToUpper(rd.MethodMatch)
	if methodMatch != "" && !routeutil.IsMethodValid(methodMatch) {
		return nil, "", fmt.Errorf("invalid methodMatch %q", methodMatch)
	}

	hostMatch := sub(rd.HostMatch)
	if hostMatch != "" && !routeutil.IsHostnameValid(hostMatch) {
		return nil, "", fmt.Errorf("invalid hostMatch %q", hostMatch)
	}

	protoMatch := strings.ToLower(rd.ProtoMatch)
	if protoMatch != "" && protoMatch != "http" && protoMatch != "https" {
		return nil, "", fmt.Errorf("invalid protoMatch %q", protoMatch)
	}

	if rd.PortMatch < 0 || rd.PortMatch > 65535 {
		return nil, "", fmt.Errorf("invalid portMatch %d", rd.PortMatch)
	}

	filters := RuntimeFilters{
		MethodMatch: methodMatch,
		HostMatch:   hostMatch,
		PortMatch:   rd.PortMatch,
		ProtoMatch:  protoMatch,
		AllowWrite:  rd.AllowWrite,
		ForceProto:  strings.ToLower(sub(rd.ForceProto)),
		ForcePort:   rd.ForcePort,
	}

	if rd.PostMatch != "" {
		flags := ""
		if table.IsCaseSpecific != nil && !*table.IsCaseSpecific {
			flags = "(?i)"
		}
		re, err := regexp.Compile(flags + sub(rd.PostMatch))
		if err != nil {
			return nil, "", fmt.Errorf("invalid postMatch: %w", err)
		}
		filters.PostMatchRE = re
	}

	route := &Route{ID: on, Filters: filters}

	switch rd.Kind() {
	case routecfg.KindRewrite:
		pattern, err := regexp.Compile(sub(rd.Rewrite))
		if err != nil {
			return nil, "", fmt.Errorf("invalid rewrite pattern: %w", err)
		}

		replace := sub(rd.Replace)
		redirectCode := rd.RedirectCode
		if redirectCode == 0 && (strings.HasPrefix(replace, "http:") || strings.HasPrefix(replace, "https:")) {
			redirectCode = table.DefaultRedirectCode
			if redirectCode == 0 {
				redirectCode = 302
			}
		}

		route.Kind = KindRewrite
		route.Rewrite = &RewriteRoute{
			Pattern:      pattern,
			Replace:      replace,
			MatchParams:  rd.MatchParams,
			RedirectCode: redirectCode,
			Status:       rd.Status,
			IsLast:       rd.IsLast,
		}

	case routecfg.KindRedirect:
		redirect := sub(rd.Redirect)
		if redirect == "" {
			return nil, "", fmt.Errorf("redirect route must set redirect")
		}

		code := rd.Code
		if code == 0 {
			code = table.DefaultRedirectCode
			if code == 0 {
				code = 302
			}
		}

		geoTarget := make(map[string]string, len(rd.GeoTarget))
		for k, v := range rd.GeoTarget {
			geoTarget[k] = sub(v)
		}

		rr := &RedirectRoute{
			Redirect:   redirect,
			Code:       code,
			KeepParams: rd.KeepParams,
			GeoTarget:  geoTarget,
		}

		if len(geoTarget) > 0 {
			page, err := renderGeoPage(geoTarget, redirect)
			if err != nil {
				return nil, "", fmt.Errorf("rendering geoTarget page: %w", err)
			}
			rr.geoPage = page
		}

		route.Kind = KindRedirect
		route.Redirect = rr

	default:
		name := sub(rd.Do)
		if name == "" {
			name = table.DefaultHandler
		}
		if name == "" {
			return nil, "", fmt.Errorf("handled route has no do and table has no defaultHandler")
		}

		lookupName := name
		if table.RouteNamespace != "" {
			lookupName = table.RouteNamespace + "|" + name
		}

		action, ok := env.Handlers[lookupName]
		if !ok {
			action, ok = env.Handlers[name]
		}
		if !ok {
			return nil, "", fmt.Errorf("no handler registered for %q", name)
		}

		options := make(map[string]any, len(rd.Options))
		for k, v := range rd.Options {
			options[k] = routeutil.SubstituteString(v, env.Subs)
		}

		route.Kind = KindHandled
		route.Handled = &HandledRoute{Action: action, Options: options}
	}

	return route, on, nil
}

// Resolve attempts to match req against the table, per §4.4. It
// returns true (handled) exactly when a route's action ran, including
// the forced-protocol redirect case.
func (rt *RouteTable) Resolve(req *Request) bool {
	if rt.ForceProto != "" && rt.ForceProto != req.Scheme {
		return forceProtoRedirect(req, rt.ForceProto, rt.ForcePort)
	}

	key := rt.lookupKey(req)

	switch rt.MatchType {
	case MatchTrie:
		return rt.resolveTrie(req, key)
	default:
		return rt.resolveRegex(req, key)
	}
}

func (rt *RouteTable) lookupKey(req *Request) string {
	path := req.NormalizedPath
	if rt.IsCaseSpecific {
		path = req.Path
	}

	if rt.MatchUsingQueryParams {
		return path + "?" + req.RawQuery
	}

	return path
}

func (rt *RouteTable) resolveTrie(req *Request, key string) bool {
	result, ok := rt.trie.Find(key, func(data any) bool {
		return data.(*Route).PassesRuntimeChecks(req)
	})
	if !ok {
		return false
	}

	route := result.Data.(*Route)
	tail := key[len(result.Match):]

	if route.Filters.PostMatchRE != nil && !route.Filters.PostMatchRE.MatchString(tail) {
		return false
	}

	if route.Filters.ForceProto != "" && route.Filters.ForceProto != req.Scheme {
		return forceProtoRedirect(req, route.Filters.ForceProto, route.Filters.ForcePort)
	}

	return dispatchAction(req, route, Args{Key: key, Match: result.Match, Tail: tail})
}

func (rt *RouteTable) resolveRegex(req *Request, key string) bool {
	for _, rr := range rt.regexRoutes {
		m := rr.pattern.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		if !rr.route.PassesRuntimeChecks(req) {
			continue
		}

		route := rr.route
		tail := ""
		if len(m) > 1 {
			tail = m[1]
		}

		if route.Filters.ForceProto != "" && route.Filters.ForceProto != req.Scheme {
			return forceProtoRedirect(req, route.Filters.ForceProto, route.Filters.ForcePort)
		}

		return dispatchAction(req, route, Args{Key: key, Match: m[0], Tail: tail, Groups: m[1:]})
	}

	return false
}

func forceProtoRedirect(req *Request, proto string, port int) bool {
	if port == 0 {
		port = routeutil.DefaultPort(proto)
	}

	target := proto + "://" + req.Hostname
	if port != routeutil.DefaultPort(proto) {
		target += ":" + strconv.Itoa(port)
	}
	target += req.Path
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}

	req.Redirect(301, target)
	return true
}

func dispatchAction(req *Request, route *Route, args Args) (handled bool) {
	defer func() {
		if p := recover(); p != nil {
			req.logf("panic in route action %s: %v", route.ID, p)
			req.Error(500, "")
			handled = true
		}
	}()

	switch route.Kind {
	case KindRedirect:
		return handleMatchedRedirect(req, route)
	case KindRewrite:
		return handleMatchedRewrite(req, route)
	default:
		if route.Handled.Action(req, route, args) {
			return true
		}
		return false
	}
}
