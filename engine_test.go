package routeomatic

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnnlabs/cnn-routeomatic/logging/loggingtest"
	"github.com/cnnlabs/cnn-routeomatic/routecfg"
)

func boolPtr(b bool) *bool { return &b }

func handlerOK(body string) Handler {
	return func(req *Request, route *Route, args Args) bool {
		req.Send(200, body)
		return true
	}
}

func newTestEngine(t *testing.T, doc *routecfg.Document, env *Env) *Engine {
	t.Helper()
	if env == nil {
		env = &Env{RouteHandlers: map[string]Handler{}}
	}
	e, err := NewEngine(env, DefaultSettings(), doc)
	require.NoError(t, err)
	return e
}

func TestExactWinsOverAncestorPrefix(t *testing.T) {
	env := &Env{RouteHandlers: map[string]Handler{
		"prefix": handlerOK("prefix"),
		"exact":  handlerOK("exact"),
	}}

	doc := &routecfg.Document{
		Hosts: []routecfg.HostDoc{{Hostnames: []string{"*"}, RouteTables: []string{"main"}}},
		RouteTables: map[string]routecfg.TableDoc{
			"main": {
				MatchType:      "trie",
				IsCaseSpecific: boolPtr(false),
				Routes: []routecfg.RouteDoc{
					{On: "/a/", Do: "prefix"},
					{On: "/a/b#", Do: "exact"},
				},
			},
		},
	}

	e := newTestEngine(t, doc, env)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "http://example.com/a/b", nil)
	e.HandleRouting(rec, req)
	assert.Equal(t, "exact", rec.Body.String())

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest("GET", "http://example.com/a/b/c", nil)
	e.HandleRouting(rec2, req2)
	assert.Equal(t, "prefix", rec2.Body.String())
}

func TestIndexExpansion(t *testing.T) {
	env := &Env{RouteHandlers: map[string]Handler{"docs": handlerOK("docs")}}

	doc := &routecfg.Document{
		Hosts: []routecfg.HostDoc{{Hostnames: []string{"*"}, RouteTables: []string{"main"}}},
		RouteTables: map[string]routecfg.TableDoc{
			"main": {
				MatchType: "trie",
				Routes: []routecfg.RouteDoc{
					{On: "/docs#i", Do: "docs"},
				},
			},
		},
	}

	e := newTestEngine(t, doc, env)

	for _, path := range []string{"/docs", "/docs/", "/docs/index.html"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "http://example.com"+path, nil)
		e.HandleRouting(rec, req)
		assert.Equal(t, "docs", rec.Body.String(), "path %s", path)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "http://example.com/docs/other", nil)
	e.HandleRouting(rec, req)
	assert.Equal(t, 404, rec.Code)
}

func TestDoubleSlashCollapseAtEntry(t *testing.T) {
	env := &Env{RouteHandlers: map[string]Handler{"foo": handlerOK("foo")}}

	doc := &routecfg.Document{
		Hosts: []routecfg.HostDoc{{Hostnames: []string{"*"}, RouteTables: []string{"main"}}},
		RouteTables: map[string]routecfg.TableDoc{
			"main": {
				MatchType: "trie",
				Routes:    []routecfg.RouteDoc{{On: "/foo/bar#", Do: "foo"}},
			},
		},
	}

	settings := DefaultSettings()
	settings.RemoveDoubleSlashes = true
	e, err := NewEngine(env, settings, doc)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "http://example.com/foo//bar?q=1", nil)
	e.HandleRouting(rec, req)

	assert.Equal(t, 301, rec.Code)
	assert.Equal(t, "/foo/bar?q=1", rec.Header().Get("Location"))
}

func TestPercentEncodedLFRejected(t *testing.T) {
	doc := &routecfg.Document{
		Hosts: []routecfg.HostDoc{{Hostnames: []string{"*"}, RouteTables: []string{"main"}}},
		RouteTables: map[string]routecfg.TableDoc{
			"main": {MatchType: "trie"},
		},
	}

	e := newTestEngine(t, doc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "http://example.com/foo%0abar", nil)
	e.HandleRouting(rec, req)

	assert.Equal(t, 404, rec.Code)
}

func TestRedirectKeepParams(t *testing.T) {
	doc := &routecfg.Document{
		Hosts: []routecfg.HostDoc{{Hostnames: []string{"*"}, RouteTables: []string{"main"}}},
		RouteTables: map[string]routecfg.TableDoc{
			"main": {
				MatchType: "trie",
				Routes: []routecfg.RouteDoc{
					{On: "/old#", Redirect: "https://ex.example/new", Code: 301, KeepParams: true},
				},
			},
		},
	}

	e := newTestEngine(t, doc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "http://example.com/old?x=1", nil)
	e.HandleRouting(rec, req)

	assert.Equal(t, 301, rec.Code)
	assert.Equal(t, "https://ex.example/new?x=1", rec.Header().Get("Location"))
}

func TestRewriteWithDefaultRedirectCode(t *testing.T) {
	doc := &routecfg.Document{
		Hosts: []routecfg.HostDoc{{Hostnames: []string{"*"}, RouteTables: []string{"main"}}},
		RouteTables: map[string]routecfg.TableDoc{
			"main": {
				MatchType:           "regex",
				DefaultRedirectCode: 302,
				Routes: []routecfg.RouteDoc{
					{On: "^/a/(.*)$", Rewrite: "^/a/(.*)$", Replace: "https://b.example/$1"},
				},
			},
		},
	}

	e := newTestEngine(t, doc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "http://example.com/a/path", nil)
	e.HandleRouting(rec, req)

	assert.Equal(t, 302, rec.Code)
	assert.Equal(t, "https://b.example/path", rec.Header().Get("Location"))
}

func TestForcedProtocolTableWide(t *testing.T) {
	env := &Env{RouteHandlers: map[string]Handler{"x": handlerOK("x")}}

	doc := &routecfg.Document{
		Hosts: []routecfg.HostDoc{{Hostnames: []string{"*"}, RouteTables: []string{"main"}}},
		RouteTables: map[string]routecfg.TableDoc{
			"main": {
				MatchType:  "trie",
				ForceProto: "https",
				ForcePort:  443,
				Routes:     []routecfg.RouteDoc{{On: "/x#", Do: "x"}},
			},
		},
	}

	e := newTestEngine(t, doc, env)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "http://example.com/x", nil)
	e.HandleRouting(rec, req)

	assert.Equal(t, 301, rec.Code)
	assert.Equal(t, "https://example.com/x", rec.Header().Get("Location"))
}

func TestDefaultHostWildcardAndMissing(t *testing.T) {
	env := &Env{RouteHandlers: map[string]Handler{"x": handlerOK("x")}}

	doc := &routecfg.Document{
		Hosts: []routecfg.HostDoc{{Hostnames: []string{"*"}, RouteTables: []string{"main"}}},
		RouteTables: map[string]routecfg.TableDoc{
			"main": {MatchType: "trie", Routes: []routecfg.RouteDoc{{On: "/x#", Do: "x"}}},
		},
	}

	e := newTestEngine(t, doc, env)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "http://unknown.example/x", nil)
	e.HandleRouting(rec, req)
	assert.Equal(t, 200, rec.Code)

	docNoWildcard := &routecfg.Document{
		Hosts: []routecfg.HostDoc{{Hostnames: []string{"known.example"}, RouteTables: []string{"main"}}},
		RouteTables: map[string]routecfg.TableDoc{
			"main": {MatchType: "trie", Routes: []routecfg.RouteDoc{{On: "/x#", Do: "x"}}},
		},
	}
	e2 := newTestEngine(t, docNoWildcard, env)

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest("GET", "http://unknown.example/x", nil)
	e2.HandleRouting(rec2, req2)
	assert.Equal(t, 503, rec2.Code)
}

func TestReconfigureSwapsAtomically(t *testing.T) {
	env := &Env{RouteHandlers: map[string]Handler{"v1": handlerOK("v1"), "v2": handlerOK("v2")}}

	doc1 := &routecfg.Document{
		Hosts: []routecfg.HostDoc{{Hostnames: []string{"*"}, RouteTables: []string{"main"}}},
		RouteTables: map[string]routecfg.TableDoc{
			"main": {MatchType: "trie", Routes: []routecfg.RouteDoc{{On: "/x#", Do: "v1"}}},
		},
	}

	e := newTestEngine(t, doc1, env)

	rec := httptest.NewRecorder()
	e.HandleRouting(rec, httptest.NewRequest("GET", "http://example.com/x", nil))
	assert.Equal(t, "v1", rec.Body.String())

	doc2 := &routecfg.Document{
		Hosts: []routecfg.HostDoc{{Hostnames: []string{"*"}, RouteTables: []string{"main"}}},
		RouteTables: map[string]routecfg.TableDoc{
			"main": {MatchType: "trie", Routes: []routecfg.RouteDoc{{On: "/x#", Do: "v2"}}},
		},
	}
	require.NoError(t, e.Reconfigure(doc2))

	rec2 := httptest.NewRecorder()
	e.HandleRouting(rec2, httptest.NewRequest("GET", "http://example.com/x", nil))
	assert.Equal(t, "v2", rec2.Body.String())
}

func TestPanicInRouteActionIsLoggedAndReturns500(t *testing.T) {
	recorder := loggingtest.New()
	env := &Env{
		Logger: recorder,
		RouteHandlers: map[string]Handler{
			"boom": func(req *Request, route *Route, args Args) bool {
				panic("kaboom")
			},
		},
	}

	doc := &routecfg.Document{
		Hosts: []routecfg.HostDoc{{Hostnames: []string{"*"}, RouteTables: []string{"main"}}},
		RouteTables: map[string]routecfg.TableDoc{
			"main": {MatchType: "trie", Routes: []routecfg.RouteDoc{{On: "/x#", Do: "boom"}}},
		},
	}

	e := newTestEngine(t, doc, env)

	rec := httptest.NewRecorder()
	e.HandleRouting(rec, httptest.NewRequest("GET", "http://example.com/x", nil))

	assert.Equal(t, 500, rec.Code)

	entries := recorder.Entries()
	require.Len(t, entries, 1)
	assert.True(t, strings.Contains(entries[0], "kaboom"))
}
