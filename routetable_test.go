package routeomatic

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnnlabs/cnn-routeomatic/routecfg"
)

func TestBuildRouteTableRejectsUnknownMatchType(t *testing.T) {
	_, err := BuildRouteTable("main", routecfg.TableDoc{MatchType: "bogus"}, CompileEnv{})
	assert.Error(t, err)
}

func TestBuildRouteTableDropsRouteFailingConds(t *testing.T) {
	doc := routecfg.TableDoc{
		MatchType: "trie",
		Routes: []routecfg.RouteDoc{
			{On: "/beta#", Conds: map[string]string{"flag": "on"}, Do: "h"},
		},
	}

	rt, err := BuildRouteTable("main", doc, CompileEnv{
		Conds:    map[string]string{"flag": "off"},
		Handlers: map[string]Handler{"h": handlerOK("h")},
	})
	require.NoError(t, err)

	req := newBareRequest("GET", "http://example.com/beta")
	assert.False(t, rt.Resolve(req))
}

func TestBuildRouteTableRegexFirstMatchWins(t *testing.T) {
	doc := routecfg.TableDoc{
		MatchType: "regex",
		Routes: []routecfg.RouteDoc{
			{On: "^/api/.*$", Do: "first"},
			{On: "^/api/v1$", Do: "second"},
		},
	}

	rt, err := BuildRouteTable("main", doc, CompileEnv{
		Handlers: map[string]Handler{"first": handlerOK("first"), "second": handlerOK("second")},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := newBareRequestWithRecorder("GET", "http://example.com/api/v1", rec)
	assert.True(t, rt.Resolve(req))
	assert.Equal(t, "first", rec.Body.String())
}

func TestBuildRouteTableDuplicateTerminalFails(t *testing.T) {
	doc := routecfg.TableDoc{
		MatchType: "trie",
		Routes: []routecfg.RouteDoc{
			{On: "/x#", Do: "a"},
			{On: "/x#", Do: "a"},
		},
	}

	_, err := BuildRouteTable("main", doc, CompileEnv{Handlers: map[string]Handler{"a": handlerOK("a")}})
	assert.Error(t, err)
}

func newBareRequest(method, rawurl string) *Request {
	return newBareRequestWithRecorder(method, rawurl, httptest.NewRecorder())
}

func newBareRequestWithRecorder(method, rawurl string, rec *httptest.ResponseRecorder) *Request {
	r := httptest.NewRequest(method, rawurl, nil)
	req, ok := newRequest(rec, r, &Env{}, DefaultSettings(), NewHostTable())
	if !ok {
		panic("unexpected normalization failure in test fixture")
	}
	return req
}
