package routeomatic

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cnnlabs/cnn-routeomatic/metrics"
	"github.com/cnnlabs/cnn-routeomatic/routecfg"
	"github.com/cnnlabs/cnn-routeomatic/routeutil"
)

// Engine is the top-level object composing the route matcher, request
// pipeline and host table, and exposing HandleRouting as the single
// HTTP entry point (§4.10).
type Engine struct {
	env      *Env
	settings Settings
	metrics  *metrics.Metrics

	hostTable atomic.Pointer[HostTable]
}

// NewEngine validates env and builds the initial HostTable from doc,
// per §4.10.
func NewEngine(env *Env, settings Settings, doc *routecfg.Document) (*Engine, error) {
	if env == nil {
		env = &Env{}
	}

	e := &Engine{env: env, settings: settings, metrics: metrics.New()}
	registerBuiltinHandlers(env, e.metrics)

	ht, err := buildHostTable(doc, env)
	if err != nil {
		return nil, fmt.Errorf("engine: initial build: %w", err)
	}
	e.hostTable.Store(ht)

	return e, nil
}

// Reconfigure rebuilds a fresh HostTable from doc and, on success,
// atomically swaps it in; on failure the prior configuration keeps
// serving traffic (§4.10, §5, §7).
func (e *Engine) Reconfigure(doc *routecfg.Document) error {
	ht, err := buildHostTable(doc, e.env)
	if err != nil {
		e.metrics.CountReconfigure("error")
		return err
	}

	e.hostTable.Store(ht)
	e.metrics.CountReconfigure("ok")
	return nil
}

// HandleRouting is the catch-all entry point the embedding HTTP server
// calls for every request, regardless of method (§6).
func (e *Engine) HandleRouting(w http.ResponseWriter, r *http.Request) {
	ht := e.hostTable.Load()

	req, ok := newRequest(w, r, e.env, e.settings, ht)
	if !ok {
		req.Error(404, "")
		return
	}

	start := time.Now()
	req.ingestBody()
	if req.sent {
		return
	}

	req.doRoute()

	if e.metrics != nil {
		result := "miss"
		if req.HostConfig != nil {
			result = "hit"
		}
		e.metrics.CountRouteResult("*", result)
		e.metrics.MeasureRouteLookup("*", "combined", start)
	}
}

// SupportHandler exposes the /metrics endpoint and a POST /reload
// endpoint, meant to be mounted on a separate listener from the main
// traffic port (SPEC_FULL.md supplemented features).
func (e *Engine) SupportHandler(loadDocument func() (*routecfg.Document, error)) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.metrics.Handler())
	mux.HandleFunc("/reload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		doc, err := loadDocument()
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		if err := e.Reconfigure(doc); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "reconfigured"})
	})
	return mux
}

func buildHostTable(doc *routecfg.Document, env *Env) (*HostTable, error) {
	if doc == nil {
		return nil, fmt.Errorf("hosttable: nil document")
	}

	conds := map[string]string{}
	for k, v := range doc.Env.Conds {
		conds[k] = v
	}
	for k, v := range env.Conds {
		conds[k] = v
	}

	subs := map[string]any{}
	for k, v := range doc.Env.Subs {
		subs[k] = v
	}
	for k, v := range env.Subs {
		subs[k] = v
	}

	compileEnv := CompileEnv{Conds: conds, Subs: subs, Handlers: env.RouteHandlers}

	tables := make(map[string]*RouteTable, len(doc.RouteTables))
	for id, tdoc := range doc.RouteTables {
		rt, err := BuildRouteTable(id, tdoc, compileEnv)
		if err != nil {
			return nil, err
		}
		tables[id] = rt
	}

	ht := NewHostTable()
	for _, hdoc := range doc.Hosts {
		cfg, err := buildHostConfig(hdoc, doc.HostDefault, tables, subs)
		if err != nil {
			return nil, err
		}

		for _, rawHostname := range hdoc.Hostnames {
			hostname := routeutil.Substitute(rawHostname, subs)
			if hostname == "" {
				continue
			}
			if err := ht.AddHost(strings.ToLower(hostname), cfg); err != nil {
				return nil, err
			}
		}
	}

	return ht, nil
}

func buildHostConfig(hdoc routecfg.HostDoc, defaults routecfg.HostDefaults, tables map[string]*RouteTable, subs map[string]any) (*HostConfig, error) {
	timeout := defaults.TimeoutMs
	if hdoc.TimeoutMs != nil {
		timeout = *hdoc.TimeoutMs
	}

	headers, err := routeutil.MergeHeaders(defaults.Headers, hdoc.Headers)
	if err != nil {
		return nil, fmt.Errorf("host headers: %w", err)
	}

	proxyHeaders, err := routeutil.MergeHeaders(defaults.ProxyHeaders, hdoc.ProxyHeaders)
	if err != nil {
		return nil, fmt.Errorf("host proxyHeaders: %w", err)
	}

	redirectHeaders, err := routeutil.MergeHeaders(defaults.RedirectHeaders, hdoc.RedirectHeaders)
	if err != nil {
		return nil, fmt.Errorf("host redirectHeaders: %w", err)
	}

	resolvers := make([]Resolver, 0, len(hdoc.RouteTables))
	for _, tableID := range hdoc.RouteTables {
		rt, ok := tables[tableID]
		if !ok {
			return nil, fmt.Errorf("host references unknown route table %q", tableID)
		}
		resolvers = append(resolvers, rt.Resolve)
	}

	return &HostConfig{
		TimeoutMs:       timeout,
		Headers:         headers,
		ProxyHeaders:    proxyHeaders,
		RedirectHeaders: redirectHeaders,
		Resolvers:       resolvers,
	}, nil
}
