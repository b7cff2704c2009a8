// Package routeomatic implements a reconfigurable virtual-host/route
// dispatcher that sits in front of an HTTP server. For each incoming
// request it decides whether to redirect, rewrite, proxy, invoke a
// user handler, or return an error.
//
// The engine is built from three tightly coupled subsystems, kept in
// this single package the way net/http keeps ServeMux and Request
// together: a route matcher (RouteTable, backed by either the
// character trie in package pathtrie or a compiled regex list), a
// request pipeline (Request) that normalizes the URL, ingests the
// body when applicable, walks the host and route tables, and
// dispatches to an action, and a configuration builder
// (buildHostTable, run by NewEngine and Engine.Reconfigure) that compiles a declarative document (package
// routecfg) into the immutable graphs the other two consume.
//
// Engine composes the three and exposes HandleRouting as the single
// entry point the embedding HTTP server calls for every request.
package routeomatic
