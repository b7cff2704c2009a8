package routeomatic

import (
	"fmt"

	"github.com/cnnlabs/cnn-routeomatic/routeutil"
)

// Resolver attempts to match req against one route table, dispatching
// the matched route's action and returning handled=true on a hit.
type Resolver func(req *Request) bool

// HostConfig is the immutable per-host configuration reached after a
// HostTable lookup (§3).
type HostConfig struct {
	TimeoutMs       int
	Headers         map[string]string
	ProxyHeaders    map[string]string
	RedirectHeaders map[string]string
	Resolvers       []Resolver
}

// HostTable maps a lower-cased hostname (or the wildcard "*") to its
// HostConfig (§3). It is built once and never mutated afterward.
type HostTable struct {
	hosts map[string]*HostConfig
}

// NewHostTable builds an empty HostTable; use AddHost to populate it.
// NewEngine and Engine.Reconfigure compile one from a declarative
// document.
func NewHostTable() *HostTable {
	return &HostTable{hosts: make(map[string]*HostConfig)}
}

// AddHost binds hostname to cfg. Hostname "*" is the wildcard default.
// Binding the same hostname twice is a build error (§3).
func (t *HostTable) AddHost(hostname string, cfg *HostConfig) error {
	if hostname != "*" && !routeutil.IsHostnameValid(hostname) {
		return fmt.Errorf("hosttable: invalid hostname %q", hostname)
	}
	if _, exists := t.hosts[hostname]; exists {
		return fmt.Errorf("hosttable: duplicate hostname %q", hostname)
	}
	t.hosts[hostname] = cfg
	return nil
}

// Lookup returns the HostConfig for hostname, falling back to the "*"
// wildcard entry when present. The second return value is false when
// neither the hostname nor the wildcard is registered (§3, §8
// scenario 10).
func (t *HostTable) Lookup(hostname string) (*HostConfig, bool) {
	if cfg, ok := t.hosts[hostname]; ok {
		return cfg, true
	}
	if cfg, ok := t.hosts["*"]; ok {
		return cfg, true
	}
	return nil, false
}
