package routeomatic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassesRuntimeChecksMethodMatch(t *testing.T) {
	route := &Route{Filters: RuntimeFilters{MethodMatch: "POST"}}

	post := newBareRequest("POST", "http://example.com/x")
	assert.True(t, route.PassesRuntimeChecks(post))

	get := newBareRequest("GET", "http://example.com/x")
	assert.False(t, route.PassesRuntimeChecks(get))
}

func TestPassesRuntimeChecksRejectsWriteByDefault(t *testing.T) {
	route := &Route{}

	post := newBareRequest("POST", "http://example.com/x")
	assert.False(t, route.PassesRuntimeChecks(post))
}

func TestPassesRuntimeChecksAllowWrite(t *testing.T) {
	route := &Route{Filters: RuntimeFilters{AllowWrite: true}}

	post := newBareRequest("POST", "http://example.com/x")
	assert.True(t, route.PassesRuntimeChecks(post))
}

func TestPassesRuntimeChecksHostAndProto(t *testing.T) {
	route := &Route{Filters: RuntimeFilters{HostMatch: "api.example.com", ProtoMatch: "https"}}

	ok := newBareRequest("GET", "https://api.example.com/x")
	assert.True(t, route.PassesRuntimeChecks(ok))

	wrongHost := newBareRequest("GET", "https://other.example.com/x")
	assert.False(t, route.PassesRuntimeChecks(wrongHost))
}
