package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrigins() map[Origin]string {
	return map[Origin]string{
		OriginDocs:     "https://docs.example.com",
		OriginAPI:      "https://api.example.com",
		OriginFrontend: "https://app.example.com",
	}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	table := New(testOrigins())

	tests := []struct {
		name string
		path string
		want Origin
	}{
		{name: "docs root", path: "/docs", want: OriginDocs},
		{name: "docs subpath", path: "/docs/getting-started", want: OriginDocs},
		{name: "api root", path: "/api", want: OriginAPI},
		{name: "api deep path with trailing slash", path: "/api/Orders/42/", want: OriginAPI},
		{name: "auth", path: "/auth/login", want: OriginAPI},
		{name: "admin", path: "/admin", want: OriginAPI},
		{name: "admin login page", path: "/admin/login/", want: OriginAPI},
		{name: "root", path: "/", want: OriginFrontend},
		{name: "frontend route", path: "/dashboard", want: OriginFrontend},
		{name: "static asset", path: "/assets/main.js", want: OriginFrontend},
		{name: "empty path", path: "", want: OriginFrontend},
		{name: "near miss apx", path: "/apx", want: OriginFrontend},
		{name: "near miss doc singular", path: "/doc", want: OriginFrontend},
		{name: "case sensitive", path: "/API/orders", want: OriginFrontend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			origin, base := table.Select(tt.path)
			assert.Equal(t, tt.want, origin)
			assert.Equal(t, testOrigins()[tt.want], base)
		})
	}
}

func TestSelectRawPrefixMatching(t *testing.T) {
	t.Parallel()

	table := New(testOrigins())

	// Matching is raw string-prefix: a path that merely starts with a
	// rule prefix matches even without a segment boundary.
	origin, _ := table.Select("/docsomething")
	assert.Equal(t, OriginDocs, origin)

	origin, _ = table.Select("/apikeys")
	assert.Equal(t, OriginAPI, origin)
}

func TestSelectIsTotal(t *testing.T) {
	t.Parallel()

	table := New(testOrigins())

	for _, path := range []string{"", "/", "no-leading-slash", "/%2e%2e", "//double"} {
		origin, base := table.Select(path)
		require.NotEmpty(t, origin, "path %q", path)
		require.NotEmpty(t, base, "path %q", path)
	}
}

func TestSelectFirstMatchWins(t *testing.T) {
	t.Parallel()

	// Overlapping prefixes resolve in rule order.
	table := New(testOrigins(), WithRules([]Rule{
		{Prefixes: []string{"/api/internal"}, Origin: OriginDocs},
		{Prefixes: []string{"/api"}, Origin: OriginAPI},
	}))

	origin, _ := table.Select("/api/internal/x")
	assert.Equal(t, OriginDocs, origin)

	origin, _ = table.Select("/api/orders")
	assert.Equal(t, OriginAPI, origin)
}

func TestWithFallback(t *testing.T) {
	t.Parallel()

	table := New(testOrigins(), WithFallback(OriginDocs))

	origin, base := table.Select("/anything")
	assert.Equal(t, OriginDocs, origin)
	assert.Equal(t, "https://docs.example.com", base)
}

func TestAccessorsReturnCopies(t *testing.T) {
	t.Parallel()

	table := New(testOrigins())

	rules := table.Rules()
	require.NotEmpty(t, rules)
	rules[0].Origin = OriginFrontend

	origin, _ := table.Select("/docs")
	assert.Equal(t, OriginDocs, origin)

	origins := table.Origins()
	origins[OriginDocs] = "https://tampered.example.com"

	_, base := table.Select("/docs")
	assert.Equal(t, "https://docs.example.com", base)
}

func TestDefaultRulesOrder(t *testing.T) {
	t.Parallel()

	rules := DefaultRules()
	require.Len(t, rules, 2)
	assert.Equal(t, OriginDocs, rules[0].Origin)
	assert.Equal(t, []string{"/docs"}, rules[0].Prefixes)
	assert.Equal(t, OriginAPI, rules[1].Origin)
	assert.Equal(t, []string{"/api", "/auth", "/admin"}, rules[1].Prefixes)
}
