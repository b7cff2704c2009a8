package geo

import "testing"

func TestResolveCountryFirst(t *testing.T) {
	tables := Tables{
		Regions:    map[string][]string{"eu": {"DE", "FR"}},
		Continents: map[string][]string{"europe": {"DE", "FR", "GB"}},
	}

	geoTarget := map[string]string{
		"DE":     "https://de.example.org",
		"eu":     "https://eu.example.org",
		"europe": "https://euro.example.org",
	}

	if got := tables.Resolve(geoTarget, "de", "https://example.org"); got != "https://de.example.org" {
		t.Fatalf("got %s", got)
	}

	if got := tables.Resolve(geoTarget, "FR", "https://example.org"); got != "https://eu.example.org" {
		t.Fatalf("expected region fallback, got %s", got)
	}

	if got := tables.Resolve(geoTarget, "GB", "https://example.org"); got != "https://euro.example.org" {
		t.Fatalf("expected continent fallback, got %s", got)
	}

	if got := tables.Resolve(geoTarget, "US", "https://example.org"); got != "https://example.org" {
		t.Fatalf("expected default fallback, got %s", got)
	}
}

func TestRenderPageHasNoscriptFallback(t *testing.T) {
	html, err := RenderPage(map[string]string{"DE": "https://de.example.org"}, "https://example.org")
	if err != nil {
		t.Fatal(err)
	}

	if !contains(html, "<noscript>") || !contains(html, "meta http-equiv=\"refresh\"") {
		t.Fatalf("missing noscript fallback: %s", html)
	}

	if !contains(html, "countryCode") {
		t.Fatalf("missing cookie read: %s", html)
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (indexOf(s, sub) >= 0)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
