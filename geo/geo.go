// Package geo resolves a redirect route's geoTarget mapping against a
// country code, checking 2-letter country codes first, then named
// regions, then named continents, and renders the client-side
// redirector page mandated by the routing engine's redirect action.
package geo

import (
	"bytes"
	"html/template"
	"sort"
	"strings"
)

// Tables holds the data/continents and data/regions lookups: a name
// (region or continent) mapped to the list of 2-letter country codes
// it contains. The embedding program supplies them through
// Env.GeoTables; their content is not otherwise specified.
type Tables struct {
	Regions    map[string][]string
	Continents map[string][]string
}

// Resolve picks the destination URL for a country code out of a
// geoTarget mapping (country code / region name / continent name ->
// URL), falling back to fallback when nothing matches.
func (t Tables) Resolve(geoTarget map[string]string, countryCode, fallback string) string {
	countryCode = strings.ToUpper(countryCode)

	if url, ok := geoTarget[countryCode]; ok {
		return url
	}

	for region, codes := range t.Regions {
		if containsCode(codes, countryCode) {
			if url, ok := geoTarget[region]; ok {
				return url
			}
		}
	}

	for continent, codes := range t.Continents {
		if containsCode(codes, countryCode) {
			if url, ok := geoTarget[continent]; ok {
				return url
			}
		}
	}

	return fallback
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

// pageTemplate renders a self-contained HTML document that reads the
// countryCode cookie client-side, looks up the matching URL from an
// embedded table, and navigates there. A <noscript><meta refresh>
// fallback covers clients without JavaScript.
var pageTemplate = template.Must(template.New("georedirect").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Redirecting…</title></head>
<body>
<noscript><meta http-equiv="refresh" content="0; url={{.Fallback}}"></noscript>
<script>
(function() {
  var table = {{.TableJSON}};
  var fallback = {{.Fallback}};
  function readCookie(name) {
    var m = document.cookie.match(new RegExp('(?:^|; )' + name + '=([^;]*)'));
    return m ? decodeURIComponent(m[1]) : '';
  }
  var cc = (readCookie('countryCode') || '').toUpperCase();
  var dest = table[cc] || fallback;
  window.location.replace(dest);
})();
</script>
</body>
</html>
`))

type pageData struct {
	Fallback  template.JS
	TableJSON template.JS
}

// RenderPage builds the geo-redirect HTML page for a compiled route's
// geoTarget mapping and its non-geo fallback URL. Rendered once per
// route at build time and cached on the Route so requests never pay
// template-execution cost.
func RenderPage(geoTarget map[string]string, fallback string) (string, error) {
	keys := make([]string, 0, len(geoTarget))
	for k := range geoTarget {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var jsonBuf bytes.Buffer
	jsonBuf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			jsonBuf.WriteByte(',')
		}
		jsonBuf.WriteString(jsQuote(k))
		jsonBuf.WriteByte(':')
		jsonBuf.WriteString(jsQuote(geoTarget[k]))
	}
	jsonBuf.WriteByte('}')

	data := pageData{
		Fallback:  template.JS(jsQuote(fallback)),
		TableJSON: template.JS(jsonBuf.String()),
	}

	var out bytes.Buffer
	if err := pageTemplate.Execute(&out, data); err != nil {
		return "", err
	}

	return out.String(), nil
}

func jsQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '<':
			b.WriteString(`<`)
		case '>':
			b.WriteString(`>`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
