package routeomatic

import (
	"strings"

	"github.com/cnnlabs/cnn-routeomatic/geo"
)

func renderGeoPage(geoTarget map[string]string, fallback string) (string, error) {
	return geo.RenderPage(geoTarget, fallback)
}

// handleMatchedRedirect implements §4.5's Redirect action. It always
// returns handled=true.
func handleMatchedRedirect(req *Request, route *Route) bool {
	rr := route.Redirect

	if len(rr.GeoTarget) == 0 {
		req.Redirect(rr.Code, redirectTarget(req, rr.Redirect, rr.KeepParams))
		return true
	}

	// Server-side fast path: when the embedder configured a GeoCountry
	// resolver, skip the client-side page and redirect straight to the
	// resolved destination.
	if req.env != nil && req.env.GeoCountry != nil {
		if cc := req.env.GeoCountry(req); cc != "" {
			dest := req.env.GeoTables.Resolve(rr.GeoTarget, cc, rr.Redirect)
			req.Redirect(rr.Code, redirectTarget(req, dest, rr.KeepParams))
			return true
		}
	}

	req.sendHTML(200, rr.geoPage)
	return true
}

func redirectTarget(req *Request, dest string, keepParams bool) string {
	if !keepParams || req.RawQuery == "" {
		return dest
	}

	sep := "?"
	if strings.Contains(dest, "?") {
		sep = "&"
	}

	return dest + sep + req.RawQuery
}

// handleMatchedRewrite implements §4.5's Rewrite action.
func handleMatchedRewrite(req *Request, route *Route) bool {
	rw := route.Rewrite

	if rw.Status != 0 {
		req.Send(rw.Status, nil)
		return true
	}

	var rewritten string
	var noop bool
	if rw.MatchParams {
		full := req.URL
		rewritten = rw.Pattern.ReplaceAllString(full, rw.Replace)
		noop = rewritten == full
	} else {
		newPath := rw.Pattern.ReplaceAllString(req.Path, rw.Replace)
		noop = newPath == req.Path
		rewritten = newPath
		if req.RawQuery != "" {
			rewritten += "&" + req.RawQuery
		}
	}

	if rw.RedirectCode != 0 {
		req.Redirect(rw.RedirectCode, rewritten)
		return true
	}

	if noop {
		return false
	}

	req.rewriteURL(rewritten)
	return true
}
