package web

import (
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS, HEAD"
	corsMaxAge       = "86400"
)

// cgnatPrefix covers tailnet addresses, which are always trusted.
var cgnatPrefix = netip.MustParsePrefix("100.64.0.0/10")

// newCORSMiddleware allows credentialed requests from allowedDomains and
// their subdomains. Preflights from any other origin are rejected.
func newCORSMiddleware(allowedDomains []string) gin.HandlerFunc {
	domains := make([]string, 0, len(allowedDomains))
	for _, domain := range allowedDomains {
		if d := strings.ToLower(strings.Trim(strings.TrimSpace(domain), ".")); d != "" {
			domains = append(domains, d)
		}
	}

	return func(ctx *gin.Context) {
		origin := strings.TrimSpace(ctx.Request.Header.Get("Origin"))
		isPreflight := ctx.Request.Method == http.MethodOptions

		if origin == "" {
			if isPreflight {
				ctx.Header("Access-Control-Allow-Origin", "*")
				ctx.Header("Access-Control-Allow-Methods", corsAllowMethods)
				ctx.Header("Access-Control-Allow-Headers", "*")
				ctx.Header("Access-Control-Max-Age", corsMaxAge)
				ctx.AbortWithStatus(http.StatusNoContent)
				return
			}
			ctx.Next()
			return
		}

		if !originAllowed(origin, domains) {
			if isPreflight {
				ctx.AbortWithStatus(http.StatusForbidden)
				return
			}
			ctx.Next()
			return
		}

		ctx.Header("Access-Control-Allow-Origin", origin)
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Methods", corsAllowMethods)
		ctx.Header("Access-Control-Allow-Headers", "*")
		ctx.Header("Access-Control-Max-Age", corsMaxAge)
		ctx.Header("Vary", "Origin")
		if isPreflight {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}

		ctx.Next()
	}
}

func originAllowed(origin string, domains []string) bool {
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return cgnatPrefix.Contains(addr)
	}

	for _, domain := range domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
