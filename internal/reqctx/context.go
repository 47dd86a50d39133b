// Package reqctx carries per-request values explicitly instead of riding
// process-wide ambient state. Every downstream call that needs a user agent
// override, a mixin flag, or the serving host takes a *RequestContext value.
package reqctx

// RequestContext is the explicit per-request carrier spec §9 calls for: no
// process-wide state holds per-request data, it is always passed in.
type RequestContext struct {
	// UserAgent overrides the Search Client's default UA when set.
	UserAgent string
	// Host is the host this gateway is being served from, used as the
	// origin of the blob: pseudo object URLs that replace data: images.
	Host string
	// WithImagesSummary attaches an images map to formatted pages.
	WithImagesSummary bool
	// WithLinksSummary attaches a links map to formatted pages.
	WithLinksSummary bool
	// WithGeneratedAlt forces img-generated-alt numbering even when the
	// source already carries usable alt text.
	WithGeneratedAlt bool
	// NoCache bypasses the Search Cache read path.
	NoCache bool
}

// New returns a RequestContext with no overrides set.
func New() *RequestContext {
	return &RequestContext{}
}
