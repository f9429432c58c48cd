package adapter

import (
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Provider failures are classified once at this boundary and carried as goerr
// tags. Upstream logic checks tags and never inspects message text.
var (
	// TagQuota marks hard quota exhaustion / rate-limit rejection (429-class).
	// The embedding gateway falls back to the local provider on this tag.
	TagQuota = goerr.NewTag("provider_quota")

	// TagAuth marks a missing or rejected credential. Fatal for the call.
	TagAuth = goerr.NewTag("provider_auth")

	// TagNotFound marks an unknown model name. The gateway reacts by
	// discovering alternative models from the catalog.
	TagNotFound = goerr.NewTag("model_not_found")

	// TagTransient marks failures worth retrying (5xx, network).
	TagTransient = goerr.NewTag("provider_transient")
)

func IsQuota(err error) bool     { return goerr.HasTag(err, TagQuota) }
func IsAuth(err error) bool      { return goerr.HasTag(err, TagAuth) }
func IsNotFound(err error) bool  { return goerr.HasTag(err, TagNotFound) }
func IsTransient(err error) bool { return goerr.HasTag(err, TagTransient) }

// quotaMarkers are message signatures some provider stacks emit without a
// usable status code. Matched only here, inside the classifier.
var quotaMarkers = []string{
	"RESOURCE_EXHAUSTED",
	"InsufficientQuota",
	"insufficient_quota",
	"exceeded your current quota",
	"Quota exceeded",
	"rate-limits",
}

// wrapGemini wraps a raw genai error with msg and the tag matching its class.
func wrapGemini(err error, msg string, values ...goerr.Option) error {
	opts := append([]goerr.Option{}, values...)
	if opt, ok := classify(err); ok {
		opts = append(opts, opt)
	}
	return goerr.Wrap(err, msg, opts...)
}

func classify(err error) (goerr.Option, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return goerr.T(TagQuota), true
		case apiErr.Code == 401 || apiErr.Code == 403:
			return goerr.T(TagAuth), true
		case apiErr.Code == 404:
			return goerr.T(TagNotFound), true
		case apiErr.Code >= 500:
			return goerr.T(TagTransient), true
		}
		if apiErr.Status == "NOT_FOUND" {
			return goerr.T(TagNotFound), true
		}
	}

	for _, marker := range quotaMarkers {
		if strings.Contains(err.Error(), marker) {
			return goerr.T(TagQuota), true
		}
	}

	// Anything without an API status is assumed to be a network-level
	// failure, which is retryable.
	if !errors.As(err, &apiErr) {
		return goerr.T(TagTransient), true
	}
	return nil, false
}
