package qrlabel

import (
	"net/url"
	"strings"
)

// BuildPayload returns the locator encoded into the QR image. The batch
// code is always the final path segment, which is what ExtractCode and
// the traceability resolver rely on.
func BuildPayload(baseURL, batchCode string) string {
	return strings.TrimRight(baseURL, "/") + "/trace/" + url.PathEscape(batchCode)
}

// ExtractCode pulls the batch code out of a scanned locator. Anything
// that does not look like a trace locator is returned as-is, so a bare
// code resolves identically to the full URI.
func ExtractCode(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}

	candidate := input
	if u, err := url.Parse(input); err == nil && u.Path != "" {
		candidate = u.Path
	}

	segments := strings.Split(strings.Trim(candidate, "/"), "/")
	for i := len(segments) - 2; i >= 0; i-- {
		if segments[i] == "trace" && segments[i+1] != "" {
			if code, err := url.PathUnescape(segments[i+1]); err == nil {
				return code
			}
			return segments[i+1]
		}
	}
	return input
}
