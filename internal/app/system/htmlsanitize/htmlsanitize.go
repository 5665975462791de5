// Package htmlsanitize strips markup from client-supplied strings
// before they are placed into HTML email templates. Usernames, branch
// names and error messages all originate from tracking clients, so they
// are treated as hostile.
package htmlsanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared strict policy, creating it on first use.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Sanitize removes all HTML elements and attributes from s, leaving
// only the text content.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(getPolicy().Sanitize(s))
}
