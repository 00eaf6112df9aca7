// Package sanitize strips dangerous markup from text rendered into
// forge-facing surfaces — merge proposal bodies and their run-id footer —
// before the Publisher hands them to a forge client.
package sanitize

import (
	"fmt"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	proposalPolicy *bluemonday.Policy
	initOnce       sync.Once
)

func initPolicy() {
	initOnce.Do(func() {
		proposalPolicy = bluemonday.NewPolicy()
		proposalPolicy.AllowStandardURLs()
		proposalPolicy.AllowElements(
			"p", "br",
			"strong", "b", "em", "i",
			"ul", "ol", "li",
			"code", "pre", "blockquote",
		)
		proposalPolicy.AllowAttrs("href").OnElements("a")
		proposalPolicy.RequireNoFollowOnLinks(true)
	})
}

// ProposalBody sanitizes a merge proposal description rendered from a
// campaign template. Campaign templates are operator-authored but may
// interpolate candidate context pulled from upstream commit messages or
// build output, which is not trusted input.
func ProposalBody(s string) string {
	initPolicy()
	return proposalPolicy.Sanitize(s)
}

// runFooterTemplate is appended to every proposal body so the run that
// produced it can be read from the body itself. The rescan loop does not
// parse it; it finds a proposal's runs through the publish table.
const runFooterTemplate = "\n\n---\n_Generated by Janitor, run `%s`._"

// WithRunFooter appends a stable, sanitized footer identifying runID to an
// already-sanitized body.
func WithRunFooter(body, runID string) string {
	return body + fmt.Sprintf(runFooterTemplate, runID)
}
