package publish

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/janitord/janitor/internal/sanitize"
)

// ProposalTemplateData is the set of fields a campaign's title/body
// templates may interpolate.
type ProposalTemplateData struct {
	CodebaseName string
	CampaignName string
	Description  string
	RunID        string
}

// ProposalTemplate renders a merge proposal's title and body from a
// campaign's operator-authored templates, sanitizing the body and
// appending the stable run-id footer that identifies the producing run.
type ProposalTemplate struct{}

// NewProposalTemplate builds a ProposalTemplate. It carries no state today
// but is kept as a constructor so callers (internal/publish.New) don't
// depend on a package-level render function directly.
func NewProposalTemplate() *ProposalTemplate {
	return &ProposalTemplate{}
}

// Render parses and executes titleTmpl/bodyTmpl against data, sanitizes the
// resulting body, and appends the run-id footer.
func (t *ProposalTemplate) Render(titleTmpl, bodyTmpl string, data ProposalTemplateData) (title, body string, err error) {
	title, err = execTemplate("title", titleTmpl, data)
	if err != nil {
		return "", "", fmt.Errorf("publish: render proposal title: %w", err)
	}
	rawBody, err := execTemplate("body", bodyTmpl, data)
	if err != nil {
		return "", "", fmt.Errorf("publish: render proposal body: %w", err)
	}
	body = sanitize.WithRunFooter(sanitize.ProposalBody(rawBody), data.RunID)
	return title, body, nil
}

func execTemplate(name, tmpl string, data ProposalTemplateData) (string, error) {
	t, err := template.New(name).Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
