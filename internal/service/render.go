package service

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"

	"news_digest/internal/domain"
)

var markdown = goldmark.New()

var emailTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Helvetica, Arial, sans-serif; max-width: 640px; margin: 0 auto; color: #1a1a1a;">
<h1 style="border-bottom: 2px solid #1a1a1a; padding-bottom: 8px;">{{.Title}}</h1>
<p style="color: #666;">{{.Date}} &middot; {{.Meta}}</p>
{{.Body}}
</body>
</html>
`))

type emailData struct {
	Title string
	Date  string
	Meta  string
	Body  template.HTML
}

// renderHTML converts the digest's Markdown body to HTML and wraps it
// in the email layout.
func renderHTML(digest *domain.Digest) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(digest.Body), &body); err != nil {
		return "", fmt.Errorf("convert digest body: %w", err)
	}

	var out bytes.Buffer
	err := emailTemplate.Execute(&out, emailData{
		Title: digest.Title,
		Date:  digest.GeneratedAt.Format("January 2, 2006 15:04"),
		Meta:  digestMeta(digest),
		Body:  template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}

	return out.String(), nil
}

// renderText produces the plain-text alternative. The Markdown body
// is carried through unchanged.
func renderText(digest *domain.Digest) string {
	var b strings.Builder
	b.WriteString(digest.Title)
	b.WriteString("\n")
	b.WriteString(digest.GeneratedAt.Format("January 2, 2006 15:04"))
	b.WriteString(" - ")
	b.WriteString(digestMeta(digest))
	b.WriteString("\n\n")
	b.WriteString(digest.Body)
	return b.String()
}

func digestMeta(digest *domain.Digest) string {
	return fmt.Sprintf("%d %s from %d %s",
		digest.ArticleCount, pluralize(digest.ArticleCount, "article", "articles"),
		digest.SourceCount, pluralize(digest.SourceCount, "source", "sources"),
	)
}
