package composer

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"newsflow/internal/core"
)

// HTMLOptions parameterize the e-mail rendering.
type HTMLOptions struct {
	Title           string
	FrontendBaseURL string // Enables the unsubscribe/manage footer links
	RecipientEmail  string
	Metrics         []core.AiMetric // Ordering and labels for the dimensions line
}

const htmlDigestTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif; margin: 0; padding: 0; background: #f5f6f8; color: #24292f; }
.container { max-width: 680px; margin: 0 auto; padding: 24px 16px; }
h1 { font-size: 22px; margin: 0 0 4px; }
.generated { color: #6e7781; font-size: 13px; margin-bottom: 20px; }
h2 { font-size: 17px; border-bottom: 2px solid #d0d7de; padding-bottom: 6px; margin: 28px 0 12px; }
.card { background: #ffffff; border: 1px solid #d0d7de; border-radius: 8px; padding: 14px 16px; margin-bottom: 12px; }
.card h3 { font-size: 15px; margin: 0 0 6px; }
.card h3 a { color: #0969da; text-decoration: none; }
.stars { color: #d4a017; font-size: 14px; }
.score { color: #6e7781; font-size: 13px; margin-left: 6px; }
.dims { color: #57606a; font-size: 12px; margin: 6px 0; }
.comment { font-size: 13px; margin: 6px 0; }
.summary { font-size: 13px; color: #424a53; margin: 6px 0 0; }
.meta { color: #6e7781; font-size: 12px; margin-top: 8px; }
.footer { color: #6e7781; font-size: 12px; margin-top: 28px; border-top: 1px solid #d0d7de; padding-top: 12px; }
.footer a { color: #0969da; }
</style>
</head>
<body>
<div class="container">
<h1>{{.Title}}</h1>
<div class="generated">{{.GeneratedAt}} · {{.Total}} 篇</div>
{{range .Sections}}
<h2>{{.Category}}</h2>
{{range .Items}}
<div class="card">
<h3><a href="{{.Link}}">{{.Title}}</a></h3>
<div><span class="stars">{{.Stars}}</span><span class="score">{{.Score}}</span></div>
<div class="dims">{{.Dimensions}}</div>
{{if .Comment}}<div class="comment">点评: {{.Comment}}</div>{{end}}
{{if .Summary}}<div class="summary">{{.Summary}}</div>{{end}}
<div class="meta">{{.Source}}{{if .Publish}} · {{.Publish}}{{end}}</div>
</div>
{{end}}
{{end}}
{{if .ShowFooter}}
<div class="footer">
<a href="{{.UnsubscribeURL}}">退订</a> · <a href="{{.ManageURL}}">管理订阅</a>
</div>
{{end}}
</div>
</body>
</html>`

type htmlItemView struct {
	Title      string
	Link       string
	Stars      string
	Score      string
	Dimensions string
	Comment    string
	Summary    string
	Source     string
	Publish    string
}

type htmlSectionView struct {
	Category string
	Items    []htmlItemView
}

type htmlDigestView struct {
	Title          string
	GeneratedAt    string
	Total          int
	Sections       []htmlSectionView
	ShowFooter     bool
	UnsubscribeURL string
	ManageURL      string
}

// RenderHTML renders the digest as a self-contained e-mail body.
func RenderHTML(digest *Digest, opts HTMLOptions) (string, error) {
	view := htmlDigestView{
		Title:       opts.Title,
		GeneratedAt: digest.GeneratedAt.Format("2006-01-02 15:04 MST"),
		Total:       digest.Total,
	}
	if view.Title == "" {
		view.Title = "新闻摘要"
	}

	for _, section := range digest.Sections {
		sv := htmlSectionView{Category: section.Category}
		for _, item := range section.Items {
			sv.Items = append(sv.Items, htmlItemView{
				Title:      item.Info.Title,
				Link:       item.Info.Link,
				Stars:      StarRow(item.Score),
				Score:      fmt.Sprintf("%.2f", item.Score),
				Dimensions: dimensionsLine(item, opts.Metrics),
				Comment:    item.Review.AiComment,
				Summary:    item.Review.AiSummary,
				Source:     item.Info.Source,
				Publish:    item.Info.Publish,
			})
		}
		view.Sections = append(view.Sections, sv)
	}

	if opts.FrontendBaseURL != "" && opts.RecipientEmail != "" {
		base := strings.TrimRight(opts.FrontendBaseURL, "/")
		email := url.QueryEscape(opts.RecipientEmail)
		view.ShowFooter = true
		view.UnsubscribeURL = fmt.Sprintf("%s/unsubscribe?email=%s", base, email)
		view.ManageURL = fmt.Sprintf("%s/subscriptions?email=%s", base, email)
	}

	tmpl, err := template.New("digest").Parse(htmlDigestTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse digest template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render digest: %w", err)
	}
	return buf.String(), nil
}

// dimensionsLine renders the per-metric scores in metric order, with the
// source bonus appended as a signed value when one applied.
func dimensionsLine(item Item, metrics []core.AiMetric) string {
	var parts []string
	for _, m := range metrics {
		score, ok := item.Scores[m.Key]
		if !ok {
			continue
		}
		label := m.Label
		if label == "" {
			label = m.Key
		}
		parts = append(parts, fmt.Sprintf("%s %d", label, score))
	}
	line := strings.Join(parts, " · ")
	if item.Bonus != 0 {
		line += fmt.Sprintf(" · 加成 %+.1f", item.Bonus)
	}
	return line
}

// RenderPlainText renders a plain-text alternative of the HTML digest.
func RenderPlainText(digest *Digest, title string) string {
	var b strings.Builder
	if title != "" {
		b.WriteString(title + "\n\n")
	}
	for _, section := range digest.Sections {
		fmt.Fprintf(&b, "== %s ==\n", section.Category)
		for i, item := range section.Items {
			fmt.Fprintf(&b, "%d. [%.2f] %s\n   %s\n", i+1, item.Score, item.Info.Title, item.Info.Link)
			if item.Review.AiSummary != "" {
				fmt.Fprintf(&b, "   %s\n", item.Review.AiSummary)
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
