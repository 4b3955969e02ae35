package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxDetailLength bounds the stored plain-text body.
const maxDetailLength = 20000

// FetchArticleDetail fetches an article page and extracts its readable plain
// text. Adapters without a custom detail strategy embed DefaultDetail, which
// delegates here.
func FetchArticleDetail(ctx context.Context, url string) (string, error) {
	body, err := FetchURL(ctx, url)
	if err != nil {
		return "", err
	}
	return ExtractReadableText(body)
}

// ExtractReadableText pulls the main article text out of an HTML document.
func ExtractReadableText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, header, footer, aside, iframe, noscript").Remove()

	// Prefer semantic article containers, fall back to the whole body.
	selectors := []string{
		"article",
		"main",
		`[role="main"]`,
		".post-content",
		".article-content",
		".entry-content",
		".content",
		"body",
	}
	var text string
	for _, sel := range selectors {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			text = node.Text()
			if len(strings.TrimSpace(text)) > 200 || sel == "body" {
				break
			}
		}
	}

	text = collapseWhitespace(text)
	if len(text) > maxDetailLength {
		text = text[:maxDetailLength]
	}
	return text, nil
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// DefaultDetail provides the shared readable-text detail strategy. Adapters
// embed it to satisfy DetailFetcher.
type DefaultDetail struct{}

func (DefaultDetail) FetchArticleDetail(ctx context.Context, url string) (string, error) {
	return FetchArticleDetail(ctx, url)
}
