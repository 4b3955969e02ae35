package composer

import (
	"fmt"
	"strings"
)

const chatTitleMaxRunes = 100

// RenderChatMarkdown renders the digest as a chat card body: one bold
// heading per category, numbered recommendation lines.
func RenderChatMarkdown(digest *Digest) string {
	var b strings.Builder
	for si, section := range digest.Sections {
		if si > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "**%s**\n", section.Category)
		for i, item := range section.Items {
			fmt.Fprintf(&b, "%d. (AI推荐:%s) %s ([%s](%s))\n",
				i+1,
				StarRow(item.Score),
				truncateRunes(item.Info.Title, chatTitleMaxRunes),
				item.Info.Source,
				item.Info.Link,
			)
		}
	}
	return b.String()
}

// RenderMinigame renders the alternate numbered-list digest with summary,
// comment and optional cover image per item.
func RenderMinigame(digest *Digest) string {
	var b strings.Builder
	n := 0
	for _, section := range digest.Sections {
		for _, item := range section.Items {
			n++
			fmt.Fprintf(&b, "%d. %s (AI推荐:%s)\n", n,
				truncateRunes(item.Info.Title, chatTitleMaxRunes), StarRow(item.Score))
			if item.Review.AiSummary != "" {
				fmt.Fprintf(&b, "   简介: %s\n", item.Review.AiSummary)
			}
			if item.Review.AiComment != "" {
				fmt.Fprintf(&b, "   点评: %s\n", item.Review.AiComment)
			}
			link := item.Info.StoreLink
			if link == "" {
				link = item.Info.Link
			}
			fmt.Fprintf(&b, "   链接: %s\n", link)
			if item.Info.ImgLink != "" {
				fmt.Fprintf(&b, "   封面: %s\n", item.Info.ImgLink)
			}
		}
	}
	return b.String()
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
