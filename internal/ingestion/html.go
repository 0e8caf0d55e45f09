package ingestion

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/caserag/ragengine/pkg/logger"
)

var (
	htmlHintRe = regexp.MustCompile(`(?i)<!doctype html|<html[\s>]|<body[\s>]|<div[\s>]|<p[\s>]`)
	spaceRunRe = regexp.MustCompile(`[ \t]+`)
	blankRunRe = regexp.MustCompile(`\n{3,}`)
)

// cleanContent strips markup from uploads that look like HTML so the
// chunker sees prose, not tags. Paragraph breaks survive as blank lines.
// Anything that does not look like HTML passes through untouched.
func cleanContent(content string) string {
	if !looksLikeHTML(content) {
		return content
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		logger.Warn("Failed to parse HTML upload, keeping raw content")
		return content
	}

	doc.Find("script, style, noscript, head").Remove()

	var parts []string
	doc.Find("p, h1, h2, h3, h4, h5, h6, li, td, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	var text string
	if len(parts) > 0 {
		text = strings.Join(parts, "\n\n")
	} else {
		text = doc.Text()
	}

	text = spaceRunRe.ReplaceAllString(text, " ")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func looksLikeHTML(content string) bool {
	head := content
	if len(head) > 1024 {
		head = head[:1024]
	}
	return htmlHintRe.MatchString(head)
}
