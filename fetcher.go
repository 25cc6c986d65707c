package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// FetcherTimeout bounds each page fetch.
	FetcherTimeout = 30 * time.Second

	// MaxFetchedContent caps extracted text so a huge page cannot blow up
	// a prompt.
	MaxFetchedContent = 20000
)

// FetchURLContent downloads a page and extracts its readable text: the
// title plus heading, paragraph and list content, with scripts and styles
// dropped. Used to attach web context to a council question.
func FetchURLContent(ctx context.Context, url string) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("unsupported URL scheme: %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "LLM-Council-Fetcher/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := &http.Client{Timeout: FetcherTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("URL returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, nav, footer").Remove()

	var content strings.Builder
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		content.WriteString(title)
		content.WriteString("\n\n")
	}

	doc.Find("h1, h2, h3, h4, p, li, pre, blockquote").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		content.WriteString(text)
		content.WriteString("\n")
	})

	text := content.String()
	if text == "" {
		// Pages without the usual structure still get their body text.
		text = strings.TrimSpace(doc.Find("body").Text())
	}
	if len(text) > MaxFetchedContent {
		text = text[:MaxFetchedContent]
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no readable content found at %s", url)
	}
	return text, nil
}

// buildQuestionWithContext prepends fetched page content to the question so
// council models can ground their answers. Fetch failures are reported per
// URL inline rather than failing the message.
func buildQuestionWithContext(ctx context.Context, question string, urls []string) string {
	if len(urls) == 0 {
		return question
	}

	var b strings.Builder
	b.WriteString("Context from referenced pages:\n\n")
	for _, url := range urls {
		content, err := FetchURLContent(ctx, url)
		if err != nil {
			b.WriteString(fmt.Sprintf("[%s: unavailable: %v]\n\n", url, err))
			continue
		}
		b.WriteString(fmt.Sprintf("--- %s ---\n%s\n\n", url, content))
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
