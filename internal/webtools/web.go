// Package webtools implements the web.fetch and web.search tools: fetching
// a URL and rendering HTML as Markdown, and constructing a search-engine
// URL for the model to then fetch.
package webtools

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	fetchTimeout  = 20 * time.Second
	maxFetchBytes = 1_000_000
	userAgent     = "crabclaw/0.1"
)

func normalizeURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw, true
	}
	return "https://" + raw, true
}

// Fetch implements the web.fetch tool.
func Fetch(rawURL string) string {
	normalized, ok := normalizeURL(rawURL)
	if !ok {
		return "Error: empty URL"
	}

	client := &http.Client{
		Timeout: fetchTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	req, err := http.NewRequest(http.MethodGet, normalized, nil)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error: request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Sprintf("Error: HTTP %d", resp.StatusCode)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))

	limited := io.LimitReader(resp.Body, maxFetchBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return fmt.Sprintf("Error: reading response body: %v", err)
	}
	truncated := len(body) > maxFetchBytes
	if truncated {
		body = body[:maxFetchBytes]
	}

	text := string(body)
	var rendered string
	if strings.Contains(contentType, "text/html") {
		rendered = htmlToMarkdown(text)
	} else {
		rendered = text
	}

	if strings.TrimSpace(rendered) == "" {
		return "Error: empty response body"
	}
	if truncated {
		rendered += fmt.Sprintf("\n\n[truncated: response exceeded %d bytes]", maxFetchBytes)
	}
	return rendered
}

// Search implements the web.search tool: it returns a DuckDuckGo search
// URL rather than scraping results directly; the model is expected to
// web.fetch the URL of a specific result page.
func Search(query string) string {
	encoded := url.QueryEscape(query)
	return fmt.Sprintf("Search URL: https://duckduckgo.com/?q=%s\n\nTip: Use web.fetch to retrieve the content of specific result pages.", encoded)
}

var skipTags = map[string]bool{"script": true, "style": true, "nav": true, "footer": true, "header": true, "noscript": true}
var blockTags = map[string]bool{"p": true, "div": true, "section": true, "article": true}

// htmlToMarkdown renders HTML to a rough Markdown approximation using
// golang.org/x/net/html's tokenizer.
func htmlToMarkdown(raw string) string {
	z := html.NewTokenizer(strings.NewReader(raw))
	var b strings.Builder
	skipDepth := 0

	writeBreak := func() {
		s := b.String()
		if !strings.HasSuffix(s, "\n\n") {
			if strings.HasSuffix(s, "\n") {
				b.WriteString("\n")
			} else if s != "" {
				b.WriteString("\n\n")
			}
		}
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		tok := z.Token()
		name := strings.ToLower(tok.Data)

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			if skipTags[name] {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if skipDepth > 0 {
				continue
			}
			switch {
			case len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6':
				writeBreak()
				b.WriteString(strings.Repeat("#", int(name[1]-'0')) + " ")
			case blockTags[name]:
				writeBreak()
			case name == "br":
				b.WriteString("\n")
			case name == "li":
				writeBreak()
				b.WriteString("- ")
			case name == "strong" || name == "b":
				b.WriteString("**")
			case name == "em" || name == "i":
				b.WriteString("*")
			case name == "code":
				b.WriteString("`")
			case name == "pre":
				writeBreak()
				b.WriteString("```\n")
			case name == "hr":
				writeBreak()
				b.WriteString("---")
				writeBreak()
			}
		case html.EndTagToken:
			if skipTags[name] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if skipDepth > 0 {
				continue
			}
			switch {
			case len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6':
				writeBreak()
			case blockTags[name]:
				writeBreak()
			case name == "strong" || name == "b":
				b.WriteString("**")
			case name == "em" || name == "i":
				b.WriteString("*")
			case name == "code":
				b.WriteString("`")
			case name == "pre":
				b.WriteString("\n```")
				writeBreak()
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			b.WriteString(tok.Data)
		}
	}

	out := b.String()
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(out)
}
