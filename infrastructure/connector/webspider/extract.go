package webspider

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// skippedElements are subtrees excluded from text extraction.
var skippedElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"nav":      {},
	"header":   {},
	"footer":   {},
	"aside":    {},
	"form":     {},
	"iframe":   {},
	"svg":      {},
}

// blockElements force whitespace breaks between extracted text runs.
var blockElements = map[string]struct{}{
	"p": {}, "div": {}, "br": {}, "li": {}, "tr": {}, "td": {}, "th": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"article": {}, "section": {}, "blockquote": {}, "pre": {},
}

// extractHTML parses a page and returns its title, main text, and
// same-page-resolved outbound links. A parse failure yields empty output
// rather than an error: a broken page is simply not worth indexing.
func extractHTML(body, pageURL string) (title, text string, links []string) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", "", nil
	}
	base, _ := url.Parse(pageURL)

	var b strings.Builder
	seen := map[string]struct{}{}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skippedElements[n.Data]; skip {
				return
			}
			switch n.Data {
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "a":
				if link := resolveLink(base, attr(n, "href")); link != "" {
					if _, dup := seen[link]; !dup {
						seen[link] = struct{}{}
						links = append(links, link)
					}
				}
			}
			if _, block := blockElements[n.Data]; block {
				b.WriteByte('\n')
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	text = collapseWhitespace(b.String())
	if title == "" {
		title = firstWords(text, 10)
	}
	return title, text, links
}

// resolveLink makes an absolute canonical URL from an anchor href.
// Non-HTTP schemes and unparseable hrefs are dropped.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := ref
	if base != nil {
		resolved = base.ResolveReference(ref)
	}
	canonical, _, err := canonicalize(resolved.String())
	if err != nil {
		return ""
	}
	return canonical
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// collapseWhitespace joins text runs into single-space-separated lines.
func collapseWhitespace(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 {
			lines = append(lines, strings.Join(fields, " "))
		}
	}
	return strings.Join(lines, "\n")
}

func firstWords(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
