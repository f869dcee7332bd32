package pipeline

import (
	"bytes"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/pacmancrawl/pacman"
)

// parsedPage is the result of walking one HTML document: the outlinks
// found on it (tagged internal/external relative to baseURL), and the
// <meta name="robots"> directives, if any.
type parsedPage struct {
	Links        []pacman.HTMLLink
	MetaNoIndex  bool
	MetaNoFollow bool
}

// parseHTML walks body's anchor and meta tags, the same tokenizer-loop
// shape as the teacher's link extraction, generalized to also classify
// each link as internal or external via publicsuffix-backed registrable
// domain comparison.
func parseHTML(body []byte, base *pacman.URL) (*parsedPage, error) {
	utf8Reader, err := charset.NewReader(bytes.NewReader(body), "text/html")
	if err != nil {
		return nil, err
	}
	tokenizer := html.NewTokenizer(utf8Reader)

	result := &parsedPage{}

	for {
		tokenType := tokenizer.Next()
		switch tokenType {
		case html.ErrorToken:
			return result, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttrs := tokenizer.TagName()
			if !hasAttrs {
				continue
			}
			switch string(name) {
			case "a":
				if !result.MetaNoFollow {
					addAnchorLink(tokenizer, result, base)
				}
			case "meta":
				applyMetaRobots(tokenizer, result)
			}
		}
	}
}

func addAnchorLink(tokenizer *html.Tokenizer, result *parsedPage, base *pacman.URL) {
	var href, text string
	for {
		key, val, more := tokenizer.TagAttr()
		if string(key) == "href" {
			href = string(val)
		}
		if !more {
			break
		}
	}
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "#") {
		return
	}

	u, err := pacman.ParseURL(href)
	if err != nil {
		return
	}
	u.MakeAbsolute(base)
	u.Normalize()

	result.Links = append(result.Links, pacman.HTMLLink{
		Href:       u.String(),
		AnchorText: text,
		Internal:   u.SameRegistrableDomain(base),
	})
}

func applyMetaRobots(tokenizer *html.Tokenizer, result *parsedPage) {
	var name, content string
	for {
		key, val, more := tokenizer.TagAttr()
		switch string(key) {
		case "name":
			name = strings.ToLower(string(val))
		case "content":
			content = strings.ToLower(string(val))
		}
		if !more {
			break
		}
	}
	if name != "robots" {
		return
	}
	for _, directive := range strings.Split(content, ",") {
		switch strings.TrimSpace(directive) {
		case "noindex":
			result.MetaNoIndex = true
		case "nofollow":
			result.MetaNoFollow = true
		}
	}
}

// normalizeText extracts readable body text from an HTML document, using
// go-readability's boilerplate-stripping extraction rather than a second
// hand-rolled tokenizer walk: link parsing and prose extraction are
// different jobs, and readability is built exactly for the latter.
func normalizeText(body []byte, pageURL *pacman.URL) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL.URL)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(article.TextContent), nil
}
