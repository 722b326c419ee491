// Package extract pulls candidate policy links out of fetched pages.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/policyscout/discovery-cli/internal/model"
)

// Links parses html and returns every navigational anchor resolved against
// baseURL. Unparsable hrefs are dropped silently; mailto:, tel:,
// javascript:, fragment-only, and non-http(s) links are excluded. When the
// page itself looks like a legal hub, every link on it gets the legal_hub
// context; otherwise context comes from the anchor's nearest landmark.
func Links(html, baseURL string) ([]model.CandidateLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: parse base url %q", baseURL)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	hub := IsLegalHub(baseURL, title)

	var links []model.CandidateLink
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		resolved, ok := resolveHref(base, href)
		if !ok {
			return
		}

		text := strings.Join(strings.Fields(sel.Text()), " ")
		if text == "" {
			text = strings.TrimSpace(sel.AttrOr("aria-label", ""))
		}
		if text == "" {
			text = strings.TrimSpace(sel.AttrOr("title", ""))
		}

		ctx := model.ContextBody
		switch {
		case hub:
			ctx = model.ContextLegalHub
		case isUnder(sel, "footer, [role=contentinfo], #footer, .footer"):
			ctx = model.ContextFooter
		case isUnder(sel, "nav, [role=navigation], header"):
			ctx = model.ContextNav
		}

		links = append(links, model.CandidateLink{
			URL:     resolved,
			Text:    text,
			Context: ctx,
			Visible: isVisible(sel),
		})
	})

	return links, nil
}

// Text extracts readable text from html: scripts, styles, and page
// chrome removed, one line per source line with blank runs collapsed so
// line-anchored patterns (numbered sections) survive.
func Text(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", eris.Wrap(err, "extract: parse html")
	}
	doc.Find("script, style, noscript, template, iframe, svg").Remove()
	doc.Find("nav, header, footer").Remove()

	root := doc.Find("main")
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	if root.Length() == 0 {
		root = doc.Selection
	}
	return collapseLines(root.Text()), nil
}

func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

var legalHubSegments = map[string]bool{
	"legal":          true,
	"policies":       true,
	"privacy-center": true,
	"privacy-centre": true,
	"trust":          true,
	"compliance":     true,
}

// Word-bounded so "Paralegal Services" does not flag every page a hub.
var legalHubTitleRe = regexp.MustCompile(`(?i)\b(legal|policies|privacy cent(?:er|re)|trust center)\b`)

// IsLegalHub reports whether a page looks like a site's legal landing page,
// the kind that links out to every policy the site publishes.
func IsLegalHub(pageURL, title string) bool {
	if u, err := url.Parse(pageURL); err == nil {
		for _, seg := range strings.Split(strings.ToLower(u.Path), "/") {
			if legalHubSegments[seg] {
				return true
			}
		}
	}
	return legalHubTitleRe.MatchString(title)
}

// resolveHref resolves href against base and reports whether the link is
// navigational. Fragments are stripped so the same section-anchored page
// dedupes to one candidate.
func resolveHref(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	lower := strings.ToLower(href)
	for _, scheme := range []string{"mailto:", "tel:", "javascript:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	resolved.Fragment = ""
	return resolved.String(), true
}

func isUnder(sel *goquery.Selection, selector string) bool {
	return sel.Closest(selector).Length() > 0
}

// isVisible checks the anchor and its ancestors for hiding attributes:
// hidden, aria-hidden="true", or an inline display:none.
func isVisible(sel *goquery.Selection) bool {
	if hiddenNode(sel) {
		return false
	}
	hidden := false
	sel.Parents().EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if hiddenNode(p) {
			hidden = true
			return false
		}
		return true
	})
	return !hidden
}

func hiddenNode(sel *goquery.Selection) bool {
	if _, ok := sel.Attr("hidden"); ok {
		return true
	}
	if strings.EqualFold(sel.AttrOr("aria-hidden", ""), "true") {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(sel.AttrOr("style", "")), " ", "")
	return strings.Contains(style, "display:none")
}
