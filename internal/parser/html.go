// Package parser extracts followable links and form fields from HTML pages.
package parser

import (
	"bytes"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/PentesterFlow/ParamCrawl/internal/scope"
)

// HTMLParser parses HTML documents fetched from a single page URL.
type HTMLParser struct {
	baseURL string
}

// NewHTMLParser creates a new HTML parser that resolves references against baseURL.
func NewHTMLParser(baseURL string) (*HTMLParser, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, err
	}
	return &HTMLParser{baseURL: baseURL}, nil
}

// ParseResult contains the result of parsing an HTML document.
type ParseResult struct {
	// Links holds resolved anchor targets followed by form actions, de-duplicated in document order.
	Links []string
	Forms []FormInfo
	Title string
}

// FormInfo represents a parsed form.
type FormInfo struct {
	Action string
	Method string
	Inputs []string
}

// InputNames returns the distinct input names across all forms, sorted.
func (r *ParseResult) InputNames() []string {
	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, form := range r.Forms {
		for _, name := range form.Inputs {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// Parse parses an HTML document.
func (p *HTMLParser) Parse(body []byte) (*ParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Links: make([]string, 0),
		Forms: make([]FormInfo, 0),
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	seen := make(map[string]bool)

	add := func(ref string) {
		resolved := p.resolveURL(ref)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		result.Links = append(result.Links, resolved)
	}

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		add(href)
	})

	doc.Find("form").Each(func(i int, s *goquery.Selection) {
		form := p.parseForm(s)
		if action, exists := s.Attr("action"); exists {
			add(action)
		}
		result.Forms = append(result.Forms, form)
	})

	return result, nil
}

// parseForm parses a form element.
func (p *HTMLParser) parseForm(s *goquery.Selection) FormInfo {
	form := FormInfo{
		Method: "GET",
		Inputs: make([]string, 0),
	}

	if action, exists := s.Attr("action"); exists && strings.TrimSpace(action) != "" {
		form.Action = p.resolveURL(action)
	} else {
		form.Action = scope.NormalizeURL(p.baseURL)
	}

	if method, exists := s.Attr("method"); exists && method != "" {
		form.Method = strings.ToUpper(strings.TrimSpace(method))
	}

	s.Find("input[name], textarea[name], select[name]").Each(func(i int, input *goquery.Selection) {
		if typ, _ := input.Attr("type"); strings.EqualFold(typ, "submit") {
			return
		}
		if name, _ := input.Attr("name"); name != "" {
			form.Inputs = append(form.Inputs, name)
		}
	})

	return form
}

// resolveURL resolves href against the page URL, returning "" for references
// that cannot lead to an http(s) page.
func (p *HTMLParser) resolveURL(href string) string {
	if !scope.IsFollowableRef(href) {
		return ""
	}

	resolved, err := scope.ResolveURL(p.baseURL, href)
	if err != nil {
		return ""
	}

	if !strings.HasPrefix(resolved, "http://") && !strings.HasPrefix(resolved, "https://") {
		return ""
	}
	return resolved
}

// QueryParamNames returns the sorted parameter names in rawURL's query string.
func QueryParamNames(rawURL string) []string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	values := parsed.Query()
	names := make([]string, 0, len(values))
	for name := range values {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
