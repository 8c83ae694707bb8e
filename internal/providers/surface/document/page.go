package document

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

// page is a parsed document. Scripts mutate it from the event loop while
// readers snapshot it from operation goroutines.
type page struct {
	mu  sync.RWMutex
	url string
	doc *goquery.Document
}

// element is the script-visible snapshot of a matched node
type element struct {
	TagName     string
	ID          string
	ClassName   string
	TextContent string
	InnerHTML   string
	OuterHTML   string
	Attributes  map[string]string
}

// xpathMatch is one XPath result
type xpathMatch struct {
	Text string
	HTML string
}

func newPage(address, markup string) (*page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &page{url: address, doc: doc}, nil
}

// URL returns the document address
func (p *page) URL() string {
	return p.url
}

// Title returns the trimmed text of the first title element
func (p *page) Title() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return strings.TrimSpace(p.doc.Find("title").First().Text())
}

// SetTitle replaces the title, creating the element when missing
func (p *page) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sel := p.doc.Find("title").First()
	if sel.Length() == 0 {
		head := p.doc.Find("head").First()
		if head.Length() == 0 {
			p.doc.Find("html").First().PrependHtml("<head></head>")
			head = p.doc.Find("head").First()
		}
		head.AppendHtml("<title></title>")
		sel = head.Find("title").First()
	}
	sel.SetText(title)
}

// HTML serializes the whole document
func (p *page) HTML() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doc.Html()
}

// InlineScripts returns the bodies of classic inline script elements in
// document order
func (p *page) InlineScripts() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []string
	p.doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		switch strings.ToLower(strings.TrimSpace(s.AttrOr("type", ""))) {
		case "", "text/javascript", "application/javascript":
		default:
			return
		}
		if body := s.Text(); strings.TrimSpace(body) != "" {
			out = append(out, body)
		}
	})
	return out
}

// Query returns snapshots of every node matching a CSS selector
func (p *page) Query(selector string, limit int) []element {
	p.mu.RLock()
	defer p.mu.RUnlock()

	sel := p.doc.Find(selector)
	if limit > 0 && sel.Length() > limit {
		sel = sel.Slice(0, limit)
	}
	out := make([]element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, snapshot(s))
	})
	return out
}

// XPath evaluates expr against the document tree
func (p *page) XPath(expr string) ([]xpathMatch, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.doc.Nodes) == 0 {
		return nil, nil
	}
	nodes, err := htmlquery.QueryAll(p.doc.Nodes[0], expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}
	out := make([]xpathMatch, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, xpathMatch{
			Text: strings.TrimSpace(htmlquery.InnerText(n)),
			HTML: htmlquery.OutputHTML(n, true),
		})
	}
	return out, nil
}

func snapshot(s *goquery.Selection) element {
	inner, _ := s.Html()
	outer, _ := goquery.OuterHtml(s)
	attrs := make(map[string]string)
	if len(s.Nodes) > 0 {
		for _, a := range s.Nodes[0].Attr {
			attrs[a.Key] = a.Val
		}
	}
	return element{
		TagName:     strings.ToUpper(goquery.NodeName(s)),
		ID:          s.AttrOr("id", ""),
		ClassName:   s.AttrOr("class", ""),
		TextContent: s.Text(),
		InnerHTML:   inner,
		OuterHTML:   outer,
		Attributes:  attrs,
	}
}
