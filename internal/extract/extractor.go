// Package extract turns a catalog listing page into typed book records.
package extract

import (
	"strings"

	"github.com/JakeFAU/bookshelf-crawler/internal/catalog"
	"github.com/JakeFAU/bookshelf-crawler/internal/parse"
)

// Selectors locate the pieces of a listing page.
type Selectors struct {
	Entry        string
	Title        string
	Price        string
	Rating       string
	Availability string
	Image        string
	Next         string
}

// DefaultSelectors match the books.toscrape.com listing markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Entry:        "article.product_pod",
		Title:        "h3 a",
		Price:        ".price_color",
		Rating:       ".star-rating",
		Availability: ".availability",
		Image:        "img",
		Next:         "li.next a",
	}
}

// Extractor implements catalog.Extractor over HTML listing pages.
type Extractor struct {
	sel Selectors
}

var _ catalog.Extractor = (*Extractor)(nil)

// New returns an Extractor. Zero-valued selector fields fall back to defaults.
func New(sel Selectors) *Extractor {
	def := DefaultSelectors()
	fill := func(v *string, d string) {
		if strings.TrimSpace(*v) == "" {
			*v = d
		}
	}
	fill(&sel.Entry, def.Entry)
	fill(&sel.Title, def.Title)
	fill(&sel.Price, def.Price)
	fill(&sel.Rating, def.Rating)
	fill(&sel.Availability, def.Availability)
	fill(&sel.Image, def.Image)
	fill(&sel.Next, def.Next)
	return &Extractor{sel: sel}
}

// Extract parses body and returns the page's records in document order.
// Entries without a title or detail link are counted in Page.Skipped.
func (e *Extractor) Extract(pageURL string, body []byte) (catalog.Page, error) {
	root, err := Parse(body)
	if err != nil {
		return catalog.Page{}, err
	}
	page := catalog.Page{URL: pageURL}
	for _, entry := range root.All(e.sel.Entry) {
		rec, ok := e.record(pageURL, entry)
		if !ok {
			page.Skipped++
			continue
		}
		page.Records = append(page.Records, rec)
	}
	if next := root.First(e.sel.Next); next != nil {
		if href, ok := next.Attr("href"); ok && strings.TrimSpace(href) != "" {
			page.NextURL = parse.NormalizeURL(pageURL, strings.TrimSpace(href))
		}
	}
	return page, nil
}

func (e *Extractor) record(pageURL string, entry Node) (catalog.BookRecord, bool) {
	link := entry.First(e.sel.Title)
	if link == nil {
		return catalog.BookRecord{}, false
	}
	title, _ := link.Attr("title")
	title = parse.CollapseSpace(title)
	if title == "" {
		title = parse.CollapseSpace(link.Text())
	}
	href, _ := link.Attr("href")
	href = strings.TrimSpace(href)
	if title == "" || href == "" {
		return catalog.BookRecord{}, false
	}

	rec := catalog.BookRecord{
		Title:     title,
		DetailURL: parse.NormalizeURL(pageURL, href),
	}
	if n := entry.First(e.sel.Price); n != nil {
		rec.Price = parse.Price(n.Text())
	}
	if n := entry.First(e.sel.Rating); n != nil {
		class, _ := n.Attr("class")
		rec.Rating = parse.Rating(class)
	}
	if n := entry.First(e.sel.Availability); n != nil {
		av := parse.ParseAvailability(n.Text())
		rec.InStock = av.InStock
		rec.StockCount = av.StockCount
		rec.AvailabilityText = av.Raw
	}
	if n := entry.First(e.sel.Image); n != nil {
		if src, ok := n.Attr("src"); ok && strings.TrimSpace(src) != "" {
			img := parse.NormalizeURL(pageURL, strings.TrimSpace(src))
			rec.ImageURL = &img
		}
	}
	return rec, true
}
