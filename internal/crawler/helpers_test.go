package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/bookshelf-crawler/internal/catalog"
	"github.com/JakeFAU/bookshelf-crawler/internal/extract"
	"github.com/JakeFAU/bookshelf-crawler/internal/id/uuid"
	"github.com/JakeFAU/bookshelf-crawler/internal/progress"
	"github.com/JakeFAU/bookshelf-crawler/internal/storage/memory"
)

const siteRoot = "http://books.test/catalogue/page-1.html"

// fakeSite serves listing pages from memory and counts fetches per URL.
type fakeSite struct {
	mu     sync.Mutex
	pages  map[string]string
	fail   map[string]error
	visits []string
}

func newFakeSite() *fakeSite {
	return &fakeSite{pages: map[string]string{}, fail: map[string]error{}}
}

func (f *fakeSite) Fetch(ctx context.Context, url string) (catalog.FetchResponse, error) {
	if err := ctx.Err(); err != nil {
		return catalog.FetchResponse{}, &catalog.FetchError{URL: url, Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visits = append(f.visits, url)
	if err, ok := f.fail[url]; ok {
		return catalog.FetchResponse{}, &catalog.FetchError{URL: url, StatusCode: 500, Err: err}
	}
	body, ok := f.pages[url]
	if !ok {
		return catalog.FetchResponse{}, &catalog.FetchError{URL: url, StatusCode: 404, Err: fmt.Errorf("not found")}
	}
	return catalog.FetchResponse{URL: url, StatusCode: 200, Body: []byte(body), Duration: time.Millisecond}, nil
}

func (f *fakeSite) Visits() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.visits...)
}

func pageURL(n int) string {
	return fmt.Sprintf("http://books.test/catalogue/page-%d.html", n)
}

// listing renders n product entries for page p. next is the relative next
// link, or empty for the last page. priceBump is added to every price.
func listing(p, n int, next string, priceBump float64) string {
	var b strings.Builder
	b.WriteString(`<html><body><ol class="row">`)
	for i := 1; i <= n; i++ {
		id := (p-1)*100 + i
		fmt.Fprintf(&b, `<li><article class="product_pod">`)
		fmt.Fprintf(&b, `<p class="star-rating Four"></p>`)
		fmt.Fprintf(&b, `<h3><a href="book-%d/index.html" title="Book %d">Book %d</a></h3>`, id, id, id)
		fmt.Fprintf(&b, `<p class="price_color">£%.2f</p>`, float64(id)+priceBump)
		fmt.Fprintf(&b, `<p class="instock availability">In stock (%d available)</p>`, id%20+1)
		fmt.Fprintf(&b, `</article></li>`)
	}
	b.WriteString(`</ol>`)
	if next != "" {
		fmt.Fprintf(&b, `<ul class="pager"><li class="next"><a href="%s">next</a></li></ul>`, next)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// threePageSite has 20, 20 and 5 entries.
func threePageSite(priceBump float64) *fakeSite {
	site := newFakeSite()
	site.pages[pageURL(1)] = listing(1, 20, "page-2.html", priceBump)
	site.pages[pageURL(2)] = listing(2, 20, "page-3.html", priceBump)
	site.pages[pageURL(3)] = listing(3, 5, "", priceBump)
	return site
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) Stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Stage, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Stage)
	}
	return out
}

type harness struct {
	store  *memory.BookStore
	events *recordingEmitter
	driver *Driver
}

func newHarness(cfg Config, fetcher catalog.Fetcher, store catalog.BookWriter) *harness {
	clock := newStepClock()
	ids := uuid.New()
	mem := memory.NewBookStore(clock, ids)
	if store == nil {
		store = mem
	}
	if cfg.RootURL == "" {
		cfg.RootURL = siteRoot
	}
	events := &recordingEmitter{}
	d := NewDriver(cfg, fetcher, extract.New(extract.Selectors{}), NewWriter(store, DefaultBatchSize, nil), clock, ids, events, nil)
	return &harness{store: mem, events: events, driver: d}
}
