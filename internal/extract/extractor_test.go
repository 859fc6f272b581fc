package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<!DOCTYPE html>
<html><body>
<section>
<ol class="row">
  <li class="col-xs-6">
    <article class="product_pod">
      <div class="image_container">
        <a href="a-light-in-the-attic_1000/index.html"><img src="../media/cache/2c/da/attic.jpg" alt="A Light in the Attic"></a>
      </div>
      <p class="star-rating Three"><i class="icon-star"></i></p>
      <h3><a href="a-light-in-the-attic_1000/index.html" title="A Light in the Attic">A Light in the ...</a></h3>
      <div class="product_price">
        <p class="price_color">£51.77</p>
        <p class="instock availability">
          <i class="icon-ok"></i>
          In stock (22 available)
        </p>
      </div>
    </article>
  </li>
  <li class="col-xs-6">
    <article class="product_pod">
      <p class="star-rating">no word</p>
      <h3><a href="untitled_7/index.html">  Short   Title </a></h3>
      <p class="price_color">free</p>
      <p class="availability">Out of stock</p>
    </article>
  </li>
  <li class="col-xs-6">
    <article class="product_pod">
      <h3><a title="No Link"></a></h3>
    </article>
  </li>
  <li class="col-xs-6">
    <article class="product_pod">
      <p class="price_color">£1.00</p>
    </article>
  </li>
</ol>
<ul class="pager"><li class="next"><a href="page-3.html">next</a></li></ul>
</section>
</body></html>`

func TestExtract_ListingPage(t *testing.T) {
	t.Parallel()

	page, err := New(Selectors{}).Extract("https://books.toscrape.com/catalogue/page-2.html", []byte(listingPage))
	require.NoError(t, err)

	assert.Equal(t, "https://books.toscrape.com/catalogue/page-3.html", page.NextURL)
	assert.Equal(t, 2, page.Skipped)
	require.Len(t, page.Records, 2)

	first := page.Records[0]
	assert.Equal(t, "A Light in the Attic", first.Title)
	assert.Equal(t, "https://books.toscrape.com/catalogue/a-light-in-the-attic_1000/index.html", first.DetailURL)
	require.NotNil(t, first.Price)
	assert.InDelta(t, 51.77, *first.Price, 1e-9)
	require.NotNil(t, first.Rating)
	assert.Equal(t, 3, *first.Rating)
	assert.True(t, first.InStock)
	assert.Equal(t, 22, first.StockCount)
	assert.Equal(t, "In stock (22 available)", first.AvailabilityText)
	require.NotNil(t, first.ImageURL)
	assert.Equal(t, "https://books.toscrape.com/media/cache/2c/da/attic.jpg", *first.ImageURL)

	second := page.Records[1]
	assert.Equal(t, "Short Title", second.Title)
	assert.Equal(t, "https://books.toscrape.com/catalogue/untitled_7/index.html", second.DetailURL)
	assert.Nil(t, second.Price)
	assert.Nil(t, second.Rating)
	assert.False(t, second.InStock)
	assert.Zero(t, second.StockCount)
	assert.Nil(t, second.ImageURL)
}

func TestExtract_LastPageHasNoNext(t *testing.T) {
	t.Parallel()

	body := `<html><body><article class="product_pod"><h3><a href="x/index.html" title="X"></a></h3></article>
<ul class="pager"><li class="previous"><a href="page-49.html">previous</a></li></ul></body></html>`
	page, err := New(Selectors{}).Extract("https://site/catalogue/page-50.html", []byte(body))
	require.NoError(t, err)
	assert.Empty(t, page.NextURL)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "https://site/catalogue/x/index.html", page.Records[0].DetailURL)
}

func TestExtract_EmptyAndMalformed(t *testing.T) {
	t.Parallel()

	page, err := New(Selectors{}).Extract("https://site/", nil)
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Empty(t, page.NextURL)

	page, err = New(Selectors{}).Extract("https://site/", []byte(`<article class="product_pod"><h3><a href="b.html" title="Unclosed">x`))
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "Unclosed", page.Records[0].Title)
}

func TestExtract_CustomSelectors(t *testing.T) {
	t.Parallel()

	body := `<div class="book"><a class="t" href="/b/1" title="One"></a><span class="cost">$3.50</span></div>
<a rel="next" href="/list?page=2">more</a>`
	e := New(Selectors{Entry: "div.book", Title: "a.t", Price: ".cost", Next: "a[rel=next]"})
	page, err := e.Extract("https://shop.example/list", []byte(body))
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "https://shop.example/b/1", page.Records[0].DetailURL)
	require.NotNil(t, page.Records[0].Price)
	assert.InDelta(t, 3.5, *page.Records[0].Price, 1e-9)
	assert.Equal(t, "https://shop.example/list?page=2", page.NextURL)
}

func TestNode_FirstMissing(t *testing.T) {
	t.Parallel()

	root, err := Parse([]byte(`<p>hi</p>`))
	require.NoError(t, err)
	assert.Nil(t, root.First("table"))
	assert.Empty(t, root.All("table"))
	p := root.First("p")
	require.NotNil(t, p)
	assert.Equal(t, "hi", p.Text())
	_, ok := p.Attr("class")
	assert.False(t, ok)
}
