package crawler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/bookshelf-crawler/internal/catalog"
	"github.com/JakeFAU/bookshelf-crawler/internal/extract"
	"github.com/JakeFAU/bookshelf-crawler/internal/id/uuid"
	"github.com/JakeFAU/bookshelf-crawler/internal/progress"
	"github.com/JakeFAU/bookshelf-crawler/internal/storage/memory"
)

func TestDriverVisitsEveryPageThenStops(t *testing.T) {
	t.Parallel()

	site := threePageSite(0)
	h := newHarness(Config{DetectCycles: true, MaxPages: 10}, site, nil)

	res, err := h.driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{pageURL(1), pageURL(2), pageURL(3)}, site.Visits())
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, 45, res.Records)
	assert.Equal(t, 45, h.store.Len())
	assert.NotEmpty(t, res.RunID)
	assert.True(t, res.FinishedAt.After(res.StartedAt))

	assert.Equal(t, []progress.Stage{
		progress.StageRunStart,
		progress.StagePageDone,
		progress.StagePageDone,
		progress.StagePageDone,
		progress.StageRunDone,
	}, h.events.Stages())
}

func TestDriverIsIdempotent(t *testing.T) {
	t.Parallel()

	site := threePageSite(0)
	h := newHarness(Config{DetectCycles: true}, site, nil)
	ctx := context.Background()

	first, err := h.driver.Run(ctx)
	require.NoError(t, err)
	second, err := h.driver.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.Records, second.Records)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, 45, h.store.Len(), "no duplicate detail urls")
}

func TestDriverUpdatesChangedRecordInPlace(t *testing.T) {
	t.Parallel()

	site := threePageSite(0)
	h := newHarness(Config{}, site, nil)
	ctx := context.Background()

	_, err := h.driver.Run(ctx)
	require.NoError(t, err)
	before := lookup(t, h, "http://books.test/catalogue/book-1/index.html")

	site.pages[pageURL(1)] = listing(1, 20, "page-2.html", 5)
	_, err = h.driver.Run(ctx)
	require.NoError(t, err)
	after := lookup(t, h, "http://books.test/catalogue/book-1/index.html")

	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
	assert.InDelta(t, 1.0, *before.Price, 1e-9)
	assert.InDelta(t, 6.0, *after.Price, 1e-9)
	assert.Equal(t, 45, h.store.Len())
}

func TestDriverFetchFailureKeepsEarlierWrites(t *testing.T) {
	t.Parallel()

	site := threePageSite(0)
	site.fail[pageURL(2)] = errors.New("connection reset")
	h := newHarness(Config{}, site, nil)

	res, err := h.driver.Run(context.Background())
	require.Error(t, err)

	var ce *catalog.CrawlError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, string(StateFetching), ce.Stage)
	assert.Equal(t, pageURL(2), ce.PageURL)
	assert.Equal(t, 2, ce.Page)

	var fe *catalog.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 500, fe.StatusCode)

	assert.Equal(t, 20, h.store.Len(), "page 1 stays persisted")
	assert.Equal(t, 20, res.Records)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, []string{pageURL(1), pageURL(2)}, site.Visits())

	stages := h.events.Stages()
	assert.Equal(t, progress.StageRunError, stages[len(stages)-1])
}

func TestDriverDetectsCycles(t *testing.T) {
	t.Parallel()

	site := newFakeSite()
	site.pages[pageURL(1)] = listing(1, 2, "page-2.html", 0)
	site.pages[pageURL(2)] = listing(2, 2, "page-1.html", 0)
	h := newHarness(Config{DetectCycles: true}, site, nil)

	_, err := h.driver.Run(context.Background())
	require.ErrorIs(t, err, catalog.ErrCycleDetected)

	var ce *catalog.CrawlError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, string(StateExtracting), ce.Stage)
	assert.Equal(t, pageURL(2), ce.PageURL)
	assert.Len(t, site.Visits(), 2)
}

func TestDriverSelfLinkIsACycle(t *testing.T) {
	t.Parallel()

	site := newFakeSite()
	site.pages[pageURL(1)] = listing(1, 1, "page-1.html", 0)
	h := newHarness(Config{DetectCycles: true}, site, nil)

	_, err := h.driver.Run(context.Background())
	require.ErrorIs(t, err, catalog.ErrCycleDetected)
	assert.Zero(t, h.store.Len())
}

func TestDriverPageCap(t *testing.T) {
	t.Parallel()

	site := threePageSite(0)
	h := newHarness(Config{MaxPages: 2}, site, nil)

	_, err := h.driver.Run(context.Background())
	require.ErrorIs(t, err, catalog.ErrPageLimitExceeded)
	assert.Len(t, site.Visits(), 2)

	exact := newHarness(Config{MaxPages: 3}, threePageSite(0), nil)
	res, err := exact.driver.Run(context.Background())
	require.NoError(t, err, "a cap equal to the page count is not exceeded")
	assert.Equal(t, 3, res.Pages)
}

func TestDriverWriteFailureIsFatal(t *testing.T) {
	t.Parallel()

	store := &failingStore{failURL: "http://books.test/catalogue/book-105/index.html"}
	h := newHarness(Config{}, threePageSite(0), store)

	res, err := h.driver.Run(context.Background())
	require.Error(t, err)

	var ce *catalog.CrawlError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, string(StateWriting), ce.Stage)
	assert.Equal(t, pageURL(2), ce.PageURL)

	var we *catalog.WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, store.failURL, we.DetailURL)
	assert.Equal(t, 20, res.Records, "only page 1 was fully written")
}

func TestDriverHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := newHarness(Config{}, threePageSite(0), nil)

	_, err := h.driver.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.store.Len())
}

func lookup(t *testing.T, h *harness, detailURL string) catalog.BookRecord {
	t.Helper()
	res, err := h.store.ListBooks(context.Background(), catalog.Query{})
	require.NoError(t, err)
	for _, rec := range res.Records {
		if rec.DetailURL == detailURL {
			return rec
		}
	}
	t.Fatalf("record %s not stored", detailURL)
	return catalog.BookRecord{}
}

func TestDriverStoresEntryWithUnresolvableLink(t *testing.T) {
	t.Parallel()

	broken := `<li><article class="product_pod"><h3><a href="http://[::1/x" title="Broken">Broken</a></h3>` +
		`<p class="price_color">£9.99</p></article></li></ol>`
	site := newFakeSite()
	site.pages[pageURL(1)] = strings.Replace(listing(1, 3, "", 0), "</ol>", broken, 1)
	h := newHarness(Config{DetectCycles: true}, site, nil)

	res, err := h.driver.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Records)
	assert.Equal(t, 4, h.store.Len())

	rec := lookup(t, h, "http://[::1/x")
	assert.Equal(t, "Broken", rec.Title)
	lookup(t, h, "http://books.test/catalogue/book-1/index.html")
}

type fixedRunIDs struct{ id string }

func (f fixedRunIDs) NewID() (string, error) { return f.id, nil }

func TestDriverRejectsNonUUIDRunID(t *testing.T) {
	t.Parallel()

	site := threePageSite(0)
	events := &recordingEmitter{}
	store := memory.NewBookStore(newStepClock(), uuid.New())
	d := NewDriver(Config{RootURL: siteRoot}, site, extract.New(extract.Selectors{}),
		NewWriter(store, DefaultBatchSize, nil), newStepClock(), fixedRunIDs{id: "run-1"}, events, nil)

	_, err := d.Run(context.Background())
	require.ErrorContains(t, err, `run id "run-1" is not a UUID`)
	assert.Empty(t, site.Visits())
	assert.Empty(t, events.Stages())
}
