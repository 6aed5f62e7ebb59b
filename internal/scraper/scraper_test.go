package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bleemsworker/helpers"
)

func TestScrapeShopSharedProductAcrossShops(t *testing.T) {
	var detailFetches int32

	mux := http.NewServeMux()
	shopPage := `
		<div class="dv-item-head" data-content-target="/product/shared-cake" data-content-name="Product_500">
			<img src="https://cdn.bleems.com/items/500.jpg">
		</div>`
	mux.HandleFunc("/kw/shop/shop-a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, shopPage)
	})
	mux.HandleFunc("/kw/shop/shop-b", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, shopPage)
	})
	mux.HandleFunc("/kw/product/shared-cake", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&detailFetches, 1)
		fmt.Fprint(w, `<script>var trackJson = {
			'content_id': '500',
			'product': 'Shared Cake',
			'product_price': 9.750,
			'currency': 'KWD',
		};</script>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := helpers.NewFetcher(5*time.Second, 1, nil, time.Minute)
	s := New(fetcher, server.URL, "kw", time.Millisecond, 5*time.Second, 1, 20, NewMetrics())

	shopA := &ShopRecord{Name: "Shop A", Type: "Cakes", Slug: "shop-a"}
	itemsA, _, err := s.ScrapeShop(context.Background(), shopA)
	require.NoError(t, err)
	require.Len(t, itemsA, 1)
	assert.Equal(t, "Shop A", itemsA[0].ShopName)
	assert.Equal(t, "500", itemsA[0].ProductID)

	// A second shop listing the same product still gets its own record, with
	// the detail page fetched only once for the whole run
	shopB := &ShopRecord{Name: "Shop B", Type: "Cakes", Slug: "shop-b"}
	itemsB, _, err := s.ScrapeShop(context.Background(), shopB)
	require.NoError(t, err)
	require.Len(t, itemsB, 1)
	assert.Equal(t, "Shop B", itemsB[0].ShopName)
	assert.Equal(t, "Cakes", itemsB[0].ShopType)
	assert.Equal(t, "500", itemsB[0].ProductID)
	assert.Equal(t, "Shared Cake", itemsB[0].ProductName)
	assert.Equal(t, "9.75", itemsB[0].Price)
	assert.Equal(t, int32(1), atomic.LoadInt32(&detailFetches))
}

func TestScrapeShopDetailFailureFallsBackToListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/kw/shop/shop-a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `
			<div class="dv-item-head" data-content-target="/product/ghost" data-content-name="Product_600">
				<img src="https://cdn.bleems.com/items/600.jpg">
			</div>`)
	})
	// No handler for the product page: the fetch 404s and the listing
	// container supplies the minimal record
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := helpers.NewFetcher(5*time.Second, 1, nil, time.Minute)
	s := New(fetcher, server.URL, "kw", time.Millisecond, 5*time.Second, 1, 20, NewMetrics())

	shop := &ShopRecord{Name: "Shop A", Type: "Cakes", Slug: "shop-a"}
	items, _, err := s.ScrapeShop(context.Background(), shop)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "600", items[0].ProductID)
	assert.Equal(t, "https://cdn.bleems.com/items/600.jpg", items[0].ImageURL)
	assert.Empty(t, items[0].ProductName)
}
