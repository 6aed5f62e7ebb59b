package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bleemsworker/config"
	"bleemsworker/helpers"
	"bleemsworker/internal/scraper"
	"bleemsworker/services/publisher"
	"bleemsworker/services/storage"
	"bleemsworker/services/worker"
)

// newSiteServer builds a fake catalog site: listing, shop page, product detail
// page, the paginated review endpoint and image assets.
func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/kw/shops", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `
			<a class="brand-a-z-list-item" href="/kw/shop/flower-house">
				<img src="http://%s/assets/logo.png">
				<span class="brand-a-z-item-name">Flower House</span>
				<span class="brand-a-z-item-type">flowers</span>
			</a>`, r.Host)
		fmt.Fprint(w, `
			<a class="brand-a-z-list-item" href="/kw/shop/cake-corner">
				<span class="brand-a-z-item-name">Cake Corner</span>
				<span class="brand-a-z-item-type">cakes</span>
			</a>`)
	})

	mux.HandleFunc("/kw/shop/flower-house", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `
			<input name="__RequestVerificationToken" type="hidden" value="tok-integration" />
			<span class="spn-item-ratings">
				<span class="rating-on" style="width: 90%"></span>
				<span class="fw-bold">(12)</span>
			</span>
			<div class="dv-item-head" data-content-target="/product/rose-bouquet" data-content-name="Product_101">
				<img src="/assets/101.jpg">
			</div>`)
	})

	mux.HandleFunc("/kw/shop/cake-corner", func(w http.ResponseWriter, r *http.Request) {
		// No products, no token: reviews are unavailable but the run continues
		fmt.Fprint(w, `<html><body><h1>Cake Corner</h1></body></html>`)
	})

	mux.HandleFunc("/kw/product/rose-bouquet", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<script>var trackJson = {
			'content_id': '101',
			'product': decodeHTMLString('Rose Bouquet &#x1F490;'),
			'category': 'Flowers',
			'brand': 'Flower House',
			'product_price': 12.500,
			'currency': 'KWD',
			'product_image_url': 'http://%s/assets/101.jpg',
		};</script>`, r.Host)
	})

	mux.HandleFunc("/kw/ItemsList", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "LoadReviews", r.URL.Query().Get("handler"))
		require.Equal(t, "flower-house", r.URL.Query().Get("shopLink"))
		require.Equal(t, "tok-integration", r.Header.Get("RequestVerificationToken"))

		fragment := ""
		if r.URL.Query().Get("pageNo") == "1" {
			fragment = `<li class="li-reviews">
				<div class="dv-reviews-text">Stunning flowers</div>
				<div class="dv-reviews-name">Fatma L on 11/12/2025</div>
				<span class="rating-on" style="width: 100%"></span>
			</li>`
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"html": fragment, "canLoad": fragment != ""})
	})

	mux.HandleFunc("/assets/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50, 0x4E, 0x47})
	})

	return httptest.NewServer(mux)
}

func TestEndToEndScrape(t *testing.T) {
	server := newSiteServer(t)
	defer server.Close()

	outDir := t.TempDir()
	cfg := &config.Config{
		BaseURL:        server.URL,
		Country:        "kw",
		RequestDelay:   time.Millisecond,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     1,
		ReviewPageSize: 20,
		ShopWorkers:    2,
		S3Prefix:       "bleems-data",
		LocalOutputDir: outDir,
		UploadImages:   true,
	}

	fetcher := helpers.NewFetcher(cfg.RequestTimeout, cfg.MaxRetries, nil, time.Minute)
	s := scraper.New(fetcher, cfg.BaseURL, cfg.Country, cfg.RequestDelay, cfg.RequestTimeout,
		cfg.MaxRetries, cfg.ReviewPageSize, scraper.NewMetrics())
	w := worker.NewWorker(s, storage.NewLocalStore(outDir), publisher.Noop{}, fetcher, cfg)

	require.NoError(t, w.Run(context.Background(), ""))

	now := time.Now().UTC()
	datePart := fmt.Sprintf("year=%s/month=%s/day=%s", now.Format("2006"), now.Format("01"), now.Format("02"))

	readCSV := func(shopType, file string) string {
		path := filepath.Join(outDir, "bleems-data", datePart, shopType, file)
		body, err := os.ReadFile(path)
		require.NoError(t, err, path)
		return string(body)
	}

	shopsCSV := readCSV("Flowers", "shops.csv")
	assert.Contains(t, shopsCSV, "Flower House")
	// Rating enriched from the shop page: 90% width is 4.5 stars over 12 ratings
	assert.Contains(t, shopsCSV, "4.5")
	assert.Contains(t, shopsCSV, "12")

	itemsCSV := readCSV("Flowers", "items.csv")
	assert.Contains(t, itemsCSV, "101")
	assert.Contains(t, itemsCSV, "Rose Bouquet 💐")
	assert.Contains(t, itemsCSV, "12.5")

	reviewsCSV := readCSV("Flowers", "reviews.csv")
	assert.Contains(t, reviewsCSV, "Fatma L")
	assert.Contains(t, reviewsCSV, "11/12/2025")
	assert.Contains(t, reviewsCSV, "Stunning flowers")

	// The token-less shop still lands in its partition, reviews omitted
	cakesCSV := readCSV("Cakes", "shops.csv")
	assert.Contains(t, cakesCSV, "Cake Corner")
	_, err := os.Stat(filepath.Join(outDir, "bleems-data", datePart, "Cakes", "reviews.csv"))
	assert.True(t, os.IsNotExist(err))

	// Images mirrored under the partition
	logo := filepath.Join(outDir, "bleems-data", datePart, "Flowers", "images", "Flower_House", "logo", "logo.png")
	_, err = os.Stat(logo)
	assert.NoError(t, err, logo)
	productImage := filepath.Join(outDir, "bleems-data", datePart, "Flowers", "images", "Flower_House", "products", "101.jpg")
	_, err = os.Stat(productImage)
	assert.NoError(t, err, productImage)
}
