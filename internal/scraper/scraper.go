package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"

	"bleemsworker/helpers"
	"bleemsworker/logger"
	"bleemsworker/pkg/errors"
)

const detailCacheSize = 4096

// Scraper runs the extraction pipeline for the Bleems catalog: shop listing,
// shop pages, product detail pages and the review protocol.
type Scraper struct {
	fetcher  *helpers.Fetcher
	baseURL  string
	country  string
	delay    time.Duration
	timeout  time.Duration
	retries  int
	pageSize int
	metrics  *Metrics

	// product detail records already parsed this run; the same product can be
	// listed by more than one shop, and each shop re-emits it under its own
	// name without refetching the page
	detailCache *lru.Cache[string, ProductRecord]
}

var firstNumberPattern = regexp.MustCompile(`\d+`)

// New creates a scraper.
func New(fetcher *helpers.Fetcher, baseURL, country string, delay, timeout time.Duration, retries, pageSize int, metrics *Metrics) *Scraper {
	detailCache, _ := lru.New[string, ProductRecord](detailCacheSize)
	return &Scraper{
		fetcher:     fetcher,
		baseURL:     baseURL,
		country:     country,
		delay:       delay,
		timeout:     timeout,
		retries:     retries,
		pageSize:    pageSize,
		metrics:     metrics,
		detailCache: detailCache,
	}
}

// FetchShopList retrieves and parses the A-Z shop listing. Failure here is
// fatal to the run; there is no input without it.
func (s *Scraper) FetchShopList(ctx context.Context) ([]ShopRecord, error) {
	url := fmt.Sprintf("%s/%s/shops", s.baseURL, s.country)
	logger.Info("Fetching shop list from %s", url)

	start := time.Now()
	body, err := s.fetcher.FetchPage(ctx, url, "shop_listing")
	s.metrics.IncRequest("shop_listing")
	s.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		s.metrics.IncError(errors.TypeLabel(err))
		return nil, err
	}

	shops, err := ExtractShops(body, s.baseURL)
	if err != nil {
		s.metrics.IncError(errors.TypeLabel(err))
		return nil, err
	}

	s.metrics.AddRecords("shop", len(shops))
	return shops, nil
}

// ScrapeShop fetches one shop's page, refreshes its rating from the page
// (listing values are provisional), and extracts its products and reviews.
// The shop record is enriched in place; a fetch failure is returned so the
// caller can skip the shop without aborting the run.
func (s *Scraper) ScrapeShop(ctx context.Context, shop *ShopRecord) ([]ProductRecord, []ReviewRecord, error) {
	log := logger.ForShop(shop.Name)
	url := fmt.Sprintf("%s/%s/shop/%s", s.baseURL, s.country, shop.Slug)

	start := time.Now()
	body, err := s.fetcher.FetchPage(ctx, url, "shop_"+shop.Slug)
	s.metrics.IncRequest("shop_page")
	s.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		s.metrics.IncError(errors.TypeLabel(err))
		return nil, nil, err
	}

	html := string(body)
	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(html))
	if docErr == nil {
		s.enrichShopRating(doc, shop)
	}

	items := s.fetchShopProducts(ctx, html, doc, shop, log)
	s.metrics.AddRecords("product", len(items))

	// Inline reviews first; the AJAX protocol only when the page had none
	reviews := ExtractReviews(html, shop)
	log.Debug().Int("inline_reviews", len(reviews)).Msg("Inline review extraction done")
	if len(reviews) == 0 {
		reviews = s.fetchReviewsViaSession(ctx, shop, log)
	}
	s.metrics.AddRecords("review", len(reviews))
	if len(reviews) == 0 {
		log.Warn().Msg("No reviews found")
	}

	today := time.Now().UTC().Format("2006-01-02")
	shop.ScrapedDate = today
	for i := range reviews {
		reviews[i].ScrapedDate = today
	}

	return items, reviews, nil
}

// enrichShopRating refreshes rating and ratings count from the shop's own
// page, overriding the provisional listing values.
func (s *Scraper) enrichShopRating(doc *goquery.Document, shop *ShopRecord) {
	ratingSpan := doc.Find("span.spn-item-ratings").First()
	if ratingSpan.Length() == 0 {
		return
	}

	if style, ok := ratingSpan.Find(".rating-on").First().Attr("style"); ok {
		if stars := WidthToStars(style); stars != nil {
			shop.Rating = stars
		}
	}

	countText := ratingSpan.Find(".fw-bold").First().Text()
	if m := firstNumberPattern.FindString(countText); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			shop.RatingsCount = n
		}
	}
}

// fetchShopProducts visits each product detail page linked from the shop page
// and extracts its trackJson record, falling back to a minimal record from
// the listing container when the detail page fails or carries no block.
func (s *Scraper) fetchShopProducts(ctx context.Context, html string, doc *goquery.Document, shop *ShopRecord, log *logger.Logger) []ProductRecord {
	if doc == nil {
		// Document failed to parse; the bulk tiers still work on raw markup
		return ExtractProducts(html, shop)
	}

	targets := CollectProductTargets(doc)
	if len(targets) == 0 {
		return ExtractProducts(html, shop)
	}
	log.Info().Int("count", len(targets)).Msg("Fetching product pages")

	var items []ProductRecord
	for _, target := range targets {
		productURL := fmt.Sprintf("%s/%s/%s", s.baseURL, s.country, target)

		if cached, ok := s.detailCache.Get(productURL); ok {
			items = append(items, rebindProduct(cached, shop))
			continue
		}

		select {
		case <-ctx.Done():
			return items
		case <-time.After(s.delay):
		}

		rec := s.fetchProductDetail(ctx, productURL, target, doc, shop, log)
		items = append(items, rec)
	}

	return items
}

// rebindProduct re-homes a cached detail record under the current shop. The
// descriptive fields come from the product page and are shop-independent.
func rebindProduct(rec ProductRecord, shop *ShopRecord) ProductRecord {
	rec.ShopName = shop.Name
	rec.ShopType = shop.Type
	return rec
}

func (s *Scraper) fetchProductDetail(ctx context.Context, productURL, target string, doc *goquery.Document, shop *ShopRecord, log *logger.Logger) ProductRecord {
	start := time.Now()
	body, err := s.fetcher.FetchPage(ctx, productURL, "")
	s.metrics.IncRequest("product_page")
	s.metrics.ObserveDuration(time.Since(start))

	if err == nil {
		rec, parseErr := ExtractProductDetail(string(body), shop)
		if parseErr == nil {
			if rec.ProductURL == "" {
				rec.ProductURL = productURL
			}
			s.detailCache.Add(productURL, *rec)
			return *rec
		}
		s.metrics.IncError(errors.TypeLabel(parseErr))
		log.Debug().Err(parseErr).Str("url", productURL).Msg("Product detail unparseable, using listing fallback")
	} else {
		s.metrics.IncError(errors.TypeLabel(err))
		log.Debug().Err(err).Str("url", productURL).Msg("Product fetch failed, using listing fallback")
	}

	return MinimalProduct(doc, target, shop, productURL)
}

// fetchReviewsViaSession runs the paginated AJAX protocol with an isolated
// session. A missing token means reviews are unavailable for this shop; the
// run continues.
func (s *Scraper) fetchReviewsViaSession(ctx context.Context, shop *ShopRecord, log *logger.Logger) []ReviewRecord {
	session := NewReviewSession(s.baseURL, s.country, s.pageSize, s.timeout, s.retries, s.delay, s.metrics, logger.ForSession(shop.Name))

	reviews, err := session.FetchAll(ctx, shop)
	if err != nil {
		s.metrics.IncError(errors.TypeLabel(err))
		log.Warn().Err(err).Msg("Review session ended without data")
		return reviews
	}

	log.Info().Int("count", len(reviews)).Msg("Reviews fetched via AJAX")
	return reviews
}
