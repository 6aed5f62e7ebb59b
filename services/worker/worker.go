package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"bleemsworker/config"
	"bleemsworker/internal/scraper"
	"bleemsworker/logger"
	"bleemsworker/pkg/errors"
	"bleemsworker/services/publisher"
	"bleemsworker/services/storage"
)

// ShopSource is the scraping pipeline the worker drives, one call per shop.
type ShopSource interface {
	FetchShopList(ctx context.Context) ([]scraper.ShopRecord, error)
	ScrapeShop(ctx context.Context, shop *scraper.ShopRecord) ([]scraper.ProductRecord, []scraper.ReviewRecord, error)
}

// ImageFetcher downloads image payloads for pass-through upload.
type ImageFetcher interface {
	FetchBinary(ctx context.Context, url string) ([]byte, string, error)
}

// Worker iterates shop types and shops, hands records to storage, and
// announces finished partitions.
type Worker struct {
	source  ShopSource
	store   storage.Store
	pub     publisher.Publisher
	images  ImageFetcher
	cfg     *config.Config
	log     *logger.Logger
	runDate time.Time
}

// shopResult is one shop pipeline's output, accumulated per worker goroutine
// and merged by the collector.
type shopResult struct {
	shop    scraper.ShopRecord
	items   []scraper.ProductRecord
	reviews []scraper.ReviewRecord
}

// partitionEvent is the message published per uploaded partition.
type partitionEvent struct {
	ShopType string `json:"shop_type"`
	Date     string `json:"date"`
	Shops    int    `json:"shops"`
	Items    int    `json:"items"`
	Reviews  int    `json:"reviews"`
	Prefix   string `json:"prefix"`
}

// NewWorker creates a new worker
func NewWorker(source ShopSource, store storage.Store, pub publisher.Publisher, images ImageFetcher, cfg *config.Config) *Worker {
	return &Worker{
		source:  source,
		store:   store,
		pub:     pub,
		images:  images,
		cfg:     cfg,
		log:     logger.ForWorker(),
		runDate: time.Now().UTC(),
	}
}

// Categories fetches the shop listing and returns the distinct shop types,
// sorted. Used by the CLI to drive a per-category CI matrix.
func (w *Worker) Categories(ctx context.Context) ([]string, error) {
	shops, err := w.source.FetchShopList(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var types []string
	for _, s := range shops {
		t := s.Type
		if t == "" {
			t = "Other"
		}
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types, nil
}

// Run processes every shop type (or just the requested category). A shop or
// page failing never aborts the run; only an unfetchable shop listing does.
func (w *Worker) Run(ctx context.Context, category string) error {
	shops, err := w.source.FetchShopList(ctx)
	if err != nil {
		return err
	}

	byType := make(map[string][]scraper.ShopRecord)
	for _, s := range shops {
		t := s.Type
		if t == "" {
			t = "Other"
		}
		byType[t] = append(byType[t], s)
	}

	if category != "" {
		filtered, ok := byType[category]
		if !ok {
			return errors.NewConfiguration(fmt.Sprintf("category %q not found, available: %v", category, sortedKeys(byType)), nil)
		}
		byType = map[string][]scraper.ShopRecord{category: filtered}
	}

	for _, shopType := range sortedKeys(byType) {
		typeShops := byType[shopType]
		w.log.Info().Str("type", shopType).Int("shops", len(typeShops)).Msg("Processing shop type")

		results := w.processType(ctx, shopType, typeShops)
		if err := w.uploadPartition(ctx, shopType, results); err != nil {
			w.log.Error().Err(err).Str("type", shopType).Msg("Partition upload failed")
		}
	}

	if err := w.pub.TrimStreams(); err != nil {
		w.log.Warn().Err(err).Msg("Stream trimming failed")
	}

	return nil
}

// processType runs the per-shop pipelines through a bounded worker pool.
// Each goroutine accumulates into its own result values; the single collector
// loop serializes the merge.
func (w *Worker) processType(ctx context.Context, shopType string, shops []scraper.ShopRecord) []shopResult {
	partition := storage.PartitionPrefix(w.cfg.S3Prefix, w.runDate, shopType)

	jobs := make(chan scraper.ShopRecord)
	resultCh := make(chan shopResult)

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.ShopWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for shop := range jobs {
				resultCh <- w.processShop(ctx, shop, partition)

				select {
				case <-ctx.Done():
					return
				case <-time.After(w.cfg.RequestDelay):
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, shop := range shops {
			select {
			case <-ctx.Done():
				return
			case jobs <- shop:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var results []shopResult
	for r := range resultCh {
		results = append(results, r)
	}

	// Stable output regardless of pool scheduling
	sort.Slice(results, func(i, j int) bool {
		return results[i].shop.Name < results[j].shop.Name
	})
	return results
}

// processShop runs one shop's pipeline and uploads its images. A failed shop
// still contributes its listing record to the shops partition.
func (w *Worker) processShop(ctx context.Context, shop scraper.ShopRecord, partition string) shopResult {
	log := logger.ForShop(shop.Name)

	if shop.Slug == "" {
		log.Warn().Msg("No slug, skipped")
		return shopResult{shop: shop}
	}

	items, reviews, err := w.source.ScrapeShop(ctx, &shop)
	if err != nil {
		log.Error().Err(err).Msg("Skipping shop")
		return shopResult{shop: shop}
	}

	if w.cfg.UploadImages {
		if shop.LogoURL != "" {
			shop.S3ImagePath = w.uploadImage(ctx, shop.LogoURL, storage.LogoKey(partition, shop.Name, shop.LogoURL), log)
		}
		for i := range items {
			if items[i].ImageURL == "" {
				continue
			}
			key := storage.ProductImageKey(partition, shop.Name, items[i].ProductID, items[i].ImageURL)
			items[i].S3ImagePath = w.uploadImage(ctx, items[i].ImageURL, key, log)
		}
	}

	log.Info().Int("items", len(items)).Int("reviews", len(reviews)).Msg("Shop done")
	return shopResult{shop: shop, items: items, reviews: reviews}
}

// uploadImage downloads an image and uploads it unchanged. Returns the key on
// success, empty string on failure; image failures are never fatal.
func (w *Worker) uploadImage(ctx context.Context, imageURL, key string, log *logger.Logger) string {
	body, contentType, err := w.images.FetchBinary(ctx, imageURL)
	if err != nil {
		log.Debug().Err(err).Str("url", imageURL).Msg("Image download failed")
		return ""
	}
	if err := w.store.Put(ctx, key, body, contentType); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Image upload failed")
		return ""
	}
	return key
}

// uploadPartition serializes and uploads one shop type's three CSVs. Empty
// item or review sets omit the file rather than writing a header-only CSV.
func (w *Worker) uploadPartition(ctx context.Context, shopType string, results []shopResult) error {
	partition := storage.PartitionPrefix(w.cfg.S3Prefix, w.runDate, shopType)

	var enriched []scraper.ShopRecord
	var allItems []scraper.ProductRecord
	var allReviews []scraper.ReviewRecord
	for _, r := range results {
		enriched = append(enriched, r.shop)
		allItems = append(allItems, r.items...)
		allReviews = append(allReviews, r.reviews...)
	}

	shopsCSV, err := storage.EncodeShopsCSV(enriched)
	if err != nil {
		return err
	}
	if err := w.store.Put(ctx, partition+"/shops.csv", shopsCSV, storage.CSVContentType); err != nil {
		return err
	}

	if len(allItems) > 0 {
		itemsCSV, err := storage.EncodeProductsCSV(allItems)
		if err != nil {
			return err
		}
		if err := w.store.Put(ctx, partition+"/items.csv", itemsCSV, storage.CSVContentType); err != nil {
			return err
		}
	} else {
		w.log.Warn().Str("type", shopType).Msg("No items found")
	}

	if len(allReviews) > 0 {
		reviewsCSV, err := storage.EncodeReviewsCSV(allReviews)
		if err != nil {
			return err
		}
		if err := w.store.Put(ctx, partition+"/reviews.csv", reviewsCSV, storage.CSVContentType); err != nil {
			return err
		}
	} else {
		w.log.Warn().Str("type", shopType).Msg("No reviews found")
	}

	event, err := json.Marshal(partitionEvent{
		ShopType: shopType,
		Date:     w.runDate.Format("2006-01-02"),
		Shops:    len(enriched),
		Items:    len(allItems),
		Reviews:  len(allReviews),
		Prefix:   partition,
	})
	if err != nil {
		return err
	}
	if err := w.pub.Publish(shopType, event); err != nil {
		w.log.Warn().Err(err).Str("type", shopType).Msg("Partition event publish failed")
	}

	w.log.Info().
		Str("type", shopType).
		Int("shops", len(enriched)).
		Int("items", len(allItems)).
		Int("reviews", len(allReviews)).
		Msg("Partition uploaded")
	return nil
}

func sortedKeys(m map[string][]scraper.ShopRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
