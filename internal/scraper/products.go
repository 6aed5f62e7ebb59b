package scraper

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bleemsworker/pkg/errors"
)

// Product extraction runs two tiers over a document:
//
//	tier 1 — every embedded trackJson block, normalized and mapped to a full
//	         record;
//	tier 2 — when no block parses, a minimal record per product container,
//	         built from visible attributes only.
//
// The pipeline additionally uses the per-product variant: it fetches each
// product's detail page (trackJson lives there, not on the shop listing) and
// falls back to the shop listing's container for that product when the detail
// page fails.

// ExtractProducts returns the first non-empty tier's records.
func ExtractProducts(html string, shop *ShopRecord) []ProductRecord {
	if records := productsFromTrackJSON(html, shop); len(records) > 0 {
		return records
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	return minimalProductsFromContainers(doc, shop, "")
}

// productsFromTrackJSON maps every parseable trackJson block to a record,
// deduplicated by product identifier within the tier. Unparseable blocks are
// dropped individually.
func productsFromTrackJSON(html string, shop *ShopRecord) []ProductRecord {
	var records []ProductRecord
	seen := make(map[string]struct{})

	for _, block := range FindTrackJSONBlocks(html) {
		data, err := ParseTrackJSON(block)
		if err != nil {
			continue
		}
		rec := productFromTrackJSON(data, shop)
		if rec.ProductID != "" {
			if _, dup := seen[rec.ProductID]; dup {
				continue
			}
			seen[rec.ProductID] = struct{}{}
		}
		records = append(records, rec)
	}

	return records
}

// ExtractProductDetail performs tier-1 extraction against a single product
// detail page. The page carries exactly one trackJson block; a missing or
// unparseable block is an error so the caller can fall back to the listing
// container.
func ExtractProductDetail(html string, shop *ShopRecord) (*ProductRecord, error) {
	blocks := FindTrackJSONBlocks(html)
	if len(blocks) == 0 {
		return nil, errors.NewParsing(shop.Name, "no trackJson block on product page", nil)
	}

	data, err := ParseTrackJSON(blocks[0])
	if err != nil {
		return nil, err
	}

	rec := productFromTrackJSON(data, shop)
	return &rec, nil
}

// CollectProductTargets returns the relative product paths a shop page links
// to, in document order, deduplicated by target key.
func CollectProductTargets(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var targets []string

	doc.Find(".dv-item-head[data-content-target]").Each(func(_ int, div *goquery.Selection) {
		target := strings.TrimLeft(strings.TrimSpace(div.AttrOr("data-content-target", "")), "/")
		if target == "" {
			return
		}
		if _, dup := seen[target]; dup {
			return
		}
		seen[target] = struct{}{}
		targets = append(targets, target)
	})

	return targets
}

// MinimalProduct builds a tier-2 record for one product container on the shop
// listing: identifier, image and shop name as brand, descriptive fields left
// empty to signal "observed but undescribed".
func MinimalProduct(doc *goquery.Document, targetKey string, shop *ShopRecord, productURL string) ProductRecord {
	rec := ProductRecord{
		ShopName:   shop.Name,
		ShopType:   shop.Type,
		Brand:      shop.Name,
		Currency:   DefaultCurrency,
		ProductURL: productURL,
	}

	doc.Find(".dv-item-head[data-content-target]").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		key := strings.TrimLeft(strings.TrimSpace(div.AttrOr("data-content-target", "")), "/")
		if key != targetKey {
			return true
		}
		rec.ProductID = strings.TrimPrefix(div.AttrOr("data-content-name", ""), "Product_")
		rec.ImageURL = div.Find("img").First().AttrOr("src", "")
		return false
	})

	return rec
}

// minimalProductsFromContainers synthesizes a tier-2 record for each product
// container, deduplicated by identifier (not URL, so a product rendered twice
// in the DOM counts once).
func minimalProductsFromContainers(doc *goquery.Document, shop *ShopRecord, baseURL string) []ProductRecord {
	seen := make(map[string]struct{})
	var records []ProductRecord

	doc.Find(".dv-item-head[data-content-target]").Each(func(_ int, div *goquery.Selection) {
		id := strings.TrimPrefix(div.AttrOr("data-content-name", ""), "Product_")
		if id != "" {
			if _, dup := seen[id]; dup {
				return
			}
			seen[id] = struct{}{}
		}

		target := strings.TrimLeft(strings.TrimSpace(div.AttrOr("data-content-target", "")), "/")
		productURL := ""
		if target != "" && baseURL != "" {
			productURL = baseURL + "/" + target
		}

		records = append(records, ProductRecord{
			ShopName:   shop.Name,
			ShopType:   shop.Type,
			ProductID:  id,
			Brand:      shop.Name,
			Currency:   DefaultCurrency,
			ProductURL: productURL,
			ImageURL:   div.Find("img").First().AttrOr("src", ""),
		})
	})

	return records
}

// productFromTrackJSON maps a parsed trackJson object onto a record.
// List-valued fields are joined comma-space; scalars are stringified as-is.
func productFromTrackJSON(data map[string]interface{}, shop *ShopRecord) ProductRecord {
	currency := stringifyField(data["currency"])
	if currency == "" {
		currency = DefaultCurrency
	}

	return ProductRecord{
		ShopName:    shop.Name,
		ShopType:    shop.Type,
		ProductID:   stringifyField(data["content_id"]),
		ProductName: strings.TrimSpace(stringifyField(data["product"])),
		Category:    stringifyField(data["category"]),
		Brand:       stringifyField(data["brand"]),
		Price:       stringifyField(data["product_price"]),
		Currency:    currency,
		Occasion:    stringifyField(data["occasion"]),
		ProductType: stringifyField(data["product_type"]),
		SubCategory: stringifyField(data["sub_category"]),
		Flavors:     joinOrStringify(data["flavor"]),
		Colors:      joinOrStringify(data["color"]),
		ProductURL:  stringifyField(data["product_url"]),
		ImageURL:    stringifyField(data["product_image_url"]),
	}
}

func joinOrStringify(v interface{}) string {
	list, ok := v.([]interface{})
	if !ok {
		return stringifyField(v)
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		parts = append(parts, stringifyField(item))
	}
	return strings.Join(parts, ", ")
}

func stringifyField(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
