package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"bleemsworker/internal/scraper"
)

// CSVContentType is used for every CSV partition upload.
const CSVContentType = "text/csv; charset=utf-8"

// utf8BOM keeps spreadsheet tools from misreading Arabic shop names.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// EncodeShopsCSV serializes shop records with a stable column set.
func EncodeShopsCSV(shops []scraper.ShopRecord) ([]byte, error) {
	rows := [][]string{{"name", "type", "rating", "ratings_count", "slug", "url", "logo_url", "s3_image_path", "scraped_date"}}
	for _, s := range shops {
		rows = append(rows, []string{
			s.Name,
			s.Type,
			formatRating(s.Rating),
			strconv.Itoa(s.RatingsCount),
			s.Slug,
			s.URL,
			s.LogoURL,
			s.S3ImagePath,
			s.ScrapedDate,
		})
	}
	return encodeCSV(rows)
}

// EncodeProductsCSV serializes product records with a stable column set.
func EncodeProductsCSV(items []scraper.ProductRecord) ([]byte, error) {
	rows := [][]string{{"shop_name", "shop_type", "product_id", "product_name", "category", "brand", "price", "currency", "occasion", "product_type", "sub_category", "flavors", "colors", "product_url", "image_url", "s3_image_path"}}
	for _, p := range items {
		rows = append(rows, []string{
			p.ShopName,
			p.ShopType,
			p.ProductID,
			p.ProductName,
			p.Category,
			p.Brand,
			p.Price,
			p.Currency,
			p.Occasion,
			p.ProductType,
			p.SubCategory,
			p.Flavors,
			p.Colors,
			p.ProductURL,
			p.ImageURL,
			p.S3ImagePath,
		})
	}
	return encodeCSV(rows)
}

// EncodeReviewsCSV serializes review records with a stable column set.
// An absent star rating renders as an empty cell, not zero.
func EncodeReviewsCSV(reviews []scraper.ReviewRecord) ([]byte, error) {
	rows := [][]string{{"shop_name", "shop_type", "reviewer_name", "review_date", "review_text", "star_rating", "scraped_date"}}
	for _, r := range reviews {
		rows = append(rows, []string{
			r.ShopName,
			r.ShopType,
			r.ReviewerName,
			r.ReviewDate,
			r.ReviewText,
			formatRating(r.StarRating),
			r.ScrapedDate,
		})
	}
	return encodeCSV(rows)
}

func encodeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv records: %w", err)
	}

	return buf.Bytes(), nil
}

func formatRating(r *float64) string {
	if r == nil {
		return ""
	}
	return strconv.FormatFloat(*r, 'f', -1, 64)
}
