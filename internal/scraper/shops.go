package scraper

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"bleemsworker/pkg/errors"
)

var titleCaser = cases.Title(language.English)

// ExtractShops parses the A-Z shop listing page into ShopRecords.
//
// The listing sometimes arrives JS-filtered to a single visible type; in that
// case the visible type texts are useless and the data-type attribute is the
// real source. Detected by the visible pass collapsing to at most one
// distinct type.
func ExtractShops(html []byte, baseURL string) ([]ShopRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, errors.NewParsing("", "shop listing parse", err)
	}

	shops := parseShopAnchors(doc, baseURL, false)
	if len(distinctTypes(shops)) <= 1 {
		shops = parseShopAnchors(doc, baseURL, true)
	}

	if len(shops) == 0 {
		return nil, errors.NewNoRecords("", "no shops on listing page")
	}
	return shops, nil
}

func parseShopAnchors(doc *goquery.Document, baseURL string, useDataAttr bool) []ShopRecord {
	var shops []ShopRecord

	doc.Find("a.brand-a-z-list-item").Each(func(_ int, el *goquery.Selection) {
		href := el.AttrOr("href", "")
		slug := ""
		if idx := strings.Index(href, "/shop/"); idx >= 0 {
			slug = strings.TrimRight(href[idx+len("/shop/"):], "/")
		}

		name := strings.TrimSpace(el.Find(".brand-a-z-item-name").Text())
		if name == "" {
			name = strings.TrimSpace(el.AttrOr("data-name", ""))
		}

		typeText := ""
		if useDataAttr {
			typeText = strings.TrimSpace(el.AttrOr("data-type", "Other"))
		} else {
			typeText = strings.TrimSpace(el.Find(".brand-a-z-item-type").Text())
			if typeText == "" {
				typeText = strings.TrimSpace(el.AttrOr("data-type", "Other"))
			}
		}

		url := href
		if strings.HasPrefix(href, "/") {
			url = baseURL + href
		}

		shops = append(shops, ShopRecord{
			Name:         name,
			Type:         titleCaser.String(typeText),
			Rating:       parseRatingAttr(el.AttrOr("data-rating", "")),
			RatingsCount: parseCountAttr(el.AttrOr("data-count", "")),
			Slug:         slug,
			URL:          url,
			LogoURL:      el.Find("img").First().AttrOr("src", ""),
		})
	})

	return shops
}

func distinctTypes(shops []ShopRecord) []string {
	seen := make(map[string]struct{})
	var types []string
	for _, s := range shops {
		if _, ok := seen[s.Type]; !ok {
			seen[s.Type] = struct{}{}
			types = append(types, s.Type)
		}
	}
	return types
}

func parseRatingAttr(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 5 {
		return nil
	}
	return &v
}

func parseCountAttr(raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
