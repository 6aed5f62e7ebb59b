package scraper

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Review markup is unreliable: the site nests <li class="li-reviews"> in
// places the HTML grammar does not allow, so a normalizing parser may
// restructure the document and lose the elements. Extraction therefore runs
// two tiers: a class-marker pass over the parsed document, then a raw-markup
// scan when the parsed pass finds nothing.

var (
	reviewerPattern  = regexp.MustCompile(`^(.+?)\s+on\s+(\d{2}/\d{2}/\d{4})$`)
	dateOnlyPattern  = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	widthPattern     = regexp.MustCompile(`width\s*:\s*(\d+(?:\.\d+)?)%`)
	reviewMarkerRe   = regexp.MustCompile(`class=["']li-reviews["']`)
	reviewEndRe      = regexp.MustCompile(`</ul|</div\s*id=["']dv_reviews`)
	reviewTextRe     = regexp.MustCompile(`(?s)class=["']dv-reviews-text["'][^>]*>\s*(.*?)\s*</div`)
	reviewNameRe     = regexp.MustCompile(`(?s)class=["']dv-reviews-name["'][^>]*>\s*(.*?)\s*</div`)
	reviewRatingRe   = regexp.MustCompile(`(?s)class=["']rating-on["']\s+style=["']([^"']+)["']`)
	innerTagsPattern = regexp.MustCompile(`<[^>]+>`)
)

// ExtractReviews pulls ReviewRecords out of a shop page or an AJAX fragment,
// trying the parsed-document tier first and the raw-markup tier second.
// Tiers are not merged: the first non-empty result wins.
func ExtractReviews(html string, shop *ShopRecord) []ReviewRecord {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		if rows := reviewsFromDocument(doc, shop); len(rows) > 0 {
			return rows
		}
	}
	return reviewsFromRawMarkup(html, shop)
}

// reviewsFromDocument locates review blocks purely by class marker, so the
// match survives the parser rewriting the tag (li → whatever) as it fixes
// malformed nesting.
func reviewsFromDocument(doc *goquery.Document, shop *ShopRecord) []ReviewRecord {
	var rows []ReviewRecord

	doc.Find(".li-reviews").Each(func(_ int, el *goquery.Selection) {
		text := strings.TrimSpace(el.Find(".dv-reviews-text").First().Text())
		rawName := strings.TrimSpace(el.Find(".dv-reviews-name").First().Text())
		style := el.Find(".rating-on").First().AttrOr("style", "")

		if row := makeReview(shop, text, rawName, style); row != nil {
			rows = append(rows, *row)
		}
	})

	return rows
}

// reviewsFromRawMarkup scans the markup text directly. Each block runs from
// one li-reviews marker to the next, or to a closing container boundary
// (</ul or the dv_reviews div), or to the end of input.
func reviewsFromRawMarkup(html string, shop *ShopRecord) []ReviewRecord {
	markers := reviewMarkerRe.FindAllStringIndex(html, -1)
	var rows []ReviewRecord

	for i, marker := range markers {
		start := marker[0]
		end := len(html)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		if boundary := reviewEndRe.FindStringIndex(html[start:end]); boundary != nil {
			end = start + boundary[0]
		}
		segment := html[start:end]

		text, rawName, style := "", "", ""
		if m := reviewTextRe.FindStringSubmatch(segment); m != nil {
			text = stripInnerTags(m[1])
		}
		if m := reviewNameRe.FindStringSubmatch(segment); m != nil {
			rawName = stripInnerTags(m[1])
		}
		if m := reviewRatingRe.FindStringSubmatch(segment); m != nil {
			style = m[1]
		}

		if row := makeReview(shop, text, rawName, style); row != nil {
			rows = append(rows, *row)
		}
	}

	return rows
}

// makeReview builds one record; a block with neither identity nor content is
// filtered rather than emitted empty.
func makeReview(shop *ShopRecord, text, rawName, style string) *ReviewRecord {
	name, date := SplitReviewer(strings.TrimSpace(rawName))
	stars := WidthToStars(style)

	if text == "" && name == "" && date == "" && stars == nil {
		return nil
	}

	return &ReviewRecord{
		ShopName:     shop.Name,
		ShopType:     shop.Type,
		ReviewerName: name,
		ReviewDate:   date,
		ReviewText:   strings.TrimSpace(text),
		StarRating:   stars,
	}
}

// SplitReviewer splits the composite "name on DD/MM/YYYY" string. A bare date
// yields an empty name; anything else is all name. Malformed input is never
// an error.
func SplitReviewer(raw string) (name, date string) {
	if m := reviewerPattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), m[2]
	}
	if dateOnlyPattern.MatchString(raw) {
		return "", raw
	}
	return strings.TrimSpace(raw), ""
}

// WidthToStars converts the rating indicator's CSS width percentage into a
// 1–5 star value at 0.1 resolution (20% per star). Missing or unparseable
// style yields nil.
func WidthToStars(style string) *float64 {
	m := widthPattern.FindStringSubmatch(style)
	if m == nil {
		return nil
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	stars := math.Round(pct/20*10) / 10
	return &stars
}

func stripInnerTags(s string) string {
	return strings.TrimSpace(innerTagsPattern.ReplaceAllString(s, ""))
}
