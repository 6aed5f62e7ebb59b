package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testShop() *ShopRecord {
	return &ShopRecord{Name: "Flower House", Type: "Flowers", Slug: "flower-house"}
}

func TestWidthToStars(t *testing.T) {
	tests := []struct {
		name  string
		style string
		want  float64
		nil_  bool
	}{
		{"full", "width: 100%", 5.0, false},
		{"zero", "width: 0%", 0.0, false},
		{"fractional", "width:47%", 2.4, false},
		{"decimal pct", "width: 90.5%;", 4.5, false},
		{"spaced", "width :  60% ; color: gold", 3.0, false},
		{"missing", "color: gold", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WidthToStars(tt.style)
			if tt.nil_ {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestSplitReviewer(t *testing.T) {
	tests := []struct {
		raw      string
		wantName string
		wantDate string
	}{
		{"Fatma L on 11/12/2025", "Fatma L", "11/12/2025"},
		{"17/11/2024", "", "17/11/2024"},
		{"Anonymous", "Anonymous", ""},
		{"Abdullah on the road on 01/02/2024", "Abdullah on the road", "01/02/2024"},
		{"", "", ""},
	}

	for _, tt := range tests {
		name, date := SplitReviewer(tt.raw)
		assert.Equal(t, tt.wantName, name, tt.raw)
		assert.Equal(t, tt.wantDate, date, tt.raw)
	}
}

func TestExtractReviewsFromDocument(t *testing.T) {
	html := `
		<div id="dv_reviews"><ul>
			<li class="li-reviews">
				<div class="dv-reviews-text">Beautiful arrangement, arrived on time.</div>
				<div class="dv-reviews-name">Fatma L on 11/12/2025</div>
				<span class="rating-on" style="width: 100%"></span>
			</li>
			<li class="li-reviews">
				<div class="dv-reviews-text">Okay.</div>
				<div class="dv-reviews-name">17/11/2024</div>
				<span class="rating-on" style="width: 47%"></span>
			</li>
		</ul></div>`

	rows := ExtractReviews(html, testShop())
	require.Len(t, rows, 2)

	assert.Equal(t, "Flower House", rows[0].ShopName)
	assert.Equal(t, "Flowers", rows[0].ShopType)
	assert.Equal(t, "Fatma L", rows[0].ReviewerName)
	assert.Equal(t, "11/12/2025", rows[0].ReviewDate)
	assert.Equal(t, "Beautiful arrangement, arrived on time.", rows[0].ReviewText)
	require.NotNil(t, rows[0].StarRating)
	assert.Equal(t, 5.0, *rows[0].StarRating)

	assert.Empty(t, rows[1].ReviewerName)
	assert.Equal(t, "17/11/2024", rows[1].ReviewDate)
	require.NotNil(t, rows[1].StarRating)
	assert.Equal(t, 2.4, *rows[1].StarRating)
}

func TestExtractReviewsMissingRating(t *testing.T) {
	html := `
		<li class="li-reviews">
			<div class="dv-reviews-text">No stars shown.</div>
			<div class="dv-reviews-name">Sara on 05/03/2025</div>
		</li>`

	rows := ExtractReviews(html, testShop())
	require.Len(t, rows, 1)
	// Absent rating stays absent, it is not zero stars
	assert.Nil(t, rows[0].StarRating)
}

func TestExtractReviewsRawMarkupFallback(t *testing.T) {
	// li-reviews nested inside another li: a normalizing parser may restructure
	// this, but the raw-markup tier must still see both blocks
	rows := reviewsFromRawMarkup(`
		<ul>
			<li><li class="li-reviews">
				<div class="dv-reviews-text">Great <b>cake</b>!</div>
				<div class="dv-reviews-name">Noura on 02/01/2025</div>
				<span class="rating-on" style="width: 80%"></span>
			<li class="li-reviews">
				<div class="dv-reviews-text">Too sweet.</div>
				<div class="dv-reviews-name">Ali on 03/01/2025</div>
				<span class="rating-on" style="width: 40%"></span>
		</ul>
		<div class="dv-reviews-text">outside the review list</div>`, testShop())

	require.Len(t, rows, 2)
	assert.Equal(t, "Great cake!", rows[0].ReviewText)
	assert.Equal(t, "Noura", rows[0].ReviewerName)
	require.NotNil(t, rows[0].StarRating)
	assert.Equal(t, 4.0, *rows[0].StarRating)
	assert.Equal(t, "Too sweet.", rows[1].ReviewText)
}

func TestExtractReviewsRawMarkupContainerBoundary(t *testing.T) {
	// The last block ends at </ul; markup after the container must not leak in
	rows := reviewsFromRawMarkup(`
		<li class="li-reviews">
			<div class="dv-reviews-name">Omar on 09/09/2024</div>
		</ul>
		<div class="dv-reviews-text">unrelated footer text</div>`, testShop())

	require.Len(t, rows, 1)
	assert.Equal(t, "Omar", rows[0].ReviewerName)
	assert.Empty(t, rows[0].ReviewText)
}

func TestExtractReviewsFiltersEmptyBlocks(t *testing.T) {
	html := `
		<li class="li-reviews"><div class="dv-reviews-text"></div><div class="dv-reviews-name"></div></li>
		<li class="li-reviews"><div class="dv-reviews-name">Hala on 12/12/2024</div></li>`

	rows := ExtractReviews(html, testShop())
	require.Len(t, rows, 1)
	assert.Equal(t, "Hala", rows[0].ReviewerName)
}

func TestExtractReviewsEmptyInput(t *testing.T) {
	assert.Empty(t, ExtractReviews("", testShop()))
	assert.Empty(t, ExtractReviews("<html><body>no reviews here</body></html>", testShop()))
}
