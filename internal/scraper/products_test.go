package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopListingHTML = `
	<div class="dv-item-head" data-content-target="/product/chocolate-cake" data-content-name="Product_101">
		<img src="https://cdn.bleems.com/items/101.jpg">
	</div>
	<div class="dv-item-head" data-content-target="/product/rose-bouquet" data-content-name="Product_102">
		<img src="https://cdn.bleems.com/items/102.jpg">
	</div>
	<div class="dv-item-head" data-content-target="/product/chocolate-cake" data-content-name="Product_101">
		<img src="https://cdn.bleems.com/items/101.jpg">
	</div>`

func TestExtractProductsTrackJSONTier(t *testing.T) {
	html := `
		<script>var trackJson = {
			'content_id': '101',
			'product': decodeHTMLString('Chocolate Cake &#x1F382;'),
			'category': 'Cakes',
			'brand': 'Flower House',
			'product_price': 12.500,
			'currency': 'KWD',
			'flavor': ['Chocolate', 'Hazelnut'],
			'product_url': '/product/chocolate-cake',
			'product_image_url': 'https://cdn.bleems.com/items/101.jpg',
		};</script>
		<script>var trackJson = { 'content_id': '102', 'product': 'Rose Bouquet', };</script>`

	records := ExtractProducts(html, testShop())
	require.Len(t, records, 2)

	assert.Equal(t, "101", records[0].ProductID)
	assert.Equal(t, "Chocolate Cake 🎂", records[0].ProductName)
	assert.Equal(t, "Cakes", records[0].Category)
	assert.Equal(t, "12.5", records[0].Price)
	assert.Equal(t, "KWD", records[0].Currency)
	assert.Equal(t, "Chocolate, Hazelnut", records[0].Flavors)
	assert.Equal(t, "Flower House", records[0].ShopName)

	assert.Equal(t, "102", records[1].ProductID)
	// No currency in the block defaults to the site currency
	assert.Equal(t, DefaultCurrency, records[1].Currency)
}

func TestExtractProductsDeduplicatesByID(t *testing.T) {
	html := `
		<script>var trackJson = { 'content_id': '101', 'product': 'Cake' };</script>
		<script>var trackJson = { 'content_id': '101', 'product': 'Cake again' };</script>`

	records := ExtractProducts(html, testShop())
	require.Len(t, records, 1)
	assert.Equal(t, "Cake", records[0].ProductName)
}

func TestExtractProductsSkipsUnparseableBlocks(t *testing.T) {
	html := `
		<script>var trackJson = { broken };</script>
		<script>var trackJson = { 'content_id': '102', 'product': 'Rose Bouquet' };</script>`

	records := ExtractProducts(html, testShop())
	require.Len(t, records, 1)
	assert.Equal(t, "102", records[0].ProductID)
}

func TestExtractProductsMinimalTier(t *testing.T) {
	// No trackJson blocks anywhere: one minimal record per container
	records := ExtractProducts(shopListingHTML, testShop())
	require.Len(t, records, 2)

	assert.Equal(t, "101", records[0].ProductID)
	assert.Equal(t, "https://cdn.bleems.com/items/101.jpg", records[0].ImageURL)
	assert.Equal(t, "Flower House", records[0].Brand)
	assert.Equal(t, DefaultCurrency, records[0].Currency)
	assert.Empty(t, records[0].ProductName)
	assert.Equal(t, "102", records[1].ProductID)
}

func TestExtractProductDetail(t *testing.T) {
	html := `<script>var trackJson = { 'content_id': '300', 'product': 'Candle Set', 'product_price': 8 };</script>`

	rec, err := ExtractProductDetail(html, testShop())
	require.NoError(t, err)
	assert.Equal(t, "300", rec.ProductID)
	assert.Equal(t, "Candle Set", rec.ProductName)
	assert.Equal(t, "8", rec.Price)
}

func TestExtractProductDetailNoBlock(t *testing.T) {
	_, err := ExtractProductDetail("<html><body>plain page</body></html>", testShop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no trackJson block")
}

func TestCollectProductTargets(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(shopListingHTML))
	require.NoError(t, err)

	targets := CollectProductTargets(doc)
	assert.Equal(t, []string{"product/chocolate-cake", "product/rose-bouquet"}, targets)
}

func TestMinimalProduct(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(shopListingHTML))
	require.NoError(t, err)

	rec := MinimalProduct(doc, "product/rose-bouquet", testShop(), "https://www.bleems.com/product/rose-bouquet")
	assert.Equal(t, "102", rec.ProductID)
	assert.Equal(t, "https://cdn.bleems.com/items/102.jpg", rec.ImageURL)
	assert.Equal(t, "https://www.bleems.com/product/rose-bouquet", rec.ProductURL)
	assert.Equal(t, "Flower House", rec.Brand)
}

func TestExtractProductsIdempotent(t *testing.T) {
	html := `<script>var trackJson = { 'content_id': '101', 'product': 'Cake', 'flavor': ['A', 'B'] };</script>`

	first := ExtractProducts(html, testShop())
	second := ExtractProducts(html, testShop())
	assert.Equal(t, first, second)
}
