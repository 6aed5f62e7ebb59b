package scraper

// ShopRecord represents one shop from the A-Z listing, later enriched from
// the shop's own page. Owned by the orchestrator; extraction only refines
// rating fields, never identity.
type ShopRecord struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Rating       *float64 `json:"rating,omitempty"`
	RatingsCount int      `json:"ratings_count"`
	Slug         string   `json:"slug"`
	URL          string   `json:"url"`
	LogoURL      string   `json:"logo_url"`
	S3ImagePath  string   `json:"s3_image_path,omitempty"`
	ScrapedDate  string   `json:"scraped_date,omitempty"`
}

// ProductRecord represents one catalog item. Denormalized against its shop;
// immutable once created. A record built from the listing container fallback
// carries only the identifier, image and brand, with the descriptive fields
// left empty.
type ProductRecord struct {
	ShopName    string `json:"shop_name"`
	ShopType    string `json:"shop_type"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Category    string `json:"category"`
	Brand       string `json:"brand"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	Occasion    string `json:"occasion"`
	ProductType string `json:"product_type"`
	SubCategory string `json:"sub_category"`
	Flavors     string `json:"flavors"`
	Colors      string `json:"colors"`
	ProductURL  string `json:"product_url"`
	ImageURL    string `json:"image_url"`
	S3ImagePath string `json:"s3_image_path,omitempty"`
}

// ReviewRecord represents one customer review. StarRating is nil when the
// source markup carried no rating element.
type ReviewRecord struct {
	ShopName     string   `json:"shop_name"`
	ShopType     string   `json:"shop_type"`
	ReviewerName string   `json:"reviewer_name"`
	ReviewDate   string   `json:"review_date"`
	ReviewText   string   `json:"review_text"`
	StarRating   *float64 `json:"star_rating,omitempty"`
	ScrapedDate  string   `json:"scraped_date"`
}

// DefaultCurrency is assumed when a product block carries no currency field.
const DefaultCurrency = "KWD"
