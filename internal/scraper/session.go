package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"bleemsworker/helpers"
	"bleemsworker/logger"
	"bleemsworker/pkg/errors"
)

// ReviewSession drives the LoadReviews AJAX protocol for one shop:
//
//	INIT -> TOKEN_ACQUIRED -> FETCHING_PAGE(n) -> DONE | FAILED
//
// Each session owns a fresh resty client, and with it a fresh cookie jar, so
// anti-forgery state never leaks between shops or from earlier product-page
// requests. The session is discarded when FetchAll returns.
type ReviewSession struct {
	client   *resty.Client
	baseURL  string
	country  string
	pageSize int
	delay    time.Duration
	metrics  *Metrics
	log      *logger.Logger
}

// pageResponse is the endpoint's envelope: an HTML fragment plus a
// continuation flag.
type pageResponse struct {
	HTML    string `json:"html"`
	CanLoad bool   `json:"canLoad"`
}

var (
	inputTagPattern   = regexp.MustCompile(`<input[^>]+>`)
	inputValuePattern = regexp.MustCompile(`value=["']([^"']+)["']`)
)

// NewReviewSession creates a session for one shop's reviews.
func NewReviewSession(baseURL, country string, pageSize int, timeout time.Duration, maxRetries int, delay time.Duration, metrics *Metrics, log *logger.Logger) *ReviewSession {
	return &ReviewSession{
		client:   helpers.NewBrowserClient(timeout, maxRetries),
		baseURL:  baseURL,
		country:  country,
		pageSize: pageSize,
		delay:    delay,
		metrics:  metrics,
		log:      log,
	}
}

// ExtractVerificationToken pulls the anti-forgery token from the first
// <input> tag that mentions the token field, tolerating any attribute order.
func ExtractVerificationToken(html string) string {
	for _, tag := range inputTagPattern.FindAllString(html, -1) {
		if !strings.Contains(tag, "__RequestVerificationToken") {
			continue
		}
		if m := inputValuePattern.FindStringSubmatch(tag); m != nil {
			return m[1]
		}
	}
	return ""
}

// FetchAll runs the full pagination protocol and returns every review it
// could retrieve. A missing token is an auth_token failure (the shop's
// reviews are unavailable); any later page failure ends pagination with the
// partial results accumulated so far.
func (s *ReviewSession) FetchAll(ctx context.Context, shop *ShopRecord) ([]ReviewRecord, error) {
	shopURL := fmt.Sprintf("%s/%s/shop/%s", s.baseURL, s.country, shop.Slug)
	reviewsURL := fmt.Sprintf("%s/%s/ItemsList?handler=LoadReviews", s.baseURL, s.country)

	start := time.Now()
	resp, err := s.client.R().SetContext(ctx).Get(shopURL)
	s.metrics.IncRequest("review_token")
	s.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		return nil, errors.NewNetwork(shop.Name, "fetch shop page for token", err)
	}
	if !resp.IsSuccess() {
		return nil, errors.NewNetwork(shop.Name, fmt.Sprintf("shop page status %d", resp.StatusCode()), nil)
	}

	token := ExtractVerificationToken(string(resp.Body()))
	if token == "" {
		return nil, errors.NewAuthToken(shop.Name)
	}
	s.log.Debug().Str("token_prefix", token[:min(12, len(token))]).Msg("Anti-forgery token acquired")

	var all []ReviewRecord
	for pageNo := 1; ; pageNo++ {
		start := time.Now()
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"shopLink": shop.Slug, // bare slug, not the /country/shop/slug path
				"pageNo":   strconv.Itoa(pageNo),
				"pageSize": strconv.Itoa(s.pageSize),
			}).
			SetHeaders(map[string]string{
				"X-Requested-With":         "XMLHttpRequest",
				"RequestVerificationToken": token,
				"Accept":                   "application/json, text/javascript, */*; q=0.01",
				"Referer":                  shopURL,
			}).
			Get(reviewsURL)
		s.metrics.IncRequest("review_page")
		s.metrics.ObserveDuration(time.Since(start))

		if err != nil {
			s.log.Warn().Err(err).Int("page", pageNo).Msg("Review page request failed")
			break
		}
		if !resp.IsSuccess() {
			s.log.Warn().
				Int("page", pageNo).
				Int("status", resp.StatusCode()).
				Str("body", preview(resp.Body(), 400)).
				Msg("Review page returned non-success status")
			break
		}

		var page pageResponse
		if jsonErr := json.Unmarshal(resp.Body(), &page); jsonErr != nil {
			// Endpoint occasionally answers with a bare HTML fragment
			page = pageResponse{HTML: string(resp.Body()), CanLoad: false}
		}

		rows := ExtractReviews(page.HTML, shop)
		all = append(all, rows...)
		s.log.Debug().Int("page", pageNo).Int("rows", len(rows)).Bool("can_load", page.CanLoad).Msg("Review page parsed")

		// Stop unless the server claims more AND this page actually produced
		// records; the flag alone is not trusted.
		if !page.CanLoad || len(rows) == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return all, ctx.Err()
		case <-time.After(s.delay):
		}
	}

	return all, nil
}

func preview(body []byte, n int) string {
	if len(body) > n {
		body = body[:n]
	}
	return string(body)
}
