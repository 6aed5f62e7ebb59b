package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents network-related errors (timeouts, 5xx, resets)
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeParsing represents HTML or embedded-object parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeAuthToken represents a missing anti-forgery token; reviews for
	// that shop are unavailable but the run continues
	ErrorTypeAuthToken ErrorType = "auth_token"
	// ErrorTypeNoRecords represents an extraction that found nothing
	ErrorTypeNoRecords ErrorType = "no_records"
	// ErrorTypeStorage represents object storage errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScrapeError represents a scraper-specific error
type ScrapeError struct {
	Type    ErrorType
	Shop    string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Shop, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Shop, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *ScrapeError) IsRetryable() bool {
	return e.Type == ErrorTypeNetwork
}

// New creates a new ScrapeError
func New(errType ErrorType, shop, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Shop:    shop,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(shop, message string, err error) *ScrapeError {
	return New(ErrorTypeNetwork, shop, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(shop string, duration time.Duration) *ScrapeError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, shop, message, nil)
}

// NewParsing creates a new parsing error
func NewParsing(shop, message string, err error) *ScrapeError {
	return New(ErrorTypeParsing, shop, message, err)
}

// NewAuthToken creates a new missing-token error
func NewAuthToken(shop string) *ScrapeError {
	return New(ErrorTypeAuthToken, shop, "no anti-forgery token on shop page", nil)
}

// NewNoRecords creates a new no-records error
func NewNoRecords(shop, message string) *ScrapeError {
	return New(ErrorTypeNoRecords, shop, message, nil)
}

// NewStorage creates a new storage error
func NewStorage(key, message string, err error) *ScrapeError {
	return New(ErrorTypeStorage, key, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// TypeLabel returns the taxonomy label for an error, for metrics and logs.
func TypeLabel(err error) string {
	if err == nil {
		return "none"
	}
	if se, ok := err.(*ScrapeError); ok {
		return string(se.Type)
	}
	return "other"
}
