package config

import (
	"os"
	"strconv"
	"time"

	"bleemsworker/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Target site
	BaseURL string
	Country string

	// Fetch behaviour
	RequestDelay   time.Duration
	RequestTimeout time.Duration
	MaxRetries     int
	BlockTime      time.Duration

	// Review pagination
	ReviewPageSize int

	// Concurrency across shops
	ShopWorkers int

	// S3 configuration; when Bucket is empty, output goes to LocalOutputDir
	S3Bucket       string
	S3Prefix       string
	AWSRegion      string
	LocalOutputDir string
	UploadImages   bool

	// Memcache configuration (rate-limit blocks); optional
	MemcacheAddr string

	// Prometheus listen address (e.g. :9090); empty disables the endpoint
	MetricsAddr string

	// Redis configuration (partition events); optional
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	requestDelay, _ := strconv.Atoi(getEnv("REQUEST_DELAY_MS", "1500"))
	requestTimeout, _ := strconv.Atoi(getEnv("REQUEST_TIMEOUT_SECONDS", "30"))
	maxRetries, _ := strconv.Atoi(getEnv("MAX_RETRIES", "3"))
	blockTime, _ := strconv.Atoi(getEnv("RATE_LIMIT_BLOCK_SECONDS", "300"))
	pageSize, _ := strconv.Atoi(getEnv("REVIEW_PAGE_SIZE", "20"))
	shopWorkers, _ := strconv.Atoi(getEnv("SHOP_WORKERS", "1"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "500"))

	return &Config{
		BaseURL:              getEnv("BLEEMS_BASE_URL", "https://www.bleems.com"),
		Country:              getEnv("BLEEMS_COUNTRY", "kw"),
		RequestDelay:         time.Duration(requestDelay) * time.Millisecond,
		RequestTimeout:       time.Duration(requestTimeout) * time.Second,
		MaxRetries:           maxRetries,
		BlockTime:            time.Duration(blockTime) * time.Second,
		ReviewPageSize:       pageSize,
		ShopWorkers:          shopWorkers,
		S3Bucket:             getEnv("S3_BUCKET_NAME", ""),
		S3Prefix:             getEnv("S3_FOLDER", "bleems-data"),
		AWSRegion:            getEnv("AWS_DEFAULT_REGION", "us-east-1"),
		LocalOutputDir:       getEnv("LOCAL_OUTPUT_DIR", "output"),
		UploadImages:         getEnv("UPLOAD_IMAGES", "true") == "true",
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		MetricsAddr:          getEnv("METRICS_ADDR", ""),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "bleems:partitions"),
		RedisStreamMaxLength: streamMaxLen,
		Environment:          getEnv("BLEEMS_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the run cannot proceed without
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.NewConfiguration("BLEEMS_BASE_URL must not be empty", nil)
	}
	if c.Country == "" {
		return errors.NewConfiguration("BLEEMS_COUNTRY must not be empty", nil)
	}
	if c.MaxRetries < 1 {
		return errors.NewConfiguration("MAX_RETRIES must be at least 1", nil)
	}
	if c.ReviewPageSize < 1 {
		return errors.NewConfiguration("REVIEW_PAGE_SIZE must be at least 1", nil)
	}
	if c.ShopWorkers < 1 {
		return errors.NewConfiguration("SHOP_WORKERS must be at least 1", nil)
	}
	if c.S3Bucket == "" && c.LocalOutputDir == "" {
		return errors.NewConfiguration("either S3_BUCKET_NAME or LOCAL_OUTPUT_DIR is required", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
