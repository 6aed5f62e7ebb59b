package storage

import (
	"fmt"
	"time"

	"bleemsworker/helpers"
)

// Key layout, partitioned by run date then shop type:
//
//	<prefix>/year=YYYY/month=MM/day=DD/<Type>/shops.csv
//	<prefix>/year=YYYY/month=MM/day=DD/<Type>/items.csv
//	<prefix>/year=YYYY/month=MM/day=DD/<Type>/reviews.csv
//	<prefix>/year=YYYY/month=MM/day=DD/<Type>/images/<shop>/logo/logo.<ext>
//	<prefix>/year=YYYY/month=MM/day=DD/<Type>/images/<shop>/products/<id>.<ext>

// PartitionPrefix builds the date+type partition prefix for one shop type.
func PartitionPrefix(prefix string, runDate time.Time, shopType string) string {
	return fmt.Sprintf("%s/year=%s/month=%s/day=%s/%s",
		prefix,
		runDate.UTC().Format("2006"),
		runDate.UTC().Format("01"),
		runDate.UTC().Format("02"),
		shopType,
	)
}

// LogoKey builds the key for a shop's logo image.
func LogoKey(partition, shopName, imageURL string) string {
	return fmt.Sprintf("%s/images/%s/logo/logo.%s", partition, helpers.SanitizeName(shopName), helpers.FileExt(imageURL))
}

// ProductImageKey builds the key for one product image.
func ProductImageKey(partition, shopName, productID, imageURL string) string {
	if productID == "" {
		productID = "unknown"
	}
	return fmt.Sprintf("%s/images/%s/products/%s.%s", partition, helpers.SanitizeName(shopName), productID, helpers.FileExt(imageURL))
}
