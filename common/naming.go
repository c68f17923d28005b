package common

import (
	"fmt"
	"strings"
	"time"
)

// Product levels found in Sentinel-2 product names
const (
	ProductLevel1C = "L1C"
	ProductLevel2A = "L2A"
)

// IsSentinel2 returns true if the name is a Sentinel-2 product name
func IsSentinel2(productName string) bool {
	return strings.HasPrefix(productName, "S2")
}

// Info parses a Sentinel-2 product name
// MMM_MSIXXX_YYYYMMDDTHHMMSS_Nxxyy_ROOO_Txxxxx_<Product Discriminator>.SAFE
func Info(productName string) (map[string]string, error) {
	if !IsSentinel2(productName) {
		return nil, fmt.Errorf("Info: not a Sentinel-2 product: %s", productName)
	}
	if len(productName) < len("MMM_MSIXXX_YYYYMMDDTHHMMSS_Nxxyy_ROOO_Txxxxx_YYYYMMDDTHHMMSS") || productName[10] != '_' {
		return nil, fmt.Errorf("invalid Sentinel2 file name: %s", productName)
	}
	return map[string]string{
		"SCENE":           string(TileIDFromName(productName)),
		"MISSION_ID":      productName[0:3],
		"MISSION_VERSION": productName[2:3],
		"PRODUCT_LEVEL":   productName[7:10],
		"DATE":            productName[11:19],
		"YEAR":            productName[11:15],
		"MONTH":           productName[15:17],
		"DAY":             productName[17:19],
		"TIME":            productName[20:26],
		"HOUR":            productName[20:22],
		"MINUTE":          productName[22:24],
		"SECOND":          productName[24:26],
		"PDGS":            productName[28:32],
		"ORBIT":           productName[34:37],
		"TILE":            productName[38:44],
		"LATITUDE_BAND":   productName[39:41],
		"GRID_SQUARE":     productName[41:42],
		"GRANULE_ID":      productName[42:44],
		"PRODUCT_DISC":    productName[45:60],
	}, nil
}

// GetDateFromProductId returns the sensing date of the product
func GetDateFromProductId(productName string) (time.Time, error) {
	format, err := Info(productName)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse("20060102", format["DATE"])
}

/**
 * FormatBrackets replaces in <str> all {keys} of <info> by the corresponding value
 * keys must be one of SCENE, MISSION_ID, PRODUCT_LEVEL, DATE(YEAR/MONTH/DAY), TIME(HOUR/MINUTE/SECOND), PDGS, ORBIT, TILE (LATITUDE_BAND/GRID_SQUARE/GRANULE_ID)
 */
func FormatBrackets(str string, infos ...map[string]string) string {
	for _, info := range infos {
		for k, v := range info {
			str = strings.ReplaceAll(str, "{"+k+"}", v)
		}
	}
	return str
}
