package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"02.01.2006",
}

// nullTokens are raw cell values treated as missing.
var nullTokens = map[string]bool{
	"": true, "null": true, "na": true, "n/a": true, "none": true, "nil": true, `\n`: true, "-": true,
}

// IsNull reports whether a raw cell value means "no value".
func IsNull(v string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(v))]
}

// ConvertDateTime parses a raw value using the known layouts.
func ConvertDateTime(val interface{}) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, f := range dateFormats {
			if t, err := time.Parse(f, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse datetime: %s", v)
	case []byte:
		return ConvertDateTime(string(v))
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to datetime", val)
	}
}

// ConvertToFloat parses numbers written with thousands separators, a currency
// sign or a decimal comma.
func ConvertToFloat(val interface{}) (float64, error) {
	switch v := val.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		s = strings.TrimLeft(s, "$€£¥")
		s = strings.TrimSpace(s)
		if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
		return strconv.ParseFloat(s, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float", val)
	}
}

func ConvertToInt(val interface{}) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("cannot convert %T to int", val)
	}
}

var (
	currencyRe = regexp.MustCompile(`^[$€£¥]?\s?\d{1,3}([,.]?\d{3})*([.,]\d{1,2})?$`)
	urlRe      = regexp.MustCompile(`^https?://\S+$`)
	imageRe    = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp|svg)(\?\S*)?$`)
	codeRe     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-./]{2,31}$`)
	weightRe   = regexp.MustCompile(`(?i)^\d+([.,]\d+)?\s?(kg|g|lb|lbs|oz)$`)
)

func LooksNumeric(v string) bool {
	_, err := ConvertToFloat(v)
	return err == nil
}

func LooksInteger(v string) bool {
	_, err := ConvertToInt(v)
	return err == nil
}

// LooksCurrency matches amounts like "19.99", "$1,299.00" or "12,50".
func LooksCurrency(v string) bool {
	return currencyRe.MatchString(strings.TrimSpace(v))
}

func LooksBoolean(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "false", "yes", "no", "y", "n", "0", "1", "active", "inactive", "enabled", "disabled":
		return true
	}
	return false
}

func LooksDate(v string) bool {
	_, err := ConvertDateTime(v)
	return err == nil
}

func LooksURL(v string) bool {
	return urlRe.MatchString(strings.TrimSpace(v))
}

func LooksImageURL(v string) bool {
	s := strings.TrimSpace(v)
	return LooksURL(s) && imageRe.MatchString(s)
}

// LooksBarcode matches EAN-8, UPC-A, EAN-13 and GTIN-14 digit strings.
func LooksBarcode(v string) bool {
	s := strings.TrimSpace(v)
	switch len(s) {
	case 8, 12, 13, 14:
	default:
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// LooksCode matches short identifier-like values that mix letters and digits.
func LooksCode(v string) bool {
	s := strings.TrimSpace(v)
	if !codeRe.MatchString(s) {
		return false
	}
	return strings.ContainsAny(s, "0123456789") && strings.IndexFunc(s, isLetter) >= 0
}

func LooksWeight(v string) bool {
	return weightRe.MatchString(strings.TrimSpace(v))
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
