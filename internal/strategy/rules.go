package strategy

import (
	"regexp"
	"strings"

	"github.com/BartekS5/fieldmapper/pkg/utils"
)

// Rule is one entry of the semantic rule list. Pattern runs against the
// normalized source name ("Unit Price" -> "unit_price"); Content runs against
// the sample values. Either one firing selects the rule.
type Rule struct {
	Name      string
	Target    string
	Pattern   *regexp.Regexp
	Content   func(samples []string) bool
	Reasoning string
}

// contentShare is the fraction of non-null samples a predicate must accept.
const contentShare = 0.8

// DefaultRules returns the product rule list. Order is priority: the first
// rule that fires wins, so e.g. compare_at_price must stay ahead of price and
// status ahead of quantity (0/1 columns).
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:      "sku",
			Target:    "sku",
			Pattern:   regexp.MustCompile(`(^|_)(sku|item_?code|product_?code|article_?(no|number)|part_?(no|number)|mpn|style_?code)(_|$)`),
			Content:   all(utils.LooksCode),
			Reasoning: "identifier-like codes mixing letters and digits",
		},
		{
			Name:      "barcode",
			Target:    "barcode",
			Pattern:   regexp.MustCompile(`(^|_)(barcode|bar_code|ean(8|13)?|upc|gtin(8|12|13|14)?|isbn)(_|$)`),
			Content:   all(utils.LooksBarcode),
			Reasoning: "8 to 14 digit barcode values",
		},
		{
			Name:      "image_url",
			Target:    "image_url",
			Pattern:   regexp.MustCompile(`(^|_)(image|images|img|photo|picture|thumbnail|thumb)(_|$)`),
			Content:   all(utils.LooksImageURL),
			Reasoning: "links to image files",
		},
		{
			Name:      "compare_at_price",
			Target:    "compare_at_price",
			Pattern:   regexp.MustCompile(`(^|_)((compare_at|was|old|original|list|regular)_price|msrp|rrp)(_|$)`),
			Reasoning: "reference price shown next to the selling price",
		},
		{
			Name:      "price",
			Target:    "price",
			Pattern:   regexp.MustCompile(`(^|_)(price|pricing|retail|amount)(_|$)`),
			Content:   all(looksPrice),
			Reasoning: "decimal or currency amounts",
		},
		{
			Name:      "status",
			Target:    "status",
			Pattern:   regexp.MustCompile(`(^|_)(status|active|enabled|published|visible|visibility)(_|$)`),
			Content:   all(utils.LooksBoolean),
			Reasoning: "boolean or active/inactive flags",
		},
		{
			Name:      "quantity",
			Target:    "quantity",
			Pattern:   regexp.MustCompile(`(^|_)(qty|quantity|stock|inventory|on_hand|units)(_|$)`),
			Content:   all(looksCount),
			Reasoning: "non-negative whole numbers",
		},
		{
			Name:      "weight",
			Target:    "weight",
			Pattern:   regexp.MustCompile(`(^|_)(weight|wt|mass|kg|lb|lbs|grams)(_|$)`),
			Content:   all(utils.LooksWeight),
			Reasoning: "numbers with a weight unit",
		},
		{
			Name:      "created_at",
			Target:    "created_at",
			Pattern:   regexp.MustCompile(`(^|_)(created|added|listed|date|created_on|launch_date)(_|$)`),
			Content:   all(utils.LooksDate),
			Reasoning: "calendar dates",
		},
		{
			Name:      "description",
			Target:    "description",
			Pattern:   regexp.MustCompile(`(^|_)(desc|description|details|body|summary|long_text|copy)(_|$)`),
			Content:   looksProse,
			Reasoning: "long free text",
		},
		{
			Name:      "category",
			Target:    "category",
			Pattern:   regexp.MustCompile(`(^|_)(category|categories|cat|department|dept|collection|product_type)(_|$)`),
			Content:   all(func(v string) bool { return strings.Contains(v, ">") }),
			Reasoning: "breadcrumb style category paths",
		},
		{
			Name:      "brand",
			Target:    "brand",
			Pattern:   regexp.MustCompile(`(^|_)(brand|manufacturer|vendor|make|mfr|maker)(_|$)`),
			Reasoning: "brand or manufacturer column",
		},
		{
			Name:      "name",
			Target:    "name",
			Pattern:   regexp.MustCompile(`(^|_)(title|name|product|item|label)(_|$)`),
			Reasoning: "product title column",
		},
	}
}

// all builds a content matcher that accepts when at least contentShare of the
// non-null samples satisfy pred. No samples never match.
func all(pred func(string) bool) func([]string) bool {
	return func(samples []string) bool {
		total, hits := 0, 0
		for _, s := range samples {
			if utils.IsNull(s) {
				continue
			}
			total++
			if pred(s) {
				hits++
			}
		}
		return total > 0 && float64(hits)/float64(total) >= contentShare
	}
}

func looksPrice(v string) bool {
	v = strings.TrimSpace(v)
	if !utils.LooksCurrency(v) {
		return false
	}
	return strings.ContainsAny(v, ".,$€£¥")
}

func looksCount(v string) bool {
	n, err := utils.ConvertToInt(v)
	return err == nil && n >= 0
}

func looksProse(samples []string) bool {
	total, length, spaced := 0, 0, 0
	for _, s := range samples {
		if utils.IsNull(s) {
			continue
		}
		total++
		length += len(s)
		if strings.Count(strings.TrimSpace(s), " ") >= 3 {
			spaced++
		}
	}
	if total == 0 {
		return false
	}
	return length/total >= 60 && float64(spaced)/float64(total) >= contentShare
}
