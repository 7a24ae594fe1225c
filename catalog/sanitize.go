package catalog

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/saiset-co/catalog-service/types"
)

var (
	htmlEscaper = strings.NewReplacer(
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#x27;",
		"&", "&amp;",
	)

	slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)
)

// SanitizeString trims s, escapes HTML metacharacters, strips script-like
// fragments and caps the result at 2000 characters.
func SanitizeString(s string) string {
	s = htmlEscaper.Replace(strings.TrimSpace(s))

	for _, pattern := range suspiciousPatterns {
		s = pattern.ReplaceAllString(s, "")
	}

	if utf8.RuneCountInString(s) > maxTextLength {
		s = string([]rune(s)[:maxTextLength])
	}

	return s
}

// SanitizeInquiry returns a copy of input with every text field sanitized and
// the email lower-cased.
func SanitizeInquiry(input types.InquiryInput) types.InquiryInput {
	return types.InquiryInput{
		Name:            SanitizeString(input.Name),
		Email:           SanitizeString(strings.ToLower(strings.TrimSpace(input.Email))),
		Phone:           SanitizeString(input.Phone),
		Country:         SanitizeString(input.Country),
		Company:         SanitizeString(input.Company),
		ProductInterest: SanitizeString(input.ProductInterest),
		ProductID:       SanitizeString(input.ProductID),
		ProductName:     SanitizeString(input.ProductName),
		Quantity:        SanitizeString(input.Quantity),
		Message:         SanitizeString(input.Message),
	}
}

// GenerateSlug lower-cases name and joins its alphanumeric runs with hyphens.
func GenerateSlug(name string) string {
	slug := slugSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(slug, "-")
}
