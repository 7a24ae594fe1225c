package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/saiset-co/catalog-service/types"
)

var (
	invalidCharsPattern = regexp.MustCompile(`[<>"'&{}]`)
	emailPattern        = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern        = regexp.MustCompile(`^[+\d\s\-()]+$`)
	slugPattern         = regexp.MustCompile(`^[a-z0-9-]+$`)

	suspiciousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
		regexp.MustCompile(`(?i)data:(?:text/html|application/javascript)`),
	}
)

const (
	maxEmailLength = 254
	maxTextLength  = 2000
)

// Validator checks inquiry and product payloads and reports every problem as
// a human readable message.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()

	_ = v.RegisterValidation("safetext", func(fl validator.FieldLevel) bool {
		return !invalidCharsPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("looseemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phonechars", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("nosuspicious", func(fl validator.FieldLevel) bool {
		return !IsSuspicious(fl.Field().String())
	})

	return &Validator{validate: v}
}

type rule struct {
	value   interface{}
	tag     string
	message string
}

func (v *Validator) run(rules []rule) []string {
	var errs []string
	for _, r := range rules {
		if err := v.validate.Var(r.value, r.tag); err != nil {
			errs = append(errs, r.message)
		}
	}
	return errs
}

// ValidateInquiry returns nil when input is acceptable.
func (v *Validator) ValidateInquiry(input types.InquiryInput) []string {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	country := strings.TrimSpace(input.Country)
	message := strings.TrimSpace(input.Message)
	phone := strings.TrimSpace(input.Phone)
	company := strings.TrimSpace(input.Company)

	var rules []rule

	if name == "" {
		rules = append(rules, rule{name, "required", "Name is required"})
	} else {
		rules = append(rules,
			rule{name, "min=2,max=100", "Name must be between 2 and 100 characters"},
			rule{name, "safetext", "Name contains invalid characters"},
		)
	}

	if email == "" {
		rules = append(rules, rule{email, "required", "Email is required"})
	} else {
		rules = append(rules,
			rule{email, "looseemail", "Invalid email format"},
			rule{email, fmt.Sprintf("max=%d", maxEmailLength), "Email address is too long"},
		)
	}

	if country == "" {
		rules = append(rules, rule{country, "required", "Country is required"})
	} else {
		rules = append(rules,
			rule{country, "max=50", "Country must be less than 50 characters"},
			rule{country, "safetext", "Country contains invalid characters"},
		)
	}

	if message == "" {
		rules = append(rules, rule{message, "required", "Message is required"})
	} else {
		rules = append(rules, rule{message, "min=10,max=2000", "Message must be between 10 and 2000 characters"})
	}

	if phone != "" {
		rules = append(rules,
			rule{phone, "max=20", "Phone must be less than 20 characters"},
			rule{phone, "phonechars", "Phone number contains invalid characters"},
		)
	}

	if company != "" {
		rules = append(rules,
			rule{company, "max=100", "Company must be less than 100 characters"},
			rule{company, "safetext", "Company name contains invalid characters"},
		)
	}

	rules = append(rules,
		rule{strings.TrimSpace(input.ProductInterest), "max=50", "Product interest must be less than 50 characters"},
		rule{strings.TrimSpace(input.ProductName), "max=200", "Product name must be less than 200 characters"},
		rule{strings.TrimSpace(input.Quantity), "max=50", "Quantity must be less than 50 characters"},
	)

	for _, field := range []string{input.Name, input.Message, input.Company, input.ProductInterest} {
		rules = append(rules, rule{field, "nosuspicious", "Invalid content detected"})
	}

	return v.run(rules)
}

// ValidateProduct checks a full product on create. With partial set only the
// fields present in input are checked, which is what an update needs.
func (v *Validator) ValidateProduct(input types.ProductInput, partial bool) []string {
	var rules []rule

	if input.Name != nil || !partial {
		name := strings.TrimSpace(deref(input.Name))
		if name == "" {
			rules = append(rules, rule{name, "required", "Name is required"})
		} else {
			rules = append(rules,
				rule{name, "min=3,max=200", "Name must be between 3 and 200 characters"},
				rule{name, "safetext", "Name contains invalid characters"},
			)
		}
	}

	if input.Category != nil || !partial {
		category := strings.TrimSpace(deref(input.Category))
		if category == "" {
			rules = append(rules, rule{category, "required", "Category is required"})
		} else {
			rules = append(rules,
				rule{category, "max=50", "Category must be less than 50 characters"},
				rule{category, "safetext", "Category contains invalid characters"},
			)
		}
	}

	if input.Description != nil || !partial {
		description := strings.TrimSpace(deref(input.Description))
		if description == "" {
			rules = append(rules, rule{description, "required", "Description is required"})
		} else {
			rules = append(rules, rule{description, "min=10,max=500", "Description must be between 10 and 500 characters"})
		}
	}

	if input.Images != nil || !partial {
		images := trimAll(input.Images)
		rules = append(rules,
			rule{images, "min=1", "At least 1 image is required"},
			rule{images, "dive,required", "All images must be valid URLs"},
		)
	}

	if input.Specifications != nil || !partial {
		rules = append(rules, rule{input.Specifications, "min=1", "Specifications are required"})
	}

	if input.Features != nil || !partial {
		features := trimAll(input.Features)
		rules = append(rules,
			rule{features, "min=1", "At least 1 feature is required"},
			rule{features, "dive,required", "All features must be valid strings"},
		)
	}

	if input.Slug != nil && *input.Slug != "" {
		rules = append(rules, rule{*input.Slug, "slug", "Slug must contain only lowercase letters, numbers, and hyphens"})
	}

	errs := v.run(rules)

	for _, field := range []string{deref(input.Name), deref(input.Description)} {
		if IsSuspicious(field) {
			errs = append(errs, "Invalid content detected")
			break
		}
	}

	return errs
}

// IsSuspicious reports whether s looks like a script injection attempt.
func IsSuspicious(s string) bool {
	if s == "" {
		return false
	}
	for _, pattern := range suspiciousPatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
