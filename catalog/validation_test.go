package catalog

import (
	"strings"
	"testing"

	"github.com/saiset-co/catalog-service/types"
)

func TestValidateInquiry(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name   string
		mutate func(in *types.InquiryInput)
		want   []string
	}{
		{"valid", func(in *types.InquiryInput) {}, nil},
		{"missing required", func(in *types.InquiryInput) {
			*in = types.InquiryInput{}
		}, []string{"Name is required", "Email is required", "Country is required", "Message is required"}},
		{"short name", func(in *types.InquiryInput) { in.Name = "J" }, []string{"Name must be between 2 and 100 characters"}},
		{"name chars", func(in *types.InquiryInput) { in.Name = "Jane {Doe}" }, []string{"Name contains invalid characters"}},
		{"bad email", func(in *types.InquiryInput) { in.Email = "jane@example" }, []string{"Invalid email format"}},
		{"long email", func(in *types.InquiryInput) {
			in.Email = strings.Repeat("a", 250) + "@x.io"
		}, []string{"Email address is too long"}},
		{"bad phone", func(in *types.InquiryInput) { in.Phone = "call me" }, []string{"Phone number contains invalid characters"}},
		{"good phone", func(in *types.InquiryInput) { in.Phone = "+1 (555) 010-2030" }, nil},
		{"short message", func(in *types.InquiryInput) { in.Message = "hi" }, []string{"Message must be between 10 and 2000 characters"}},
		{"handler injection", func(in *types.InquiryInput) {
			in.Company = "ACME onclick=steal()"
		}, []string{"Invalid content detected"}},
		{"data url", func(in *types.InquiryInput) {
			in.Message = "see data:text/html;base64,AAAA for details"
		}, []string{"Invalid content detected"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInquiry()
			tt.mutate(&in)

			got := v.ValidateInquiry(in)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateProduct_Partial(t *testing.T) {
	v := NewValidator()

	if errs := v.ValidateProduct(types.ProductInput{Featured: boolPtr(true)}, true); len(errs) != 0 {
		t.Fatalf("partial update of a flag should pass, got %v", errs)
	}

	if errs := v.ValidateProduct(types.ProductInput{Featured: boolPtr(true)}, false); len(errs) != 6 {
		t.Fatalf("full validation should flag every required field, got %v", errs)
	}

	bad := "Bad Slug"
	errs := v.ValidateProduct(types.ProductInput{Slug: &bad}, true)
	if len(errs) != 1 || !strings.Contains(errs[0], "Slug") {
		t.Fatalf("slug errors = %v", errs)
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  plain  ", "plain"},
		{`<b>"hi"</b>`, "&lt;b&gt;&quot;hi&quot;&lt;/b&gt;"},
		{"Tom & Jerry's", "Tom &amp; Jerry&#x27;s"},
		{"javascript:alert(1)", "alert(1)"},
		{"x onload = y", "x  y"},
	}

	for _, tt := range tests {
		if got := SanitizeString(tt.in); got != tt.want {
			t.Errorf("SanitizeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := strings.Repeat("é", maxTextLength+10)
	if got := SanitizeString(long); len([]rune(got)) != maxTextLength {
		t.Fatalf("expected truncation to %d runes, got %d", maxTextLength, len([]rune(got)))
	}
}

func TestGenerateSlug(t *testing.T) {
	tests := map[string]string{
		"NANUK 910 Protective Case": "nanuk-910-protective-case",
		"  --Hello,  World!--  ":    "hello-world",
		"WL-1200":                   "wl-1200",
		"Ünïcode only":              "n-code-only",
	}

	for in, want := range tests {
		if got := GenerateSlug(in); got != want {
			t.Errorf("GenerateSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeInquiry(t *testing.T) {
	got := SanitizeInquiry(types.InquiryInput{
		Name:    " Jane ",
		Email:   " JANE@EXAMPLE.COM ",
		Message: "I'd like a quote",
	})

	if got.Name != "Jane" || got.Email != "jane@example.com" || got.Message != "I&#x27;d like a quote" {
		t.Fatalf("sanitized = %+v", got)
	}
}
