package notify

import (
	"html/template"

	"github.com/saiset-co/catalog-service/types"
)

type templateData struct {
	Inquiry  *types.Inquiry
	SiteName string
	Received string
}

var adminTemplate = template.Must(template.New("admin").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body>
<h2>{{if .Inquiry.ProductName}}New Product Inquiry{{else}}New Contact Form Submission{{end}}</h2>
{{with .Inquiry}}
{{if .ProductName}}<p><strong>Product:</strong> {{.ProductName}}</p>{{end}}
<p><strong>Customer:</strong> {{.Name}}</p>
<p><strong>Company:</strong> {{or .Company "N/A"}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Phone:</strong> {{or .Phone "N/A"}}</p>
<p><strong>Country:</strong> {{or .Country "N/A"}}</p>
{{if .ProductInterest}}<p><strong>Product interest:</strong> {{.ProductInterest}}</p>{{end}}
<p><strong>Quantity:</strong> {{or .Quantity "N/A"}}</p>
<p><strong>Message:</strong></p>
<p>{{.Message}}</p>
<hr>
<p><small>Inquiry ID: {{.ID}} | Source: {{.Source}}</small></p>
{{end}}
<p><small>Received {{.Received}}</small></p>
</body>
</html>
`))

var customerTemplate = template.Must(template.New("customer").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body>
<h2>Thank you for your inquiry!</h2>
{{with .Inquiry}}
<p>Dear {{.Name}},</p>
{{if .ProductName}}
<p>We have received your inquiry about <strong>{{.ProductName}}</strong> and will get back to you within 24 hours.</p>
<ul>
<li>Product: {{.ProductName}}</li>
<li>Quantity: {{or .Quantity "Not specified"}}</li>
<li>Message: {{.Message}}</li>
</ul>
{{else}}
<p>We have received your message and will get back to you within 24 hours.</p>
<blockquote>{{.Message}}</blockquote>
{{end}}
<hr>
<p><small>Reference ID: {{.ID}}</small></p>
{{end}}
<p>Best regards,<br>{{.SiteName}} Team</p>
</body>
</html>
`))
