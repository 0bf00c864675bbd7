package gemini

import (
	"bytes"
	"strings"
	"text/template"
)

// promptData carries the values interpolated into the prompt template.
type promptData struct {
	Domain    string
	URL       string
	Text      string
	TechStack string
}

// promptTemplateText instructs the model to return a single JSON object
// matching the domain.CompanyProfile shape. Unknown fields must be
// empty strings or empty lists so the response always unmarshals.
const promptTemplateText = `You are a business analyst extracting a structured company profile from website content.

Website domain: {{.Domain}}
Page URL: {{.URL}}
{{if .TechStack}}Detected technologies: {{.TechStack}}
{{end}}
Website text:
---
{{.Text}}
---

Return ONLY a single JSON object with exactly this structure. Use empty strings for unknown text fields and empty arrays for unknown lists. Do not invent information that is not supported by the text.

{
  "contact_information": {
    "text": "raw contact section text if present",
    "company_name": "",
    "full_address": "",
    "phone": "",
    "sales_phone": "",
    "fax": "",
    "mobile": "",
    "other_numbers": "",
    "email": "",
    "hours_of_operation": "",
    "hq_indicator": "yes/no/unknown"
  },
  "company_information": {
    "company_name": "",
    "acronym": "",
    "logo_url": ""
  },
  "social_media": {
    "linkedin": "",
    "facebook": "",
    "x": "",
    "instagram": "",
    "youtube": "",
    "blog": "",
    "articles": ""
  },
  "people_information": [
    {"name": "", "title": "", "email": "", "url": ""}
  ],
  "description_industry": {
    "long_description": "2-3 sentence description of what the company does",
    "short_description": "one sentence",
    "sic_code": "best matching UK SIC 2007 code",
    "sic_text": "official text for that SIC code",
    "sub_industry": "",
    "industry": "",
    "sector": ""
  },
  "certifications": [],
  "products": [],
  "services": []
}`

var promptTemplate = template.Must(template.New("profile").Parse(promptTemplateText))

// buildPrompt renders the extraction prompt for the given content
// fields.
func buildPrompt(domain, url, text string, techStack []string) (string, error) {
	data := promptData{
		Domain:    domain,
		URL:       url,
		Text:      text,
		TechStack: strings.Join(techStack, ", "),
	}

	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
