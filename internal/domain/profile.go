package domain

// CompanyProfile is the structured result extracted from a company
// website. The shape mirrors the extraction prompt: missing string
// fields stay empty and missing lists stay empty rather than nil-checked
// by consumers.
type CompanyProfile struct {
	ContactInformation  ContactInformation  `json:"contact_information"`
	CompanyInformation  CompanyInformation  `json:"company_information"`
	SocialMedia         SocialMedia         `json:"social_media"`
	People              []Person            `json:"people_information"`
	DescriptionIndustry DescriptionIndustry `json:"description_industry"`
	Certifications      []string            `json:"certifications"`
	Products            []string            `json:"products"`
	Services            []string            `json:"services"`
	TechStack           []string            `json:"tech_stack,omitempty"`
}

// ContactInformation holds the contact details found on the site.
type ContactInformation struct {
	Text             string `json:"text"`
	CompanyName      string `json:"company_name"`
	FullAddress      string `json:"full_address"`
	Phone            string `json:"phone"`
	SalesPhone       string `json:"sales_phone"`
	Fax              string `json:"fax"`
	Mobile           string `json:"mobile"`
	OtherNumbers     string `json:"other_numbers"`
	Email            string `json:"email"`
	HoursOfOperation string `json:"hours_of_operation"`
	HQIndicator      string `json:"hq_indicator"`
}

// CompanyInformation holds the company identity fields.
type CompanyInformation struct {
	CompanyName string `json:"company_name"`
	Acronym     string `json:"acronym"`
	LogoURL     string `json:"logo_url"`
}

// SocialMedia holds the company's social profile URLs.
type SocialMedia struct {
	LinkedIn  string `json:"linkedin"`
	Facebook  string `json:"facebook"`
	X         string `json:"x"`
	Instagram string `json:"instagram"`
	YouTube   string `json:"youtube"`
	Blog      string `json:"blog"`
	Articles  string `json:"articles"`
}

// Person is a named contact found on the site.
type Person struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Email string `json:"email"`
	URL   string `json:"url"`
}

// DescriptionIndustry holds the company description and industry
// classification, including the UK SIC 2007 code.
type DescriptionIndustry struct {
	LongDescription  string `json:"long_description"`
	ShortDescription string `json:"short_description"`
	SICCode          string `json:"sic_code"`
	SICText          string `json:"sic_text"`
	SubIndustry      string `json:"sub_industry"`
	Industry         string `json:"industry"`
	Sector           string `json:"sector"`
}

// CompanyName returns the best available name for the company,
// preferring the company information block over the contact block.
func (p *CompanyProfile) CompanyName() string {
	if p.CompanyInformation.CompanyName != "" {
		return p.CompanyInformation.CompanyName
	}
	return p.ContactInformation.CompanyName
}
