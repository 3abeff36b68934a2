package domain

// ContentFields holds the citable text of a version. Only these fields take
// part in change detection; status and audit columns live on DocumentVersion.
type ContentFields struct {
	TechnicalAbstract    string `json:"technical_abstract"`
	NonTechnicalAbstract string `json:"non_technical_abstract"`
	Introduction         string `json:"introduction"`
	Methodology          string `json:"methodology"`
	MainText             string `json:"main_text"`
	Conclusion           string `json:"conclusion"`
	AuthorContributions  string `json:"author_contributions"`
	ConflictsOfInterest  string `json:"conflicts_of_interest"`
	Acknowledgments      string `json:"acknowledgments"`
	Funding              string `json:"funding"`
	References           string `json:"references"`
	ReviewerResponse     string `json:"reviewer_response"`
}

// Diff returns the json names of fields whose values differ between c and other.
func (c ContentFields) Diff(other ContentFields) []string {
	var changed []string
	check := func(name, a, b string) {
		if a != b {
			changed = append(changed, name)
		}
	}
	check("technical_abstract", c.TechnicalAbstract, other.TechnicalAbstract)
	check("non_technical_abstract", c.NonTechnicalAbstract, other.NonTechnicalAbstract)
	check("introduction", c.Introduction, other.Introduction)
	check("methodology", c.Methodology, other.Methodology)
	check("main_text", c.MainText, other.MainText)
	check("conclusion", c.Conclusion, other.Conclusion)
	check("author_contributions", c.AuthorContributions, other.AuthorContributions)
	check("conflicts_of_interest", c.ConflictsOfInterest, other.ConflictsOfInterest)
	check("acknowledgments", c.Acknowledgments, other.Acknowledgments)
	check("funding", c.Funding, other.Funding)
	check("references", c.References, other.References)
	check("reviewer_response", c.ReviewerResponse, other.ReviewerResponse)
	return changed
}

// ContentPatch carries proposed values. A nil field means "not supplied" and
// keeps the prior value.
type ContentPatch struct {
	TechnicalAbstract    *string `json:"technical_abstract"`
	NonTechnicalAbstract *string `json:"non_technical_abstract"`
	Introduction         *string `json:"introduction"`
	Methodology          *string `json:"methodology"`
	MainText             *string `json:"main_text"`
	Conclusion           *string `json:"conclusion"`
	AuthorContributions  *string `json:"author_contributions"`
	ConflictsOfInterest  *string `json:"conflicts_of_interest"`
	Acknowledgments      *string `json:"acknowledgments"`
	Funding              *string `json:"funding"`
	References           *string `json:"references"`
	ReviewerResponse     *string `json:"reviewer_response"`
}

// Apply overlays the supplied fields of p onto base.
func (p ContentPatch) Apply(base ContentFields) ContentFields {
	out := base
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&out.TechnicalAbstract, p.TechnicalAbstract)
	set(&out.NonTechnicalAbstract, p.NonTechnicalAbstract)
	set(&out.Introduction, p.Introduction)
	set(&out.Methodology, p.Methodology)
	set(&out.MainText, p.MainText)
	set(&out.Conclusion, p.Conclusion)
	set(&out.AuthorContributions, p.AuthorContributions)
	set(&out.ConflictsOfInterest, p.ConflictsOfInterest)
	set(&out.Acknowledgments, p.Acknowledgments)
	set(&out.Funding, p.Funding)
	set(&out.References, p.References)
	set(&out.ReviewerResponse, p.ReviewerResponse)
	return out
}
