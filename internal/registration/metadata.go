package registration

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Metadata is the descriptive record pushed for one version.
type Metadata struct {
	DOI             string    `validate:"required"`
	Title           string    `validate:"required"`
	Creators        []Creator `validate:"min=1,dive"`
	Publisher       string    `validate:"required"`
	PublicationYear int       `validate:"required,gte=1000"`
	URL             string    `validate:"required,url"`
	Version         uint
	// ContainerDOI links the version to its publication.
	ContainerDOI string
	Subjects     []string
	Abstract     string
}

type Creator struct {
	Name        string `validate:"required"`
	ORCID       string
	Affiliation string
}

var validate = validator.New()

func (m Metadata) Validate() error {
	return validate.Struct(m)
}

// DataCite JSON:API envelope.
type doiDocument struct {
	Data doiData `json:"data"`
}

type doiData struct {
	ID         string        `json:"id,omitempty"`
	Type       string        `json:"type"`
	Attributes doiAttributes `json:"attributes"`
}

type doiAttributes struct {
	DOI                string              `json:"doi,omitempty"`
	Event              string              `json:"event,omitempty"`
	Titles             []title             `json:"titles,omitempty"`
	Creators           []creator           `json:"creators,omitempty"`
	Publisher          string              `json:"publisher,omitempty"`
	PublicationYear    int                 `json:"publicationYear,omitempty"`
	Types              *resourceTypes      `json:"types,omitempty"`
	URL                string              `json:"url,omitempty"`
	Version            string              `json:"version,omitempty"`
	Subjects           []subject           `json:"subjects,omitempty"`
	Descriptions       []description       `json:"descriptions,omitempty"`
	RelatedIdentifiers []relatedIdentifier `json:"relatedIdentifiers,omitempty"`
	SchemaVersion      string              `json:"schemaVersion,omitempty"`
}

type title struct {
	Title string `json:"title"`
}

type creator struct {
	Name            string           `json:"name"`
	NameType        string           `json:"nameType"`
	NameIdentifiers []nameIdentifier `json:"nameIdentifiers,omitempty"`
	Affiliation     []affiliation    `json:"affiliation,omitempty"`
}

type nameIdentifier struct {
	NameIdentifier       string `json:"nameIdentifier"`
	NameIdentifierScheme string `json:"nameIdentifierScheme"`
	SchemeURI            string `json:"schemeUri"`
}

type affiliation struct {
	Name string `json:"name"`
}

type resourceTypes struct {
	ResourceTypeGeneral string `json:"resourceTypeGeneral"`
	ResourceType        string `json:"resourceType,omitempty"`
}

type subject struct {
	Subject string `json:"subject"`
}

type description struct {
	Description     string `json:"description"`
	DescriptionType string `json:"descriptionType"`
}

type relatedIdentifier struct {
	RelatedIdentifier     string `json:"relatedIdentifier"`
	RelatedIdentifierType string `json:"relatedIdentifierType"`
	RelationType          string `json:"relationType"`
}

func eventDocument(doi, event string) doiDocument {
	return doiDocument{Data: doiData{
		ID:         doi,
		Type:       "dois",
		Attributes: doiAttributes{Event: event},
	}}
}

func draftDocument(doi string) doiDocument {
	return doiDocument{Data: doiData{
		Type:       "dois",
		Attributes: doiAttributes{DOI: doi},
	}}
}

func metadataDocument(m Metadata) doiDocument {
	attrs := doiAttributes{
		DOI:             m.DOI,
		Titles:          []title{{Title: m.Title}},
		Publisher:       m.Publisher,
		PublicationYear: m.PublicationYear,
		Types:           &resourceTypes{ResourceTypeGeneral: "Text", ResourceType: "Article"},
		URL:             m.URL,
		SchemaVersion:   "http://datacite.org/schema/kernel-4",
	}
	if m.Version > 0 {
		attrs.Version = strconv.FormatUint(uint64(m.Version), 10)
	}
	for _, c := range m.Creators {
		cr := creator{Name: c.Name, NameType: "Personal"}
		if orcid := strings.TrimSpace(c.ORCID); orcid != "" {
			if !strings.HasPrefix(orcid, "https://orcid.org/") {
				orcid = "https://orcid.org/" + orcid
			}
			cr.NameIdentifiers = []nameIdentifier{{
				NameIdentifier:       orcid,
				NameIdentifierScheme: "ORCID",
				SchemeURI:            "https://orcid.org",
			}}
		}
		if c.Affiliation != "" {
			cr.Affiliation = []affiliation{{Name: c.Affiliation}}
		}
		attrs.Creators = append(attrs.Creators, cr)
	}
	for _, s := range m.Subjects {
		attrs.Subjects = append(attrs.Subjects, subject{Subject: s})
	}
	if m.Abstract != "" {
		attrs.Descriptions = []description{{Description: m.Abstract, DescriptionType: "Abstract"}}
	}
	if m.ContainerDOI != "" {
		attrs.RelatedIdentifiers = []relatedIdentifier{{
			RelatedIdentifier:     m.ContainerDOI,
			RelatedIdentifierType: "DOI",
			RelationType:          "IsVersionOf",
		}}
	}
	return doiDocument{Data: doiData{ID: m.DOI, Type: "dois", Attributes: attrs}}
}
