// Package access resolves what a principal may do with one document version.
// The decision is a table lookup evaluated once per request.
package access

import (
	"strings"

	"living-science-documents/internal/domain"
)

// Capability is a set of permitted actions.
type Capability uint8

const (
	Read Capability = 1 << iota
	Write
	Review
	Publish
	Withdraw
	Moderate

	None Capability = 0
	All             = Read | Write | Review | Publish | Withdraw | Moderate
)

func (c Capability) Can(want Capability) bool {
	return want != None && c&want == want
}

func (c Capability) String() string {
	if c == None {
		return "none"
	}
	names := []struct {
		c    Capability
		name string
	}{
		{Read, "read"}, {Write, "write"}, {Review, "review"},
		{Publish, "publish"}, {Withdraw, "withdraw"}, {Moderate, "moderate"},
	}
	var parts []string
	for _, n := range names {
		if c&n.c != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Facts is everything the rule table needs to know about the version.
type Facts struct {
	Public      bool // published or archived
	Owner       bool // principal owns the publication
	Contributor bool // principal is linked to an author row
}

// FactsFor derives Facts from stored records.
func FactsFor(p domain.Principal, pub *domain.Publication, v *domain.DocumentVersion) Facts {
	f := Facts{}
	if v != nil {
		f.Public = v.Status.Public()
		f.Contributor = p.UserID != 0 && v.HasContributor(p.UserID)
	}
	if pub != nil {
		f.Owner = p.UserID != 0 && pub.OwnerID == p.UserID
	}
	return f
}

type rule struct {
	applies func(domain.Principal, Facts) bool
	grant   Capability
}

var rules = []rule{
	{func(_ domain.Principal, f Facts) bool { return f.Public }, Read},
	{func(_ domain.Principal, f Facts) bool { return f.Contributor }, Read | Write | Withdraw},
	{func(_ domain.Principal, f Facts) bool { return f.Owner }, Read | Review | Publish | Withdraw | Moderate},
	{func(p domain.Principal, _ Facts) bool { return p.Has(domain.RoleReviewer) }, Read | Review},
	{func(p domain.Principal, _ Facts) bool { return p.Has(domain.RoleStaff) }, All},
}

// Resolve unions the grants of every matching rule.
func Resolve(p domain.Principal, f Facts) Capability {
	c := None
	for _, r := range rules {
		if r.applies(p, f) {
			c |= r.grant
		}
	}
	return c
}
