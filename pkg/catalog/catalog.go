package catalog

import (
	"fmt"
	"sort"
	"sync"
)

// ViewFlag marks a descriptor as the broad or restricted list-view member of
// its group. Most operations carry ViewNone.
type ViewFlag int

const (
	ViewNone ViewFlag = iota
	ViewFull
	ViewLimited
)

func (f ViewFlag) String() string {
	switch f {
	case ViewFull:
		return "full"
	case ViewLimited:
		return "limited"
	default:
		return "none"
	}
}

// Descriptor is one immutable catalog entry.
type Descriptor struct {
	Code             string   `json:"code"`
	Group            string   `json:"group"`
	ViewFlag         ViewFlag `json:"view_flag"`
	GrantsAllInGroup bool     `json:"grants_all_in_group"`
}

// GroupPartition is the resolved structure of one group: its aggregate
// toggle, its FULL/LIMITED view pair, and the plain operations. Any of the
// pointer fields may be nil for groups that lack that member.
type GroupPartition struct {
	Group   string
	All     *Descriptor
	Full    *Descriptor
	Limited *Descriptor
	Others  []Descriptor
}

// Codes returns every code in the partition, aggregate toggle included.
func (p GroupPartition) Codes() []string {
	codes := make([]string, 0, len(p.Others)+3)
	if p.All != nil {
		codes = append(codes, p.All.Code)
	}
	if p.Full != nil {
		codes = append(codes, p.Full.Code)
	}
	if p.Limited != nil {
		codes = append(codes, p.Limited.Code)
	}
	for _, d := range p.Others {
		codes = append(codes, d.Code)
	}
	return codes
}

// MemberCodes returns every code in the partition except the aggregate
// toggle. This is the set the toggle's value is derived from.
func (p GroupPartition) MemberCodes() []string {
	codes := p.Codes()
	if p.All == nil {
		return codes
	}
	members := codes[:0]
	for _, c := range codes {
		if c != p.All.Code {
			members = append(members, c)
		}
	}
	return members
}

// Catalog is the validated, immutable operation registry.
type Catalog struct {
	descriptors []Descriptor
	byCode      map[string]Descriptor
	partitions  map[string]GroupPartition
	groups      []string
}

// New builds a catalog from descriptors and validates the group invariant:
// codes unique, at most one aggregate toggle, one FULL and one LIMITED entry
// per group. A violation is a configuration error, not a runtime condition.
func New(descriptors []Descriptor) (*Catalog, error) {
	c := &Catalog{
		descriptors: make([]Descriptor, len(descriptors)),
		byCode:      make(map[string]Descriptor, len(descriptors)),
		partitions:  make(map[string]GroupPartition),
	}
	copy(c.descriptors, descriptors)

	for _, d := range c.descriptors {
		if d.Code == "" || d.Group == "" {
			return nil, fmt.Errorf("catalog: descriptor %+v missing code or group", d)
		}
		if _, dup := c.byCode[d.Code]; dup {
			return nil, fmt.Errorf("catalog: duplicate code %q", d.Code)
		}
		c.byCode[d.Code] = d

		part := c.partitions[d.Group]
		part.Group = d.Group
		switch {
		case d.GrantsAllInGroup:
			if d.ViewFlag != ViewNone {
				return nil, fmt.Errorf("catalog: %q is both aggregate toggle and %s view", d.Code, d.ViewFlag)
			}
			if part.All != nil {
				return nil, fmt.Errorf("catalog: group %q has two aggregate toggles: %q and %q", d.Group, part.All.Code, d.Code)
			}
			dd := d
			part.All = &dd
		case d.ViewFlag == ViewFull:
			if part.Full != nil {
				return nil, fmt.Errorf("catalog: group %q has two FULL views: %q and %q", d.Group, part.Full.Code, d.Code)
			}
			dd := d
			part.Full = &dd
		case d.ViewFlag == ViewLimited:
			if part.Limited != nil {
				return nil, fmt.Errorf("catalog: group %q has two LIMITED views: %q and %q", d.Group, part.Limited.Code, d.Code)
			}
			dd := d
			part.Limited = &dd
		default:
			part.Others = append(part.Others, d)
		}
		c.partitions[d.Group] = part
	}

	c.groups = make([]string, 0, len(c.partitions))
	for g := range c.partitions {
		c.groups = append(c.groups, g)
	}
	sort.Strings(c.groups)

	return c, nil
}

// Descriptors returns a copy of every catalog entry.
func (c *Catalog) Descriptors() []Descriptor {
	out := make([]Descriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// Codes returns every operation code in the catalog.
func (c *Catalog) Codes() []string {
	codes := make([]string, 0, len(c.descriptors))
	for _, d := range c.descriptors {
		codes = append(codes, d.Code)
	}
	return codes
}

// CodeSet returns the catalog's codes as a membership set.
func (c *Catalog) CodeSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.descriptors))
	for _, d := range c.descriptors {
		set[d.Code] = struct{}{}
	}
	return set
}

// Groups returns the distinct group names in sorted order.
func (c *Catalog) Groups() []string {
	out := make([]string, len(c.groups))
	copy(out, c.groups)
	return out
}

// Descriptor looks up one entry by code.
func (c *Catalog) Descriptor(code string) (Descriptor, bool) {
	d, ok := c.byCode[code]
	return d, ok
}

// GroupOf returns the group a code belongs to.
func (c *Catalog) GroupOf(code string) (string, bool) {
	d, ok := c.byCode[code]
	if !ok {
		return "", false
	}
	return d.Group, true
}

// Partition returns the resolved structure of one group.
func (c *Catalog) Partition(group string) (GroupPartition, bool) {
	p, ok := c.partitions[group]
	return p, ok
}

var (
	loadOnce   sync.Once
	loadedCat  *Catalog
	loadedErr  error
)

// Load returns the built-in kardex catalog, validating it exactly once per
// process. The error, if any, is sticky: a broken built-in catalog keeps
// failing for the lifetime of the process.
func Load() (*Catalog, error) {
	loadOnce.Do(func() {
		loadedCat, loadedErr = New(builtinDescriptors())
	})
	return loadedCat, loadedErr
}

// Operation codes for the kardex record-management application. Groups mirror
// the record kinds the product manages; not every group carries a FULL/LIMITED
// view split.
const (
	// persons
	OpAllPersons         = "ALL_PERSONS_OPS"
	OpViewFullPersons    = "VIEW_FULL_PERSONS_LIST"
	OpViewLimitedPersons = "VIEW_LIMITED_PERSONS_LIST"
	OpViewPersonCard     = "VIEW_PERSON_CARD"
	OpCreatePerson       = "CREATE_PERSON"
	OpEditPerson         = "EDIT_PERSON"
	OpDeletePerson       = "DELETE_PERSON"

	// affiliations
	OpAllAffiliations         = "ALL_AFFILIATIONS_OPS"
	OpViewFullAffiliations    = "VIEW_FULL_AFFILIATIONS_LIST"
	OpViewLimitedAffiliations = "VIEW_LIMITED_AFFILIATIONS_LIST"
	OpCreateAffiliation       = "CREATE_AFFILIATION"
	OpEditAffiliation         = "EDIT_AFFILIATION"
	OpDeleteAffiliation       = "DELETE_AFFILIATION"

	// toponyms (geographic hierarchy)
	OpAllToponyms     = "ALL_TOPONYMS_OPS"
	OpViewToponyms    = "VIEW_TOPONYMS_LIST"
	OpCreateToponym   = "CREATE_TOPONYM"
	OpEditToponym     = "EDIT_TOPONYM"
	OpDeleteToponym   = "DELETE_TOPONYM"

	// roles
	OpAllRoles   = "ALL_ROLES_OPS"
	OpViewRoles  = "VIEW_ROLES_LIST"
	OpCreateRole = "CREATE_ROLE"
	OpEditRole   = "EDIT_ROLE"
	OpDeleteRole = "DELETE_ROLE"
)

func builtinDescriptors() []Descriptor {
	return []Descriptor{
		{Code: OpAllPersons, Group: "persons", GrantsAllInGroup: true},
		{Code: OpViewFullPersons, Group: "persons", ViewFlag: ViewFull},
		{Code: OpViewLimitedPersons, Group: "persons", ViewFlag: ViewLimited},
		{Code: OpViewPersonCard, Group: "persons"},
		{Code: OpCreatePerson, Group: "persons"},
		{Code: OpEditPerson, Group: "persons"},
		{Code: OpDeletePerson, Group: "persons"},

		{Code: OpAllAffiliations, Group: "affiliations", GrantsAllInGroup: true},
		{Code: OpViewFullAffiliations, Group: "affiliations", ViewFlag: ViewFull},
		{Code: OpViewLimitedAffiliations, Group: "affiliations", ViewFlag: ViewLimited},
		{Code: OpCreateAffiliation, Group: "affiliations"},
		{Code: OpEditAffiliation, Group: "affiliations"},
		{Code: OpDeleteAffiliation, Group: "affiliations"},

		{Code: OpAllToponyms, Group: "toponyms", GrantsAllInGroup: true},
		{Code: OpViewToponyms, Group: "toponyms"},
		{Code: OpCreateToponym, Group: "toponyms"},
		{Code: OpEditToponym, Group: "toponyms"},
		{Code: OpDeleteToponym, Group: "toponyms"},

		{Code: OpAllRoles, Group: "roles", GrantsAllInGroup: true},
		{Code: OpViewRoles, Group: "roles"},
		{Code: OpCreateRole, Group: "roles"},
		{Code: OpEditRole, Group: "roles"},
		{Code: OpDeleteRole, Group: "roles"},
	}
}
