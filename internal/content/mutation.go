package content

import (
	"errors"
	"fmt"

	"sitecms/api/internal/util"
)

var (
	ErrUnknownSection = errors.New("unknown content section")
	ErrDuplicateID    = errors.New("duplicate id")
)

// Mutation is a named edit to one section of the document.
type Mutation interface {
	Section() Section
	apply(c *WebsiteContent)
}

var actionLabels = map[Section]string{
	SectionCompany:     "update company",
	SectionHero:        "update hero",
	SectionImpactStats: "update impact stats",
	SectionPrograms:    "update programs",
	SectionStories:     "update stories",
	SectionGallery:     "update gallery",
	SectionTeam:        "update team",
	SectionStudents:    "update students",
	SectionMaintenance: "update maintenance",
}

// Labels for the convenience mutations that have their own audit action.
const (
	ActionAddGalleryItem    = "add gallery item"
	ActionDeleteGalleryItem = "delete gallery item"
	ActionToggleMaintenance = "toggle maintenance"
)

// ActionLabel names the audit action recorded when section is persisted.
func ActionLabel(section Section) string {
	if label, ok := actionLabels[section]; ok {
		return label
	}
	return "update " + string(section)
}

// Apply returns a new document with m applied. c is never modified.
func Apply(c WebsiteContent, m Mutation) (WebsiteContent, error) {
	if m == nil {
		return WebsiteContent{}, ErrUnknownSection
	}
	next := c.Clone()
	m.apply(&next)
	if err := ValidateSection(next, m.Section()); err != nil {
		return WebsiteContent{}, err
	}
	return next, nil
}

// Validate checks the id uniqueness invariants for programs and gallery items.
func Validate(c WebsiteContent) error {
	if err := ValidateSection(c, SectionPrograms); err != nil {
		return err
	}
	return ValidateSection(c, SectionGallery)
}

// ValidateSection checks only the invariants owned by section, so a bad list
// elsewhere in the document does not block unrelated edits.
func ValidateSection(c WebsiteContent, section Section) error {
	switch section {
	case SectionPrograms:
		seen := make(map[string]struct{}, len(c.Programs))
		for _, program := range c.Programs {
			if _, ok := seen[program.ID]; ok {
				return fmt.Errorf("program %q: %w", program.ID, ErrDuplicateID)
			}
			seen[program.ID] = struct{}{}
		}
	case SectionGallery:
		seen := make(map[string]struct{}, len(c.Gallery))
		for _, item := range c.Gallery {
			if _, ok := seen[item.ID]; ok {
				return fmt.Errorf("gallery item %q: %w", item.ID, ErrDuplicateID)
			}
			seen[item.ID] = struct{}{}
		}
	}
	return nil
}

// RepairDuplicateIDs gives every repeated program or gallery id after its
// first occurrence a fresh id. It returns the repaired copy and the ids that
// were repeated; c is never modified.
func RepairDuplicateIDs(c WebsiteContent) (WebsiteContent, []string) {
	next := c.Clone()
	var repeated []string

	programIDs := make(map[string]struct{}, len(next.Programs))
	for _, program := range next.Programs {
		programIDs[program.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(next.Programs))
	for i, program := range next.Programs {
		if _, ok := seen[program.ID]; !ok {
			seen[program.ID] = struct{}{}
			continue
		}
		repeated = append(repeated, "program "+program.ID)
		next.Programs[i].ID = freshID(program.ID, programIDs)
		seen[next.Programs[i].ID] = struct{}{}
	}

	galleryIDs := make(map[string]struct{}, len(next.Gallery))
	for _, item := range next.Gallery {
		galleryIDs[item.ID] = struct{}{}
	}
	seen = make(map[string]struct{}, len(next.Gallery))
	for i, item := range next.Gallery {
		if _, ok := seen[item.ID]; !ok {
			seen[item.ID] = struct{}{}
			continue
		}
		repeated = append(repeated, "gallery item "+item.ID)
		next.Gallery[i].ID = freshID("gal", galleryIDs)
		seen[next.Gallery[i].ID] = struct{}{}
	}
	return next, repeated
}

func freshID(prefix string, taken map[string]struct{}) string {
	for {
		id := util.NewID(prefix)
		if _, ok := taken[id]; !ok {
			taken[id] = struct{}{}
			return id
		}
	}
}

// CompanyPatch is merged key by key into the company record. Social and Bank
// are replaced whole when present.
type CompanyPatch struct {
	Name     *string      `json:"name"`
	Tagline  *string      `json:"tagline"`
	Email    *string      `json:"email"`
	Phone    *string      `json:"phone"`
	WhatsApp *string      `json:"whatsapp"`
	Address  *string      `json:"address"`
	Social   *SocialLinks `json:"social"`
	Bank     *BankDetails `json:"bank"`
}

func (CompanyPatch) Section() Section { return SectionCompany }

func (p CompanyPatch) apply(c *WebsiteContent) {
	setString(&c.Company.Name, p.Name)
	setString(&c.Company.Tagline, p.Tagline)
	setString(&c.Company.Email, p.Email)
	setString(&c.Company.Phone, p.Phone)
	setString(&c.Company.WhatsApp, p.WhatsApp)
	setString(&c.Company.Address, p.Address)
	if p.Social != nil {
		c.Company.Social = *p.Social
	}
	if p.Bank != nil {
		c.Company.Bank = *p.Bank
	}
}

type HeroPatch struct {
	Headline    *string `json:"headline"`
	Subheadline *string `json:"subheadline"`
	Image       *string `json:"image"`
}

func (HeroPatch) Section() Section { return SectionHero }

func (p HeroPatch) apply(c *WebsiteContent) {
	setString(&c.Hero.Headline, p.Headline)
	setString(&c.Hero.Subheadline, p.Subheadline)
	setString(&c.Hero.Image, p.Image)
}

// List mutations carry the entire replacement list; nothing is diffed.

type ImpactStatsList []ImpactStat

func (ImpactStatsList) Section() Section { return SectionImpactStats }

func (l ImpactStatsList) apply(c *WebsiteContent) {
	c.ImpactStats = nonNil(cloneSlice([]ImpactStat(l)))
}

type ProgramsList []Program

func (ProgramsList) Section() Section { return SectionPrograms }

func (l ProgramsList) apply(c *WebsiteContent) {
	c.Programs = nonNil(clonePrograms([]Program(l)))
}

type StoriesList []Story

func (StoriesList) Section() Section { return SectionStories }

func (l StoriesList) apply(c *WebsiteContent) {
	c.Stories = nonNil(cloneSlice([]Story(l)))
}

type GalleryList []GalleryItem

func (GalleryList) Section() Section { return SectionGallery }

func (l GalleryList) apply(c *WebsiteContent) {
	c.Gallery = nonNil(cloneSlice([]GalleryItem(l)))
}

type TeamList []TeamMember

func (TeamList) Section() Section { return SectionTeam }

func (l TeamList) apply(c *WebsiteContent) {
	c.Team = nonNil(cloneSlice([]TeamMember(l)))
}

type StudentsList []Student

func (StudentsList) Section() Section { return SectionStudents }

func (l StudentsList) apply(c *WebsiteContent) {
	c.Students = nonNil(cloneSlice([]Student(l)))
}

type MaintenanceToggle bool

func (MaintenanceToggle) Section() Section { return SectionMaintenance }

func (t MaintenanceToggle) apply(c *WebsiteContent) {
	c.Maintenance = bool(t)
}

// AddGalleryItem returns a new list with item placed first under a fresh id
// that no existing item uses.
func AddGalleryItem(list []GalleryItem, item GalleryItem) ([]GalleryItem, GalleryItem) {
	taken := make(map[string]struct{}, len(list))
	for _, existing := range list {
		taken[existing.ID] = struct{}{}
	}
	for {
		item.ID = util.NewID("gal")
		if _, ok := taken[item.ID]; !ok {
			break
		}
	}
	out := make([]GalleryItem, 0, len(list)+1)
	out = append(out, item)
	out = append(out, list...)
	return out, item
}

// RemoveGalleryItem returns a new list without the first item whose id
// matches. The second result reports whether anything was removed.
func RemoveGalleryItem(list []GalleryItem, id string) ([]GalleryItem, bool) {
	out := make([]GalleryItem, 0, len(list))
	removed := false
	for _, item := range list {
		if !removed && item.ID == id {
			removed = true
			continue
		}
		out = append(out, item)
	}
	return out, removed
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
