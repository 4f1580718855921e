// Package content defines the website content document, its compiled-in
// baseline, and the pure functions that merge and mutate it.
package content

import "time"

type Section string

const (
	SectionCompany     Section = "company"
	SectionHero        Section = "hero"
	SectionImpactStats Section = "impactStats"
	SectionPrograms    Section = "programs"
	SectionStories     Section = "stories"
	SectionGallery     Section = "gallery"
	SectionTeam        Section = "team"
	SectionStudents    Section = "students"
	SectionMaintenance Section = "maintenance"
)

var sections = []Section{
	SectionCompany,
	SectionHero,
	SectionImpactStats,
	SectionPrograms,
	SectionStories,
	SectionGallery,
	SectionTeam,
	SectionStudents,
	SectionMaintenance,
}

// Sections returns every editable section in document order.
func Sections() []Section {
	out := make([]Section, len(sections))
	copy(out, sections)
	return out
}

func ParseSection(value string) (Section, error) {
	for _, section := range sections {
		if string(section) == value {
			return section, nil
		}
	}
	return "", ErrUnknownSection
}

// WebsiteContent is the single shared document behind the public site.
// Values are treated as immutable: every edit goes through Apply, which
// returns a new value and leaves the old one intact.
type WebsiteContent struct {
	Company     CompanyInfo   `json:"company" yaml:"company"`
	Hero        Hero          `json:"hero" yaml:"hero"`
	ImpactStats []ImpactStat  `json:"impactStats" yaml:"impactStats"`
	Programs    []Program     `json:"programs" yaml:"programs"`
	Stories     []Story       `json:"stories" yaml:"stories"`
	Gallery     []GalleryItem `json:"gallery" yaml:"gallery"`
	Team        []TeamMember  `json:"team" yaml:"team"`
	Students    []Student     `json:"students" yaml:"students"`
	Maintenance bool          `json:"maintenance" yaml:"maintenance"`
	LastUpdated *time.Time    `json:"lastUpdated,omitempty" yaml:"-"`
}

type CompanyInfo struct {
	Name     string      `json:"name" yaml:"name"`
	Tagline  string      `json:"tagline" yaml:"tagline"`
	Email    string      `json:"email" yaml:"email"`
	Phone    string      `json:"phone" yaml:"phone"`
	WhatsApp string      `json:"whatsapp" yaml:"whatsapp"`
	Address  string      `json:"address" yaml:"address"`
	Social   SocialLinks `json:"social" yaml:"social"`
	Bank     BankDetails `json:"bank" yaml:"bank"`
}

type SocialLinks struct {
	Facebook  string `json:"facebook" yaml:"facebook"`
	Instagram string `json:"instagram" yaml:"instagram"`
	Twitter   string `json:"twitter" yaml:"twitter"`
	YouTube   string `json:"youtube" yaml:"youtube"`
	LinkedIn  string `json:"linkedin" yaml:"linkedin"`
}

type BankDetails struct {
	BankName      string `json:"bankName" yaml:"bankName"`
	AccountName   string `json:"accountName" yaml:"accountName"`
	AccountNumber string `json:"accountNumber" yaml:"accountNumber"`
	IFSC          string `json:"ifsc" yaml:"ifsc"`
	UPI           string `json:"upi" yaml:"upi"`
}

type Hero struct {
	Headline    string `json:"headline" yaml:"headline"`
	Subheadline string `json:"subheadline" yaml:"subheadline"`
	Image       string `json:"image" yaml:"image"`
}

type ImpactStat struct {
	Label  string `json:"label" yaml:"label"`
	Value  int    `json:"value" yaml:"value"`
	Suffix string `json:"suffix" yaml:"suffix"`
	Icon   string `json:"icon" yaml:"icon"`
}

type Program struct {
	ID          string        `json:"id" yaml:"id"`
	Title       string        `json:"title" yaml:"title"`
	Description string        `json:"description" yaml:"description"`
	Image       string        `json:"image" yaml:"image"`
	Stats       []ProgramStat `json:"stats" yaml:"stats"`
}

type ProgramStat struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

type Story struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Excerpt string `json:"excerpt" yaml:"excerpt"`
	Body    string `json:"body" yaml:"body"`
	Image   string `json:"image" yaml:"image"`
	Author  string `json:"author" yaml:"author"`
	Date    string `json:"date" yaml:"date"`
}

type GalleryItem struct {
	ID       string `json:"id" yaml:"id"`
	Category string `json:"category" yaml:"category"`
	URL      string `json:"url" yaml:"url"`
	Caption  string `json:"caption" yaml:"caption"`
}

type TeamMember struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Role  string `json:"role" yaml:"role"`
	Bio   string `json:"bio" yaml:"bio"`
	Photo string `json:"photo" yaml:"photo"`
}

// Student is a sponsorship profile shown on the donate pages.
type Student struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Age         int    `json:"age" yaml:"age"`
	Grade       string `json:"grade" yaml:"grade"`
	Story       string `json:"story" yaml:"story"`
	Photo       string `json:"photo" yaml:"photo"`
	MonthlyNeed int    `json:"monthlyNeed" yaml:"monthlyNeed"`
	Sponsored   bool   `json:"sponsored" yaml:"sponsored"`
}

// Clone returns a deep copy that shares no slices with c.
func (c WebsiteContent) Clone() WebsiteContent {
	out := c
	out.ImpactStats = cloneSlice(c.ImpactStats)
	out.Programs = clonePrograms(c.Programs)
	out.Stories = cloneSlice(c.Stories)
	out.Gallery = cloneSlice(c.Gallery)
	out.Team = cloneSlice(c.Team)
	out.Students = cloneSlice(c.Students)
	if c.LastUpdated != nil {
		ts := *c.LastUpdated
		out.LastUpdated = &ts
	}
	return out
}

func cloneSlice[T any](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func clonePrograms(items []Program) []Program {
	if items == nil {
		return nil
	}
	out := make([]Program, len(items))
	for i, item := range items {
		item.Stats = cloneSlice(item.Stats)
		out[i] = item
	}
	return out
}
