package content

import (
	"encoding/json"
	"fmt"
	"time"
)

// Partial is a stored document decoded without assuming it carries every
// field. A nil pointer or nil slice means the field was absent (or null).
type Partial struct {
	Company     *PartialCompany `json:"company"`
	Hero        *PartialHero    `json:"hero"`
	ImpactStats []ImpactStat    `json:"impactStats"`
	Programs    []Program       `json:"programs"`
	Stories     []Story         `json:"stories"`
	Gallery     []GalleryItem   `json:"gallery"`
	Team        []TeamMember    `json:"team"`
	Students    []Student       `json:"students"`
	Maintenance *bool           `json:"maintenance"`
	LastUpdated *time.Time      `json:"lastUpdated"`
}

type PartialCompany struct {
	Name     *string        `json:"name"`
	Tagline  *string        `json:"tagline"`
	Email    *string        `json:"email"`
	Phone    *string        `json:"phone"`
	WhatsApp *string        `json:"whatsapp"`
	Address  *string        `json:"address"`
	Social   *PartialSocial `json:"social"`
	Bank     *PartialBank   `json:"bank"`
}

type PartialSocial struct {
	Facebook  *string `json:"facebook"`
	Instagram *string `json:"instagram"`
	Twitter   *string `json:"twitter"`
	YouTube   *string `json:"youtube"`
	LinkedIn  *string `json:"linkedin"`
}

type PartialBank struct {
	BankName      *string `json:"bankName"`
	AccountName   *string `json:"accountName"`
	AccountNumber *string `json:"accountNumber"`
	IFSC          *string `json:"ifsc"`
	UPI           *string `json:"upi"`
}

type PartialHero struct {
	Headline    *string `json:"headline"`
	Subheadline *string `json:"subheadline"`
	Image       *string `json:"image"`
}

// DecodePartial parses a stored document. Unknown keys are ignored so that
// documents written by newer schema versions still load.
func DecodePartial(raw []byte) (Partial, error) {
	var partial Partial
	if len(raw) == 0 {
		return partial, nil
	}
	if err := json.Unmarshal(raw, &partial); err != nil {
		return Partial{}, fmt.Errorf("decode content document: %w", err)
	}
	return partial, nil
}

// Merge lays remote on top of base field by field. Record sections merge per
// key (recursively for company.social and company.bank); list sections are
// replaced whole when present. Fields absent from remote keep base's value,
// which is what lets old stored documents pick up fields added later.
func Merge(base WebsiteContent, remote Partial) WebsiteContent {
	out := base.Clone()

	if remote.Company != nil {
		out.Company = mergeCompany(out.Company, *remote.Company)
	}
	if remote.Hero != nil {
		out.Hero = mergeHero(out.Hero, *remote.Hero)
	}
	if remote.ImpactStats != nil {
		out.ImpactStats = cloneSlice(remote.ImpactStats)
	}
	if remote.Programs != nil {
		out.Programs = clonePrograms(remote.Programs)
	}
	if remote.Stories != nil {
		out.Stories = cloneSlice(remote.Stories)
	}
	if remote.Gallery != nil {
		out.Gallery = cloneSlice(remote.Gallery)
	}
	if remote.Team != nil {
		out.Team = cloneSlice(remote.Team)
	}
	if remote.Students != nil {
		out.Students = cloneSlice(remote.Students)
	}
	if remote.Maintenance != nil {
		out.Maintenance = *remote.Maintenance
	}
	if remote.LastUpdated != nil {
		ts := *remote.LastUpdated
		out.LastUpdated = &ts
	}
	return out
}

func mergeCompany(base CompanyInfo, p PartialCompany) CompanyInfo {
	setString(&base.Name, p.Name)
	setString(&base.Tagline, p.Tagline)
	setString(&base.Email, p.Email)
	setString(&base.Phone, p.Phone)
	setString(&base.WhatsApp, p.WhatsApp)
	setString(&base.Address, p.Address)
	if p.Social != nil {
		setString(&base.Social.Facebook, p.Social.Facebook)
		setString(&base.Social.Instagram, p.Social.Instagram)
		setString(&base.Social.Twitter, p.Social.Twitter)
		setString(&base.Social.YouTube, p.Social.YouTube)
		setString(&base.Social.LinkedIn, p.Social.LinkedIn)
	}
	if p.Bank != nil {
		setString(&base.Bank.BankName, p.Bank.BankName)
		setString(&base.Bank.AccountName, p.Bank.AccountName)
		setString(&base.Bank.AccountNumber, p.Bank.AccountNumber)
		setString(&base.Bank.IFSC, p.Bank.IFSC)
		setString(&base.Bank.UPI, p.Bank.UPI)
	}
	return base
}

func mergeHero(base Hero, p PartialHero) Hero {
	setString(&base.Headline, p.Headline)
	setString(&base.Subheadline, p.Subheadline)
	setString(&base.Image, p.Image)
	return base
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
