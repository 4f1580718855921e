package app

import (
	"context"
	"encoding/json"
	"fmt"

	"sitecms/api/internal/content"
	"sitecms/api/internal/contentsync"
)

func (s *Service) Content() content.WebsiteContent {
	return s.content.Current()
}

// UpdateSection decodes raw as the edit for section and applies it. Company
// and hero bodies merge key by key; list bodies replace the whole list.
func (s *Service) UpdateSection(ctx context.Context, section content.Section, raw json.RawMessage) (content.WebsiteContent, <-chan contentsync.Outcome, error) {
	m, err := decodeMutation(section, raw)
	if err != nil {
		return content.WebsiteContent{}, nil, err
	}
	next, done, err := s.content.Mutate(ctx, m)
	if err == nil {
		s.reindex()
	}
	return next, done, err
}

func (s *Service) SaveSection(ctx context.Context, section content.Section) (<-chan contentsync.Outcome, error) {
	return s.content.Save(ctx, section)
}

func (s *Service) AddGalleryItem(ctx context.Context, item content.GalleryItem) (content.WebsiteContent, content.GalleryItem, <-chan contentsync.Outcome, error) {
	if item.URL == "" {
		return content.WebsiteContent{}, content.GalleryItem{}, nil, validationError("Gallery item url is required")
	}
	next, added, done, err := s.content.AddGalleryItem(ctx, item)
	if err == nil {
		s.reindex()
	}
	return next, added, done, err
}

func (s *Service) RemoveGalleryItem(ctx context.Context, id string) (content.WebsiteContent, <-chan contentsync.Outcome, error) {
	next, done, err := s.content.RemoveGalleryItem(ctx, id)
	if err == nil {
		s.reindex()
	}
	return next, done, err
}

func (s *Service) SetMaintenance(ctx context.Context, enabled bool) (content.WebsiteContent, <-chan contentsync.Outcome, error) {
	next, done, err := s.content.SetMaintenance(ctx, enabled)
	if err == nil {
		s.reindex()
	}
	return next, done, err
}

// Reload discards local state in favour of the stored document. The error is
// non-nil when the baseline had to be used instead.
func (s *Service) Reload(ctx context.Context) (content.WebsiteContent, error) {
	loaded, err := s.content.Load(ctx)
	s.reindex()
	return loaded, err
}

func decodeMutation(section content.Section, raw json.RawMessage) (content.Mutation, error) {
	if _, err := content.ParseSection(string(section)); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, invalidBody("Request body is required")
	}

	var (
		m   content.Mutation
		err error
	)
	switch section {
	case content.SectionCompany:
		m, err = decodeAs[content.CompanyPatch](raw)
	case content.SectionHero:
		m, err = decodeAs[content.HeroPatch](raw)
	case content.SectionImpactStats:
		m, err = decodeAs[content.ImpactStatsList](raw)
	case content.SectionPrograms:
		m, err = decodeAs[content.ProgramsList](raw)
	case content.SectionStories:
		m, err = decodeAs[content.StoriesList](raw)
	case content.SectionGallery:
		m, err = decodeAs[content.GalleryList](raw)
	case content.SectionTeam:
		m, err = decodeAs[content.TeamList](raw)
	case content.SectionStudents:
		m, err = decodeAs[content.StudentsList](raw)
	case content.SectionMaintenance:
		m, err = decodeAs[content.MaintenanceToggle](raw)
	default:
		return nil, content.ErrUnknownSection
	}
	if err != nil {
		return nil, invalidBody(fmt.Sprintf("Invalid %s body", section))
	}
	return m, nil
}

func decodeAs[M content.Mutation](raw json.RawMessage) (content.Mutation, error) {
	var m M
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
