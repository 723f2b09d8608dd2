package export

import (
	"fmt"
	"html/template"
)

// Service renders pages to the requested format.
type Service struct {
	store DataStore
}

func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export loads the page and renders it in the requested format.
func (s *Service) Export(req Request) (*Result, error) {
	info, err := s.store.GetPageInfo(req.PageID)
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}

	document, err := s.store.GetPageContent(req.PageID, req.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	data := TemplateData{
		Title:       info.Title,
		ContentHTML: template.HTML(RenderHTML(document)),
		Author:      info.UpdatedBy,
		UpdatedAt:   info.UpdatedAt,
		Threads:     []TemplateThread{},
	}

	if req.IncludeThreads {
		threads, err := s.store.ListThreads(req.PageID)
		if err != nil {
			return nil, fmt.Errorf("list threads: %w", err)
		}
		for _, t := range threads {
			thread := TemplateThread{
				Snapshot: t.Snapshot,
				Resolved: t.Resolved,
				Messages: []TemplateMessage{},
			}
			messages, err := s.store.ListThreadMessages(t.ID)
			if err == nil {
				for _, m := range messages {
					thread.Messages = append(thread.Messages, TemplateMessage{
						Author: m.Author,
						Body:   m.Body,
					})
				}
			}
			data.Threads = append(data.Threads, thread)
		}
	}

	rendered, err := RenderPageHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatHTML:
		return &Result{
			Data:     []byte(rendered),
			Filename: sanitizeFilename(info.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return renderPDF(rendered, info.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
