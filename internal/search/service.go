package search

import (
	"github.com/rs/zerolog"
)

// Service fronts the search backends: Meilisearch when configured and
// healthy, Postgres full text otherwise. Indexing is fire and forget so a
// slow or dead index never blocks a publish.
type Service struct {
	meili  *Meili
	pgfts  *PgFTS
	logger zerolog.Logger
}

func NewService(meili *Meili, pgfts *PgFTS, logger zerolog.Logger) *Service {
	return &Service{meili: meili, pgfts: pgfts, logger: logger}
}

// Search routes the query to the best available backend.
func (s *Service) Search(q Query) (Response, error) {
	resp := Response{Query: q.Text, Results: []Result{}}

	if q.Text == "" {
		return resp, nil
	}

	backend := s.backend()
	if backend == nil {
		return resp, nil
	}

	results, total, err := backend.Search(q)
	if err != nil && s.meili != nil && backend == Searcher(s.meili) && s.pgfts != nil {
		s.logger.Warn().Err(err).Msg("search: meilisearch failed, falling back to postgres")
		results, total, err = s.pgfts.Search(q)
	}
	if err != nil {
		return resp, err
	}

	if results != nil {
		resp.Results = results
	}
	resp.Total = total
	return resp, nil
}

func (s *Service) backend() Searcher {
	if s.meili != nil && s.meili.Healthy() {
		return s.meili
	}
	if s.pgfts != nil {
		return s.pgfts
	}
	return nil
}

// IndexPage pushes a published page version to the index in the background.
func (s *Service) IndexPage(p PageRecord) {
	if s.meili == nil {
		return
	}
	go func() {
		if err := s.meili.IndexPage(p); err != nil {
			s.logger.Warn().Err(err).Str("page_id", p.ID).Msg("search: index page failed")
		}
	}()
}

// IndexThread pushes a comment thread to the index in the background.
func (s *Service) IndexThread(t ThreadRecord) {
	if s.meili == nil {
		return
	}
	go func() {
		if err := s.meili.IndexThread(t); err != nil {
			s.logger.Warn().Err(err).Str("thread_id", t.ID).Msg("search: index thread failed")
		}
	}()
}

// RemovePage drops a page from the index in the background.
func (s *Service) RemovePage(id string) {
	if s.meili == nil {
		return
	}
	go func() {
		if err := s.meili.DeletePage(id); err != nil {
			s.logger.Warn().Err(err).Str("page_id", id).Msg("search: delete page failed")
		}
	}()
}

// RemoveThread drops a thread from the index in the background.
func (s *Service) RemoveThread(id string) {
	if s.meili == nil {
		return
	}
	go func() {
		if err := s.meili.DeleteThread(id); err != nil {
			s.logger.Warn().Err(err).Str("thread_id", id).Msg("search: delete thread failed")
		}
	}()
}
