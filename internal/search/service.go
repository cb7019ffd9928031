package search

import (
	"context"

	"safetycheck/api/internal/log"
)

type indexBackend interface {
	Searcher
	Indexer
}

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	primary  indexBackend
	fallback Searcher
	loader   *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	s := &Service{loader: pgfts}
	if meili != nil {
		s.primary = meili
	}
	if pgfts != nil {
		s.fallback = pgfts
	}
	return s
}

func (s *Service) primaryHealthy() bool {
	return s.primary != nil && s.primary.Healthy()
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.primaryHealthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "meilisearch"}
		}
		log.Warnf("search: meilisearch error, falling back to postgres: %v", err)
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text, Backend: "none"}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Errorf("search: postgres error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Backend: "postgres"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "postgres"}
}

// IndexInspection indexes an inspection (fire-and-forget to Meilisearch).
func (s *Service) IndexInspection(rec InspectionRecord) {
	if !s.primaryHealthy() {
		return
	}
	go func() {
		if err := s.primary.IndexInspection(rec); err != nil {
			log.Warnf("search: index inspection %s: %v", rec.ID, err)
		}
	}()
}

// DeleteInspection removes an inspection from the index (fire-and-forget).
func (s *Service) DeleteInspection(id string) {
	if !s.primaryHealthy() {
		return
	}
	go func() {
		if err := s.primary.DeleteInspection(id); err != nil {
			log.Warnf("search: delete inspection %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG pushes every inspection from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if !s.primaryHealthy() || s.loader == nil {
		return
	}
	records, err := s.loader.LoadAllRecords(ctx)
	if err != nil {
		log.Warnf("search: reindex load failed: %v", err)
		return
	}
	if err := s.primary.IndexInspections(records); err != nil {
		log.Warnf("search: reindex inspections: %v", err)
		return
	}
	log.Infof("search: reindexed %d inspections", len(records))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
