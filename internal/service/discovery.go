package service

import (
	"context"
	"errors"
	"time"

	"github.com/portside-labs/portside/internal/domain"
	"github.com/portside-labs/portside/internal/matching"
	"github.com/portside-labs/portside/internal/telemetry"
	"github.com/rs/zerolog"
)

// ThreadLinkRepositoryInterface defines the store operations discovery needs.
type ThreadLinkRepositoryInterface interface {
	GetByOrder(ctx context.Context, orderNumber string) (*domain.ThreadLink, error)
	Upsert(ctx context.Context, link *domain.ThreadLink) error
}

// ConversationSearcher is the candidate source: the two read-only query
// shapes the communication platform offers.
type ConversationSearcher interface {
	SearchByContact(ctx context.Context, handle string) ([]domain.Candidate, error)
	SearchByQuery(ctx context.Context, query string) ([]domain.Candidate, error)
}

// EventSink receives thread events after the durable store write.
// Emission never blocks or fails a discovery attempt.
type EventSink interface {
	Emit(event domain.ThreadEvent)
}

// EvidenceArchiver persists the full ranked scoring payload for
// auto-matched threads. Optional; best-effort.
type EvidenceArchiver interface {
	ArchiveEvidence(ctx context.Context, orderNumber string, results []domain.ScoringResult) error
}

// DiscoveryJobRepositoryInterface queues asynchronous discovery requests.
type DiscoveryJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.DiscoveryJob) error
}

// DiscoveryStatus is the caller-facing outcome of one discovery attempt.
type DiscoveryStatus string

const (
	DiscoveryStatusLinked        DiscoveryStatus = "linked"
	DiscoveryStatusPendingReview DiscoveryStatus = "pending_review"
	DiscoveryStatusNotFound      DiscoveryStatus = "not_found"
	DiscoveryStatusAlreadyLinked DiscoveryStatus = "already_linked"
)

// DiscoveryResult reports one discovery attempt.
type DiscoveryResult struct {
	Status          DiscoveryStatus
	ThreadLink      *domain.ThreadLink
	CandidatesFound int
	TopScore        *float64
}

// DiscoveryService orchestrates thread discovery: idempotency check,
// strategy fallback, scoring, classification, persistence, audit, and
// event emission.
type DiscoveryService struct {
	links      ThreadLinkRepositoryInterface
	jobs       DiscoveryJobRepositoryInterface
	searcher   ConversationSearcher
	scorer     *matching.Scorer
	classifier *matching.Classifier
	audit      AuditRecorder
	events     EventSink
	archive    EvidenceArchiver
	uuidGen    UUIDGenerator
	logger     zerolog.Logger
	now        func() time.Time
}

// DiscoveryServiceConfig wires the orchestrator's collaborators. Events
// and Archive are optional.
type DiscoveryServiceConfig struct {
	Links      ThreadLinkRepositoryInterface
	Jobs       DiscoveryJobRepositoryInterface
	Searcher   ConversationSearcher
	Scorer     *matching.Scorer
	Classifier *matching.Classifier
	Audit      AuditRecorder
	Events     EventSink
	Archive    EvidenceArchiver
	Logger     zerolog.Logger
}

// NewDiscoveryService creates a DiscoveryService.
func NewDiscoveryService(cfg DiscoveryServiceConfig) *DiscoveryService {
	return &DiscoveryService{
		links:      cfg.Links,
		jobs:       cfg.Jobs,
		searcher:   cfg.Searcher,
		scorer:     cfg.Scorer,
		classifier: cfg.Classifier,
		audit:      cfg.Audit,
		events:     cfg.Events,
		archive:    cfg.Archive,
		uuidGen:    &DefaultUUIDGenerator{},
		logger:     cfg.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the orchestrator clock (for testing).
func (s *DiscoveryService) WithClock(now func() time.Time) *DiscoveryService {
	s.now = now
	return s
}

// WithUUIDGen overrides the id generator (for testing).
func (s *DiscoveryService) WithUUIDGen(gen UUIDGenerator) *DiscoveryService {
	s.uuidGen = gen
	return s
}

// DiscoverThread locates the support conversation for an order, scores
// the candidates, classifies the best one, and durably records the
// outcome. Safe to call repeatedly: confirmed links short-circuit, and
// every write is an upsert keyed by order number.
func (s *DiscoveryService) DiscoverThread(ctx context.Context, facts domain.OrderFacts) (*DiscoveryResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "DiscoveryService.DiscoverThread", telemetry.SpanAttributes{
		OrderNumber: facts.OrderNumber,
		Operation:   "discover_thread",
	})
	defer span.End()

	existing, err := s.loadExisting(ctx, facts.OrderNumber)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if existing != nil && !existing.Status.AllowsRediscovery() {
		// A confirmed match must never be overwritten by a lower-confidence re-scan.
		return &DiscoveryResult{
			Status:     DiscoveryStatusAlreadyLinked,
			ThreadLink: existing,
		}, nil
	}

	plan := matching.Plan(facts)
	if len(plan) == 0 {
		s.recordSkipped(ctx, facts.OrderNumber, AuditActionSearch, map[string]any{
			"reason": "no_searchable_facts",
		})
		link, err := s.persistNotFound(ctx, facts.OrderNumber, existing, 0)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		return &DiscoveryResult{Status: DiscoveryStatusNotFound, ThreadLink: link}, nil
	}

	candidates, used := s.runSearchPlan(ctx, facts.OrderNumber, plan)
	if len(candidates) == 0 {
		s.recordSkipped(ctx, facts.OrderNumber, AuditActionMatch, map[string]any{
			"reason": "no_candidates",
		})
		link, err := s.persistNotFound(ctx, facts.OrderNumber, existing, 0)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		s.emit(domain.ThreadEventNotFound, link, "")
		return &DiscoveryResult{Status: DiscoveryStatusNotFound, ThreadLink: link}, nil
	}

	scored := s.scorer.ScoreCandidates(candidates, facts, used.Method)
	top := scored[0]
	status := s.classifier.Classify(top.Score)

	link := s.buildLink(facts, existing, top, status, len(candidates))
	if err := s.upsert(ctx, link); err != nil {
		span.SetError(err)
		return nil, err
	}

	if status == domain.MatchStatusAutoMatched {
		s.recordSuccess(ctx, facts.OrderNumber, AuditActionMatch, map[string]any{
			"conversation_id":         top.Candidate.ConversationID,
			"score":                   top.Score,
			"search_method":           string(used.Method),
			"search_term":             used.Term,
			"email_matched":           top.Breakdown.EmailMatched,
			"order_in_subject":        top.Breakdown.OrderInSubject,
			"order_in_search":         top.Breakdown.OrderInSearch,
			"days_since_last_message": top.Breakdown.DaysSinceLastMessage,
			"candidates_found":        len(candidates),
		})
		s.archiveEvidence(ctx, facts.OrderNumber, scored)
	}

	result := &DiscoveryResult{
		ThreadLink:      link,
		CandidatesFound: len(candidates),
		TopScore:        &top.Score,
	}
	switch status {
	case domain.MatchStatusAutoMatched:
		result.Status = DiscoveryStatusLinked
		s.emit(domain.ThreadEventAutoMatched, link, "")
	case domain.MatchStatusPendingReview:
		result.Status = DiscoveryStatusPendingReview
		s.emit(domain.ThreadEventPendingReview, link, "")
	default:
		result.Status = DiscoveryStatusNotFound
		s.emit(domain.ThreadEventNotFound, link, "")
	}
	return result, nil
}

// EnqueueDiscovery queues an asynchronous discovery attempt for the
// given order. The background worker picks it up on its next poll.
func (s *DiscoveryService) EnqueueDiscovery(ctx context.Context, facts domain.OrderFacts) (*domain.DiscoveryJob, error) {
	if err := domain.ValidateOrderFacts(facts); err != nil {
		return nil, err
	}
	if s.jobs == nil {
		return nil, domain.NewDomainError(domain.ErrCodeUnavailable, "discovery queue not configured")
	}

	job := &domain.DiscoveryJob{
		ID:            s.uuidGen.NewString(),
		OrderNumber:   facts.OrderNumber,
		OrderName:     facts.OrderName,
		CustomerEmail: facts.CustomerEmail,
		CustomerName:  facts.CustomerName,
		Status:        domain.DiscoveryJobStatusPending,
		CreatedAt:     s.now(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *DiscoveryService) loadExisting(ctx context.Context, orderNumber string) (*domain.ThreadLink, error) {
	if orderNumber == "" {
		return nil, nil
	}
	link, err := s.links.GetByOrder(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, domain.ErrThreadLinkNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return link, nil
}

// runSearchPlan tries each strategy in order, stopping at the first that
// yields candidates. Every attempt is audited; a failed search degrades
// to zero candidates so the pipeline proceeds deterministically.
func (s *DiscoveryService) runSearchPlan(ctx context.Context, orderNumber string, plan []matching.SearchRequest) ([]domain.Candidate, matching.SearchRequest) {
	for _, req := range plan {
		candidates, err := s.runSearch(ctx, req)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("order_number", orderNumber).
				Str("search_method", string(req.Method)).
				Msg("conversation search failed, treating as zero candidates")
			telemetry.CaptureError(ctx, err)
			s.recordSkipped(ctx, orderNumber, AuditActionSearch, map[string]any{
				"search_method": string(req.Method),
				"search_term":   req.Term,
				"error":         err.Error(),
			})
			continue
		}

		s.recordSuccess(ctx, orderNumber, AuditActionSearch, map[string]any{
			"search_method":   string(req.Method),
			"search_term":     req.Term,
			"candidate_count": len(candidates),
		})

		if len(candidates) > 0 {
			return candidates, req
		}
	}
	return nil, matching.SearchRequest{}
}

func (s *DiscoveryService) runSearch(ctx context.Context, req matching.SearchRequest) ([]domain.Candidate, error) {
	if req.Method == matching.SearchMethodEmail {
		return s.searcher.SearchByContact(ctx, req.Term)
	}
	return s.searcher.SearchByQuery(ctx, req.Term)
}

func (s *DiscoveryService) buildLink(facts domain.OrderFacts, existing *domain.ThreadLink, top domain.ScoringResult, status domain.MatchStatus, candidatesFound int) *domain.ThreadLink {
	now := s.now()
	link := &domain.ThreadLink{
		OrderNumber:          facts.OrderNumber,
		Status:               status,
		Confidence:           &top.Score,
		EmailMatched:         top.Breakdown.EmailMatched,
		OrderInSubject:       top.Breakdown.OrderInSubject,
		OrderInSearch:        top.Breakdown.OrderInSearch,
		DaysSinceLastMessage: top.Breakdown.DaysSinceLastMessage,
		CandidatesFound:      candidatesFound,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if existing != nil {
		link.CreatedAt = existing.CreatedAt
	}
	// A candidate below the review threshold is not linked: not_found
	// rows never reference a conversation.
	if status != domain.MatchStatusNotFound {
		link.ConversationID = top.Candidate.ConversationID
		link.ConversationSubject = top.Candidate.Subject
		if top.Breakdown.EmailMatched {
			link.MatchedEmail = facts.CustomerEmail
		}
	}
	return link
}

func (s *DiscoveryService) persistNotFound(ctx context.Context, orderNumber string, existing *domain.ThreadLink, candidatesFound int) (*domain.ThreadLink, error) {
	if orderNumber == "" {
		// Nothing to key the row on; the audit trail carries the skip.
		return nil, nil
	}
	now := s.now()
	link := domain.NewUnmatchedThreadLink(orderNumber, now)
	link.CandidatesFound = candidatesFound
	if existing != nil {
		link.CreatedAt = existing.CreatedAt
	}
	if err := s.upsert(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// upsert persists the thread link. Persistence failures are the one
// error class that must surface: an attempt whose result cannot be
// durably recorded has visibly failed.
func (s *DiscoveryService) upsert(ctx context.Context, link *domain.ThreadLink) error {
	if err := s.links.Upsert(ctx, link); err != nil {
		s.logger.Error().
			Err(err).
			Str("order_number", link.OrderNumber).
			Msg("failed to persist thread link")
		return err
	}
	return nil
}

func (s *DiscoveryService) recordSuccess(ctx context.Context, orderNumber, action string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	entry := AuditEntry{EntityType: AuditEntityOrder, EntityID: orderNumber, Action: action, Metadata: metadata}
	if err := s.audit.RecordSuccess(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("audit record failed")
	}
}

func (s *DiscoveryService) recordSkipped(ctx context.Context, orderNumber, action string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	entry := AuditEntry{EntityType: AuditEntityOrder, EntityID: orderNumber, Action: action, Metadata: metadata}
	if err := s.audit.RecordSkipped(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("audit record failed")
	}
}

func (s *DiscoveryService) emit(eventType domain.ThreadEventType, link *domain.ThreadLink, actor string) {
	if s.events == nil || link == nil {
		return
	}
	s.events.Emit(domain.ThreadEvent{
		Type:           eventType,
		OrderNumber:    link.OrderNumber,
		ConversationID: link.ConversationID,
		Status:         link.Status,
		Confidence:     link.Confidence,
		Actor:          actor,
		OccurredAt:     s.now(),
	})
}

func (s *DiscoveryService) archiveEvidence(ctx context.Context, orderNumber string, scored []domain.ScoringResult) {
	if s.archive == nil {
		return
	}
	if err := s.archive.ArchiveEvidence(ctx, orderNumber, scored); err != nil {
		s.logger.Warn().Err(err).Str("order_number", orderNumber).Msg("evidence archive failed")
	}
}
