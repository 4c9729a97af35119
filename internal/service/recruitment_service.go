package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arturoeanton/vietstart-api/internal/domain"
	"github.com/arturoeanton/vietstart-api/internal/metrics"
	"github.com/arturoeanton/vietstart-api/internal/observability"
	"github.com/arturoeanton/vietstart-api/internal/port"
)

const maxNoteLength = 2000

// RecruitmentService drives the engagement lifecycle between a startup
// owner and a candidate.
type RecruitmentService struct {
	profiles    port.ProfileStore
	engagements port.EngagementStore
	audit       port.AuditWriter
	metrics     *metrics.Manager
}

// NewRecruitmentService creates a new recruitment service. audit and m may be nil.
func NewRecruitmentService(profiles port.ProfileStore, engagements port.EngagementStore, audit port.AuditWriter, m *metrics.Manager) *RecruitmentService {
	return &RecruitmentService{profiles: profiles, engagements: engagements, audit: audit, metrics: m}
}

// InviteRequest is an owner's invitation of a candidate to a startup.
type InviteRequest struct {
	StartupID   string `json:"startup_id"`
	CandidateID string `json:"candidate_id"`
	Note        string `json:"note"`
}

// Invite creates a Pending engagement. The actor must own the startup, the
// candidate must exist and differ from the owner, and the pair must not
// already have an active engagement.
func (s *RecruitmentService) Invite(ctx context.Context, actorID string, req InviteRequest) (*domain.Engagement, error) {
	ctx, span := observability.StartWorkflowSpan(ctx, string(domain.EventInvite), "")
	defer span.End()

	e, err := s.invite(ctx, actorID, req)
	s.metrics.RecordEngagementEvent(string(domain.EventInvite), err)
	observability.RecordError(span, err)
	if err != nil {
		return nil, err
	}

	s.record(actorID, domain.AuditActionEngagementInvite, e, 0)
	return e, nil
}

func (s *RecruitmentService) invite(ctx context.Context, actorID string, req InviteRequest) (*domain.Engagement, error) {
	st, err := s.profiles.GetStartup(ctx, req.StartupID)
	if err != nil {
		return nil, fmt.Errorf("invite: %w", err)
	}
	if st.OwnerID != actorID {
		return nil, &port.TransitionError{Event: domain.EventInvite, Reason: "only the startup owner may invite", Kind: port.ErrForbidden}
	}

	candidate, err := s.profiles.GetProfile(ctx, req.CandidateID)
	if err != nil {
		return nil, fmt.Errorf("invite: %w", err)
	}
	if candidate.UserID == st.OwnerID {
		return nil, &port.TransitionError{Event: domain.EventInvite, Reason: "the owner cannot invite themselves", Kind: port.ErrInvalidState}
	}

	note := strings.TrimSpace(req.Note)
	if len([]rune(note)) > maxNoteLength {
		return nil, &port.TransitionError{Event: domain.EventInvite, Reason: fmt.Sprintf("note exceeds %d characters", maxNoteLength), Kind: port.ErrInvalidState}
	}

	active, err := s.engagements.FindActiveEngagement(ctx, st.ID, candidate.UserID)
	if err != nil {
		return nil, fmt.Errorf("invite: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("invite: %w", port.ErrDuplicateActiveEngagement)
	}

	e := &domain.Engagement{
		StartupID:     st.ID,
		CandidateID:   candidate.UserID,
		Status:        domain.StatusPending,
		Note:          note,
		OwnerID:       st.OwnerID,
		StartupIdea:   st.Idea,
		CandidateName: candidate.FullName,
	}
	if err := s.engagements.CreateEngagement(ctx, e); err != nil {
		return nil, fmt.Errorf("invite: %w", err)
	}

	slog.Info("engagement created", "engagement_id", e.ID, "startup_id", e.StartupID, "user_id", e.CandidateID)
	return e, nil
}

// Transition applies ev to the engagement on behalf of actorID.
//
// Checks run in order: the engagement exists, the actor is one of its
// parties, the event is allowed from the current status, and the actor is
// the party the event belongs to. The write is compare-and-set on the
// status read here, so a concurrent transition makes this one fail with
// ErrInvalidState. Cancelling a Pending engagement deletes it; the returned
// record then still shows Pending.
func (s *RecruitmentService) Transition(ctx context.Context, actorID, engagementID string, ev domain.EngagementEvent) (*domain.Engagement, error) {
	ctx, span := observability.StartWorkflowSpan(ctx, string(ev), engagementID)
	defer span.End()

	e, from, err := s.transition(ctx, actorID, engagementID, ev)
	s.metrics.RecordEngagementEvent(string(ev), err)
	observability.RecordError(span, err)
	if err != nil {
		return nil, err
	}

	s.record(actorID, auditActionFor(ev), e, from)
	return e, nil
}

func (s *RecruitmentService) transition(ctx context.Context, actorID, engagementID string, ev domain.EngagementEvent) (*domain.Engagement, domain.EngagementStatus, error) {
	e, err := s.engagements.GetEngagement(ctx, engagementID)
	if err != nil {
		return nil, 0, fmt.Errorf("%s engagement: %w", ev, err)
	}

	party := e.PartyOf(actorID)
	if party == domain.PartyNone {
		return nil, 0, &port.TransitionError{From: e.Status, Event: ev, Reason: "not a party to this engagement", Kind: port.ErrForbidden}
	}

	tr, ok := domain.NextTransition(e.Status, ev)
	if !ok {
		reason := "event not allowed from this status"
		if e.Status.IsTerminal() {
			reason = "engagement is already final"
		}
		return nil, 0, &port.TransitionError{From: e.Status, Event: ev, Reason: reason, Kind: port.ErrInvalidState}
	}
	if tr.Actor != party {
		return nil, 0, &port.TransitionError{From: e.Status, Event: ev, Reason: fmt.Sprintf("only the %s may %s", tr.Actor, ev), Kind: port.ErrForbidden}
	}

	from := e.Status
	if tr.Delete {
		if err := s.engagements.DeleteEngagement(ctx, e.ID, from); err != nil {
			return nil, 0, fmt.Errorf("%s engagement: %w", ev, err)
		}
		slog.Info("engagement withdrawn", "engagement_id", e.ID)
		return e, from, nil
	}

	updated, err := s.engagements.UpdateEngagementStatus(ctx, e.ID, from, tr.To)
	if err != nil {
		return nil, 0, fmt.Errorf("%s engagement: %w", ev, err)
	}
	slog.Info("engagement transitioned", "engagement_id", e.ID, "from", from, "to", updated.Status)
	return updated, from, nil
}

// Accept moves a Pending engagement to Dealing. Candidate only.
func (s *RecruitmentService) Accept(ctx context.Context, actorID, engagementID string) (*domain.Engagement, error) {
	return s.Transition(ctx, actorID, engagementID, domain.EventAccept)
}

// Reject moves a Pending engagement to Rejected. Candidate only.
func (s *RecruitmentService) Reject(ctx context.Context, actorID, engagementID string) (*domain.Engagement, error) {
	return s.Transition(ctx, actorID, engagementID, domain.EventReject)
}

// Cancel withdraws a Pending invite or ends a Dealing engagement. Owner only.
func (s *RecruitmentService) Cancel(ctx context.Context, actorID, engagementID string) (*domain.Engagement, error) {
	return s.Transition(ctx, actorID, engagementID, domain.EventCancel)
}

// Confirm moves a Dealing engagement to Success. Owner only.
func (s *RecruitmentService) Confirm(ctx context.Context, actorID, engagementID string) (*domain.Engagement, error) {
	return s.Transition(ctx, actorID, engagementID, domain.EventConfirm)
}

// Get returns an engagement visible to actorID.
func (s *RecruitmentService) Get(ctx context.Context, actorID, engagementID string) (*domain.Engagement, error) {
	e, err := s.engagements.GetEngagement(ctx, engagementID)
	if err != nil {
		return nil, fmt.Errorf("get engagement: %w", err)
	}
	if e.PartyOf(actorID) == domain.PartyNone {
		return nil, fmt.Errorf("get engagement %s: %w", engagementID, port.ErrForbidden)
	}
	return e, nil
}

// List returns the engagements in view from actorID's perspective,
// optionally narrowed to one startup.
func (s *RecruitmentService) List(ctx context.Context, actorID string, view domain.EngagementView, startupID string) ([]domain.Engagement, error) {
	if _, err := domain.ParseEngagementView(string(view)); err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrInvalidState, err)
	}

	list, err := s.engagements.ListEngagements(ctx, view.Filter(actorID, startupID))
	if err != nil {
		return nil, fmt.Errorf("list engagements: %w", err)
	}
	if list == nil {
		list = []domain.Engagement{}
	}
	return list, nil
}

func auditActionFor(ev domain.EngagementEvent) string {
	switch ev {
	case domain.EventAccept:
		return domain.AuditActionEngagementAccept
	case domain.EventReject:
		return domain.AuditActionEngagementReject
	case domain.EventCancel:
		return domain.AuditActionEngagementCancel
	case domain.EventConfirm:
		return domain.AuditActionEngagementConfirm
	}
	return domain.AuditActionEngagementInvite
}

// record writes the audit entry for a successful event. Audit failures are
// logged only.
func (s *RecruitmentService) record(actorID, action string, e *domain.Engagement, from domain.EngagementStatus) {
	if s.audit == nil {
		return
	}
	details := map[string]any{
		"startup_id":   e.StartupID,
		"candidate_id": e.CandidateID,
		"status":       e.Status.String(),
	}
	if from.Valid() {
		details["from"] = from.String()
	}
	detailsJSON, _ := json.Marshal(details)

	if err := s.audit.WriteAudit(actorID, action, "engagement", e.ID, string(detailsJSON), "", ""); err != nil {
		slog.Error("failed to write audit log", "action", action, "engagement_id", e.ID, "error", err)
	}
}
