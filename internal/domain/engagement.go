package domain

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// EngagementStatus is the recruitment state of a startup/candidate pair.
// The zero value is not a valid status.
type EngagementStatus uint8

// Engagement statuses. Success and Rejected are terminal.
const (
	StatusPending EngagementStatus = iota + 1
	StatusDealing
	StatusSuccess
	StatusRejected
)

var statusNames = map[EngagementStatus]string{
	StatusPending:  "Pending",
	StatusDealing:  "Dealing",
	StatusSuccess:  "Success",
	StatusRejected: "Rejected",
}

// ParseEngagementStatus parses the persisted/wire form of a status.
func ParseEngagementStatus(s string) (EngagementStatus, error) {
	for st, name := range statusNames {
		if name == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown engagement status %q", s)
}

func (s EngagementStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("EngagementStatus(%d)", uint8(s))
}

// Valid reports whether s is one of the declared statuses.
func (s EngagementStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// IsActive reports whether the engagement still blocks a new invite.
func (s EngagementStatus) IsActive() bool {
	return s == StatusPending || s == StatusDealing
}

// IsTerminal reports whether no further transition is possible.
func (s EngagementStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusRejected
}

// MarshalText implements encoding.TextMarshaler.
func (s EngagementStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("marshal engagement status: invalid value %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *EngagementStatus) UnmarshalText(b []byte) error {
	st, err := ParseEngagementStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Value implements driver.Valuer.
func (s EngagementStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("engagement status value: invalid value %d", uint8(s))
	}
	return s.String(), nil
}

// Scan implements sql.Scanner.
func (s *EngagementStatus) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("scan engagement status: unsupported type %T", src)
	}
}

// EngagementEvent is an action a party takes on an engagement.
type EngagementEvent string

// Engagement events.
const (
	EventInvite  EngagementEvent = "invite"
	EventAccept  EngagementEvent = "accept"
	EventReject  EngagementEvent = "reject"
	EventCancel  EngagementEvent = "cancel"
	EventConfirm EngagementEvent = "confirm"
)

// ParseEngagementEvent validates an event name coming from a caller.
func ParseEngagementEvent(s string) (EngagementEvent, error) {
	switch e := EngagementEvent(s); e {
	case EventAccept, EventReject, EventCancel, EventConfirm:
		return e, nil
	}
	return "", fmt.Errorf("unknown engagement event %q", s)
}

// Party identifies which side of an engagement a user is on.
type Party uint8

// Parties.
const (
	PartyNone Party = iota
	PartyOwner
	PartyCandidate
)

func (p Party) String() string {
	switch p {
	case PartyOwner:
		return "owner"
	case PartyCandidate:
		return "candidate"
	}
	return "none"
}

// Transition is one row of the recruitment state machine.
type Transition struct {
	From  EngagementStatus
	Event EngagementEvent
	To    EngagementStatus
	// Delete means the record is removed instead of moving to To.
	Delete bool
	Actor  Party
}

var transitions = []Transition{
	{From: StatusPending, Event: EventAccept, To: StatusDealing, Actor: PartyCandidate},
	{From: StatusPending, Event: EventReject, To: StatusRejected, Actor: PartyCandidate},
	{From: StatusPending, Event: EventCancel, Delete: true, Actor: PartyOwner},
	{From: StatusDealing, Event: EventConfirm, To: StatusSuccess, Actor: PartyOwner},
	{From: StatusDealing, Event: EventCancel, To: StatusRejected, Actor: PartyOwner},
}

// NextTransition looks up the transition allowed from a status on an event.
// Terminal statuses have no outgoing transitions.
func NextTransition(from EngagementStatus, ev EngagementEvent) (Transition, bool) {
	for _, t := range transitions {
		if t.From == from && t.Event == ev {
			return t, true
		}
	}
	return Transition{}, false
}

// Engagement is the relationship record between one startup and one candidate.
type Engagement struct {
	ID          string           `json:"id"           db:"id"`
	StartupID   string           `json:"startup_id"   db:"startup_id"`
	CandidateID string           `json:"candidate_id" db:"user_id"`
	Status      EngagementStatus `json:"status"       db:"status"`
	Note        string           `json:"note,omitempty" db:"note"`
	CreatedAt   time.Time        `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"   db:"updated_at"`

	// Joined from startups/users for listings.
	OwnerID       string `json:"owner_id"`
	StartupIdea   string `json:"startup_idea,omitempty"`
	CandidateName string `json:"candidate_name,omitempty"`
}

// PartyOf reports which side of the engagement userID is on.
func (e *Engagement) PartyOf(userID string) Party {
	switch {
	case userID == "":
		return PartyNone
	case userID == e.OwnerID:
		return PartyOwner
	case userID == e.CandidateID:
		return PartyCandidate
	}
	return PartyNone
}

// EngagementView is a derived listing of engagements from one user's perspective.
type EngagementView string

// Engagement views.
const (
	ViewSent     EngagementView = "sent"
	ViewReceived EngagementView = "received"
	ViewActive   EngagementView = "active"
	ViewTeam     EngagementView = "team"
	ViewHistory  EngagementView = "history"
)

// ParseEngagementView validates a view name.
func ParseEngagementView(s string) (EngagementView, error) {
	switch v := EngagementView(s); v {
	case ViewSent, ViewReceived, ViewActive, ViewTeam, ViewHistory:
		return v, nil
	}
	return "", fmt.Errorf("unknown engagement view %q", s)
}

// EngagementFilter selects engagements. Empty fields do not filter.
type EngagementFilter struct {
	StartupID   string
	OwnerID     string
	CandidateID string
	// PartyID matches either the owner or the candidate.
	PartyID  string
	Statuses []EngagementStatus
}

// Filter translates a view for actorID into a store filter.
func (v EngagementView) Filter(actorID, startupID string) EngagementFilter {
	f := EngagementFilter{StartupID: startupID}
	switch v {
	case ViewSent:
		f.OwnerID = actorID
	case ViewReceived:
		f.CandidateID = actorID
	case ViewActive:
		f.PartyID = actorID
		f.Statuses = []EngagementStatus{StatusDealing}
	case ViewTeam:
		f.OwnerID = actorID
		f.Statuses = []EngagementStatus{StatusSuccess}
	case ViewHistory:
		f.PartyID = actorID
		f.Statuses = []EngagementStatus{StatusSuccess, StatusRejected}
	}
	return f
}
