package orchestrator

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/retroboard/internal/platform/errors"
	"github.com/louisbranch/retroboard/internal/retro/domain"
	"github.com/louisbranch/retroboard/internal/retro/event"
	"github.com/louisbranch/retroboard/internal/retro/storage"
)

// JoinInput identifies the account joining a retrospective. Identity is
// resolved by the transport layer before it reaches the core.
type JoinInput struct {
	AccountID string
	Surname   string
}

// Join adds an account to the retrospective, or returns the existing
// participant when the account already joined. The first joiner becomes
// the facilitator.
func Join(s State, input JoinInput, now time.Time, newID func() (string, error)) Decision {
	accountID := strings.TrimSpace(input.AccountID)
	if accountID == "" {
		return reject(s, apperrors.New(apperrors.CodeParticipantSurnameEmpty, "account id is required"))
	}
	if existing, ok := s.participantByAccount(accountID); ok {
		return Decision{State: s, Reply: s.profileOf(existing)}
	}

	surname := strings.TrimSpace(input.Surname)
	if surname == "" {
		return reject(s, apperrors.New(apperrors.CodeParticipantSurnameEmpty, "surname is required"))
	}
	available := domain.AvailableColors(s.Participants)
	if len(available) == 0 {
		return reject(s, apperrors.New(apperrors.CodeParticipantColorTaken, "no colors left in the palette"))
	}

	participantID, err := newID()
	if err != nil {
		return reject(s, err)
	}

	next := s.clone()
	participant := domain.Participant{
		ID:              participantID,
		RetrospectiveID: next.Retro.ID,
		AccountID:       accountID,
		Surname:         surname,
		Color:           available[0],
		JoinedAt:        now.UTC(),
	}
	next.Participants = append(next.Participants, participant)

	changes := []storage.Change{storage.PutParticipant{Participant: participant}}
	if next.Retro.FacilitatorID == "" {
		next.Retro.FacilitatorID = participant.ID
		changes = append(changes, storage.PutRetrospective{Retrospective: next.Retro})
	}

	return Decision{
		State:   next,
		Changes: changes,
		Reply:   next.profileOf(participant),
	}
}

// UpdateColor recolors a participant from the remaining palette and
// announces the change with the updated available set.
func UpdateColor(s State, requesterID, color string) Decision {
	idx := s.participantIndex(requesterID)
	if idx < 0 {
		return reject(s, storage.ErrNotFound)
	}
	if !domain.IsValidColor(color) {
		return reject(s, apperrors.New(apperrors.CodeParticipantColorInvalid, "color is not in the palette"))
	}
	for _, p := range s.Participants {
		if p.ID != requesterID && p.Color == color {
			return reject(s, apperrors.New(apperrors.CodeParticipantColorTaken, "color is already taken"))
		}
	}

	next := s.clone()
	next.Participants[idx].Color = color
	return Decision{
		State:   next,
		Changes: []storage.Change{storage.PutParticipant{Participant: next.Participants[idx]}},
		Events: []event.Event{event.New(next.Retro.ID, event.ActionColorChanged, event.ColorChangedParams{
			Participant:     next.profileOf(next.Participants[idx]),
			AvailableColors: domain.AvailableColors(next.Participants),
		})},
	}
}
