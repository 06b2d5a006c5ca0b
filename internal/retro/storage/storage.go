// Package storage defines the durable store contract for retrospectives.
// The in-memory registry is authoritative while a session is live; the
// store exists so state survives restarts and late snapshot reads never
// desync from broadcast state.
package storage

import (
	"context"

	apperrors "github.com/louisbranch/retroboard/internal/platform/errors"
	"github.com/louisbranch/retroboard/internal/retro/domain"
)

// ErrNotFound indicates a requested record is missing. Callers use this to
// separate "no such entity" from transport or corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// Bundle is the full persisted state of one retrospective, loaded when a
// session becomes live again after a restart.
type Bundle struct {
	Retrospective domain.Retrospective
	Participants  []domain.Participant
	Zones         []domain.Zone
	Reflections   []domain.Reflection
	Topics        []domain.Topic
	Reactions     []domain.Reaction
	Tasks         []domain.Task
}

// Change is one mutation applied to the store. All changes produced by a
// single command are applied in one transaction, so a command is either
// fully persisted or not at all.
type Change interface {
	isChange()
}

// PutRetrospective upserts retrospective metadata (step, roles, timer).
type PutRetrospective struct{ Retrospective domain.Retrospective }

// PutParticipant upserts a participant.
type PutParticipant struct{ Participant domain.Participant }

// PutZone upserts a zone.
type PutZone struct{ Zone domain.Zone }

// PutReflection upserts a reflection.
type PutReflection struct{ Reflection domain.Reflection }

// PutTopic upserts a topic.
type PutTopic struct{ Topic domain.Topic }

// PutReaction inserts a reaction.
type PutReaction struct{ Reaction domain.Reaction }

// DeleteReaction removes a reaction by ID.
type DeleteReaction struct{ ID string }

// PutTask upserts a task.
type PutTask struct{ Task domain.Task }

// DeleteTask removes a task by ID.
type DeleteTask struct{ ID string }

func (PutRetrospective) isChange() {}
func (PutParticipant) isChange()   {}
func (PutZone) isChange()          {}
func (PutReflection) isChange()    {}
func (PutTopic) isChange()         {}
func (PutReaction) isChange()      {}
func (DeleteReaction) isChange()   {}
func (PutTask) isChange()          {}
func (DeleteTask) isChange()       {}

// Store persists retrospective state.
type Store interface {
	// CreateRetrospective persists a new retrospective with its zones.
	CreateRetrospective(ctx context.Context, retro domain.Retrospective, zones []domain.Zone) error
	// LoadBundle loads the full state of a retrospective, or ErrNotFound.
	LoadBundle(ctx context.Context, retroID string) (Bundle, error)
	// Apply runs all changes in one transaction.
	Apply(ctx context.Context, changes []Change) error
}
