// Package registry owns the live retrospectives. Each retrospective gets
// one actor goroutine that serializes every mutation, so transition logic
// never needs locks. A command's storage changes are applied before its
// state is adopted or its events broadcast; a failed write fails the
// command and leaves the session untouched.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/louisbranch/retroboard/internal/platform/id"
	"github.com/louisbranch/retroboard/internal/retro/domain"
	"github.com/louisbranch/retroboard/internal/retro/hub"
	"github.com/louisbranch/retroboard/internal/retro/orchestrator"
	"github.com/louisbranch/retroboard/internal/retro/storage"
)

// Command applies one transition to a session's state.
type Command func(orchestrator.State) orchestrator.Decision

// Registry routes commands to per-retrospective actors.
type Registry struct {
	store storage.Store
	hub   *hub.Hub
	now   func() time.Time
	newID func() (string, error)

	mu       sync.Mutex
	sessions map[string]*session
}

// New builds a registry. now and newID may be nil for the defaults; tests
// inject deterministic versions.
func New(store storage.Store, h *hub.Hub, now func() time.Time, newID func() (string, error)) *Registry {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Registry{
		store:    store,
		hub:      h,
		now:      now,
		newID:    newID,
		sessions: make(map[string]*session),
	}
}

type result struct {
	reply any
	err   error
}

type envelope struct {
	ctx   context.Context
	cmd   Command
	reply chan result
}

// session is the actor for one retrospective. All command handling happens
// on its goroutine.
type session struct {
	retroID  string
	commands chan envelope
	loaded   bool
	state    orchestrator.State
}

func (r *Registry) session(retroID string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[retroID]; ok {
		return s
	}
	s := &session{
		retroID:  retroID,
		commands: make(chan envelope, 64),
	}
	r.sessions[retroID] = s
	go r.run(s)
	return s
}

func (r *Registry) run(s *session) {
	for env := range s.commands {
		env.reply <- r.handle(s, env)
	}
}

func (r *Registry) handle(s *session, env envelope) result {
	if !s.loaded {
		bundle, err := r.store.LoadBundle(env.ctx, s.retroID)
		if err != nil {
			return result{err: err}
		}
		s.state = orchestrator.StateFromBundle(bundle)
		s.loaded = true
	}

	decision := env.cmd(s.state)
	if decision.Err != nil {
		return result{err: decision.Err}
	}
	if len(decision.Changes) > 0 {
		if err := r.store.Apply(env.ctx, decision.Changes); err != nil {
			return result{err: fmt.Errorf("persist changes: %w", err)}
		}
	}

	s.state = decision.State
	r.hub.Publish(decision.Events...)
	return result{reply: decision.Reply}
}

// Execute runs one command on a retrospective's actor and waits for its
// outcome.
func (r *Registry) Execute(ctx context.Context, retroID string, cmd Command) (any, error) {
	s := r.session(retroID)
	env := envelope{ctx: ctx, cmd: cmd, reply: make(chan result, 1)}

	select {
	case s.commands <- env:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-env.reply:
		return res.reply, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CreateRetrospective creates and persists a new retrospective with its
// zones. The session actor spins up lazily on the first command.
func (r *Registry) CreateRetrospective(ctx context.Context, input domain.CreateRetrospectiveInput) (domain.Retrospective, error) {
	retro, zones, err := domain.CreateRetrospective(input, r.now, r.newID)
	if err != nil {
		return domain.Retrospective{}, err
	}
	if err := r.store.CreateRetrospective(ctx, retro, zones); err != nil {
		return domain.Retrospective{}, fmt.Errorf("create retrospective: %w", err)
	}
	return retro, nil
}

// Snapshot renders the session state filtered for one viewer.
func (r *Registry) Snapshot(ctx context.Context, retroID, viewerID string) (orchestrator.Snapshot, error) {
	reply, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.Decision{State: s, Reply: orchestrator.BuildSnapshot(s, viewerID, r.now())}
	})
	if err != nil {
		return orchestrator.Snapshot{}, err
	}
	return reply.(orchestrator.Snapshot), nil
}

// Join adds an account to a retrospective and returns its profile.
func (r *Registry) Join(ctx context.Context, retroID string, input orchestrator.JoinInput) (domain.Profile, error) {
	reply, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.Join(s, input, r.now(), r.newID)
	})
	if err != nil {
		return domain.Profile{}, err
	}
	return reply.(domain.Profile), nil
}

// Connect marks a participant online.
func (r *Registry) Connect(ctx context.Context, retroID, participantID string) error {
	_, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.Connect(s, participantID)
	})
	return err
}

// Disconnect marks a participant offline.
func (r *Registry) Disconnect(ctx context.Context, retroID, participantID string) error {
	_, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.Disconnect(s, participantID)
	})
	return err
}

// HandleInactivity resolves a participant's expired disconnect grace
// window, possibly handing the facilitator role to a successor.
func (r *Registry) HandleInactivity(ctx context.Context, retroID, participantID string) error {
	_, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.HandleInactivity(s, participantID)
	})
	return err
}

// AdvanceStep moves the retrospective to the next lifecycle step.
func (r *Registry) AdvanceStep(ctx context.Context, retroID, requesterID string) error {
	_, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.AdvanceStep(s, requesterID, r.now())
	})
	return err
}

// ElectRevealer hands the revealer token to a participant.
func (r *Registry) ElectRevealer(ctx context.Context, retroID, requesterID, targetID string) error {
	_, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.ElectRevealer(s, requesterID, targetID)
	})
	return err
}

// RevealReflection makes a reflection visible to everyone.
func (r *Registry) RevealReflection(ctx context.Context, retroID, requesterID, reflectionID string) error {
	_, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.RevealReflection(s, requesterID, reflectionID)
	})
	return err
}

// DropRevealerToken releases the revealer role.
func (r *Registry) DropRevealerToken(ctx context.Context, retroID, requesterID string) error {
	_, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.DropRevealerToken(s, requesterID)
	})
	return err
}

// SetDiscussedReflection changes the reflection under discussion.
func (r *Registry) SetDiscussedReflection(ctx context.Context, retroID, requesterID, reflectionID string) error {
	_, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.SetDiscussedReflection(s, requesterID, reflectionID)
	})
	return err
}

// SetDiscussedTopic points the discussion at a topic.
func (r *Registry) SetDiscussedTopic(ctx context.Context, retroID, requesterID, topicID string) error {
	_, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.SetDiscussedTopic(s, requesterID, topicID)
	})
	return err
}

// StartTimer starts a countdown with an absolute deadline.
func (r *Registry) StartTimer(ctx context.Context, retroID, requesterID string, duration time.Duration) error {
	_, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.StartTimer(s, requesterID, duration, r.now())
	})
	return err
}

// UpdateColor recolors a participant.
func (r *Registry) UpdateColor(ctx context.Context, retroID, requesterID, color string) error {
	_, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.UpdateColor(s, requesterID, color)
	})
	return err
}

// AddReflection writes a private note into a zone.
func (r *Registry) AddReflection(ctx context.Context, retroID, requesterID, zoneID, content string) (domain.ReflectionView, error) {
	reply, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.AddReflection(s, requesterID, zoneID, content, r.now(), r.newID)
	})
	if err != nil {
		return domain.ReflectionView{}, err
	}
	return reply.(domain.ReflectionView), nil
}

// GroupReflection assigns a reflection to a topic, creating the topic when
// topicID is empty.
func (r *Registry) GroupReflection(ctx context.Context, retroID, requesterID, reflectionID, topicID, topicName string) error {
	_, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.GroupReflection(s, requesterID, reflectionID, topicID, topicName, r.newID)
	})
	return err
}

// AddReaction attaches a vote or emoji to a reflection or topic.
func (r *Registry) AddReaction(ctx context.Context, retroID, requesterID string, targetKind domain.TargetKind, targetID string, kind domain.ReactionKind, content string) (domain.ReactionView, error) {
	reply, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.AddReaction(s, requesterID, targetKind, targetID, kind, content, r.newID)
	})
	if err != nil {
		return domain.ReactionView{}, err
	}
	return reply.(domain.ReactionView), nil
}

// RemoveReaction withdraws a reaction by its author.
func (r *Registry) RemoveReaction(ctx context.Context, retroID, requesterID, reactionID string) error {
	_, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.RemoveReaction(s, requesterID, reactionID)
	})
	return err
}

// CreateTask records an action item.
func (r *Registry) CreateTask(ctx context.Context, retroID, requesterID string, input orchestrator.TaskInput) (domain.TaskView, error) {
	reply, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.CreateTask(s, requesterID, input, r.now(), r.newID)
	})
	if err != nil {
		return domain.TaskView{}, err
	}
	return reply.(domain.TaskView), nil
}

// UpdateTask rewrites an action item.
func (r *Registry) UpdateTask(ctx context.Context, retroID, requesterID, taskID string, input orchestrator.TaskInput) (domain.TaskView, error) {
	reply, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.UpdateTask(s, requesterID, taskID, input, r.now())
	})
	if err != nil {
		return domain.TaskView{}, err
	}
	return reply.(domain.TaskView), nil
}

// DeleteTask removes an action item.
func (r *Registry) DeleteTask(ctx context.Context, retroID, requesterID, taskID string) error {
	_, err := r.Execute(ctx, retroID, func(s orchestrator.State) orchestrator.Decision {
		return orchestrator.DeleteTask(s, requesterID, taskID)
	})
	return err
}
