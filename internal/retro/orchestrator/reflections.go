package orchestrator

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/retroboard/internal/platform/errors"
	"github.com/louisbranch/retroboard/internal/retro/domain"
	"github.com/louisbranch/retroboard/internal/retro/event"
	"github.com/louisbranch/retroboard/internal/retro/storage"
)

// AddReflection writes a note into a zone during the thinking step. The
// reflection stays private to its owner until revealed, so no broadcast
// fires; the created view is returned to the issuer only.
func AddReflection(s State, requesterID, zoneID, content string, now time.Time, newID func() (string, error)) Decision {
	if s.participantIndex(requesterID) < 0 {
		return reject(s, storage.ErrNotFound)
	}
	if s.Retro.Step != domain.StepThinking {
		return reject(s, apperrors.New(apperrors.CodeReflectionWrongStep, "reflections can only be written during thinking"))
	}
	if s.zoneIndex(zoneID) < 0 {
		return reject(s, storage.ErrNotFound)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return reject(s, apperrors.New(apperrors.CodeReflectionContentEmpty, "reflection content is required"))
	}

	reflectionID, err := newID()
	if err != nil {
		return reject(s, err)
	}

	next := s.clone()
	reflection := domain.Reflection{
		ID:              reflectionID,
		RetrospectiveID: next.Retro.ID,
		ZoneID:          zoneID,
		OwnerID:         requesterID,
		Content:         content,
		CreatedAt:       now.UTC(),
	}
	next.Reflections = append(next.Reflections, reflection)

	return Decision{
		State:   next,
		Changes: []storage.Change{storage.PutReflection{Reflection: reflection}},
		Reply:   domain.ViewOfReflection(reflection),
	}
}

// GroupReflection assigns a reflection to a topic during the grouping
// step. An empty topicID with a topicName creates the topic first.
func GroupReflection(s State, requesterID, reflectionID, topicID, topicName string, newID func() (string, error)) Decision {
	if s.participantIndex(requesterID) < 0 {
		return reject(s, storage.ErrNotFound)
	}
	if s.Retro.Step != domain.StepGrouping {
		return reject(s, apperrors.New(apperrors.CodeReflectionWrongStep, "reflections can only be grouped during grouping"))
	}
	idx := s.reflectionIndex(reflectionID)
	if idx < 0 {
		return reject(s, storage.ErrNotFound)
	}

	next := s.clone()
	var changes []storage.Change

	if topicID == "" {
		topicName = strings.TrimSpace(topicName)
		if topicName == "" {
			return reject(s, apperrors.New(apperrors.CodeReflectionContentEmpty, "topic name is required"))
		}
		createdID, err := newID()
		if err != nil {
			return reject(s, err)
		}
		topic := domain.Topic{ID: createdID, RetrospectiveID: next.Retro.ID, Name: topicName}
		next.Topics = append(next.Topics, topic)
		changes = append(changes, storage.PutTopic{Topic: topic})
		topicID = createdID
	} else if next.topicIndex(topicID) < 0 {
		return reject(s, storage.ErrNotFound)
	}

	next.Reflections[idx].TopicID = topicID
	changes = append(changes, storage.PutReflection{Reflection: next.Reflections[idx]})

	return Decision{
		State:   next,
		Changes: changes,
		Events: []event.Event{event.New(next.Retro.ID, event.ActionReflectionGrouped,
			event.ReflectionGroupedParams{Reflection: domain.ViewOfReflection(next.Reflections[idx])})},
	}
}
