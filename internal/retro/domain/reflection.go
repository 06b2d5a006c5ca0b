package domain

import "time"

// Zone is a named area reflections are written into, created with the
// retrospective from its kind's template.
type Zone struct {
	ID              string
	RetrospectiveID string
	Name            string
}

// Reflection is a contributed note. Reflections are never deleted, only
// hidden by phase gating until revealed.
type Reflection struct {
	ID              string
	RetrospectiveID string
	ZoneID          string
	OwnerID         string
	TopicID         string // empty until grouped
	Content         string
	Revealed        bool
	CreatedAt       time.Time
}

// Topic groups reflections during the grouping step. Topics can be reaction
// targets; their votes count for every reflection they contain.
type Topic struct {
	ID              string
	RetrospectiveID string
	Name            string
}

// ReflectionView is the wire representation of a reflection.
type ReflectionView struct {
	ID       string `json:"id"`
	ZoneID   string `json:"zoneId"`
	OwnerID  string `json:"ownerId"`
	TopicID  string `json:"topicId,omitempty"`
	Content  string `json:"content"`
	Revealed bool   `json:"revealed"`
}

// ViewOfReflection builds the wire payload for a reflection.
func ViewOfReflection(r Reflection) ReflectionView {
	return ReflectionView{
		ID:       r.ID,
		ZoneID:   r.ZoneID,
		OwnerID:  r.OwnerID,
		TopicID:  r.TopicID,
		Content:  r.Content,
		Revealed: r.Revealed,
	}
}
