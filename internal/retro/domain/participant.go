package domain

import (
	"sort"
	"time"
)

// Palette is the shared set of colors participants can claim. Each color is
// unique within a retrospective.
var Palette = []string{
	"#e53935", "#d81b60", "#8e24aa", "#5e35b1", "#3949ab", "#1e88e5",
	"#00897b", "#43a047", "#fdd835", "#fb8c00", "#6d4c41", "#546e7a",
}

// Participant is one member of a retrospective. Participants are never
// removed; leaving only flips LoggedIn.
type Participant struct {
	ID              string
	RetrospectiveID string
	AccountID       string
	Surname         string
	Color           string
	LoggedIn        bool
	JoinedAt        time.Time
}

// IsValidColor reports whether the color belongs to the palette.
func IsValidColor(color string) bool {
	for _, candidate := range Palette {
		if candidate == color {
			return true
		}
	}
	return false
}

// AvailableColors returns the palette minus colors already claimed by the
// given participants.
func AvailableColors(participants []Participant) []string {
	taken := make(map[string]bool, len(participants))
	for _, p := range participants {
		taken[p.Color] = true
	}
	var available []string
	for _, color := range Palette {
		if !taken[color] {
			available = append(available, color)
		}
	}
	return available
}

// SortParticipantsByJoin orders participants by seniority (join time, then
// ID for deterministic ordering of same-instant joins).
func SortParticipantsByJoin(participants []Participant) []Participant {
	sorted := append([]Participant(nil), participants...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].JoinedAt.Equal(sorted[j].JoinedAt) {
			return sorted[i].JoinedAt.Before(sorted[j].JoinedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// OriginalParticipant returns the earliest-joined participant, the one the
// facilitator role returns to on reconnect. The second return is false when
// the roster is empty.
func OriginalParticipant(participants []Participant) (Participant, bool) {
	sorted := SortParticipantsByJoin(participants)
	if len(sorted) == 0 {
		return Participant{}, false
	}
	return sorted[0], true
}

// Profile is the wire representation of a participant, including roles
// derived from the retrospective so clients never hold a second source of
// role truth.
type Profile struct {
	ID          string `json:"id"`
	Surname     string `json:"surname"`
	Color       string `json:"color"`
	Facilitator bool   `json:"facilitator"`
	Revealer    bool   `json:"revealer"`
	LoggedIn    bool   `json:"loggedIn"`
}

// ProfileOf derives the wire profile for a participant within a retrospective.
func ProfileOf(retro Retrospective, p Participant) Profile {
	return Profile{
		ID:          p.ID,
		Surname:     p.Surname,
		Color:       p.Color,
		Facilitator: retro.IsFacilitator(p.ID),
		Revealer:    retro.IsRevealer(p.ID),
		LoggedIn:    p.LoggedIn,
	}
}
