package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/louisbranch/retroboard/internal/platform/errors"
	"github.com/louisbranch/retroboard/internal/platform/id"
	"github.com/louisbranch/retroboard/internal/retro/domain"
	"github.com/louisbranch/retroboard/internal/retro/event"
	"github.com/louisbranch/retroboard/internal/retro/hub"
	"github.com/louisbranch/retroboard/internal/retro/orchestrator"
	"github.com/louisbranch/retroboard/internal/retro/presence"
	"github.com/louisbranch/retroboard/internal/retro/registry"
	"golang.org/x/net/websocket"
)

type wsAccountContextKey struct{}

// NewHandler creates board routes with an in-memory identity for tests and
// offline paths.
func NewHandler(sessions *registry.Registry, broadcast *hub.Hub, tracker *presence.Tracker) http.Handler {
	return newHandler(sessions, broadcast, tracker)
}

func newHandler(sessions *registry.Registry, broadcast *hub.Hub, tracker *presence.Tracker) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, sessions, broadcast, tracker)
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		accountID := accountIDFromRequest(r)
		if accountID == "" {
			generated, err := id.NewID()
			if err != nil {
				log.Printf("board: generate account id: %v", err)
				http.Error(w, "identity unavailable", http.StatusInternalServerError)
				return
			}
			accountID = generated
			http.SetCookie(w, &http.Cookie{
				Name:     accountCookieName,
				Value:    accountID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), wsAccountContextKey{}, accountID)
		wsHandler.ServeHTTP(w, r.WithContext(ctx))
	})

	return mux
}

func accountIDFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	cookie, err := r.Cookie(accountCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

// transportDeps bundles what frame handlers need so the routing table stays
// a flat map.
type transportDeps struct {
	sessions  *registry.Registry
	broadcast *hub.Hub
	tracker   *presence.Tracker
}

func handleWSConn(conn *websocket.Conn, sessions *registry.Registry, broadcast *hub.Hub, tracker *presence.Tracker) {
	defer func() {
		_ = conn.Close()
	}()

	accountID := ""
	if request := conn.Request(); request != nil {
		if resolved, ok := request.Context().Value(wsAccountContextKey{}).(string); ok {
			accountID = strings.TrimSpace(resolved)
		}
	}
	if accountID == "" {
		return
	}

	decoder := json.NewDecoder(conn)
	session := newWSSession(accountID, newWSPeer(json.NewEncoder(conn)))
	deps := transportDeps{sessions: sessions, broadcast: broadcast, tracker: tracker}
	defer leaveSession(session, tracker)

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(session.peer, "", "INVALID_ARGUMENT", "invalid frame payload", nil)
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "payload too large", nil)
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(session.peer, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded", nil)
			return
		}

		switch frame.Type {
		case "retro.create":
			handleCreateFrame(deps, session, frame)
		case "retro.join":
			handleJoinFrame(deps, session, frame)
		default:
			handler, ok := commandHandlers[frame.Type]
			if !ok {
				_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "unsupported frame type", nil)
				continue
			}
			retroID, participantID, joined := session.joined()
			if !joined {
				_ = writeWSError(session.peer, frame.RequestID, "FAILED_PRECONDITION", "must join a retrospective first", nil)
				continue
			}
			handler(deps, session, frame, retroID, participantID)
		}
	}
}

func leaveSession(session *wsSession, tracker *presence.Tracker) {
	retroID, participantID, joined := session.joined()
	sub, _ := session.subscription()
	if sub != nil {
		sub.Close()
	}
	if joined {
		if err := tracker.Disconnected(context.Background(), retroID, participantID); err != nil {
			log.Printf("board: disconnect %s from %s: %v", participantID, retroID, err)
		}
	}
}

type createPayload struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type createdPayload struct {
	RetrospectiveID string `json:"retrospective_id"`
	Name            string `json:"name"`
	Kind            string `json:"kind"`
	Step            string `json:"step"`
}

func handleCreateFrame(deps transportDeps, session *wsSession, frame wsFrame) {
	var payload createPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid create payload", nil)
		return
	}

	retro, err := deps.sessions.CreateRetrospective(context.Background(), domain.CreateRetrospectiveInput{
		Name: payload.Name,
		Kind: domain.Kind(payload.Kind),
	})
	if err != nil {
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}

	_ = session.peer.writeFrame(wsFrame{
		Type:      "retro.created",
		RequestID: frame.RequestID,
		Payload: mustJSON(createdPayload{
			RetrospectiveID: retro.ID,
			Name:            retro.Name,
			Kind:            string(retro.Kind),
			Step:            string(retro.Step),
		}),
	})
}

type joinPayload struct {
	RetrospectiveID string `json:"retrospective_id"`
	Surname         string `json:"surname"`
}

type joinedPayload struct {
	Participant domain.Profile        `json:"participant"`
	Snapshot    orchestrator.Snapshot `json:"snapshot"`
}

func handleJoinFrame(deps transportDeps, session *wsSession, frame wsFrame) {
	var payload joinPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid join payload", nil)
		return
	}

	retroID := strings.TrimSpace(payload.RetrospectiveID)
	if retroID == "" {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "retrospective_id is required", nil)
		return
	}
	if utf8.RuneCountInString(payload.Surname) > maxSurnameRunes {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "surname is too long", nil)
		return
	}

	ctx := context.Background()
	profile, err := deps.sessions.Join(ctx, retroID, orchestrator.JoinInput{
		AccountID: session.accountID,
		Surname:   payload.Surname,
	})
	if err != nil {
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}

	// Subscribe before announcing presence so the connection never misses
	// an event between its snapshot and the live stream.
	sub := deps.broadcast.Subscribe(retroID)
	if err := deps.tracker.Connected(ctx, retroID, profile.ID); err != nil {
		sub.Close()
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}
	snapshot, err := deps.sessions.Snapshot(ctx, retroID, profile.ID)
	if err != nil {
		sub.Close()
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}

	previousRetroID, previousParticipantID, wasJoined := session.joined()
	writerDone := make(chan struct{})
	previousSub, previousDone := session.setJoined(retroID, profile.ID, sub, writerDone)
	if previousSub != nil {
		previousSub.Close()
		if previousDone != nil {
			<-previousDone
		}
	}
	if wasJoined && previousRetroID != retroID {
		if err := deps.tracker.Disconnected(ctx, previousRetroID, previousParticipantID); err != nil {
			log.Printf("board: leave %s: %v", previousRetroID, err)
		}
	}

	_ = session.peer.writeFrame(wsFrame{
		Type:      "retro.joined",
		RequestID: frame.RequestID,
		Payload:   mustJSON(joinedPayload{Participant: profile, Snapshot: snapshot}),
	})

	go streamEvents(session.peer, sub, writerDone)
}

type eventPayload struct {
	Action     event.Action `json:"action"`
	Parameters any          `json:"parameters,omitempty"`
}

// streamEvents forwards hub events to the peer until the subscription
// closes. Delivery order matches publish order.
func streamEvents(peer *wsPeer, sub *hub.Subscription, done chan struct{}) {
	defer close(done)
	for e := range sub.Events() {
		err := peer.writeFrame(wsFrame{
			Type:    "retro.event",
			Payload: mustJSON(eventPayload{Action: e.Action, Parameters: e.Params}),
		})
		if err != nil {
			sub.Close()
			return
		}
	}
}

type ackEnvelope struct {
	Result ackResult `json:"result"`
}

type ackResult struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

func writeAck(peer *wsPeer, requestID string, data any) {
	_ = peer.writeFrame(wsFrame{
		Type:      "retro.ack",
		RequestID: requestID,
		Payload:   mustJSON(ackEnvelope{Result: ackResult{Status: "ok", Data: data}}),
	})
}

// writeCommandError reports a rejected command to its issuer. The session
// state is untouched, so no other connection hears about it.
func writeCommandError(peer *wsPeer, requestID string, err error) {
	var metadata map[string]string
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		metadata = domainErr.Metadata
	}
	_ = writeWSError(peer, requestID, string(apperrors.CodeOf(err)), err.Error(), metadata)
}

type commandHandler func(deps transportDeps, session *wsSession, frame wsFrame, retroID, participantID string)

// commandHandlers routes mutation frames. Every entry requires a joined
// session; retro.create and retro.join are handled before the table.
var commandHandlers = map[string]commandHandler{
	"retro.advance_phase":    handleAdvancePhase,
	"retro.elect_revealer":   handleElectRevealer,
	"retro.reveal":           handleReveal,
	"retro.drop_revealer":    handleDropRevealer,
	"retro.set_discussed":    handleSetDiscussed,
	"retro.start_timer":      handleStartTimer,
	"retro.update_color":     handleUpdateColor,
	"retro.add_reflection":   handleAddReflection,
	"retro.group_reflection": handleGroupReflection,
	"retro.add_reaction":     handleAddReaction,
	"retro.remove_reaction":  handleRemoveReaction,
	"retro.create_task":      handleCreateTask,
	"retro.update_task":      handleUpdateTask,
	"retro.delete_task":      handleDeleteTask,
}

func handleAdvancePhase(deps transportDeps, session *wsSession, frame wsFrame, retroID, participantID string) {
	if err := deps.sessions.AdvanceStep(context.Background(), retroID, participantID); err != nil {
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}
	writeAck(session.peer, frame.RequestID, nil)
}

type electRevealerPayload struct {
	ParticipantID string `json:"participant_id"`
}

func handleElectRevealer(deps transportDeps, session *wsSession, frame wsFrame, retroID, participantID string) {
	var payload electRevealerPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid elect payload", nil)
		return
	}
	if err := deps.sessions.ElectRevealer(context.Background(), retroID, participantID, payload.ParticipantID); err != nil {
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}
	writeAck(session.peer, frame.RequestID, nil)
}

type revealPayload struct {
	ReflectionID string `json:"reflection_id"`
}

func handleReveal(deps transportDeps, session *wsSession, frame wsFrame, retroID, participantID string) {
	var payload revealPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid reveal payload", nil)
		return
	}
	if err := deps.sessions.RevealReflection(context.Background(), retroID, participantID, payload.ReflectionID); err != nil {
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}
	writeAck(session.peer, frame.RequestID, nil)
}

func handleDropRevealer(deps transportDeps, session *wsSession, frame wsFrame, retroID, participantID string) {
	if err := deps.sessions.DropRevealerToken(context.Background(), retroID, participantID); err != nil {
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}
	writeAck(session.peer, frame.RequestID, nil)
}

type setDiscussedPayload struct {
	ReflectionID string `json:"reflection_id,omitempty"`
	TopicID      string `json:"topic_id,omitempty"`
}

func handleSetDiscussed(deps transportDeps, session *wsSession, frame wsFrame, retroID, participantID string) {
	var payload setDiscussedPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid set discussed payload", nil)
		return
	}

	ctx := context.Background()
	var err error
	switch {
	case payload.ReflectionID != "":
		err = deps.sessions.SetDiscussedReflection(ctx, retroID, participantID, payload.ReflectionID)
	case payload.TopicID != "":
		err = deps.sessions.SetDiscussedTopic(ctx, retroID, participantID, payload.TopicID)
	default:
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "reflection_id or topic_id is required", nil)
		return
	}
	if err != nil {
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}
	writeAck(session.peer, frame.RequestID, nil)
}

type startTimerPayload struct {
	DurationSeconds int `json:"duration_seconds"`
}

func handleStartTimer(deps transportDeps, session *wsSession, frame wsFrame, retroID, participantID string) {
	var payload startTimerPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid timer payload", nil)
		return
	}
	duration := time.Duration(payload.DurationSeconds) * time.Second
	if err := deps.sessions.StartTimer(context.Background(), retroID, participantID, duration); err != nil {
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}
	writeAck(session.peer, frame.RequestID, nil)
}

type updateColorPayload struct {
	Color string `json:"color"`
}

func handleUpdateColor(deps transportDeps, session *wsSession, frame wsFrame, retroID, participantID string) {
	var payload updateColorPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid color payload", nil)
		return
	}
	if err := deps.sessions.UpdateColor(context.Background(), retroID, participantID, payload.Color); err != nil {
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}
	writeAck(session.peer, frame.RequestID, nil)
}

type addReflectionPayload struct {
	ZoneID  string `json:"zone_id"`
	Content string `json:"content"`
}

func handleAddReflection(deps transportDeps, session *wsSession, frame wsFrame, retroID, participantID string) {
	var payload addReflectionPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid reflection payload", nil)
		return
	}
	if utf8.RuneCountInString(payload.Content) > maxReflectionContentRunes {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "content is too long", nil)
		return
	}
	view, err := deps.sessions.AddReflection(context.Background(), retroID, participantID, payload.ZoneID, payload.Content)
	if err != nil {
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}
	writeAck(session.peer, frame.RequestID, view)
}

type groupReflectionPayload struct {
	ReflectionID string `json:"reflection_id"`
	TopicID      string `json:"topic_id,omitempty"`
	TopicName    string `json:"topic_name,omitempty"`
}

func handleGroupReflection(deps transportDeps, session *wsSession, frame wsFrame, retroID, participantID string) {
	var payload groupReflectionPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid group payload", nil)
		return
	}
	err := deps.sessions.GroupReflection(context.Background(), retroID, participantID,
		payload.ReflectionID, payload.TopicID, payload.TopicName)
	if err != nil {
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}
	writeAck(session.peer, frame.RequestID, nil)
}

type addReactionPayload struct {
	TargetKind string `json:"target_kind"`
	TargetID   string `json:"target_id"`
	Kind       string `json:"kind"`
	Content    string `json:"content,omitempty"`
}

func handleAddReaction(deps transportDeps, session *wsSession, frame wsFrame, retroID, participantID string) {
	var payload addReactionPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid reaction payload", nil)
		return
	}
	view, err := deps.sessions.AddReaction(context.Background(), retroID, participantID,
		domain.TargetKind(payload.TargetKind), payload.TargetID,
		domain.ReactionKind(payload.Kind), payload.Content)
	if err != nil {
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}
	writeAck(session.peer, frame.RequestID, view)
}

type removeReactionPayload struct {
	ReactionID string `json:"reaction_id"`
}

func handleRemoveReaction(deps transportDeps, session *wsSession, frame wsFrame, retroID, participantID string) {
	var payload removeReactionPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid reaction payload", nil)
		return
	}
	if err := deps.sessions.RemoveReaction(context.Background(), retroID, participantID, payload.ReactionID); err != nil {
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}
	writeAck(session.peer, frame.RequestID, nil)
}

type taskPayload struct {
	TaskID       string `json:"task_id,omitempty"`
	AssigneeID   string `json:"assignee_id"`
	ReflectionID string `json:"reflection_id,omitempty"`
	Description  string `json:"description"`
}

func (p taskPayload) input() orchestrator.TaskInput {
	return orchestrator.TaskInput{
		AssigneeID:   p.AssigneeID,
		ReflectionID: p.ReflectionID,
		Description:  p.Description,
	}
}

func handleCreateTask(deps transportDeps, session *wsSession, frame wsFrame, retroID, participantID string) {
	var payload taskPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid task payload", nil)
		return
	}
	view, err := deps.sessions.CreateTask(context.Background(), retroID, participantID, payload.input())
	if err != nil {
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}
	writeAck(session.peer, frame.RequestID, view)
}

func handleUpdateTask(deps transportDeps, session *wsSession, frame wsFrame, retroID, participantID string) {
	var payload taskPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid task payload", nil)
		return
	}
	if strings.TrimSpace(payload.TaskID) == "" {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "task_id is required", nil)
		return
	}
	view, err := deps.sessions.UpdateTask(context.Background(), retroID, participantID, payload.TaskID, payload.input())
	if err != nil {
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}
	writeAck(session.peer, frame.RequestID, view)
}

func handleDeleteTask(deps transportDeps, session *wsSession, frame wsFrame, retroID, participantID string) {
	var payload taskPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid task payload", nil)
		return
	}
	if strings.TrimSpace(payload.TaskID) == "" {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "task_id is required", nil)
		return
	}
	if err := deps.sessions.DeleteTask(context.Background(), retroID, participantID, payload.TaskID); err != nil {
		writeCommandError(session.peer, frame.RequestID, err)
		return
	}
	writeAck(session.peer, frame.RequestID, nil)
}

func writeWSError(peer *wsPeer, requestID string, code string, message string, metadata map[string]string) error {
	return peer.writeFrame(wsFrame{
		Type:      "retro.error",
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{
			Error: wsError{
				Code:     code,
				Message:  message,
				Metadata: metadata,
			},
		}),
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
