package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/retroboard/internal/retro/domain"
	"github.com/louisbranch/retroboard/internal/retro/hub"
	"github.com/louisbranch/retroboard/internal/retro/presence"
	"github.com/louisbranch/retroboard/internal/retro/registry"
	"github.com/louisbranch/retroboard/internal/retro/storage"
	"golang.org/x/net/websocket"
)

type wsTestFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// memStore is an in-memory storage.Store for transport tests.
type memStore struct {
	mu      sync.Mutex
	bundles map[string]storage.Bundle
}

func newMemStore() *memStore {
	return &memStore{bundles: make(map[string]storage.Bundle)}
}

func (m *memStore) CreateRetrospective(_ context.Context, retro domain.Retrospective, zones []domain.Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundles[retro.ID] = storage.Bundle{Retrospective: retro, Zones: zones}
	return nil
}

func (m *memStore) LoadBundle(_ context.Context, retroID string) (storage.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bundle, ok := m.bundles[retroID]
	if !ok {
		return storage.Bundle{}, storage.ErrNotFound
	}
	return bundle, nil
}

func (m *memStore) Apply(_ context.Context, _ []storage.Change) error {
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	broadcast := hub.New()
	sessions := registry.New(newMemStore(), broadcast, nil, nil)
	tracker := presence.NewTracker(sessions, 50*time.Millisecond)
	t.Cleanup(tracker.Stop)

	srv := httptest.NewServer(NewHandler(sessions, broadcast, tracker))
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, cookie string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	cfg, err := websocket.NewConfig(wsURL, srv.URL)
	if err != nil {
		t.Fatalf("websocket config: %v", err)
	}
	if cookie != "" {
		cfg.Header = make(http.Header)
		cfg.Header.Set("Cookie", cookie)
	}
	conn, err := websocket.DialConfig(cfg)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	if err := json.NewEncoder(conn).Encode(frame); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) wsTestFrame {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var got wsTestFrame
	if err := json.NewDecoder(conn).Decode(&got); err != nil {
		t.Fatalf("decode server frame: %v", err)
	}
	return got
}

// readUntilType skips frames of other types (interleaved broadcast events
// versus acks) until one of the wanted type arrives.
func readUntilType(t *testing.T, conn *websocket.Conn, frameType string) wsTestFrame {
	t.Helper()
	for i := 0; i < 20; i++ {
		got := readFrame(t, conn)
		if got.Type == frameType {
			return got
		}
	}
	t.Fatalf("no %s frame received", frameType)
	return wsTestFrame{}
}

func readUntilEvent(t *testing.T, conn *websocket.Conn, action string) json.RawMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		got := readFrame(t, conn)
		if got.Type != "retro.event" {
			continue
		}
		var payload struct {
			Action     string          `json:"action"`
			Parameters json.RawMessage `json:"parameters"`
		}
		if err := json.Unmarshal(got.Payload, &payload); err != nil {
			t.Fatalf("decode event payload: %v", err)
		}
		if payload.Action == action {
			return payload.Parameters
		}
	}
	t.Fatalf("no %s event received", action)
	return nil
}

func createRetrospective(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	writeFrame(t, conn, map[string]any{
		"type":       "retro.create",
		"request_id": "req-create-1",
		"payload":    map[string]any{"name": "Sprint 12", "kind": "kds"},
	})
	got := readUntilType(t, conn, "retro.created")
	var payload struct {
		RetrospectiveID string `json:"retrospective_id"`
	}
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("decode created payload: %v", err)
	}
	if payload.RetrospectiveID == "" {
		t.Fatalf("created payload = %s", string(got.Payload))
	}
	return payload.RetrospectiveID
}

func joinRetrospective(t *testing.T, conn *websocket.Conn, retroID, surname string) json.RawMessage {
	t.Helper()
	writeFrame(t, conn, map[string]any{
		"type":       "retro.join",
		"request_id": "req-join-1",
		"payload":    map[string]any{"retrospective_id": retroID, "surname": surname},
	})
	got := readUntilType(t, conn, "retro.joined")
	return got.Payload
}

func TestWebSocketCreateAndJoin(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv, "rb_account=acct-1")

	retroID := createRetrospective(t, conn)
	joined := joinRetrospective(t, conn, retroID, "alice")

	var payload struct {
		Participant domain.Profile `json:"participant"`
		Snapshot    struct {
			Step  string `json:"step"`
			Zones []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"zones"`
		} `json:"snapshot"`
	}
	if err := json.Unmarshal(joined, &payload); err != nil {
		t.Fatalf("decode joined payload: %v", err)
	}
	if !payload.Participant.Facilitator {
		t.Fatalf("first joiner should facilitate: %+v", payload.Participant)
	}
	if payload.Snapshot.Step != "gathering" {
		t.Fatalf("step = %s", payload.Snapshot.Step)
	}
	if len(payload.Snapshot.Zones) != 3 {
		t.Fatalf("zones = %+v", payload.Snapshot.Zones)
	}
}

func TestWebSocketCommandBeforeJoin(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv, "rb_account=acct-1")

	writeFrame(t, conn, map[string]any{
		"type":       "retro.advance_phase",
		"request_id": "req-1",
		"payload":    map[string]any{},
	})

	got := readUntilType(t, conn, "retro.error")
	if !strings.Contains(string(got.Payload), "FAILED_PRECONDITION") {
		t.Fatalf("error payload = %s", string(got.Payload))
	}
}

func TestWebSocketUnknownTypeReturnsError(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv, "rb_account=acct-1")

	writeFrame(t, conn, map[string]any{
		"type":       "retro.unknown",
		"request_id": "req-1",
		"payload":    map[string]any{},
	})

	got := readUntilType(t, conn, "retro.error")
	if !strings.Contains(string(got.Payload), "INVALID_ARGUMENT") {
		t.Fatalf("error payload = %s", string(got.Payload))
	}
}

func TestWebSocketAdvanceBroadcastsToAllParticipants(t *testing.T) {
	srv := newTestServer(t)
	facilitator := dialWS(t, srv, "rb_account=acct-1")
	observer := dialWS(t, srv, "rb_account=acct-2")

	retroID := createRetrospective(t, facilitator)
	joinRetrospective(t, facilitator, retroID, "alice")
	joinRetrospective(t, observer, retroID, "bob")

	writeFrame(t, facilitator, map[string]any{
		"type":       "retro.advance_phase",
		"request_id": "req-advance-1",
		"payload":    map[string]any{},
	})

	params := readUntilEvent(t, observer, "phaseAdvanced")
	var advanced struct {
		Step string `json:"step"`
	}
	if err := json.Unmarshal(params, &advanced); err != nil {
		t.Fatalf("decode phaseAdvanced params: %v", err)
	}
	if advanced.Step != "thinking" {
		t.Fatalf("step = %s", advanced.Step)
	}

	readUntilEvent(t, facilitator, "phaseAdvanced")
}

func TestWebSocketNonFacilitatorAdvanceIsSilentlyIgnored(t *testing.T) {
	srv := newTestServer(t)
	facilitator := dialWS(t, srv, "rb_account=acct-1")
	observer := dialWS(t, srv, "rb_account=acct-2")

	retroID := createRetrospective(t, facilitator)
	joinRetrospective(t, facilitator, retroID, "alice")
	joinRetrospective(t, observer, retroID, "bob")

	writeFrame(t, observer, map[string]any{
		"type":       "retro.advance_phase",
		"request_id": "req-advance-1",
		"payload":    map[string]any{},
	})

	// The command is dropped without an error; the issuer only sees an ack.
	got := readUntilType(t, observer, "retro.ack")
	if !strings.Contains(string(got.Payload), "ok") {
		t.Fatalf("ack payload = %s", string(got.Payload))
	}
}

func TestWebSocketVoteQuota(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv, "rb_account=acct-1")

	retroID := createRetrospective(t, conn)
	joined := joinRetrospective(t, conn, retroID, "alice")
	var joinedPayload struct {
		Snapshot struct {
			Zones []struct {
				ID string `json:"id"`
			} `json:"zones"`
		} `json:"snapshot"`
	}
	if err := json.Unmarshal(joined, &joinedPayload); err != nil {
		t.Fatalf("decode joined payload: %v", err)
	}

	// gathering -> thinking, write a reflection, then on to voting.
	writeFrame(t, conn, map[string]any{"type": "retro.advance_phase", "request_id": "adv-1", "payload": map[string]any{}})
	readUntilType(t, conn, "retro.ack")

	writeFrame(t, conn, map[string]any{
		"type":       "retro.add_reflection",
		"request_id": "req-reflection-1",
		"payload": map[string]any{
			"zone_id": joinedPayload.Snapshot.Zones[0].ID,
			"content": "slow builds",
		},
	})
	ack := readUntilType(t, conn, "retro.ack")
	var reflectionAck struct {
		Result struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"result"`
	}
	if err := json.Unmarshal(ack.Payload, &reflectionAck); err != nil {
		t.Fatalf("decode reflection ack: %v", err)
	}
	reflectionID := reflectionAck.Result.Data.ID
	if reflectionID == "" {
		t.Fatalf("reflection ack = %s", string(ack.Payload))
	}

	for i := 0; i < 2; i++ {
		writeFrame(t, conn, map[string]any{"type": "retro.advance_phase", "request_id": "adv-n", "payload": map[string]any{}})
		readUntilType(t, conn, "retro.ack")
	}

	for i := 0; i < domain.VoteQuota; i++ {
		writeFrame(t, conn, map[string]any{
			"type":       "retro.add_reaction",
			"request_id": "req-vote",
			"payload": map[string]any{
				"target_kind": "reflection",
				"target_id":   reflectionID,
				"kind":        "vote",
			},
		})
		readUntilType(t, conn, "retro.ack")
	}

	writeFrame(t, conn, map[string]any{
		"type":       "retro.add_reaction",
		"request_id": "req-vote-over",
		"payload": map[string]any{
			"target_kind": "reflection",
			"target_id":   reflectionID,
			"kind":        "vote",
		},
	})
	got := readUntilType(t, conn, "retro.error")
	if !strings.Contains(string(got.Payload), "REACTION_QUOTA_EXCEEDED") {
		t.Fatalf("error payload = %s", string(got.Payload))
	}
}

func TestWebSocketIssuesAccountCookie(t *testing.T) {
	srv := newTestServer(t)

	// A plain GET on /up confirms the health route; the cookie behavior is
	// exercised by dialing without one.
	resp, err := http.Get(srv.URL + "/up")
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	conn := dialWS(t, srv, "")
	retroID := createRetrospective(t, conn)
	joinRetrospective(t, conn, retroID, "anon")
}
