package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/matchforge/relay/internal/config"
	"github.com/matchforge/relay/internal/relay"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTransportConfig() config.TransportConfig {
	return config.TransportConfig{
		WriteTimeout:   2 * time.Second,
		PingInterval:   10 * time.Second,
		PongTimeout:    10 * time.Second,
		SendBuffer:     32,
		MaxMessageSize: 64 * 1024,
	}
}

// matchStub backs both the hub's roster source and the handler's membership
// check from one in-memory table.
type matchStub struct {
	rosters map[int64]map[uuid.UUID]int64
}

func (m *matchStub) MatchRoster(ctx context.Context, matchID int64) (map[uuid.UUID]int64, error) {
	roster, ok := m.rosters[matchID]
	if !ok {
		return nil, fmt.Errorf("match %d: %w", matchID, relay.ErrUnknownRoom)
	}
	return roster, nil
}

func (m *matchStub) IsMember(ctx context.Context, matchID int64, playerID uuid.UUID) (bool, error) {
	roster, ok := m.rosters[matchID]
	if !ok {
		return false, nil
	}
	_, ok = roster[playerID]
	return ok, nil
}

func stubFor(matchID int64, participants ...uuid.UUID) *matchStub {
	roster := make(map[uuid.UUID]int64, len(participants))
	for i, p := range participants {
		roster[p] = int64(i + 1)
	}
	return &matchStub{rosters: map[int64]map[uuid.UUID]int64{matchID: roster}}
}

func newTestServer(t *testing.T, stub *matchStub) (*httptest.Server, *relay.Hub) {
	t.Helper()

	hub := relay.NewHub(relay.DefaultHubConfig(), stub, nil, discardLogger())
	h := NewHandler(hub, stub, HeaderIdentity{}, testTransportConfig(), discardLogger())

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, hub
}

// waitForConnections blocks until the hub has registered n live connections.
// Dial returns at handshake time, before the server goroutine reaches the
// hub, so tests must not broadcast until registration is visible.
func waitForConnections(t *testing.T, hub *relay.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Stats().Connections == n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d connections", n)
}

func dial(t *testing.T, srv *httptest.Server, matchID int64, participant uuid.UUID) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + fmt.Sprintf("/ws?match=%d", matchID)
	header := http.Header{ParticipantHeader: []string{participant.String()}}

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v (resp=%+v)", err, resp)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()

	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func TestHeaderIdentity(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		header  string
		value   string
		want    uuid.UUID
		wantErr bool
	}{
		{name: "default header", header: ParticipantHeader, value: id.String(), want: id},
		{name: "missing header", header: "", value: "", wantErr: true},
		{name: "malformed uuid", header: ParticipantHeader, value: "not-a-uuid", wantErr: true},
		{name: "custom header", header: "X-Player", value: id.String(), want: id},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.header != "" {
				r.Header.Set(tt.header, tt.value)
			}

			provider := HeaderIdentity{}
			if tt.header != "" && tt.header != ParticipantHeader {
				provider.Header = tt.header
			}

			got, err := provider.ParticipantID(r)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("participant = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEnvelopeFrom(t *testing.T) {
	sender := uuid.New()
	now := time.Now()

	env := envelopeFrom(relay.Message{
		Kind:        relay.KindData,
		MatchID:     7,
		Participant: sender,
		Timestamp:   now,
		Payload:     []byte("move"),
	})

	if env.Type != "data" {
		t.Errorf("type = %q, want data", env.Type)
	}
	if env.MatchID != 7 || env.Participant != sender {
		t.Errorf("identity fields = (%d, %s), want (7, %s)", env.MatchID, env.Participant, sender)
	}
	if !bytes.Equal(env.Payload, []byte("move")) {
		t.Errorf("payload = %q", env.Payload)
	}

	notice := envelopeFrom(relay.Message{Kind: relay.KindReconnecting, MatchID: 7, Participant: sender})
	if notice.Type != "reconnecting" || notice.Payload != nil {
		t.Errorf("notice = %+v, want reconnecting with no payload", notice)
	}
}

func TestHandler_RejectsInvalidRequests(t *testing.T) {
	member := uuid.New()
	outsider := uuid.New()
	srv, _ := newTestServer(t, stubFor(42, member))

	tests := []struct {
		name        string
		method      string
		target      string
		participant string
		wantStatus  int
	}{
		{name: "wrong method", method: http.MethodPost, target: "/ws?match=42", participant: member.String(), wantStatus: http.StatusMethodNotAllowed},
		{name: "missing match id", method: http.MethodGet, target: "/ws", participant: member.String(), wantStatus: http.StatusBadRequest},
		{name: "malformed match id", method: http.MethodGet, target: "/ws?match=abc", participant: member.String(), wantStatus: http.StatusBadRequest},
		{name: "no identity", method: http.MethodGet, target: "/ws?match=42", participant: "", wantStatus: http.StatusUnauthorized},
		{name: "not a member", method: http.MethodGet, target: "/ws?match=42", participant: outsider.String(), wantStatus: http.StatusForbidden},
		{name: "unknown match", method: http.MethodGet, target: "/ws?match=99", participant: member.String(), wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.target, nil)
			if err != nil {
				t.Fatal(err)
			}
			if tt.participant != "" {
				req.Header.Set(ParticipantHeader, tt.participant)
			}

			resp, err := srv.Client().Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestHandler_RelaysBetweenStreams(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	srv, hub := newTestServer(t, stubFor(42, alice, bob))

	a := dial(t, srv, 42, alice)
	b := dial(t, srv, 42, bob)
	waitForConnections(t, hub, 2)

	payload := []byte(`{"turn":1}`)
	if err := a.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Data frames reach every live stream, the sender's included.
	for name, conn := range map[string]*websocket.Conn{"alice": a, "bob": b} {
		env := readEnvelope(t, conn)
		if env.Type != "data" {
			t.Fatalf("%s: type = %q, want data", name, env.Type)
		}
		if env.MatchID != 42 || env.Participant != alice {
			t.Fatalf("%s: envelope = (%d, %s), want (42, %s)", name, env.MatchID, env.Participant, alice)
		}
		if !bytes.Equal(env.Payload, payload) {
			t.Fatalf("%s: payload = %q, want %q", name, env.Payload, payload)
		}
	}
}

func TestHandler_CleanCloseNotifiesPeers(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	srv, hub := newTestServer(t, stubFor(42, alice, bob))

	a := dial(t, srv, 42, alice)
	b := dial(t, srv, 42, bob)
	waitForConnections(t, hub, 2)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	if err := a.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("close: %v", err)
	}

	env := readEnvelope(t, b)
	if env.Type != "disconnected" {
		t.Fatalf("type = %q, want disconnected", env.Type)
	}
	if env.Participant != alice {
		t.Fatalf("participant = %s, want %s", env.Participant, alice)
	}
}
