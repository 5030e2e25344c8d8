package remote

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-syncvoice/pkg/hal"
	"github.com/teslashibe/go-syncvoice/pkg/protocol"
)

type fakeBackend struct {
	mu     sync.Mutex
	values map[hal.Selector][]byte
	sets   int
}

func newFakeBackend() *fakeBackend {
	rate := make([]byte, 8)
	binary.LittleEndian.PutUint64(rate, 0x40E5888000000000) // 44100.0
	return &fakeBackend{values: map[hal.Selector][]byte{hal.PropNominalSampleRate: rate}}
}

func (b *fakeBackend) GetProperty(id hal.ObjectID, client hal.ClientID, addr hal.Address, qualifier []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id != 2 {
		return nil, hal.ErrBadObject
	}
	v, ok := b.values[addr.Selector]
	if !ok {
		return nil, hal.ErrUnknownProperty
	}
	return v, nil
}

func (b *fakeBackend) SetPropertyData(id hal.ObjectID, client hal.ClientID, addr hal.Address, qualifier []byte, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id != 2 {
		return hal.ErrBadObject
	}
	b.sets++
	b.values[addr.Selector] = data
	return nil
}

func (b *fakeBackend) GetZeroTimeStamp(deviceID hal.ObjectID, client hal.ClientID) (float64, uint64, uint64, error) {
	if deviceID != 2 {
		return 0, 0, 0, hal.ErrBadObject
	}
	return 16384, 12345, 1, nil
}

type fakeIO struct {
	mu      sync.Mutex
	started []hal.ObjectID
	stopped []hal.ObjectID
	clients []hal.ClientID
	err     error
}

func (f *fakeIO) Start(id hal.ObjectID, client hal.ClientID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, id)
	f.clients = append(f.clients, client)
	return f.err
}

func (f *fakeIO) Stop(id hal.ObjectID, client hal.ClientID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, id)
	f.clients = append(f.clients, client)
	return f.err
}

func startServer(t *testing.T, s *Server, addr string) {
	t.Helper()
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	s.RegisterRoutes(app)
	s.RegisterAPIRoutes(app.Group("/api"))

	go app.Listen(addr)
	t.Cleanup(func() { app.Shutdown() })
	time.Sleep(100 * time.Millisecond)
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func roundTrip(t *testing.T, ws *websocket.Conn, msg *protocol.Message) *protocol.Message {
	t.Helper()
	data, _ := msg.Bytes()
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, resp, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	reply, err := protocol.ParseMessage(resp)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return reply
}

func TestNewServer(t *testing.T) {
	s := NewServer(newFakeBackend(), nil, nil)

	if s.SessionCount() != 0 {
		t.Error("SessionCount should be 0 initially")
	}
	if s.Session("nonexistent") != nil {
		t.Error("Session should return nil for unknown id")
	}
	if err := s.SendTo("nonexistent", &protocol.Message{Type: protocol.TypePing}); !errors.Is(err, ErrNoSession) {
		t.Errorf("SendTo() error = %v, want ErrNoSession", err)
	}
	s.Broadcast(&protocol.Message{Type: protocol.TypePing})
}

func TestHandleMessage(t *testing.T) {
	backend := newFakeBackend()
	ctl := &fakeIO{}
	s := NewServer(backend, ctl, nil)

	mustBytes := func(m *protocol.Message, err error) []byte {
		if err != nil {
			t.Fatal(err)
		}
		b, _ := m.WithID("r").Bytes()
		return b
	}

	tests := []struct {
		name       string
		input      []byte
		wantType   protocol.MessageType
		wantStatus string
	}{
		{
			name:     "get property",
			input:    mustBytes(protocol.NewGetPropertyMessage(2, protocol.Address{Selector: "nsrt"}, nil)),
			wantType: protocol.TypeResult,
		},
		{
			name:       "get bad object",
			input:      mustBytes(protocol.NewGetPropertyMessage(99, protocol.Address{Selector: "nsrt"}, nil)),
			wantType:   protocol.TypeError,
			wantStatus: "!obj",
		},
		{
			name:       "get unknown property",
			input:      mustBytes(protocol.NewGetPropertyMessage(2, protocol.Address{Selector: "zzzz"}, nil)),
			wantType:   protocol.TypeError,
			wantStatus: "who?",
		},
		{
			name:     "set property",
			input:    mustBytes(protocol.NewSetPropertyMessage(2, protocol.Address{Selector: "nsrt"}, make([]byte, 8))),
			wantType: protocol.TypeResult,
		},
		{
			name:     "start io",
			input:    mustBytes(protocol.NewIOMessage(protocol.TypeStartIO, 2, 7)),
			wantType: protocol.TypeResult,
		},
		{
			name:     "stop io",
			input:    mustBytes(protocol.NewIOMessage(protocol.TypeStopIO, 2, 7)),
			wantType: protocol.TypeResult,
		},
		{
			name:     "timestamp",
			input:    mustBytes(protocol.NewIOMessage(protocol.TypeTimeStamp, 2, 1)),
			wantType: protocol.TypeResult,
		},
		{
			name:     "ping",
			input:    mustBytes(protocol.NewPingMessage("p")),
			wantType: protocol.TypePong,
		},
		{
			name:       "unknown type",
			input:      []byte(`{"type":"dance","id":"r"}`),
			wantType:   protocol.TypeError,
			wantStatus: "unop",
		},
		{
			name:       "invalid json",
			input:      []byte("not json"),
			wantType:   protocol.TypeError,
			wantStatus: "nope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := s.handleMessage(tt.input)
			if reply == nil {
				t.Fatal("handleMessage() returned nil")
			}
			if reply.Type != tt.wantType {
				t.Fatalf("Type = %s, want %s", reply.Type, tt.wantType)
			}
			if tt.wantStatus != "" {
				e, _ := reply.GetErrorData()
				if e.Status != tt.wantStatus {
					t.Errorf("Status = %q, want %q", e.Status, tt.wantStatus)
				}
			}
		})
	}

	if backend.sets != 1 {
		t.Errorf("sets = %d, want 1", backend.sets)
	}
	if len(ctl.started) != 1 || len(ctl.stopped) != 1 {
		t.Errorf("started %v stopped %v", ctl.started, ctl.stopped)
	}
	if len(ctl.clients) != 2 || ctl.clients[0] != 7 || ctl.clients[1] != 7 {
		t.Errorf("clients = %v, want [7 7]", ctl.clients)
	}
}

func TestIOWithoutController(t *testing.T) {
	s := NewServer(newFakeBackend(), nil, nil)
	msg, _ := protocol.NewIOMessage(protocol.TypeStartIO, 2, 1)
	data, _ := msg.Bytes()

	reply := s.handleMessage(data)
	e, _ := reply.GetErrorData()
	if reply.Type != protocol.TypeError || e.Status != "unop" {
		t.Errorf("reply = %+v / %+v", reply, e)
	}
}

func TestWebSocketSession(t *testing.T) {
	s := NewServer(newFakeBackend(), &fakeIO{}, nil)
	startServer(t, s, ":18090")

	ws := dial(t, "ws://localhost:18090/ws/host/studio")
	time.Sleep(50 * time.Millisecond)

	if s.SessionCount() != 1 {
		t.Fatalf("SessionCount = %d, want 1", s.SessionCount())
	}
	if s.Session("studio") == nil {
		t.Error("Session should return the connected host")
	}

	req, _ := protocol.NewGetPropertyMessage(2, protocol.Address{Selector: "nsrt"}, nil)
	reply := roundTrip(t, ws, req.WithID("q1"))
	if reply.Type != protocol.TypeResult || reply.ID != "q1" {
		t.Fatalf("reply = %+v", reply)
	}
	res, _ := reply.GetResultData()
	if res.Size != 8 {
		t.Errorf("Size = %d, want 8", res.Size)
	}

	ts, _ := protocol.NewIOMessage(protocol.TypeTimeStamp, 2, 1)
	reply = roundTrip(t, ws, ts.WithID("q2"))
	tsData, _ := reply.GetTimeStampData()
	if tsData.SampleTime != 16384 || tsData.Seed != 1 {
		t.Errorf("timestamp = %+v", tsData)
	}

	ws.Close()
	time.Sleep(100 * time.Millisecond)
	if s.SessionCount() != 0 {
		t.Errorf("SessionCount = %d, want 0 after disconnect", s.SessionCount())
	}
}

func TestNotifyPushesToSessions(t *testing.T) {
	s := NewServer(newFakeBackend(), nil, nil)
	startServer(t, s, ":18091")

	a := dial(t, "ws://localhost:18091/ws/host/a")
	b := dial(t, "ws://localhost:18091/ws/host")
	time.Sleep(50 * time.Millisecond)

	if s.SessionCount() != 2 {
		t.Fatalf("SessionCount = %d, want 2", s.SessionCount())
	}

	s.Notify(2, []hal.Address{hal.GlobalAddr(hal.PropNominalSampleRate)})

	for _, ws := range []*websocket.Conn{a, b} {
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg protocol.Message
		json.Unmarshal(data, &msg)
		if msg.Type != protocol.TypePropertiesChanged {
			t.Fatalf("Type = %s, want properties_changed", msg.Type)
		}
		n, _ := msg.GetPropertiesChangedData()
		if n.ObjectID != 2 || len(n.Addresses) != 1 || n.Addresses[0].Selector != "nsrt" || n.Addresses[0].Scope != "global" {
			t.Errorf("notification = %+v", n)
		}
	}

	if got := s.GetStats().MessagesSent; got != 2 {
		t.Errorf("MessagesSent = %d, want 2", got)
	}
}

func TestAPIListHosts(t *testing.T) {
	s := NewServer(newFakeBackend(), nil, nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	s.RegisterRoutes(app)
	s.RegisterAPIRoutes(app.Group("/api"))

	for _, path := range []string{"/api/hosts/", "/api/hosts/stats"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatalf("Request error: %v", err)
		}
		if resp.StatusCode != 200 {
			t.Errorf("%s: Status = %d, want 200", path, resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if path == "/api/hosts/" && !strings.Contains(string(body), "hosts") {
			t.Error("Response should contain 'hosts' field")
		}
	}

	resp, _ := app.Test(httptest.NewRequest("GET", "/ws/host", nil))
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("plain GET status = %d, want 426", resp.StatusCode)
	}
}
