package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jansahayak/agent/domain/entities"
	"github.com/jansahayak/agent/usecase"
)

type fakeController struct {
	mu       sync.Mutex
	calls    []string
	snapshot usecase.Snapshot
}

func (f *fakeController) Start() { f.record("start") }
func (f *fakeController) Stop()  { f.record("stop") }

func (f *fakeController) SetRegion(region string) { f.record("set_region:" + region) }

func (f *fakeController) SetLanguage(code string) { f.record("set_language:" + code) }

func (f *fakeController) Snapshot() usecase.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeController) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestHub(t *testing.T) (*Hub, *fakeController, *websocket.Conn) {
	t.Helper()
	ctrl := &fakeController{snapshot: usecase.Snapshot{
		State:  entities.StateIdle,
		Region: "Kerala",
	}}
	hub := NewHub(ctrl, zap.NewNop())
	go hub.Run()

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocket(hub, c, zap.NewNop())
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	t.Cleanup(func() { conn.Close() })
	return hub, ctrl, conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return env
}

func TestHubSendsSnapshotOnConnect(t *testing.T) {
	_, _, conn := newTestHub(t)

	env := readEnvelope(t, conn)
	if env.Type != EnvelopeState {
		t.Fatalf("envelope type = %q", env.Type)
	}
	var snap usecase.Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snap.State != entities.StateIdle || snap.Region != "Kerala" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestHubBroadcastsPublishedSnapshots(t *testing.T) {
	hub, _, conn := newTestHub(t)
	readEnvelope(t, conn) // initial state

	hub.Publish(usecase.Snapshot{State: entities.StateListening, Live: true})

	env := readEnvelope(t, conn)
	var snap usecase.Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.State != entities.StateListening || !snap.Live {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestHubRoutesCommands(t *testing.T) {
	_, ctrl, conn := newTestHub(t)
	readEnvelope(t, conn)

	send := func(v any) {
		t.Helper()
		if err := conn.WriteJSON(v); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	send(Command{Type: CommandStart})
	send(Command{Type: CommandSetRegion, Region: "Bihar"})
	send(Command{Type: CommandSetLanguage, LanguageCode: "te"})
	send(Command{Type: CommandStop})

	want := []string{"start", "set_region:Bihar", "set_language:te", "stop"}
	deadline := time.After(2 * time.Second)
	for {
		got := ctrl.recorded()
		if len(got) == len(want) {
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("calls[%d] = %q, want %q", i, got[i], want[i])
				}
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("calls = %v, want %v", got, want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestParseCommandRejectsJunk(t *testing.T) {
	if _, err := parseCommand([]byte(`{broken`)); err == nil {
		t.Error("malformed JSON accepted")
	}
	if _, err := parseCommand([]byte(`{"region":"Goa"}`)); err == nil {
		t.Error("typeless command accepted")
	}
}
