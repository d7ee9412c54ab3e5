package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_NextMessage(t *testing.T) {
	var gotState map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/message" || r.Method != "POST" {
			t.Errorf("%s %s, want POST /message", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Error("missing bearer token")
		}
		json.NewDecoder(r.Body).Decode(&gotState)
		json.NewEncoder(w).Encode(Message{
			Text:     "Time for some water",
			Category: "hydration",
			Priority: 2,
			Action:   "speak",
		})
	}))
	defer server.Close()

	client, err := NewClient(WithBaseURL(server.URL), WithAPIKey("secret"))
	if err != nil {
		t.Fatal(err)
	}

	msg, err := client.NextMessage(context.Background(), map[string]interface{}{
		"focus_minutes": 75,
	})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != "Time for some water" || msg.Category != "hydration" {
		t.Errorf("message = %+v", msg)
	}
	if gotState["focus_minutes"] != float64(75) {
		t.Errorf("state payload = %v", gotState)
	}
}

func TestClient_NoContentMeansNoNudge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))

	msg, err := client.NextMessage(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if msg != nil {
		t.Errorf("msg = %+v, want nil", msg)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))

	if _, err := client.NextMessage(context.Background(), nil); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewClient(); !errors.Is(err, ErrNoBaseURL) {
		t.Errorf("err = %v, want ErrNoBaseURL", err)
	}
}

func TestMock_RecordsState(t *testing.T) {
	m := &Mock{Msg: &Message{Text: "stretch"}}

	msg, err := m.NextMessage(context.Background(), map[string]interface{}{"posture": 55})
	if err != nil || msg.Text != "stretch" {
		t.Fatalf("got %+v, %v", msg, err)
	}
	if m.Calls() != 1 || m.LastState()["posture"] != 55 {
		t.Error("call not recorded")
	}
}
