package types

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestMessageUnmarshal_Roles(t *testing.T) {
	for _, role := range []Role{RoleSystem, RoleUser, RoleModel} {
		var m Message
		in := `{"role":"` + string(role) + `","content":"hi"}`
		if err := json.Unmarshal([]byte(in), &m); err != nil {
			t.Fatalf("%s: %v", role, err)
		}
		if m.Role != role || m.Content != "hi" {
			t.Fatalf("decoded %+v", m)
		}
	}
}

func TestMessageUnmarshal_RejectsUnknownRole(t *testing.T) {
	var req ChatRequest
	err := json.Unmarshal([]byte(`{"message":"x","history":[{"role":"assistant","content":"hi"}]}`), &req)
	var re *RoleError
	if !errors.As(err, &re) || re.Role != "assistant" {
		t.Fatalf("expected RoleError for assistant, got %v", err)
	}
}

func TestMessageUnmarshal_RequiresRole(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"content":"hi"}`), &m)
	var re *RoleError
	if !errors.As(err, &re) || !re.Missing {
		t.Fatalf("expected missing-role error, got %v", err)
	}
}

func TestChatRequest_MessageAbsentVsEmpty(t *testing.T) {
	var a, b ChatRequest
	if err := json.Unmarshal([]byte(`{}`), &a); err != nil {
		t.Fatal(err)
	}
	if a.Message != nil {
		t.Fatalf("absent message should decode to nil")
	}
	if err := json.Unmarshal([]byte(`{"message":""}`), &b); err != nil {
		t.Fatal(err)
	}
	if b.Message == nil || *b.Message != "" {
		t.Fatalf("empty message should decode to empty string")
	}
}

func TestChatResponse_OmitsTokensUsed(t *testing.T) {
	b, err := json.Marshal(ChatResponse{Response: "ok", History: []Message{}})
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	_ = json.Unmarshal(b, &raw)
	if _, ok := raw["tokens_used"]; ok {
		t.Fatalf("tokens_used should be omitted: %s", b)
	}
}
