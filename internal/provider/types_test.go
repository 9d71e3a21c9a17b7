package provider

import (
	"encoding/json"
	"testing"
)

func TestTurnJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(UserTurn("hello"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(data), `{"role":"user","content":"hello"}`; got != want {
		t.Errorf("json = %s, want %s", got, want)
	}
}

func TestRoleValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role Role
		want bool
	}{
		{RoleSystem, true},
		{RoleUser, true},
		{RoleAssistant, true},
		{Role("tool"), false},
		{Role(""), false},
	}
	for _, tt := range tests {
		if got := tt.role.Valid(); got != tt.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestTokenUsageTotal(t *testing.T) {
	t.Parallel()

	u := TokenUsage{PromptTokens: 12, CompletionTokens: 30}
	if got := u.TotalTokens(); got != 42 {
		t.Errorf("TotalTokens() = %d, want 42", got)
	}
}
