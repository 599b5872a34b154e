package types

import "testing"

func TestPostCollectionCounts(t *testing.T) {
	c := PostCollection{
		{Account: "alice.bsky.social", Posts: []Post{{Text: "one"}, {Text: "two"}}},
		{Account: "bob.bsky.social"},
		{Account: "carol.bsky.social", Posts: []Post{{Text: "three"}}},
	}

	if got := c.Total(); got != 3 {
		t.Errorf("Total() = %d, want 3", got)
	}
	if c.IsEmpty() {
		t.Error("IsEmpty() = true, want false")
	}

	accounts := c.Accounts()
	want := []string{"alice.bsky.social", "bob.bsky.social", "carol.bsky.social"}
	if len(accounts) != len(want) {
		t.Fatalf("Accounts() = %v, want %v", accounts, want)
	}
	for i := range want {
		if accounts[i] != want[i] {
			t.Errorf("Accounts()[%d] = %q, want %q", i, accounts[i], want[i])
		}
	}
}

func TestPostCollectionEmpty(t *testing.T) {
	tests := []struct {
		name string
		c    PostCollection
	}{
		{"nil", nil},
		{"no accounts", PostCollection{}},
		{"accounts without posts", PostCollection{{Account: "a"}, {Account: "b", Posts: []Post{}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.c.IsEmpty() {
				t.Error("IsEmpty() = false, want true")
			}
		})
	}
}

func TestParseProviderKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ProviderKind
		wantErr bool
	}{
		{"openai", KindOpenAI, false},
		{"OpenAI", KindOpenAI, false},
		{"openai_compatible", KindOpenAICompatible, false},
		{"openai-compatible", KindOpenAICompatible, false},
		{"ollama", KindOllama, false},
		{"local", KindOllama, false},
		{"anthropic", KindAnthropic, false},
		{"gemini", KindUnknown, true},
		{"", KindUnknown, true},
	}

	for _, tt := range tests {
		got, err := ParseProviderKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseProviderKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProviderKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestProviderKindCapabilities(t *testing.T) {
	if !KindOpenAI.SupportsFallback() || !KindOpenAICompatible.SupportsFallback() {
		t.Error("openai kinds should support fallback")
	}
	if KindOllama.SupportsFallback() || KindAnthropic.SupportsFallback() {
		t.Error("single-model kinds should not support fallback")
	}
	if !KindOllama.NeedsEndpoint() || !KindOpenAICompatible.NeedsEndpoint() {
		t.Error("ollama and openai_compatible need an endpoint")
	}
	if KindOpenAI.NeedsEndpoint() || KindAnthropic.NeedsEndpoint() {
		t.Error("hosted kinds use their default endpoint")
	}
}
