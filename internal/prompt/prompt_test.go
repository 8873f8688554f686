package prompt

import "testing"

type fakeRenderer struct {
	calls int
}

func (f *fakeRenderer) Render(tokens TemplateTokens, generationPrefix string, messages []Message) (string, error) {
	f.calls++
	out := tokens.BOS
	for _, m := range messages {
		out += string(m.Role) + ":" + m.Content + "\n"
	}
	return out + generationPrefix, nil
}

func TestBuildRejectsEmptyPrompt(t *testing.T) {
	p := NewMessageArrayPrompt(4, 1)
	if err := p.Build(); err == nil {
		t.Fatal("expected error on empty prompt")
	}
}

func TestBuildRejectsTrailingAssistant(t *testing.T) {
	p := NewMessageArrayPrompt(4, 1)
	p.Append(RoleUser, "hi")
	p.Append(RoleAssistant, "hello")
	if err := p.Build(); err == nil {
		t.Fatal("expected error on trailing assistant message")
	}
}

func TestBuildRejectsTrailingSystem(t *testing.T) {
	p := NewMessageArrayPrompt(4, 1)
	p.Append(RoleSystem, "be nice")
	if err := p.Build(); err == nil {
		t.Fatal("expected error on trailing system message")
	}
}

func TestBuildRejectsBrokenAlternation(t *testing.T) {
	p := NewMessageArrayPrompt(4, 1)
	p.Append(RoleUser, "hi")
	p.Append(RoleUser, "again")
	if err := p.Build(); err == nil {
		t.Fatal("expected error on consecutive user messages")
	}
}

func TestBuildAcceptsLeadingSystemThenAlternation(t *testing.T) {
	p := NewMessageArrayPrompt(4, 1)
	p.Append(RoleSystem, "be nice")
	p.Append(RoleUser, "hi")
	p.Append(RoleAssistant, "hello")
	p.Append(RoleUser, "how are you")
	if err := p.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
}

func TestChatTemplateRendersLazilyAndCachesUntilMutated(t *testing.T) {
	r := &fakeRenderer{}
	p := NewChatTemplatePrompt(r, TemplateTokens{BOS: "<s>"}, "assistant:")
	p.Append(RoleUser, "hi")

	if err := p.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.calls != 1 {
		t.Fatalf("calls = %d, want 1", r.calls)
	}
	first := p.Rendered()

	if err := p.Build(); err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if r.calls != 1 {
		t.Fatalf("calls after no-op rebuild = %d, want 1 (cached)", r.calls)
	}

	p.Append(RoleAssistant, "hello")
	p.Append(RoleUser, "bye")
	if err := p.Build(); err != nil {
		t.Fatalf("third Build: %v", err)
	}
	if r.calls != 2 {
		t.Fatalf("calls after mutation = %d, want 2 (re-rendered)", r.calls)
	}
	if p.Rendered() == first {
		t.Fatal("expected rendering to change after appending messages")
	}
}
