// Package prompt carries an ordered sequence of {role, content} messages
// and produces either a chat-template-rendered string (local backends) or
// the raw message array (remote backends), per spec §4.I.
package prompt

import (
	"fmt"

	"llmcascade/internal/pkgerrors"
)

// Role identifies a message's speaker in a Prompt.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a Prompt's ordered sequence.
type Message struct {
	Role    Role
	Content string
}

// TemplateTokens names the special tokens a chat-template renderer needs.
type TemplateTokens struct {
	BOS string
	EOS string
	UNK string
}

// Renderer produces a chat-template string from a message array plus a
// base generation prefix; supplied by the local backend that owns the
// model's chat template.
type Renderer interface {
	Render(tokens TemplateTokens, generationPrefix string, messages []Message) (string, error)
}

// Prompt is built by one of the two constructors below, which select its
// variant: chat-template (local) or message-array (remote).
type Prompt struct {
	messages []Message

	// Chat-template variant.
	renderer         Renderer
	tokens           TemplateTokens
	generationPrefix string
	rendered         string
	dirty            bool

	// Message-array variant: per-request token-overhead constants used
	// for token-budget accounting rather than rendering.
	perMessageTokenOverhead int
	nameTokenOverhead       int
}

// NewChatTemplatePrompt builds the chat-template variant: raw messages
// plus an opaque rendered string produced by renderer on first access
// after any mutation.
func NewChatTemplatePrompt(renderer Renderer, tokens TemplateTokens, generationPrefix string) *Prompt {
	return &Prompt{renderer: renderer, tokens: tokens, generationPrefix: generationPrefix, dirty: true}
}

// NewMessageArrayPrompt builds the message-array variant: "rendering"
// merely returns the array itself.
func NewMessageArrayPrompt(perMessageTokenOverhead, nameTokenOverhead int) *Prompt {
	return &Prompt{perMessageTokenOverhead: perMessageTokenOverhead, nameTokenOverhead: nameTokenOverhead}
}

// IsChatTemplate reports which variant this Prompt was built as.
func (p *Prompt) IsChatTemplate() bool { return p.renderer != nil }

// Append adds a message to the sequence and invalidates any cached
// chat-template rendering.
func (p *Prompt) Append(role Role, content string) {
	p.messages = append(p.messages, Message{Role: role, Content: content})
	p.dirty = true
}

// Messages returns a copy of the prompt's message sequence.
func (p *Prompt) Messages() []Message { return append([]Message(nil), p.messages...) }

// Build validates the precheck and alternation rule (spec §3/§4.I) and,
// for the chat-template variant, re-renders lazily if the message
// sequence changed since the last Build.
func (p *Prompt) Build() error {
	if len(p.messages) == 0 {
		return fmt.Errorf("%w: prompt has no messages", pkgerrors.ErrValidation)
	}
	last := p.messages[len(p.messages)-1].Role
	if last == RoleAssistant {
		return fmt.Errorf("%w: prompt cannot end on an assistant message", pkgerrors.ErrValidation)
	}
	if last == RoleSystem {
		return fmt.Errorf("%w: prompt cannot end on a system message", pkgerrors.ErrValidation)
	}
	if err := checkAlternation(p.messages); err != nil {
		return err
	}

	if p.IsChatTemplate() && p.dirty {
		rendered, err := p.renderer.Render(p.tokens, p.generationPrefix, p.messages)
		if err != nil {
			return fmt.Errorf("%w: render chat template: %v", pkgerrors.ErrValidation, err)
		}
		p.rendered = rendered
		p.dirty = false
	}
	return nil
}

// Rendered returns the chat-template variant's rendered string. Call
// Build first; returns "" for the message-array variant.
func (p *Prompt) Rendered() string { return p.rendered }

// TokenOverhead estimates the message-array variant's fixed per-request
// token cost: a per-message constant plus a per-named-message constant
// for any message carrying a name field beyond its content.
func (p *Prompt) TokenOverhead(namedMessages int) int {
	return len(p.messages)*p.perMessageTokenOverhead + namedMessages*p.nameTokenOverhead
}

// checkAlternation enforces spec §3: system must be first if present,
// the first non-system message is user, and thereafter roles strictly
// alternate user/assistant up to the round-closing user.
func checkAlternation(messages []Message) error {
	start := 0
	if messages[0].Role == RoleSystem {
		start = 1
	}
	expect := RoleUser
	for i := start; i < len(messages); i++ {
		if messages[i].Role == RoleSystem {
			return fmt.Errorf("%w: system message must be first, found a second one at index %d", pkgerrors.ErrValidation, i)
		}
		if messages[i].Role != expect {
			return fmt.Errorf("%w: message at index %d has role %q, expected %q (strict user/assistant alternation)", pkgerrors.ErrValidation, i, messages[i].Role, expect)
		}
		if expect == RoleUser {
			expect = RoleAssistant
		} else {
			expect = RoleUser
		}
	}
	return nil
}
