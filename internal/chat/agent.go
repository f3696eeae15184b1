package chat

import (
	"fmt"

	"github.com/jkaninda/kazi/internal/tools"
)

// MaxDepth is the maximum hierarchy depth: an orchestrator and its
// language agents. Handoff targets can never hand off again.
const MaxDepth = 2

// Agent is a node in the two-level hierarchy. An agent either hands off to
// other agents or carries tools, never both; NewRouterAgent and
// NewToolAgent enforce this at construction.
type Agent struct {
	persona      Persona
	systemPrompt string
	language     Language
	handoffs     []*Agent
	dispatcher   *tools.Dispatcher
}

// NewToolAgent creates a leaf agent that executes task tools.
func NewToolAgent(persona Persona, systemPrompt string, language Language, dispatcher *tools.Dispatcher) *Agent {
	return &Agent{
		persona:      persona,
		systemPrompt: systemPrompt,
		language:     language,
		dispatcher:   dispatcher,
	}
}

// NewRouterAgent creates a root agent that routes to handoff targets. It
// returns an error if any target itself has handoffs, which would exceed
// the depth limit.
func NewRouterAgent(persona Persona, systemPrompt string, handoffs ...*Agent) (*Agent, error) {
	for _, h := range handoffs {
		if len(h.handoffs) > 0 {
			return nil, fmt.Errorf("agent %s: handoff target %s has handoffs of its own, depth limit is %d",
				persona.Name, h.persona.Name, MaxDepth)
		}
	}
	return &Agent{
		persona:      persona,
		systemPrompt: systemPrompt,
		handoffs:     handoffs,
	}, nil
}

// Persona returns the agent's identity.
func (a *Agent) Persona() Persona { return a.persona }

// Route picks the handoff target for a message. Small talk stays with the
// router itself; everything else goes to the agent for the detected
// language. English is the fallback when no agent matches.
func (a *Agent) Route(text string) *Agent {
	if len(a.handoffs) == 0 || IsSmallTalk(text) {
		return a
	}
	lang := DetectLanguage(text)
	var english *Agent
	for _, h := range a.handoffs {
		if h.language == lang {
			return h
		}
		if h.language == LanguageEnglish {
			english = h
		}
	}
	if english != nil {
		return english
	}
	return a
}

// NewHierarchy wires the standard hierarchy: Aren routing to Miyu and
// Riven, both backed by the same tool dispatcher.
func NewHierarchy(dispatcher *tools.Dispatcher) (*Agent, error) {
	english := NewToolAgent(PersonaEnglish, englishPrompt, LanguageEnglish, dispatcher)
	urdu := NewToolAgent(PersonaUrdu, urduPrompt, LanguageUrdu, dispatcher)
	return NewRouterAgent(PersonaOrchestrator, orchestratorPrompt, english, urdu)
}
