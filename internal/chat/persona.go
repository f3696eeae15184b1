// Package chat implements the conversational assistant: the agent
// hierarchy, language routing, the tool-use loop, conversation policy, and
// the streaming event protocol.
package chat

// Persona is a stable assistant identity shown to users. The set is closed;
// replies never carry an identity outside of it.
type Persona struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

var (
	// PersonaOrchestrator fronts routing and all failure replies.
	PersonaOrchestrator = Persona{Name: "Aren", Icon: "🤖"}
	// PersonaEnglish handles English conversations.
	PersonaEnglish = Persona{Name: "Miyu", Icon: "🇬🇧"}
	// PersonaUrdu handles Urdu conversations.
	PersonaUrdu = Persona{Name: "Riven", Icon: "🇵🇰"}
)

// PersonaByName returns the persona for a stored agent name. Unknown names
// fall back to the orchestrator.
func PersonaByName(name string) Persona {
	switch name {
	case PersonaEnglish.Name:
		return PersonaEnglish
	case PersonaUrdu.Name:
		return PersonaUrdu
	default:
		return PersonaOrchestrator
	}
}
