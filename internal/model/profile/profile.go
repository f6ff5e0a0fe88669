package profile

// Profile captures the assistant identity and the sentinel texts the widget reacts to.
type Profile struct {
	ID             string     `json:"id" yaml:"id"`
	Name           string     `json:"name" yaml:"name"`
	Title          string     `json:"title" yaml:"title"`
	Tone           string     `json:"tone" yaml:"tone"`
	Greeting       string     `json:"greeting" yaml:"greeting"`
	InitialMessage string     `json:"initialMessage" yaml:"initial_message"`
	SystemPrompt   string     `json:"-" yaml:"system_prompt"`
	Rules          []string   `json:"-" yaml:"rules"`
	Diagram        Diagram    `json:"diagram" yaml:"diagram"`
	Suggestions    []string   `json:"suggestions" yaml:"suggestions"`
	FAQ            []FAQEntry `json:"-" yaml:"faq"`
	FallbackAnswer string     `json:"-" yaml:"fallback_answer"`
}

// Diagram describes the reference image shown after the sentinel sentence.
type Diagram struct {
	Sentinel string   `json:"sentinel" yaml:"sentinel"`
	Src      string   `json:"src" yaml:"src"`
	Alt      string   `json:"alt" yaml:"alt"`
	ElemID   string   `json:"elemId" yaml:"elem_id"`
	Keywords []string `json:"-" yaml:"keywords"`
}

// FAQEntry is a canned answer used by the offline backend.
type FAQEntry struct {
	Keywords []string `yaml:"keywords"`
	Answer   []string `yaml:"answer"`
	List     []string `yaml:"list"`
}

const (
	DefaultInitialMessage  = "initial message"
	DefaultGreeting        = "Hi, I'm your Scrum Assistant, you can ask me about the scrum methodology"
	DefaultDiagramSentinel = "The scrum diagram displays an overview of scrum."
)

// WithDefaults fills empty sentinel fields.
func (p Profile) WithDefaults() Profile {
	if p.InitialMessage == "" {
		p.InitialMessage = DefaultInitialMessage
	}
	if p.Greeting == "" {
		p.Greeting = DefaultGreeting
	}
	if p.Diagram.Sentinel == "" {
		p.Diagram.Sentinel = DefaultDiagramSentinel
	}
	if p.Diagram.Src == "" {
		p.Diagram.Src = "/img/scrum-framework-diagram.svg"
	}
	if p.Diagram.Alt == "" {
		p.Diagram.Alt = "Scrum diagram"
	}
	if p.Diagram.ElemID == "" {
		p.Diagram.ElemID = "scrumDiagram"
	}
	if p.FallbackAnswer == "" {
		p.FallbackAnswer = "I'm not sure about that one. Try asking about sprints, roles, events or artifacts."
	}
	return p
}

// Seed provides the default Scrum Assistant profile.
func Seed() []Profile {
	return []Profile{
		Profile{
			ID:    "scrum-assistant",
			Name:  "Scrum Assistant",
			Title: "Scrum methodology tutor",
			Tone:  "friendly, concise, practical",
			SystemPrompt: "You are a Scrum Assistant. Answer questions about the Scrum framework as described in the Scrum Guide. " +
				"Keep answers short. When an answer enumerates items, put each item on its own line starting with \"- \".",
			Rules: []string{
				"Only answer questions related to Scrum and agile delivery",
				"Prefer the vocabulary of the Scrum Guide",
				"If the user asks for the diagram, answer with exactly: " + DefaultDiagramSentinel,
			},
			Suggestions: []string{
				"What is scrum?",
				"What are the scrum roles?",
				"Show me the scrum diagram",
			},
			Diagram: Diagram{
				Keywords: []string{"diagram", "overview", "picture", "framework image"},
			},
			FAQ: []FAQEntry{
				{
					Keywords: []string{"what is scrum", "define scrum", "scrum is"},
					Answer:   []string{"Scrum is a lightweight framework that helps people, teams and organizations generate value through adaptive solutions for complex problems."},
				},
				{
					Keywords: []string{"roles", "accountabilities", "scrum team"},
					Answer:   []string{"A Scrum Team has three accountabilities:"},
					List:     []string{"Product Owner", "Scrum Master", "Developers"},
				},
				{
					Keywords: []string{"events", "ceremonies", "meetings"},
					Answer:   []string{"Scrum defines five events:"},
					List:     []string{"The Sprint", "Sprint Planning", "Daily Scrum", "Sprint Review", "Sprint Retrospective"},
				},
				{
					Keywords: []string{"artifacts", "artefacts"},
					Answer:   []string{"Scrum has three artifacts, each with a commitment:"},
					List:     []string{"Product Backlog (Product Goal)", "Sprint Backlog (Sprint Goal)", "Increment (Definition of Done)"},
				},
				{
					Keywords: []string{"sprint length", "how long is a sprint", "sprint duration"},
					Answer:   []string{"Sprints are fixed length events of one month or less.", "A new Sprint starts immediately after the conclusion of the previous Sprint."},
				},
				{
					Keywords: []string{"velocity", "burndown", "burn-down"},
					Answer:   []string{"Velocity and burn-down charts are complementary practices, not part of Scrum itself. Use them to forecast, not to judge."},
				},
			},
		}.WithDefaults(),
	}
}
