package profile

// Profile holds the sampling settings and system prompt the gateway sends
// with every user message.
type Profile struct {
	// Set during YAML unmarshaling
	Name string `yaml:"-" json:"name"`

	DisplayName  string  `yaml:"display_name" json:"display_name"`
	SystemPrompt string  `yaml:"system_prompt" json:"system_prompt"`
	Temperature  float64 `yaml:"temperature" json:"temperature"`
	MaxTokens    int     `yaml:"max_tokens" json:"max_tokens"`

	// provider -> model id
	Models map[string]string `yaml:"models" json:"models"`
}

// Model returns the model for provider, or fallback when the profile does
// not name one.
func (p *Profile) Model(provider, fallback string) string {
	if m, ok := p.Models[provider]; ok && m != "" {
		return m
	}
	return fallback
}

type profileFile struct {
	Profiles map[string]*Profile `yaml:"profiles"`
}
