package domain

// Attribute is one metadata facet.
type Attribute struct {
	TraitType string `json:"trait_type" yaml:"trait_type" mapstructure:"trait_type"`
	Value     string `json:"value" yaml:"value" mapstructure:"value"`
}

// TokenMetadata is the description record emitted for every token.
type TokenMetadata struct {
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Image        string      `json:"image"`
	AnimationURL string      `json:"animation_url,omitempty"`
	TokenID      int64       `json:"token_id"`
	Attributes   []Attribute `json:"attributes"`
}

// Token is a fully generated token before persistence.
type Token struct {
	ID       int64
	Key      ComboKey
	Layers   []Option
	Image    []byte
	Metadata TokenMetadata
	// Attempts counts generation attempts, rerolls included.
	Attempts int
}

// CustomToken is a hand-made one-of-one emitted ahead of generated tokens.
type CustomToken struct {
	ID          string      `json:"id" mapstructure:"id"`
	File        string      `json:"file" mapstructure:"file"`
	Name        string      `json:"name" mapstructure:"name"`
	Description string      `json:"description,omitempty" mapstructure:"description"`
	Include     bool        `json:"include" mapstructure:"include"`
	Attributes  []Attribute `json:"attributes,omitempty" mapstructure:"attributes"`
}
