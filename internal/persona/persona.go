// Package persona defines the closed set of student personas a learner can
// teach, along with their welcome lines and system prompts.
package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Mode identifies a student persona by its canonical name.
type Mode string

const (
	Socratic    Mode = "socratic"
	Contrarian  Mode = "contrarian"
	FiveYearOld Mode = "five-year-old"
	Anxious     Mode = "anxious"
)

// ErrInvalidMode is returned for names outside the persona set.
var ErrInvalidMode = errors.New("invalid persona mode")

//go:embed personas.yaml
var personasYAML []byte

// Persona is one entry of the embedded persona table.
type Persona struct {
	Mode        Mode   `yaml:"mode"`
	Alias       string `yaml:"alias"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Welcome     string `yaml:"welcome"`
	System      string `yaml:"system"`

	welcome *template.Template
	system  *template.Template
}

var (
	byName  map[string]*Persona
	ordered []*Persona
)

func init() {
	ps, err := parse(personasYAML)
	if err != nil {
		panic(fmt.Sprintf("persona: embedded table: %v", err))
	}
	ordered = ps
	byName = make(map[string]*Persona, 2*len(ps))
	for _, p := range ps {
		byName[string(p.Mode)] = p
		byName[p.Alias] = p
	}
}

func parse(data []byte) ([]*Persona, error) {
	var doc struct {
		Personas []*Persona `yaml:"personas"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	for _, p := range doc.Personas {
		var err error
		if p.welcome, err = template.New(string(p.Mode) + "-welcome").Parse(p.Welcome); err != nil {
			return nil, fmt.Errorf("%s welcome: %w", p.Mode, err)
		}
		if p.system, err = template.New(string(p.Mode) + "-system").Parse(p.System); err != nil {
			return nil, fmt.Errorf("%s system: %w", p.Mode, err)
		}
	}
	return doc.Personas, nil
}

// ParseMode resolves a canonical name or alias, case-insensitively.
func ParseMode(name string) (Mode, error) {
	p, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, name)
	}
	return p.Mode, nil
}

// Valid reports whether m is a canonical mode.
func (m Mode) Valid() bool {
	p, ok := byName[string(m)]
	return ok && p.Mode == m
}

func (m Mode) String() string { return string(m) }

// All returns the personas in table order.
func All() []Persona {
	out := make([]Persona, len(ordered))
	for i, p := range ordered {
		out[i] = *p
	}
	return out
}

// Lookup returns the persona for a canonical mode.
func Lookup(m Mode) (Persona, error) {
	p, ok := byName[string(m)]
	if !ok || p.Mode != m {
		return Persona{}, fmt.Errorf("%w: %q", ErrInvalidMode, m)
	}
	return *p, nil
}

// WelcomeMessage renders the persona's opening line for topic.
func WelcomeMessage(m Mode, topic string) (string, error) {
	p, err := Lookup(m)
	if err != nil {
		return "", err
	}
	return render(p.welcome, topic)
}

// SystemPrompt renders the persona's system prompt for topic.
func SystemPrompt(m Mode, topic string) (string, error) {
	p, err := Lookup(m)
	if err != nil {
		return "", err
	}
	return render(p.system, topic)
}

func render(t *template.Template, topic string) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, struct{ Topic string }{topic}); err != nil {
		return "", err
	}
	return b.String(), nil
}
