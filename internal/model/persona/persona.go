package persona

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var seedYAML []byte

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Theme is the colour pair the UI applies while a persona is active.
type Theme struct {
	Background string `json:"background" yaml:"background"`
	Text       string `json:"text" yaml:"text"`
}

// Persona captures a support variant exposed to the frontend.
type Persona struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	SystemPrompt string `json:"-" yaml:"systemPrompt"`
	Greeting     string `json:"greeting" yaml:"greeting"`
	Theme        Theme  `json:"theme" yaml:"theme"`
}

// Seed returns the built-in personas. The embedded table is validated by tests,
// so a decode failure here is a build defect.
func Seed() []Persona {
	items, err := Decode(bytes.NewReader(seedYAML))
	if err != nil {
		panic(fmt.Sprintf("persona: embedded table invalid: %v", err))
	}
	return items
}

// LoadFile reads a persona table from a YAML file on disk.
func LoadFile(path string) ([]Persona, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("persona: open %q: %w", path, err)
	}
	defer f.Close()

	items, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("persona: parse %q: %w", path, err)
	}
	return items, nil
}

// Decode reads a YAML list of personas and validates it.
func Decode(r io.Reader) ([]Persona, error) {
	var items []Persona
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("persona: decode yaml: %w", err)
	}
	if err := Validate(items); err != nil {
		return nil, err
	}
	return items, nil
}

// Validate reports every problem found in the table at once.
func Validate(items []Persona) error {
	if len(items) == 0 {
		return errors.New("persona: table is empty")
	}

	var errs []error
	seen := make(map[string]bool, len(items))
	for i, p := range items {
		id := strings.TrimSpace(p.ID)
		switch {
		case id == "":
			errs = append(errs, fmt.Errorf("persona[%d]: id is required", i))
		case id != p.ID:
			errs = append(errs, fmt.Errorf("persona[%d]: id %q has surrounding whitespace", i, p.ID))
		case seen[id]:
			errs = append(errs, fmt.Errorf("persona[%d]: duplicate id %q", i, id))
		}
		seen[id] = true

		if strings.TrimSpace(p.SystemPrompt) == "" {
			errs = append(errs, fmt.Errorf("persona %q: systemPrompt is required", id))
		}
		if strings.TrimSpace(p.Greeting) == "" {
			errs = append(errs, fmt.Errorf("persona %q: greeting is required", id))
		}
		if !hexColor.MatchString(p.Theme.Background) {
			errs = append(errs, fmt.Errorf("persona %q: invalid theme background %q", id, p.Theme.Background))
		}
		if !hexColor.MatchString(p.Theme.Text) {
			errs = append(errs, fmt.Errorf("persona %q: invalid theme text %q", id, p.Theme.Text))
		}
	}
	return errors.Join(errs...)
}
