// Package loras loads the catalog of LoRA adapters the enclave will run.
package loras

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnknownLora = errors.New("unknown lora path")

// Lora describes one LoRA adapter. Refinement is the default prompt
// refinement instruction; empty means prompts are used as written.
type Lora struct {
	Name          string  `yaml:"name"`
	Author        string  `yaml:"author"`
	Model         string  `yaml:"model"`
	Path          string  `yaml:"path"`
	Scale         float32 `yaml:"scale"`
	Steps         uint32  `yaml:"steps"`
	Width         uint32  `yaml:"width,omitempty"`
	Height        uint32  `yaml:"height,omitempty"`
	TriggerPrefix string  `yaml:"trigger_prefix,omitempty"`
	TriggerSuffix string  `yaml:"trigger_suffix,omitempty"`
	Refinement    string  `yaml:"refinement,omitempty"`
}

type catalogFile struct {
	Loras []Lora `yaml:"loras"`
}

// Catalog indexes loras by path. A nil *Catalog accepts every path.
type Catalog struct {
	byPath map[string]Lora
}

func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lora catalog: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse lora catalog: %w", err)
	}
	return New(f.Loras)
}

func New(loras []Lora) (*Catalog, error) {
	c := &Catalog{byPath: make(map[string]Lora, len(loras))}
	for i, l := range loras {
		key := normalize(l.Path)
		if key == "" {
			return nil, fmt.Errorf("lora %d (%q) has no path", i, l.Name)
		}
		if _, dup := c.byPath[key]; dup {
			return nil, fmt.Errorf("duplicate lora path %q", l.Path)
		}
		c.byPath[key] = l
	}
	return c, nil
}

// Lookup returns the lora registered for path, ignoring a trailing slash.
func (c *Catalog) Lookup(path string) (Lora, error) {
	if c == nil {
		return Lora{Path: path}, nil
	}
	l, ok := c.byPath[normalize(path)]
	if !ok {
		return Lora{}, fmt.Errorf("%w: %q", ErrUnknownLora, path)
	}
	return l, nil
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byPath)
}

func normalize(path string) string {
	return strings.TrimRight(strings.TrimSpace(path), "/")
}

// CreditAccount splits a Hugging Face style lora path into the creator and
// model credited for a generation. Paths with fewer than four segments are
// credited to "unknown".
func CreditAccount(path string) (creator, model string) {
	parts := strings.Split(path, "/")
	if len(parts) < 4 {
		return "unknown", "unknown"
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}
