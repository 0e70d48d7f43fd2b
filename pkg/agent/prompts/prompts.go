// Package prompts holds the LLM prompt templates as embedded markdown files.
package prompts

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed *.md
var promptsFS embed.FS

// Prompts contains all the agent prompts loaded from embedded files.
type Prompts struct {
	Answer   string // Prompt for final answer generation from a result table
	Classify string // Prompt for question intent classification
	Generate string // Prompt for SQL generation (schema appended at call time)
	Judge    string // Prompt for scoring result relevance
	Refine   string // Prompt for regenerating SQL from judge feedback
}

// Load reads all prompts from the embedded filesystem.
func Load() (*Prompts, error) {
	p := &Prompts{}

	var err error
	if p.Answer, err = loadPrompt("ANSWER.md"); err != nil {
		return nil, fmt.Errorf("failed to load ANSWER: %w", err)
	}
	if p.Classify, err = loadPrompt("CLASSIFY.md"); err != nil {
		return nil, fmt.Errorf("failed to load CLASSIFY: %w", err)
	}
	if p.Generate, err = loadPrompt("GENERATE.md"); err != nil {
		return nil, fmt.Errorf("failed to load GENERATE: %w", err)
	}
	if p.Judge, err = loadPrompt("JUDGE.md"); err != nil {
		return nil, fmt.Errorf("failed to load JUDGE: %w", err)
	}
	if p.Refine, err = loadPrompt("REFINE.md"); err != nil {
		return nil, fmt.Errorf("failed to load REFINE: %w", err)
	}

	return p, nil
}

func loadPrompt(path string) (string, error) {
	data, err := promptsFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
