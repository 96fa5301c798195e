// Package prompt loads the named prompt templates and renders them with
// user-supplied values. Templates use {name} substitution slots; literal
// braces are written {{ and }}. Every interpolated value has its braces
// escaped before substitution so user text cannot alter the template's
// structure.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"kbchat/internal/kberr"
)

// Set holds the five templates the pipeline uses, keyed by the names the
// prompts file declares.
type Set struct {
	ClassifyInput     string `yaml:"classify_input"`
	ValidateStatement string `yaml:"validate_statement"`
	CheckDuplicate    string `yaml:"check_duplicate"`
	ReformulateForDB  string `yaml:"reformulate_for_db"`
	HandleQuestion    string `yaml:"handle_question"`
}

// Load reads the prompt set from path. A missing file writes the default
// prompts to path first, so a fresh install is self-describing. A present
// but incomplete file is a configuration error.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			set := Defaults()
			if err := save(path, set); err != nil {
				return nil, err
			}
			return set, nil
		}
		return nil, err
	}
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, kberr.Config("prompts", "parse %s: %v", path, err)
	}
	if err := set.validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

func save(path string, set *Set) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := yaml.Marshal(set)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Set) validate() error {
	for name, tmpl := range map[string]string{
		"classify_input":     s.ClassifyInput,
		"validate_statement": s.ValidateStatement,
		"check_duplicate":    s.CheckDuplicate,
		"reformulate_for_db": s.ReformulateForDB,
		"handle_question":    s.HandleQuestion,
	} {
		if strings.TrimSpace(tmpl) == "" {
			return kberr.Config("prompts", "template %s missing or empty", name)
		}
	}
	return nil
}

// Defaults returns the built-in prompt set.
func Defaults() *Set {
	return &Set{
		ClassifyInput: "Classify the following user input as a factual statement or a question.\n" +
			"Reply with exactly one word: statement or question.\n\nInput: {user_input}\n",
		ValidateStatement: "Decide whether the following statement is factually plausible.\n" +
			"Reply with exactly one word: valid or invalid.\n\nStatement: {statement}\n",
		CheckDuplicate: "Rate how close in meaning these two statements are, on a scale from 0 to 1.\n" +
			"Reply with the number only.\n\nStatement A: {statement}\nStatement B: {page_content}\n",
		ReformulateForDB: "Rewrite the following statement as a single concise, self-contained factual\n" +
			"sentence suitable for a knowledge base. Reply with the sentence only.\n\nStatement: {statement}\n",
		HandleQuestion: "Answer the question using only the context below. If the context does not\n" +
			"contain the answer, say that you do not have that information.\n\nContext:\n{context}\n\nQuestion: {question}\n",
	}
}

// Render expands a template with the given variables. Values have their
// braces escaped before substitution; {{ and }} in the template render as
// literal braces. An unknown placeholder, an unused variable, or a
// dangling brace is an error rather than silently passed through.
func Render(template string, vars map[string]string) (string, error) {
	escaped := make(map[string]string, len(vars))
	for k, v := range vars {
		e := strings.ReplaceAll(v, "{", "{{")
		e = strings.ReplaceAll(e, "}", "}}")
		escaped[k] = e
	}
	used := make(map[string]bool, len(vars))

	var b strings.Builder
	for i := 0; i < len(template); {
		c := template[i]
		switch c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				b.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("prompt template: unclosed '{' at offset %d", i)
			}
			name := template[i+1 : i+end]
			val, ok := escaped[name]
			if !ok {
				return "", fmt.Errorf("prompt template: unknown placeholder {%s}", name)
			}
			used[name] = true
			b.WriteString(val)
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				b.WriteByte('}')
				i += 2
				continue
			}
			return "", fmt.Errorf("prompt template: single '}' at offset %d", i)
		default:
			b.WriteByte(c)
			i++
		}
	}
	for k := range vars {
		if !used[k] {
			return "", fmt.Errorf("prompt template: variable %q has no placeholder", k)
		}
	}
	return b.String(), nil
}
