package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AgentVariant is a named preset for the conversation loop: the system
// instructions sent with every turn and an optional tool allowlist.
// Variants are defined in ~/.axe/agents.yaml; the built-in set is used when
// the file does not exist.
type AgentVariant struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description,omitempty"`
	SystemPrompt string   `yaml:"system_prompt"`
	// Tools restricts the capability set to the named tools. Empty means
	// every available tool is exposed.
	Tools []string `yaml:"tools,omitempty"`
}

type agentsFile struct {
	Agents []AgentVariant `yaml:"agents"`
}

const baseSystemPrompt = `You are axe, an AI-powered code assistant running in a terminal TUI.
You have access to:
- File system (read, write, list, search files)
- Shell commands (run terminal commands)
- Web search (search for docs, references, solutions)

Always use tools when needed. Be concise and helpful. You are in a terminal
environment: keep responses short, clear, and to the point. Be careful with
destructive operations and warn the user about side effects. If a tool fails,
report the error clearly and suggest next steps instead of guessing.`

// BuiltinAgents returns the default agent variants.
func BuiltinAgents() []AgentVariant {
	return []AgentVariant{
		{
			Name:         "general",
			Description:  "Balanced assistant for everyday tasks",
			SystemPrompt: baseSystemPrompt,
		},
		{
			Name:        "coder",
			Description: "Implementation-focused, explores before editing",
			SystemPrompt: baseSystemPrompt + `

Focus on writing and modifying code. Explore the project first: list or read
relevant files before proposing changes. Never guess file paths or contents.`,
		},
		{
			Name:        "researcher",
			Description: "Read-only investigation and web research",
			SystemPrompt: baseSystemPrompt + `

Focus on investigation. Prefer reading files and searching the web; do not
modify the user's files or run mutating shell commands.`,
			Tools: []string{"read_file", "list_directory", "search_files", "search", "fetch_content"},
		},
	}
}

// LoadAgents reads agent variants from a YAML file, falling back to the
// built-in set when the file is absent.
func LoadAgents(path string) ([]AgentVariant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return BuiltinAgents(), nil
		}
		return nil, fmt.Errorf("failed to read agents file: %w", err)
	}

	var f agentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse agents file: %w", err)
	}
	if len(f.Agents) == 0 {
		return BuiltinAgents(), nil
	}
	for i := range f.Agents {
		if f.Agents[i].Name == "" {
			return nil, fmt.Errorf("agents file: entry %d has no name", i)
		}
		if f.Agents[i].SystemPrompt == "" {
			f.Agents[i].SystemPrompt = baseSystemPrompt
		}
	}
	return f.Agents, nil
}

// FindAgent returns the variant with the given name, or the first variant
// when the name is unknown.
func FindAgent(agents []AgentVariant, name string) AgentVariant {
	for _, a := range agents {
		if a.Name == name {
			return a
		}
	}
	if len(agents) > 0 {
		return agents[0]
	}
	return BuiltinAgents()[0]
}
