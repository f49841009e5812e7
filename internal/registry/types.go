package registry

import (
	"github.com/agentx-labs/agentsync/internal/hash"
	"github.com/agentx-labs/agentsync/internal/manifest"
)

// Category names. Each flat category is also the name of its directory in
// both the source tree and the install root.
const (
	CategoryAgents   = "agents"
	CategoryTools    = "tools"
	CategoryPrompts  = "prompts"
	CategorySkills   = "skills"
	CategoryCommands = "commands"
	CategoryUser     = "user"
)

// flatCategories hold plain files copied one-to-one.
var flatCategories = []string{
	CategoryTools,
	CategoryPrompts,
	CategorySkills,
	CategoryCommands,
}

// ValidCategories contains every category accepted by Filter.
var ValidCategories = []string{
	CategoryAgents,
	CategoryTools,
	CategoryPrompts,
	CategorySkills,
	CategoryCommands,
	CategoryUser,
}

// UserFiles are the root-level documents installed beside the install root
// rather than inside it.
var UserFiles = []string{"AGENTS.md", "RULES.md"}

// agentFile is the definition file inside agents/<name>/.
const agentFile = "agent.md"

// Entry is one installable resource.
type Entry struct {
	Dest     string        // absolute destination path
	Source   string        // absolute path in the source tree
	Tier     manifest.Tier // conflict policy
	Category string        // one of ValidCategories
	Name     string        // agent name, skill name, or file name
	Hash     hash.Sum      // hash of the upstream content
}

// Filter restricts discovery. A nil slice means no restriction. A non-nil
// empty Skills slice selects no skills.
type Filter struct {
	Categories []string
	Agents     []string
	Skills     []string
}

func (f Filter) allowsCategory(c string) bool {
	return f.Categories == nil || contains(f.Categories, c)
}

func (f Filter) allowsAgent(name string) bool {
	return f.Agents == nil || contains(f.Agents, name)
}

func (f Filter) allowsSkill(name string) bool {
	return f.Skills == nil || contains(f.Skills, name)
}

// IsValidCategory reports whether c names a known category.
func IsValidCategory(c string) bool {
	return contains(ValidCategories, c)
}

func contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
