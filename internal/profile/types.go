package profile

// Profile is a parsed, immutable resource selection.
type Profile struct {
	Name        string
	Description string
	// Agents in document order, without duplicates.
	Agents []string
	// AgentSkills maps an agent to its extra skills, in document order.
	AgentSkills map[string][]string
	// AllSkills is the union of AgentSkills values in first-seen order.
	AllSkills []string
}

// SkillsFor returns the extra skills of agent.
func (p *Profile) SkillsFor(agent string) []string {
	if p == nil {
		return nil
	}
	return p.AgentSkills[agent]
}

// HasAgent reports whether agent is part of the profile.
func (p *Profile) HasAgent(agent string) bool {
	if p == nil {
		return false
	}
	for _, a := range p.Agents {
		if a == agent {
			return true
		}
	}
	return false
}

// document is the on-disk shape shared by the YAML and TOML forms.
type document struct {
	Name        string          `yaml:"name" toml:"name"`
	Description string          `yaml:"description" toml:"description"`
	Agents      []agentDocument `yaml:"agents" toml:"agents"`
}

type agentDocument struct {
	Name   string   `yaml:"name" toml:"name"`
	Skills []string `yaml:"skills" toml:"skills"`
}

func (d document) profile() *Profile {
	p := &Profile{
		Name:        d.Name,
		Description: d.Description,
		AgentSkills: make(map[string][]string),
	}
	seenSkill := make(map[string]bool)
	for _, a := range d.Agents {
		if !p.HasAgent(a.Name) {
			p.Agents = append(p.Agents, a.Name)
		}
		for _, s := range a.Skills {
			if !containsString(p.AgentSkills[a.Name], s) {
				p.AgentSkills[a.Name] = append(p.AgentSkills[a.Name], s)
			}
			if !seenSkill[s] {
				seenSkill[s] = true
				p.AllSkills = append(p.AllSkills, s)
			}
		}
	}
	if p.AllSkills == nil {
		p.AllSkills = []string{}
	}
	return p
}

func containsString(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
