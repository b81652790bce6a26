package smoke

import (
	"fmt"
	"os"
	"time"

	"socialnet/internal/config"

	"gopkg.in/yaml.v3"
)

// Plan is a YAML run description:
//
//	api_base_url: http://localhost:8080
//	timeout: 20s
//	scenarios: [auth, chat]
//	users:
//	  primary: {email: alice@example.com, password: password123}
type Plan struct {
	APIBaseURL string                 `yaml:"api_base_url"`
	Timeout    time.Duration          `yaml:"timeout"`
	Scenarios  []string               `yaml:"scenarios"`
	Users      map[string]Credentials `yaml:"users"`
}

// LoadPlan reads a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes a plan and checks its user entries.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	for role, creds := range p.Users {
		if creds.Email == "" || creds.Password == "" {
			return nil, fmt.Errorf("plan user %q needs email and password", role)
		}
	}
	if p.Timeout < 0 {
		return nil, fmt.Errorf("plan timeout must be positive")
	}
	return &p, nil
}

// Apply points cfg at the plan's backend and returns the runner options the
// plan implies.
func (p *Plan) Apply(cfg *config.Config) []Option {
	if p.APIBaseURL != "" {
		cfg.APIBaseURL = p.APIBaseURL
		cfg.WSURL = ""
	}
	var opts []Option
	if len(p.Users) > 0 {
		opts = append(opts, WithUsers(p.Users))
	}
	if p.Timeout > 0 {
		opts = append(opts, WithScenarioTimeout(p.Timeout))
	}
	return opts
}
