// Package scenario describes scripted permission dialogs for the simulator.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kubiakdev/perms/pkg/perms/permstest"
)

var validate = validator.New()

// Scenario is a sequence of requests for the same permissions, each answered
// by the simulated user.
type Scenario struct {
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions" validate:"unique,dive,required"`
	Granted     []string `yaml:"granted" validate:"dive,required"`
	Rounds      []Round  `yaml:"rounds" validate:"required,min=1,dive"`
}

// Round holds the answers given in one dialog, keyed by permission.
// Permissions without an answer are denied. Revoke lists permissions the
// user resets from the system settings before the round starts.
type Round struct {
	Revoke  []string          `yaml:"revoke" validate:"dive,required"`
	Answers map[string]string `yaml:"answers" validate:"dive,keys,required,endkeys,oneof=grant deny deny_forever deny-forever"`
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a scenario file. An empty Name defaults to the file's base name.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Validate checks struct tags and that every answer names a requested permission.
func (s *Scenario) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("scenario validation failed: %w", err)
	}
	requested := make(map[string]bool, len(s.Permissions))
	for _, p := range s.Permissions {
		requested[p] = true
	}
	var errs []error
	for i, r := range s.Rounds {
		for p := range r.Answers {
			if !requested[p] {
				errs = append(errs, fmt.Errorf("round %d answers %q which is not requested", i+1, p))
			}
		}
		for _, p := range r.Revoke {
			if !requested[p] {
				errs = append(errs, fmt.Errorf("round %d revokes %q which is not requested", i+1, p))
			}
		}
	}
	return errors.Join(errs...)
}

// answers converts the round's answers to host answers. Validate has
// already rejected unknown values.
func (r Round) answers() map[string]permstest.Answer {
	out := make(map[string]permstest.Answer, len(r.Answers))
	for p, raw := range r.Answers {
		a, err := permstest.ParseAnswer(raw)
		if err != nil {
			continue
		}
		out[p] = a
	}
	return out
}
