// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import "fmt"

// Validate checks the structural invariants of a stage sequence: at least one
// stage, unique non-empty names, a prompt function per stage, unique output
// keys distinct from InitialKey, and the key chain (stage 0 reads InitialKey,
// stage i reads stage i-1's output). It reports the first violation as a
// *ConfigError. Validate has no side effects, so the same sequence always
// gets the same verdict.
func Validate(specs []StageSpec) error {
	if len(specs) == 0 {
		return &ConfigError{Index: -1, Reason: "no stages"}
	}

	names := make(map[string]int, len(specs))
	outputs := make(map[string]int, len(specs))

	for i, s := range specs {
		if s.Name == "" {
			return &ConfigError{Index: i, Reason: "empty stage name"}
		}
		if j, dup := names[s.Name]; dup {
			return &ConfigError{Index: i, Stage: s.Name, Reason: fmt.Sprintf("duplicate stage name (also stage %d)", j)}
		}
		names[s.Name] = i

		if s.Prompt == nil {
			return &ConfigError{Index: i, Stage: s.Name, Reason: "no prompt function"}
		}

		switch s.OnExisting {
		case RejectExisting, SkipExisting:
		default:
			return &ConfigError{Index: i, Stage: s.Name, Reason: fmt.Sprintf("unknown existing-key policy %v", s.OnExisting)}
		}

		if s.Output == "" {
			return &ConfigError{Index: i, Stage: s.Name, Reason: "empty output key"}
		}
		if s.Output == InitialKey {
			return &ConfigError{Index: i, Stage: s.Name, Reason: fmt.Sprintf("output key %q is reserved", InitialKey)}
		}
		if j, dup := outputs[s.Output]; dup {
			return &ConfigError{Index: i, Stage: s.Name, Reason: fmt.Sprintf("output key %q already written by stage %d", s.Output, j)}
		}
		outputs[s.Output] = i

		want := InitialKey
		if i > 0 {
			want = specs[i-1].Output
		}
		if s.Input != want {
			return &ConfigError{Index: i, Stage: s.Name, Reason: fmt.Sprintf("input key %q does not match expected %q", s.Input, want)}
		}
	}
	return nil
}
