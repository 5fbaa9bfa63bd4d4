// Package settingcatalog defines the typed setting descriptors that govern
// what a SettingChange may target and how its value is parsed, validated and
// defaulted (spec §3, §4.4).
package settingcatalog

import (
	"fmt"

	"github.com/cljohnso/terracotta-platform/internal/clustermodel"
)

// MutableWhen governs whether a committed change to a setting takes effect
// immediately or only after a node restart (spec §4.4).
type MutableWhen string

const (
	// MutableAtRuntime changes apply to the running process as soon as the
	// change commits.
	MutableAtRuntime MutableWhen = "at-runtime"
	// MutableRequiresRestart changes are recorded in the upcoming context
	// but only take effect in the runtime context after a restart.
	MutableRequiresRestart MutableWhen = "requires-restart"
	// MutableAtConfigurationOnly settings may only be set during
	// ClusterActivation; no SettingChange may target them afterward.
	MutableAtConfigurationOnly MutableWhen = "at-configuration-only"
)

// ValueValidator checks a single scalar or map-entry value before it is
// applied.
type ValueValidator func(value string) error

// ValueParser turns the wire-level string form of a value into whatever
// representation the setting needs when applied; settings that are map-typed
// parse each value independently, keyed by the change's Key.
type ValueParser func(raw string) (interface{}, error)

// DefaultProvider computes the value a setting reverts to on unset.
type DefaultProvider func() string

// Setting is a data-only descriptor: scope, shape, mutability, default and
// validation/parsing behavior. New settings are registered as data in the
// Catalog, never as new Go types or case arms elsewhere (spec §9: "Dynamic
// dispatch... becomes a tagged sum; descriptors are data, not subclasses").
type Setting struct {
	Name string

	// ScopeAllowed is the broadest scope this setting may be targeted at;
	// the change algebra requires ScopeAllowed.Contains(applicability.Scope).
	ScopeAllowed clustermodel.Scope

	// IsMap indicates a keyed setting (e.g. per-resource offheap sizes,
	// per-logger levels) versus a scalar one.
	IsMap bool

	RequiredAtActivation bool
	MutableWhen          MutableWhen

	Default  DefaultProvider
	Validate ValueValidator
	Parse    ValueParser
}

// ValidateValue runs the setting's validator, if any; a setting with no
// validator accepts every value.
func (s Setting) ValidateValue(value string) error {
	if s.Validate == nil {
		return nil
	}
	return s.Validate(value)
}

// ParseValue runs the setting's parser, defaulting to returning the raw
// string when no parser is registered.
func (s Setting) ParseValue(raw string) (interface{}, error) {
	if s.Parse == nil {
		return raw, nil
	}
	return s.Parse(raw)
}

// DefaultValue computes the setting's default, or the empty string when the
// setting has none (unset is a no-op for such settings beyond clearing any
// explicit override).
func (s Setting) DefaultValue() string {
	if s.Default == nil {
		return ""
	}
	return s.Default()
}

// CheckApplicability verifies that an applicability scope is legal for this
// setting (spec §4.4 SettingChange(set)).
func (s Setting) CheckApplicability(scope clustermodel.Scope) error {
	if !s.ScopeAllowed.Contains(scope) {
		return fmt.Errorf("settingcatalog: setting %q cannot be applied at scope %q (allowed: %q)", s.Name, scope, s.ScopeAllowed)
	}
	return nil
}
