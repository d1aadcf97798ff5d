package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/swhidcheck/swhidcheck/internal/capability"
	"github.com/swhidcheck/swhidcheck/internal/swhid"
)

// Config is the full suite document.
type Config struct {
	Version         string           `yaml:"version" validate:"required,eq=1.0"`
	Name            string           `yaml:"name" validate:"required,min=1,max=100"`
	Description     string           `yaml:"description,omitempty"`
	Settings        Settings         `yaml:"settings,omitempty"`
	Implementations []Implementation `yaml:"implementations" validate:"required,min=1,dive"`
	Payloads        Payloads         `yaml:"payloads"`
}

// Settings holds global execution parameters.
type Settings struct {
	Parallel      int    `yaml:"parallel,omitempty" validate:"omitempty,min=1,max=32"`
	TimeoutS      int    `yaml:"timeout_s,omitempty" validate:"omitempty,min=1,max=3600"`
	CPULimitS     int    `yaml:"cpu_limit_s,omitempty" validate:"omitempty,min=1,max=3600"`
	MemoryLimitMB int    `yaml:"memory_limit_mb,omitempty" validate:"omitempty,min=1"`
	Samples       int    `yaml:"samples,omitempty" validate:"omitempty,min=1,max=1000"`
	Output        string `yaml:"output,omitempty"`
	Format        string `yaml:"format,omitempty" validate:"omitempty,oneof=json ndjson"`
}

// Timeout is the per-invocation wall-clock budget.
func (s Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutS) * time.Second
}

// CPULimit is the per-invocation CPU budget; zero means unlimited.
func (s Settings) CPULimit() time.Duration {
	return time.Duration(s.CPULimitS) * time.Second
}

// MemoryBytes is the per-invocation address-space ceiling; zero means
// unlimited.
func (s Settings) MemoryBytes() int64 {
	return int64(s.MemoryLimitMB) << 20
}

// Implementation declares one system under test.
type Implementation struct {
	ID           string            `yaml:"id" validate:"required,ident"`
	Kind         string            `yaml:"kind" validate:"required,oneof=builtin command json"`
	Enabled      bool              `yaml:"enabled"`
	Builtin      string            `yaml:"builtin,omitempty"`
	Command      string            `yaml:"command,omitempty"`
	Args         []string          `yaml:"args,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
	Capabilities *Capabilities     `yaml:"capabilities,omitempty"`
}

// UnmarshalYAML keeps implementations enabled unless the document says
// otherwise, and rejects unknown keys (node-level decoding bypasses the
// decoder's strict mode).
func (i *Implementation) UnmarshalYAML(value *yaml.Node) error {
	if err := knownFields(value, "id", "kind", "enabled", "builtin", "command", "args", "env", "capabilities"); err != nil {
		return err
	}

	type raw struct {
		ID           string            `yaml:"id"`
		Kind         string            `yaml:"kind"`
		Enabled      *bool             `yaml:"enabled"`
		Builtin      string            `yaml:"builtin"`
		Command      string            `yaml:"command"`
		Args         []string          `yaml:"args"`
		Env          map[string]string `yaml:"env"`
		Capabilities *Capabilities     `yaml:"capabilities"`
	}
	var tmp raw
	if err := value.Decode(&tmp); err != nil {
		return err
	}

	i.ID = tmp.ID
	i.Kind = tmp.Kind
	i.Enabled = tmp.Enabled == nil || *tmp.Enabled
	i.Builtin = tmp.Builtin
	i.Command = tmp.Command
	i.Args = append([]string(nil), tmp.Args...)
	i.Env = tmp.Env
	i.Capabilities = tmp.Capabilities
	return nil
}

// Capabilities is the per-implementation capability override. Unset fields
// keep whatever the adapter reported or the defaults assume.
type Capabilities struct {
	Types           []string `yaml:"types,omitempty" validate:"omitempty,dive,objtype"`
	Variants        []string `yaml:"variants,omitempty" validate:"omitempty,dive,varianttag"`
	Qualifiers      []string `yaml:"qualifiers,omitempty"`
	APIVersion      string   `yaml:"api_version,omitempty"`
	MaxPayloadMB    int64    `yaml:"max_payload_mb,omitempty" validate:"omitempty,min=1"`
	Unicode         *bool    `yaml:"unicode,omitempty"`
	PercentEncoding *bool    `yaml:"percent_encoding,omitempty"`
}

// UnmarshalYAML rejects unknown capability keys.
func (c *Capabilities) UnmarshalYAML(value *yaml.Node) error {
	if err := knownFields(value, "types", "variants", "qualifiers", "api_version", "max_payload_mb", "unicode", "percent_encoding"); err != nil {
		return err
	}
	type rawCapabilities Capabilities
	var tmp rawCapabilities
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	*c = Capabilities(tmp)
	return nil
}

// Apply overlays the override onto a base descriptor and normalizes the
// result. A nil receiver normalizes the base untouched.
func (c *Capabilities) Apply(base capability.Descriptor) (capability.Descriptor, error) {
	if c == nil {
		if err := base.Normalize(); err != nil {
			return base, err
		}
		return base, nil
	}

	if len(c.Types) > 0 {
		types := make([]swhid.ObjectType, 0, len(c.Types))
		for _, raw := range c.Types {
			t, err := swhid.ParseObjectType(raw)
			if err != nil {
				return base, err
			}
			types = append(types, t)
		}
		base.Types = types
	}
	if len(c.Variants) > 0 {
		base.VariantTags = append([]string(nil), c.Variants...)
		base.Variants = nil
		base.TypeVariants = nil
	}
	if len(c.Qualifiers) > 0 {
		base.Qualifiers = append([]string(nil), c.Qualifiers...)
	}
	if c.APIVersion != "" {
		base.APIVersion = c.APIVersion
	}
	if c.MaxPayloadMB > 0 {
		base.MaxPayloadBytes = c.MaxPayloadMB << 20
	}
	if c.Unicode != nil {
		base.Unicode = *c.Unicode
	}
	if c.PercentEncoding != nil {
		base.PercentEncoding = *c.PercentEncoding
	}

	if err := base.Normalize(); err != nil {
		return base, err
	}
	return base, nil
}

// Payloads collects the suite's test inputs by category.
type Payloads struct {
	Content   []FilePayload     `yaml:"content,omitempty" validate:"omitempty,dive"`
	Directory []FilePayload     `yaml:"directory,omitempty" validate:"omitempty,dive"`
	Archive   []FilePayload     `yaml:"archive,omitempty" validate:"omitempty,dive"`
	Git       []GitPayload      `yaml:"git,omitempty" validate:"omitempty,dive"`
	Negative  []NegativePayload `yaml:"negative,omitempty" validate:"omitempty,dive"`
}

// Count is the number of configured payload entries across all categories.
func (p Payloads) Count() int {
	return len(p.Content) + len(p.Directory) + len(p.Archive) + len(p.Git) + len(p.Negative)
}

// FilePayload is a content, directory, or archive test input. Expected maps
// a variant tag to the golden identifier; an empty value (or a variant listed
// only under variants) runs that variant in consensus mode.
type FilePayload struct {
	Name            string            `yaml:"name" validate:"required,ident"`
	Path            string            `yaml:"path" validate:"required"`
	Unicode         bool              `yaml:"unicode,omitempty"`
	PercentEncoding bool              `yaml:"percent_encoding,omitempty"`
	Qualifiers      []string          `yaml:"qualifiers,omitempty" validate:"omitempty,dive,qualifier"`
	Expected        map[string]string `yaml:"expected,omitempty" validate:"omitempty,dive,keys,varianttag,endkeys,omitempty,swhid"`
	Variants        []string          `yaml:"variants,omitempty" validate:"omitempty,dive,varianttag"`
}

// GitPayload is a repository test input. Branch and tag expectations expand
// into one revision or release case each; snapshot set (even empty) adds a
// snapshot case. Fixture "sample" builds the deterministic sample repository
// instead of reading path.
type GitPayload struct {
	Name     string            `yaml:"name" validate:"required,ident"`
	Path     string            `yaml:"path,omitempty"`
	Fixture  string            `yaml:"fixture,omitempty" validate:"omitempty,oneof=sample"`
	Revision string            `yaml:"revision,omitempty"`
	Branches map[string]string `yaml:"branches,omitempty" validate:"omitempty,dive,omitempty,swhid"`
	Tags     map[string]string `yaml:"tags,omitempty" validate:"omitempty,dive,omitempty,swhid"`
	Snapshot *string           `yaml:"snapshot,omitempty" validate:"omitempty,swhid"`
	Variants []string          `yaml:"variants,omitempty" validate:"omitempty,dive,varianttag"`
}

// NegativePayload documents an input every implementation must reject, and
// with which error kind.
type NegativePayload struct {
	Name        string `yaml:"name" validate:"required,ident"`
	Type        string `yaml:"type" validate:"required,objtype"`
	Path        string `yaml:"path" validate:"required"`
	ExpectError string `yaml:"expect_error" validate:"required,errorkind"`
	Reason      string `yaml:"reason,omitempty"`
}

func knownFields(node *yaml.Node, known ...string) error {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	allowed := make(map[string]struct{}, len(known))
	for _, k := range known {
		allowed[k] = struct{}{}
	}
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i]
		if _, ok := allowed[key.Value]; !ok {
			return fmt.Errorf("line %d: field %s not found", key.Line, key.Value)
		}
	}
	return nil
}
