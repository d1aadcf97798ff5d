package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// Parse loads a suite configuration from disk, applies defaults, and
// validates it. Unknown document keys are rejected.
func Parse(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewParseError(path, 0, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.NewParseError(path, extractLine(err), err)
	}

	cfg.applyDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Settings.Parallel == 0 {
		c.Settings.Parallel = 4
	}
	if c.Settings.TimeoutS == 0 {
		c.Settings.TimeoutS = 30
	}
	if c.Settings.Samples == 0 {
		c.Settings.Samples = 1
	}
	if c.Settings.Format == "" {
		c.Settings.Format = "json"
	}
	for i := range c.Payloads.Git {
		g := &c.Payloads.Git[i]
		if g.Path == "" && g.Fixture == "" {
			g.Fixture = "sample"
		}
	}
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	if _, err := fmt.Sscanf(matches[1], "%d", &line); err != nil {
		return 0
	}
	return line
}
