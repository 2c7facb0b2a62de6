package rbac

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// RuleFile is the on-disk layout of a rule table.
//
//	rules:
//	  - role: manager
//	    resource: reports
//	    actions: [read, approve]
type RuleFile struct {
	Rules []Rule `yaml:"rules"`
}

// DecodeRules parses a YAML rule document.
func DecodeRules(r io.Reader) ([]Rule, error) {
	var file RuleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("rbac: decode rules: %w", err)
	}
	return file.Rules, nil
}

// LoadRulesFile reads and validates a YAML rule file.
func LoadRulesFile(path string) (*RuleTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rbac: open rules: %w", err)
	}
	defer f.Close()
	rules, err := DecodeRules(f)
	if err != nil {
		return nil, err
	}
	return NewRuleTable(rules)
}
