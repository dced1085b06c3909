package rules

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/invoiceworks/ruleflow/internal/logger"
)

const (
	defaultPriority = 50
)

// YAMLStore loads rules from a YAML configuration file with
// field_completion_rules and field_validation_rules lists.
type YAMLStore struct {
	path string
}

// NewYAMLStore creates a store reading from the given file path.
func NewYAMLStore(path string) *YAMLStore {
	return &YAMLStore{path: path}
}

// yamlRule is the on-disk record shape shared by both rule kinds. Pointer
// fields distinguish "absent" from zero so defaults can be applied.
type yamlRule struct {
	ID           string `yaml:"id"`
	RuleName     string `yaml:"rule_name"`
	ApplyTo      string `yaml:"apply_to"`
	TargetField  string `yaml:"target_field"`
	FieldPath    string `yaml:"field_path"`
	Expression   string `yaml:"rule_expression"`
	ErrorMessage string `yaml:"error_message"`
	Priority     *int   `yaml:"priority"`
	Active       *bool  `yaml:"active"`
}

type yamlConfig struct {
	CompletionRules []yamlRule `yaml:"field_completion_rules"`
	ValidationRules []yamlRule `yaml:"field_validation_rules"`
}

// Load reads and parses the configuration file. A file that cannot be read
// or is not valid YAML fails the load; individually malformed rule records
// are dropped with a warning.
func (s *YAMLStore) Load(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read rule configuration %s: %v", ErrConfig, s.path, err)
	}

	var cfg yamlConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse rule configuration %s: %v", ErrConfig, s.path, err)
	}

	var completion []CompletionRule
	for _, rec := range cfg.CompletionRules {
		rule, err := rec.toCompletion()
		if err != nil {
			logger.WarnDroppedRule()
			logger.Warn("dropping malformed completion rule", "id", rec.ID, "error", err)
			continue
		}
		completion = append(completion, rule)
	}

	var validation []ValidationRule
	for _, rec := range cfg.ValidationRules {
		rule, err := rec.toValidation()
		if err != nil {
			logger.WarnDroppedRule()
			logger.Warn("dropping malformed validation rule", "id", rec.ID, "error", err)
			continue
		}
		validation = append(validation, rule)
	}

	logger.Info("rule configuration loaded",
		"path", s.path,
		"completion_rules", len(completion),
		"validation_rules", len(validation))

	return newSnapshot(completion, validation), nil
}

func (r yamlRule) toCompletion() (CompletionRule, error) {
	if r.ID == "" {
		return CompletionRule{}, fmt.Errorf("missing id")
	}
	if r.TargetField == "" {
		return CompletionRule{}, fmt.Errorf("missing target_field")
	}
	if r.Expression == "" {
		return CompletionRule{}, fmt.Errorf("missing rule_expression")
	}
	return CompletionRule{
		ID:          r.ID,
		Name:        r.RuleName,
		ApplyTo:     r.ApplyTo,
		TargetField: r.TargetField,
		Expression:  r.Expression,
		Priority:    intOr(r.Priority, defaultPriority),
		Active:      boolOr(r.Active, true),
	}, nil
}

func (r yamlRule) toValidation() (ValidationRule, error) {
	if r.ID == "" {
		return ValidationRule{}, fmt.Errorf("missing id")
	}
	if r.Expression == "" {
		return ValidationRule{}, fmt.Errorf("missing rule_expression")
	}
	return ValidationRule{
		ID:           r.ID,
		Name:         r.RuleName,
		ApplyTo:      r.ApplyTo,
		FieldPath:    r.FieldPath,
		Expression:   r.Expression,
		ErrorMessage: r.ErrorMessage,
		Priority:     intOr(r.Priority, defaultPriority),
		Active:       boolOr(r.Active, true),
	}, nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
