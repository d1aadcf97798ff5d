package config

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/swhidcheck/swhidcheck/internal/model"
	"github.com/swhidcheck/swhidcheck/internal/swhid"
	"github.com/swhidcheck/swhidcheck/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	identPattern     = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
	qualifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*=.+$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("ident", func(fl validator.FieldLevel) bool {
			return identPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("varianttag", func(fl validator.FieldLevel) bool {
			_, err := swhid.ParseVariantTag(fl.Field().String())
			return err == nil
		})

		_ = v.RegisterValidation("objtype", func(fl validator.FieldLevel) bool {
			_, err := swhid.ParseObjectType(fl.Field().String())
			return err == nil
		})

		_ = v.RegisterValidation("errorkind", func(fl validator.FieldLevel) bool {
			_, ok := model.ParseKind(fl.Field().String())
			return ok
		})

		_ = v.RegisterValidation("swhid", func(fl validator.FieldLevel) bool {
			_, err := swhid.Parse(fl.Field().String())
			return err == nil
		})

		_ = v.RegisterValidation("qualifier", func(fl validator.FieldLevel) bool {
			return qualifierPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// Validate performs schema and cross-field validation on a parsed suite.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.NewValidationError("config", "configuration is nil", nil)
	}

	v := validatorInstance()
	if err := v.Struct(cfg); err != nil {
		return convertValidationError(err)
	}

	implIDs := make(map[string]struct{}, len(cfg.Implementations))
	for i, impl := range cfg.Implementations {
		field := fmt.Sprintf("implementations[%d]", i)
		if _, dup := implIDs[impl.ID]; dup {
			return errors.NewValidationError(field+".id", fmt.Sprintf("duplicate implementation id %q", impl.ID), nil)
		}
		implIDs[impl.ID] = struct{}{}

		switch impl.Kind {
		case "builtin":
			if impl.Builtin == "" {
				return errors.NewValidationError(field+".builtin", "builtin implementations need a builtin name", nil)
			}
		case "command", "json":
			if impl.Command == "" {
				return errors.NewValidationError(field+".command", fmt.Sprintf("%s implementations need a command", impl.Kind), nil)
			}
		}
	}

	if cfg.Payloads.Count() == 0 {
		return errors.NewValidationError("payloads", "at least one payload is required", nil)
	}

	names := make(map[string]string, cfg.Payloads.Count())
	claim := func(name, where string) error {
		if prev, dup := names[name]; dup {
			return errors.NewValidationError(where+".name", fmt.Sprintf("payload name %q already used by %s", name, prev), nil)
		}
		names[name] = where
		return nil
	}
	for i, p := range cfg.Payloads.Content {
		if err := claim(p.Name, fmt.Sprintf("payloads.content[%d]", i)); err != nil {
			return err
		}
	}
	for i, p := range cfg.Payloads.Directory {
		if err := claim(p.Name, fmt.Sprintf("payloads.directory[%d]", i)); err != nil {
			return err
		}
	}
	for i, p := range cfg.Payloads.Archive {
		if err := claim(p.Name, fmt.Sprintf("payloads.archive[%d]", i)); err != nil {
			return err
		}
	}
	for i, p := range cfg.Payloads.Git {
		field := fmt.Sprintf("payloads.git[%d]", i)
		if err := claim(p.Name, field); err != nil {
			return err
		}
		if p.Path != "" && p.Fixture != "" {
			return errors.NewValidationError(field, "fixture and path are mutually exclusive", nil)
		}
	}
	for i, p := range cfg.Payloads.Negative {
		if err := claim(p.Name, fmt.Sprintf("payloads.negative[%d]", i)); err != nil {
			return err
		}
	}

	return nil
}

func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	if ves, ok := err.(validator.ValidationErrors); ok {
		ve := ves[0]
		field := yamlishFieldName(ve)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		return errors.NewValidationError(field, msg, err)
	}

	return errors.NewValidationError("config", err.Error(), err)
}

func yamlishFieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	parts := strings.Split(ns, ".")
	var lowered []string
	for _, part := range parts {
		lowered = append(lowered, strings.ToLower(part))
	}
	return strings.Join(lowered, ".")
}
