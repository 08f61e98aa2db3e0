package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("found %d configuration error(s):\n", len(errs)))
	for i, err := range errs {
		b.WriteString(fmt.Sprintf("  %d. [%s] %s\n", i+1, err.Field, err.Message))
	}
	return b.String()
}

// Has reports whether any error concerns the given field.
func (errs ValidationErrors) Has(field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the complete configuration
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateStruct()...)
	errs = append(errs, c.validateLLM()...)
	errs = append(errs, c.validateSources()...)
	errs = append(errs, c.validatePipeline()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateStruct runs the declarative tag checks.
func (c *Config) validateStruct() ValidationErrors {
	err := structValidator.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: "config", Message: err.Error()}}
	}
	var errs ValidationErrors
	for _, fe := range fieldErrs {
		errs = append(errs, ValidationError{
			Field:   fieldPath(fe.Namespace()),
			Message: fmt.Sprintf("failed %q check (value %v)", fe.Tag(), fe.Value()),
		})
	}
	return errs
}

// fieldPath turns "Config.LLM.BaseURL" into "llm.baseurl".
func fieldPath(ns string) string {
	ns = strings.TrimPrefix(ns, "Config.")
	return strings.ToLower(ns)
}

// validateLLM validates the model credentials
func (c *Config) validateLLM() ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(c.LLM.APIKey) == "" {
		errs = append(errs, ValidationError{
			Field:   "llm.api_key",
			Message: fmt.Sprintf("llm api key is required (set it in the file or via %s)", EnvAPIKey),
		})
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		errs = append(errs, ValidationError{
			Field:   "llm.model",
			Message: "llm model is required",
		})
	}
	return errs
}

// validateSources checks each source declaration and the catalog as a whole.
func (c *Config) validateSources() ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]bool, len(c.Sources))

	for i, s := range c.Sources {
		field := fmt.Sprintf("sources[%d]", i)
		id := strings.ToLower(strings.TrimSpace(s.ID))
		if id == "" {
			continue // reported by the struct check
		}
		if seen[id] {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("duplicate source id %q", s.ID),
			})
		}
		seen[id] = true

		if err := CheckSource(s); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error()})
		}
	}
	return errs
}

// CheckSource reports whether a source declaration is usable: a known variant
// with the corpus location that variant needs. It never touches the filesystem.
func CheckSource(s SourceConfig) error {
	switch strings.ToLower(strings.TrimSpace(s.Variant)) {
	case VariantSingle, VariantDirect:
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("source %q (%s) requires a corpus path", s.ID, s.Variant)
		}
	case VariantMultiChunk:
		locations := 0
		if len(s.Paths) > 0 {
			locations++
			for _, p := range s.Paths {
				if strings.TrimSpace(p) == "" {
					return fmt.Errorf("source %q has an empty entry in paths", s.ID)
				}
			}
		}
		if strings.TrimSpace(s.Dir) != "" {
			locations++
		}
		if s.Split {
			if strings.TrimSpace(s.Path) == "" {
				return fmt.Errorf("source %q sets split but has no path", s.ID)
			}
			locations++
		}
		if locations == 0 {
			return fmt.Errorf("source %q (%s) requires paths, dir, or path with split", s.ID, s.Variant)
		}
		if locations > 1 {
			return fmt.Errorf("source %q declares more than one chunk location", s.ID)
		}
	case "":
		return fmt.Errorf("source %q has no variant", s.ID)
	default:
		return fmt.Errorf("source %q has unknown variant %q", s.ID, s.Variant)
	}
	return nil
}

// validatePipeline validates the cross-section pipeline settings
func (c *Config) validatePipeline() ValidationErrors {
	var errs ValidationErrors

	if meta := strings.TrimSpace(c.Pipeline.MetaSource); meta != "" {
		src, ok := c.Source(meta)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   "pipeline.meta_source",
				Message: fmt.Sprintf("meta source %q is not declared in sources", meta),
			})
		} else if !strings.EqualFold(strings.TrimSpace(src.Variant), VariantDirect) {
			errs = append(errs, ValidationError{
				Field:   "pipeline.meta_source",
				Message: fmt.Sprintf("meta source %q must use the %s variant, got %q", meta, VariantDirect, src.Variant),
			})
		}
	}
	if c.Pipeline.ChunkTokens > 0 && c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkTokens {
		errs = append(errs, ValidationError{
			Field:   "pipeline.chunk_overlap",
			Message: fmt.Sprintf("chunk overlap %d must be smaller than chunk size %d", c.Pipeline.ChunkOverlap, c.Pipeline.ChunkTokens),
		})
	}
	return errs
}
