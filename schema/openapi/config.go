package openapi

import clientstate "github.com/goliatone/go-clientstate"

type generatorConfig struct {
	openAPIVersion string
	info           openapiInfo
	classifier     []clientstate.Option
}

type openapiInfo struct {
	Title       string
	Version     string
	Description string
}

func defaultGeneratorConfig() generatorConfig {
	return generatorConfig{
		openAPIVersion: "3.1.0",
		info: openapiInfo{
			Title:   "Client State",
			Version: "1.0.0",
		},
	}
}

// GeneratorOption configures the OpenAPI generator behaviour.
type GeneratorOption func(*generatorConfig)

// WithOpenAPIVersion overrides the OpenAPI version string (default: 3.1.0).
// Component schemas use JSON Schema 2020-12 type lists, so versions before
// 3.1 produce documents older tooling may reject.
func WithOpenAPIVersion(version string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if version == "" {
			return
		}
		cfg.openAPIVersion = version
	}
}

// InfoOption configures optional fields on the OpenAPI info section.
type InfoOption func(*openapiInfo)

// WithInfoDescription sets the optional description field for the info section.
func WithInfoDescription(description string) InfoOption {
	return func(info *openapiInfo) {
		info.Description = description
	}
}

// WithInfo configures the OpenAPI info block. Empty strings retain the
// existing values.
func WithInfo(title, version string, opts ...InfoOption) GeneratorOption {
	return func(cfg *generatorConfig) {
		if title != "" {
			cfg.info.Title = title
		}
		if version != "" {
			cfg.info.Version = version
		}
		for _, opt := range opts {
			if opt != nil {
				opt(&cfg.info)
			}
		}
	}
}

// WithClassifierOptions sets the options used to classify each top-level key.
// Pass the same options the stores are built with so the x-state-class
// annotations agree with the runtime validator.
func WithClassifierOptions(opts ...clientstate.Option) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.classifier = append(cfg.classifier, opts...)
	}
}
