// Package config loads bits2mets configuration and turns the mapping section
// into compiled extraction rules.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/yuanying/bits2mets/internal/bits"
	"github.com/yuanying/bits2mets/internal/mets"
)

// ErrMissingField is returned when a required key is absent or empty.
var ErrMissingField = errors.New("missing required configuration field")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load reads configuration from cfgFile, or from bits2mets.yaml in the
// working directory or $HOME/.bits2mets when cfgFile is empty. Environment
// variables with the BITS2METS_ prefix override file values. A missing
// default file is not an error; an explicit cfgFile must exist.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("first_page_xpath", defaults.FirstPageXPath)
	v.SetDefault("last_page_xpath", defaults.LastPageXPath)
	v.SetDefault("page_type", defaults.PageType)
	v.SetDefault("top_struct_type", defaults.TopStructType)
	v.SetDefault("physical_root_type", defaults.PhysicalRootType)
	v.SetDefault("override_fields", defaults.OverrideFields)
	v.SetDefault("nested_book_parts", false)
	v.SetDefault("allow_doctype", false)
	v.SetDefault("namespaces", defaults.Namespaces)
	v.SetDefault("ruleset", "")
	v.SetDefault("verify_images", false)

	// Environment variables with BITS2METS_ prefix
	v.SetEnvPrefix("BITS2METS")
	v.AutomaticEnv()
	for _, key := range []string{"structure_type_bits", "structure_type_pdf", "book_part_xpath"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("bits2mets")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.bits2mets")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate reports the first required key that is missing, named by its
// YAML path.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	key := strings.TrimPrefix(verrs[0].Namespace(), "Config.")
	return fmt.Errorf("%w: %s", ErrMissingField, key)
}

// Rules compiles every configured expression. It fails on the first invalid
// one.
func (c *Config) Rules() (bits.Rules, error) {
	if err := c.Validate(); err != nil {
		return bits.Rules{}, err
	}

	rules := bits.Rules{Nested: c.NestedBookParts}
	var err error
	if rules.BookPart, err = c.compile("book_part_xpath", c.BookPartXPath); err != nil {
		return bits.Rules{}, err
	}
	if rules.FirstPage, err = c.compile("first_page_xpath", c.FirstPageXPath); err != nil {
		return bits.Rules{}, err
	}
	if rules.LastPage, err = c.compile("last_page_xpath", c.LastPageXPath); err != nil {
		return bits.Rules{}, err
	}

	if rules.PublicationMetadata, err = c.metadataRules("publication_mapping", c.PublicationMapping.Metadata); err != nil {
		return bits.Rules{}, err
	}
	if rules.PublicationPersons, err = c.personRules("publication_mapping", c.PublicationMapping.Persons); err != nil {
		return bits.Rules{}, err
	}
	if rules.ElementMetadata, err = c.metadataRules("element_mapping", c.ElementMapping.Metadata); err != nil {
		return bits.Rules{}, err
	}
	if rules.ElementPersons, err = c.personRules("element_mapping", c.ElementMapping.Persons); err != nil {
		return bits.Rules{}, err
	}
	return rules, nil
}

// LoadRuleset returns the configured ruleset, or a permissive one when no
// ruleset file is set.
func (c *Config) LoadRuleset() (*mets.Ruleset, error) {
	if c.Ruleset == "" {
		return mets.DefaultRuleset(), nil
	}
	return mets.LoadRuleset(c.Ruleset)
}

func (c *Config) compile(name, expr string) (*bits.Path, error) {
	p, err := bits.CompilePath(expr, c.Namespaces)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", name, err)
	}
	return p, nil
}

func (c *Config) metadataRules(section string, mappings []MetadataMappingCfg) ([]bits.MappingRule, error) {
	var rules []bits.MappingRule
	for i, m := range mappings {
		p, err := c.compile(fmt.Sprintf("%s.metadata[%d] (%s)", section, i, m.Field), m.XPath)
		if err != nil {
			return nil, err
		}
		rules = append(rules, bits.MappingRule{Path: p, Field: m.Field})
	}
	return rules, nil
}

func (c *Config) personRules(section string, mappings []PersonMappingCfg) ([]bits.PersonMappingRule, error) {
	var rules []bits.PersonMappingRule
	for i, m := range mappings {
		name := fmt.Sprintf("%s.persons[%d] (%s)", section, i, m.Role)
		node, err := c.compile(name, m.XPath)
		if err != nil {
			return nil, err
		}
		first, err := c.compile(name+" firstname", m.FirstName)
		if err != nil {
			return nil, err
		}
		last, err := c.compile(name+" lastname", m.LastName)
		if err != nil {
			return nil, err
		}
		rules = append(rules, bits.PersonMappingRule{Node: node, FirstName: first, LastName: last, Role: m.Role})
	}
	return rules, nil
}
