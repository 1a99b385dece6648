package config

// Config holds bits2mets configuration.
// Stored at: ./bits2mets.yaml or $HOME/.bits2mets/bits2mets.yaml
type Config struct {
	StructureTypeBits string `mapstructure:"structure_type_bits" yaml:"structure_type_bits" validate:"required"` // type given to matched and created nodes
	StructureTypePDF  string `mapstructure:"structure_type_pdf" yaml:"structure_type_pdf" validate:"required"`   // type of the nodes indexed by page range
	BookPartXPath     string `mapstructure:"book_part_xpath" yaml:"book_part_xpath" validate:"required"`
	FirstPageXPath    string `mapstructure:"first_page_xpath" yaml:"first_page_xpath" validate:"required"`
	LastPageXPath     string `mapstructure:"last_page_xpath" yaml:"last_page_xpath" validate:"required"`

	PageType         string `mapstructure:"page_type" yaml:"page_type" validate:"required"`
	TopStructType    string `mapstructure:"top_struct_type" yaml:"top_struct_type"`       // logical root of a new document
	PhysicalRootType string `mapstructure:"physical_root_type" yaml:"physical_root_type"` // physical root of a new document

	OverrideFields  []string          `mapstructure:"override_fields" yaml:"override_fields"`
	NestedBookParts bool              `mapstructure:"nested_book_parts" yaml:"nested_book_parts"`
	AllowDoctype    bool              `mapstructure:"allow_doctype" yaml:"allow_doctype"`
	Namespaces      map[string]string `mapstructure:"namespaces" yaml:"namespaces"`
	Ruleset         string            `mapstructure:"ruleset" yaml:"ruleset"` // path to a YAML ruleset; empty means permissive
	VerifyImages    bool              `mapstructure:"verify_images" yaml:"verify_images"`

	PublicationMapping MappingCfg `mapstructure:"publication_mapping" yaml:"publication_mapping"`
	ElementMapping     MappingCfg `mapstructure:"element_mapping" yaml:"element_mapping"`
}

// MappingCfg lists the metadata and person mappings for one level.
type MappingCfg struct {
	Metadata []MetadataMappingCfg `mapstructure:"metadata" yaml:"metadata" validate:"dive"`
	Persons  []PersonMappingCfg   `mapstructure:"persons" yaml:"persons" validate:"dive"`
}

// MetadataMappingCfg maps the values of an XPath expression to a field.
type MetadataMappingCfg struct {
	XPath string `mapstructure:"xpath" yaml:"xpath"`
	Field string `mapstructure:"field" yaml:"field" validate:"required"`
}

// PersonMappingCfg maps the nodes of an XPath expression to persons.
type PersonMappingCfg struct {
	XPath     string `mapstructure:"xpath" yaml:"xpath"`         // selects one node per person
	FirstName string `mapstructure:"firstname" yaml:"firstname"` // relative to the person node
	LastName  string `mapstructure:"lastname" yaml:"lastname"`   // relative to the person node
	Role      string `mapstructure:"role" yaml:"role" validate:"required"`
}
