package config

// DefaultConfig returns the configuration used for keys absent from the file.
// The required keys have no default.
func DefaultConfig() *Config {
	return &Config{
		FirstPageXPath:   ".//fpage",
		LastPageXPath:    ".//lpage",
		PageType:         "page",
		TopStructType:    "Monograph",
		PhysicalRootType: "BoundBook",
		OverrideFields:   []string{"TitleDocMain"},
		Namespaces: map[string]string{
			"xlink": "http://www.w3.org/1999/xlink",
		},
	}
}
