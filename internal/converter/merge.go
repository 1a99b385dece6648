package converter

import (
	"fmt"

	"github.com/yuanying/bits2mets/internal/bits"
	"github.com/yuanying/bits2mets/internal/mets"
	"github.com/yuanying/bits2mets/internal/processlog"
)

// DefaultOverrideFields lists the fields replaced rather than appended when
// metadata is merged into an existing node.
var DefaultOverrideFields = []string{"TitleDocMain"}

// OverridePolicy is the set of fields whose first existing value is replaced
// on an override merge.
type OverridePolicy map[string]struct{}

// NewOverridePolicy creates a policy for fields.
func NewOverridePolicy(fields ...string) OverridePolicy {
	p := make(OverridePolicy, len(fields))
	for _, f := range fields {
		p[f] = struct{}{}
	}
	return p
}

// Overrides reports whether field is replaced on an override merge.
func (p OverridePolicy) Overrides(field string) bool {
	_, ok := p[field]
	return ok
}

// MergeMetadata attaches md to node. When override is set, fields in policy
// replace the first existing value of the same type instead of adding a
// second one. Persons are always added. Fields the ruleset rejects are logged
// and skipped.
func MergeMetadata(doc *mets.Document, node *mets.DocStruct, md bits.ParsedMetadata, override bool, policy OverridePolicy, log processlog.Logger) {
	for _, el := range md.Elements {
		if override && policy.Overrides(el.Field) {
			if existing := node.MetadataByType(el.Field); len(existing) > 0 {
				log.Log(fmt.Sprintf("The following %s was overriden: %s with: %s", el.Field, existing[0].Value, el.Value), processlog.Info, false)
				existing[0].Value = el.Value
				continue
			}
		}

		m, err := doc.NewMetadata(el.Field, el.Value)
		if err == nil {
			err = node.AddMetadata(m)
		}
		if err != nil {
			log.Log(fmt.Sprintf("Couldn't add metadata of type %s to structure %s: %v. Please update the ruleset or the configuration file!", el.Field, node.TypeName(), err), processlog.Error, true)
		}
	}

	for _, p := range md.Persons {
		person, err := doc.NewPerson(p.Role, p.FirstName, p.LastName)
		if err == nil {
			err = node.AddPerson(person)
		}
		if err != nil {
			log.Log(fmt.Sprintf("Couldn't add person with role %s to structure %s: %v. Please update the ruleset or the configuration file!", p.Role, node.TypeName(), err), processlog.Error, true)
		}
	}
}
