package temporal

import (
	"slices"
)

// BuildEntity folds the attribute histories of one entity into its temporal
// representation. Attributes without instances are left out and the order of
// instances within an attribute is kept as delivered.
func BuildEntity(etr EntityTemporalResult, q Query, opts Options, contexts []string) CompactedEntity {
	e := CompactedEntity{
		ID:             etr.Entity.ID,
		Types:          slices.Clone(etr.Entity.Types),
		Context:        contexts,
		Representation: opts.Representation,
		TimeProperty:   q.TimeProperty,
		WithAudit:      opts.WithAudit && opts.Representation == Normalized,
		Series:         []Series{},
	}

	if opts.WithSysAttrs && opts.Representation != TemporalValues {
		createdAt := etr.Entity.CreatedAt
		e.CreatedAt = &createdAt
		e.ModifiedAt = etr.Entity.ModifiedAt
	}

	for _, name := range attributeNamesOf(etr.Attributes) {
		for _, h := range etr.Attributes {
			if h.Attribute.Name != name || len(h.Instances) == 0 {
				continue
			}

			e.Series = append(e.Series, Series{
				Name:      h.Attribute.Name,
				Type:      h.Attribute.Type,
				DatasetID: h.Attribute.DatasetID,
				Instances: slices.Clone(h.Instances),
			})
		}
	}

	if len(etr.ScopeHistory) > 0 {
		e.Series = append(e.Series, Series{
			Name:      ScopeAttributeName,
			Type:      Property,
			Instances: slices.Clone(etr.ScopeHistory),
		})
	}

	return e
}

func BuildEntities(etrs []EntityTemporalResult, q Query, opts Options, contexts []string) []CompactedEntity {
	entities := make([]CompactedEntity, 0, len(etrs))
	for _, etr := range etrs {
		entities = append(entities, BuildEntity(etr, q, opts, contexts))
	}
	return entities
}

// attributeNamesOf groups dataset instances under their attribute name while
// keeping the order in which names first appear
func attributeNamesOf(histories []AttributeHistory) []string {
	names := []string{}
	for _, h := range histories {
		if !slices.Contains(names, h.Attribute.Name) {
			names = append(names, h.Attribute.Name)
		}
	}
	return names
}
