package scholix

func (id Identifier) ToMap() map[string]interface{} {
	var u interface{}
	if id.IDURL != nil {
		u = *id.IDURL
	}
	return map[string]interface{}{
		"ID":       id.ID,
		"IDScheme": id.IDScheme,
		"IDURL":    u,
	}
}

func (c Creator) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"Name":       c.Name,
		"Identifier": identifierMaps(c.Identifier),
	}
}

func (p Publisher) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"name":       p.Name,
		"Identifier": identifierMaps(p.Identifier),
	}
}

func (p LinkProvider) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"name":       p.Name,
		"identifier": identifierMaps(p.Identifier),
	}
}

func (r Resource) ToMap() map[string]interface{} {
	creators := make([]interface{}, 0, len(r.Creator))
	for _, c := range r.Creator {
		creators = append(creators, c.ToMap())
	}
	publishers := make([]interface{}, 0, len(r.Publisher))
	for _, p := range r.Publisher {
		publishers = append(publishers, p.ToMap())
	}
	return map[string]interface{}{
		"Identifier":      identifierMaps(r.Identifier),
		"Type":            r.Type,
		"SubType":         r.SubType,
		"Title":           r.Title,
		"Creator":         creators,
		"PublicationDate": r.PublicationDate,
		"Publisher":       publishers,
	}
}

func (t RelationshipType) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"Name":          t.Name,
		"SubType":       t.SubType,
		"SubTypeSchema": t.SubTypeSchema,
	}
}

// ToMap returns the link as a nested mapping. A missing source or target
// becomes nil, like the license URL.
func (s Scholix) ToMap() map[string]interface{} {
	providers := make([]interface{}, 0, len(s.LinkProvider))
	for _, p := range s.LinkProvider {
		providers = append(providers, p.ToMap())
	}
	var license, source, target interface{}
	if s.LicenseURL != nil {
		license = *s.LicenseURL
	}
	if s.Source != nil {
		source = s.Source.ToMap()
	}
	if s.Target != nil {
		target = s.Target.ToMap()
	}
	return map[string]interface{}{
		"LinkPublicationDate": s.LinkPublicationDate,
		"LinkProvider":        providers,
		"RelationshipType":    s.RelationshipType.ToMap(),
		"LicenseURL":          license,
		"Source":              source,
		"Target":              target,
	}
}

func identifierMaps(ids []Identifier) []interface{} {
	result := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		result = append(result, id.ToMap())
	}
	return result
}
