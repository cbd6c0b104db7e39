package providers

import "strings"

// ProviderRef is one entry of a provider list such as "openai:prod|mock".
// Name is lower-cased; KeyAlias selects credentials or a model alias.
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

// ParseProviderList splits raw on "|" and drops blanks and repeats. An empty
// list means mock.
func ParseProviderList(raw string) []ProviderRef {
	var out []ProviderRef
	seen := map[string]bool{}
	for _, p := range strings.Split(raw, "|") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, alias, _ := strings.Cut(p, ":")
		ref := ProviderRef{
			Raw:      p,
			Name:     strings.ToLower(strings.TrimSpace(name)),
			KeyAlias: strings.TrimSpace(alias),
		}
		if key := ref.Name + ":" + ref.KeyAlias; !seen[key] {
			seen[key] = true
			out = append(out, ref)
		}
	}
	if len(out) == 0 {
		return []ProviderRef{{Raw: "mock", Name: "mock"}}
	}
	return out
}
