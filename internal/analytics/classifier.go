package analytics

import "strings"

// Rule maps a family of noisy titles to one canonical product name.
// Every group in Match must have at least one of its substrings present in
// the uppercased title for the rule to apply.
type Rule struct {
	Canonical string     `json:"canonical" mapstructure:"canonical"`
	Match     [][]string `json:"match" mapstructure:"match"`
}

func (r Rule) matches(upper string) bool {
	if len(r.Match) == 0 {
		return false
	}
	for _, group := range r.Match {
		if !containsAny(upper, group) {
			return false
		}
	}
	return true
}

// DefaultProductRules is the ordered rule table of the store's product lines.
func DefaultProductRules() []Rule {
	return []Rule{
		{Canonical: "Mochila Primera Etapa (Total)", Match: [][]string{{"MOCHILA PRIMERA ETAPA"}}},
		{Canonical: "Upa Go! (Total)", Match: [][]string{{"UPA GO!"}}},
		{Canonical: "Mochila Toddler (Total)", Match: [][]string{{"TODDLER"}, {"MOCHILA", "MOSHILA"}}},
		{Canonical: "Cubre Porteo (Total)", Match: [][]string{{"CUBRE PORTEO"}}},
		{Canonical: "Mochila Baby (Total)", Match: [][]string{{"MOCHILA DE PORTEO BABY", "MOCHILA BABY"}}},
		{Canonical: "Upa Mami (Total)", Match: [][]string{{"UPA MAMI"}}},
		{Canonical: "Columpio Ergonómico (Total)", Match: [][]string{{"COLUMPIO ERGONÓMICO", "COLUMPIO ERGONOMICO"}}},
	}
}

// Classification is the result of classifying one line item.
type Classification struct {
	Canonical    string `json:"canonical"`
	Manufactured bool   `json:"manufactured"`
}

// Classifier canonicalizes product names and attributes brand ownership.
type Classifier struct {
	rules        []Rule
	defaultTitle string
	ownerAliases map[string]struct{}
	alwaysOwned  map[string]struct{}
}

// NewClassifier builds a classifier from the rule tables in settings.
func NewClassifier(settings Settings) *Classifier {
	c := &Classifier{
		rules:        settings.ProductRules,
		defaultTitle: settings.DefaultVariantTitle,
		ownerAliases: make(map[string]struct{}, len(settings.OwnerBrandAliases)),
		alwaysOwned:  make(map[string]struct{}, len(settings.AlwaysOwned)),
	}
	for _, alias := range settings.OwnerBrandAliases {
		c.ownerAliases[strings.ToUpper(strings.TrimSpace(alias))] = struct{}{}
	}
	for _, name := range settings.AlwaysOwned {
		c.alwaysOwned[name] = struct{}{}
	}
	return c
}

// Canonical returns the product group a (product, variant) title pair belongs to.
func (c *Classifier) Canonical(productTitle, variantTitle string) string {
	fullName := productTitle
	if variantTitle != "" && variantTitle != c.defaultTitle {
		fullName += " (" + variantTitle + ")"
	}

	upper := strings.ToUpper(fullName)
	for _, rule := range c.rules {
		if rule.matches(upper) {
			return rule.Canonical
		}
	}
	return fullName
}

// IsOwnerVendor reports whether a vendor tag names the owner brand.
func (c *Classifier) IsOwnerVendor(vendor string) bool {
	_, ok := c.ownerAliases[strings.ToUpper(strings.TrimSpace(vendor))]
	return ok
}

// Classify canonicalizes a line item and decides whether it is manufactured
// in-house. The always-owned list wins over the vendor tag.
func (c *Classifier) Classify(item *RawLineItem) Classification {
	canonical := c.Canonical(item.ProductTitle, item.VariantTitle)
	_, owned := c.alwaysOwned[canonical]
	return Classification{
		Canonical:    canonical,
		Manufactured: owned || c.IsOwnerVendor(item.Vendor),
	}
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
