package engine

import (
	"encoding/json"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var localeTokenRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// LocaleResolver loads locales/*.json and answers dotted-key translations
// with a deterministic fallback chain: requested locale, default locale,
// first loaded locale by name, then a humanized form of the key itself.
type LocaleResolver struct {
	mu            sync.RWMutex
	locales       map[string]map[string]interface{}
	names         []string
	defaultLocale string
}

func NewLocaleResolver() *LocaleResolver {
	return &LocaleResolver{locales: make(map[string]map[string]interface{})}
}

// Load reads every locale file from the source. A file named like
// "en.default.json" marks the default locale. Malformed files are logged
// and skipped; a bad translation file never takes the theme down.
func (lr *LocaleResolver) Load(source ThemeSource) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.locales = make(map[string]map[string]interface{})
	lr.names = nil
	for _, path := range source.List("locales") {
		base := path[strings.LastIndex(path, "/")+1:]
		if !strings.HasSuffix(base, ".json") {
			continue
		}
		name := strings.TrimSuffix(base, ".json")
		isDefault := strings.HasSuffix(name, ".default")
		name = strings.TrimSuffix(name, ".default")
		data, err := source.ReadFile(path)
		if err != nil {
			continue
		}
		var tree map[string]interface{}
		if err := json.Unmarshal(data, &tree); err != nil {
			log.Printf("locale resolver: skipping %s: %v", path, err)
			continue
		}
		lr.locales[name] = tree
		lr.names = append(lr.names, name)
		if isDefault {
			lr.defaultLocale = name
		}
	}
	sort.Strings(lr.names)
	if lr.defaultLocale == "" && len(lr.names) > 0 {
		lr.defaultLocale = lr.names[0]
	}
}

func (lr *LocaleResolver) DefaultLocale() string {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	return lr.defaultLocale
}

func (lr *LocaleResolver) SetDefaultLocale(name string) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if name != "" {
		lr.defaultLocale = name
	}
}

// Translate resolves a dotted key like "products.product.add_to_cart" and
// substitutes {{ token }} placeholders from subs. Placeholders with no
// matching substitution are left intact.
func (lr *LocaleResolver) Translate(key, locale string, subs map[string]interface{}) string {
	lr.mu.RLock()
	defer lr.mu.RUnlock()

	chain := make([]string, 0, 3)
	if locale != "" {
		chain = append(chain, locale)
	}
	if lr.defaultLocale != "" && lr.defaultLocale != locale {
		chain = append(chain, lr.defaultLocale)
	}
	for _, name := range lr.names {
		if name != locale && name != lr.defaultLocale {
			chain = append(chain, name)
			break
		}
	}

	for _, name := range chain {
		tree, ok := lr.locales[name]
		if !ok {
			continue
		}
		if text, ok := lookupDotted(tree, key); ok {
			return substituteTokens(text, subs)
		}
	}
	return humanizeKey(key)
}

func lookupDotted(tree map[string]interface{}, key string) (string, bool) {
	parts := strings.Split(key, ".")
	var current interface{} = tree
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return "", false
		}
		current, ok = m[part]
		if !ok {
			return "", false
		}
	}
	text, ok := current.(string)
	return text, ok
}

func substituteTokens(text string, subs map[string]interface{}) string {
	if len(subs) == 0 || !strings.Contains(text, "{{") {
		return text
	}
	return localeTokenRe.ReplaceAllStringFunc(text, func(match string) string {
		name := localeTokenRe.FindStringSubmatch(match)[1]
		if val, ok := subs[name]; ok {
			return stringify(val)
		}
		return match
	})
}

// humanizeKey turns the final path segment of a missing key into readable
// text, so a broken translation shows "add to cart" rather than the raw key.
func humanizeKey(key string) string {
	if idx := strings.LastIndex(key, "."); idx >= 0 {
		key = key[idx+1:]
	}
	return strings.ReplaceAll(key, "_", " ")
}
