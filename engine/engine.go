package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	fsys "io/fs"
	"log"
	"strings"
	"sync"
)

// Template is one parsed theme file.
type Template struct {
	Path  string
	Nodes []Node
	Size  int // source size in bytes
}

// Engine renders Liquid themes: pages, sections, section groups and
// snippets, with settings, locales and a parsed-template cache.
type Engine struct {
	source       ThemeSource
	ext          string
	cacheManager *CacheManager
	enableCache  bool
	development  bool

	filters map[string]FilterFunc
	locales *LocaleResolver

	schemaMu    sync.RWMutex
	schemaCache map[string]*SectionSchema

	settingsMu sync.RWMutex
	settings   map[string]interface{}

	moneyFormat             string
	moneyWithCurrencyFormat string

	watcher *FileWatcher

	// instrumentation for the diagnostics endpoints
	mu           sync.Mutex
	renderCounts map[string]int
}

// Config configures an Engine.
type Config struct {
	ThemeDir                string
	Source                  ThemeSource // overrides ThemeDir/EmbeddedFS when set
	EmbeddedFS              fsys.FS     // optional bundled theme, disk wins
	TemplateExtension       string      // default ".liquid"
	CacheEnabled            bool
	Development             bool // disables caching, starts the file watcher
	CacheMaxSizeMB          int
	CacheTTLMinutes         int
	DefaultLocale           string
	MoneyFormat             string
	MoneyWithCurrencyFormat string
}

// NewEngineWithConfig creates an Engine with explicit configuration.
func NewEngineWithConfig(config Config) *Engine {
	source := config.Source
	if source == nil {
		if config.EmbeddedFS != nil {
			source = NewHybridSource(config.ThemeDir, config.EmbeddedFS)
		} else {
			source = NewDirSource(config.ThemeDir)
		}
	}

	ext := config.TemplateExtension
	if ext == "" {
		ext = ".liquid"
	}

	var cacheManager *CacheManager
	if config.CacheEnabled && !config.Development {
		maxMB := config.CacheMaxSizeMB
		if maxMB <= 0 {
			maxMB = 100
		}
		ttl := config.CacheTTLMinutes
		if ttl <= 0 {
			ttl = 60
		}
		cacheManager = NewCacheManager(maxMB, ttl, 5)
	}

	moneyFormat := config.MoneyFormat
	if moneyFormat == "" {
		moneyFormat = "${{amount}}"
	}
	moneyWithCurrency := config.MoneyWithCurrencyFormat
	if moneyWithCurrency == "" {
		moneyWithCurrency = "${{amount}} USD"
	}

	e := &Engine{
		source:                  source,
		ext:                     ext,
		cacheManager:            cacheManager,
		enableCache:             cacheManager != nil,
		development:             config.Development,
		filters:                 defaultFilters(),
		locales:                 NewLocaleResolver(),
		schemaCache:             make(map[string]*SectionSchema),
		moneyFormat:             moneyFormat,
		moneyWithCurrencyFormat: moneyWithCurrency,
		renderCounts:            make(map[string]int),
	}

	e.locales.Load(source)
	e.locales.SetDefaultLocale(config.DefaultLocale)
	e.loadSettingsData()

	if config.Development && config.ThemeDir != "" {
		watcher, err := NewFileWatcher(e, config.ThemeDir)
		if err != nil {
			log.Printf("liquid: could not start file watcher: %v", err)
		} else {
			watcher.Start()
			e.watcher = watcher
		}
	}

	return e
}

// NewEngine creates an Engine with production defaults for a theme directory.
func NewEngine(themeDir string) *Engine {
	return NewEngineWithConfig(Config{
		ThemeDir:        themeDir,
		CacheEnabled:    true,
		Development:     false,
		CacheMaxSizeMB:  100,
		CacheTTLMinutes: 60,
	})
}

// Close stops the file watcher and the cache cleanup routine.
func (e *Engine) Close() {
	if e.watcher != nil {
		e.watcher.Stop()
	}
	if e.cacheManager != nil {
		e.cacheManager.Stop()
	}
}

// parseTemplate reads and parses one theme file, through the cache unless
// the engine runs in development mode.
func (e *Engine) parseTemplate(path string) (*Template, error) {
	if !e.development && e.enableCache && e.cacheManager != nil {
		if tmpl, found := e.cacheManager.Get(path); found {
			return tmpl, nil
		}
	}

	data, err := e.source.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("template not found: %s", path)
	}
	tmpl := &Template{
		Path:  path,
		Nodes: parseTemplateSource(string(data)),
		Size:  len(data),
	}

	if !e.development && e.enableCache && e.cacheManager != nil {
		if err := e.cacheManager.Set(path, tmpl, tmpl.Size); err != nil {
			log.Printf("liquid: could not cache template %s: %v", path, err)
		}
	}
	return tmpl, nil
}

// lookupPartial resolves a render/include target under snippets/.
func (e *Engine) lookupPartial(name string) (*Template, error) {
	return e.parseTemplate("snippets/" + sanitizeName(name) + e.ext)
}

// schemaFor extracts and caches the schema of a parsed section template.
func (e *Engine) schemaFor(tmpl *Template) (*SectionSchema, error) {
	if !e.development {
		e.schemaMu.RLock()
		cached, ok := e.schemaCache[tmpl.Path]
		e.schemaMu.RUnlock()
		if ok {
			return cached, nil
		}
	}

	schema, err := extractSchema(tmpl.Nodes)
	if err != nil {
		return nil, err
	}
	if !e.development {
		e.schemaMu.Lock()
		e.schemaCache[tmpl.Path] = schema
		e.schemaMu.Unlock()
	}
	return schema, nil
}

// loadSettingsData reads config/settings_data.json and resolves the current
// preset. A missing or malformed file leaves the theme with empty settings.
func (e *Engine) loadSettingsData() {
	e.settingsMu.Lock()
	defer e.settingsMu.Unlock()
	e.settings = map[string]interface{}{}

	data, err := e.source.ReadFile("config/settings_data.json")
	if err != nil {
		return
	}
	var parsed struct {
		Current interface{}                       `json:"current"`
		Presets map[string]map[string]interface{} `json:"presets"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		log.Printf("liquid: config/settings_data.json: %v", err)
		return
	}
	switch current := parsed.Current.(type) {
	case string:
		if preset, ok := parsed.Presets[current]; ok {
			e.settings = preset
		} else {
			log.Printf("liquid: settings_data current preset %q not found", current)
		}
	case map[string]interface{}:
		e.settings = current
	}
}

func (e *Engine) settingsData() map[string]interface{} {
	e.settingsMu.RLock()
	defer e.settingsMu.RUnlock()
	return e.settings
}

// buildGlobals assembles the bottom scope frame for one pass: theme
// settings, the shop and request stubs, then caller globals on top.
func (e *Engine) buildGlobals(extra map[string]interface{}) map[string]interface{} {
	defaultLocale := e.locales.DefaultLocale()
	globals := map[string]interface{}{
		"settings": e.settingsData(),
		"shop": map[string]interface{}{
			"name":         "Shop",
			"currency":     "USD",
			"money_format": e.moneyFormat,
			"locale":       defaultLocale,
		},
		"request": map[string]interface{}{
			"design_mode": e.development,
			"locale": map[string]interface{}{
				"iso_code": defaultLocale,
			},
		},
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func (e *Engine) newRenderContext(extra map[string]interface{}) *renderContext {
	locale := e.locales.DefaultLocale()
	if l, ok := extra["locale"].(string); ok && l != "" {
		locale = l
	}
	return &renderContext{
		engine: e,
		scope:  NewScope(e.buildGlobals(extra)),
		buf:    &bytes.Buffer{},
		locale: locale,
	}
}

// Translate resolves a translation key; an empty locale means the theme
// default. This backs the t filter and is also usable directly.
func (e *Engine) Translate(key, locale string, subs map[string]interface{}) string {
	if locale == "" {
		locale = e.locales.DefaultLocale()
	}
	return e.locales.Translate(key, locale, subs)
}

// RegisterFilter installs or replaces a filter. Register filters before the
// first render; the registry is not synchronized against running passes.
func (e *Engine) RegisterFilter(name string, fn FilterFunc) {
	e.filters[name] = fn
}

// Render implements the fiber.Views contract: render the named page template
// with the given binding data into w.
func (e *Engine) Render(w io.Writer, name string, data interface{}, _ ...string) error {
	name = strings.TrimSuffix(name, e.ext)
	globals, _ := data.(map[string]interface{})
	doc, err := e.RenderPageWithContext(name, globals)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, doc.HTML)
	return err
}

// Load satisfies the fiber.Views contract; parsing is lazy and per-file.
func (e *Engine) Load() error {
	return nil
}

// ClearCache drops every cached template and schema and reloads locales and
// settings from the source.
func (e *Engine) ClearCache() {
	if e.cacheManager != nil {
		e.cacheManager.Clear()
	}
	e.schemaMu.Lock()
	e.schemaCache = make(map[string]*SectionSchema)
	e.schemaMu.Unlock()
	e.locales.Load(e.source)
	e.loadSettingsData()
}

// ClearCacheFor invalidates one theme file path (forward slashes, relative
// to the theme root).
func (e *Engine) ClearCacheFor(path string) {
	if e.cacheManager != nil {
		e.cacheManager.Remove(path)
	}
	e.schemaMu.Lock()
	delete(e.schemaCache, path)
	e.schemaMu.Unlock()

	switch {
	case strings.HasPrefix(path, "locales/"):
		e.locales.Load(e.source)
	case path == "config/settings_data.json":
		e.loadSettingsData()
	}
}

// CacheStats reports template cache occupancy.
func (e *Engine) CacheStats() map[string]interface{} {
	if e.cacheManager != nil {
		return e.cacheManager.Stats()
	}
	return map[string]interface{}{
		"cache_enabled": false,
	}
}

// RenderStats reports how many pages and sections this engine has rendered.
func (e *Engine) RenderStats() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int, len(e.renderCounts))
	for k, v := range e.renderCounts {
		out[k] = v
	}
	return out
}

func (e *Engine) countRender(kind string) {
	e.mu.Lock()
	e.renderCounts[kind]++
	e.mu.Unlock()
}
