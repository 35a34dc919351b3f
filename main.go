package main

import (
	"embed"
	"fmt"
	fsys "io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"liquid_engine/engine"
)

// Embed the demo theme at build time so the binary runs anywhere; a theme/
// directory on disk still wins in development mode.
//
//go:embed theme/**
var embeddedTheme embed.FS

func main() {
	var subFS fsys.FS
	if f, err := fsys.Sub(embeddedTheme, "theme"); err == nil {
		subFS = f
	}

	config := engine.Config{
		ThemeDir:        "./theme",
		EmbeddedFS:      subFS,
		CacheEnabled:    true,
		Development:     true, // auto reload on theme edits
		CacheMaxSizeMB:  50,
		CacheTTLMinutes: 30,
	}

	liquid := engine.NewEngineWithConfig(config)
	defer liquid.Close()

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		name := strings.Trim(r.URL.Path, "/")
		if name == "" {
			name = "index"
		}

		doc, err := liquid.RenderPageWithContext(name, map[string]interface{}{
			"request": map[string]interface{}{
				"host": r.Host,
				"path": r.URL.Path,
			},
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(doc.HTML))

		duration := time.Since(start)
		log.Printf("Rendered page %q (%d sections) in %v", name, len(doc.SectionIDs), duration)
	})

	// Render a single section standalone, the way a theme editor would
	http.HandleFunc("/sections/", func(w http.ResponseWriter, r *http.Request) {
		sectionType := strings.TrimPrefix(r.URL.Path, "/sections/")
		html, err := liquid.RenderSection(sectionType, nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	})

	http.HandleFunc("/cache-stats", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Cache Statistics:\n")
		for k, v := range liquid.CacheStats() {
			fmt.Fprintf(w, "%s: %v\n", k, v)
		}
		fmt.Fprintf(w, "\nRender Counts:\n")
		for k, v := range liquid.RenderStats() {
			fmt.Fprintf(w, "%s: %v\n", k, v)
		}
	})

	http.HandleFunc("/clear-cache", func(w http.ResponseWriter, r *http.Request) {
		liquid.ClearCache()
		fmt.Fprintf(w, "Cache cleared successfully")
	})

	fmt.Println("Server running on http://localhost:5004")
	log.Fatal(http.ListenAndServe(":5004", nil))
}
