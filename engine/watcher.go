package engine

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches a theme directory and invalidates engine caches when
// files change. Used in development mode only.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	engine   *Engine
	watchDir string
}

func NewFileWatcher(engine *Engine, watchDir string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		watcher:  watcher,
		engine:   engine,
		watchDir: watchDir,
	}

	if err := fw.addWatchRecursive(watchDir); err != nil {
		watcher.Close()
		return nil, err
	}

	return fw, nil
}

func (fw *FileWatcher) addWatchRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fw.watcher.Add(path)
		}
		return nil
	})
}

// Start begins watching in a goroutine until Stop closes the watcher.
func (fw *FileWatcher) Start() {
	go func() {
		for {
			select {
			case event, ok := <-fw.watcher.Events:
				if !ok {
					return
				}
				if !fw.isThemeFile(event.Name) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				relPath, err := filepath.Rel(fw.watchDir, event.Name)
				if err != nil {
					fw.engine.ClearCache()
					continue
				}
				relPath = filepath.ToSlash(relPath)
				log.Printf("liquid: theme file changed: %s, invalidating", relPath)
				fw.engine.ClearCacheFor(relPath)

			case err, ok := <-fw.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("liquid: watcher error: %v", err)
			}
		}
	}()
}

// isThemeFile keeps editor swap files and the like out of the invalidation
// path.
func (fw *FileWatcher) isThemeFile(filename string) bool {
	ext := filepath.Ext(filename)
	if ext == ".json" {
		return true
	}
	return strings.HasSuffix(filename, fw.engine.ext)
}

func (fw *FileWatcher) Stop() {
	fw.watcher.Close()
}
