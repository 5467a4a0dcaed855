package server

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ReloadTemplates rereads the mystery template directory. Caller holds the
// world lock.
func (g *Game) ReloadTemplates() (int, error) {
	if g.Templates == nil {
		return 0, nil
	}
	return g.Templates.Reload()
}

func isTemplateFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// WatchTemplates starts an fsnotify watcher on the template directory.
// Changed template files are reloaded at once and connected staff are
// told. The returned func stops the watcher.
func (g *Game) WatchTemplates() (stop func()) {
	noop := func() {}
	if g.Templates == nil || g.Templates.Dir() == "" {
		return noop
	}
	dir := g.Templates.Dir()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("WARNING: Could not start template watcher: %v", err)
		return noop
	}
	if err := watcher.Add(dir); err != nil {
		log.Printf("WARNING: Could not watch template directory %s: %v", dir, err)
		watcher.Close()
		return noop
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				name := filepath.Base(event.Name)
				if !isTemplateFile(name) {
					continue
				}
				g.mu.Lock()
				n, err := g.ReloadTemplates()
				if err != nil {
					log.Printf("Template reload after %s failed: %v", name, err)
					g.NotifyStaff(fmt.Sprintf("GAME: Mystery template %s changed but reload failed: %v", name, err))
				} else {
					log.Printf("Template file changed: %s (%d templates loaded)", name, n)
					g.NotifyStaff(fmt.Sprintf("GAME: Mystery templates reloaded after %s changed (%d available).", name, n))
				}
				g.mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Template watcher error: %v", err)
			}
		}
	}()

	log.Printf("Watching template directory for changes: %s", dir)
	return func() { watcher.Close() }
}
