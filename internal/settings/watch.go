package settings

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Reload re-reads the settings file. An invalid file leaves the current
// settings in place.
func (p *Provider) Reload() error {
	if p.path == "" {
		return fmt.Errorf("settings were not loaded from a file")
	}
	doc, err := Load(p.path)
	if err != nil {
		return err
	}
	if err := Validate(doc); err != nil {
		return err
	}
	p.install(doc)
	p.Logger().Infof("settings reloaded from %s", p.path)
	return nil
}

// Watch reloads the settings whenever the file is written or replaced,
// calling onReload with the outcome, until ctx is done. The directory is
// watched so editors that rename over the file are seen.
func (p *Provider) Watch(ctx context.Context, onReload func(error)) error {
	if p.path == "" {
		return fmt.Errorf("settings were not loaded from a file")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(p.path), err)
	}
	target := filepath.Clean(p.path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					p.Logger().Debugf("fsnotify event=%s file=%s", event.Op, event.Name)
					err := p.Reload()
					if err != nil {
						p.Logger().Errorf("reload settings: %v", err)
					}
					if onReload != nil {
						onReload(err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.Logger().Errorf("fsnotify error=%v", err)
			}
		}
	}()
	return nil
}
