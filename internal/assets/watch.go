package assets

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// Watch rebuilds the pipeline whenever a file below one of dirs changes. It
// blocks until ctx is done. Failed rebuilds are logged and watching goes on.
func (p *Pipeline) Watch(ctx context.Context, dirs ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range dirs {
		if err := p.watchTree(watcher, dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	p.logger.Info().Strs("dirs", dirs).Msg("Watching for changes")

	rebuild := make(chan struct{}, 1)
	timer := time.AfterFunc(time.Hour, func() {
		select {
		case rebuild <- struct{}{}:
		default:
		}
	})
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod || p.isOutput(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := p.watchTree(watcher, event.Name); err != nil {
						p.logger.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
					}
				}
			}
			p.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Source changed")
			timer.Reset(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn().Err(err).Msg("File watcher error")
		case <-rebuild:
			if err := p.Build(ctx); err != nil {
				p.logger.Error().Err(err).Msg("Rebuild failed")
				continue
			}
			p.logger.Info().Msg("Rebuilt assets")
		}
	}
}

// watchTree adds dir and every directory below it, fsnotify is not recursive.
func (p *Pipeline) watchTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p.isOutput(path) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func (p *Pipeline) isOutput(path string) bool {
	rel, err := filepath.Rel(p.config.OutputDir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
