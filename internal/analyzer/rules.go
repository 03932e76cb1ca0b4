package analyzer

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// RulesWatcher keeps a Prompt's file rules in sync with a rules file.
// It watches the parent directory so editors that save by rename are seen.
type RulesWatcher struct {
	path   string
	prompt *Prompt
	log    *zap.Logger
}

func NewRulesWatcher(path string, prompt *Prompt, log *zap.Logger) *RulesWatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &RulesWatcher{path: filepath.Clean(path), prompt: prompt, log: log}
}

// Load reads the rules file once. A missing file clears the file rules.
func (w *RulesWatcher) Load() error {
	data, err := os.ReadFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		w.prompt.SetFileRules("")
		return nil
	}
	if err != nil {
		return err
	}
	w.prompt.SetFileRules(string(data))
	return nil
}

// Run loads the file and reloads it on every change until ctx is done.
func (w *RulesWatcher) Run(ctx context.Context) error {
	if err := w.Load(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.log.Info("watching review rules", zap.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := w.Load(); err != nil {
				w.log.Warn("reload review rules failed", zap.String("path", w.path), zap.Error(err))
				continue
			}
			w.log.Info("review rules reloaded", zap.String("path", w.path), zap.String("op", event.Op.String()))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("rules watcher error", zap.Error(err))
		}
	}
}
