package application

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/apuntes-app/apuntes/core/config"
	"github.com/fsnotify/fsnotify"
	"github.com/mudler/xlog"
)

// profilesWatcher reloads the profiles file whenever it changes on disk.
// A file that fails to parse leaves the previous profiles in place.
type profilesWatcher struct {
	watcher   *fsnotify.Watcher
	appConfig *config.ApplicationConfig
	file      string
	stopOnce  sync.Once
	done      chan struct{}

	// reloaded is signalled after every reload attempt, for tests.
	reloaded func(error)
}

func watchProfiles(appConfig *config.ApplicationConfig) (*profilesWatcher, error) {
	return newProfilesWatcher(appConfig, nil)
}

func newProfilesWatcher(appConfig *config.ApplicationConfig, reloaded func(error)) (*profilesWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	pw := &profilesWatcher{
		watcher:   w,
		appConfig: appConfig,
		file:      filepath.Clean(appConfig.ProfilesFile),
		done:      make(chan struct{}),
		reloaded:  reloaded,
	}

	// Watch the directory: editors replace files instead of writing in place.
	if err := w.Add(filepath.Dir(pw.file)); err != nil {
		w.Close()
		return nil, fmt.Errorf("unable to create a watcher on the profiles directory: %+v", err)
	}
	go pw.loop()
	return pw, nil
}

func (p *profilesWatcher) loop() {
	defer close(p.done)
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.file {
				continue
			}
			switch {
			case event.Has(fsnotify.Write | fsnotify.Create):
				p.reload()
			case event.Has(fsnotify.Remove | fsnotify.Rename):
				xlog.Warn("profiles file removed, keeping loaded profiles", "file", p.file)
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			xlog.Error("profiles watcher error received", "error", err)
		}
	}
}

func (p *profilesWatcher) reload() {
	// a truncate-then-write shows up as an empty file first
	if fi, err := os.Stat(p.file); err == nil && fi.Size() == 0 {
		xlog.Debug("profiles file is empty, waiting for content", "file", p.file)
		return
	}
	profiles, err := config.LoadProfiles(p.file)
	if err != nil {
		xlog.Error("unable to reload profiles, keeping previous ones", "file", p.file, "error", err)
	} else {
		p.appConfig.SetProfiles(profiles)
		xlog.Info("profiles reloaded", "file", p.file, "profiles", p.appConfig.ProfileNames())
	}
	if p.reloaded != nil {
		p.reloaded(err)
	}
}

func (p *profilesWatcher) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		err = p.watcher.Close()
		<-p.done
	})
	return err
}
