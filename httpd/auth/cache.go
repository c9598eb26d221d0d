/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package auth

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/DavidBittner/http-webserver/wslog"
)

// cacheEntry pins the parsed AuthFile to the on-disk file that produced it
// so watcher events can drop every directory the entry serves.
type cacheEntry struct {
	af  *AuthFile
	src string
}

var (
	cacheMtx sync.RWMutex
	cache    = make(map[string]cacheEntry, 8)

	watcherMtx sync.Mutex
	watcher    *fsnotify.Watcher
)

// StartWatcher spins up the fsnotify invalidation loop.  Entries for an
// access file that is written or removed are dropped so the next request
// rereads it.  Operating without a watcher is legal, the cache is then
// immutable for the process lifetime.
func StartWatcher(lg *wslog.Logger) error {
	watcherMtx.Lock()
	defer watcherMtx.Unlock()
	if watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	watcher = w
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Chmod) != 0 {
					dropSource(ev.Name)
					if lg != nil {
						lg.Info("access file changed, cache invalidated", wslog.KV("path", ev.Name))
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if lg != nil {
					lg.Warn("access file watcher error", wslog.KVErr(err))
				}
			}
		}
	}()
	return nil
}

// StopWatcher shuts the invalidation loop down, it is safe to call twice.
func StopWatcher() error {
	watcherMtx.Lock()
	defer watcherMtx.Unlock()
	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	watcher = nil
	return err
}

func watchSource(src string) {
	watcherMtx.Lock()
	if watcher != nil {
		watcher.Add(src)
	}
	watcherMtx.Unlock()
}

func dropSource(src string) {
	cacheMtx.Lock()
	for dir, ent := range cache {
		if ent.src == src {
			delete(cache, dir)
		}
	}
	cacheMtx.Unlock()
}

// FlushCache empties the cache entirely, tests use this.
func FlushCache() {
	cacheMtx.Lock()
	cache = make(map[string]cacheEntry, 8)
	cacheMtx.Unlock()
}

// Discover walks the directory chain from the target's containing directory
// toward root looking for the configured access file.  The first hit defines
// the protected realm; results are cached per starting directory and shared
// by reference.  A nil AuthFile with a nil error means the path is
// unprotected.
func Discover(target, root, fileName string) (*AuthFile, error) {
	if fileName == `` {
		return nil, nil
	}
	dir := target
	if fi, err := os.Stat(target); err != nil || !fi.IsDir() {
		dir = filepath.Dir(target)
	}
	dir = filepath.Clean(dir)
	root = filepath.Clean(root)
	if !strings.HasPrefix(dir, root) {
		return nil, nil
	}

	cacheMtx.RLock()
	ent, hit := cache[dir]
	cacheMtx.RUnlock()
	if hit {
		return ent.af, nil
	}

	af, src, err := findAuthFile(dir, root, fileName)
	if err != nil {
		return nil, err
	}
	if af == nil {
		return nil, nil
	}

	cacheMtx.Lock()
	//a racing request may have inserted while we parsed, the first one wins
	//so every connection shares a single AuthFile instance
	if prior, ok := cache[dir]; ok {
		af = prior.af
	} else {
		cache[dir] = cacheEntry{af: af, src: src}
	}
	cacheMtx.Unlock()
	watchSource(src)
	return af, nil
}

func findAuthFile(dir, root, fileName string) (*AuthFile, string, error) {
	for {
		p := filepath.Join(dir, fileName)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			af, err := LoadAuthFile(p)
			if err != nil {
				return nil, ``, err
			}
			return af, p, nil
		}
		if dir == root {
			return nil, ``, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir || !strings.HasPrefix(parent, root) {
			return nil, ``, nil
		}
		dir = parent
	}
}
