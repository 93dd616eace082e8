// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docstore

import (
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce batches bursts of write events into one re-query.
const watchDebounce = 100 * time.Millisecond

// =============================================================================
// LIVE QUERIES
// =============================================================================

// Subscribe registers a live query: fn receives the current results
// immediately and fresh results after every relevant write. Writes from
// other processes are picked up by watching the database file.
//
// The returned cancel function unregisters the subscriber; it is safe to
// call more than once.
func (s *Store) Subscribe(q Query, fn func([]*Document)) (func(), error) {
	if err := s.subs.ensureWatcher(s); err != nil {
		return nil, err
	}

	id := s.subs.add(&subscription{query: q, fn: fn})

	// Initial results, synchronously, so subscribers never start blank.
	if docs, err := s.Find(q); err == nil {
		fn(docs)
	} else {
		log.Printf("STORE: initial live query failed: %v", err)
	}

	return func() { s.subs.remove(id) }, nil
}

type subscription struct {
	query Query
	fn    func([]*Document)
}

type subscriptions struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscription

	watcher *fsnotify.Watcher
	kick    chan struct{}
	done    chan struct{}

	closeOnce sync.Once
}

func newSubscriptions() *subscriptions {
	return &subscriptions{
		subs: make(map[int]*subscription),
		kick: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (sc *subscriptions) add(sub *subscription) int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.nextID++
	sc.subs[sc.nextID] = sub
	return sc.nextID
}

func (sc *subscriptions) remove(id int) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.subs, id)
}

// notify wakes the dispatch loop. Non-blocking: a pending kick already
// covers this write.
func (sc *subscriptions) notify() {
	select {
	case sc.kick <- struct{}{}:
	default:
	}
}

func (sc *subscriptions) close() {
	sc.closeOnce.Do(func() {
		close(sc.done)
		sc.mu.Lock()
		if sc.watcher != nil {
			sc.watcher.Close()
		}
		sc.mu.Unlock()
	})
}

// ensureWatcher lazily starts the file watcher and dispatch loop on the
// first subscription.
func (sc *subscriptions) ensureWatcher(s *Store) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory: the -wal file appears and disappears, and
	// fsnotify cannot follow a file through SQLite's rename dance.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return err
	}

	sc.watcher = watcher
	go sc.watchLoop(s)
	go sc.dispatchLoop(s)

	return nil
}

// watchLoop converts external writes to the database file into kicks.
func (sc *subscriptions) watchLoop(s *Store) {
	base := filepath.Base(s.path)

	for {
		select {
		case <-sc.done:
			return
		case event, ok := <-sc.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Only the database and its WAL/journal siblings matter.
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}
			sc.notify()
		case err, ok := <-sc.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("STORE: watcher error: %v", err)
		}
	}
}

// dispatchLoop debounces kicks and re-runs every subscribed query.
func (sc *subscriptions) dispatchLoop(s *Store) {
	for {
		select {
		case <-sc.done:
			return
		case <-sc.kick:
		}

		// Debounce: coalesce the burst that typically follows a write.
		timer := time.NewTimer(watchDebounce)
	drain:
		for {
			select {
			case <-sc.done:
				timer.Stop()
				return
			case <-sc.kick:
			case <-timer.C:
				break drain
			}
		}

		sc.mu.Lock()
		subs := make([]*subscription, 0, len(sc.subs))
		for _, sub := range sc.subs {
			subs = append(subs, sub)
		}
		sc.mu.Unlock()

		for _, sub := range subs {
			docs, err := s.Find(sub.query)
			if err != nil {
				log.Printf("STORE: live query failed: %v", err)
				continue
			}
			sub.fn(docs)
		}
	}
}
