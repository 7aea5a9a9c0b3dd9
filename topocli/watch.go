package topocli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"oss.terrastruct.com/util-go/xmain"
)

type watcher struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	ms  *xmain.State
	cmd *tidyCmd

	tidyCh chan struct{}
	fw     *fsnotify.Watcher

	errMu sync.Mutex
	err   error
}

func newWatcher(ctx context.Context, ms *xmain.State, cmd *tidyCmd) (*watcher, error) {
	ctx, cancel := context.WithCancel(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, err
	}
	return &watcher{
		ctx:    ctx,
		cancel: cancel,
		ms:     ms,
		cmd:    cmd,
		tidyCh: make(chan struct{}, 1),
		fw:     fw,
	}, nil
}

func (w *watcher) run() error {
	defer w.close()

	w.goFunc(w.watchLoop)
	w.goFunc(w.tidyLoop)

	w.wg.Wait()
	return w.err
}

func (w *watcher) close() {
	w.cancel()
	err := w.fw.Close()
	if err != nil {
		w.setErr(err)
	}
}

func (w *watcher) setErr(err error) {
	w.errMu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.errMu.Unlock()
}

func (w *watcher) goFunc(fn func(context.Context) error) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.cancel()

		err := fn(w.ctx)
		if !errors.Is(err, context.Canceled) {
			w.setErr(err)
		}
	}()
}

func (w *watcher) watchLoop(ctx context.Context) error {
	lastModified := make(map[string]time.Time)

	mt, err := w.ensureAddWatch(ctx, w.cmd.inputPath)
	if err != nil {
		return err
	}
	lastModified[w.cmd.inputPath] = mt
	w.ms.Log.Info.Printf("tidying %v...", w.ms.HumanPath(w.cmd.inputPath))
	w.requestTidy()

	eatBurstTimer := time.NewTimer(0)
	<-eatBurstTimer.C
	pollTicker := time.NewTicker(time.Second * 10)
	defer pollTicker.Stop()

	changed := make(map[string]struct{})

	for {
		select {
		case <-pollTicker.C:
			// Editors that replace the file can leave it unwatched without an event.
			missedChanges := false
			for _, watched := range w.fw.WatchList() {
				mt, err := w.ensureAddWatch(ctx, watched)
				if err != nil {
					return err
				}
				if mt2, ok := lastModified[watched]; !ok || !mt.Equal(mt2) {
					missedChanges = true
					lastModified[watched] = mt
				}
			}
			if missedChanges {
				w.requestTidy()
			}
		case ev, ok := <-w.fw.Events:
			if !ok {
				return errors.New("fsnotify watcher closed")
			}
			w.ms.Log.Debug.Printf("received file system event %v", ev)
			mt, err := w.ensureAddWatch(ctx, ev.Name)
			if err != nil {
				return err
			}
			if ev.Op == fsnotify.Chmod {
				if mt.Equal(lastModified[ev.Name]) {
					// Benign Chmod.
					continue
				}
				lastModified[ev.Name] = mt
			}
			changed[ev.Name] = struct{}{}
			// Batch a burst of events from a single save into one tidy.
			eatBurstTimer.Reset(time.Millisecond * 16)
		case <-eatBurstTimer.C:
			var changedList []string
			for k := range changed {
				changedList = append(changedList, w.ms.HumanPath(k))
				delete(changed, k)
			}
			if len(changedList) == 0 {
				continue
			}
			sort.Strings(changedList)
			w.ms.Log.Info.Printf("detected change in %v: tidying again...", changedList)
			w.requestTidy()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return errors.New("fsnotify watcher closed")
			}
			w.ms.Log.Error.Printf("fsnotify error: %v", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *watcher) requestTidy() {
	select {
	case w.tidyCh <- struct{}{}:
	default:
	}
}

func (w *watcher) ensureAddWatch(ctx context.Context, path string) (time.Time, error) {
	interval := time.Millisecond * 16
	tc := time.NewTimer(0)
	<-tc.C
	for {
		mt, err := w.addWatch(path)
		if err == nil {
			return mt, nil
		}
		if interval >= time.Second {
			w.ms.Log.Error.Printf("failed to watch %q: %v (retrying in %v)", w.ms.HumanPath(path), err, interval)
		}

		tc.Reset(interval)
		select {
		case <-tc.C:
			if interval < time.Second {
				interval = time.Second
			}
			if interval < time.Second*16 {
				interval *= 2
			}
		case <-ctx.Done():
			return time.Time{}, ctx.Err()
		}
	}
}

func (w *watcher) addWatch(path string) (time.Time, error) {
	err := w.fw.Add(path)
	if err != nil {
		return time.Time{}, err
	}
	d, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return d.ModTime(), nil
}

func (w *watcher) tidyLoop(ctx context.Context) error {
	first := true
	for {
		select {
		case <-w.tidyCh:
		case <-ctx.Done():
			return ctx.Err()
		}

		prefix := ""
		if !first {
			prefix = "re"
		}
		first = false

		res, err := w.cmd.run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.ms.Log.Error.Print(fmt.Errorf("failed to %stidy: %w", prefix, err))
			continue
		}
		w.cmd.report(res)
	}
}
