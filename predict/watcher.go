package predict

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"symptomdx/ml"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher hot-reloads the predictor when a new artifact set lands in the
// models directory. Reload only swaps serving state after the whole new set
// validates, so in-flight requests always see a consistent snapshot.
type Watcher struct {
	predictor *Predictor
	dir       string
	logger    *zap.Logger
}

// NewWatcher builds a watcher over the predictor's models directory.
func NewWatcher(p *Predictor, dir string, logger *zap.Logger) *Watcher {
	return &Watcher{predictor: p, dir: dir, logger: logger}
}

// Run watches until the context is canceled. The metadata file is renamed
// into place last during training, so its appearance marks a complete set;
// events are debounced to ride out the file-by-file swap.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	// The models directory may not exist yet on a first start; watch an
	// empty one so the first training run still triggers a reload.
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		return err
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != ml.MetadataFile {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}
		case <-timerC:
			if err := w.predictor.Reload(); err != nil {
				w.logger.Error("hot reload rejected, previous model keeps serving", zap.Error(err))
			} else {
				w.logger.Info("model hot-reloaded", zap.String("dir", w.dir))
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("artifact watcher error", zap.Error(err))
		}
	}
}
