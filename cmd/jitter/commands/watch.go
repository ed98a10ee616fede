package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/jitter/am"
	"github.com/teranos/jitter/engine"
	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/logger"
)

// WatchCmd re-renders a context bundle whenever the source changes
var WatchCmd = &cobra.Command{
	Use:   "watch <qualified-name>",
	Short: "Re-render a function's context bundle on every source change",
	Long: `Render the context bundle for a function, then render it again each
time a .go file under the source root or the project jitter.toml changes.
Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var watchDebounce time.Duration

func init() {
	WatchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "Quiet period before re-rendering")
}

func runWatch(cmd *cobra.Command, args []string) error {
	eng, cfg, err := newEngine(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var mu sync.Mutex
	out := cmd.OutOrStdout()
	render := func() {
		mu.Lock()
		defer mu.Unlock()
		renderOnce(ctx, out, eng, args[0])
	}

	// A changed project config rebuilds the engine
	if project := projectConfig(); project != "" {
		cw, err := am.NewConfigWatcher(project)
		if err != nil {
			logger.Warnw("Not watching project config", logger.FieldFile, project, logger.FieldError, err)
		} else {
			cw.OnReload(func(next *am.Config) error {
				if root, _ := cmd.Flags().GetString("root"); root != "" {
					next.Source.Root = root
				}
				mu.Lock()
				eng = engine.New(engine.OptionsFromConfig(next), nil)
				mu.Unlock()
				render()
				return nil
			})
			cw.Start()
			defer cw.Stop()
		}
	}

	w, err := newSourceWatcher(cfg.Source.Root)
	if err != nil {
		return err
	}
	defer w.Close()

	render()
	return w.Run(ctx, watchDebounce, render)
}

func renderOnce(ctx context.Context, out io.Writer, eng *engine.Engine, qualified string) {
	d, err := eng.DiscoverSymbol(ctx, qualified)
	if err != nil {
		pterm.Error.WithWriter(out).Printfln("%s: %v", qualified, err)
		return
	}
	fmt.Fprintf(out, "\n# %s  %s  (%dms)\n", d.Target, time.Now().Format("15:04:05"), d.Duration.Milliseconds())
	fmt.Fprint(out, d.Text)
}

// projectConfig returns the project jitter.toml in effect, or ""
func projectConfig() string {
	paths := am.ConfigPaths()
	last := paths[len(paths)-1]
	if filepath.Base(last) == am.ProjectConfigName {
		return last
	}
	return ""
}

// sourceWatcher watches every package directory under a root
type sourceWatcher struct {
	root    string
	watcher *fsnotify.Watcher
}

func newSourceWatcher(root string) (*sourceWatcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", root)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	sw := &sourceWatcher{root: abs, watcher: w}
	if err := sw.addTree(abs); err != nil {
		w.Close()
		return nil, err
	}
	return sw, nil
}

// skipDir reports directories the go tool ignores as well
func skipDir(name string) bool {
	return name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func (sw *sourceWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := sw.watcher.Add(p); err != nil {
			return errors.Wrapf(err, "watch %s", p)
		}
		return nil
	})
}

// Run calls onChange after each burst of .go file changes has been quiet
// for debounce, until ctx is done
func (sw *sourceWatcher) Run(ctx context.Context, debounce time.Duration, onChange func()) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return nil
			}
			// New directories are watched as they appear
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !skipDir(info.Name()) {
					if err := sw.addTree(event.Name); err != nil {
						logger.Warnw("Cannot watch new directory", logger.FieldFile, event.Name, logger.FieldError, err)
					}
					continue
				}
			}
			if filepath.Ext(event.Name) != ".go" || event.Op == fsnotify.Chmod {
				continue
			}
			logger.Debugw("Source changed", logger.FieldFile, event.Name, "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, onChange)

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnw("Source watcher error", logger.FieldError, err)
		}
	}
}

// Close stops watching
func (sw *sourceWatcher) Close() error {
	return sw.watcher.Close()
}
