package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"attackbuilder/internal/catalog"
	"attackbuilder/internal/editor"
	"attackbuilder/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	cfg := loadConfig()

	catalogPath := flag.String("catalog", cfg.Catalog, "module catalog YAML file (default: built-in)")
	template := flag.String("template", cfg.StartTemplate, "template to load on start")
	snapshotDB := flag.String("db", cfg.SnapshotDB, "snapshot database file")
	logFile := flag.String("log", cfg.LogFile, "log file")
	flag.Parse()
	cfg.Catalog = *catalogPath
	cfg.StartTemplate = *template
	cfg.SnapshotDB = *snapshotDB
	cfg.LogFile = *logFile

	logger, closeLog := openLog(cfg.LogFile)
	defer closeLog()

	cat := catalog.Default()
	if cfg.Catalog != "" {
		loaded, err := catalog.Load(cfg.Catalog)
		if err != nil {
			log.Fatal(err)
		}
		cat = loaded
	}

	var st *store.Store
	if cfg.SnapshotDB != "" {
		s, err := store.Open(cfg.SnapshotDB)
		if err != nil {
			logger.Error("snapshot store unavailable", "path", cfg.SnapshotDB, "error", err)
		} else {
			st = s
			defer st.Close()
		}
	}

	ed := editor.New(cat, editor.Options{HistoryLimit: cfg.HistoryLimit, Logger: logger})
	if cfg.StartTemplate != "" {
		if _, err := ed.LoadTemplate(cfg.StartTemplate); err != nil {
			log.Fatal(err)
		}
	}

	keys := newShortcuts()
	p := tea.NewProgram(
		newModel(ed, cfg, st, logger, keys),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	keys.attach(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.WatchCatalog && cfg.Catalog != "" {
		err := catalog.Watch(ctx, cfg.Catalog, func(c *catalog.Catalog) {
			p.Send(catalogReloadedMsg{catalog: c})
		}, logger)
		if err != nil {
			logger.Warn("catalog watch disabled", "error", err)
		}
	}

	logger.Info("starting", "modules", len(cat.Modules()), "templates", len(cat.Templates()))
	if _, err := p.Run(); err != nil {
		log.Fatal(err)
	}
}

// openLog sends structured logs to a file, since the terminal belongs to
// the UI. Without a usable file logs are discarded.
func openLog(path string) (*slog.Logger, func()) {
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	if path == "" {
		return discard, func() {}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "log file: %v\n", err)
		return discard, func() {}
	}
	f, err := tea.LogToFile(path, "attackbuilder")
	if err != nil {
		fmt.Fprintf(os.Stderr, "log file: %v\n", err)
		return discard, func() {}
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	return logger, func() { f.Close() }
}

func newModel(ed *editor.Editor, cfg *Config, st *store.Store, logger *slog.Logger, keys *shortcuts) model {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = defaultConfig()
	}
	return model{
		mode:   ModeNormal,
		editor: ed,
		config: cfg,
		store:  st,
		logger: logger,
		keys:   keys,
	}
}
