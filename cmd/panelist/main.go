// Package main provides the panelist CLI: it drives a browser to the host
// site and enhances the save-to-playlist panel with multi-select and search,
// and offers an offline mode that classifies captured page markup.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"

	"github.com/entrhq/panelist/pkg/browser"
	"github.com/entrhq/panelist/pkg/config"
	"github.com/entrhq/panelist/pkg/dom/htmldom"
	"github.com/entrhq/panelist/pkg/dom/pwdom"
	"github.com/entrhq/panelist/pkg/logging"
	"github.com/entrhq/panelist/pkg/panel"
)

const version = "0.1.0"

// Config holds the application configuration.
type Config struct {
	URL          string
	ProfilePath  string
	Headless     bool
	Timeout      time.Duration
	ClassifyFile string
	CopyNames    bool
	ShowVersion  bool
}

func main() {
	cfg := parseFlags()

	if cfg.ShowVersion {
		fmt.Printf("panelist v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		cancel()
		log.Fatalf("Application error: %v", err)
	}
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.URL, "url", "", "Page URL to open (default: persisted setting)")
	flag.StringVar(&cfg.ProfilePath, "profile", "", "Path to a YAML profile overriding the built-in selectors")
	flag.BoolVar(&cfg.Headless, "headless", false, "Run the browser without a visible window")
	flag.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "Default browser operation timeout")
	flag.StringVar(&cfg.ClassifyFile, "classify", "", "Classify a captured HTML file offline and exit")
	flag.BoolVar(&cfg.CopyNames, "copy", false, "With -classify, copy extracted playlist names to the clipboard")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "panelist - playlist panel enhancer\n\n")
		fmt.Fprintf(os.Stderr, "Usage: panelist [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  panelist -url https://www.youtube.com/watch?v=abc\n")
		fmt.Fprintf(os.Stderr, "  panelist -headless -profile custom.yaml\n")
		fmt.Fprintf(os.Stderr, "  panelist -classify captured-page.html -copy\n")
	}

	flag.Parse()
	return cfg
}

func run(ctx context.Context, cfg *Config) error {
	logger, logErr := logging.NewLogger("main")
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging unavailable: %v\n", logErr)
	}
	defer logger.Close()

	profile, err := loadProfile(cfg)
	if err != nil {
		return err
	}

	if cfg.ClassifyFile != "" {
		return classifyFile(cfg, profile)
	}
	return runLive(ctx, cfg, profile, logger)
}

// loadProfile resolves the selector profile: explicit flag first, then the
// persisted setting, then the built-in defaults.
func loadProfile(cfg *Config) (*config.Profile, error) {
	path := cfg.ProfilePath
	if path == "" {
		if store, err := config.NewFileStore(""); err == nil {
			if settings, err := config.LoadSettings(store); err == nil {
				path = settings.ProfilePath
			}
		}
	}
	if path == "" {
		return config.DefaultProfile(), nil
	}
	return config.LoadProfile(path)
}

// classifyFile runs the panel classifier against a captured HTML file and
// prints the verdict plus the playlist rows it found.
func classifyFile(cfg *Config, profile *config.Profile) error {
	data, err := os.ReadFile(cfg.ClassifyFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", cfg.ClassifyFile, err)
	}

	doc, err := htmldom.Parse(string(data))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", cfg.ClassifyFile, err)
	}

	verdict, err := panel.ClassifyDocument(doc, profile)
	if err != nil {
		return err
	}
	fmt.Printf("Verdict: %s\n", verdict)

	names := panel.PlaylistNames(doc, profile)
	if len(names) > 0 {
		fmt.Printf("Playlists (%d):\n", len(names))
		for _, name := range names {
			fmt.Printf("  - %s\n", name)
		}
	}

	if cfg.CopyNames {
		if len(names) == 0 {
			return fmt.Errorf("nothing to copy: no playlist rows found")
		}
		if err := clipboard.WriteAll(strings.Join(names, "\n")); err != nil {
			return fmt.Errorf("failed to copy names to clipboard: %w", err)
		}
		fmt.Println("Copied playlist names to clipboard.")
	}
	return nil
}

// runLive launches the browser, attaches the enhancement engine, and runs
// until interrupted.
func runLive(ctx context.Context, cfg *Config, profile *config.Profile, logger *logging.Logger) error {
	store, err := config.NewFileStore("")
	if err != nil {
		return fmt.Errorf("failed to open config store: %w", err)
	}
	settings, err := config.LoadSettings(store)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	url := cfg.URL
	if url == "" {
		url = settings.DefaultURL
	}
	headless := cfg.Headless || settings.Headless

	// Remember explicit choices for the next run.
	if cfg.URL != "" || cfg.ProfilePath != "" {
		if cfg.URL != "" {
			settings.SetDefaultURL(cfg.URL)
		}
		if cfg.ProfilePath != "" {
			settings.SetProfilePath(cfg.ProfilePath)
		}
		if err := settings.Save(); err != nil {
			logger.Warnf("failed to persist settings: %v", err)
		}
	}

	mgr := browser.NewManager()
	if err := mgr.Initialize(); err != nil {
		return err
	}
	defer mgr.Shutdown()

	pwPage, err := mgr.Start(browser.Options{
		Headless: headless,
		Timeout:  float64(cfg.Timeout.Milliseconds()),
	})
	if err != nil {
		return err
	}

	fmt.Printf("panelist v%s\n", version)
	fmt.Printf("Opening %s (headless=%v)\n", url, headless)
	if err := mgr.Navigate(url); err != nil {
		return err
	}

	page, err := pwdom.NewPage(pwPage, logger)
	if err != nil {
		return err
	}
	defer page.Close()

	sched := panel.NewScheduler()
	visual := panel.NewDOMVisual(page, sched)
	manager := panel.NewManager(page, profile, visual, sched, logger)
	observer := panel.NewObserver(page, profile, manager, sched, logger)

	page.OnNavigate(observer.HandleNavigation)
	observer.Start()
	defer observer.Stop()

	logger.Infof("engine running on %s", url)
	fmt.Println("Watching for the playlist panel. Press Ctrl+C to exit.")

	<-ctx.Done()
	return nil
}
