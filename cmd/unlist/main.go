// Package main provides the unlist command line application: it replays
// community opt-out playbooks against data broker sites, records new
// playbooks from a user's walkthrough, and tracks submission history.
package main

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/unlist/pkg/browser"
	appconfig "github.com/entrhq/unlist/pkg/config"
	"github.com/entrhq/unlist/pkg/engine"
	"github.com/entrhq/unlist/pkg/history"
	"github.com/entrhq/unlist/pkg/playbook"
	"github.com/entrhq/unlist/pkg/profile"
	"github.com/entrhq/unlist/pkg/recorder"
	"github.com/entrhq/unlist/pkg/registry"
	"github.com/entrhq/unlist/pkg/tui"
	"github.com/entrhq/unlist/pkg/types"
)

const version = "0.1.0"

// Config holds the parsed command line options.
type Config struct {
	ConfigPath    string
	Brokers       string
	Selections    string
	Record        bool
	Broker        string
	SubmitDraft   string
	ImportProfile string
	ListBrokers   bool
	ShowHistory   bool
	ShowVersion   bool
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("unlist v%s\n", version)
		return
	}

	if err := config.validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	if runErr := run(ctx, config); runErr != nil {
		cancel()
		log.Fatalf("Application error: %v", runErr)
	}
}

// parseFlags parses command line flags.
func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.ConfigPath, "config", "", "Path to config file (default: ~/.unlist/config.yaml)")
	flag.StringVar(&config.Brokers, "brokers", "", "Comma-separated broker ids to run opt-outs against")
	flag.StringVar(&config.Selections, "select", "", "Per-broker playbook selections, e.g. broker1=best,broker2=local:<id>")
	flag.BoolVar(&config.Record, "record", false, "Record a new playbook instead of running one")
	flag.StringVar(&config.Broker, "broker", "", "Broker id to record against (with -record)")
	flag.StringVar(&config.SubmitDraft, "submit", "", "Submit a local draft playbook to the community catalog by id")
	flag.StringVar(&config.ImportProfile, "import-profile", "", "Import a profile from a JSON file and store it encrypted")
	flag.BoolVar(&config.ListBrokers, "list-brokers", false, "List known brokers and exit")
	flag.BoolVar(&config.ShowHistory, "history", false, "Show submission history and exit")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "unlist - data broker opt-out automation\n\n")
		fmt.Fprintf(os.Stderr, "Usage: unlist [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Run opt-outs\n")
		fmt.Fprintf(os.Stderr, "  unlist -brokers spokeo,whitepages\n")
		fmt.Fprintf(os.Stderr, "  unlist -brokers spokeo -select spokeo=local:3f6c...\n")
		fmt.Fprintf(os.Stderr, "\n  # Record a new playbook\n")
		fmt.Fprintf(os.Stderr, "  unlist -record -broker spokeo\n")
		fmt.Fprintf(os.Stderr, "\n  # Import your profile\n")
		fmt.Fprintf(os.Stderr, "  unlist -import-profile ./me.json\n")
	}

	flag.Parse()
	return config
}

// validate checks the flag combination.
func (c *Config) validate() error {
	if c.Record && c.Broker == "" {
		return fmt.Errorf("-record requires -broker")
	}
	if !c.Record && !c.ListBrokers && !c.ShowHistory && c.ImportProfile == "" && c.SubmitDraft == "" && c.Brokers == "" {
		return fmt.Errorf("nothing to do: pass -brokers, -record, -submit, -import-profile, -list-brokers, or -history")
	}
	return nil
}

func run(ctx context.Context, config *Config) error {
	cfg, err := appconfig.LoadOrDefault(config.ConfigPath)
	if err != nil {
		return err
	}

	switch {
	case config.ListBrokers:
		return listBrokers(cfg)
	case config.ShowHistory:
		return showHistory(cfg)
	case config.ImportProfile != "":
		return importProfile(cfg, config.ImportProfile)
	case config.SubmitDraft != "":
		return submitDraft(ctx, cfg, config.SubmitDraft)
	case config.Record:
		return record(ctx, cfg, config.Broker)
	default:
		return runOptOuts(ctx, cfg, config.Brokers, config.Selections)
	}
}

// runOptOuts starts a run over the requested brokers and monitors it.
func runOptOuts(ctx context.Context, cfg *appconfig.Config, brokersCSV, selectionsCSV string) error {
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	var brokers []registry.Broker
	for _, id := range splitCSV(brokersCSV) {
		broker, ok := reg.Find(id)
		if !ok {
			return fmt.Errorf("unknown broker %q", id)
		}
		brokers = append(brokers, broker)
	}

	if cfg.Browser.ExecutablePath == "" && !browser.Installed() {
		return fmt.Errorf("no Chrome or Chromium binary found; install one or set browser.executable_path")
	}

	selections := make(map[string]string)
	for _, pair := range splitCSV(selectionsCSV) {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return fmt.Errorf("invalid selection %q (want broker=selection)", pair)
		}
		selections[key] = value
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	runID, err := eng.StartRun(ctx, brokers, selections)
	if err != nil {
		return err
	}
	fmt.Printf("Started run %s\n", runID)

	return tui.NewMonitor(eng).Run()
}

// record captures a walkthrough of a broker's opt-out flow and saves it as
// a local draft playbook.
func record(ctx context.Context, cfg *appconfig.Config, brokerID string) error {
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	broker, ok := reg.Find(brokerID)
	if !ok {
		return fmt.Errorf("unknown broker %q", brokerID)
	}

	if cfg.Browser.ExecutablePath == "" && !browser.Installed() {
		return fmt.Errorf("no Chrome or Chromium binary found; install one or set browser.executable_path")
	}

	newPage := func() (recorder.Page, error) {
		return launchDriver(cfg)
	}
	rec, err := recorder.New(newPage, cfg.Browser.OperationTimeout, nil)
	if err != nil {
		return err
	}

	if err := rec.Start(broker.ID, broker.Name, broker.OptOutURL); err != nil {
		return err
	}
	fmt.Printf("Recording %s. Walk through the opt-out flow in the browser.\n", broker.Name)
	fmt.Println("  c + enter  mark a CAPTCHA you just solved")
	fmt.Println("  p + enter  mark a manual step")
	fmt.Println("  enter      stop recording and save the draft")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		var line string
		var open bool
		select {
		case <-ctx.Done():
			_, _ = rec.Stop()
			return ctx.Err()
		case line, open = <-lines:
		}
		if !open || line == "" {
			break
		}
		switch line {
		case "c":
			if err := rec.MarkCaptcha(); err != nil {
				return err
			}
			fmt.Println("Marked CAPTCHA step.")
		case "p":
			if err := rec.MarkUserPrompt(); err != nil {
				return err
			}
			fmt.Println("Marked manual step.")
		}
	}

	actions, err := rec.Stop()
	if err != nil {
		return err
	}
	steps := recorder.Convert(actions)

	drafts, err := playbook.NewDraftStore(draftPath(cfg))
	if err != nil {
		return err
	}
	id, err := drafts.Upsert(playbook.Draft{
		BrokerID:   broker.ID,
		BrokerName: broker.Name,
		Title:      fmt.Sprintf("%s opt-out (recorded %s)", broker.Name, time.Now().Format("2006-01-02")),
		Steps:      steps,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Saved draft playbook %s with %d step(s).\n", id, len(steps))
	fmt.Printf("Run it with: unlist -brokers %s -select %s=local:%s\n", broker.ID, broker.ID, id)
	return nil
}

func listBrokers(cfg *appconfig.Config) error {
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	for _, b := range reg.Sorted() {
		fmt.Printf("%-24s %s (%s)\n", b.ID, b.Name, b.Difficulty)
	}
	return nil
}

// importProfile reads a plaintext profile file and stores it encrypted
// under the data directory.
func importProfile(cfg *appconfig.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read profile file: %w", err)
	}
	var p types.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to parse profile file: %w", err)
	}

	store, err := profile.NewStore(cfg.DataDir)
	if err != nil {
		return err
	}
	if err := store.Save(&p); err != nil {
		return err
	}
	fmt.Println("Profile imported. Consider deleting the plaintext source file.")
	return nil
}

// submitDraft sends a local draft playbook to the community catalog for
// review.
func submitDraft(ctx context.Context, cfg *appconfig.Config, draftID string) error {
	catalog, err := buildCatalog(cfg)
	if err != nil {
		return err
	}
	if catalog == nil {
		return fmt.Errorf("no catalog configured; set catalog.base_url in the config file")
	}

	drafts, err := playbook.NewDraftStore(draftPath(cfg))
	if err != nil {
		return err
	}
	draft, err := drafts.Get(draftID)
	if err != nil {
		return err
	}
	if draft == nil {
		return fmt.Errorf("unknown draft %q", draftID)
	}

	resp, err := catalog.Submit(ctx, playbook.Submission{
		BrokerID:   draft.BrokerID,
		BrokerName: draft.BrokerName,
		Title:      draft.Title,
		Notes:      draft.Notes,
		Steps:      draft.Steps,
	})
	if err != nil {
		return err
	}

	draft.SubmittedAt = time.Now().UTC().Format(time.RFC3339)
	if _, err := drafts.Upsert(*draft); err != nil {
		return err
	}
	fmt.Printf("Submitted as %s (%s).\n", resp.ID, resp.Status)
	return nil
}

func showHistory(cfg *appconfig.Config) error {
	store, err := history.NewStore(cfg.DataDir)
	if err != nil {
		return err
	}
	records, err := store.LatestPerBroker()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No submissions yet.")
		return nil
	}
	for _, r := range records {
		line := fmt.Sprintf("%-24s %-22s %s", r.BrokerID, r.Status, r.SubmittedAt.Format(time.RFC3339))
		if r.ErrorMessage != "" {
			line += "  " + r.ErrorMessage
		}
		fmt.Println(line)
	}
	return nil
}

// buildEngine wires the engine's collaborators from config.
func buildEngine(cfg *appconfig.Config) (*engine.Engine, error) {
	drafts, err := playbook.NewDraftStore(draftPath(cfg))
	if err != nil {
		return nil, err
	}

	catalog, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}
	var catalogSrc engine.CatalogSource
	var reporter engine.OutcomeReporter
	if catalog != nil {
		catalogSrc = catalog
		reporter = catalog
	}

	var verifier *playbook.Verifier
	if cfg.Catalog.PublicKey != "" {
		verifier, err = playbook.NewVerifier(cfg.Catalog.PublicKey)
		if err != nil {
			return nil, err
		}
	}

	resolver := engine.NewPlaybookResolver(catalogSrc, drafts, verifier)

	profiles, err := profile.NewStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	submissions, err := history.NewStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	policy, err := cfg.Navigation.Policy()
	if err != nil {
		return nil, err
	}

	sessions := func() (engine.Session, error) {
		return launchDriver(cfg)
	}

	return engine.New(engine.Config{
		Sessions:         sessions,
		Resolver:         resolver,
		Profiles:         profiles,
		History:          submissions,
		Reporter:         reporter,
		Navigation:       policy,
		OperationTimeout: cfg.Browser.OperationTimeout,
		AppVersion:       version,
	})
}

// buildCatalog returns a catalog client, or nil when no catalog endpoint is
// configured.
func buildCatalog(cfg *appconfig.Config) (*playbook.Catalog, error) {
	if cfg.Catalog.BaseURL == "" {
		return nil, nil
	}
	signingKey, err := loadSigningKey(cfg.Catalog.SigningKeyFile)
	if err != nil {
		return nil, err
	}
	deviceID, err := loadDeviceID(cfg)
	if err != nil {
		return nil, err
	}
	return playbook.NewCatalog(cfg.Catalog.BaseURL, deviceID, signingKey), nil
}

// launchDriver opens a fresh browser session with the configured options.
func launchDriver(cfg *appconfig.Config) (*browser.Driver, error) {
	driver := browser.NewDriver(browser.Options{
		Headless:         cfg.Browser.Headless,
		ExecutablePath:   cfg.Browser.ExecutablePath,
		OperationTimeout: cfg.Browser.OperationTimeout,
	})
	if err := driver.Launch(); err != nil {
		return nil, err
	}
	return driver, nil
}

func loadRegistry(cfg *appconfig.Config) (*registry.Registry, error) {
	cache, err := registry.NewCache(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	reg, err := cache.Load()
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, fmt.Errorf("no broker registry cached; place one at %s", filepath.Join(dataDir(cfg), "registry_cache.json"))
	}
	return reg, nil
}

// loadSigningKey reads a base64 Ed25519 private key, or returns nil when no
// key file is configured.
func loadSigningKey(path string) (ed25519.PrivateKey, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode signing key: %w", err)
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing key must be %d bytes, got %d", ed25519.PrivateKeySize, len(key))
	}
	return ed25519.PrivateKey(key), nil
}

// loadDeviceID returns a stable anonymous device id, generating one on
// first use.
func loadDeviceID(cfg *appconfig.Config) (string, error) {
	path := filepath.Join(dataDir(cfg), "device_id")
	data, err := os.ReadFile(path)
	if err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}
	id := uuid.New().String()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id), 0600); err != nil {
		return "", fmt.Errorf("failed to write device id: %w", err)
	}
	return id, nil
}

// draftPath returns the draft store file under the configured data
// directory, or "" for the store's own default.
func draftPath(cfg *appconfig.Config) string {
	if cfg.DataDir == "" {
		return ""
	}
	return filepath.Join(cfg.DataDir, "local_playbooks.json")
}

func dataDir(cfg *appconfig.Config) string {
	if cfg.DataDir != "" {
		return cfg.DataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".unlist")
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
