package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/IshaanNene/newsmonitor/internal/config"
	"github.com/IshaanNene/newsmonitor/internal/storage"
	"github.com/IshaanNene/newsmonitor/internal/types"
)

// sourcesCmd creates the "sources" command group.
func sourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage the listing pages scraped by scrape-all",
	}
	cmd.AddCommand(sourcesAddCmd())
	cmd.AddCommand(sourcesListCmd())
	cmd.AddCommand(sourcesToggleCmd("enable", true))
	cmd.AddCommand(sourcesToggleCmd("disable", false))
	cmd.AddCommand(sourcesDeleteCmd())
	cmd.AddCommand(sourcesImportCmd())
	return cmd
}

func sourcesAddCmd() *cobra.Command {
	var (
		name     string
		disabled bool
	)
	cmd := &cobra.Command{
		Use:   "add [url]",
		Short: "Register a listing page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			src, err := newSource(args[0], name, !disabled)
			if err != nil {
				return err
			}
			if err := store.CreateSource(cmd.Context(), src); err != nil {
				if errors.Is(err, types.ErrDuplicateURL) {
					return fmt.Errorf("source %s is already registered", src.URL)
				}
				return fmt.Errorf("add source: %w", err)
			}
			fmt.Printf("Added source %s (%s)\n", src.Name, src.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name, also stored as the article source label (default: host)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "register without enabling")
	return cmd
}

func sourcesListCmd() *cobra.Command {
	var enabledOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			filter := storage.SourceFilter{}
			if enabledOnly {
				filter.Enabled = &enabledOnly
			}
			list, err := store.ListSources(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("list sources: %w", err)
			}
			printSources(list, time.Now())
			return nil
		},
	}
	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "only show enabled sources")
	return cmd
}

func sourcesToggleCmd(verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " [id-or-url]",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			src, err := findSource(cmd, store, args[0])
			if err != nil {
				return err
			}
			if err := store.SetSourceEnabled(cmd.Context(), src.ID, enabled); err != nil {
				return fmt.Errorf("%s source: %w", verb, err)
			}
			fmt.Printf("Source %s %sd\n", src.Name, verb)
			return nil
		},
	}
}

func sourcesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id-or-url]",
		Short: "Remove a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			src, err := findSource(cmd, store, args[0])
			if err != nil {
				return err
			}
			if err := store.DeleteSource(cmd.Context(), src.ID); err != nil {
				return fmt.Errorf("delete source: %w", err)
			}
			fmt.Printf("Deleted source %s\n", src.Name)
			return nil
		},
	}
}

func sourcesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file.yaml]",
		Short: "Register sources from a YAML file",
		Long: `Register every source listed in a YAML file. Already registered URLs are skipped.

  sources:
    - url: https://www.latina.pe/noticias
      name: Latina
    - url: https://rpp.pe/politica
      enabled: false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			entries, err := parseSourcesFile(data)
			if err != nil {
				return err
			}

			store, logger, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			added, skipped := 0, 0
			for _, e := range entries {
				src, err := e.source()
				if err != nil {
					logger.Warn("source skipped", "url", e.URL, "error", err)
					skipped++
					continue
				}
				if err := store.CreateSource(cmd.Context(), src); err != nil {
					if !errors.Is(err, types.ErrDuplicateURL) {
						return fmt.Errorf("import %s: %w", src.URL, err)
					}
					skipped++
					continue
				}
				added++
			}
			fmt.Printf("Imported %d sources (%d skipped)\n", added, skipped)
			return nil
		},
	}
}

// sourceEntry is one item of a sources import file.
type sourceEntry struct {
	URL     string `yaml:"url"`
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled"`
}

type sourcesFile struct {
	Sources []sourceEntry `yaml:"sources"`
}

func parseSourcesFile(data []byte) ([]sourceEntry, error) {
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	return f.Sources, nil
}

func (e sourceEntry) source() (*types.Source, error) {
	enabled := true
	if e.Enabled != nil {
		enabled = *e.Enabled
	}
	return newSource(e.URL, e.Name, enabled)
}

// newSource validates rawURL and builds a Source named after its host
// when name is empty.
func newSource(rawURL, name string, enabled bool) (*types.Source, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := config.ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if name = strings.TrimSpace(name); name == "" {
		u, _ := url.Parse(rawURL)
		name = strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}
	return &types.Source{
		ID:        uuid.NewString(),
		URL:       rawURL,
		Name:      name,
		Enabled:   enabled,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// findSource looks a source up by ID, then by URL.
func findSource(cmd *cobra.Command, store storage.SourceStore, ref string) (*types.Source, error) {
	src, err := store.GetSource(cmd.Context(), ref)
	if errors.Is(err, types.ErrSourceNotFound) {
		src, err = store.GetSourceByURL(cmd.Context(), ref)
	}
	if errors.Is(err, types.ErrSourceNotFound) {
		return nil, fmt.Errorf("no source with ID or URL %q", ref)
	}
	return src, err
}
