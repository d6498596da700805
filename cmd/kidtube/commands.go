package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kidtube/kidtube/internal/config"
	"github.com/kidtube/kidtube/internal/history"
	"github.com/kidtube/kidtube/internal/httpx"
	"github.com/kidtube/kidtube/internal/parental"
	"github.com/kidtube/kidtube/internal/source"
)

// configCmd handles configuration operations
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			configPath = filepath.Join(config.GetConfigDir(), "config.yaml")
		}

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s", configPath)
		}
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := config.SaveDefaultConfig(configPath); err != nil {
			return fmt.Errorf("failed to save default configuration: %w", err)
		}

		fmt.Printf("Default configuration generated at: %s\n", configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Config file: %s\n", cfgFile)
		fmt.Printf("Log level: %s\n", cfg.Logging.Level)
		fmt.Printf("Database: %s\n", cfg.Database.Path)
		fmt.Printf("Mirrors:\n")
		for _, m := range cfg.Source.Mirrors {
			fmt.Printf("  %s\n", m)
		}
		fmt.Printf("Time limit: %d minutes\n", cfg.Parental.TimeLimitMinutes)
		fmt.Printf("Bedtime hour: %d\n", cfg.Parental.BedtimeHour)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Display configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			fmt.Println(cfgFile)
		} else {
			fmt.Println(config.GetConfigDir())
		}
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

// categoriesCmd lists the available video categories
var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List available video categories",
	Run: func(cmd *cobra.Command, args []string) {
		for _, c := range source.AllCategories() {
			fmt.Printf("  %-16s %s\n", c.ID, c.Name)
		}
	},
}

// searchCmd fetches one page of a category, bypassing the feed mix
var searchCmd = &cobra.Command{
	Use:   "search <category>",
	Short: "Fetch a page of videos for one category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		more, _ := cmd.Flags().GetBool("more")

		controls, err := parental.NewStore(db, cfg.Parental)
		if err != nil {
			return err
		}
		adapter := newAdapter(controls)

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		records, err := adapter.Fetch(ctx, args[0], more)
		if err != nil {
			return err
		}
		for _, r := range records {
			fmt.Printf("  %-14s %s — %s\n", r.ID, r.Title, r.Channel)
		}
		fmt.Printf("%d videos\n", len(records))
		return nil
	},
}

func newAdapter(controls *parental.Store) *source.Adapter {
	client := httpx.NewClient(httpx.ClientConfig{
		Timeout:   cfg.Source.RequestTimeout,
		UserAgent: cfg.Source.UserAgent,
		Debug:     cfg.Advanced.Debug,
		Logger:    logger,
	})
	return source.NewAdapter(source.AdapterConfig{
		Client:     client,
		Mirrors:    cfg.Source.Mirrors,
		MaxResults: cfg.Source.MaxResults,
		Languages:  controls.EnabledLanguages,
		Logger:     logger,
	})
}

func init() {
	searchCmd.Flags().Bool("more", false, "fetch the next page instead of the cached first page")
}

// mirrorsCmd manages the search mirrors
var mirrorsCmd = &cobra.Command{
	Use:   "mirrors",
	Short: "Content mirror management",
}

var mirrorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured mirrors",
	Run: func(cmd *cobra.Command, args []string) {
		for i, m := range cfg.Source.Mirrors {
			fmt.Printf("  %d. %s\n", i+1, m)
		}
	},
}

var mirrorsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe each mirror for availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := httpx.NewClient(httpx.ClientConfig{
			Timeout:   cfg.Source.RequestTimeout,
			UserAgent: cfg.Source.UserAgent,
			Logger:    logger,
		})

		for _, m := range cfg.Source.Mirrors {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Source.RequestTimeout)
			var out map[string]any
			err := client.GetJSON(ctx, m+"/search", map[string]string{
				"q":    "abc song kids",
				"type": "video",
				"max":  "1",
			}, &out)
			cancel()

			if err != nil {
				fmt.Printf("  FAIL %s (%v)\n", m, err)
			} else {
				fmt.Printf("  OK   %s\n", m)
			}
		}
		return nil
	},
}

func init() {
	mirrorsCmd.AddCommand(mirrorsListCmd)
	mirrorsCmd.AddCommand(mirrorsCheckCmd)
}

// historyCmd inspects the watch history
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Watch history management",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recently watched videos",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := history.NewService(db, cfg.Parental.HistoryLimit).Recent(limit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("  %s  %s — %s [%s]\n",
				e.WatchedAt.Format("2006-01-02 15:04"), e.Title, e.Channel,
				source.CategoryName(e.CategoryID))
		}
		return nil
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-search watched videos by title or channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := history.NewService(db, cfg.Parental.HistoryLimit).Search(args[0])
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("  %s — %s\n", e.Title, e.Channel)
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the entire watch history (requires PIN if set)",
	RunE: func(cmd *cobra.Command, args []string) error {
		controls, err := parental.NewStore(db, cfg.Parental)
		if err != nil {
			return err
		}
		if err := requirePIN(controls); err != nil {
			return err
		}
		if err := history.NewService(db, cfg.Parental.HistoryLimit).Clear(); err != nil {
			return err
		}
		fmt.Println("Watch history cleared.")
		return nil
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "number of entries to show")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyClearCmd)
}

// controlsCmd manages the parental controls
var controlsCmd = &cobra.Command{
	Use:   "controls",
	Short: "Parental controls management",
}

var controlsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the active parental controls",
	RunE: func(cmd *cobra.Command, args []string) error {
		controls, err := parental.NewStore(db, cfg.Parental)
		if err != nil {
			return err
		}

		fmt.Printf("PIN set: %v\n", controls.HasPIN())
		fmt.Printf("Categories: %v\n", controls.EnabledCategories())
		fmt.Printf("Languages: %v\n", controls.EnabledLanguages())
		fmt.Printf("Time limit: %s\n", controls.TimeLimit())
		fmt.Printf("Bedtime: enabled=%v hour=%d\n", controls.BedtimeEnabled(), controls.BedtimeHour())

		blocked, err := controls.BlockedChannels()
		if err != nil {
			return err
		}
		fmt.Printf("Blocked channels (%d):\n", len(blocked))
		for _, name := range blocked {
			fmt.Printf("  %s\n", name)
		}
		return nil
	},
}

var controlsSetPINCmd = &cobra.Command{
	Use:   "set-pin",
	Short: "Set or change the parent PIN",
	RunE: func(cmd *cobra.Command, args []string) error {
		controls, err := parental.NewStore(db, cfg.Parental)
		if err != nil {
			return err
		}
		if err := requirePIN(controls); err != nil {
			return err
		}

		pin, err := promptLine("New PIN: ")
		if err != nil {
			return err
		}
		if err := controls.SetPIN(pin); err != nil {
			return err
		}
		fmt.Println("PIN updated.")
		return nil
	},
}

var controlsBlockCmd = &cobra.Command{
	Use:   "block <channel>",
	Short: "Block a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		controls, err := parental.NewStore(db, cfg.Parental)
		if err != nil {
			return err
		}
		if err := controls.BlockChannel(args[0]); err != nil {
			return err
		}
		fmt.Printf("Blocked %q.\n", parental.NormalizeChannel(args[0]))
		return nil
	},
}

var controlsUnblockCmd = &cobra.Command{
	Use:   "unblock <channel>",
	Short: "Unblock a channel (requires PIN if set)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		controls, err := parental.NewStore(db, cfg.Parental)
		if err != nil {
			return err
		}
		if err := requirePIN(controls); err != nil {
			return err
		}
		if err := controls.UnblockChannel(args[0]); err != nil {
			return err
		}
		fmt.Printf("Unblocked %q.\n", parental.NormalizeChannel(args[0]))
		return nil
	},
}

var controlsTimeLimitCmd = &cobra.Command{
	Use:   "time-limit <minutes>",
	Short: "Set the daily time limit in minutes (0 disables, requires PIN if set)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("minutes must be a number")
		}
		controls, err := parental.NewStore(db, cfg.Parental)
		if err != nil {
			return err
		}
		if err := requirePIN(controls); err != nil {
			return err
		}
		if err := controls.SetTimeLimitMinutes(minutes); err != nil {
			return err
		}
		fmt.Printf("Time limit set to %d minutes.\n", minutes)
		return nil
	},
}

var controlsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset every parental setting to defaults (requires PIN if set)",
	RunE: func(cmd *cobra.Command, args []string) error {
		controls, err := parental.NewStore(db, cfg.Parental)
		if err != nil {
			return err
		}
		if err := requirePIN(controls); err != nil {
			return err
		}
		if err := controls.ResetAll(); err != nil {
			return err
		}
		fmt.Println("Parental controls reset.")
		return nil
	},
}

// requirePIN prompts for and verifies the PIN when one is configured
func requirePIN(controls *parental.Store) error {
	if !controls.HasPIN() {
		return nil
	}
	pin, err := promptLine("PIN: ")
	if err != nil {
		return err
	}
	if !controls.VerifyPIN(pin) {
		return fmt.Errorf("incorrect pin")
	}
	return nil
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func init() {
	controlsCmd.AddCommand(controlsShowCmd)
	controlsCmd.AddCommand(controlsSetPINCmd)
	controlsCmd.AddCommand(controlsBlockCmd)
	controlsCmd.AddCommand(controlsUnblockCmd)
	controlsCmd.AddCommand(controlsTimeLimitCmd)
	controlsCmd.AddCommand(controlsResetCmd)
}
