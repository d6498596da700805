package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/kidtube/kidtube/internal/config"
	"github.com/kidtube/kidtube/internal/database"
	"github.com/kidtube/kidtube/internal/feed"
	"github.com/kidtube/kidtube/internal/history"
	"github.com/kidtube/kidtube/internal/httpx"
	"github.com/kidtube/kidtube/internal/parental"
	"github.com/kidtube/kidtube/internal/player"
	"github.com/kidtube/kidtube/internal/session"
	"github.com/kidtube/kidtube/internal/source"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
	// Global flags
	cfgFile   string
	logLevel  string
	noColor   bool
	debugMode bool
	mutedFlag bool

	// Global config, logger and database
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kidtube",
	Short: "A parent-controlled, kid-safe short-video feed",
	Long: `kidtube plays an endless, shuffled feed of kid-friendly short videos
drawn from parent-approved categories, with channel blocking, daily time
limits and a bedtime window enforced locally.

The feed mixes several categories, removes blocked channels, and keeps a
small buffer of upcoming videos ready so moving through the feed feels
instantaneous.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for config init command
		if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
			return nil
		}

		if err := config.InitializeDirs(); err != nil {
			return fmt.Errorf("failed to initialize directories: %w", err)
		}

		var err error
		var v *viper.Viper
		cfg, v, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if debugMode {
			cfg.Advanced.Debug = true
			if logLevel == "" {
				cfg.Logging.Level = "debug"
			}
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if noColor {
			cfg.Logging.Color = false
		}

		logger, err = config.InitLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		db, err = database.Open(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}

		// Hot reload: parent edits to the config file apply without a
		// restart.
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			logger.Info("config file changed", "name", e.Name)
			if err := v.Unmarshal(&cfg); err != nil {
				logger.Error("failed to reload config", "error", err)
			}
		})

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			if err := database.Close(db); err != nil && logger != nil {
				logger.Error("failed to close database", "error", err)
			}
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context())
	},
}

// buildSession wires the full stack: store, history, source adapter, feed
// assembler, playback engine.
func buildSession(out chan<- []byte) (*session.Session, *parental.Store, error) {
	controls, err := parental.NewStore(db, cfg.Parental)
	if err != nil {
		return nil, nil, err
	}
	hist := history.NewService(db, cfg.Parental.HistoryLimit)

	client := httpx.NewClient(httpx.ClientConfig{
		Timeout:   cfg.Source.RequestTimeout,
		UserAgent: cfg.Source.UserAgent,
		Debug:     cfg.Advanced.Debug,
		Logger:    logger,
	})
	adapter := source.NewAdapter(source.AdapterConfig{
		Client:     client,
		Mirrors:    cfg.Source.Mirrors,
		MaxResults: cfg.Source.MaxResults,
		Languages:  controls.EnabledLanguages,
		Logger:     logger,
	})

	assembler := feed.NewAssembler(feed.AssemblerConfig{
		Fetcher:           adapter,
		EnabledCategories: controls.EnabledCategories,
		IsBlocked:         controls.IsChannelBlocked,
		InitialCategories: cfg.Feed.InitialCategories,
		Logger:            logger,
	})

	engine := player.NewEngine(player.EngineConfig{
		Factory:            player.NewChannelSurfaceFactory("", out),
		MaxPreload:         cfg.Player.MaxPreload,
		TransitionDuration: cfg.Player.TransitionDuration,
		AutoAdvanceDelay:   cfg.Player.AutoAdvanceDelay,
		CommandRetries:     cfg.Player.CommandRetries,
		StartMuted:         cfg.Player.StartMuted || mutedFlag,
		Logger:             logger,
	})

	var probe session.Probe
	if len(cfg.Source.Mirrors) > 0 {
		if addr, err := session.ProbeAddrFromMirror(cfg.Source.Mirrors[0]); err == nil {
			probe = session.DialProbe(addr)
		}
	}

	sess := session.New(session.Config{
		Source:    adapter,
		Assembler: assembler,
		Engine:    engine,
		Controls:  controls,
		History:   hist,
		Probe:     probe,
		Logger:    logger,
		OnTimesUp: func() {
			fmt.Println("\nTime's up for today! Ask a parent to extend with 'extend <pin> <minutes>'.")
		},
	})
	return sess, controls, nil
}

// runWatch drives an interactive viewing session from stdin
func runWatch(ctx context.Context) error {
	logger.Info("kidtube starting", "version", version)

	out := make(chan []byte, 64)
	go func() {
		// Drain the surface command stream; a host bridge would relay
		// these to the embedded players.
		for range out {
		}
	}()
	defer close(out)

	sess, controls, err := buildSession(out)
	if err != nil {
		return err
	}
	defer sess.Stop()

	if err := sess.Start(ctx); err != nil {
		switch {
		case errors.Is(err, session.ErrBedtime):
			fmt.Printf("It's past bedtime (after %d:00). See you tomorrow!\n", controls.BedtimeHour())
			return nil
		case errors.Is(err, session.ErrTimeLimit):
			fmt.Println("Today's watch time is used up. See you tomorrow!")
			return nil
		case errors.Is(err, session.ErrOffline):
			fmt.Println("No internet connection. Check the network and try again.")
			return nil
		case errors.Is(err, feed.ErrEmptyFeed):
			fmt.Println("No videos available. Check the category settings.")
			if src := sess.LastSourceError(); src != nil {
				logger.Warn("last source error", "error", src)
			}
			return nil
		default:
			return err
		}
	}

	engine := sess.Engine()
	printCurrent(engine)
	fmt.Println(`Commands: n(ext), p(revious), m(ute), d(islike), h(istory), extend <pin> <min>, q(uit)`)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			printCurrent(engine)
			continue
		}

		switch fields[0] {
		case "n", "next":
			engine.Advance(player.DirForward)
			waitSettled(engine)
			printCurrent(engine)
		case "p", "prev", "previous":
			engine.Advance(player.DirBackward)
			waitSettled(engine)
			printCurrent(engine)
		case "m", "mute":
			if engine.ToggleMute() {
				fmt.Println("muted")
			} else {
				fmt.Println("unmuted")
			}
		case "d", "dislike":
			if record, ok := engine.Current(); ok {
				if err := sess.Dislike(context.Background()); err != nil {
					fmt.Printf("could not block channel: %v\n", err)
				} else {
					fmt.Printf("blocked channel %q\n", record.Channel)
					printCurrent(engine)
				}
			}
		case "h", "history":
			entries, err := history.NewService(db, cfg.Parental.HistoryLimit).Recent(10)
			if err != nil {
				fmt.Printf("could not read history: %v\n", err)
				continue
			}
			for _, e := range entries {
				fmt.Printf("  %s  %s (%s)\n", e.WatchedAt.Format("15:04"), e.Title, e.Channel)
			}
		case "extend":
			if len(fields) != 3 {
				fmt.Println("usage: extend <pin> <minutes>")
				continue
			}
			var minutes int
			if _, err := fmt.Sscanf(fields[2], "%d", &minutes); err != nil {
				fmt.Println("usage: extend <pin> <minutes>")
				continue
			}
			if err := sess.ExtendTime(fields[1], minutes); err != nil {
				fmt.Printf("extension refused: %v\n", err)
			} else {
				fmt.Printf("extended by %d minutes\n", minutes)
			}
		case "q", "quit", "exit":
			return nil
		default:
			fmt.Println("unknown command")
		}
	}
	return scanner.Err()
}

func waitSettled(e *player.Engine) {
	deadline := time.Now().Add(2 * time.Second)
	for e.State() == player.StateTransitioning && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}

func printCurrent(e *player.Engine) {
	if record, ok := e.Current(); ok {
		fmt.Printf("▶ %s — %s [%s]\n", record.Title, record.Channel, source.CategoryName(record.CategoryID))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/kidtube/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug mode (verbose HTTP logging)")
	rootCmd.Flags().BoolVar(&mutedFlag, "muted", false, "start playback muted")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(mirrorsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(controlsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kidtube version %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
	},
}
