package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mcpherson-lab/pubsync/internal/collector"
	"github.com/mcpherson-lab/pubsync/internal/config"
	"github.com/mcpherson-lab/pubsync/internal/history"
	"github.com/mcpherson-lab/pubsync/internal/storage"
	"github.com/mcpherson-lab/pubsync/internal/storage/postgres"
	"github.com/mcpherson-lab/pubsync/internal/storage/sqlite"
	"github.com/mcpherson-lab/pubsync/internal/syncer"
)

var (
	rosterPath string
	outputJSON bool
	verbose    bool

	dryRun     bool
	force      bool
	onlyMember string

	historyLimit int
)

var rootCmd = &cobra.Command{
	Use:   "pubsync",
	Short: "Lab member publication sync tool",
	Long: `A CLI tool that syncs publication posts from lab members' personal
GitHub Pages sites into the shared lab website.

Members are listed in a roster file. For each active member the tool lists
the publications directory of their {username}.github.io repository, copies
new entries into the local site tree under a {username}-{dirname} directory,
and rewrites the entry metadata with source attribution.`,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync member publications into the local site tree",
	Long: `Run one sync pass over the roster. Already-synced entries are skipped,
so repeated runs are safe. Use --dry-run to see what would be created
without writing anything.`,
	RunE: runSync,
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded sync runs",
	Long:  `Display recent sync runs from the history store, or one run in full when a run ID is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "Show the configured roster",
	Long:  `Display the members configured in the roster file.`,
	RunE:  runMembers,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-member lifetime sync totals",
	Long:  `Display each member's totals aggregated over all recorded runs.`,
	RunE:  runStats,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rosterPath, "roster", "members.yml", "roster file")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report intended actions without writing")
	syncCmd.Flags().BoolVar(&force, "force", false, "re-sync entries that already exist locally")
	syncCmd.Flags().StringVar(&onlyMember, "member", "", "sync only this roster member")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(membersCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func getStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "postgres":
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	default:
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	roster, err := config.LoadRoster(rosterPath)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	coll := collector.NewGitHubCollector(cfg.GitHubToken, logger)
	siteFS := osfs.New(cfg.SiteRoot)

	s := syncer.New(roster, coll, siteFS, logger, syncer.Options{
		DryRun: dryRun,
		Force:  force,
		Member: onlyMember,
	})

	ctx := context.Background()
	run, err := s.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.HistoryEnabled && !dryRun {
		store, err := getStorage(cfg)
		if err != nil {
			logger.Warn("history store unavailable, run not recorded", zap.Error(err))
		} else {
			defer store.Close()
			if err := store.SaveRun(ctx, run); err != nil {
				logger.Warn("failed to record run", zap.Error(err))
			}
		}
	}

	if outputJSON {
		return printJSON(run)
	}
	syncer.WriteReport(os.Stdout, run, verbose)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := getStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	hist := history.New(store)
	ctx := context.Background()

	if len(args) == 1 {
		run, err := hist.Run(ctx, args[0])
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(run)
		}
		syncer.WriteReport(os.Stdout, run, verbose)
		return nil
	}

	runs, err := hist.RecentRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(runs)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Run ID", "Started", "Mode", "Members", "Created", "Failed"})
	for _, r := range runs {
		mode := "sync"
		if r.DryRun {
			mode = "dry run"
		}
		table.Append([]string{
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			mode,
			fmt.Sprintf("%d", len(r.Members)),
			fmt.Sprintf("%d", r.Totals.Created),
			fmt.Sprintf("%d", r.Totals.FetchFailed+r.Totals.WriteFailed),
		})
	}
	table.Render()
	return nil
}

func runMembers(cmd *cobra.Command, args []string) error {
	roster, err := config.LoadRoster(rosterPath)
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(roster.Members)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Username", "Name", "Role", "Active", "Publications Path"})
	for _, m := range roster.Members {
		active := "yes"
		if !m.Active {
			active = "no"
		}
		table.Append([]string{m.Username, m.Name, m.Role, active, m.PubPath()})
	}
	table.Render()
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := getStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	stats, err := history.New(store).MemberTotals(context.Background())
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(stats)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Member", "Runs", "Created", "Fetch Failures", "Last Run"})
	for _, st := range stats {
		lastRun := "-"
		if st.LastRunAt != nil {
			lastRun = st.LastRunAt.Format("2006-01-02 15:04:05")
		}
		table.Append([]string{
			st.Username,
			fmt.Sprintf("%d", st.Runs),
			fmt.Sprintf("%d", st.Created),
			fmt.Sprintf("%d", st.FetchFailed),
			lastRun,
		})
	}
	table.Render()
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
