package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/godesk-io/godesk-ce/internal/api"
	"github.com/godesk-io/godesk-ce/internal/auth"
	"github.com/godesk-io/godesk-ce/internal/cache"
	"github.com/godesk-io/godesk-ce/internal/config"
	"github.com/godesk-io/godesk-ce/internal/database"
	"github.com/godesk-io/godesk-ce/internal/middleware"
	"github.com/godesk-io/godesk-ce/internal/notifications"
	"github.com/godesk-io/godesk-ce/internal/repository"
	"github.com/godesk-io/godesk-ce/internal/services/assignment"
	"github.com/godesk-io/godesk-ce/internal/services/resolution"
	"github.com/godesk-io/godesk-ce/internal/services/sla"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPathFlag string

var rootCmd = &cobra.Command{
	Use:     "godesk",
	Short:   "GoDesk - helpdesk assignment and resolution engine",
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the GoDesk API server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE:  runMigrate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("GoDesk %s\n", rootCmd.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", ".", "Directory containing config.yaml")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

func openDatabase(cfg *config.Config) (*storeSet, error) {
	db, err := database.Open(database.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		MaxLifetime:  cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	directory := repository.NewSQLDirectoryRepository(db)
	return &storeSet{
		close:     db.Close,
		tickets:   repository.NewSQLTicketRepository(db),
		history:   repository.NewSQLResolutionRepository(db),
		rules:     repository.NewSQLRuleRepository(db),
		groups:    repository.NewSQLGroupRepository(db),
		calendar:  repository.NewSQLCalendarRepository(db),
		workItems: repository.NewSQLWorkItemRepository(db),
		directory: directory,
		teams:     directory,
		slas:      repository.NewSQLSLARepository(db),
	}, nil
}

// storeSet bundles the repositories the server wires together.
type storeSet struct {
	close     func() error
	tickets   repository.TicketRepository
	history   repository.ResolutionRepository
	rules     repository.RuleRepository
	groups    repository.GroupRepository
	calendar  repository.CalendarRepository
	workItems repository.WorkItemRepository
	directory repository.DirectoryRepository
	teams     repository.TeamRepository
	slas      repository.SLARepository
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := config.Load(configPathFlag); err != nil {
		return err
	}
	stores, err := openDatabase(config.Get())
	if err != nil {
		return err
	}
	defer stores.close()
	fmt.Println("schema up to date")
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.Load(configPathFlag); err != nil {
		return err
	}
	cfg := config.Get()
	logger := log.New(os.Stdout, "godesk ", log.LstdFlags)

	stores, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer stores.close()

	var store cache.Cache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		store = redisCache
	} else {
		store = cache.NewLocalCache()
	}

	resolver := assignment.NewGroupResolver(stores.groups, store, cfg.Assignment.GroupCacheTTL, logger)
	oracle := assignment.NewAvailabilityOracle(stores.directory, stores.calendar, resolver, logger)
	evaluator := assignment.NewConditionEvaluator(cfg.Assignment.ConditionTimeout)
	assigner := assignment.NewService(
		stores.rules, stores.tickets, stores.workItems,
		oracle, resolver, evaluator,
		&assignment.TicketFieldResolver{Tickets: stores.tickets},
		logger,
	)

	var schedule *sla.Schedule
	if cfg.SLA.SchedulePath != "" {
		if schedule, err = sla.LoadSchedule(cfg.SLA.SchedulePath); err != nil {
			return fmt.Errorf("load working-hours schedule: %w", err)
		}
	}
	businessCal, err := sla.NewBusinessCalendar(schedule)
	if err != nil {
		return fmt.Errorf("build business calendar: %w", err)
	}
	restarter := sla.NewRestarter(stores.slas, businessCal, logger)
	monitor := sla.NewMonitor(stores.tickets, logger)
	if err := monitor.Start(cfg.SLA.SweepCron); err != nil {
		return fmt.Errorf("start sla monitor: %w", err)
	}
	defer monitor.Stop()

	smtp := notifications.NewSMTPProvider(notifications.SMTPConfig{
		Enabled:    cfg.Email.Enabled,
		Host:       cfg.Email.Host,
		Port:       cfg.Email.Port,
		User:       cfg.Email.User,
		Password:   cfg.Email.Password,
		From:       cfg.Email.From,
		TLSMode:    cfg.Email.TLSMode,
		SkipVerify: cfg.Email.SkipVerify,
	})
	hub := notifications.NewHub(logger)
	dispatcher := notifications.NewDispatcher(smtp, hub, logger)

	ledger := resolution.NewLedger(stores.tickets, stores.history, restarter, dispatcher, logger)
	workflow := resolution.NewWorkflow(stores.tickets, stores.teams, restarter, dispatcher, logger)

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	server := &api.Server{
		Ledger:     ledger,
		Workflow:   workflow,
		Assigner:   assigner,
		Oracle:     oracle,
		Resolver:   resolver,
		Tickets:    stores.tickets,
		Rules:      stores.rules,
		Groups:     stores.groups,
		Calendar:   stores.calendar,
		Hub:        hub,
		Auth:       middleware.NewAuthMiddleware(jwtManager),
		Logger:     logger,
		Production: cfg.App.IsProduction(),
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.NewRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
