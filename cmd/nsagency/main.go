// Package main is the nsagency command line tool. It runs incremental
// syncs from the source ERP and replays archived batches into the target.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nsagency/internal/pipeline"
	"github.com/ajitpratap0/nsagency/pkg/archive"
	"github.com/ajitpratap0/nsagency/pkg/checkpoint"
	"github.com/ajitpratap0/nsagency/pkg/compression"
	"github.com/ajitpratap0/nsagency/pkg/config"
	"github.com/ajitpratap0/nsagency/pkg/connector/core"
	"github.com/ajitpratap0/nsagency/pkg/connector/registry"
	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/json"
	"github.com/ajitpratap0/nsagency/pkg/logger"
	"github.com/ajitpratap0/nsagency/pkg/models"
	"github.com/ajitpratap0/nsagency/pkg/observability"
)

var version = "0.1.0"

const cutDateLayout = "2006-01-02 15:04:05"

func main() {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("NSAGENCY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "nsagency",
		Short: "nsagency - incremental ERP sync agency",
		Long: `nsagency pulls changed records from the source ERP in time windows,
transforms them through the configured field mappings and upserts them
into the target system.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "nsagency.yaml", "Agency configuration file")
	flags.String("name", "default", "Agency name")
	flags.String("log-level", "", "Log level override (debug, info, warn, error)")
	flags.String("time-zone", "", "IANA time zone override")
	flags.Int("page-cap", -1, "Maximum pages per window (0 = unlimited)")
	flags.Int("record-pool-width", 0, "Concurrent record transforms")
	flags.Int("page-pool-width", 0, "Concurrent page fetches")
	flags.Int("upsert-pool-width", 0, "Concurrent target upserts")
	flags.String("tracing", "", "Tracing exporter (stdout or none)")
	if err := v.BindPFlags(flags); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	root.AddCommand(versionCmd(), kindsCmd(v), syncCmd(v), upsertCmd(v))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nsagency version %s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func kindsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List supported record kinds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			e, err := pipeline.NewEngine(cfg, nil, nil, pipeline.WithLogger(zap.NewNop()))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, k := range e.Kinds() {
				fmt.Fprintf(out, "%-16s %-20s %s\n", k.Kind, k.RecordType, k.Family)
			}
			return nil
		},
	}
}

func syncCmd(v *viper.Viper) *cobra.Command {
	var (
		kind       string
		cutDate    string
		hours      float64
		limit      int
		subsidiary string
		filters    map[string]string
		target     string
		upsert     bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch and transform one kind, optionally upserting the result",
		Example: `  nsagency sync --kind order --cut-date "2024-01-01 00:00:00" --hours 6
  nsagency sync --kind customer --upsert
  nsagency sync --kind product --filter active_only=true`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind == "" {
				return errors.New(errors.ErrorTypeValidation, "--kind is required")
			}
			a, err := newApp(cmd.Context(), v, true, upsert)
			if err != nil {
				return err
			}
			defer a.close()

			params := pipeline.WindowParams{
				Hours:      hours,
				Limit:      limit,
				Subsidiary: subsidiary,
				Filters:    parseFilters(filters),
			}
			if cutDate != "" {
				if params.CutDate, err = time.ParseInLocation(cutDateLayout, cutDate, a.location); err != nil {
					return errors.Wrap(err, errors.ErrorTypeValidation, "invalid --cut-date")
				}
			}

			report, err := a.runner.Run(a.ctx, pipeline.RunRequest{
				Kind:       kind,
				Params:     params,
				MappingKey: target,
				Upsert:     upsert,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Record kind to sync (required)")
	cmd.Flags().StringVar(&cutDate, "cut-date", "", "Window start as \"YYYY-MM-DD hh:mm:ss\" (defaults to the checkpoint)")
	cmd.Flags().Float64Var(&hours, "hours", 0, "Window width in hours (0 = up to now)")
	cmd.Flags().IntVar(&limit, "limit", pipeline.DefaultLimit, "Page size requested from the source")
	cmd.Flags().StringVar(&subsidiary, "subsidiary", "", "Subsidiary filter")
	cmd.Flags().StringToStringVar(&filters, "filter", nil, "Family query option, e.g. --filter vendor_id=42 --filter active_only=true")
	cmd.Flags().StringVarP(&target, "target", "t", "", "Mapping key (defaults to the default mapping)")
	cmd.Flags().BoolVar(&upsert, "upsert", false, "Upsert transformed entities into the target")
	return cmd
}

func upsertCmd(v *viper.Viper) *cobra.Command {
	var (
		family string
		input  string
	)

	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Upsert previously transformed entities from a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return errors.New(errors.ErrorTypeValidation, "--input is required")
			}
			a, err := newApp(cmd.Context(), v, false, true)
			if err != nil {
				return err
			}
			defer a.close()

			entities, err := readEntities(input)
			if err != nil {
				return err
			}

			switch models.Family(family) {
			case models.FamilyTransaction:
				entities, err = a.engine.UpsertTransactions(a.ctx, entities)
			case models.FamilyPerson:
				entities, err = a.engine.UpsertPersons(a.ctx, entities)
			case "":
				entities, err = a.engine.UpsertEntities(a.ctx, entities)
			default:
				return errors.Newf(errors.ErrorTypeValidation, "unknown family %q", family)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entities)
		},
	}

	cmd.Flags().StringVarP(&family, "family", "f", "", "Upsert variant: transaction or person (defaults to each kind's family)")
	cmd.Flags().StringVarP(&input, "input", "i", "", "Entities file: JSON array, JSON lines or an archive (.gz, .zst)")
	return cmd
}

// app holds the wired components of one command invocation.
type app struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.SyncConfig
	location *time.Location
	log      *zap.Logger
	engine   *pipeline.Engine
	runner   *pipeline.Runner
	closers  []func(context.Context) error
}

func newApp(parent context.Context, v *viper.Viper, withSource, withTarget bool) (*app, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)

	a := &app{ctx: ctx, cancel: cancel, cfg: cfg, location: loc}
	a.log = logger.FromContext(ctx, logger.Get()).With(
		zap.String("component", "nsagency-cli"),
		zap.String("agency", cfg.Name))

	if err := a.wire(v, runID, withSource, withTarget); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(v *viper.Viper, runID string, withSource, withTarget bool) error {
	tracing := observability.DefaultConfig()
	tracing.ServiceVersion = version
	if exporter := v.GetString("tracing"); exporter != "" {
		tracing.Exporter = exporter
	}
	if tracing.Exporter == "stdout" {
		tracing.Writer = os.Stderr
	}
	shutdown, err := observability.Initialize(tracing)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, shutdown)

	var source core.Source
	if withSource {
		if source, err = registry.CreateSource(a.ctx, a.cfg.Source, a.location, a.log); err != nil {
			return err
		}
		a.closers = append(a.closers, source.Close)
		a.logConnector("source", source)
	}

	var target core.Target
	if targetWanted(a.cfg, withTarget) {
		if target, err = registry.CreateTarget(a.ctx, a.cfg.Target, a.log); err != nil {
			return err
		}
		a.closers = append(a.closers, target.Close)
		a.logConnector("target", target)
	}

	if a.engine, err = pipeline.NewEngine(a.cfg, source, target, pipeline.WithLogger(a.log)); err != nil {
		return err
	}
	if !withSource {
		return nil
	}

	store, err := checkpoint.New(a.ctx, a.cfg.Checkpoint, a.cfg.Name, a.log)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })

	sink, err := archive.New(a.ctx, a.cfg.Archive, runID, a.log)
	if err != nil {
		return err
	}

	a.runner = pipeline.NewRunner(a.engine, store, sink, a.log)
	return nil
}

// targetWanted reports whether the target connector should be built. A
// sync without --upsert only builds it when the target is configured.
func targetWanted(cfg *config.SyncConfig, upsert bool) bool {
	if cfg.Target.Type == "" {
		return false
	}
	return upsert || cfg.Target.BaseURL != ""
}

func (a *app) logConnector(role string, c interface{}) {
	if id, ok := c.(core.Connector); ok {
		a.log.Debug("connector ready",
			zap.String("role", role),
			zap.String("name", id.Name()),
			zap.String("type", string(id.Type())),
			zap.String("version", id.Version()))
	}
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	a.cancel()
	_ = logger.Sync()
}

// loadConfig reads the agency file and applies flag and NSAGENCY_*
// environment overrides.
func loadConfig(v *viper.Viper) (*config.SyncConfig, error) {
	cfg, err := config.LoadSyncConfig(v.GetString("config"), v.GetString("name"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load configuration")
	}

	if level := v.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if tz := v.GetString("time-zone"); tz != "" {
		cfg.TimeZone = tz
	}
	if pageCap := v.GetInt("page-cap"); pageCap >= 0 {
		cfg.Engine.PageCap = pageCap
	}
	if n := v.GetInt("record-pool-width"); n > 0 {
		cfg.Engine.RecordPoolWidth = n
	}
	if n := v.GetInt("page-pool-width"); n > 0 {
		cfg.Engine.PagePoolWidth = n
	}
	if n := v.GetInt("upsert-pool-width"); n > 0 {
		cfg.Engine.UpsertPoolWidth = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readEntities loads entities from a JSON array, JSON lines or a
// compressed archive written by the archive sink.
func readEntities(path string) ([]*models.Entity, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read entities file")
	}

	switch {
	case strings.HasSuffix(path, compression.Gzip.Extension()):
		return archive.Read(bytes.NewReader(data), compression.Gzip)
	case strings.HasSuffix(path, compression.Zstd.Extension()):
		return archive.Read(bytes.NewReader(data), compression.Zstd)
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var entities []*models.Entity
		if err := json.Unmarshal(trimmed, &entities); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid entities array")
		}
		return entities, nil
	}
	return archive.Read(bytes.NewReader(data), compression.None)
}

// parseFilters turns flag values into window filters. "true" and "false"
// become booleans.
func parseFilters(in map[string]string) map[string]interface{} {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		switch v {
		case "true":
			out[k] = true
		case "false":
			out[k] = false
		default:
			out[k] = v
		}
	}
	return out
}

func printJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
