package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/facumancuso/minoil/internal/backup"
	"github.com/facumancuso/minoil/internal/config"
	"github.com/facumancuso/minoil/internal/db"
	"github.com/facumancuso/minoil/internal/domain"
	"github.com/facumancuso/minoil/internal/engine"
	"github.com/facumancuso/minoil/internal/migrate"
	"github.com/facumancuso/minoil/internal/server"
	"github.com/facumancuso/minoil/internal/timeline"
	"github.com/facumancuso/minoil/internal/workflow"
)

var rootCmd = &cobra.Command{
	Use:   "minoil",
	Short: "Minoil order tracking CLI",
	Long: `Minoil tracks heavy-equipment component repairs through the workshop pipeline.
An order moves waiting_for_teardown -> teardown_evaluation -> simulation -> quotation
-> client_quotation -> waiting_for_part -> part_arrived -> assembly -> ready_for_delivery
-> delivered; the client may reject at any point (rejected_by_client).
Every transition appends an immutable audit entry; the timeline and cycle-time
reports are reconstructed from that log.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("MINOIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(metricsCmd())
	rootCmd.AddCommand(backupCmd())
	rootCmd.AddCommand(serveCmd())
}

func orderCmd() *cobra.Command {
	order := &cobra.Command{
		Use:   "order",
		Short: "Manage work orders",
		Long:  "Work orders are repair jobs. Create one, transition it through the pipeline stage by stage, and inspect its audit log or reconstructed timeline.",
	}
	order.AddCommand(orderCreateCmd())
	order.AddCommand(orderListCmd())
	order.AddCommand(orderShowCmd())
	order.AddCommand(orderTransitionCmd())
	order.AddCommand(orderNoteCmd())
	order.AddCommand(orderDeleteCmd())
	order.AddCommand(orderLogCmd())
	order.AddCommand(orderTimelineCmd())
	return order
}

func orderCreateCmd() *cobra.Command {
	var opts engine.OrderCreateOptions
	var orderType, createdAt, estEvalStart string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a work order",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			opts.OrderType = domain.OrderType(orderType)
			if createdAt != "" {
				t, err := time.Parse(time.RFC3339, createdAt)
				if err != nil {
					return fmt.Errorf("--created-at must be RFC 3339: %w", err)
				}
				opts.CreatedAt = t
			}
			if estEvalStart != "" {
				t, err := time.Parse(time.RFC3339, estEvalStart)
				if err != nil {
					return fmt.Errorf("--estimated-evaluation-start must be RFC 3339: %w", err)
				}
				opts.EstimatedEvaluationStartDate = &t
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.CreateOrder(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&opts.OrderNumber, "number", "", "order number")
	cmd.Flags().StringVar(&opts.Client, "client", "", "client name")
	cmd.Flags().StringVar(&opts.ClientID, "client-id", "", "client id")
	cmd.Flags().StringVar(&opts.Component, "component", "", "component description")
	cmd.Flags().StringVar(&opts.Brand, "brand", "", "component brand")
	cmd.Flags().StringVar(&opts.SerialNumber, "serial", "", "serial number")
	cmd.Flags().StringVar(&opts.Equipment, "equipment", "", "equipment the component belongs to")
	cmd.Flags().StringVar(&orderType, "type", "normal", "order type (normal, warranty)")
	cmd.Flags().StringVar(&opts.Solped, "solped", "", "purchase requisition reference")
	cmd.Flags().StringVar(&createdAt, "created-at", "", "backdate the order (RFC 3339)")
	cmd.Flags().StringVar(&estEvalStart, "estimated-evaluation-start", "", "estimated teardown start (RFC 3339)")
	_ = cmd.MarkFlagRequired("number")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func orderListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				orders, err := e.ListOrders(ctx)
				if err != nil {
					return err
				}
				if status != "" {
					filtered := orders[:0]
					for _, o := range orders {
						if o.Status == domain.Stage(status) {
							filtered = append(filtered, o)
						}
					}
					orders = filtered
				}
				if viper.GetBool("json") {
					return printJSON(orders)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Number", "Client", "Component", "Status", "Progress", "Created"})
				for _, o := range orders {
					tw.AppendRow(table.Row{
						o.OrderNumber, o.Client, o.Component,
						o.Status, fmt.Sprintf("%d%%", o.Progress),
						o.CreatedAt.Format("2006-01-02"),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func orderShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <order>",
		Short: "Show a work order by id or number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.ResolveOrder(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	return cmd
}

func orderTransitionCmd() *cobra.Command {
	var (
		status, note string
		payloadJSON  string
		transitionAt string
	)
	cmd := &cobra.Command{
		Use:   "transition <order>",
		Short: "Move an order to another stage",
		Long:  "Validates the stage's required fields before writing anything; a rejected transition leaves the order untouched. Stage data is passed as a JSON payload, e.g. --payload '{\"assembly_mechanics\":2}'.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p workflow.Payload
			if payloadJSON != "" {
				if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
					return fmt.Errorf("--payload: %w", err)
				}
			}
			if transitionAt != "" {
				t, err := time.Parse(time.RFC3339, transitionAt)
				if err != nil {
					return fmt.Errorf("--at must be RFC 3339: %w", err)
				}
				p.TransitionDate = &t
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.ResolveOrder(ctx, args[0])
				if err != nil {
					return err
				}
				o, err = e.ApplyTransition(ctx, o.ID, domain.Stage(status), p, note, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&status, "to", "", "target stage")
	cmd.Flags().StringVar(&note, "note", "", "audit note")
	cmd.Flags().StringVar(&payloadJSON, "payload", "", "stage payload as JSON")
	cmd.Flags().StringVar(&transitionAt, "at", "", "effective transition date (RFC 3339, defaults to now)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func orderNoteCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "note <order>",
		Short: "Append a free-form note to the audit log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.ResolveOrder(ctx, args[0])
				if err != nil {
					return err
				}
				o, err = e.AddNote(ctx, o.ID, note, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "note text")
	_ = cmd.MarkFlagRequired("note")
	return cmd
}

func orderDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <order>",
		Short: "Delete a work order and its audit log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete without --yes")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.ResolveOrder(ctx, args[0])
				if err != nil {
					return err
				}
				if err := e.DeleteOrder(ctx, o.ID, viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Printf("deleted order %s (%s)\n", o.OrderNumber, o.ID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func orderLogCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "log <order>",
		Short: "Tail the audit log of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.ResolveOrder(ctx, args[0])
				if err != nil {
					return err
				}
				notes := o.Notes
				if n > 0 && len(notes) > n {
					notes = notes[len(notes)-n:]
				}
				if viper.GetBool("json") {
					return printJSON(notes)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Timestamp", "Stage", "User", "Note"})
				for _, entry := range notes {
					tw.AppendRow(table.Row{
						entry.Timestamp.Format(time.RFC3339), entry.Stage, entry.User, entry.Note,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	return cmd
}

func orderTimelineCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "timeline <order>",
		Short: "Reconstructed stage intervals of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.ResolveOrder(ctx, args[0])
				if err != nil {
					return err
				}
				intervals := timeline.Reconstruct(o, time.Now())
				if from != "" || to != "" {
					lo := time.Time{}
					hi := time.Now()
					if from != "" {
						if lo, err = time.Parse(time.RFC3339, from); err != nil {
							return fmt.Errorf("--from must be RFC 3339: %w", err)
						}
					}
					if to != "" {
						if hi, err = time.Parse(time.RFC3339, to); err != nil {
							return fmt.Errorf("--to must be RFC 3339: %w", err)
						}
					}
					intervals = timeline.Clip(intervals, lo, hi)
				}
				if viper.GetBool("json") {
					return printJSON(intervals)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Stage", "Start", "End", "Days", "Man-hours", "Open"})
				for _, iv := range intervals {
					tw.AppendRow(table.Row{
						iv.Stage,
						iv.Start.Format("2006-01-02"),
						iv.End.Format("2006-01-02"),
						iv.DurationDays,
						iv.ManHours,
						iv.Open,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "clip window start (RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "clip window end (RFC 3339)")
	return cmd
}

func metricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Cycle-time and compliance aggregates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				report, err := e.CycleTimes(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Phase", "Avg days", "Orders"})
				for _, p := range report.Phases {
					tw.AppendRow(table.Row{p.Phase, fmt.Sprintf("%.1f", p.AvgDays), p.Count})
				}
				tw.Render()
				fmt.Printf("On-time deliveries: %d/%d (%.0f%%)\n",
					report.OnTimeCount, report.ComplianceCount, report.OnTimeRatio*100)
				fmt.Printf("Mean deviation: %.1f days\n", report.MeanDeviationDays)
				fmt.Printf("Warranty claims this year: %d/%d delivered (%.0f%%)\n",
					report.WarrantyClaims, report.DeliveredCount, report.WarrantyRatio*100)
				return nil
			})
		},
	}
	return cmd
}

func backupCmd() *cobra.Command {
	bk := &cobra.Command{Use: "backup", Short: "Manage JSON snapshots"}
	bk.AddCommand(backupCreateCmd())
	bk.AddCommand(backupListCmd())
	bk.AddCommand(backupCleanCmd())
	return bk
}

func backupCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Snapshot all orders into one file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				path, err := e.Backup.CreateFull(ctx)
				if err != nil {
					return err
				}
				fmt.Println(path)
				return nil
			})
		},
	}
	return cmd
}

func backupListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshot files, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.Backup.List()
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Name", "Size", "Modified"})
				for _, entry := range entries {
					tw.AppendRow(table.Row{entry.Name, entry.Size, entry.ModTime.Format(time.RFC3339)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func backupCleanCmd() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete all but the newest snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				removed, err := e.Backup.CleanOld(keep)
				if err != nil {
					return err
				}
				fmt.Printf("Removed %d snapshot(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", backup.DefaultKeep, "snapshots to keep")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			if secret := os.Getenv("MINOIL_JWT_SECRET"); secret != "" {
				cfg.Server.JWTSecret = secret
			}
			if cfg.Server.JWTSecret == "" {
				return fmt.Errorf("MINOIL_JWT_SECRET or server.jwt_secret is required for bearer auth")
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			log := newLogger()
			if err := migrate.Migrate(conn, log); err != nil {
				return err
			}
			if v, err := migrate.Version(conn); err == nil {
				log.Debug().Int("schema_version", v).Msg("database ready")
			}
			e := newEngine(conn, cfg, log)
			authCfg := server.AuthConfig{
				JWTSecret:              cfg.Server.JWTSecret,
				AllowLegacyActorHeader: cfg.Server.AllowLegacyActorHeader,
				Logger:                 log,
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: cfg.Server.BasePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info().Str("addr", cfg.Server.Addr).Str("base_path", cfg.Server.BasePath).
				Msg("serving order API (OpenAPI at /openapi.json, Swagger UI at /docs)")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

// --- helpers ---

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

func newEngine(conn *sql.DB, cfg *config.Config, log zerolog.Logger) engine.Engine {
	sched := &backup.Scheduler{
		Dir: cfg.Backup.Dir,
		Log: log.With().Str("component", "backup").Logger(),
	}
	e := engine.New(conn, sched, log)
	sched.Repo = e.Repo
	return e
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	log := newLogger()
	if err := migrate.Migrate(conn, log); err != nil {
		return err
	}
	e := newEngine(conn, cfg, log)
	return fn(ctx, e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
