package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mottoparty/internal/config"
	"mottoparty/internal/db"
	"mottoparty/internal/domain"
	"mottoparty/internal/engine"
	"mottoparty/internal/migrate"
	"mottoparty/internal/repo"
	"mottoparty/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "mottoparty",
	Short: "Motto party CLI",
	Long: `Motto party runs a one-shot motto raffle.
Everyone registers, writes a motto, and when the organizer starts the
raffle each participant is assigned somebody else's motto. The raffle
runs exactly once; results are final.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("MOTTOPARTY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("as", "", "acting participant name")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("as", rootCmd.PersistentFlags().Lookup("as"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(participantCmd())
	rootCmd.AddCommand(mottoCmd())
	rootCmd.AddCommand(raffleCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var party string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a party workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); err == nil {
				fmt.Printf("Config already exists at %s\n", cfgPath)
				return nil
			}
			if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault(party)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Initialized party workspace (config at %s, database at %s)\n", cfgPath, db.Path(workspace))
			return nil
		},
	}
	cmd.Flags().StringVar(&party, "party", "motto party", "party name")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show party status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, r repo.Repo, cfg *config.Config) error {
				state, err := e.State(ctx)
				if err != nil {
					return err
				}
				counts, err := r.CountParty(ctx)
				if err != nil {
					return err
				}
				out := map[string]any{
					"party":        cfg.Party.Name,
					"raffle_state": state,
					"participants": counts.Participants,
					"submissions":  counts.Submissions,
					"assignments":  counts.Assignments,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Party: %s\n", cfg.Party.Name)
				fmt.Printf("Raffle: %s\n", state)
				fmt.Printf("Participants: %d, mottos: %d, assignments: %d\n",
					counts.Participants, counts.Submissions, counts.Assignments)
				return nil
			})
		},
	}
}

func participantCmd() *cobra.Command {
	p := &cobra.Command{Use: "participant", Short: "Manage participants"}
	p.AddCommand(participantRegisterCmd())
	p.AddCommand(participantListCmd())
	return p
}

func participantRegisterCmd() *cobra.Command {
	var name, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a participant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, r repo.Repo, cfg *config.Config) error {
				p, err := e.Register(ctx, name, password)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "participant name")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func participantListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List participants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, r repo.Repo, cfg *config.Config) error {
				items, err := e.Participants(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Name", "Registered"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.Name, p.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func mottoCmd() *cobra.Command {
	m := &cobra.Command{Use: "motto", Short: "Manage mottos"}
	m.AddCommand(mottoSubmitCmd())
	m.AddCommand(mottoListCmd())
	return m
}

func mottoSubmitCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit or replace your motto",
		RunE: func(cmd *cobra.Command, args []string) error {
			submitter := viper.GetString("as")
			if submitter == "" {
				return fmt.Errorf("--as required (who submits this motto)")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, r repo.Repo, cfg *config.Config) error {
				s, created, err := e.SubmitMotto(ctx, submitter, text)
				if err != nil {
					return err
				}
				if created {
					fmt.Println("Motto submitted.")
				} else {
					fmt.Println("Motto replaced.")
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "motto text")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func mottoListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all mottos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, r repo.Repo, cfg *config.Config) error {
				items, err := e.Mottos(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Submitter", "Motto", "Updated"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.Submitter, s.Text, s.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func raffleCmd() *cobra.Command {
	r := &cobra.Command{Use: "raffle", Short: "Run the raffle and read results"}
	r.AddCommand(raffleStartCmd())
	r.AddCommand(raffleResultsCmd())
	return r
}

func raffleStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the one-shot raffle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, r repo.Repo, cfg *config.Config) error {
				initiator := viper.GetString("as")
				if initiator == "" {
					initiator = cfg.Organizer
				}
				assignments, err := e.RunRaffle(ctx, initiator)
				if err != nil {
					return err
				}
				fmt.Printf("Raffle completed: %d assignments.\n", len(assignments))
				return printAssignments(assignments)
			})
		},
	}
}

func raffleResultsCmd() *cobra.Command {
	var participant string
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show raffle results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, r repo.Repo, cfg *config.Config) error {
				if participant != "" {
					a, err := e.Result(ctx, participant)
					if err != nil {
						return err
					}
					return printJSONOrTable(a)
				}
				items, err := e.Results(ctx)
				if err != nil {
					return err
				}
				return printAssignments(items)
			})
		},
	}
	cmd.Flags().StringVar(&participant, "participant", "", "show a single participant's result")
	return cmd
}

func printAssignments(items []domain.Assignment) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Participant", "Assigned motto"})
	for _, a := range items {
		tw.AppendRow(table.Row{a.Participant, a.Text})
	}
	tw.Render()
	return nil
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyDeleteCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var name, actor string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for a participant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				actor = viper.GetString("as")
			}
			if actor == "" {
				return fmt.Errorf("--actor or --as required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetParticipant(ctx, engine.NormalizeName(actor)); err != nil {
					return err
				}
				secret := uuid.NewString()
				key := domain.APIKey{
					ID:        uuid.NewString(),
					ActorID:   engine.NormalizeName(actor),
					Name:      name,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				// The secret is shown once and never stored.
				fmt.Printf("API key created: %s\n", secret)
				return printJSONOrTable(key)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	cmd.Flags().StringVar(&actor, "actor", "", "participant the key acts as")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, engine.NormalizeName(actor))
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "filter by participant")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, id)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "key id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: registrations, motto updates, and the raffle itself.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			e := engine.New(r, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("MOTTOPARTY_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("MOTTOPARTY_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				Repo:     r,
				Party:    cfg.Party.Name,
				Webhooks: cfg.Webhooks,
				BasePath: basePath,
				Auth:     authCfg,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Motto Party API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine, repo.Repo, *config.Config) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	e := engine.New(r, cfg)
	return fn(ctx, e, r, cfg)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
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
