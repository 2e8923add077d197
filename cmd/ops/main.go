package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"opsportal/internal/app"
	"opsportal/internal/config"
	"opsportal/internal/db"
	"opsportal/internal/engine"
	"opsportal/internal/logging"
	"opsportal/internal/repo"
)

var rootCmd = &cobra.Command{
	Use:   "ops",
	Short: "Ops portal CLI",
	Long: `The ops portal takes in leads, scores them against a rule set and turns
qualified leads into projects that run a multi-step delivery process.
- Lead: an inbound client request; statuses go new -> in_review -> approved/rejected, and converted once it becomes a project.
- Scoring: rules award points for what the lead told us; 70 of 100 qualifies.
- Process definition: the ordered steps a converted project walks through.
- Event log: every change, view with 'ops log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(viper.GetString("log-level"))
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	_ = godotenv.Load()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("OPSPORTAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "user id recorded on events")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	for _, name := range []string{"workspace", "json", "actor-id", "log-level"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(leadCmd())
	rootCmd.AddCommand(scoringCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func actorID() string {
	return viper.GetString("actor-id")
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return app.With(ctx, viper.GetString("workspace"), actorID(), fn)
}

func leadCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "lead", Short: "Take in, score and convert leads"}
	cmd.AddCommand(leadCreateCmd())
	cmd.AddCommand(leadGetCmd())
	cmd.AddCommand(leadListCmd())
	cmd.AddCommand(leadStatusCmd())
	cmd.AddCommand(leadScoreCmd())
	cmd.AddCommand(leadConvertCmd())
	return cmd
}

func leadCreateCmd() *cobra.Command {
	var in engine.LeadInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record a new lead",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.CreateLead(ctx, in, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "contact name")
	f.StringVar(&in.Email, "email", "", "contact email")
	f.StringVar(&in.Phone, "phone", "", "contact phone")
	f.StringVar(&in.Company, "company", "", "company")
	f.StringVar(&in.Message, "message", "", "what the client asked for")
	f.StringVar(&in.Service, "service", "", "requested service")
	f.StringVar(&in.TechPreferences, "tech", "", "technology preferences")
	f.StringVar(&in.EstimatedBudget, "budget", "", "estimated budget")
	f.StringVar(&in.Source, "source", "", "lead source (default internal_manual)")
	f.StringVar(&in.SrsURL, "srs-url", "", "link to a requirements document")
	f.StringVar(&in.TargetPlatforms, "platforms", "", "target platforms")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func leadGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <lead-id>",
		Short: "Show a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.GetLead(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
}

func leadListCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				leads, err := e.ListLeads(ctx, status, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(leads)
				}
				tw := newTable(table.Row{"ID", "Name", "Company", "Status", "Source", "Created"})
				for _, l := range leads {
					tw.AppendRow(table.Row{l.ID, l.Name, l.Company, l.Status, l.Source, l.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum leads")
	return cmd
}

func leadStatusCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "status <lead-id> <status>",
		Short: "Move a lead through review",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.UpdateLeadStatus(ctx, args[0], args[1], actorID(), force)
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "skip the review order (converted stays locked)")
	return cmd
}

func leadScoreCmd() *cobra.Command {
	var recalculate bool
	cmd := &cobra.Command{
		Use:   "score <lead-id>",
		Short: "Score a lead and advance it to review when it qualifies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.ScoreLead(ctx, args[0], recalculate, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("score %d/100 (%s), qualified=%t, status=%s\n", out.Score, out.Range, out.IsQualified, out.Status)
				tw := newTable(table.Row{"Category", "Points", "Reason"})
				for _, b := range out.Breakdown {
					tw.AppendRow(table.Row{b.Category, b.Points, b.Reason})
				}
				tw.Render()
				for _, r := range out.Recommendations {
					fmt.Println("-", r)
				}
				fmt.Println("next:", out.NextAction)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&recalculate, "recalculate", false, "mark the score as a recalculation")
	return cmd
}

func leadConvertCmd() *cobra.Command {
	var in engine.ConvertInput
	cmd := &cobra.Command{
		Use:   "convert <lead-id>",
		Short: "Turn a lead into a project running the active process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.LeadID = args[0]
			in.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ConvertLead(ctx, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&in.ProjectName, "project-name", "", "project name (default \"<lead> Project\")")
	cmd.Flags().StringVar(&in.OwnerUserID, "owner", "", "owner user id; assigned to pm steps")
	cmd.Flags().StringVar(&in.Priority, "priority", "", "low, medium, high or urgent")
	cmd.Flags().StringVar(&in.DueAt, "due-at", "", "RFC3339 due date")
	return cmd
}

func scoringCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "scoring", Short: "Inspect the scoring rules"}
	cmd.AddCommand(&cobra.Command{
		Use:   "rules",
		Short: "Show rules by category, intent keywords and score ranges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				catalog := e.ScoringCatalog()
				if viper.GetBool("json") {
					return printJSON(catalog)
				}
				fmt.Printf("qualification threshold %d of %d\n", catalog.QualificationThreshold, catalog.MaxScore)
				tw := newTable(table.Row{"Category", "Field", "Condition", "Value", "Points", "Reason"})
				for _, cat := range catalog.CategoryOrder {
					for _, r := range catalog.Categories[cat] {
						tw.AppendRow(table.Row{cat, r.Field, r.Condition, fmt.Sprint(nilToEmpty(r.Value)), r.Points, r.Reason})
					}
				}
				for _, in := range catalog.IntentKeywords {
					tw.AppendRow(table.Row{"intent", "message", "matches", in.Pattern, in.Points, in.Reason})
				}
				tw.Render()
				ranges := newTable(table.Row{"Range", "Min", "Max"})
				for _, r := range catalog.ScoreRanges {
					ranges.AppendRow(table.Row{r.Label, r.Min, r.Max})
				}
				ranges.Render()
				return nil
			})
		},
	})
	return cmd
}

func processCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "process", Short: "Manage process definitions"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				defs, err := e.ListDefinitions(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(defs)
				}
				tw := newTable(table.Row{"ID", "Key", "Version", "Name", "Steps", "Active"})
				for _, d := range defs {
					tw.AppendRow(table.Row{d.ID, d.Key, d.Version, d.Name, len(d.Steps), d.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show [definition-id]",
		Short: "Show a definition (the active one by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				def, err := e.GetDefinition(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(def)
				}
				fmt.Printf("%s v%d %s (active=%t)\n", def.Key, def.Version, def.Name, def.IsActive)
				tw := newTable(table.Row{"#", "Key", "Title", "Lane", "Role"})
				for i, s := range def.Steps {
					tw.AppendRow(table.Row{i + 1, s.Key, s.Title, s.Lane, s.RecommendedRole})
				}
				tw.Render()
				return nil
			})
		},
	})
	var activate bool
	importCmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import a definition document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				def, err := e.ImportDefinition(ctx, raw, activate, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(def)
			})
		},
	}
	importCmd.Flags().BoolVar(&activate, "activate", false, "make it the active definition")
	cmd.AddCommand(importCmd)
	cmd.AddCommand(&cobra.Command{
		Use:   "activate <definition-id>",
		Short: "Make a definition the one new conversions use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				def, err := e.ActivateDefinition(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(def)
			})
		},
	})
	return cmd
}

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Inspect converted projects"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project with its workflow tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				detail, err := e.ProjectDetail(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(detail)
				}
				p := detail.Project
				fmt.Printf("%s  %s  priority=%s status=%s\n", p.ID, p.Name, p.Priority, p.Status)
				if detail.Instance != nil {
					fmt.Printf("instance %s %s at %s\n", detail.Instance.ID, detail.Instance.Status, stringOrEmpty(detail.Instance.CurrentStepKey))
				}
				tw := newTable(table.Row{"ID", "Key", "Title", "Status", "Assignee"})
				for _, t := range detail.Tasks {
					tw.AppendRow(table.Row{t.ID, t.Key, t.Title, t.Status, stringOrEmpty(t.AssignedToUserID)})
				}
				tw.Render()
				return nil
			})
		},
	})
	return cmd
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Work workflow tasks"}
	var status, assignee string
	var force bool
	update := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Change a task's status or assignee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "" && !cmd.Flags().Changed("assign") {
				return fmt.Errorf("--status or --assign required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				change := engine.TaskChange{Force: force}
				if status != "" {
					change.Status = &status
				}
				if cmd.Flags().Changed("assign") {
					change.AssignedToUserID = &assignee
				}
				t, err := e.UpdateTask(ctx, args[0], change, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	update.Flags().StringVar(&status, "status", "", "todo, in_progress, blocked, done or canceled")
	update.Flags().StringVar(&assignee, "assign", "", "assignee user id (empty clears)")
	update.Flags().BoolVar(&force, "force", false, "skip the status order")
	cmd.AddCommand(update)
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage portal users"}
	var in engine.UserInput
	var keyName string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create or update a user, optionally issuing an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.AddUser(ctx, in)
				if err != nil {
					return err
				}
				out := map[string]any{"user": u}
				if keyName != "" {
					plain, key, err := e.CreateAPIKey(ctx, u.ID, keyName)
					if err != nil {
						return err
					}
					out["apiKey"] = map[string]any{"id": key.ID, "name": key.Name, "key": plain}
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("user %s (%s)\n", u.ID, u.Role)
				if k, ok := out["apiKey"].(map[string]any); ok {
					fmt.Printf("api key %s: %s\n(shown once; send it as X-Api-Key)\n", k["name"], k["key"])
				}
				return nil
			})
		},
	}
	add.Flags().StringVar(&in.ID, "id", "", "user id")
	add.Flags().StringVar(&in.Role, "role", "", "admin, pm, dev, qa or viewer")
	add.Flags().StringVar(&in.Email, "email", "", "email")
	add.Flags().StringVar(&in.Name, "name", "", "display name")
	add.Flags().StringVar(&keyName, "api-key", "", "issue an API key with this name")
	cmd.AddCommand(add)
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Everything that happened: intake, scores, conversions, task moves.",
	}
	var f repo.EventFilters
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.ListEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable(table.Row{"ID", "Type", "Lead", "Project", "Actor", "At", "Payload"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.Type, evt.LeadID, evt.ProjectID, evt.ActorUserID, evt.CreatedAt, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	tail.Flags().StringVar(&f.Type, "type", "", "event type filter")
	tail.Flags().StringVar(&f.LeadID, "lead", "", "lead id filter")
	tail.Flags().StringVar(&f.ProjectID, "project", "", "project id filter")
	log.AddCommand(tail)
	return log
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Portal configuration (portal.yml)"}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default portal.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	var file string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate portal.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if file != "" {
				_, err = config.FromFile(file)
			} else {
				_, err = config.Load(viper.GetString("workspace"))
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": errString(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	validate.Flags().StringVar(&file, "file", "", "validate this file instead of the workspace portal.yml")
	cmd.AddCommand(validate)
	return cmd
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	return tw
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

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nilToEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
