package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/stake-plus/mod-review/src/data"
	"github.com/stake-plus/mod-review/src/review"
	"github.com/stake-plus/mod-review/src/types"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the applications and settings tables in MySQL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := c.database()
			if err != nil {
				return err
			}
			if err := data.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			color.New(color.FgGreen).Fprintln(c.out, "schema up to date")
			return nil
		},
	}
}

func newListCmd(c *cli) *cobra.Command {
	var (
		status string
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := types.ListFilter{Status: types.Status(strings.ToLower(status)), Limit: limit, Offset: offset}
			if f.Status != "" && !f.Status.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			svc, err := c.services(ctx)
			if err != nil {
				return err
			}
			apps, err := svc.Store.List(ctx, f)
			if err != nil {
				return err
			}
			if len(apps) == 0 {
				color.New(color.FgYellow).Fprintln(c.out, "no applications")
				return nil
			}
			renderApplications(c.out, apps)
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "pending, accepted or rejected")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func renderApplications(w io.Writer, apps []types.Application) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Discord ID", "Username", "Score", "Status", "Reviewed By", "Created"})
	for _, a := range apps {
		table.Append([]string{
			a.ID.String(),
			a.DiscordID,
			a.DiscordUsername,
			fmt.Sprintf("%d/%d", a.CorrectAnswers, a.TotalQuestions),
			string(a.Status),
			a.ReviewedBy,
			a.CreatedAt.UTC().Format("2006-01-02 15:04"),
		})
	}
	table.Render()
}

func newShowCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			svc, err := c.services(ctx)
			if err != nil {
				return err
			}
			a, err := svc.Store.Get(ctx, types.ApplicationID(args[0]))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(a)
			}
			table := tablewriter.NewWriter(c.out)
			table.SetHeader([]string{"Field", "Value"})
			table.AppendBulk([][]string{
				{"id", a.ID.String()},
				{"discord_id", a.DiscordID},
				{"discord_username", a.DiscordUsername},
				{"score", strconv.Itoa(a.Score)},
				{"correct / wrong / total", fmt.Sprintf("%d / %d / %d", a.CorrectAnswers, a.WrongAnswers, a.TotalQuestions)},
				{"status", string(a.Status)},
				{"reviewed_by", a.ReviewedBy},
				{"rejection_reason", a.RejectionReason},
				{"review_notes", a.ReviewNotes},
			})
			table.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw record")
	return cmd
}

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count applications per status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			svc, err := c.services(ctx)
			if err != nil {
				return err
			}
			counts, err := svc.Store.Counts(ctx)
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(c.out)
			table.SetHeader([]string{"Status", "Count"})
			var total int64
			for _, s := range []types.Status{types.StatusPending, types.StatusAccepted, types.StatusRejected} {
				table.Append([]string{string(s), strconv.FormatInt(counts[s], 10)})
				total += counts[s]
			}
			table.SetFooter([]string{"total", strconv.FormatInt(total, 10)})
			table.Render()
			return nil
		},
	}
}

func newAcceptCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept <id>",
		Short: "Accept an application, grant the moderator role and DM the applicant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			svc, err := c.services(ctx)
			if err != nil {
				return err
			}
			out, err := svc.Engine.Accept(ctx, types.ApplicationID(args[0]), reviewerFlag(cmd))
			if out == nil {
				return err
			}
			return printOutcome(c.out, out)
		},
	}
	cmd.Flags().String("reviewer", "", "name recorded as reviewed_by (defaults to $USER)")
	return cmd
}

func newRejectCmd(c *cli) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject an application and DM the applicant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			svc, err := c.services(ctx)
			if err != nil {
				return err
			}
			out, err := svc.Engine.Reject(ctx, types.ApplicationID(args[0]), reviewerFlag(cmd), reason)
			if out == nil {
				return err
			}
			return printOutcome(c.out, out)
		},
	}
	cmd.Flags().String("reviewer", "", "name recorded as reviewed_by (defaults to $USER)")
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "rejection reason shown to the applicant")
	return cmd
}

// printOutcome renders the result and turns an uncommitted outcome into an error
// so scripts see a non-zero exit.
func printOutcome(w io.Writer, out *review.Outcome) error {
	switch {
	case out.AlreadyProcessed:
		color.New(color.FgYellow).Fprintf(w, "already %s, nothing changed\n", out.Status)
	case out.Success:
		color.New(color.FgGreen).Fprintf(w, "application %s\n", out.Status)
	default:
		color.New(color.FgRed).Fprintf(w, "transition failed (%s)\n", out.Code)
	}
	if out.Success && !out.AlreadyProcessed {
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Role Assigned", "Already Had Role", "DM Sent", "Test Identity"})
		table.Append([]string{yesNo(out.RoleAssigned), yesNo(out.AlreadyHadRole), yesNo(out.DMSent), yesNo(out.IsTestIdentity)})
		table.Render()
	}
	if out.Error != "" {
		color.New(color.FgYellow).Fprintf(w, "note: %s\n", out.Error)
	}
	if !out.Success {
		return fmt.Errorf("%s: %s", out.Code, out.Error)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newSubmitCmd(c *cli) *cobra.Command {
	var sub types.Submission
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Insert a pending application, for seeding and manual tests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sub.DiscordID == "" || sub.DiscordUsername == "" {
				return fmt.Errorf("--discord-id and --username are required")
			}
			if sub.WrongAnswers == 0 && sub.TotalQuestions >= sub.CorrectAnswers {
				sub.WrongAnswers = sub.TotalQuestions - sub.CorrectAnswers
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			svc, err := c.services(ctx)
			if err != nil {
				return err
			}
			a, err := svc.Store.Insert(ctx, sub)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(c.out, "created application %s\n", a.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&sub.DiscordID, "discord-id", "", "applicant Discord user id")
	f.StringVar(&sub.DiscordUsername, "username", "", "applicant Discord username")
	f.IntVar(&sub.Score, "score", 0, "test score")
	f.IntVar(&sub.TotalQuestions, "total", 0, "questions asked")
	f.IntVar(&sub.CorrectAnswers, "correct", 0, "correct answers")
	f.IntVar(&sub.WrongAnswers, "wrong", 0, "wrong answers (defaults to total - correct)")
	return cmd
}

func newSettingCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setting",
		Short: "Read or write rows in the MySQL settings table",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> <value>",
		Short: "Upsert a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := c.database()
			if err != nil {
				return err
			}
			if err := data.SaveSetting(db, args[0], args[1]); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(c.out, "%s saved\n", args[0])
			return nil
		},
	}, &cobra.Command{
		Use:   "get <name>",
		Short: "Print a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := c.database()
			if err != nil {
				return err
			}
			if err := data.LoadSettings(db); err != nil {
				return err
			}
			fmt.Fprintln(c.out, data.GetSetting(args[0]))
			return nil
		},
	})
	return cmd
}
