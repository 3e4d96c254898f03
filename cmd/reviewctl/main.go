// Command reviewctl is the operator CLI for the review service: it lists and
// inspects applications and runs the same accept/reject path as the admin API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/stake-plus/mod-review/src/app"
	"github.com/stake-plus/mod-review/src/config"
	"github.com/stake-plus/mod-review/src/data"
	"github.com/stake-plus/mod-review/src/logging"
)

var (
	verbose bool
	timeout time.Duration
)

// cli carries the lazily opened services so tests can inject their own.
type cli struct {
	out  io.Writer
	db   *gorm.DB
	svc  *app.Services
	open func(ctx context.Context) (*app.Services, error)
}

func main() {
	c := &cli{out: os.Stdout}
	c.open = c.openFromEnv
	root := newRootCmd(c)
	err := root.Execute()
	c.close()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "reviewctl",
		Short:         "Inspect and decide moderator applications",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "overall command timeout")
	root.SetOut(c.out)

	root.AddCommand(
		newMigrateCmd(c),
		newListCmd(c),
		newShowCmd(c),
		newStatsCmd(c),
		newAcceptCmd(c),
		newRejectCmd(c),
		newSubmitCmd(c),
		newSettingCmd(c),
	)
	return root
}

func (c *cli) services(ctx context.Context) (*app.Services, error) {
	if c.svc != nil {
		return c.svc, nil
	}
	svc, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	c.svc = svc
	return svc, nil
}

func (c *cli) database() (*gorm.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		return nil, errors.New("MYSQL_DSN is not set")
	}
	db, err := data.ConnectMySQL(dsn)
	if err != nil {
		return nil, err
	}
	c.db = db
	return db, nil
}

func (c *cli) openFromEnv(ctx context.Context) (*app.Services, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	var db *gorm.DB
	if os.Getenv("MYSQL_DSN") != "" {
		var err error
		if db, err = c.database(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.LoadReviewConfig(db)
	if err != nil {
		return nil, err
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level, true)
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg, db, logger)
}

func (c *cli) close() {
	if c.svc == nil {
		return
	}
	if c.svc.Discord != nil {
		if err := c.svc.Discord.Close(); err != nil && verbose {
			fmt.Fprintf(os.Stderr, "discord close: %v\n", err)
		}
	}
	c.svc.Close()
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func reviewerFlag(cmd *cobra.Command) string {
	r, _ := cmd.Flags().GetString("reviewer")
	if strings.TrimSpace(r) != "" {
		return r
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "reviewctl"
}
