package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/report"
)

// Viper keys for flags that are not part of config.Config.
const (
	keyUser   = "ledger_user"
	keyOutput = "ledger_output"
)

// app carries what the subcommands share once the root pre-run has loaded
// configuration.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *log.Logger
	out    io.Writer
	errOut io.Writer
}

func main() {
	ctx, cancel := cli.SignalContext(context.Background(), log.Discard())
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: config.NewViper(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "ledger",
		Short: "Multi-user expense ledger with filtered queries",
		Long: `ledger stores expenses per user and answers filtered queries such as

  ledger list 'amount>10,amount<100,category=food'

Regular users see their own rows; admins see every row.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringP("user", "u", "", "acting user (env LEDGER_USER)")
	flags.StringP("output", "o", "table", "output format (table, json)")
	flags.String("db", "", "SQLite database path (env SQLITE_DB_PATH)")
	flags.String("backend", "", "storage backend: sqlite or memory (env DATA_BACKEND)")
	flags.String("log-level", "", "log level: debug, info, warn, error (env LOG_LEVEL)")

	_ = a.v.BindPFlag(keyUser, flags.Lookup("user"))
	_ = a.v.BindPFlag(keyOutput, flags.Lookup("output"))
	_ = a.v.BindPFlag(config.KeySQLiteDBPath, flags.Lookup("db"))
	_ = a.v.BindPFlag(config.KeyDataBackend, flags.Lookup("backend"))
	_ = a.v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))

	root.AddCommand(
		a.listCmd(),
		a.analyticsCmd(),
		a.reportCmd(),
		a.exportCmd(),
		a.activitiesCmd(),
		a.serveCmd(),
		a.migrateCmd(),
		a.userCmd(),
		a.categoryCmd(),
		a.paymentCmd(),
		a.expenseCmd(),
	)
	return root
}

// init loads .env, reads configuration and sets up logging. Logs go to the
// error stream so command output stays machine readable.
func (a *app) init(cmd *cobra.Command, _ []string) error {
	cli.LoadEnvFile()

	cfg, err := cli.ValidateConfig(config.FromViper(a.v))
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cli.SetupLogger(cfg.LogLevel, a.errOut)
	return nil
}

func (a *app) format() (report.Format, error) {
	return report.ParseFormat(a.v.GetString(keyOutput))
}

func (a *app) user() (string, error) {
	u := a.v.GetString(keyUser)
	if u == "" {
		return "", fmt.Errorf("no acting user: pass --user or set LEDGER_USER")
	}
	return u, nil
}
