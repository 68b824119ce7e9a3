// Command ieltsctl scores answers and manages results in a local SQLite
// store, without Redis or PostgreSQL.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stemsi/ielts-mock/internal/answerkey"
	"github.com/stemsi/ielts-mock/internal/logger"
	"github.com/stemsi/ielts-mock/internal/notify"
	"github.com/stemsi/ielts-mock/internal/repository"
	"github.com/stemsi/ielts-mock/internal/service"
	"github.com/stemsi/ielts-mock/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand needs. It is filled in before a
// subcommand runs.
type app struct {
	dbPath   string
	keysFile string
	verbose  bool

	log      zerolog.Logger
	db       *store.SQLStore
	notifier *notify.Dispatcher
	catalog  *answerkey.Catalog
	eval    *service.EvaluationService
	results *service.ResultService
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "ieltsctl",
		Short:         "Score IELTS mock answers and manage stored results",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.dbPath, "db", envOr("IELTS_DB", "ielts.db"), "path to the SQLite database")
	root.PersistentFlags().StringVar(&a.keysFile, "keys", envOr("ANSWER_KEYS_FILE", ""), "YAML answer key file (built-in keys when empty)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(newScoreCmd(a), newKeysCmd(a), newResultsCmd(a))
	return root
}

func (a *app) open() error {
	a.log = zerolog.Nop()
	if a.verbose {
		a.log = logger.Setup("debug", "auto", "")
	}

	a.catalog = answerkey.Default()
	if a.keysFile != "" {
		c, err := answerkey.LoadFile(a.keysFile)
		if err != nil {
			return err
		}
		a.catalog = c
	}

	db, err := store.OpenSQLite(a.dbPath)
	if err != nil {
		return err
	}
	a.db = db

	a.notifier = notify.NewDispatcher(notify.NewLogSender(a.log), 0, a.log)
	a.eval = service.NewEvaluationService(a.catalog, a.log)
	a.results = service.NewResultService(repository.NewKVResultRepository(db), a.eval, a.notifier, a.log)
	return nil
}

func (a *app) close() error {
	if a.notifier != nil {
		a.notifier.Wait()
	}
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
