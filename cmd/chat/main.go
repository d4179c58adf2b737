package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/ask-widget/internal/chat"
	"github.com/suPer8Hu/ask-widget/internal/config"
	"github.com/suPer8Hu/ask-widget/internal/history"
	"github.com/suPer8Hu/ask-widget/internal/logx"
	"github.com/suPer8Hu/ask-widget/internal/relayclient"
	"github.com/suPer8Hu/ask-widget/internal/session"
	"github.com/suPer8Hu/ask-widget/internal/stream"
	"github.com/suPer8Hu/ask-widget/internal/terminal"
)

var (
	relayURL  string
	companyID string
	storeKind string
	storePath string
	profile   string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "ask-widget-chat",
	Short: "Chat with the question-answering backend from a terminal",
	Long: `A terminal client for the ask relay.

Conversations are kept in a local store (sqlite file, redis or memory) and
resumed on the next start when they belong to the same company.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logx.SetVerbose(verbose)
	},
	RunE: run,
}

func init() {
	cfg := config.Load()
	logx.SetLevel(logx.ParseLevel(cfg.LogLevel))

	f := rootCmd.Flags()
	f.StringVar(&relayURL, "relay", cfg.RelayURL, "base URL of the relay API")
	f.StringVar(&companyID, "company", cfg.DefaultCompanyID, "company whose knowledge base answers")
	f.StringVar(&storeKind, "store", cfg.StoreBackend, "session store: sqlite, redis or memory")
	f.StringVar(&storePath, "store-path", cfg.StorePath, "sqlite file, or redis address for --store redis")
	f.StringVar(&profile, "profile", "default", "namespace separating independent local profiles")
	f.BoolVarP(&verbose, "verbose", "v", false, "log language scores and stream details")
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, closeStorage, err := openStorage(storeKind, storePath, profile)
	if err != nil {
		return err
	}
	defer closeStorage()

	relay := relayclient.New(relayURL)
	store := session.NewStore(storage)
	view := terminal.NewView(cmd.OutOrStdout())

	svc := chat.NewService(
		store,
		history.NewSyncer(store, relay),
		stream.NewConsumer(store, relay),
		relay,
		view,
	)
	view.Position = func(sessionID string) int {
		if s := store.GetSession(sessionID); s != nil {
			return len(s.Messages)
		}
		return 0
	}

	svc.Open(ctx, companyID)
	return terminal.NewREPL(svc, view).Run(ctx, cmd.InOrStdin())
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
