// coffee — инструмент командной строки для наблюдения за планировщиком
// random coffee через HTTP API и RabbitMQ.
//
// Использование:
//
//	coffee [--api-url URL] [--json] <command> [args] [flags]
//
// Команды:
//
//	lease     Кто сейчас владеет lease
//	scope     Scope и их фазы
//	cycle     Циклы и группы
//	history   История встреч scope
//	preview   Пробное распределение без commit
//	watch     События циклов из RabbitMQ
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/randomcoffee/internal/cli"
	"github.com/shaiso/randomcoffee/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "coffee",
		Short:         "Random coffee CLI — inspect the pairing scheduler",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("COFFEE_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	// Логи reconnect'ов watch идут в stderr, чтобы не смешиваться с данными
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: telemetry.LogLevel()}))

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewLeaseCmd(clientFn, outputFn),
		cli.NewScopeCmd(clientFn, outputFn),
		cli.NewCycleCmd(clientFn, outputFn),
		cli.NewHistoryCmd(clientFn, outputFn),
		cli.NewPreviewCmd(clientFn, outputFn),
		cli.NewWatchCmd(outputFn, logger),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
