package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	mcpadapter "github.com/vectorscan/fault-diagnosis/internal/adapters/mcp"
	"github.com/vectorscan/fault-diagnosis/internal/bootstrap"
	"github.com/vectorscan/fault-diagnosis/internal/config"
	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
	"github.com/vectorscan/fault-diagnosis/internal/core/usecase"
	"github.com/vectorscan/fault-diagnosis/internal/infrastructure/auth"
	"github.com/vectorscan/fault-diagnosis/internal/infrastructure/extractor/faultsheet"
	"github.com/vectorscan/fault-diagnosis/internal/observability/logging"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "faultctl",
		Short:         "Operate the shipboard fault diagnosis service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newIngestCommand())
	cmd.AddCommand(newDiagnoseCommand())
	cmd.AddCommand(newMCPCommand())
	cmd.AddCommand(newHashPasswordCommand())
	cmd.AddCommand(newStatsCommand())
	return cmd
}

// openApp logs to stderr so stdout stays free for command output and the MCP protocol.
func openApp(ctx context.Context) (*bootstrap.App, error) {
	cfg := config.Load()
	logging.Setup(os.Stderr, "faultctl", cfg.LogLevel)
	return bootstrap.New(ctx, cfg, "faultctl")
}

func newIngestCommand() *cobra.Command {
	var direct bool
	cmd := &cobra.Command{
		Use:   "ingest <file.csv|file.xlsx>",
		Short: "Load fault history from a spreadsheet and queue it for indexing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := faultsheet.ReadFile(args[0])
			if err != nil {
				return err
			}

			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			var n int
			if direct {
				if app.IndexUC == nil {
					return errors.New("direct indexing requires an embedding provider (set LLM_PROVIDER)")
				}
				n, err = app.IndexUC.Index(cmd.Context(), records)
			} else {
				queue, qerr := app.OpenQueue()
				if qerr != nil {
					return qerr
				}
				n, err = usecase.NewPublishFaultsUseCase(queue).Publish(cmd.Context(), records)
			}
			if err != nil {
				return fmt.Errorf("ingest %s: %d of %d records processed: %w", args[0], n, len(records), err)
			}

			verb := "queued"
			if direct {
				verb = "indexed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d of %d records from %s\n", verb, n, len(records), args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&direct, "direct", false, "Embed and upsert records in-process instead of publishing to NATS")
	return cmd
}

func newDiagnoseCommand() *cobra.Command {
	var (
		ship   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "diagnose [fault description]",
		Short: "Diagnose a fault; reads the description from stdin when no argument is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" {
				data, err := io.ReadAll(bufio.NewReader(cmd.InOrStdin()))
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}

			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			d, err := app.DiagnoseUC.Diagnose(cmd.Context(), text, ship)
			if err != nil {
				if domain.IsKind(err, domain.ErrEmptyInput) {
					return errors.New("fault description is empty")
				}
				return err
			}
			return writeDiagnosis(cmd.OutOrStdout(), d, asJSON)
		},
	}
	cmd.Flags().StringVar(&ship, "ship", domain.UnrestrictedScope, "Ship scope for similar faults")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the structured result as JSON")
	return cmd
}

func newMCPCommand() *cobra.Command {
	var ship string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the diagnose_fault tool over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			return mcpadapter.NewServer(app.DiagnoseUC, version, ship).ServeStdio()
		},
	}
	cmd.Flags().StringVar(&ship, "ship", domain.UnrestrictedScope, "Default ship scope when a call names none")
	return cmd
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its bcrypt hash for the users file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("read password: %w", err)
			}
			hash, err := auth.HashPassword(strings.TrimRight(line, "\r\n"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newStatsCommand() *cobra.Command {
	var (
		by     string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "stats <file.csv|file.xlsx>",
		Short: "Count fault history entries by equipment or by fault description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dimension, err := usecase.ParseStatsDimension(by)
			if err != nil {
				return err
			}
			records, err := faultsheet.ReadFile(args[0])
			if err != nil {
				return err
			}
			return writeCounts(cmd.OutOrStdout(), dimension, usecase.CountFaults(records, dimension), asJSON)
		},
	}
	cmd.Flags().StringVar(&by, "by", string(usecase.StatsByEquipment), "Group by equipment or fault")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the counts as JSON")
	return cmd
}
