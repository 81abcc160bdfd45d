package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keladiary/core/internal/infrastructure/server"
)

var dataKinds = []string{"notes", "todos", "chat"}

// NewExportCommand creates the export command
func NewExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "export {notes|todos|chat}",
		Short:     "Export a collection as JSON",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: dataKinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *server.App) error {
				switch args[0] {
				case "notes":
					return writeJSON(cmd, app.Notes.Export())
				case "todos":
					return writeJSON(cmd, app.Todos.Export())
				default:
					return writeJSON(cmd, app.Chat.ExportSessions())
				}
			})
		},
	}
	cmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
	return cmd
}

// NewImportCommand creates the import command
func NewImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "import {notes|todos|chat} FILE",
		Short:     "Replace a collection with the records in a JSON export",
		Long:      "Import accepts an export envelope or a bare array. Invalid records are skipped. A document that is not an array or export envelope leaves the collection untouched.",
		Args:      cobra.ExactArgs(2),
		ValidArgs: dataKinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[1], err)
			}

			return withApp(cmd, func(ctx context.Context, app *server.App) error {
				var n int
				switch args[0] {
				case "notes":
					n, err = app.Notes.Import(ctx, data)
				case "todos":
					n, err = app.Todos.Import(ctx, data)
				case "chat":
					res := app.Chat.ImportSessions(ctx, data)
					if !res.Success {
						err = errors.New(res.Message)
					}
					n = res.Imported
				default:
					return fmt.Errorf("unknown collection %q, expected one of %v", args[0], dataKinds)
				}
				if err != nil {
					return fmt.Errorf("import failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d %s\n", n, args[0])
				return nil
			})
		},
	}
}

// NewBackupCommand creates the chat backup command
func NewBackupCommand() *cobra.Command {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Chat backup commands",
	}

	backupCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored chat backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *server.App) error {
				backups, err := app.Chat.Backups(ctx)
				if err != nil {
					return err
				}
				if len(backups) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No backups")
					return nil
				}
				for _, b := range backups {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", b.Key, b.Date.Local().Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	})

	backupCmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Snapshot the current chat sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *server.App) error {
				key, err := app.Chat.CreateBackup(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created backup %s\n", key)
				return nil
			})
		},
	})

	backupCmd.AddCommand(&cobra.Command{
		Use:   "restore KEY",
		Short: "Replace chat sessions with a stored backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *server.App) error {
				if err := app.Chat.RestoreFromBackup(ctx, args[0]); err != nil {
					return fmt.Errorf("restore failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d sessions from %s\n", len(app.Chat.Sessions("")), args[0])
				return nil
			})
		},
	})

	return backupCmd
}
