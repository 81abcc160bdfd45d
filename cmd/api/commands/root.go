package commands

import "github.com/spf13/cobra"

// NewRootCommand assembles the kela-diary command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "kela-diary",
		Short:         "Kela Diary API Server",
		Long:          `Kela Diary keeps notes, todos, kanban boards, a calendar built from their due dates, AI chat sessions and UI themes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default ./keladiary.toml or $HOME/.config/keladiary/keladiary.toml)")

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewExportCommand())
	rootCmd.AddCommand(NewImportCommand())
	rootCmd.AddCommand(NewBackupCommand())
	rootCmd.AddCommand(NewUserCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewVersionCommand())
	return rootCmd
}
