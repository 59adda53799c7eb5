package cli

import (
	"fmt"
	"os"

	"daypo-quiz-service/internal/config"
	"github.com/spf13/cobra"
)

// NewImportCmd loads a Daypo XML export into the configured database.
func NewImportCmd(configPath *string) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "import <file.xml>",
		Short: "Import a Daypo XML export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}
			if cfg.Backend() == config.BackendMemory {
				return fmt.Errorf("no database configured: set postgres.url or sqlite.path")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			svc, err := buildServices(cfg, b)
			if err != nil {
				return err
			}
			quiz, err := svc.quizzes.ImportXML(cmd.Context(), f, title)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported quiz %d: %s\n", quiz.ID, quiz.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "override the title found in the document")
	return cmd
}
