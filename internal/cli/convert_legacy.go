package cli

import (
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"survey-flow-service/internal/config"
	pgstore "survey-flow-service/internal/infra/postgres"
)

// NewConvertLegacyCmd rewrites answers stored in the old text/JSON columns into the
// unified answer_value column.
func NewConvertLegacyCmd(configPath *string) *cobra.Command {
	var surveyID int64
	cmd := &cobra.Command{
		Use:   "convert-legacy",
		Short: "Convert legacy answer rows of a survey to the unified format",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			configureLogging(cfg)
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			store := pgstore.NewAnswerStore(pool, pgstore.NewSurveyLoader(pool))
			converted, skipped, err := store.ConvertLegacyAnswers(cmd.Context(), surveyID)
			if err != nil {
				return err
			}
			log.WithField("survey_id", surveyID).Infof("%d converted, %d skipped", converted, skipped)
			return nil
		},
	}
	cmd.Flags().Int64Var(&surveyID, "survey", 0, "survey id")
	_ = cmd.MarkFlagRequired("survey")
	return cmd
}
