package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"survey-flow-service/internal/app"
	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/flow"
)

// NewValidateCmd checks a survey definition file offline and prints the report.
func NewValidateCmd() *cobra.Command {
	var (
		absentNext   string
		maxQuestions int
	)
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate the branching structure of a YAML or JSON survey file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := flow.ParseAbsentNextPolicy(absentNext)
			if err != nil {
				return err
			}
			survey, err := loadSurveyFile(args[0])
			if err != nil {
				return err
			}
			if maxQuestions <= 0 {
				maxQuestions = app.DefaultMaxQuestions
			}
			if len(survey.Questions) > maxQuestions {
				return fmt.Errorf("%w: %d questions, limit is %d", domain.ErrSurveyTooLarge, len(survey.Questions), maxQuestions)
			}

			report := flow.Validate(survey.Questions, policy)
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if !report.Valid {
				return fmt.Errorf("%w: %s", domain.ErrInvalidStructure, report.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&absentNext, "absent-next", string(flow.AbsentSequential), "meaning of a missing next step: sequential or end")
	cmd.Flags().IntVar(&maxQuestions, "max-questions", app.DefaultMaxQuestions, "largest survey accepted")
	return cmd
}

// loadSurveyFile decodes a survey; YAML goes through JSON so both formats share the
// domain JSON decoding.
func loadSurveyFile(path string) (domain.Survey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Survey{}, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return domain.Survey{}, fmt.Errorf("parse %s: %w", path, err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return domain.Survey{}, fmt.Errorf("convert %s: %w", path, err)
		}
	}

	var survey domain.Survey
	if err := json.Unmarshal(data, &survey); err != nil {
		return domain.Survey{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return survey, nil
}
