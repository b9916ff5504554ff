package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/microsafety/microsafety/internal/advisor"
	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/risk"
)

func newProfileCmd(flags *globalFlags) *cobra.Command {
	var (
		yes    []string
		no     []string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Compute a personal risk profile against the live risk map",
		Long: "Answers are given as question ids with --yes and --no; ids left out stay unknown.\n" +
			"Run with --help to see the question ids.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			answers, err := answersFromFlags(yes, no)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			origin, err := newUpstream(cfg, nil, nil, newLogger(cfg, os.Stderr))
			if err != nil {
				return err
			}

			risks, err := origin.RiskMap(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching risk map: %w", err)
			}
			return printProfile(cmd.OutOrStdout(), answers, risks, asJSON)
		},
	}

	ids := make([]string, 0, len(risk.QuestionSet()))
	for _, q := range risk.QuestionSet() {
		ids = append(ids, string(q.ID))
	}
	idList := strings.Join(ids, ", ")

	cmd.Flags().StringSliceVar(&yes, "yes", nil, "question ids answered yes ("+idList+")")
	cmd.Flags().StringSliceVar(&no, "no", nil, "question ids answered no")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

// answersFromFlags builds an answer set. An id given both yes and no, or one
// outside the question set, is an error.
func answersFromFlags(yes, no []string) (risk.Answers, error) {
	answers := risk.DefaultAnswers()

	set := func(ids []string, value risk.Answer) error {
		for _, raw := range ids {
			id := risk.QuestionID(strings.TrimSpace(raw))
			if _, ok := risk.LookupQuestion(id); !ok {
				return fmt.Errorf("%w: %s", risk.ErrUnknownQuestion, id)
			}
			if answers[id].Known() && answers[id] != value {
				return fmt.Errorf("question %s answered both yes and no", id)
			}
			answers[id] = value
		}
		return nil
	}

	if err := set(yes, risk.AnswerYes); err != nil {
		return nil, err
	}
	if err := set(no, risk.AnswerNo); err != nil {
		return nil, err
	}
	return answers, nil
}

type profileReport struct {
	Profile  risk.Profile        `json:"profile"`
	Heat     risk.Classification `json:"heat"`
	Fog      risk.Classification `json:"fog"`
	Dominant risk.Hazard         `json:"dominant"`
	Advice   *risk.RouteAdvice   `json:"advice,omitempty"`
	Insights []advisor.Message   `json:"insights"`
}

func printProfile(out io.Writer, answers risk.Answers, risks []feed.HazardRecord, asJSON bool) error {
	p := risk.ComputeProfile(answers, risks)
	report := profileReport{
		Profile:  p,
		Heat:     risk.Classify(p.HeatScore),
		Fog:      risk.Classify(p.FogScore),
		Dominant: risk.DominantHazard(p),
		Insights: advisor.BuildInitialInsights(p, risks),
	}
	if advice, ok := risk.PickRouteAdvice(risks, report.Dominant); ok {
		report.Advice = &advice
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "Heat: %3d/100 %s\n", p.HeatScore, report.Heat.Level)
	fmt.Fprintf(out, "Fog:  %3d/100 %s\n", p.FogScore, report.Fog.Level)
	fmt.Fprintf(out, "Dominant hazard: %s\n", report.Dominant.Label())

	if p.Unanswered {
		fmt.Fprintln(out, "Some questions are unanswered; the scores use the neutral base for them.")
	}
	for _, reason := range p.Reasons {
		fmt.Fprintf(out, "  - %s\n", reason)
	}
	if report.Advice != nil {
		fmt.Fprintf(out, "Avoid: %s (%s)\n", report.Advice.Avoid.Name, report.Advice.Avoid.Zone)
		if alt := report.Advice.Alternate; alt != nil {
			fmt.Fprintf(out, "Prefer: %s (combined risk %.1f)\n", alt.Name, alt.CombinedRisk)
		}
	}
	for _, m := range report.Insights {
		fmt.Fprintf(out, "> %s\n", m.Text)
	}
	return nil
}
