package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/stimsync/internal/config"
	"github.com/roach88/stimsync/internal/session"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Script string
}

// ValidationResult is the validate command's result.
type ValidationResult struct {
	Valid      bool            `json:"valid"`
	Config     *config.Session `json:"config,omitempty"`
	Modalities []string        `json:"modalities,omitempty"`
	Steps      int             `json:"script_steps,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a session config (and script) without running it",
		Long: `Validate a session config against the schema, with environment
overrides applied, and optionally check that a script parses and only targets
modalities the config enables.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Script, "script", "", "YAML script to check against the config")

	return cmd
}

func runValidate(opts *ValidateOptions, configPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := config.Load(configPath)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeConfig, "invalid session config", err)
	}

	result := ValidationResult{Valid: true, Config: cfg}
	enabled := make(map[string]bool)
	for _, m := range cfg.Modalities() {
		result.Modalities = append(result.Modalities, string(m))
		enabled[string(m)] = true
	}

	if opts.Script != "" {
		script, err := session.LoadScript(opts.Script)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeScript, "invalid script", err)
		}
		for _, m := range script.Modalities() {
			if !enabled[string(m)] {
				return formatter.Fail(ExitFailure, ErrCodeScript,
					"script targets modality "+string(m)+" which the config does not enable", nil)
			}
		}
		result.Steps = len(script.Steps)
	}

	formatter.VerboseLog("database: %s, cadence: %s", cfg.Database, cfg.Cadence)
	return formatter.Report(result, []string{"✓ " + cfg.Name + " is valid"})
}
