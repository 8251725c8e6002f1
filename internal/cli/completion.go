package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/buildwatch/internal/buildcfg"
	"github.com/hupe1980/buildwatch/internal/config"
)

func newCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion <shell>",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for buildwatch.

Besides subcommands and flags, the scripts complete --target engines and
ECMAScript levels, --loader names, and the log level and format values.

Bash:
  $ source <(buildwatch completion bash)

Zsh:
  $ buildwatch completion zsh > "${fpath[1]}/_buildwatch"

Fish:
  $ buildwatch completion fish > ~/.config/fish/completions/buildwatch.fish

PowerShell:
  PS> buildwatch completion powershell | Out-String | Invoke-Expression
`,
		// Completion needs no config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Args:              cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs:         []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()

			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(w, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(w)
			case "fish":
				return cmd.Root().GenFishCompletion(w, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(w)
			}

			return nil
		},
	}

	return cmd
}

// registerFlagCompletions attaches value completions to the persistent
// flags of root.
func registerFlagCompletions(root *cobra.Command) {
	fixed := func(values ...string) cobra.CompletionFunc {
		return cobra.FixedCompletions(values, cobra.ShellCompDirectiveNoFileComp)
	}

	_ = root.RegisterFlagCompletionFunc("log-level",
		fixed(config.LogLevelDebug, config.LogLevelInfo, config.LogLevelWarn, config.LogLevelError))
	_ = root.RegisterFlagCompletionFunc("log-format",
		fixed(config.LogFormatText, config.LogFormatJSON))
	_ = root.RegisterFlagCompletionFunc("target", completeTarget)
	_ = root.RegisterFlagCompletionFunc("loader", completeLoader)
}

// completeTarget offers ECMAScript levels as is and engine names as
// prefixes awaiting a version.
func completeTarget(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	out := buildcfg.ESLevels()
	out = append(out, buildcfg.EngineNames()...)

	return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

// completeLoader completes the loader half of "ext=loader".
func completeLoader(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	ext, _, ok := strings.Cut(toComplete, "=")
	if !ok {
		return nil, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
	}

	names := buildcfg.LoaderNames()
	out := make([]string, 0, len(names))

	for _, name := range names {
		out = append(out, ext+"="+name)
	}

	return out, cobra.ShellCompDirectiveNoFileComp
}
