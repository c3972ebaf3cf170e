package main

import (
	"github.com/spf13/cobra"

	"github.com/soothill/powerlogger/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			if cc.Flags.JSON {
				return writeJSON(cc.Out, configJSON(cc.Cfg))
			}

			return config.RenderEffective(cc.Cfg, cc.Out)
		},
	}
}

type effectiveConfigJSON struct {
	ConfigPath  string         `json:"config_path"`
	ConfigFound bool           `json:"config_found"`
	Host        string         `json:"host"`
	Org         string         `json:"org"`
	TokenSource string         `json:"token_source,omitempty"`
	LedgerPath  string         `json:"ledger_path"`
	Settings    *config.Config `json:"settings"`
}

// configJSON never includes the token itself.
func configJSON(r *config.Resolved) effectiveConfigJSON {
	return effectiveConfigJSON{
		ConfigPath:  r.ConfigPath,
		ConfigFound: r.ConfigFound,
		Host:        r.Connection.Host,
		Org:         r.Connection.Org,
		TokenSource: r.TokenSource,
		LedgerPath:  r.LedgerPath,
		Settings:    r.Config,
	}
}
