package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sentinel-cycle/engine/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "print the resolved configuration (defaults, file, env overrides)",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := config.NewViper(configPathFlag)
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}

			fmt.Println("Resolved configuration:")
			fmt.Print(string(out))
			fmt.Printf("LLM timeout:      %s\n", cfg.LLMTimeout())
			fmt.Printf("Verifier timeout: %s\n", cfg.VerifierTimeout())
			return nil
		},
	}
	return cmd
}
