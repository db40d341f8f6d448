package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/stockchat/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Client and assistant configuration",
	}
	cmd.AddCommand(configShowCmd(), configSetCmd(), configEditCmd(), configSaveCmd(), configCheckCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the client configuration and the assistant configuration",
		RunE: withRuntime(func(cmd *cobra.Command, _ []string, rt *runtime) error {
			raw, err := yaml.Marshal(rt.cfg)
			if err != nil {
				return err
			}
			var client map[string]any
			if err := yaml.Unmarshal(raw, &client); err != nil {
				return err
			}

			state := rt.manager.Snapshot()
			view := map[string]any{
				"client": client,
				"assistant": map[string]any{
					"apikey": state.Configuration.Credential,
					"doc":    state.Configuration.Documentation,
				},
				"conversation": map[string]any{
					"session":  state.SessionID,
					"messages": len(state.Messages),
				},
			}
			if rt.cfgPath != "" {
				view["config_file"] = rt.cfgPath
			}
			rt.redactor.RedactMap(view)

			out, err := yaml.Marshal(view)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		}),
	}
}

func configSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the API key or documentation and save them",
		RunE: withRuntime(func(cmd *cobra.Command, _ []string, rt *runtime) error {
			flags := cmd.Flags()
			if !flags.Changed("apikey") && !flags.Changed("doc") {
				return errors.New("nothing to set: pass --apikey and/or --doc")
			}
			if flags.Changed("apikey") {
				key, _ := flags.GetString("apikey")
				rt.manager.SetCredential(key)
			}
			if flags.Changed("doc") {
				doc, _ := flags.GetString("doc")
				rt.manager.SetDocumentation(doc)
			}
			return rt.manager.SaveConfiguration(cmd.Context())
		}),
	}
	cmd.Flags().String("apikey", "", "API key sent with every chat request")
	cmd.Flags().String("doc", "", "Operational documentation for the assistant")
	return cmd
}

func configEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit the assistant configuration in a form and save it",
		RunE: withRuntime(func(cmd *cobra.Command, _ []string, rt *runtime) error {
			current := rt.manager.Configuration()
			key, doc := current.Credential, current.Documentation

			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().
					Title("API Key").
					EchoMode(huh.EchoModePassword).
					Value(&key),
				huh.NewText().
					Title("Documentação").
					Description("Procedimentos operacionais usados pelo assistente").
					Lines(8).
					Value(&doc),
			))
			if err := form.Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				return fmt.Errorf("config edit: %w", err)
			}

			rt.manager.SetCredential(key)
			rt.manager.SetDocumentation(doc)
			return rt.manager.SaveConfiguration(cmd.Context())
		}),
	}
}

func configSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Write the loaded assistant configuration back to the service",
		RunE: withRuntime(func(cmd *cobra.Command, _ []string, rt *runtime) error {
			return rt.manager.SaveConfiguration(cmd.Context())
		}),
	}
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Validate a client configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			explicit, _ := cmd.Flags().GetString("config")
			if len(args) == 1 {
				explicit = args[0]
			}
			cfg, path, err := config.LoadOrDefault(explicit)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if path == "" {
				path = "built-in defaults"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK (%s, remote %q)\n", path, cfg.Remote.BaseURL)
			return nil
		},
	}
}
