package cmd

import (
	"fmt"
	"strings"

	cfgpkg "github.com/KaramelBytes/flowloom-cli/internal/config"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set flowloom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		values, err := configValues(cfg)
		if err != nil {
			return err
		}
		tw := table.NewWriter()
		tw.SetOutputMirror(out)
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"Key", "Value"})
		for _, k := range cfgpkg.Keys {
			v := values[k]
			if strings.HasSuffix(k, "api_key") {
				v = mask(v)
			}
			tw.AppendRow(table.Row{k, v})
		}
		tw.Render()
		return nil
	},
}

// configValues flattens c to key -> printable value through its yaml tags.
func configValues(c *cfgpkg.Global) (map[string]string, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprint(v)
	}
	return out, nil
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := cfgFile
		if p == "" {
			var err error
			if p, err = cfgpkg.DefaultPath(); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Example: `  flowloom config set provider ollama
  flowloom config set groq_api_key gsk_...
  flowloom config set root_label "All revenue"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := cfg.Set(key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "💾 Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
