package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

var configShowFile bool

// formatSettings renders cfg as TOML and tags every line whose value was
// overridden with its source.
func formatSettings(cfg *Config, sources map[string]string) (string, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("cannot marshal config: %w", err)
	}

	var b strings.Builder
	section := ""
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			section = strings.Trim(trimmed, "[]")
		} else if key, _, ok := strings.Cut(trimmed, " = "); ok {
			if src, ok := sources[section+"."+key]; ok {
				line += "  # from " + src
			}
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String(), scanner.Err()
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or change CLI settings",
	Long: `Inspect or change the settings in ~/.agentdesk/config.toml.

AGENTDESK_* environment variables and the --base-url, --theme and --log-level
flags override the file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Long:  "Print the settings commands actually use, marking values that come from the environment or flags. --file prints the config file as stored.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configShowFile {
			path, err := configPath()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if os.IsNotExist(err) {
				fmt.Printf("%s does not exist. Run 'agentdesk init <base-url>' to create it.\n", path)
				return nil
			}
			if err != nil {
				return fmt.Errorf("cannot read config file: %w", err)
			}
			fmt.Print(string(data))
			return nil
		}

		cfg, sources, err := resolveSettings()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		out, err := formatSettings(cfg, sources)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <section.field> <value>",
	Short: "Store a value in the config file",
	Long:  "Store a value in the config file. Keys: default.{environment,base_url,timeout}, stream.{max_retries,transport}, ui.{theme,themes_dir}, log.level.\nExample: agentdesk config set stream.transport websocket",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		if env, ok := envBindings[args[0]]; ok && os.Getenv(env) != "" {
			fmt.Printf("Set %s = %s (currently overridden by %s)\n", args[0], args[1], env)
			return nil
		}
		fmt.Printf("Set %s = %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowFile, "file", false, "Print the config file as stored")

	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
