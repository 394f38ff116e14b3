package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type configKind int

const (
	kindString configKind = iota
	kindInt
	kindBool
)

// configKey is a setting that can be stored in the config file.
type configKey struct {
	Name  string
	Kind  configKind
	Usage string
}

// configKeys lists every key the config command accepts, in display order.
var configKeys = []configKey{
	{"extract.vcf", kindString, "input VCF for extract"},
	{"extract.output", kindString, "CSV feature table written by extract"},
	{"extract.duckdb", kindString, "optional DuckDB copy of the feature table"},
	{"train.features", kindString, "feature table read by train (CSV or .duckdb/.db)"},
	{"train.model", kindString, "model file written by train"},
	{"train.workers", kindInt, "trees fitted in parallel, 0 for all CPUs"},
	{"verbose", kindBool, "debug logging"},
}

func lookupConfigKey(name string) (configKey, error) {
	for _, k := range configKeys {
		if k.Name == name {
			return k, nil
		}
	}
	names := make([]string, len(configKeys))
	for i, k := range configKeys {
		names[i] = k.Name
	}
	return configKey{}, fmt.Errorf("unknown config key %q (valid keys: %s)", name, strings.Join(names, ", "))
}

func newConfigCmd() *cobra.Command {
	var usage strings.Builder
	for _, k := range configKeys {
		fmt.Fprintf(&usage, "  %-16s %s\n", k.Name, k.Usage)
	}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage variantqc configuration",
		Long: "Show, get, or set configuration values. Config is stored in ~/" + configName + ".yaml.\n" +
			"Command-line flags override config values.\n\nKeys:\n" + usage.String(),
		Example: `  variantqc config                                       # show effective settings
  variantqc config set extract.vcf calls/merged.vcf.gz   # change the input VCF
  variantqc config set train.workers 4                   # limit training parallelism
  variantqc config get train.model                       # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd.OutOrStdout(), args[0])
		},
	}
}

// runConfigShow prints the effective value of every key, grouped by command.
func runConfigShow(w io.Writer) error {
	settings := make(map[string]any)
	for _, k := range configKeys {
		section, name, nested := strings.Cut(k.Name, ".")
		if !nested {
			settings[k.Name] = viper.Get(k.Name)
			continue
		}
		group, ok := settings[section].(map[string]any)
		if !ok {
			group = make(map[string]any)
			settings[section] = group
		}
		group[name] = viper.Get(k.Name)
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if used := viper.ConfigFileUsed(); used != "" && fileExists(used) {
		fmt.Fprintf(w, "# Config file: %s\n", used)
	} else {
		fmt.Fprintf(w, "# No config file. Defaults from ~/%s.yaml or flags\n", configName)
	}
	fmt.Fprint(w, string(out))
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func parseConfigValue(k configKey, value string) (any, error) {
	switch k.Kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s: expected an integer, got %q", k.Name, value)
		}
		return n, nil
	case kindBool:
		switch value {
		case "true", "yes", "on":
			return true, nil
		case "false", "no", "off":
			return false, nil
		}
		return nil, fmt.Errorf("%s: expected true or false, got %q", k.Name, value)
	}
	return value, nil
}

func runConfigSet(w io.Writer, key, value string) error {
	k, err := lookupConfigKey(key)
	if err != nil {
		return err
	}
	v, err := parseConfigValue(k, value)
	if err != nil {
		return err
	}
	viper.Set(key, v)

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, configName+".yaml")
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(w, "Set %s = %v in %s\n", key, v, cfgFile)
	return nil
}

func runConfigGet(w io.Writer, key string) error {
	if _, err := lookupConfigKey(key); err != nil {
		return err
	}
	fmt.Fprintln(w, viper.Get(key))
	return nil
}
