package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dcfnet/dcf/src/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	_configFile string
	_envFile    string
	_jsonOutput bool
	_viper      *viper.Viper
)

//RootCmd is the root command for DCF
var RootCmd = &cobra.Command{
	Use:               "dcf",
	Short:             "distributed communication fabric node",
	TraverseChildren:  true,
	PersistentPreRunE: initViper,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&_configFile, "config", "f", "", "Configuration file (.json, .yaml or .toml)")
	RootCmd.PersistentFlags().StringVar(&_envFile, "env", ".env", "Environment file loaded before reading DCF_ variables")
	RootCmd.PersistentFlags().BoolVar(&_jsonOutput, "json", false, "Print results as JSON")
	RootCmd.PersistentFlags().String("log", config.DefaultLogLevel, "debug, info, warn, error, fatal, panic")
}

// initViper loads the environment file and prepares the viper instance
// commands read their configuration from.
func initViper(cmd *cobra.Command, args []string) error {
	if _envFile != "" {
		if err := godotenv.Load(_envFile); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	_viper = config.NewViper(_configFile)

	if _configFile != "" {
		if err := _viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading %s: %v", _configFile, err)
		}
	}

	return nil
}

// loadConfig builds the node configuration from the file, the environment and
// the flags bound so far.
func loadConfig() (*config.Config, error) {
	return config.FromViper(_viper)
}

// output prints v as JSON with --json, and in a human-readable form otherwise.
func output(w io.Writer, v interface{}) error {
	if _jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	switch t := v.(type) {
	case map[string]string:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s: %s\n", k, t[k])
		}
	case fmt.Stringer:
		fmt.Fprintln(w, t.String())
	default:
		fmt.Fprintf(w, "%+v\n", t)
	}
	return nil
}
