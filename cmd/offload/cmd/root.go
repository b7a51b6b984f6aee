package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/offloadkit/offload"
)

var rootCmd = &cobra.Command{
	Use:   "offload",
	Short: "Payload offloading CLI",
	Long:  "Offload oversized JSON payloads to a local store and resolve them back.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/offload/config.yaml)")
	rootCmd.PersistentFlags().String("store-dir", "", "payload store directory (default: ~/.local/share/offload)")
	rootCmd.PersistentFlags().Int("concurrency", 4, "number of files processed in parallel")

	viper.BindPFlag("store_dir", rootCmd.PersistentFlags().Lookup("store-dir"))
	viper.BindPFlag("concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("OFFLOAD")
	viper.AutomaticEnv()
	viper.SetDefault("store_dir", defaultStoreDir())
	viper.SetDefault("min_size", offload.SizeStateMachine)
	viper.SetDefault("selector", "")

	viper.ReadInConfig()
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "offload")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "offload")
	}
	return ".offload"
}

func defaultStoreDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "offload")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "offload")
	}
	return ".offload"
}

func getStoreDir() string { return viper.GetString("store_dir") }
func getConcurrency() int { return viper.GetInt("concurrency") }
func getMinSize() int64   { return viper.GetInt64("min_size") }
func getSelector() string { return viper.GetString("selector") }
