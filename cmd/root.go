/*
Package cmd implements the command-line interface for the conscious memory
service. It provides commands for running the sync daemon, triggering
one-shot reconciliations, and inspecting the stored collection.
*/
package cmd

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/theapemachine/conscious-go/pkg/logging"
)

/*
Embed a mini filesystem into the binary to hold the default config file.
This will be written to the home directory of the user running the service,
which allows a developer to easily override the config file.
*/
//go:embed cfg/*
var embedded embed.FS

/*
rootCmd represents the base command when called without any subcommands
*/
var (
	projectName     = "conscious-go"
	cfgFile         string
	openaiAPIKey    string
	anthropicAPIKey string
	debugFlag       bool

	rootCmd = &cobra.Command{
		Use:   "conscious-go",
		Short: "A long-term memory service backed by a vector store and a knowledge graph",
		Long:  longRoot,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(debugFlag)
		},
	}
)

/*
Execute is the main entry point for the CLI. It initializes the root command
and executes it.
*/
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yml",
		"config file (default is $HOME/."+projectName+"/config.yml)",
	)

	rootCmd.PersistentFlags().StringVar(
		&openaiAPIKey,
		"openai-api-key",
		os.Getenv("OPENAI_API_KEY"),
		"API key for the OpenAI provider",
	)

	rootCmd.PersistentFlags().StringVar(
		&anthropicAPIKey,
		"anthropic-api-key",
		os.Getenv("ANTHROPIC_API_KEY"),
		"API key for the Anthropic provider",
	)

	rootCmd.PersistentFlags().BoolVar(
		&debugFlag,
		"debug",
		false,
		"enable debug logging",
	)
}

/*
initConfig writes the default config file to the user's home directory if it
doesn't exist, and then reads the config file from there.
*/
func initConfig() {
	logger := logging.Named("config")

	if err := writeConfig(); err != nil {
		logger.Fatal("failed to bootstrap config", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	home, _ := os.UserHomeDir()
	viper.AddConfigPath(home + "/." + projectName)

	if err := viper.ReadInConfig(); err != nil {
		logger.Fatal("failed to read config", "error", err)
	}

	// Keys provided via flags take precedence over the environment.
	if openaiAPIKey != "" {
		_ = os.Setenv("OPENAI_API_KEY", openaiAPIKey)
	}
	if anthropicAPIKey != "" {
		_ = os.Setenv("ANTHROPIC_API_KEY", anthropicAPIKey)
	}
}

/*
writeConfig writes the default config file to the user's home directory.
*/
func writeConfig() (err error) {
	var (
		home, _ = os.UserHomeDir()
		fh      fs.File
		buf     bytes.Buffer
	)

	configDir := home + "/." + projectName
	if !checkFileExists(configDir) {
		if err = os.MkdirAll(configDir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	for _, file := range []string{cfgFile} {
		fullPath := configDir + "/" + file

		if checkFileExists(fullPath) {
			continue
		}

		if fh, err = embedded.Open("cfg/" + file); err != nil {
			return fmt.Errorf("failed to open embedded config file: %w", err)
		}

		if _, err = io.Copy(&buf, fh); err != nil {
			fh.Close()
			return fmt.Errorf("failed to read embedded config file: %w", err)
		}

		if err = os.WriteFile(fullPath, buf.Bytes(), 0644); err != nil {
			fh.Close()
			return fmt.Errorf("failed to write config file: %w", err)
		}

		buf.Reset()
		fh.Close()
	}

	return nil
}

func checkFileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return !errors.Is(err, os.ErrNotExist)
}

var longRoot = `
conscious-go is a long-term memory service for AI agents. Memories live in a
vector store for hybrid semantic and keyword search, while a background sync
engine projects them into a knowledge graph of entities and relationships.
`
