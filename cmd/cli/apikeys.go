package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anstrom/netprobe/internal/auth"
)

var apiKeyOutput string

// apiKeysCmd represents the apikey command group
var apiKeysCmd = &cobra.Command{
	Use:     "apikey",
	Aliases: []string{"apikeys", "keys", "key"},
	Short:   "Generate and hash API keys",
	Long: `Generate and hash API keys for the HTTP API.

The service never stores keys, only their bcrypt hashes. Put the hashes
under api.api_key_hashes in the config file and set api.auth_enabled.
Clients send the key in the X-API-Key header or as a Bearer token; the
CLI reads it from NETPROBE_API_KEY.`,
	Example: `  netprobe apikey generate
  netprobe apikey hash np_abcdefghijklmnopqrstuvwxyz234567
  echo "$KEY" | netprobe apikey hash -`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// apiKeysGenerateCmd creates a new key and its hash
var apiKeysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new API key and its hash",
	Long: `Generate a random API key and print it with its bcrypt hash.

The key is shown only once. Give the key to the client and put the hash
in the service configuration.`,
	Args: cobra.NoArgs,
	RunE: runAPIKeysGenerate,
}

// apiKeysHashCmd hashes an existing key
var apiKeysHashCmd = &cobra.Command{
	Use:   "hash KEY",
	Short: "Print the bcrypt hash of an API key",
	Long:  `Print the bcrypt hash of an API key. Pass - to read the key from stdin.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeysHash,
}

func init() {
	rootCmd.AddCommand(apiKeysCmd)
	apiKeysCmd.AddCommand(apiKeysGenerateCmd)
	apiKeysCmd.AddCommand(apiKeysHashCmd)

	apiKeysGenerateCmd.Flags().StringVarP(&apiKeyOutput, "output", "o", outputTable, "Output format: table, json, yaml")
}

// generatedKey is the structured output of apikey generate.
type generatedKey struct {
	Key    string `json:"key" yaml:"key"`
	Prefix string `json:"prefix" yaml:"prefix"`
	Hash   string `json:"hash" yaml:"hash"`
}

func runAPIKeysGenerate(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(apiKeyOutput); err != nil {
		return err
	}

	key, err := auth.GenerateAPIKey()
	if err != nil {
		return fmt.Errorf("failed to generate API key: %w", err)
	}
	hash, err := auth.HashAPIKey(key)
	if err != nil {
		return fmt.Errorf("failed to hash API key: %w", err)
	}

	out := generatedKey{Key: key, Prefix: auth.DisplayPrefix(key), Hash: hash}
	if apiKeyOutput != outputTable {
		return writeStructured(cmd.OutOrStdout(), apiKeyOutput, out)
	}
	return displayGeneratedKey(cmd.OutOrStdout(), out)
}

func displayGeneratedKey(w io.Writer, k generatedKey) error {
	_, err := fmt.Fprintf(w, `API key (shown once): %s
Hash:                 %s

Add the hash to the service configuration:

  api:
    auth_enabled: true
    api_key_hashes:
      - "%s"

and give the key to the client:

  export NETPROBE_API_KEY=%s
`, k.Key, k.Hash, k.Hash, k.Key)
	return err
}

func runAPIKeysHash(cmd *cobra.Command, args []string) error {
	key, err := readKeyArg(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	if !auth.IsValidAPIKeyFormat(key) {
		return fmt.Errorf("%q is not a netprobe API key, generate one with 'netprobe apikey generate'",
			auth.DisplayPrefix(key))
	}

	hash, err := auth.HashAPIKey(key)
	if err != nil {
		return fmt.Errorf("failed to hash API key: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
	return err
}

// readKeyArg returns arg, or the first line of in when arg is "-".
func readKeyArg(arg string, in io.Reader) (string, error) {
	if arg != "-" {
		return strings.TrimSpace(arg), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read API key from stdin: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return "", fmt.Errorf("no API key on stdin")
	}
	return key, nil
}
