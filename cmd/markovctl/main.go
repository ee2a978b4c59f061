// Command markovctl trains chains from a corpus file and prints melodies,
// transition tables and API tokens without running the server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	corpusPath string
	order      int
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "markovctl",
	Short: "Markov chain tooling for MIDI pitch and duration sequences",
	Long: `markovctl learns first- or second-order Markov chains from a corpus of
MIDI material and works with them offline.

A corpus is a YAML (or JSON) file:

  pitches:   [[60, 62, 64, 62, 60]]
  notes:     [[C4, E4, G4, E4]]
  durations: [[480, 240, 480, 240, 480]]
  messages:
    - {type: note_on, note: 60, velocity: 90, tick: 0}
    - {type: note_off, note: 60, tick: 240}`,
	SilenceUsage: true,
}

// composeCmd generates a melody from the corpus
var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Generate note events from a corpus",
	Long: `Fits a pitch chain and a duration chain on the corpus and prints the
generated note_on/note_off events as JSON.

Example:
  markovctl compose --corpus melody.yaml --length 32 --seed 7`,
	RunE: runCompose,
}

// tableCmd prints a transition table
var tableCmd = &cobra.Command{
	Use:   "table [pitch|duration]",
	Short: "Print the learned transition table as JSON",
	Long: `Fits one chain on the corpus and prints its normalized transitions.
First-order chains print the full matrix; second-order chains print the
most frequent contexts.

Example:
  markovctl table pitch --corpus melody.yaml --order 2 --top 10`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"pitch", "duration"},
	RunE:      runTable,
}

// tokenCmd issues a bearer token for AUTH_MODE=jwt
var tokenCmd = &cobra.Command{
	Use:   "token [user-id]",
	Short: "Issue a signed API token",
	Long: `Signs an HS256 token accepted by the API when AUTH_MODE=jwt.
The secret is read from --secret or JWT_SECRET.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&corpusPath, "corpus", "c", "", "Corpus file (YAML or JSON)")
	rootCmd.PersistentFlags().IntVarP(&order, "order", "o", 1, "Chain order (1 or 2)")

	composeCmd.Flags().Int("length", 16, "Number of notes to generate")
	composeCmd.Flags().Int64("seed", 0, "Random seed (default: time based)")
	composeCmd.Flags().String("strategy", "sample", "Next-state strategy: sample or argmax")
	composeCmd.Flags().Int("velocity", 0, "Note-on velocity (default 110)")

	tableCmd.Flags().Int("top", 15, "Second-order contexts to print (negative for all)")

	tokenCmd.Flags().String("secret", "", "Signing secret (or set JWT_SECRET env)")
	tokenCmd.Flags().String("role", "user", "Role claim: user or admin")
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (default 24h)")

	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(tableCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
