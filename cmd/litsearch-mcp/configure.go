package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassword is a var (not a direct call) so tests can stub it out,
// matching cmd/pulse's own term.ReadPassword indirection.
var readPassword = term.ReadPassword

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Interactively set provider API keys in .env",
	RunE:  runConfigure,
}

// providerEnvKeys are the <PROVIDER>_API_KEY variables config.Load reads.
// pubmed and crossref accept an optional key for a higher NCBI/Crossref
// rate tier; the rest are keyless in practice but listed for completeness.
var providerEnvKeys = []string{
	"PUBMED_API_KEY",
	"CROSSREF_API_KEY",
	"UNPAYWALL_API_KEY",
}

func runConfigure(cmd *cobra.Command, args []string) error {
	fmt.Println("litsearch-mcp configuration")
	fmt.Println("Leave a field blank to keep it unset.")

	values := make(map[string]string, len(providerEnvKeys))
	for _, key := range providerEnvKeys {
		fmt.Printf("%s: ", key)
		secret, err := readPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading %s: %w", key, err)
		}
		value := strings.TrimSpace(string(secret))
		if value != "" {
			values[key] = value
		}
	}

	return writeEnvFile(".env", values)
}

// writeEnvFile merges values into path, preserving any existing lines
// it doesn't touch.
func writeEnvFile(path string, values map[string]string) error {
	existing := make(map[string]string)
	var order []string

	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			k, v, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			existing[k] = v
			order = append(order, k)
		}
		f.Close()
	}

	for k, v := range values {
		if _, seen := existing[k]; !seen {
			order = append(order, k)
		}
		existing[k] = v
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	for _, k := range order {
		fmt.Fprintf(w, "%s=%s\n", k, existing[k])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
