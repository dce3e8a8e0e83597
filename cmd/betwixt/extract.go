package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/praetorian-inc/betwixt/pkg/scanner"
	"github.com/spf13/cobra"
)

var (
	extractIdentifiers []string
	extractTerminators []string
	extractStartAnchor bool
	extractEndAnchor   bool
	extractFirst       bool
	extractJSON        bool
	extractEscapes     bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract substrings between ad-hoc delimiters",
	Long: `Extract every substring found between one of the identifiers and one of
the terminators. Input is read from the file argument, or from stdin when
no file or "-" is given. Each substring is printed on its own line.

With --start-anchor and no identifier the region starts at the beginning of
the input; with --end-anchor and no terminator it runs to the end.`,
	Example: `  betwixt extract -i '<!--' -t '-->' page.html
  betwixt extract --start-anchor -t '\n' -e --first script.sh
  echo '|a|b|' | betwixt extract -i '|' -t '|' --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringArrayVarP(&extractIdentifiers, "identifier", "i", nil, "Identifier opening a region (repeatable)")
	extractCmd.Flags().StringArrayVarP(&extractTerminators, "terminator", "t", nil, "Terminator closing a region (repeatable)")
	extractCmd.Flags().BoolVar(&extractStartAnchor, "start-anchor", false, "Identifiers only match at the start of the input")
	extractCmd.Flags().BoolVar(&extractEndAnchor, "end-anchor", false, "Terminators only match at the end of the input")
	extractCmd.Flags().BoolVar(&extractFirst, "first", false, "Stop after the first substring")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "Print substrings with their byte ranges as JSON")
	extractCmd.Flags().BoolVarP(&extractEscapes, "escapes", "e", false, `Interpret Go escapes such as \n and \t in delimiters`)
}

func runExtract(cmd *cobra.Command, args []string) error {
	content, err := readExtractInput(cmd, args)
	if err != nil {
		return err
	}

	req := scanner.ExtractRequest{
		Content:     string(content),
		StartAnchor: extractStartAnchor,
		EndAnchor:   extractEndAnchor,
		First:       extractFirst,
	}
	if req.Identifiers, err = delimiters(extractIdentifiers); err != nil {
		return err
	}
	if req.Terminators, err = delimiters(extractTerminators); err != nil {
		return err
	}

	result, err := scanner.Extract(req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if extractJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	for _, s := range result.Substrings {
		fmt.Fprintln(out, s)
	}
	return nil
}

func readExtractInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return content, nil
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return content, nil
}

// delimiters applies --escapes to the delimiters given on the command line.
func delimiters(texts []string) ([]string, error) {
	if !extractEscapes {
		return texts, nil
	}
	out := make([]string, len(texts))
	for i, text := range texts {
		s, err := strconv.Unquote(`"` + text + `"`)
		if err != nil {
			return nil, fmt.Errorf("invalid escape in delimiter %q", text)
		}
		out[i] = s
	}
	return out, nil
}
