package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/callmark/internal/app"
	"github.com/MrWong99/callmark/internal/conversation"
	"github.com/MrWong99/callmark/internal/dictionary"
	"github.com/MrWong99/callmark/internal/observe"
)

// report is the JSON output of analyze.
type report struct {
	ID         string               `json:"id"`
	Duration   float64              `json:"duration"`
	Utterances []conversation.Entry `json:"utterances"`
}

func newAnalyzeCmd(c *cli) *cobra.Command {
	var (
		dictPath string
		format   string
	)
	cmd := &cobra.Command{
		Use:   "analyze [flags] CONVERSATION.json",
		Short: "Highlight dictionary phrases in a conversation file",
		Long: "Reads a conversation (ready-made utterances or client/operator channel segments; " +
			"use - for stdin), matches every applicable dictionary and prints the annotated utterances.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "text" {
				return fmt.Errorf("--format %q is invalid; valid values: json, text", format)
			}
			path, err := c.dictionariesPath(dictPath)
			if err != nil {
				return err
			}
			dicts, err := dictionary.Load(path)
			if err != nil {
				return err
			}
			f, err := readConversation(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			conv, err := f.Conversation(c.cfg.Analyzer.MaxPause())
			if err != nil {
				return err
			}
			l, err := c.buildLemmatizer()
			if err != nil {
				return err
			}

			a := app.NewAnalyzer(c.cfg.Analyzer, l, observe.DefaultMetrics())
			entries, err := conversation.Annotate(cmd.Context(), a, conv.Utterances, dicts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "text" {
				return writeText(out, conv, entries)
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(report{ID: conv.ID, Duration: conv.Duration, Utterances: entries})
		},
	}
	cmd.Flags().StringVar(&dictPath, "dictionaries", "", "dictionary YAML file (default: dictionaries.path from the config)")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or text")
	return cmd
}

func readConversation(stdin io.Reader, arg string) (conversation.File, error) {
	if arg == "-" {
		return conversation.Decode(stdin)
	}
	return conversation.Load(arg)
}

// writeText prints one block per utterance with its matches listed below,
// e.g.
//
//	[0:00:00-0:00:02] operator: Добрый день
//	    Greetings (exact): добрый день
func writeText(w io.Writer, conv conversation.Conversation, entries []conversation.Entry) error {
	var b strings.Builder
	fmt.Fprintf(&b, "conversation %s, duration %s\n", conv.ID, conversation.FormatTime(conv.Duration))
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s-%s] %s: %s\n",
			conversation.FormatTime(e.StartTime),
			conversation.FormatTime(e.EndTime),
			e.Speaker,
			e.Text,
		)
		text := []rune(e.Text)
		for _, span := range e.Highlights {
			fmt.Fprintf(&b, "    %s (%s): %s\n", span.DictionaryName, span.Kind, string(text[span.Start:span.End]))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
