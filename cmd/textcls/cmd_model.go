package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/textcls/internal/pipeline"
)

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the layers and parameter counts of a model",
		Args:  cobra.NoArgs,
		RunE:  SummaryHandler,
	}
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Build a freshly initialized model and save its weights",
		Args:  cobra.NoArgs,
		RunE:  InitHandler,
	}
	cmd.Flags().StringP("output", "o", "model.born", "Checkpoint path to write")
	return cmd
}

func newPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict TEXT...",
		Short: "Classify texts given as arguments",
		Args:  cobra.MinimumNArgs(1),
		RunE:  PredictHandler,
	}
	cmd.Flags().Bool("ids", false, "Arguments are comma-separated token ids")
	cmd.Flags().IntP("top", "k", 0, "Show only the k best labels per input")
	return cmd
}

// SummaryHandler prints one row per layer and the total parameter count.
func SummaryHandler(cmd *cobra.Command, _ []string) error {
	s, release, err := openFromFlags(cmd, false)
	if err != nil {
		return err
	}
	defer release()

	info := s.Info()
	var data [][]string
	for _, l := range s.Summary() {
		data = append(data, []string{l.Name, l.Layer, fmt.Sprint(l.Output), strconv.Itoa(l.Params)})
	}
	data = append(data, []string{"total", info.Name, "", strconv.Itoa(info.Parameters)})

	table := newTable(cmd.OutOrStdout(), []string{"NAME", "LAYER", "OUTPUT", "PARAMS"})
	table.AppendBulk(data)
	table.Render()
	return nil
}

// InitHandler saves the weights of an untrained model, ready to be loaded
// with --weights.
func InitHandler(cmd *cobra.Command, _ []string) error {
	out, _ := cmd.Flags().GetString("output")
	s, release, err := openFromFlags(cmd, false)
	if err != nil {
		return err
	}
	defer release()

	if err := s.Save(out); err != nil {
		return err
	}
	info := s.Info()
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s, %d parameters)\n", out, info.Name, info.Parameters)
	return nil
}

// PredictHandler classifies its arguments and prints the ranked labels.
func PredictHandler(cmd *cobra.Command, args []string) error {
	useIDs, _ := cmd.Flags().GetBool("ids")
	top, _ := cmd.Flags().GetInt("top")

	s, release, err := openFromFlags(cmd, true)
	if err != nil {
		return err
	}
	defer release()

	var results []pipeline.Result
	if useIDs {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		results, err = s.ClassifyIDs(ids)
		if err != nil {
			return err
		}
	} else {
		results, err = s.ClassifyTexts(args)
		if err != nil {
			return err
		}
	}

	var data [][]string
	for i, r := range results {
		ranked := r.Ranked()
		if top > 0 && top < len(ranked) {
			ranked = ranked[:top]
		}
		for j, score := range ranked {
			input := ""
			if j == 0 {
				input = truncate(args[i], 40)
			}
			data = append(data, []string{input, score.Label, strconv.FormatFloat(float64(score.Value), 'f', 4, 32)})
		}
	}

	table := newTable(cmd.OutOrStdout(), []string{"INPUT", "LABEL", "SCORE"})
	table.AppendBulk(data)
	table.Render()
	return nil
}

// parseIDs reads each argument as a comma-separated id row.
func parseIDs(args []string) ([][]int32, error) {
	ids := make([][]int32, len(args))
	for i, arg := range args {
		for _, field := range strings.Split(arg, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			n, err := strconv.ParseInt(field, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("argument %d: invalid token id %q", i+1, field)
			}
			ids[i] = append(ids[i], int32(n))
		}
	}
	return ids, nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
