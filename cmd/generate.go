package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/jobs"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/service"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/subtitle"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/transcribe"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/translate"
	"github.com/Muzafar-sm/AI-subtitle-Generator/pkg/file"
	"github.com/Muzafar-sm/AI-subtitle-Generator/pkg/log"
)

// previewTextWidth caps caption text in the printed table.
const previewTextWidth = 60

func newGenerateCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		formatFlag    string
		targetFlag    string
		translateFlag bool
		outputFlag    string
		quietFlag     bool
	)

	cmd := &cobra.Command{
		Use:   "generate <media-file>",
		Short: "Generate subtitles for a local media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			input := args[0]
			if _, err := os.Stat(input); err != nil {
				return fmt.Errorf("media file: %w", err)
			}
			format, err := subtitle.ParseFormat(formatFlag)
			if err != nil {
				return err
			}
			target := strings.TrimSpace(targetFlag)
			if target == "" {
				target = cfg.Translate.TargetLanguage
			}

			model, err := transcribe.NewModel(cfg.Transcribe)
			if err != nil {
				return err
			}
			pool := jobs.NewPool(cfg.Workers.Count)
			defer pool.Stop()

			captions, err := transcribe.NewAdapter(model, pool).Transcribe(cmd.Context(), input, cfg.Transcribe.Language)
			if err != nil {
				return err
			}
			log.Info("Transcribed %d captions from %s", len(captions), input)

			if translateFlag && !strings.EqualFold(target, service.DefaultTargetLanguage) {
				provider, err := translate.NewProvider(cfg.Translate)
				if err != nil {
					return err
				}
				batcher := translate.NewBatcher(provider,
					translate.WithBatchSize(cfg.Translate.BatchSize),
					translate.WithDelay(cfg.Translate.BatchDelay),
					translate.WithPool(pool),
				)
				var report translate.Report
				captions, report = batcher.TranslateWithReport(cmd.Context(), captions, target, cfg.Translate.SourceLanguage)
				if len(report.Degraded) > 0 {
					log.Warn("%d of %d batches kept their original text", len(report.Degraded), report.Batches)
				}
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			output := outputFlag
			if output == "" {
				output = file.ReplaceExt(input, format.Ext())
			}
			if _, err := subtitle.WriteFile(output, captions, format); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !quietFlag {
				printCaptions(out, captions)
			}
			fmt.Fprintf(out, "Wrote %d captions to %s\n", len(captions), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatFlag, "format", "f", string(subtitle.FormatSRT), "Output format: srt, vtt or ass")
	cmd.Flags().StringVarP(&targetFlag, "target", "t", "", "Target language for translation")
	cmd.Flags().BoolVar(&translateFlag, "translate", false, "Translate captions into the target language")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output path (default: next to the media file)")
	cmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Do not print the caption table")
	return cmd
}

func printCaptions(w io.Writer, captions []subtitle.Caption) {
	rows := make([][]string, 0, len(captions))
	for _, c := range captions {
		rows = append(rows, []string{
			strconv.Itoa(c.Index),
			formatSeconds(c.Start),
			formatSeconds(c.End),
			truncate(c.Text, previewTextWidth),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Start", "End", "Text"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft},
		isTerminal(w),
	))
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 2, 64)
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
