package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/invoice-ocr/internal/imaging"
	"github.com/ironsheep/invoice-ocr/internal/pipeline"
)

// Format is an output format of the scan command.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (valid: table, json, yaml)", s)
	}
}

func newScanCmd(root *rootOptions) *cobra.Command {
	var (
		format    string
		noInvoice bool
		savePath  string
	)

	cmd := &cobra.Command{
		Use:   "scan <image-file>",
		Short: "Recognize a local image file",
		Long: `Run the OCR pipeline on a local image and print the merged result,
both language passes and the extracted invoice fields.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ParseFormat(format)
			if err != nil {
				return err
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if noInvoice {
				cfg.Invoice.Enabled = false
			}

			if savePath != "" {
				if err := savePreprocessed(args[0], savePath, cfg.Preprocess.Options()); err != nil {
					return err
				}
				log.Info().Str("path", savePath).Msg("Preprocessed image saved")
			}

			p := pipeline.New(newRecognizer(cfg, nil), cfg.PipelineConfig())
			res, err := p.RunFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), f, res)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format: table, json, yaml")
	cmd.Flags().BoolVar(&noInvoice, "no-invoice", false, "skip invoice field extraction")
	cmd.Flags().StringVar(&savePath, "save-preprocessed", "",
		"also write the preprocessed image handed to the engine to this path (.png, .jpg, .tif, .bmp)")

	return cmd
}

// savePreprocessed runs the preprocessing chain on the image at src and
// writes the result to dst.
func savePreprocessed(src, dst string, opts imaging.PreprocessOptions) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	decoded, err := imaging.DecodeImage(data, opts.MaxInputPixels)
	if err != nil {
		return err
	}
	return imaging.SaveImage(imaging.Preprocess(decoded.Image, opts), dst)
}

func printResult(w io.Writer, format Format, res *pipeline.Result) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(res)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer func() { _ = encoder.Close() }()
		return encoder.Encode(res)
	default:
		printResultTable(w, res)
		return nil
	}
}

func printResultTable(w io.Writer, res *pipeline.Result) {
	summary := tablewriter.NewWriter(w)
	summary.SetHeader([]string{"Field", "Value"})
	summary.SetAutoWrapText(false)
	summary.SetAlignment(tablewriter.ALIGN_LEFT)
	summary.Append([]string{"Text", res.Text})
	summary.Append([]string{"Confidence", fmt.Sprintf("%.3f", res.Confidence)})
	summary.Append([]string{"Leading language", res.Language})
	summary.Append([]string{"Image", fmt.Sprintf("%s %dx%d", res.Image.Format, res.Image.Width, res.Image.Height)})
	if inv := res.Invoice; inv != nil {
		summary.Append([]string{"Invoice found", fmt.Sprintf("%t", inv.Found)})
		summary.Append([]string{"Amount", fmt.Sprintf("%.2f", inv.Amount)})
		summary.Append([]string{"VAT", fmt.Sprintf("%.2f", inv.VAT)})
		summary.Append([]string{"VAT rate", fmt.Sprintf("%g%%", inv.VATRate)})
	}
	summary.Render()

	if len(res.Passes) == 0 {
		return
	}

	_, _ = fmt.Fprintln(w)
	passes := tablewriter.NewWriter(w)
	passes.SetHeader([]string{"Language", "Engine", "Confidence", "Duration", "Text"})
	passes.SetAutoWrapText(false)
	passes.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, p := range res.Passes {
		passes.Append([]string{
			p.Language,
			p.Engine,
			fmt.Sprintf("%.3f", p.Confidence),
			p.Duration.Round(time.Millisecond).String(),
			p.Text,
		})
	}
	passes.Render()
}
