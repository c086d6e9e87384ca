package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// tsvWordLevel is the TSV "level" value of word rows.
const tsvWordLevel = 5

// CLIEngine recognizes text by running the tesseract program.
type CLIEngine struct {
	opts      Options
	path      string
	available bool
}

// NewCLIEngine creates the subprocess engine. The executable is looked up
// once; if it cannot be found the engine reports itself unavailable.
func NewCLIEngine(opts Options) *CLIEngine {
	binary := opts.BinaryPath
	if binary == "" {
		binary = "tesseract"
	}

	path, err := exec.LookPath(binary)
	if err != nil {
		log.Warn().Err(err).Str("binary", binary).Msg("tesseract executable not found, CLI engine unavailable")
		return &CLIEngine{opts: opts, path: binary}
	}

	log.Debug().Str("tesseract_path", path).Msg("tesseract CLI engine initialized")
	return &CLIEngine{opts: opts, path: path, available: true}
}

// Name implements Engine.
func (e *CLIEngine) Name() string {
	return "tesseract-cli"
}

// Available implements Engine.
func (e *CLIEngine) Available() bool {
	return e.available
}

// Args returns the command line arguments used for one recognition run.
func (e *CLIEngine) Args(imagePath, language string) []string {
	args := []string{imagePath, "stdout", "-l", language, "--psm", strconv.Itoa(e.opts.PageSegMode())}
	if e.opts.TessdataPrefix != "" {
		args = append(args, "--tessdata-dir", e.opts.TessdataPrefix)
	}
	return append(args, "tsv")
}

// Recognize runs tesseract on imagePath and parses its TSV output.
//
// Every recognized word becomes one Record block. The run is killed when
// ctx is done or Options.Timeout elapses. On failure the error includes
// whatever tesseract wrote to stderr.
func (e *CLIEngine) Recognize(ctx context.Context, imagePath, language string) (Output, error) {
	if !e.available {
		return nil, fmt.Errorf("%s not found: %w", e.path, ErrEngineUnavailable)
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.path, e.Args(imagePath, language)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("tesseract interrupted: %w", ctxErr)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("tesseract failed: %w - %s", err, msg)
		}
		return nil, fmt.Errorf("tesseract failed: %w", err)
	}

	return ParseTSV(&stdout)
}

// ParseTSV reads tesseract TSV output and returns one Record per word.
//
// Only word rows (level 5) are used. Rows with a negative confidence or
// blank text are skipped. Confidence is converted from 0-100 to 0.0-1.0.
// The header row is optional.
func ParseTSV(r io.Reader) (Output, error) {
	out := Output{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	row := 0
	for scanner.Scan() {
		row++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 11 {
			return nil, fmt.Errorf("tsv row %d: expected at least 11 columns, got %d", row, len(fields))
		}

		level, err := strconv.Atoi(fields[0])
		if err != nil {
			if row == 1 && fields[0] == "level" {
				continue
			}
			return nil, fmt.Errorf("tsv row %d: invalid level %q", row, fields[0])
		}
		if level != tsvWordLevel || len(fields) < 12 {
			continue
		}

		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil {
			return nil, fmt.Errorf("tsv row %d: invalid confidence %q", row, fields[10])
		}
		text := strings.TrimSpace(fields[11])
		if conf < 0 || text == "" {
			continue
		}

		out = append(out, Record{Text: text, Score: conf / 100.0})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tsv output: %w", err)
	}

	return out, nil
}
