package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"patternpress/internal/api"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var name string

	cmd := &cobra.Command{
		Use:   "export <pattern.png>",
		Short: "Export a pattern image through the pipeline",
		Long: "Submits a PNG to the daemon, waits for the print file and mockup to be " +
			"produced, and writes both next to the input (or into --out).",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourcePath := strings.TrimSpace(args[0])
			data, err := os.ReadFile(sourcePath)
			if err != nil {
				return fmt.Errorf("read pattern file: %w", err)
			}

			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			sourceName := strings.TrimSpace(name)
			if sourceName == "" {
				sourceName = filepath.Base(sourcePath)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exporting %s...\n", sourceName)
			resp, err := client.Export(cmd.Context(), api.ExportRequest{
				ImageBase64: base64.StdEncoding.EncodeToString(data),
				Name:        sourceName,
			})
			if err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("export failed: %s", resp.Error)
			}

			targetDir := strings.TrimSpace(outputDir)
			if targetDir == "" {
				targetDir = filepath.Dir(sourcePath)
			}
			if err := os.MkdirAll(targetDir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
			printTarget := filepath.Join(targetDir, base+"-print.png")
			mockupTarget := filepath.Join(targetDir, base+"-mockup.png")

			if err := writeDataURI(printTarget, resp.PrintImage); err != nil {
				return fmt.Errorf("write print file: %w", err)
			}
			if err := writeDataURI(mockupTarget, resp.MockupImage); err != nil {
				return fmt.Errorf("write mockup file: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Print file:  %s\n", printTarget)
			fmt.Fprintf(out, "Mockup file: %s\n", mockupTarget)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "out", "o", "", "Directory to write exported files into")
	cmd.Flags().StringVar(&name, "name", "", "Display name for the export job")
	return cmd
}

func writeDataURI(path, payload string) error {
	encoded := payload
	if idx := strings.Index(encoded, ","); idx >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode image payload: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
