package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/extractor"
	"github.com/yungbote/syllabus-studio/internal/platform/gcp"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
)

func newExtractCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the text extracted from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := e.logger()
			if err != nil {
				return err
			}
			defer log.Sync()

			doc, err := loadDocument(args[0], e.conf.GetString("mime-type"))
			if err != nil {
				return err
			}
			ex, closeOCR, err := newExtractor(cmd.Context(), log, e.conf.GetBool("ocr"))
			if err != nil {
				return err
			}
			defer closeOCR()

			res, err := ex.Extract(cmd.Context(), doc)
			if err != nil {
				return fmt.Errorf("extract %s: %w", doc.Name, err)
			}
			if e.textOutput() {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Text)
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().String("mime-type", "", "Override the MIME type inferred from the file extension")
	cmd.Flags().Bool("ocr", false, "Enable the Document AI fallback for PDFs without a text layer")
	_ = e.conf.BindPFlag("mime-type", cmd.Flags().Lookup("mime-type"))
	_ = e.conf.BindPFlag("ocr", cmd.Flags().Lookup("ocr"))
	return cmd
}

func loadDocument(path, mimeType string) (*syllabus.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	return syllabus.BytesDocument(name, extractor.ResolveMimeType(name, mimeType), data), nil
}

// newExtractor wires the OCR fallback only when asked; the returned close
// func is always non-nil.
func newExtractor(ctx context.Context, log *logger.Logger, withOCR bool) (*extractor.Extractor, func(), error) {
	if !withOCR {
		return extractor.New(log), func() {}, nil
	}
	ocr, err := gcp.NewDocumentOCRFromEnv(ctx, log)
	if err != nil {
		return nil, nil, fmt.Errorf("init document ocr: %w", err)
	}
	if ocr == nil {
		log.Warn("OCR requested but DOCUMENTAI_PROCESSOR_ID is not set")
		return extractor.New(log), func() {}, nil
	}
	return extractor.New(log, extractor.WithOCR(ocr)), func() { _ = ocr.Close() }, nil
}
