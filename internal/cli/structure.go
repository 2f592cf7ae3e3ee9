package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/syllabus-studio/internal/domain/syllabus"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/structure"
)

func newStructureCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "structure <raw.json>",
		Short: "Group a raw generation response into modules",
		Long:  "Reads either a full generation response ({\"syllabus\": [...]}) or a bare array of classes and prints the structured modules.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			classes, err := decodeRawClasses(raw)
			if err != nil {
				return err
			}
			mods, err := structure.Structure(classes)
			if err != nil {
				return err
			}
			if e.textOutput() {
				return printOutline(cmd, mods)
			}
			return writeJSON(cmd.OutOrStdout(), structure.Views(mods))
		},
	}
}

func decodeRawClasses(raw []byte) ([]syllabus.RawGeneratedClass, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var classes []syllabus.RawGeneratedClass
		if err := json.Unmarshal(trimmed, &classes); err != nil {
			return nil, fmt.Errorf("decode class array: %w", err)
		}
		return classes, nil
	}
	var resp syllabus.RawGenerationResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("decode generation response: %w", err)
	}
	return resp.Syllabus, nil
}

func printOutline(cmd *cobra.Command, mods []syllabus.Module) error {
	w := cmd.OutOrStdout()
	for _, m := range mods {
		if _, err := fmt.Fprintln(w, m.Title); err != nil {
			return err
		}
		for i, c := range m.Classes {
			fmt.Fprintf(w, "  %d. %s (%d slides)\n", c.ClassNo, c.Title, len(m.Slides[i]))
		}
	}
	return nil
}
