package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/session"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/structure"
	"github.com/yungbote/syllabus-studio/internal/platform/syllabusapi"
)

func newGenerateCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Run extraction, generation and structuring for one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log, err := e.logger()
			if err != nil {
				return err
			}
			defer log.Sync()

			sc, err := e.pipelineConfig(log)
			if err != nil {
				return err
			}
			api, err := syllabusapi.NewClient(log, syllabusapi.Config{
				BaseURL:      e.conf.GetString("api-base-url"),
				GeneratePath: e.conf.GetString("generate-path"),
			})
			if err != nil {
				return fmt.Errorf("%w (set --api-base-url or SYLLABUS_API_BASE_URL)", err)
			}
			doc, err := loadDocument(args[0], "")
			if err != nil {
				return err
			}
			ex, closeOCR, err := newExtractor(ctx, log, e.conf.GetBool("ocr"))
			if err != nil {
				return err
			}
			defer closeOCR()

			classCount := e.conf.GetInt("class-count")
			if classCount == 0 {
				classCount = sc.Generation.ClassCountDefault
			}

			line := &progressLine{w: cmd.ErrOrStderr(), file: doc.Name}
			g := session.NewGenerator(session.ConfigFrom(sc), session.Deps{
				Log:       log,
				Extractor: ex,
				Requester: api,
				Observer:  line.update,
			})
			defer g.Close()

			snap, err := g.Run(ctx, session.Request{Document: doc, ClassCount: classCount})
			line.finish()
			if err != nil {
				if snap.Error != "" {
					return fmt.Errorf("%s: %w", snap.Error, err)
				}
				return err
			}
			for _, n := range snap.Notices {
				fmt.Fprintln(cmd.ErrOrStderr(), "notice:", n)
			}
			mods, err := g.Modules()
			if err != nil {
				return err
			}
			if e.textOutput() {
				return printOutline(cmd, mods)
			}
			return writeJSON(cmd.OutOrStdout(), structure.Views(mods))
		},
	}
	cmd.Flags().IntP("class-count", "n", 0, "Number of classes to request (default from pipeline config)")
	cmd.Flags().String("api-base-url", "", "Generation endpoint base URL")
	cmd.Flags().String("generate-path", syllabusapi.DefaultGeneratePath, "Generation endpoint path")
	cmd.Flags().Bool("ocr", false, "Enable the Document AI fallback for PDFs without a text layer")
	_ = e.conf.BindPFlag("class-count", cmd.Flags().Lookup("class-count"))
	_ = e.conf.BindPFlag("api-base-url", cmd.Flags().Lookup("api-base-url"))
	_ = e.conf.BindPFlag("generate-path", cmd.Flags().Lookup("generate-path"))
	_ = e.conf.BindPFlag("ocr", cmd.Flags().Lookup("ocr"))
	return cmd
}

// progressLine redraws a single terminal line from session snapshots.
// Snapshots may arrive from the ticker goroutine; stale ones are dropped.
type progressLine struct {
	w    io.Writer
	file string

	mu      sync.Mutex
	lastSeq uint64
	drawn   bool
}

func (p *progressLine) update(s session.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Seq <= p.lastSeq {
		return
	}
	p.lastSeq = s.Seq
	if s.State != session.StateAnalyzing {
		return
	}
	stage := string(s.Stage)
	if stage == "" {
		stage = string(s.State)
	}
	fmt.Fprintf(p.w, "\r[%3d%%] %-10s %s", s.Progress, stage, p.file)
	p.drawn = true
}

func (p *progressLine) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprint(p.w, "\r"+strings.Repeat(" ", 24+len(p.file))+"\r")
		p.drawn = false
	}
}
