package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/claimcheck/internal/progress"
	"github.com/mohammad-safakhou/claimcheck/models"
)

func processCMD(load configLoader) *cobra.Command {
	var (
		req        models.JobRequest
		keepAudio  bool
		noResearch bool
	)
	cmd := &cobra.Command{
		Use:   "process <url>",
		Short: "Run one media URL through the pipeline and print its progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.General)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newPipelineApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			req.URL = args[0]
			req.CleanupAudio = cfg.Pipeline.CleanupAudio && !keepAudio
			req.ResearchStatements = !noResearch
			req, err = a.pipeline.Prepare(req)
			if err != nil {
				return err
			}
			job, err := a.hub.CreateJob(ctx, req.URL, req)
			if err != nil {
				return err
			}
			sub, err := a.hub.Subscribe(ctx, job.ID)
			if err != nil {
				return err
			}
			defer sub.Close()

			runErr := make(chan error, 1)
			go func() {
				if cfg.Server.JobTimeout > 0 {
					runCtx, cancel := context.WithTimeout(ctx, cfg.Server.JobTimeout)
					defer cancel()
					runErr <- a.pipeline.Run(runCtx, job)
					return
				}
				runErr <- a.pipeline.Run(ctx, job)
			}()

			p := &eventPrinter{w: cmd.OutOrStdout()}
			if err := progress.Stream(ctx, sub, cfg.Server.HeartbeatInterval, p.print); err != nil {
				return err
			}
			p.summary()
			return <-runErr
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.SpeakerName, "speaker", "", "speaker name attached to every statement")
	f.StringVar(&req.Context, "context", "", "where the media was recorded")
	f.StringVar(&req.LanguageCode, "language", "", "transcription language code")
	f.StringVar(&req.ModelID, "model", "", "transcription model id")
	f.BoolVar(&keepAudio, "keep-audio", false, "keep downloaded media and audio files")
	f.BoolVar(&noResearch, "no-research", false, "stop after claim extraction")
	return cmd
}

// eventPrinter writes one line per event and collects researched statements.
type eventPrinter struct {
	w    io.Writer
	rows [][]string
}

func (p *eventPrinter) print(ev models.ProgressEvent) error {
	if ev.Type == models.EventHeartbeat {
		return nil
	}
	line := fmt.Sprintf("[%3d%%] %-12s %s", ev.Progress, ev.Status, ev.Step)
	if ev.Message != "" {
		line += " | " + ev.Message
	}
	if ev.Error != "" {
		line += " | error: " + ev.Error
	}
	if _, err := fmt.Fprintln(p.w, line); err != nil {
		return err
	}

	result, ok := ev.Data["research_result"].(map[string]any)
	if !ok {
		return nil
	}
	p.rows = append(p.rows, []string{
		fmt.Sprint(ev.Data["statement_index"]),
		fmt.Sprint(result["status"]),
		fmt.Sprint(ev.Data["statement_text"]),
		fmt.Sprint(result["record_id"]),
	})
	return nil
}

func (p *eventPrinter) summary() {
	if len(p.rows) == 0 {
		return
	}
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, renderTable([]string{"#", "Status", "Statement", "Record"}, p.rows, 1))
	fmt.Fprintln(p.w, strconv.Itoa(len(p.rows))+" statements researched")
}
