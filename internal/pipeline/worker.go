package pipeline

import (
	"context"
	"log/slog"
)

// Worker processes proposal jobs.
type Worker struct {
	gen *Generator
	log *slog.Logger
}

func NewWorker(gen *Generator, log *slog.Logger) *Worker {
	return &Worker{gen: gen, log: log}
}

// Process generates the job's document and stores the result on the job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	p := job.Proposal()
	log := w.log.With("job_id", job.ID, "proposal_id", job.ProposalID)

	job.SetStatus(StatusRendering, "rendering")
	res, err := w.gen.GenerateWithProgress(ctx, p, func(ev Event) {
		job.StageRendered(ev.Pages)
		if ev.Done == ev.Total {
			job.SetStatus(StatusMerging, "merging")
		}
	})
	if err != nil {
		log.Error("job failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, job.Snapshot().Phase)
		return
	}

	job.Complete(res)
	log.Info("job completed", "file", res.FileName, "pages", res.PageCount)
}
