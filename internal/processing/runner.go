package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sverka/internal/config"
	"sverka/internal/providers"
	"sverka/internal/report"
	"sverka/internal/resolution"
	"sverka/internal/sheets"
	"sverka/internal/timesheet"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReportFilename is the attachment name of the rendered report.
const ReportFilename = "report.xlsx"

// Status texts shown while a run progresses.
const (
	StatusQueued   = "⏳ Файл в очереди..."
	StatusReading  = "⏳ Читаю Excel..."
	StatusTeams    = "⏳ Определяю команды..."
	StatusLeads    = "⏳ Получаю лидов из Confluence..."
	StatusBuilding = "⏳ Формирую отчет..."
)

// Sink receives the progress and the result of a run.
type Sink interface {
	// Status replaces the visible progress text. It never fails the run.
	Status(ctx context.Context, text string)
	// Deliver publishes the report file together with the summary.
	Deliver(ctx context.Context, filename string, report []byte, summary string) error
	// Notify sends a follow-up message.
	Notify(ctx context.Context, text string) error
}

// Job is one timesheet to reconcile.
type Job struct {
	ID     uuid.UUID
	Name   string
	Source Source
	Sink   Sink
}

func NewJob(name string, source Source, sink Sink) Job {
	return Job{ID: uuid.New(), Name: name, Source: source, Sink: sink}
}

// CallCounter reports how many upstream API calls a client has made.
type CallCounter interface {
	GetAPICallCount() int64
}

// Runner holds what every run shares. Directory is a read-only snapshot and
// may be used by many runs at once. Leads, Link and Calls are optional.
type Runner struct {
	Directory *resolution.Directory
	Teams     providers.TeamProvider
	Worklogs  providers.WorklogProvider
	Leads     providers.LeadsProvider
	Rules     config.Rules
	Link      sheets.LinkFunc
	Calls     CallCounter
}

// apiCalls reads the shared counter. Runs that overlap count each other's
// calls too.
func (r *Runner) apiCalls() int64 {
	if r.Calls == nil {
		return 0
	}
	return r.Calls.GetAPICallCount()
}

// Outcome is what a successful run produced.
type Outcome struct {
	Period    providers.Period
	Rows      []report.Row
	Employees int
	Failures  int
	APICalls  int64
	Summary   string
	Report    []byte
	Mentioned []string
}

// Spawn runs job in its own goroutine. The returned channel yields the run
// error, or nil, and is then closed. A panic inside the run is reported like
// any unexpected failure.
func (r *Runner) Spawn(ctx context.Context, job Job) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- r.runSafely(ctx, job)
	}()
	return done
}

func (r *Runner) runSafely(ctx context.Context, job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = newRunError(KindUnexpected, fmt.Errorf("panic: %v", p))
			log.Error().Str("run_id", job.ID.String()).Interface("panic", p).Msg("Run panicked")
			job.Sink.Status(ctx, AsRunError(err).UserMessage())
		}
	}()

	job.Sink.Status(ctx, StatusQueued)
	_, err = r.Run(ctx, job)
	if err != nil {
		re := AsRunError(err)
		log.Warn().
			Err(re.Err).
			Str("run_id", job.ID.String()).
			Str("kind", re.Kind.String()).
			Msg("Run failed")
		job.Sink.Status(ctx, re.UserMessage())
	}
	return err
}

// Run reconciles one timesheet and delivers the report through the job's
// sink. Upstream failures only reduce the data in the report; the returned
// error is always a *RunError.
func (r *Runner) Run(ctx context.Context, job Job) (*Outcome, error) {
	logger := log.With().Str("run_id", job.ID.String()).Str("source", job.Name).Logger()
	start := time.Now()
	startCalls := r.apiCalls()
	sink := job.Sink

	sink.Status(ctx, StatusReading)
	m, err := job.Source(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load timesheet")
		return nil, AsRunError(err)
	}

	from, to, ok := timesheet.ExtractPeriod(m)
	if !ok {
		return nil, newRunError(KindPeriodNotFound, errors.New("no reporting period in the first rows"))
	}
	period := providers.Period{From: from, To: to}

	layout, err := timesheet.Locate(m, r.Rules.Timesheet)
	if err != nil {
		return nil, newRunError(KindLayoutNotFound, err)
	}

	records := timesheet.Extract(m, layout, r.Rules.Timesheet)
	matches := r.Directory.ResolveAll(records)
	keys := resolution.Keys(matches)

	logger.Info().
		Time("from", from).
		Time("to", to).
		Int("header_row", layout.HeaderRow).
		Int("records", len(records)).
		Int("resolved", len(keys)).
		Msg("Parsed timesheet")

	var leads map[string]string
	if r.Leads != nil {
		sink.Status(ctx, StatusLeads)
		leads = providers.Try(r.Leads.TeamLeads(ctx)).Contribution("team_leads")
	}

	sink.Status(ctx, StatusTeams)

	progress := func(done, total int) {
		sink.Status(ctx, fmt.Sprintf("⏳ Tempo... %d%%", done*100/total))
	}
	data := providers.Aggregate(ctx, r.Teams, r.Worklogs, period, keys, r.Rules.TeamPattern, progress)

	sink.Status(ctx, StatusBuilding)
	rows := report.Build(matches, data, r.Rules.Threshold)

	xlsx, err := sheets.RenderReport(rows, r.Link)
	if err != nil {
		return nil, newRunError(KindUnexpected, fmt.Errorf("failed to render report: %w", err))
	}

	outcome := &Outcome{
		Period:    period,
		Rows:      rows,
		Employees: len(keys),
		Failures:  data.Failures,
		APICalls:  r.apiCalls() - startCalls,
		Summary:   report.Summary(rows, period, len(keys)),
		Report:    xlsx,
	}

	if err := sink.Deliver(ctx, ReportFilename, xlsx, outcome.Summary); err != nil {
		return nil, newRunError(KindUnexpected, fmt.Errorf("failed to deliver report: %w", err))
	}

	outcome.Mentioned = report.LeadsFor(report.TeamsWithIssues(rows), leads)
	if len(outcome.Mentioned) > 0 {
		if err := sink.Notify(ctx, report.LeadsMessage(outcome.Mentioned)); err != nil {
			logger.Warn().Err(err).Msg("Failed to mention team leads")
		}
	}

	logger.Info().
		Int("rows", len(rows)).
		Int("upstream_failures", data.Failures).
		Int64("api_calls", outcome.APICalls).
		Int("leads_mentioned", len(outcome.Mentioned)).
		Dur("elapsed", time.Since(start)).
		Msg("Reconciliation delivered")
	return outcome, nil
}
