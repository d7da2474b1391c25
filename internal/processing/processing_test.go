package processing

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"sverka/internal/config"
	"sverka/internal/providers"
	"sverka/internal/report"
	"sverka/internal/resolution"
	"sverka/internal/sheets"
	"sverka/internal/timesheet"
)

type fakeTeams struct{}

func (fakeTeams) ListTeams(context.Context) ([]providers.Team, error) {
	return []providers.Team{{ID: 1, Name: "arch-team"}, {ID: 2, Name: "change-team"}, {ID: 3, Name: "hr"}}, nil
}

func (fakeTeams) ListMembers(_ context.Context, id int) ([]providers.Member, error) {
	switch id {
	case 1:
		return []providers.Member{{UserKey: "JIRAUSER1"}}, nil
	case 2:
		return []providers.Member{{UserKey: "JIRAUSER2", DateFrom: "2025-01-01", DateTo: "2025-12-31"}}, nil
	}
	return nil, nil
}

type fakeWorklogs struct {
	calls int
}

func (f *fakeWorklogs) SearchWorklogs(_ context.Context, _ providers.Period, workers []string) ([]providers.Worklog, error) {
	f.calls++
	return []providers.Worklog{
		{Worker: "JIRAUSER1", TimeSpentSeconds: 100 * 3600},
		{Worker: "JIRAUSER1", TimeSpentSeconds: 50 * 3600},
		{Worker: "JIRAUSER2", TimeSpentSeconds: 162 * 3600},
	}, nil
}

type fakeLeads struct {
	err error
}

func (f fakeLeads) TeamLeads(context.Context) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return map[string]string{"arch-team": "@lead1", "change-team": "@lead2"}, nil
}

type recordingSink struct {
	mu         sync.Mutex
	statuses   []string
	filename   string
	report     []byte
	summary    string
	notes      []string
	deliverErr error
}

func (s *recordingSink) Status(_ context.Context, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, text)
}

func (s *recordingSink) Deliver(_ context.Context, filename string, report []byte, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliverErr != nil {
		return s.deliverErr
	}
	s.filename, s.report, s.summary = filename, report, summary
	return nil
}

func (s *recordingSink) Notify(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, text)
	return nil
}

func (s *recordingSink) lastStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return ""
	}
	return s.statuses[len(s.statuses)-1]
}

func timesheetMatrix() timesheet.Matrix {
	return timesheet.Matrix{
		{"Табель учета рабочего времени"},
		{"", "с 01.10.2025 по 31.10.2025"},
		{"№", "Фамилия, инициалы", "Код", "Часы"},
		{"1", "Иванов Иван", "Б", "160"},
		{"2", "Петров Петр", "", "160"},
		{"3", "Неизвестный Некто", "", "8"},
		{"", "Итого", "", "328"},
	}
}

func matrixSource(m timesheet.Matrix) Source {
	return func(context.Context) (timesheet.Matrix, error) { return m, nil }
}

func newRunner(worklogs *fakeWorklogs, leads providers.LeadsProvider) *Runner {
	return &Runner{
		Directory: resolution.NewDirectory([]resolution.User{
			{Login: "ivanov", Key: "JIRAUSER1", DisplayName: "Иванов Иван"},
			{Login: "petrov", Key: "JIRAUSER2", DisplayName: "Петров Петр"},
		}),
		Teams:    fakeTeams{},
		Worklogs: worklogs,
		Leads:    leads,
		Rules:    config.DefaultRules(),
		Link:     func(key string) string { return "https://jira.example.com/t?worker=" + key },
	}
}

func TestRunDeliversReport(t *testing.T) {
	worklogs := &fakeWorklogs{}
	runner := newRunner(worklogs, fakeLeads{})
	sink := &recordingSink{}

	outcome, err := runner.Run(context.Background(), NewJob("test.xlsx", matrixSource(timesheetMatrix()), sink))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(outcome.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(outcome.Rows))
	}
	ivanov := outcome.Rows[0]
	if ivanov.Team != "arch-team" || ivanov.Status != report.StatusVariance || ivanov.Diff != -10 {
		t.Errorf("Expected arch-team VARIANCE row with diff -10, got %+v", ivanov)
	}
	petrov := outcome.Rows[1]
	if petrov.Team != "change-team" || petrov.Status != report.StatusOK || petrov.Diff != 2 {
		t.Errorf("Expected change-team OK row with diff 2, got %+v", petrov)
	}
	if last := outcome.Rows[2]; last.Team != report.OtherTeam || last.Status != report.StatusUnresolved {
		t.Errorf("Expected unresolved row in Other last, got %+v", last)
	}

	if outcome.Employees != 2 || worklogs.calls != 1 {
		t.Errorf("Expected 2 employees and 1 worklog call, got %d and %d", outcome.Employees, worklogs.calls)
	}
	if sink.filename != ReportFilename || sheets.DetectFormat(sink.report) != sheets.FormatXLSX {
		t.Errorf("Expected an xlsx named %q, got %q (%d bytes)", ReportFilename, sink.filename, len(sink.report))
	}
	if !strings.Contains(sink.summary, "ℹ️ 2025-10-01 — 2025-10-31 (Сотрудников: 2)") {
		t.Errorf("Expected the period line in the summary, got:\n%s", sink.summary)
	}
	if len(sink.notes) != 1 || !strings.Contains(sink.notes[0], "@lead1") || strings.Contains(sink.notes[0], "@lead2") {
		t.Errorf("Expected a single mention of @lead1, got %v", sink.notes)
	}

	wantStatuses := []string{StatusReading, StatusLeads, StatusTeams, "⏳ Tempo... 100%", StatusBuilding}
	if strings.Join(sink.statuses, "|") != strings.Join(wantStatuses, "|") {
		t.Errorf("Expected statuses %v, got %v", wantStatuses, sink.statuses)
	}
}

type countingCalls struct {
	mu    sync.Mutex
	calls int64
}

func (c *countingCalls) GetAPICallCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls += 3
	return c.calls
}

func TestRunCountsAPICalls(t *testing.T) {
	runner := newRunner(&fakeWorklogs{}, nil)
	runner.Calls = &countingCalls{calls: 10}

	outcome, err := runner.Run(context.Background(), NewJob("test.xlsx", matrixSource(timesheetMatrix()), &recordingSink{}))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if outcome.APICalls != 3 {
		t.Errorf("Expected 3 API calls during the run, got %d", outcome.APICalls)
	}
}

func TestRunToleratesLeadFailure(t *testing.T) {
	runner := newRunner(&fakeWorklogs{}, fakeLeads{err: errors.New("wiki down")})
	sink := &recordingSink{}

	outcome, err := runner.Run(context.Background(), NewJob("test.xlsx", matrixSource(timesheetMatrix()), sink))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(outcome.Mentioned) != 0 || len(sink.notes) != 0 {
		t.Errorf("Expected no lead mentions, got %v", sink.notes)
	}
	if sink.summary == "" {
		t.Error("Expected the report to be delivered")
	}
}

func TestRunWithoutLeadsProvider(t *testing.T) {
	runner := newRunner(&fakeWorklogs{}, nil)
	sink := &recordingSink{}

	if _, err := runner.Run(context.Background(), NewJob("test.xlsx", matrixSource(timesheetMatrix()), sink)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for _, s := range sink.statuses {
		if s == StatusLeads {
			t.Error("Expected no leads status without a leads provider")
		}
	}
}

func TestRunErrors(t *testing.T) {
	noPeriod := timesheetMatrix()
	noPeriod[1] = []string{"", "за октябрь"}

	noHeader := timesheetMatrix()
	noHeader[2][1] = "Сотрудник"

	brokenZip := []byte("PK\x03\x04 not really a zip")

	tests := []struct {
		name   string
		source Source
		want   Kind
	}{
		{"fetch failure", FileSource(func(context.Context) ([]byte, error) { return nil, errors.New("404") }), KindSourceFetch},
		{"unreadable workbook", FileSource(func(context.Context) ([]byte, error) { return brokenZip, nil }), KindParse},
		{"no period", matrixSource(noPeriod), KindPeriodNotFound},
		{"no surname header", matrixSource(noHeader), KindLayoutNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			_, err := newRunner(&fakeWorklogs{}, nil).Run(context.Background(), NewJob("x", tt.source, sink))

			var re *RunError
			if !errors.As(err, &re) {
				t.Fatalf("Expected *RunError, got %v", err)
			}
			if re.Kind != tt.want {
				t.Errorf("Expected kind %v, got %v", tt.want, re.Kind)
			}
			if sink.filename != "" {
				t.Errorf("Expected nothing delivered, got %q", sink.filename)
			}
		})
	}
}

func TestSpawnReportsFailure(t *testing.T) {
	sink := &recordingSink{}
	noPeriod := timesheet.Matrix{{"Фамилия"}}

	err := <-newRunner(&fakeWorklogs{}, nil).Spawn(context.Background(), NewJob("x", matrixSource(noPeriod), sink))
	if AsRunError(err).Kind != KindPeriodNotFound {
		t.Fatalf("Expected a missing period error, got %v", err)
	}
	if sink.statuses[0] != StatusQueued {
		t.Errorf("Expected first status %q, got %q", StatusQueued, sink.statuses[0])
	}
	if got := sink.lastStatus(); got != "⚠️ Не найден период дат." {
		t.Errorf("Expected the missing period message, got %q", got)
	}
}

func TestSpawnRecoversPanic(t *testing.T) {
	sink := &recordingSink{}
	panicking := func(context.Context) (timesheet.Matrix, error) { panic("boom") }

	err := <-newRunner(&fakeWorklogs{}, nil).Spawn(context.Background(), NewJob("x", panicking, sink))
	if AsRunError(err).Kind != KindUnexpected {
		t.Fatalf("Expected an unexpected-kind error, got %v", err)
	}
	if got := sink.lastStatus(); !strings.HasPrefix(got, "💥") {
		t.Errorf("Expected the generic failure message, got %q", got)
	}
}

func TestSpawnDeliveryFailure(t *testing.T) {
	sink := &recordingSink{deliverErr: errors.New("upload rejected")}

	err := <-newRunner(&fakeWorklogs{}, nil).Spawn(context.Background(), NewJob("x", matrixSource(timesheetMatrix()), sink))
	if AsRunError(err).Kind != KindUnexpected {
		t.Fatalf("Expected an unexpected-kind error, got %v", err)
	}
	if got := sink.lastStatus(); !strings.Contains(got, "upload rejected") {
		t.Errorf("Expected the upload error in the status, got %q", got)
	}
}

func TestSpawnConcurrentRuns(t *testing.T) {
	runner := newRunner(&fakeWorklogs{}, nil)
	runner.Worklogs = concurrentWorklogs{}

	var results []<-chan error
	for i := 0; i < 8; i++ {
		results = append(results, runner.Spawn(context.Background(), NewJob("x", matrixSource(timesheetMatrix()), &recordingSink{})))
	}
	for _, done := range results {
		if err := <-done; err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	}
}

type concurrentWorklogs struct{}

func (concurrentWorklogs) SearchWorklogs(context.Context, providers.Period, []string) ([]providers.Worklog, error) {
	return nil, nil
}

func TestLocalSink(t *testing.T) {
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "out.xlsx")
	sink := LocalSink{Path: path, Out: &out}

	if err := sink.Deliver(context.Background(), ReportFilename, []byte("data"), "summary"); err != nil {
		t.Fatalf("Expected Deliver to succeed, got %v", err)
	}
	if err := sink.Notify(context.Background(), "leads"); err != nil {
		t.Fatalf("Expected Notify to succeed, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "data" {
		t.Errorf("Expected report file 'data', got %q (%v)", data, err)
	}
	if out.String() != "summary\nleads\n" {
		t.Errorf("Expected output %q, got %q", "summary\nleads\n", out.String())
	}
}

func TestRunErrorMessages(t *testing.T) {
	tests := []struct {
		err  *RunError
		want string
	}{
		{newRunError(KindPeriodNotFound, nil), "⚠️ Не найден период дат."},
		{newRunError(KindLayoutNotFound, timesheet.ErrHeaderNotFound), "❌ Не найдена колонка 'Фамилия'."},
		{newRunError(KindParse, errors.New("zip: not a valid zip file")), "❌ Ошибка Excel: zip: not a valid zip file"},
	}
	for _, tt := range tests {
		if got := tt.err.UserMessage(); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}

	if got := AsRunError(errors.New("plain")).Kind; got != KindUnexpected {
		t.Errorf("Expected plain errors to be unexpected, got %v", got)
	}
}
