package searchstring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"talentpipe-engine/internal/domain"
	"talentpipe-engine/internal/events"
	"talentpipe-engine/internal/remote"
	"talentpipe-engine/internal/store"
)

const (
	jobsCollection = "search_string_jobs"

	fnGenerateFromText = "generate-search-string"
	fnCrawlWebsite     = "crawl-website-search-string"
	fnProcessPDF       = "process-pdf-search-string"

	listFallbackFn = "list-search-strings"
)

// Progress milestones. Website and PDF jobs park below 100 until the
// remote processor writes the terminal state back out-of-band.
const (
	progressStarted  = 0
	progressCrawling = 20
	progressUploaded = 30
	progressParsing  = 50
	progressDone     = 100
)

// Payload carries the declared input. Exactly one of Text, URL or PDF
// must be set, matching the declared source; Submit enforces this
// before anything goes over the wire.
type Payload struct {
	Text    string
	URL     string
	PDF     []byte
	PDFName string
}

// Orchestrator creates search-string jobs, routes them to the right
// remote processor and tracks their lifecycle to a terminal state.
type Orchestrator struct {
	remote  remote.Backend
	bucket  string
	hub     *events.Hub
	journal *sql.DB // optional, may be nil

	// jobs dispatched to an out-of-band processor, watched by
	// RefreshPending until they reach a terminal state
	mu      sync.Mutex
	pending map[string]struct{}

	now   func() time.Time
	newID func() string
}

func NewOrchestrator(backend remote.Backend, bucket string, hub *events.Hub, journal *sql.DB) *Orchestrator {
	return &Orchestrator{
		remote:  backend,
		bucket:  bucket,
		hub:     hub,
		journal: journal,
		pending: make(map[string]struct{}),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func validatePayload(source domain.JobSource, p Payload) error {
	switch source {
	case domain.SourceText:
		if strings.TrimSpace(p.Text) == "" {
			return errors.New("text source requires a non-empty text payload")
		}
	case domain.SourceWebsite:
		if strings.TrimSpace(p.URL) == "" {
			return errors.New("website source requires a URL payload")
		}
	case domain.SourcePDF:
		if len(p.PDF) == 0 {
			return errors.New("pdf source requires a file payload")
		}
	default:
		return fmt.Errorf("unknown input source %q", source)
	}
	return nil
}

// Submit validates, inserts the job in status "new" and immediately
// dispatches it. The created job is returned even when dispatch fails,
// so the caller can show the failed record.
func (o *Orchestrator) Submit(ctx context.Context, userID, companyID string, typ domain.JobType, source domain.JobSource, p Payload) (domain.SearchJob, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.SearchJob{}, errors.New("submit: missing authenticated owner")
	}
	if typ != domain.TypeRecruiting && typ != domain.TypeLeadGeneration {
		return domain.SearchJob{}, fmt.Errorf("submit: unknown job type %q", typ)
	}
	if err := validatePayload(source, p); err != nil {
		return domain.SearchJob{}, fmt.Errorf("submit: %w", err)
	}

	now := o.now().UTC()
	job := domain.SearchJob{
		ID:        o.newID(),
		UserID:    userID,
		CompanyID: companyID,
		Type:      typ,
		Source:    source,
		Status:    domain.JobNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch source {
	case domain.SourceText:
		job.InputText = p.Text
	case domain.SourceWebsite:
		job.InputURL = p.URL
	}
	// the pdf path is only known after upload; dispatch fills it in

	if err := o.remote.Insert(ctx, jobsCollection, job, &job); err != nil {
		return domain.SearchJob{}, fmt.Errorf("submit: %w", err)
	}

	o.recordTransition(ctx, job.ID, "", domain.JobNew, "")
	if o.hub != nil {
		o.hub.Emit(events.TypeSearchJobCreated, map[string]any{"id": job.ID, "source": source})
	}

	err := o.Dispatch(ctx, &job, p)
	return job, err
}

// Dispatch moves the job into processing and hands it to the processor
// for its source. Text completes synchronously; website and PDF return
// after the start call, leaving the terminal write to the remote side.
// Every remote failure is recorded onto the job and returned.
func (o *Orchestrator) Dispatch(ctx context.Context, job *domain.SearchJob, p Payload) error {
	job.Generation++
	gen := job.Generation

	if err := o.setStatus(ctx, job, domain.JobProcessing, progressStarted, map[string]any{
		"generation": gen,
	}); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	switch {
	case job.Source == domain.SourceText && strings.TrimSpace(p.Text) != "":
		return o.dispatchText(ctx, job, gen, p.Text)
	case job.Source == domain.SourceWebsite && strings.TrimSpace(p.URL) != "":
		return o.dispatchWebsite(ctx, job, gen, p.URL)
	case job.Source == domain.SourcePDF && len(p.PDF) > 0:
		return o.dispatchPDF(ctx, job, gen, p)
	default:
		err := fmt.Errorf("dispatch: source %q has no matching payload", job.Source)
		o.fail(ctx, job, gen, err)
		return err
	}
}

func (o *Orchestrator) dispatchText(ctx context.Context, job *domain.SearchJob, gen int, text string) error {
	var out struct {
		GeneratedString string `json:"generated_string"`
	}
	err := o.remote.Invoke(ctx, fnGenerateFromText, map[string]any{
		"job_id":     job.ID,
		"type":       job.Type,
		"input_text": text,
	}, &out)
	if err != nil {
		o.fail(ctx, job, gen, err)
		return fmt.Errorf("dispatch text: %w", err)
	}
	o.complete(ctx, job, gen, out.GeneratedString)
	return nil
}

func (o *Orchestrator) dispatchWebsite(ctx context.Context, job *domain.SearchJob, gen int, rawURL string) error {
	err := o.remote.Invoke(ctx, fnCrawlWebsite, map[string]any{
		"job_id":    job.ID,
		"type":      job.Type,
		"input_url": rawURL,
	}, nil)
	if err != nil {
		o.fail(ctx, job, gen, err)
		return fmt.Errorf("dispatch website: %w", err)
	}
	// the crawler owns the terminal transition from here
	o.setProgress(ctx, job, progressCrawling)
	o.watch(job.ID)
	return nil
}

func (o *Orchestrator) dispatchPDF(ctx context.Context, job *domain.SearchJob, gen int, p Payload) error {
	name := path.Base(strings.TrimSpace(p.PDFName))
	if name == "" || name == "." || name == "/" {
		name = "input.pdf"
	}
	objectPath := job.ID + "/" + name

	stored, err := o.remote.UploadBlob(ctx, o.bucket, objectPath, p.PDF, "application/pdf")
	if err != nil {
		o.fail(ctx, job, gen, err)
		return fmt.Errorf("dispatch pdf: upload: %w", err)
	}

	job.InputPDFPath = stored
	o.patch(ctx, job, map[string]any{
		"input_pdf_path": stored,
		"progress":       progressUploaded,
	})
	job.Progress = progressUploaded

	err = o.remote.Invoke(ctx, fnProcessPDF, map[string]any{
		"job_id":   job.ID,
		"type":     job.Type,
		"pdf_path": stored,
	}, nil)
	if err != nil {
		o.fail(ctx, job, gen, err)
		return fmt.Errorf("dispatch pdf: %w", err)
	}
	// the PDF processor owns the terminal transition from here
	o.setProgress(ctx, job, progressParsing)
	o.watch(job.ID)
	return nil
}

// Cancel marks the job canceled and bumps its generation so an
// in-flight engine write-back for the superseded attempt is discarded.
// External processors are not fenced: a late terminal write-back from
// the crawler or PDF processor is still accepted last-write-wins.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	job, err := o.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	patch := map[string]any{
		"status":     string(domain.JobCanceled),
		"generation": job.Generation + 1,
		"updated_at": o.now().UTC().Format(time.RFC3339Nano),
	}
	if err := o.remote.Update(ctx, jobsCollection, jobID, patch); err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	o.unwatch(jobID)
	o.recordTransition(ctx, jobID, "", domain.JobCanceled, "user canceled")
	if o.hub != nil {
		o.hub.Emit(events.TypeSearchJobDone, map[string]any{"id": jobID, "status": domain.JobCanceled})
	}
	return nil
}

// Retry reloads a job and re-runs dispatch from its stored input.
// Only text and website jobs can be retried; the original PDF upload
// is not re-driven.
func (o *Orchestrator) Retry(ctx context.Context, jobID string) (domain.SearchJob, error) {
	job, err := o.Get(ctx, jobID)
	if err != nil {
		return domain.SearchJob{}, fmt.Errorf("retry: %w", err)
	}

	var p Payload
	switch job.Source {
	case domain.SourceText:
		if strings.TrimSpace(job.InputText) == "" {
			return job, errors.New("retry: original text input is gone")
		}
		p.Text = job.InputText
	case domain.SourceWebsite:
		if strings.TrimSpace(job.InputURL) == "" {
			return job, errors.New("retry: original URL input is gone")
		}
		p.URL = job.InputURL
	default:
		return job, fmt.Errorf("retry: not supported for %s jobs", job.Source)
	}

	// back to a clean slate before re-dispatch
	job.Status = domain.JobNew
	job.Progress = 0
	job.GeneratedString = ""
	job.Error = ""
	job.Processed = false
	job.ProcessedAt = nil
	o.patch(ctx, &job, map[string]any{
		"status":           string(domain.JobNew),
		"progress":         0,
		"generated_string": nil,
		"error":            nil,
		"is_processed":     false,
		"processed_at":     nil,
	})

	o.recordTransition(ctx, job.ID, "", domain.JobNew, "retry")
	err = o.Dispatch(ctx, &job, p)
	return job, err
}

func (o *Orchestrator) Get(ctx context.Context, jobID string) (domain.SearchJob, error) {
	var rows []domain.SearchJob
	err := o.remote.Select(ctx, jobsCollection, remote.Query{
		Filter: map[string]string{"id": jobID},
	}, &rows)
	if err != nil {
		return domain.SearchJob{}, err
	}
	if len(rows) == 0 {
		return domain.SearchJob{}, fmt.Errorf("search job %q not found", jobID)
	}
	return rows[0], nil
}

// List returns the caller's jobs, newest first.
func (o *Orchestrator) List(ctx context.Context, userID string) ([]domain.SearchJob, error) {
	var rows []domain.SearchJob
	err := o.remote.Select(ctx, jobsCollection, remote.Query{
		Filter:     map[string]string{"user_id": userID},
		Order:      "created_at.desc",
		FallbackFn: listFallbackFn,
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("list search jobs: %w", err)
	}
	return rows, nil
}

// ---- state writes ----

// superseded reports whether the persisted record belongs to a newer
// dispatch attempt: a cancel or retry bumped the generation while this
// one was in flight. An unreadable record counts as current so a
// transient read failure cannot swallow a terminal write.
func (o *Orchestrator) superseded(ctx context.Context, jobID string, gen int) bool {
	cur, err := o.Get(ctx, jobID)
	if err != nil {
		log.Printf("[searchstring] fence read job=%s: %v", jobID, err)
		return false
	}
	return cur.Generation != gen
}

// complete records the successful terminal state, unless a cancel or
// retry superseded this attempt; a stale completion must never
// resurrect the job.
func (o *Orchestrator) complete(ctx context.Context, job *domain.SearchJob, gen int, generated string) {
	if o.superseded(ctx, job.ID, gen) {
		return
	}
	now := o.now().UTC()
	job.Status = domain.JobCompleted
	job.Progress = progressDone
	job.GeneratedString = generated
	job.Processed = true
	job.ProcessedAt = &now
	o.patch(ctx, job, map[string]any{
		"status":           string(domain.JobCompleted),
		"progress":         progressDone,
		"generated_string": generated,
		"is_processed":     true,
		"processed_at":     now.Format(time.RFC3339Nano),
	})
	o.recordTransition(ctx, job.ID, domain.JobProcessing, domain.JobCompleted, "")
	if o.hub != nil {
		o.hub.Emit(events.TypeSearchJobDone, map[string]any{"id": job.ID, "status": domain.JobCompleted})
	}
}

// fail records the failed terminal state, fenced like complete.
// Progress goes to 100 here too: it means "no further work pending",
// not success.
func (o *Orchestrator) fail(ctx context.Context, job *domain.SearchJob, gen int, cause error) {
	if o.superseded(ctx, job.ID, gen) {
		return
	}
	job.Status = domain.JobFailed
	job.Progress = progressDone
	job.Error = cause.Error()
	o.patch(ctx, job, map[string]any{
		"status":   string(domain.JobFailed),
		"progress": progressDone,
		"error":    cause.Error(),
	})
	o.recordTransition(ctx, job.ID, domain.JobProcessing, domain.JobFailed, cause.Error())
	if o.hub != nil {
		o.hub.Emit(events.TypeSearchJobDone, map[string]any{"id": job.ID, "status": domain.JobFailed})
	}
}

func (o *Orchestrator) setStatus(ctx context.Context, job *domain.SearchJob, status domain.JobStatus, progress int, extra map[string]any) error {
	patch := map[string]any{
		"status":     string(status),
		"progress":   progress,
		"updated_at": o.now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range extra {
		patch[k] = v
	}
	if err := o.remote.Update(ctx, jobsCollection, job.ID, patch); err != nil {
		return err
	}
	from := job.Status
	job.Status = status
	job.Progress = progress
	o.recordTransition(ctx, job.ID, from, status, "")
	if o.hub != nil {
		o.hub.Emit(events.TypeSearchJobUpdated, map[string]any{"id": job.ID, "status": status, "progress": progress})
	}
	return nil
}

func (o *Orchestrator) setProgress(ctx context.Context, job *domain.SearchJob, progress int) {
	job.Progress = progress
	o.patch(ctx, job, map[string]any{"progress": progress})
	if o.hub != nil {
		o.hub.Emit(events.TypeSearchJobUpdated, map[string]any{"id": job.ID, "status": job.Status, "progress": progress})
	}
}

// patch is a best-effort record write; failures are logged, not
// propagated, so they never mask the error that caused them.
func (o *Orchestrator) patch(ctx context.Context, job *domain.SearchJob, patch map[string]any) {
	if err := o.remote.Update(ctx, jobsCollection, job.ID, patch); err != nil {
		log.Printf("[searchstring] patch job=%s: %v", job.ID, err)
	}
}

func (o *Orchestrator) recordTransition(ctx context.Context, id string, from, to domain.JobStatus, detail string) {
	if o.journal == nil {
		return
	}
	err := store.RecordTransition(ctx, o.journal, store.Transition{
		Entity:   "search_job",
		EntityID: id,
		From:     string(from),
		To:       string(to),
		Detail:   detail,
	})
	if err != nil {
		log.Printf("[searchstring] journal: %v", err)
	}
}
