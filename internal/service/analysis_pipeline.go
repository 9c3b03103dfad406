package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"legal-doc-analyzer/internal/domain"
	"legal-doc-analyzer/internal/risk"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Job messages shown to users while a document moves through the pipeline.
const (
	MsgQueued        = "Queued for analysis"
	MsgStarting      = "Upload successful, analysis starting"
	MsgExtracting    = "Extracting text..."
	MsgAnalyzing     = "Analyzing clauses..."
	MsgSummarizing   = "Generating summary..."
	MsgCompleted     = "Analysis completed successfully"
	MsgSummaryFailed = "Analysis complete, but summary generation failed."
	MsgNoAISummary   = "AI summary skipped: no AI model is configured."
	MsgNoText        = "No text could be extracted from this document."

	failurePrefix     = "Analysis failed: "
	maxFailureMessage = 200
	clauseSummaryLen  = 150
	terminalWriteWait = 30 * time.Second
)

// errJobAbandoned stops the work of a job that is no longer processing,
// usually because its time budget ran out.
var errJobAbandoned = eris.New("job is no longer processing")

// PipelineConfig holds the pipeline's throughput and cost controls.
type PipelineConfig struct {
	// MaxAIBlocks caps how many blocks go to the model; 0 means all. The rest
	// are scored by rules.
	MaxAIBlocks int
	// BlockWorkers bounds concurrent block analysis within one document.
	BlockWorkers int
	// Budget is the wall-clock limit for one document.
	Budget time.Duration
	// SummaryMaxChars truncates the text sent for the summary. Long
	// documents are summarised from their beginning only.
	SummaryMaxChars int
	MaxFileSize     int64
}

// DefaultPipelineConfig returns the production defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxAIBlocks:     0,
		BlockWorkers:    1,
		Budget:          5 * time.Minute,
		SummaryMaxChars: 8000,
		MaxFileSize:     DefaultMaxFileSize,
	}
}

// AnalysisPipeline turns uploaded PDFs into stored analysis results. Every
// job it accepts ends in exactly one of completed or failed.
type AnalysisPipeline struct {
	jobs      domain.JobStore
	results   domain.AnalysisRepository
	files     domain.FileStore
	extractor domain.TextBlockExtractor
	scorer    *risk.Scorer
	invoker   domain.ModelInvoker
	pool      *WorkerPool
	cfg       PipelineConfig
	logger    domain.Logger
	now       func() time.Time
}

// NewAnalysisPipeline wires a pipeline. files and invoker may be nil: without
// files failed jobs cannot be retried, without an invoker every block takes
// the rules path.
func NewAnalysisPipeline(
	jobs domain.JobStore,
	results domain.AnalysisRepository,
	files domain.FileStore,
	extractor domain.TextBlockExtractor,
	scorer *risk.Scorer,
	invoker domain.ModelInvoker,
	pool *WorkerPool,
	cfg PipelineConfig,
	logger domain.Logger,
) *AnalysisPipeline {
	def := DefaultPipelineConfig()
	if cfg.BlockWorkers <= 0 {
		cfg.BlockWorkers = def.BlockWorkers
	}
	if cfg.Budget <= 0 {
		cfg.Budget = def.Budget
	}
	if cfg.SummaryMaxChars <= 0 {
		cfg.SummaryMaxChars = def.SummaryMaxChars
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = def.MaxFileSize
	}
	if cfg.MaxAIBlocks < 0 {
		cfg.MaxAIBlocks = 0
	}
	return &AnalysisPipeline{
		jobs:      jobs,
		results:   results,
		files:     files,
		extractor: extractor,
		scorer:    scorer,
		invoker:   invoker,
		pool:      pool,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit validates an upload, records a pending job and queues it. When the
// queue is full the job is failed at once, and the failed job is returned
// together with an error wrapping domain.ErrQueueFull.
func (p *AnalysisPipeline) Submit(ctx context.Context, filename string, data []byte) (*domain.Job, error) {
	if err := ValidatePDFUpload(filename, data, p.cfg.MaxFileSize); err != nil {
		return nil, err
	}

	now := p.now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		Filename:  filename,
		Status:    domain.JobStatusPending,
		Message:   MsgQueued,
		FileSize:  int64(len(data)),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if p.files != nil {
		if err := p.files.Save(ctx, job.ID, data); err != nil {
			return nil, eris.Wrap(err, "failed to store upload")
		}
	}
	if err := p.jobs.Set(ctx, job); err != nil {
		return nil, eris.Wrap(err, "failed to create job")
	}
	p.logger.Info("Document accepted", "job_id", job.ID, "filename", filename, "size", len(data))

	if err := p.enqueue(ctx, job.ID, filename, data); err != nil {
		if failed, gerr := p.jobs.Get(ctx, job.ID); gerr == nil {
			job = failed
		}
		return job, err
	}
	return job, nil
}

// Retry re-queues a failed job from its stored upload. The new run
// overwrites any earlier result.
func (p *AnalysisPipeline) Retry(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusFailed {
		return nil, eris.Wrapf(domain.ErrJobNotRetryable, "job %s is %s", jobID, job.Status)
	}
	if p.files == nil {
		return nil, eris.Wrapf(domain.ErrFileNotFound, "no file store for job %s", jobID)
	}
	data, err := p.files.Load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	ok, err := p.transition(ctx, jobID, domain.JobStatusFailed, domain.JobStatusPending, MsgQueued)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, eris.Wrapf(domain.ErrJobNotRetryable, "job %s changed concurrently", jobID)
	}
	p.logger.Info("Retrying analysis", "job_id", jobID)

	if err := p.enqueue(ctx, jobID, job.Filename, data); err != nil {
		return nil, err
	}
	return p.jobs.Get(ctx, jobID)
}

// enqueue hands the job to the worker pool. The budget runs from here, so a
// job still waiting for a worker when it expires is failed by a timer.
func (p *AnalysisPipeline) enqueue(ctx context.Context, jobID, filename string, data []byte) error {
	queuedAt := p.now()
	expiry := time.AfterFunc(p.cfg.Budget, func() { p.expireQueued(jobID) })

	err := p.pool.Submit("analyze:"+jobID, func(workerCtx context.Context) {
		expiry.Stop()
		p.process(workerCtx, jobID, filename, data, p.cfg.Budget-p.now().Sub(queuedAt))
	})
	if err == nil {
		return nil
	}
	expiry.Stop()

	p.logger.Warn("Analysis could not be queued", "job_id", jobID, "error", err)
	if _, ferr := p.transition(ctx, jobID, domain.JobStatusPending, domain.JobStatusFailed, failureMessage(err)); ferr != nil {
		p.logger.Error("Failed to mark unqueued job as failed", ferr, "job_id", jobID)
	}
	return err
}

// expireQueued fails a job whose budget ran out before a worker claimed it.
// It loses the CAS, and does nothing, once a worker has the job.
func (p *AnalysisPipeline) expireQueued(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), terminalWriteWait)
	defer cancel()

	ok, err := p.transition(ctx, jobID, domain.JobStatusPending, domain.JobStatusFailed, failureMessage(p.timeoutError()))
	if err != nil {
		p.logger.Error("Failed to expire queued job", err, "job_id", jobID)
		return
	}
	if ok {
		p.logger.Warn("Analysis expired while queued", "job_id", jobID, "budget", p.cfg.Budget.String())
	}
}

// process is the worker entry point: it claims the job and runs it within
// what is left of its budget.
func (p *AnalysisPipeline) process(ctx context.Context, jobID, filename string, data []byte, remaining time.Duration) {
	if remaining <= 0 {
		p.expireQueued(jobID)
		return
	}
	ok, err := p.transition(ctx, jobID, domain.JobStatusPending, domain.JobStatusProcessing, MsgStarting)
	if err != nil {
		p.logger.Error("Failed to claim job", err, "job_id", jobID)
		return
	}
	if !ok {
		p.logger.Warn("Job was not pending when its worker started", "job_id", jobID)
		return
	}
	_ = p.run(ctx, jobID, filename, data, remaining)
}

type runOutcome struct {
	result *domain.AnalysisResult
	err    error
}

// Run analyses a processing job and moves it to its terminal state. It
// returns the error the job failed with, or nil when it completed.
func (p *AnalysisPipeline) Run(ctx context.Context, jobID, filename string, data []byte) error {
	return p.run(ctx, jobID, filename, data, p.cfg.Budget)
}

func (p *AnalysisPipeline) timeoutError() error {
	return fmt.Errorf("analysis timed out after %s", p.cfg.Budget)
}

func (p *AnalysisPipeline) run(ctx context.Context, jobID, filename string, data []byte, budget time.Duration) error {
	started := p.now()
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan runOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- runOutcome{err: fmt.Errorf("internal error: %v", r)}
			}
		}()
		res, err := p.analyze(runCtx, jobID, data)
		done <- runOutcome{result: res, err: err}
	}()

	var out runOutcome
	select {
	case out = <-done:
	case <-runCtx.Done():
		if ctx.Err() != nil {
			out.err = eris.Wrap(ctx.Err(), "analysis interrupted")
		} else {
			out.err = p.timeoutError()
		}
	}

	// Terminal writes must land even when the run's context is gone.
	writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteWait)
	defer cancelWrite()

	if out.err == nil {
		out.err = p.complete(writeCtx, jobID, out.result)
	}
	if out.err != nil {
		p.fail(writeCtx, jobID, out.err)
		return out.err
	}

	p.logger.Info("Analysis complete",
		"job_id", jobID,
		"filename", filename,
		"clauses", len(out.result.Clauses),
		"pages", out.result.Stats.Pages,
		"duration_ms", p.now().Sub(started).Milliseconds(),
	)
	return nil
}

func (p *AnalysisPipeline) analyze(ctx context.Context, jobID string, data []byte) (*domain.AnalysisResult, error) {
	if err := p.progress(ctx, jobID, MsgExtracting, -1); err != nil {
		return nil, err
	}
	extraction := p.extractor.Extract(data)
	fullText := extraction.FullText()
	p.logger.Debug("Text extracted", "job_id", jobID, "blocks", len(extraction.Blocks), "pages", extraction.PageCount)

	if err := p.progress(ctx, jobID, MsgAnalyzing, extraction.PageCount); err != nil {
		return nil, err
	}
	clauses, err := p.analyzeBlocks(ctx, jobID, extraction.Blocks)
	if err != nil {
		return nil, err
	}

	if err := p.progress(ctx, jobID, MsgSummarizing, -1); err != nil {
		return nil, err
	}
	stats := computeStats(extraction.PageCount, fullText, clauses)
	summary := p.summarize(ctx, jobID, fullText)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &domain.AnalysisResult{
		DocumentID:  jobID,
		FullText:    fullText,
		Clauses:     clauses,
		SummaryText: renderStats(stats) + "\n\n**AI Summary**\n" + summary,
		Stats:       stats,
		CreatedAt:   p.now().UTC(),
	}, nil
}

// analyzeBlocks runs up to BlockWorkers blocks at a time. Results are written
// by index, so clause order always equals extraction order.
func (p *AnalysisPipeline) analyzeBlocks(ctx context.Context, jobID string, blocks []domain.TextBlock) ([]domain.Clause, error) {
	clauses := make([]domain.Clause, len(blocks))
	sem := make(chan struct{}, p.cfg.BlockWorkers)
	g, gctx := errgroup.WithContext(ctx)

	for i, b := range blocks {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("internal error in block %d: %v", i+1, r)
				}
			}()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}
			clauses[i] = p.analyzeBlock(gctx, jobID, i, b)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clauses, nil
}

func (p *AnalysisPipeline) analyzeBlock(ctx context.Context, jobID string, index int, b domain.TextBlock) domain.Clause {
	c := domain.Clause{
		ID:          fmt.Sprintf("clause-%d", index+1),
		PageNumber:  b.PageNumber,
		Text:        b.Text,
		BoundingBox: domain.BoundingBox{Vertices: b.BBox.Vertices()},
		PageWidth:   b.PageWidth,
		PageHeight:  b.PageHeight,
	}

	if p.useAI(index) {
		analysis, err := p.invoker.InvokeClause(ctx, clausePrompt(b.Text))
		if err == nil {
			p.applyAI(&c, analysis)
			return c
		}
		p.logger.Warn("AI clause analysis failed; using rule-based scoring", "job_id", jobID, "block", index, "error", err)
	}

	p.applyRules(&c)
	return c
}

func (p *AnalysisPipeline) useAI(index int) bool {
	if p.invoker == nil || !p.invoker.Enabled() {
		return false
	}
	return p.cfg.MaxAIBlocks == 0 || index < p.cfg.MaxAIBlocks
}

// applyAI copies the model's verdict. The category is re-derived from the
// score so it always agrees with the scorer's bands.
func (p *AnalysisPipeline) applyAI(c *domain.Clause, a domain.ClauseAnalysis) {
	c.Score = a.Score
	c.Category = p.scorer.CategoryFor(a.Score)
	c.Type = a.Type
	c.Explanation = a.Explanation
	c.Summary = a.Summary
	c.Entities = a.Entities
	c.LegalTerms = a.LegalTerms
	c.Source = domain.ClauseSourceAI
}

func (p *AnalysisPipeline) applyRules(c *domain.Clause) {
	a := p.scorer.Score(c.Text)
	c.Score = a.Score
	c.Category = a.Category
	c.Type = a.Type
	c.Explanation = a.Explanation()
	c.Summary = risk.FirstSentence(c.Text, clauseSummaryLen)
	c.Entities = risk.ExtractEntities(c.Text)
	c.LegalTerms = []domain.LegalTerm{}
	c.Source = domain.ClauseSourceRules
}

func (p *AnalysisPipeline) summarize(ctx context.Context, jobID, fullText string) string {
	if p.invoker == nil || !p.invoker.Enabled() {
		return MsgNoAISummary
	}
	if strings.TrimSpace(fullText) == "" {
		return MsgNoText
	}

	comp, err := p.invoker.Invoke(ctx, summaryPrompt(truncateRunes(fullText, p.cfg.SummaryMaxChars)))
	if err != nil {
		p.logger.Warn("Summary generation failed", "job_id", jobID, "error", err)
		return MsgSummaryFailed
	}
	p.logger.Debug("Summary generated", "job_id", jobID, "model", comp.Model, "attempts", comp.Attempts)
	return strings.TrimSpace(comp.Text)
}

// progress updates the message (and page count when pages >= 0) of a job
// this worker owns.
func (p *AnalysisPipeline) progress(ctx context.Context, jobID, msg string, pages int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusProcessing {
		return errJobAbandoned
	}
	next := job.Clone()
	next.Message = msg
	if pages >= 0 {
		next.PageCount = pages
	}
	next.UpdatedAt = p.now().UTC()

	ok, err := p.jobs.CompareAndSwap(ctx, jobID, domain.JobStatusProcessing, next)
	if err != nil {
		return err
	}
	if !ok {
		return errJobAbandoned
	}
	return nil
}

// transition moves a job from one status to another. It reports false when
// the job was not in the expected status.
func (p *AnalysisPipeline) transition(ctx context.Context, jobID string, from, to domain.JobStatus, msg string) (bool, error) {
	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job.Status != from {
		return false, nil
	}
	next := job.Clone()
	next.Status = to
	next.Message = msg
	next.UpdatedAt = p.now().UTC()
	return p.jobs.CompareAndSwap(ctx, jobID, from, next)
}

func (p *AnalysisPipeline) complete(ctx context.Context, jobID string, result *domain.AnalysisResult) error {
	if err := p.results.SaveResult(ctx, result); err != nil {
		return eris.Wrap(err, "failed to save analysis result")
	}
	ok, err := p.transition(ctx, jobID, domain.JobStatusProcessing, domain.JobStatusCompleted, MsgCompleted)
	if err != nil {
		return eris.Wrap(err, "failed to complete job")
	}
	if !ok {
		return errJobAbandoned
	}
	return nil
}

func (p *AnalysisPipeline) fail(ctx context.Context, jobID string, cause error) {
	msg := failureMessage(cause)
	p.logger.Error("Analysis failed", cause, "job_id", jobID)

	ok, err := p.transition(ctx, jobID, domain.JobStatusProcessing, domain.JobStatusFailed, msg)
	if err != nil {
		p.logger.Error("Failed to record job failure", err, "job_id", jobID)
		return
	}
	if !ok {
		p.logger.Warn("Job already left processing; failure not recorded", "job_id", jobID)
	}
}

// failureMessage renders the user-facing reason, at most 200 characters.
func failureMessage(err error) string {
	return truncateRunes(failurePrefix+firstLine(err), maxFailureMessage)
}

func firstLine(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

func computeStats(pages int, fullText string, clauses []domain.Clause) domain.DocumentStats {
	stats := domain.DocumentStats{
		Pages:   pages,
		Words:   len(strings.Fields(fullText)),
		Clauses: len(clauses),
	}
	for _, c := range clauses {
		switch c.Category {
		case domain.CategoryRed:
			stats.Red++
		case domain.CategoryYellow:
			stats.Yellow++
		case domain.CategoryGreen:
			stats.Green++
		}
	}
	return stats
}

func renderStats(s domain.DocumentStats) string {
	var sb strings.Builder
	sb.WriteString("**Document Statistics**\n")
	fmt.Fprintf(&sb, "- Pages: %d\n", s.Pages)
	fmt.Fprintf(&sb, "- Words: %s\n", thousands(s.Words))
	fmt.Fprintf(&sb, "- Clauses analyzed: %d\n", s.Clauses)
	fmt.Fprintf(&sb, "- High risk: %d | Medium risk: %d | Low risk: %d", s.Red, s.Yellow, s.Green)
	return sb.String()
}

func thousands(n int) string {
	if n < 0 {
		return "-" + thousands(-n)
	}
	s := strconv.Itoa(n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
