// Package orchestrator drives one credit-metered article generation: it
// reserves credits, runs the text completion, fans out illustration calls,
// reconciles the reservation at actual cost and archives the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blogforge/blogforge/internal/config"
	"github.com/blogforge/blogforge/internal/ledger"
	"github.com/blogforge/blogforge/internal/metrics"
	"github.com/blogforge/blogforge/internal/models"
	"github.com/blogforge/blogforge/internal/openai"
	"github.com/blogforge/blogforge/internal/pricing"

	log "github.com/sirupsen/logrus"
)

// ErrInvalidInput indicates the request failed validation before any credits
// were reserved or any upstream call was made.
var ErrInvalidInput = errors.New("orchestrator: invalid input")

// ErrUpstreamGeneration indicates the text completion itself failed; the
// reservation has already been refunded when this error is returned.
var ErrUpstreamGeneration = errors.New("orchestrator: upstream generation failed")

// ErrPersistence indicates the generation could not be archived after the
// reservation was settled. The charge stands; billing is at-most-once.
var ErrPersistence = errors.New("orchestrator: persistence failed")

// Upstream is the completion API surface the orchestrator consumes.
type Upstream interface {
	GenerateText(ctx context.Context, req openai.TextRequest) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// CreditLedger is the balance surface the orchestrator consumes.
type CreditLedger interface {
	Reserve(ctx context.Context, userID uint64, amount int64) (ledger.Reservation, error)
	Settle(ctx context.Context, res ledger.Reservation, actualCost int64) (int64, error)
	Refund(ctx context.Context, res ledger.Reservation) error
}

// Recorder archives finished generations.
type Recorder interface {
	Record(gen *models.Generation) error
}

// Request describes one article generation.
type Request struct {
	Description   string
	MaxTokens     int
	Model         string
	IncludeImages bool
	ImageCount    int
}

// Result is the outcome of one successful generation.
type Result struct {
	GenerationID uint64
	Title        string
	Document     string
	Model        string
	InputTokens  int
	OutputTokens int
	ImageCount   int   // Illustrations actually present in the document.
	TotalCost    int64 // Credits charged after settlement.
}

// Orchestrator coordinates the ledger, the completion API and the archive
// for one request at a time. It holds no per-request state and is safe for
// concurrent use.
type Orchestrator struct {
	upstream   Upstream
	ledger     CreditLedger
	archive    Recorder
	accountant *pricing.Accountant
	cfg        config.GenerateConfig
}

// New constructs an Orchestrator.
func New(upstream Upstream, credits CreditLedger, archive Recorder, accountant *pricing.Accountant, cfg config.GenerateConfig) *Orchestrator {
	return &Orchestrator{
		upstream:   upstream,
		ledger:     credits,
		archive:    archive,
		accountant: accountant,
		cfg:        cfg,
	}
}

// Generate produces one finished article for the user. Credits are reserved
// before any upstream call; a failed text completion refunds the reservation
// in full, while individual image failures degrade the document without
// failing the request or reducing the charge.
func (o *Orchestrator) Generate(ctx context.Context, user *models.User, req Request) (*Result, error) {
	if o == nil || o.upstream == nil || o.ledger == nil {
		return nil, fmt.Errorf("orchestrator: not initialized")
	}
	if user == nil {
		return nil, fmt.Errorf("orchestrator: nil user")
	}
	if errValidate := o.validate(&req); errValidate != nil {
		return nil, errValidate
	}

	imageCount := 0
	if req.IncludeImages {
		imageCount = req.ImageCount
	}

	// Reservation covers the full token budget plus every requested image,
	// so the worst-case completion is already paid for before dispatch.
	reserveAmount := int64(req.MaxTokens) + o.accountant.EstimateImageCost(imageCount)
	res, errReserve := o.ledger.Reserve(ctx, user.ID, reserveAmount)
	if errReserve != nil {
		return nil, errReserve
	}

	prompt := buildPrompt(req.Description, req.IncludeImages, user.Titles, o.cfg.NoveltyCap)

	textBudget := req.MaxTokens
	if req.IncludeImages {
		// Text takes a fixed share of the budget; the rest covers the
		// intent of the image portion of the request.
		textBudget = req.MaxTokens * o.cfg.TextSharePct / 100
	}

	rawText, errText := o.upstream.GenerateText(ctx, openai.TextRequest{
		Model:     req.Model,
		Prompt:    prompt,
		MaxTokens: textBudget,
	})
	if errText != nil {
		metrics.UpstreamFailuresTotal.WithLabelValues("text").Inc()
		metrics.GenerationsTotal.WithLabelValues(req.Model, "upstream_error").Inc()
		if errRefund := o.ledger.Refund(ctx, res); errRefund != nil {
			log.WithError(errRefund).WithFields(log.Fields{
				"user_id":     user.ID,
				"reservation": res.ID,
			}).Error("refund after failed text generation failed")
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamGeneration, errText)
	}

	document := trimIncompleteSentence(rawText)

	inputTokens, errCount := pricing.CountTokens(prompt)
	if errCount != nil {
		inputTokens = 0
		log.WithError(errCount).Warn("counting prompt tokens failed")
	}
	outputTokens, errCount := pricing.CountTokens(document)
	if errCount != nil {
		outputTokens = 0
		log.WithError(errCount).Warn("counting output tokens failed")
	}

	textCost, errCost := o.accountant.EstimateCost(req.Model, inputTokens, outputTokens)
	if errCost != nil {
		// The model was validated up front, so this is unreachable in
		// practice; charge nothing for text rather than guess.
		log.WithError(errCost).Error("pricing text completion failed")
		textCost = 0
	}

	produced := 0
	if imageCount > 0 {
		document, produced = o.illustrate(ctx, document, imageCount)
	}

	title := extractTitle(document)

	// The charge covers every requested image whether or not its generation
	// succeeded; failed images degrade the document, not the bill.
	totalCost := textCost + o.accountant.EstimateImageCost(imageCount)

	charged, errSettle := o.ledger.Settle(ctx, res, totalCost)
	if errSettle != nil {
		return nil, fmt.Errorf("orchestrator: settle reservation: %w", errSettle)
	}

	gen := &models.Generation{
		UserID:       user.ID,
		Title:        title,
		Document:     document,
		Model:        req.Model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		ImageCount:   produced,
		CostCredits:  charged,
	}
	if errRecord := o.archive.Record(gen); errRecord != nil {
		// The settlement stands; never re-charge or reverse it for a
		// failed archive write.
		log.WithError(errRecord).WithFields(log.Fields{
			"user_id": user.ID,
			"charged": charged,
			"title":   title,
		}).Error("archiving settled generation failed")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, errRecord)
	}

	metrics.GenerationsTotal.WithLabelValues(req.Model, "ok").Inc()
	metrics.CreditsSpentTotal.Add(float64(charged))

	log.WithFields(log.Fields{
		"user_id":       user.ID,
		"generation_id": gen.ID,
		"model":         req.Model,
		"output_tokens": outputTokens,
		"images":        produced,
		"charged":       charged,
	}).Info("generation completed")

	return &Result{
		GenerationID: gen.ID,
		Title:        title,
		Document:     document,
		Model:        req.Model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		ImageCount:   produced,
		TotalCost:    charged,
	}, nil
}

// validate rejects malformed requests before any reservation is made.
func (o *Orchestrator) validate(req *Request) error {
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if req.MaxTokens < o.cfg.MinTokens {
		return fmt.Errorf("%w: maxTokens must be at least %d", ErrInvalidInput, o.cfg.MinTokens)
	}
	if req.MaxTokens > o.cfg.MaxTokensLimit {
		return fmt.Errorf("%w: maxTokens must not exceed %d", ErrInvalidInput, o.cfg.MaxTokensLimit)
	}
	req.Model = strings.TrimSpace(req.Model)
	if !o.accountant.KnownModel(req.Model) {
		return fmt.Errorf("%w: unknown model %q", ErrInvalidInput, req.Model)
	}
	if req.IncludeImages {
		if req.ImageCount <= 0 {
			return fmt.Errorf("%w: imageCount must be positive when images are requested", ErrInvalidInput)
		}
		if req.ImageCount > o.cfg.MaxImageCount {
			req.ImageCount = o.cfg.MaxImageCount
		}
	}
	return nil
}

// illustrate fills the document's image placeholders concurrently and tops
// up with standalone images until the requested count is met or the attempt
// budget runs out. Each image call fails independently; a failed placeholder
// keeps its original text.
func (o *Orchestrator) illustrate(ctx context.Context, document string, requested int) (string, int) {
	marks := findPlaceholders(document)
	fanout := len(marks)
	if fanout > requested {
		fanout = requested
	}

	urls := make([]string, len(marks))
	var wg sync.WaitGroup
	for i := 0; i < fanout; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			prompt := marks[idx].alt
			if prompt == "" {
				prompt = "An illustration for the blog article: " + extractTitle(document)
			}
			url, errImage := o.upstream.GenerateImage(ctx, prompt)
			if errImage != nil {
				metrics.UpstreamFailuresTotal.WithLabelValues("image").Inc()
				log.WithError(errImage).WithField("placeholder", idx).Warn("image generation failed, keeping placeholder")
				return
			}
			urls[idx] = url
		}(i)
	}
	wg.Wait()

	produced := 0
	for _, url := range urls {
		if url != "" {
			produced++
		}
	}
	document = replacePlaceholders(document, marks, urls)

	// Top-up pass: standalone images beyond the placeholders, one at a
	// time, bounded by a per-image attempt budget.
	missing := requested - produced
	if missing <= 0 {
		return document, produced
	}
	title := extractTitle(document)
	budget := missing * o.cfg.ImageAttempts
	for produced < requested && budget > 0 {
		budget--
		url, errImage := o.upstream.GenerateImage(ctx, "An illustration for the blog article: "+title)
		if errImage != nil {
			metrics.UpstreamFailuresTotal.WithLabelValues("image").Inc()
			log.WithError(errImage).Warn("top-up image generation failed")
			continue
		}
		document = appendImageSection(document, url, title)
		produced++
	}
	return document, produced
}
