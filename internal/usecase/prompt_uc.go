package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"jsonprompt-saas/internal/domain"
	"jsonprompt-saas/internal/domain/model"
	"jsonprompt-saas/internal/domain/ports/adapter"
	"jsonprompt-saas/internal/domain/ports/repository"
	"jsonprompt-saas/internal/infra/logging"
)

// Compile-time check
var _ PromptUseCase = (*promptUC)(nil)

const maxInputLen = 4000

// PromptUseCase produces the JSON prompt artifact behind the usage gate.
type PromptUseCase interface {
	Generate(ctx context.Context, userID, input string, now time.Time) (*model.PromptRecord, *GateResult, error)
	Get(ctx context.Context, userID, id string, now time.Time) (*model.PromptRecord, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]*model.PromptRecord, error)
}

type promptUC struct {
	gate     UsageGateUseCase
	prompts  repository.PromptRepository
	enhancer adapter.PromptEnhancer
	enc      *tiktoken.Tiktoken
	log      *zerolog.Logger
}

func NewPromptUseCase(gate UsageGateUseCase, prompts repository.PromptRepository, enhancer adapter.PromptEnhancer, logger *zerolog.Logger) (*promptUC, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &promptUC{gate: gate, prompts: prompts, enhancer: enhancer, enc: enc, log: logger}, nil
}

// Generate runs the gate, then builds and stores the artifact. The gate
// decision is the only thing that can reject; generation itself is
// best-effort deterministic.
func (p *promptUC) Generate(ctx context.Context, userID, input string, now time.Time) (*model.PromptRecord, *GateResult, error) {
	defer logging.TraceDuration(p.log, "PromptUC.Generate")()

	if input == "" || len(input) > maxInputLen {
		return nil, nil, domain.ErrInvalidArgument
	}

	res, err := p.gate.CheckAndConsume(ctx, userID, now)
	if err != nil {
		return nil, res, err
	}

	tier := model.TierStandard
	if res.Unlimited {
		tier = model.TierEnhanced
	}
	artifact := buildArtifact(input, tier)

	if tier == model.TierEnhanced && p.enhancer != nil {
		enhanced, err := p.enhancer.Enhance(ctx, artifact)
		if err != nil {
			p.log.Warn().Err(err).Str("enhancer", p.enhancer.Name()).Msg("enhancement failed, using draft")
		} else if enhanced != "" {
			artifact = enhanced
		}
	}

	rec, err := model.NewPromptRecord(userID, input, artifact, tier, len(p.enc.Encode(artifact, nil, nil)), now)
	if err != nil {
		return nil, res, err
	}
	if err := p.prompts.Save(ctx, repository.NoTX, rec); err != nil {
		return nil, res, err
	}
	return rec, res, nil
}

func (p *promptUC) Get(ctx context.Context, userID, id string, now time.Time) (*model.PromptRecord, error) {
	rec, err := p.prompts.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	// Ownership and retention are both 404s: never leak other users' records.
	if rec.UserID != userID || !rec.ExpiresAt.After(now) {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (p *promptUC) ListRecent(ctx context.Context, userID string, limit int) ([]*model.PromptRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return p.prompts.ListByUser(ctx, repository.NoTX, userID, limit)
}

// promptDoc is the generated artifact shape. Kept stable so clients can rely
// on the fields.
type promptDoc struct {
	Version     string   `json:"version"`
	Task        string   `json:"task"`
	Context     string   `json:"context,omitempty"`
	Constraints []string `json:"constraints"`
	Output      struct {
		Format string `json:"format"`
		Schema string `json:"schema,omitempty"`
	} `json:"output"`
	Tone string `json:"tone,omitempty"`
}

func buildArtifact(input string, tier model.QualityTier) string {
	doc := promptDoc{
		Version: "1",
		Task:    input,
		Constraints: []string{
			"respond only with valid JSON",
			"do not include explanations outside the JSON body",
		},
	}
	doc.Output.Format = "json"
	if tier == model.TierEnhanced {
		doc.Context = "You are an expert assistant. Think step by step before answering."
		doc.Constraints = append(doc.Constraints,
			"cite assumptions explicitly in an assumptions field",
			"prefer concise field names")
		doc.Output.Schema = "infer a minimal schema from the task and include it under output.schema"
		doc.Tone = "precise"
	}
	b, _ := json.MarshalIndent(doc, "", "  ")
	return string(b)
}
