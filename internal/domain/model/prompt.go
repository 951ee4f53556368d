package model

import (
	"crypto/rand"
	"time"

	"jsonprompt-saas/internal/domain"

	"github.com/oklog/ulid/v2"
)

// PromptRetention is how long generated artifacts are kept before the
// storage layer purges them.
const PromptRetention = 24 * time.Hour

type QualityTier string

const (
	TierStandard QualityTier = "standard"
	TierEnhanced QualityTier = "enhanced"
)

// PromptRecord is the artifact a successful gate-pass produces.
type PromptRecord struct {
	ID         string // ULID, sortable by creation time
	UserID     string
	Input      string
	Artifact   string // generated JSON prompt document
	Tier       QualityTier
	TokenCount int
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

func NewPromptRecord(userID, input, artifact string, tier QualityTier, tokenCount int, now time.Time) (*PromptRecord, error) {
	if userID == "" || input == "" || artifact == "" {
		return nil, domain.ErrInvalidArgument
	}
	id := ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	return &PromptRecord{
		ID:         id,
		UserID:     userID,
		Input:      input,
		Artifact:   artifact,
		Tier:       tier,
		TokenCount: tokenCount,
		CreatedAt:  now,
		ExpiresAt:  now.Add(PromptRetention),
	}, nil
}
