package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"goshopper-backend/internal/domain"
	"goshopper-backend/internal/domain/model"
	"goshopper-backend/internal/domain/ports/adapter"
)

// ScanResult bundles the parsed receipt with the caller's remaining quota.
type ScanResult struct {
	Receipt        *model.ParsedReceipt
	ScansRemaining int
}

// ScanUseCase is the metered consumer of the quota enforcer: consume one scan
// unit, then hand the image to the external parser.
type ScanUseCase interface {
	Scan(ctx context.Context, userID, imageURL string) (*ScanResult, error)
}

var _ ScanUseCase = (*scanUC)(nil)

type scanUC struct {
	quota  QuotaUseCase
	parser adapter.ReceiptParser
	log    *zerolog.Logger
}

func NewScanUseCase(quota QuotaUseCase, parser adapter.ReceiptParser, logger *zerolog.Logger) ScanUseCase {
	l := logger.With().Str("component", "ScanUC").Logger()
	return &scanUC{quota: quota, parser: parser, log: &l}
}

func (uc *scanUC) Scan(ctx context.Context, userID, imageURL string) (*ScanResult, error) {
	if imageURL == "" {
		return nil, domain.ErrInvalidArgument
	}
	consumed, err := uc.quota.Consume(ctx, userID)
	if err != nil {
		return nil, err
	}
	receipt, err := uc.parser.Parse(ctx, imageURL)
	if err != nil {
		// The unit is spent; the client may retry within its allowance.
		uc.log.Error().Err(err).Str("user_id", userID).Msg("receipt parse failed")
		return nil, fmt.Errorf("parse receipt: %w", err)
	}
	return &ScanResult{Receipt: receipt, ScansRemaining: consumed.ScansRemaining}, nil
}
