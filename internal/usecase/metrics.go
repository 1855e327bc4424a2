package usecase

import (
	"context"

	"github.com/example/foodscan/internal/domain"
)

// FeedbackSummary represents aggregated feedback insights.
type FeedbackSummary struct {
	TotalFeedback int64   `json:"total_feedback"`
	Likes         int64   `json:"likes"`
	Corrections   int64   `json:"corrections"`
	Delivered     int64   `json:"delivered"`
	DeliveryRate  float64 `json:"delivery_rate"`
	ApprovalRate  float64 `json:"approval_rate"`
}

// Summary aggregates feedback metrics from the journal.
func (uc *SessionUseCase) Summary(ctx context.Context) (*FeedbackSummary, error) {
	if uc.journal == nil {
		return nil, ErrJournalDisabled
	}

	aggregation, err := uc.journal.AggregateSummary(ctx, domain.PositiveCorrection)
	if err != nil {
		return nil, err
	}

	summary := &FeedbackSummary{
		TotalFeedback: aggregation.TotalCount,
		Likes:         aggregation.LikeCount,
		Corrections:   aggregation.TotalCount - aggregation.LikeCount,
		Delivered:     aggregation.DeliveredCount,
	}

	if aggregation.TotalCount > 0 {
		summary.DeliveryRate = float64(aggregation.DeliveredCount) / float64(aggregation.TotalCount)
		summary.ApprovalRate = float64(aggregation.LikeCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
