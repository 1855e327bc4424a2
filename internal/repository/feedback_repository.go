package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/foodscan/internal/retry"
)

// FeedbackLog is one feedback attempt as recorded by this client.
type FeedbackLog struct {
	ID            uint      `gorm:"primaryKey"`
	RequestID     string    `gorm:"column:request_id;uniqueIndex;size:64"`
	Original      string    `gorm:"column:original;size:128"`
	Correction    string    `gorm:"column:correction;size:128;index"`
	Confidence    *float64  `gorm:"column:confidence"`
	ImageID       string    `gorm:"column:image_id;size:255"`
	ServerImageID string    `gorm:"column:server_image_id;size:64"`
	SHA256        string    `gorm:"column:sha256;size:64"`
	Delivered     bool      `gorm:"column:delivered"`
	Error         string    `gorm:"column:error;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;index"`
}

// TableName overrides the default table name.
func (FeedbackLog) TableName() string {
	return "feedback_logs"
}

// FeedbackAggregation holds raw counters over all logged attempts.
type FeedbackAggregation struct {
	TotalCount     int64
	LikeCount      int64
	DeliveredCount int64
}

// FeedbackRepository persists the local feedback journal.
type FeedbackRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	retry  retry.Policy
}

// NewFeedbackRepository creates a new repository instance.
func NewFeedbackRepository(db *gorm.DB, logger *zap.Logger) *FeedbackRepository {
	return &FeedbackRepository{
		db:     db,
		logger: logger.Named("feedback_repository"),
		retry:  retry.DefaultPolicy(),
	}
}

// AutoMigrate ensures the schema is available.
func (r *FeedbackRepository) AutoMigrate(ctx context.Context) error {
	return r.executeWithRetry(ctx, "repository.auto_migrate", "", func() error {
		return r.db.WithContext(ctx).AutoMigrate(&FeedbackLog{})
	})
}

// SaveLog persists a journal entry.
func (r *FeedbackRepository) SaveLog(ctx context.Context, log *FeedbackLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// ListRecent returns up to limit entries, newest first.
func (r *FeedbackRepository) ListRecent(ctx context.Context, limit int) ([]*FeedbackLog, error) {
	var logs []*FeedbackLog
	err := r.executeWithRetry(ctx, "repository.list_recent", "", func() error {
		return r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&logs).Error
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// AggregateSummary counts all, positive and delivered entries.
func (r *FeedbackRepository) AggregateSummary(ctx context.Context, positiveCorrection string) (*FeedbackAggregation, error) {
	var row struct {
		TotalCount     int64
		LikeCount      int64
		DeliveredCount int64
	}
	err := r.executeWithRetry(ctx, "repository.aggregate_summary", "", func() error {
		return r.db.WithContext(ctx).Model(&FeedbackLog{}).
			Select("COUNT(*) AS total_count, "+
				"COALESCE(SUM(CASE WHEN correction = ? THEN 1 ELSE 0 END), 0) AS like_count, "+
				"COALESCE(SUM(CASE WHEN delivered THEN 1 ELSE 0 END), 0) AS delivered_count", positiveCorrection).
			Scan(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &FeedbackAggregation{
		TotalCount:     row.TotalCount,
		LikeCount:      row.LikeCount,
		DeliveredCount: row.DeliveredCount,
	}, nil
}

func (r *FeedbackRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	return r.retry.Do(ctx, r.logger, operation, requestID, fn)
}
