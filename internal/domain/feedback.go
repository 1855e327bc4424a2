package domain

// FeedbackRecord is the payload accepted by the feedback sink. The numbered
// JSON keys keep the fields in a fixed order on the receiving side.
type FeedbackRecord struct {
	Original   string   `json:"1. original"`
	Correction string   `json:"2. correction"`
	Confidence *float64 `json:"3. confidence"`
	ImageID    string   `json:"4. image_id"`
}

// NewFeedbackRecord derives a record from the primary item of result.
func NewFeedbackRecord(result ClassificationResult, correction string) FeedbackRecord {
	record := FeedbackRecord{
		Original:   UnknownLabel,
		Correction: correction,
		ImageID:    result.ImageID,
	}
	if record.ImageID == "" {
		record.ImageID = UnknownImageID
	}
	if item, ok := result.Primary(); ok {
		if item.Label != "" {
			record.Original = item.Label
		}
		if item.Confidence != nil {
			confidence := *item.Confidence
			record.Confidence = &confidence
		}
	}
	return record
}

// IsPositive reports whether the record approves the classification.
func (f FeedbackRecord) IsPositive() bool {
	return f.Correction == PositiveCorrection
}
