package domain

const (
	// UnknownImageID is the image identifier used before any successful upload.
	UnknownImageID = "unbekannt.jpg"
	// UnknownLabel is sent as the original label when no item was detected.
	UnknownLabel = "unbekannt"
	// PositiveCorrection marks a feedback record that approves the classification.
	PositiveCorrection = "like"
)

// Nutrition holds per-100g facts for a detected item. Any field may be missing
// when the nutrition lookup found no match.
type Nutrition struct {
	ProductName *string  `json:"product_name"`
	EnergyKJ    *float64 `json:"energy_kj"`
	EnergyKcal  *float64 `json:"energy_kcal"`
	FatG        *float64 `json:"fat_g"`
	CarbsG      *float64 `json:"carbs_g"`
	SugarsG     *float64 `json:"sugars_g"`
	ProteinG    *float64 `json:"protein_g"`
	Source      *string  `json:"source"`
}

// DetectionItem is one food object recognized in an image.
type DetectionItem struct {
	Label            string     `json:"label"`
	Confidence       *float64   `json:"confidence"`
	NutritionPer100g *Nutrition `json:"nutrition_per_100g"`
}

// ClassificationResult is the outcome of a single upload. It is replaced as a
// whole on every new upload.
type ClassificationResult struct {
	Items   []DetectionItem `json:"items"`
	ImageID string          `json:"image_id"`

	// ServerImageID and SHA256 are echoed by the classification service for
	// display and journaling only.
	ServerImageID string `json:"server_image_id,omitempty"`
	SHA256        string `json:"sha256,omitempty"`
}

// EmptyResult returns the result a session starts with.
func EmptyResult() ClassificationResult {
	return ClassificationResult{ImageID: UnknownImageID}
}

// Clone returns a copy whose item slice can be handed out without exposing
// the original backing array.
func (r ClassificationResult) Clone() ClassificationResult {
	out := r
	if r.Items != nil {
		out.Items = make([]DetectionItem, len(r.Items))
		copy(out.Items, r.Items)
	}
	return out
}

// Primary returns the first detected item. Feedback only ever refers to it,
// even when several items were detected.
func (r ClassificationResult) Primary() (DetectionItem, bool) {
	if len(r.Items) == 0 {
		return DetectionItem{}, false
	}
	return r.Items[0], true
}

// HasItems reports whether anything was detected.
func (r ClassificationResult) HasItems() bool {
	return len(r.Items) > 0
}

// Preview is a locally derived rendition of the selected image.
type Preview struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Data        []byte `json:"-"`
}
