package presenter

import (
	"strconv"
	"strings"

	"github.com/example/foodscan/internal/domain"
)

const (
	// Placeholder stands in for any missing value.
	Placeholder = "–"
	// DefaultSource is shown when the nutrition record names no source.
	DefaultSource = "OpenFoodFacts"
	// UnknownLabel is shown when the service returned an empty label.
	UnknownLabel = "Unbekannt"
)

// RenderModel is the displayable form of a classification result.
type RenderModel struct {
	Items []ItemView `json:"items"`
}

// ItemView is one detected item ready for display.
type ItemView struct {
	Label      string        `json:"label"`
	Confidence string        `json:"confidence"`
	Nutrition  NutritionView `json:"nutrition"`
}

// NutritionView holds formatted per-100g values. Available is false when the
// lookup found nothing; the other fields are then empty.
type NutritionView struct {
	Available   bool   `json:"available"`
	ProductName string `json:"product_name,omitempty"`
	EnergyKJ    string `json:"energy_kj,omitempty"`
	EnergyKcal  string `json:"energy_kcal,omitempty"`
	Fat         string `json:"fat,omitempty"`
	Carbs       string `json:"carbs,omitempty"`
	Sugars      string `json:"sugars,omitempty"`
	Protein     string `json:"protein,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Present returns nil for an empty item list so that nothing is rendered.
func Present(items []domain.DetectionItem) *RenderModel {
	if len(items) == 0 {
		return nil
	}

	model := &RenderModel{Items: make([]ItemView, 0, len(items))}
	for _, item := range items {
		label := strings.TrimSpace(item.Label)
		if label == "" {
			label = UnknownLabel
		}
		model.Items = append(model.Items, ItemView{
			Label:      label,
			Confidence: FormatConfidence(item.Confidence),
			Nutrition:  presentNutrition(item.NutritionPer100g),
		})
	}
	return model
}

// FormatConfidence renders c as a percentage with one decimal place.
func FormatConfidence(c *float64) string {
	if c == nil {
		return Placeholder
	}
	return strconv.FormatFloat(*c*100, 'f', 1, 64) + "%"
}

// FormatQuantity renders v followed by unit, or the placeholder.
func FormatQuantity(v *float64, unit string) string {
	if v == nil {
		return Placeholder
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + unit
}

func presentNutrition(n *domain.Nutrition) NutritionView {
	if n == nil {
		return NutritionView{}
	}

	view := NutritionView{
		Available:  true,
		EnergyKJ:   FormatQuantity(n.EnergyKJ, " kJ"),
		EnergyKcal: FormatQuantity(n.EnergyKcal, " kcal"),
		Fat:        FormatQuantity(n.FatG, " g"),
		Carbs:      FormatQuantity(n.CarbsG, " g"),
		Sugars:     FormatQuantity(n.SugarsG, " g"),
		Protein:    FormatQuantity(n.ProteinG, " g"),
		Source:     DefaultSource,
	}
	if n.ProductName != nil {
		view.ProductName = strings.TrimSpace(*n.ProductName)
	}
	if n.Source != nil && strings.TrimSpace(*n.Source) != "" {
		view.Source = *n.Source
	}
	return view
}
