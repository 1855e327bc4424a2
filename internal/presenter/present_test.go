package presenter

import (
	"reflect"
	"testing"

	"github.com/example/foodscan/internal/domain"
)

func f(v float64) *float64 { return &v }
func s(v string) *string   { return &v }

func TestPresentEmptyRendersNothing(t *testing.T) {
	if model := Present(nil); model != nil {
		t.Fatalf("expected nil render model, got %+v", model)
	}
	if model := Present([]domain.DetectionItem{}); model != nil {
		t.Fatalf("expected nil render model, got %+v", model)
	}
}

func TestFormatConfidence(t *testing.T) {
	cases := []struct {
		in       *float64
		expected string
	}{
		{f(0.87), "87.0%"},
		{f(0.876), "87.6%"},
		{f(0), "0.0%"},
		{f(1), "100.0%"},
		{f(0.001), "0.1%"},
		{nil, Placeholder},
	}
	for _, tc := range cases {
		if got := FormatConfidence(tc.in); got != tc.expected {
			t.Fatalf("expected %s, got %s", tc.expected, got)
		}
	}
}

func TestPresentFillsPlaceholders(t *testing.T) {
	items := []domain.DetectionItem{
		{
			Label:      "Apfel",
			Confidence: f(0.87),
			NutritionPer100g: &domain.Nutrition{
				ProductName: s("Apple, raw"),
				EnergyKJ:    f(218),
				EnergyKcal:  f(52),
				CarbsG:      f(13.8),
			},
		},
		{Label: "", Confidence: nil, NutritionPer100g: nil},
	}

	model := Present(items)
	if model == nil || len(model.Items) != 2 {
		t.Fatalf("expected 2 items, got %+v", model)
	}

	apple := model.Items[0]
	if apple.Confidence != "87.0%" {
		t.Fatalf("unexpected confidence: %s", apple.Confidence)
	}
	expected := NutritionView{
		Available:   true,
		ProductName: "Apple, raw",
		EnergyKJ:    "218 kJ",
		EnergyKcal:  "52 kcal",
		Fat:         Placeholder,
		Carbs:       "13.8 g",
		Sugars:      Placeholder,
		Protein:     Placeholder,
		Source:      DefaultSource,
	}
	if !reflect.DeepEqual(apple.Nutrition, expected) {
		t.Fatalf("expected %+v, got %+v", expected, apple.Nutrition)
	}

	unknown := model.Items[1]
	if unknown.Label != UnknownLabel || unknown.Confidence != Placeholder {
		t.Fatalf("unexpected fallback item: %+v", unknown)
	}
	if unknown.Nutrition.Available {
		t.Fatal("expected missing nutrition to be unavailable")
	}
}

func TestPresentKeepsExplicitSource(t *testing.T) {
	model := Present([]domain.DetectionItem{{Label: "Banane", NutritionPer100g: &domain.Nutrition{Source: s("USDA")}}})
	if model.Items[0].Nutrition.Source != "USDA" {
		t.Fatalf("expected USDA, got %s", model.Items[0].Nutrition.Source)
	}
}

func TestPresentIsIdempotent(t *testing.T) {
	items := []domain.DetectionItem{{Label: "Tomate", Confidence: f(0.42), NutritionPer100g: &domain.Nutrition{FatG: f(0.2)}}}

	first := Present(items)
	second := Present(items)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output, got %+v and %+v", first, second)
	}
	if items[0].Label != "Tomate" || *items[0].Confidence != 0.42 {
		t.Fatalf("input must not be modified, got %+v", items[0])
	}
}
