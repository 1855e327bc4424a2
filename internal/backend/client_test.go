package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/foodscan/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler, timeout time.Duration) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL+"/", timeout, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestNewClientRejectsInvalidURL(t *testing.T) {
	if _, err := NewClient("ftp://example.com", time.Second, zap.NewNop()); err == nil {
		t.Fatal("expected error for non-http scheme")
	}
}

func TestPredictSendsMultipartFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected multipart field file: %v", err)
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "image-bytes" {
			t.Errorf("unexpected payload: %q", string(data))
		}
		if header.Filename != "apple.jpg" {
			t.Errorf("unexpected file name: %s", header.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"label":"Apfel","confidence":0.87,"nutrition_per_100g":{"energy_kcal":52,"source":"OFF"}},{"label":"Banane","confidence":null,"nutrition_per_100g":null}],"image_id":"abc","sha256":"deadbeef","storage":"temp"}`))
	})

	client := newTestClient(t, mux, time.Second)
	result, err := client.Predict(context.Background(), "apple.jpg", []byte("image-bytes"))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
	first := result.Items[0]
	if first.Label != "Apfel" || first.Confidence == nil || *first.Confidence != 0.87 {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if first.NutritionPer100g == nil || first.NutritionPer100g.EnergyKcal == nil || *first.NutritionPer100g.EnergyKcal != 52 {
		t.Fatalf("unexpected nutrition: %+v", first.NutritionPer100g)
	}
	if first.NutritionPer100g.FatG != nil {
		t.Fatalf("expected missing fat to stay nil, got %v", *first.NutritionPer100g.FatG)
	}
	if result.Items[1].Confidence != nil || result.Items[1].NutritionPer100g != nil {
		t.Fatalf("expected nulls to decode as nil, got %+v", result.Items[1])
	}
	if result.ImageID != "" {
		t.Fatalf("expected client not to set image id, got %s", result.ImageID)
	}
	if result.ServerImageID != "abc" || result.SHA256 != "deadbeef" {
		t.Fatalf("unexpected server metadata: %+v", result)
	}
}

func TestPredictClassifiesServiceErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model crashed", http.StatusInternalServerError)
		},
		"malformed": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>oops</html>`))
		},
		"array": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[1,2,3]`))
		},
	}

	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, handler, time.Second)
			_, err := client.Predict(context.Background(), "x.jpg", []byte("x"))
			if !errors.Is(err, domain.ErrService) {
				t.Fatalf("expected service error, got %v", err)
			}
		})
	}
}

func TestPredictTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), 50*time.Millisecond)

	_, err := client.Predict(context.Background(), "slow.jpg", []byte("x"))
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestConnectionRefusedIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	client, err := NewClient(addr, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if _, err := client.Labels(context.Background()); !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestLabelsAndModelInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/labels", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"labels":["Banane","Apfel"]}`))
	})
	mux.HandleFunc("/model-info", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"yolov8-food"}`))
	})

	client := newTestClient(t, mux, time.Second)
	labels, err := client.Labels(context.Background())
	if err != nil {
		t.Fatalf("expected labels, got error: %v", err)
	}
	if len(labels) != 2 || labels[0] != "Banane" {
		t.Fatalf("unexpected labels: %v", labels)
	}

	model, err := client.ModelInfo(context.Background())
	if err != nil {
		t.Fatalf("expected model info, got error: %v", err)
	}
	if model != "yolov8-food" {
		t.Fatalf("unexpected model: %s", model)
	}
}

func TestModelInfoEmptyNameIsServiceError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":""}`))
	}), time.Second)

	if _, err := client.ModelInfo(context.Background()); !errors.Is(err, domain.ErrService) {
		t.Fatalf("expected service error, got %v", err)
	}
}

func TestSubmitFeedbackPostsOrderedRecord(t *testing.T) {
	var received []byte
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feedback" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		received, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"status":"ok","entry":{}}`))
	}), time.Second)

	confidence := 0.87
	record := domain.FeedbackRecord{Original: "Apfel", Correction: "like", Confidence: &confidence, ImageID: "img1.jpg"}
	if err := client.SubmitFeedback(context.Background(), record); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	expected := `{"1. original":"Apfel","2. correction":"like","3. confidence":0.87,"4. image_id":"img1.jpg"}`
	if string(received) != expected {
		t.Fatalf("expected %s, got %s", expected, string(received))
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(received, &fields); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(fields) != 4 {
		t.Fatalf("expected exactly 4 fields, got %d", len(fields))
	}
}

func TestSubmitFeedbackErrorStatusInBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"disk full"}`))
	}), time.Second)

	err := client.SubmitFeedback(context.Background(), domain.FeedbackRecord{Original: "Apfel", Correction: "Birne", ImageID: "a.jpg"})
	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %T", err)
	}
	if svcErr.Message != "disk full" {
		t.Fatalf("unexpected message: %s", svcErr.Message)
	}
}

func TestHealth(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}), time.Second)

	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("expected healthy backend, got %v", err)
	}
}
