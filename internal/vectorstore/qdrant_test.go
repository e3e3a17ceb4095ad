package vectorstore

import (
	"context"
	"testing"

	"github.com/qdrant/go-client/qdrant"

	"policy-manual-ai/internal/manual"
)

func TestGrpcTarget(t *testing.T) {
	tests := []struct {
		name     string
		urlStr   string
		wantErr  bool
		wantHost string
		wantPort int
	}{
		{
			name:     "valid URL",
			urlStr:   "http://localhost:6333",
			wantHost: "localhost",
			wantPort: 6334, // gRPC port is HTTP port + 1
		},
		{
			name:     "URL with custom port",
			urlStr:   "http://qdrant.internal:9000",
			wantHost: "qdrant.internal",
			wantPort: 9001,
		},
		{
			name:    "invalid URL",
			urlStr:  "://invalid",
			wantErr: true,
		},
		{
			name:     "URL without port",
			urlStr:   "http://localhost",
			wantHost: "localhost",
			wantPort: 6334, // Default
		},
		{
			name:     "URL without hostname",
			urlStr:   "http://:6333",
			wantHost: "localhost", // Defaults to localhost
			wantPort: 6334,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := grpcTarget(tt.urlStr)
			if tt.wantErr {
				if err == nil {
					t.Error("grpcTarget() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("grpcTarget() unexpected error: %v", err)
			}
			if host != tt.wantHost {
				t.Errorf("host = %v, want %v", host, tt.wantHost)
			}
			if port != tt.wantPort {
				t.Errorf("port = %v, want %v", port, tt.wantPort)
			}
		})
	}
}

func TestNewQdrantStore_InvalidURL(t *testing.T) {
	_, err := NewQdrantStore("://invalid")
	if err == nil {
		t.Error("NewQdrantStore() with invalid URL should return error")
	}
}

func TestQdrantStore_Upsert_EmptyPoints(t *testing.T) {
	// Returns before touching the client.
	store := &QdrantStore{}

	if err := store.Upsert(context.Background(), "test-collection", []Point{}); err != nil {
		t.Errorf("Upsert() with empty points should return early without error, got: %v", err)
	}
}

func TestQdrantStore_Delete_EmptyIDs(t *testing.T) {
	store := &QdrantStore{}

	if err := store.Delete(context.Background(), "test-collection", nil); err != nil {
		t.Errorf("Delete() with empty IDs should return early without error, got: %v", err)
	}
}

func TestQdrantStore_Search_InvalidArgs(t *testing.T) {
	store := &QdrantStore{}
	ctx := context.Background()

	if _, err := store.Search(ctx, "test-collection", []float32{1.0, 2.0}, 0, nil); err == nil {
		t.Error("Search() with k=0 should return error")
	}
	if _, err := store.Search(ctx, "test-collection", []float32{1.0, 2.0}, -1, nil); err == nil {
		t.Error("Search() with k=-1 should return error")
	}
	if _, err := store.Search(ctx, "test-collection", nil, 8, nil); err == nil {
		t.Error("Search() with empty vector should return error")
	}
}

func TestQdrantStore_EnsureCollection_InvalidSize(t *testing.T) {
	store := &QdrantStore{}

	for _, size := range []int{0, -768} {
		if err := store.EnsureCollection(context.Background(), "test-collection", size); err == nil {
			t.Errorf("EnsureCollection() with size %d should return error", size)
		}
	}
}

func TestVectorSizeOf(t *testing.T) {
	tests := []struct {
		name string
		info *qdrant.CollectionInfo
		want int
	}{
		{
			name: "unnamed vector",
			info: &qdrant.CollectionInfo{
				Config: &qdrant.CollectionConfig{
					Params: &qdrant.CollectionParams{
						VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{Size: 768, Distance: qdrant.Distance_Cosine}),
					},
				},
			},
			want: 768,
		},
		{
			name: "named vectors",
			info: &qdrant.CollectionInfo{
				Config: &qdrant.CollectionConfig{
					Params: &qdrant.CollectionParams{
						VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
							"dense": {Size: 384, Distance: qdrant.Distance_Cosine},
						}),
					},
				},
			},
			want: 0,
		},
		{
			name: "missing config",
			info: &qdrant.CollectionInfo{},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vectorSizeOf(tt.info); got != tt.want {
				t.Errorf("vectorSizeOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBuildFilter(t *testing.T) {
	if f := buildFilter(nil); f != nil {
		t.Errorf("buildFilter(nil) = %v, want nil", f)
	}

	f := buildFilter(map[string]string{
		PayloadVolumeNumber: "6",
		PayloadTimestamp:    "20250114_093005",
	})
	if f == nil || len(f.Must) != 2 {
		t.Fatalf("buildFilter() = %v, want 2 conditions", f)
	}
	wantKeys := []string{PayloadTimestamp, PayloadVolumeNumber}
	wantVals := []string{"20250114_093005", "6"}
	for i, cond := range f.Must {
		field := cond.GetField()
		if field.GetKey() != wantKeys[i] {
			t.Errorf("condition %d key = %q, want %q", i, field.GetKey(), wantKeys[i])
		}
		if field.GetMatch().GetKeyword() != wantVals[i] {
			t.Errorf("condition %d value = %q, want %q", i, field.GetMatch().GetKeyword(), wantVals[i])
		}
	}
}

func TestToPointStructs(t *testing.T) {
	points := []Point{{
		ID:      "6b0b5d3c-9f0a-5a43-8d0e-1f6c2a7b9e11",
		Vec:     []float32{0.1, 0.2},
		Payload: map[string]any{PayloadURL: "https://www.uscis.gov/policy-manual/volume-1"},
	}}
	structs, err := toPointStructs(points)
	if err != nil {
		t.Fatalf("toPointStructs() error = %v", err)
	}
	if got := structs[0].GetId().GetUuid(); got != points[0].ID {
		t.Errorf("point ID = %q, want %q", got, points[0].ID)
	}
	if got := structs[0].GetPayload()[PayloadURL].GetStringValue(); got != "https://www.uscis.gov/policy-manual/volume-1" {
		t.Errorf("payload url = %q", got)
	}

	if _, err := toPointStructs([]Point{{ID: "x"}}); err == nil {
		t.Error("toPointStructs() without vector should return error")
	}
	if _, err := toPointStructs([]Point{{ID: "x", Vec: []float32{1}, Payload: map[string]any{"bad": make(chan int)}}}); err == nil {
		t.Error("toPointStructs() with unsupported payload should return error")
	}
}

func TestConvertPayloadToMap(t *testing.T) {
	result := convertPayloadToMap(nil)
	if result == nil || len(result) != 0 {
		t.Errorf("convertPayloadToMap(nil) = %v, want empty map", result)
	}

	payload := qdrant.NewValueMap(map[string]any{
		"title":  "Chapter 8",
		"count":  int64(3),
		"score":  0.5,
		"ok":     true,
		"tags":   []any{"a", "b"},
		"nested": map[string]any{"k": "v"},
	})
	payload["none"] = qdrant.NewValueNull()

	got := convertPayloadToMap(payload)
	if got["title"] != "Chapter 8" || got["count"] != int64(3) || got["score"] != 0.5 || got["ok"] != true {
		t.Errorf("convertPayloadToMap() scalars = %v", got)
	}
	if list, ok := got["tags"].([]any); !ok || len(list) != 2 {
		t.Errorf("convertPayloadToMap() tags = %v", got["tags"])
	}
	if nested, ok := got["nested"].(map[string]any); !ok || nested["k"] != "v" {
		t.Errorf("convertPayloadToMap() nested = %v", got["nested"])
	}
	if v, ok := got["none"]; !ok || v != nil {
		t.Errorf("convertPayloadToMap() null = %v, %v", v, ok)
	}
}

func TestPassagePayloadRoundTrip(t *testing.T) {
	url := "https://www.uscis.gov/policy-manual/volume-6-part-e-chapter-8"
	for _, sub := range []*string{nil, manual.StringPtr("1. Net Income")} {
		p := manual.Passage{
			ID:        manual.PassageID(url, "A. Purpose", sub, "20250114_093005", 0),
			SourceURL: url,
			Metadata: manual.DocumentMetadata{
				Title:         "Chapter 8 - Ability to Pay",
				VolumeNumber:  "6",
				PartLetter:    "E",
				ChapterNumber: "8",
				LastUpdated:   "Current as of January 14, 2025",
				SourceURL:     url,
			},
			SectionHeader:    "A. Purpose",
			SubsectionHeader: sub,
			Body:             "Body text.",
			IngestTimestamp:  "20250114_093005",
		}

		payload := PassagePayload(p)
		if _, ok := payload[PayloadSubsectionHeader]; ok != (sub != nil) {
			t.Errorf("PassagePayload() subsection key present = %v, want %v", ok, sub != nil)
		}

		// Round trip through the wire representation.
		got := PassageFromPayload(p.ID, convertPayloadToMap(qdrant.NewValueMap(payload)))
		if got.ID != p.ID || got.Metadata != p.Metadata || got.Body != p.Body || got.SectionHeader != p.SectionHeader || got.IngestTimestamp != p.IngestTimestamp {
			t.Errorf("PassageFromPayload() = %+v, want %+v", got, p)
		}
		if got.Subsection() != p.Subsection() || (got.SubsectionHeader == nil) != (sub == nil) {
			t.Errorf("PassageFromPayload() subsection = %v, want %v", got.SubsectionHeader, sub)
		}
	}
}
