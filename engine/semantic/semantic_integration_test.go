//go:build integration

package semantic

import (
	"context"
	"os"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
)

func qdrantAddr() string {
	if v := os.Getenv("QDRANT_URL"); v != "" {
		return v
	}
	return "localhost:6334"
}

// seedCollection creates a 2-dimensional cosine collection holding two passages.
func seedCollection(t *testing.T, collection string) *Qdrant {
	t.Helper()
	q, err := DialQdrant(qdrantAddr())
	if err != nil {
		t.Fatalf("connect qdrant: %v", err)
	}
	ctx := context.Background()
	conn := q.conn
	cols := pb.NewCollectionsClient(conn)
	points := pb.NewPointsClient(conn)

	_, err = cols.Create(ctx, &pb.CreateCollection{
		CollectionName: collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
			Params: &pb.VectorParams{Size: 2, Distance: pb.Distance_Cosine},
		}},
	})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	t.Cleanup(func() {
		cols.Delete(context.Background(), &pb.DeleteCollection{CollectionName: collection})
		q.Close()
	})

	wait := true
	mk := func(id, content string, vec ...float32) *pb.PointStruct {
		return &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vec}}},
			Payload: map[string]*pb.Value{"content": {Kind: &pb.Value_StringValue{StringValue: content}}},
		}
	}
	_, err = points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{
			mk("00000000-0000-0000-0000-000000000001", "Alice works for Acme.", 1, 0),
			mk("00000000-0000-0000-0000-000000000002", "Bananas are yellow.", 0, 1),
		},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return q
}

func TestQdrant_ScanSearch(t *testing.T) {
	q := seedCollection(t, "hybrid_test_scan")
	items, err := NewScanSearcher(NewQdrantSource(q.Points, "hybrid_test_scan", 1)).
		Search(context.Background(), []float32{1, 0.05}, 0.6, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 1 || items[0].Text != "Alice works for Acme." {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestQdrant_IndexedSearch(t *testing.T) {
	q := seedCollection(t, "hybrid_test_ann")
	s := NewQdrantSearcher(q.Points, q.Collections, "hybrid_test_ann")
	items, err := s.Search(context.Background(), []float32{1, 0.05}, 0.6, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 1 || items[0].ID != "00000000-0000-0000-0000-000000000001" {
		t.Fatalf("unexpected items %+v", items)
	}
	if _, err := s.Search(context.Background(), []float32{1, 0, 0}, 0.6, 3); err == nil {
		t.Fatal("expected dimension mismatch")
	}
}
