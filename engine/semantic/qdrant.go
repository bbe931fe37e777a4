package semantic

import (
	"context"
	"fmt"
	"strconv"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/WessleyAI/hybrid-rag/engine/domain"
)

// PointsAPI is the subset of pb.PointsClient used here.
type PointsAPI interface {
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// CollectionsAPI is the subset of pb.CollectionsClient used here.
type CollectionsAPI interface {
	Get(ctx context.Context, in *pb.GetCollectionInfoRequest, opts ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error)
}

// Qdrant holds a gRPC connection to a Qdrant server.
type Qdrant struct {
	conn        *grpc.ClientConn
	Points      PointsAPI
	Collections CollectionsAPI
}

// DialQdrant connects to Qdrant's gRPC endpoint at addr.
func DialQdrant(addr string) (*Qdrant, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &Qdrant{
		conn:        conn,
		Points:      pb.NewPointsClient(conn),
		Collections: pb.NewCollectionsClient(conn),
	}, nil
}

// Close closes the underlying gRPC connection.
func (q *Qdrant) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

// DefaultContentKey is the payload field holding passage text.
const DefaultContentKey = "content"

// QdrantSource scrolls an entire collection with payloads and vectors.
type QdrantSource struct {
	points     PointsAPI
	collection string
	pageSize   uint32
	contentKey string
}

// NewQdrantSource creates a source over collection. pageSize <= 0 uses 256.
func NewQdrantSource(points PointsAPI, collection string, pageSize int) *QdrantSource {
	if pageSize <= 0 {
		pageSize = 256
	}
	return &QdrantSource{points: points, collection: collection, pageSize: uint32(pageSize), contentKey: DefaultContentKey}
}

// Candidates pages through the collection until the server reports no
// next offset.
func (s *QdrantSource) Candidates(ctx context.Context) ([]Candidate, error) {
	var (
		out    []Candidate
		offset *pb.PointId
	)
	for {
		limit := s.pageSize
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
			WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, fmt.Errorf("semantic: scroll %s: %w", s.collection, err)
		}
		for _, p := range resp.GetResult() {
			out = append(out, Candidate{
				ID:        pointID(p.GetId()),
				Text:      payloadText(p.GetPayload(), s.contentKey),
				Embedding: denseData(p.GetVectors().GetVector()),
			})
		}
		offset = resp.GetNextPageOffset()
		if offset == nil || len(resp.GetResult()) == 0 {
			return out, nil
		}
	}
}

// QdrantSearcher delegates ranking to Qdrant's vector index.
type QdrantSearcher struct {
	points      PointsAPI
	collections CollectionsAPI
	collection  string
	contentKey  string
}

// NewQdrantSearcher creates an indexed searcher over collection.
func NewQdrantSearcher(points PointsAPI, collections CollectionsAPI, collection string) *QdrantSearcher {
	return &QdrantSearcher{points: points, collections: collections, collection: collection, contentKey: DefaultContentKey}
}

func (s *QdrantSearcher) Search(ctx context.Context, query []float32, threshold float64, topK int) ([]domain.VectorEvidenceItem, error) {
	if err := s.checkDimensions(ctx, len(query)); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = domain.DefaultConfig().TopK
	}
	minScore := float32(threshold)
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         query,
		Limit:          uint64(topK),
		ScoreThreshold: &minScore,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search %s: %w", s.collection, err)
	}
	items := make([]domain.VectorEvidenceItem, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		score := clamp(float64(p.GetScore()))
		if score < threshold {
			continue
		}
		items = append(items, domain.VectorEvidenceItem{
			ID:    pointID(p.GetId()),
			Text:  payloadText(p.GetPayload(), s.contentKey),
			Score: score,
		})
	}
	return Top(items, topK), nil
}

func (s *QdrantSearcher) checkDimensions(ctx context.Context, dims int) error {
	info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
	if err != nil {
		return fmt.Errorf("semantic: collection info %s: %w", s.collection, err)
	}
	size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size != 0 && int(size) != dims {
		return fmt.Errorf("semantic: %w: collection %s has %d dimensions, query has %d",
			domain.ErrDimensionMismatch, s.collection, size, dims)
	}
	return nil
}

// denseData reads a dense vector, falling back to the legacy flat field
// older servers fill.
func denseData(v *pb.VectorOutput) []float32 {
	if d := v.GetDense().GetData(); len(d) > 0 {
		return d
	}
	return v.GetData()
}

func pointID(id *pb.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func payloadText(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return payload["text"].GetStringValue()
}

func clamp(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
