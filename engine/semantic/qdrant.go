package semantic

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/finsightai/finsight/engine/domain"
)

// Payload keys for chunk points and the manifest point.
const (
	payloadText    = "content"
	payloadFile    = "file"
	payloadPage    = "page"
	payloadOrdinal = "chunk_index"
	payloadKind    = "kind"
	payloadModel   = "embed_model"
	payloadDims    = "dimensions"

	kindManifest = "manifest"
)

// manifestID is the reserved point holding the collection manifest.
var manifestID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("finsight/manifest")).String()

// QdrantIndex is the persistent Index backed by Qdrant over gRPC.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// NewQdrant connects to Qdrant at the given gRPC address.
func NewQdrant(addr, collection string) (*QdrantIndex, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &QdrantIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantIndex) Close() error { return q.conn.Close() }

func (q *QdrantIndex) exists(ctx context.Context) (bool, error) {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return true, nil
		}
	}
	return false, nil
}

// Create implements Index. An existing collection in the same embedding
// space is dropped and rebuilt; a different space is an error.
func (q *QdrantIndex) Create(ctx context.Context, m Manifest) error {
	const op = "semantic.Create"

	ok, err := q.exists(ctx)
	if err != nil {
		return err
	}
	if ok {
		stored, err := q.readManifest(ctx)
		if err == nil {
			if stored.Dimensions != m.Dimensions {
				return domain.Wrapf(domain.ErrDimensionMismatch, op,
					"collection %s has %d dims, embedder produces %d", q.collection, stored.Dimensions, m.Dimensions)
			}
			if stored.Model != m.Model {
				return domain.Wrapf(domain.ErrModelMismatch, op,
					"collection %s built by %q, configured %q", q.collection, stored.Model, m.Model)
			}
		}
		// Re-ingestion supersedes rather than edits.
		if err := q.Drop(ctx); err != nil {
			return err
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(m.Dimensions),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", q.collection, err)
	}
	return q.writeManifest(ctx, m)
}

// Open implements Index, asserting the collection exists and was built
// in the configured embedding space.
func (q *QdrantIndex) Open(ctx context.Context, m Manifest) error {
	const op = "semantic.Open"

	ok, err := q.exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return domain.Wrapf(domain.ErrCollectionNotFound, op, "collection %q", q.collection)
	}

	info, err := q.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: q.collection})
	if err != nil {
		return fmt.Errorf("semantic: collection info %s: %w", q.collection, err)
	}
	dims := int(info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
	if dims != m.Dimensions {
		return domain.Wrapf(domain.ErrDimensionMismatch, op,
			"collection %s has %d dims, embedder produces %d", q.collection, dims, m.Dimensions)
	}

	stored, err := q.readManifest(ctx)
	if err != nil {
		return domain.Wrap(domain.ErrModelMismatch, op, err)
	}
	if stored.Model != m.Model {
		return domain.Wrapf(domain.ErrModelMismatch, op,
			"collection %s built by %q, configured %q", q.collection, stored.Model, m.Model)
	}
	return nil
}

// Drop implements Index.
func (q *QdrantIndex) Drop(ctx context.Context) error {
	_, err := q.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: q.collection})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", q.collection, err)
	}
	return nil
}

// Upsert implements Index.
func (q *QdrantIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: r.Vector}},
			},
			Payload: map[string]*pb.Value{
				payloadText:    stringValue(r.Text),
				payloadFile:    stringValue(r.File),
				payloadPage:    stringValue(r.Page),
				payloadOrdinal: intValue(int64(r.Ordinal)),
			},
		}
	}

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// Search implements Index. The manifest point is excluded via filter.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Filter: &pb.Filter{
			MustNot: []*pb.Condition{fieldMatch(payloadKind, kindManifest)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		payload := r.GetPayload()
		hits[i] = Hit{
			ID:      r.GetId().GetUuid(),
			Score:   r.GetScore(),
			Text:    payload[payloadText].GetStringValue(),
			File:    payload[payloadFile].GetStringValue(),
			Page:    payload[payloadPage].GetStringValue(),
			Ordinal: int(payload[payloadOrdinal].GetIntegerValue()),
		}
	}
	sortHits(hits)
	return hits, nil
}

func (q *QdrantIndex) writeManifest(ctx context.Context, m Manifest) error {
	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: manifestID}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: make([]float32, m.Dimensions)}},
			},
			Payload: map[string]*pb.Value{
				payloadKind:  stringValue(kindManifest),
				payloadModel: stringValue(m.Model),
				payloadDims:  intValue(int64(m.Dimensions)),
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("semantic: write manifest: %w", err)
	}
	return nil
}

func (q *QdrantIndex) readManifest(ctx context.Context) (Manifest, error) {
	resp, err := q.points.Get(ctx, &pb.GetPoints{
		CollectionName: q.collection,
		Ids:            []*pb.PointId{{PointIdOptions: &pb.PointId_Uuid{Uuid: manifestID}}},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return Manifest{}, fmt.Errorf("semantic: read manifest: %w", err)
	}
	if len(resp.GetResult()) == 0 {
		return Manifest{}, fmt.Errorf("semantic: collection %s has no manifest", q.collection)
	}
	payload := resp.GetResult()[0].GetPayload()
	return Manifest{
		Model:      payload[payloadModel].GetStringValue(),
		Dimensions: int(payload[payloadDims].GetIntegerValue()),
	}, nil
}

// sortHits enforces descending score with ordinal tie-break so results
// are reproducible.
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Ordinal < hits[j].Ordinal
	})
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intValue(n int64) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: n}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}
