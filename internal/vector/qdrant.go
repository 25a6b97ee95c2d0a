package vector

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// text-embedding-ada-002 output size.
const defaultVectorDimension = 1536

// QdrantConfig holds connection settings for the knowledge index.
type QdrantConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string
	UseTLS          bool
	VectorDimension int
}

func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantIndex implements Index over a Qdrant collection via gRPC.
type QdrantIndex struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewQdrantIndex dials Qdrant. TLS turns on when an API key is set or UseTLS
// is explicit; local deployments stay insecure.
func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	var opts []grpc.DialOption
	useTLS := cfg.UseTLS || cfg.APIKey != ""
	if useTLS {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	return &QdrantIndex{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: vectorDimension,
	}, nil
}

// Close closes the gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}

// EnsureCollection creates the collection if it does not exist and rejects a
// collection whose vector size does not match the embedding model.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	info, err := q.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: q.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok {
			if size != uint64(q.vectorDimension) {
				return fmt.Errorf("collection %s has vector size %d, expected %d", q.collectionName, size, q.vectorDimension)
			}
		}
		return nil
	}

	_, err = q.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(q.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	if info == nil {
		return 0, false
	}
	config := info.GetConfig()
	if config == nil {
		return 0, false
	}
	params := config.GetParams()
	if params == nil {
		return 0, false
	}
	vectors := params.GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}
	if single := vectors.GetParams(); single != nil {
		if size := single.GetSize(); size > 0 {
			return size, true
		}
	}
	return 0, false
}

// Upsert inserts or updates one passage.
func (q *QdrantIndex) Upsert(ctx context.Context, entry Entry, embedding []float32) error {
	uid, err := uuid.Parse(entry.ID)
	if err != nil {
		return fmt.Errorf("invalid entry ID: %w", err)
	}
	if len(embedding) != q.vectorDimension {
		return fmt.Errorf("embedding has %d dimensions, expected %d", len(embedding), q.vectorDimension)
	}

	points := []*pb.PointStruct{
		{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: embedding},
				},
			},
			Payload: map[string]*pb.Value{
				"text":         {Kind: &pb.Value_StringValue{StringValue: entry.Text}},
				"jurisdiction": {Kind: &pb.Value_StringValue{StringValue: entry.Jurisdiction}},
				"topic":        {Kind: &pb.Value_StringValue{StringValue: entry.Topic}},
				"source":       {Kind: &pb.Value_StringValue{StringValue: entry.Source}},
			},
		},
	}

	_, err = q.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert point: %w", err)
	}
	return nil
}

// Search returns the topK passages closest to the embedding. A non-empty
// jurisdiction becomes a payload filter so tenants only get rules for their
// own jurisdiction.
func (q *QdrantIndex) Search(ctx context.Context, embedding []float32, jurisdiction string, topK int) ([]Result, error) {
	req := &pb.SearchPoints{
		CollectionName: q.collectionName,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if jurisdiction != "" {
		req.Filter = &pb.Filter{
			Must: []*pb.Condition{
				{
					ConditionOneOf: &pb.Condition_Field{
						Field: &pb.FieldCondition{
							Key: "jurisdiction",
							Match: &pb.Match{
								MatchValue: &pb.Match_Keyword{Keyword: jurisdiction},
							},
						},
					},
				},
			},
		}
	}

	resp, err := q.pointsClient.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	results := make([]Result, len(resp.Result))
	for i, scored := range resp.Result {
		results[i] = Result{
			Entry: parsePayload(scored.Id.GetUuid(), scored.Payload),
			Score: scored.Score,
		}
	}
	return results, nil
}

func parsePayload(id string, payload map[string]*pb.Value) Entry {
	entry := Entry{ID: id}
	if payload == nil {
		return entry
	}
	if v, ok := payload["text"]; ok {
		entry.Text = v.GetStringValue()
	}
	if v, ok := payload["jurisdiction"]; ok {
		entry.Jurisdiction = v.GetStringValue()
	}
	if v, ok := payload["topic"]; ok {
		entry.Topic = v.GetStringValue()
	}
	if v, ok := payload["source"]; ok {
		entry.Source = v.GetStringValue()
	}
	return entry
}

var _ Index = (*QdrantIndex)(nil)
