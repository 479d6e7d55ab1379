// Package qdrant stores embedded issue and pull-request records in a Qdrant
// collection and reads them back as a dataset for projection. Records are
// keyed by a UUID derived from their URL, so pushing the same dataset twice
// updates points in place.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/alDuncanson/dupescope/dataimport"
)

const (
	upsertBatchSize = 256
	scrollPageSize  = 1000
)

// Client wraps gRPC connections to a Qdrant instance and one collection.
type Client struct {
	connection        *grpc.ClientConn
	pointsClient      pb.PointsClient
	collectionsClient pb.CollectionsClient
	collectionName    string
}

// NewClient connects to address. The collection is not touched until a
// method needs it.
func NewClient(address, collectionName string) (*Client, error) {
	connection, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	return &Client{
		connection:        connection,
		pointsClient:      pb.NewPointsClient(connection),
		collectionsClient: pb.NewCollectionsClient(connection),
		collectionName:    collectionName,
	}, nil
}

// EnsureCollection creates the collection with cosine distance if it does
// not exist yet.
func (client *Client) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	_, err := client.collectionsClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: client.collectionName,
	})
	if err == nil {
		return nil
	}

	_, err = client.collectionsClient.Create(ctx, &pb.CreateCollection{
		CollectionName: client.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", client.collectionName, err)
	}

	return nil
}

// PointID is the deterministic point id for a record URL.
func PointID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

// Upsert writes records in batches and reports how many were sent.
func (client *Client) Upsert(ctx context.Context, records []dataimport.Record) (int, error) {
	written := 0
	for start := 0; start < len(records); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(records))

		batch := make([]*pb.PointStruct, 0, end-start)
		for _, record := range records[start:end] {
			batch = append(batch, &pb.PointStruct{
				Id: &pb.PointId{
					PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(record.URL)},
				},
				Vectors: &pb.Vectors{
					VectorsOptions: &pb.Vectors_Vector{
						Vector: &pb.Vector{Data: record.Embedding},
					},
				},
				Payload: payloadFor(record),
			})
		}

		_, err := client.pointsClient.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: client.collectionName,
			Points:         batch,
		})
		if err != nil {
			return written, fmt.Errorf("upsert points %d-%d: %w", start, end-1, err)
		}
		written += len(batch)
	}
	return written, nil
}

// Records scrolls through the whole collection. Points without a vector are
// skipped and counted, matching how file datasets treat such lines.
func (client *Client) Records(ctx context.Context) (dataimport.LoadResult, error) {
	var (
		result dataimport.LoadResult
		offset *pb.PointId
	)

	for {
		scrollResponse, err := client.pointsClient.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: client.collectionName,
			Offset:         offset,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
			WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
			Limit:          pb.PtrOf(uint32(scrollPageSize)),
		})
		if err != nil {
			return result, fmt.Errorf("scroll points: %w", err)
		}

		for _, retrievedPoint := range scrollResponse.Result {
			vector := retrievedPoint.Vectors.GetVector().GetData()
			if len(vector) == 0 {
				result.Skipped++
				continue
			}
			record := recordFromPayload(retrievedPoint.Payload, vector)
			if record.URL == "" {
				record.URL = retrievedPoint.Id.GetUuid()
			}
			result.Records = append(result.Records, record)
		}

		offset = scrollResponse.NextPageOffset
		if offset == nil {
			return result, nil
		}
	}
}

// Close terminates the gRPC connection.
func (client *Client) Close() error {
	return client.connection.Close()
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func payloadFor(record dataimport.Record) map[string]*pb.Value {
	payload := map[string]*pb.Value{
		"url":   stringValue(record.URL),
		"title": stringValue(record.Title),
		"body":  stringValue(record.Body),
	}
	if record.Number != nil {
		payload["number"] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(*record.Number)}}
	}
	if record.State != dataimport.StateUnknown {
		payload["state"] = stringValue(string(record.State))
	}
	if record.Kind != dataimport.KindUnknown {
		payload["type"] = stringValue(string(record.Kind))
	}
	if record.Files != nil {
		files := make([]*pb.Value, len(record.Files))
		for i, f := range record.Files {
			files[i] = stringValue(f)
		}
		payload["files"] = &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: files}}}
	}
	return payload
}

func recordFromPayload(payload map[string]*pb.Value, vector []float32) dataimport.Record {
	record := dataimport.Record{
		URL:       payload["url"].GetStringValue(),
		Title:     payload["title"].GetStringValue(),
		Body:      payload["body"].GetStringValue(),
		State:     dataimport.ParseState(payload["state"].GetStringValue()),
		Kind:      dataimport.ParseKind(payload["type"].GetStringValue()),
		Embedding: vector,
	}
	if value, ok := payload["number"]; ok {
		number := int(value.GetIntegerValue())
		record.Number = &number
	}
	if value, ok := payload["files"]; ok {
		record.Files = []string{}
		for _, f := range value.GetListValue().GetValues() {
			record.Files = append(record.Files, f.GetStringValue())
		}
	}
	return record
}
