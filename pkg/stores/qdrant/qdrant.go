// Package qdrant implements the vector store contract against Qdrant's REST
// API. The client stays deliberately thin: collection bootstrap, point
// upserts with the full metadata payload, filtered similarity search, and
// cursor-based scrolling for collection scans.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/theapemachine/conscious-go/pkg/errors"
	"github.com/theapemachine/conscious-go/pkg/memory"
)

// Client wraps an endpoint + collection.
type Client struct {
	Endpoint   string // e.g. http://localhost:6333
	Collection string // e.g. "memories"
	httpClient *http.Client
}

// New returns a Client with sane defaults.
func New(endpoint, collection string) *Client {
	return &Client{
		Endpoint:   strings.TrimRight(endpoint, "/"),
		Collection: collection,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// EnsureCollection creates the collection if it does not exist yet.
func (client *Client) EnsureCollection(ctx context.Context, dimension int) error {
	status, _, err := client.do(ctx, http.MethodGet, client.collectionPath(""), nil)
	if err != nil {
		return err
	}

	if status == http.StatusOK {
		return nil
	}

	payload := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}

	status, _, err = client.do(ctx, http.MethodPut, client.collectionPath(""), payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.NewStoreConnectivity("qdrant", fmt.Errorf("create collection: status %d", status))
	}

	return nil
}

func (client *Client) Upsert(ctx context.Context, mem memory.Memory) error {
	payload := memory.EncodeMetadata(mem)
	// Shadow fields so range and tag filters work server-side.
	payload[tsField] = mem.Timestamp.UTC().UnixNano()

	lowered := make([]string, 0, len(mem.Tags))
	for _, tag := range mem.Tags {
		lowered = append(lowered, strings.ToLower(tag))
	}
	payload[tagsLowerField] = lowered

	body := map[string]any{
		"points": []map[string]any{{
			"id":      mem.ID,
			"vector":  mem.Embedding,
			"payload": payload,
		}},
	}

	status, _, err := client.do(ctx, http.MethodPut, client.collectionPath("/points?wait=true"), body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.NewStoreConnectivity("qdrant", fmt.Errorf("upsert: status %d", status))
	}

	return nil
}

func (client *Client) Get(ctx context.Context, id string) (memory.Memory, error) {
	status, raw, err := client.do(ctx, http.MethodGet, client.collectionPath("/points/"+id), nil)
	if err != nil {
		return memory.Memory{}, err
	}

	if status == http.StatusNotFound {
		return memory.Memory{}, errors.NewNotFound(id)
	}
	if status != http.StatusOK {
		return memory.Memory{}, errors.NewStoreConnectivity("qdrant", fmt.Errorf("get: status %d", status))
	}

	var out struct {
		Result point `json:"result"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return memory.Memory{}, errors.NewStoreConnectivity("qdrant", err)
	}

	return out.Result.toMemory()
}

func (client *Client) Query(ctx context.Context, embedding []float32, filter memory.Filter, topK int) ([]memory.QueryHit, error) {
	body := map[string]any{
		"vector":       embedding,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  true,
	}

	if qf := encodeFilter(filter); qf != nil {
		body["filter"] = qf
	}

	status, raw, err := client.do(ctx, http.MethodPost, client.collectionPath("/points/search"), body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.NewStoreConnectivity("qdrant", fmt.Errorf("search: status %d", status))
	}

	var out struct {
		Result []point `json:"result"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.NewStoreConnectivity("qdrant", err)
	}

	hits := make([]memory.QueryHit, 0, len(out.Result))
	for _, p := range out.Result {
		mem, err := p.toMemory()
		if err != nil {
			continue
		}
		hits = append(hits, memory.QueryHit{Memory: mem, Similarity: p.Score})
	}

	return hits, nil
}

func (client *Client) List(ctx context.Context, filter memory.Filter, cursor string, limit int) ([]memory.Memory, string, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  true,
	}

	if qf := encodeFilter(filter); qf != nil {
		body["filter"] = qf
	}

	// Qdrant's scroll cursor is an opaque point offset; we carry it as the
	// raw JSON it handed back.
	if cursor != "" {
		body["offset"] = json.RawMessage(cursor)
	}

	status, raw, err := client.do(ctx, http.MethodPost, client.collectionPath("/points/scroll"), body)
	if err != nil {
		return nil, "", err
	}
	if status != http.StatusOK {
		return nil, "", errors.NewStoreConnectivity("qdrant", fmt.Errorf("scroll: status %d", status))
	}

	var out struct {
		Result struct {
			Points         []point         `json:"points"`
			NextPageOffset json.RawMessage `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, "", errors.NewStoreConnectivity("qdrant", err)
	}

	memories := make([]memory.Memory, 0, len(out.Result.Points))
	for _, p := range out.Result.Points {
		mem, err := p.toMemory()
		if err != nil {
			continue
		}
		memories = append(memories, mem)
	}

	next := string(out.Result.NextPageOffset)
	if next == "null" {
		next = ""
	}

	return memories, next, nil
}

func (client *Client) UpdatePayload(ctx context.Context, id string, fields map[string]any) error {
	body := map[string]any{
		"payload": fields,
		"points":  []string{id},
	}

	status, _, err := client.do(ctx, http.MethodPost, client.collectionPath("/points/payload?wait=true"), body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.NewStoreConnectivity("qdrant", fmt.Errorf("set payload: status %d", status))
	}

	return nil
}

func (client *Client) Delete(ctx context.Context, id string) error {
	body := map[string]any{
		"points": []string{id},
	}

	status, _, err := client.do(ctx, http.MethodPost, client.collectionPath("/points/delete?wait=true"), body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.NewStoreConnectivity("qdrant", fmt.Errorf("delete: status %d", status))
	}

	return nil
}

func (client *Client) Ping(ctx context.Context) error {
	status, _, err := client.do(ctx, http.MethodGet, "/collections", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.NewStoreConnectivity("qdrant", fmt.Errorf("ping: status %d", status))
	}
	return nil
}

func (client *Client) collectionPath(suffix string) string {
	return "/collections/" + client.Collection + suffix
}

// do sends one JSON request and returns (status, body). Transport failures
// come back as connectivity errors; HTTP status handling is the caller's.
func (client *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body *bytes.Reader

	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, client.Endpoint+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return 0, nil, errors.NewStoreConnectivity("qdrant", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return 0, nil, errors.NewStoreConnectivity("qdrant", err)
	}

	return resp.StatusCode, buf.Bytes(), nil
}
