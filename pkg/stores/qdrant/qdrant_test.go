package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/theapemachine/conscious-go/pkg/errors"
	"github.com/theapemachine/conscious-go/pkg/memory"
)

func TestClientGet(t *testing.T) {
	Convey("Given a qdrant client and a test server", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"result":{"id":"123","vector":[0.5,0.5],"payload":{"text":"hello","importance":7,"tags":["go"],"syncState":"synced"}}}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "mem")
		mem, err := client.Get(context.Background(), "123")

		Convey("Then the memory should be parsed correctly", func() {
			So(err, ShouldBeNil)
			So(mem.ID, ShouldEqual, "123")
			So(mem.Text, ShouldEqual, "hello")
			So(mem.Importance, ShouldEqual, 7)
			So(mem.Tags, ShouldResemble, []string{"go"})
			So(mem.SyncState, ShouldEqual, memory.SyncStateSynced)
			So(len(mem.Embedding), ShouldEqual, 2)
		})
	})

	Convey("Given a test server that returns 404", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()

		client := New(ts.URL, "mem")
		_, err := client.Get(context.Background(), "missing")

		Convey("Then a not-found error should be returned", func() {
			So(err, ShouldNotBeNil)
			So(errors.Is(err, errors.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestClientQuery(t *testing.T) {
	Convey("Given a qdrant client and a test server for search", t, func() {
		var gotBody map[string]any

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&gotBody)
			fmt.Fprint(w, `{"result":[{"id":"1","score":0.9,"payload":{"text":"a"}},{"id":"2","score":0.4,"payload":{"text":"b"}}]}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "mem")
		hits, err := client.Query(context.Background(), []float32{0.1}, memory.Filter{Tags: []string{"go"}}, 2)

		Convey("Then the hits should be returned with similarities", func() {
			So(err, ShouldBeNil)
			So(len(hits), ShouldEqual, 2)
			So(hits[0].Memory.Text, ShouldEqual, "a")
			So(hits[0].Similarity, ShouldAlmostEqual, 0.9, 0.0001)
			So(hits[1].Memory.Text, ShouldEqual, "b")
		})

		Convey("Then the filter should be sent to the server", func() {
			So(gotBody["filter"], ShouldNotBeNil)
		})
	})
}

func TestClientUpsert(t *testing.T) {
	Convey("Given a qdrant client and a capturing test server", t, func() {
		var gotBody map[string]any

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&gotBody)
			fmt.Fprint(w, `{"result":{},"status":"ok"}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "mem")
		err := client.Upsert(context.Background(), memory.Memory{
			ID:         "abc",
			Text:       "note",
			Embedding:  []float32{0.1, 0.2},
			Tags:       []string{"Go", "Testing"},
			Importance: 5,
			Timestamp:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
			SyncState:  memory.SyncStateUnsynced,
		})

		Convey("Then the point payload should carry the metadata", func() {
			So(err, ShouldBeNil)

			points := gotBody["points"].([]any)
			So(len(points), ShouldEqual, 1)

			point := points[0].(map[string]any)
			So(point["id"], ShouldEqual, "abc")

			payload := point["payload"].(map[string]any)
			So(payload["text"], ShouldEqual, "note")
			So(payload["syncState"], ShouldEqual, "unsynced")
			So(payload["ts"], ShouldNotBeNil)
		})

		Convey("Then the tags should keep their casing with a lowercased shadow", func() {
			So(err, ShouldBeNil)

			payload := gotBody["points"].([]any)[0].(map[string]any)["payload"].(map[string]any)
			So(payload["tags"], ShouldResemble, []any{"Go", "Testing"})
			So(payload["tagsLower"], ShouldResemble, []any{"go", "testing"})
		})
	})
}

func TestClientList(t *testing.T) {
	Convey("Given a qdrant client and a scrolling test server", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"result":{"points":[{"id":"1","payload":{"text":"a"}}],"next_page_offset":"2"}}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "mem")
		memories, next, err := client.List(context.Background(), memory.Filter{}, "", 10)

		Convey("Then one page and a cursor should come back", func() {
			So(err, ShouldBeNil)
			So(len(memories), ShouldEqual, 1)
			So(memories[0].Text, ShouldEqual, "a")
			So(next, ShouldEqual, `"2"`)
		})
	})

	Convey("Given a test server that ends the scroll", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"result":{"points":[],"next_page_offset":null}}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "mem")
		memories, next, err := client.List(context.Background(), memory.Filter{}, `"2"`, 10)

		Convey("Then the cursor should be empty", func() {
			So(err, ShouldBeNil)
			So(len(memories), ShouldEqual, 0)
			So(next, ShouldEqual, "")
		})
	})
}

func TestClientDelete(t *testing.T) {
	Convey("Given a qdrant client and a test server", t, func() {
		var gotPath string

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			fmt.Fprint(w, `{"status":"ok"}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "mem")
		err := client.Delete(context.Background(), "abc")

		Convey("Then the delete endpoint should be hit", func() {
			So(err, ShouldBeNil)
			So(gotPath, ShouldEqual, "/collections/mem/points/delete")
		})
	})
}

func TestClientPingUnreachable(t *testing.T) {
	Convey("Given a client pointed at a dead endpoint", t, func() {
		client := New("http://127.0.0.1:1", "mem")
		err := client.Ping(context.Background())

		Convey("Then a connectivity error should be returned", func() {
			So(err, ShouldNotBeNil)

			var connErr *errors.StoreConnectivityError
			So(errors.As(err, &connErr), ShouldBeTrue)
			So(connErr.Store, ShouldEqual, "qdrant")
		})
	})
}

func TestEncodeFilter(t *testing.T) {
	Convey("Given an empty filter", t, func() {
		Convey("Then no filter clause should be produced", func() {
			So(encodeFilter(memory.Filter{}), ShouldBeNil)
		})
	})

	Convey("Given a filter with tags and an importance range", t, func() {
		qf := encodeFilter(memory.Filter{
			Tags:          []string{"go", "testing"},
			MinImportance: 3,
			MaxImportance: 8,
		})

		Convey("Then all conditions should appear under must", func() {
			So(qf, ShouldNotBeNil)

			must := qf["must"].([]map[string]any)
			So(len(must), ShouldEqual, 3)
		})
	})

	Convey("Given a filter with mixed-case tags", t, func() {
		qf := encodeFilter(memory.Filter{Tags: []string{"Go"}})

		Convey("Then the condition should match the lowercased shadow field", func() {
			must := qf["must"].([]map[string]any)
			So(must[0]["key"], ShouldEqual, "tagsLower")
			So(must[0]["match"], ShouldResemble, map[string]any{"value": "go"})
		})
	})
}
