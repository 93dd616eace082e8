// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docstore

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestPutAssignsID(t *testing.T) {
	store := openTestStore(t)

	id, err := store.Put(&Document{Type: "session"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, "session", doc.Type)
}

func TestGetNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPutLastWriteWins(t *testing.T) {
	store := openTestStore(t)

	doc := &Document{ID: "m1", Type: "ai", SessionID: "s1", Body: json.RawMessage(`{"text":"partial"}`)}
	_, err := store.Put(doc)
	require.NoError(t, err)

	doc.Body = json.RawMessage(`{"text":"final"}`)
	_, err = store.Put(doc)
	require.NoError(t, err)

	got, err := store.Get("m1")
	require.NoError(t, err)
	require.JSONEq(t, `{"text":"final"}`, string(got.Body))
}

func TestFindOrderedBySession(t *testing.T) {
	store := openTestStore(t)

	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		_, err := store.Put(&Document{
			ID:        id,
			Type:      "user",
			SessionID: "s1",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			Body:      json.RawMessage(`{}`),
		})
		require.NoError(t, err)
	}
	// A document in another session must not leak into the results.
	_, err := store.Put(&Document{ID: "x", Type: "user", SessionID: "s2", Body: json.RawMessage(`{}`)})
	require.NoError(t, err)

	docs, err := store.Find(Query{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	require.Equal(t, "a", docs[0].ID)
	require.Equal(t, "c", docs[2].ID)

	docs, err = store.Find(Query{SessionID: "s1", Descending: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "c", docs[0].ID)
}

func TestFindByType(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Put(&Document{ID: "s1", Type: "session", Body: json.RawMessage(`{}`)})
	require.NoError(t, err)
	_, err = store.Put(&Document{ID: "m1", Type: "user", SessionID: "s1", Body: json.RawMessage(`{}`)})
	require.NoError(t, err)

	docs, err := store.Find(Query{Type: "session"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "s1", docs[0].ID)
}

func TestFindKeepsInsertOrderWithinMillisecond(t *testing.T) {
	store := openTestStore(t)

	// Ids chosen so lexical order disagrees with insert order: created_at
	// alone cannot break the tie and id must not be the tiebreak.
	created := time.Now()
	_, err := store.Put(&Document{ID: "zz-user", Type: "user", SessionID: "s1",
		CreatedAt: created, Body: json.RawMessage(`{}`)})
	require.NoError(t, err)
	_, err = store.Put(&Document{ID: "aa-ai", Type: "ai", SessionID: "s1",
		CreatedAt: created, Body: json.RawMessage(`{}`)})
	require.NoError(t, err)

	docs, err := store.Find(Query{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "zz-user", docs[0].ID)
	require.Equal(t, "aa-ai", docs[1].ID)

	// Descending reverses the tiebreak too.
	docs, err = store.Find(Query{SessionID: "s1", Descending: true})
	require.NoError(t, err)
	require.Equal(t, "aa-ai", docs[0].ID)

	// A rewrite must not move a document to the end of the order.
	_, err = store.Put(&Document{ID: "zz-user", Type: "user", SessionID: "s1",
		CreatedAt: created, Body: json.RawMessage(`{"text":"edited"}`)})
	require.NoError(t, err)

	docs, err = store.Find(Query{SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, "zz-user", docs[0].ID)
}

func TestSubscribeSeesLocalWrites(t *testing.T) {
	store := openTestStore(t)

	results := make(chan int, 8)
	cancel, err := store.Subscribe(Query{Type: "user"}, func(docs []*Document) {
		results <- len(docs)
	})
	require.NoError(t, err)
	defer cancel()

	// Initial (empty) result arrives synchronously.
	require.Equal(t, 0, <-results)

	_, err = store.Put(&Document{Type: "user", SessionID: "s1", Body: json.RawMessage(`{}`)})
	require.NoError(t, err)

	select {
	case n := <-results:
		require.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("live query never fired after Put")
	}
}
