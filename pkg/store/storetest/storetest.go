// Package storetest provides a behavioral contract shared by all
// store.Store implementations.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/project"
	"github.com/matzehuels/framegraph/pkg/store"
)

// Sample returns a small valid document called name.
func Sample(name string) *project.Document {
	return &project.Document{
		Version: project.FormatVersion,
		Name:    name,
		Nodes: []project.NodeDoc{
			{Name: "bg", Type: "solid", Params: map[string]any{"color": "#102030ff", "width": 32.0, "height": 16.0}},
			{Name: "preview", Type: "viewer"},
		},
		Edges: []project.EdgeDoc{{From: "bg.texture", To: "preview.texture"}},
	}
}

// RunContract exercises s. The store must start empty.
func RunContract(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)

		_, err = s.Load(ctx, "missing")
		assert.True(t, fgerrors.Is(err, fgerrors.ErrCodeNotFound), "Load missing: %v", err)
		err = s.Delete(ctx, "missing")
		assert.True(t, fgerrors.Is(err, fgerrors.ErrCodeNotFound), "Delete missing: %v", err)
	})

	t.Run("save and load", func(t *testing.T) {
		want := Sample("alpha")
		require.NoError(t, s.Save(ctx, want))

		got, err := s.Load(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Edges, got.Edges)
		require.Len(t, got.Nodes, len(want.Nodes))
		assert.Equal(t, "#102030ff", got.Nodes[0].Params["color"])
	})

	t.Run("overwrite", func(t *testing.T) {
		doc := Sample("alpha")
		doc.Nodes = doc.Nodes[:1]
		doc.Edges = nil
		require.NoError(t, s.Save(ctx, doc))

		got, err := s.Load(ctx, "alpha")
		require.NoError(t, err)
		assert.Len(t, got.Nodes, 1)
		assert.Empty(t, got.Edges)
	})

	t.Run("list sorted", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, Sample("beta")))
		require.NoError(t, s.Save(ctx, Sample("aardvark")))

		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"aardvark", "alpha", "beta"}, names)
	})

	t.Run("rejects invalid", func(t *testing.T) {
		assert.Error(t, s.Save(ctx, nil))
		assert.Error(t, s.Save(ctx, Sample("../escape")))
		bad := Sample("broken")
		bad.Edges = append(bad.Edges, project.EdgeDoc{From: "nope.texture", To: "preview.texture"})
		assert.Error(t, s.Save(ctx, bad))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "beta"))
		_, err := s.Load(ctx, "beta")
		assert.True(t, fgerrors.Is(err, fgerrors.ErrCodeNotFound))

		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"aardvark", "alpha"}, names)
	})
}
