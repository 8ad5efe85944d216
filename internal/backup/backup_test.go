package backup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrlesur/live-memory/internal/objectstore"
)

func seedSpace(t *testing.T, store objectstore.Store, spaceID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, spaceID+"/_meta.json", []byte(`{"space_id":"`+spaceID+`"}`), "application/json"))
	require.NoError(t, store.Put(ctx, spaceID+"/_rules.md", []byte("# Rules"), "text/markdown"))
	require.NoError(t, store.Put(ctx, spaceID+"/bank/overview.md", []byte("overview content"), "text/markdown"))
}

func TestService_Create(t *testing.T) {
	t.Run("Should copy every object into a timestamped backup prefix", func(t *testing.T) {
		store := objectstore.NewFake()
		ctx := context.Background()
		seedSpace(t, store, "demo")

		svc := NewService(store)
		backupID, err := svc.Create(ctx, "demo", "before migration")
		require.NoError(t, err)
		assert.Contains(t, backupID, "demo/")

		objs, err := store.ListObjects(ctx, "_backups/"+backupID+"/", 0)
		require.NoError(t, err)
		// 3 seeded objects + manifest
		assert.Len(t, objs, 4)
	})

	t.Run("Should fail for a space that does not exist", func(t *testing.T) {
		store := objectstore.NewFake()
		svc := NewService(store)
		_, err := svc.Create(context.Background(), "missing", "")
		assert.Error(t, err)
	})
}

func TestService_List(t *testing.T) {
	t.Run("Should enumerate backups scoped to a space", func(t *testing.T) {
		store := objectstore.NewFake()
		ctx := context.Background()
		seedSpace(t, store, "demo")
		svc := NewService(store)

		_, err := svc.Create(ctx, "demo", "")
		require.NoError(t, err)

		entries, err := svc.List(ctx, "demo")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "demo", entries[0].SpaceID)
	})

	t.Run("Should enumerate every space's backups when unscoped", func(t *testing.T) {
		store := objectstore.NewFake()
		ctx := context.Background()
		seedSpace(t, store, "demo-a")
		seedSpace(t, store, "demo-b")
		svc := NewService(store)

		_, err := svc.Create(ctx, "demo-a", "")
		require.NoError(t, err)
		_, err = svc.Create(ctx, "demo-b", "")
		require.NoError(t, err)

		entries, err := svc.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})
}

func TestService_Restore(t *testing.T) {
	t.Run("Should fail if the target space already exists", func(t *testing.T) {
		store := objectstore.NewFake()
		ctx := context.Background()
		seedSpace(t, store, "demo")
		svc := NewService(store)

		backupID, err := svc.Create(ctx, "demo", "")
		require.NoError(t, err)

		err = svc.Restore(ctx, backupID)
		assert.Error(t, err)
	})

	t.Run("Should restore every object into a fresh space", func(t *testing.T) {
		store := objectstore.NewFake()
		ctx := context.Background()
		seedSpace(t, store, "demo")
		svc := NewService(store)

		backupID, err := svc.Create(ctx, "demo", "")
		require.NoError(t, err)

		_, err = store.DeleteMany(ctx, []string{"demo/_meta.json", "demo/_rules.md", "demo/bank/overview.md"})
		require.NoError(t, err)

		require.NoError(t, svc.Restore(ctx, backupID))

		body, ok, err := store.Get(ctx, "demo/bank/overview.md")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "overview content", string(body))
	})

	t.Run("Should fail for an unknown backup id", func(t *testing.T) {
		store := objectstore.NewFake()
		svc := NewService(store)
		err := svc.Restore(context.Background(), "demo/20200101T000000")
		assert.Error(t, err)
	})
}

func TestService_Download(t *testing.T) {
	t.Run("Should produce a valid gzip-tar archive including the manifest and the copied objects", func(t *testing.T) {
		store := objectstore.NewFake()
		ctx := context.Background()
		seedSpace(t, store, "demo")
		svc := NewService(store)

		backupID, err := svc.Create(ctx, "demo", "")
		require.NoError(t, err)

		data, err := svc.Download(ctx, backupID)
		require.NoError(t, err)

		gz, err := gzip.NewReader(bytes.NewReader(data))
		require.NoError(t, err)
		tr := tar.NewReader(gz)

		names := map[string]bool{}
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			names[hdr.Name] = true
		}
		assert.True(t, names["_manifest.json"])
		assert.True(t, names["bank/overview.md"])
	})
}

func TestService_Delete(t *testing.T) {
	t.Run("Should remove every object under the backup prefix", func(t *testing.T) {
		store := objectstore.NewFake()
		ctx := context.Background()
		seedSpace(t, store, "demo")
		svc := NewService(store)

		backupID, err := svc.Create(ctx, "demo", "")
		require.NoError(t, err)

		n, err := svc.Delete(ctx, backupID)
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		entries, err := svc.List(ctx, "demo")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
