package rentals

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pliu/roomlet/internal/apperr"
	"github.com/pliu/roomlet/internal/auth"
	"github.com/pliu/roomlet/internal/models"
	"github.com/pliu/roomlet/internal/store/sqlstore"
)

func addPNG(t *testing.T, f *fixture, owner *models.User, roomID int64) *models.RoomImage {
	t.Helper()
	img, err := f.svc.AddImage(context.Background(), owner, roomID, Upload{
		Filename: "photo.png",
		Body:     bytes.NewReader([]byte("\x89PNG fake")),
	})
	require.NoError(t, err)
	return img
}

func TestAddImage(t *testing.T) {
	f := newFixture(t, Options{PublicPath: "/images"})
	ctx := context.Background()
	room := f.room(t, f.alice, "Room", 100)

	img, err := f.svc.AddImage(ctx, f.alice, room.ID, Upload{
		Filename: "../../etc/Holiday.JPG",
		Body:     strings.NewReader("jpeg bytes"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(img.Filename, ".jpg"))
	assert.NotContains(t, img.Filename, "Holiday")
	assert.NotContains(t, img.Filename, "/")
	assert.Equal(t, "/images/"+img.Filename, img.URL)
	assert.True(t, f.blobExists(t, img.Filename))

	got, err := f.svc.GetRoom(ctx, nil, room.ID)
	require.NoError(t, err)
	require.Len(t, got.Images, 1)
	assert.Equal(t, img.ID, got.Images[0].ID)
	assert.Equal(t, img.URL, got.Images[0].URL)

	// Two uploads of the same name never collide
	again, err := f.svc.AddImage(ctx, f.alice, room.ID, Upload{Filename: "Holiday.jpg", Body: strings.NewReader("x")})
	require.NoError(t, err)
	assert.NotEqual(t, img.Filename, again.Filename)
}

func TestAddImage_ContentTypeFallback(t *testing.T) {
	f := newFixture(t, Options{})
	room := f.room(t, f.alice, "Room", 100)

	img, err := f.svc.AddImage(context.Background(), f.alice, room.ID, Upload{
		Filename:    "blob",
		ContentType: "image/webp",
		Body:        strings.NewReader("webp"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(img.Filename, ".webp"))
}

func TestAddImage_Rejections(t *testing.T) {
	f := newFixture(t, Options{MaxImageBytes: 16})
	ctx := context.Background()
	room := f.room(t, f.alice, "Room", 100)

	_, err := f.svc.AddImage(ctx, f.alice, room.ID, Upload{Filename: "notes.txt", Body: strings.NewReader("x")})
	assert.True(t, apperr.Is(err, apperr.UnsupportedFormat))

	_, err = f.svc.AddImage(ctx, f.alice, room.ID, Upload{Filename: "raw", ContentType: "application/pdf", Body: strings.NewReader("x")})
	assert.True(t, apperr.Is(err, apperr.UnsupportedFormat))

	_, err = f.svc.AddImage(ctx, f.alice, room.ID, Upload{Filename: "big.png", Body: strings.NewReader(strings.Repeat("x", 17))})
	assert.True(t, apperr.Is(err, apperr.PayloadTooLarge))

	// Exactly at the limit is fine
	_, err = f.svc.AddImage(ctx, f.alice, room.ID, Upload{Filename: "ok.png", Body: strings.NewReader(strings.Repeat("x", 16))})
	assert.NoError(t, err)

	_, err = f.svc.AddImage(ctx, f.bob, room.ID, Upload{Filename: "bob.png", Body: strings.NewReader("x")})
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	_, err = f.svc.AddImage(ctx, f.alice, room.ID+100, Upload{Filename: "x.png", Body: strings.NewReader("x")})
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

// failingImages makes every image insert fail.
type failingImages struct {
	*sqlstore.SQLStore
}

func (failingImages) CreateImage(context.Context, *models.RoomImage) error {
	return errors.New("insert failed")
}

func TestAddImage_RowFailureRemovesBlob(t *testing.T) {
	f := newFixture(t, Options{})
	room := f.room(t, f.alice, "Room", 100)

	var written string
	svc := NewService(failingImages{f.store}, f.files, auth.NewGuard(nil), Options{}, zap.NewNop())
	svc.newName = func(ext string) string {
		written = "fixed." + ext
		return written
	}

	_, err := svc.AddImage(context.Background(), f.alice, room.ID, Upload{Filename: "a.gif", Body: strings.NewReader("gif")})
	assert.True(t, apperr.Is(err, apperr.StorageFailure))
	assert.Equal(t, "fixed.gif", written)
	assert.False(t, f.blobExists(t, written))
}

func TestDeleteImage(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	room := f.room(t, f.alice, "Room", 100)
	other := f.room(t, f.alice, "Other", 100)
	img := addPNG(t, f, f.alice, room.ID)

	// Image must belong to the given room
	assert.True(t, apperr.Is(f.svc.DeleteImage(ctx, f.alice, other.ID, img.ID), apperr.NotFound))
	assert.True(t, apperr.Is(f.svc.DeleteImage(ctx, f.bob, room.ID, img.ID), apperr.Forbidden))
	assert.True(t, f.blobExists(t, img.Filename))

	require.NoError(t, f.svc.DeleteImage(ctx, f.alice, room.ID, img.ID))
	assert.False(t, f.blobExists(t, img.Filename))

	got, err := f.svc.GetRoom(ctx, nil, room.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Images)

	assert.True(t, apperr.Is(f.svc.DeleteImage(ctx, f.alice, room.ID, img.ID), apperr.NotFound))
}

func TestAddImage_RoomDeletedAfterRead(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	room := f.room(t, f.alice, "Room", 100)

	st := &interleavedStore{SQLStore: f.store, afterRead: func() {
		_, err := f.store.DeleteRoom(ctx, room.ID)
		require.NoError(t, err)
	}}
	svc := NewService(st, f.files, auth.NewGuard(nil), Options{}, zap.NewNop())
	svc.newName = func(ext string) string { return "orphan." + ext }

	_, err := svc.AddImage(ctx, f.alice, room.ID, Upload{Filename: "a.png", Body: strings.NewReader("png")})
	assert.True(t, apperr.Is(err, apperr.NotFound), "got %v", err)
	assert.False(t, f.blobExists(t, "orphan.png"))
}

func TestCanAddImage(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	room := f.room(t, f.alice, "Room", 100)

	assert.NoError(t, f.svc.CanAddImage(ctx, f.alice, room.ID))
	assert.True(t, apperr.Is(f.svc.CanAddImage(ctx, f.bob, room.ID), apperr.Forbidden))
	assert.True(t, apperr.Is(f.svc.CanAddImage(ctx, f.bob, room.ID+100), apperr.NotFound))
	assert.True(t, apperr.Is(f.svc.CanAddImage(ctx, nil, room.ID), apperr.Unauthenticated))
}
