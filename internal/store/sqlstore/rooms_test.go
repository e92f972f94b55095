package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pliu/roomlet/internal/models"
	"github.com/pliu/roomlet/internal/store"
)

func ptr[T any](v T) *T { return &v }

func TestCreateAndGetRoom(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	owner := createTestUser(t, "owner@x.com")
	room := &models.Room{Title: "Bedroom 1", Description: ptr("Sunny"), Price: 500, OwnerID: owner.ID}
	require.NoError(t, testStore.CreateRoom(ctx, room))
	assert.NotZero(t, room.ID)

	got, err := testStore.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bedroom 1", got.Title)
	require.NotNil(t, got.Description)
	assert.Equal(t, "Sunny", *got.Description)
	assert.Nil(t, got.Location)
	assert.False(t, got.IsClosed)
	assert.Equal(t, owner.Email, got.OwnerName)
	assert.Empty(t, got.Images)

	_, err = testStore.GetRoom(ctx, room.ID+100)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateAndCloseRoom(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	owner := createTestUser(t, "owner@x.com")
	room := createTestRoom(t, owner.ID, "Old", 100)

	room.Title = "New"
	room.Location = ptr("Lisbon")
	room.Price = 120
	require.NoError(t, testStore.UpdateRoom(ctx, room))

	require.NoError(t, testStore.CloseRoom(ctx, room.ID))
	require.NoError(t, testStore.CloseRoom(ctx, room.ID))

	got, err := testStore.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, 120.0, got.Price)
	assert.True(t, got.IsClosed)

	assert.ErrorIs(t, testStore.CloseRoom(ctx, 9999), store.ErrNotFound)
	assert.ErrorIs(t, testStore.UpdateRoom(ctx, &models.Room{ID: 9999, Title: "x", Price: 1}), store.ErrNotFound)
}

func TestListOpenRoomsPriceBounds(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	owner := createTestUser(t, "owner@x.com")
	for _, p := range []float64{50, 100, 150, 200, 250} {
		createTestRoom(t, owner.ID, "room", p)
	}
	closed := createTestRoom(t, owner.ID, "closed", 150)
	require.NoError(t, testStore.CloseRoom(ctx, closed.ID))

	rooms, err := testStore.ListOpenRooms(ctx, models.RoomFilter{MinPrice: ptr(100.0), MaxPrice: ptr(200.0)})
	require.NoError(t, err)
	require.Len(t, rooms, 3)
	assert.Equal(t, 200.0, rooms[0].Price)
	assert.Equal(t, 150.0, rooms[1].Price)
	assert.Equal(t, 100.0, rooms[2].Price)

	all, err := testStore.ListOpenRooms(ctx, models.RoomFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	mine, err := testStore.ListRoomsByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, mine, 6)
	assert.Equal(t, closed.ID, mine[0].ID)
}

func TestImages(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	owner := createTestUser(t, "owner@x.com")
	room := createTestRoom(t, owner.ID, "with images", 300)
	other := createTestRoom(t, owner.ID, "other", 300)

	img := &models.RoomImage{RoomID: room.ID, Filename: "a.png"}
	require.NoError(t, testStore.CreateImage(ctx, img))
	require.NoError(t, testStore.CreateImage(ctx, &models.RoomImage{RoomID: room.ID, Filename: "b.jpg"}))
	assert.ErrorIs(t, testStore.CreateImage(ctx, &models.RoomImage{RoomID: other.ID, Filename: "a.png"}), store.ErrDuplicate)

	got, err := testStore.GetImage(ctx, room.ID, img.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.png", got.Filename)

	_, err = testStore.GetImage(ctx, other.ID, img.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	withImages, err := testStore.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, withImages.Images, 2)
	assert.Equal(t, "a.png", withImages.Images[0].Filename)

	require.NoError(t, testStore.DeleteImage(ctx, img.ID))
	assert.ErrorIs(t, testStore.DeleteImage(ctx, img.ID), store.ErrNotFound)
}

func TestApplicationsOrderedOldestFirst(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	owner := createTestUser(t, "owner@x.com")
	room := createTestRoom(t, owner.ID, "room", 300)

	for _, name := range []string{"First", "Second", "Third"} {
		app := &models.Application{RoomID: room.ID, FullName: name, Email: "x@y.z", Course: "CS", Sex: "F", Age: 20}
		require.NoError(t, testStore.CreateApplication(ctx, app))
	}

	apps, err := testStore.ListApplications(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, apps, 3)
	assert.Equal(t, "First", apps[0].FullName)
	assert.Equal(t, "Third", apps[2].FullName)
	assert.Nil(t, apps[0].Phone)
}

func TestDeleteRoomCascades(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	owner := createTestUser(t, "owner@x.com")
	room := createTestRoom(t, owner.ID, "doomed", 300)
	require.NoError(t, testStore.CreateImage(ctx, &models.RoomImage{RoomID: room.ID, Filename: "one.png"}))
	require.NoError(t, testStore.CreateImage(ctx, &models.RoomImage{RoomID: room.ID, Filename: "two.png"}))
	require.NoError(t, testStore.CreateApplication(ctx, &models.Application{RoomID: room.ID, FullName: "A", Email: "a@b.c", Course: "CS", Sex: "M", Age: 30}))

	filenames, err := testStore.DeleteRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"one.png", "two.png"}, filenames)

	_, err = testStore.GetRoom(ctx, room.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	apps, err := testStore.ListApplications(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, apps)

	_, err = testStore.DeleteRoom(ctx, room.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateRoom_DatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewWithDB(db, "postgres")
	mock.ExpectQuery(`INSERT INTO rooms`).WillReturnError(errors.New("connection reset"))

	err = s.CreateRoom(context.Background(), &models.Room{Title: "x", Price: 1, OwnerID: 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRoom_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewWithDB(db, "postgres")
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT filename FROM room_images`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"filename"}).AddRow("a.png"))
	mock.ExpectExec(`DELETE FROM applications`).WithArgs(int64(7)).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	filenames, err := s.DeleteRoom(context.Background(), 7)
	require.Error(t, err)
	assert.Nil(t, filenames)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateApplication_RoomMustBeOpen(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	owner := createTestUser(t, "owner@x.com")
	room := createTestRoom(t, owner.ID, "room", 300)
	require.NoError(t, testStore.CloseRoom(ctx, room.ID))

	app := &models.Application{RoomID: room.ID, FullName: "A", Email: "a@b.c", Course: "CS", Sex: "M", Age: 30}
	assert.ErrorIs(t, testStore.CreateApplication(ctx, app), store.ErrClosed)

	app.RoomID = room.ID + 100
	assert.ErrorIs(t, testStore.CreateApplication(ctx, app), store.ErrNotFound)

	apps, err := testStore.ListApplications(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestCreateImage_MissingRoom(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	err := testStore.CreateImage(context.Background(), &models.RoomImage{RoomID: 999, Filename: "orphan.png"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateApplication_LocksRoomRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewWithDB(db, "postgres")
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT is_closed FROM rooms WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"is_closed"}).AddRow(true))
	mock.ExpectRollback()

	err = s.CreateApplication(context.Background(), &models.Application{RoomID: 7, FullName: "A", Email: "a@b.c", Course: "CS", Sex: "M", Age: 30})
	assert.ErrorIs(t, err, store.ErrClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
