package rentals

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pliu/roomlet/internal/auth"
	"github.com/pliu/roomlet/internal/files"
	"github.com/pliu/roomlet/internal/models"
	"github.com/pliu/roomlet/internal/store/sqlstore"
)

type fixture struct {
	svc   *Service
	store *sqlstore.SQLStore
	files *flakyFiles
	alice *models.User
	bob   *models.User
}

func newFixture(t *testing.T, opts Options, notifiers ...Notifier) *fixture {
	t.Helper()

	st, err := sqlstore.New("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	disk, err := files.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	fs := &flakyFiles{DiskStore: disk}

	f := &fixture{
		svc:   NewService(st, fs, auth.NewGuard(nil), opts, zap.NewNop(), notifiers...),
		store: st,
		files: fs,
	}
	f.alice = f.user(t, "alice@x.com", "Alice")
	f.bob = f.user(t, "bob@x.com", "Bob")
	return f
}

func (f *fixture) user(t *testing.T, email, name string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: name, PasswordHash: "unused"}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) room(t *testing.T, owner *models.User, title string, price float64) *models.Room {
	t.Helper()
	room, err := f.svc.CreateRoom(context.Background(), owner, models.RoomFields{Title: title, Price: price})
	require.NoError(t, err)
	return room
}

func ptr[T any](v T) *T { return &v }

// flakyFiles fails Delete for names in failDelete.
type flakyFiles struct {
	*files.DiskStore
	failDelete map[string]bool
}

func (f *flakyFiles) Delete(name string) error {
	if f.failDelete[name] {
		return errors.New("disk on fire")
	}
	return f.DiskStore.Delete(name)
}

func (f *fixture) blobExists(t *testing.T, name string) bool {
	t.Helper()
	ok, err := f.files.Exists(name)
	require.NoError(t, err)
	return ok
}

type recordingNotifier struct {
	mu   sync.Mutex
	apps []*models.Application
	err  error
}

func (r *recordingNotifier) ApplicationCreated(_ context.Context, _ *models.Room, app *models.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps = append(r.apps, app)
	return r.err
}

// interleavedStore runs afterRead once, right after the next room read, so a
// competing write lands between a check and the write that depends on it.
type interleavedStore struct {
	*sqlstore.SQLStore
	afterRead func()
}

func (s *interleavedStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	room, err := s.SQLStore.GetRoom(ctx, id)
	if hook := s.afterRead; hook != nil {
		s.afterRead = nil
		hook()
	}
	return room, err
}
