package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pliu/roomlet/internal/models"
	"github.com/pliu/roomlet/internal/store"
)

const roomColumns = `r.id, r.title, r.description, r.location, r.price, r.is_closed, r.owner_id, u.name, u.email, r.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*models.Room, error) {
	var (
		room        models.Room
		description sql.NullString
		location    sql.NullString
	)
	err := row.Scan(&room.ID, &room.Title, &description, &location, &room.Price, &room.IsClosed,
		&room.OwnerID, &room.OwnerName, &room.OwnerEmail, &room.CreatedAt)
	if err != nil {
		return nil, err
	}
	room.Description = stringPtr(description)
	room.Location = stringPtr(location)
	room.Images = []models.RoomImage{}
	return &room, nil
}

// CreateRoom inserts an open room and fills in its ID and CreatedAt.
func (s *SQLStore) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now()
	}
	room.IsClosed = false
	query := s.rebind(`INSERT INTO rooms (title, description, location, price, is_closed, owner_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	return s.db.QueryRowContext(ctx, query, room.Title, nullString(room.Description), nullString(room.Location),
		room.Price, false, room.OwnerID, room.CreatedAt).Scan(&room.ID)
}

// GetRoom returns the room with its owner name and images.
func (s *SQLStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	query := s.rebind("SELECT " + roomColumns + " FROM rooms r JOIN users u ON u.id = r.owner_id WHERE r.id = ?")
	room, err := scanRoom(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	rooms := []models.Room{*room}
	if err := s.attachImages(ctx, rooms); err != nil {
		return nil, err
	}
	return &rooms[0], nil
}

func (s *SQLStore) UpdateRoom(ctx context.Context, room *models.Room) error {
	query := s.rebind("UPDATE rooms SET title = ?, description = ?, location = ?, price = ? WHERE id = ?")
	result, err := s.db.ExecContext(ctx, query, room.Title, nullString(room.Description), nullString(room.Location), room.Price, room.ID)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// CloseRoom sets is_closed. There is no statement that clears it.
func (s *SQLStore) CloseRoom(ctx context.Context, id int64) error {
	query := s.rebind("UPDATE rooms SET is_closed = ? WHERE id = ?")
	result, err := s.db.ExecContext(ctx, query, true, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// DeleteRoom removes the room, its images and its applications in one
// transaction and returns the filenames of the removed images so the caller
// can clean up blobs after commit.
func (s *SQLStore) DeleteRoom(ctx context.Context, id int64) ([]string, error) {
	var filenames []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, s.rebind("SELECT filename FROM room_images WHERE room_id = ? ORDER BY id"), id)
		if err != nil {
			return err
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return err
			}
			filenames = append(filenames, name)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		// Delete children first (foreign key constraint)
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM applications WHERE room_id = ?"), id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM room_images WHERE room_id = ?"), id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, s.rebind("DELETE FROM rooms WHERE id = ?"), id)
		if err != nil {
			return err
		}
		return expectOne(result)
	})
	if err != nil {
		return nil, err
	}
	return filenames, nil
}

// ListOpenRooms returns open rooms within the filter's inclusive price
// bounds, newest first.
func (s *SQLStore) ListOpenRooms(ctx context.Context, filter models.RoomFilter) ([]models.Room, error) {
	where := []string{"r.is_closed = ?"}
	args := []any{false}
	if filter.MinPrice != nil {
		where = append(where, "r.price >= ?")
		args = append(args, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		where = append(where, "r.price <= ?")
		args = append(args, *filter.MaxPrice)
	}
	query := "SELECT " + roomColumns + " FROM rooms r JOIN users u ON u.id = r.owner_id WHERE " +
		strings.Join(where, " AND ") + " ORDER BY r.created_at DESC, r.id DESC"
	return s.listRooms(ctx, s.rebind(query), args...)
}

// ListRoomsByOwner returns every room of the owner, open or closed, newest first.
func (s *SQLStore) ListRoomsByOwner(ctx context.Context, ownerID int64) ([]models.Room, error) {
	query := s.rebind("SELECT " + roomColumns + ` FROM rooms r JOIN users u ON u.id = r.owner_id
		WHERE r.owner_id = ? ORDER BY r.created_at DESC, r.id DESC`)
	return s.listRooms(ctx, query, ownerID)
}

func (s *SQLStore) listRooms(ctx context.Context, query string, args ...any) ([]models.Room, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	rooms := []models.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows must be closed before the next query: sqlite runs on one connection.
	if err := s.attachImages(ctx, rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *SQLStore) attachImages(ctx context.Context, rooms []models.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	index := make(map[int64]int, len(rooms))
	args := make([]any, 0, len(rooms))
	for i, r := range rooms {
		index[r.ID] = i
		args = append(args, r.ID)
	}

	query := s.rebind("SELECT id, room_id, filename FROM room_images WHERE room_id IN (" + s.inClause(len(args)) + ") ORDER BY id ASC")
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var img models.RoomImage
		if err := rows.Scan(&img.ID, &img.RoomID, &img.Filename); err != nil {
			return err
		}
		i := index[img.RoomID]
		rooms[i].Images = append(rooms[i].Images, img)
	}
	return rows.Err()
}

func (s *SQLStore) CreateImage(ctx context.Context, image *models.RoomImage) error {
	query := s.rebind("INSERT INTO room_images (room_id, filename, created_at) VALUES (?, ?, ?) RETURNING id")
	err := s.db.QueryRowContext(ctx, query, image.RoomID, image.Filename, now()).Scan(&image.ID)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return store.ErrDuplicate
		case isForeignKeyViolation(err):
			return store.ErrNotFound
		}
		return err
	}
	return nil
}

// GetImage returns the image only if it belongs to the given room.
func (s *SQLStore) GetImage(ctx context.Context, roomID, imageID int64) (*models.RoomImage, error) {
	var img models.RoomImage
	query := s.rebind("SELECT id, room_id, filename FROM room_images WHERE id = ? AND room_id = ?")
	if err := s.db.QueryRowContext(ctx, query, imageID, roomID).Scan(&img.ID, &img.RoomID, &img.Filename); err != nil {
		return nil, notFound(err)
	}
	return &img, nil
}

func (s *SQLStore) DeleteImage(ctx context.Context, imageID int64) error {
	result, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM room_images WHERE id = ?"), imageID)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// CreateApplication inserts the application only while its room exists and
// is open. The room row is read and locked in the same transaction as the
// insert, so a concurrent close or delete either waits or wins outright.
// A missing room yields store.ErrNotFound, a closed one store.ErrClosed.
func (s *SQLStore) CreateApplication(ctx context.Context, app *models.Application) error {
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now()
	}
	lock := "SELECT is_closed FROM rooms WHERE id = ?"
	if s.driverName == "postgres" {
		lock += " FOR UPDATE"
	}
	insert := s.rebind(`INSERT INTO applications (room_id, full_name, email, phone, course, sex, age, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var closed bool
		if err := tx.QueryRowContext(ctx, s.rebind(lock), app.RoomID).Scan(&closed); err != nil {
			return notFound(err)
		}
		if closed {
			return store.ErrClosed
		}
		err := tx.QueryRowContext(ctx, insert, app.RoomID, app.FullName, app.Email, nullString(app.Phone),
			app.Course, app.Sex, app.Age, nullString(app.Message), app.CreatedAt).Scan(&app.ID)
		if isForeignKeyViolation(err) {
			return store.ErrNotFound
		}
		return err
	})
}

// ListApplications returns the room's applications, oldest first.
func (s *SQLStore) ListApplications(ctx context.Context, roomID int64) ([]models.Application, error) {
	query := s.rebind(`SELECT id, room_id, full_name, email, phone, course, sex, age, message, created_at
		FROM applications WHERE room_id = ? ORDER BY created_at ASC, id ASC`)
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := []models.Application{}
	for rows.Next() {
		var (
			a       models.Application
			phone   sql.NullString
			message sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.RoomID, &a.FullName, &a.Email, &phone, &a.Course, &a.Sex, &a.Age, &message, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Phone = stringPtr(phone)
		a.Message = stringPtr(message)
		apps = append(apps, a)
	}
	return apps, rows.Err()
}
