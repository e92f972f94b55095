package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is a stored session record. Only the digest of the bearer token is
// kept; the raw token is handed to the client once.
type Session struct {
	TokenHash string    `json:"-"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"` // zero means no expiry
}

// Expired reports whether the session has an expiry that is not after now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type Room struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Description *string     `json:"description"`
	Location    *string     `json:"location"`
	Price       float64     `json:"price"`
	IsClosed    bool        `json:"is_closed"`
	OwnerID     int64       `json:"owner_id"`
	OwnerName   string      `json:"owner_name"`
	OwnerEmail  string      `json:"-"`
	Images      []RoomImage `json:"images"`
	CreatedAt   time.Time   `json:"created_at"`
}

// OwnerOf returns the id of the user that owns the room.
func (r *Room) OwnerOf() int64 { return r.OwnerID }

type RoomImage struct {
	ID       int64  `json:"id"`
	RoomID   int64  `json:"room_id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

type Application struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	Course    string    `json:"course"`
	Sex       string    `json:"sex"`
	Age       int       `json:"age"`
	Message   *string   `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomFields are the caller-supplied fields of a new room.
type RoomFields struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	Price       float64 `json:"price"`
}

// RoomPatch holds the fields of a partial update. Nil fields are left alone.
type RoomPatch struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Location    *string  `json:"location"`
	Price       *float64 `json:"price"`
}

// Empty reports whether the patch changes nothing.
func (p RoomPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Location == nil && p.Price == nil
}

// ApplicationFields are submitted by an applicant.
type ApplicationFields struct {
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone"`
	Course   string  `json:"course"`
	Sex      string  `json:"sex"`
	Age      int     `json:"age"`
	Message  *string `json:"message"`
}

// RoomFilter bounds a public room listing. Bounds are inclusive; nil means unbounded.
type RoomFilter struct {
	MinPrice *float64
	MaxPrice *float64
}
