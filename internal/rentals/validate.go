package rentals

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/pliu/roomlet/internal/apperr"
	"github.com/pliu/roomlet/internal/models"
)

const (
	maxTitle       = 255
	maxDescription = 5000
	maxLocation    = 500

	maxFullName = 255
	maxEmail    = 255
	maxPhone    = 50
	maxCourse   = 255
	maxMessage  = 2000
	minAge      = 18
	maxAge      = 100
)

func length(s string) int {
	return utf8.RuneCountInString(s)
}

func checkLen(field, value string, lo, hi int) error {
	n := length(value)
	if n < lo || n > hi {
		if lo > 0 {
			return apperr.Newf(apperr.Invalid, "%s must be between %d and %d characters", field, lo, hi)
		}
		return apperr.Newf(apperr.Invalid, "%s must be at most %d characters", field, hi)
	}
	return nil
}

// optional trims s and turns an empty result into nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func checkPrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return apperr.New(apperr.Invalid, "price must be greater than 0")
	}
	return nil
}

func normalizeRoom(f models.RoomFields) (models.RoomFields, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = optional(f.Description)
	f.Location = optional(f.Location)

	if err := checkLen("title", f.Title, 1, maxTitle); err != nil {
		return f, err
	}
	if f.Description != nil {
		if err := checkLen("description", *f.Description, 0, maxDescription); err != nil {
			return f, err
		}
	}
	if f.Location != nil {
		if err := checkLen("location", *f.Location, 0, maxLocation); err != nil {
			return f, err
		}
	}
	return f, checkPrice(f.Price)
}

// applyPatch validates the supplied fields of p and copies them onto room.
// Nothing is copied when any field is invalid. A description or location
// patched to blank is cleared.
func applyPatch(room *models.Room, p models.RoomPatch) error {
	next := *room

	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
		if err := checkLen("title", next.Title, 1, maxTitle); err != nil {
			return err
		}
	}
	if p.Description != nil {
		next.Description = optional(p.Description)
		if next.Description != nil {
			if err := checkLen("description", *next.Description, 0, maxDescription); err != nil {
				return err
			}
		}
	}
	if p.Location != nil {
		next.Location = optional(p.Location)
		if next.Location != nil {
			if err := checkLen("location", *next.Location, 0, maxLocation); err != nil {
				return err
			}
		}
	}
	if p.Price != nil {
		if err := checkPrice(*p.Price); err != nil {
			return err
		}
		next.Price = *p.Price
	}

	*room = next
	return nil
}

func normalizeApplication(f models.ApplicationFields) (models.ApplicationFields, error) {
	f.FullName = strings.TrimSpace(f.FullName)
	f.Email = strings.TrimSpace(f.Email)
	f.Course = strings.TrimSpace(f.Course)
	f.Sex = strings.TrimSpace(f.Sex)
	f.Phone = optional(f.Phone)
	f.Message = optional(f.Message)

	if err := checkLen("full_name", f.FullName, 1, maxFullName); err != nil {
		return f, err
	}
	if err := checkLen("email", f.Email, 1, maxEmail); err != nil {
		return f, err
	}
	if f.Phone != nil {
		if err := checkLen("phone", *f.Phone, 0, maxPhone); err != nil {
			return f, err
		}
	}
	if err := checkLen("course", f.Course, 1, maxCourse); err != nil {
		return f, err
	}
	if length(f.Sex) != 1 {
		return f, apperr.New(apperr.Invalid, "sex must be a single character")
	}
	if f.Age < minAge || f.Age > maxAge {
		return f, apperr.Newf(apperr.Invalid, "age must be between %d and %d", minAge, maxAge)
	}
	if f.Message != nil {
		if err := checkLen("message", *f.Message, 0, maxMessage); err != nil {
			return f, err
		}
	}
	return f, nil
}
