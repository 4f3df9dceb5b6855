// Package courses keeps the course catalogue that is injected into chat prompts.
package courses

import (
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
)

// Course is one catalogue entry. Only Name and Description are interpreted; the
// original JSON object is kept and served back unchanged.
type Course struct {
	Name        string
	Description string
	raw         []byte
}

type courseFields struct {
	Name        interface{} `json:"name"`
	Description interface{} `json:"description"`
}

// UnmarshalJSON decodes name and description leniently and keeps the raw object.
func (c *Course) UnmarshalJSON(data []byte) error {
	var fields courseFields
	if err := sonic.Unmarshal(data, &fields); err != nil {
		return err
	}
	c.Name = textValue(fields.Name)
	c.Description = textValue(fields.Description)
	c.raw = append([]byte(nil), data...)
	return nil
}

// MarshalJSON returns the object the course was decoded from.
func (c Course) MarshalJSON() ([]byte, error) {
	if c.raw != nil {
		return c.raw, nil
	}
	return sonic.Marshal(map[string]string{
		"name":        c.Name,
		"description": c.Description,
	})
}

func textValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	case float64:
		if t == 0 {
			return ""
		}
		return fmt.Sprint(t)
	default:
		b, err := sonic.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// Store holds the most recently posted course list.
type Store struct {
	mu      sync.RWMutex
	courses []Course
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{courses: []Course{}}
}

// Set replaces the stored list.
func (s *Store) Set(courses []Course) {
	cp := make([]Course, len(courses))
	copy(cp, courses)

	s.mu.Lock()
	s.courses = cp
	s.mu.Unlock()
}

// All returns a copy of the stored list; never nil.
func (s *Store) All() []Course {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := make([]Course, len(s.courses))
	copy(cp, s.courses)
	return cp
}

// Len reports how many courses are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.courses)
}
