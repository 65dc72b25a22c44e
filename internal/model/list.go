package model

import "time"

type List struct {
	ID        ListID    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l List) WithName(name string) List {
	l.Name = name
	return l
}

// Touched returns a copy with the last-update timestamp replaced.
func (l List) Touched(t time.Time) List {
	l.UpdatedAt = t.UTC()
	return l
}
