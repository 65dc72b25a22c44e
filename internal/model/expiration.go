package model

import (
	"encoding/json"
	"time"
)

// Expiration is either none or a calendar date. The zero value is none.
type Expiration struct {
	date time.Time
	set  bool
}

func NoExpiration() Expiration {
	return Expiration{}
}

// ExpiresOn truncates t to its UTC calendar date.
func ExpiresOn(t time.Time) Expiration {
	t = t.UTC()
	return Expiration{
		date: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
		set:  true,
	}
}

func (e Expiration) Date() (time.Time, bool) {
	return e.date, e.set
}

func (e Expiration) IsNone() bool {
	return !e.set
}

func (e Expiration) Equal(o Expiration) bool {
	if e.set != o.set {
		return false
	}
	return !e.set || e.date.Equal(o.date)
}

// Compare orders dated expirations before none, earlier dates first.
func (e Expiration) Compare(o Expiration) int {
	switch {
	case e.set && !o.set:
		return -1
	case !e.set && o.set:
		return 1
	case !e.set && !o.set:
		return 0
	}
	return e.date.Compare(o.date)
}

func (e Expiration) MarshalJSON() ([]byte, error) {
	if !e.set {
		return []byte("null"), nil
	}
	return json.Marshal(e.date.Format(time.DateOnly))
}

func (e *Expiration) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*e = NoExpiration()
		return nil
	}
	t, err := time.Parse(time.DateOnly, *s)
	if err != nil {
		return err
	}
	*e = ExpiresOn(t)
	return nil
}
