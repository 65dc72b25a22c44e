package model

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// AlertOption controls when a reminder fires relative to the expiration date.
type AlertOption string

const (
	AlertNone          AlertOption = "none"
	AlertOnDay         AlertOption = "on_day"
	AlertDayBefore     AlertOption = "day_before"
	AlertTwoDaysBefore AlertOption = "two_days_before"
	AlertWeekBefore    AlertOption = "week_before"
)

// ParseAlertOption accepts the stored names; the empty string maps to AlertNone.
func ParseAlertOption(s string) (AlertOption, error) {
	switch a := AlertOption(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return AlertNone, nil
	case AlertNone, AlertOnDay, AlertDayBefore, AlertTwoDaysBefore, AlertWeekBefore:
		return a, nil
	default:
		return "", fmt.Errorf("unknown alert option %q", s)
	}
}

// Item is an immutable value; the With* helpers return modified copies.
type Item struct {
	ID         ItemID      `json:"id"`
	Name       string      `json:"name"`
	Notes      string      `json:"notes"`
	Expiration Expiration  `json:"expiration"`
	ListID     ListID      `json:"list_id"`
	Alert      AlertOption `json:"alert"`
	Photos     []PhotoID   `json:"photos"`
}

func (i Item) clone() Item {
	i.Photos = slices.Clone(i.Photos)
	return i
}

func (i Item) WithName(name string) Item {
	c := i.clone()
	c.Name = name
	return c
}

func (i Item) WithNotes(notes string) Item {
	c := i.clone()
	c.Notes = notes
	return c
}

func (i Item) WithExpiration(e Expiration) Item {
	c := i.clone()
	c.Expiration = e
	return c
}

func (i Item) WithList(id ListID) Item {
	c := i.clone()
	c.ListID = id
	return c
}

func (i Item) WithAlert(a AlertOption) Item {
	c := i.clone()
	c.Alert = a
	return c
}

func (i Item) WithPhotos(ids []PhotoID) Item {
	c := i
	c.Photos = slices.Clone(ids)
	return c
}

// Equal compares identity, name and expiration only.
func (i Item) Equal(o Item) bool {
	return i.ID == o.ID && i.Name == o.Name && i.Expiration.Equal(o.Expiration)
}

// Compare puts soonest-expiring items first, then orders by name and id.
func (i Item) Compare(o Item) int {
	if c := i.Expiration.Compare(o.Expiration); c != 0 {
		return c
	}
	if c := cmp.Compare(strings.ToLower(i.Name), strings.ToLower(o.Name)); c != 0 {
		return c
	}
	return cmp.Compare(i.ID, o.ID)
}

func SortItems(items []Item) {
	slices.SortFunc(items, Item.Compare)
}
