package model

import "slices"

type Photo struct {
	ID        PhotoID `json:"id"`
	ItemID    ItemID  `json:"item_id"`
	Data      []byte  `json:"data,omitempty"`
	Thumbnail []byte  `json:"thumbnail,omitempty"`
}

// PhotoToSave is a photo not yet persisted. Thumbnail is derived from Data.
type PhotoToSave struct {
	ID        PhotoID `json:"id"`
	Data      []byte  `json:"data"`
	Thumbnail []byte  `json:"thumbnail"`
}

// PhotosChangeset accumulates photo edits for one item so they can be
// applied in a single save. A photo id is never in both lists.
type PhotosChangeset struct {
	ItemID   ItemID
	toSave   []PhotoToSave
	toDelete []PhotoID
}

func NewPhotosChangeset(itemID ItemID) *PhotosChangeset {
	return &PhotosChangeset{ItemID: itemID}
}

func (c *PhotosChangeset) Save(p PhotoToSave) {
	c.toDelete = slices.DeleteFunc(c.toDelete, func(id PhotoID) bool { return id == p.ID })
	if i := slices.IndexFunc(c.toSave, func(s PhotoToSave) bool { return s.ID == p.ID }); i >= 0 {
		c.toSave[i] = p
		return
	}
	c.toSave = append(c.toSave, p)
}

// Delete cancels a pending save for id, or records a deletion of a
// previously persisted photo.
func (c *PhotosChangeset) Delete(id PhotoID) {
	if i := slices.IndexFunc(c.toSave, func(s PhotoToSave) bool { return s.ID == id }); i >= 0 {
		c.toSave = slices.Delete(c.toSave, i, i+1)
		return
	}
	if !slices.Contains(c.toDelete, id) {
		c.toDelete = append(c.toDelete, id)
	}
}

func (c *PhotosChangeset) ToSave() []PhotoToSave {
	return slices.Clone(c.toSave)
}

func (c *PhotosChangeset) ToDelete() []PhotoID {
	return slices.Clone(c.toDelete)
}

func (c *PhotosChangeset) IsEmpty() bool {
	return len(c.toSave) == 0 && len(c.toDelete) == 0
}
