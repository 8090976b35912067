package visibility

import (
	"crabber/internal/models"

	"gorm.io/gorm"
)

// FilterMolts returns the subset of molts v may see, preserving order.
func FilterMolts(db *gorm.DB, v *Viewer, molts []*models.Molt) ([]*models.Molt, error) {
	ids := make([]uint, 0, len(molts))
	for _, m := range molts {
		ids = append(ids, m.ID)
	}
	visible, err := VisibleMoltIDs(db, v, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Molt, 0, len(visible))
	for _, m := range molts {
		if visible[m.ID] {
			out = append(out, m)
		}
	}
	return out, nil
}

// FilterCrabs returns the subset of crabs v may see, preserving order.
func FilterCrabs(db *gorm.DB, v *Viewer, crabs []*models.Crab) ([]*models.Crab, error) {
	if len(crabs) == 0 {
		return []*models.Crab{}, nil
	}
	ids := make([]uint, 0, len(crabs))
	for _, c := range crabs {
		ids = append(ids, c.ID)
	}

	var found []uint
	err := db.Model(&models.Crab{}).
		Scopes(Crabs(v)).
		Where("crabs.id IN ?", ids).
		Pluck("crabs.id", &found).Error
	if err != nil {
		return nil, err
	}
	visible := toSet(found)

	out := make([]*models.Crab, 0, len(found))
	for _, c := range crabs {
		if visible[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

// VisibleMoltIDs returns which of ids v may see.
func VisibleMoltIDs(db *gorm.DB, v *Viewer, ids []uint) (map[uint]bool, error) {
	if len(ids) == 0 {
		return map[uint]bool{}, nil
	}
	var found []uint
	err := db.Model(&models.Molt{}).
		Scopes(Molts(v)).
		Where("molts.id IN ?", ids).
		Pluck("molts.id", &found).Error
	if err != nil {
		return nil, err
	}
	return toSet(found), nil
}

// CanSeeMolt reports whether v may see the molt with the given id.
func CanSeeMolt(db *gorm.DB, v *Viewer, id uint) (bool, error) {
	visible, err := VisibleMoltIDs(db, v, []uint{id})
	return visible[id], err
}

// CanSeeCrab reports whether v may see the crab with the given id.
func CanSeeCrab(db *gorm.DB, v *Viewer, id uint) (bool, error) {
	var count int64
	err := db.Model(&models.Crab{}).Scopes(Crabs(v)).Where("crabs.id = ?", id).Count(&count).Error
	return count > 0, err
}

// Resolve replaces every parent, quoted or remolted reference v may not see
// with a tombstone. Referencing molts stay in place.
func Resolve(db *gorm.DB, v *Viewer, molts []*models.Molt) error {
	var refs []uint
	for _, m := range molts {
		for _, id := range []*uint{m.ParentID, m.QuotedID, m.RemoltOfID} {
			if id != nil {
				refs = append(refs, *id)
			}
		}
	}
	if len(refs) == 0 {
		return nil
	}

	visible, err := VisibleMoltIDs(db, v, refs)
	if err != nil {
		return err
	}

	for _, m := range molts {
		m.Parent = resolveRef(m.ParentID, m.Parent, visible)
		m.Quoted = resolveRef(m.QuotedID, m.Quoted, visible)
		m.RemoltOf = resolveRef(m.RemoltOfID, m.RemoltOf, visible)
	}
	return nil
}

func resolveRef(id *uint, loaded *models.Molt, visible map[uint]bool) *models.Molt {
	if id == nil {
		return loaded
	}
	if !visible[*id] {
		return models.Tombstone(*id)
	}
	return loaded
}

func toSet(ids []uint) map[uint]bool {
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
