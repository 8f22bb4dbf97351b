package lstore

import (
	"github.com/ValentinKolb/tcsd/lib/ps"
	"github.com/ValentinKolb/tcsd/lib/store"
	"github.com/google/uuid"
)

// checkParent validates the parent of a record that is about to be added to known
func checkParent(rec ps.KeyRecord, known map[uuid.UUID]ps.KeyRecord) error {
	if rec.IsRoot() {
		if rec.ParentUUID != ps.SRKUUID {
			return store.NewError(store.RetCFormat, "the SRK cannot have parent %s", rec.ParentUUID)
		}
		return nil
	}
	if rec.ParentUUID == ps.SRKUUID {
		return nil
	}
	if _, ok := known[rec.ParentUUID]; !ok {
		return store.NewError(store.RetCDanglingParent, "parent %s of key %s is not registered", rec.ParentUUID, rec.UUID)
	}
	return nil
}

// validateForest checks a freshly loaded store: unique identifiers, no dangling
// parents and no parent chain that does not end at the SRK.
// Every violation is a format error, the store must not be used.
func validateForest(records []ps.KeyRecord) error {
	byID := make(map[uuid.UUID]ps.KeyRecord, len(records))
	for _, rec := range records {
		if _, ok := byID[rec.UUID]; ok {
			return store.NewError(store.RetCFormat, "duplicate key %s", rec.UUID)
		}
		byID[rec.UUID] = rec
	}

	for _, rec := range records {
		if err := checkParent(rec, byID); err != nil {
			return store.NewError(store.RetCFormat, "invalid hierarchy: %s", err.(*store.Error).Msg)
		}
	}

	// Walk every chain up to the SRK, chains already known to end there are not walked twice
	rooted := make(map[uuid.UUID]bool, len(records))
	for _, rec := range records {
		var path []uuid.UUID
		onPath := make(map[uuid.UUID]bool)
		cur := rec
		for !cur.IsRoot() && cur.ParentUUID != ps.SRKUUID && !rooted[cur.UUID] {
			if onPath[cur.UUID] {
				return store.NewError(store.RetCFormat, "invalid hierarchy: key %s is part of a parent cycle", cur.UUID)
			}
			onPath[cur.UUID] = true
			path = append(path, cur.UUID)
			cur = byID[cur.ParentUUID]
		}
		for _, id := range path {
			rooted[id] = true
		}
	}
	return nil
}

// orderedIDs returns the identifiers of records, the SRK first
func orderedIDs(records []ps.KeyRecord) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		if rec.IsRoot() {
			ids = append(ids, rec.UUID)
		}
	}
	for _, rec := range records {
		if !rec.IsRoot() {
			ids = append(ids, rec.UUID)
		}
	}
	return ids
}
