package service

import "context"

// LookupStore is the slice of the local store the translator needs
type LookupStore interface {
	RemoteIDFor(ctx context.Context, table string, localID int64) (string, error)
	LocalIDFor(ctx context.Context, table string, remoteID string) (int64, error)
}

// IDTranslator memoizes local id <-> remote id lookups for the duration of
// one sync pass. Only hits are cached: a miss may turn into a hit later in
// the same pass (a parent pushed in an earlier table), so it must be
// re-queried. The cache dies with the pass, trading a few redundant
// lookups next run for freedom from staleness bugs.
type IDTranslator struct {
	store LookupStore
	l2r   map[string]map[int64]string
	r2l   map[string]map[string]int64
}

func NewIDTranslator(store LookupStore) *IDTranslator {
	return &IDTranslator{
		store: store,
		l2r:   make(map[string]map[int64]string),
		r2l:   make(map[string]map[string]int64),
	}
}

// LocalToRemote resolves a local primary key to the backend id, "" meaning
// the row has not been pushed yet
func (t *IDTranslator) LocalToRemote(ctx context.Context, table string, localID int64) (string, error) {
	if cached, ok := t.l2r[table][localID]; ok {
		return cached, nil
	}

	remoteID, err := t.store.RemoteIDFor(ctx, table, localID)
	if err != nil {
		return "", err
	}
	if remoteID != "" {
		if t.l2r[table] == nil {
			t.l2r[table] = make(map[int64]string)
		}
		t.l2r[table][localID] = remoteID
	}
	return remoteID, nil
}

// RemoteToLocal resolves a backend id to the local primary key, 0 meaning
// no local row carries it yet
func (t *IDTranslator) RemoteToLocal(ctx context.Context, table string, remoteID string) (int64, error) {
	if cached, ok := t.r2l[table][remoteID]; ok {
		return cached, nil
	}

	localID, err := t.store.LocalIDFor(ctx, table, remoteID)
	if err != nil {
		return 0, err
	}
	if localID != 0 {
		if t.r2l[table] == nil {
			t.r2l[table] = make(map[string]int64)
		}
		t.r2l[table][remoteID] = localID
	}
	return localID, nil
}
