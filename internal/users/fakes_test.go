package users

import (
	"context"
	"errors"
	"sync"

	"geousers/pkg/geo"
	"geousers/pkg/models"
	"geousers/pkg/storage"
)

var errBoom = errors.New("boom")

type fakeDocs struct {
	mu   sync.Mutex
	docs map[string]map[string]any

	getErr    error
	upsertErr error
	updateErr error
	deleteErr error
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[string]map[string]any{}}
}

func (f *fakeDocs) key(coll, id string) string { return coll + "/" + id }

func (f *fakeDocs) Upsert(_ context.Context, coll, id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	doc := map[string]any{models.FieldCreatedAt: "now", models.FieldUpdatedAt: "now"}
	for k, v := range fields {
		doc[k] = v
	}
	f.docs[f.key(coll, id)] = doc
	return nil
}

func (f *fakeDocs) Get(_ context.Context, coll, id string) (map[string]any, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	doc, ok := f.docs[f.key(coll, id)]
	if !ok {
		return nil, false, nil
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, true, nil
}

func (f *fakeDocs) Update(_ context.Context, coll, id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	doc, ok := f.docs[f.key(coll, id)]
	if !ok {
		return errors.New("no document to update")
	}
	for k, v := range fields {
		doc[k] = v
	}
	doc[models.FieldUpdatedAt] = "later"
	return nil
}

func (f *fakeDocs) Delete(_ context.Context, coll, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.docs, f.key(coll, id))
	return nil
}

func (f *fakeDocs) has(coll, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.docs[f.key(coll, id)]
	return ok
}

// fakeGeo keeps committed points as WKT, the way the relational store does.
type fakeGeo struct {
	mu   sync.Mutex
	rows map[string]string

	beginErr  error
	insertErr error
	findErr   error
	commitErr error

	inserts   int
	updates   int
	commits   int
	rollbacks int
}

func newFakeGeo() *fakeGeo {
	return &fakeGeo{rows: map[string]string{}}
}

func (g *fakeGeo) Begin(context.Context) (storage.GeoTx, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.beginErr != nil {
		return nil, g.beginErr
	}
	staged := make(map[string]string, len(g.rows))
	for k, v := range g.rows {
		staged[k] = v
	}
	return &fakeGeoTx{g: g, staged: staged}, nil
}

func (g *fakeGeo) FindPoint(_ context.Context, userID string) (*models.LocationPoint, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.findErr != nil {
		return nil, g.findErr
	}
	return decodeRow(userID, g.rows)
}

func (g *fakeGeo) wkt(userID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.rows[userID]
	return s, ok
}

func decodeRow(userID string, rows map[string]string) (*models.LocationPoint, error) {
	text, ok := rows[userID]
	if !ok {
		return nil, nil
	}
	lat, lon, err := geo.DecodePoint(text)
	if err != nil {
		return nil, err
	}
	return &models.LocationPoint{UserID: userID, Latitude: lat, Longitude: lon}, nil
}

type fakeGeoTx struct {
	g      *fakeGeo
	staged map[string]string
	done   bool
}

func (t *fakeGeoTx) InsertPoint(_ context.Context, userID string, lat, lon float64) error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	if t.g.insertErr != nil {
		return t.g.insertErr
	}
	if _, exists := t.staged[userID]; exists {
		return errors.New("duplicate key value violates unique constraint")
	}
	text, err := geo.EncodePoint(lat, lon)
	if err != nil {
		return err
	}
	t.staged[userID] = text
	t.g.inserts++
	return nil
}

func (t *fakeGeoTx) FindPoint(_ context.Context, userID string) (*models.LocationPoint, error) {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	if t.g.findErr != nil {
		return nil, t.g.findErr
	}
	return decodeRow(userID, t.staged)
}

func (t *fakeGeoTx) UpdatePoint(_ context.Context, rec *models.LocationPoint, lat, lon float64) error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	text, err := geo.EncodePoint(lat, lon)
	if err != nil {
		return err
	}
	t.staged[rec.UserID] = text
	rec.Latitude, rec.Longitude = lat, lon
	t.g.updates++
	return nil
}

func (t *fakeGeoTx) DeletePoint(_ context.Context, rec *models.LocationPoint) error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	delete(t.staged, rec.UserID)
	return nil
}

func (t *fakeGeoTx) Commit() error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	if t.done {
		return errors.New("transaction already finished")
	}
	if t.g.commitErr != nil {
		return t.g.commitErr
	}
	t.done = true
	t.g.rows = t.staged
	t.g.commits++
	return nil
}

func (t *fakeGeoTx) Rollback() error {
	t.g.mu.Lock()
	defer t.g.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	t.g.rollbacks++
	return nil
}

type published struct {
	topic     string
	eventType models.EventType
	userID    string
	data      any
	changes   any
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []published
}

func (p *fakePublisher) Publish(_ context.Context, topic string, eventType models.EventType, userID string, data any, changes any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, published{topic, eventType, userID, data, changes})
}

func (p *fakePublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.calls...)
}
