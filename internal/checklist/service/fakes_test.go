package service

import (
	"context"
	"io"
	"sync"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/sse"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/testutil"
)

func memStores(db *testutil.MemDB) Stores {
	return Stores{
		Templates:  db.Templates(),
		Instances:  db.InstanceStore(),
		Responses:  db.ResponseStore(),
		Photos:     db.PhotoStore(),
		Signatures: db.SignatureStore(),
		Orders:     db.OrderStore(),
		Activity:   db.ActivityStore(),
	}
}

type fakeObjects struct {
	mu    sync.Mutex
	names []string
	fail  error
}

func (f *fakeObjects) Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, objectName)
	return "https://cdn.example.com/" + objectName, nil
}

type recPublisher struct {
	mu     sync.Mutex
	events []sse.ChecklistUpdate
}

func (p *recPublisher) PublishChecklistUpdate(userID string, u sse.ChecklistUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, u)
}

func (p *recPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Action
	}
	return out
}
