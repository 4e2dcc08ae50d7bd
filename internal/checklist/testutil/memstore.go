package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/repository"
)

// MemDB is an in-memory stand-in for the gorm repositories. It follows the
// same conditional update and upsert rules so service and handler tests can
// run without Postgres.
type MemDB struct {
	mu        sync.Mutex
	Defs      map[string]*entity.ChecklistDefinition
	Items     map[string][]entity.ChecklistItemTemplate
	ItemReads int
	Instances map[string]*entity.ChecklistInstance
	Responses map[string]*entity.ChecklistItemResponse
	Photos    []entity.PhotoEvidence
	Firmas    map[string]*entity.SignatureCapture
	Orders    map[string]*entity.ServiceOrder
	Logs      []entity.ActivityLog
	Upserts   int
	seq       int
}

func NewMemDB() *MemDB {
	return &MemDB{
		Defs:      map[string]*entity.ChecklistDefinition{},
		Items:     map[string][]entity.ChecklistItemTemplate{},
		Instances: map[string]*entity.ChecklistInstance{},
		Responses: map[string]*entity.ChecklistItemResponse{},
		Firmas:    map[string]*entity.SignatureCapture{},
		Orders:    map[string]*entity.ServiceOrder{},
	}
}

func (m *MemDB) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *MemDB) Templates() memTemplates       { return memTemplates{m} }
func (m *MemDB) InstanceStore() memInstances   { return memInstances{m} }
func (m *MemDB) ResponseStore() memResponses   { return memResponses{m} }
func (m *MemDB) PhotoStore() memPhotos         { return memPhotos{m} }
func (m *MemDB) SignatureStore() memSignatures { return memSignatures{m} }
func (m *MemDB) OrderStore() memOrders         { return memOrders{m} }
func (m *MemDB) ActivityStore() memActivity    { return memActivity{m} }

// Actions 已记录的操作日志动作
func (m *MemDB) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Logs))
	for i, l := range m.Logs {
		out[i] = l.Action
	}
	return out
}

type memTemplates struct{ m *MemDB }

func (s memTemplates) FindByID(ctx context.Context, id string) (*entity.ChecklistDefinition, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	d, ok := s.m.Defs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s memTemplates) FindItems(ctx context.Context, checklistID string) ([]entity.ChecklistItemTemplate, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.ItemReads++
	out := make([]entity.ChecklistItemTemplate, len(s.m.Items[checklistID]))
	copy(out, s.m.Items[checklistID])
	return out, nil
}

type memInstances struct{ m *MemDB }

func (s memInstances) FindByID(ctx context.Context, id string) (*entity.ChecklistInstance, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	inst, ok := s.m.Instances[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *inst
	return &cp, nil
}

func (s memInstances) FindByOrderID(ctx context.Context, orderID string) (*entity.ChecklistInstance, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, inst := range s.m.Instances {
		if inst.OrdenID == orderID {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s memInstances) FindOrCreate(ctx context.Context, orderID, checklistID string) (*entity.ChecklistInstance, bool, error) {
	if inst, err := s.FindByOrderID(ctx, orderID); err == nil {
		return inst, false, nil
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	inst := &entity.ChecklistInstance{
		ID:          s.m.nextID("inst"),
		OrdenID:     orderID,
		ChecklistID: checklistID,
		Estado:      entity.EstadoPendiente,
	}
	s.m.Instances[inst.ID] = inst
	cp := *inst
	return &cp, true, nil
}

func (s memInstances) UpdateEstado(ctx context.Context, inst *entity.ChecklistInstance, from string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	row, ok := s.m.Instances[inst.ID]
	if !ok || row.Estado != from {
		return false, nil
	}
	row.Estado = inst.Estado
	row.FechaInicio = inst.FechaInicio
	row.FechaFinalizacion = inst.FechaFinalizacion
	return true, nil
}

func (s memInstances) Complete(ctx context.Context, inst *entity.ChecklistInstance, from string, firma *entity.SignatureCapture) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	row, ok := s.m.Instances[inst.ID]
	if !ok || row.Estado != from {
		return false, nil
	}
	if firma != nil {
		cp := *firma
		s.m.Firmas[inst.ID] = &cp
	}
	row.Estado = entity.EstadoCompletado
	row.FechaInicio = inst.FechaInicio
	row.FechaFinalizacion = inst.FechaFinalizacion
	return true, nil
}

type memResponses struct{ m *MemDB }

// withFotos must be called with the lock held.
func (s memResponses) withFotos(r *entity.ChecklistItemResponse) *entity.ChecklistItemResponse {
	cp := *r
	cp.Fotos = nil
	for _, p := range s.m.Photos {
		if p.RespuestaID == r.ID {
			cp.Fotos = append(cp.Fotos, p)
		}
	}
	sort.Slice(cp.Fotos, func(i, j int) bool { return cp.Fotos[i].OrdenEnRespuesta < cp.Fotos[j].OrdenEnRespuesta })
	return &cp
}

func (s memResponses) FindByID(ctx context.Context, id string) (*entity.ChecklistItemResponse, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.Responses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.withFotos(r), nil
}

func (s memResponses) FindByInstance(ctx context.Context, instanceID string) ([]entity.ChecklistItemResponse, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []entity.ChecklistItemResponse
	for _, r := range s.m.Responses {
		if r.InstanciaID == instanceID {
			out = append(out, *s.withFotos(r))
		}
	}
	return out, nil
}

func (s memResponses) Upsert(ctx context.Context, resp *entity.ChecklistItemResponse) (*entity.ChecklistItemResponse, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.Upserts++
	for _, r := range s.m.Responses {
		if r.InstanciaID == resp.InstanciaID && r.ItemTemplateID == resp.ItemTemplateID {
			r.Apply(resp.Payload())
			r.UpdatedAt = time.Now()
			return s.withFotos(r), nil
		}
	}
	cp := *resp
	cp.ID = s.m.nextID("resp")
	s.m.Responses[cp.ID] = &cp
	return s.withFotos(&cp), nil
}

type memPhotos struct{ m *MemDB }

func (s memPhotos) Create(ctx context.Context, photo *entity.PhotoEvidence) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	n := 0
	for _, p := range s.m.Photos {
		if p.RespuestaID == photo.RespuestaID {
			n++
		}
	}
	photo.ID = s.m.nextID("foto")
	photo.OrdenEnRespuesta = n + 1
	s.m.Photos = append(s.m.Photos, *photo)
	return nil
}

type memSignatures struct{ m *MemDB }

func (s memSignatures) FindByInstance(ctx context.Context, instanceID string) (*entity.SignatureCapture, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	f, ok := s.m.Firmas[instanceID]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

type memOrders struct{ m *MemDB }

func (s memOrders) FindByID(ctx context.Context, id string) (*entity.ServiceOrder, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	o, ok := s.m.Orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s memOrders) MarkFinished(ctx context.Context, id string, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	o, ok := s.m.Orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.Estado = entity.OrdenEstadoFinalizada
	o.FinalizadaAt = &at
	return nil
}

type memActivity struct{ m *MemDB }

func (s memActivity) LogActivity(ctx context.Context, log entity.ActivityLog) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.Logs = append(s.m.Logs, log)
}

func (s memActivity) FindByEntity(ctx context.Context, entityType, entityID string, page, pageSize int) ([]entity.ActivityLog, int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []entity.ActivityLog
	for _, l := range s.m.Logs {
		if l.EntityType == entityType && l.EntityID == entityID {
			out = append(out, l)
		}
	}
	return out, int64(len(out)), nil
}

