// Package lifecycle holds the forward-only estado machine of a checklist
// instance and the completion gate the order workflow consults.
package lifecycle

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
)

var (
	ErrChecklistIncomplete = errors.New("checklist not completed")
	ErrInvalidTransition   = errors.New("invalid estado transition")
)

var rank = map[string]int{
	entity.EstadoPendiente:  0,
	entity.EstadoEnProgreso: 1,
	entity.EstadoCompletado: 2,
}

// Known 是否为合法状态
func Known(estado string) bool {
	_, ok := rank[estado]
	return ok
}

// CanTransition reports whether from → to moves strictly forward.
func CanTransition(from, to string) bool {
	rf, ok1 := rank[from]
	rt, ok2 := rank[to]
	return ok1 && ok2 && rt > rf
}

// Progress 完成度
type Progress struct {
	Total        int      `json:"total"`
	Answered     int      `json:"answered"`
	Required     int      `json:"required"`
	RequiredDone int      `json:"required_done"`
	Missing      []string `json:"missing"`
	Complete     bool     `json:"complete"`
}

// Evaluate computes progress from in-memory editable values.
func Evaluate(templates []entity.ChecklistItemTemplate, values map[string]itemtype.Value) Progress {
	return evaluate(templates, func(tpl entity.ChecklistItemTemplate) bool {
		v, ok := values[tpl.ID]
		return ok && itemtype.Complete(tpl, v)
	})
}

// EvaluateResponses computes progress from persisted responses.
func EvaluateResponses(templates []entity.ChecklistItemTemplate, responses map[string]*entity.ChecklistItemResponse) Progress {
	return evaluate(templates, func(tpl entity.ChecklistItemTemplate) bool {
		return itemtype.ResponseComplete(tpl, responses[tpl.ID])
	})
}

func evaluate(templates []entity.ChecklistItemTemplate, done func(entity.ChecklistItemTemplate) bool) Progress {
	ordered := make([]entity.ChecklistItemTemplate, len(templates))
	copy(ordered, templates)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].OrdenVisual < ordered[j].OrdenVisual })

	p := Progress{Total: len(ordered), Missing: []string{}}
	for _, tpl := range ordered {
		ok := done(tpl)
		if ok {
			p.Answered++
		}
		if !tpl.EsObligatorioEfectivo {
			continue
		}
		p.Required++
		if ok {
			p.RequiredDone++
		} else {
			p.Missing = append(p.Missing, tpl.ID)
		}
	}
	p.Complete = p.RequiredDone == p.Required
	return p
}

// Advance moves the instance forward. Same-state calls are no-ops; moving
// backwards is refused; COMPLETADO needs every obligatory item satisfied.
func Advance(inst *entity.ChecklistInstance, to string, now time.Time) (bool, error) {
	if inst.Estado == "" {
		inst.Estado = entity.EstadoPendiente
	}
	if inst.Estado == to {
		return false, nil
	}
	if !CanTransition(inst.Estado, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inst.Estado, to)
	}
	if to == entity.EstadoCompletado {
		if p := EvaluateResponses(inst.Items, inst.Respuestas); !p.Complete {
			return false, fmt.Errorf("%w: %d obligatory items pending", ErrChecklistIncomplete, len(p.Missing))
		}
	}

	if inst.FechaInicio == nil && to != entity.EstadoPendiente {
		t := now
		inst.FechaInicio = &t
	}
	if to == entity.EstadoCompletado {
		t := now
		inst.FechaFinalizacion = &t
	}
	inst.Estado = to
	return true, nil
}

// MergeEstado 取两者中更靠后的状态
func MergeEstado(local, remote string) string {
	if rank[local] > rank[remote] {
		return local
	}
	if !Known(remote) {
		return local
	}
	return remote
}

// Merge reconciles a fresh server copy with the local one without ever
// moving estado backwards.
func Merge(local, remote *entity.ChecklistInstance) *entity.ChecklistInstance {
	if remote == nil {
		return local
	}
	if local == nil {
		return remote
	}
	merged := *remote
	merged.Estado = MergeEstado(local.Estado, remote.Estado)
	if merged.FechaInicio == nil {
		merged.FechaInicio = local.FechaInicio
	}
	if merged.FechaFinalizacion == nil {
		merged.FechaFinalizacion = local.FechaFinalizacion
	}
	return &merged
}

// Gate blocks the order's own "service finished" transition until the
// checklist is COMPLETADO.
func Gate(inst *entity.ChecklistInstance) error {
	if inst == nil {
		return fmt.Errorf("%w: no checklist instance", ErrChecklistIncomplete)
	}
	if inst.Estado != entity.EstadoCompletado {
		return fmt.Errorf("%w: estado %s", ErrChecklistIncomplete, inst.Estado)
	}
	return nil
}
