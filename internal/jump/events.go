package jump

import (
	"sync"

	"github.com/google/uuid"

	"salto_detector/internal/logger"
	"salto_detector/pkg/models"
)

// eventHub mantém os registros de observadores do detector. Mesmo contrato
// do barramento de frames: entrega síncrona, em ordem de registro, panics
// isolados por observador
type eventHub struct {
	mu  sync.RWMutex
	log *logger.SystemLogger

	jumpSubs   map[string]func(models.JumpEvent)
	jumpOrder  []string
	landSubs   map[string]func(models.LandingEvent)
	landOrder  []string
	forceSubs  map[string]func(models.ForceSample)
	forceOrder []string
}

func newEventHub(log *logger.SystemLogger) *eventHub {
	return &eventHub{
		log:       log,
		jumpSubs:  make(map[string]func(models.JumpEvent)),
		landSubs:  make(map[string]func(models.LandingEvent)),
		forceSubs: make(map[string]func(models.ForceSample)),
	}
}

func (h *eventHub) subscribeJump(fn func(models.JumpEvent)) func() {
	if fn == nil {
		return func() {}
	}
	id := uuid.NewString()
	h.mu.Lock()
	h.jumpSubs[id] = fn
	h.jumpOrder = append(h.jumpOrder, id)
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.jumpSubs, id)
		h.jumpOrder = removeID(h.jumpOrder, id)
	}
}

func (h *eventHub) subscribeLanding(fn func(models.LandingEvent)) func() {
	if fn == nil {
		return func() {}
	}
	id := uuid.NewString()
	h.mu.Lock()
	h.landSubs[id] = fn
	h.landOrder = append(h.landOrder, id)
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.landSubs, id)
		h.landOrder = removeID(h.landOrder, id)
	}
}

func (h *eventHub) subscribeForce(fn func(models.ForceSample)) func() {
	if fn == nil {
		return func() {}
	}
	id := uuid.NewString()
	h.mu.Lock()
	h.forceSubs[id] = fn
	h.forceOrder = append(h.forceOrder, id)
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.forceSubs, id)
		h.forceOrder = removeID(h.forceOrder, id)
	}
}

func (h *eventHub) emitJump(ev models.JumpEvent) {
	h.mu.RLock()
	order := append([]string(nil), h.jumpOrder...)
	h.mu.RUnlock()
	for _, id := range order {
		h.mu.RLock()
		fn, ok := h.jumpSubs[id]
		h.mu.RUnlock()
		if ok {
			h.safeCall(id, func() { fn(ev) })
		}
	}
}

func (h *eventHub) emitLanding(ev models.LandingEvent) {
	h.mu.RLock()
	order := append([]string(nil), h.landOrder...)
	h.mu.RUnlock()
	for _, id := range order {
		h.mu.RLock()
		fn, ok := h.landSubs[id]
		h.mu.RUnlock()
		if ok {
			h.safeCall(id, func() { fn(ev) })
		}
	}
}

func (h *eventHub) emitForce(s models.ForceSample) {
	h.mu.RLock()
	order := append([]string(nil), h.forceOrder...)
	h.mu.RUnlock()
	for _, id := range order {
		h.mu.RLock()
		fn, ok := h.forceSubs[id]
		h.mu.RUnlock()
		if ok {
			h.safeCall(id, func() { fn(s) })
		}
	}
}

func (h *eventHub) safeCall(id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.log.LogSubscriberPanic(id, r)
		}
	}()
	fn()
}

func removeID(order []string, id string) []string {
	for i, sid := range order {
		if sid == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
