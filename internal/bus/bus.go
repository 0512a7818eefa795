package bus

import (
	"sync"

	"github.com/google/uuid"

	"salto_detector/internal/logger"
	"salto_detector/pkg/models"
)

// Subscriber é o callback síncrono que recebe cada PoseFrame publicado.
// Deve ser rápido e leve: o publicador espera a entrega completar
type Subscriber func(models.PoseFrame)

// BusStats são contadores cumulativos do barramento
type BusStats struct {
	Published   uint64 `json:"published"`
	Delivered   uint64 `json:"delivered"`
	Panics      uint64 `json:"panics"`
	Subscribers int    `json:"subscribers"`
}

// FrameBus é o barramento de distribuição de frames: entrega síncrona,
// em ordem de registro, na goroutine do chamador, sem buffer e sem replay.
// Um panic em um assinante é capturado e logado, nunca impede a entrega
// aos demais. Subscribe/unsubscribe reentrantes durante um Publish em
// andamento são seguros (iteração sobre snapshot)
type FrameBus struct {
	mu    sync.RWMutex
	subs  map[string]Subscriber
	order []string
	log   *logger.SystemLogger

	published uint64
	delivered uint64
	panics    uint64
}

// New cria um barramento vazio. O logger pode ser nil (testes)
func New(log *logger.SystemLogger) *FrameBus {
	return &FrameBus{
		subs: make(map[string]Subscriber),
		log:  log,
	}
}

// Subscribe registra um callback e retorna a função de cancelamento.
// Cancelar é imediato: após o retorno, nenhuma nova entrega ocorre para
// este assinante
func (b *FrameBus) Subscribe(fn Subscriber) func() {
	if fn == nil {
		return func() {}
	}

	id := uuid.NewString()

	b.mu.Lock()
	b.subs[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, exists := b.subs[id]; !exists {
			return
		}
		delete(b.subs, id)
		for i, sid := range b.order {
			if sid == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Publish entrega o frame a todos os assinantes atuais, em ordem de
// registro. Fire-and-forget: quem assina depois perde este frame
func (b *FrameBus) Publish(frame models.PoseFrame) {
	b.mu.Lock()
	b.published++
	snapshot := make([]string, len(b.order))
	copy(snapshot, b.order)
	b.mu.Unlock()

	for _, id := range snapshot {
		// Recarregar a cada entrega: um unsubscribe no meio do ciclo
		// (inclusive de dentro de outro callback) é respeitado
		b.mu.RLock()
		fn, ok := b.subs[id]
		b.mu.RUnlock()
		if !ok {
			continue
		}

		b.deliver(id, fn, frame)
	}
}

// deliver invoca um assinante isolando panics
func (b *FrameBus) deliver(id string, fn Subscriber, frame models.PoseFrame) {
	defer func() {
		if r := recover(); r != nil {
			b.mu.Lock()
			b.panics++
			b.mu.Unlock()
			b.log.LogSubscriberPanic(id, r)
		}
	}()

	fn(frame)

	b.mu.Lock()
	b.delivered++
	b.mu.Unlock()
}

// Stats retorna os contadores atuais do barramento
func (b *FrameBus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BusStats{
		Published:   b.published,
		Delivered:   b.delivered,
		Panics:      b.panics,
		Subscribers: len(b.subs),
	}
}

// SubscriberCount retorna o número de assinantes ativos
func (b *FrameBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
