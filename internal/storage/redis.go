package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"salto_detector/pkg/models"
)

// SessionStore persiste o histórico de aterrissagens e as estatísticas da
// sessão no Redis. Opcional: sem endereço configurado, todas as operações
// viram no-ops e a detecção segue apenas em memória
type SessionStore struct {
	client    *redis.Client
	sessionID string
	mutex     sync.Mutex
	enabled   bool
}

// NewSessionStore cria um store desabilitado (habilita no Connect)
func NewSessionStore(sessionID string) *SessionStore {
	return &SessionStore{
		sessionID: sessionID,
		enabled:   false,
	}
}

// Connect conecta ao Redis e valida com um ping. Endereço vazio mantém o
// store desabilitado sem erro
func (s *SessionStore) Connect(addr string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if addr == "" {
		return nil
	}

	s.client = redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		s.client = nil
		s.enabled = false
		return fmt.Errorf("erro ao conectar ao Redis: %v", err)
	}

	s.enabled = true
	log.Printf("Redis conectado em: %s (sessão %s)", addr, s.sessionID)
	return nil
}

// SaveLanding registra uma aterrissagem no histórico da sessão e atualiza
// os agregados. Apenas episódios válidos entram nas estatísticas
func (s *SessionStore) SaveLanding(ctx context.Context, ev models.LandingEvent) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.enabled || s.client == nil {
		return nil
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("erro ao serializar aterrissagem: %v", err)
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, s.key("aterrissagens"), data)
	if ev.IsValid {
		pipe.HIncrBy(ctx, s.key("stats"), "totalSaltos", 1)
		pipe.HIncrBy(ctx, s.key("stats"), "airtimeTotalMS", ev.AirTimeMS)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("erro ao gravar aterrissagem no Redis: %v", err)
	}

	return nil
}

// SaveStats grava o snapshot consolidado da sessão
func (s *SessionStore) SaveStats(ctx context.Context, stats models.SessionStats) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.enabled || s.client == nil {
		return nil
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("erro ao serializar estatísticas: %v", err)
	}

	if err := s.client.Set(ctx, s.key("resumo"), data, 0).Err(); err != nil {
		return fmt.Errorf("erro ao gravar estatísticas no Redis: %v", err)
	}

	return nil
}

// LoadStats recarrega o snapshot consolidado da sessão, se existir
func (s *SessionStore) LoadStats(ctx context.Context) (models.SessionStats, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var stats models.SessionStats
	if !s.enabled || s.client == nil {
		return stats, false, nil
	}

	data, err := s.client.Get(ctx, s.key("resumo")).Bytes()
	if err == redis.Nil {
		return stats, false, nil
	}
	if err != nil {
		return stats, false, fmt.Errorf("erro ao ler estatísticas do Redis: %v", err)
	}

	if err := json.Unmarshal(data, &stats); err != nil {
		return stats, false, fmt.Errorf("erro ao decodificar estatísticas: %v", err)
	}
	return stats, true, nil
}

// IsEnabled informa se a persistência está ativa
func (s *SessionStore) IsEnabled() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.enabled
}

// Close encerra a conexão com o Redis
func (s *SessionStore) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.client != nil {
		s.client.Close()
		s.client = nil
		s.enabled = false
		log.Println("Redis desconectado")
	}
}

func (s *SessionStore) key(suffix string) string {
	return fmt.Sprintf("saltos:%s:%s", s.sessionID, suffix)
}
