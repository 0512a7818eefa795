package nats

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"salto_detector/pkg/models"
)

// Tópicos de publicação dos eventos de detecção
const (
	SubjectTakeoff = "saltos.decolagem"
	SubjectLanding = "saltos.aterrissagem"
	SubjectForce   = "saltos.forca"
	SubjectSession = "saltos.sessao"
)

// Publisher gerencia a publicação dos eventos de salto no NATS. Opcional:
// sem conexão, as publicações viram no-ops silenciosos e a detecção segue
type Publisher struct {
	conn    *nats.Conn
	mutex   sync.Mutex
	enabled bool
}

// NewPublisher cria um publisher NATS desabilitado (habilita no Connect)
func NewPublisher() *Publisher {
	return &Publisher{
		enabled: false,
	}
}

// Connect conecta ao servidor NATS com retry automático
func (p *Publisher) Connect(natsURL string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	opts := []nats.Option{
		nats.Name("Salto-Detector-Publisher"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1), // Retry infinito
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("NATS desconectado: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconectado: %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Printf("NATS conexão fechada")
		}),
	}

	var err error
	p.conn, err = nats.Connect(natsURL, opts...)
	if err != nil {
		p.enabled = false
		return fmt.Errorf("erro ao conectar ao NATS: %v", err)
	}

	p.enabled = true
	log.Printf("NATS conectado em: %s", natsURL)
	return nil
}

// PublishTakeoff publica um evento de decolagem
func (p *Publisher) PublishTakeoff(ev models.JumpEvent) error {
	return p.publish(SubjectTakeoff, ev)
}

// PublishLanding publica um evento de aterrissagem (válido ou não)
func (p *Publisher) PublishLanding(ev models.LandingEvent) error {
	return p.publish(SubjectLanding, ev)
}

// PublishForce publica a telemetria de força do frame
func (p *Publisher) PublishForce(s models.ForceSample) error {
	return p.publish(SubjectForce, s)
}

// PublishSession publica o resumo consolidado da sessão
func (p *Publisher) PublishSession(stats models.SessionStats) error {
	return p.publish(SubjectSession, stats)
}

func (p *Publisher) publish(subject string, data interface{}) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.enabled || p.conn == nil {
		// NATS indisponível não derruba a detecção
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("erro ao serializar dados: %v", err)
	}

	if err := p.conn.Publish(subject, jsonData); err != nil {
		return fmt.Errorf("erro ao publicar no NATS em %s: %v", subject, err)
	}

	return nil
}

// Disconnect desconecta do NATS
func (p *Publisher) Disconnect() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
		p.enabled = false
		log.Println("NATS desconectado")
	}
}

// IsConnected verifica se está conectado ao NATS
func (p *Publisher) IsConnected() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.enabled && p.conn != nil && p.conn.IsConnected()
}
