package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"

	"salto_detector/pkg/models"
	"salto_detector/pkg/utils"

	"github.com/gorilla/websocket"
)

// FrameHandler recebe cada frame de landmarks ingerido via /pose
type FrameHandler func(models.IngestFrame)

// WebSocketManager gerencia o endpoint de ingestão de pose e o broadcast
// de telemetria para os clientes conectados
type WebSocketManager struct {
	clients      map[*websocket.Conn]bool
	broadcast    chan models.TelemetryMessage
	register     chan *websocket.Conn
	unregister   chan *websocket.Conn
	mutex        sync.Mutex
	connCount    int
	frameHandler FrameHandler
	handlerMu    sync.RWMutex
}

// NewWebSocketManager cria um novo gerenciador de WebSockets
func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan models.TelemetryMessage),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		connCount:  0,
	}
}

// SetFrameHandler define o destino dos frames ingeridos. Deve ser chamado
// antes de ServeHTTP; frames recebidos sem handler são descartados
func (manager *WebSocketManager) SetFrameHandler(handler FrameHandler) {
	manager.handlerMu.Lock()
	manager.frameHandler = handler
	manager.handlerMu.Unlock()
}

// Run inicia o loop de registro/broadcast do gerenciador
func (manager *WebSocketManager) Run() {
	for {
		select {
		case client := <-manager.register:
			manager.mutex.Lock()
			if _, exists := manager.clients[client]; !exists {
				manager.clients[client] = true
				manager.connCount++
				log.Printf("Novo cliente conectado. ID: %p, Total: %d", client, manager.connCount)
			}
			manager.mutex.Unlock()

		case client := <-manager.unregister:
			manager.mutex.Lock()
			if _, ok := manager.clients[client]; ok {
				delete(manager.clients, client)
				manager.connCount--
				log.Printf("Cliente desconectado. ID: %p, Total: %d", client, manager.connCount)
				client.Close()
			}
			manager.mutex.Unlock()

		case message := <-manager.broadcast:
			manager.mutex.Lock()
			for client := range manager.clients {
				err := client.WriteJSON(message)
				if err != nil {
					log.Printf("Erro ao enviar telemetria: %v. Removendo cliente: %p", err, client)
					client.Close()
					delete(manager.clients, client)
					manager.connCount--
				}
			}
			manager.mutex.Unlock()
		}
	}
}

// BroadcastTelemetry envia uma mensagem de telemetria a todos os clientes.
// Sem clientes conectados, é descartada sem bloquear o fluxo de frames
func (manager *WebSocketManager) BroadcastTelemetry(msg models.TelemetryMessage) {
	manager.mutex.Lock()
	clientCount := len(manager.clients)
	manager.mutex.Unlock()

	if clientCount > 0 {
		manager.broadcast <- msg
	}
}

// LimparConexoesAnteriores limpa conexões inativas
func (manager *WebSocketManager) LimparConexoesAnteriores() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for client := range manager.clients {
		client.Close()
		delete(manager.clients, client)
	}

	manager.connCount = 0
	log.Println("Todas as conexões anteriores foram limpas.")
}

// GetConnectedCount retorna número de clientes conectados
func (manager *WebSocketManager) GetConnectedCount() int {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	return manager.connCount
}

// Configuração de websocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Permitir todas as origens
		return true
	},
}

// HandleTelemetry trata conexões WebSocket de clientes de telemetria
func (manager *WebSocketManager) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "Não é uma requisição WebSocket válida", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Erro ao fazer upgrade para WebSocket: %v", err)
		return
	}

	conn.SetCloseHandler(func(code int, text string) error {
		log.Printf("Conexão WebSocket fechada com código %d: %s", code, text)
		manager.unregister <- conn
		return nil
	})

	manager.register <- conn

	// Monitorar desconexões
	go func() {
		for {
			messageType, _, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure) {
					log.Printf("Erro WebSocket: %v", err)
				}
				manager.unregister <- conn
				break
			}

			if messageType == websocket.PingMessage {
				if err := conn.WriteMessage(websocket.PongMessage, nil); err != nil {
					log.Printf("Erro ao enviar pong: %v", err)
					manager.unregister <- conn
					break
				}
			}
		}
	}()
}

// HandlePoseIngest trata a conexão WebSocket do produtor de pose: cada
// mensagem de texto é um IngestFrame JSON entregue ao frame handler na
// goroutine de leitura da conexão (escritor único do pipeline)
func (manager *WebSocketManager) HandlePoseIngest(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "Não é uma requisição WebSocket válida", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Erro ao fazer upgrade para WebSocket: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("Produtor de pose conectado: %s", r.RemoteAddr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				log.Printf("Erro na conexão do produtor de pose: %v", err)
			}
			log.Printf("Produtor de pose desconectado: %s", r.RemoteAddr)
			return
		}

		frame, err := utils.ParseIngestFrame(data, false)
		if err != nil {
			log.Printf("Frame de pose inválido, descartando: %v", err)
			continue
		}

		manager.handlerMu.RLock()
		handler := manager.frameHandler
		manager.handlerMu.RUnlock()
		if handler != nil {
			handler(frame)
		}
	}
}

// ServeHTTP inicia o servidor HTTP e WebSocket no endereço dado
func (manager *WebSocketManager) ServeHTTP(addr, webDir string) {
	// Servir arquivos estáticos, preferindo o build em dist
	distDir := webDir + "/dist"
	if _, err := os.Stat(distDir); err == nil {
		log.Printf("Servindo arquivos estáticos do diretório: %s", distDir)
		fs := http.FileServer(http.Dir(distDir))
		http.Handle("/", fs)
	} else {
		log.Printf("Diretório dist não encontrado, servindo do diretório: %s", webDir)
		fs := http.FileServer(http.Dir(webDir))
		http.Handle("/", fs)
	}

	// Telemetria para clientes e ingestão do produtor de pose
	http.HandleFunc("/ws", manager.HandleTelemetry)
	http.HandleFunc("/pose", manager.HandlePoseIngest)

	// API para obter informações do sistema
	http.HandleFunc("/api/info", func(w http.ResponseWriter, r *http.Request) {
		info := struct {
			Version string `json:"version"`
			Name    string `json:"name"`
		}{
			Version: "1.0.0",
			Name:    "Detector de Salto Vertical",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	})

	log.Printf("Servidor Web e WebSocket iniciado em %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal("Erro ao iniciar servidor HTTP: ", err)
	}
}
