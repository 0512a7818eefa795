package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"salto_detector/internal/bus"
	"salto_detector/internal/filters"
	"salto_detector/internal/geometry"
	"salto_detector/internal/jump"
	"salto_detector/internal/kinematics"
	"salto_detector/internal/logger"
	natspub "salto_detector/internal/nats"
	"salto_detector/internal/pose"
	"salto_detector/internal/scale"
	"salto_detector/internal/storage"
	"salto_detector/internal/websocket"
	"salto_detector/pkg/models"
	"salto_detector/pkg/utils"
)

var (
	sysLog *logger.SystemLogger

	// Context global para controle de goroutines
	globalCtx    context.Context
	globalCancel context.CancelFunc
	mainWg       sync.WaitGroup
)

// SystemMetrics acumula contadores do processo com proteção thread-safe
type SystemMetrics struct {
	mutex          sync.RWMutex
	StartTime      time.Time
	FramesReceived int64
	FramesRejected int64
	JumpsDetected  int64
	Landings       int64
	PublishErrors  int64
	StorageErrors  int64
	LastFrameAt    time.Time
}

func (m *SystemMetrics) IncrementFramesReceived() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.FramesReceived++
	m.LastFrameAt = time.Now()
}

func (m *SystemMetrics) IncrementFramesRejected() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.FramesRejected++
}

func (m *SystemMetrics) IncrementJumpsDetected() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.JumpsDetected++
}

func (m *SystemMetrics) IncrementLandings() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Landings++
}

func (m *SystemMetrics) IncrementPublishErrors() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.PublishErrors++
}

func (m *SystemMetrics) IncrementStorageErrors() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.StorageErrors++
}

func (m *SystemMetrics) GetStats() (int64, int64, int64, int64, int64, int64) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.FramesReceived, m.FramesRejected, m.JumpsDetected,
		m.Landings, m.PublishErrors, m.StorageErrors
}

var metrics *SystemMetrics

func main() {
	addr := flag.String("addr", ":8080", "endereço do servidor HTTP/WebSocket")
	webDir := flag.String("web", "web", "diretório de arquivos estáticos")
	natsURL := flag.String("nats", "", "URL do servidor NATS (vazio = desabilitado)")
	redisAddr := flag.String("redis", "", "endereço do Redis (vazio = desabilitado)")
	massKG := flag.Float64("mass", 70, "massa corporal em kg")
	debugMode := flag.Bool("debug", false, "modo debug")
	flag.Parse()

	globalCtx, globalCancel = context.WithCancel(context.Background())

	sysLog = logger.NewSystemLogger()
	defer sysLog.Close()

	// PANIC RECOVERY
	defer func() {
		if r := recover(); r != nil {
			timestamp := time.Now().Format("2006-01-02 15:04:05")
			sysLog.LogCriticalError("main", "panic",
				fmt.Errorf("%v\n%s", r, string(debug.Stack())))
			fmt.Printf("\n🔥 CRASH DETECTADO: %s - Erro: %v\n", timestamp, r)
			gracefulShutdown()
			os.Exit(1)
		}
	}()

	metrics = &SystemMetrics{StartTime: time.Now()}
	sessionID := uuid.NewString()

	printSystemHeader(sessionID)
	sysLog.LogSystemStarted()

	// Pipeline de detecção
	estimator, err := scale.NewEstimator(scale.DefaultConfig())
	if err != nil {
		fmt.Printf("❌ Erro na configuração de escala: %v\n", err)
		os.Exit(1)
	}

	pipeline, err := kinematics.NewPipeline(kinematics.DefaultConfig(), estimator)
	if err != nil {
		fmt.Printf("❌ Erro na configuração de cinemática: %v\n", err)
		os.Exit(1)
	}

	detector, err := jump.NewDetector(jump.DefaultConfig(), estimator, pipeline, sysLog)
	if err != nil {
		fmt.Printf("❌ Erro na configuração do detector: %v\n", err)
		os.Exit(1)
	}

	if err := detector.SetMass(*massKG); err != nil {
		fmt.Printf("⚠️  Massa inválida (%.1f), usando padrão: %v\n", *massKG, err)
	}

	// Barramento de frames: o detector é um assinante como outro qualquer
	frameBus := bus.New(sysLog)
	frameBus.Subscribe(detector.HandleFrame)

	// Superfícies externas opcionais
	publisher := natspub.NewPublisher()
	if *natsURL != "" {
		if err := publisher.Connect(*natsURL); err != nil {
			fmt.Printf("⚠️  NATS indisponível: %v\n", err)
			sysLog.LogCriticalError("nats", "connect", err)
		}
	}
	defer publisher.Disconnect()

	store := storage.NewSessionStore(sessionID)
	if err := store.Connect(*redisAddr); err != nil {
		fmt.Printf("⚠️  Redis indisponível: %v\n", err)
		sysLog.LogCriticalError("redis", "connect", err)
	}
	defer store.Close()

	wsManager := websocket.NewWebSocketManager()

	// Eventos do detector: NATS + WebSocket + Redis + métricas
	sessionStats := &models.SessionStats{SessionID: sessionID}
	var statsMu sync.Mutex

	detector.OnJumpDetected(func(ev models.JumpEvent) {
		metrics.IncrementJumpsDetected()
		if err := publisher.PublishTakeoff(ev); err != nil {
			metrics.IncrementPublishErrors()
		}
		wsManager.BroadcastTelemetry(models.TelemetryMessage{
			Type: "takeoff", Payload: ev, Timestamp: ev.Timestamp,
		})
	})

	detector.OnLandingDetected(func(ev models.LandingEvent) {
		metrics.IncrementLandings()
		if err := publisher.PublishLanding(ev); err != nil {
			metrics.IncrementPublishErrors()
		}
		wsManager.BroadcastTelemetry(models.TelemetryMessage{
			Type: "landing", Payload: ev, Timestamp: ev.Timestamp,
		})

		statsMu.Lock()
		if ev.IsValid {
			sessionStats.TotalJumps = ev.JumpNumber
			sessionStats.TotalAirTime += ev.AirTimeMS
			if ev.JumpHeight > sessionStats.BestHeight {
				sessionStats.BestHeight = ev.JumpHeight
			}
			if ev.GroundReactionForce > sessionStats.BestForce {
				sessionStats.BestForce = ev.GroundReactionForce
			}
		}
		sessionStats.Timestamp = ev.Timestamp
		snapshot := *sessionStats
		statsMu.Unlock()

		ctx, cancel := context.WithTimeout(globalCtx, 2*time.Second)
		defer cancel()
		if err := store.SaveLanding(ctx, ev); err != nil {
			metrics.IncrementStorageErrors()
			sysLog.LogCriticalError("redis", "save_landing", err)
		}
		if err := store.SaveStats(ctx, snapshot); err != nil {
			metrics.IncrementStorageErrors()
		}
		if err := publisher.PublishSession(snapshot); err != nil {
			metrics.IncrementPublishErrors()
		}
	})

	detector.OnForceCalculated(func(s models.ForceSample) {
		if err := publisher.PublishForce(s); err != nil {
			metrics.IncrementPublishErrors()
		}
		wsManager.BroadcastTelemetry(models.TelemetryMessage{
			Type: "force", Payload: s, Timestamp: s.Timestamp,
		})
	})

	// Ingestão: landmarks -> ângulos/orientações -> suavização -> PoseFrame
	// -> barramento. Roda na goroutine de leitura da conexão do produtor
	// (escritor único)
	fpsFilter := filters.NewEMAFilter(0.2)
	smoother, err := pose.NewSmoother(pose.DefaultSmoothingConfig())
	if err != nil {
		fmt.Printf("❌ Erro na configuração de suavização: %v\n", err)
		os.Exit(1)
	}

	wsManager.SetFrameHandler(func(in models.IngestFrame) {
		metrics.IncrementFramesReceived()

		angles := geometry.AllAngles(in.Landmarks)
		orientations := geometry.AllOrientations(in.Landmarks)
		smoother.Apply(angles, orientations)

		fps := in.FPS
		if smoothed, ok := fpsFilter.Update(in.FPS); ok {
			fps = smoothed
		}

		frame := pose.CreatePoseFrame(in.Landmarks, angles, orientations,
			in.Timestamp, fps, in.Model)
		if frame == nil {
			metrics.IncrementFramesRejected()
			if *debugMode {
				sysLog.LogDebug("ingest", fmt.Sprintf(
					"frame %d rejeitado: sem articulações-chave visíveis", in.Timestamp))
			}
			return
		}

		frameBus.Publish(*frame)
	})

	setupGracefulShutdown()

	// Status periódico no terminal
	mainWg.Add(1)
	go statusTicker(detector, frameBus, wsManager, publisher, store, sessionID)

	// Bloqueia servindo /ws, /pose e /api/info
	go wsManager.Run()
	wsManager.ServeHTTP(*addr, *webDir)
}

// statusTicker redesenha o painel de status a cada 5s
func statusTicker(detector *jump.Detector, frameBus *bus.FrameBus,
	wsManager *websocket.WebSocketManager, publisher *natspub.Publisher,
	store *storage.SessionStore, sessionID string) {
	defer mainWg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-globalCtx.Done():
			return
		case <-ticker.C:
			displaySystemStatus(detector, frameBus, wsManager, publisher, store, sessionID)
		}
	}
}

func displaySystemStatus(detector *jump.Detector, frameBus *bus.FrameBus,
	wsManager *websocket.WebSocketManager, publisher *natspub.Publisher,
	store *storage.SessionStore, sessionID string) {
	utils.LimparTela()

	snap := detector.Snapshot()
	busStats := frameBus.Stats()
	received, rejected, jumps, landings, pubErrors, storeErrors := metrics.GetStats()

	natsStatus := "🔴 DESABILITADO"
	if publisher.IsConnected() {
		natsStatus = "🟢 CONECTADO"
	}
	redisStatus := "🔴 DESABILITADO"
	if store.IsEnabled() {
		redisStatus = "🟢 CONECTADO"
	}

	scaleStatus := "🔄 CALIBRANDO"
	if snap.Scale.NormalizedToMeters != nil {
		scaleStatus = fmt.Sprintf("🟢 %.3f m/unid (%s)",
			*snap.Scale.NormalizedToMeters, snap.Scale.Method)
	}

	uptime := time.Since(metrics.StartTime)
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	memMB := float64(m.Alloc) / (1024 * 1024)

	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║               DETECTOR DE SALTO VERTICAL                     ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Printf("🆔 Sessão: %s\n", sessionID)
	fmt.Printf("🤸 Estado: %-10s | Saltos válidos: %d\n", snap.State, snap.JumpCount)
	fmt.Printf("📏 Escala: %s\n", scaleStatus)
	fmt.Printf("⚖️  Massa: %.1f kg | Peso: %.1f N\n", snap.MassKG, snap.LastForce.WeightN)
	fmt.Printf("🏃 Velocidade: %+.2f m/s | Força total: %.1f N\n",
		snap.LastForce.VelocityMS, snap.LastForce.TotalForceN)
	fmt.Println()
	fmt.Println("📈 MÉTRICAS:")
	fmt.Printf("   ⏱️  Uptime: %s | 💾 Memória: %.1fMB\n", formatDuration(uptime), memMB)
	fmt.Printf("   📦 Frames: %d recebidos, %d rejeitados\n", received, rejected)
	fmt.Printf("   🚌 Barramento: %d publicados, %d entregues, %d panics, %d assinantes\n",
		busStats.Published, busStats.Delivered, busStats.Panics, busStats.Subscribers)
	fmt.Printf("   🤸 Eventos: %d decolagens, %d aterrissagens\n", jumps, landings)
	fmt.Printf("   ❌ Erros: %d publicação, %d persistência\n", pubErrors, storeErrors)
	fmt.Println()
	fmt.Printf("📡 NATS: %s | 🗄️  Redis: %s | 🌐 Clientes WS: %d\n",
		natsStatus, redisStatus, wsManager.GetConnectedCount())
	fmt.Println("Ctrl+C para parar.")
}

func gracefulShutdown() {
	fmt.Println("\n🛑 Iniciando shutdown gracioso...")

	if globalCancel != nil {
		globalCancel()
	}

	done := make(chan struct{})
	go func() {
		mainWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		fmt.Println("✅ Todas as goroutines finalizadas")
	case <-time.After(10 * time.Second):
		fmt.Println("⚠️ Timeout no shutdown - forçando parada")
	}

	sysLog.LogSystemShutdown(time.Since(metrics.StartTime))
	sysLog.Close()
}

func setupGracefulShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		sig := <-c
		fmt.Printf("\n\n🛑 Sinal: %v - Encerrando...\n", sig)
		gracefulShutdown()
		os.Exit(0)
	}()
}

func printSystemHeader(sessionID string) {
	fmt.Print("\033[2J\033[H")
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║               DETECTOR DE SALTO VERTICAL v1.0                ║")
	fmt.Println("╠══════════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Sessão: %-36s            ║\n", sessionID)
	fmt.Printf("║ Data: %-19s                  Versão: v1.0.0 ║\n",
		time.Now().Format("2006-01-02 15:04:05"))
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
