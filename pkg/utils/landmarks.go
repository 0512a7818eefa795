package utils

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"runtime"

	"salto_detector/pkg/models"
)

// Constantes de validação de landmarks
const (
	// Coordenadas normalizadas válidas (com folga para landmarks fora do
	// enquadramento que alguns modelos reportam)
	MinCoordinate = -0.5
	MaxCoordinate = 1.5

	// Visibilidade assumida quando o produtor omite o campo
	DefaultVisibility = 1.0
)

// DecodeError representa erro de decodificação de frame de pose
type DecodeError struct {
	Field     string
	Operation string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("erro na decodificação %s no campo '%s': %v",
		e.Operation, e.Field, e.Err)
}

// rawLandmark espelha o JSON do produtor com campos opcionais como
// ponteiros, para distinguir "ausente" de "zero"
type rawLandmark struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          *float64 `json:"z"`
	Visibility *float64 `json:"visibility"`
}

type rawFrame struct {
	Timestamp int64         `json:"timestamp"`
	FPS       float64       `json:"fps"`
	Model     string        `json:"model"`
	Landmarks []rawLandmark `json:"landmarks"`
}

// LandmarkDecoder decodifica e valida frames de landmarks vindos do
// produtor de pose
type LandmarkDecoder struct {
	logger    *slog.Logger
	debugMode bool
}

// NewLandmarkDecoder cria novo decodificador com configurações
func NewLandmarkDecoder(debugMode bool, logger *slog.Logger) *LandmarkDecoder {
	if logger == nil {
		logger = slog.Default()
	}

	return &LandmarkDecoder{
		logger:    logger.With("component", "landmark_decoder"),
		debugMode: debugMode,
	}
}

// Decode interpreta um frame JSON do produtor, aplicando os defaults de
// campos omitidos (visibility=1.0, z=0) e validando coordenadas
func (ld *LandmarkDecoder) Decode(data []byte) (models.IngestFrame, error) {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		if ld.debugMode {
			ld.logger.Error("Frame de pose ilegível", "error", err)
		}
		return models.IngestFrame{}, &DecodeError{"frame", "Decode", err}
	}

	frame := models.IngestFrame{
		Timestamp: raw.Timestamp,
		FPS:       raw.FPS,
		Model:     raw.Model,
		Landmarks: make([]models.Landmark, len(raw.Landmarks)),
	}

	for i, rl := range raw.Landmarks {
		lm, err := ld.decodeLandmark(rl)
		if err != nil {
			return models.IngestFrame{}, &DecodeError{
				fmt.Sprintf("landmarks[%d]", i), "Decode", err,
			}
		}
		frame.Landmarks[i] = lm
	}

	if ld.debugMode {
		ld.logger.Debug("Frame decodificado",
			"timestamp", frame.Timestamp,
			"landmarks", len(frame.Landmarks),
			"model", frame.Model,
		)
	}

	return frame, nil
}

// decodeLandmark valida um landmark e aplica os defaults
func (ld *LandmarkDecoder) decodeLandmark(rl rawLandmark) (models.Landmark, error) {
	if math.IsNaN(rl.X) || math.IsNaN(rl.Y) || math.IsInf(rl.X, 0) || math.IsInf(rl.Y, 0) {
		return models.Landmark{}, fmt.Errorf("coordenada não-finita")
	}

	lm := models.Landmark{
		X:          rl.X,
		Y:          rl.Y,
		Visibility: DefaultVisibility,
	}

	if rl.Z != nil && !math.IsNaN(*rl.Z) && !math.IsInf(*rl.Z, 0) {
		lm.Z = *rl.Z
	}

	if rl.Visibility != nil {
		v := *rl.Visibility
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.Landmark{}, fmt.Errorf("visibilidade não-finita")
		}
		lm.Visibility = Clamp(v, 0, 1)
	}

	if lm.X < MinCoordinate || lm.X > MaxCoordinate || lm.Y < MinCoordinate || lm.Y > MaxCoordinate {
		if ld.debugMode {
			ld.logger.Warn("Landmark fora da faixa esperada",
				"x", lm.X, "y", lm.Y)
		}
	}

	return lm, nil
}

// Clamp limita value ao intervalo [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// TerminalCleaner gerencia limpeza de terminal
type TerminalCleaner struct {
	logger *slog.Logger
}

// NewTerminalCleaner cria novo limpador de terminal
func NewTerminalCleaner(logger *slog.Logger) *TerminalCleaner {
	if logger == nil {
		logger = slog.Default()
	}

	return &TerminalCleaner{
		logger: logger.With("component", "terminal_cleaner"),
	}
}

// Clear limpa terminal de forma robusta
func (tc *TerminalCleaner) Clear() error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "cls")
	case "linux", "darwin":
		cmd = exec.Command("clear")
	default:
		// Fallback usando escape sequences ANSI
		fmt.Print("\033[H\033[2J")
		return nil
	}

	cmd.Stdout = os.Stdout
	if err := cmd.Run(); err != nil {
		tc.logger.Warn("Falha limpando terminal via comando",
			"os", runtime.GOOS, "error", err)

		fmt.Print("\033[H\033[2J")
		return err
	}

	return nil
}

// === FUNÇÕES DE COMPATIBILIDADE ===

// ParseIngestFrame função global para decodificação com defaults
func ParseIngestFrame(data []byte, debugMode bool) (models.IngestFrame, error) {
	decoder := NewLandmarkDecoder(debugMode, nil)
	return decoder.Decode(data)
}

// ParseRecording decodifica uma gravação de sessão (array JSON de frames),
// aplicando a cada frame os mesmos defaults do caminho de ingestão ao vivo
func ParseRecording(data []byte, debugMode bool) ([]models.IngestFrame, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, &DecodeError{"gravação", "ParseRecording", err}
	}

	decoder := NewLandmarkDecoder(debugMode, nil)
	frames := make([]models.IngestFrame, 0, len(raws))
	for i, raw := range raws {
		frame, err := decoder.Decode(raw)
		if err != nil {
			return nil, &DecodeError{
				fmt.Sprintf("frames[%d]", i), "ParseRecording", err,
			}
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// LimparTela função global para compatibilidade
func LimparTela() {
	cleaner := NewTerminalCleaner(nil)
	cleaner.Clear()
}
