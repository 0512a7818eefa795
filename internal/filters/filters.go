package filters

import (
	"fmt"
	"math"
)

// Tipos de filtro selecionáveis por configuração
const (
	KindEMA    = "ema"
	KindKalman = "kalman"
)

// Config seleciona o tipo de filtro e suas constantes de ruído para uma
// família de séries. Famílias diferentes (ângulos articulares, orientações
// de segmento, coordenadas) carregam níveis de ruído diferentes e recebem
// configurações próprias
type Config struct {
	Kind             string  // KindEMA ou KindKalman
	Alpha            float64 // EMA: 0 < alpha <= 1
	ProcessNoise     float64 // Kalman
	MeasurementNoise float64 // Kalman
}

// Validate verifica a coerência da configuração
func (c Config) Validate() error {
	switch c.Kind {
	case KindEMA:
		if c.Alpha <= 0 || c.Alpha > 1 {
			return fmt.Errorf("alpha de EMA fora de (0,1]: %v", c.Alpha)
		}
	case KindKalman:
		if c.ProcessNoise <= 0 || c.MeasurementNoise <= 0 {
			return fmt.Errorf("ruídos de Kalman devem ser positivos")
		}
	default:
		return fmt.Errorf("tipo de filtro desconhecido: %q", c.Kind)
	}
	return nil
}

// New constrói o filtro descrito pela configuração
func New(c Config) (ScalarFilter, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Kind == KindKalman {
		return NewKalmanFilter(c.ProcessNoise, c.MeasurementNoise), nil
	}
	return NewEMAFilter(c.Alpha), nil
}

// SeriesBank mantém um ScalarFilter por série nomeada, todos com a mesma
// configuração. Instâncias nascem sob demanda no primeiro Update de cada
// série — nunca misturar séries na mesma instância
type SeriesBank struct {
	cfg    Config
	series map[string]ScalarFilter
}

// NewSeriesBank cria o banco; a configuração é validada na construção
func NewSeriesBank(cfg Config) (*SeriesBank, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SeriesBank{cfg: cfg, series: make(map[string]ScalarFilter)}, nil
}

// Update aplica a amostra ao filtro da série nomeada
func (b *SeriesBank) Update(name string, value float64) (float64, bool) {
	f, ok := b.series[name]
	if !ok {
		f, _ = New(b.cfg) // cfg já validada na construção do banco
		b.series[name] = f
	}
	return f.Update(value)
}

// Reset limpa todos os filtros do banco para o estado não-inicializado
func (b *SeriesBank) Reset() {
	for _, f := range b.series {
		f.Reset()
	}
}

// ScalarFilter é um suavizador de série escalar. Cada instância atende UMA
// única série temporal (um ângulo, uma coordenada) — nunca misturar séries
// na mesma instância.
//
// Update retorna (valor suavizado, true) para entrada válida. Entrada
// inválida (NaN/Inf) retorna (0, false) e NÃO altera o estado interno.
type ScalarFilter interface {
	Update(value float64) (float64, bool)
	Reset()
}

// EMAFilter implementa média móvel exponencial: v' = α·x + (1-α)·v.
// A primeira amostra passa sem suavização
type EMAFilter struct {
	alpha       float64
	value       float64
	initialized bool
}

// NewEMAFilter cria um filtro EMA com o alpha informado (0 < alpha <= 1)
func NewEMAFilter(alpha float64) *EMAFilter {
	return &EMAFilter{alpha: alpha}
}

// Update aplica uma nova amostra ao filtro
func (f *EMAFilter) Update(value float64) (float64, bool) {
	if !validSample(value) {
		return 0, false
	}

	if !f.initialized {
		f.value = value
		f.initialized = true
		return f.value, true
	}

	f.value = f.alpha*value + (1-f.alpha)*f.value
	return f.value, true
}

// Value retorna o último valor suavizado (false se nenhuma amostra válida)
func (f *EMAFilter) Value() (float64, bool) {
	return f.value, f.initialized
}

// Reset limpa o filtro para o estado não-inicializado
func (f *EMAFilter) Reset() {
	f.value = 0
	f.initialized = false
}

// KalmanFilter é o filtro de Kalman 1-D simplificado (sem modelo de
// velocidade): predição soma o ruído de processo, atualização mistura a
// medição pelo ganho predError/(predError+measurementNoise)
type KalmanFilter struct {
	processNoise     float64
	measurementNoise float64
	estimatedValue   float64
	estimatedError   float64
	initialized      bool
}

// NewKalmanFilter cria um filtro de Kalman 1-D. O erro estimado inicia em 1.0
func NewKalmanFilter(processNoise, measurementNoise float64) *KalmanFilter {
	return &KalmanFilter{
		processNoise:     processNoise,
		measurementNoise: measurementNoise,
		estimatedError:   1.0,
	}
}

// Update aplica uma nova medição ao filtro
func (f *KalmanFilter) Update(measurement float64) (float64, bool) {
	if !validSample(measurement) {
		return 0, false
	}

	if !f.initialized {
		// Primeira medição inicializa o estado diretamente
		f.estimatedValue = measurement
		f.initialized = true
		return f.estimatedValue, true
	}

	// Predição
	predError := f.estimatedError + f.processNoise

	// Atualização
	gain := predError / (predError + f.measurementNoise)
	f.estimatedValue = f.estimatedValue + gain*(measurement-f.estimatedValue)
	f.estimatedError = (1 - gain) * predError

	return f.estimatedValue, true
}

// Value retorna o último valor estimado (false se nenhuma amostra válida)
func (f *KalmanFilter) Value() (float64, bool) {
	return f.estimatedValue, f.initialized
}

// Reset limpa o filtro para o estado não-inicializado
func (f *KalmanFilter) Reset() {
	f.estimatedValue = 0
	f.estimatedError = 1.0
	f.initialized = false
}

func validSample(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
