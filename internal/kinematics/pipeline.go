package kinematics

import (
	"fmt"
	"math"

	"salto_detector/internal/scale"
	"salto_detector/pkg/models"
)

// Config do pipeline de velocidade/aceleração/força
type Config struct {
	NoiseThresholdNorm    float64 // gate de ruído da velocidade bruta (unid. norm./s)
	SmallDecay            float64 // decaimento da velocidade em frame "pequeno"
	InvisibleDecay        float64 // decaimento da velocidade em frame sem quadril
	SnapThreshold         float64 // abaixo disso a velocidade vira exatamente 0 (m/s)
	VelocityAlpha         float64 // EMA da velocidade
	AccelAlpha            float64 // EMA da aceleração
	AccelClampMS2         float64 // clamp de plausibilidade física (m/s²)
	AccelSnapMS2          float64 // abaixo disso a aceleração vira 0
	HistorySize           int     // amostras de velocidade retidas
	MaxDeltaTSeconds      float64 // Δt acima disso = timestamp podre, frame descartado
	Gravity               float64 // m/s²
	HipVisibilityMin      float64 // visibilidade mínima dos dois quadris
	StationaryVelocityMS  float64 // "quase zero" para o clamp estacionário
	StationaryMinSamples  int     // amostras quase-zero (das últimas HistorySize) p/ clamp
	HipBaselineAlpha      float64 // EMA do baseline estacionário do quadril
	DefaultMassKG         float64
	MaxMassKG             float64
}

// DefaultConfig retorna a configuração padrão do pipeline
func DefaultConfig() Config {
	return Config{
		NoiseThresholdNorm:   0.01,
		SmallDecay:           0.9,
		InvisibleDecay:       0.8,
		SnapThreshold:        0.01,
		VelocityAlpha:        0.35,
		AccelAlpha:           0.2,
		AccelClampMS2:        50,
		AccelSnapMS2:         0.2,
		HistorySize:          5,
		MaxDeltaTSeconds:     0.1,
		Gravity:              9.81,
		HipVisibilityMin:     0.6,
		StationaryVelocityMS: 0.05,
		StationaryMinSamples: 3,
		HipBaselineAlpha:     0.2,
		DefaultMassKG:        70,
		MaxMassKG:            500,
	}
}

// Validate verifica a coerência da configuração na construção
func (c Config) Validate() error {
	if c.VelocityAlpha <= 0 || c.VelocityAlpha > 1 || c.AccelAlpha <= 0 || c.AccelAlpha > 1 {
		return fmt.Errorf("alphas de EMA fora de (0,1]")
	}
	if c.SmallDecay <= 0 || c.SmallDecay >= 1 || c.InvisibleDecay <= 0 || c.InvisibleDecay >= 1 {
		return fmt.Errorf("fatores de decaimento fora de (0,1)")
	}
	if c.HistorySize < c.StationaryMinSamples {
		return fmt.Errorf("HistorySize (%d) menor que StationaryMinSamples (%d)",
			c.HistorySize, c.StationaryMinSamples)
	}
	if c.MaxDeltaTSeconds <= 0 || c.AccelClampMS2 <= 0 || c.Gravity <= 0 {
		return fmt.Errorf("limites físicos devem ser positivos")
	}
	if c.DefaultMassKG <= 0 || c.DefaultMassKG > c.MaxMassKG {
		return fmt.Errorf("massa padrão fora de (0,%.0f]", c.MaxMassKG)
	}
	return nil
}

// VerticalDisplacement converte um par de coordenadas y da imagem em
// deslocamento vertical físico: y cresce para BAIXO, portanto positivo
// significa subida. ÚNICO ponto do código onde o sinal é derivado
func VerticalDisplacement(fromY, toY float64) float64 {
	return fromY - toY
}

// HipCenter calcula o ponto médio dos dois quadris. Válido apenas se ambos
// passam o limiar de visibilidade
func HipCenter(joints map[string]models.Joint, minVisibility float64) (x, y float64, ok bool) {
	l, lok := joints[models.JointLeftHip]
	r, rok := joints[models.JointRightHip]
	if !lok || !rok || l.Visibility < minVisibility || r.Visibility < minVisibility {
		return 0, 0, false
	}
	return (l.X + r.X) / 2, (l.Y + r.Y) / 2, true
}

// Pipeline deriva velocidade, aceleração e força vertical do centro do
// quadril. Escritor único: um frame é processado por completo antes do
// próximo; nenhum lock interno
type Pipeline struct {
	cfg    Config
	scale  *scale.Estimator
	massKG float64

	smoothedVel     float64 // m/s, positivo = para cima
	prevSmoothedVel float64
	accelSmoothed   float64
	velHistory      []float64

	lastHipY   float64
	hasPrevHip bool
	lastTS     int64
	hasPrevTS  bool

	baselineHipY     float64
	baselineHipValid bool
}

// NewPipeline cria o pipeline; a configuração é validada na construção
func NewPipeline(cfg Config, sc *scale.Estimator) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuração de cinemática inválida: %v", err)
	}
	return &Pipeline{
		cfg:        cfg,
		scale:      sc,
		massKG:     cfg.DefaultMassKG,
		velHistory: make([]float64, 0, cfg.HistorySize),
	}, nil
}

// SetMass define a massa corporal em kg, validada a (0, MaxMassKG].
// Valor inválido é rejeitado e o anterior mantido
func (p *Pipeline) SetMass(kg float64) error {
	if math.IsNaN(kg) || kg <= 0 || kg > p.cfg.MaxMassKG {
		return fmt.Errorf("massa fora dos limites (0, %.0f]: %.2f", p.cfg.MaxMassKG, kg)
	}
	p.massKG = kg
	return nil
}

// Mass retorna a massa corporal atual em kg
func (p *Pipeline) Mass() float64 {
	return p.massKG
}

// Process executa o procedimento por-frame. Chamado incondicionalmente a
// cada frame (dentro ou fora de episódios de salto) para manter a telemetria
// de força viva
func (p *Pipeline) Process(frame models.PoseFrame) models.ForceSample {
	weight := p.massKG * p.cfg.Gravity
	sample := models.ForceSample{
		Timestamp: frame.Timestamp,
		WeightN:   weight,
	}

	_, hipY, hipOK := HipCenter(frame.Joints, p.cfg.HipVisibilityMin)
	if hipOK {
		y := hipY
		sample.HipY = &y
	}

	switch {
	case !hipOK:
		// Quadril invisível: decair a velocidade em direção a zero
		p.decayVelocity(p.cfg.InvisibleDecay)
		p.pushHistory(p.smoothedVel)
		// A posição anterior morreu com a oclusão: rearmar no próximo
		// frame visível. Sem isso, o deslocamento acumulado durante a
		// lacuna seria dividido pelo Δt de um único frame e entraria no
		// FSM como um pico de velocidade fisicamente impossível
		p.hasPrevHip = false

	case !p.hasPrevHip || !p.hasPrevTS:
		// Primeiro frame utilizável: só armar o estado anterior
		p.lastHipY = hipY
		p.hasPrevHip = true

	default:
		dt := float64(frame.Timestamp-p.lastTS) / 1000.0
		if dt <= 0 || dt > p.cfg.MaxDeltaTSeconds {
			// Timestamp estagnado ou podre: manter a última velocidade
			// suavizada e seguir em frente
			p.lastHipY = hipY
		} else {
			p.step(hipY, dt, &sample)
		}
	}

	p.lastTS = frame.Timestamp
	p.hasPrevTS = true

	p.finishSample(&sample, weight)
	return sample
}

// step processa um frame com quadril visível e Δt sadio
func (p *Pipeline) step(hipY, dt float64, sample *models.ForceSample) {
	rawNorm := VerticalDisplacement(p.lastHipY, hipY) / dt
	sample.VelocityNorm = rawNorm

	if math.Abs(rawNorm) < p.cfg.NoiseThresholdNorm {
		// Abaixo do ruído: decair e aproveitar para recalibrar o baseline
		// estacionário do quadril
		p.decayVelocity(p.cfg.SmallDecay)
		p.refreshHipBaseline(hipY)
	} else if factor, ok := p.scale.Factor(); ok {
		rawMS := rawNorm * factor
		p.smoothedVel = p.cfg.VelocityAlpha*rawMS + (1-p.cfg.VelocityAlpha)*p.smoothedVel
	}
	// Sem escala comprometida não há unidades reais: a velocidade
	// suavizada permanece como está (zero no início da sessão)

	p.pushHistory(p.smoothedVel)

	// Aceleração com clamp de plausibilidade e snap de ruído
	accel := (p.smoothedVel - p.prevSmoothedVel) / dt
	if accel > p.cfg.AccelClampMS2 {
		accel = p.cfg.AccelClampMS2
	} else if accel < -p.cfg.AccelClampMS2 {
		accel = -p.cfg.AccelClampMS2
	}
	p.accelSmoothed = p.cfg.AccelAlpha*accel + (1-p.cfg.AccelAlpha)*p.accelSmoothed
	if math.Abs(p.accelSmoothed) < p.cfg.AccelSnapMS2 {
		p.accelSmoothed = 0
	}

	p.prevSmoothedVel = p.smoothedVel
	p.lastHipY = hipY
}

// finishSample fecha a amostra com o clamp estacionário e a força total
func (p *Pipeline) finishSample(sample *models.ForceSample, weight float64) {
	sample.VelocityMS = p.smoothedVel

	if p.isStationary() {
		// Clamp duro: parado, a força É o peso. Evita forças fantasma
		// induzidas por jitter
		p.accelSmoothed = 0
		sample.AccelerationMS2 = 0
		sample.NetForceN = 0
		sample.TotalForceN = weight
		sample.Stationary = true
		return
	}

	sample.AccelerationMS2 = p.accelSmoothed
	sample.NetForceN = p.massKG * p.accelSmoothed
	total := weight + sample.NetForceN
	if total < weight {
		// Força de aterrissagem nunca registra abaixo do peso corporal
		total = weight
	}
	sample.TotalForceN = total
}

// decayVelocity multiplica a velocidade suavizada pelo fator, com snap a 0
func (p *Pipeline) decayVelocity(factor float64) {
	p.smoothedVel *= factor
	if math.Abs(p.smoothedVel) < p.cfg.SnapThreshold {
		p.smoothedVel = 0
	}
	p.prevSmoothedVel = p.smoothedVel
}

// pushHistory mantém a janela limitada de velocidades suavizadas
func (p *Pipeline) pushHistory(v float64) {
	if len(p.velHistory) == p.cfg.HistorySize {
		copy(p.velHistory, p.velHistory[1:])
		p.velHistory[len(p.velHistory)-1] = v
		return
	}
	p.velHistory = append(p.velHistory, v)
}

// isStationary conta amostras quase-zero nas últimas HistorySize
func (p *Pipeline) isStationary() bool {
	if len(p.velHistory) < p.cfg.StationaryMinSamples {
		return false
	}
	nearZero := 0
	for _, v := range p.velHistory {
		if math.Abs(v) < p.cfg.StationaryVelocityMS {
			nearZero++
		}
	}
	return nearZero >= p.cfg.StationaryMinSamples
}

// refreshHipBaseline adapta o baseline estacionário do quadril
func (p *Pipeline) refreshHipBaseline(hipY float64) {
	if !p.baselineHipValid {
		p.baselineHipY = hipY
		p.baselineHipValid = true
		return
	}
	p.baselineHipY = p.cfg.HipBaselineAlpha*hipY + (1-p.cfg.HipBaselineAlpha)*p.baselineHipY
}

// HipBaseline retorna o baseline estacionário do quadril, se calibrado
func (p *Pipeline) HipBaseline() (float64, bool) {
	return p.baselineHipY, p.baselineHipValid
}

// Reset limpa todo o estado de suavização e baselines
func (p *Pipeline) Reset() {
	p.smoothedVel = 0
	p.prevSmoothedVel = 0
	p.accelSmoothed = 0
	p.velHistory = p.velHistory[:0]
	p.lastHipY = 0
	p.hasPrevHip = false
	p.lastTS = 0
	p.hasPrevTS = false
	p.baselineHipY = 0
	p.baselineHipValid = false
}
