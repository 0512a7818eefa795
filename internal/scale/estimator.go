package scale

import (
	"fmt"
	"math"

	"salto_detector/pkg/models"
)

// Métodos de estimativa, em ordem de prioridade
const (
	MethodNoseAnkle   = "nose-ankle"
	MethodShoulderHip = "shoulder-hip"
	MethodFallback    = "fallback"
)

// Config do estimador de escala. Os limites de aceitação foram calibrados
// empiricamente e podem precisar de recalibração para outras distâncias de
// câmera
type Config struct {
	AssumedHeightM       float64 // altura adulta assumida (m)
	AssumedTorsoM        float64 // altura ombro-quadril assumida (m)
	MinCalculationFrames int     // estimativas aceitas antes de comprometer a escala inicial
	MaxSearchFrames      int     // frames sem sinal válido antes do fallback
	AdaptAlpha           float64 // EMA de adaptação lenta pós-compromisso
	FullBodyMin          float64 // janela de aceitação nariz-tornozelo (normalizado)
	FullBodyMax          float64
	TorsoMin             float64 // janela de aceitação ombro-quadril (normalizado)
	TorsoMax             float64
	JointMinVisibility   float64
}

// DefaultConfig retorna a configuração padrão do estimador
func DefaultConfig() Config {
	return Config{
		AssumedHeightM:       1.70,
		AssumedTorsoM:        0.50,
		MinCalculationFrames: 10,
		MaxSearchFrames:      30,
		AdaptAlpha:           0.1,
		FullBodyMin:          0.1,
		FullBodyMax:          0.9,
		TorsoMin:             0.05,
		TorsoMax:             0.3,
		JointMinVisibility:   0.5,
	}
}

// Validate verifica a coerência da configuração na construção
func (c Config) Validate() error {
	if c.AssumedHeightM <= 0 || c.AssumedTorsoM <= 0 {
		return fmt.Errorf("alturas assumidas devem ser positivas")
	}
	if c.MinCalculationFrames <= 0 {
		return fmt.Errorf("MinCalculationFrames deve ser positivo")
	}
	if c.MaxSearchFrames < c.MinCalculationFrames {
		return fmt.Errorf("MaxSearchFrames (%d) menor que MinCalculationFrames (%d)",
			c.MaxSearchFrames, c.MinCalculationFrames)
	}
	if c.AdaptAlpha <= 0 || c.AdaptAlpha > 1 {
		return fmt.Errorf("AdaptAlpha fora de (0,1]: %f", c.AdaptAlpha)
	}
	if c.FullBodyMin >= c.FullBodyMax || c.TorsoMin >= c.TorsoMax {
		return fmt.Errorf("janelas de aceitação invertidas")
	}
	return nil
}

// Estimator converte distâncias normalizadas da imagem em metros usando
// proporções antropométricas. Estado de escritor único: chamado apenas do
// fluxo de processamento de frames
type Estimator struct {
	cfg Config

	frames     int
	accepted   int
	sum        float64
	committed  bool
	value      float64
	method     string
	heightNorm float64
}

// NewEstimator cria o estimador; a configuração é validada na construção
func NewEstimator(cfg Config) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuração de escala inválida: %v", err)
	}
	return &Estimator{cfg: cfg}, nil
}

// Observe processa as articulações de um frame. Até estabilizar, acumula
// estimativas aceitas; depois, adapta lentamente por EMA. Após
// MaxSearchFrames sem compromisso, adota o fallback fixo
func (e *Estimator) Observe(joints map[string]models.Joint) {
	e.frames++

	est, method, heightNorm, ok := e.estimateFromJoints(joints)
	if ok {
		e.method = method
		e.heightNorm = heightNorm

		if !e.committed {
			e.accepted++
			e.sum += est
			if e.accepted >= e.cfg.MinCalculationFrames {
				e.value = e.sum / float64(e.accepted)
				e.committed = true
			}
			return
		}

		// Adaptação lenta: nunca resetar no meio da sessão
		e.value = e.cfg.AdaptAlpha*est + (1-e.cfg.AdaptAlpha)*e.value
		return
	}

	if !e.committed && e.frames >= e.cfg.MaxSearchFrames {
		e.value = e.cfg.AssumedHeightM / 0.4
		e.method = MethodFallback
		e.committed = true
	}
}

// estimateFromJoints tenta os dois estimadores em ordem de prioridade:
// (a) nariz-tornozelo vs. altura assumida; (b) ombro-quadril vs. torso
func (e *Estimator) estimateFromJoints(joints map[string]models.Joint) (float64, string, float64, bool) {
	// (a) corpo inteiro
	nose, noseOK := visibleJoint(joints, models.JointNose, e.cfg.JointMinVisibility)
	ankleL, alOK := visibleJoint(joints, models.JointLeftAnkle, e.cfg.JointMinVisibility)
	ankleR, arOK := visibleJoint(joints, models.JointRightAnkle, e.cfg.JointMinVisibility)
	if noseOK && alOK && arOK {
		ankleMidY := (ankleL.Y + ankleR.Y) / 2
		h := math.Abs(ankleMidY - nose.Y)
		if h > e.cfg.FullBodyMin && h < e.cfg.FullBodyMax {
			return e.cfg.AssumedHeightM / h, MethodNoseAnkle, h, true
		}
	}

	// (b) torso
	shL, slOK := visibleJoint(joints, models.JointLeftShoulder, e.cfg.JointMinVisibility)
	shR, srOK := visibleJoint(joints, models.JointRightShoulder, e.cfg.JointMinVisibility)
	hipL, hlOK := visibleJoint(joints, models.JointLeftHip, e.cfg.JointMinVisibility)
	hipR, hrOK := visibleJoint(joints, models.JointRightHip, e.cfg.JointMinVisibility)
	if slOK && srOK && hlOK && hrOK {
		shoulderMidY := (shL.Y + shR.Y) / 2
		hipMidY := (hipL.Y + hipR.Y) / 2
		d := math.Abs(hipMidY - shoulderMidY)
		if d > e.cfg.TorsoMin && d < e.cfg.TorsoMax {
			return e.cfg.AssumedTorsoM / d, MethodShoulderHip, d, true
		}
	}

	return 0, "", 0, false
}

// Factor retorna o fator normalizado->metros; false enquanto não convergiu
func (e *Estimator) Factor() (float64, bool) {
	if !e.committed {
		return 0, false
	}
	return e.value, true
}

// Committed informa se a escala já foi comprometida (inclusive fallback)
func (e *Estimator) Committed() bool {
	return e.committed
}

// Method retorna o método da última estimativa comprometida
func (e *Estimator) Method() string {
	return e.method
}

// Estimate retorna o snapshot atual no formato de telemetria
func (e *Estimator) Estimate() models.ScaleEstimate {
	est := models.ScaleEstimate{
		Method:           e.method,
		HeightNormalized: e.heightNorm,
	}
	if e.committed {
		v := e.value
		est.NormalizedToMeters = &v
	}
	return est
}

// Reset limpa toda a calibração (somente via reset explícito do detector)
func (e *Estimator) Reset() {
	e.frames = 0
	e.accepted = 0
	e.sum = 0
	e.committed = false
	e.value = 0
	e.method = ""
	e.heightNorm = 0
}

func visibleJoint(joints map[string]models.Joint, name string, minVisibility float64) (models.Joint, bool) {
	j, ok := joints[name]
	if !ok || j.Visibility < minVisibility {
		return models.Joint{}, false
	}
	return j, true
}
