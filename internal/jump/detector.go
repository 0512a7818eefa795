package jump

import (
	"fmt"
	"math"
	"sync"

	"salto_detector/internal/kinematics"
	"salto_detector/internal/logger"
	"salto_detector/internal/scale"
	"salto_detector/pkg/models"
)

// State é o estado do ciclo de salto. Nenhum outro estado ou transição é
// legal; a única exceção à ordem cíclica é o timeout de segurança, que
// força GROUNDED de qualquer estado
type State int

const (
	StateGrounded State = iota
	StateTakeoff
	StateAirborne
	StateLanding
)

func (s State) String() string {
	switch s {
	case StateGrounded:
		return "GROUNDED"
	case StateTakeoff:
		return "TAKEOFF"
	case StateAirborne:
		return "AIRBORNE"
	case StateLanding:
		return "LANDING"
	default:
		return "UNKNOWN"
	}
}

// JumpRecord é o estado de trabalho do salto corrente. Existe no máximo UM
// por vez; criado na decolagem, finalizado e descartado no retorno ao solo
type JumpRecord struct {
	TakeoffTime   int64
	TakeoffHeight float64 // y normalizado do quadril na decolagem
	LandingTime   int64
	PeakHeight    float64 // MENOR y observado (y menor = mais alto no espaço)
	PeakGRF       float64 // maior força total observada (N)
}

// Status é o snapshot do detector para exibição/telemetria
type Status struct {
	State      string               `json:"state"`
	JumpCount  int                  `json:"jumpCount"`
	Scale      models.ScaleEstimate `json:"scale"`
	LastForce  models.ForceSample   `json:"lastForce"`
	MassKG     float64              `json:"massKg"`
	BaselineOK bool                 `json:"baselineOk"`
}

// Detector é a máquina de estados de detecção de saltos. Consome PoseFrames
// (é um assinante do barramento) e emite eventos de decolagem, aterrissagem
// e força.
//
// Modelo de concorrência: escritor único. HandleFrame deve ser chamado de
// uma única goroutine lógica; um frame é processado por completo antes do
// próximo. O mutex interno protege apenas snapshots de status lidos por
// outras goroutines (exibição), nunca o fluxo de frames
type Detector struct {
	cfg  Config
	log  *logger.SystemLogger
	sc   *scale.Estimator
	pipe *kinematics.Pipeline

	// Estado do FSM (escritor único)
	state          State
	stateEnteredAt int64
	current        *JumpRecord
	lastJumpEndAt  int64 // -1 = nenhum salto ainda
	velPosSince    int64 // -1 = debounce de decolagem desarmado
	stableSince    int64 // -1 = debounce de aterrissagem desarmado

	// Baseline de solo dos tornozelos: média deslizante amostrada apenas
	// com velocidade quase nula, em solo
	baselineSamples []float64
	baselineSum     float64

	// Snapshot para leitores externos
	statusMu  sync.RWMutex
	jumpCount int
	lastForce models.ForceSample

	events *eventHub
}

// NewDetector cria o detector; configuração inválida falha na construção
func NewDetector(cfg Config, sc *scale.Estimator, pipe *kinematics.Pipeline, log *logger.SystemLogger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuração do detector inválida: %v", err)
	}
	return &Detector{
		cfg:           cfg,
		log:           log,
		sc:            sc,
		pipe:          pipe,
		lastJumpEndAt: -1,
		velPosSince:   -1,
		stableSince:   -1,
		events:        newEventHub(log),
	}, nil
}

// OnJumpDetected registra um observador de decolagens; retorna o cancelador
func (d *Detector) OnJumpDetected(fn func(models.JumpEvent)) func() {
	return d.events.subscribeJump(fn)
}

// OnLandingDetected registra um observador de aterrissagens (todo episódio,
// válido ou não); retorna o cancelador
func (d *Detector) OnLandingDetected(fn func(models.LandingEvent)) func() {
	return d.events.subscribeLanding(fn)
}

// OnForceCalculated registra um observador da telemetria de força emitida a
// cada frame; retorna o cancelador
func (d *Detector) OnForceCalculated(fn func(models.ForceSample)) func() {
	return d.events.subscribeForce(fn)
}

// SetMass define a massa corporal; valor fora de (0,500] é rejeitado com
// warning e o valor anterior mantido
func (d *Detector) SetMass(kg float64) error {
	if err := d.pipe.SetMass(kg); err != nil {
		d.log.LogMassRejected(kg)
		return err
	}
	d.log.LogConfigurationChange("jump_detector", fmt.Sprintf("massa=%.1fkg", kg))
	return nil
}

// HandleFrame processa um PoseFrame: pipeline de força, baseline dos
// tornozelos e avaliação de transição — exatamente uma por frame
func (d *Detector) HandleFrame(frame models.PoseFrame) {
	// Escala primeiro: o pipeline precisa do fator para unidades reais
	wasCommitted := d.sc.Committed()
	d.sc.Observe(frame.Joints)
	if !wasCommitted && d.sc.Committed() {
		if factor, ok := d.sc.Factor(); ok {
			if d.sc.Method() == scale.MethodFallback {
				d.log.LogScaleFallback(factor)
			} else {
				d.log.LogScaleCommitted(d.sc.Method(), factor)
			}
		}
	}

	// Pipeline roda incondicionalmente: telemetria de força fica viva
	// mesmo fora de episódios de salto
	sample := d.pipe.Process(frame)

	d.statusMu.Lock()
	d.lastForce = sample
	d.statusMu.Unlock()

	d.events.emitForce(sample)

	now := frame.Timestamp

	ankleL, ankleR, anklesOK := ankleHeights(frame.Joints, d.cfg.AnkleVisibilityMin)

	// Recalibração contínua do baseline de solo: somente parado e em solo
	// (nunca no meio de um episódio — a velocidade cruza zero no ápice)
	if anklesOK && d.state == StateGrounded && math.Abs(sample.VelocityMS) < d.cfg.StableVelocityThreshold {
		d.pushBaseline((ankleL + ankleR) / 2)
	}

	// Timeout de segurança: estado presa por dropout de sensor se resolve
	// sozinho, nunca vira erro fatal
	if d.state != StateGrounded && now-d.stateEnteredAt > d.cfg.MaxJumpDurationMS {
		d.log.LogStateTimeout(d.state.String(), now-d.stateEnteredAt)
		d.finalize(now, true)
		return
	}

	switch d.state {
	case StateGrounded:
		d.checkTakeoff(now, sample, ankleL, ankleR, anklesOK)
	case StateTakeoff:
		d.trackPeaks(sample)
		d.checkAirborne(now, sample, ankleL, ankleR, anklesOK)
	case StateAirborne:
		d.trackPeaks(sample)
		d.checkLanding(now, sample, ankleL, ankleR, anklesOK)
	case StateLanding:
		d.trackPeaks(sample)
		d.checkGrounded(now, sample)
	}
}

// checkTakeoff avalia GROUNDED -> TAKEOFF. Todas as condições precisam
// valer: cooldown vencido, velocidade de subida sustentada (debounce) e os
// DOIS tornozelos simultaneamente acima do baseline. O critério cinemático
// dos tornozelos elimina falsos positivos de agachamento e caminhada
func (d *Detector) checkTakeoff(now int64, sample models.ForceSample, ankleL, ankleR float64, anklesOK bool) {
	if d.lastJumpEndAt >= 0 && now-d.lastJumpEndAt < d.cfg.CooldownAfterJumpMS {
		d.velPosSince = -1
		return
	}

	if sample.VelocityMS > d.cfg.TakeoffVelocityThreshold {
		if d.velPosSince < 0 {
			d.velPosSince = now
		}
	} else {
		// Velocidade caiu abaixo do limiar: debounce reinicia do zero
		d.velPosSince = -1
		return
	}

	if now-d.velPosSince < d.cfg.VelocityPositiveDurationMS {
		return
	}

	baseline, baselineOK := d.ankleBaseline()
	if !baselineOK || !anklesOK {
		return
	}
	riseLimit := baseline - d.cfg.AnkleRiseThreshold
	if !(ankleL < riseLimit && ankleR < riseLimit) {
		return
	}

	if sample.HipY == nil {
		return
	}

	// Decolagem confirmada
	d.current = &JumpRecord{
		TakeoffTime:   now,
		TakeoffHeight: *sample.HipY,
		PeakHeight:    *sample.HipY,
		PeakGRF:       sample.TotalForceN,
	}
	d.transition(StateTakeoff, now)
	d.velPosSince = -1

	number := d.provisionalNumber()
	d.log.LogJumpDetected(number, now)
	d.events.emitJump(models.JumpEvent{
		Timestamp:   now,
		JumpNumber:  number,
		TakeoffTime: now,
	})
}

// checkAirborne avalia TAKEOFF -> AIRBORNE: pés ainda fora do solo e
// velocidade vertical decaída (pico da subida atingido)
func (d *Detector) checkAirborne(now int64, sample models.ForceSample, ankleL, ankleR float64, anklesOK bool) {
	baseline, baselineOK := d.ankleBaseline()
	if !baselineOK || !anklesOK {
		return
	}
	riseLimit := baseline - d.cfg.AnkleRiseThreshold
	if !(ankleL < riseLimit && ankleR < riseLimit) {
		return
	}

	if sample.VelocityMS <= d.cfg.SmallPositiveVelocityThreshold {
		d.transition(StateAirborne, now)
	}
}

// checkLanding avalia AIRBORNE -> LANDING: tempo mínimo no ar, velocidade
// de descida e pelo menos um tornozelo de volta à vizinhança do baseline
func (d *Detector) checkLanding(now int64, sample models.ForceSample, ankleL, ankleR float64, anklesOK bool) {
	if now-d.stateEnteredAt < d.cfg.MinAirborneTimeMS {
		return
	}
	if sample.VelocityMS >= -d.cfg.LandingVelocityThreshold {
		return
	}

	baseline, baselineOK := d.ankleBaseline()
	if !baselineOK || !anklesOK {
		return
	}
	riseLimit := baseline - d.cfg.AnkleRiseThreshold
	if ankleL >= riseLimit || ankleR >= riseLimit {
		if d.current != nil {
			d.current.LandingTime = now
		}
		d.stableSince = -1
		d.transition(StateLanding, now)
	}
}

// checkGrounded avalia LANDING -> GROUNDED: velocidade em repouso
// sustentada (debounce reinicia se a velocidade desestabiliza)
func (d *Detector) checkGrounded(now int64, sample models.ForceSample) {
	if math.Abs(sample.VelocityMS) < d.cfg.StableVelocityThreshold {
		if d.stableSince < 0 {
			d.stableSince = now
		}
		if now-d.stableSince >= d.cfg.HipVelocityStableDurationMS {
			d.finalize(now, false)
		}
		return
	}
	d.stableSince = -1
}

// trackPeaks aplica as catracas monotônicas do episódio corrente:
// PeakHeight só desce (y menor = mais alto), PeakGRF só sobe
func (d *Detector) trackPeaks(sample models.ForceSample) {
	if d.current == nil {
		return
	}
	if sample.HipY != nil && *sample.HipY < d.current.PeakHeight {
		d.current.PeakHeight = *sample.HipY
	}
	if sample.TotalForceN > d.current.PeakGRF {
		d.current.PeakGRF = sample.TotalForceN
	}
}

// finalize fecha o episódio corrente e retorna a GROUNDED. Chamado na
// transição normal LANDING->GROUNDED e no timeout de segurança de qualquer
// estado. O callback de aterrissagem dispara para TODO episódio; apenas os
// válidos incrementam o contador persistente (que nunca decrementa).
// Episódio fechado por timeout NUNCA é válido: o airtime é fabricado pelo
// dropout do sensor, e subcontar é preferível a supercontar
func (d *Detector) finalize(now int64, timedOut bool) {
	rec := d.current
	d.current = nil
	d.transition(StateGrounded, now)
	d.lastJumpEndAt = now
	d.velPosSince = -1
	d.stableSince = -1

	if rec == nil {
		return
	}

	if rec.LandingTime == 0 {
		// Saída por timeout antes de LANDING: fechar com o relógio atual
		rec.LandingTime = now
	}

	airtime := rec.LandingTime - rec.TakeoffTime

	heightNorm := rec.TakeoffHeight - rec.PeakHeight
	if heightNorm < 0 {
		// Pico "abaixo" da decolagem indica falha de medição
		d.log.LogMeasurementFault(fmt.Sprintf("altura de salto negativa (%.4f) - clampando a 0", heightNorm))
		heightNorm = 0
	}

	factor := d.cfg.FallbackScale
	if f, ok := d.sc.Factor(); ok {
		factor = f
	}
	height := heightNorm * factor

	// A cláusula de airtime longo compensa altura não confiável: duração
	// sozinha prova um salto real — exceto quando o episódio saiu por
	// timeout, caso em que a duração é artefato do dropout
	valid := !timedOut &&
		airtime >= d.cfg.MinAirborneTimeMS &&
		(height >= d.cfg.MinJumpHeightM || airtime >= d.cfg.LongAirtimeMS)

	number := d.provisionalNumber()
	if valid {
		d.statusMu.Lock()
		d.jumpCount = number
		d.statusMu.Unlock()
	}

	d.log.LogLandingDetected(number, height, airtime, rec.PeakGRF, valid)
	d.events.emitLanding(models.LandingEvent{
		Timestamp:           now,
		JumpNumber:          number,
		JumpHeight:          height,
		AirTimeMS:           airtime,
		TakeoffTime:         rec.TakeoffTime,
		LandingTime:         rec.LandingTime,
		GroundReactionForce: rec.PeakGRF,
		IsValid:             valid,
	})
}

func (d *Detector) transition(to State, now int64) {
	d.statusMu.Lock()
	d.state = to
	d.statusMu.Unlock()
	d.stateEnteredAt = now
}

// provisionalNumber é o número do episódio corrente: contador + 1.
// Só vira contagem oficial se o episódio for válido
func (d *Detector) provisionalNumber() int {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	return d.jumpCount + 1
}

// pushBaseline alimenta a média deslizante do baseline dos tornozelos
func (d *Detector) pushBaseline(ankleMidY float64) {
	if len(d.baselineSamples) == d.cfg.BaselineWindow {
		d.baselineSum -= d.baselineSamples[0]
		copy(d.baselineSamples, d.baselineSamples[1:])
		d.baselineSamples[len(d.baselineSamples)-1] = ankleMidY
	} else {
		d.baselineSamples = append(d.baselineSamples, ankleMidY)
	}
	d.baselineSum += ankleMidY
}

// ankleBaseline retorna a referência de solo, se já calibrada
func (d *Detector) ankleBaseline() (float64, bool) {
	if len(d.baselineSamples) < d.cfg.BaselineMinSamples {
		return 0, false
	}
	return d.baselineSum / float64(len(d.baselineSamples)), true
}

// State retorna o estado atual do FSM
func (d *Detector) State() State {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	return d.state
}

// JumpCount retorna o contador persistente de saltos válidos
func (d *Detector) JumpCount() int {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	return d.jumpCount
}

// Snapshot retorna o status consolidado para exibição/telemetria
func (d *Detector) Snapshot() Status {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	_, baselineOK := d.ankleBaseline()
	return Status{
		State:      d.state.String(),
		JumpCount:  d.jumpCount,
		Scale:      d.sc.Estimate(),
		LastForce:  d.lastForce,
		MassKG:     d.pipe.Mass(),
		BaselineOK: baselineOK,
	}
}

// Reset limpa atomicamente FSM, históricos, baselines e calibração de
// escala, retornando a GROUNDED. Seguro de chamar a qualquer momento do
// fluxo de frames
func (d *Detector) Reset() {
	d.statusMu.Lock()
	d.state = StateGrounded
	d.jumpCount = 0
	d.lastForce = models.ForceSample{}
	d.statusMu.Unlock()

	d.stateEnteredAt = 0
	d.current = nil
	d.lastJumpEndAt = -1
	d.velPosSince = -1
	d.stableSince = -1
	d.baselineSamples = d.baselineSamples[:0]
	d.baselineSum = 0

	d.pipe.Reset()
	d.sc.Reset()

	d.log.LogConfigurationChange("jump_detector", "reset de sessão")
}

// ankleHeights extrai os y dos dois tornozelos; válido apenas se ambos
// passam o limiar de visibilidade
func ankleHeights(joints map[string]models.Joint, minVisibility float64) (float64, float64, bool) {
	l, lok := joints[models.JointLeftAnkle]
	r, rok := joints[models.JointRightAnkle]
	if !lok || !rok || l.Visibility < minVisibility || r.Visibility < minVisibility {
		return 0, 0, false
	}
	return l.Y, r.Y, true
}
