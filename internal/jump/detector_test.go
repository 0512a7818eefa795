package jump

import (
	"testing"

	"salto_detector/internal/kinematics"
	"salto_detector/internal/scale"
	"salto_detector/pkg/models"
)

const frameMS = 33 // ~30fps

type harness struct {
	t        *testing.T
	det      *Detector
	ts       int64
	takeoffs []models.JumpEvent
	landings []models.LandingEvent
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	est, err := scale.NewEstimator(scale.DefaultConfig())
	if err != nil {
		t.Fatalf("estimador: %v", err)
	}
	pipe, err := kinematics.NewPipeline(kinematics.DefaultConfig(), est)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	det, err := NewDetector(DefaultConfig(), est, pipe, nil)
	if err != nil {
		t.Fatalf("detector: %v", err)
	}

	h := &harness{t: t, det: det}
	det.OnJumpDetected(func(ev models.JumpEvent) { h.takeoffs = append(h.takeoffs, ev) })
	det.OnLandingDetected(func(ev models.LandingEvent) { h.landings = append(h.landings, ev) })
	return h
}

func joint(y float64) models.Joint {
	return models.Joint{X: 0.5, Y: y, Visibility: 0.9, Visible: true}
}

// feed envia um frame com a geometria do corpo inteiro: nariz acompanha o
// quadril (altura normalizada estável para a escala), tornozelos scriptados
func (h *harness) feed(hipY, ankleY float64) {
	h.ts += frameMS
	frame := models.PoseFrame{
		Timestamp: h.ts,
		Joints: map[string]models.Joint{
			models.JointNose:       joint(hipY - 0.40),
			models.JointLeftAnkle:  joint(ankleY),
			models.JointRightAnkle: joint(ankleY),
			models.JointLeftHip:    joint(hipY),
			models.JointRightHip:   joint(hipY),
		},
	}
	h.det.HandleFrame(frame)
}

// standStill alimenta frames parados: calibra escala, baseline e zera a
// velocidade
func (h *harness) standStill(n int) {
	for i := 0; i < n; i++ {
		h.feed(0.50, 0.80)
	}
}

// settleUntilGrounded alimenta frames parados até o FSM voltar a GROUNDED
func (h *harness) settleUntilGrounded(maxFrames int) {
	for i := 0; i < maxFrames; i++ {
		if h.det.State() == StateGrounded {
			return
		}
		h.feed(0.50, 0.80)
	}
}

// performJump executa um salto completo e realista: subida rápida, ápice,
// queda e estabilização. Retorna com o detector de volta a GROUNDED
func (h *harness) performJump() {
	// Impulso: quadril e tornozelos sobem juntos
	hip, ankle := 0.50, 0.80
	for i := 0; i < 5; i++ {
		hip -= 0.02
		ankle -= 0.02
		h.feed(hip, ankle)
	}
	if h.det.State() != StateTakeoff {
		h.t.Fatalf("decolagem não detectada durante o impulso: %v", h.det.State())
	}

	// Ápice: subida desacelera até a velocidade decair
	for i := 0; i < 6; i++ {
		hip -= 0.005
		h.feed(hip, ankle)
		if h.det.State() == StateAirborne {
			break
		}
	}
	for i := 0; h.det.State() == StateTakeoff && i < 10; i++ {
		hip += 0.005
		h.feed(hip, ankle)
	}
	if h.det.State() != StateAirborne {
		h.t.Fatalf("fase aérea não detectada: %v", h.det.State())
	}

	// Queda: tornozelos voltam ao solo no fim
	for i := 0; i < 4; i++ {
		hip += 0.02
		h.feed(hip, ankle)
	}
	for i := 0; h.det.State() == StateAirborne && i < 10; i++ {
		hip += 0.02
		if hip > 0.50 {
			hip = 0.50
		}
		h.feed(hip, 0.80)
	}
	if h.det.State() != StateLanding {
		h.t.Fatalf("aterrissagem não detectada: %v", h.det.State())
	}

	// Estabilização
	h.settleUntilGrounded(60)
	if h.det.State() != StateGrounded {
		h.t.Fatalf("FSM não voltou a GROUNDED após o salto: %v", h.det.State())
	}
}

func TestFullJumpCycle(t *testing.T) {
	h := newHarness(t)

	h.standStill(15)
	if h.det.State() != StateGrounded {
		t.Fatalf("estado inicial deveria ser GROUNDED")
	}

	h.performJump()

	if len(h.takeoffs) != 1 {
		t.Fatalf("esperado 1 evento de decolagem: %d", len(h.takeoffs))
	}
	if len(h.landings) != 1 {
		t.Fatalf("esperado 1 evento de aterrissagem: %d", len(h.landings))
	}

	ev := h.landings[0]
	if !ev.IsValid {
		t.Errorf("salto completo deveria ser válido: %+v", ev)
	}
	if ev.JumpNumber != 1 {
		t.Errorf("primeiro salto deveria ser #1: %d", ev.JumpNumber)
	}
	if ev.AirTimeMS < DefaultConfig().MinAirborneTimeMS {
		t.Errorf("airtime abaixo do mínimo: %d", ev.AirTimeMS)
	}
	if ev.AirTimeMS != ev.LandingTime-ev.TakeoffTime {
		t.Errorf("airtime inconsistente: %+v", ev)
	}
	if ev.JumpHeight <= 0.05 || ev.JumpHeight > 0.5 {
		t.Errorf("altura fora da faixa plausível: %.3f", ev.JumpHeight)
	}
	weight := 70 * 9.81
	if ev.GroundReactionForce < weight {
		t.Errorf("GRF de pico nunca abaixo do peso: %.1f", ev.GroundReactionForce)
	}

	if h.det.JumpCount() != 1 {
		t.Errorf("contador esperado 1: %d", h.det.JumpCount())
	}
}

func TestSquatDoesNotTriggerTakeoff(t *testing.T) {
	h := newHarness(t)
	h.standStill(15)

	// Agachamento: quadril desce e sobe rápido, tornozelos NUNCA saem do chão
	hip := 0.50
	for i := 0; i < 6; i++ {
		hip += 0.02
		h.feed(hip, 0.80)
	}
	for i := 0; i < 6; i++ {
		hip -= 0.02
		h.feed(hip, 0.80)
	}
	h.standStill(10)

	if h.det.State() != StateGrounded {
		t.Errorf("agachamento não pode sair de GROUNDED: %v", h.det.State())
	}
	if len(h.takeoffs) != 0 {
		t.Errorf("agachamento disparou decolagem falsa")
	}
	if h.det.JumpCount() != 0 {
		t.Errorf("contador deveria permanecer 0: %d", h.det.JumpCount())
	}
}

func TestSafetyTimeoutForcesGrounded(t *testing.T) {
	h := newHarness(t)
	h.standStill(15)

	// Impulso real, depois o sensor "congela": tornozelos nunca voltam e a
	// velocidade nunca fica negativa
	hip, ankle := 0.50, 0.80
	for i := 0; i < 5; i++ {
		hip -= 0.02
		ankle -= 0.02
		h.feed(hip, ankle)
	}
	if h.det.State() != StateTakeoff {
		t.Fatalf("setup falhou: decolagem não detectada")
	}

	// Quadril congelado no ar por mais que o timeout. A folga cobre a
	// eventual passagem TAKEOFF->AIRBORNE no meio (que rearma o relógio)
	frames := int(2*DefaultConfig().MaxJumpDurationMS/frameMS) + 20
	for i := 0; i < frames; i++ {
		h.feed(hip, ankle)
	}

	if h.det.State() != StateGrounded {
		t.Errorf("timeout de segurança deveria forçar GROUNDED: %v", h.det.State())
	}
	if len(h.landings) != 1 {
		t.Fatalf("timeout deveria finalizar o episódio com evento: %d", len(h.landings))
	}

	// A duração >2s satisfaria a cláusula de airtime longo, mas ela foi
	// fabricada pelo dropout: o episódio nunca conta como salto
	if h.landings[0].IsValid {
		t.Errorf("episódio fechado por timeout não pode ser válido: %+v", h.landings[0])
	}
	if h.det.JumpCount() != 0 {
		t.Errorf("timeout não pode incrementar o contador: %d", h.det.JumpCount())
	}
}

func TestCooldownSuppressesImmediateRetakeoff(t *testing.T) {
	h := newHarness(t)
	h.standStill(15)
	h.performJump()

	// Novo impulso imediatamente após o fim do salto, dentro do cooldown
	hip, ankle := 0.50, 0.80
	for i := 0; i < 5; i++ {
		hip -= 0.02
		ankle -= 0.02
		h.feed(hip, ankle)
		if h.ts-h.landings[0].Timestamp >= DefaultConfig().CooldownAfterJumpMS {
			break
		}
	}

	if len(h.takeoffs) != 1 {
		t.Errorf("decolagem dentro do cooldown deveria ser suprimida: %d", len(h.takeoffs))
	}
	if h.det.JumpCount() != 1 {
		t.Errorf("contador não pode avançar no cooldown: %d", h.det.JumpCount())
	}
}

func TestTwoJumpsIncrementMonotonically(t *testing.T) {
	h := newHarness(t)
	h.standStill(15)

	h.performJump()
	h.standStill(30) // bem além do cooldown
	h.performJump()

	if h.det.JumpCount() != 2 {
		t.Fatalf("dois saltos válidos deveriam contar 2: %d", h.det.JumpCount())
	}
	if len(h.landings) != 2 {
		t.Fatalf("esperados 2 eventos de aterrissagem: %d", len(h.landings))
	}
	if h.landings[0].JumpNumber != 1 || h.landings[1].JumpNumber != 2 {
		t.Errorf("numeração esperada 1,2: %d,%d",
			h.landings[0].JumpNumber, h.landings[1].JumpNumber)
	}
	if h.landings[1].TakeoffTime <= h.landings[0].LandingTime {
		t.Errorf("episódios não podem se sobrepor")
	}
}

func TestShallowHopIsInvalidButEmitsEvent(t *testing.T) {
	h := newHarness(t)
	h.standStill(15)

	// Impulso suficiente para decolar, mas o quadril desce imediatamente:
	// altura ~0 e airtime curto
	hip, ankle := 0.50, 0.80
	for i := 0; i < 8 && h.det.State() == StateGrounded; i++ {
		hip -= 0.006
		ankle -= 0.02
		if ankle < 0.72 {
			ankle = 0.72
		}
		h.feed(hip, ankle)
	}
	if h.det.State() != StateTakeoff {
		t.Fatalf("setup falhou: decolagem não detectada")
	}

	// Descida imediata: o pico fica no y da decolagem
	for i := 0; h.det.State() == StateTakeoff && i < 10; i++ {
		hip += 0.003
		h.feed(hip, ankle)
	}
	if h.det.State() != StateAirborne {
		t.Fatalf("fase aérea não detectada: %v", h.det.State())
	}

	for i := 0; h.det.State() == StateAirborne && i < 10; i++ {
		hip += 0.003
		h.feed(hip, 0.80)
	}
	if h.det.State() != StateLanding {
		t.Fatalf("aterrissagem não detectada: %v", h.det.State())
	}

	h.settleUntilGrounded(60)

	if len(h.landings) != 1 {
		t.Fatalf("todo episódio emite evento de aterrissagem: %d", len(h.landings))
	}
	ev := h.landings[0]
	if ev.IsValid {
		t.Errorf("pulinho raso deveria ser inválido: %+v", ev)
	}
	if ev.JumpNumber != 1 {
		t.Errorf("episódio inválido carrega o número provisório 1: %d", ev.JumpNumber)
	}
	if h.det.JumpCount() != 0 {
		t.Errorf("episódio inválido não incrementa o contador: %d", h.det.JumpCount())
	}
}

func TestResetClearsEverything(t *testing.T) {
	h := newHarness(t)
	h.standStill(15)
	h.performJump()

	if h.det.JumpCount() != 1 {
		t.Fatalf("setup falhou")
	}

	h.det.Reset()

	if h.det.State() != StateGrounded {
		t.Errorf("Reset deveria voltar a GROUNDED")
	}
	if h.det.JumpCount() != 0 {
		t.Errorf("Reset deveria zerar o contador: %d", h.det.JumpCount())
	}

	snap := h.det.Snapshot()
	if snap.Scale.NormalizedToMeters != nil {
		t.Errorf("Reset deveria limpar a calibração de escala")
	}
	if snap.BaselineOK {
		t.Errorf("Reset deveria limpar o baseline dos tornozelos")
	}
}

func TestSetMassRejectsOutOfRange(t *testing.T) {
	h := newHarness(t)

	if err := h.det.SetMass(82.5); err != nil {
		t.Errorf("massa válida rejeitada: %v", err)
	}
	if err := h.det.SetMass(0); err == nil {
		t.Errorf("massa 0 deveria ser rejeitada")
	}
	if err := h.det.SetMass(600); err == nil {
		t.Errorf("massa acima do limite deveria ser rejeitada")
	}

	if h.det.Snapshot().MassKG != 82.5 {
		t.Errorf("massa vigente deveria permanecer 82.5: %v", h.det.Snapshot().MassKG)
	}
}

func TestConfigValidateCrossFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxJumpDurationMS = cfg.MinAirborneTimeMS
	if err := cfg.Validate(); err == nil {
		t.Errorf("timeout menor/igual ao tempo mínimo no ar deveria falhar")
	}

	cfg = DefaultConfig()
	cfg.BaselineMinSamples = cfg.BaselineWindow + 1
	if err := cfg.Validate(); err == nil {
		t.Errorf("mínimo de amostras acima da janela deveria falhar")
	}
}
