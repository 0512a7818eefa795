package scale

import (
	"math"
	"testing"

	"salto_detector/pkg/models"
)

func joint(y float64) models.Joint {
	return models.Joint{X: 0.5, Y: y, Visibility: 0.9, Visible: true}
}

func fullBodyJoints(noseY, ankleY float64) map[string]models.Joint {
	return map[string]models.Joint{
		models.JointNose:       joint(noseY),
		models.JointLeftAnkle:  joint(ankleY),
		models.JointRightAnkle: joint(ankleY),
	}
}

func torsoJoints(shoulderY, hipY float64) map[string]models.Joint {
	return map[string]models.Joint{
		models.JointLeftShoulder:  joint(shoulderY),
		models.JointRightShoulder: joint(shoulderY),
		models.JointLeftHip:       joint(hipY),
		models.JointRightHip:      joint(hipY),
	}
}

func newEstimator(t *testing.T) *Estimator {
	t.Helper()
	e, err := NewEstimator(DefaultConfig())
	if err != nil {
		t.Fatalf("configuração padrão deveria ser válida: %v", err)
	}
	return e
}

func TestCommitAfterMinFramesNoseAnkle(t *testing.T) {
	e := newEstimator(t)
	cfg := DefaultConfig()

	joints := fullBodyJoints(0.10, 0.80) // altura normalizada 0.70

	for i := 0; i < cfg.MinCalculationFrames-1; i++ {
		e.Observe(joints)
		if e.Committed() {
			t.Fatalf("escala comprometida cedo demais, no frame %d", i)
		}
	}

	e.Observe(joints)
	if !e.Committed() {
		t.Fatalf("escala deveria comprometer após %d frames aceitos", cfg.MinCalculationFrames)
	}

	factor, ok := e.Factor()
	if !ok {
		t.Fatalf("Factor deveria estar disponível")
	}
	want := cfg.AssumedHeightM / 0.70
	if math.Abs(factor-want) > 1e-9 {
		t.Errorf("fator esperado %.4f: got %.4f", want, factor)
	}
	if e.Method() != MethodNoseAnkle {
		t.Errorf("método esperado %q: got %q", MethodNoseAnkle, e.Method())
	}
}

func TestShoulderHipUsedWhenFullBodyUnavailable(t *testing.T) {
	e := newEstimator(t)
	cfg := DefaultConfig()

	joints := torsoJoints(0.30, 0.50) // torso normalizado 0.20

	for i := 0; i < cfg.MinCalculationFrames; i++ {
		e.Observe(joints)
	}

	factor, ok := e.Factor()
	if !ok {
		t.Fatalf("escala deveria ter comprometido pelo torso")
	}
	want := cfg.AssumedTorsoM / 0.20
	if math.Abs(factor-want) > 1e-9 {
		t.Errorf("fator esperado %.4f: got %.4f", want, factor)
	}
	if e.Method() != MethodShoulderHip {
		t.Errorf("método esperado %q: got %q", MethodShoulderHip, e.Method())
	}
}

func TestNoseAnkleOutsideWindowFallsThroughToTorso(t *testing.T) {
	e := newEstimator(t)
	cfg := DefaultConfig()

	// Corpo inteiro fora da janela (0.95 > FullBodyMax), torso dentro
	joints := fullBodyJoints(0.0, 0.95)
	for name, j := range torsoJoints(0.30, 0.50) {
		joints[name] = j
	}

	for i := 0; i < cfg.MinCalculationFrames; i++ {
		e.Observe(joints)
	}

	if e.Method() != MethodShoulderHip {
		t.Errorf("fora da janela nariz-tornozelo deveria cair para o torso: %q", e.Method())
	}
}

func TestFallbackAfterMaxSearchFrames(t *testing.T) {
	e := newEstimator(t)
	cfg := DefaultConfig()

	// Nenhuma articulação visível em nenhum frame
	empty := map[string]models.Joint{}

	for i := 0; i < cfg.MaxSearchFrames-1; i++ {
		e.Observe(empty)
		if e.Committed() {
			t.Fatalf("fallback adotado cedo demais, no frame %d", i)
		}
	}

	e.Observe(empty)
	if !e.Committed() {
		t.Fatalf("fallback deveria ser adotado após %d frames", cfg.MaxSearchFrames)
	}

	factor, _ := e.Factor()
	want := cfg.AssumedHeightM / 0.4
	if math.Abs(factor-want) > 1e-9 {
		t.Errorf("fator de fallback esperado %.4f: got %.4f", want, factor)
	}
	if e.Method() != MethodFallback {
		t.Errorf("método esperado %q: got %q", MethodFallback, e.Method())
	}
}

func TestLowVisibilityJointsAreIgnored(t *testing.T) {
	e := newEstimator(t)

	joints := fullBodyJoints(0.10, 0.80)
	nose := joints[models.JointNose]
	nose.Visibility = 0.2
	joints[models.JointNose] = nose

	e.Observe(joints)
	if e.Committed() {
		t.Errorf("articulação pouco visível não deveria produzir estimativa")
	}
}

func TestSlowAdaptationAfterCommit(t *testing.T) {
	e := newEstimator(t)
	cfg := DefaultConfig()

	joints := fullBodyJoints(0.10, 0.80)
	for i := 0; i < cfg.MinCalculationFrames; i++ {
		e.Observe(joints)
	}
	before, _ := e.Factor()

	// Nova geometria: adaptação deve mover o fator devagar, sem saltos
	e.Observe(fullBodyJoints(0.10, 0.60))
	after, _ := e.Factor()

	newEst := cfg.AssumedHeightM / 0.50
	want := cfg.AdaptAlpha*newEst + (1-cfg.AdaptAlpha)*before
	if math.Abs(after-want) > 1e-9 {
		t.Errorf("adaptação esperada %.4f: got %.4f", want, after)
	}
	if math.Abs(after-before) > math.Abs(newEst-before) {
		t.Errorf("adaptação não pode ultrapassar a nova estimativa")
	}
}

func TestEstimateSnapshot(t *testing.T) {
	e := newEstimator(t)
	cfg := DefaultConfig()

	est := e.Estimate()
	if est.NormalizedToMeters != nil {
		t.Errorf("snapshot antes do compromisso deveria ter fator nil")
	}

	joints := fullBodyJoints(0.10, 0.80)
	for i := 0; i < cfg.MinCalculationFrames; i++ {
		e.Observe(joints)
	}

	est = e.Estimate()
	if est.NormalizedToMeters == nil {
		t.Fatalf("snapshot após compromisso deveria ter fator")
	}
	if est.Method != MethodNoseAnkle {
		t.Errorf("método do snapshot errado: %q", est.Method)
	}
}

func TestResetClearsCalibration(t *testing.T) {
	e := newEstimator(t)
	cfg := DefaultConfig()

	joints := fullBodyJoints(0.10, 0.80)
	for i := 0; i < cfg.MinCalculationFrames; i++ {
		e.Observe(joints)
	}
	if !e.Committed() {
		t.Fatalf("setup falhou")
	}

	e.Reset()
	if e.Committed() {
		t.Errorf("Reset deveria limpar o compromisso")
	}
	if _, ok := e.Factor(); ok {
		t.Errorf("Factor não deveria estar disponível após Reset")
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdaptAlpha = 1.5
	if err := cfg.Validate(); err == nil {
		t.Errorf("alpha fora de (0,1] deveria falhar")
	}

	cfg = DefaultConfig()
	cfg.FullBodyMin = 0.9
	cfg.FullBodyMax = 0.1
	if err := cfg.Validate(); err == nil {
		t.Errorf("janela invertida deveria falhar")
	}

	cfg = DefaultConfig()
	cfg.MaxSearchFrames = cfg.MinCalculationFrames - 1
	if err := cfg.Validate(); err == nil {
		t.Errorf("MaxSearchFrames menor que MinCalculationFrames deveria falhar")
	}
}
