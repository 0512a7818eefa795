package kinematics

import (
	"math"
	"testing"

	"salto_detector/internal/scale"
	"salto_detector/pkg/models"
)

func joint(y float64) models.Joint {
	return models.Joint{X: 0.5, Y: y, Visibility: 0.9, Visible: true}
}

// frameWith monta um frame com quadris no y informado e as articulações que
// o estimador de escala precisa (altura normalizada 0.70 -> fator 1.70/0.70)
func frameWith(ts int64, hipY float64) models.PoseFrame {
	return models.PoseFrame{
		Timestamp: ts,
		Joints: map[string]models.Joint{
			models.JointNose:       joint(0.10),
			models.JointLeftAnkle:  joint(0.80),
			models.JointRightAnkle: joint(0.80),
			models.JointLeftHip:    joint(hipY),
			models.JointRightHip:   joint(hipY),
		},
	}
}

func newPipeline(t *testing.T) (*Pipeline, *scale.Estimator) {
	t.Helper()
	est, err := scale.NewEstimator(scale.DefaultConfig())
	if err != nil {
		t.Fatalf("estimador: %v", err)
	}
	p, err := NewPipeline(DefaultConfig(), est)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	return p, est
}

func commitScale(est *scale.Estimator) {
	joints := frameWith(0, 0.50).Joints
	for i := 0; i < scale.DefaultConfig().MinCalculationFrames; i++ {
		est.Observe(joints)
	}
}

func TestVerticalDisplacementSignConvention(t *testing.T) {
	// y cresce para baixo: y diminuindo = subida = deslocamento positivo
	if d := VerticalDisplacement(0.6, 0.5); d != 0.1 {
		t.Errorf("subida deveria ser positiva: got %v", d)
	}
	if d := VerticalDisplacement(0.5, 0.6); d != -0.1 {
		t.Errorf("descida deveria ser negativa: got %v", d)
	}
}

func TestHipCenterRequiresBothHipsVisible(t *testing.T) {
	joints := map[string]models.Joint{
		models.JointLeftHip:  joint(0.5),
		models.JointRightHip: {X: 0.6, Y: 0.5, Visibility: 0.3},
	}
	if _, _, ok := HipCenter(joints, 0.6); ok {
		t.Errorf("quadril pouco visível deveria invalidar o centro")
	}

	joints[models.JointRightHip] = joint(0.52)
	_, y, ok := HipCenter(joints, 0.6)
	if !ok {
		t.Fatalf("dois quadris visíveis deveriam validar o centro")
	}
	if math.Abs(y-0.51) > 1e-9 {
		t.Errorf("centro esperado 0.51: got %v", y)
	}
}

func TestNoRealUnitsBeforeScaleCommit(t *testing.T) {
	p, _ := newPipeline(t)

	// Movimento rápido de subida sem escala comprometida
	p.Process(frameWith(0, 0.50))
	s := p.Process(frameWith(33, 0.45))

	if s.VelocityNorm == 0 {
		t.Errorf("velocidade normalizada bruta deveria ser reportada")
	}
	if s.VelocityMS != 0 {
		t.Errorf("sem escala não há velocidade em m/s: got %v", s.VelocityMS)
	}
}

func TestUpwardMotionYieldsPositiveVelocity(t *testing.T) {
	p, est := newPipeline(t)
	commitScale(est)

	p.Process(frameWith(0, 0.50))
	s := p.Process(frameWith(33, 0.48))

	if s.VelocityMS <= 0 {
		t.Errorf("quadril subindo deveria dar velocidade positiva: got %v", s.VelocityMS)
	}

	// Velocidade crua: 0.02/0.033s * fator, suavizada por EMA no 1º passo
	cfg := DefaultConfig()
	factor := 1.70 / 0.70
	rawMS := (0.02 / 0.033) * factor
	want := cfg.VelocityAlpha * rawMS
	if math.Abs(s.VelocityMS-want) > 0.01 {
		t.Errorf("velocidade esperada %.3f: got %.3f", want, s.VelocityMS)
	}
}

func TestStationaryClampForcesWeightExactly(t *testing.T) {
	p, est := newPipeline(t)
	commitScale(est)

	weight := DefaultConfig().DefaultMassKG * DefaultConfig().Gravity

	var s models.ForceSample
	for i := 0; i < 10; i++ {
		s = p.Process(frameWith(int64(i*33), 0.50))
	}

	if !s.Stationary {
		t.Fatalf("quadril imóvel deveria ser estacionário")
	}
	if s.TotalForceN != weight {
		t.Errorf("parado, a força É exatamente o peso: got %v, want %v", s.TotalForceN, weight)
	}
	if s.NetForceN != 0 || s.AccelerationMS2 != 0 {
		t.Errorf("parado, força líquida e aceleração são zero: %+v", s)
	}
}

func TestStaleTimestampKeepsLastVelocity(t *testing.T) {
	p, est := newPipeline(t)
	commitScale(est)

	p.Process(frameWith(0, 0.50))
	before := p.Process(frameWith(33, 0.48))

	// Δt acima do limite: frame descartado, velocidade mantida
	after := p.Process(frameWith(533, 0.30))
	if after.VelocityMS != before.VelocityMS {
		t.Errorf("Δt podre deveria manter a velocidade: %v -> %v",
			before.VelocityMS, after.VelocityMS)
	}

	// Timestamp estagnado (Δt = 0) idem
	same := p.Process(frameWith(533, 0.28))
	if same.VelocityMS != before.VelocityMS {
		t.Errorf("Δt zero deveria manter a velocidade")
	}
}

func TestInvisibleHipDecaysVelocity(t *testing.T) {
	p, est := newPipeline(t)
	commitScale(est)

	p.Process(frameWith(0, 0.50))
	moving := p.Process(frameWith(33, 0.46))
	if moving.VelocityMS <= 0 {
		t.Fatalf("setup falhou: velocidade deveria ser positiva")
	}

	blind := models.PoseFrame{Timestamp: 66, Joints: map[string]models.Joint{}}
	s := p.Process(blind)

	if s.HipY != nil {
		t.Errorf("sem quadril visível, HipY deveria ser nil")
	}
	if s.VelocityMS >= moving.VelocityMS {
		t.Errorf("quadril invisível deveria decair a velocidade: %v -> %v",
			moving.VelocityMS, s.VelocityMS)
	}
	want := moving.VelocityMS * DefaultConfig().InvisibleDecay
	if math.Abs(s.VelocityMS-want) > 1e-9 && s.VelocityMS != 0 {
		t.Errorf("decaimento esperado %v: got %v", want, s.VelocityMS)
	}
}

// frameOccluded monta um frame cujos quadris existem mas estão abaixo do
// limiar de visibilidade (oclusão parcial, comum em saltos perto da borda)
func frameOccluded(ts int64) models.PoseFrame {
	dim := models.Joint{X: 0.5, Y: 0.50, Visibility: 0.1}
	return models.PoseFrame{
		Timestamp: ts,
		Joints: map[string]models.Joint{
			models.JointLeftHip:  dim,
			models.JointRightHip: dim,
		},
	}
}

func TestOcclusionGapDoesNotSpikeVelocity(t *testing.T) {
	p, est := newPipeline(t)
	commitScale(est)

	// Parado, depois uma oclusão longa durante a qual o quadril se move
	ts := int64(0)
	for i := 0; i < 10; i++ {
		p.Process(frameWith(ts, 0.50))
		ts += 33
	}
	for i := 0; i < 30; i++ {
		p.Process(frameOccluded(ts))
		ts += 33
	}

	// Quadril reaparece 0.20 acima: o deslocamento da lacuna inteira NÃO
	// pode ser dividido pelo Δt de um único frame
	s := p.Process(frameWith(ts, 0.30))
	if s.VelocityNorm != 0 {
		t.Errorf("frame de reaparição apenas rearma a posição: norm=%v", s.VelocityNorm)
	}
	if s.VelocityMS != 0 {
		t.Errorf("reaparição após oclusão não pode gerar pico de velocidade: %v m/s", s.VelocityMS)
	}

	// O frame seguinte volta a medir normalmente, só com o passo local
	ts += 33
	next := p.Process(frameWith(ts, 0.29))
	factor := 1.70 / 0.70
	rawMS := (0.01 / 0.033) * factor
	want := DefaultConfig().VelocityAlpha * rawMS
	if math.Abs(next.VelocityMS-want) > 0.01 {
		t.Errorf("retomada esperada %.3f m/s: got %.3f", want, next.VelocityMS)
	}
}

func TestAccelerationClamp(t *testing.T) {
	p, est := newPipeline(t)
	commitScale(est)

	cfg := DefaultConfig()

	// Salto absurdo de posição em um frame: aceleração bruta explode, o
	// clamp limita antes do EMA
	p.Process(frameWith(0, 0.90))
	p.Process(frameWith(33, 0.88))
	s := p.Process(frameWith(66, 0.10))

	if math.Abs(s.AccelerationMS2) > cfg.AccelClampMS2 {
		t.Errorf("aceleração deveria estar clampada a ±%v: got %v",
			cfg.AccelClampMS2, s.AccelerationMS2)
	}
}

func TestTotalForceNeverBelowWeight(t *testing.T) {
	p, est := newPipeline(t)
	commitScale(est)

	weight := DefaultConfig().DefaultMassKG * DefaultConfig().Gravity

	// Queda: aceleração negativa derrubaria a força total abaixo do peso
	hip := 0.30
	var s models.ForceSample
	for i := 0; i < 8; i++ {
		s = p.Process(frameWith(int64(i*33), hip))
		hip += 0.02
	}

	if s.TotalForceN < weight {
		t.Errorf("força total nunca abaixo do peso: got %v, want >= %v",
			s.TotalForceN, weight)
	}
}

func TestSetMassValidation(t *testing.T) {
	p, _ := newPipeline(t)

	if err := p.SetMass(80); err != nil {
		t.Errorf("massa válida rejeitada: %v", err)
	}
	if p.Mass() != 80 {
		t.Errorf("massa esperada 80: got %v", p.Mass())
	}

	for _, bad := range []float64{0, -10, 501, math.NaN()} {
		if err := p.SetMass(bad); err == nil {
			t.Errorf("massa %v deveria ser rejeitada", bad)
		}
	}
	if p.Mass() != 80 {
		t.Errorf("massa rejeitada não pode alterar o valor vigente: got %v", p.Mass())
	}
}

func TestResetClearsState(t *testing.T) {
	p, est := newPipeline(t)
	commitScale(est)

	p.Process(frameWith(0, 0.50))
	p.Process(frameWith(33, 0.45))
	p.Reset()

	s := p.Process(frameWith(1000, 0.40))
	if s.VelocityMS != 0 {
		t.Errorf("após Reset o primeiro frame apenas arma o estado: got %v", s.VelocityMS)
	}
	if _, ok := p.HipBaseline(); ok {
		t.Errorf("Reset deveria limpar o baseline do quadril")
	}
}
