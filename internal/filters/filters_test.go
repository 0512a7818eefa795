package filters

import (
	"math"
	"testing"
)

func TestEMAFirstSamplePassesThrough(t *testing.T) {
	f := NewEMAFilter(0.3)

	got, ok := f.Update(10)
	if !ok {
		t.Fatalf("primeira amostra deveria ser aceita")
	}
	if got != 10 {
		t.Errorf("primeira amostra deveria passar sem suavização: got %v", got)
	}
}

func TestEMASmoothing(t *testing.T) {
	f := NewEMAFilter(0.5)

	f.Update(0)
	got, _ := f.Update(10)
	if got != 5 {
		t.Errorf("esperado 5 com alpha 0.5: got %v", got)
	}
	got, _ = f.Update(10)
	if got != 7.5 {
		t.Errorf("esperado 7.5: got %v", got)
	}
}

func TestEMARejectsNaNAndInfWithoutStateChange(t *testing.T) {
	f := NewEMAFilter(0.5)
	f.Update(4)

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, ok := f.Update(bad); ok {
			t.Errorf("amostra inválida %v deveria ser rejeitada", bad)
		}
		if v, _ := f.Value(); v != 4 {
			t.Errorf("estado não deveria mudar após amostra inválida: got %v", v)
		}
	}

	// O estado interno segue intacto
	got, _ := f.Update(8)
	if got != 6 {
		t.Errorf("esperado 6 após rejeições: got %v", got)
	}
}

func TestEMAReset(t *testing.T) {
	f := NewEMAFilter(0.5)
	f.Update(100)
	f.Reset()

	if _, ok := f.Value(); ok {
		t.Errorf("Value deveria reportar vazio após Reset")
	}
	got, _ := f.Update(3)
	if got != 3 {
		t.Errorf("após Reset a primeira amostra passa direto: got %v", got)
	}
}

func TestKalmanConvergesToConstantSignal(t *testing.T) {
	f := NewKalmanFilter(0.01, 1.0)

	var got float64
	for i := 0; i < 50; i++ {
		got, _ = f.Update(7)
	}
	if math.Abs(got-7) > 0.05 {
		t.Errorf("Kalman deveria convergir para 7: got %v", got)
	}
}

func TestKalmanDampensNoise(t *testing.T) {
	f := NewKalmanFilter(0.001, 1.0)

	// Sinal constante 5 com ruído alternado ±1
	noise := []float64{1, -1}
	var got float64
	for i := 0; i < 100; i++ {
		got, _ = f.Update(5 + noise[i%2])
	}
	if math.Abs(got-5) > 0.5 {
		t.Errorf("Kalman deveria amortecer o ruído em torno de 5: got %v", got)
	}
}

func TestKalmanRejectsNaNWithoutStateChange(t *testing.T) {
	f := NewKalmanFilter(0.01, 1.0)
	f.Update(3)
	before, _ := f.Value()

	if _, ok := f.Update(math.NaN()); ok {
		t.Fatalf("NaN deveria ser rejeitado")
	}
	after, _ := f.Value()
	if before != after {
		t.Errorf("estado mudou após NaN: %v -> %v", before, after)
	}
}

func TestScalarFilterInterface(t *testing.T) {
	// Ambos os filtros cumprem o mesmo contrato
	var _ ScalarFilter = NewEMAFilter(0.5)
	var _ ScalarFilter = NewKalmanFilter(0.01, 1.0)
}

func TestConfigSelectsFilterKind(t *testing.T) {
	f, err := New(Config{Kind: KindEMA, Alpha: 0.5})
	if err != nil {
		t.Fatalf("configuração EMA válida rejeitada: %v", err)
	}
	if _, ok := f.(*EMAFilter); !ok {
		t.Errorf("KindEMA deveria construir um EMAFilter: %T", f)
	}

	f, err = New(Config{Kind: KindKalman, ProcessNoise: 0.05, MeasurementNoise: 8})
	if err != nil {
		t.Fatalf("configuração Kalman válida rejeitada: %v", err)
	}
	if _, ok := f.(*KalmanFilter); !ok {
		t.Errorf("KindKalman deveria construir um KalmanFilter: %T", f)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	bad := []Config{
		{Kind: "mediana"},
		{Kind: KindEMA, Alpha: 0},
		{Kind: KindEMA, Alpha: 1.5},
		{Kind: KindKalman, ProcessNoise: 0, MeasurementNoise: 1},
		{Kind: KindKalman, ProcessNoise: 0.01, MeasurementNoise: -1},
	}
	for _, cfg := range bad {
		if _, err := New(cfg); err == nil {
			t.Errorf("configuração inválida aceita: %+v", cfg)
		}
	}
}

func TestSeriesBankKeepsOneFilterPerSeries(t *testing.T) {
	bank, err := NewSeriesBank(Config{Kind: KindEMA, Alpha: 0.5})
	if err != nil {
		t.Fatalf("banco: %v", err)
	}

	// Primeira amostra de cada série passa direto, independentemente das
	// outras séries já terem estado
	if v, _ := bank.Update("a", 100); v != 100 {
		t.Errorf("primeira amostra de 'a' deveria passar direto: %v", v)
	}
	if v, _ := bank.Update("b", 50); v != 50 {
		t.Errorf("primeira amostra de 'b' deveria passar direto: %v", v)
	}

	if v, _ := bank.Update("a", 120); v != 110 {
		t.Errorf("série 'a' esperava 110: %v", v)
	}
	if v, _ := bank.Update("b", 50); v != 50 {
		t.Errorf("série 'b' não pode ser contaminada por 'a': %v", v)
	}
}

func TestSeriesBankReset(t *testing.T) {
	bank, err := NewSeriesBank(Config{Kind: KindEMA, Alpha: 0.5})
	if err != nil {
		t.Fatalf("banco: %v", err)
	}

	bank.Update("a", 100)
	bank.Reset()

	// Após Reset a série volta ao comportamento de primeira amostra
	if v, _ := bank.Update("a", 40); v != 40 {
		t.Errorf("Reset deveria reiniciar a série: %v", v)
	}
}
