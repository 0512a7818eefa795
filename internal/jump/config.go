package jump

import "fmt"

// Config do detector de saltos. Todos os limiares foram calibrados
// empiricamente; expostos como configuração (com estes defaults) porque
// podem precisar de recalibração contra um novo corpus de vídeos rotulados
type Config struct {
	// GROUNDED -> TAKEOFF
	TakeoffVelocityThreshold   float64 // m/s para cima
	VelocityPositiveDurationMS int64   // debounce: sustentação mínima acima do limiar
	AnkleRiseThreshold         float64 // subida normalizada dos tornozelos sobre o baseline
	CooldownAfterJumpMS        int64   // espera após o fim do salto anterior

	// TAKEOFF -> AIRBORNE
	SmallPositiveVelocityThreshold float64 // m/s: velocidade decaiu = pico atingido

	// AIRBORNE -> LANDING
	MinAirborneTimeMS        int64   // tempo mínimo no ar
	LandingVelocityThreshold float64 // m/s para baixo

	// LANDING -> GROUNDED
	StableVelocityThreshold     float64 // m/s: magnitude considerada repouso
	HipVelocityStableDurationMS int64   // debounce de estabilidade

	// Timeout de segurança de QUALQUER estado não-GROUNDED
	MaxJumpDurationMS int64

	// Validação e finalização
	MinJumpHeightM     float64 // altura mínima para salto válido
	LongAirtimeMS      int64   // airtime que valida mesmo sem altura confiável
	FallbackScale      float64 // m/unidade se o estimador nunca convergiu
	AnkleVisibilityMin float64

	// Baseline dos tornozelos (referência de solo)
	BaselineWindow     int // amostras da média deslizante
	BaselineMinSamples int // amostras antes do baseline valer
}

// DefaultConfig retorna os limiares padrão do detector
func DefaultConfig() Config {
	return Config{
		TakeoffVelocityThreshold:       0.25,
		VelocityPositiveDurationMS:     40,
		AnkleRiseThreshold:             0.015,
		CooldownAfterJumpMS:            300,
		SmallPositiveVelocityThreshold: 0.10,
		MinAirborneTimeMS:              100,
		LandingVelocityThreshold:       0.15,
		StableVelocityThreshold:        0.10,
		HipVelocityStableDurationMS:    50,
		MaxJumpDurationMS:              2000,
		MinJumpHeightM:                 0.05,
		LongAirtimeMS:                  500,
		FallbackScale:                  4.0,
		AnkleVisibilityMin:             0.5,
		BaselineWindow:                 30,
		BaselineMinSamples:             5,
	}
}

// Validate verifica a coerência dos limiares na construção, não no
// primeiro uso
func (c Config) Validate() error {
	if c.TakeoffVelocityThreshold <= 0 {
		return fmt.Errorf("TakeoffVelocityThreshold deve ser positivo")
	}
	if c.VelocityPositiveDurationMS < 0 || c.HipVelocityStableDurationMS < 0 {
		return fmt.Errorf("durações de debounce não podem ser negativas")
	}
	if c.AnkleRiseThreshold <= 0 {
		return fmt.Errorf("AnkleRiseThreshold deve ser positivo")
	}
	if c.SmallPositiveVelocityThreshold <= 0 || c.LandingVelocityThreshold <= 0 || c.StableVelocityThreshold <= 0 {
		return fmt.Errorf("limiares de velocidade devem ser positivos")
	}
	if c.MinAirborneTimeMS <= 0 {
		return fmt.Errorf("MinAirborneTimeMS deve ser positivo")
	}
	if c.MaxJumpDurationMS <= c.MinAirborneTimeMS {
		return fmt.Errorf("MaxJumpDurationMS (%d) deve exceder MinAirborneTimeMS (%d)",
			c.MaxJumpDurationMS, c.MinAirborneTimeMS)
	}
	if c.CooldownAfterJumpMS < 0 {
		return fmt.Errorf("CooldownAfterJumpMS não pode ser negativo")
	}
	if c.MinJumpHeightM < 0 || c.FallbackScale <= 0 {
		return fmt.Errorf("parâmetros de finalização inválidos")
	}
	if c.BaselineWindow <= 0 || c.BaselineMinSamples <= 0 || c.BaselineMinSamples > c.BaselineWindow {
		return fmt.Errorf("janela de baseline inconsistente")
	}
	return nil
}
