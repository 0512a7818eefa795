package pose

import (
	"fmt"

	"salto_detector/internal/filters"
	"salto_detector/pkg/models"
)

// SmoothingConfig seleciona, por configuração, o filtro de cada família de
// séries de saída. Ângulos articulares (graus, muito ruidosos) e orientações
// de segmento usam constantes de ruído separadas
type SmoothingConfig struct {
	Angles       filters.Config
	Orientations filters.Config
}

// DefaultSmoothingConfig retorna a configuração padrão de suavização
func DefaultSmoothingConfig() SmoothingConfig {
	return SmoothingConfig{
		Angles: filters.Config{
			Kind:             filters.KindKalman,
			ProcessNoise:     0.05,
			MeasurementNoise: 8.0,
		},
		Orientations: filters.Config{
			Kind:  filters.KindEMA,
			Alpha: 0.3,
		},
	}
}

// Smoother suaviza os mapas de ângulos e orientações de um frame, in place,
// com um filtro independente por série (um por ângulo, um por componente de
// orientação). Escritor único, como o resto do pipeline de frames
type Smoother struct {
	angles *filters.SeriesBank
	tilts  *filters.SeriesBank
	mags   *filters.SeriesBank
}

// NewSmoother cria o suavizador; configuração inválida falha na construção
func NewSmoother(cfg SmoothingConfig) (*Smoother, error) {
	angles, err := filters.NewSeriesBank(cfg.Angles)
	if err != nil {
		return nil, fmt.Errorf("suavização de ângulos inválida: %v", err)
	}
	tilts, err := filters.NewSeriesBank(cfg.Orientations)
	if err != nil {
		return nil, fmt.Errorf("suavização de orientações inválida: %v", err)
	}
	mags, _ := filters.NewSeriesBank(cfg.Orientations)
	return &Smoother{angles: angles, tilts: tilts, mags: mags}, nil
}

// Apply suaviza os valores presentes no frame. Entradas nulas (articulação
// invisível neste frame) são puladas sem tocar o estado do filtro da série:
// a série retoma de onde parou quando a articulação reaparece
func (s *Smoother) Apply(angles map[string]*float64, orientations map[string]*models.Orientation) {
	for name, v := range angles {
		if v == nil {
			continue
		}
		if smoothed, ok := s.angles.Update(name, *v); ok {
			*v = smoothed
		}
	}
	for name, o := range orientations {
		if o == nil {
			continue
		}
		if smoothed, ok := s.tilts.Update(name, o.Angle); ok {
			o.Angle = smoothed
		}
		if smoothed, ok := s.mags.Update(name, o.Magnitude); ok {
			o.Magnitude = smoothed
		}
	}
}

// Reset limpa todas as séries (nova sessão ou nova pessoa em quadro)
func (s *Smoother) Reset() {
	s.angles.Reset()
	s.tilts.Reset()
	s.mags.Reset()
}
