package geometry

import (
	"math"

	"salto_detector/pkg/models"
)

// Valores padrão dos guardas numéricos
const (
	DefaultMinVisibility = 0.3
	DefaultMinDistance   = 0.03 // distância normalizada mínima entre pontos de um raio
)

// Distance2D calcula a distância euclidiana no plano da imagem
func Distance2D(p1, p2 models.Landmark) float64 {
	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Distance3D calcula a distância euclidiana incluindo a profundidade
// relativa (z = 0 quando o modelo não fornece)
func Distance3D(p1, p2 models.Landmark) float64 {
	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	dz := p2.Z - p1.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// IsVisible verifica se um landmark é utilizável: posição numérica válida e
// confiança acima do limiar
func IsVisible(lm models.Landmark, minVisibility float64) bool {
	if math.IsNaN(lm.X) || math.IsNaN(lm.Y) {
		return false
	}
	return lm.Visibility >= minVisibility
}

// AngleAt calcula o ângulo goniométrico no vértice p2, formado pelos raios
// p2->p1 e p2->p3, em graus [0,180]. Retorna nil se algum ponto falha a
// visibilidade, se algum raio é menor que minDistance (pontos quase
// coincidentes são numericamente instáveis) ou se alguma magnitude é zero
func AngleAt(p1, p2, p3 models.Landmark, minDistance float64) *float64 {
	if !IsVisible(p1, DefaultMinVisibility) ||
		!IsVisible(p2, DefaultMinVisibility) ||
		!IsVisible(p3, DefaultMinVisibility) {
		return nil
	}

	if Distance3D(p1, p2) < minDistance || Distance3D(p3, p2) < minDistance {
		return nil
	}

	v1x, v1y, v1z := p1.X-p2.X, p1.Y-p2.Y, p1.Z-p2.Z
	v2x, v2y, v2z := p3.X-p2.X, p3.Y-p2.Y, p3.Z-p2.Z

	mag1 := math.Sqrt(v1x*v1x + v1y*v1y + v1z*v1z)
	mag2 := math.Sqrt(v2x*v2x + v2y*v2y + v2z*v2z)
	if mag1 == 0 || mag2 == 0 {
		return nil
	}

	cos := (v1x*v2x + v1y*v2y + v1z*v2z) / (mag1 * mag2)
	// Clampar antes do acos evita NaN por excesso de ponto flutuante
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}

	angle := math.Acos(cos) * 180 / math.Pi
	return &angle
}

// SegmentOrientation calcula a direção normalizada p1->p2 mais a inclinação
// em graus relativa à vertical, normalizada em [-90,90] (valores fora são
// refletidos por ±180° — mesma orientação física). Mesmos guardas de
// visibilidade/distância do AngleAt
func SegmentOrientation(p1, p2 models.Landmark, minDistance float64) *models.Orientation {
	if !IsVisible(p1, DefaultMinVisibility) || !IsVisible(p2, DefaultMinVisibility) {
		return nil
	}

	dx, dy, dz := p2.X-p1.X, p2.Y-p1.Y, p2.Z-p1.Z
	mag := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if mag < minDistance || mag == 0 {
		return nil
	}

	// Inclinação relativa à vertical da imagem (eixo y)
	angle := math.Atan2(dx, dy) * 180 / math.Pi
	if angle > 90 {
		angle -= 180
	} else if angle < -90 {
		angle += 180
	}

	return &models.Orientation{
		X:         dx / mag,
		Y:         dy / mag,
		Z:         dz / mag,
		Angle:     angle,
		Magnitude: mag,
	}
}

// midLandmark sintetiza o ponto médio de dois landmarks, herdando a menor
// das duas confianças
func midLandmark(a, b models.Landmark) models.Landmark {
	vis := a.Visibility
	if b.Visibility < vis {
		vis = b.Visibility
	}
	return models.Landmark{
		X:          (a.X + b.X) / 2,
		Y:          (a.Y + b.Y) / 2,
		Z:          (a.Z + b.Z) / 2,
		Visibility: vis,
	}
}
