package pose

import (
	"salto_detector/internal/geometry"
	"salto_detector/pkg/models"
)

// Limiares do gate de validade e da inferência de ações
const (
	keyJointMinVisibility = 0.5
	jointVisibleThreshold = 0.5

	standingKneeMin  = 160.0
	sittingKneeMax   = 110.0
	armsRaisedMin    = 130.0
	jumpingKneeMin   = 170.0
)

// Articulações-chave do gate de validade: basta UMA visível para aceitar o
// frame (junto com a alternativa de qualquer ângulo não-nulo)
var keyJoints = []string{
	models.JointLeftShoulder,
	models.JointRightShoulder,
	models.JointLeftHip,
	models.JointRightHip,
}

// CreatePoseFrame monta o registro canônico de um frame processado.
// Retorna nil (frame não publicável) quando a cardinalidade de landmarks não
// corresponde a um esqueleto suportado, ou quando nenhuma articulação-chave
// está confiavelmente visível E nenhum ângulo pôde ser computado
func CreatePoseFrame(landmarks []models.Landmark, angles map[string]*float64,
	orientations map[string]*models.Orientation, timestamp int64, fps float64, model string) *models.PoseFrame {

	scheme := geometry.SchemeFor(len(landmarks))
	if scheme == nil {
		return nil
	}

	if !hasVisibleKeyJoint(landmarks, scheme) && !hasAnyAngle(angles) {
		return nil
	}

	joints := make(map[string]models.Joint, len(scheme))
	for name, idx := range scheme {
		joints[name] = formatJoint(landmarks[idx])
	}

	return &models.PoseFrame{
		Timestamp:    timestamp,
		FPS:          fps,
		Model:        model,
		Joints:       joints,
		Angles:       angles,
		Orientations: orientations,
		Actions:      inferActions(angles),
	}
}

func hasVisibleKeyJoint(landmarks []models.Landmark, scheme map[string]int) bool {
	for _, name := range keyJoints {
		if landmarks[scheme[name]].Visibility >= keyJointMinVisibility {
			return true
		}
	}
	return false
}

func hasAnyAngle(angles map[string]*float64) bool {
	for _, a := range angles {
		if a != nil {
			return true
		}
	}
	return false
}

func formatJoint(lm models.Landmark) models.Joint {
	return models.Joint{
		X:          lm.X,
		Y:          lm.Y,
		Z:          lm.Z,
		Visibility: lm.Visibility,
		Visible:    lm.Visibility >= jointVisibleThreshold,
	}
}

// inferActions aplica as regras de limiar sobre os ângulos. Cada regra só
// afirma true se TODOS os ângulos contribuintes são não-nulos e satisfazem o
// limiar; dado ausente produz false
func inferActions(angles map[string]*float64) models.Actions {
	var actions models.Actions

	kneeL := angles[models.AngleLeftKnee]
	kneeR := angles[models.AngleRightKnee]
	shoulderL := angles[models.AngleLeftShoulder]
	shoulderR := angles[models.AngleRightShoulder]

	actions.Standing = kneeL != nil && kneeR != nil &&
		*kneeL > standingKneeMin && *kneeR > standingKneeMin

	actions.Sitting = kneeL != nil && kneeR != nil &&
		*kneeL < sittingKneeMax && *kneeR < sittingKneeMax

	actions.ArmsRaised = shoulderL != nil && shoulderR != nil &&
		*shoulderL > armsRaisedMin && *shoulderR > armsRaisedMin

	// Extensão completa dos joelhos com braços elevados é o perfil típico
	// do meio do voo
	actions.Jumping = kneeL != nil && kneeR != nil &&
		*kneeL > jumpingKneeMin && *kneeR > jumpingKneeMin &&
		actions.ArmsRaised

	return actions
}
