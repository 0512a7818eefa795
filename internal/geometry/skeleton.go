package geometry

import "salto_detector/pkg/models"

// Cardinalidades de esqueleto suportadas
const (
	SkeletonCOCO17    = 17 // COCO/MoveNet
	SkeletonBlazePose = 33 // BlazePose/MediaPipe
)

// Esquema COCO de 17 pontos: índice por nome de articulação
var coco17Index = map[string]int{
	models.JointNose:          0,
	models.JointLeftEye:       1,
	models.JointRightEye:      2,
	models.JointLeftEar:       3,
	models.JointRightEar:      4,
	models.JointLeftShoulder:  5,
	models.JointRightShoulder: 6,
	models.JointLeftElbow:     7,
	models.JointRightElbow:    8,
	models.JointLeftWrist:     9,
	models.JointRightWrist:    10,
	models.JointLeftHip:       11,
	models.JointRightHip:      12,
	models.JointLeftKnee:      13,
	models.JointRightKnee:     14,
	models.JointLeftAnkle:     15,
	models.JointRightAnkle:    16,
}

// Esquema BlazePose de 33 pontos (subconjunto nomeado que usamos)
var blazePose33Index = map[string]int{
	models.JointNose:           0,
	models.JointLeftEye:        2,
	models.JointRightEye:       5,
	models.JointLeftEar:        7,
	models.JointRightEar:       8,
	models.JointLeftShoulder:   11,
	models.JointRightShoulder:  12,
	models.JointLeftElbow:      13,
	models.JointRightElbow:     14,
	models.JointLeftWrist:      15,
	models.JointRightWrist:     16,
	models.JointLeftHip:        23,
	models.JointRightHip:       24,
	models.JointLeftKnee:       25,
	models.JointRightKnee:      26,
	models.JointLeftAnkle:      27,
	models.JointRightAnkle:     28,
	models.JointLeftHeel:       29,
	models.JointRightHeel:      30,
	models.JointLeftFootIndex:  31,
	models.JointRightFootIndex: 32,
}

// SchemeFor seleciona a tabela de índices pelo comprimento do array de
// landmarks. Retorna nil para qualquer outra cardinalidade
func SchemeFor(count int) map[string]int {
	switch count {
	case SkeletonCOCO17:
		return coco17Index
	case SkeletonBlazePose:
		return blazePose33Index
	default:
		return nil
	}
}

// Tripla de articulações que define um ângulo: o vértice é B
type angleSpec struct {
	name    string
	a, b, c string
}

var angleTable = []angleSpec{
	{models.AngleLeftElbow, models.JointLeftShoulder, models.JointLeftElbow, models.JointLeftWrist},
	{models.AngleRightElbow, models.JointRightShoulder, models.JointRightElbow, models.JointRightWrist},
	{models.AngleLeftShoulder, models.JointLeftElbow, models.JointLeftShoulder, models.JointLeftHip},
	{models.AngleRightShoulder, models.JointRightElbow, models.JointRightShoulder, models.JointRightHip},
	{models.AngleLeftHip, models.JointLeftShoulder, models.JointLeftHip, models.JointLeftKnee},
	{models.AngleRightHip, models.JointRightShoulder, models.JointRightHip, models.JointRightKnee},
	{models.AngleLeftKnee, models.JointLeftHip, models.JointLeftKnee, models.JointLeftAnkle},
	{models.AngleRightKnee, models.JointRightHip, models.JointRightKnee, models.JointRightAnkle},
}

// Par de articulações que define a orientação de um segmento
type segmentSpec struct {
	name string
	from string
	to   string
}

var segmentTable = []segmentSpec{
	{models.SegmentLeftUpperArm, models.JointLeftShoulder, models.JointLeftElbow},
	{models.SegmentRightUpperArm, models.JointRightShoulder, models.JointRightElbow},
	{models.SegmentLeftForearm, models.JointLeftElbow, models.JointLeftWrist},
	{models.SegmentRightForearm, models.JointRightElbow, models.JointRightWrist},
	{models.SegmentLeftThigh, models.JointLeftHip, models.JointLeftKnee},
	{models.SegmentRightThigh, models.JointRightHip, models.JointRightKnee},
	{models.SegmentLeftShin, models.JointLeftKnee, models.JointLeftAnkle},
	{models.SegmentRightShin, models.JointRightKnee, models.JointRightAnkle},
}

// AllAngles computa o mapa fixo de ângulos articulares despachando AngleAt
// sobre a tabela de triplas do esquema detectado. Retorna nil se o número de
// landmarks não corresponde a nenhum esquema suportado
func AllAngles(landmarks []models.Landmark) map[string]*float64 {
	scheme := SchemeFor(len(landmarks))
	if scheme == nil {
		return nil
	}

	angles := make(map[string]*float64, len(angleTable)+1)
	for _, spec := range angleTable {
		angles[spec.name] = AngleAt(
			landmarks[scheme[spec.a]],
			landmarks[scheme[spec.b]],
			landmarks[scheme[spec.c]],
			DefaultMinDistance,
		)
	}

	// Tronco: ângulo no centro do quadril entre o centro dos ombros e o
	// centro dos joelhos (pontos médios sintetizados)
	shoulderMid := midLandmark(landmarks[scheme[models.JointLeftShoulder]], landmarks[scheme[models.JointRightShoulder]])
	hipMid := midLandmark(landmarks[scheme[models.JointLeftHip]], landmarks[scheme[models.JointRightHip]])
	kneeMid := midLandmark(landmarks[scheme[models.JointLeftKnee]], landmarks[scheme[models.JointRightKnee]])
	angles[models.AngleTorso] = AngleAt(shoulderMid, hipMid, kneeMid, DefaultMinDistance)

	return angles
}

// AllOrientations computa o mapa fixo de orientações de segmento. Retorna
// nil se a cardinalidade não corresponde a nenhum esquema
func AllOrientations(landmarks []models.Landmark) map[string]*models.Orientation {
	scheme := SchemeFor(len(landmarks))
	if scheme == nil {
		return nil
	}

	orientations := make(map[string]*models.Orientation, len(segmentTable)+1)
	for _, spec := range segmentTable {
		orientations[spec.name] = SegmentOrientation(
			landmarks[scheme[spec.from]],
			landmarks[scheme[spec.to]],
			DefaultMinDistance,
		)
	}

	// Orientação do tronco: centro dos ombros -> centro do quadril
	shoulderMid := midLandmark(landmarks[scheme[models.JointLeftShoulder]], landmarks[scheme[models.JointRightShoulder]])
	hipMid := midLandmark(landmarks[scheme[models.JointLeftHip]], landmarks[scheme[models.JointRightHip]])
	orientations[models.SegmentTorso] = SegmentOrientation(shoulderMid, hipMid, DefaultMinDistance)

	return orientations
}
