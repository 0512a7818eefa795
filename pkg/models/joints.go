package models

// Nomes canônicos de articulações usados nos mapas de Joints.
// Os dois esquemas de esqueleto suportados (17 e 33 pontos) mapeiam para
// este mesmo vocabulário
const (
	JointNose           = "nose"
	JointLeftEye        = "leftEye"
	JointRightEye       = "rightEye"
	JointLeftEar        = "leftEar"
	JointRightEar       = "rightEar"
	JointLeftShoulder   = "leftShoulder"
	JointRightShoulder  = "rightShoulder"
	JointLeftElbow      = "leftElbow"
	JointRightElbow     = "rightElbow"
	JointLeftWrist      = "leftWrist"
	JointRightWrist     = "rightWrist"
	JointLeftHip        = "leftHip"
	JointRightHip       = "rightHip"
	JointLeftKnee       = "leftKnee"
	JointRightKnee      = "rightKnee"
	JointLeftAnkle      = "leftAnkle"
	JointRightAnkle     = "rightAnkle"
	JointLeftHeel       = "leftHeel"
	JointRightHeel      = "rightHeel"
	JointLeftFootIndex  = "leftFootIndex"
	JointRightFootIndex = "rightFootIndex"
)

// Nomes de segmentos para os mapas de ângulos
const (
	AngleLeftElbow     = "leftElbow"
	AngleRightElbow    = "rightElbow"
	AngleLeftShoulder  = "leftShoulder"
	AngleRightShoulder = "rightShoulder"
	AngleLeftHip       = "leftHip"
	AngleRightHip      = "rightHip"
	AngleLeftKnee      = "leftKnee"
	AngleRightKnee     = "rightKnee"
	AngleTorso         = "torso"
)

// Nomes de segmentos para os mapas de orientação
const (
	SegmentLeftUpperArm  = "leftUpperArm"
	SegmentRightUpperArm = "rightUpperArm"
	SegmentLeftForearm   = "leftForearm"
	SegmentRightForearm  = "rightForearm"
	SegmentLeftThigh     = "leftThigh"
	SegmentRightThigh    = "rightThigh"
	SegmentLeftShin      = "leftShin"
	SegmentRightShin     = "rightShin"
	SegmentTorso         = "torso"
)
