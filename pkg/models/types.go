package models

// Landmark representa um ponto do esqueleto produzido pelo modelo de pose.
// Coordenadas x,y normalizadas em [0,1] no espaço da imagem (origem no canto
// superior esquerdo, y cresce para BAIXO). Z é profundidade relativa (0 se o
// modelo não suporta). Visibility é a confiança em [0,1].
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	Visibility float64 `json:"visibility"`
}

// Joint é um landmark nomeado, com o flag de visibilidade já derivado
// (visible = visibility >= 0.5)
type Joint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	Visibility float64 `json:"visibility"`
	Visible    bool    `json:"visible"`
}

// Orientation representa a orientação de um segmento corporal: direção
// normalizada mais inclinação em graus relativa à vertical, em [-90, 90]
type Orientation struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Angle     float64 `json:"angle"`
	Magnitude float64 `json:"magnitude"`
}

// Actions são flags de postura inferidos por regras de limiar sobre os
// ângulos articulares. Ausência de dado resulta em false, nunca em "talvez"
type Actions struct {
	Standing   bool `json:"standing"`
	Sitting    bool `json:"sitting"`
	ArmsRaised bool `json:"armsRaised"`
	Jumping    bool `json:"jumping"`
}

// PoseFrame é a unidade canônica que flui pelo barramento de frames.
// Imutável depois de criado; publicado uma única vez; não é retido
type PoseFrame struct {
	Timestamp    int64                   `json:"timestamp"` // milissegundos monotônicos
	FPS          float64                 `json:"fps"`
	Model        string                  `json:"model"`
	Joints       map[string]Joint        `json:"joints"`
	Angles       map[string]*float64     `json:"angles"`       // graus; nil = não computável
	Orientations map[string]*Orientation `json:"orientations"` // nil = não computável
	Actions      Actions                 `json:"actions"`
}

// ForceSample é a telemetria de força/cinemática emitida a cada frame,
// dentro ou fora de um episódio de salto
type ForceSample struct {
	Timestamp       int64    `json:"timestamp"`
	VelocityMS      float64  `json:"velocity"`     // m/s, positivo = para cima
	VelocityNorm    float64  `json:"velocityNorm"` // unidades normalizadas/s (bruto)
	AccelerationMS2 float64  `json:"acceleration"` // m/s²
	NetForceN       float64  `json:"netForce"`
	TotalForceN     float64  `json:"totalForce"` // nunca abaixo do peso corporal
	WeightN         float64  `json:"weight"`
	Stationary      bool     `json:"stationary"`
	HipY            *float64 `json:"hipY,omitempty"` // centro do quadril (normalizado); nil se invisível
}

// JumpEvent é emitido na transição GROUNDED -> TAKEOFF
type JumpEvent struct {
	Timestamp   int64 `json:"timestamp"`
	JumpNumber  int   `json:"jumpNumber"`
	TakeoffTime int64 `json:"takeoffTime"`
}

// LandingEvent é emitido na finalização de TODO episódio de salto,
// válido ou não. Apenas episódios com IsValid=true incrementam o contador
type LandingEvent struct {
	Timestamp           int64   `json:"timestamp"`
	JumpNumber          int     `json:"jumpNumber"`
	JumpHeight          float64 `json:"jumpHeight"` // metros
	AirTimeMS           int64   `json:"airTime"`
	TakeoffTime         int64   `json:"takeoffTime"`
	LandingTime         int64   `json:"landingTime"`
	GroundReactionForce float64 `json:"groundReactionForce"` // N, pico do episódio
	IsValid             bool    `json:"isValid"`
}

// ScaleEstimate descreve o fator de conversão unidades-normalizadas -> metros
type ScaleEstimate struct {
	NormalizedToMeters *float64 `json:"normalizedToMeters"` // nil enquanto não convergiu
	Method             string   `json:"method"`             // "nose-ankle" | "shoulder-hip" | "fallback"
	HeightNormalized   float64  `json:"heightNormalized"`
}

// SessionStats agrega os resultados de uma sessão de detecção
type SessionStats struct {
	SessionID    string  `json:"sessionId"`
	TotalJumps   int     `json:"totalJumps"`
	BestHeight   float64 `json:"bestHeight"` // metros
	BestForce    float64 `json:"bestForce"`  // N
	TotalAirTime int64   `json:"totalAirTime"`
	Timestamp    int64   `json:"timestamp"`
}

// TelemetryMessage é o envelope enviado aos clientes WebSocket
type TelemetryMessage struct {
	Type      string      `json:"type"` // "takeoff" | "landing" | "force" | "session"
	Payload   interface{} `json:"payload"`
	Timestamp int64       `json:"timestamp"`
}

// IngestFrame é o payload recebido do produtor de pose (endpoint /pose ou
// arquivo de replay): um array ordenado de landmarks mais o relógio do frame
type IngestFrame struct {
	Timestamp int64      `json:"timestamp"`
	FPS       float64    `json:"fps"`
	Model     string     `json:"model"`
	Landmarks []Landmark `json:"landmarks"`
}
