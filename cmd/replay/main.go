package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cheggaaa/pb/v3"

	"salto_detector/internal/geometry"
	"salto_detector/internal/jump"
	"salto_detector/internal/kinematics"
	"salto_detector/internal/pose"
	"salto_detector/internal/scale"
	"salto_detector/pkg/models"
	"salto_detector/pkg/utils"
)

// Reprocessa uma gravação de landmarks (array JSON de frames) pelo mesmo
// pipeline de detecção do serviço, imprimindo os eventos e o resumo final.
// Útil para recalibrar limiares contra vídeos rotulados
func main() {
	file := flag.String("file", "", "arquivo JSON com a gravação de landmarks")
	massKG := flag.Float64("mass", 70, "massa corporal em kg")
	flag.Parse()

	if *file == "" {
		fmt.Println("uso: replay -file gravacao.json [-mass 70]")
		os.Exit(1)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Printf("❌ Erro ao ler gravação: %v\n", err)
		os.Exit(1)
	}

	// Mesmo decodificador do caminho ao vivo: gravações que omitem
	// visibility/z recebem os mesmos defaults
	frames, err := utils.ParseRecording(data, false)
	if err != nil {
		fmt.Printf("❌ Gravação inválida: %v\n", err)
		os.Exit(1)
	}

	if len(frames) == 0 {
		fmt.Println("⚠️  Gravação vazia")
		return
	}

	estimator, err := scale.NewEstimator(scale.DefaultConfig())
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	pipeline, err := kinematics.NewPipeline(kinematics.DefaultConfig(), estimator)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	detector, err := jump.NewDetector(jump.DefaultConfig(), estimator, pipeline, nil)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	if err := detector.SetMass(*massKG); err != nil {
		fmt.Printf("⚠️  Massa inválida, usando padrão: %v\n", err)
	}
	smoother, err := pose.NewSmoother(pose.DefaultSmoothingConfig())
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	var landings []models.LandingEvent
	detector.OnLandingDetected(func(ev models.LandingEvent) {
		landings = append(landings, ev)
	})

	fmt.Printf("🎬 Reprocessando %d frames de %s (massa %.1f kg)\n",
		len(frames), *file, *massKG)

	bar := pb.StartNew(len(frames))
	rejected := 0
	for _, in := range frames {
		angles := geometry.AllAngles(in.Landmarks)
		orientations := geometry.AllOrientations(in.Landmarks)
		smoother.Apply(angles, orientations)

		frame := pose.CreatePoseFrame(in.Landmarks, angles, orientations,
			in.Timestamp, in.FPS, in.Model)
		if frame == nil {
			rejected++
			bar.Increment()
			continue
		}

		detector.HandleFrame(*frame)
		bar.Increment()
	}
	bar.Finish()

	fmt.Println()
	fmt.Printf("📦 Frames: %d processados, %d rejeitados\n", len(frames)-rejected, rejected)
	fmt.Printf("🤸 Saltos válidos: %d\n", detector.JumpCount())
	fmt.Println()

	for _, ev := range landings {
		validity := "✅ válido"
		if !ev.IsValid {
			validity = "❌ inválido"
		}
		fmt.Printf("   #%d  altura=%.3fm  airtime=%dms  GRF=%.1fN  %s\n",
			ev.JumpNumber, ev.JumpHeight, ev.AirTimeMS, ev.GroundReactionForce, validity)
	}

	snap := detector.Snapshot()
	if snap.Scale.NormalizedToMeters != nil {
		fmt.Printf("\n📏 Escala final: %.3f m/unid (%s)\n",
			*snap.Scale.NormalizedToMeters, snap.Scale.Method)
	} else {
		fmt.Println("\n📏 Escala nunca convergiu")
	}
}
