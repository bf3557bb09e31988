package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/leandrodaf/bowsense/internal/logger"
	"github.com/leandrodaf/bowsense/sdk/bowsense"
	"github.com/leandrodaf/bowsense/sdk/contracts"
)

// Reads "ax,ay,az,gx,gy,gz" lines from stdin and drives a generated drone.
// An optional argument names a MIDI file whose notes are played in MIDI mode.
func main() {
	log := logger.NewZapLogger()

	sr := beep.SampleRate(44100)
	drone, err := generators.SineTone(sr, 220)
	if err != nil {
		log.Error("Failed to create drone", log.Field().Error("error", err))
		return
	}
	sink := bowsense.NewBeepSink(drone)

	engine, err := bowsense.NewEngine(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithConfig(bowsense.LoadConfigFromEnv()),
		contracts.WithSink(sink),
		contracts.WithDirectionHandler(func(d contracts.BowDirection) {
			fmt.Println("bow direction:", d)
		}),
	)
	if err != nil {
		log.Error("Failed to initialize engine", log.Field().Error("error", err))
		return
	}
	defer engine.Close()

	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			log.Error("Failed to read MIDI file", log.Field().Error("error", err))
			return
		}
		if err := engine.LoadMIDI(context.Background(), data); err != nil {
			log.Warn("MIDI file unusable", log.Field().Error("error", err))
		}
		engine.SetMode(contracts.ModeMIDI)
	}

	// Drain the sink as a speaker would so the transport state is exercised.
	buf := make([][2]float64, 512)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd, ok := engine.ProcessLine(scanner.Text())
		if !ok {
			continue
		}
		sink.Stream(buf)
		fmt.Printf("speed=%.2f target=%.2f volume=%.2f play=%v\n", cmd.Speed, cmd.Target, cmd.Volume, cmd.Play)
	}
}
