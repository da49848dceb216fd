package main

import (
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/facekit/internal/detector"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: orttest <detector.onnx> [libonnxruntime path]")
		fmt.Println("\nChecks that ONNX Runtime loads the model and that it exposes the stride heads.")
		os.Exit(1)
	}

	modelPath := os.Args[1]
	fmt.Printf("Testing ONNX model: %s\n", modelPath)

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		fmt.Printf("Error: File not found: %s\n", modelPath)
		os.Exit(1)
	}

	if len(os.Args) > 2 {
		ort.SetSharedLibraryPath(os.Args[2])
	}

	fmt.Println("Initializing ONNX Runtime...")
	if err := ort.InitializeEnvironment(); err != nil {
		fmt.Printf("Failed to initialize ONNX Runtime: %v\n", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		fmt.Printf("Failed to get model info: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nInputs (%d):\n", len(inputs))
	for _, info := range inputs {
		fmt.Printf("  %s: shape=%v, type=%v\n", info.Name, info.Dimensions, info.DataType)
	}

	fmt.Printf("\nOutputs (%d):\n", len(outputs))
	found := map[string]bool{}
	for _, info := range outputs {
		fmt.Printf("  %s: shape=%v, type=%v\n", info.Name, info.Dimensions, info.DataType)
		found[info.Name] = true
	}

	missing := 0
	for _, name := range detector.OutputNames(detector.DefaultLevels()) {
		if !found[name] {
			fmt.Printf("Missing detector head: %s\n", name)
			missing++
		}
	}

	if metadata, err := ort.GetModelMetadata(modelPath); err == nil {
		fmt.Println("\nMetadata:")
		if producer, err := metadata.GetProducerName(); err == nil {
			fmt.Printf("  Producer: %s\n", producer)
		}
		if version, err := metadata.GetVersion(); err == nil {
			fmt.Printf("  Version: %d\n", version)
		}
		metadata.Destroy()
	}

	if missing > 0 {
		os.Exit(1)
	}
	fmt.Println("\nOK: all detector heads present")
}
