package main

import (
	"fmt"
	"os"

	"github.com/tsawler/go-metal/checkpoints"
)

// onnxtest reports whether go-metal can import a model, as a check for
// running the detector or restorer without ONNX Runtime.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: onnxtest <model.onnx>")
		fmt.Println("\nReports whether go-metal can import an ONNX model.")
		os.Exit(1)
	}

	modelPath := os.Args[1]
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		fmt.Printf("Error: File not found: %s\n", modelPath)
		os.Exit(1)
	}

	fmt.Printf("Importing %s with go-metal...\n", modelPath)
	checkpoint, err := checkpoints.NewONNXImporter().ImportFromONNX(modelPath)
	if err != nil {
		fmt.Printf("\nImport failed: %v\n", err)
		fmt.Println("The model uses operations go-metal does not support; use ONNX Runtime.")
		os.Exit(1)
	}

	fmt.Printf("\nLayers: %d\n", len(checkpoint.ModelSpec.Layers))
	fmt.Printf("Weights: %d tensors\n", len(checkpoint.Weights))
	for i, layer := range checkpoint.ModelSpec.Layers {
		fmt.Printf("  %d: %s (%s)\n", i+1, layer.Name, layer.Type)
	}
}
