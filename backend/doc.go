// Package backend defines the contract between a filter chain and the GPU
// API that executes it.
//
// The set of backends is closed; Kind enumerates it:
//
//   - Recording (package backend/recording): CPU textures, records every
//     draw. Used for tests and for headless preset validation.
//   - WGPU (package backend/wgpu): renders through a gogpu/wgpu HAL device
//     received from the host application.
//
// # Usage
//
//	b := recording.New()
//	defer b.Close()
//
//	chain, err := fxchain.Load("crt.toml", b)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer chain.Close()
//
// A backend consumes one codegen.Target. The chain compiles every pass for
// that target and hands the output to NewProgram.
package backend
