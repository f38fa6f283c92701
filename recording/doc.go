// Package recording provides an in-memory gpucore.Device that records every
// frame as a list of typed commands instead of executing it on a GPU.
//
// It is used to test renderers without a GPU and by the headless tool to
// inspect what a frame would draw:
//
//	dev := recording.NewDevice()
//	r := atlas.New(dev, atlas.DefaultConfig())
//	...
//	frame := dev.LastFrame()
//	for _, d := range frame.Draws() {
//	    fmt.Println(d.Pipeline, d.IndexCount)
//	}
//
// Resource lifecycle calls are logged in order (see [Device.Ops]) so tests
// can check creation and teardown ordering.
package recording
