// Package device drives an AES1660 sensor from power-up to image capture.
//
// A Session sequences commands over a protocol.Channel:
//
//	idle -> identify -> [long init] -> identify -> calibrate -> arm
//	     -> finger-detect loop -> calibrate -> capture loop -> idle
//
// The finger-detect loop runs until the sensor reports a finger. The capture
// loop runs while the intensity sum of the last frame stays above
// LivenessCutoff. Both loops also stop once the abort flag is set; the flag
// is only checked between iterations, so an in-flight transfer always
// completes first.
//
// Transport and short-read failures end the run. A response carrying an
// unexpected type tag is logged and otherwise ignored.
//
// # Basic Usage
//
//	var abort atomic.Bool
//	s := device.New(port, cmds, &abort,
//	    device.WithLogger(logger),
//	    device.WithSink(writer),
//	)
//	res, err := s.Run()
package device
