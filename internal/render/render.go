// Package render writes decoded images as PNG files next to the PGM output.
package render

// Ext is the extension of files written by WritePNG.
const Ext = "png"

// Scale is the upscaling factor applied when OpenCV is available.
const Scale = 4
