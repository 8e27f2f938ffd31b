// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package video wraps OpenCV capture, encoding and preview behind
// image.Image so the rest of the bench never touches a Mat.
package video

import (
	"errors"
	"fmt"
	"image"
	"log"

	"gocv.io/x/gocv"
	xdraw "golang.org/x/image/draw"
)

// ErrNoFrame is returned when the camera stops delivering frames.
var ErrNoFrame = errors.New("video: camera returned no frame")

// Camera reads frames from a local capture device.
type Camera struct {
	device int
	cap    *gocv.VideoCapture
	mat    gocv.Mat
}

func OpenCamera(device int) (*Camera, error) {
	c, err := gocv.VideoCaptureDevice(device)
	if err != nil {
		return nil, fmt.Errorf("video: open camera %d: %w", device, err)
	}
	log.Printf("video: camera %d opened", device)
	return &Camera{device: device, cap: c, mat: gocv.NewMat()}, nil
}

// Read grabs the next frame. The returned image is owned by the caller.
func (c *Camera) Read() (image.Image, error) {
	if ok := c.cap.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, ErrNoFrame
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("video: convert frame: %w", err)
	}
	return img, nil
}

func (c *Camera) Close() error {
	log.Printf("video: closing camera %d", c.device)
	merr := c.mat.Close()
	if err := c.cap.Close(); err != nil {
		return err
	}
	return merr
}

// Writer encodes frames of a fixed size into a video file. Frames of any
// other size are scaled to fit.
type Writer struct {
	path string
	w    *gocv.VideoWriter
	size image.Point
}

func OpenWriter(path, codec string, fps float64, width, height int) (*Writer, error) {
	w, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("video: open writer %s: %w", path, err)
	}
	if !w.IsOpened() {
		w.Close()
		return nil, fmt.Errorf("video: writer %s did not open (codec %s)", path, codec)
	}
	log.Printf("video: recording %dx%d @ %.0f fps to %s", width, height, fps, path)
	return &Writer{path: path, w: w, size: image.Pt(width, height)}, nil
}

func (w *Writer) Write(img image.Image) error {
	if img.Bounds().Size() != w.size {
		dst := image.NewRGBA(image.Rectangle{Max: w.size})
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		img = dst
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("video: convert frame: %w", err)
	}
	defer mat.Close()
	return w.w.Write(mat)
}

func (w *Writer) Close() error {
	log.Printf("video: closing %s", w.path)
	return w.w.Close()
}

// Preview shows frames in a desktop window.
type Preview struct {
	win *gocv.Window
}

func NewPreview(title string) *Preview {
	return &Preview{win: gocv.NewWindow(title)}
}

// Show displays img and polls the keyboard for 1 ms. It returns the key
// pressed, or -1.
func (p *Preview) Show(img image.Image) (int, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return -1, fmt.Errorf("video: convert frame: %w", err)
	}
	defer mat.Close()
	p.win.IMShow(mat)
	return p.win.WaitKey(1), nil
}

func (p *Preview) Close() error {
	return p.win.Close()
}
