package audio

import "time"

// Window is a slice of a longer buffer handed to the speech model
type Window struct {
	Index   int
	Start   int // offset of the first sample in the source buffer
	Samples []float32
}

// End returns the offset just past the window's last sample
func (w Window) End() int {
	return w.Start + len(w.Samples)
}

// Split cuts samples into windows of length that overlap their neighbour
// by stride. Consecutive windows start length-stride apart and the last
// window ends exactly at the end of the input. Input shorter than one
// window yields a single window.
func Split(samples []float32, sampleRate int, length, stride time.Duration) []Window {
	if len(samples) == 0 {
		return nil
	}

	size := durationToSamples(length, sampleRate)
	if size <= 0 || len(samples) <= size {
		return []Window{{Index: 0, Start: 0, Samples: samples}}
	}

	step := size - durationToSamples(stride, sampleRate)
	if step <= 0 || step > size {
		step = size
	}

	var windows []Window
	for start := 0; ; start += step {
		end := start + size
		if end > len(samples) {
			end = len(samples)
		}
		windows = append(windows, Window{
			Index:   len(windows),
			Start:   start,
			Samples: samples[start:end],
		})
		if end == len(samples) {
			break
		}
	}

	return windows
}

func durationToSamples(d time.Duration, sampleRate int) int {
	return int(d.Seconds() * float64(sampleRate))
}
