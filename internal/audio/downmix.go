package audio

import "math"

// Downmix folds channels into one using energy-preserving averaging:
// mixed[i] = sqrt(2) * sum(ch[i]) / n. For stereo this is sqrt(2)*(l+r)/2.
// Mono input is returned unchanged. Channels are truncated to the shortest.
func Downmix(channels [][]float32) []float32 {
	switch len(channels) {
	case 0:
		return nil
	case 1:
		return channels[0]
	}

	frames := len(channels[0])
	for _, ch := range channels[1:] {
		if len(ch) < frames {
			frames = len(ch)
		}
	}

	n := float64(len(channels))
	mixed := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for _, ch := range channels {
			sum += float64(ch[i])
		}
		mixed[i] = float32(math.Sqrt2 * sum / n)
	}

	return mixed
}
