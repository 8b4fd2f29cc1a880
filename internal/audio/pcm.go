package audio

import "math"

// Resample performs linear interpolation resampling of PCM samples.
// This is a basic implementation - for production quality consider a
// sinc-based resampler, but linear interpolation is adequate for speech.
func Resample(samples []int, inputRate, outputRate int) []int {
	if inputRate == outputRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(outputRate) / float64(inputRate)
	outputLength := int(float64(len(samples)) * ratio)
	output := make([]int, outputLength)

	for i := 0; i < outputLength; i++ {
		srcPos := float64(i) / ratio

		idx0 := int(srcPos)
		idx1 := idx0 + 1
		if idx1 >= len(samples) {
			idx1 = len(samples) - 1
		}
		if idx0 >= len(samples) {
			idx0 = len(samples) - 1
		}

		fraction := srcPos - float64(idx0)
		output[i] = int(float64(samples[idx0])*(1.0-fraction) + float64(samples[idx1])*fraction)
	}

	return output
}

// DownmixMono averages interleaved multi-channel samples into mono.
func DownmixMono(samples []int, channels int) []int {
	if channels <= 1 || len(samples) == 0 {
		return samples
	}

	frames := len(samples) / channels
	mono := make([]int, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / channels
	}
	return mono
}

// CalculateRMS calculates the root mean square of audio samples.
// Useful for detecting audio levels and silence.
func CalculateRMS(samples []int) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}
