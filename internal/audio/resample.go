package audio

// Resample converts a mono frame to a different length using linear
// interpolation between neighbouring samples. It is used to lift 44.1kHz
// frames to the 48kHz rate Opus requires (882 -> 960 samples per 20ms).
func Resample(in []int16, outLen int) []int16 {
	if outLen <= 0 {
		return nil
	}
	out := make([]int16, outLen)
	if len(in) == 0 {
		return out
	}
	if len(in) == 1 || outLen == 1 {
		for i := range out {
			out[i] = in[0]
		}
		return out
	}

	step := float64(len(in)-1) / float64(outLen-1)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(idx)
		v := float64(in[idx])*(1-frac) + float64(in[idx+1])*frac
		out[i] = clip16(v)
	}
	return out
}

// OpusFrameSize is the 48kHz sample count of one FrameDuration.
const OpusFrameSize = 960

// OpusSampleRate is the rate frames are resampled to before Opus encoding.
const OpusSampleRate = 48000
