package quanta

type (
	// Decoder is a streaming module decoder, e.g. a tracker module player. It
	// is pulled from the render goroutine and may produce audio in chunks of
	// its own preferred size.
	Decoder interface {
		// Decode writes up to len(buf) frames and returns how many it wrote.
		// Returning 0 means the decoder has nothing more to give.
		Decode(buf AudioBuffer) int
		// Rewind restarts the module from the beginning.
		Rewind()
	}

	// DecoderFactory parses module data into a Decoder producing audio at the
	// given sample rate.
	DecoderFactory func(data []byte, sampleRate int) (Decoder, error)
)
