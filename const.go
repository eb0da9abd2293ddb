package avifgain

const (
	sdrWhiteNits = 203.0
	pqMaxNits    = 10000.0
	hlgMaxNits   = 1000.0
)

const (
	// Default epsilon added to linear samples before the log2 gain ratio,
	// stored exactly as 1/64.
	defaultOffsetN = 1
	defaultOffsetD = 64

	defaultGainMapGamma = 1.0
)
