package qvec

// NoChannel marks a sample from a detector without channel structure
// (e.g. a tracking detector).
const NoChannel = -1

// DataSample is one detected hit: an azimuthal angle with its raw weight
// and, for channelized detectors, the channel it came from. Gain
// equalization writes EqualizedWeight; the raw weight and angle are never
// altered after collection.
type DataSample struct {
	ChannelID       int
	Phi             float64
	Weight          float64
	EqualizedWeight float64
}

// NewTrackSample builds a sample from a tracking detector: no channel,
// unit weight.
func NewTrackSample(phi float64) DataSample {
	return DataSample{ChannelID: NoChannel, Phi: phi, Weight: 1, EqualizedWeight: 1}
}

// NewChannelSample builds a sample from a channelized detector. The
// equalized weight starts equal to the raw weight until a gain
// equalization step rewrites it.
func NewChannelSample(channelID int, phi, weight float64) DataSample {
	return DataSample{ChannelID: channelID, Phi: phi, Weight: weight, EqualizedWeight: weight}
}
