package call

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// staticMedia is a sample-fed local source: one opus audio and one VP8
// video track. Device capture and encoding live outside this subsystem;
// whatever produces frames writes samples into these tracks.
type staticMedia struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample
}

// NewStaticMedia builds the default local media source.
func NewStaticMedia() (MediaSource, error) {
	streamID := uuid.NewString()
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("create video track: %w", err)
	}
	return &staticMedia{audio: audio, video: video}, nil
}

func (m *staticMedia) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{m.audio, m.video}
}

// Close is a no-op: sample tracks hold no device handles.
func (m *staticMedia) Close() {}
