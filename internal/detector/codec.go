package detector

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ayusman/airpointer/internal/gesture"
	"github.com/ayusman/airpointer/internal/landmark"
)

// writeRequest frames one classification request: an 8-byte big-endian
// timestamp, a 4-byte big-endian length, then the JPEG bytes.
func writeRequest(w io.Writer, tsMs int64, jpeg []byte) error {
	header := make([]byte, 12)
	binary.BigEndian.PutUint64(header[:8], uint64(tsMs))
	binary.BigEndian.PutUint32(header[8:], uint32(len(jpeg)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(jpeg); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

type response struct {
	Hands []jsonHand `json:"hands"`
	Error string     `json:"error,omitempty"`
}

// jsonHand represents the JSON structure from the classifier service.
type jsonHand struct {
	Points       []jsonPoint `json:"points"`
	Handedness   string      `json:"handedness"`
	Score        float64     `json:"score"`
	Gesture      string      `json:"gesture"`
	GestureScore float64     `json:"gesture_score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (h jsonHand) toHand() landmark.Hand {
	hand := landmark.Hand{
		Handedness:   h.Handedness,
		Score:        h.Score,
		Gesture:      h.Gesture,
		GestureScore: h.GestureScore,
	}
	for i := 0; i < landmark.NumLandmarks && i < len(h.Points); i++ {
		hand.Points[i] = landmark.Point3D{X: h.Points[i].X, Y: h.Points[i].Y, Z: h.Points[i].Z}
	}
	return hand
}

// decodeResponse parses one response line. Hands below minScore or with an
// incomplete skeleton are dropped, and hands the service did not label get
// a geometric label.
func decodeResponse(line []byte, minScore float64) ([]landmark.Hand, error) {
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("classifier: %s", resp.Error)
	}

	hands := make([]landmark.Hand, 0, len(resp.Hands))
	for _, h := range resp.Hands {
		if len(h.Points) < landmark.NumLandmarks || h.Score < minScore {
			continue
		}
		hands = append(hands, h.toHand())
	}
	gesture.Ensure(hands)
	return hands, nil
}
