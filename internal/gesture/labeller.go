// Package gesture derives discrete gesture labels from hand landmark geometry.
//
// The labeller is a fallback for classifiers that report landmarks without a
// gesture category. Labels use the MediaPipe gesture recognizer names so the
// interaction engine does not care which source produced them.
package gesture

import (
	"github.com/ayusman/airpointer/internal/landmark"
)

// Labelling thresholds, in palm-normalized units (wrist to middle MCP = 1).
const (
	// ExtensionRatio is how much farther from the wrist a fingertip must be
	// than its PIP joint for the finger to count as extended.
	ExtensionRatio = 1.2
	// ThumbReach is the minimum thumb tip to index MCP distance for the
	// thumb to count as extended.
	ThumbReach = 0.8
)

type finger struct {
	pip, tip int
}

var fingers = []finger{
	{landmark.IndexPIP, landmark.IndexTip},
	{landmark.MiddlePIP, landmark.MiddleTip},
	{landmark.RingPIP, landmark.RingTip},
	{landmark.PinkyPIP, landmark.PinkyTip},
}

// Pose summarises which digits of a hand are extended.
type Pose struct {
	Thumb  bool
	Index  bool
	Middle bool
	Ring   bool
	Pinky  bool
}

// Analyze measures finger extension on the normalized hand.
func Analyze(hand *landmark.Hand) Pose {
	normalized := hand.Normalize()
	if normalized == nil {
		return Pose{}
	}

	origin := landmark.Point3D{}
	extended := make([]bool, len(fingers))
	for i, f := range fingers {
		pip := landmark.Distance3D(origin, normalized.Points[f.pip])
		tip := landmark.Distance3D(origin, normalized.Points[f.tip])
		extended[i] = tip > pip*ExtensionRatio
	}

	thumb := landmark.Distance3D(normalized.Points[landmark.ThumbTip], normalized.Points[landmark.IndexMCP])

	return Pose{
		Thumb:  thumb > ThumbReach,
		Index:  extended[0],
		Middle: extended[1],
		Ring:   extended[2],
		Pinky:  extended[3],
	}
}

// Label returns the gesture name for the hand's pose, or landmark.GestureNone
// when the pose is not one of the recognised shapes.
func Label(hand *landmark.Hand) string {
	if hand == nil {
		return landmark.GestureNone
	}

	p := Analyze(hand)
	others := p.Middle || p.Ring || p.Pinky

	switch {
	case p.Index && !others:
		return landmark.GesturePointingUp
	case p.Index && p.Middle && p.Ring && p.Pinky:
		return landmark.GestureOpenPalm
	case !p.Index && !others && p.Thumb && thumbAbove(hand):
		return landmark.GestureThumbUp
	case !p.Index && !others:
		return landmark.GestureClosedFist
	}
	return landmark.GestureNone
}

// thumbAbove reports whether the thumb tip sits above the index knuckle in
// image coordinates (smaller Y is higher).
func thumbAbove(hand *landmark.Hand) bool {
	return hand.Points[landmark.ThumbTip].Y < hand.Points[landmark.IndexMCP].Y
}

// Ensure fills in the gesture label of every hand that arrived without one.
// Hands that already carry a label from the classifier are left untouched.
func Ensure(hands []landmark.Hand) {
	for i := range hands {
		if hands[i].Gesture == "" {
			hands[i].Gesture = Label(&hands[i])
		}
	}
}
