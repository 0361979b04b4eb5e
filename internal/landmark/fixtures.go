package landmark

// Gesture labels as reported by the MediaPipe gesture recognizer.
const (
	GestureNone       = "None"
	GesturePointingUp = "Pointing_Up"
	GestureClosedFist = "Closed_Fist"
	GestureOpenPalm   = "Open_Palm"
	GestureThumbUp    = "Thumb_Up"
)

// curledFingers sets middle, ring and pinky fingers curled toward the palm.
func curledFingers(lm *Hand) {
	lm.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.68, Z: -0.02}
	lm.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.66, Z: -0.05}
	lm.Points[MiddleDIP] = Point3D{X: 0.47, Y: 0.68, Z: -0.04}
	lm.Points[MiddleTip] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}

	lm.Points[RingMCP] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}
	lm.Points[RingPIP] = Point3D{X: 0.45, Y: 0.68, Z: -0.05}
	lm.Points[RingDIP] = Point3D{X: 0.42, Y: 0.70, Z: -0.04}
	lm.Points[RingTip] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}

	lm.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}
	lm.Points[PinkyPIP] = Point3D{X: 0.40, Y: 0.70, Z: -0.05}
	lm.Points[PinkyDIP] = Point3D{X: 0.37, Y: 0.72, Z: -0.04}
	lm.Points[PinkyTip] = Point3D{X: 0.35, Y: 0.74, Z: -0.02}
}

// tuckedThumb folds the thumb across the palm.
func tuckedThumb(lm *Hand) {
	lm.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.76, Z: 0.0}
	lm.Points[ThumbMCP] = Point3D{X: 0.57, Y: 0.72, Z: -0.01}
	lm.Points[ThumbIP] = Point3D{X: 0.56, Y: 0.68, Z: -0.03}
	lm.Points[ThumbTip] = Point3D{X: 0.53, Y: 0.66, Z: -0.04}
}

// ThumbsUpLandmarks returns a preset Hand representing a thumbs up gesture.
// The thumb is extended upward while other fingers are curled.
func ThumbsUpLandmarks() Hand {
	lm := Hand{
		Handedness: "Right",
		Score:      0.95,
	}

	lm.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended upward (Y decreases going up)
	lm.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.0}
	lm.Points[ThumbMCP] = Point3D{X: 0.58, Y: 0.65, Z: 0.0}
	lm.Points[ThumbIP] = Point3D{X: 0.58, Y: 0.50, Z: 0.0}
	lm.Points[ThumbTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	lm.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.70, Z: -0.02}
	lm.Points[IndexPIP] = Point3D{X: 0.55, Y: 0.68, Z: -0.05}
	lm.Points[IndexDIP] = Point3D{X: 0.52, Y: 0.70, Z: -0.04}
	lm.Points[IndexTip] = Point3D{X: 0.50, Y: 0.72, Z: -0.02}

	curledFingers(&lm)
	return lm
}

// PointingLandmarks returns a preset Hand with only the index finger extended.
func PointingLandmarks() Hand {
	lm := Hand{
		Handedness: "Right",
		Score:      0.95,
	}

	lm.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}
	tuckedThumb(&lm)

	lm.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	lm.Points[IndexPIP] = Point3D{X: 0.56, Y: 0.55, Z: 0.0}
	lm.Points[IndexDIP] = Point3D{X: 0.565, Y: 0.45, Z: 0.0}
	lm.Points[IndexTip] = Point3D{X: 0.57, Y: 0.36, Z: 0.0}

	curledFingers(&lm)
	return lm
}

// FistLandmarks returns a preset Hand with every finger and the thumb curled.
func FistLandmarks() Hand {
	lm := ThumbsUpLandmarks()
	tuckedThumb(&lm)
	return lm
}

// OpenPalmLandmarks returns a preset Hand representing an open palm gesture.
// All fingers are extended outward.
func OpenPalmLandmarks() Hand {
	lm := Hand{
		Handedness: "Right",
		Score:      0.95,
	}

	lm.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended to the side
	lm.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	lm.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	lm.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	lm.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	lm.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	lm.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	lm.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	lm.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	lm.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	lm.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	lm.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	lm.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	lm.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	lm.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	lm.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	lm.Points[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	lm.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	lm.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	lm.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	lm.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return lm
}
