package schemas

// -- Synthetic Mouse Events --

// MouseEventType is the DOM event name dispatched on the target element.
type MouseEventType string

const (
	MouseDown  MouseEventType = "mousedown"
	MouseUp    MouseEventType = "mouseup"
	MouseClick MouseEventType = "click"
)

// PrimaryButtonMask is the MouseEvent.buttons bit for the primary button.
const PrimaryButtonMask int64 = 1

// MouseEventData describes one synthetic MouseEvent. It is serialized to JSON
// and replayed by the in-page dispatcher with new MouseEvent(type, init).
type MouseEventData struct {
	Type       MouseEventType `json:"type"`
	ClientX    float64        `json:"clientX"`
	ClientY    float64        `json:"clientY"`
	Buttons    int64          `json:"buttons"`
	Bubbles    bool           `json:"bubbles"`
	Cancelable bool           `json:"cancelable"`
}

// ClickSequence is the press, release, click triple delivered for every step.
func ClickSequence(x, y float64) []MouseEventData {
	types := []MouseEventType{MouseDown, MouseUp, MouseClick}
	events := make([]MouseEventData, 0, len(types))
	for _, t := range types {
		events = append(events, MouseEventData{
			Type:       t,
			ClientX:    x,
			ClientY:    y,
			Buttons:    PrimaryButtonMask,
			Bubbles:    true,
			Cancelable: true,
		})
	}
	return events
}

// Point is a viewport position in CSS pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
