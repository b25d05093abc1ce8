package schemas

import "fmt"

// PickMode selects the synthesis strategy used when an element is picked.
type PickMode int

const (
	// ModeSimple always produces the full structural path.
	ModeSimple PickMode = iota
	// ModeSmart prefers ids, test hooks and short unique paths.
	ModeSmart
)

func (m PickMode) String() string {
	switch m {
	case ModeSimple:
		return "Simple"
	case ModeSmart:
		return "Smart"
	default:
		return fmt.Sprintf("PickMode(%d)", int(m))
	}
}

// ModeFromSmart maps the boolean toggle used by clients and settings.
func ModeFromSmart(smart bool) PickMode {
	if smart {
		return ModeSmart
	}
	return ModeSimple
}

// PickerEventKind is the kind of page interaction forwarded to the picker.
type PickerEventKind string

const (
	PickerHover PickerEventKind = "hover"
	PickerClick PickerEventKind = "click"
	PickerKey   PickerEventKind = "key"
)

// PickerEvent is reported by the page observers while picking. Ref names the
// event target inside the page; Key is set for key events only.
type PickerEvent struct {
	Kind PickerEventKind `json:"kind"`
	Ref  string          `json:"ref,omitempty"`
	Key  string          `json:"key,omitempty"`
}
