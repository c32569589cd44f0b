package models

// UIElement is one node of a render tree. The backend treats trees as opaque
// payload; the "type" key names the element for the renderer.
type UIElement map[string]any

const (
	ElementLabel    = "Label"
	ElementOutput   = "Output"
	ElementFrame    = "Frame"
	ElementButton   = "Button"
	ElementInput    = "Input"
	ElementEditable = "Editable"
	ElementCheckbox = "Checkbox"
	ElementEmbed    = "Embed"
	ElementTable    = "Table"
)

const (
	AxisRow    = "row"
	AxisColumn = "column"
)

func element(kind string, props map[string]any) UIElement {
	out := UIElement{"type": kind}
	for k, v := range props {
		out[k] = v
	}
	return out
}

// With returns a copy of e with key set to value.
func (e UIElement) With(key string, value any) UIElement {
	out := make(UIElement, len(e)+1)
	for k, v := range e {
		out[k] = v
	}
	out[key] = value
	return out
}

func (e UIElement) Type() string {
	kind, _ := e["type"].(string)
	return kind
}

func Label(text string) UIElement {
	return element(ElementLabel, map[string]any{"text": text})
}

func Output(model string) UIElement {
	return element(ElementOutput, map[string]any{"model": model})
}

func Frame(axis string, children ...UIElement) UIElement {
	if children == nil {
		children = []UIElement{}
	}
	return element(ElementFrame, map[string]any{"axis": axis, "children": children})
}

// Button triggers onClick, an encoded action id, when pressed.
func Button(text, onClick string) UIElement {
	return element(ElementButton, map[string]any{"text": text, "onClick": onClick})
}

// LinkButton navigates to a route instead of triggering an action.
func LinkButton(text, to string) UIElement {
	return element(ElementButton, map[string]any{"text": text, "to": to})
}

func Input(model string) UIElement {
	return element(ElementInput, map[string]any{"model": model})
}

// Editable is an input that triggers onChange with its name as the sender.
func Editable(model, onChange, name string) UIElement {
	return element(ElementEditable, map[string]any{"model": model, "onChange": onChange, "name": name})
}

func Checkbox(model, onChange, name string) UIElement {
	return element(ElementCheckbox, map[string]any{"model": model, "onChange": onChange, "name": name})
}

// Embed opens a nested session for route, resolved relative to the
// embedding session's route by the renderer.
func Embed(route string) UIElement {
	return element(ElementEmbed, map[string]any{"route": route})
}

// TableColumn describes one column of a Table. Kind selects the cell editor
// ("text" or "checkbox").
type TableColumn struct {
	Prop  string `json:"prop"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

// Table renders every entry of the record at model as a row. Edits trigger
// onChange with the cell's model reference as the sender.
func Table(model, onChange string, columns ...TableColumn) UIElement {
	if columns == nil {
		columns = []TableColumn{}
	}
	return element(ElementTable, map[string]any{"model": model, "onChange": onChange, "columns": columns})
}
