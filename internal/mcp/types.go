package mcp

// StatusInput is the input for the mss_status tool.
type StatusInput struct{}

// StatusOutput is the output for the mss_status tool.
type StatusOutput struct {
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
	Complete     bool     `json:"complete"`
}

// SpaceFocusInput is the input for the space_focus tool.
type SpaceFocusInput struct {
	SpaceID uint64 `json:"space_id" jsonschema:"required,Space id to switch to"`
}

// WindowMoveInput is the input for the window_move tool.
type WindowMoveInput struct {
	WindowID uint32 `json:"window_id" jsonschema:"required,Window server id of the window"`
	X        int32  `json:"x" jsonschema:"required,Global x coordinate"`
	Y        int32  `json:"y" jsonschema:"required,Global y coordinate"`
}

// WindowOpacityInput is the input for the window_opacity tool.
type WindowOpacityInput struct {
	WindowID   uint32  `json:"window_id" jsonschema:"required,Window server id of the window"`
	Opacity    float32 `json:"opacity" jsonschema:"required,Target opacity from 0 (transparent) to 1 (opaque)"`
	DurationMS int     `json:"duration_ms,omitempty" jsonschema:"Fade duration in milliseconds (default: 0, immediate)"`
}

// WindowLayerInput is the input for the window_layer tool.
type WindowLayerInput struct {
	WindowID uint32 `json:"window_id" jsonschema:"required,Window server id of the window"`
	Layer    string `json:"layer" jsonschema:"required,One of below, normal, above"`
}

// WindowStickyInput is the input for the window_sticky tool.
type WindowStickyInput struct {
	WindowID uint32 `json:"window_id" jsonschema:"required,Window server id of the window"`
	Sticky   bool   `json:"sticky" jsonschema:"required,True to show the window on every space"`
}

// WindowFocusInput is the input for the window_focus tool.
type WindowFocusInput struct {
	WindowID uint32 `json:"window_id" jsonschema:"required,Window server id of the window"`
}

// WindowToSpaceInput is the input for the window_to_space tool.
type WindowToSpaceInput struct {
	WindowID uint32 `json:"window_id" jsonschema:"required,Window server id of the window"`
	SpaceID  uint64 `json:"space_id" jsonschema:"required,Destination space id"`
}

// DisplayListInput is the input for the display_list tool.
type DisplayListInput struct{}

// DisplayListOutput is the output for the display_list tool.
type DisplayListOutput struct {
	Displays []uint32 `json:"displays"`
}

// ActionOutput is the output for tools that change state.
type ActionOutput struct {
	OK bool `json:"ok"`
}
