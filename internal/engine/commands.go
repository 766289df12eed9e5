package engine

// DrawCommand is a single drawing operation for a Canvas2D frontend. A list
// of them paints the scene back to front.
type DrawCommand struct {
	Op          string        `json:"op"`                    // "background", "image", "path", "text"
	ObjectID    string        `json:"objectId,omitempty"`    // for hit correlation
	Transform   []float64     `json:"transform,omitempty"`   // [a, b, c, d, e, f]
	Path        []PathCommand `json:"path,omitempty"`        // "path" ops
	Fill        string        `json:"fill,omitempty"`        // fill colour
	Width       float64       `json:"width,omitempty"`       // "background" size, "text" box width
	Height      float64       `json:"height,omitempty"`      // "background" size
	Text        *TextLayout   `json:"text,omitempty"`        // "text" ops
	ImageWidth  float64       `json:"imageWidth,omitempty"`  // "image" natural size
	ImageHeight float64       `json:"imageHeight,omitempty"` // "image" natural size
	Selected    bool          `json:"selected,omitempty"`
}

// CompileDrawCommands flattens a display list into draw commands in
// painter's order. IDs in selected are flagged so the frontend can draw
// selection handles.
func CompileDrawCommands(list *DisplayList, selected []string) []DrawCommand {
	if list == nil {
		return nil
	}

	isSelected := make(map[string]bool, len(selected))
	for _, id := range selected {
		isSelected[id] = true
	}

	commands := make([]DrawCommand, 0, len(list.Nodes)+1)
	commands = append(commands, DrawCommand{
		Op:     "background",
		Fill:   list.Background,
		Width:  float64(list.Width),
		Height: float64(list.Height),
	})

	for _, node := range list.Nodes {
		switch node.Kind {
		case NodeBackground:
			commands = append(commands, DrawCommand{
				Op:          "image",
				Transform:   node.World.ToSlice(),
				ImageWidth:  node.ImageWidth,
				ImageHeight: node.ImageHeight,
			})
		case NodePath:
			if len(node.Path) == 0 {
				continue
			}
			commands = append(commands, DrawCommand{
				Op:        "path",
				ObjectID:  node.ID,
				Transform: node.World.ToSlice(),
				Path:      node.Path,
				Fill:      node.Fill,
				Selected:  isSelected[node.ID],
			})
		case NodeText:
			commands = append(commands, DrawCommand{
				Op:        "text",
				ObjectID:  node.ID,
				Transform: node.World.ToSlice(),
				Fill:      node.Fill,
				Width:     node.Local.Width,
				Text:      node.Text,
				Selected:  isSelected[node.ID],
			})
		}
	}
	return commands
}

// HitTest returns the ID of the frontmost selectable object under (x, y),
// or "" when the point hits nothing but the background.
func HitTest(list *DisplayList, x, y float64) string {
	if list == nil {
		return ""
	}
	for i := len(list.Nodes) - 1; i >= 0; i-- {
		node := list.Nodes[i]
		if node.Kind == NodeBackground || !node.Selectable {
			continue
		}
		inv, ok := node.World.Invert()
		if !ok {
			continue
		}
		lx, ly := inv.TransformPoint(x, y)
		if node.Local.Contains(lx, ly) {
			return node.ID
		}
	}
	return ""
}

// SelectionBounds returns the combined world box of the given objects.
func SelectionBounds(list *DisplayList, objectIDs []string) Rect {
	if list == nil {
		return Rect{}
	}
	var result Rect
	for _, id := range objectIDs {
		node, ok := list.NodesByID[id]
		if !ok || node.Bounds.IsEmpty() {
			continue
		}
		result = result.Union(node.Bounds)
	}
	return result
}
