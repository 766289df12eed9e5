package editor

import (
	"errors"
	"fmt"

	"github.com/captionist/captionist/internal/scene"
)

var (
	ErrEmptyCaption     = errors.New("caption is empty")
	ErrNoSelection      = errors.New("no objects selected")
	ErrSessionNotReady  = errors.New("editing session is not ready")
	ErrAlreadyLoaded    = errors.New("background image already requested")
	ErrNoImage          = errors.New("no image provided")
	ErrInvalidImageURL  = errors.New("invalid image url")
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image exceeds size limit")
	ErrImageDimensions  = errors.New("image exceeds pixel limit")
	ErrForbiddenHost    = errors.New("image host is not publicly routable")
	ErrUnknownObject    = errors.New("unknown object")
	ErrNotEditable      = errors.New("object is not editable text")
	ErrInvalidTransform = errors.New("invalid transform")
	ErrEditorNotFound   = errors.New("editor not found")

	ErrUnknownShapeKind = scene.ErrUnknownShapeKind
)

// DecodeError reports a background image that could not be fetched or
// decoded. The session stays usable without a background.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("load image %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Message returns the text shown to the user for err.
func Message(err error) string {
	var decodeErr *DecodeError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyCaption):
		return "Please enter some text"
	case errors.Is(err, ErrNoSelection):
		return "No objects selected"
	case errors.Is(err, ErrNoImage):
		return "No image provided"
	case errors.Is(err, ErrInvalidImageURL):
		return "Invalid image link"
	case errors.As(err, &decodeErr):
		return "Failed to load image"
	case errors.Is(err, ErrSessionNotReady):
		return "The editor is still loading"
	case errors.Is(err, ErrUnknownShapeKind):
		return "Unknown shape"
	}
	return err.Error()
}
