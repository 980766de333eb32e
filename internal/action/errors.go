package action

import "fmt"

// Shape names the structure a piece of model output was expected to have.
type Shape string

const (
	ShapeAction     Shape = "action"
	ShapeAsk        Shape = "ask"
	ShapeGuess      Shape = "guess"
	ShapeAnswer     Shape = "answer"
	ShapeAssessment Shape = "assessment"
)

// SchemaError reports model output that does not conform to the expected
// shape after all repair passes.
type SchemaError struct {
	Shape  Shape
	Raw    string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s schema: %s", e.Shape, e.Reason)
}

// EmptyContent reports a model response with no usable text.
type EmptyContent struct {
	Shape Shape
}

func (e *EmptyContent) Error() string {
	return fmt.Sprintf("empty model content for %s", e.Shape)
}

// Rejectf builds a SchemaError for semantic checks layered on top of the
// structural ones (duplicate questions, unexpected variants).
func Rejectf(shape Shape, raw, format string, args ...interface{}) *SchemaError {
	return &SchemaError{Shape: shape, Raw: raw, Reason: fmt.Sprintf(format, args...)}
}
