package cli

import "fmt"

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

// unchanged is the payload of commands whose target made the call a no-op.
func unchanged(id string) map[string]any {
	return map[string]any{"id": id, "changed": false}
}
