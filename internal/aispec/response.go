// Package aispec parses assistant build responses and turns component specs into
// ready-to-insert instances.
package aispec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"pagecraft/internal/catalog"
	"pagecraft/internal/styles"
)

// MaxResponseBytes caps a raw assistant response.
const MaxResponseBytes = 1 << 20

// MaxDepth caps component nesting in a create response.
const MaxDepth = 32

type Action string

const (
	ActionCreate        Action = "create"
	ActionUpdate        Action = "update"
	ActionGenerateImage Action = "generate-image"
	ActionDelete        Action = "delete"
)

// ErrMalformed wraps every rejection of an assistant response.
var ErrMalformed = errors.New("malformed assistant response")

type ResponsiveStyles struct {
	Tablet map[string]string `json:"tablet,omitempty" yaml:"tablet,omitempty" validate:"omitempty,styleprops"`
	Mobile map[string]string `json:"mobile,omitempty" yaml:"mobile,omitempty" validate:"omitempty,styleprops"`
}

type ComponentSpec struct {
	Type             string            `json:"type" yaml:"type" validate:"required"`
	Label            string            `json:"label,omitempty" yaml:"label,omitempty"`
	Props            map[string]any    `json:"props,omitempty" yaml:"props,omitempty"`
	Styles           map[string]string `json:"styles,omitempty" yaml:"styles,omitempty" validate:"omitempty,styleprops"`
	ResponsiveStyles *ResponsiveStyles `json:"responsiveStyles,omitempty" yaml:"responsiveStyles,omitempty"`
	Children         []ComponentSpec   `json:"children,omitempty" yaml:"children,omitempty" validate:"omitempty,dive"`
}

type Update struct {
	TargetID         string            `json:"targetId" yaml:"targetId" validate:"required"`
	Styles           map[string]string `json:"styles,omitempty" yaml:"styles,omitempty" validate:"omitempty,styleprops"`
	ResponsiveStyles *ResponsiveStyles `json:"responsiveStyles,omitempty" yaml:"responsiveStyles,omitempty"`
	Props            map[string]any    `json:"props,omitempty" yaml:"props,omitempty"`
}

type ImageSpec struct {
	Prompt          string `json:"prompt" yaml:"prompt" validate:"required"`
	Type            string `json:"type" yaml:"type" validate:"required"`
	Style           string `json:"style,omitempty" yaml:"style,omitempty"`
	TargetComponent string `json:"targetComponent,omitempty" yaml:"targetComponent,omitempty"`
}

type Response struct {
	Action     Action          `json:"action" yaml:"action" validate:"required,oneof=create update generate-image delete"`
	Components []ComponentSpec `json:"components,omitempty" yaml:"components,omitempty" validate:"omitempty,dive"`
	Updates    []Update        `json:"updates,omitempty" yaml:"updates,omitempty" validate:"omitempty,dive"`
	ImageSpec  *ImageSpec      `json:"imageSpec,omitempty" yaml:"imageSpec,omitempty" validate:"omitempty"`
	Message    string          `json:"message" yaml:"message"`
}

var responseValidate *validator.Validate

func init() {
	responseValidate = validator.New()
	// styleprops rejects empty or whitespace-only property names in a declaration map.
	_ = responseValidate.RegisterValidation("styleprops", func(fl validator.FieldLevel) bool {
		decls, ok := fl.Field().Interface().(map[string]string)
		return ok && styles.CheckDeclarations(decls) == nil
	})
}

// Parse decodes and validates raw as a single response. Nothing is returned unless the
// whole response is valid: the JSON shape, the per-action required fields and every
// component type (checked against cat).
func Parse(raw []byte, cat *catalog.Catalog) (*Response, error) {
	if len(raw) > MaxResponseBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrMalformed, MaxResponseBytes)
	}
	body := extractJSON(raw)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrMalformed)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	var resp Response
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after response", ErrMalformed)
	}
	resp.Action = Action(strings.TrimSpace(string(resp.Action)))

	if err := responseValidate.Struct(resp); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, describe(err))
	}

	switch resp.Action {
	case ActionCreate:
		if len(resp.Components) == 0 {
			return nil, fmt.Errorf("%w: create response has no components", ErrMalformed)
		}
		if cat == nil {
			cat = catalog.Default()
		}
		for i := range resp.Components {
			if err := checkComponent(resp.Components[i], cat, fmt.Sprintf("components[%d]", i), 1); err != nil {
				return nil, err
			}
		}
	case ActionUpdate:
		if len(resp.Updates) == 0 {
			return nil, fmt.Errorf("%w: update response has no updates", ErrMalformed)
		}
	case ActionGenerateImage:
		if resp.ImageSpec == nil {
			return nil, fmt.Errorf("%w: generate-image response has no imageSpec", ErrMalformed)
		}
	}
	return &resp, nil
}

func checkComponent(c ComponentSpec, cat *catalog.Catalog, path string, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("%w: %s nests deeper than %d", ErrMalformed, path, MaxDepth)
	}
	if !cat.Has(c.Type) {
		return fmt.Errorf("%w: %s: unknown component type %q", ErrMalformed, path, c.Type)
	}
	if len(c.Children) > 0 && !cat.IsContainer(c.Type) {
		return fmt.Errorf("%w: %s: %s cannot have children", ErrMalformed, path, c.Type)
	}
	for i := range c.Children {
		if err := checkComponent(c.Children[i], cat, fmt.Sprintf("%s.children[%d]", path, i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

// extractJSON trims whitespace and an optional markdown code fence around the payload.
func extractJSON(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = ""
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return []byte(strings.TrimSpace(s))
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
