package widget

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/koopa0/widgetd/internal/schema"
)

// Sentinel errors for configuration problems detected at compile time.
// All of them are fatal: the server must not start accepting
// connections with a broken definition list.
var (
	ErrEmptyComponent     = errors.New("widget component name is empty")
	ErrDuplicateComponent = errors.New("duplicate widget component")
	ErrMissingSchema      = errors.New("widget schema is required")
	ErrMissingHandler     = errors.New("widget handler is required")
)

// Meta is the compiled, immutable form of one widget definition.
type Meta struct {
	// Def is the definition with defaulted fields filled in.
	Def Definition

	// TemplateURI identifies the resource holding the widget markup.
	TemplateURI string

	// HTML is the rendered root-element and asset-reference markup.
	HTML string

	// InputSchema is the JSON Schema advertised for the tool.
	InputSchema *jsonschema.Schema
}

// AssetHash returns the fingerprint tying server-generated asset URLs
// to the separately built static files: the first 4 hex characters of
// SHA-256 over the version string. The build step computes the same
// value; there is no negotiation, so any drift shows up as 404s on
// the asset gateway.
func AssetHash(version string) string {
	sum := sha256.Sum256([]byte(version))
	return hex.EncodeToString(sum[:])[:4]
}

// Compile turns a definition list into per-widget metadata.
//
// For each widget it defaults RootElement to "<component>-root",
// HTMLSrc to "<baseURL>/<component>-<hash>.js" and CSSSrc to the .css
// equivalent, renders the markup, derives the template URI and
// translates the validation schema. It fails fast on the
// configuration errors above; this is the only validation performed
// before the server starts listening.
func Compile(defs []Definition, version, baseURL string) ([]*Meta, error) {
	hash := AssetHash(version)
	baseURL = strings.TrimSuffix(baseURL, "/")

	seen := make(map[string]struct{}, len(defs))
	metas := make([]*Meta, 0, len(defs))

	for _, def := range defs {
		if def.Component == "" {
			return nil, ErrEmptyComponent
		}
		if _, dup := seen[def.Component]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateComponent, def.Component)
		}
		seen[def.Component] = struct{}{}

		if def.Schema == nil {
			return nil, fmt.Errorf("%w: %q", ErrMissingSchema, def.Component)
		}
		if def.Handler == nil {
			return nil, fmt.Errorf("%w: %q", ErrMissingHandler, def.Component)
		}

		if def.RootElement == "" {
			def.RootElement = def.Component + "-root"
		}
		if def.HTMLSrc == "" {
			def.HTMLSrc = fmt.Sprintf("%s/%s-%s.js", baseURL, def.Component, hash)
		}
		if def.CSSSrc == "" {
			def.CSSSrc = fmt.Sprintf("%s/%s-%s.css", baseURL, def.Component, hash)
		}

		metas = append(metas, &Meta{
			Def:         def,
			TemplateURI: TemplateURI(def.Component),
			HTML:        renderHTML(def),
			InputSchema: schema.Translate(def.Schema),
		})
	}

	return metas, nil
}

// TemplateURI returns the resource URI for a component's markup.
func TemplateURI(component string) string {
	return "ui://widget/" + component + ".html"
}

// renderHTML produces the widget markup: container, optional
// stylesheet link, then the module script, in that fixed order.
func renderHTML(def Definition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<div id=%q></div>\n", def.RootElement)
	if def.CSSSrc != "" {
		fmt.Fprintf(&b, "<link rel=\"stylesheet\" href=%q>\n", def.CSSSrc)
	}
	fmt.Fprintf(&b, "<script type=\"module\" src=%q></script>\n", def.HTMLSrc)
	return b.String()
}
