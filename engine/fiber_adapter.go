package engine

import (
	"io"

	"github.com/gofiber/fiber/v2"
)

// FiberViewsAdapter implements fiber.Views by delegating to the Engine, so a
// Fiber app can serve theme pages with c.Render("index", ...).
type FiberViewsAdapter struct {
	Engine *Engine
}

// Render implements fiber.Views: Render(w io.Writer, name string, data interface{}, layout ...string) error.
// Fiber passes optional layout names as variadic args; the theme's own
// layout/ directory governs layout here, so they are ignored.
func (v *FiberViewsAdapter) Render(w io.Writer, name string, data interface{}, layout ...string) error {
	return v.Engine.Render(w, name, data)
}

// Load is an optional method in fiber.Views to warm templates; parsing is
// lazy and cached, so this is a no-op.
func (v *FiberViewsAdapter) Load() error {
	return nil
}

// RequestGlobals builds the per-request globals map from a Fiber context:
// the request object the templates see, plus the locale if the request
// carries one.
func RequestGlobals(c *fiber.Ctx, data map[string]interface{}) map[string]interface{} {
	globals := make(map[string]interface{}, len(data)+2)
	for k, v := range data {
		globals[k] = v
	}
	globals["request"] = map[string]interface{}{
		"host":        c.Hostname(),
		"path":        c.Path(),
		"design_mode": false,
		"locale": map[string]interface{}{
			"iso_code": c.Query("locale"),
		},
	}
	if locale := c.Query("locale"); locale != "" {
		globals["locale"] = locale
	}
	return globals
}

// PreviewPageHandler serves GET /:template as a rendered page. Intended for
// theme development, mounted next to the app's real routes.
func PreviewPageHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("template", "index")
		doc, err := e.RenderPageWithContext(name, RequestGlobals(c, nil))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		c.Type("html")
		return c.SendString(doc.HTML)
	}
}

// PreviewSectionHandler renders a single section type standalone, the way a
// theme editor fetches section updates.
func PreviewSectionHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sectionType := c.Params("type")
		html, err := e.RenderSection(sectionType, nil)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		c.Type("html")
		return c.SendString(html)
	}
}
