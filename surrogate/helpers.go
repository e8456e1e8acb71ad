package surrogate

import (
	"fmt"
	"net/http"
	"strings"
)

// FromPath derives a surrogate key from the request path.
// Example: /api/products/123/ -> "path-api-products-123".
func FromPath(r *http.Request) string {
	path := strings.Trim(r.URL.Path, "/")
	path = strings.ReplaceAll(path, "/", "-")
	if path == "" {
		path = "root"
	}
	return "path-" + path
}

// FromView names a handler-scoped surrogate key, e.g. FromView("product_detail").
func FromView(name string) string {
	return "view-" + name
}

// FromModel keys an entity type, optionally a single record.
//
//	FromModel("Product", nil) -> "model-product"
//	FromModel("Product", 123) -> "model-product-123"
func FromModel(model string, pk any) string {
	key := "model-" + strings.ToLower(model)
	if pk != nil {
		key = fmt.Sprintf("%s-%v", key, pk)
	}
	return key
}

// FromUser keys the authenticated principal, e.g. FromUser(42) -> "user-42".
// Returns "" for a nil or empty id so anonymous requests contribute no key
// (empty keys are dropped during resolution).
func FromUser(id any) string {
	if id == nil {
		return ""
	}
	s := fmt.Sprintf("%v", id)
	if s == "" {
		return ""
	}
	return "user-" + s
}

// FromQueryParams derives one key per named query parameter present on the
// request; with no names given, every parameter contributes.
// Example: ?category=shoes&brand=nike -> ["param-category-shoes", "param-brand-nike"].
func FromQueryParams(r *http.Request, params ...string) []string {
	q := r.URL.Query()
	target := params
	if len(target) == 0 {
		target = make([]string, 0, len(q))
		for name := range q {
			target = append(target, name)
		}
	}

	keys := make([]string, 0, len(target))
	for _, name := range target {
		if v := q.Get(name); v != "" {
			keys = append(keys, "param-"+name+"-"+v)
		}
	}
	return keys
}
