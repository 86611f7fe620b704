package web

import "fmt"

// Route names used by handlers and templates. Paths live only in the table.
const (
	RouteHome         = "home"
	RouteDashboard    = "dashboard"
	RouteProducts     = "products"
	RouteLogin        = "login"
	RouteRegister     = "register"
	RouteLogout       = "logout"
	RouteVerifyNotice = "verification.notice"
)

type Route struct {
	Name string
	Path string
	// Protected routes need an authenticated, verified session.
	Protected bool
}

var routeTable = []Route{
	{Name: RouteHome, Path: "/"},
	{Name: RouteDashboard, Path: "/dashboard", Protected: true},
	{Name: RouteProducts, Path: "/products", Protected: true},
	{Name: RouteLogin, Path: "/login"},
	{Name: RouteRegister, Path: "/register"},
	{Name: RouteLogout, Path: "/logout"},
	{Name: RouteVerifyNotice, Path: "/verify-email"},
}

var routesByName = func() map[string]Route {
	m := make(map[string]Route, len(routeTable))
	for _, r := range routeTable {
		m[r.Name] = r
	}
	return m
}()

func LookupRoute(name string) (Route, bool) {
	r, ok := routesByName[name]
	return r, ok
}

// URL resolves a route name to its path. An unknown name is a wiring bug and
// panics.
func URL(name string) string {
	r, ok := LookupRoute(name)
	if !ok {
		panic(fmt.Sprintf("web: unknown route %q", name))
	}
	return r.Path
}

// Routes returns a copy of the route table in declaration order.
func Routes() []Route {
	out := make([]Route, len(routeTable))
	copy(out, routeTable)
	return out
}

type Breadcrumb struct {
	Title string
	Href  string
}

func crumb(title, route string) []Breadcrumb {
	return []Breadcrumb{{Title: title, Href: URL(route)}}
}
