package session

import (
	"strings"

	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

const (
	RouteHome     = "/"
	RouteLogin    = "/login"
	RoutePricing  = "/pricing"
	RouteRecord   = "/record"
	RouteSettings = "/settings"
	RouteHistory  = "/history"
)

// RoutePlanSelection is where users without a plan are sent
const RoutePlanSelection = RoutePricing

var protectedRoutes = map[string]bool{
	RouteRecord:   true,
	RouteSettings: true,
	RouteHistory:  true,
	RoutePricing:  true,
}

// NormalizeRoute drops the query, fragment and trailing slash
func NormalizeRoute(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return RouteHome
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = RouteHome
		}
	}
	return path
}

// IsProtected reports whether anonymous users are kept off path
func IsProtected(path string) bool {
	return protectedRoutes[NormalizeRoute(path)]
}

// RedirectTarget returns the route a settled session must move to, or "" when
// no navigation is needed. The result never equals the current route.
func RedirectTarget(authenticated bool, profile *models.UserProfile, pathname string) string {
	current := NormalizeRoute(pathname)

	target := ""
	switch {
	case authenticated && profile != nil && !profile.PlanSelected:
		target = RoutePlanSelection
	case authenticated && profile != nil:
		if current == RouteLogin || current == RouteHome || current == RoutePlanSelection {
			target = RouteRecord
		}
	case !authenticated && protectedRoutes[current]:
		target = RouteLogin
	}

	if target == current {
		return ""
	}
	return target
}
