// Package navigation gates page navigation by authentication, role,
// subscription features and per-route guards.
package navigation

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/quizroom/quizroom/internal/access"
)

// Redirect targets produced by Enter.
const (
	PathNotFound         = "/404"
	PathLogin            = "/login"
	PathForbiddenRole    = "/forbidden?reason=role"
	PathForbiddenFeature = "/forbidden?reason=feature"
	PathForbiddenGuard   = "/forbidden?reason=guard"
)

// paramPrefix marks a pattern segment that captures the path segment.
const paramPrefix = ":"

// Route describes one page.
type Route struct {
	Name         string           `json:"name"`
	Page         string           `json:"page"`
	RequiresAuth bool             `json:"requiresAuth"`
	Roles        []access.Role    `json:"roles,omitempty"`
	Features     []access.Feature `json:"features,omitempty"`
}

// Match is a resolved path.
type Match struct {
	Path    string            `json:"path"`
	Pattern string            `json:"pattern"`
	Route   Route             `json:"route"`
	Params  map[string]string `json:"params,omitempty"`
}

// Guard may veto entering a route. Returning false blocks navigation.
type Guard func(ctx context.Context, m Match, actor *access.Actor) bool

// Outcome is the result of Enter. Redirect is empty when Allowed.
type Outcome struct {
	Allowed  bool   `json:"allowed"`
	Redirect string `json:"redirect,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Match    *Match `json:"match,omitempty"`
}

type entry struct {
	pattern  string
	segments []string
	route    Route
}

// Router resolves paths against registered routes. Registration order is
// preserved: the first matching pattern wins.
type Router struct {
	mu       sync.RWMutex
	exact    map[string]Route
	patterns []entry
	guards   map[string][]Guard
	features access.FeatureChecker
	logger   *slog.Logger
}

// NewRouter constructs a Router. features answers the feature gate; the
// access control's checker is the usual value.
func NewRouter(features access.FeatureChecker, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		exact:    make(map[string]Route),
		guards:   make(map[string][]Guard),
		features: features,
		logger:   logger,
	}
}

// Register adds a route. Paths containing ":name" segments are patterns.
func (r *Router) Register(path string, route Route) {
	path = normalize(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	segments := split(path)
	isPattern := false
	for _, s := range segments {
		if strings.HasPrefix(s, paramPrefix) {
			isPattern = true
			break
		}
	}
	if !isPattern {
		r.exact[path] = route
		return
	}
	r.patterns = append(r.patterns, entry{pattern: path, segments: segments, route: route})
}

// AddGuard appends a guard for the route registered at path.
func (r *Router) AddGuard(path string, guard Guard) {
	path = normalize(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards[path] = append(r.guards[path], guard)
}

// Resolve finds the route for path: exact routes first, then patterns in
// registration order.
func (r *Router) Resolve(path string) (Match, bool) {
	path = normalize(path)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if route, ok := r.exact[path]; ok {
		return Match{Path: path, Pattern: path, Route: route}, true
	}
	segments := split(path)
	for _, e := range r.patterns {
		if params, ok := matchSegments(e.segments, segments); ok {
			return Match{Path: path, Pattern: e.pattern, Route: e.route, Params: params}, true
		}
	}
	return Match{}, false
}

// Enter applies the gates in order: not found, authentication, role,
// features, guards. The first failing gate decides the redirect.
func (r *Router) Enter(ctx context.Context, path string, actor *access.Actor) Outcome {
	m, ok := r.Resolve(path)
	if !ok {
		return Outcome{Redirect: PathNotFound, Reason: "not found"}
	}
	authenticated := actor != nil && actor.Validate() == nil
	if m.Route.RequiresAuth && !authenticated {
		return Outcome{Redirect: PathLogin, Reason: "authentication required", Match: &m}
	}
	if len(m.Route.Roles) > 0 && (!authenticated || !hasRole(m.Route.Roles, actor.Role)) {
		return Outcome{Redirect: PathForbiddenRole, Reason: "role not permitted", Match: &m}
	}
	if len(m.Route.Features) > 0 {
		if !authenticated || r.features == nil {
			return Outcome{Redirect: PathForbiddenFeature, Reason: "feature not available", Match: &m}
		}
		granted, err := r.features.HasFeatures(ctx, *actor, m.Route.Features...)
		if err != nil {
			r.logger.Warn("feature check failed", slog.String("path", m.Path), slog.Any("error", err))
		}
		if err != nil || !granted {
			return Outcome{Redirect: PathForbiddenFeature, Reason: "feature not available", Match: &m}
		}
	}
	r.mu.RLock()
	guards := append([]Guard(nil), r.guards[m.Pattern]...)
	r.mu.RUnlock()
	for _, guard := range guards {
		if !guard(ctx, m, actor) {
			return Outcome{Redirect: PathForbiddenGuard, Reason: "blocked by guard", Match: &m}
		}
	}
	return Outcome{Allowed: true, Match: &m}
}

func matchSegments(pattern, path []string) (map[string]string, bool) {
	if len(pattern) != len(path) {
		return nil, false
	}
	params := make(map[string]string)
	for i, seg := range pattern {
		if name, ok := strings.CutPrefix(seg, paramPrefix); ok {
			if path[i] == "" {
				return nil, false
			}
			params[name] = path[i]
			continue
		}
		if seg != path[i] {
			return nil, false
		}
	}
	return params, true
}

func hasRole(roles []access.Role, role access.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = "/" + strings.Trim(path, "/")
	return path
}

func split(path string) []string {
	if path == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}
