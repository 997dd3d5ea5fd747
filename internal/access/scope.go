package access

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Scope parameter and header names understood by the remote store.
const (
	ParamTenantID    = "tenant_id"
	ParamOwnerUserID = "owner_user_id"
	ParamUserID      = "user_id"

	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// Row is one record as returned by the remote store.
type Row map[string]any

// Scope pre-filters outgoing queries and post-filters responses for an
// actor. The query-side filter is an optimisation; FilterResults is the
// enforcement point because the store may over-return rows.
type Scope struct {
	actor  Actor
	logger *slog.Logger
}

// NewScope returns the scope for actor.
func NewScope(actor Actor, logger *slog.Logger) Scope {
	return Scope{actor: actor, logger: logger}
}

// BuildQuery copies base and pins tenant and owner constraints. Values the
// caller supplied for those keys are overwritten.
func (s Scope) BuildQuery(base url.Values) url.Values {
	out := make(url.Values, len(base)+2)
	for k, v := range base {
		out[k] = append([]string(nil), v...)
	}
	if s.actor.Role == RoleSuperAdmin {
		return out
	}
	out.Set(ParamTenantID, s.actor.TenantID)
	if s.actor.Role == RoleInstructor {
		out.Set(ParamOwnerUserID, s.actor.ID)
	}
	return out
}

// BuildHeaders copies base and adds the actor identity headers.
func (s Scope) BuildHeaders(base http.Header) http.Header {
	out := base.Clone()
	if out == nil {
		out = make(http.Header)
	}
	if s.actor.TenantID != "" {
		out.Set(HeaderTenantID, s.actor.TenantID)
	}
	out.Set(HeaderUserID, s.actor.ID)
	out.Set(HeaderUserRole, string(s.actor.Role))
	return out
}

// FilterResults drops rows outside the actor's tenant and, below
// super_admin, rows the actor does not own. Rows missing a checked column
// are dropped.
func (s Scope) FilterResults(rows []Row, resourceType ResourceType) []Row {
	if s.actor.Role == RoleSuperAdmin {
		return rows
	}
	kept := make([]Row, 0, len(rows))
	for _, row := range rows {
		if !fieldEquals(row, ParamTenantID, s.actor.TenantID) {
			continue
		}
		switch s.actor.Role {
		case RoleInstructor:
			if !fieldEquals(row, ParamOwnerUserID, s.actor.ID) {
				continue
			}
		case RoleStudent:
			if !fieldEquals(row, ParamUserID, s.actor.ID) {
				continue
			}
		default:
			continue
		}
		kept = append(kept, row)
	}
	if dropped := len(rows) - len(kept); dropped > 0 && s.logger != nil {
		s.logger.Debug("scope dropped over-returned rows",
			slog.String("resource_type", string(resourceType)),
			slog.String("actor_id", s.actor.ID),
			slog.Int("dropped", dropped))
	}
	return kept
}

// Where renders params restricted to columns (param name → SQL column) as a
// conjunction of equality predicates with pgx placeholders starting at
// startArg. Params outside columns are ignored.
func (s Scope) Where(params url.Values, columns map[string]string, startArg int) (string, []any) {
	keys := make([]string, 0, len(params))
	for k := range params {
		if _, ok := columns[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		args = append(args, params.Get(k))
		clauses = append(clauses, fmt.Sprintf("%s = $%d", columns[k], startArg+len(args)-1))
	}
	return strings.Join(clauses, " AND "), args
}

// Actor returns the scoped actor.
func (s Scope) Actor() Actor {
	return s.actor
}

func fieldEquals(row Row, key, want string) bool {
	v, ok := row[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return t == want
	case fmt.Stringer:
		return t.String() == want
	}
	return fmt.Sprint(v) == want
}
