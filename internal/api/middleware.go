package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Role is the access level a static API token grants
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// roleRank orders roles; higher ranks satisfy lower requirements
var roleRank = map[Role]int{
	RoleOperator: 1,
	RoleAdmin:    2,
}

// requireRole authenticates the bearer token and enforces a minimum role
func (s *Server) requireRole(minimum Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		role, ok := s.tokens[token]
		if !ok {
			s.logger.Warn("Rejected request with unknown token",
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr))
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if roleRank[role] < roleRank[minimum] {
			writeError(w, http.StatusForbidden, "insufficient role")
			return
		}

		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
