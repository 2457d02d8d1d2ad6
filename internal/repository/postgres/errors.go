package postgres

import (
	"errors"
	"strings"

	"project-service/internal/domain/identity"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE raised by the identities username index.
const uniqueViolation = "23505"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// usernamePrefix turns a list query into a LIKE pattern matching usernames
// that start with it. Wildcards in the query match literally.
func usernamePrefix(query string) string {
	return likeEscaper.Replace(identity.NormalizeUsername(query)) + "%"
}
