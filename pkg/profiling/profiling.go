package profiling

import (
	"net/http/pprof"

	"github.com/labstack/echo/v4"
)

// Handler serves the Go runtime profiles for a route registered as
// "/debug/pprof/*". The wildcard selects the profile; an empty one serves
// the index page.
func Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		w, r := c.Response(), c.Request()

		switch c.Param("*") {
		case "cmdline":
			pprof.Cmdline(w, r)
		case "profile":
			pprof.Profile(w, r)
		case "symbol":
			pprof.Symbol(w, r)
		case "trace":
			pprof.Trace(w, r)
		default:
			// Index also serves named profiles such as heap and goroutine.
			pprof.Index(w, r)
		}
		return nil
	}
}
