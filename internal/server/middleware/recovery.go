package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"rewards-engine/internal/common"
)

// Recovery turns a handler panic into a logged 500 instead of a dropped
// connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithFields(log.Fields{
					"component": "panic_recovery",
					"panic":     fmt.Sprintf("%v", rec),
					"path":      r.URL.Path,
					"stack":     string(debug.Stack()),
				}).Error("Panic in handler, recovered")
				common.WriteError(w, http.StatusInternalServerError, errors.New("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
