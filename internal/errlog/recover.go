package errlog

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
)

type panicBody struct {
	Success bool       `json:"success"`
	Error   panicError `json:"error"`
}

type panicError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Notice  Notice `json:"notice"`
}

// Recover turns a panic in next into a logged uncaught record and a 500.
func (h *Handler) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			h.LogPanic(r.Context(), v, debug.Stack(), map[string]string{
				"method": r.Method,
				"path":   r.URL.Path,
			})

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(panicBody{
				Error: panicError{
					Kind:    "unexpected",
					Message: "Something went wrong.",
					Notice:  h.NoticeFor(nil),
				},
			})
		}()
		next.ServeHTTP(w, r)
	})
}

// Go runs fn in a goroutine, recording a panic or a returned error.
func (h *Handler) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	go func() {
		defer func() {
			if v := recover(); v != nil {
				h.LogPanic(ctx, v, debug.Stack(), map[string]string{"task": name})
			}
		}()
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			h.LogError(ctx, err, map[string]string{"task": name})
		}
	}()
}
