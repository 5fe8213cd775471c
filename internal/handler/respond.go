package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Every operation answers with the same envelope: success, a user-facing
// message, and an optional data payload. Business-rule failures are
// success:false with HTTP 200; only system failures change the HTTP status.

// writeSuccess writes a success envelope, encoding data into the "data" key
// when it is non-nil.
func writeSuccess(w http.ResponseWriter, r *http.Request, data func(e *jx.Encoder)) {
	writeEnvelope(w, r, http.StatusOK, true, "ok", data)
}

// writeFailure writes a business-rule failure: HTTP 200, success:false, and
// the localized message.
func writeFailure(w http.ResponseWriter, r *http.Request, message string) {
	writeEnvelope(w, r, http.StatusOK, false, message, nil)
}

// writeError writes a system failure with the given HTTP status. The message
// is generic; details stay in the log.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeEnvelope(w, r, status, false, message, nil)
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, success bool, message string, data func(e *jx.Encoder)) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(success) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		if data != nil {
			e.Field("data", data)
		}
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(e.Bytes()); err != nil {
		zctx.From(r.Context()).Debug("write response", zap.Error(err))
	}
}
