package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/session"
)

// SessionConfig configures the session cookie.
type SessionConfig struct {
	CookieName string
	// Secure marks the cookie HTTPS-only.
	Secure bool
}

// Session loads the connection's session from the cookie, or starts an
// anonymous one, and puts it in the request context. Changes are persisted
// before the response header is written so the client never sees a state
// the store does not hold. An unchanged session only has its idle timer
// refreshed. Logging in or out on an existing id moves the session to a new
// id and re-issues the cookie.
func Session(store session.Store, cfg SessionConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "gatehouse_session"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sess, err := loadSession(r, store, cfg.CookieName)
			if err != nil {
				logger.Error("failed to load session", "request_id", GetRequestID(ctx), "error", err)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
				return
			}
			issueCookie := false
			if sess == nil {
				id, err := auth.NewSessionID()
				if err != nil {
					logger.Error("failed to generate session id", "error", err)
					writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
					return
				}
				sess = session.New(id)
				issueCookie = true
			}

			sw := &sessionWriter{
				ResponseWriter: w,
				persist: func() error {
					// A login or logout on a client-supplied id moves the
					// record to a fresh id so a planted cookie is never
					// promoted.
					if sess.NeedsRotation() && !issueCookie {
						id, err := auth.NewSessionID()
						if err != nil {
							return fmt.Errorf("generate session id: %w", err)
						}
						if err := store.Delete(ctx, sess.ID()); err != nil {
							return fmt.Errorf("delete rotated session: %w", err)
						}
						sess.Rotate(id)
						issueCookie = true
					}

					if err := persistSession(ctx, store, sess); err != nil {
						return err
					}
					if issueCookie {
						http.SetCookie(w, &http.Cookie{
							Name:     cfg.CookieName,
							Value:    sess.ID(),
							Path:     "/",
							HttpOnly: true,
							Secure:   cfg.Secure,
							SameSite: http.SameSiteLaxMode,
						})
					}
					return nil
				},
				logger: logger,
			}

			next.ServeHTTP(sw, r.WithContext(auth.ContextWithSession(ctx, sess)))
			sw.commit()

			AddLogAttrs(ctx, slog.String("session_source", sess.Source().String()))
			if identity, ok := sess.Identity(); ok {
				AddLogAttrs(ctx, slog.String("identity", identity))
			}
		})
	}
}

func persistSession(ctx context.Context, store session.Store, sess *session.Session) error {
	if sess.Dirty() {
		return store.Save(ctx, sess)
	}
	err := store.Touch(ctx, sess.ID())
	if errors.Is(err, session.ErrNotFound) {
		return store.Save(ctx, sess)
	}
	return err
}

func loadSession(r *http.Request, store session.Store, cookieName string) (*session.Session, error) {
	cookie, err := r.Cookie(cookieName)
	if err != nil || !auth.ValidSessionID(cookie.Value) {
		return nil, nil
	}
	sess, err := store.Get(r.Context(), cookie.Value)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil
	}
	return sess, err
}

// sessionWriter persists the session on the first header write. If that
// fails the handler's response is replaced with a 500 and its body dropped.
type sessionWriter struct {
	http.ResponseWriter
	persist   func() error
	logger    *slog.Logger
	committed bool
	failed    bool
}

func (sw *sessionWriter) commit() bool {
	if sw.committed {
		return !sw.failed
	}
	sw.committed = true
	if err := sw.persist(); err != nil {
		sw.failed = true
		sw.logger.Error("failed to persist session", "error", err)
		writeError(sw.ResponseWriter, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return false
	}
	return true
}

func (sw *sessionWriter) WriteHeader(code int) {
	if sw.commit() {
		sw.ResponseWriter.WriteHeader(code)
	}
}

func (sw *sessionWriter) Write(b []byte) (int, error) {
	if !sw.commit() {
		return len(b), nil
	}
	return sw.ResponseWriter.Write(b)
}

// Flush persists the session before the header can leave.
func (sw *sessionWriter) Flush() {
	if sw.commit() {
		_ = http.NewResponseController(sw.ResponseWriter).Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *sessionWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}
