// Package server mounts a route registry onto the host gorilla/mux router.
// It is the real counterpart of the in-process engine: the same handler
// contract, with the reply capability implemented over http.ResponseWriter
// instead of a capture stub.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/apilink/apilink/internal/httputil"
	"github.com/apilink/apilink/internal/route"
	"github.com/apilink/apilink/pkg/logger"
)

const maxRequestBody = 8 << 20

// Mount registers every declaration of the registry onto the router.
// Declared :name path parameters become mux {name} variables.
func Mount(r *mux.Router, reg *route.Registry, log logger.Logger) {
	if log == nil {
		log = logger.Nop()
	}
	for _, rt := range reg.Routes() {
		r.HandleFunc(muxPath(rt.Path), handlerFor(rt, log)).Methods(rt.Method)
	}
}

// NewRouter builds a fresh router with the registry mounted.
func NewRouter(reg *route.Registry, log logger.Logger) *mux.Router {
	r := mux.NewRouter()
	Mount(r, reg, log)
	return r
}

// muxPath translates /projects/:id into /projects/{id}.
func muxPath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") {
			segments[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}

// writerReply implements route.Reply by writing to the response directly.
type writerReply struct {
	w          http.ResponseWriter
	statusCode int
	sent       bool
}

func (r *writerReply) Code(status int) route.Reply {
	r.statusCode = status
	return r
}

func (r *writerReply) Status(status int) route.Reply {
	return r.Code(status)
}

func (r *writerReply) Header(key, value string) route.Reply {
	r.w.Header().Set(key, value)
	return r
}

func (r *writerReply) Type(contentType string) route.Reply {
	return r.Header("Content-Type", contentType)
}

func (r *writerReply) Send(payload interface{}) {
	if r.sent {
		return
	}
	r.sent = true
	r.write(payload)
}

func (r *writerReply) write(payload interface{}) {
	switch body := payload.(type) {
	case nil:
		r.w.WriteHeader(r.statusCode)
	case []byte:
		r.w.WriteHeader(r.statusCode)
		_, _ = r.w.Write(body)
	case string:
		if r.w.Header().Get("Content-Type") == "" {
			r.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		r.w.WriteHeader(r.statusCode)
		_, _ = io.WriteString(r.w, body)
	default:
		if r.w.Header().Get("Content-Type") == "" {
			r.w.Header().Set("Content-Type", "application/json")
		}
		r.w.WriteHeader(r.statusCode)
		_ = json.NewEncoder(r.w).Encode(body)
	}
}

// handlerFor adapts a route declaration into an http.HandlerFunc.
func handlerFor(rt *route.Route, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		headers := make(map[string]string, len(r.Header))
		for k, vs := range r.Header {
			headers[strings.ToLower(k)] = strings.Join(vs, ", ")
		}

		var body interface{}
		if rt.HasBody() && r.Body != nil {
			raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
			if err != nil {
				httputil.BadRequest(w, "unreadable request body")
				return
			}
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &body); err != nil {
					httputil.BadRequest(w, "invalid JSON body")
					return
				}
			}
		}

		req := &route.Request{
			Context: r.Context(),
			Method:  r.Method,
			URL:     r.URL.RequestURI(),
			Params:  mux.Vars(r),
			Query:   r.URL.Query(),
			Body:    body,
			Headers: headers,
			Log:     log.WithFields(logger.Fields{"request_id": requestID, "operation": rt.Name()}),
			ID:      requestID,
		}
		if req.Params == nil {
			req.Params = make(map[string]string)
		}

		reply := &writerReply{w: w, statusCode: http.StatusOK}
		result, err := rt.Handler(req, reply)
		if err != nil {
			log.Error("handler failed", logger.Fields{
				"operation":  rt.Name(),
				"request_id": requestID,
				"error":      err.Error(),
			})
			if !reply.sent {
				httputil.InternalError(w, "internal error")
			}
			return
		}
		if !reply.sent {
			reply.Send(result)
		}
	}
}
