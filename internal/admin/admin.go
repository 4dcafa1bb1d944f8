// Package admin serves the HTTP API used to inspect a running server and to
// convert between JSON and the binary wire format.
package admin

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/blaze/internal/blaze"
	"github.com/dcrodman/blaze/internal/blaze/records"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/game"
	"github.com/dcrodman/blaze/internal/redirector"
)

// Largest request body accepted by the conversion endpoints.
const maxBodySize = 1 << 20

type api struct {
	srv    *blaze.Server
	logger logrus.FieldLogger
}

// NewRouter returns the admin API for srv.
func NewRouter(srv *blaze.Server) http.Handler {
	a := &api{srv: srv, logger: srv.Logger.WithField("endpoint", "ADMIN")}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/sessions", a.sessions)
		r.Get("/games", a.games)
		r.Get("/games/{id}", a.gameData)
		r.Get("/playgroups", a.playgroups)
		r.Get("/redirector/resolve", a.resolve)
		r.Post("/tdf/encode", a.encode)
		r.Post("/tdf/decode", a.decode)
		r.Get("/records", a.recordNames)
		r.Post("/records/{name}", a.ingestRecord)
	})
	r.Handle("/metrics", promhttp.HandlerFor(srv.Gatherer, promhttp.HandlerOpts{}))

	return r
}

func (a *api) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Debugf("%s %s -> %d", r.Method, r.URL.Path, ww.Status())
	})
}

func (a *api) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warnf("failed to write response: %v", err)
	}
}

func (a *api) writeRaw(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (a *api) writeError(w http.ResponseWriter, status int, err error) {
	a.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodySize))
}

func (a *api) sessions(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.srv.Sessions.Snapshot())
}

func (a *api) games(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.srv.Registry.Games())
}

// gameData returns the replicated state of one game, keyed by tag as the
// members see it.
func (a *api) gameData(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	data, players, err := a.srv.Registry.GameData(game.GameID(id))
	if errors.Is(err, game.ErrGameNotFound) {
		a.writeError(w, http.StatusNotFound, err)
		return
	} else if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := struct {
		Game    json.RawMessage   `json:"game"`
		Players []json.RawMessage `json:"players"`
	}{Players: []json.RawMessage{}}
	if resp.Game, err = records.ToJSON(data); err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	for i := range players {
		out, err := records.ToJSON(&players[i])
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}
		resp.Players = append(resp.Players, out)
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *api) playgroups(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.srv.Registry.Playgroups())
}

func (a *api) resolve(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	clientType := r.URL.Query().Get("type")
	if name == "" {
		a.writeError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	addr, err := a.srv.Resolver.Resolve(name, clientType)
	if errors.Is(err, redirector.ErrUnknownService) {
		a.writeError(w, http.StatusNotFound, err)
		return
	} else if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.writeJSON(w, http.StatusOK, addr)
}

// encode converts a JSON document into the hex encoded wire form of a struct.
func (a *api) encode(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	s, err := tdf.FromJSON(body)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	encoded, err := tdf.Encode(s)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"hex": hex.EncodeToString(encoded)})
}

// decode converts a hex encoded struct back to JSON.
func (a *api) decode(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	s, _, err := tdf.Decode(raw)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := tdf.ToJSON(s)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.writeRaw(w, out)
}

func (a *api) recordNames(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, records.Names())
}

// ingestRecord reads a JSON body into the named record and echoes the record
// back keyed by tag.
func (a *api) ingestRecord(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if records.New(name) == nil {
		a.writeError(w, http.StatusNotFound, errors.New("unknown record type "+name))
		return
	}
	body, err := readBody(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := records.FromJSON(name, body)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := records.ToJSON(rec)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.writeRaw(w, out)
}
